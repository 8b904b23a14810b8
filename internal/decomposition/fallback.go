package decomposition

import (
	"context"

	"github.com/Harshitk-cp/beliefmarket/internal/domain"
	"github.com/Harshitk-cp/beliefmarket/internal/probability"
)

// WeightedAverage is the simple aggregation callers fall back to when a
// decomposition is rejected for low quality. The aggregate and
// meta-aggregate are weight-averaged; leave-one-out values average the peers.
func (e *Engine) WeightedAverage(ctx context.Context, ps []Participant) (*Result, error) {
	ps, err := Prepare(ps)
	if err != nil {
		return nil, err
	}
	if len(ps) == 0 {
		return nil, domain.NewError(domain.ErrInsufficientParticipants, "no participant with nonzero weight")
	}

	per := make([]moments, len(ps))
	var total moments
	for i, p := range ps {
		per[i] = momentsOf(p)
		total = total.add(per[i])
	}
	s := total.scaled()

	loo, err := e.leaveOneOut(ctx, ps, per, averageLOO)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Method:           domain.MethodWeightedAverage,
		Prior:            NeutralProbability,
		Aggregate:        probability.Clamp(s.sb),
		MetaAggregate:    probability.Clamp(s.sm),
		ParticipantCount: len(ps),
		LeaveOneOut:      loo,
	}
	if len(ps) == 1 {
		// Reported as-is rather than through the weighted sums so the
		// aggregate is exactly the participant's belief.
		res.Method = domain.MethodSingleParticipant
		res.Aggregate = ps[0].Belief
		res.MetaAggregate = ps[0].Meta
	}
	return res, nil
}

func averageLOO(others moments) (LeaveOneOut, error) {
	if others.n < 2 || others.w == 0 {
		return LeaveOneOut{Aggregate: NeutralProbability, MetaAggregate: NeutralProbability}, nil
	}
	s := others.scaled()
	return LeaveOneOut{Aggregate: probability.Clamp(s.sb), MetaAggregate: probability.Clamp(s.sm)}, nil
}

package service

import (
	"bytes"
	"context"
	"errors"
	"math"
	"sort"

	"github.com/Harshitk-cp/beliefmarket/internal/decomposition"
	"github.com/Harshitk-cp/beliefmarket/internal/domain"
	"github.com/Harshitk-cp/beliefmarket/internal/store"
	"github.com/google/uuid"
)

// weightTolerance is how far a weight map may sum from 1.
const weightTolerance = 1e-6

// epochInputs is everything loaded for one (belief, epoch) before any maths
// runs.
type epochInputs struct {
	belief *domain.Belief
	latest map[uuid.UUID]domain.Submission
	// agentIDs lists the agents in latest in id order.
	agentIDs []uuid.UUID
	weights  domain.WeightMap
}

// participants pairs every latest submission with its weight, in agent-id
// order. Agents without a weight get zero.
func (in *epochInputs) participants() []decomposition.Participant {
	ps := make([]decomposition.Participant, 0, len(in.agentIDs))
	for _, id := range in.agentIDs {
		sub := in.latest[id]
		ps = append(ps, decomposition.Participant{
			AgentID: id,
			Belief:  sub.Belief,
			Meta:    sub.MetaPrediction,
			Weight:  in.weights[id],
		})
	}
	return ps
}

func getBelief(ctx context.Context, beliefs domain.BeliefStore, id uuid.UUID) (*domain.Belief, error) {
	b, err := beliefs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.NewError(domain.ErrBeliefNotFound, "no belief %s", id)
		}
		return nil, err
	}
	return b, nil
}

// loadSubmissions reads the submissions of a belief and reduces them to the
// latest one per agent.
func loadSubmissions(ctx context.Context, subs domain.SubmissionStore, beliefID uuid.UUID, epoch int64) (map[uuid.UUID]domain.Submission, []uuid.UUID, error) {
	all, err := subs.LoadSubmissions(ctx, beliefID, epoch)
	if err != nil {
		return nil, nil, err
	}
	latest := domain.LatestByAgent(all, epoch)
	ids := make([]uuid.UUID, 0, len(latest))
	for id := range latest {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return latest, ids, nil
}

// validateWeights checks a weight map against the participating agents:
// every weight is a non-negative number, belongs to a participant, and the
// total is 1.
func validateWeights(weights domain.WeightMap, latest map[uuid.UUID]domain.Submission) error {
	var total float64
	for id, w := range weights {
		if _, ok := latest[id]; !ok {
			return domain.ValidationErrorf("weight for agent without a submission").WithAgent(id)
		}
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return domain.ValidationErrorf("weight %v must be a non-negative number", w).WithAgent(id)
		}
		total += w
	}
	if math.Abs(total-1) > weightTolerance {
		return domain.ValidationErrorf("weights sum to %v, want 1", total)
	}
	return nil
}

func sortIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})
}

package decomposition

import (
	"context"
	"errors"

	"github.com/Harshitk-cp/beliefmarket/internal/domain"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// parallelLOOThreshold is the participant count below which fan-out costs
// more than it saves.
const parallelLOOThreshold = 256

// leaveOneOut evaluates estimator on the statistics of every participant's
// peers. Each evaluation reads only its own slot, so chunks run without
// synchronisation and the result matches the sequential order exactly.
func (e *Engine) leaveOneOut(ctx context.Context, ps []Participant, per []moments, estimator func(moments) (LeaveOneOut, error)) (map[uuid.UUID]LeaveOneOut, error) {
	others := exclusive(per)
	out := make([]LeaveOneOut, len(ps))

	run := func(lo, hi int) error {
		for r := lo; r < hi; r++ {
			v, err := estimator(others[r])
			if err != nil {
				return annotateAgent(err, ps[r].AgentID)
			}
			out[r] = v
		}
		return nil
	}

	workers := e.cfg.Parallelism
	if workers < 2 || len(ps) < parallelLOOThreshold {
		if err := run(0, len(ps)); err != nil {
			return nil, err
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		chunk := (len(ps) + workers - 1) / workers
		for lo := 0; lo < len(ps); lo += chunk {
			lo, hi := lo, min(lo+chunk, len(ps))
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				return run(lo, hi)
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	result := make(map[uuid.UUID]LeaveOneOut, len(ps))
	for i, p := range ps {
		result[p.AgentID] = out[i]
	}
	return result, nil
}

func annotateAgent(err error, id uuid.UUID) error {
	var ee *domain.EpochError
	if errors.As(err, &ee) && ee.AgentID == uuid.Nil {
		ee.AgentID = id
	}
	return err
}

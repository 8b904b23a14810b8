// Package mirror nudges the stored beliefs of agents who sat out an epoch
// towards the new consensus with a multiplicative (mirror descent) step.
package mirror

import (
	"math"

	"github.com/Harshitk-cp/beliefmarket/internal/probability"
	"github.com/google/uuid"
)

const (
	// rateTolerance is how close α must be to 0 or 1 to take the closed form.
	rateTolerance = 1e-9
	// denominatorFloor guards the normalisation against underflow.
	denominatorFloor = 1e-300
)

// State is one agent's stored belief going into the update.
type State struct {
	AgentID uuid.UUID
	Belief  float64
	Active  bool
}

// Update moves pOld towards aggregate with learning rate alpha:
//
//	p' = pOld^(1-α)·P^α / (pOld^(1-α)·P^α + (1-pOld)^(1-α)·(1-P)^α)
//
// alpha is clamped to [0,1]. The result is clamped to the open interval.
func Update(pOld, aggregate, alpha float64) float64 {
	alpha = math.Min(1, math.Max(0, alpha))
	switch {
	case alpha < rateTolerance:
		return probability.Clamp(pOld)
	case alpha > 1-rateTolerance:
		return probability.Clamp(aggregate)
	}

	p, agg := probability.Clamp(pOld), probability.Clamp(aggregate)
	yes := math.Pow(p, 1-alpha) * math.Pow(agg, alpha)
	no := math.Pow(1-p, 1-alpha) * math.Pow(1-agg, alpha)
	den := yes + no
	if !probability.Finite(den) || den < denominatorFloor {
		return p
	}
	return probability.Clamp(yes / den)
}

// Apply runs Update over every passive state. Active states are returned as
// given. The second return value counts passive beliefs that changed.
func Apply(states []State, aggregate, alpha float64) ([]State, int) {
	out := make([]State, len(states))
	changed := 0
	for i, s := range states {
		out[i] = s
		if s.Active {
			continue
		}
		out[i].Belief = Update(s.Belief, aggregate, alpha)
		if out[i].Belief != s.Belief {
			changed++
		}
	}
	return out, changed
}

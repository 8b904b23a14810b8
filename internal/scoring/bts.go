// Package scoring implements the Bayesian Truth Serum score used to decide who
// gains and who loses stake in an epoch.
package scoring

import (
	"bytes"
	"sort"

	"github.com/Harshitk-cp/beliefmarket/internal/domain"
	"github.com/Harshitk-cp/beliefmarket/internal/probability"
	"github.com/google/uuid"
)

type Class string

const (
	ClassWinner  Class = "winner"
	ClassLoser   Class = "loser"
	ClassNeutral Class = "neutral"
)

// Input is one agent's own report together with the peer estimates computed
// without it.
type Input struct {
	AgentID       uuid.UUID
	Belief        float64
	Meta          float64
	PeerAggregate float64
	PeerMeta      float64
}

type Score struct {
	AgentID uuid.UUID `json:"agent_id"`
	Value   float64   `json:"value"`
	Class   Class     `json:"class"`
}

// Outcome holds every score in agent-id order plus the two partitions.
// Neutral agents appear in neither list.
type Outcome struct {
	Scores  []Score
	Winners []uuid.UUID
	Losers  []uuid.UUID
}

// Value returns KL(p‖m̄) − KL(p‖p̄) − KL(p̄‖m), where p̄ and m̄ are the peer
// aggregate and meta-aggregate. It is exactly zero when the agent's report
// coincides with its peers'.
func Value(in Input) float64 {
	return probability.BinaryKL(in.Belief, in.PeerMeta) -
		probability.BinaryKL(in.Belief, in.PeerAggregate) -
		probability.BinaryKL(in.PeerAggregate, in.Meta)
}

func classify(v float64) Class {
	switch {
	case v > 0:
		return ClassWinner
	case v < 0:
		return ClassLoser
	}
	return ClassNeutral
}

// ScoreAll scores every input. A non-finite score is a numerical failure and
// aborts the whole batch.
func ScoreAll(inputs []Input) (*Outcome, error) {
	sorted := append([]Input(nil), inputs...)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].AgentID[:], sorted[j].AgentID[:]) < 0
	})

	out := &Outcome{Scores: make([]Score, 0, len(sorted))}
	for _, in := range sorted {
		v := Value(in)
		if !probability.Finite(v) {
			return nil, domain.NewError(domain.ErrNumericalInstability,
				"non-finite score %v (belief %v, meta %v, peer aggregate %v, peer meta %v)",
				v, in.Belief, in.Meta, in.PeerAggregate, in.PeerMeta).WithAgent(in.AgentID)
		}
		c := classify(v)
		out.Scores = append(out.Scores, Score{AgentID: in.AgentID, Value: v, Class: c})
		switch c {
		case ClassWinner:
			out.Winners = append(out.Winners, in.AgentID)
		case ClassLoser:
			out.Losers = append(out.Losers, in.AgentID)
		}
	}
	return out, nil
}

// ByAgent indexes the scores by agent.
func (o *Outcome) ByAgent() map[uuid.UUID]Score {
	m := make(map[uuid.UUID]Score, len(o.Scores))
	for _, s := range o.Scores {
		m[s.AgentID] = s
	}
	return m
}

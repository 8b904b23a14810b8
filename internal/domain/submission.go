package domain

import (
	"time"

	"github.com/google/uuid"
)

// Submission is an agent's private estimate and meta-prediction for one
// belief in one epoch.
type Submission struct {
	AgentID        uuid.UUID `json:"agent_id"`
	BeliefID       uuid.UUID `json:"belief_id"`
	Epoch          int64     `json:"epoch"`
	Belief         float64   `json:"belief"`
	MetaPrediction float64   `json:"meta_prediction"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// LatestByAgent reduces a flat submission list to the authoritative
// submission per agent: the one with the highest epoch not after epoch.
// On equal epochs the later UpdatedAt wins. A submission carried over from an
// earlier epoch is reported as passive for epoch.
func LatestByAgent(subs []Submission, epoch int64) map[uuid.UUID]Submission {
	latest := make(map[uuid.UUID]Submission, len(subs))
	for _, s := range subs {
		if s.Epoch > epoch {
			continue
		}
		cur, ok := latest[s.AgentID]
		if ok && (cur.Epoch > s.Epoch || (cur.Epoch == s.Epoch && !s.UpdatedAt.After(cur.UpdatedAt))) {
			continue
		}
		latest[s.AgentID] = s
	}
	for id, s := range latest {
		if s.Epoch != epoch {
			s.IsActive = false
			latest[id] = s
		}
	}
	return latest
}

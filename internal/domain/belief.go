package domain

import (
	"time"

	"github.com/google/uuid"
)

type BeliefStatus string

const (
	BeliefStatusActive   BeliefStatus = "active"
	BeliefStatusArchived BeliefStatus = "archived"
)

// Belief is a binary proposition with a persisted consensus estimate.
type Belief struct {
	ID                 uuid.UUID    `json:"id"`
	CreatorID          uuid.UUID    `json:"creator_id"`
	Proposition        string       `json:"proposition"`
	CreatedEpoch       int64        `json:"created_epoch"`
	ExpirationEpoch    int64        `json:"expiration_epoch"`
	Aggregate          float64      `json:"aggregate"`
	Certainty          float64      `json:"certainty"`
	Status             BeliefStatus `json:"status"`
	LastProcessedEpoch *int64       `json:"last_processed_epoch,omitempty"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// OpenAt reports whether the belief accepts submissions and processing in epoch.
func (b *Belief) OpenAt(epoch int64) bool {
	return b.Status == BeliefStatusActive && epoch >= b.CreatedEpoch && epoch <= b.ExpirationEpoch
}

// ExpiredAt reports whether the belief should be archived once epoch has started.
func (b *Belief) ExpiredAt(epoch int64) bool {
	return b.Status == BeliefStatusActive && epoch > b.ExpirationEpoch
}

func ValidBeliefStatus(s string) bool {
	switch BeliefStatus(s) {
	case BeliefStatusActive, BeliefStatusArchived:
		return true
	}
	return false
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Agent is a stakeholder identity. TotalStake is held in micro-units and is
// only ever changed by the stake ledger.
type Agent struct {
	ID         uuid.UUID      `json:"id"`
	ExternalID string         `json:"external_id"`
	Name       string         `json:"name"`
	TotalStake int64          `json:"total_stake"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

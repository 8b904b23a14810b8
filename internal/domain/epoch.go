package domain

import (
	"time"

	"github.com/google/uuid"
)

// Stage names a step of the per-belief epoch pipeline.
type Stage string

const (
	StageLoading         Stage = "LOADING"
	StageWeighted        Stage = "WEIGHTED"
	StageDecomposed      Stage = "DECOMPOSED"
	StageMirrorDescended Stage = "MIRROR_DESCENDED"
	StageScored          Stage = "SCORED"
	StageRedistributed   Stage = "REDISTRIBUTED"
	StagePersisted       Stage = "PERSISTED"
)

// AggregationMethod records how an epoch's aggregate was produced.
type AggregationMethod string

const (
	MethodDecomposition     AggregationMethod = "decomposition"
	MethodWeightedAverage   AggregationMethod = "weighted_average"
	MethodSingleParticipant AggregationMethod = "single_participant"
)

// WeightMap maps agents to their normalised influence on one belief.
type WeightMap map[uuid.UUID]float64

// EpochRecord is the append-only snapshot written once per (belief, epoch).
type EpochRecord struct {
	BeliefID         uuid.UUID         `json:"belief_id"`
	Epoch            int64             `json:"epoch"`
	Aggregate        float64           `json:"aggregate"`
	Certainty        float64           `json:"certainty"`
	Entropy          float64           `json:"entropy"`
	ParticipantCount int               `json:"participant_count"`
	TotalStake       int64             `json:"total_stake"`
	Method           AggregationMethod `json:"method"`
	CreatedAt        time.Time         `json:"created_at"`
}

// StakeEvent journals one agent's stake delta for one epoch.
type StakeEvent struct {
	BeliefID uuid.UUID `json:"belief_id"`
	Epoch    int64     `json:"epoch"`
	AgentID  uuid.UUID `json:"agent_id"`
	Delta    int64     `json:"delta"`
	Score    float64   `json:"score"`
}

// EpochCommit carries every write of one epoch run so it can be applied in a
// single transaction.
type EpochCommit struct {
	Record         EpochRecord
	PassiveUpdates []Submission
	StakeEvents    []StakeEvent
}

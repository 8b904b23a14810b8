package domain

import (
	"context"

	"github.com/google/uuid"
)

type AgentStore interface {
	Create(ctx context.Context, a *Agent) error
	GetByID(ctx context.Context, id uuid.UUID) (*Agent, error)
	GetByExternalID(ctx context.Context, externalID string) (*Agent, error)
}

// StakeStore owns agent balances. ApplyDelta must be an atomic conditional
// increment: it fails rather than leave a negative balance.
type StakeStore interface {
	GetStake(ctx context.Context, agentID uuid.UUID) (int64, error)
	ApplyDelta(ctx context.Context, agentID uuid.UUID, delta int64) error
}

type BeliefStore interface {
	Create(ctx context.Context, b *Belief) error
	GetByID(ctx context.Context, id uuid.UUID) (*Belief, error)
	ListActive(ctx context.Context) ([]Belief, error)
	Archive(ctx context.Context, id uuid.UUID) error
}

type SubmissionStore interface {
	Upsert(ctx context.Context, s *Submission) error
	// LoadSubmissions returns every submission for the belief up to and
	// including epoch. Callers reduce it with LatestByAgent.
	LoadSubmissions(ctx context.Context, beliefID uuid.UUID, epoch int64) ([]Submission, error)
}

// WeightProvider supplies a normalised, non-negative weight per agent.
type WeightProvider interface {
	ComputeWeights(ctx context.Context, beliefID uuid.UUID, agentIDs []uuid.UUID) (WeightMap, error)
}

type HistorySink interface {
	AppendEpochRecord(ctx context.Context, rec *EpochRecord) error
	HasEpochRecord(ctx context.Context, beliefID uuid.UUID, epoch int64) (bool, error)
	ListByBelief(ctx context.Context, beliefID uuid.UUID, limit int) ([]EpochRecord, error)
}

// EpochCommitter applies all writes of one epoch run atomically. It returns
// ErrEpochAlreadyProcessed when a record for the same (belief, epoch) exists.
type EpochCommitter interface {
	CommitEpoch(ctx context.Context, c *EpochCommit) error
}

// LockStore records how much of an agent's stake is locked on a belief. The
// weight provider derives weights from it.
type LockStore interface {
	SetLockedStake(ctx context.Context, beliefID, agentID uuid.UUID, amount int64) error
}

// LockReader returns the positive locked stake of each requested agent on a
// belief. Agents with nothing locked are absent from the map.
type LockReader interface {
	LockedStakes(ctx context.Context, beliefID uuid.UUID, agentIDs []uuid.UUID) (map[uuid.UUID]int64, error)
}

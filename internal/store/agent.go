package store

import (
	"context"
	"fmt"

	"github.com/Harshitk-cp/beliefmarket/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AgentStore struct {
	db *pgxpool.Pool
}

func NewAgentStore(db *pgxpool.Pool) *AgentStore {
	return &AgentStore{db: db}
}

func (s *AgentStore) Create(ctx context.Context, a *domain.Agent) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO agents (external_id, name, total_stake, metadata)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, updated_at`,
		a.ExternalID, a.Name, a.TotalStake, a.Metadata,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *AgentStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Agent, error) {
	a := &domain.Agent{}
	err := s.db.QueryRow(ctx,
		`SELECT id, external_id, name, total_stake, metadata, created_at, updated_at
		 FROM agents WHERE id = $1`,
		id,
	).Scan(&a.ID, &a.ExternalID, &a.Name, &a.TotalStake, &a.Metadata, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

func (s *AgentStore) GetByExternalID(ctx context.Context, externalID string) (*domain.Agent, error) {
	a := &domain.Agent{}
	err := s.db.QueryRow(ctx,
		`SELECT id, external_id, name, total_stake, metadata, created_at, updated_at
		 FROM agents WHERE external_id = $1`,
		externalID,
	).Scan(&a.ID, &a.ExternalID, &a.Name, &a.TotalStake, &a.Metadata, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

func (s *AgentStore) GetStake(ctx context.Context, agentID uuid.UUID) (int64, error) {
	var stake int64
	err := s.db.QueryRow(ctx,
		`SELECT total_stake FROM agents WHERE id = $1`,
		agentID,
	).Scan(&stake)
	if err != nil {
		return 0, notFound(err)
	}
	return stake, nil
}

// ApplyDelta adds delta to the agent's balance in a single conditional
// statement. Concurrent callers never lose updates.
func (s *AgentStore) ApplyDelta(ctx context.Context, agentID uuid.UUID, delta int64) error {
	return applyDelta(ctx, s.db, agentID, delta)
}

func applyDelta(ctx context.Context, q querier, agentID uuid.UUID, delta int64) error {
	tag, err := q.Exec(ctx,
		`UPDATE agents SET total_stake = total_stake + $2, updated_at = NOW()
		 WHERE id = $1 AND total_stake + $2 >= 0`,
		agentID, delta,
	)
	if err != nil {
		return fmt.Errorf("apply stake delta for agent %s: %w", agentID, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM agents WHERE id = $1)`, agentID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return fmt.Errorf("agent %s delta %d: %w", agentID, delta, ErrInsufficientStake)
}

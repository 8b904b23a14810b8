package store

import (
	"context"

	"github.com/Harshitk-cp/beliefmarket/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// WeightStore serves the weight provider contract from stake that agents have
// locked on a belief. Weights are each agent's share of the stake locked by
// the requested agents.
type WeightStore struct {
	db *pgxpool.Pool
}

func NewWeightStore(db *pgxpool.Pool) *WeightStore {
	return &WeightStore{db: db}
}

func (s *WeightStore) SetLockedStake(ctx context.Context, beliefID, agentID uuid.UUID, amount int64) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO belief_locks (belief_id, agent_id, locked_stake)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (belief_id, agent_id) DO UPDATE
		 SET locked_stake = EXCLUDED.locked_stake, updated_at = NOW()`,
		beliefID, agentID, amount,
	)
	switch pgCode(err) {
	case pgForeignKeyViolation:
		return ErrNotFound
	case pgCheckViolation:
		return ErrConflict
	}
	return err
}

func (s *WeightStore) LockedStakes(ctx context.Context, beliefID uuid.UUID, agentIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	locked := make(map[uuid.UUID]int64, len(agentIDs))
	if len(agentIDs) == 0 {
		return locked, nil
	}

	rows, err := s.db.Query(ctx,
		`SELECT agent_id, locked_stake FROM belief_locks
		 WHERE belief_id = $1 AND agent_id = ANY($2) AND locked_stake > 0`,
		beliefID, agentIDs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		var amount int64
		if err := rows.Scan(&id, &amount); err != nil {
			return nil, err
		}
		locked[id] = amount
	}
	return locked, rows.Err()
}

func (s *WeightStore) ComputeWeights(ctx context.Context, beliefID uuid.UUID, agentIDs []uuid.UUID) (domain.WeightMap, error) {
	locked, err := s.LockedStakes(ctx, beliefID, agentIDs)
	if err != nil {
		return nil, err
	}
	return WeightsFromLocks(locked), nil
}

// WeightsFromLocks normalises locked stakes into weights. Nothing locked
// yields an empty map.
func WeightsFromLocks(locked map[uuid.UUID]int64) domain.WeightMap {
	weights := make(domain.WeightMap, len(locked))
	var total int64
	for _, amount := range locked {
		total += amount
	}
	if total == 0 {
		return weights
	}
	for id, amount := range locked {
		weights[id] = float64(amount) / float64(total)
	}
	return weights
}

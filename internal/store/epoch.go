package store

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/Harshitk-cp/beliefmarket/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EpochStore applies every write of a processed epoch in one transaction.
type EpochStore struct {
	db *pgxpool.Pool
}

func NewEpochStore(db *pgxpool.Pool) *EpochStore {
	return &EpochStore{db: db}
}

// CommitEpoch inserts the history record first so a concurrent or repeated
// run fails before touching balances. Stake deltas are applied in agent-id
// order to keep lock acquisition consistent across beliefs.
func (s *EpochStore) CommitEpoch(ctx context.Context, c *domain.EpochCommit) error {
	events := append([]domain.StakeEvent(nil), c.StakeEvents...)
	sort.Slice(events, func(i, j int) bool {
		return bytes.Compare(events[i].AgentID[:], events[j].AgentID[:]) < 0
	})

	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		rec := &c.Record
		if err := appendEpochRecord(ctx, tx, rec); err != nil {
			return err
		}

		tag, err := tx.Exec(ctx,
			`UPDATE beliefs
			 SET aggregate = $2, certainty = $3, last_processed_epoch = $4, updated_at = NOW()
			 WHERE id = $1 AND status = $5`,
			rec.BeliefID, rec.Aggregate, rec.Certainty, rec.Epoch, domain.BeliefStatusActive,
		)
		if err != nil {
			return fmt.Errorf("update belief: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.NewError(domain.ErrBeliefNotFound, "belief is missing or archived")
		}

		for _, sub := range c.PassiveUpdates {
			// An agent who submitted while the epoch was running keeps that
			// submission.
			if _, err := tx.Exec(ctx,
				`INSERT INTO submissions (agent_id, belief_id, epoch, belief, meta_prediction, is_active)
				 VALUES ($1, $2, $3, $4, $5, FALSE)
				 ON CONFLICT (agent_id, belief_id, epoch) DO NOTHING`,
				sub.AgentID, sub.BeliefID, sub.Epoch, sub.Belief, sub.MetaPrediction,
			); err != nil {
				return fmt.Errorf("write passive submission for agent %s: %w", sub.AgentID, err)
			}
		}

		for _, ev := range events {
			if ev.Delta != 0 {
				if err := applyDelta(ctx, tx, ev.AgentID, ev.Delta); err != nil {
					return err
				}
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO stake_events (belief_id, epoch, agent_id, delta, score)
				 VALUES ($1, $2, $3, $4, $5)`,
				ev.BeliefID, ev.Epoch, ev.AgentID, ev.Delta, ev.Score,
			); err != nil {
				return fmt.Errorf("write stake event for agent %s: %w", ev.AgentID, err)
			}
		}
		return nil
	})
}

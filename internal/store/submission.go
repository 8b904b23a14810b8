package store

import (
	"context"

	"github.com/Harshitk-cp/beliefmarket/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SubmissionStore struct {
	db *pgxpool.Pool
}

func NewSubmissionStore(db *pgxpool.Pool) *SubmissionStore {
	return &SubmissionStore{db: db}
}

// Upsert records the agent's submission for the epoch, replacing an earlier
// one for the same epoch.
func (s *SubmissionStore) Upsert(ctx context.Context, sub *domain.Submission) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO submissions (agent_id, belief_id, epoch, belief, meta_prediction, is_active)
		 VALUES ($1, $2, $3, $4, $5, TRUE)
		 ON CONFLICT (agent_id, belief_id, epoch) DO UPDATE
		 SET belief = EXCLUDED.belief,
		     meta_prediction = EXCLUDED.meta_prediction,
		     is_active = TRUE,
		     updated_at = NOW()
		 RETURNING is_active, created_at, updated_at`,
		sub.AgentID, sub.BeliefID, sub.Epoch, sub.Belief, sub.MetaPrediction,
	).Scan(&sub.IsActive, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		if pgCode(err) == pgForeignKeyViolation {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// LoadSubmissions returns the latest submission of every agent for the belief
// at or before epoch.
func (s *SubmissionStore) LoadSubmissions(ctx context.Context, beliefID uuid.UUID, epoch int64) ([]domain.Submission, error) {
	rows, err := s.db.Query(ctx,
		`SELECT DISTINCT ON (agent_id)
		        agent_id, belief_id, epoch, belief, meta_prediction, is_active, created_at, updated_at
		 FROM submissions
		 WHERE belief_id = $1 AND epoch <= $2
		 ORDER BY agent_id, epoch DESC, updated_at DESC`,
		beliefID, epoch,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []domain.Submission
	for rows.Next() {
		var sub domain.Submission
		if err := rows.Scan(&sub.AgentID, &sub.BeliefID, &sub.Epoch, &sub.Belief, &sub.MetaPrediction,
			&sub.IsActive, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

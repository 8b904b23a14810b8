package store

import (
	"context"
	"errors"

	"github.com/Harshitk-cp/beliefmarket/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type HistoryStore struct {
	db *pgxpool.Pool
}

func NewHistoryStore(db *pgxpool.Pool) *HistoryStore {
	return &HistoryStore{db: db}
}

func (s *HistoryStore) AppendEpochRecord(ctx context.Context, rec *domain.EpochRecord) error {
	return appendEpochRecord(ctx, s.db, rec)
}

func appendEpochRecord(ctx context.Context, q querier, rec *domain.EpochRecord) error {
	err := q.QueryRow(ctx,
		`INSERT INTO epoch_history (belief_id, epoch, aggregate, certainty, entropy, participant_count, total_stake, method)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (belief_id, epoch) DO NOTHING
		 RETURNING created_at`,
		rec.BeliefID, rec.Epoch, rec.Aggregate, rec.Certainty, rec.Entropy, rec.ParticipantCount, rec.TotalStake, rec.Method,
	).Scan(&rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.NewError(domain.ErrEpochAlreadyProcessed, "history record exists")
		}
		return err
	}
	return nil
}

func (s *HistoryStore) HasEpochRecord(ctx context.Context, beliefID uuid.UUID, epoch int64) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM epoch_history WHERE belief_id = $1 AND epoch = $2)`,
		beliefID, epoch,
	).Scan(&exists)
	return exists, err
}

// ListByBelief returns the newest records first.
func (s *HistoryStore) ListByBelief(ctx context.Context, beliefID uuid.UUID, limit int) ([]domain.EpochRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(ctx,
		`SELECT belief_id, epoch, aggregate, certainty, entropy, participant_count, total_stake, method, created_at
		 FROM epoch_history WHERE belief_id = $1
		 ORDER BY epoch DESC LIMIT $2`,
		beliefID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.EpochRecord
	for rows.Next() {
		var r domain.EpochRecord
		if err := rows.Scan(&r.BeliefID, &r.Epoch, &r.Aggregate, &r.Certainty, &r.Entropy,
			&r.ParticipantCount, &r.TotalStake, &r.Method, &r.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

package store

import (
	"context"

	"github.com/Harshitk-cp/beliefmarket/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BeliefStore struct {
	db *pgxpool.Pool
}

func NewBeliefStore(db *pgxpool.Pool) *BeliefStore {
	return &BeliefStore{db: db}
}

const beliefColumns = `id, creator_id, proposition, created_epoch, expiration_epoch, aggregate, certainty,
	status, last_processed_epoch, created_at, updated_at`

func (s *BeliefStore) Create(ctx context.Context, b *domain.Belief) error {
	if b.Status == "" {
		b.Status = domain.BeliefStatusActive
	}
	err := s.db.QueryRow(ctx,
		`INSERT INTO beliefs (creator_id, proposition, created_epoch, expiration_epoch, aggregate, certainty, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at, updated_at`,
		b.CreatorID, b.Proposition, b.CreatedEpoch, b.ExpirationEpoch, b.Aggregate, b.Certainty, b.Status,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if pgCode(err) == pgForeignKeyViolation {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *BeliefStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Belief, error) {
	row := s.db.QueryRow(ctx, `SELECT `+beliefColumns+` FROM beliefs WHERE id = $1`, id)
	b, err := scanBelief(row)
	if err != nil {
		return nil, notFound(err)
	}
	return b, nil
}

func (s *BeliefStore) ListActive(ctx context.Context) ([]domain.Belief, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+beliefColumns+` FROM beliefs WHERE status = $1 ORDER BY created_at, id`,
		domain.BeliefStatusActive,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var beliefs []domain.Belief
	for rows.Next() {
		b, err := scanBelief(rows)
		if err != nil {
			return nil, err
		}
		beliefs = append(beliefs, *b)
	}
	return beliefs, rows.Err()
}

func (s *BeliefStore) Archive(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE beliefs SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, domain.BeliefStatusArchived,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanBelief(row pgx.Row) (*domain.Belief, error) {
	b := &domain.Belief{}
	err := row.Scan(&b.ID, &b.CreatorID, &b.Proposition, &b.CreatedEpoch, &b.ExpirationEpoch,
		&b.Aggregate, &b.Certainty, &b.Status, &b.LastProcessedEpoch, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return b, nil
}

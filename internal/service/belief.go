package service

import (
	"context"
	"errors"
	"strings"

	"github.com/Harshitk-cp/beliefmarket/internal/decomposition"
	"github.com/Harshitk-cp/beliefmarket/internal/domain"
	"github.com/Harshitk-cp/beliefmarket/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultHistoryLimit = 50

type BeliefService struct {
	beliefs domain.BeliefStore
	agents  domain.AgentStore
	history domain.HistorySink
	logger  *zap.Logger
}

func NewBeliefService(bs domain.BeliefStore, as domain.AgentStore, hs domain.HistorySink, logger *zap.Logger) *BeliefService {
	return &BeliefService{beliefs: bs, agents: as, history: hs, logger: logger}
}

// Create opens a market on a proposition. The belief starts at the neutral
// aggregate with zero certainty.
func (s *BeliefService) Create(ctx context.Context, b *domain.Belief) error {
	b.Proposition = strings.TrimSpace(b.Proposition)
	if b.Proposition == "" {
		return domain.ValidationErrorf("proposition is required")
	}
	if b.CreatedEpoch < 0 {
		return domain.ValidationErrorf("created_epoch %d must not be negative", b.CreatedEpoch)
	}
	if b.ExpirationEpoch < b.CreatedEpoch {
		return domain.ValidationErrorf("expiration_epoch %d before created_epoch %d", b.ExpirationEpoch, b.CreatedEpoch)
	}
	if _, err := s.agents.GetByID(ctx, b.CreatorID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.NewError(domain.ErrAgentNotFound, "creator does not exist").WithAgent(b.CreatorID)
		}
		return err
	}

	b.Aggregate = decomposition.NeutralProbability
	b.Certainty = 0
	b.Status = domain.BeliefStatusActive
	b.LastProcessedEpoch = nil
	if err := s.beliefs.Create(ctx, b); err != nil {
		return err
	}
	s.logger.Info("belief created",
		zap.String("belief_id", b.ID.String()),
		zap.String("creator_id", b.CreatorID.String()),
		zap.Int64("expiration_epoch", b.ExpirationEpoch))
	return nil
}

func (s *BeliefService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Belief, error) {
	return getBelief(ctx, s.beliefs, id)
}

// History returns the newest epoch records of a belief first.
func (s *BeliefService) History(ctx context.Context, id uuid.UUID, limit int) ([]domain.EpochRecord, error) {
	if _, err := getBelief(ctx, s.beliefs, id); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return s.history.ListByBelief(ctx, id, limit)
}

// ArchiveExpired archives every active belief whose expiration epoch is
// before epoch and returns their ids.
func (s *BeliefService) ArchiveExpired(ctx context.Context, epoch int64) ([]uuid.UUID, error) {
	beliefs, err := s.beliefs.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	archived := []uuid.UUID{}
	for _, b := range beliefs {
		if !b.ExpiredAt(epoch) {
			continue
		}
		if err := s.beliefs.Archive(ctx, b.ID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return archived, err
		}
		archived = append(archived, b.ID)
	}
	if len(archived) > 0 {
		s.logger.Info("archived expired beliefs", zap.Int64("epoch", epoch), zap.Int("count", len(archived)))
	}
	return archived, nil
}

package service

import (
	"context"
	"errors"
	"strings"

	"github.com/Harshitk-cp/beliefmarket/internal/domain"
	"github.com/Harshitk-cp/beliefmarket/internal/store"
	"github.com/google/uuid"
)

type AgentService struct {
	store  domain.AgentStore
	stakes domain.StakeStore
}

func NewAgentService(s domain.AgentStore, stakes domain.StakeStore) *AgentService {
	return &AgentService{store: s, stakes: stakes}
}

var ErrAgentConflict = errors.New("agent with this external_id already exists")

// Create onboards an agent with its opening balance.
func (s *AgentService) Create(ctx context.Context, a *domain.Agent) error {
	a.ExternalID = strings.TrimSpace(a.ExternalID)
	if a.ExternalID == "" {
		return domain.ValidationErrorf("external_id is required")
	}
	if a.TotalStake < 0 {
		return domain.ValidationErrorf("total_stake %d must not be negative", a.TotalStake)
	}

	err := s.store.Create(ctx, a)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return ErrAgentConflict
		}
		return err
	}
	return nil
}

func (s *AgentService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Agent, error) {
	a, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.NewError(domain.ErrAgentNotFound, "no agent %s", id).WithAgent(id)
		}
		return nil, err
	}
	return a, nil
}

func (s *AgentService) GetStake(ctx context.Context, id uuid.UUID) (int64, error) {
	stake, err := s.stakes.GetStake(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, domain.NewError(domain.ErrAgentNotFound, "no agent %s", id).WithAgent(id)
		}
		return 0, err
	}
	return stake, nil
}

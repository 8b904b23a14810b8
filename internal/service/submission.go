package service

import (
	"context"
	"errors"

	"github.com/Harshitk-cp/beliefmarket/internal/domain"
	"github.com/Harshitk-cp/beliefmarket/internal/probability"
	"github.com/Harshitk-cp/beliefmarket/internal/store"
	"go.uber.org/zap"
)

type SubmissionService struct {
	submissions domain.SubmissionStore
	beliefs     domain.BeliefStore
	agents      domain.AgentStore
	locks       domain.LockStore
	logger      *zap.Logger
}

func NewSubmissionService(ss domain.SubmissionStore, bs domain.BeliefStore, as domain.AgentStore, ls domain.LockStore, logger *zap.Logger) *SubmissionService {
	return &SubmissionService{submissions: ss, beliefs: bs, agents: as, locks: ls, logger: logger}
}

// Submit records an agent's belief and meta-prediction for an epoch. A later
// submission for the same epoch replaces the earlier one. When lockedStake is
// set the agent's lock on the belief is updated too.
func (s *SubmissionService) Submit(ctx context.Context, sub *domain.Submission, lockedStake *int64) error {
	if !probability.Valid(sub.Belief) {
		return domain.ValidationErrorf("belief %v outside [0,1]", sub.Belief).WithAgent(sub.AgentID)
	}
	if !probability.Valid(sub.MetaPrediction) {
		return domain.ValidationErrorf("meta_prediction %v outside [0,1]", sub.MetaPrediction).WithAgent(sub.AgentID)
	}

	belief, err := getBelief(ctx, s.beliefs, sub.BeliefID)
	if err != nil {
		return err
	}
	if !belief.OpenAt(sub.Epoch) {
		return domain.ValidationErrorf("belief is %s for epochs %d..%d, got epoch %d",
			belief.Status, belief.CreatedEpoch, belief.ExpirationEpoch, sub.Epoch)
	}

	agent, err := s.agents.GetByID(ctx, sub.AgentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.NewError(domain.ErrAgentNotFound, "no agent %s", sub.AgentID).WithAgent(sub.AgentID)
		}
		return err
	}
	if lockedStake != nil && (*lockedStake < 0 || *lockedStake > agent.TotalStake) {
		return domain.ValidationErrorf("locked stake %d outside 0..%d", *lockedStake, agent.TotalStake).WithAgent(sub.AgentID)
	}

	sub.Belief = probability.Clamp(sub.Belief)
	sub.MetaPrediction = probability.Clamp(sub.MetaPrediction)
	sub.IsActive = true
	if err := s.submissions.Upsert(ctx, sub); err != nil {
		return err
	}
	if lockedStake != nil {
		if err := s.locks.SetLockedStake(ctx, sub.BeliefID, sub.AgentID, *lockedStake); err != nil {
			return err
		}
	}

	s.logger.Debug("submission recorded",
		zap.String("belief_id", sub.BeliefID.String()),
		zap.String("agent_id", sub.AgentID.String()),
		zap.Int64("epoch", sub.Epoch))
	return nil
}

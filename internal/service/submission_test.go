package service

import (
	"context"
	"errors"
	"testing"

	"github.com/Harshitk-cp/beliefmarket/internal/domain"
	"github.com/Harshitk-cp/beliefmarket/internal/probability"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func TestSubmissionService_Submit(t *testing.T) {
	f := newEpochFixture(t, DefaultEpochConfig())
	locks := &mockLockStore{}
	s := NewSubmissionService(f.subs, f.beliefs, f.agents, locks, zap.NewNop())
	ctx := context.Background()
	agent := f.addAgent(t, 500)

	lock := int64(200)
	sub := &domain.Submission{AgentID: agent, BeliefID: f.belief.ID, Epoch: 2, Belief: 0.7, MetaPrediction: 0.6}
	if err := s.Submit(ctx, sub, &lock); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := locks.locked[[2]uuid.UUID{f.belief.ID, agent}]; got != 200 {
		t.Fatalf("expected locked stake 200, got %d", got)
	}

	// A second submission in the same epoch replaces the first.
	again := &domain.Submission{AgentID: agent, BeliefID: f.belief.ID, Epoch: 2, Belief: 1, MetaPrediction: 0.4}
	if err := s.Submit(ctx, again, nil); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	stored, ok := f.subs.get(f.belief.ID, agent, 2)
	if !ok {
		t.Fatal("expected stored submission")
	}
	if stored.Belief != 1-probability.Epsilon || stored.MetaPrediction != 0.4 || !stored.IsActive {
		t.Fatalf("unexpected stored submission %+v", stored)
	}
}

func TestSubmissionService_SubmitValidation(t *testing.T) {
	f := newEpochFixture(t, DefaultEpochConfig())
	s := NewSubmissionService(f.subs, f.beliefs, f.agents, &mockLockStore{}, zap.NewNop())
	ctx := context.Background()
	agent := f.addAgent(t, 100)
	tooMuch := int64(101)

	tests := []struct {
		name string
		sub  domain.Submission
		lock *int64
		want error
	}{
		{"belief above one", domain.Submission{AgentID: agent, BeliefID: f.belief.ID, Epoch: 1, Belief: 1.2, MetaPrediction: 0.5}, nil, domain.ErrValidation},
		{"negative meta", domain.Submission{AgentID: agent, BeliefID: f.belief.ID, Epoch: 1, Belief: 0.2, MetaPrediction: -0.5}, nil, domain.ErrValidation},
		{"epoch after expiration", domain.Submission{AgentID: agent, BeliefID: f.belief.ID, Epoch: 11, Belief: 0.2, MetaPrediction: 0.5}, nil, domain.ErrValidation},
		{"unknown belief", domain.Submission{AgentID: agent, BeliefID: uuid.New(), Epoch: 1, Belief: 0.2, MetaPrediction: 0.5}, nil, domain.ErrBeliefNotFound},
		{"unknown agent", domain.Submission{AgentID: uuid.New(), BeliefID: f.belief.ID, Epoch: 1, Belief: 0.2, MetaPrediction: 0.5}, nil, domain.ErrAgentNotFound},
		{"lock above balance", domain.Submission{AgentID: agent, BeliefID: f.belief.ID, Epoch: 1, Belief: 0.2, MetaPrediction: 0.5}, &tooMuch, domain.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := tt.sub
			err := s.Submit(ctx, &sub, tt.lock)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

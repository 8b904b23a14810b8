package service

import (
	"context"
	"sync"

	"github.com/Harshitk-cp/beliefmarket/internal/domain"
	"github.com/Harshitk-cp/beliefmarket/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// mockAgentStore implements domain.AgentStore and domain.StakeStore.
type mockAgentStore struct {
	mu     sync.Mutex
	agents map[uuid.UUID]*domain.Agent
}

func newMockAgentStore() *mockAgentStore {
	return &mockAgentStore{agents: make(map[uuid.UUID]*domain.Agent)}
}

func (m *mockAgentStore) Create(ctx context.Context, a *domain.Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.agents {
		if existing.ExternalID == a.ExternalID {
			return store.ErrConflict
		}
	}
	a.ID = uuid.New()
	cp := *a
	m.agents[a.ID] = &cp
	return nil
}

func (m *mockAgentStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agents[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockAgentStore) GetByExternalID(ctx context.Context, externalID string) (*domain.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.agents {
		if a.ExternalID == externalID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockAgentStore) GetStake(ctx context.Context, id uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agents[id]
	if !ok {
		return 0, store.ErrNotFound
	}
	return a.TotalStake, nil
}

func (m *mockAgentStore) ApplyDelta(ctx context.Context, id uuid.UUID, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyLocked(id, delta)
}

func (m *mockAgentStore) applyLocked(id uuid.UUID, delta int64) error {
	a, ok := m.agents[id]
	if !ok {
		return store.ErrNotFound
	}
	if a.TotalStake+delta < 0 {
		return store.ErrInsufficientStake
	}
	a.TotalStake += delta
	return nil
}

func (m *mockAgentStore) stake(id uuid.UUID) int64 {
	s, _ := m.GetStake(context.Background(), id)
	return s
}

func (m *mockAgentStore) totalStake() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, a := range m.agents {
		total += a.TotalStake
	}
	return total
}

// mockBeliefStore implements domain.BeliefStore.
type mockBeliefStore struct {
	mu      sync.Mutex
	beliefs map[uuid.UUID]*domain.Belief
}

func newMockBeliefStore() *mockBeliefStore {
	return &mockBeliefStore{beliefs: make(map[uuid.UUID]*domain.Belief)}
}

func (m *mockBeliefStore) Create(ctx context.Context, b *domain.Belief) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b.ID = uuid.New()
	cp := *b
	m.beliefs[b.ID] = &cp
	return nil
}

func (m *mockBeliefStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Belief, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.beliefs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *mockBeliefStore) ListActive(ctx context.Context) ([]domain.Belief, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Belief
	for _, b := range m.beliefs {
		if b.Status == domain.BeliefStatusActive {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *mockBeliefStore) Archive(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.beliefs[id]
	if !ok {
		return store.ErrNotFound
	}
	b.Status = domain.BeliefStatusArchived
	return nil
}

// mockSubmissionStore implements domain.SubmissionStore.
type mockSubmissionStore struct {
	mu   sync.Mutex
	subs map[[2]uuid.UUID][]domain.Submission
}

func newMockSubmissionStore() *mockSubmissionStore {
	return &mockSubmissionStore{subs: make(map[[2]uuid.UUID][]domain.Submission)}
}

func (m *mockSubmissionStore) Upsert(ctx context.Context, s *domain.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertLocked(*s, true)
	return nil
}

// upsertLocked stores s; with replace false an existing row for the same
// epoch is kept.
func (m *mockSubmissionStore) upsertLocked(s domain.Submission, replace bool) {
	key := [2]uuid.UUID{s.BeliefID, s.AgentID}
	rows := m.subs[key]
	for i := range rows {
		if rows[i].Epoch == s.Epoch {
			if replace {
				rows[i] = s
			}
			return
		}
	}
	m.subs[key] = append(rows, s)
}

func (m *mockSubmissionStore) LoadSubmissions(ctx context.Context, beliefID uuid.UUID, epoch int64) ([]domain.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Submission
	for key, rows := range m.subs {
		if key[0] != beliefID {
			continue
		}
		for _, s := range rows {
			if s.Epoch <= epoch {
				out = append(out, s)
			}
		}
	}
	return out, nil
}

func (m *mockSubmissionStore) get(beliefID, agentID uuid.UUID, epoch int64) (domain.Submission, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subs[[2]uuid.UUID{beliefID, agentID}] {
		if s.Epoch == epoch {
			return s, true
		}
	}
	return domain.Submission{}, false
}

// staticWeights implements domain.WeightProvider with a fixed map per belief.
type staticWeights map[uuid.UUID]domain.WeightMap

func (w staticWeights) ComputeWeights(ctx context.Context, beliefID uuid.UUID, agentIDs []uuid.UUID) (domain.WeightMap, error) {
	out := make(domain.WeightMap)
	for id, v := range w[beliefID] {
		out[id] = v
	}
	return out, nil
}

// staticLocks implements domain.LockReader with a fixed map per belief.
type staticLocks map[uuid.UUID]map[uuid.UUID]int64

func (l staticLocks) LockedStakes(ctx context.Context, beliefID uuid.UUID, agentIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	out := make(map[uuid.UUID]int64, len(agentIDs))
	for _, id := range agentIDs {
		if v := l[beliefID][id]; v > 0 {
			out[id] = v
		}
	}
	return out, nil
}

// mockWeightProvider is a testify mock of domain.WeightProvider.
type mockWeightProvider struct {
	mock.Mock
}

func (m *mockWeightProvider) ComputeWeights(ctx context.Context, beliefID uuid.UUID, agentIDs []uuid.UUID) (domain.WeightMap, error) {
	args := m.Called(ctx, beliefID, agentIDs)
	weights, _ := args.Get(0).(domain.WeightMap)
	return weights, args.Error(1)
}

// mockLockStore implements domain.LockStore.
type mockLockStore struct {
	locked map[[2]uuid.UUID]int64
}

func (m *mockLockStore) SetLockedStake(ctx context.Context, beliefID, agentID uuid.UUID, amount int64) error {
	if m.locked == nil {
		m.locked = make(map[[2]uuid.UUID]int64)
	}
	m.locked[[2]uuid.UUID{beliefID, agentID}] = amount
	return nil
}

type historyKey struct {
	belief uuid.UUID
	epoch  int64
}

// mockLedgerStore implements domain.HistorySink and domain.EpochCommitter on
// top of the other mocks. CommitEpoch checks everything before applying
// anything, like a rolled-back transaction.
type mockLedgerStore struct {
	mu          sync.Mutex
	agents      *mockAgentStore
	beliefs     *mockBeliefStore
	submissions *mockSubmissionStore
	records     map[historyKey]domain.EpochRecord
	events      []domain.StakeEvent
	commits     int
	// commitErr makes the next CommitEpoch fail without writing.
	commitErr error
}

func newMockLedgerStore(as *mockAgentStore, bs *mockBeliefStore, ss *mockSubmissionStore) *mockLedgerStore {
	return &mockLedgerStore{
		agents:      as,
		beliefs:     bs,
		submissions: ss,
		records:     make(map[historyKey]domain.EpochRecord),
	}
}

func (m *mockLedgerStore) AppendEpochRecord(ctx context.Context, rec *domain.EpochRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := historyKey{rec.BeliefID, rec.Epoch}
	if _, ok := m.records[key]; ok {
		return domain.NewError(domain.ErrEpochAlreadyProcessed, "history record exists")
	}
	m.records[key] = *rec
	return nil
}

func (m *mockLedgerStore) HasEpochRecord(ctx context.Context, beliefID uuid.UUID, epoch int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[historyKey{beliefID, epoch}]
	return ok, nil
}

func (m *mockLedgerStore) ListByBelief(ctx context.Context, beliefID uuid.UUID, limit int) ([]domain.EpochRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.EpochRecord
	for key, rec := range m.records {
		if key.belief == beliefID {
			out = append(out, rec)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockLedgerStore) CommitEpoch(ctx context.Context, c *domain.EpochCommit) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.commitErr != nil {
		err := m.commitErr
		m.commitErr = nil
		return err
	}
	key := historyKey{c.Record.BeliefID, c.Record.Epoch}
	if _, ok := m.records[key]; ok {
		return domain.NewError(domain.ErrEpochAlreadyProcessed, "history record exists")
	}

	m.agents.mu.Lock()
	defer m.agents.mu.Unlock()
	for _, ev := range c.StakeEvents {
		a, ok := m.agents.agents[ev.AgentID]
		if !ok {
			return store.ErrNotFound
		}
		if a.TotalStake+ev.Delta < 0 {
			return store.ErrInsufficientStake
		}
	}

	m.beliefs.mu.Lock()
	b, ok := m.beliefs.beliefs[c.Record.BeliefID]
	if !ok || b.Status != domain.BeliefStatusActive {
		m.beliefs.mu.Unlock()
		return domain.NewError(domain.ErrBeliefNotFound, "belief is missing or archived")
	}
	epoch := c.Record.Epoch
	b.Aggregate = c.Record.Aggregate
	b.Certainty = c.Record.Certainty
	b.LastProcessedEpoch = &epoch
	m.beliefs.mu.Unlock()

	m.records[key] = c.Record
	for _, ev := range c.StakeEvents {
		_ = m.agents.applyLocked(ev.AgentID, ev.Delta)
	}
	m.events = append(m.events, c.StakeEvents...)

	m.submissions.mu.Lock()
	for _, s := range c.PassiveUpdates {
		m.submissions.upsertLocked(s, false)
	}
	m.submissions.mu.Unlock()

	m.commits++
	return nil
}

func (m *mockLedgerStore) commitCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commits
}

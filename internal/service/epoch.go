package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Harshitk-cp/beliefmarket/internal/decomposition"
	"github.com/Harshitk-cp/beliefmarket/internal/domain"
	"github.com/Harshitk-cp/beliefmarket/internal/ledger"
	"github.com/Harshitk-cp/beliefmarket/internal/metrics"
	"github.com/Harshitk-cp/beliefmarket/internal/mirror"
	"github.com/Harshitk-cp/beliefmarket/internal/probability"
	"github.com/Harshitk-cp/beliefmarket/internal/scoring"
	"github.com/Harshitk-cp/beliefmarket/internal/store"
	"github.com/Harshitk-cp/beliefmarket/internal/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultEpochParallelism = 4

// EpochStores groups the collaborators of the epoch pipeline.
type EpochStores struct {
	Beliefs     domain.BeliefStore
	Submissions domain.SubmissionStore
	Weights     domain.WeightProvider
	Locks       domain.LockReader
	Stakes      domain.StakeStore
	History     domain.HistorySink
	Committer   domain.EpochCommitter
}

type EpochConfig struct {
	Decomposition decomposition.Config
	// FallbackAggregation answers a low-quality decomposition with the
	// weighted average instead of failing the epoch.
	FallbackAggregation bool
	// Parallelism bounds how many beliefs ProcessEpochs runs at once.
	Parallelism int
}

func DefaultEpochConfig() EpochConfig {
	return EpochConfig{
		Decomposition: decomposition.DefaultConfig(),
		Parallelism:   defaultEpochParallelism,
	}
}

// EpochResult summarises one processed (belief, epoch).
type EpochResult struct {
	BeliefID               uuid.UUID                `json:"belief_id"`
	Epoch                  int64                    `json:"epoch"`
	Aggregate              float64                  `json:"aggregate"`
	Certainty              float64                  `json:"certainty"`
	DisagreementEntropy    float64                  `json:"disagreement_entropy"`
	Method                 domain.AggregationMethod `json:"method"`
	Quality                float64                  `json:"quality"`
	ParticipantCount       int                      `json:"participant_count"`
	PassiveUpdated         int                      `json:"passive_updated"`
	RedistributionOccurred bool                     `json:"redistribution_occurred"`
	SlashingPool           int64                    `json:"slashing_pool"`
	Winners                []uuid.UUID              `json:"winners"`
	Losers                 []uuid.UUID              `json:"losers"`
	Deltas                 []ledger.Delta           `json:"deltas"`
}

// EpochOutcome is the per-belief result of ProcessEpochs.
type EpochOutcome struct {
	BeliefID uuid.UUID
	Result   *EpochResult
	Err      error
}

// EpochService runs the per-belief epoch pipeline:
//
//	LOADING → WEIGHTED → DECOMPOSED → MIRROR_DESCENDED → SCORED → REDISTRIBUTED → PERSISTED
//
// Every stage before PERSISTED works in memory. PERSISTED is a single
// transactional commit, so a failed run leaves no trace.
type EpochService struct {
	stores  EpochStores
	engine  *decomposition.Engine
	cfg     EpochConfig
	logger  *zap.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer

	mu    sync.Mutex
	locks map[uuid.UUID]*beliefLock
}

// beliefLock is held by at most one run; refs counts the runs holding or
// waiting for it.
type beliefLock struct {
	mu   sync.Mutex
	refs int
}

func NewEpochService(stores EpochStores, cfg EpochConfig, m *metrics.Metrics, logger *zap.Logger) *EpochService {
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = defaultEpochParallelism
	}
	return &EpochService{
		stores:  stores,
		engine:  decomposition.NewEngine(cfg.Decomposition),
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		tracer:  telemetry.Tracer(),
		locks:   make(map[uuid.UUID]*beliefLock),
	}
}

// lockBelief serialises runs of the same belief within this process. The
// entry is dropped by the last run to release it.
func (s *EpochService) lockBelief(id uuid.UUID) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &beliefLock{}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
		s.mu.Unlock()
	}
}

// epochRun holds the in-memory output of each stage.
type epochRun struct {
	beliefID uuid.UUID
	epoch    int64

	inputs    *epochInputs
	stakes    map[uuid.UUID]int64
	locked    map[uuid.UUID]int64
	riskBasis int64
	decomp    *decomposition.Result
	entropy   float64
	certainty float64
	passive   []domain.Submission
	scores    *scoring.Outcome
	transfer  *ledger.Result
}

// ProcessEpoch aggregates one belief for epoch, updates passive agents,
// scores active ones and redistributes stake. A (belief, epoch) pair is
// processed at most once; a repeat returns ErrEpochAlreadyProcessed.
func (s *EpochService) ProcessEpoch(ctx context.Context, beliefID uuid.UUID, epoch int64) (*EpochResult, error) {
	unlock := s.lockBelief(beliefID)
	defer unlock()

	ctx, span := s.tracer.Start(ctx, "epoch.process", trace.WithAttributes(
		attribute.String("belief_id", beliefID.String()),
		attribute.Int64("epoch", epoch),
	))
	defer span.End()

	logger := s.logger.With(zap.String("belief_id", beliefID.String()), zap.Int64("epoch", epoch))
	started := time.Now()

	run := &epochRun{beliefID: beliefID, epoch: epoch}
	stages := []struct {
		stage domain.Stage
		fn    func(context.Context, *epochRun) error
	}{
		{domain.StageLoading, s.load},
		{domain.StageWeighted, s.weigh},
		{domain.StageDecomposed, s.decompose},
		{domain.StageMirrorDescended, s.mirrorDescend},
		{domain.StageScored, s.score},
		{domain.StageRedistributed, s.redistribute},
		{domain.StagePersisted, s.persist},
	}
	for _, st := range stages {
		if err := s.runStage(ctx, st.stage, run, st.fn); err != nil {
			s.reportFailure(logger, span, err)
			return nil, err
		}
	}

	res := run.result()
	s.metrics.EpochOutcome("processed")
	s.metrics.ObserveDecomposition(run.decomp.Quality, run.decomp.ParticipantCount)
	s.metrics.AddRedistributed(res.SlashingPool)
	logger.Info("epoch processed",
		zap.Float64("aggregate", res.Aggregate),
		zap.Float64("certainty", res.Certainty),
		zap.String("method", string(res.Method)),
		zap.Int("participants", res.ParticipantCount),
		zap.Int("passive_updated", res.PassiveUpdated),
		zap.Int64("slashing_pool", res.SlashingPool),
		zap.Duration("duration", time.Since(started)))
	return res, nil
}

func (s *EpochService) runStage(ctx context.Context, stage domain.Stage, run *epochRun, fn func(context.Context, *epochRun) error) error {
	ctx, span := s.tracer.Start(ctx, "epoch."+string(stage))
	defer span.End()

	started := time.Now()
	err := fn(ctx, run)
	s.metrics.ObserveStage(string(stage), time.Since(started))
	if err != nil {
		var ee *domain.EpochError
		if errors.As(err, &ee) {
			err = domain.Annotate(err, run.beliefID, run.epoch, stage)
		} else {
			err = fmt.Errorf("%s belief_id=%s epoch=%d: %w", stage, run.beliefID, run.epoch, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, errorKind(err))
		return err
	}
	return nil
}

func (s *EpochService) reportFailure(logger *zap.Logger, span trace.Span, err error) {
	kind := errorKind(err)
	s.metrics.EpochOutcome(kind)
	span.SetStatus(codes.Error, kind)

	fields := []zap.Field{zap.String("kind", kind), zap.Error(err)}
	var ee *domain.EpochError
	if errors.As(err, &ee) {
		fields = append(fields, zap.String("stage", string(ee.Stage)))
		if ee.AgentID != uuid.Nil {
			fields = append(fields, zap.String("agent_id", ee.AgentID.String()))
		}
	}

	switch {
	case errors.Is(err, domain.ErrEpochAlreadyProcessed):
		logger.Info("epoch already processed", fields...)
	case domain.IsBusinessRule(err), errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrBeliefNotFound), errors.Is(err, domain.ErrAgentNotFound):
		logger.Warn("epoch not processed", fields...)
	default:
		logger.Error("epoch failed", fields...)
	}
}

func (s *EpochService) load(ctx context.Context, run *epochRun) error {
	if run.epoch < 0 {
		return domain.ValidationErrorf("epoch %d must not be negative", run.epoch)
	}
	belief, err := getBelief(ctx, s.stores.Beliefs, run.beliefID)
	if err != nil {
		return err
	}
	if !belief.OpenAt(run.epoch) {
		return domain.ValidationErrorf("belief is %s for epochs %d..%d",
			belief.Status, belief.CreatedEpoch, belief.ExpirationEpoch)
	}

	done, err := s.stores.History.HasEpochRecord(ctx, run.beliefID, run.epoch)
	if err != nil {
		return err
	}
	if done {
		return domain.NewError(domain.ErrEpochAlreadyProcessed, "history record exists")
	}

	latest, ids, err := loadSubmissions(ctx, s.stores.Submissions, run.beliefID, run.epoch)
	if err != nil {
		return err
	}
	if len(latest) == 0 {
		return domain.NewError(domain.ErrInsufficientParticipants, "no submissions")
	}
	run.inputs = &epochInputs{belief: belief, latest: latest, agentIDs: ids}
	return nil
}

func (s *EpochService) weigh(ctx context.Context, run *epochRun) error {
	in := run.inputs
	weights, err := s.stores.Weights.ComputeWeights(ctx, run.beliefID, in.agentIDs)
	if err != nil {
		return err
	}
	if err := validateWeights(weights, in.latest); err != nil {
		return err
	}
	in.weights = weights

	// Losses are bounded by the stake locked on the belief, passive lockers
	// included, which is what the weights are shares of.
	locked, err := s.stores.Locks.LockedStakes(ctx, run.beliefID, in.agentIDs)
	if err != nil {
		return err
	}
	run.locked = locked
	run.riskBasis = 0
	for _, id := range in.agentIDs {
		run.riskBasis += locked[id]
	}

	// Balances of the agents that can be scored, read now so the maths
	// stages do no I/O.
	run.stakes = make(map[uuid.UUID]int64)
	for _, id := range in.agentIDs {
		if !in.latest[id].IsActive || weights[id] == 0 {
			continue
		}
		stake, err := s.stores.Stakes.GetStake(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domain.NewError(domain.ErrAgentNotFound, "submitting agent has no account").WithAgent(id)
			}
			return err
		}
		run.stakes[id] = stake
	}
	return nil
}

func (s *EpochService) decompose(ctx context.Context, run *epochRun) error {
	ps := run.inputs.participants()

	res, err := s.engine.Decompose(ctx, ps)
	if err != nil {
		if !s.cfg.FallbackAggregation || !errors.Is(err, domain.ErrLowDecompositionQuality) {
			return err
		}
		s.logger.Warn("decomposition rejected, using weighted average",
			zap.String("belief_id", run.beliefID.String()),
			zap.Int64("epoch", run.epoch),
			zap.Error(err))
		if res, err = s.engine.WeightedAverage(ctx, ps); err != nil {
			return err
		}
	}

	beliefs := make([]float64, len(ps))
	weights := make([]float64, len(ps))
	for i, p := range ps {
		beliefs[i] = probability.Clamp(p.Belief)
		weights[i] = p.Weight
	}
	run.decomp = res
	run.entropy = probability.DisagreementEntropy(beliefs, weights)
	run.certainty = 1 - run.entropy
	return nil
}

func (s *EpochService) mirrorDescend(_ context.Context, run *epochRun) error {
	in := run.inputs
	states := make([]mirror.State, len(in.agentIDs))
	for i, id := range in.agentIDs {
		sub := in.latest[id]
		states[i] = mirror.State{AgentID: id, Belief: sub.Belief, Active: sub.IsActive}
	}

	updated, _ := mirror.Apply(states, run.decomp.Aggregate, run.certainty)
	for i, st := range updated {
		if st.Active || st.Belief == states[i].Belief {
			continue
		}
		old := in.latest[st.AgentID]
		run.passive = append(run.passive, domain.Submission{
			AgentID:        st.AgentID,
			BeliefID:       run.beliefID,
			Epoch:          run.epoch,
			Belief:         st.Belief,
			MetaPrediction: old.MetaPrediction,
			IsActive:       false,
		})
	}
	return nil
}

func (s *EpochService) score(_ context.Context, run *epochRun) error {
	in := run.inputs
	var inputs []scoring.Input
	for _, id := range in.agentIDs {
		sub := in.latest[id]
		if !sub.IsActive {
			continue
		}
		loo, ok := run.decomp.LeaveOneOut[id]
		if !ok {
			continue
		}
		inputs = append(inputs, scoring.Input{
			AgentID:       id,
			Belief:        probability.Clamp(sub.Belief),
			Meta:          probability.Clamp(sub.MetaPrediction),
			PeerAggregate: loo.Aggregate,
			PeerMeta:      loo.MetaAggregate,
		})
	}

	out, err := scoring.ScoreAll(inputs)
	if err != nil {
		return err
	}
	run.scores = out
	return nil
}

func (s *EpochService) redistribute(_ context.Context, run *epochRun) error {
	positions := make([]ledger.Position, 0, len(run.scores.Scores))
	for _, sc := range run.scores.Scores {
		positions = append(positions, ledger.Position{
			AgentID: sc.AgentID,
			Score:   sc.Value,
			Weight:  run.inputs.weights[sc.AgentID],
			Locked:  run.locked[sc.AgentID],
			Stake:   run.stakes[sc.AgentID],
		})
	}
	res, err := ledger.Redistribute(positions, run.riskBasis)
	if err != nil {
		return err
	}
	run.transfer = res
	return nil
}

func (s *EpochService) persist(ctx context.Context, run *epochRun) error {
	scores := run.scores.ByAgent()
	events := make([]domain.StakeEvent, 0, len(run.transfer.Deltas))
	for _, d := range run.transfer.Deltas {
		events = append(events, domain.StakeEvent{
			BeliefID: run.beliefID,
			Epoch:    run.epoch,
			AgentID:  d.AgentID,
			Delta:    d.Amount,
			Score:    scores[d.AgentID].Value,
		})
	}

	commit := &domain.EpochCommit{
		Record: domain.EpochRecord{
			BeliefID:         run.beliefID,
			Epoch:            run.epoch,
			Aggregate:        run.decomp.Aggregate,
			Certainty:        run.certainty,
			Entropy:          run.entropy,
			ParticipantCount: run.decomp.ParticipantCount,
			TotalStake:       run.transfer.RiskBasis,
			Method:           run.decomp.Method,
		},
		PassiveUpdates: run.passive,
		StakeEvents:    events,
	}
	if err := s.stores.Committer.CommitEpoch(ctx, commit); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.NewError(domain.ErrAgentNotFound, "stake account disappeared during commit")
		}
		return err
	}
	return nil
}

func (run *epochRun) result() *EpochResult {
	return &EpochResult{
		BeliefID:               run.beliefID,
		Epoch:                  run.epoch,
		Aggregate:              run.decomp.Aggregate,
		Certainty:              run.certainty,
		DisagreementEntropy:    run.entropy,
		Method:                 run.decomp.Method,
		Quality:                run.decomp.Quality,
		ParticipantCount:       run.decomp.ParticipantCount,
		PassiveUpdated:         len(run.passive),
		RedistributionOccurred: run.transfer.Redistributed,
		SlashingPool:           run.transfer.SlashingPool,
		Winners:                nonNil(run.scores.Winners),
		Losers:                 nonNil(run.scores.Losers),
		Deltas:                 run.transfer.Deltas,
	}
}

// ProcessEpochs runs ProcessEpoch for several beliefs concurrently. A failing
// belief does not stop the others; outcomes are returned in input order.
func (s *EpochService) ProcessEpochs(ctx context.Context, beliefIDs []uuid.UUID, epoch int64) []EpochOutcome {
	outcomes := make([]EpochOutcome, len(beliefIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Parallelism)
	for i, id := range beliefIDs {
		g.Go(func() error {
			res, err := s.ProcessEpoch(gctx, id, epoch)
			outcomes[i] = EpochOutcome{BeliefID: id, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// ProcessOpenBeliefs processes every active belief that is open at epoch.
func (s *EpochService) ProcessOpenBeliefs(ctx context.Context, epoch int64) ([]EpochOutcome, error) {
	beliefs, err := s.stores.Beliefs.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	var ids []uuid.UUID
	for _, b := range beliefs {
		if b.OpenAt(epoch) {
			ids = append(ids, b.ID)
		}
	}
	return s.ProcessEpochs(ctx, ids, epoch), nil
}

// errorKind names the error for logs and metric labels.
func errorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrInsufficientParticipants):
		return "insufficient_participants"
	case errors.Is(err, domain.ErrDegenerateSupport):
		return "degenerate_support"
	case errors.Is(err, domain.ErrLowDecompositionQuality):
		return "low_decomposition_quality"
	case errors.Is(err, domain.ErrNumericalInstability):
		return "numerical_instability"
	case errors.Is(err, domain.ErrEpochAlreadyProcessed):
		return "already_processed"
	case errors.Is(err, domain.ErrBeliefNotFound):
		return "belief_not_found"
	case errors.Is(err, domain.ErrAgentNotFound):
		return "agent_not_found"
	case errors.Is(err, store.ErrInsufficientStake):
		return "insufficient_stake"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	}
	return "internal"
}

func nonNil(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}
	return ids
}

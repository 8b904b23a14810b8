package service

import (
	"context"
	"errors"

	"github.com/Harshitk-cp/beliefmarket/internal/decomposition"
	"github.com/Harshitk-cp/beliefmarket/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AggregationService answers read-only aggregation queries. Nothing it does
// is persisted.
type AggregationService struct {
	beliefs     domain.BeliefStore
	submissions domain.SubmissionStore
	weights     domain.WeightProvider
	engine      *decomposition.Engine
	fallback    bool
	logger      *zap.Logger
}

func NewAggregationService(bs domain.BeliefStore, ss domain.SubmissionStore, wp domain.WeightProvider, cfg EpochConfig, logger *zap.Logger) *AggregationService {
	return &AggregationService{
		beliefs:     bs,
		submissions: ss,
		weights:     wp,
		engine:      decomposition.NewEngine(cfg.Decomposition),
		fallback:    cfg.FallbackAggregation,
		logger:      logger,
	}
}

// load gathers the latest submissions at epoch and the weights to use. When
// weights is nil the weight provider is asked.
func (s *AggregationService) load(ctx context.Context, beliefID uuid.UUID, epoch int64, weights domain.WeightMap) (*epochInputs, error) {
	if epoch < 0 {
		return nil, domain.ValidationErrorf("epoch %d must not be negative", epoch)
	}
	belief, err := getBelief(ctx, s.beliefs, beliefID)
	if err != nil {
		return nil, err
	}
	latest, ids, err := loadSubmissions(ctx, s.submissions, beliefID, epoch)
	if err != nil {
		return nil, err
	}
	if weights == nil {
		if weights, err = s.weights.ComputeWeights(ctx, beliefID, ids); err != nil {
			return nil, err
		}
	}
	if err := validateWeights(weights, latest); err != nil {
		return nil, err
	}
	return &epochInputs{belief: belief, latest: latest, agentIDs: ids, weights: weights}, nil
}

// Decompose computes the aggregate of the belief at epoch without mutating
// anything. A lone participant's belief is returned as the aggregate.
func (s *AggregationService) Decompose(ctx context.Context, beliefID uuid.UUID, epoch int64, weights domain.WeightMap) (*decomposition.Result, error) {
	in, err := s.load(ctx, beliefID, epoch, weights)
	if err != nil {
		return nil, domain.Annotate(err, beliefID, epoch, domain.StageLoading)
	}

	ps := in.participants()
	active, err := decomposition.Prepare(ps)
	if err != nil {
		return nil, domain.Annotate(err, beliefID, epoch, domain.StageDecomposed)
	}
	if len(active) == 1 {
		res, err := s.engine.WeightedAverage(ctx, active)
		return res, domain.Annotate(err, beliefID, epoch, domain.StageDecomposed)
	}

	res, err := s.engine.Decompose(ctx, ps)
	if err != nil && s.fallback && errors.Is(err, domain.ErrLowDecompositionQuality) {
		s.logger.Debug("read-only decomposition rejected, using weighted average",
			zap.String("belief_id", beliefID.String()),
			zap.Int64("epoch", epoch),
			zap.Error(err))
		res, err = s.engine.WeightedAverage(ctx, ps)
	}
	if err != nil {
		return nil, domain.Annotate(err, beliefID, epoch, domain.StageDecomposed)
	}
	return res, nil
}

// LeaveOneOutDecompose returns the peer estimate for the belief at epoch with
// exclude's submission removed and the remaining weights renormalised.
func (s *AggregationService) LeaveOneOutDecompose(ctx context.Context, beliefID uuid.UUID, epoch int64, exclude uuid.UUID, weights domain.WeightMap) (decomposition.LeaveOneOut, error) {
	in, err := s.load(ctx, beliefID, epoch, weights)
	if err != nil {
		return decomposition.LeaveOneOut{}, domain.Annotate(err, beliefID, epoch, domain.StageLoading)
	}
	if _, ok := in.latest[exclude]; !ok {
		return decomposition.LeaveOneOut{}, domain.Annotate(
			domain.NewError(domain.ErrAgentNotFound, "agent has no submission").WithAgent(exclude),
			beliefID, epoch, domain.StageLoading)
	}

	loo, err := s.engine.DecomposeExcluding(in.participants(), exclude)
	if err != nil {
		return decomposition.LeaveOneOut{}, domain.Annotate(err, beliefID, epoch, domain.StageDecomposed)
	}
	return loo, nil
}

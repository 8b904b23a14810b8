// Package decomposition estimates a calibrated consensus probability from
// agents' beliefs and meta-predictions.
//
// Beliefs are regressed onto meta-predictions to fit a row-stochastic 2x2
// matrix W. The stationary distribution of W is the common prior shared by
// the population, and the aggregate is a multiplicative opinion pool that
// divides that prior back out of each belief. Leave-one-out variants of the
// same estimate feed the peer-prediction scorer.
package decomposition

import (
	"context"
	"math"

	"github.com/Harshitk-cp/beliefmarket/internal/domain"
	"github.com/Harshitk-cp/beliefmarket/internal/probability"
	"github.com/google/uuid"
)

const (
	DefaultRidge               = 1e-3
	DefaultDegenerateMargin    = 0.02
	DefaultDegenerateMassLimit = 0.8
	DefaultQualityThreshold    = 0.3
	DefaultParallelism         = 4

	// NeutralProbability is returned for leave-one-out subsets that contain a
	// single agent, where no peer estimate can be formed.
	NeutralProbability = 0.5

	healthWeight   = 0.7
	accuracyWeight = 0.3
)

// Participant is one agent's input to a decomposition.
type Participant struct {
	AgentID uuid.UUID
	Belief  float64
	Meta    float64
	Weight  float64
}

// LeaveOneOut is the peer estimate computed without one agent's data.
type LeaveOneOut struct {
	Aggregate     float64 `json:"aggregate"`
	MetaAggregate float64 `json:"meta_aggregate"`
}

type Result struct {
	Method             domain.AggregationMethod  `json:"method"`
	Matrix             Matrix2                   `json:"matrix"`
	Prior              float64                   `json:"prior"`
	Aggregate          float64                   `json:"aggregate"`
	MetaAggregate      float64                   `json:"meta_aggregate"`
	Quality            float64                   `json:"quality"`
	MatrixHealth       float64                   `json:"matrix_health"`
	PredictionAccuracy float64                   `json:"prediction_accuracy"`
	ParticipantCount   int                       `json:"participant_count"`
	LeaveOneOut        map[uuid.UUID]LeaveOneOut `json:"leave_one_out,omitempty"`
}

type Config struct {
	// Ridge is added to the diagonal of the normal equations.
	Ridge float64
	// Beliefs within DegenerateMargin of 0 or 1 count as boundary mass.
	DegenerateMargin float64
	// DegenerateMassLimit is the largest tolerated share of boundary mass.
	DegenerateMassLimit float64
	QualityThreshold    float64
	// Parallelism bounds the leave-one-out fan-out. Values below 2 keep it
	// sequential.
	Parallelism int
}

func DefaultConfig() Config {
	return Config{
		Ridge:               DefaultRidge,
		DegenerateMargin:    DefaultDegenerateMargin,
		DegenerateMassLimit: DefaultDegenerateMassLimit,
		QualityThreshold:    DefaultQualityThreshold,
		Parallelism:         DefaultParallelism,
	}
}

type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	if cfg.Ridge <= 0 {
		cfg.Ridge = DefaultRidge
	}
	if cfg.DegenerateMargin <= 0 {
		cfg.DegenerateMargin = DefaultDegenerateMargin
	}
	if cfg.DegenerateMassLimit <= 0 {
		cfg.DegenerateMassLimit = DefaultDegenerateMassLimit
	}
	return &Engine{cfg: cfg}
}

func (e *Engine) Config() Config {
	return e.cfg
}

// Decompose runs the full estimate over ps, including quality gating and the
// leave-one-out estimate for every participant.
func (e *Engine) Decompose(ctx context.Context, ps []Participant) (*Result, error) {
	ps, err := Prepare(ps)
	if err != nil {
		return nil, err
	}
	if len(ps) < 2 {
		return nil, domain.NewError(domain.ErrInsufficientParticipants,
			"%d participant(s) with nonzero weight, need at least 2", len(ps))
	}
	if err := e.checkSupport(ps); err != nil {
		return nil, err
	}

	per := make([]moments, len(ps))
	var total moments
	for i, p := range ps {
		per[i] = momentsOf(p)
		total = total.add(per[i])
	}

	est, err := estimateFrom(total, e.cfg.Ridge)
	if err != nil {
		return nil, err
	}

	health, err := matrixHealth(est.matrix)
	if err != nil {
		return nil, err
	}
	accuracy := predictionAccuracy(est.matrix, ps)
	quality := clamp01(healthWeight*health + accuracyWeight*accuracy)
	if quality < e.cfg.QualityThreshold {
		return nil, domain.NewError(domain.ErrLowDecompositionQuality,
			"quality %.4f below threshold %.2f (health %.4f, accuracy %.4f)",
			quality, e.cfg.QualityThreshold, health, accuracy)
	}

	loo, err := e.leaveOneOut(ctx, ps, per, estimateLOO(e.cfg.Ridge))
	if err != nil {
		return nil, err
	}

	return &Result{
		Method:             domain.MethodDecomposition,
		Matrix:             est.matrix,
		Prior:              est.prior,
		Aggregate:          est.aggregate,
		MetaAggregate:      est.meta,
		Quality:            quality,
		MatrixHealth:       health,
		PredictionAccuracy: accuracy,
		ParticipantCount:   len(ps),
		LeaveOneOut:        loo,
	}, nil
}

// DecomposeExcluding returns the leave-one-out estimate for a single agent:
// the fit over every other participant with renormalised weights. The
// excluded agent does not need to be among ps.
func (e *Engine) DecomposeExcluding(ps []Participant, exclude uuid.UUID) (LeaveOneOut, error) {
	ps, err := Prepare(ps)
	if err != nil {
		return LeaveOneOut{}, err
	}
	var others moments
	for _, p := range ps {
		if p.AgentID == exclude {
			continue
		}
		others = others.add(momentsOf(p))
	}
	return estimateLOO(e.cfg.Ridge)(others)
}

// Prepare validates ps and drops zero-weight participants. It returns a new
// slice; ps is not modified. Probabilities are clamped to the open interval.
func Prepare(ps []Participant) ([]Participant, error) {
	out := make([]Participant, 0, len(ps))
	seen := make(map[uuid.UUID]struct{}, len(ps))
	for _, p := range ps {
		if _, dup := seen[p.AgentID]; dup {
			return nil, domain.ValidationErrorf("duplicate participant").WithAgent(p.AgentID)
		}
		seen[p.AgentID] = struct{}{}

		if !probability.Finite(p.Weight) || p.Weight < 0 {
			return nil, domain.ValidationErrorf("weight %v must be a non-negative number", p.Weight).WithAgent(p.AgentID)
		}
		if !probability.Valid(p.Belief) {
			return nil, domain.ValidationErrorf("belief %v outside [0,1]", p.Belief).WithAgent(p.AgentID)
		}
		if !probability.Valid(p.Meta) {
			return nil, domain.ValidationErrorf("meta-prediction %v outside [0,1]", p.Meta).WithAgent(p.AgentID)
		}
		if p.Weight == 0 {
			continue
		}
		p.Belief = probability.Clamp(p.Belief)
		p.Meta = probability.Clamp(p.Meta)
		out = append(out, p)
	}
	return out, nil
}

func (e *Engine) checkSupport(ps []Participant) error {
	var total, boundary float64
	for _, p := range ps {
		total += p.Weight
		if p.Belief < e.cfg.DegenerateMargin || p.Belief > 1-e.cfg.DegenerateMargin {
			boundary += p.Weight
		}
	}
	if total > 0 && boundary > e.cfg.DegenerateMassLimit*total {
		return domain.NewError(domain.ErrDegenerateSupport,
			"%.1f%% of weight on beliefs within %.2f of 0 or 1", 100*boundary/total, e.cfg.DegenerateMargin)
	}
	return nil
}

type estimate struct {
	matrix    Matrix2
	prior     float64
	aggregate float64
	meta      float64
}

// estimateFrom fits W, extracts the prior and pools the beliefs for the
// participants summarised by m.
func estimateFrom(m moments, ridge float64) (estimate, error) {
	s := m.scaled()

	matrix, err := fitMatrix(s, ridge)
	if err != nil {
		return estimate{}, err
	}
	prior, err := matrix.StationaryPrior()
	if err != nil {
		return estimate{}, err
	}

	// Anchored at the prior with weights summing to one, the prior term
	// cancels: the pool is the weighted geometric mean of the beliefs, so a
	// panel that agrees on b pools to b whatever its size or meta-predictions.
	logYes := s.lb
	logNo := s.lnb
	if !probability.Finite(logYes) || !probability.Finite(logNo) {
		return estimate{}, domain.NewError(domain.ErrNumericalInstability,
			"non-finite pool log mass (yes %v, no %v)", logYes, logNo)
	}

	meta := probability.SaturatingPool(s.lm, s.lnm)
	if !probability.Finite(meta) {
		return estimate{}, domain.NewError(domain.ErrNumericalInstability, "non-finite meta aggregate")
	}

	return estimate{
		matrix:    matrix,
		prior:     prior,
		aggregate: probability.SaturatingPool(logYes, logNo),
		meta:      meta,
	}, nil
}

// fitMatrix solves the ridge-regularised weighted least squares problem
//
//	m ≈ w11·b + w21·(1-b)
//
// from scaled moments. The 2x2 system is solved in closed form.
func fitMatrix(s moments, ridge float64) (Matrix2, error) {
	a11 := s.bb + ridge
	a12 := s.bu
	a22 := s.uu + ridge
	det := a11*a22 - a12*a12
	if !probability.Finite(det) || det <= 0 {
		return Matrix2{}, domain.NewError(domain.ErrNumericalInstability,
			"singular normal equations (det %g)", det)
	}

	w11 := (a22*s.bm - a12*s.um) / det
	w21 := (a11*s.um - a12*s.bm) / det
	if !probability.Finite(w11) || !probability.Finite(w21) {
		return Matrix2{}, domain.NewError(domain.ErrNumericalInstability,
			"non-finite regression coefficients (%v, %v)", w11, w21)
	}
	return NewMatrix2(probability.Clamp(w11), probability.Clamp(w21))
}

// estimateLOO returns the leave-one-out estimator used for every excluded
// agent: steps 4-6 over the remaining participants, or the neutral default
// when only one remains.
func estimateLOO(ridge float64) func(moments) (LeaveOneOut, error) {
	return func(others moments) (LeaveOneOut, error) {
		if others.n < 2 {
			return LeaveOneOut{Aggregate: NeutralProbability, MetaAggregate: NeutralProbability}, nil
		}
		est, err := estimateFrom(others, ridge)
		if err != nil {
			return LeaveOneOut{}, err
		}
		return LeaveOneOut{Aggregate: est.aggregate, MetaAggregate: est.meta}, nil
	}
}

func clamp01(x float64) float64 {
	return math.Min(1, math.Max(0, x))
}

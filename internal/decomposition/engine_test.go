package decomposition

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/Harshitk-cp/beliefmarket/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func participants(beliefs, metas, weights []float64) []Participant {
	ps := make([]Participant, len(beliefs))
	for i := range beliefs {
		ps[i] = Participant{
			AgentID: uuid.New(),
			Belief:  beliefs[i],
			Meta:    metas[i],
			Weight:  weights[i],
		}
	}
	return ps
}

func equalWeights(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1 / float64(n)
	}
	return w
}

// consistentPanel returns participants whose meta-predictions follow
// m = 0.3 + 0.4·b, i.e. W = [[0.7 0.3] [0.3 0.7]].
func consistentPanel() []Participant {
	beliefs := []float64{0.6, 0.2, 0.5, 0.8, 0.65}
	metas := make([]float64, len(beliefs))
	for i, b := range beliefs {
		metas[i] = 0.3 + 0.4*b
	}
	return participants(beliefs, metas, equalWeights(len(beliefs)))
}

func TestDecompose_Invariants(t *testing.T) {
	e := NewEngine(DefaultConfig())

	res, err := e.Decompose(context.Background(), consistentPanel())
	require.NoError(t, err)

	assert.Equal(t, domain.MethodDecomposition, res.Method)
	assert.Greater(t, res.Aggregate, 0.0)
	assert.Less(t, res.Aggregate, 1.0)
	assert.GreaterOrEqual(t, res.Quality, 0.0)
	assert.LessOrEqual(t, res.Quality, 1.0)
	assert.LessOrEqual(t, res.Matrix.RowSumError(), 1e-6)
	assert.Greater(t, res.Prior, 0.0)
	assert.Less(t, res.Prior, 1.0)
	assert.Len(t, res.LeaveOneOut, 5)

	// The panel was generated from a known matrix; the ridge fit recovers it.
	assert.InDelta(t, 0.7, res.Matrix.At(0, 0), 0.02)
	assert.InDelta(t, 0.3, res.Matrix.At(1, 0), 0.02)
	assert.InDelta(t, 1.0, res.PredictionAccuracy, 0.01)
}

func TestDecompose_TwoAgentExample(t *testing.T) {
	e := NewEngine(DefaultConfig())
	ps := participants([]float64{0.8, 0.4}, []float64{0.6, 0.5}, []float64{0.5, 0.5})

	first, err := e.Decompose(context.Background(), ps)
	require.NoError(t, err)
	assert.Greater(t, first.Aggregate, 0.4)
	assert.Less(t, first.Aggregate, 0.8)

	for i := 0; i < 5; i++ {
		again, err := e.Decompose(context.Background(), ps)
		require.NoError(t, err)
		assert.Equal(t, first.Aggregate, again.Aggregate)
		assert.Equal(t, first.Quality, again.Quality)
	}

	// With one peer left, every leave-one-out value is the neutral default.
	for _, loo := range first.LeaveOneOut {
		assert.Equal(t, NeutralProbability, loo.Aggregate)
		assert.Equal(t, NeutralProbability, loo.MetaAggregate)
	}
}

func TestDecompose_IdenticalBeliefs(t *testing.T) {
	tests := []struct {
		name string
		n    int
		meta float64
	}{
		{"three agreeing on meta", 3, 0.7},
		{"three expecting less agreement", 3, 0.6},
		{"ten expecting less agreement", 10, 0.6},
		{"ten expecting a coin flip", 10, 0.5},
		{"fifty expecting less agreement", 50, 0.6},
		{"fifty expecting more agreement", 50, 0.7},
	}

	e := NewEngine(DefaultConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			beliefs := make([]float64, tt.n)
			metas := make([]float64, tt.n)
			for i := range beliefs {
				beliefs[i] = 0.7
				metas[i] = tt.meta
			}

			res, err := e.Decompose(context.Background(), participants(beliefs, metas, equalWeights(tt.n)))
			require.NoError(t, err)
			assert.InDelta(t, 0.7, res.Aggregate, 1e-9)
			assert.InDelta(t, tt.meta, res.MetaAggregate, 1e-9)
			for _, loo := range res.LeaveOneOut {
				assert.InDelta(t, 0.7, loo.Aggregate, 1e-9)
			}
		})
	}
}

func TestDecompose_DegenerateSupport(t *testing.T) {
	e := NewEngine(DefaultConfig())
	ps := participants(
		[]float64{0.001, 0.002, 0.001},
		[]float64{0.01, 0.01, 0.01},
		equalWeights(3),
	)

	_, err := e.Decompose(context.Background(), ps)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDegenerateSupport))
}

func TestDecompose_InsufficientParticipants(t *testing.T) {
	e := NewEngine(DefaultConfig())

	tests := []struct {
		name string
		ps   []Participant
	}{
		{"empty", nil},
		{"one", participants([]float64{0.6}, []float64{0.5}, []float64{1})},
		{"zero weights filtered", participants([]float64{0.6, 0.3, 0.4}, []float64{0.5, 0.5, 0.5}, []float64{1, 0, 0})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Decompose(context.Background(), tt.ps)
			assert.ErrorIs(t, err, domain.ErrInsufficientParticipants)
		})
	}
}

func TestDecompose_Validation(t *testing.T) {
	e := NewEngine(DefaultConfig())
	dup := uuid.New()

	tests := []struct {
		name string
		ps   []Participant
	}{
		{"negative weight", participants([]float64{0.6, 0.3}, []float64{0.5, 0.5}, []float64{1.2, -0.2})},
		{"belief above one", participants([]float64{1.3, 0.3}, []float64{0.5, 0.5}, []float64{0.5, 0.5})},
		{"nan meta", participants([]float64{0.6, 0.3}, []float64{math.NaN(), 0.5}, []float64{0.5, 0.5})},
		{"duplicate agent", []Participant{
			{AgentID: dup, Belief: 0.6, Meta: 0.5, Weight: 0.5},
			{AgentID: dup, Belief: 0.4, Meta: 0.5, Weight: 0.5},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Decompose(context.Background(), tt.ps)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestDecompose_LowQuality(t *testing.T) {
	e := NewEngine(DefaultConfig())

	// Symmetric beliefs with flat meta-predictions give identical rows.
	ps := participants(
		[]float64{0.2, 0.8, 0.3, 0.7},
		[]float64{0.5, 0.5, 0.5, 0.5},
		equalWeights(4),
	)
	_, err := e.Decompose(context.Background(), ps)
	assert.ErrorIs(t, err, domain.ErrLowDecompositionQuality)

	strict := DefaultConfig()
	strict.QualityThreshold = 0.95
	_, err = NewEngine(strict).Decompose(context.Background(), consistentPanel())
	assert.ErrorIs(t, err, domain.ErrLowDecompositionQuality)
}

func TestDecompose_LeaveOneOutIgnoresOwnData(t *testing.T) {
	e := NewEngine(DefaultConfig())
	ps := consistentPanel()
	target := ps[0].AgentID

	before, err := e.Decompose(context.Background(), ps)
	require.NoError(t, err)

	changed := append([]Participant(nil), ps...)
	changed[0].Belief = 0.35
	changed[0].Meta = 0.3 + 0.4*0.35

	after, err := e.Decompose(context.Background(), changed)
	require.NoError(t, err)

	assert.Equal(t, before.LeaveOneOut[target], after.LeaveOneOut[target])
	assert.NotEqual(t, before.LeaveOneOut[ps[1].AgentID], after.LeaveOneOut[ps[1].AgentID])
	assert.NotEqual(t, before.Aggregate, after.Aggregate)
}

func TestDecompose_LeaveOneOutMatchesDirectFit(t *testing.T) {
	e := NewEngine(DefaultConfig())
	ps := consistentPanel()

	res, err := e.Decompose(context.Background(), ps)
	require.NoError(t, err)

	for _, p := range ps {
		direct, err := e.DecomposeExcluding(ps, p.AgentID)
		require.NoError(t, err)
		assert.InDelta(t, direct.Aggregate, res.LeaveOneOut[p.AgentID].Aggregate, 1e-9)
		assert.InDelta(t, direct.MetaAggregate, res.LeaveOneOut[p.AgentID].MetaAggregate, 1e-9)
	}
}

func TestDecompose_ParallelLeaveOneOutMatchesSequential(t *testing.T) {
	n := parallelLOOThreshold + 37
	beliefs := make([]float64, n)
	metas := make([]float64, n)
	for i := range beliefs {
		beliefs[i] = 0.1 + 0.8*float64(i)/float64(n)
		metas[i] = 0.25 + 0.5*beliefs[i]
	}
	ps := participants(beliefs, metas, equalWeights(n))

	seqCfg := DefaultConfig()
	seqCfg.Parallelism = 1
	parCfg := DefaultConfig()
	parCfg.Parallelism = 8

	seq, err := NewEngine(seqCfg).Decompose(context.Background(), ps)
	require.NoError(t, err)
	par, err := NewEngine(parCfg).Decompose(context.Background(), ps)
	require.NoError(t, err)

	assert.Equal(t, seq.LeaveOneOut, par.LeaveOneOut)
}

func TestDecompose_SaturatesLargePools(t *testing.T) {
	n := 2000
	beliefs := make([]float64, n)
	metas := make([]float64, n)
	for i := range beliefs {
		if i%2 == 0 {
			beliefs[i] = 0.9
		} else {
			beliefs[i] = 0.6
		}
		metas[i] = 0.3 + 0.4*beliefs[i]
	}
	res, err := NewEngine(DefaultConfig()).Decompose(context.Background(), participants(beliefs, metas, equalWeights(n)))
	require.NoError(t, err)

	assert.False(t, math.IsNaN(res.Aggregate))
	assert.Greater(t, res.Aggregate, 0.0)
	assert.Less(t, res.Aggregate, 1.0)
}

func TestDecomposeExcluding_SingleRemaining(t *testing.T) {
	e := NewEngine(DefaultConfig())
	ps := participants([]float64{0.8, 0.4}, []float64{0.6, 0.5}, []float64{0.5, 0.5})

	loo, err := e.DecomposeExcluding(ps, ps[0].AgentID)
	require.NoError(t, err)
	assert.Equal(t, LeaveOneOut{Aggregate: 0.5, MetaAggregate: 0.5}, loo)
}

func TestWeightedAverage(t *testing.T) {
	e := NewEngine(DefaultConfig())
	ps := participants([]float64{0.2, 0.8, 0.5}, []float64{0.4, 0.6, 0.5}, []float64{0.25, 0.25, 0.5})

	res, err := e.WeightedAverage(context.Background(), ps)
	require.NoError(t, err)

	assert.Equal(t, domain.MethodWeightedAverage, res.Method)
	assert.InDelta(t, 0.5, res.Aggregate, 1e-12)
	assert.InDelta(t, 0.5, res.MetaAggregate, 1e-12)
	assert.True(t, res.Matrix.IsZero())

	// Peers of the first agent: 0.8 and 0.5 weighted 1:2.
	assert.InDelta(t, 0.6, res.LeaveOneOut[ps[0].AgentID].Aggregate, 1e-12)
}

func TestWeightedAverage_SingleParticipant(t *testing.T) {
	e := NewEngine(DefaultConfig())
	ps := participants([]float64{0.37}, []float64{0.41}, []float64{0.3})

	res, err := e.WeightedAverage(context.Background(), ps)
	require.NoError(t, err)

	assert.Equal(t, domain.MethodSingleParticipant, res.Method)
	assert.Equal(t, 0.37, res.Aggregate)
	assert.Equal(t, NeutralProbability, res.LeaveOneOut[ps[0].AgentID].Aggregate)
}

package decomposition

import (
	"encoding/json"
	"math"

	"github.com/Harshitk-cp/beliefmarket/internal/domain"
	"github.com/Harshitk-cp/beliefmarket/internal/probability"
	"gonum.org/v1/gonum/mat"
)

// priorDenominatorFloor is the smallest w21+w12 accepted when extracting the
// stationary distribution.
const priorDenominatorFloor = 1e-12

// Matrix2 is a row-stochastic 2x2 matrix. Only the first column is stored;
// the second is its complement, so rows sum to one by construction.
//
//	| w11  1-w11 |
//	| w21  1-w21 |
type Matrix2 struct {
	w11 float64
	w21 float64
}

// NewMatrix2 builds a matrix from its free elements, which must lie strictly
// inside (0,1).
func NewMatrix2(w11, w21 float64) (Matrix2, error) {
	for _, v := range []float64{w11, w21} {
		if !probability.Finite(v) || v <= 0 || v >= 1 {
			return Matrix2{}, domain.NewError(domain.ErrNumericalInstability,
				"matrix element %v outside (0,1)", v)
		}
	}
	return Matrix2{w11: w11, w21: w21}, nil
}

// At returns element (i,j), zero-indexed.
func (m Matrix2) At(i, j int) float64 {
	first := m.w11
	if i == 1 {
		first = m.w21
	}
	if j == 0 {
		return first
	}
	return 1 - first
}

func (m Matrix2) Rows() [2][2]float64 {
	return [2][2]float64{
		{m.w11, 1 - m.w11},
		{m.w21, 1 - m.w21},
	}
}

// IsZero reports whether m is the zero value, i.e. no fit was made.
func (m Matrix2) IsZero() bool {
	return m.w11 == 0 && m.w21 == 0
}

// Predict returns the meta-prediction the matrix implies for a belief b.
func (m Matrix2) Predict(b float64) float64 {
	return m.w11*b + m.w21*(1-b)
}

// StationaryPrior returns the first component of the left stationary
// distribution, w21 / (w21 + w12).
func (m Matrix2) StationaryPrior() (float64, error) {
	den := m.w21 + (1 - m.w11)
	if !probability.Finite(den) || den < priorDenominatorFloor {
		return 0, domain.NewError(domain.ErrNumericalInstability,
			"stationary distribution denominator %g", den)
	}
	return probability.Clamp(m.w21 / den), nil
}

func (m Matrix2) Dense() *mat.Dense {
	return mat.NewDense(2, 2, []float64{
		m.w11, 1 - m.w11,
		m.w21, 1 - m.w21,
	})
}

// RowSumError returns the largest deviation of a row sum from one.
func (m Matrix2) RowSumError() float64 {
	r := m.Rows()
	return math.Max(math.Abs(r[0][0]+r[0][1]-1), math.Abs(r[1][0]+r[1][1]-1))
}

func (m Matrix2) MarshalJSON() ([]byte, error) {
	if m.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(m.Rows())
}

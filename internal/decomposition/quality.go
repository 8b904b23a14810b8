package decomposition

import (
	"math"
	"math/cmplx"

	"github.com/Harshitk-cp/beliefmarket/internal/domain"
	"gonum.org/v1/gonum/mat"
)

// matrixHealth is the reciprocal of W's eigenvalue condition number,
// |λ_min| / |λ_max|. A stochastic matrix always has λ_max = 1; the second
// eigenvalue w11-w21 shrinks towards zero as the rows become
// indistinguishable and the fit stops carrying information.
func matrixHealth(m Matrix2) (float64, error) {
	var eig mat.Eigen
	if ok := eig.Factorize(m.Dense(), mat.EigenNone); !ok {
		return 0, domain.NewError(domain.ErrNumericalInstability, "eigen decomposition did not converge")
	}

	maxAbs, minAbs := 0.0, math.Inf(1)
	for _, v := range eig.Values(nil) {
		a := cmplx.Abs(v)
		maxAbs = math.Max(maxAbs, a)
		minAbs = math.Min(minAbs, a)
	}
	if maxAbs == 0 || math.IsNaN(maxAbs) || math.IsNaN(minAbs) {
		return 0, domain.NewError(domain.ErrNumericalInstability, "degenerate spectrum (max |λ| = %g)", maxAbs)
	}
	return clamp01(minAbs / maxAbs), nil
}

// predictionAccuracy is one minus the mean absolute error between each
// agent's meta-prediction and the one W predicts from its belief.
func predictionAccuracy(m Matrix2, ps []Participant) float64 {
	if len(ps) == 0 {
		return 0
	}
	var sum float64
	for _, p := range ps {
		sum += math.Abs(p.Meta - m.Predict(p.Belief))
	}
	return clamp01(1 - sum/float64(len(ps)))
}

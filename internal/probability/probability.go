// Package probability holds the binary-probability primitives shared by the
// aggregation, scoring and update stages.
package probability

import "math"

const (
	// Epsilon bounds every stored probability away from 0 and 1.
	Epsilon = 1e-10

	// SaturationLimit is the log-odds magnitude past which exp would overflow
	// for practical purposes; beyond it the pool snaps to the boundary.
	SaturationLimit = 700.0
)

// Clamp bounds p to [Epsilon, 1-Epsilon].
func Clamp(p float64) float64 {
	if p < Epsilon {
		return Epsilon
	}
	if p > 1-Epsilon {
		return 1 - Epsilon
	}
	return p
}

// Valid reports whether p is a finite value in [0,1].
func Valid(p float64) bool {
	return !math.IsNaN(p) && p >= 0 && p <= 1
}

// Finite reports whether x is neither NaN nor infinite.
func Finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// BinaryEntropy returns the entropy of Bernoulli(p) in bits.
func BinaryEntropy(p float64) float64 {
	if p <= 0 || p >= 1 {
		return 0
	}
	return -p*math.Log2(p) - (1-p)*math.Log2(1-p)
}

// BinaryKL returns KL(Bernoulli(p) || Bernoulli(q)) in nats. Both operands are
// clamped first so the result is always finite.
func BinaryKL(p, q float64) float64 {
	p, q = Clamp(p), Clamp(q)
	return p*math.Log(p/q) + (1-p)*math.Log((1-p)/(1-q))
}

func Logit(p float64) float64 {
	p = Clamp(p)
	return math.Log(p / (1 - p))
}

func Sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// SaturatingPool turns unnormalised log masses for the two outcomes into the
// probability of the first one. When the log difference exceeds
// SaturationLimit the result snaps to the nearest boundary.
func SaturatingPool(logYes, logNo float64) float64 {
	d := logNo - logYes
	switch {
	case d > SaturationLimit:
		return Epsilon
	case d < -SaturationLimit:
		return 1 - Epsilon
	}
	return Clamp(1 / (1 + math.Exp(d)))
}

// DisagreementEntropy is the weighted Jensen-Shannon divergence of the given
// Bernoulli beliefs, in bits: H(sum w_i b_i) - sum w_i H(b_i). It lies in
// [0,1], reaching 0 when every belief agrees. Weights are normalised here.
func DisagreementEntropy(beliefs, weights []float64) float64 {
	var total, mean, spread float64
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return 0
	}
	for i, b := range beliefs {
		w := weights[i] / total
		mean += w * b
		spread += w * BinaryEntropy(b)
	}
	js := BinaryEntropy(mean) - spread
	if js < 0 {
		return 0
	}
	if js > 1 {
		return 1
	}
	return js
}

// Certainty is one minus the disagreement entropy.
func Certainty(beliefs, weights []float64) float64 {
	return 1 - DisagreementEntropy(beliefs, weights)
}

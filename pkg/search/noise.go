package search

import (
	"math"
	"math/rand"
)

// mixDirichletNoise blends Dirichlet(alpha) noise into node's edge priors
// with weight fraction, the AlphaZero self-play exploration technique
// spec.md names as the DirichletNoise option. No third-party statistical
// sampling library appears anywhere in the example corpus for any board
// game (every pack member's randomness is plain math/rand uniform draws);
// Dirichlet noise is synthesized here via the standard
// Marsaglia-Tsang gamma sampler over math/rand, which is the smallest
// stdlib-only construction that produces a real Dirichlet draw.
func mixDirichletNoise(node *Node, alpha, fraction float64, rng *rand.Rand) {
	n := len(node.edges)
	if n == 0 {
		return
	}
	samples := make([]float64, n)
	var sum float64
	for i := range samples {
		g := sampleGamma(alpha, rng)
		samples[i] = g
		sum += g
	}
	if sum <= 0 {
		return
	}
	for i := range node.edges {
		noise := samples[i] / sum
		node.edges[i].Prior = float32((1-fraction)*float64(node.edges[i].Prior) + fraction*noise)
	}
}

// sampleGamma draws from Gamma(shape, 1) via the Marsaglia-Tsang method
// for shape >= 1, boosted via the standard shape-augmentation trick
// (Gamma(a) = Gamma(a+1) * U^(1/a)) for shape < 1, which is the case for
// the typical Dirichlet alphas used here (< 1, favoring sparse noise).
func sampleGamma(shape float64, rng *rand.Rand) float64 {
	if shape < 1 {
		u := rng.Float64()
		return sampleGamma(shape+1, rng) * math.Pow(u, 1/shape)
	}

	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9*d)
	for {
		var x, v float64
		for {
			x = rng.NormFloat64()
			v = 1 + c*x
			if v > 0 {
				break
			}
		}
		v = v * v * v
		u := rng.Float64()
		if u < 1-0.0331*x*x*x*x {
			return d * v
		}
		if math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}

// Package filter builds convolution kernels for the blur passes.
package filter

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// MaxTaps is the largest kernel the blur shaders accept.
const MaxTaps = 32

// Gaussian returns one side of a normalized Gaussian kernel with taps
// weights: w[0] is the centre tap and w[i] is used at offsets +i and -i.
// The full symmetric kernel sums to 1. taps is clamped to [1, MaxTaps].
func Gaussian(taps int) []float32 {
	taps = min(max(taps, 1), MaxTaps)

	// Three sigmas span the kernel so the last tap is near zero.
	sigma := float64(taps) / 3
	if sigma < 0.5 {
		sigma = 0.5
	}
	dist := distuv.Normal{Mu: 0, Sigma: sigma}

	w := make([]float64, taps)
	for i := range w {
		w[i] = dist.Prob(float64(i))
	}

	total := w[0] + 2*floats.Sum(w[1:])
	floats.Scale(1/total, w)

	out := make([]float32, taps)
	for i, v := range w {
		out[i] = float32(v)
	}
	return out
}

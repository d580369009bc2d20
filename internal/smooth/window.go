package smooth

import (
	"math"

	"github.com/woozymasta/elevprofile/internal/series"
)

// DefaultTruncate is the kernel radius in standard deviations.
const DefaultTruncate = 4.0

// Centered is a centered moving average over Window samples.
// The window for index i covers [i-Window/2, i+(Window-1)/2] and shrinks at
// the series edges instead of padding. An output entry is undefined only when
// its window holds no defined input. Repeated application keeps smoothing, so
// the strategy is not idempotent.
type Centered struct {
	Window int
}

// Smooth implements Smoother.
func (c Centered) Smooth(s series.Series) series.Series {
	out := make(series.Series, len(s))
	if c.Window <= 1 {
		copy(out, s)
		return out
	}

	// prefix sums over defined entries
	sums := make([]float64, len(s)+1)
	counts := make([]int, len(s)+1)
	for i, v := range s {
		sums[i+1] = sums[i]
		counts[i+1] = counts[i]
		if v.Valid {
			sums[i+1] += v.V
			counts[i+1]++
		}
	}

	before := c.Window / 2
	after := (c.Window - 1) / 2
	for i := range s {
		lo := max(i-before, 0)
		hi := min(i+after, len(s)-1)

		n := counts[hi+1] - counts[lo]
		if n == 0 {
			continue
		}
		out[i] = series.Of((sums[hi+1] - sums[lo]) / float64(n))
	}

	return out
}

// Gaussian convolves the series with a Gaussian kernel over sample index.
// Weights are renormalized over the defined entries inside the kernel, so
// edges and gaps use whatever samples are available. Sigma <= 0 is the
// identity, which is also the only case where re-application is a no-op.
type Gaussian struct {
	Sigma    float64
	Truncate float64
}

// Kernel returns the one-sided kernel weights, index 0 being the center.
func (g Gaussian) Kernel() []float64 {
	if g.Sigma <= 0 {
		return []float64{1}
	}

	truncate := g.Truncate
	if truncate <= 0 {
		truncate = DefaultTruncate
	}
	radius := int(truncate*g.Sigma + 0.5)

	weights := make([]float64, radius+1)
	for k := range weights {
		x := float64(k) / g.Sigma
		weights[k] = math.Exp(-0.5 * x * x)
	}
	return weights
}

// Smooth implements Smoother.
func (g Gaussian) Smooth(s series.Series) series.Series {
	out := make(series.Series, len(s))
	weights := g.Kernel()
	if len(weights) == 1 {
		copy(out, s)
		return out
	}

	radius := len(weights) - 1
	for i := range s {
		var num, den float64
		lo := max(i-radius, 0)
		hi := min(i+radius, len(s)-1)
		for j := lo; j <= hi; j++ {
			if !s[j].Valid {
				continue
			}
			w := weights[abs(j-i)]
			num += w * s[j].V
			den += w
		}
		if den > 0 {
			out[i] = series.Of(num / den)
		}
	}

	return out
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

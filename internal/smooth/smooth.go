// Package smooth implements the smoothing strategies applied to elevation and
// grade series. Every strategy preserves series length and skips undefined
// entries instead of treating them as zero.
package smooth

import (
	"fmt"

	"github.com/woozymasta/elevprofile/internal/series"
)

// Smoother reduces sample to sample noise in a series.
type Smoother interface {
	Smooth(s series.Series) series.Series
}

// Strategy names a smoothing strategy in configuration.
type Strategy string

// Available strategies.
const (
	StrategyNone     Strategy = "none"
	StrategyCentered Strategy = "centered"
	StrategyGaussian Strategy = "gaussian"
)

// Spec is the configuration form of a Smoother.
type Spec struct {
	Strategy Strategy `yaml:"strategy" json:"strategy"`
	Window   int      `yaml:"window,omitempty" json:"window,omitempty"`
	Sigma    float64  `yaml:"sigma,omitempty" json:"sigma,omitempty"`
	Truncate float64  `yaml:"truncate,omitempty" json:"truncate,omitempty"`
}

// Validate checks that the parameters fit the strategy.
func (s Spec) Validate() error {
	switch s.Strategy {
	case "", StrategyNone:
		return nil
	case StrategyCentered:
		if s.Window < 1 {
			return fmt.Errorf("centered smoothing: window must be >= 1, got %d", s.Window)
		}
	case StrategyGaussian:
		if s.Sigma < 0 {
			return fmt.Errorf("gaussian smoothing: sigma must be >= 0, got %g", s.Sigma)
		}
		if s.Truncate < 0 {
			return fmt.Errorf("gaussian smoothing: truncate must be >= 0, got %g", s.Truncate)
		}
	default:
		return fmt.Errorf("unknown smoothing strategy %q", s.Strategy)
	}
	return nil
}

// New builds the Smoother described by spec.
func New(spec Spec) (Smoother, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	switch spec.Strategy {
	case StrategyCentered:
		return Centered{Window: spec.Window}, nil
	case StrategyGaussian:
		return Gaussian{Sigma: spec.Sigma, Truncate: spec.Truncate}, nil
	default:
		return None{}, nil
	}
}

// None returns the series unchanged.
type None struct{}

// Smooth implements Smoother.
func (None) Smooth(s series.Series) series.Series {
	out := make(series.Series, len(s))
	copy(out, s)
	return out
}

// FillNearest replaces undefined entries with the nearest defined entry by
// index (the earlier one on ties). A series without defined entries is
// returned unchanged.
func FillNearest(s series.Series) series.Series {
	out := make(series.Series, len(s))
	copy(out, s)

	next := make([]int, len(s))
	nearest := -1
	for i := len(s) - 1; i >= 0; i-- {
		if s[i].Valid {
			nearest = i
		}
		next[i] = nearest
	}

	prev := -1
	for i := range s {
		if s[i].Valid {
			prev = i
			continue
		}

		switch n := next[i]; {
		case prev < 0 && n < 0:
			return out
		case prev < 0:
			out[i] = s[n]
		case n < 0 || i-prev <= n-i:
			out[i] = s[prev]
		default:
			out[i] = s[n]
		}
	}

	return out
}

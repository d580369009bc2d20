package profile

import (
	"fmt"

	"github.com/woozymasta/elevprofile/internal/geo"
	"github.com/woozymasta/elevprofile/internal/smooth"
)

// GradeMethod selects how raw grade is derived from elevation.
type GradeMethod string

// Supported grade methods.
const (
	GradeAdjacent GradeMethod = "adjacent"
	GradeMinSpan  GradeMethod = "min_span"
)

// MaxGradeMode selects the definition of Statistics.MaxGradePct.
type MaxGradeMode string

// Supported max grade modes.
const (
	MaxGradePercentile MaxGradeMode = "percentile"
	MaxGradeTrue       MaxGradeMode = "max"
)

// MaxGrade configures the reported maximum grade.
//
// Percentiles use gonum's stat.LinInterp quantile (Hyndman and Fan type 4,
// R quantile(type = 4)): with n sorted grades and h = n*p, the result is
// x[h] (1-based) interpolated linearly towards x[h+1] for fractional h, and
// x[1] for h <= 1. This differs from the numpy/pandas default (type 7,
// h = (n-1)*p+1).
type MaxGrade struct {
	Mode       MaxGradeMode `json:"mode" yaml:"mode"`
	Percentile float64      `json:"percentile,omitempty" yaml:"percentile,omitempty"`
}

// Settings holds every tunable of the profile pipeline.
// A zero Settings is not valid; start from DefaultSettings.
type Settings struct {
	ElevationSmoothing smooth.Spec `json:"elevation_smoothing" yaml:"elevation_smoothing"`
	GradeSmoothing     smooth.Spec `json:"grade_smoothing" yaml:"grade_smoothing"`
	Distance           geo.Method  `json:"distance" yaml:"distance"`
	GradeMethod        GradeMethod `json:"grade_method" yaml:"grade_method"`
	MaxGrade           MaxGrade    `json:"max_grade" yaml:"max_grade"`
	EpsilonKm          float64     `json:"epsilon_km" yaml:"epsilon_km"`
	MinSpanKm          float64     `json:"min_span_km,omitempty" yaml:"min_span_km,omitempty"`
	Concurrency        int         `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`
}

// Defaults used by DefaultSettings.
const (
	DefaultEpsilonKm         = 1e-6
	DefaultMinSpanKm         = 0.05
	DefaultGradeWindow       = 100
	DefaultElevationSigma    = 3.0
	DefaultGradePercentile   = 98.0
	DefaultLookupConcurrency = 8
)

// DefaultSettings returns gaussian elevation smoothing, adjacent grade with a
// 100 sample centered window and the 98th percentile as max grade.
func DefaultSettings() Settings {
	return Settings{
		Distance:  geo.Vincenty,
		EpsilonKm: DefaultEpsilonKm,
		ElevationSmoothing: smooth.Spec{
			Strategy: smooth.StrategyGaussian,
			Sigma:    DefaultElevationSigma,
		},
		GradeMethod: GradeAdjacent,
		MinSpanKm:   DefaultMinSpanKm,
		GradeSmoothing: smooth.Spec{
			Strategy: smooth.StrategyCentered,
			Window:   DefaultGradeWindow,
		},
		MaxGrade: MaxGrade{
			Mode:       MaxGradePercentile,
			Percentile: DefaultGradePercentile,
		},
		Concurrency: DefaultLookupConcurrency,
	}
}

// Validate reports the first invalid parameter.
func (s Settings) Validate() error {
	switch s.Distance {
	case geo.Vincenty, geo.Haversine:
	default:
		return fmt.Errorf("%w: unknown distance method %q", ErrInvalidSettings, s.Distance)
	}

	if s.EpsilonKm < 0 {
		return fmt.Errorf("%w: epsilon_km must be >= 0", ErrInvalidSettings)
	}

	if err := s.ElevationSmoothing.Validate(); err != nil {
		return fmt.Errorf("%w: elevation_smoothing: %v", ErrInvalidSettings, err)
	}
	if err := s.GradeSmoothing.Validate(); err != nil {
		return fmt.Errorf("%w: grade_smoothing: %v", ErrInvalidSettings, err)
	}

	switch s.GradeMethod {
	case GradeAdjacent:
	case GradeMinSpan:
		if s.MinSpanKm <= 0 {
			return fmt.Errorf("%w: min_span_km must be > 0", ErrInvalidSettings)
		}
	default:
		return fmt.Errorf("%w: unknown grade method %q", ErrInvalidSettings, s.GradeMethod)
	}

	switch s.MaxGrade.Mode {
	case MaxGradeTrue:
	case MaxGradePercentile:
		if s.MaxGrade.Percentile <= 0 || s.MaxGrade.Percentile > 100 {
			return fmt.Errorf("%w: max_grade percentile must be in (0, 100]", ErrInvalidSettings)
		}
	default:
		return fmt.Errorf("%w: unknown max_grade mode %q", ErrInvalidSettings, s.MaxGrade.Mode)
	}

	if s.Concurrency < 0 {
		return fmt.Errorf("%w: concurrency must be >= 0", ErrInvalidSettings)
	}

	return nil
}

package profile

import (
	"sort"

	"github.com/woozymasta/elevprofile/internal/series"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Statistics summarizes a finished profile.
type Statistics struct {
	MaxGradeMode    MaxGradeMode `json:"max_grade_mode" yaml:"max_grade_mode"`
	TotalDistanceKm float64      `json:"total_distance_km" yaml:"total_distance_km"`
	TotalAscentM    float64      `json:"total_ascent_m" yaml:"total_ascent_m"`
	TotalDescentM   float64      `json:"total_descent_m" yaml:"total_descent_m"`
	MaxGradePct     float64      `json:"max_grade_pct" yaml:"max_grade_pct"`
	PeakGradePct    float64      `json:"peak_grade_pct" yaml:"peak_grade_pct"`
	MinGradePct     float64      `json:"min_grade_pct" yaml:"min_grade_pct"`
	AvgGradePct     float64      `json:"avg_grade_pct" yaml:"avg_grade_pct"`
}

// Aggregate computes the statistics of samples.
// Ascent and descent use consecutive defined smoothed elevations; grade
// figures use the defined smoothed grades and are 0 when there are none.
// The percentile mode follows the R type 4 definition described on MaxGrade.
func Aggregate(samples []Sample, mode MaxGrade) Statistics {
	st := Statistics{MaxGradeMode: mode.Mode}
	if len(samples) == 0 {
		return st
	}

	st.TotalDistanceKm = samples[len(samples)-1].CumulativeKm
	st.TotalAscentM, st.TotalDescentM = AscentDescent(smoothedElevation(samples))

	grades := smoothedGrade(samples).Defined()
	if len(grades) == 0 {
		return st
	}

	st.PeakGradePct = floats.Max(grades)
	st.MinGradePct = floats.Min(grades)
	st.AvgGradePct = stat.Mean(grades, nil)
	st.MaxGradePct = st.PeakGradePct

	if mode.Mode == MaxGradePercentile {
		sorted := append([]float64(nil), grades...)
		sort.Float64s(sorted)
		st.MaxGradePct = stat.Quantile(mode.Percentile/100, stat.LinInterp, sorted, nil)
	}

	return st
}

// AscentDescent sums the positive and negative deltas between consecutive
// defined entries of elevation.
func AscentDescent(elevation series.Series) (ascent, descent float64) {
	prev := series.Undefined
	for _, v := range elevation {
		if !v.Valid {
			continue
		}
		if prev.Valid {
			if d := v.V - prev.V; d > 0 {
				ascent += d
			} else {
				descent -= d
			}
		}
		prev = v
	}
	return ascent, descent
}

func smoothedElevation(samples []Sample) series.Series {
	out := make(series.Series, len(samples))
	for i := range samples {
		out[i] = samples[i].SmoothedElevation
	}
	return out
}

func smoothedGrade(samples []Sample) series.Series {
	out := make(series.Series, len(samples))
	for i := range samples {
		out[i] = samples[i].SmoothedGrade
	}
	return out
}

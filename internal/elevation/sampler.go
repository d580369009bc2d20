// Package elevation adapts elevation-by-coordinate services for the profile
// pipeline. Every sampler treats an unresolved coordinate as a missing value,
// never as zero.
package elevation

import (
	"context"

	"github.com/woozymasta/elevprofile/internal/geo"
	"github.com/woozymasta/elevprofile/internal/series"

	"github.com/rs/zerolog/log"
)

// Sampler resolves the elevation (meters) of a single coordinate.
// An unresolved coordinate returns series.Undefined with a nil error.
type Sampler interface {
	Lookup(ctx context.Context, c geo.Coordinate) (series.Value, error)
}

// BatchSampler resolves many coordinates in one call.
// The result is index-aligned with coords.
type BatchSampler interface {
	Sampler
	LookupBatch(ctx context.Context, coords []geo.Coordinate) ([]series.Value, error)
}

// Func adapts a plain lookup function to Sampler.
type Func func(lat, lon float64) (float64, bool)

// Lookup implements Sampler.
func (f Func) Lookup(_ context.Context, c geo.Coordinate) (series.Value, error) {
	v, ok := f(c.Lat, c.Lon)
	if !ok {
		return series.Undefined, nil
	}
	return series.Of(v), nil
}

// None never resolves anything.
type None struct{}

// Lookup implements Sampler.
func (None) Lookup(context.Context, geo.Coordinate) (series.Value, error) {
	return series.Undefined, nil
}

// Static serves altitudes embedded in the route document.
type Static map[[2]float64]float64

// NewStatic indexes every coordinate carrying an altitude.
func NewStatic(groups ...[]geo.Coordinate) Static {
	s := make(Static)
	for _, coords := range groups {
		for _, c := range coords {
			if c.Alt != nil {
				s[c.Key()] = *c.Alt
			}
		}
	}
	return s
}

// Lookup implements Sampler.
func (s Static) Lookup(_ context.Context, c geo.Coordinate) (series.Value, error) {
	if v, ok := s[c.Key()]; ok {
		return series.Of(v), nil
	}
	return series.Undefined, nil
}

// Chain tries each sampler in order and returns the first defined value.
type Chain []Sampler

// Lookup implements Sampler.
func (ch Chain) Lookup(ctx context.Context, c geo.Coordinate) (series.Value, error) {
	for _, s := range ch {
		v, err := s.Lookup(ctx, c)
		if err != nil {
			if ctx.Err() != nil {
				return series.Undefined, ctx.Err()
			}
			log.Warn().Err(err).Str("coord", c.String()).Msg("Elevation lookup failed, trying next source")
			continue
		}
		if v.Valid {
			return v, nil
		}
	}
	return series.Undefined, nil
}

// LookupBatch implements BatchSampler. Each source only receives the
// coordinates still missing after the sources before it, so a batch capable
// source keeps its batching inside a chain.
func (ch Chain) LookupBatch(ctx context.Context, coords []geo.Coordinate) ([]series.Value, error) {
	out := make([]series.Value, len(coords))
	pending := make([]int, len(coords))
	for i := range pending {
		pending[i] = i
	}

	for _, s := range ch {
		if len(pending) == 0 {
			break
		}

		batch := make([]geo.Coordinate, len(pending))
		for i, idx := range pending {
			batch[i] = coords[idx]
		}

		values, err := Resolve(ctx, s, batch, 1)
		if err != nil {
			return nil, err
		}

		next := pending[:0]
		for i, idx := range pending {
			if values[i].Valid {
				out[idx] = values[i]
				continue
			}
			next = append(next, idx)
		}
		pending = next
	}

	return out, nil
}

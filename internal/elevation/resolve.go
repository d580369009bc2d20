package elevation

import (
	"context"
	"sync"

	"github.com/woozymasta/elevprofile/internal/geo"
	"github.com/woozymasta/elevprofile/internal/series"

	"github.com/rs/zerolog/log"
)

type job struct {
	Index int
	Coord geo.Coordinate
}

type result struct {
	Index  int
	Value  series.Value
	Failed bool
}

// Resolve looks up every coordinate in one pass and returns values in input
// order. Identical coordinates are looked up once. Batch samplers get a single
// LookupBatch call; other samplers are queried by a pool of concurrency
// workers. Lookup failures become missing values; only context cancellation
// is returned as an error.
func Resolve(ctx context.Context, s Sampler, coords []geo.Coordinate, concurrency int) ([]series.Value, error) {
	out := make([]series.Value, len(coords))
	if len(coords) == 0 {
		return out, nil
	}

	uniq := make([]geo.Coordinate, 0, len(coords))
	slot := make([]int, len(coords))
	seen := make(map[[2]float64]int, len(coords))
	for i, c := range coords {
		idx, ok := seen[c.Key()]
		if !ok {
			idx = len(uniq)
			seen[c.Key()] = idx
			uniq = append(uniq, c)
		}
		slot[i] = idx
	}

	log.Debug().
		Int("coords", len(coords)).
		Int("unique", len(uniq)).
		Msg("Resolving elevations")

	var values []series.Value
	if bs, ok := s.(BatchSampler); ok {
		var err error
		values, err = bs.LookupBatch(ctx, uniq)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn().Err(err).Int("coords", len(uniq)).Msg("Batch elevation lookup failed")
			values = make([]series.Value, len(uniq))
		}
	} else {
		values = lookupPool(ctx, s, uniq, concurrency)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i := range coords {
		if slot[i] < len(values) {
			out[i] = values[slot[i]]
		}
	}

	return out, nil
}

func lookupPool(ctx context.Context, s Sampler, coords []geo.Coordinate, concurrency int) []series.Value {
	if concurrency <= 0 {
		concurrency = 1
	}
	concurrency = min(concurrency, len(coords))

	jobs := make(chan job, len(coords))
	results := make(chan result, len(coords))

	go func() {
		for i, c := range coords {
			jobs <- job{Index: i, Coord: c}
		}
		close(jobs)
	}()

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				if ctx.Err() != nil {
					results <- result{Index: j.Index}
					continue
				}
				v, err := s.Lookup(ctx, j.Coord)
				if err != nil {
					log.Trace().
						Err(err).
						Str("coord", j.Coord.String()).
						Msg("Elevation lookup failed")
					results <- result{Index: j.Index, Failed: true}
					continue
				}
				results <- result{Index: j.Index, Value: v}
			}
		}()
	}
	wg.Wait()
	close(results)

	values := make([]series.Value, len(coords))
	failed := 0
	for res := range results {
		values[res.Index] = res.Value
		if res.Failed {
			failed++
		}
	}

	if failed > 0 {
		log.Warn().
			Int("failed", failed).
			Int("coords", len(coords)).
			Msg("Some elevation lookups failed and are treated as missing")
	}

	return values
}

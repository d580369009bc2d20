package elevation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/woozymasta/elevprofile/internal/geo"
	"github.com/woozymasta/elevprofile/internal/series"

	"github.com/rs/zerolog/log"
)

// DefaultBatchSize is the number of locations sent per API request.
const DefaultBatchSize = 100

// API queries an OpenTopoData compatible elevation service:
//
//	GET {BaseURL}/v1/{Dataset}?locations=lat,lon|lat,lon
//
// Null elevations in the response resolve to missing values.
type API struct {
	Client    *http.Client
	BaseURL   string
	Dataset   string
	BatchSize int
}

type apiResponse struct {
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Results []struct {
		Elevation *float64 `json:"elevation"`
	} `json:"results"`
}

// Lookup implements Sampler.
func (a *API) Lookup(ctx context.Context, c geo.Coordinate) (series.Value, error) {
	values, err := a.fetch(ctx, []geo.Coordinate{c})
	if err != nil {
		return series.Undefined, err
	}
	return values[0], nil
}

// LookupBatch implements BatchSampler. A failed request leaves its chunk
// missing and the remaining chunks are still queried; only context
// cancellation aborts the batch.
func (a *API) LookupBatch(ctx context.Context, coords []geo.Coordinate) ([]series.Value, error) {
	size := a.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}

	out := make([]series.Value, len(coords))
	for start := 0; start < len(coords); start += size {
		end := min(start+size, len(coords))

		values, err := a.fetch(ctx, coords[start:end])
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn().
				Err(err).
				Int("from", start).
				Int("to", end).
				Msg("Elevation API request failed, chunk left missing")
			continue
		}
		copy(out[start:end], values)
	}

	return out, nil
}

func (a *API) fetch(ctx context.Context, coords []geo.Coordinate) ([]series.Value, error) {
	endpoint, err := a.endpoint(coords)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	client := a.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var body apiResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&body)

	if resp.StatusCode != http.StatusOK {
		if decodeErr == nil && body.Error != "" {
			return nil, fmt.Errorf("status %d: %s", resp.StatusCode, body.Error)
		}
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	if len(body.Results) != len(coords) {
		return nil, fmt.Errorf("expected %d results, got %d", len(coords), len(body.Results))
	}

	values := make([]series.Value, len(coords))
	for i, r := range body.Results {
		if r.Elevation != nil {
			values[i] = series.Of(*r.Elevation)
		}
	}

	return values, nil
}

func (a *API) endpoint(coords []geo.Coordinate) (string, error) {
	u, err := url.Parse(strings.TrimRight(a.BaseURL, "/"))
	if err != nil {
		return "", err
	}

	dataset := a.Dataset
	if dataset == "" {
		dataset = "srtm90m"
	}
	u = u.JoinPath("v1", dataset)

	locs := make([]string, len(coords))
	for i, c := range coords {
		locs[i] = strconv.FormatFloat(c.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lon, 'f', -1, 64)
	}

	q := u.Query()
	q.Set("locations", strings.Join(locs, "|"))
	u.RawQuery = q.Encode()

	return u.String(), nil
}

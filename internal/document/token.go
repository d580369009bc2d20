package document

import (
	"math"
	"strconv"
	"strings"

	"github.com/woozymasta/elevprofile/internal/geo"

	"github.com/rs/zerolog/log"
)

// ParseCoordinates splits a whitespace separated list of "lon,lat[,alt]"
// tokens. Malformed tokens are skipped and counted.
func ParseCoordinates(text string) (coords []geo.Coordinate, skipped int) {
	for _, tok := range strings.Fields(text) {
		c, ok := ParseToken(tok)
		if !ok {
			skipped++
			log.Debug().Str("token", tok).Msg("Skipping malformed coordinate token")
			continue
		}
		coords = append(coords, c)
	}
	return coords, skipped
}

// ParseToken parses one "lon,lat[,alt]" token.
// The first field is always longitude and the second latitude.
func ParseToken(tok string) (geo.Coordinate, bool) {
	parts := strings.Split(strings.TrimSpace(tok), ",")
	if len(parts) < 2 {
		return geo.Coordinate{}, false
	}

	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return geo.Coordinate{}, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return geo.Coordinate{}, false
	}

	c := geo.Coordinate{Lat: lat, Lon: lon}
	if !c.Valid() {
		return geo.Coordinate{}, false
	}

	if len(parts) >= 3 {
		// altitude is optional; a bad value drops the altitude, not the point
		if alt, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64); err == nil &&
			!math.IsNaN(alt) && !math.IsInf(alt, 0) {
			c = c.WithAlt(alt)
		}
	}

	return c, true
}

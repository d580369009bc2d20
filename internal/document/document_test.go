package document

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/woozymasta/elevprofile/internal/geo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleKML = `<?xml version="1.0" encoding="UTF-8"?>
<kml xmlns="http://www.opengis.net/kml/2.2">
  <Document>
    <name>Riverside loop</name>
    <Folder>
      <Placemark>
        <name>Route</name>
        <LineString>
          <coordinates>
            121.5,25.0,10 bad-token 121.6,25.1
            121.7,25.2,30
          </coordinates>
        </LineString>
      </Placemark>
      <Placemark>
        <name>Second line</name>
        <LineString><coordinates>0,0 1,1</coordinates></LineString>
      </Placemark>
    </Folder>
    <Placemark>
      <name>Bridge</name>
      <Point><coordinates> 121.61,25.11,0 </coordinates></Point>
    </Placemark>
    <Placemark>
      <Point><coordinates>121.62,25.12</coordinates></Point>
    </Placemark>
    <Placemark>
      <name>Broken</name>
      <Point><coordinates>abc,def</coordinates></Point>
    </Placemark>
  </Document>
</kml>`

func TestParseKML(t *testing.T) {
	doc, err := Parse([]byte(sampleKML))
	require.NoError(t, err)

	assert.Equal(t, KML, doc.Format)
	assert.Equal(t, "Riverside loop", doc.Name)

	require.Len(t, doc.Route, 3)
	assert.Equal(t, 25.0, doc.Route[0].Lat)
	assert.Equal(t, 121.5, doc.Route[0].Lon)
	require.NotNil(t, doc.Route[0].Alt)
	assert.Equal(t, 10.0, *doc.Route[0].Alt)
	assert.Nil(t, doc.Route[1].Alt)
	assert.Equal(t, 25.2, doc.Route[2].Lat)

	// unnamed placemark is ignored, malformed one is counted
	require.Len(t, doc.Points, 1)
	assert.Equal(t, "Bridge", doc.Points[0].Name)
	assert.Equal(t, 25.11, doc.Points[0].Lat)
	assert.Equal(t, 121.61, doc.Points[0].Lon)
	assert.Equal(t, 2, doc.SkippedTokens)
}

func TestParseCoordinatesSkipsMalformed(t *testing.T) {
	coords, skipped := ParseCoordinates("121.5,25.0 bad-token 121.6,25.1")

	assert.Equal(t, []geo.Coordinate{
		{Lat: 25.0, Lon: 121.5},
		{Lat: 25.1, Lon: 121.6},
	}, coords)
	assert.Equal(t, 1, skipped)
}

func TestParseToken(t *testing.T) {
	tests := []struct {
		token string
		ok    bool
		lat   float64
		lon   float64
	}{
		{"121.5,25.0", true, 25.0, 121.5},
		{"121.5,25.0,100", true, 25.0, 121.5},
		{"121.5,25.0,high", true, 25.0, 121.5},
		{"121.5", false, 0, 0},
		{"x,25.0", false, 0, 0},
		{"121.5,NaN", false, 0, 0},
		{"25.0,121.5", false, 0, 0}, // latitude out of range
		{"", false, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			c, ok := ParseToken(tt.token)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.lat, c.Lat)
				assert.Equal(t, tt.lon, c.Lon)
			}
		})
	}
}

func TestParseKMLWithoutRoute(t *testing.T) {
	doc, err := Parse([]byte(`<kml><Document>
		<Placemark><name>A</name><Point><coordinates>7,46</coordinates></Point></Placemark>
	</Document></kml>`))
	require.NoError(t, err)

	assert.Empty(t, doc.Route)
	assert.NotNil(t, doc.Route)
	assert.Len(t, doc.Points, 1)
}

func TestParseKMLWithoutPoints(t *testing.T) {
	doc, err := Parse([]byte(`<kml><LineString><coordinates>7,46 7.1,46.1</coordinates></LineString></kml>`))
	require.NoError(t, err)

	assert.Len(t, doc.Route, 2)
	assert.Empty(t, doc.Points)
}

func TestParseErrors(t *testing.T) {
	inputs := map[string]string{
		"empty":          "   ",
		"not xml":        "hello world",
		"unknown root":   `<svg></svg>`,
		"kml no coords":  `<kml><Document><name>x</name></Document></kml>`,
		"broken xml":     `<kml><Document>`,
		"gpx empty":      `<gpx version="1.1" creator="t"></gpx>`,
		"geojson bad":    `{"type": "Polygon", "coordinates": []}`,
		"geojson points": `{"type": "FeatureCollection", "features": []}`,
	}

	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(input))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrParse), "got %v", err)
		})
	}
}

func TestParseGPX(t *testing.T) {
	content := `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
	<wpt lat="46.0005" lon="7.0005"><ele>1002</ele><name>Hut</name></wpt>
	<trk>
		<name>Test Track</name>
		<trkseg>
			<trkpt lat="46.0" lon="7.0"><ele>1000</ele></trkpt>
			<trkpt lat="46.001" lon="7.001"><ele>1005</ele></trkpt>
		</trkseg>
		<trkseg>
			<trkpt lat="46.002" lon="7.002"></trkpt>
		</trkseg>
	</trk>
</gpx>`

	doc, err := ParseReader(strings.NewReader(content))
	require.NoError(t, err)

	assert.Equal(t, GPX, doc.Format)
	assert.Equal(t, "Test Track", doc.Name)
	require.Len(t, doc.Route, 3)
	assert.Equal(t, 46.0, doc.Route[0].Lat)
	assert.Equal(t, 7.0, doc.Route[0].Lon)
	require.NotNil(t, doc.Route[1].Alt)
	assert.Equal(t, 1005.0, *doc.Route[1].Alt)
	assert.Nil(t, doc.Route[2].Alt)

	require.Len(t, doc.Points, 1)
	assert.Equal(t, "Hut", doc.Points[0].Name)
}

func TestParseGPXRouteFallback(t *testing.T) {
	content := `<gpx version="1.1" creator="test">
	<rte><name>Planned</name>
		<rtept lat="46.0" lon="7.0"></rtept>
		<rtept lat="46.1" lon="7.1"></rtept>
	</rte>
</gpx>`

	doc, err := Parse([]byte(content))
	require.NoError(t, err)

	assert.Equal(t, "Planned", doc.Name)
	assert.Len(t, doc.Route, 2)
}

func TestParseGeoJSON(t *testing.T) {
	content := `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"name": "Summit"},
     "geometry": {"type": "Point", "coordinates": [7.05, 46.05]}},
    {"type": "Feature", "properties": {"name": "Climb"},
     "geometry": {"type": "LineString", "coordinates": [[7.0, 46.0], [7.1, 46.1], [500, 46.2]]}}
  ]
}`

	doc, err := Parse([]byte(content))
	require.NoError(t, err)

	assert.Equal(t, GeoJSON, doc.Format)
	assert.Equal(t, "Climb", doc.Name)
	require.Len(t, doc.Route, 2)
	assert.Equal(t, 46.1, doc.Route[1].Lat)
	assert.Equal(t, 7.1, doc.Route[1].Lon)
	assert.Equal(t, 1, doc.SkippedTokens)

	require.Len(t, doc.Points, 1)
	assert.Equal(t, "Summit", doc.Points[0].Name)
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "route.kml")
	require.NoError(t, os.WriteFile(path, []byte(sampleKML), 0o600))

	doc, err := ParseFile(path)
	require.NoError(t, err)
	assert.Len(t, doc.Route, 3)

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.kml"))
	assert.Error(t, err)
}

func TestFeatureCollection(t *testing.T) {
	doc, err := Parse([]byte(sampleKML))
	require.NoError(t, err)

	fc := doc.FeatureCollection()
	require.Len(t, fc.Features, 2)

	route := fc.Features[0]
	assert.Equal(t, "Riverside loop", route.Properties["name"])
	assert.Equal(t, []any{10.0, nil, 30.0}, route.Properties["elevation_m"])

	bridge := fc.Features[1]
	assert.Equal(t, "Bridge", bridge.Properties["name"])
	assert.Equal(t, 0.0, bridge.Properties["elevation_m"])

	// the export parses back into the same geometry
	data, err := fc.MarshalJSON()
	require.NoError(t, err)
	back, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, GeoJSON, back.Format)
	assert.Equal(t, doc.Name, back.Name)
	require.Len(t, back.Route, len(doc.Route))
	assert.Equal(t, doc.Route[2].Lat, back.Route[2].Lat)
	require.Len(t, back.Points, 1)
	assert.Equal(t, "Bridge", back.Points[0].Name)
}

func TestFeatureCollectionEmpty(t *testing.T) {
	doc := &Document{Format: KML}
	assert.Empty(t, doc.FeatureCollection().Features)
}

func TestParseDropsPlaceholderAltitudes(t *testing.T) {
	doc, err := Parse([]byte(`<kml><Document><Placemark>
	  <LineString><coordinates>121.5,25.0,0 121.51,25.0,0 121.52,25.0</coordinates></LineString>
	</Placemark><Placemark><name>Gate</name><Point><coordinates>121.51,25.0,0</coordinates></Point></Placemark>
	</Document></kml>`))
	require.NoError(t, err)

	require.Len(t, doc.Route, 3)
	for i, c := range doc.Route {
		assert.Nil(t, c.Alt, "route %d", i)
	}
	require.Len(t, doc.Points, 1)
	assert.Nil(t, doc.Points[0].Alt)
	assert.Equal(t, 3, doc.DroppedAltitudes)
}

func TestParseKeepsRealZeroAltitudes(t *testing.T) {
	doc, err := Parse([]byte(`<kml><Placemark>
	  <LineString><coordinates>4.9,52.3,0 4.91,52.3,-2</coordinates></LineString>
	</Placemark></kml>`))
	require.NoError(t, err)

	require.NotNil(t, doc.Route[0].Alt)
	assert.Equal(t, 0.0, *doc.Route[0].Alt)
	assert.Zero(t, doc.DroppedAltitudes)
}

func TestParseKMLGroundClamped(t *testing.T) {
	doc, err := Parse([]byte(`<kml xmlns:gx="http://www.google.com/kml/ext/2.2"><Document>
	  <Placemark><LineString>
	    <altitudeMode>clampToGround</altitudeMode>
	    <coordinates>7,46,1200 7.01,46,1250</coordinates>
	  </LineString></Placemark>
	  <Placemark><name>Hut</name><Point>
	    <gx:altitudeMode>relativeToSeaFloor</gx:altitudeMode>
	    <coordinates>7.01,46,3</coordinates>
	  </Point></Placemark>
	  <Placemark><name>Peak</name><Point>
	    <altitudeMode>absolute</altitudeMode>
	    <coordinates>7.02,46,1300</coordinates>
	  </Point></Placemark>
	</Document></kml>`))
	require.NoError(t, err)

	require.Len(t, doc.Route, 2)
	assert.Nil(t, doc.Route[0].Alt)
	assert.Nil(t, doc.Route[1].Alt)

	require.Len(t, doc.Points, 2)
	assert.Nil(t, doc.Points[0].Alt)
	require.NotNil(t, doc.Points[1].Alt)
	assert.Equal(t, 1300.0, *doc.Points[1].Alt)
	assert.Equal(t, 3, doc.DroppedAltitudes)
}

package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/startup-scraper/internal/geo"
)

type staticLocations []string

func (s staticLocations) DistinctLocations(ctx context.Context) ([]string, error) {
	return s, nil
}

func testSnapshot(t *testing.T, known ...string) *geo.Snapshot {
	t.Helper()
	idx, err := geo.NewIndex()
	require.NoError(t, err)
	if len(known) > 0 {
		require.NoError(t, idx.Refresh(context.Background(), staticLocations(known)))
	}
	return idx.Snapshot()
}

func TestExtractLocationFromHints(t *testing.T) {
	snap := testSnapshot(t)

	lines := []string{"Acme Robotics", "Builds warehouse robots"}
	loc, conf := ExtractLocation(lines, []string{"San Francisco, CA"}, snap)
	assert.Equal(t, "San Francisco, CA", loc)
	assert.Greater(t, conf, 50)
}

func TestExtractLocationFromLines(t *testing.T) {
	snap := testSnapshot(t)

	tests := []struct {
		name  string
		lines []string
		want  string
	}{
		{
			name:  "city state line",
			lines: []string{"Acme Robotics", "Denver, CO", "Builds robots"},
			want:  "Denver, CO",
		},
		{
			name:  "city country line",
			lines: []string{"Wunderlist", "Great todo lists", "Berlin, Germany"},
			want:  "Berlin, Germany",
		},
		{
			name:  "postal code line",
			lines: []string{"Nordkapp", "10115 Berlin"},
			want:  "10115 Berlin",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, conf := ExtractLocation(tt.lines, nil, snap)
			assert.Contains(t, loc, tt.want)
			assert.Greater(t, conf, geo.ScoreCandidate)
		})
	}
}

func TestExtractLocationSkipsFirstLine(t *testing.T) {
	snap := testSnapshot(t)

	// The first line is the company name even when it looks like a place.
	loc, _ := ExtractLocation([]string{"Paris, France"}, nil, snap)
	assert.Empty(t, loc)
}

func TestExtractLocationNothingFound(t *testing.T) {
	snap := testSnapshot(t)

	lines := []string{"Acme", "helps businesses scale their platform"}
	loc, conf := ExtractLocation(lines, nil, snap)
	assert.Empty(t, loc)
	assert.Zero(t, conf)
}

func TestSplitNameAndLocation(t *testing.T) {
	snap := testSnapshot(t)

	tests := []struct {
		name     string
		raw      string
		location string
		want     string
	}{
		{name: "literal suffix", raw: "OchreBioOxford", location: "Oxford", want: "OchreBio"},
		{name: "accented city", raw: "StarkBankSão Paulo", location: "São Paulo", want: "StarkBank"},
		{name: "camel boundary", raw: "Ochre BioOxford", location: "Oxford, UK", want: "Ochre Bio"},
		{name: "region code", raw: "AcmeUSA", location: "United States", want: "Acme"},
		{name: "partial prefix", raw: "HospitalsIrv", location: "Irvine, CA", want: "Hospitals"},
		{name: "separator", raw: "Denver | Acme", location: "Denver", want: "Acme"},
		{name: "comma suffix", raw: "Acme, Denver", location: "Denver", want: "Acme"},
		{name: "no rule applies", raw: "Acme", location: "Berlin", want: "Acme"},
		{name: "empty location", raw: "Acme", location: "", want: "Acme"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitNameAndLocation(tt.raw, tt.location, snap))
		})
	}
}

func TestSplitNameAndLocationLongName(t *testing.T) {
	snap := testSnapshot(t)

	raw := "A Very Long Company Name With Far Too Many Words Denver, CO Included"
	got := SplitNameAndLocation(raw, "Denver, CO", snap)
	assert.NotContains(t, got, "Denver, CO")
	assert.Contains(t, got, "A Very Long Company Name")
}

func TestParseNameAndLocation(t *testing.T) {
	snap := testSnapshot(t)

	t.Run("camel boundary city", func(t *testing.T) {
		name, loc := ParseNameAndLocation("SnapTravelToronto", snap)
		assert.Equal(t, "SnapTravel", name)
		assert.Equal(t, "Toronto", loc)
	})

	t.Run("comma split", func(t *testing.T) {
		name, loc := ParseNameAndLocation("Acme, Boulder, CO", snap)
		assert.Equal(t, "Acme", name)
		assert.Equal(t, "Boulder, CO", loc)
	})

	t.Run("description text left alone", func(t *testing.T) {
		name, loc := ParseNameAndLocation("platform that helps teams ship faster", snap)
		assert.Equal(t, "platform that helps teams ship faster", name)
		assert.Empty(t, loc)
	})

	t.Run("plain name left alone", func(t *testing.T) {
		name, loc := ParseNameAndLocation("Acme Robotics", snap)
		assert.Equal(t, "Acme Robotics", name)
		assert.Empty(t, loc)
	})
}

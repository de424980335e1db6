package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFullBlock(t *testing.T) {
	snap := testSnapshot(t)

	in := Input{
		Text: "Acme Robotics\nW24\nDenver, CO\nBuilds autonomous warehouse robots",
		URL:  "https://example.com/companies/acme",
	}
	c, err := Parse(in, snap)
	require.NoError(t, err)

	assert.Equal(t, "Acme Robotics", c.Name)
	assert.Equal(t, "W24", c.Cohort)
	assert.Equal(t, "Denver, CO", c.Location)
	assert.Equal(t, "Builds autonomous warehouse robots", c.Description)
	assert.Equal(t, "https://example.com/companies/acme", c.URL)
	assert.Greater(t, c.LocationConfidence, 0)
}

func TestParseGluedNameAndLocation(t *testing.T) {
	snap := testSnapshot(t)

	in := Input{Text: "StarkBankSão Paulo\nDigital banking platform for businesses"}
	c, err := Parse(in, snap)
	require.NoError(t, err)

	assert.Equal(t, "StarkBank", c.Name)
	assert.Equal(t, "São Paulo", c.Location)
	assert.Equal(t, "Digital banking platform for businesses", c.Description)
}

func TestParseLocationHintsPreferred(t *testing.T) {
	snap := testSnapshot(t)

	in := Input{
		Text:          "Acme\nBuilds robots",
		LocationHints: []string{"Berlin, Germany"},
	}
	c, err := Parse(in, snap)
	require.NoError(t, err)
	assert.Equal(t, "Berlin, Germany", c.Location)
}

func TestParseNoCohort(t *testing.T) {
	snap := testSnapshot(t)

	in := Input{Text: "Acme\nZ24\nBuilds robots"}
	c, err := Parse(in, snap)
	require.NoError(t, err)
	assert.Empty(t, c.Cohort)
}

func TestParseEmptyBlock(t *testing.T) {
	snap := testSnapshot(t)

	_, err := Parse(Input{Text: "  \n\t\n"}, snap)
	assert.Error(t, err)
}

func TestParseCarriesFounders(t *testing.T) {
	snap := testSnapshot(t)

	in := Input{
		Text: "Acme Robotics\nDenver, CO",
		Founders: []FounderCandidate{
			{Name: "Dana Miles", LinkedInURL: "https://linkedin.com/in/danamiles"},
		},
	}
	c, err := Parse(in, snap)
	require.NoError(t, err)
	require.Len(t, c.Founders, 1)
	assert.Equal(t, "Dana Miles", c.Founders[0].Name)
}

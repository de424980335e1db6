package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func intPtr(n int) *int { return &n }

func TestMergeStartup(t *testing.T) {
	t.Run("identical incoming is unchanged", func(t *testing.T) {
		existing := Startup{
			Name:        "Acme",
			Cohort:      "W24",
			Description: "Robotics platform",
			Location:    "Boston, MA",
			YearFounded: 2024,
		}
		in := existing
		assert.False(t, MergeStartup(&existing, in))
	})

	t.Run("changed field overwrites", func(t *testing.T) {
		existing := Startup{Name: "Acme", Description: "old", Location: "Boston, MA"}
		in := Startup{Name: "Acme", Description: "new"}
		assert.True(t, MergeStartup(&existing, in))
		assert.Equal(t, "new", existing.Description)
		assert.Equal(t, "Boston, MA", existing.Location)
	})

	t.Run("empty incoming field does not blank existing", func(t *testing.T) {
		existing := Startup{Name: "Acme", Location: "Boston, MA", TeamSize: intPtr(12)}
		in := Startup{Name: "Acme"}
		assert.False(t, MergeStartup(&existing, in))
		assert.Equal(t, "Boston, MA", existing.Location)
		assert.Equal(t, 12, *existing.TeamSize)
	})

	t.Run("team size change detected", func(t *testing.T) {
		existing := Startup{Name: "Acme", TeamSize: intPtr(12)}
		in := Startup{Name: "Acme", TeamSize: intPtr(15)}
		assert.True(t, MergeStartup(&existing, in))
		assert.Equal(t, 15, *existing.TeamSize)
	})

	t.Run("year founded change detected", func(t *testing.T) {
		existing := Startup{Name: "Acme", YearFounded: 2023}
		in := Startup{Name: "Acme", YearFounded: 2024}
		assert.True(t, MergeStartup(&existing, in))
		assert.Equal(t, 2024, existing.YearFounded)
	})
}

func TestMergeFounder(t *testing.T) {
	existing := Founder{Name: "Jane Doe", Title: "CEO"}
	in := Founder{Name: "Jane Doe", Title: "CEO", LinkedInURL: "https://linkedin.com/in/janedoe"}
	assert.True(t, MergeFounder(&existing, in))
	assert.Equal(t, "https://linkedin.com/in/janedoe", existing.LinkedInURL)

	// Second merge with the same data is a no-op.
	assert.False(t, MergeFounder(&existing, in))
}

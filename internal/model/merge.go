package model

// MergeStartup overwrites existing fields with values present in the
// incoming record and reports whether anything changed. A field is present
// when it is non-empty (non-nil for TeamSize, non-zero for YearFounded), so
// a sparse re-scrape never blanks out previously captured data.
func MergeStartup(existing *Startup, in Startup) bool {
	changed := false

	setStr := func(dst *string, v string) {
		if v != "" && *dst != v {
			*dst = v
			changed = true
		}
	}

	setStr(&existing.Description, in.Description)
	setStr(&existing.URL, in.URL)
	setStr(&existing.LogoURL, in.LogoURL)
	setStr(&existing.Source, in.Source)
	setStr(&existing.Status, in.Status)
	setStr(&existing.Location, in.Location)
	setStr(&existing.Tags, in.Tags)

	if in.YearFounded != 0 && existing.YearFounded != in.YearFounded {
		existing.YearFounded = in.YearFounded
		changed = true
	}
	if in.TeamSize != nil && (existing.TeamSize == nil || *existing.TeamSize != *in.TeamSize) {
		ts := *in.TeamSize
		existing.TeamSize = &ts
		changed = true
	}

	return changed
}

// MergeFounder overwrites existing founder fields with values present in the
// incoming record and reports whether anything changed.
func MergeFounder(existing *Founder, in Founder) bool {
	changed := false

	setStr := func(dst *string, v string) {
		if v != "" && *dst != v {
			*dst = v
			changed = true
		}
	}

	setStr(&existing.Title, in.Title)
	setStr(&existing.RoleType, in.RoleType)
	setStr(&existing.Bio, in.Bio)
	setStr(&existing.Background, in.Background)
	setStr(&existing.LinkedInURL, in.LinkedInURL)
	setStr(&existing.TwitterURL, in.TwitterURL)
	setStr(&existing.GitHubURL, in.GitHubURL)

	return changed
}

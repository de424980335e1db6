package extract

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/startup-scraper/internal/geo"
	"github.com/sells-group/startup-scraper/internal/model"
)

var cohortToken = regexp.MustCompile(`\b([WSFX]\d{2})\b`)

// Parse turns one scraped block into a repaired Candidate. The block text
// follows a loose name-first convention: the first line carries the company
// name (often with the location glued on), later lines carry the location
// and description in no fixed order, and a cohort code may appear anywhere.
// Returns an error only when no usable name survives extraction and repair;
// everything else degrades to empty fields.
func Parse(in Input, snap *geo.Snapshot) (Candidate, error) {
	lines := splitLines(in.Text)
	if len(lines) == 0 {
		return Candidate{}, eris.New("extract: empty block")
	}

	c := Candidate{
		RawText:  in.Text,
		Name:     lines[0],
		URL:      in.URL,
		LogoURL:  in.LogoURL,
		Founders: in.Founders,
	}

	if m := cohortToken.FindString(in.Text); m != "" && model.ValidCohort(m) {
		c.Cohort = m
	}

	c.Location, c.LocationConfidence = ExtractLocation(lines, in.LocationHints, snap)

	if c.Location != "" {
		c.Name = SplitNameAndLocation(c.Name, c.Location, snap)
	} else {
		// No location anywhere else in the block; it may be glued onto
		// the name itself.
		if name, loc := ParseNameAndLocation(c.Name, snap); loc != "" {
			c.Name = name
			c.Location = loc
			c.LocationConfidence = snap.Score(loc)
		}
	}

	c.Description = pickDescription(lines, c, snap)

	c = Repair(c, snap)

	if strings.TrimSpace(c.Name) == "" {
		return Candidate{}, eris.New("extract: no usable name in block")
	}

	zap.L().Debug("extract: parsed block",
		zap.String("name", c.Name),
		zap.String("location", c.Location),
		zap.String("cohort", c.Cohort),
		zap.Int("location_confidence", c.LocationConfidence),
	)
	return c, nil
}

// pickDescription selects the first line that is neither the name, the
// location, nor a bare cohort code. Description-looking lines are preferred;
// failing that, the first leftover line is used as-is.
func pickDescription(lines []string, c Candidate, snap *geo.Snapshot) string {
	var leftover []string
	for i, line := range lines {
		if i == 0 {
			continue
		}
		if line == c.Location || strings.Contains(c.Location, line) {
			continue
		}
		if model.ValidCohort(line) {
			continue
		}
		leftover = append(leftover, line)
	}

	for _, line := range leftover {
		if snap.IsDescription(line) {
			return line
		}
	}
	if len(leftover) > 0 {
		return leftover[0]
	}
	return ""
}

func splitLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			out = append(out, t)
		}
	}
	return out
}

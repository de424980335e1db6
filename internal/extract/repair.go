package extract

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/startup-scraper/internal/geo"
)

var (
	htmlTagPattern  = regexp.MustCompile(`<[^<]+?>`)
	markdownPattern = regexp.MustCompile(`\[.*?\]`)
	// allCapsToAccented catches an all-caps name running straight into an
	// accented place name ("STARK BANKSão Paulo").
	allCapsToAccented = regexp.MustCompile(`([A-Z][A-Z]+)([À-ÿ][a-zÀ-ÿ]+)`)
)

// descriptionPrefixes are formatting artifacts scraped along with the
// description text.
var descriptionPrefixes = []string{"Description:", "About:", "•", "-", ">"}

// Repair post-processes a tentative candidate, catching and correcting the
// known cross-field failure modes: markup remnants in the name, a
// description captured as the location, swapped description/location, and a
// location fragment left glued onto the name. Each rule is applied to a
// fresh copy; the input candidate is never mutated. The location-confidence
// gate runs before the swap and accent-boundary rules, which depend on it.
func Repair(c Candidate, snap *geo.Snapshot) Candidate {
	out := c

	// Markup remnants in the name.
	name := out.Name
	if (strings.Contains(name, "<") && strings.Contains(name, ">")) ||
		(strings.Contains(name, "[") && strings.Contains(name, "]")) {
		cleaned := htmlTagPattern.ReplaceAllString(name, "")
		cleaned = markdownPattern.ReplaceAllString(cleaned, "")
		if t := strings.TrimSpace(cleaned); t != "" {
			out.Name = t
		}
	}

	// A suspiciously short name usually means the extraction sliced the
	// first line apart; recover it from the raw text.
	if len(out.Name) < 3 && len(out.RawText) > 10 {
		lines := strings.Split(out.RawText, "\n")
		if len(lines) > 0 && len(lines[0]) > len(out.Name) {
			better := lines[0]
			if out.Location != "" {
				better = strings.ReplaceAll(better, out.Location, "")
			}
			if t := strings.TrimSpace(better); t != "" {
				zap.L().Debug("extract: recovered short name",
					zap.String("before", out.Name),
					zap.String("after", t),
				)
				out.Name = t
			}
		}
	}

	// Location confidence gate. A rejected location may still be useful as
	// the description; that re-use is deliberately lossy.
	if out.Location != "" {
		conf := snap.Score(out.Location)
		out.LocationConfidence = conf
		if conf < geo.ScoreAccept {
			rejected := out.Location
			out.Location = ""
			out.LocationConfidence = 0
			if out.Description == "" && snap.IsDescription(rejected) {
				out.Description = rejected
			}
		}
	}

	// Swapped fields: a short "description" and a long "location" that
	// scores better as a place the other way around.
	if out.Description != "" && out.Location != "" &&
		len(out.Description) < 15 && len(out.Location) > 30 {
		if snap.Score(out.Description) > snap.Score(out.Location) {
			out.Description, out.Location = out.Location, out.Description
			out.LocationConfidence = snap.Score(out.Location)
		}
	}

	// Trailing location word stuck to the name.
	if out.Name != "" && out.Location != "" {
		for _, word := range strings.Fields(out.Location) {
			word = strings.Trim(word, ",")
			if len(word) > 3 && strings.HasSuffix(out.Name, word) {
				if t := strings.TrimSpace(strings.TrimSuffix(out.Name, word)); len(t) >= 3 {
					out.Name = t
				}
				break
			}
		}
	}

	// ASCII-to-accented boundary glitches in the name.
	out = repairAccentBoundary(out, snap)

	// Formatting prefixes on the description.
	for _, prefix := range descriptionPrefixes {
		if strings.HasPrefix(out.Description, prefix) {
			out.Description = strings.TrimSpace(strings.TrimPrefix(out.Description, prefix))
			break
		}
	}

	return out
}

// repairAccentBoundary splits a name where an ASCII run collides with an
// accented character, keeping the trailing fragment as the location when it
// scores well enough and none was set.
func repairAccentBoundary(c Candidate, snap *geo.Snapshot) Candidate {
	out := c
	name := out.Name
	if name == "" {
		return out
	}

	if locs := allCapsToAccented.FindAllStringSubmatchIndex(name, -1); len(locs) > 0 {
		for _, m := range locs {
			head := name[:m[3]]
			tail := name[m[4]:]
			conf := snap.Score(tail)
			if conf > geo.ScoreCandidate || hasAccent(tail) {
				out.Name = strings.TrimSpace(head)
				if out.Location == "" || conf > snap.Score(out.Location) {
					out.Location = strings.TrimSpace(tail)
					out.LocationConfidence = conf
				}
				return out
			}
		}
		return out
	}

	if hasAccent(name) {
		if m := asciiToAccented.FindStringIndex(name); m != nil {
			split := m[0] + 1
			head := strings.TrimSpace(name[:split])
			tail := strings.TrimSpace(name[split:])
			if len(head) >= 3 && snap.Score(tail) > geo.ScoreCandidate {
				out.Name = head
				if out.Location == "" {
					out.Location = tail
					out.LocationConfidence = snap.Score(tail)
				}
			}
		}
	}
	return out
}

func hasAccent(s string) bool {
	for _, r := range s {
		if r > 127 {
			return true
		}
	}
	return false
}

package extract

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/startup-scraper/internal/geo"
)

// linePatterns match common location shapes line by line, most specific
// first: "City, Region, Country", "City, Region", "City, Country",
// "Country (Region)" and European "postal-code City" forms.
var linePatterns = []*regexp.Regexp{
	regexp.MustCompile(`([A-Z][a-zÀ-ÿ]+(?:[\s-][A-Z][a-zÀ-ÿ]+)*),\s*([A-Z]{2}|[A-Za-zÀ-ÿ ]+),\s*([A-Za-zÀ-ÿ ]+)`),
	regexp.MustCompile(`([A-Z][a-zÀ-ÿ]+(?:[\s-][A-Z][a-zÀ-ÿ]+)*),\s*([A-Z]{2}|[A-Za-zÀ-ÿ ]+)`),
	regexp.MustCompile(`([A-Z][a-zÀ-ÿ]+(?:[\s-][A-Z][a-zÀ-ÿ]+)*),\s*([A-Za-zÀ-ÿ ]+)`),
	regexp.MustCompile(`([A-Za-zÀ-ÿ ]+)\s*\(([A-Za-zÀ-ÿ ]+)\)`),
	regexp.MustCompile(`(\d{4,6})\s+([A-Z][a-zÀ-ÿ]+(?:[\s-][A-Z][a-zÀ-ÿ]+)*)`),
}

var (
	camelBoundary    = regexp.MustCompile(`([a-z])([A-Z])`)
	asciiToAccented  = regexp.MustCompile(`([A-Za-z])([À-ÿ])`)
	regionCodes      = []string{"USA", "EU", "UK", "UAE", "HK"}
	industrySuffixes = []string{"Bio", "Health", "Tech", "AI", "Labs", "Med"}
	separatorChars   = []string{",", "-", "|", ":", ";", "•"}
)

type scored struct {
	text       string
	confidence int
}

// ExtractLocation finds the most likely location string in a block. It tries
// an ordered chain of strategies and returns the first that clears its
// threshold, falling back to the best-scoring candidate collected along the
// way. Returns ("", 0) when nothing clears the candidate threshold.
func ExtractLocation(lines []string, hints []string, snap *geo.Snapshot) (string, int) {
	var candidates []scored

	// Structured hints from markup metadata are the most reliable signal.
	for _, hint := range hints {
		hint = strings.TrimSpace(hint)
		if hint == "" {
			continue
		}
		if conf := snap.Score(hint); conf > 50 {
			return hint, conf
		}
		candidates = append(candidates, scored{hint, 50})
	}

	// Line-by-line shape patterns. The first line is almost always the
	// company name, so it is skipped throughout.
	for i, line := range lines {
		if i == 0 || len(line) < 5 {
			continue
		}
		for _, pat := range linePatterns {
			m := pat.FindString(line)
			if m == "" {
				continue
			}
			conf := snap.Score(m)
			if conf > 70 {
				return m, conf
			}
			candidates = append(candidates, scored{m, conf})
		}
	}

	// Whole lines scored against the knowledge base.
	for i, line := range lines {
		if i == 0 {
			continue
		}
		line = strings.TrimSpace(line)
		conf := snap.Score(line)
		if conf > geo.ScoreAccept {
			return line, conf
		}
		if conf > geo.ScoreCandidate {
			candidates = append(candidates, scored{line, conf})
		}
	}

	best := scored{}
	for _, c := range candidates {
		if c.confidence > best.confidence {
			best = c
		}
	}
	if best.confidence > geo.ScoreCandidate {
		return best.text, best.confidence
	}

	// Last resort: a comma-bearing line of plausible length.
	for i, line := range lines {
		if i == 0 {
			continue
		}
		if strings.Contains(line, ",") && len(line) > 5 && len(line) < 50 {
			line = strings.TrimSpace(line)
			if conf := snap.Score(line); conf > geo.ScoreCandidate {
				return line, conf
			}
		}
	}

	return "", 0
}

// SplitNameAndLocation removes a location glued onto the end of a company
// name. The concatenation point is never marked in the source text, so an
// ordered set of rules is tried from most specific to least; the first rule
// producing a plausible remaining name wins. When no rule applies the name
// is returned unmodified.
func SplitNameAndLocation(name, location string, snap *geo.Snapshot) string {
	name = strings.TrimSpace(name)
	if name == "" || location == "" {
		return name
	}

	// Very long names with the location embedded get a direct cut.
	if len(name) > 50 && strings.Contains(name, location) {
		return strings.TrimSpace(strings.ReplaceAll(name, location, ""))
	}

	// Rule 1: location is a literal suffix of the name.
	suffixPat := regexp.MustCompile(`[,\s]*` + regexp.QuoteMeta(location) + `$`)
	if trimmed := suffixPat.ReplaceAllString(name, ""); trimmed != name {
		if t := strings.TrimSpace(trimmed); len(t) >= 2 {
			return t
		}
	}

	// Rule 2: lowercase-to-uppercase boundary, scanned from the right.
	if split := splitAtBoundary(name, location, camelBoundary, 50, 2, snap); split != "" {
		return split
	}

	// Rule 3: ASCII-to-accented boundary ("StarkBankSão Paulo").
	if split := splitAtBoundary(name, location, asciiToAccented, 40, 2, snap); split != "" {
		return split
	}

	// Rule 4: a known city embedded without a leading space.
	for _, city := range snap.Cities() {
		if strings.Contains(name, city) && !strings.Contains(name, " "+city) {
			if pos := strings.Index(name, city); pos > 0 {
				if t := strings.TrimSpace(name[:pos]); len(t) >= 2 {
					return t
				}
			}
		}
	}

	// Rule 5: fixed region codes and industry suffixes followed by a
	// capitalized word ("AcmeUSA", "Ochre BioOxford").
	for _, region := range regionCodes {
		pat := regexp.MustCompile(`(\w+)` + regexp.QuoteMeta(region) + `$`)
		if m := pat.FindStringSubmatch(name); m != nil && m[1] != "" {
			if t := strings.TrimSpace(name[:len(name)-len(region)]); len(t) >= 2 {
				return t
			}
		}
	}
	for _, suffix := range industrySuffixes {
		pat := regexp.MustCompile(`([A-Za-z]+\s*)(` + suffix + `)([A-Z][a-zÀ-ÿ]+)`)
		if m := pat.FindStringSubmatch(name); m != nil {
			tail := m[3]
			if strings.Contains(location, tail) || strings.HasPrefix(location, tail) || snap.Score(tail) > 40 {
				if t := strings.TrimSpace(m[1] + m[2]); len(t) >= 2 {
					return t
				}
			}
		}
	}

	// Rule 6: locality prefix from the knowledge base with a
	// non-alphanumeric boundary before it.
	for _, prefix := range snap.Prefixes() {
		if !strings.Contains(name, prefix) || strings.HasPrefix(name, prefix) {
			continue
		}
		pos := strings.Index(name, prefix)
		if pos <= 0 || isAlphanumeric(name[pos-1]) {
			continue
		}
		rest := name[pos:]
		if t := strings.TrimSpace(name[:pos]); len(t) >= 3 && snap.Score(rest) > geo.ScoreCandidate {
			return t
		}
	}

	// Rule 7: the name ends with a truncated prefix of the location
	// ("italsIrvine" when the location is "Irvine, CA").
	maxPartial := len(location)
	if maxPartial > 4 {
		maxPartial = 4
	}
	for i := 1; i <= maxPartial; i++ {
		head := location[:i]
		if strings.HasSuffix(name, head) {
			if t := strings.TrimSpace(name[:len(name)-len(head)]); len(t) >= 2 {
				return t
			}
		}
	}

	// Rule 8: separator character where exactly one side holds the location.
	for _, sep := range separatorChars {
		if !strings.Contains(name, sep) {
			continue
		}
		parts := strings.SplitN(name, sep, 2)
		left, right := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		inLeft, inRight := strings.Contains(left, location), strings.Contains(right, location)
		switch {
		case inRight && !inLeft && len(left) >= 2:
			return left
		case inLeft && !inRight && len(right) >= 2:
			return right
		}
	}

	return name
}

// splitAtBoundary scans boundary matches from the right and accepts the
// first split whose trailing fragment relates to the location or scores as
// a location on its own.
func splitAtBoundary(name, location string, boundary *regexp.Regexp, minScore, minName int, snap *geo.Snapshot) string {
	matches := boundary.FindAllStringIndex(name, -1)
	for i := len(matches) - 1; i >= 0; i-- {
		split := matches[i][0] + 1
		head := name[:split]
		tail := name[split:]
		if len(strings.TrimSpace(head)) < minName {
			continue
		}
		if strings.Contains(tail, location) || strings.Contains(location, tail) || snap.Score(tail) > minScore {
			return strings.TrimSpace(head)
		}
	}
	return ""
}

// ParseNameAndLocation attempts to pull a location out of a bare name string
// when no location was found elsewhere in the block. Returns the original
// text and "" when nothing convincing turns up.
func ParseNameAndLocation(text string, snap *geo.Snapshot) (string, string) {
	text = strings.TrimSpace(text)
	if len(text) < 5 {
		return text, ""
	}

	// Bail out on description-looking text before trying any split.
	lower := strings.ToLower(text)
	words := strings.Fields(lower)
	descHits := 0
	for _, ind := range []string{"platform", "software", "marketplace", "solution", "app", "api", "service", "for", "that", "helps"} {
		for _, w := range words {
			if w == ind {
				descHits++
				break
			}
		}
	}
	if descHits >= 2 {
		return text, ""
	}

	// Camel boundary from the right ("CompanyNameSanFrancisco").
	if name, loc := parseAtBoundary(text, camelBoundary, snap); loc != "" {
		return name, loc
	}

	// Accented boundary for transliterated city names.
	if name, loc := parseAtBoundary(text, asciiToAccented, snap); loc != "" {
		return name, loc
	}

	// Comma split with the right side scored as a location.
	if idx := strings.Index(text, ","); idx >= 3 {
		left, right := strings.TrimSpace(text[:idx]), strings.TrimSpace(text[idx+1:])
		if snap.Score(right) > 40 {
			return left, right
		}
	}

	// Locality prefix scan with a non-alphanumeric boundary.
	for _, prefix := range snap.Prefixes() {
		if !strings.Contains(text, prefix) || strings.HasPrefix(text, prefix) {
			continue
		}
		pos := strings.Index(text, prefix)
		if pos <= 0 || isAlphanumeric(text[pos-1]) {
			continue
		}
		name := strings.TrimSpace(text[:pos])
		loc := strings.TrimSpace(text[pos:])
		if len(name) >= 2 && snap.Score(loc) > geo.ScoreCandidate {
			return name, loc
		}
	}

	return text, ""
}

func parseAtBoundary(text string, boundary *regexp.Regexp, snap *geo.Snapshot) (string, string) {
	matches := boundary.FindAllStringIndex(text, -1)
	for i := len(matches) - 1; i >= 0; i-- {
		split := matches[i][0] + 1
		name := text[:split]
		loc := text[split:]
		if conf := snap.Score(loc); conf > 40 {
			zap.L().Debug("extract: boundary split",
				zap.String("name", name),
				zap.String("location", loc),
				zap.Int("confidence", conf),
			)
			return name, loc
		}
	}
	return "", ""
}

func isAlphanumeric(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

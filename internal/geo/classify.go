package geo

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Confidence thresholds used by callers of Score.
const (
	// ScoreAccept is the minimum confidence to accept a string as a location.
	ScoreAccept = 60
	// ScoreCandidate is the minimum confidence to keep a string as a
	// tie-break candidate.
	ScoreCandidate = 30
)

// departmentTerms are all-caps business-unit labels that disqualify a string
// from being a location.
var departmentTerms = map[string]struct{}{
	"ENGINEERING": {}, "PRODUCT": {}, "DESIGN": {}, "MARKETING": {}, "SALES": {},
	"CUSTOMER": {}, "SUPPORT": {}, "FINANCE": {}, "HR": {}, "OPERATIONS": {},
	"TALENT": {}, "TECH": {}, "TEAM": {}, "DEPARTMENT": {}, "DIVISION": {},
	"MANAGEMENT": {}, "STAFF": {}, "LEADERSHIP": {}, "CENTER": {}, "GROUP": {},
	"DIRECTOR": {}, "HEAD": {}, "VP": {}, "CHIEF": {}, "EXECUTIVE": {},
}

// descriptionWords signal marketing copy. Two hits, or one hit making up
// more than a quarter of the words, classifies the string as a description.
var descriptionWords = []string{
	"platform", "software", "marketplace", "solution", "service", "app",
	"API", "for", "that", "helps", "enables", "empowers", "building",
	"powered by", "industry", "businesses", "product", "technology",
	"the", "your", "provides", "offering",
}

// marketingPhrases force a classifier score of zero regardless of any
// geographic evidence already accumulated.
var marketingPhrases = []string{
	"platform for", "software for", "marketplace for", "solution for",
	"the future of", "service for", "helps", "enables", "building",
	"powered by", "industry", "for businesses", "for enterprises",
}

// localityWords are generic place-name fragments worth a small boost.
var localityWords = []string{
	"city", "san", "new", "los", "bay", "north", "south", "east", "west",
}

var (
	usZipPattern       = regexp.MustCompile(`\b\d{5}(?:-\d{4})?\b`)
	caPostalPattern    = regexp.MustCompile(`\b[A-Z]\d[A-Z] \d[A-Z]\d\b`)
	postalCityPattern  = regexp.MustCompile(`\d{4,6}\s+[A-Z][a-z]+`)
	accentedRunes      = regexp.MustCompile(`[àáâãäåçèéêëìíîïñòóôõöùúûüýÿ]`)
	accentedPlaceShape = regexp.MustCompile(`[A-Z][a-zàáâãäåçèéêëìíîïñòóôõöùúûüýÿ]+,?\s`)
)

// isUpperWord reports whether w consists of letters that are all uppercase,
// with at least one letter.
func isUpperWord(w string) bool {
	hasLetter := false
	for _, r := range w {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}

// ContainsGeographicIndicator reports whether text carries any positive
// signal of a place name: a country or region, a state code after a comma,
// a major-city substring, a special code, a locality suffix, or a postal
// code pattern.
func (s *Snapshot) ContainsGeographicIndicator(text string) bool {
	if text == "" {
		return false
	}

	for _, country := range s.countries {
		if strings.Contains(text, country) {
			return true
		}
	}

	// State or province code after a comma ("Portland, OR").
	parts := strings.Split(text, ",")
	for _, part := range parts[1:] {
		part = strings.TrimSpace(part)
		if _, ok := s.states[part]; ok {
			return true
		}
		for _, word := range strings.Fields(part) {
			if len(word) == 2 {
				if _, ok := s.states[word]; ok {
					return true
				}
			}
		}
	}

	for _, city := range s.cities {
		if strings.Contains(text, city) {
			return true
		}
	}

	for code := range s.specialCodes {
		if strings.Contains(text, code) {
			return true
		}
	}

	for _, suffix := range s.suffixes {
		if strings.HasSuffix(text, " "+suffix) {
			return true
		}
	}

	return usZipPattern.MatchString(text) || caPostalPattern.MatchString(text)
}

// IsDescription reports whether text reads like a company description
// rather than a place name.
func (s *Snapshot) IsDescription(text string) bool {
	if text == "" {
		return true
	}
	if utf8.RuneCountInString(text) > 60 {
		return true
	}
	if idx := strings.Index(text, "."); idx >= 0 && idx < len(text)-1 {
		return true
	}

	words := strings.Fields(text)
	for _, w := range words {
		if len(w) > 2 && isUpperWord(w) {
			if _, ok := departmentTerms[w]; ok {
				return true
			}
		}
	}

	if strings.Contains(strings.ToUpper(text), " AND ") || strings.Contains(text, " & ") {
		return true
	}

	lower := strings.ToLower(text)
	descCount := 0
	for _, w := range descriptionWords {
		if strings.Contains(lower, strings.ToLower(w)) {
			descCount++
		}
	}
	if descCount >= 2 {
		return true
	}
	if descCount > 0 && len(words) > 0 && float64(descCount)/float64(len(words)) > 0.25 {
		return true
	}

	return !s.ContainsGeographicIndicator(text)
}

// Score rates text as a geographic location with a confidence in [0, 100].
// The score is a rule-weighted heuristic, not a probability; identical input
// and snapshot always produce the identical score.
func (s *Snapshot) Score(text string) int {
	// Length gates count characters, not bytes, so accented names are not
	// penalized for their encoding.
	if n := utf8.RuneCountInString(text); text == "" || n > 50 || n < 3 {
		return 0
	}

	// Department and business-unit labels lean on all-caps words.
	words := strings.Fields(text)
	upperCount := 0
	for _, w := range words {
		if len(w) > 2 && isUpperWord(w) {
			upperCount++
		}
	}
	if upperCount >= 2 || (len(words) <= 3 && upperCount == len(words)) {
		return 0
	}

	if s.IsDescription(text) {
		return 0
	}

	confidence := 0
	if s.KnownLocation(text) {
		confidence += 80
	}
	if s.ContainsGeographicIndicator(text) {
		confidence += 50
	}

	lower := strings.ToLower(text)
	for _, w := range localityWords {
		if strings.Contains(lower, w) {
			confidence += 20
			break
		}
	}

	for _, phrase := range marketingPhrases {
		if strings.Contains(lower, phrase) {
			return 0
		}
	}
	if strings.ContainsAny(text, ":!?") {
		return 0
	}

	if strings.Contains(text, ",") {
		confidence += 30
	}
	if postalCityPattern.MatchString(text) {
		confidence += 40
	}

	for code := range s.specialCodes {
		if strings.Contains(text, code) {
			confidence += 40
			break
		}
	}

	if accentedRunes.MatchString(text) && accentedPlaceShape.MatchString(text) {
		confidence += 30
	}

	if s.KnownLocationNormalized(text) {
		confidence += 50
	}

	if confidence > 100 {
		confidence = 100
	}
	return confidence
}

// Package extract recovers organization name, location, and description from
// the noisy concatenated text blocks the directory renders per company. The
// three fields arrive entangled in one string with no reliable separators,
// so extraction is an ordered chain of heuristics over a geographic
// knowledge base, followed by a repair pass for known failure modes.
package extract

// Input is one scraped block handed to the extractor: the raw block text
// plus whatever structure the crawl driver could pull from sub-elements.
type Input struct {
	Text          string
	URL           string
	LogoURL       string
	LocationHints []string // candidate location strings from markup metadata
	Founders      []FounderCandidate
}

// Candidate is the tentative record produced for one block. It is a value
// type: every repair step returns a new Candidate rather than mutating a
// shared one, so each rule can be tested in isolation. Candidates live only
// inside the pipeline and are discarded after reconciliation.
type Candidate struct {
	RawText     string
	Name        string
	Location    string
	Description string
	Cohort      string
	URL         string
	LogoURL     string
	Founders    []FounderCandidate

	// LocationConfidence is the classifier score for Location at the time
	// it was accepted, kept for logging and tie-breaks.
	LocationConfidence int
}

// FounderCandidate is a tentative person record attached to a Candidate.
type FounderCandidate struct {
	Name        string
	Title       string
	RoleType    string
	Bio         string
	Background  string
	LinkedInURL string
	TwitterURL  string
	GitHubURL   string
}

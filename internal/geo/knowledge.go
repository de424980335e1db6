// Package geo holds the geographic knowledge base and the rule-based
// location classifier built on top of it. The knowledge base combines a
// static seed with location strings previously accepted into the store;
// refreshes build a whole new snapshot and swap it atomically so readers
// never observe a partially built index.
package geo

import (
	"context"
	_ "embed"
	"sort"
	"strings"
	"sync/atomic"
	"unicode"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var seedYAML []byte

// fallbackPrefixes are always present in the prefix index, even before the
// first refresh has pulled anything from the store.
var fallbackPrefixes = []string{"San", "New", "Los"}

type seedData struct {
	Countries        []string          `yaml:"countries"`
	Regions          []string          `yaml:"regions"`
	StatesProvinces  []string          `yaml:"states_provinces"`
	MajorCities      []string          `yaml:"major_cities"`
	SpecialCodes     map[string]string `yaml:"special_codes"`
	LocalitySuffixes []string          `yaml:"locality_suffixes"`
}

// Snapshot is an immutable view of the knowledge base. All lookups during a
// classification run go through one snapshot, so a concurrent refresh can
// never change results mid-record.
type Snapshot struct {
	countries       []string
	states          map[string]struct{}
	cities          []string
	specialCodes    map[string]string
	suffixes        []string
	knownLocations  map[string]struct{}
	normalizedKnown map[string]struct{}
	prefixes        []string
}

// Cities returns the major-city list, longest name first so substring scans
// prefer the most specific match.
func (s *Snapshot) Cities() []string { return s.cities }

// Prefixes returns the locality prefix index (first words of known
// multi-word locations plus the fixed fallbacks).
func (s *Snapshot) Prefixes() []string { return s.prefixes }

// SpecialCodes returns the special location code table.
func (s *Snapshot) SpecialCodes() map[string]string { return s.specialCodes }

// KnownLocation reports whether text exactly matches an accepted location.
func (s *Snapshot) KnownLocation(text string) bool {
	_, ok := s.knownLocations[text]
	return ok
}

// KnownLocationNormalized reports whether the diacritic-stripped form of
// text matches a known location.
func (s *Snapshot) KnownLocationNormalized(text string) bool {
	_, ok := s.normalizedKnown[StripDiacritics(text)]
	return ok
}

var diacriticStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// StripDiacritics removes combining marks ("São Paulo" -> "Sao Paulo").
func StripDiacritics(text string) string {
	out, _, err := transform.String(diacriticStripper, text)
	if err != nil {
		return text
	}
	return out
}

func buildSnapshot(seed seedData, locations []string) *Snapshot {
	snap := &Snapshot{
		states:          make(map[string]struct{}, len(seed.StatesProvinces)),
		specialCodes:    make(map[string]string, len(seed.SpecialCodes)),
		suffixes:        seed.LocalitySuffixes,
		knownLocations:  make(map[string]struct{}, len(locations)),
		normalizedKnown: make(map[string]struct{}, len(locations)),
	}

	snap.countries = append(snap.countries, seed.Countries...)
	snap.countries = append(snap.countries, seed.Regions...)
	for _, st := range seed.StatesProvinces {
		snap.states[st] = struct{}{}
	}
	snap.cities = append(snap.cities, seed.MajorCities...)
	sort.Slice(snap.cities, func(i, j int) bool { return len(snap.cities[i]) > len(snap.cities[j]) })
	for code, name := range seed.SpecialCodes {
		snap.specialCodes[code] = name
	}

	prefixSet := make(map[string]struct{})
	for _, p := range fallbackPrefixes {
		prefixSet[p] = struct{}{}
	}
	for _, loc := range locations {
		snap.knownLocations[loc] = struct{}{}
		snap.normalizedKnown[StripDiacritics(loc)] = struct{}{}

		words := strings.Fields(loc)
		if len(words) > 1 && len(words[0]) >= 2 {
			prefixSet[words[0]] = struct{}{}
		}
	}
	for p := range prefixSet {
		snap.prefixes = append(snap.prefixes, p)
	}
	sort.Strings(snap.prefixes)

	return snap
}

// LocationSource yields the distinct location strings previously accepted
// into the store.
type LocationSource interface {
	DistinctLocations(ctx context.Context) ([]string, error)
}

// Index owns the current knowledge-base snapshot and refreshes it from a
// LocationSource. Safe for concurrent readers.
type Index struct {
	seed seedData
	snap atomic.Pointer[Snapshot]
}

// NewIndex builds an Index from the embedded seed with an empty
// store-derived location set.
func NewIndex() (*Index, error) {
	var seed seedData
	if err := yaml.Unmarshal(seedYAML, &seed); err != nil {
		return nil, eris.Wrap(err, "geo: parse seed")
	}
	idx := &Index{seed: seed}
	idx.snap.Store(buildSnapshot(seed, nil))
	return idx, nil
}

// Snapshot returns the current snapshot. Callers hold it for the duration of
// one record's classification.
func (i *Index) Snapshot() *Snapshot {
	return i.snap.Load()
}

// Refresh rebuilds the snapshot from the store's distinct locations,
// dropping strings that look like descriptions rather than places. On a
// read error the previous snapshot stays in place.
func (i *Index) Refresh(ctx context.Context, src LocationSource) error {
	locations, err := src.DistinctLocations(ctx)
	if err != nil {
		zap.L().Error("geo: refresh failed, keeping previous snapshot", zap.Error(err))
		return eris.Wrap(err, "geo: refresh locations")
	}

	// Filter into a fresh slice; the source may retain the one it returned.
	current := i.Snapshot()
	kept := make([]string, 0, len(locations))
	for _, loc := range locations {
		if len(loc) <= 2 {
			continue
		}
		if current.IsDescription(loc) {
			continue
		}
		kept = append(kept, loc)
	}

	next := buildSnapshot(i.seed, kept)
	i.snap.Store(next)

	zap.L().Info("geo: knowledge base refreshed",
		zap.Int("locations", len(kept)),
		zap.Int("prefixes", len(next.prefixes)),
	)
	return nil
}

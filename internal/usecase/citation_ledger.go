package usecase

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bytelense/backend/internal/domain"
)

const maxSnippetLength = 200

var citationMarkerRegex = regexp.MustCompile(`\[(\d+)\]`)

// authorityScores ranks source types by how much their claims are trusted
var authorityScores = map[string]float64{
	domain.SourceTypeOpenFoodFacts: 0.9,
	domain.SourceTypeWHO:           0.95,
	domain.SourceTypeFDA:           0.95,
	domain.SourceTypeUSDA:          0.95,
	domain.SourceTypeSearXNG:       0.7,
}

const defaultAuthorityScore = 0.6

// CitationLedger collects the evidence sources used during a single scan.
// A ledger must never be shared between scans.
type CitationLedger struct {
	mutex   sync.Mutex
	sources []domain.CitationSource
	byURL   map[string]int
	now     func() time.Time
}

// NewCitationLedger creates an empty ledger
func NewCitationLedger() *CitationLedger {
	return newCitationLedgerWithClock(time.Now)
}

func newCitationLedgerWithClock(now func() time.Time) *CitationLedger {
	return &CitationLedger{
		byURL: make(map[string]int),
		now:   now,
	}
}

// Add registers a source and returns its citation id.
// Adding a URL that is already registered returns the existing id unchanged.
func (l *CitationLedger) Add(sourceURL, title, snippet, sourceType string) int {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if id, ok := l.byURL[sourceURL]; ok {
		return id
	}

	id := len(l.sources) + 1
	l.sources = append(l.sources, domain.CitationSource{
		ID:             id,
		URL:            sourceURL,
		Title:          title,
		Snippet:        truncateRunes(snippet, maxSnippetLength),
		SourceType:     sourceType,
		AuthorityScore: AuthorityScore(sourceType),
		AccessedAt:     l.now(),
	})
	l.byURL[sourceURL] = id

	return id
}

// Sources returns a copy of the registered sources in id order
func (l *CitationLedger) Sources() []domain.CitationSource {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	out := make([]domain.CitationSource, len(l.sources))
	copy(out, l.sources)
	return out
}

// Len returns the number of registered sources
func (l *CitationLedger) Len() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return len(l.sources)
}

// UnknownIDs returns the [n] markers in texts that point at no registered source, without duplicates
func (l *CitationLedger) UnknownIDs(texts ...string) []int {
	l.mutex.Lock()
	count := len(l.sources)
	l.mutex.Unlock()

	var unknown []int
	seen := make(map[int]bool)
	for _, text := range texts {
		for _, id := range ExtractCitationIDs(text) {
			if (id >= 1 && id <= count) || seen[id] {
				continue
			}
			seen[id] = true
			unknown = append(unknown, id)
		}
	}
	return unknown
}

// Clear resets the ledger so ids start from 1 again
func (l *CitationLedger) Clear() {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.sources = nil
	l.byURL = make(map[string]int)
}

// AuthorityScore returns the trust weight for a source type
func AuthorityScore(sourceType string) float64 {
	if score, ok := authorityScores[sourceType]; ok {
		return score
	}
	return defaultAuthorityScore
}

// ExtractCitationIDs returns the ids of all [n] markers in text, in order of appearance
func ExtractCitationIDs(text string) []int {
	matches := citationMarkerRegex.FindAllStringSubmatch(text, -1)
	ids := make([]int, 0, len(matches))
	for _, m := range matches {
		id, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// SourceTypeForURL classifies a web result by the authority that published it
func SourceTypeForURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return domain.SourceTypeSearXNG
	}

	host := strings.ToLower(parsed.Hostname())
	switch {
	case hostUnder(host, "who.int"):
		return domain.SourceTypeWHO
	case hostUnder(host, "fda.gov"):
		return domain.SourceTypeFDA
	case hostUnder(host, "usda.gov"):
		return domain.SourceTypeUSDA
	case hostUnder(host, "openfoodfacts.org"):
		return domain.SourceTypeOpenFoodFacts
	default:
		return domain.SourceTypeSearXNG
	}
}

func hostUnder(host, domainName string) bool {
	return host == domainName || strings.HasSuffix(host, "."+domainName)
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

package usecase

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytelense/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCitationLedger_AddIsIdempotentOnURL(t *testing.T) {
	ledger := NewCitationLedger()

	first := ledger.Add("https://example.com/a", "A", "snippet", domain.SourceTypeSearXNG)
	again := ledger.Add("https://example.com/a", "A again", "other", domain.SourceTypeWHO)

	assert.Equal(t, 1, first)
	assert.Equal(t, first, again)
	require.Equal(t, 1, ledger.Len())
	assert.Equal(t, "A", ledger.Sources()[0].Title)
}

func TestCitationLedger_SequentialIDs(t *testing.T) {
	ledger := NewCitationLedger()

	assert.Equal(t, 1, ledger.Add("https://example.com/a", "A", "", domain.SourceTypeSearXNG))
	assert.Equal(t, 2, ledger.Add("https://example.com/b", "B", "", domain.SourceTypeSearXNG))

	sources := ledger.Sources()
	require.Len(t, sources, 2)
	assert.Equal(t, 1, sources[0].ID)
	assert.Equal(t, 2, sources[1].ID)
}

func TestCitationLedger_SourceFields(t *testing.T) {
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	ledger := newCitationLedgerWithClock(func() time.Time { return fixed })

	ledger.Add("https://world.openfoodfacts.org/product/123", "Oats - OpenFoodFacts", strings.Repeat("é", 250), domain.SourceTypeOpenFoodFacts)

	source := ledger.Sources()[0]
	assert.Equal(t, 200, len([]rune(source.Snippet)))
	assert.Equal(t, 0.9, source.AuthorityScore)
	assert.Equal(t, fixed, source.AccessedAt)
}

func TestCitationLedger_Clear(t *testing.T) {
	ledger := NewCitationLedger()
	ledger.Add("https://example.com/a", "A", "", domain.SourceTypeSearXNG)
	ledger.Add("https://example.com/b", "B", "", domain.SourceTypeSearXNG)

	ledger.Clear()

	assert.Equal(t, 0, ledger.Len())
	assert.Equal(t, 1, ledger.Add("https://example.com/b", "B", "", domain.SourceTypeSearXNG))
}

func TestCitationLedger_ConcurrentAdd(t *testing.T) {
	ledger := NewCitationLedger()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ledger.Add("https://example.com/shared", "Shared", "", domain.SourceTypeSearXNG)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ledger.Len())
}

func TestAuthorityScore(t *testing.T) {
	tests := []struct {
		sourceType string
		expected   float64
	}{
		{domain.SourceTypeWHO, 0.95},
		{domain.SourceTypeFDA, 0.95},
		{domain.SourceTypeUSDA, 0.95},
		{domain.SourceTypeOpenFoodFacts, 0.9},
		{domain.SourceTypeSearXNG, 0.7},
		{"blog", 0.6},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, AuthorityScore(tt.sourceType), tt.sourceType)
	}
}

func TestExtractCitationIDs(t *testing.T) {
	assert.Equal(t, []int{1, 3, 2}, ExtractCitationIDs("High sodium [1], low fiber [3] and sugar [2]."))
	assert.Empty(t, ExtractCitationIDs("no markers [a] here"))
}

func TestCitationLedger_UnknownIDs(t *testing.T) {
	ledger := NewCitationLedger()
	ledger.Add("https://world.openfoodfacts.org/product/1", "Oats", "", domain.SourceTypeOpenFoodFacts)
	ledger.Add("https://www.who.int/healthy-diet", "Healthy diet", "", domain.SourceTypeWHO)

	assert.Empty(t, ledger.UnknownIDs("Fiber [1] and guidance [2]"))
	assert.Equal(t, []int{4, 0}, ledger.UnknownIDs("Claim [4] and [1]", "Again [4], zero [0]"))
	assert.Empty(t, NewCitationLedger().UnknownIDs("plain text"))
}

func TestSourceTypeForURL(t *testing.T) {
	tests := []struct {
		url      string
		expected string
	}{
		{"https://www.who.int/news-room/fact-sheets/detail/healthy-diet", domain.SourceTypeWHO},
		{"https://www.fda.gov/food/nutrition-facts-label", domain.SourceTypeFDA},
		{"https://fdc.nal.usda.gov/fdc-app.html", domain.SourceTypeUSDA},
		{"https://world.openfoodfacts.org/product/1", domain.SourceTypeOpenFoodFacts},
		{"https://notwho.int.example.com/", domain.SourceTypeSearXNG},
		{"https://blog.example.com/sugar", domain.SourceTypeSearXNG},
		{"::bad url", domain.SourceTypeSearXNG},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, SourceTypeForURL(tt.url), tt.url)
	}
}

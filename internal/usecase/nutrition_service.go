package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bytelense/backend/internal/domain"
	"github.com/bytelense/backend/internal/infrastructure/usda"
	"github.com/rs/zerolog"
)

// Package-level compiled regex patterns for performance
var (
	nonAlphanumericRegex = regexp.MustCompile(`[^a-z0-9\s]`)
	multipleSpacesRegex  = regexp.MustCompile(`\s+`)
)

// Lookup chain step names
const (
	ProviderOpenFoodFactsBarcode = "openfoodfacts_barcode"
	ProviderOpenFoodFactsSearch  = "openfoodfacts_search"
	ProviderUSDASearch           = "usda_search"
)

// Provider call outcomes
const (
	outcomeHit     = "hit"
	outcomeMiss    = "miss"
	outcomeError   = "error"
	outcomeTimeout = "timeout"
)

// NutritionServiceConfig holds configuration for the nutrition service
type NutritionServiceConfig struct {
	CacheTTL        time.Duration
	ProviderTimeout time.Duration
}

// NutritionService resolves nutrition data through an ordered provider chain with caching
type NutritionService struct {
	cache           domain.CacheRepository
	providers       []domain.NutritionProvider
	cacheTTL        time.Duration
	providerTimeout time.Duration
	metrics         domain.MetricsRecorder
	logger          zerolog.Logger
}

// NewNutritionService creates a new nutrition service. Providers are tried in order.
func NewNutritionService(
	cache domain.CacheRepository,
	providers []domain.NutritionProvider,
	metrics domain.MetricsRecorder,
	logger zerolog.Logger,
	config NutritionServiceConfig,
) *NutritionService {
	cacheTTL := config.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 720 * time.Hour // Default 30 days
	}

	timeout := config.ProviderTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	if metrics == nil {
		metrics = domain.NopMetrics{}
	}

	return &NutritionService{
		cache:           cache,
		providers:       providers,
		cacheTTL:        cacheTTL,
		providerTimeout: timeout,
		metrics:         metrics,
		logger:          logger.With().Str("component", "nutrition").Logger(),
	}
}

// Lookup resolves nutrition data for a product.
// Flow: check cache -> try each provider in order -> cache first hit -> return.
// Provider failures are logged and skipped; only ctx cancellation is returned as-is.
func (s *NutritionService) Lookup(ctx context.Context, query domain.LookupQuery) (*domain.NutritionRecord, error) {
	if query.Empty() {
		return nil, domain.ErrProductNotFound
	}

	cacheKey := generateCacheKey(query)

	start := time.Now()
	if cached, err := s.getFromCache(ctx, cacheKey); err == nil {
		s.metrics.ProviderCall(domain.SourceCache, outcomeHit, time.Since(start))
		s.logger.Debug().Str("key", cacheKey).Str("resolved_by", cached.ResolvedBy).Bool("cache_hit", true).Msg("cache hit")
		return cached, nil
	}

	for _, provider := range s.providers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, err := s.resolve(ctx, provider, query)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}

		record.ResolvedBy = provider.Name()
		if zeroed := record.ZeroNonFinite(); zeroed > 0 {
			s.logger.Warn().Str("provider", provider.Name()).Int("fields", zeroed).Msg("zeroed non-finite nutrient values")
		}
		if record.RetrievedAt.IsZero() {
			record.RetrievedAt = time.Now()
		}

		if err := s.setInCache(ctx, cacheKey, record); err != nil {
			s.logger.Warn().Err(err).Str("key", cacheKey).Msg("failed to cache nutrition record")
		}
		return record, nil
	}

	return nil, domain.ErrProductNotFound
}

// resolve runs one provider under its own deadline and records the outcome
func (s *NutritionService) resolve(
	ctx context.Context,
	provider domain.NutritionProvider,
	query domain.LookupQuery,
) (*domain.NutritionRecord, error) {
	stepCtx, cancel := context.WithTimeout(ctx, s.providerTimeout)
	defer cancel()

	start := time.Now()
	record, err := provider.Resolve(stepCtx, query)
	elapsed := time.Since(start)

	log := s.logger.With().Str("provider", provider.Name()).Dur("elapsed", elapsed).Logger()

	switch {
	case err == nil && record != nil:
		s.metrics.ProviderCall(provider.Name(), outcomeHit, elapsed)
		log.Info().Str("product", record.ProductName).Msg("provider resolved product")
		return record, nil
	case err == nil:
		err = domain.ErrProductNotFound
		fallthrough
	case errors.Is(err, domain.ErrProductNotFound), errors.Is(err, domain.ErrLowConfidence):
		s.metrics.ProviderCall(provider.Name(), outcomeMiss, elapsed)
		log.Debug().Err(err).Msg("provider had no match")
	case errors.Is(stepCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		s.metrics.ProviderCall(provider.Name(), outcomeTimeout, elapsed)
		log.Warn().Err(err).Msg("provider timed out")
	default:
		s.metrics.ProviderCall(provider.Name(), outcomeError, elapsed)
		log.Warn().Err(err).Msg("provider failed")
	}
	return nil, err
}

// generateCacheKey creates a normalized cache key from a lookup query.
// Format: "nutrition:barcode:{barcode}" or "nutrition:name:{normalized_name}:{brand}"
func generateCacheKey(query domain.LookupQuery) string {
	if query.Barcode != "" {
		return "nutrition:barcode:" + strings.TrimSpace(query.Barcode)
	}
	return fmt.Sprintf("nutrition:name:%s:%s", normalizeForCacheKey(query.Name), normalizeForCacheKey(query.Brand))
}

// normalizeForCacheKey normalizes a string for use as cache key component.
// Converts to lowercase, removes special characters, and trims whitespace.
func normalizeForCacheKey(s string) string {
	if s == "" {
		return ""
	}
	result := strings.ToLower(s)
	result = nonAlphanumericRegex.ReplaceAllString(result, "")
	result = multipleSpacesRegex.ReplaceAllString(result, " ")
	return strings.TrimSpace(result)
}

// getFromCache retrieves a copy of a cached nutrition record
func (s *NutritionService) getFromCache(ctx context.Context, key string) (*domain.NutritionRecord, error) {
	if s.cache == nil {
		return nil, domain.ErrCacheMiss
	}

	value, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	if record, ok := value.(*domain.NutritionRecord); ok {
		clone := *record
		return &clone, nil
	}

	// Values from a serializing cache come back as generic JSON
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, domain.ErrCacheMiss
	}
	var record domain.NutritionRecord
	if err := json.Unmarshal(raw, &record); err != nil || record.ProductName == "" {
		return nil, domain.ErrCacheMiss
	}
	return &record, nil
}

// setInCache stores a copy of the record so callers can't mutate the cached value
func (s *NutritionService) setInCache(ctx context.Context, key string, record *domain.NutritionRecord) error {
	if s.cache == nil {
		return nil
	}
	clone := *record
	return s.cache.Set(ctx, key, &clone, s.cacheTTL)
}

// OpenFoodFactsBarcodeProvider looks up a product by exact barcode
type OpenFoodFactsBarcodeProvider struct {
	client domain.OpenFoodFactsClient
}

// NewOpenFoodFactsBarcodeProvider creates the barcode step of the lookup chain
func NewOpenFoodFactsBarcodeProvider(client domain.OpenFoodFactsClient) *OpenFoodFactsBarcodeProvider {
	return &OpenFoodFactsBarcodeProvider{client: client}
}

func (p *OpenFoodFactsBarcodeProvider) Name() string { return ProviderOpenFoodFactsBarcode }

func (p *OpenFoodFactsBarcodeProvider) Resolve(ctx context.Context, query domain.LookupQuery) (*domain.NutritionRecord, error) {
	if query.Barcode == "" {
		return nil, domain.ErrProductNotFound
	}
	return p.client.GetProduct(ctx, query.Barcode)
}

// OpenFoodFactsSearchProvider runs a text search and keeps the best-matching product
type OpenFoodFactsSearchProvider struct {
	client  domain.OpenFoodFactsClient
	matcher *MatchingService
}

// NewOpenFoodFactsSearchProvider creates the text search step of the lookup chain
func NewOpenFoodFactsSearchProvider(client domain.OpenFoodFactsClient, matcher *MatchingService) *OpenFoodFactsSearchProvider {
	return &OpenFoodFactsSearchProvider{client: client, matcher: matcher}
}

func (p *OpenFoodFactsSearchProvider) Name() string { return ProviderOpenFoodFactsSearch }

func (p *OpenFoodFactsSearchProvider) Resolve(ctx context.Context, query domain.LookupQuery) (*domain.NutritionRecord, error) {
	if query.Name == "" {
		return nil, domain.ErrProductNotFound
	}

	products, err := p.client.SearchProducts(ctx, strings.TrimSpace(query.Brand+" "+query.Name))
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, domain.ErrProductNotFound
	}

	candidates := make([]MatchCandidate, len(products))
	for i, product := range products {
		candidates[i] = MatchCandidate{
			ID:          strconv.Itoa(i),
			Description: product.ProductName,
			Brand:       product.Brand,
		}
	}

	match, err := p.matcher.FindBestMatch(ctx, query.Name, query.Brand, candidates)
	if err != nil {
		return nil, err
	}

	idx, _ := strconv.Atoi(match.FdcID)
	record := products[idx]
	return &record, nil
}

// USDASearchProvider searches FoodData Central and maps the best candidate
type USDASearchProvider struct {
	client       domain.USDAClient
	matcher      *MatchingService
	preprocessor *QueryPreprocessor
}

// NewUSDASearchProvider creates the USDA step of the lookup chain
func NewUSDASearchProvider(client domain.USDAClient, matcher *MatchingService, preprocessor *QueryPreprocessor) *USDASearchProvider {
	return &USDASearchProvider{client: client, matcher: matcher, preprocessor: preprocessor}
}

func (p *USDASearchProvider) Name() string { return ProviderUSDASearch }

func (p *USDASearchProvider) Resolve(ctx context.Context, query domain.LookupQuery) (*domain.NutritionRecord, error) {
	if query.Name == "" {
		return nil, domain.ErrProductNotFound
	}

	name := p.preprocessor.PreprocessQuery(query.Name, "")
	if name == "" {
		return nil, domain.ErrProductNotFound
	}
	searchQuery := p.preprocessor.PreprocessQuery(query.Name, query.Brand)

	searchResult, err := p.client.SearchFoods(ctx, searchQuery)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUSDAAPIFailure, err)
	}
	if searchResult == nil || len(searchResult.Foods) == 0 {
		return nil, domain.ErrProductNotFound
	}

	candidates := make([]MatchCandidate, len(searchResult.Foods))
	for i, food := range searchResult.Foods {
		candidates[i] = MatchCandidate{
			ID:          strconv.Itoa(food.FdcID),
			Description: food.Description,
			Brand:       food.BrandOwner,
			DataType:    food.DataType,
		}
	}

	match, err := p.matcher.FindBestMatch(ctx, name, query.Brand, candidates)
	if err != nil {
		// Low confidence USDA matches are worse than no data
		return nil, err
	}

	for i := range searchResult.Foods {
		food := &searchResult.Foods[i]
		if strconv.Itoa(food.FdcID) != match.FdcID {
			continue
		}
		if len(food.Nutrients) == 0 {
			food = p.fetchDetails(ctx, food)
		}
		return usda.MapToNutritionRecord(food, match.MatchScore/100), nil
	}
	return nil, domain.ErrProductNotFound
}

// fetchDetails loads the full nutrient list for a search hit that came back without one.
// The search hit is kept when the detail call fails.
func (p *USDASearchProvider) fetchDetails(ctx context.Context, food *domain.USDAFood) *domain.USDAFood {
	detailed, err := p.client.GetFoodDetails(ctx, strconv.Itoa(food.FdcID))
	if err != nil || detailed == nil || len(detailed.Nutrients) == 0 {
		return food
	}
	return detailed
}

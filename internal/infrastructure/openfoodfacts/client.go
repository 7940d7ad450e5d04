package openfoodfacts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/bytelense/backend/internal/domain"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL  = "https://world.openfoodfacts.org"
	defaultTimeout  = 3 * time.Second
	searchPageSize  = 5
	maxBodySize     = 5 << 20
	maxErrorSnippet = 256
)

// Config holds OpenFoodFacts client settings
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 disables limiting
	UserAgent string
}

// Client talks to the OpenFoodFacts product database
type Client struct {
	httpClient  *http.Client
	baseURL     string
	userAgent   string
	rateLimiter *rate.Limiter
	logger      zerolog.Logger
}

// NewClient creates a new OpenFoodFacts client
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "Bytelense/1.0"
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 5)
	}

	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     baseURL,
		userAgent:   userAgent,
		rateLimiter: limiter,
		logger:      logger.With().Str("component", "openfoodfacts").Logger(),
	}
}

type productResponse struct {
	Status  int      `json:"status"`
	Code    string   `json:"code"`
	Product *product `json:"product"`
}

type searchResponse struct {
	Count    int       `json:"count"`
	Products []product `json:"products"`
}

// GetProduct looks up a product by exact barcode
func (c *Client) GetProduct(ctx context.Context, barcode string) (*domain.NutritionRecord, error) {
	endpoint := fmt.Sprintf("%s/api/v2/product/%s.json", c.baseURL, url.PathEscape(barcode))

	var resp productResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}

	if resp.Status != 1 || resp.Product == nil {
		c.logger.Debug().Str("barcode", barcode).Msg("product not found")
		return nil, domain.ErrProductNotFound
	}

	return mapProduct(resp.Product, barcode), nil
}

// SearchProducts runs a full text search and returns up to five candidates
func (c *Client) SearchProducts(ctx context.Context, query string) ([]domain.NutritionRecord, error) {
	params := url.Values{}
	params.Set("search_terms", query)
	params.Set("search_simple", "1")
	params.Set("action", "process")
	params.Set("json", "1")
	params.Set("page_size", fmt.Sprint(searchPageSize))

	endpoint := fmt.Sprintf("%s/cgi/search.pl?%s", c.baseURL, params.Encode())

	var resp searchResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}

	records := make([]domain.NutritionRecord, 0, len(resp.Products))
	for i := range resp.Products {
		p := &resp.Products[i]
		if p.ProductName == "" && p.ProductNameEN == "" {
			continue
		}
		records = append(records, *mapProduct(p, p.Code))
	}

	c.logger.Debug().Str("query", query).Int("count", len(records)).Msg("search finished")
	return records, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrRateLimited, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrOpenFoodFactsFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.ErrProductNotFound
	}
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorSnippet))
		return fmt.Errorf("%w: status %d, body: %s", domain.ErrOpenFoodFactsFailure, resp.StatusCode, string(snippet))
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", domain.ErrOpenFoodFactsFailure, err)
	}
	return nil
}

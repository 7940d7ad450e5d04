package searxng

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytelense/backend/internal/domain"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout = 5 * time.Second
	maxBodySize    = 5 << 20
)

// Config holds SearXNG client settings
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	Language  string
	RateLimit float64 // requests per second, 0 disables limiting
}

// Client queries a SearXNG instance through its JSON API
type Client struct {
	httpClient  *http.Client
	baseURL     string
	language    string
	rateLimiter *rate.Limiter
	logger      zerolog.Logger
}

// NewClient creates a SearXNG client
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	lang := cfg.Language
	if lang == "" {
		lang = "en"
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 3)
	}

	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		language:    lang,
		rateLimiter: limiter,
		logger:      logger.With().Str("component", "searxng").Logger(),
	}
}

type searchResponse struct {
	Query   string `json:"query"`
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
		Engine  string `json:"engine"`
	} `json:"results"`
}

// Search runs a general web search and returns at most maxResults hits
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]domain.SearchResult, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRateLimited, err)
	}

	resp, err := c.get(ctx, query)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn().Int("status", resp.StatusCode).Str("query", query).Msg("search returned non-200")
		return nil, fmt.Errorf("%w: status %d", domain.ErrSearchFailure, resp.StatusCode)
	}

	var payload searchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", domain.ErrSearchFailure, err)
	}

	results := make([]domain.SearchResult, 0, min(len(payload.Results), max(maxResults, 0)))
	for _, r := range payload.Results {
		if len(results) >= maxResults {
			break
		}
		results = append(results, domain.SearchResult{
			Title:   r.Title,
			URL:     r.URL,
			Content: r.Content,
			Engine:  r.Engine,
		})
	}

	c.logger.Debug().Str("query", query).Int("count", len(results)).Msg("search finished")
	return results, nil
}

// Ping issues a search and only checks that the instance answered 200
func (c *Client) Ping(ctx context.Context, word string) error {
	resp, err := c.get(ctx, word)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", domain.ErrSearchFailure, resp.StatusCode)
	}
	return nil
}

func (c *Client) get(ctx context.Context, query string) (*http.Response, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("categories", "general")
	params.Set("lang", c.language)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSearchFailure, err)
	}
	return resp, nil
}

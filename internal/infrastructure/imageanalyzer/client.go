// Package imageanalyzer talks to the barcode/OCR sidecar service.
package imageanalyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytelense/backend/internal/domain"
	"github.com/rs/zerolog"
)

// Analysis methods reported in results
const (
	MethodBarcode = "barcode"
	MethodOCR     = "ocr"
	MethodNone    = "none"
)

// Config holds analyzer connection settings
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client sends product photos to the analyzer service
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a new analyzer client
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "imageanalyzer").Logger(),
	}
}

type analyzeResponse struct {
	Barcode    string  `json:"barcode"`
	OCRText    string  `json:"ocr_text"`
	Confidence float64 `json:"confidence"`
	Method     string  `json:"method"`
}

// Analyze extracts a barcode or label text from the image.
// Failures are logged and reported as an empty result with zero confidence.
func (c *Client) Analyze(ctx context.Context, image []byte) *domain.ImageAnalysisResult {
	start := time.Now()

	resp, err := c.analyze(ctx, image)
	elapsed := float64(time.Since(start).Microseconds()) / 1000
	if err != nil {
		c.logger.Warn().Err(err).Int("bytes", len(image)).Msg("image analysis failed")
		return &domain.ImageAnalysisResult{Method: MethodNone, ProcessingTimeMS: elapsed}
	}

	result := &domain.ImageAnalysisResult{
		Barcode:          strings.TrimSpace(resp.Barcode),
		OCRText:          strings.TrimSpace(resp.OCRText),
		Confidence:       min(max(resp.Confidence, 0), 1),
		Method:           resp.Method,
		ProcessingTimeMS: elapsed,
	}
	if result.Method == "" {
		switch {
		case result.Barcode != "":
			result.Method = MethodBarcode
		case result.OCRText != "":
			result.Method = MethodOCR
		default:
			result.Method = MethodNone
		}
	}

	c.logger.Debug().
		Str("method", result.Method).
		Bool("barcode", result.Barcode != "").
		Int("ocr_chars", len(result.OCRText)).
		Float64("elapsed_ms", elapsed).
		Msg("image analyzed")
	return result
}

func (c *Client) analyze(ctx context.Context, image []byte) (*analyzeResponse, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("analyzer url not configured")
	}
	if len(image) == 0 {
		return nil, fmt.Errorf("empty image")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", http.DetectContentType(image))
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analyzer request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("analyzer returned status %d: %s", resp.StatusCode, string(body))
	}

	var out analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &out, nil
}

package domain

import (
	"context"
	"time"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
)

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// USDAClient defines the interface for interacting with USDA FoodData Central API
type USDAClient interface {
	SearchFoods(ctx context.Context, query string) (*USDASearchResponse, error)
	GetFoodDetails(ctx context.Context, fdcID string) (*USDAFood, error)
}

// OpenFoodFactsClient defines the interface for the OpenFoodFacts product API
type OpenFoodFactsClient interface {
	GetProduct(ctx context.Context, barcode string) (*NutritionRecord, error)
	SearchProducts(ctx context.Context, query string) ([]NutritionRecord, error)
}

// NutritionProvider is one step of the nutrition lookup chain.
// Resolve returns ErrProductNotFound when the step has nothing for the query.
type NutritionProvider interface {
	Name() string
	Resolve(ctx context.Context, query LookupQuery) (*NutritionRecord, error)
}

// ProfileStore persists user profiles keyed by name
type ProfileStore interface {
	Exists(ctx context.Context, name string) (bool, error)
	Load(ctx context.Context, name string) (*UserProfile, error)
	Create(ctx context.Context, profile *UserProfile) error
	Save(ctx context.Context, profile *UserProfile) error
}

// ImageAnalyzer extracts a barcode and text from a product photo.
// It never fails: problems are reported as an empty, zero-confidence result.
type ImageAnalyzer interface {
	Analyze(ctx context.Context, image []byte) *ImageAnalysisResult
}

// SearchResult is a single web search hit
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
	Engine  string `json:"engine,omitempty"`
}

// WebSearcher runs web searches
type WebSearcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error)
}

// ChatMessage is one turn of a model conversation
type ChatMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// LanguageModel produces a completion for a conversation
type LanguageModel interface {
	Complete(ctx context.Context, system string, messages []ChatMessage) (string, error)
}

// ToolHandler executes one agent tool call
type ToolHandler func(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error)

// ScanEvents receives the ordered notifications of a single scan
type ScanEvents interface {
	Progress(event ScanProgress)
	Failed(event ScanError)
	Completed(result ScanResult)
}

// MetricsRecorder collects operational metrics
type MetricsRecorder interface {
	ScanStarted()
	ScanFinished(outcome string, duration time.Duration)
	StageCompleted(stage string, duration time.Duration)
	ProviderCall(provider, outcome string, duration time.Duration)
	AgentRun(iterations int, outcome string)
	FallbackUsed(reason string)
}

// NopMetrics discards all metrics
type NopMetrics struct{}

func (NopMetrics) ScanStarted() {}
func (NopMetrics) ScanFinished(string, time.Duration) {}
func (NopMetrics) StageCompleted(string, time.Duration) {}
func (NopMetrics) ProviderCall(string, string, time.Duration) {}
func (NopMetrics) AgentRun(int, string) {}
func (NopMetrics) FallbackUsed(string) {}

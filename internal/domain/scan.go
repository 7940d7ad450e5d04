package domain

import (
	"fmt"
	"time"
)

// Verdicts
const (
	VerdictGood     = "good"
	VerdictModerate = "moderate"
	VerdictAvoid    = "avoid"
)

// Scan stages, in pipeline order
const (
	StageDetectingBarcode  = "detecting_barcode"
	StageFetchingNutrition = "fetching_nutrition"
	StageLoadingProfile    = "loading_profile"
	StageAnalyzing         = "analyzing"
	StageGeneratingUI      = "generating_ui"
)

// Scan error codes
const (
	CodeImageDecodeError      = "IMAGE_DECODE_ERROR"
	CodeImageProcessingFailed = "IMAGE_PROCESSING_FAILED"
	CodeProductNotFound       = "PRODUCT_NOT_FOUND"
	CodeProfileNotFound       = "PROFILE_NOT_FOUND"
	CodeInternalError         = "INTERNAL_ERROR"
	CodeScanCancelled         = "SCAN_CANCELLED"
)

// OutcomeCompleted labels a scan that finished with a result
const OutcomeCompleted = "COMPLETED"

// Citation source types
const (
	SourceTypeOpenFoodFacts = "openfoodfacts"
	SourceTypeUSDA          = "usda"
	SourceTypeWHO           = "who"
	SourceTypeFDA           = "fda"
	SourceTypeSearXNG       = "searxng"
)

// ScanRequest is the client payload that starts a scan
type ScanRequest struct {
	UserName    string `json:"user_name" binding:"required,min=1,max=100"`
	ImageBase64 string `json:"image_base64" binding:"required"`
	Source      string `json:"source" binding:"omitempty,oneof=camera upload"`
}

// ImageAnalysisResult is what the image analyzer extracted from the photo
type ImageAnalysisResult struct {
	Barcode          string  `json:"barcode,omitempty"`
	OCRText          string  `json:"ocr_text,omitempty"`
	Confidence       float64 `json:"confidence"`
	Method           string  `json:"method"`
	ProcessingTimeMS float64 `json:"processing_time_ms"`
}

// HasContent reports whether the analyzer found anything usable
func (r *ImageAnalysisResult) HasContent() bool {
	return r != nil && (r.Barcode != "" || r.OCRText != "")
}

// CitationSource is one registered evidence source for a scan
type CitationSource struct {
	ID             int       `json:"id"`
	URL            string    `json:"url"`
	Title          string    `json:"title"`
	Snippet        string    `json:"snippet"`
	SourceType     string    `json:"source_type"`
	AuthorityScore float64   `json:"authority_score"`
	AccessedAt     time.Time `json:"accessed_at"`
}

// ScoringResult is the explainable verdict for a product against a profile
type ScoringResult struct {
	Score             float64          `json:"score"`
	Verdict           string           `json:"verdict"`
	Reasoning         string           `json:"reasoning"`
	Warnings          []string         `json:"warnings"`
	Highlights        []string         `json:"highlights"`
	Citations         []CitationSource `json:"citations"`
	Confidence        float64          `json:"confidence"`
	DataQualityScore  float64          `json:"data_quality_score"`
	ReasoningSteps    []string         `json:"reasoning_steps"`
	FactorsConsidered []string         `json:"factors_considered"`
}

// ComponentSpec is one renderable UI component
type ComponentSpec struct {
	Type  string         `json:"type"`
	Props map[string]any `json:"props"`
	Order int            `json:"order"`
}

// UISchema describes how the client should render a result
type UISchema struct {
	Layout     string          `json:"layout"`
	Theme      string          `json:"theme"`
	Components []ComponentSpec `json:"components"`
}

// ScanResult is the final payload of a successful scan
type ScanResult struct {
	ScanID        string               `json:"scan_id"`
	Timestamp     time.Time            `json:"timestamp"`
	UserName      string               `json:"user_name"`
	ImageAnalysis *ImageAnalysisResult `json:"image_analysis"`
	Nutrition     *NutritionRecord     `json:"nutrition"`
	Scoring       *ScoringResult       `json:"scoring"`
	UISchema      *UISchema            `json:"ui_schema"`
}

// ScanProgress is emitted before each stage starts
type ScanProgress struct {
	ScanID   string  `json:"scan_id"`
	Stage    string  `json:"stage"`
	Progress float64 `json:"progress"`
	Message  string  `json:"message"`
}

// ScanError is the terminal failure of a scan
type ScanError struct {
	ScanID           string   `json:"scan_id"`
	Stage            string   `json:"stage"`
	ErrorCode        string   `json:"error_code"`
	Message          string   `json:"message"`
	Recoverable      bool     `json:"recoverable"`
	RetrySuggestions []string `json:"retry_suggestions"`
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan %s failed at %s: %s (%s)", e.ScanID, e.Stage, e.Message, e.ErrorCode)
}

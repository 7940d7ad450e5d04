package usecase

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"runtime/debug"
	"strings"
	"time"

	"github.com/bytelense/backend/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// NutritionLookup resolves nutrition data for a scanned product
type NutritionLookup interface {
	Lookup(ctx context.Context, query domain.LookupQuery) (*domain.NutritionRecord, error)
}

// Scorer produces a verdict for a product and profile
type Scorer interface {
	Score(ctx context.Context, record *domain.NutritionRecord, profile *domain.UserProfile) (*domain.ScoringResult, error)
}

type stageInfo struct {
	name     string
	progress float64
	message  string
}

var (
	stageDecode    = stageInfo{domain.StageDetectingBarcode, 0.10, "Analyzing image..."}
	stageNutrition = stageInfo{domain.StageFetchingNutrition, 0.30, "Looking up nutrition data..."}
	stageProfile   = stageInfo{domain.StageLoadingProfile, 0.50, "Loading your profile..."}
	stageAnalyze   = stageInfo{domain.StageAnalyzing, 0.60, "Analyzing nutrition against your goals..."}
	stageRender    = stageInfo{domain.StageGeneratingUI, 0.85, "Preparing your personalized verdict..."}
)

var supportedImageFormats = map[string]bool{"jpeg": true, "png": true, "gif": true}

// ScanService runs the scan pipeline: image -> nutrition -> profile -> scoring -> UI
type ScanService struct {
	analyzer     domain.ImageAnalyzer
	nutrition    NutritionLookup
	profiles     domain.ProfileStore
	scorer       Scorer
	preprocessor *QueryPreprocessor
	metrics      domain.MetricsRecorder
	logger       zerolog.Logger
	newID        func() string
	now          func() time.Time
}

// NewScanService creates a new scan orchestrator
func NewScanService(
	analyzer domain.ImageAnalyzer,
	nutrition NutritionLookup,
	profiles domain.ProfileStore,
	scorer Scorer,
	preprocessor *QueryPreprocessor,
	metrics domain.MetricsRecorder,
	logger zerolog.Logger,
) *ScanService {
	if metrics == nil {
		metrics = domain.NopMetrics{}
	}
	return &ScanService{
		analyzer:     analyzer,
		nutrition:    nutrition,
		profiles:     profiles,
		scorer:       scorer,
		preprocessor: preprocessor,
		metrics:      metrics,
		logger:       logger.With().Str("component", "scan").Logger(),
		newID:        uuid.NewString,
		now:          time.Now,
	}
}

// scanRun carries the state of a single scan
type scanRun struct {
	id         string
	stage      string
	stageStart time.Time
	events     domain.ScanEvents
	terminated bool
	logger     zerolog.Logger
}

// Run executes one scan. events receives ordered progress notifications followed by
// exactly one terminal notification. The returned error, if any, is a *domain.ScanError.
func (s *ScanService) Run(ctx context.Context, req domain.ScanRequest, events domain.ScanEvents) (result *domain.ScanResult, err error) {
	run := &scanRun{
		id:     s.newID(),
		events: events,
	}
	run.logger = s.logger.With().Str("scan_id", run.id).Str("user", req.UserName).Logger()

	started := s.now()
	s.metrics.ScanStarted()
	run.logger.Info().Str("source", req.Source).Msg("scan started")

	defer func() {
		if r := recover(); r != nil {
			run.logger.Error().
				Str("stage", run.stage).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("scan panicked")
			result = nil
			err = s.fail(run, domain.CodeInternalError, "An unexpected error occurred", true, "Please try again")
		}

		outcome := domain.OutcomeCompleted
		var scanErr *domain.ScanError
		if errors.As(err, &scanErr) {
			outcome = scanErr.ErrorCode
		}
		s.metrics.ScanFinished(outcome, s.now().Sub(started))
	}()

	result, err = s.execute(ctx, run, req)
	if err != nil {
		return nil, err
	}

	run.terminated = true
	events.Completed(*result)
	run.logger.Info().
		Str("product", result.Nutrition.ProductName).
		Float64("score", result.Scoring.Score).
		Str("verdict", result.Scoring.Verdict).
		Dur("elapsed", s.now().Sub(started)).
		Msg("scan complete")
	return result, nil
}

func (s *ScanService) execute(ctx context.Context, run *scanRun, req domain.ScanRequest) (*domain.ScanResult, error) {
	// Decoding
	if err := s.enter(ctx, run, stageDecode); err != nil {
		return nil, err
	}
	imageBytes, err := DecodeImagePayload(req.ImageBase64)
	if err != nil {
		run.logger.Warn().Err(err).Str("stage", run.stage).Msg("image decode failed")
		return nil, s.fail(run, domain.CodeImageDecodeError, "Invalid image data", true,
			"Upload a JPEG, PNG or GIF photo", "Retake the photo")
	}
	analysis := s.analyzer.Analyze(ctx, imageBytes)
	if err := ctx.Err(); err != nil {
		return nil, s.cancelled(run)
	}
	if !analysis.HasContent() {
		return nil, s.fail(run, domain.CodeImageProcessingFailed, "Could not detect barcode or extract text", true,
			"Try better lighting or a clearer image", "Center the barcode in the frame")
	}
	query := domain.LookupQuery{Barcode: analysis.Barcode}
	if analysis.OCRText != "" {
		query.Name = s.preprocessor.PreprocessOCRText(analysis.OCRText)
	}
	run.logger.Info().
		Str("barcode", query.Barcode).
		Str("query", query.Name).
		Str("method", analysis.Method).
		Msg("image processed")
	s.leave(run)

	// Retrieving
	if err := s.enter(ctx, run, stageNutrition); err != nil {
		return nil, err
	}
	record, err := s.nutrition.Lookup(ctx, query)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return nil, s.cancelled(run)
		case errors.Is(err, domain.ErrProductNotFound):
			return nil, s.fail(run, domain.CodeProductNotFound, "Product not found in database", true,
				"Try scanning the barcode again", "Photograph the product name on the front of the pack")
		default:
			return nil, s.internal(run, err)
		}
	}
	s.leave(run)

	// LoadingProfile
	if err := s.enter(ctx, run, stageProfile); err != nil {
		return nil, err
	}
	profile, err := s.profiles.Load(ctx, req.UserName)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return nil, s.cancelled(run)
		case errors.Is(err, domain.ErrProfileNotFound):
			return nil, s.fail(run, domain.CodeProfileNotFound, "User profile not found", false,
				"Please complete onboarding first")
		default:
			return nil, s.internal(run, err)
		}
	}
	s.leave(run)

	// Analyzing
	if err := s.enter(ctx, run, stageAnalyze); err != nil {
		return nil, err
	}
	scoring, err := s.scorer.Score(ctx, record, profile)
	if err != nil {
		if ctx.Err() != nil {
			return nil, s.cancelled(run)
		}
		return nil, s.internal(run, err)
	}
	s.leave(run)

	// Rendering
	if err := s.enter(ctx, run, stageRender); err != nil {
		return nil, err
	}
	schema := BuildUISchema(scoring)
	s.leave(run)

	return &domain.ScanResult{
		ScanID:        run.id,
		Timestamp:     s.now().UTC(),
		UserName:      req.UserName,
		ImageAnalysis: analysis,
		Nutrition:     record,
		Scoring:       scoring,
		UISchema:      schema,
	}, nil
}

// enter announces a stage; a cancelled context ends the scan instead
func (s *ScanService) enter(ctx context.Context, run *scanRun, stage stageInfo) error {
	run.stage = stage.name
	if ctx.Err() != nil {
		return s.cancelled(run)
	}
	run.stageStart = s.now()
	run.events.Progress(domain.ScanProgress{
		ScanID:   run.id,
		Stage:    stage.name,
		Progress: stage.progress,
		Message:  stage.message,
	})
	return nil
}

func (s *ScanService) leave(run *scanRun) {
	s.metrics.StageCompleted(run.stage, s.now().Sub(run.stageStart))
}

func (s *ScanService) cancelled(run *scanRun) error {
	run.logger.Info().Str("stage", run.stage).Msg("scan cancelled by client")
	return s.fail(run, domain.CodeScanCancelled, "Scan was cancelled", true, "Start a new scan")
}

func (s *ScanService) internal(run *scanRun, err error) error {
	run.logger.Error().Err(err).Str("stage", run.stage).Msg("scan failed")
	return s.fail(run, domain.CodeInternalError, "An unexpected error occurred", true, "Please try again")
}

// fail emits the terminal error notification, at most once per scan
func (s *ScanService) fail(run *scanRun, code, message string, recoverable bool, suggestions ...string) error {
	scanErr := &domain.ScanError{
		ScanID:           run.id,
		Stage:            run.stage,
		ErrorCode:        code,
		Message:          message,
		Recoverable:      recoverable,
		RetrySuggestions: append([]string{}, suggestions...),
	}
	if !run.terminated {
		run.terminated = true
		run.events.Failed(*scanErr)
	}
	return scanErr
}

// DecodeImagePayload decodes a base64 image, optionally wrapped in a data URL,
// and checks that it is a JPEG, PNG or GIF.
func DecodeImagePayload(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if strings.HasPrefix(payload, "data:") {
		_, data, ok := strings.Cut(payload, ",")
		if !ok {
			return nil, fmt.Errorf("%w: malformed data url", domain.ErrImageDecode)
		}
		payload = data
	}
	if payload == "" {
		return nil, fmt.Errorf("%w: empty payload", domain.ErrImageDecode)
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// some clients strip padding
		raw, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrImageDecode, err)
		}
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrImageDecode, err)
	}
	if !supportedImageFormats[format] {
		return nil, fmt.Errorf("%w: unsupported format %s", domain.ErrImageDecode, format)
	}
	return raw, nil
}

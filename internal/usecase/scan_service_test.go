package usecase

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"testing"
	"time"

	"github.com/bytelense/backend/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockImageAnalyzer returns a fixed analysis
type MockImageAnalyzer struct {
	result *domain.ImageAnalysisResult
	calls  int
}

func (m *MockImageAnalyzer) Analyze(ctx context.Context, image []byte) *domain.ImageAnalysisResult {
	m.calls++
	if m.result == nil {
		return &domain.ImageAnalysisResult{Method: "none"}
	}
	return m.result
}

// MockNutritionLookup returns a fixed record or error and records queries
type MockNutritionLookup struct {
	record  *domain.NutritionRecord
	err     error
	before  func()
	queries []domain.LookupQuery
}

func (m *MockNutritionLookup) Lookup(ctx context.Context, query domain.LookupQuery) (*domain.NutritionRecord, error) {
	m.queries = append(m.queries, query)
	if m.before != nil {
		m.before()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.record, m.err
}

// MockScorer returns a fixed result, error or panic
type MockScorer struct {
	result *domain.ScoringResult
	err    error
	panics bool
}

func (m *MockScorer) Score(ctx context.Context, record *domain.NutritionRecord, profile *domain.UserProfile) (*domain.ScoringResult, error) {
	if m.panics {
		panic("scorer exploded")
	}
	return m.result, m.err
}

// recordingEvents captures scan notifications in order
type recordingEvents struct {
	progress  []domain.ScanProgress
	failures  []domain.ScanError
	completes []domain.ScanResult
	order     []string
}

func (r *recordingEvents) Progress(event domain.ScanProgress) {
	r.progress = append(r.progress, event)
	r.order = append(r.order, "progress:"+event.Stage)
}

func (r *recordingEvents) Failed(event domain.ScanError) {
	r.failures = append(r.failures, event)
	r.order = append(r.order, "error:"+event.ErrorCode)
}

func (r *recordingEvents) Completed(result domain.ScanResult) {
	r.completes = append(r.completes, result)
	r.order = append(r.order, "complete")
}

func (r *recordingEvents) terminals() int {
	return len(r.failures) + len(r.completes)
}

func testPNG(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.White)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

type scanFixture struct {
	analyzer *MockImageAnalyzer
	lookup   *MockNutritionLookup
	profiles *MockProfileStore
	scorer   *MockScorer
	metrics  *MockMetrics
	service  *ScanService
}

func newScanFixture(t *testing.T) *scanFixture {
	t.Helper()

	profiles := NewMockProfileStore()
	profile := testProfile()
	require.NoError(t, profiles.Create(context.Background(), profile))

	f := &scanFixture{
		analyzer: &MockImageAnalyzer{result: &domain.ImageAnalysisResult{
			Barcode: "5000000000001", Confidence: 0.95, Method: "barcode",
		}},
		lookup:   &MockNutritionLookup{record: testRecord()},
		profiles: profiles,
		scorer: &MockScorer{result: &domain.ScoringResult{
			Score: 7.5, Verdict: domain.VerdictGood, Highlights: []string{"High fiber"},
			Warnings: []string{}, Confidence: 0.8,
		}},
		metrics: &MockMetrics{},
	}
	f.service = NewScanService(f.analyzer, f.lookup, f.profiles, f.scorer,
		NewQueryPreprocessor(zerolog.Nop()), f.metrics, zerolog.Nop())
	f.service.newID = func() string { return "scan-1" }
	return f
}

func (f *scanFixture) request(t *testing.T) domain.ScanRequest {
	return domain.ScanRequest{UserName: "alice", ImageBase64: testPNG(t), Source: "camera"}
}

func TestScanService_Success(t *testing.T) {
	f := newScanFixture(t)
	events := &recordingEvents{}

	result, err := f.service.Run(context.Background(), f.request(t), events)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, []string{
		"progress:detecting_barcode",
		"progress:fetching_nutrition",
		"progress:loading_profile",
		"progress:analyzing",
		"progress:generating_ui",
		"complete",
	}, events.order)

	for i := 1; i < len(events.progress); i++ {
		assert.Greater(t, events.progress[i].Progress, events.progress[i-1].Progress)
	}
	assert.Equal(t, 0.10, events.progress[0].Progress)
	assert.Equal(t, 0.85, events.progress[4].Progress)

	require.Len(t, events.completes, 1)
	complete := events.completes[0]
	assert.Equal(t, "scan-1", complete.ScanID)
	assert.Equal(t, "alice", complete.UserName)
	assert.Equal(t, "Rolled Oats", complete.Nutrition.ProductName)
	assert.Equal(t, "encouraging", complete.UISchema.Layout)
	assert.Equal(t, "verdict_badge", complete.UISchema.Components[0].Type)

	assert.Equal(t, []domain.LookupQuery{{Barcode: "5000000000001"}}, f.lookup.queries)
	assert.Equal(t, 1, f.metrics.scansStarted)
	assert.Equal(t, []string{domain.OutcomeCompleted}, f.metrics.scansFinished)
	assert.Len(t, f.metrics.stages, 5)
}

func TestScanService_OCRTextBecomesQuery(t *testing.T) {
	f := newScanFixture(t)
	f.analyzer.result = &domain.ImageAnalysisResult{
		OCRText:    "KELLOGG'S\nCorn Flakes\nNutrition Facts\nEnergy 378 kcal",
		Confidence: 0.7,
		Method:     "ocr",
	}

	_, err := f.service.Run(context.Background(), f.request(t), &recordingEvents{})
	require.NoError(t, err)

	require.Len(t, f.lookup.queries, 1)
	assert.Equal(t, "kellogg's corn flakes", f.lookup.queries[0].Name)
	assert.Empty(t, f.lookup.queries[0].Barcode)
}

func TestScanService_Failures(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(f *scanFixture, req *domain.ScanRequest)
		wantStage   string
		wantCode    string
		recoverable bool
		progress    int
	}{
		{
			name:        "invalid base64",
			setup:       func(f *scanFixture, req *domain.ScanRequest) { req.ImageBase64 = "%%%not-base64%%%" },
			wantStage:   domain.StageDetectingBarcode,
			wantCode:    domain.CodeImageDecodeError,
			recoverable: true,
			progress:    1,
		},
		{
			name: "not an image",
			setup: func(f *scanFixture, req *domain.ScanRequest) {
				req.ImageBase64 = base64.StdEncoding.EncodeToString([]byte("plain text, not pixels"))
			},
			wantStage:   domain.StageDetectingBarcode,
			wantCode:    domain.CodeImageDecodeError,
			recoverable: true,
			progress:    1,
		},
		{
			name:        "nothing detected",
			setup:       func(f *scanFixture, req *domain.ScanRequest) { f.analyzer.result = &domain.ImageAnalysisResult{Method: "none"} },
			wantStage:   domain.StageDetectingBarcode,
			wantCode:    domain.CodeImageProcessingFailed,
			recoverable: true,
			progress:    1,
		},
		{
			name:        "product not found",
			setup:       func(f *scanFixture, req *domain.ScanRequest) { f.lookup.err = domain.ErrProductNotFound; f.lookup.record = nil },
			wantStage:   domain.StageFetchingNutrition,
			wantCode:    domain.CodeProductNotFound,
			recoverable: true,
			progress:    2,
		},
		{
			name:        "lookup failure is internal",
			setup:       func(f *scanFixture, req *domain.ScanRequest) { f.lookup.err = errors.New("cache corrupted"); f.lookup.record = nil },
			wantStage:   domain.StageFetchingNutrition,
			wantCode:    domain.CodeInternalError,
			recoverable: true,
			progress:    2,
		},
		{
			name:        "profile missing",
			setup:       func(f *scanFixture, req *domain.ScanRequest) { req.UserName = "bob" },
			wantStage:   domain.StageLoadingProfile,
			wantCode:    domain.CodeProfileNotFound,
			recoverable: false,
			progress:    3,
		},
		{
			name:        "scorer error",
			setup:       func(f *scanFixture, req *domain.ScanRequest) { f.scorer.err = errors.New("boom") },
			wantStage:   domain.StageAnalyzing,
			wantCode:    domain.CodeInternalError,
			recoverable: true,
			progress:    4,
		},
		{
			name:        "scorer panic",
			setup:       func(f *scanFixture, req *domain.ScanRequest) { f.scorer.panics = true },
			wantStage:   domain.StageAnalyzing,
			wantCode:    domain.CodeInternalError,
			recoverable: true,
			progress:    4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newScanFixture(t)
			req := f.request(t)
			tt.setup(f, &req)
			events := &recordingEvents{}

			result, err := f.service.Run(context.Background(), req, events)
			assert.Nil(t, result)

			var scanErr *domain.ScanError
			require.ErrorAs(t, err, &scanErr)
			assert.Equal(t, tt.wantCode, scanErr.ErrorCode)

			assert.Equal(t, 1, events.terminals())
			assert.Empty(t, events.completes)
			require.Len(t, events.failures, 1)
			assert.Len(t, events.progress, tt.progress)

			failure := events.failures[0]
			assert.Equal(t, "scan-1", failure.ScanID)
			assert.Equal(t, tt.wantStage, failure.Stage)
			assert.Equal(t, tt.wantCode, failure.ErrorCode)
			assert.Equal(t, tt.recoverable, failure.Recoverable)
			assert.NotEmpty(t, failure.RetrySuggestions)
			assert.NotContains(t, failure.Message, "boom")

			assert.Equal(t, []string{tt.wantCode}, f.metrics.scansFinished)
		})
	}
}

func TestScanService_DecodeErrorSkipsAnalyzer(t *testing.T) {
	f := newScanFixture(t)
	req := f.request(t)
	req.ImageBase64 = "!!!"

	_, err := f.service.Run(context.Background(), req, &recordingEvents{})
	require.Error(t, err)
	assert.Zero(t, f.analyzer.calls)
	assert.Empty(t, f.lookup.queries)
}

func TestScanService_Cancellation(t *testing.T) {
	t.Run("cancelled before start", func(t *testing.T) {
		f := newScanFixture(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		events := &recordingEvents{}

		_, err := f.service.Run(ctx, f.request(t), events)
		require.Error(t, err)

		assert.Empty(t, events.progress)
		require.Len(t, events.failures, 1)
		assert.Equal(t, domain.CodeScanCancelled, events.failures[0].ErrorCode)
		assert.Equal(t, domain.StageDetectingBarcode, events.failures[0].Stage)
	})

	t.Run("client leaves during lookup", func(t *testing.T) {
		f := newScanFixture(t)
		ctx, cancel := context.WithCancel(context.Background())
		f.lookup.before = cancel
		events := &recordingEvents{}

		_, err := f.service.Run(ctx, f.request(t), events)
		require.Error(t, err)

		assert.Equal(t, 1, events.terminals())
		assert.Equal(t, domain.CodeScanCancelled, events.failures[0].ErrorCode)
		assert.Equal(t, domain.StageFetchingNutrition, events.failures[0].Stage)
	})
}

func TestScanService_WithRuleBasedScoring(t *testing.T) {
	f := newScanFixture(t)
	scorer := newTestScoringService(nil, nil, nil, 0)
	f.service.scorer = scorer
	events := &recordingEvents{}

	result, err := f.service.Run(context.Background(), f.request(t), events)
	require.NoError(t, err)

	assert.Equal(t, 7.0, result.Scoring.Score)
	assert.Equal(t, domain.VerdictGood, result.Scoring.Verdict)
	assert.NotEmpty(t, result.Scoring.Citations)
	assert.Equal(t, "green", result.UISchema.Theme)
}

func TestScanService_UniqueIDs(t *testing.T) {
	f := newScanFixture(t)
	f.service.newID = uuid.NewString

	first, err := f.service.Run(context.Background(), f.request(t), &recordingEvents{})
	require.NoError(t, err)
	second, err := f.service.Run(context.Background(), f.request(t), &recordingEvents{})
	require.NoError(t, err)

	assert.NotEqual(t, first.ScanID, second.ScanID)
	assert.Len(t, first.ScanID, 36)
	assert.WithinDuration(t, time.Now(), first.Timestamp, time.Minute)
}

func TestDecodeImagePayload(t *testing.T) {
	pngPayload := testPNG(t)

	var gifBuf bytes.Buffer
	require.NoError(t, gif.Encode(&gifBuf, image.NewPaletted(image.Rect(0, 0, 1, 1), []color.Color{color.Black}), nil))
	gifPayload := base64.StdEncoding.EncodeToString(gifBuf.Bytes())

	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{"plain base64 png", pngPayload, false},
		{"data url", "data:image/png;base64," + pngPayload, false},
		{"gif", gifPayload, false},
		{"missing padding", base64.RawStdEncoding.EncodeToString(gifBuf.Bytes()), false},
		{"empty", "", true},
		{"data url without comma", "data:image/png;base64", true},
		{"garbage", "@@@@", true},
		{"text bytes", base64.StdEncoding.EncodeToString([]byte("hello world")), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := DecodeImagePayload(tt.payload)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrImageDecode)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, raw)
		})
	}
}

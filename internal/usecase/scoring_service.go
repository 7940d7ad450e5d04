package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bytelense/backend/internal/domain"
	"github.com/rs/zerolog"
	"github.com/spf13/cast"
)

// Score bounds and defaults
const (
	minScore          = 0.0
	maxScore          = 10.0
	defaultScore      = 5.0
	defaultConfidence = 0.7
	goodThreshold     = 7.0
	moderateThreshold = 4.0
)

// Rule-based fallback parameters
const (
	fallbackConfidence  = 0.6
	sugarShareLimit     = 0.5
	sodiumShareLimit    = 0.3
	goodProteinG        = 10.0
	highFiberG          = 5.0
	fallbackPenalty     = 2.0
	fallbackBonus       = 1.0
	defaultAgentTimeout = 60 * time.Second
)

var agentFactors = []string{
	"Goal alignment",
	"Nutritional density",
	"Processing level",
	"Portion appropriateness",
	"Data quality",
}

var fallbackFactors = []string{"Sugar", "Sodium", "Protein", "Fiber"}

// ScoringServiceConfig holds configuration for the scoring service
type ScoringServiceConfig struct {
	AgentTimeout time.Duration
}

// ScoringService turns a nutrition record and a profile into an explainable verdict
type ScoringService struct {
	agent        *ScoringAgent
	searcher     domain.WebSearcher
	metrics      domain.MetricsRecorder
	logger       zerolog.Logger
	agentTimeout time.Duration
}

// NewScoringService creates a scoring service. A nil agent always uses rule-based scoring.
func NewScoringService(
	agent *ScoringAgent,
	searcher domain.WebSearcher,
	metrics domain.MetricsRecorder,
	logger zerolog.Logger,
	config ScoringServiceConfig,
) *ScoringService {
	if metrics == nil {
		metrics = domain.NopMetrics{}
	}
	timeout := config.AgentTimeout
	if timeout <= 0 {
		timeout = defaultAgentTimeout
	}
	return &ScoringService{
		agent:        agent,
		searcher:     searcher,
		metrics:      metrics,
		logger:       logger.With().Str("component", "scoring").Logger(),
		agentTimeout: timeout,
	}
}

// Score evaluates a product for a user.
// Flow: allergen gate -> clean data -> cite primary source -> agent -> fallback on any agent failure.
// The only error returned is cancellation of ctx.
func (s *ScoringService) Score(
	ctx context.Context,
	record *domain.NutritionRecord,
	profile *domain.UserProfile,
) (*domain.ScoringResult, error) {
	ledger := NewCitationLedger()

	if warnings := CheckAllergens(record, profile.FoodPreferences.Allergens); len(warnings) > 0 {
		s.logger.Info().Str("product", record.ProductName).Strs("warnings", warnings).Msg("allergen gate failed")
		return allergenFailResult(warnings, ledger), nil
	}

	cleaned, quality, err := CleanNutritionRecord(record)
	if err != nil {
		return nil, err
	}

	addPrimaryCitation(ledger, record)

	if s.agent == nil {
		s.metrics.FallbackUsed("agent_disabled")
		return fallbackScoring(record, profile, quality, ledger), nil
	}

	agentCtx, cancel := context.WithTimeout(ctx, s.agentTimeout)
	defer cancel()

	tools := NewNutritionToolRegistry(s.searcher, ledger, s.logger)
	outcome, err := s.agent.Run(agentCtx, AgentInput{
		Nutrition:    cleaned,
		Profile:      profile,
		CitationHint: citationHint(ledger),
	}, tools)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warn().Err(err).Str("product", record.ProductName).Msg("agent failed, using rule-based scoring")
		s.metrics.AgentRun(0, "failed")
		s.metrics.FallbackUsed(fallbackReason(agentCtx, err))
		return fallbackScoring(record, profile, quality, ledger), nil
	}

	s.metrics.AgentRun(outcome.Iterations, "finished")
	answer := outcome.Answer
	warnings := ParseList(answer.Warnings)
	highlights := ParseList(answer.Highlights)

	cited := append([]string{answer.Reasoning}, warnings...)
	if unknown := ledger.UnknownIDs(append(cited, highlights...)...); len(unknown) > 0 {
		s.logger.Warn().Ints("unknown_citations", unknown).Int("sources", ledger.Len()).Msg("agent cited unregistered sources")
	}

	steps := outcome.Steps
	if len(steps) == 0 {
		steps = []string{"Generated personalized verdict"}
	}

	return &domain.ScoringResult{
		Score:             ParseScore(answer.Score),
		Verdict:           ParseVerdict(answer.Verdict),
		Reasoning:         answer.Reasoning,
		Warnings:          warnings,
		Highlights:        highlights,
		Citations:         ledger.Sources(),
		Confidence:        ParseConfidence(answer.Confidence),
		DataQualityScore:  quality,
		ReasoningSteps:    steps,
		FactorsConsidered: append([]string(nil), agentFactors...),
	}, nil
}

// CheckAllergens matches the user's allergens against the product's allergen tags and ingredients
func CheckAllergens(record *domain.NutritionRecord, allergens []string) []string {
	warnings := []string{}
	ingredients := strings.ToLower(strings.Join(record.Ingredients, " "))

	for _, allergen := range allergens {
		needle := strings.ToLower(strings.TrimSpace(allergen))
		if needle == "" {
			continue
		}

		for _, tag := range record.Allergens {
			if strings.Contains(strings.ToLower(tag), needle) {
				warnings = append(warnings, "Contains "+allergen)
				break
			}
		}

		if strings.Contains(ingredients, needle) {
			warnings = append(warnings, fmt.Sprintf("May contain %s in ingredients", allergen))
		}
	}
	return warnings
}

func allergenFailResult(warnings []string, ledger *CitationLedger) *domain.ScoringResult {
	return &domain.ScoringResult{
		Score:             0,
		Verdict:           domain.VerdictAvoid,
		Reasoning:         "This product contains allergens that you're allergic to. " + strings.Join(warnings, ", "),
		Warnings:          warnings,
		Highlights:        []string{},
		Citations:         ledger.Sources(),
		Confidence:        1.0,
		DataQualityScore:  1.0,
		ReasoningSteps:    []string{"Allergen check failed"},
		FactorsConsidered: []string{"Allergen safety"},
	}
}

// addPrimaryCitation registers the page the nutrition data came from
func addPrimaryCitation(ledger *CitationLedger, record *domain.NutritionRecord) {
	switch {
	case record.Source == domain.SourceOpenFoodFacts && record.Barcode != "":
		ledger.Add(
			"https://world.openfoodfacts.org/product/"+record.Barcode,
			record.ProductName+" - OpenFoodFacts",
			"Nutrition data for "+record.ProductName,
			domain.SourceTypeOpenFoodFacts,
		)
	case record.Source == domain.SourceUSDA && record.FdcID != "":
		ledger.Add(
			"https://fdc.nal.usda.gov/food-details/"+record.FdcID+"/nutrients",
			record.ProductName+" - USDA FoodData Central",
			"Nutrition data for "+record.ProductName,
			domain.SourceTypeUSDA,
		)
	}
}

func citationHint(ledger *CitationLedger) string {
	var lines []string
	for _, source := range ledger.Sources() {
		lines = append(lines, fmt.Sprintf("[%d] %s (%s)", source.ID, source.Title, source.URL))
	}
	return strings.Join(lines, "\n")
}

// fallbackScoring is the deterministic rule-based scorer used whenever the agent cannot answer
func fallbackScoring(
	record *domain.NutritionRecord,
	profile *domain.UserProfile,
	quality float64,
	ledger *CitationLedger,
) *domain.ScoringResult {
	score := defaultScore
	warnings := []string{}
	highlights := []string{}
	targets := profile.DailyTargets

	if record.SugarG > targets.SugarG*sugarShareLimit {
		score -= fallbackPenalty
		warnings = append(warnings, "High sugar content")
	} else {
		highlights = append(highlights, "Low sugar")
	}

	if record.SodiumMG > targets.SodiumMG*sodiumShareLimit {
		score -= fallbackPenalty
		warnings = append(warnings, "High sodium")
	} else {
		highlights = append(highlights, "Low sodium")
	}

	if record.ProteinG > goodProteinG {
		score += fallbackBonus
		highlights = append(highlights, "Good protein source")
	}

	if record.FiberG > highFiberG {
		score += fallbackBonus
		highlights = append(highlights, "High fiber")
	}

	score = clamp(score, minScore, maxScore)

	findings := append(append([]string{}, highlights...), warnings...)

	return &domain.ScoringResult{
		Score:             score,
		Verdict:           verdictForScore(score),
		Reasoning:         "Rule-based analysis: " + strings.Join(findings, ", "),
		Warnings:          warnings,
		Highlights:        highlights,
		Citations:         ledger.Sources(),
		Confidence:        fallbackConfidence,
		DataQualityScore:  quality,
		ReasoningSteps:    []string{"Rule-based fallback scoring"},
		FactorsConsidered: append([]string(nil), fallbackFactors...),
	}
}

func verdictForScore(score float64) string {
	switch {
	case score >= goodThreshold:
		return domain.VerdictGood
	case score >= moderateThreshold:
		return domain.VerdictModerate
	default:
		return domain.VerdictAvoid
	}
}

func fallbackReason(agentCtx context.Context, err error) string {
	switch {
	case errors.Is(agentCtx.Err(), context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, domain.ErrUnknownTool):
		return "unknown_tool"
	case errors.Is(err, domain.ErrModelFailure):
		return "model_error"
	case errors.Is(err, domain.ErrAgentExhausted):
		return "exhausted"
	default:
		return "unparsable"
	}
}

// ParseScore clamps a model score to [0, 10]; anything non-numeric becomes 5.0
func ParseScore(v any) float64 {
	f, err := cast.ToFloat64E(v)
	if err != nil || v == nil || math.IsNaN(f) {
		return defaultScore
	}
	return clamp(f, minScore, maxScore)
}

// ParseVerdict maps free text to a verdict by keyword
func ParseVerdict(v any) string {
	text := strings.ToLower(cast.ToString(v))
	switch {
	case strings.Contains(text, domain.VerdictGood):
		return domain.VerdictGood
	case strings.Contains(text, domain.VerdictAvoid):
		return domain.VerdictAvoid
	default:
		return domain.VerdictModerate
	}
}

// ParseConfidence clamps a model confidence to [0, 1]; anything non-numeric becomes 0.7
func ParseConfidence(v any) float64 {
	f, err := cast.ToFloat64E(v)
	if err != nil || v == nil || math.IsNaN(f) {
		return defaultConfidence
	}
	return clamp(f, 0, 1)
}

// ParseList accepts a list, a JSON array string or a comma separated string
func ParseList(v any) []string {
	switch t := v.(type) {
	case nil:
		return []string{}
	case []string:
		return nonEmpty(t)
	case []any:
		return nonEmpty(cast.ToStringSlice(t))
	case string:
		var decoded any
		if err := json.Unmarshal([]byte(t), &decoded); err != nil {
			return nonEmpty(strings.Split(t, ","))
		}
		if items, ok := decoded.([]any); ok {
			return nonEmpty(cast.ToStringSlice(items))
		}
		return []string{}
	default:
		return []string{}
	}
}

func nonEmpty(items []string) []string {
	out := []string{}
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

package usecase

import "github.com/bytelense/backend/internal/domain"

// UI component types
const (
	ComponentVerdictBadge     = "verdict_badge"
	ComponentScoreDisplay     = "score_display"
	ComponentAllergenAlert    = "allergen_alert"
	ComponentInsightList      = "insight_list"
	ComponentReasoningSection = "reasoning_section"
	ComponentCitationList     = "citation_list"
)

const maxDisplayScore = 10.0

type layoutTheme struct {
	layout string
	theme  string
}

var verdictPresentation = map[string]layoutTheme{
	domain.VerdictGood:     {layout: "encouraging", theme: "green"},
	domain.VerdictModerate: {layout: "balanced", theme: "yellow"},
	domain.VerdictAvoid:    {layout: "alert", theme: "red"},
}

var defaultPresentation = layoutTheme{layout: "balanced", theme: "yellow"}

// BuildUISchema turns a scoring result into an ordered component tree
func BuildUISchema(scoring *domain.ScoringResult) *domain.UISchema {
	presentation, ok := verdictPresentation[scoring.Verdict]
	if !ok {
		presentation = defaultPresentation
	}

	var components []domain.ComponentSpec
	add := func(componentType string, props map[string]any) {
		components = append(components, domain.ComponentSpec{
			Type:  componentType,
			Props: props,
			Order: len(components),
		})
	}

	add(ComponentVerdictBadge, map[string]any{
		"verdict": scoring.Verdict,
		"theme":   presentation.theme,
	})

	add(ComponentScoreDisplay, map[string]any{
		"score":        scoring.Score,
		"max_score":    maxDisplayScore,
		"confidence":   scoring.Confidence,
		"data_quality": scoring.DataQualityScore,
	})

	if len(scoring.Warnings) > 0 {
		severity := "medium"
		if scoring.Verdict == domain.VerdictAvoid {
			severity = "high"
		}
		add(ComponentAllergenAlert, map[string]any{
			"warnings": scoring.Warnings,
			"severity": severity,
		})
		add(ComponentInsightList, map[string]any{
			"items": scoring.Warnings,
			"type":  "warning",
			"icon":  "alert-triangle",
		})
	}

	if len(scoring.Highlights) > 0 {
		add(ComponentInsightList, map[string]any{
			"items": scoring.Highlights,
			"type":  "highlight",
			"icon":  "check-circle",
		})
	}

	add(ComponentReasoningSection, map[string]any{
		"reasoning":          scoring.Reasoning,
		"reasoning_steps":    scoring.ReasoningSteps,
		"factors_considered": scoring.FactorsConsidered,
		"expanded":           false,
	})

	if len(scoring.Citations) > 0 {
		add(ComponentCitationList, map[string]any{
			"citations": scoring.Citations,
		})
	}

	return &domain.UISchema{
		Layout:     presentation.layout,
		Theme:      presentation.theme,
		Components: components,
	}
}

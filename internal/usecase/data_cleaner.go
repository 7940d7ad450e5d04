package usecase

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/bytelense/backend/internal/domain"
	"github.com/spf13/cast"
)

// Quality penalties applied while cleaning
const (
	missingFieldPenalty     = 0.2
	uncoercibleFieldPenalty = 0.05
	lowConfidenceThreshold  = 0.7
)

var requiredNutritionFields = []string{"product_name", "calories", "protein_g", "carbs_g", "fat_g"}

var numericNutritionFields = []string{
	"calories", "protein_g", "carbs_g", "fat_g",
	"sugar_g", "sodium_mg", "fiber_g", "saturated_fat_g",
}

// CleanNutritionRecord flattens a record into the map the reasoning agent sees and scores its quality.
// Non-finite values count as uncoercible and are zeroed before encoding.
func CleanNutritionRecord(record *domain.NutritionRecord) (map[string]any, float64, error) {
	finite := *record
	zeroed := finite.ZeroNonFinite()

	raw, err := recordToMap(&finite)
	if err != nil {
		return nil, 0, err
	}
	cleaned, quality := cleanNutritionData(raw, zeroed)
	return cleaned, quality, nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// CleanNutritionData normalizes numeric fields to float64 and returns a data quality score in [0, 1].
// Quality starts at 1.0, loses 0.2 per missing required field and 0.05 per non-numeric value,
// and is scaled by the record confidence when that is below 0.7.
func CleanNutritionData(raw map[string]any) (map[string]any, float64) {
	return cleanNutritionData(raw, 0)
}

// cleanNutritionData starts from the given count of values already found uncoercible
func cleanNutritionData(raw map[string]any, uncoercible int) (map[string]any, float64) {
	quality := 1.0 - float64(uncoercible)*uncoercibleFieldPenalty

	for _, field := range requiredNutritionFields {
		if !truthy(raw[field]) {
			quality -= missingFieldPenalty
		}
	}

	cleaned := make(map[string]any, len(raw))
	for k, v := range raw {
		cleaned[k] = v
	}

	for _, field := range numericNutritionFields {
		value, ok := cleaned[field]
		if !ok || value == nil {
			continue
		}
		f, err := cast.ToFloat64E(value)
		if err != nil || !isFinite(f) {
			cleaned[field] = 0.0
			quality -= uncoercibleFieldPenalty
			continue
		}
		cleaned[field] = f
	}

	if value, ok := cleaned["confidence"]; ok && value != nil {
		if confidence, err := cast.ToFloat64E(value); err == nil && isFinite(confidence) && confidence < lowConfidenceThreshold {
			quality *= confidence
		}
	}

	if quality < 0 {
		quality = 0
	}
	return cleaned, quality
}

func recordToMap(record *domain.NutritionRecord) (map[string]any, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode nutrition record: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode nutrition record: %w", err)
	}
	return out, nil
}

// truthy reports whether a value counts as present
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return true
		}
		return f != 0
	}
}

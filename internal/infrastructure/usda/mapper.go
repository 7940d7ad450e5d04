package usda

import (
	"strconv"
	"strings"
	"time"

	"github.com/bytelense/backend/internal/domain"
)

// USDA Nutrient IDs for the nutrients a record carries
const (
	NutrientIDEnergy        = 1008 // Calories (kcal)
	NutrientIDEnergyAtwater = 2047 // Calories (kcal), Foundation foods
	NutrientIDProtein       = 1003 // Protein (g)
	NutrientIDCarbohydrate  = 1005 // Carbohydrates (g)
	NutrientIDTotalFat      = 1004 // Total Fat (g)
	NutrientIDSaturatedFat  = 1258 // Saturated fatty acids (g)
	NutrientIDSugar         = 2000 // Total sugars (g)
	NutrientIDFiber         = 1079 // Dietary fiber (g)
	NutrientIDSodium        = 1093 // Sodium (mg)
)

const maxIngredients = 20

// MapToNutritionRecord converts USDA food data to a per-100g nutrition record.
// confidence is the match confidence in [0, 1].
func MapToNutritionRecord(usdaFood *domain.USDAFood, confidence float64) *domain.NutritionRecord {
	n := usdaFood.Nutrients

	calories := FindNutrientValue(n, NutrientIDEnergy)
	if calories == 0 {
		calories = FindNutrientValue(n, NutrientIDEnergyAtwater)
	}

	return &domain.NutritionRecord{
		ProductName:   usdaFood.Description,
		Brand:         usdaFood.BrandOwner,
		Barcode:       usdaFood.GTINUPC,
		FdcID:         strconv.Itoa(usdaFood.FdcID),
		ServingSize:   "100g", // USDA reports per 100g
		Calories:      calories,
		ProteinG:      FindNutrientValue(n, NutrientIDProtein),
		CarbsG:        FindNutrientValue(n, NutrientIDCarbohydrate),
		FatG:          FindNutrientValue(n, NutrientIDTotalFat),
		SaturatedFatG: FindNutrientValue(n, NutrientIDSaturatedFat),
		SugarG:        FindNutrientValue(n, NutrientIDSugar),
		SodiumMG:      FindNutrientValue(n, NutrientIDSodium),
		FiberG:        FindNutrientValue(n, NutrientIDFiber),
		Ingredients:   splitIngredients(usdaFood.Ingredients),
		Allergens:     []string{},
		Additives:     []string{},
		Source:        domain.SourceUSDA,
		Confidence:    confidence,
		RetrievedAt:   time.Now(),
	}
}

// splitIngredients splits a comma separated ingredient statement, keeping at most 20 entries
func splitIngredients(text string) []string {
	ingredients := []string{}
	for _, part := range strings.Split(text, ",") {
		part = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(part), "."))
		if part == "" {
			continue
		}
		ingredients = append(ingredients, part)
		if len(ingredients) == maxIngredients {
			break
		}
	}
	return ingredients
}

// FindNutrientValue finds a specific nutrient value by ID
func FindNutrientValue(nutrients []domain.USDANutrient, nutrientID int) float64 {
	for _, nutrient := range nutrients {
		if nutrient.NutrientID == nutrientID {
			return nutrient.Value
		}
	}
	return 0.0
}

package domain

import (
	"math"
	"time"
)

// Nutrition sources
const (
	SourceOpenFoodFacts = "openfoodfacts"
	SourceUSDA          = "usda"
	SourceCache         = "cache"
)

// NutritionRecord is the per-100g nutrition data resolved for a scanned product
type NutritionRecord struct {
	ProductName   string    `json:"product_name"`
	Brand         string    `json:"brand,omitempty"`
	Barcode       string    `json:"barcode,omitempty"`
	FdcID         string    `json:"fdc_id,omitempty"`
	ServingSize   string    `json:"serving_size,omitempty"`
	Calories      float64   `json:"calories"`
	ProteinG      float64   `json:"protein_g"`
	CarbsG        float64   `json:"carbs_g"`
	FatG          float64   `json:"fat_g"`
	SaturatedFatG float64   `json:"saturated_fat_g"`
	SugarG        float64   `json:"sugar_g"`
	SodiumMG      float64   `json:"sodium_mg"`
	FiberG        float64   `json:"fiber_g"`
	Ingredients   []string  `json:"ingredients"`
	Allergens     []string  `json:"allergens"`
	Additives     []string  `json:"additives"`
	Source        string    `json:"source"`      // "openfoodfacts" or "usda"
	ResolvedBy    string    `json:"resolved_by"` // chain step that produced the record
	Confidence    float64   `json:"confidence"`  // 0-1
	RetrievedAt   time.Time `json:"retrieved_at"`
}

// ZeroNonFinite replaces NaN and infinite nutrient values with 0 and returns how many it replaced.
// A non-finite confidence becomes 0 without being counted.
func (r *NutritionRecord) ZeroNonFinite() int {
	nutrients := []*float64{
		&r.Calories, &r.ProteinG, &r.CarbsG, &r.FatG,
		&r.SaturatedFatG, &r.SugarG, &r.SodiumMG, &r.FiberG,
	}
	zeroed := 0
	for _, f := range nutrients {
		if math.IsNaN(*f) || math.IsInf(*f, 0) {
			*f = 0
			zeroed++
		}
	}
	if math.IsNaN(r.Confidence) || math.IsInf(r.Confidence, 0) {
		r.Confidence = 0
	}
	return zeroed
}

// LookupQuery is the input to the nutrition lookup chain
type LookupQuery struct {
	Barcode string `json:"barcode,omitempty"`
	Name    string `json:"name,omitempty"`
	Brand   string `json:"brand,omitempty"`
}

// Empty reports whether the query has nothing to look up
func (q LookupQuery) Empty() bool {
	return q.Barcode == "" && q.Name == ""
}

// USDAFood represents a food item from the USDA FoodData Central API
type USDAFood struct {
	FdcID       int            `json:"fdcId"`
	Description string         `json:"description"`
	DataType    string         `json:"dataType"`
	BrandOwner  string         `json:"brandOwner,omitempty"`
	GTINUPC     string         `json:"gtinUpc,omitempty"`
	Ingredients string         `json:"ingredients,omitempty"`
	FoodClass   string         `json:"foodClass,omitempty"`
	Nutrients   []USDANutrient `json:"foodNutrients"`
}

// USDANutrient represents a single nutrient from USDA data
type USDANutrient struct {
	NutrientID     int     `json:"nutrientId"`
	NutrientName   string  `json:"nutrientName"`
	NutrientNumber string  `json:"nutrientNumber,omitempty"`
	UnitName       string  `json:"unitName"`
	Value          float64 `json:"value"`
}

// USDASearchResponse represents the response from USDA search API
type USDASearchResponse struct {
	Foods       []USDAFood `json:"foods"`
	TotalHits   int        `json:"totalHits"`
	CurrentPage int        `json:"currentPage"`
	TotalPages  int        `json:"totalPages"`
}

// MatchResult represents the result of a product matching operation
type MatchResult struct {
	FdcID         string   `json:"fdcId"`
	Description   string   `json:"description"`
	MatchScore    float64  `json:"matchScore"`
	MatchedTokens []string `json:"matchedTokens,omitempty"`
}

package openfoodfacts

import (
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/bytelense/backend/internal/domain"
	"github.com/spf13/cast"
)

const (
	productConfidence = 0.9
	maxIngredients    = 20
)

// product is the subset of an OpenFoodFacts product document we read
type product struct {
	Code            string                 `json:"code"`
	ProductName     string                 `json:"product_name"`
	ProductNameEN   string                 `json:"product_name_en"`
	Brands          string                 `json:"brands"`
	ServingSize     string                 `json:"serving_size"`
	Nutriments      map[string]interface{} `json:"nutriments"`
	IngredientsText string                 `json:"ingredients_text"`
	AllergensTags   []string               `json:"allergens_tags"`
	AdditivesTags   []string               `json:"additives_tags"`
}

// mapProduct converts an OpenFoodFacts product into a per-100g nutrition record
func mapProduct(p *product, barcode string) *domain.NutritionRecord {
	name := p.ProductName
	if name == "" {
		name = p.ProductNameEN
	}
	if name == "" {
		name = "Unknown"
	}

	serving := p.ServingSize
	if serving == "" {
		serving = "100g"
	}

	additives := p.AdditivesTags
	if additives == nil {
		additives = []string{}
	}

	return &domain.NutritionRecord{
		ProductName:   name,
		Brand:         firstBrand(p.Brands),
		Barcode:       barcode,
		ServingSize:   serving,
		Calories:      nutriment(p.Nutriments, "energy-kcal"),
		ProteinG:      nutriment(p.Nutriments, "proteins"),
		CarbsG:        nutriment(p.Nutriments, "carbohydrates"),
		FatG:          nutriment(p.Nutriments, "fat"),
		SaturatedFatG: nutriment(p.Nutriments, "saturated-fat"),
		SugarG:        nutriment(p.Nutriments, "sugars"),
		SodiumMG:      nutriment(p.Nutriments, "sodium") * 1000, // g to mg
		FiberG:        nutriment(p.Nutriments, "fiber"),
		Ingredients:   parseIngredients(p.IngredientsText),
		Allergens:     parseAllergens(p.AllergensTags),
		Additives:     additives,
		Source:        domain.SourceOpenFoodFacts,
		Confidence:    productConfidence,
		RetrievedAt:   time.Now(),
	}
}

// nutriment reads "<key>_100g", falling back to "<key>"; values may be numbers or strings
func nutriment(n map[string]interface{}, key string) float64 {
	v, ok := n[key+"_100g"]
	if !ok {
		v, ok = n[key]
	}
	if !ok {
		return 0
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// firstBrand keeps the first of a comma separated brand list
func firstBrand(brands string) string {
	if i := strings.Index(brands, ","); i >= 0 {
		brands = brands[:i]
	}
	return strings.TrimSpace(brands)
}

func parseIngredients(text string) []string {
	ingredients := []string{}
	for _, part := range strings.Split(text, ",") {
		if part = strings.TrimSpace(part); part != "" {
			ingredients = append(ingredients, part)
		}
		if len(ingredients) == maxIngredients {
			break
		}
	}
	return ingredients
}

// parseAllergens turns tags like "en:tree-nuts" into "Tree Nuts"
func parseAllergens(tags []string) []string {
	allergens := []string{}
	for _, tag := range tags {
		_, name, ok := strings.Cut(tag, ":")
		if !ok || name == "" {
			continue
		}
		allergens = append(allergens, titleWords(strings.ReplaceAll(name, "-", " ")))
	}
	return allergens
}

func titleWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

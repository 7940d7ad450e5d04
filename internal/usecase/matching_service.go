package usecase

import (
	"context"
	"regexp"
	"strings"

	"github.com/bytelense/backend/internal/domain"
	"github.com/rs/zerolog"
)

// Package-level compiled regex pattern for performance
var punctuationRegex = regexp.MustCompile(`[^\w\s]`)

// Token weight categories for scoring
const (
	weightFood        = 3.0 // Core food terms (milk, chicken, bread)
	weightDescriptive = 2.0 // Descriptive terms (whole, skim, organic)
	weightDefault     = 1.0 // Everything else
	fuzzyWeightFactor = 0.8 // Fuzzy matches get 80% of normal weight
)

// Scoring bonuses
const (
	brandMatchBonus         = 15.0
	substringMatchBonus     = 10.0
	dataTypeBrandedBonus    = 10.0
	dataTypeSurveyBonus     = 5.0
	dataTypeFoundationBonus = 3.0
)

// foodTerms contains high-importance food keywords (weight 3.0)
var foodTerms = map[string]bool{
	// Proteins
	"chicken": true, "beef": true, "pork": true, "fish": true, "salmon": true,
	"turkey": true, "lamb": true, "shrimp": true, "tuna": true, "bacon": true,
	"sausage": true, "paneer": true, "tofu": true, "lentils": true, "dal": true,
	// Dairy
	"milk": true, "cheese": true, "yogurt": true, "curd": true, "butter": true,
	"cream": true, "eggs": true, "egg": true, "ghee": true,
	// Grains
	"bread": true, "rice": true, "pasta": true, "cereal": true, "oats": true,
	"wheat": true, "flour": true, "noodles": true, "biscuits": true, "muesli": true,
	// Produce
	"apple": true, "banana": true, "orange": true, "tomato": true, "potato": true,
	"onion": true, "mango": true, "peanut": true, "almond": true, "corn": true,
	// Beverages
	"juice": true, "soda": true, "cola": true, "coffee": true, "tea": true,
	"water": true, "lemonade": true, "smoothie": true, "shake": true,
	// Snacks & Sweets
	"chips": true, "crackers": true, "cookies": true, "candy": true, "chocolate": true,
	"cake": true, "namkeen": true, "bhujia": true, "popcorn": true, "wafers": true,
	// Condiments & Sauces
	"ketchup": true, "mayonnaise": true, "sauce": true, "jam": true,
	"pickle": true, "honey": true, "syrup": true, "spread": true,
}

// descriptiveTerms contains medium-importance descriptive keywords (weight 2.0)
var descriptiveTerms = map[string]bool{
	"whole": true, "skim": true, "reduced": true, "fat": true, "low": true,
	"organic": true, "natural": true, "fresh": true, "frozen": true, "roasted": true,
	"baked": true, "fried": true, "salted": true, "unsalted": true, "sweetened": true,
	"unsweetened": true, "plain": true, "flavored": true, "original": true, "classic": true,
	"masala": true, "spicy": true, "diet": true, "light": true, "lite": true,
	"multigrain": true, "protein": true, "fiber": true, "sugar": true, "free": true,
}

// extendedStopWords includes basic English stop words plus product-specific noise
var extendedStopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true,
	"of": true, "in": true, "on": true, "at": true, "to": true,
	"for": true, "with": true, "by": true, "from": true, "is": true,
	"oz": true, "fl": true, "lb": true, "ml": true, "gm": true,
	"gram": true, "grams": true, "kg": true, "ltr": true, "litre": true,
	"pack": true, "count": true, "ct": true, "pk": true, "net": true,
	"wt": true, "weight": true, "mrp": true, "rs": true, "incl": true,
	"size": true, "value": true, "family": true, "each": true, "per": true,
	"serving": true, "servings": true, "new": true, "improved": true, "product": true,
}

// MatchCandidate is one search hit a product name can be matched against
type MatchCandidate struct {
	ID          string
	Description string
	Brand       string
	DataType    string
}

// MatchConfig holds configuration for the matching service
type MatchConfig struct {
	MinConfidenceThreshold float64
	EnableFuzzyMatching    bool
	FuzzyEditDistance      int
}

// MatchingService picks the search hit that best fits a product name
type MatchingService struct {
	minConfidenceThreshold float64
	enableFuzzyMatching    bool
	fuzzyEditDistance      int
	logger                 zerolog.Logger
}

// NewMatchingService creates a new matching service with the given configuration
func NewMatchingService(config MatchConfig, logger zerolog.Logger) *MatchingService {
	threshold := config.MinConfidenceThreshold
	if threshold <= 0 {
		threshold = 40.0
	}

	fuzzyDist := config.FuzzyEditDistance
	if fuzzyDist <= 0 {
		fuzzyDist = 1
	}

	return &MatchingService{
		minConfidenceThreshold: threshold,
		enableFuzzyMatching:    config.EnableFuzzyMatching,
		fuzzyEditDistance:      fuzzyDist,
		logger:                 logger.With().Str("component", "matcher").Logger(),
	}
}

// FindBestMatch scores every candidate and returns the best one with a 0-100 score.
// A best match below the threshold is returned together with ErrLowConfidence.
func (s *MatchingService) FindBestMatch(
	ctx context.Context,
	productName, brand string,
	candidates []MatchCandidate,
) (*domain.MatchResult, error) {
	if productName == "" {
		return nil, domain.ErrInvalidRequest
	}
	if len(candidates) == 0 {
		return nil, domain.ErrProductNotFound
	}

	var bestMatch *domain.MatchResult
	highestScore := -1.0

	for _, candidate := range candidates {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		score, matchedTokens := s.calculateMatchScore(productName, brand, candidate)

		s.logger.Debug().
			Str("candidate", candidate.Description).
			Str("data_type", candidate.DataType).
			Float64("score", score).
			Strs("matched", matchedTokens).
			Msg("scored candidate")

		if score > highestScore {
			highestScore = score
			bestMatch = &domain.MatchResult{
				FdcID:         candidate.ID,
				Description:   candidate.Description,
				MatchScore:    score,
				MatchedTokens: matchedTokens,
			}
		}
	}

	if bestMatch.MatchScore < s.minConfidenceThreshold {
		return bestMatch, domain.ErrLowConfidence
	}
	return bestMatch, nil
}

// calculateMatchScore computes similarity between a product name and a candidate.
// Uses a weighted combination of:
//   - Product token coverage, weighted by token importance (most important)
//   - Candidate token coverage
//   - Jaccard similarity
//
// plus brand, substring and data type bonuses. Returns the score (0-100) and the matched tokens.
func (s *MatchingService) calculateMatchScore(productName, brand string, candidate MatchCandidate) (float64, []string) {
	productTokens := tokenize(productName)
	candidateTokens := tokenize(candidate.Description)

	if len(productTokens) == 0 || len(candidateTokens) == 0 {
		return 0, nil
	}

	candidateSet := make(map[string]bool, len(candidateTokens))
	for _, t := range candidateTokens {
		candidateSet[t] = true
	}

	var matchedWeight, totalWeight float64
	var matchedTokens []string
	for _, token := range productTokens {
		weight := getTokenWeight(token)
		totalWeight += weight

		if candidateSet[token] {
			matchedWeight += weight
			matchedTokens = append(matchedTokens, token)
			continue
		}
		if s.enableFuzzyMatching {
			for _, ct := range candidateTokens {
				if fuzzyTokenMatch(token, ct, s.fuzzyEditDistance) {
					matchedWeight += weight * fuzzyWeightFactor
					matchedTokens = append(matchedTokens, token)
					break
				}
			}
		}
	}
	productCoverage := matchedWeight / totalWeight

	candidateMatched, _ := findIntersection(candidateTokens, productTokens)
	candidateCoverage := float64(candidateMatched) / float64(len(candidateTokens))

	jaccard := float64(candidateMatched) / float64(findUnion(productTokens, candidateTokens))

	score := (productCoverage*0.60 + candidateCoverage*0.20 + jaccard*0.20) * 100

	productLower := strings.ToLower(strings.Join(productTokens, " "))
	candidateLower := strings.ToLower(candidate.Description + " " + candidate.Brand)

	if brand != "" && strings.Contains(candidateLower, strings.ToLower(brand)) {
		score += brandMatchBonus
	}

	if len(productLower) > 3 && strings.Contains(strings.Join(candidateTokens, " "), productLower) {
		score += substringMatchBonus
	}

	switch candidate.DataType {
	case "Branded":
		score += dataTypeBrandedBonus
	case "Survey (FNDDS)":
		score += dataTypeSurveyBonus
	case "Foundation":
		score += dataTypeFoundationBonus
	}

	if score > 100 {
		score = 100
	}

	return score, matchedTokens
}

// getTokenWeight returns the importance of a token
func getTokenWeight(token string) float64 {
	switch {
	case foodTerms[token]:
		return weightFood
	case descriptiveTerms[token]:
		return weightDescriptive
	default:
		return weightDefault
	}
}

// tokenize splits a string into normalized lowercase tokens.
// Removes punctuation, stop words, product noise, and pure numeric tokens.
func tokenize(s string) []string {
	cleaned := punctuationRegex.ReplaceAllString(strings.ToLower(s), " ")
	words := strings.Fields(cleaned)

	var tokens []string
	for _, word := range words {
		if len(word) <= 1 {
			continue
		}
		if extendedStopWords[word] {
			continue
		}
		if isNumeric(word) {
			continue
		}
		tokens = append(tokens, word)
	}

	return tokens
}

// isNumeric checks if a string contains only digits
func isNumeric(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}

// fuzzyTokenMatch checks if two tokens are similar within the edit distance threshold
func fuzzyTokenMatch(token1, token2 string, threshold int) bool {
	if token1 == token2 {
		return true
	}

	// Only apply fuzzy matching to tokens of 4+ chars to avoid false positives
	if len(token1) < 4 || len(token2) < 4 {
		return false
	}

	lenDiff := len(token1) - len(token2)
	if lenDiff < 0 {
		lenDiff = -lenDiff
	}
	if lenDiff > threshold {
		return false
	}

	return levenshteinDistance(token1, token2) <= threshold
}

// levenshteinDistance calculates the edit distance between two strings
func levenshteinDistance(s1, s2 string) int {
	r1 := []rune(s1)
	r2 := []rune(s2)
	m := len(r1)
	n := len(r2)

	if m == 0 {
		return n
	}
	if n == 0 {
		return m
	}

	prev := make([]int, n+1)
	curr := make([]int, n+1)
	for j := 0; j <= n; j++ {
		prev[j] = j
	}

	for i := 1; i <= m; i++ {
		curr[0] = i
		for j := 1; j <= n; j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[n]
}

// findIntersection returns the count of common tokens and the list of matched tokens
func findIntersection(tokens1, tokens2 []string) (int, []string) {
	set := make(map[string]bool)
	for _, t := range tokens1 {
		set[t] = true
	}

	var matched []string
	seen := make(map[string]bool)
	for _, t := range tokens2 {
		if set[t] && !seen[t] {
			matched = append(matched, t)
			seen[t] = true
		}
	}

	return len(matched), matched
}

// findUnion returns the count of unique tokens across both sets
func findUnion(tokens1, tokens2 []string) int {
	set := make(map[string]bool)
	for _, t := range tokens1 {
		set[t] = true
	}
	for _, t := range tokens2 {
		set[t] = true
	}
	return len(set)
}

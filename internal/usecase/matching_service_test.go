package usecase

import (
	"context"
	"testing"

	"github.com/bytelense/backend/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMatchingService(t *testing.T) {
	t.Run("uses provided threshold", func(t *testing.T) {
		svc := NewMatchingService(MatchConfig{MinConfidenceThreshold: 50}, zerolog.Nop())
		assert.Equal(t, 50.0, svc.minConfidenceThreshold)
	})

	t.Run("defaults non-positive threshold to 40", func(t *testing.T) {
		for _, threshold := range []float64{0, -10} {
			svc := NewMatchingService(MatchConfig{MinConfidenceThreshold: threshold}, zerolog.Nop())
			assert.Equal(t, 40.0, svc.minConfidenceThreshold)
			assert.Equal(t, 1, svc.fuzzyEditDistance)
		}
	})
}

func milkCandidates() []MatchCandidate {
	return []MatchCandidate{
		{ID: "1", Description: "Cheese, cheddar", DataType: "Survey (FNDDS)"},
		{ID: "2", Description: "Chocolate milk drink", DataType: "Branded"},
		{ID: "3", Description: "Milk, whole, 3.25% milkfat", DataType: "Foundation"},
	}
}

func TestFindBestMatch(t *testing.T) {
	svc := NewMatchingService(MatchConfig{MinConfidenceThreshold: 40}, zerolog.Nop())
	ctx := context.Background()

	t.Run("rejects empty product name", func(t *testing.T) {
		_, err := svc.FindBestMatch(ctx, "", "", milkCandidates())
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	})

	t.Run("no candidates is not found", func(t *testing.T) {
		_, err := svc.FindBestMatch(ctx, "Whole Milk", "", nil)
		assert.ErrorIs(t, err, domain.ErrProductNotFound)
	})

	t.Run("picks the closest description", func(t *testing.T) {
		result, err := svc.FindBestMatch(ctx, "Whole Milk", "", milkCandidates())
		require.NoError(t, err)

		assert.Equal(t, "3", result.FdcID)
		assert.InDelta(t, 99.67, result.MatchScore, 0.01)
		assert.Equal(t, []string{"whole", "milk"}, result.MatchedTokens)
	})

	t.Run("brand match caps at 100", func(t *testing.T) {
		result, err := svc.FindBestMatch(ctx, "Corn Flakes", "Kellogg's", []MatchCandidate{
			{ID: "10", Description: "Corn, sweet, yellow, raw", DataType: "Foundation"},
			{ID: "11", Description: "CORN FLAKES", Brand: "Kellogg's", DataType: "Branded"},
		})
		require.NoError(t, err)

		assert.Equal(t, "11", result.FdcID)
		assert.Equal(t, 100.0, result.MatchScore)
	})

	t.Run("low confidence returns best match with error", func(t *testing.T) {
		result, err := svc.FindBestMatch(ctx, "Aloo Bhujia", "", []MatchCandidate{
			{ID: "20", Description: "Potato chips", DataType: "Branded"},
		})
		assert.ErrorIs(t, err, domain.ErrLowConfidence)
		require.NotNil(t, result)
		assert.Equal(t, 10.0, result.MatchScore)
	})

	t.Run("honours context cancellation", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := svc.FindBestMatch(cancelled, "Whole Milk", "", milkCandidates())
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestCalculateMatchScore(t *testing.T) {
	svc := NewMatchingService(MatchConfig{MinConfidenceThreshold: 40}, zerolog.Nop())

	tests := []struct {
		name      string
		product   string
		brand     string
		candidate MatchCandidate
		want      float64
	}{
		{
			name:      "exact single token with survey bonus",
			product:   "Paneer",
			candidate: MatchCandidate{Description: "Cheese, paneer", DataType: "Survey (FNDDS)"},
			want:      95.0,
		},
		{
			name:      "partial match with foundation bonus",
			product:   "Corn Flakes",
			candidate: MatchCandidate{Description: "Corn, sweet, yellow, raw", DataType: "Foundation"},
			want:      57.0,
		},
		{
			name:      "no overlap leaves only data type bonus",
			product:   "Whole Milk",
			candidate: MatchCandidate{Description: "Cheese, cheddar", DataType: "Survey (FNDDS)"},
			want:      5.0,
		},
		{
			name:      "empty description scores zero",
			product:   "Whole Milk",
			candidate: MatchCandidate{Description: "", DataType: "Branded"},
			want:      0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, _ := svc.calculateMatchScore(tt.product, tt.brand, tt.candidate)
			assert.InDelta(t, tt.want, score, 0.01)
		})
	}
}

func TestFuzzyMatchingEnabled(t *testing.T) {
	candidate := MatchCandidate{ID: "30", Description: "Chicken, breast, roasted", DataType: "Foundation"}

	t.Run("typo matches with fuzzy enabled", func(t *testing.T) {
		svc := NewMatchingService(MatchConfig{MinConfidenceThreshold: 40, EnableFuzzyMatching: true}, zerolog.Nop())

		result, err := svc.FindBestMatch(context.Background(), "chiken breast", "", []MatchCandidate{candidate})
		require.NoError(t, err)
		assert.InDelta(t, 68.67, result.MatchScore, 0.01)
		assert.Equal(t, []string{"chiken", "breast"}, result.MatchedTokens)
	})

	t.Run("typo scores lower without fuzzy", func(t *testing.T) {
		svc := NewMatchingService(MatchConfig{MinConfidenceThreshold: 40}, zerolog.Nop())

		result, err := svc.FindBestMatch(context.Background(), "chiken breast", "", []MatchCandidate{candidate})
		require.NoError(t, err)
		assert.InDelta(t, 44.67, result.MatchScore, 0.01)
		assert.Equal(t, []string{"breast"}, result.MatchedTokens)
	})
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"Milk, whole, 3.25% milkfat", []string{"milk", "whole", "milkfat"}},
		{"Amul Butter 500 gm pack", []string{"amul", "butter"}},
		{"The Best of Oats", []string{"best", "oats"}},
		{"", nil},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, tokenize(tt.input))
		})
	}
}

func TestGetTokenWeight(t *testing.T) {
	assert.Equal(t, weightFood, getTokenWeight("paneer"))
	assert.Equal(t, weightDescriptive, getTokenWeight("masala"))
	assert.Equal(t, weightDefault, getTokenWeight("maggi"))
}

func TestFindIntersectionAndUnion(t *testing.T) {
	count, matched := findIntersection([]string{"corn", "flakes"}, []string{"flakes", "honey", "corn", "corn"})
	assert.Equal(t, 2, count)
	assert.Equal(t, []string{"flakes", "corn"}, matched)

	assert.Equal(t, 3, findUnion([]string{"corn", "flakes"}, []string{"flakes", "honey"}))
}

func TestIsNumeric(t *testing.T) {
	assert.True(t, isNumeric("500"))
	assert.False(t, isNumeric("500g"))
	assert.False(t, isNumeric(""))
}

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"chicken", "chiken", 1},
		{"kitten", "sitting", 3},
		{"", "abc", 3},
		{"same", "same", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, levenshteinDistance(tt.a, tt.b), "%s -> %s", tt.a, tt.b)
	}
}

func TestFuzzyTokenMatch(t *testing.T) {
	assert.True(t, fuzzyTokenMatch("chiken", "chicken", 1))
	assert.True(t, fuzzyTokenMatch("tea", "tea", 1))
	assert.False(t, fuzzyTokenMatch("tea", "pea", 1)) // too short
	assert.False(t, fuzzyTokenMatch("butter", "buttermilk", 1))
}

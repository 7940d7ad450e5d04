package domain

import "errors"

var (
	// ErrProductNotFound is returned when no provider in the lookup chain knows the product
	ErrProductNotFound = errors.New("product not found")

	// ErrLowConfidence is returned when the match confidence is below the threshold
	ErrLowConfidence = errors.New("match confidence below threshold")

	// ErrRateLimited is returned when rate limit is exceeded
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrUSDAAPIFailure is returned when USDA API request fails
	ErrUSDAAPIFailure = errors.New("USDA API request failed")

	// ErrOpenFoodFactsFailure is returned when an OpenFoodFacts request fails
	ErrOpenFoodFactsFailure = errors.New("OpenFoodFacts request failed")

	// ErrSearchFailure is returned when the web search backend fails
	ErrSearchFailure = errors.New("web search request failed")

	// ErrModelFailure is returned when the language model call fails
	ErrModelFailure = errors.New("language model request failed")

	// ErrProfileNotFound is returned when no profile exists for a name
	ErrProfileNotFound = errors.New("profile not found")

	// ErrProfileExists is returned when onboarding a name that already has a profile
	ErrProfileExists = errors.New("profile already exists")

	// ErrAgentExhausted is returned when the reasoning loop ends without an answer
	ErrAgentExhausted = errors.New("reasoning agent produced no answer")

	// ErrUnknownTool is returned when the model asks for a tool that is not registered
	ErrUnknownTool = errors.New("unknown tool")

	// ErrImageDecode is returned when an uploaded image cannot be decoded
	ErrImageDecode = errors.New("image could not be decoded")
)

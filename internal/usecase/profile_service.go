package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bytelense/backend/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// Login statuses
const (
	LoginStatusExisting = "existing"
	LoginStatusNew      = "new"
)

// LoginResult reports whether a name already has a profile
type LoginResult struct {
	Status             string              `json:"status"`
	UserExists         bool                `json:"user_exists"`
	Profile            *domain.UserProfile `json:"profile,omitempty"`
	RequiresOnboarding bool                `json:"requires_onboarding"`
}

// ProfileService manages user profiles and keeps derived health data in sync
type ProfileService struct {
	store    domain.ProfileStore
	validate *validator.Validate
	logger   zerolog.Logger
	now      func() time.Time
}

// NewProfileService creates a new profile service
func NewProfileService(store domain.ProfileStore, validate *validator.Validate, logger zerolog.Logger) *ProfileService {
	if validate == nil {
		validate = validator.New()
	}
	return &ProfileService{
		store:    store,
		validate: validate,
		logger:   logger.With().Str("component", "profile").Logger(),
		now:      time.Now,
	}
}

// Login checks whether a profile exists for the name
func (s *ProfileService) Login(ctx context.Context, name string) (*LoginResult, error) {
	name = strings.TrimSpace(name)
	if domain.ProfileKey(name) == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidRequest)
	}

	profile, err := s.store.Load(ctx, name)
	switch {
	case errors.Is(err, domain.ErrProfileNotFound):
		return &LoginResult{Status: LoginStatusNew, RequiresOnboarding: true}, nil
	case err != nil:
		return nil, err
	}

	return &LoginResult{
		Status:     LoginStatusExisting,
		UserExists: true,
		Profile:    profile,
	}, nil
}

// Onboard creates a profile and computes its health metrics and daily targets
func (s *ProfileService) Onboard(ctx context.Context, req domain.OnboardingRequest) (*domain.UserProfile, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validateStruct(req); err != nil {
		return nil, err
	}
	if domain.ProfileKey(req.Name) == "" {
		return nil, fmt.Errorf("%w: name must contain letters or digits", domain.ErrInvalidRequest)
	}

	now := s.now().UTC()
	profile := &domain.UserProfile{
		Name:            req.Name,
		Demographics:    req.Demographics,
		LifestyleHabits: req.LifestyleHabits,
		Goals:           req.Goals,
		FoodPreferences: normalizePreferences(req.FoodPreferences),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	ApplyHealthModel(profile)

	if err := s.store.Create(ctx, profile); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("name", profile.Name).
		Float64("calories", profile.DailyTargets.Calories).
		Msg("profile created")
	return profile, nil
}

// Get loads a profile by name
func (s *ProfileService) Get(ctx context.Context, name string) (*domain.UserProfile, error) {
	return s.store.Load(ctx, name)
}

// Update applies a partial update and returns the new profile and the changed fields.
// Metrics and targets are recomputed when demographics, lifestyle or goals change.
func (s *ProfileService) Update(ctx context.Context, name string, update domain.ProfileUpdate) (*domain.UserProfile, []string, error) {
	if update.Empty() {
		return nil, nil, fmt.Errorf("%w: no fields to update", domain.ErrInvalidRequest)
	}
	if err := s.validateStruct(update); err != nil {
		return nil, nil, err
	}

	profile, err := s.store.Load(ctx, name)
	if err != nil {
		return nil, nil, err
	}

	var updated []string
	if update.Demographics != nil {
		profile.Demographics = *update.Demographics
		updated = append(updated, "demographics")
	}
	if update.LifestyleHabits != nil {
		profile.LifestyleHabits = *update.LifestyleHabits
		updated = append(updated, "lifestyle_habits")
	}
	if update.Goals != nil {
		profile.Goals = *update.Goals
		updated = append(updated, "goals")
	}
	if update.FoodPreferences != nil {
		profile.FoodPreferences = normalizePreferences(*update.FoodPreferences)
		updated = append(updated, "food_preferences")
	}

	if update.TouchesHealthInputs() {
		ApplyHealthModel(profile)
		updated = append(updated, "health_metrics", "daily_targets")
	}
	profile.UpdatedAt = s.now().UTC()

	if err := s.store.Save(ctx, profile); err != nil {
		return nil, nil, err
	}

	s.logger.Info().Str("name", profile.Name).Strs("fields", updated).Msg("profile updated")
	return profile, updated, nil
}

func (s *ProfileService) validateStruct(v any) error {
	if err := s.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", domain.ErrInvalidRequest, strings.Join(fields, "; "))
		}
		return fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	return nil
}

// normalizePreferences trims entries, drops blanks and never leaves nil slices
func normalizePreferences(p domain.FoodPreferences) domain.FoodPreferences {
	return domain.FoodPreferences{
		CuisinePreferences:  nonEmpty(p.CuisinePreferences),
		DietaryRestrictions: nonEmpty(p.DietaryRestrictions),
		Allergens:           nonEmpty(p.Allergens),
		DislikedIngredients: nonEmpty(p.DislikedIngredients),
	}
}

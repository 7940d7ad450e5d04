package domain

import (
	"strings"
	"time"
	"unicode"
)

// Primary goals
const (
	GoalLoseWeight     = "lose_weight"
	GoalMaintainWeight = "maintain_weight"
	GoalGainMuscle     = "gain_muscle"
)

// Demographics holds the body measurements used by the health model
type Demographics struct {
	Age      int     `json:"age" validate:"required,gte=1,lte=120"`
	Gender   string  `json:"gender" validate:"required,oneof=male female other"`
	HeightCM float64 `json:"height_cm" validate:"required,gte=50,lte=300"`
	WeightKG float64 `json:"weight_kg" validate:"required,gte=20,lte=500"`
}

// LifestyleHabits holds the activity and habit answers from onboarding
type LifestyleHabits struct {
	SleepHours        float64 `json:"sleep_hours" validate:"gte=0,lte=24"`
	WorkStyle         string  `json:"work_style" validate:"required,oneof=desk_job light_activity physical_job"`
	ExerciseFrequency string  `json:"exercise_frequency" validate:"required,oneof=rarely 1-2_times_week 3-4_times_week 5_times_week daily"`
	CommuteType       string  `json:"commute_type" validate:"required,oneof=car public_transport bike walk"`
	Smoking           string  `json:"smoking" validate:"required,oneof=yes no occasionally"`
	Alcohol           string  `json:"alcohol" validate:"required,oneof=none light moderate heavy"`
	StressLevel       string  `json:"stress_level" validate:"required,oneof=low moderate high"`
}

// HealthGoals holds what the user wants to achieve
type HealthGoals struct {
	PrimaryGoal    string   `json:"primary_goal" validate:"required,oneof=lose_weight maintain_weight gain_muscle"`
	TargetWeightKG *float64 `json:"target_weight_kg,omitempty" validate:"omitempty,gte=20,lte=500"`
	TimelineWeeks  *int     `json:"timeline_weeks,omitempty" validate:"omitempty,gte=1,lte=104"`
}

// FoodPreferences holds dietary preferences and allergens
type FoodPreferences struct {
	CuisinePreferences  []string `json:"cuisine_preferences"`
	DietaryRestrictions []string `json:"dietary_restrictions"`
	Allergens           []string `json:"allergens"`
	DislikedIngredients []string `json:"disliked_ingredients"`
}

// HealthMetrics is computed from demographics and lifestyle
type HealthMetrics struct {
	BMI               float64  `json:"bmi"`
	BMICategory       string   `json:"bmi_category"`
	BMR               float64  `json:"bmr"`
	TDEE              float64  `json:"tdee"`
	DailyEnergyTarget float64  `json:"daily_energy_target"`
	HealthRisks       []string `json:"health_risks"`
}

// DailyTargets holds the personalized daily nutrient targets
type DailyTargets struct {
	Calories float64 `json:"calories"`
	ProteinG float64 `json:"protein_g"`
	CarbsG   float64 `json:"carbs_g"`
	FatG     float64 `json:"fat_g"`
	FiberG   float64 `json:"fiber_g"`
	SugarG   float64 `json:"sugar_g"`
	SodiumMG float64 `json:"sodium_mg"`
}

// UserProfile is the persisted profile keyed by name.
// HealthMetrics and DailyTargets are derived and recomputed whenever
// Demographics, LifestyleHabits or Goals change.
type UserProfile struct {
	Name            string          `json:"name" validate:"required,min=1,max=100"`
	Demographics    Demographics    `json:"demographics" validate:"required"`
	LifestyleHabits LifestyleHabits `json:"lifestyle_habits" validate:"required"`
	Goals           HealthGoals     `json:"goals" validate:"required"`
	FoodPreferences FoodPreferences `json:"food_preferences"`
	HealthMetrics   HealthMetrics   `json:"health_metrics"`
	DailyTargets    DailyTargets    `json:"daily_targets"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// OnboardingRequest is the payload used to create a profile
type OnboardingRequest struct {
	Name            string          `json:"name" validate:"required,min=1,max=100"`
	Demographics    Demographics    `json:"demographics" validate:"required"`
	LifestyleHabits LifestyleHabits `json:"lifestyle_habits" validate:"required"`
	Goals           HealthGoals     `json:"goals" validate:"required"`
	FoodPreferences FoodPreferences `json:"food_preferences"`
}

// ProfileUpdate is a partial profile update; nil sections are left untouched
type ProfileUpdate struct {
	Demographics    *Demographics    `json:"demographics,omitempty" validate:"omitempty"`
	LifestyleHabits *LifestyleHabits `json:"lifestyle_habits,omitempty" validate:"omitempty"`
	Goals           *HealthGoals     `json:"goals,omitempty" validate:"omitempty"`
	FoodPreferences *FoodPreferences `json:"food_preferences,omitempty"`
}

// Empty reports whether the update carries no sections
func (u ProfileUpdate) Empty() bool {
	return u.Demographics == nil && u.LifestyleHabits == nil && u.Goals == nil && u.FoodPreferences == nil
}

// TouchesHealthInputs reports whether applying the update requires recomputing targets
func (u ProfileUpdate) TouchesHealthInputs() bool {
	return u.Demographics != nil || u.LifestyleHabits != nil || u.Goals != nil
}

// ProfileKey normalizes a profile name for storage lookups.
// Only letters, digits, '-' and '_' are kept, lowercased.
func ProfileKey(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

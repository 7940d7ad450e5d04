package usecase

import (
	"math"

	"github.com/bytelense/backend/internal/domain"
)

// BMI category upper bounds (kg/m²), lower bound inclusive
const (
	bmiUnderweightMax = 18.5
	bmiNormalMax      = 25.0
	bmiOverweightMax  = 30.0
)

// Activity multiplier bounds
const (
	minActivityMultiplier = 1.2
	maxActivityMultiplier = 2.5
	poorSleepPenalty      = 0.05
	smokingPenalty        = 0.03
	poorSleepHours        = 6.0
)

// Calorie adjustments for weight goals
const (
	weightLossDeficit = 500.0
	weightGainSurplus = 300.0
)

// Fixed daily targets
const (
	maleFiberTargetG  = 30.0
	otherFiberTargetG = 25.0
	sodiumTargetMG    = 2000.0
)

var workStyleMultiplier = map[string]float64{
	"desk_job":       1.2,
	"light_activity": 1.375,
	"physical_job":   1.55,
}

var exerciseBonus = map[string]float64{
	"rarely":         0.0,
	"1-2_times_week": 0.05,
	"3-4_times_week": 0.1,
	"5_times_week":   0.15,
	"daily":          0.2,
}

var commuteBonus = map[string]float64{
	"car":              0.0,
	"public_transport": 0.02,
	"bike":             0.08,
	"walk":             0.05,
}

// CalculateHealth derives health metrics and daily nutrient targets from a profile's inputs.
// It is pure: identical inputs always give identical outputs. All numbers are rounded to one decimal.
func CalculateHealth(
	demographics domain.Demographics,
	lifestyle domain.LifestyleHabits,
	goals domain.HealthGoals,
) (domain.HealthMetrics, domain.DailyTargets) {
	bmi := calculateBMI(demographics.HeightCM, demographics.WeightKG)
	category := bmiCategory(bmi)
	bmr := calculateBMR(demographics.WeightKG, demographics.HeightCM, demographics.Age, demographics.Gender)
	tdee := bmr * activityMultiplier(lifestyle)
	target := adjustCaloriesForGoal(tdee, goals.TargetWeightKG, demographics.WeightKG)

	metrics := domain.HealthMetrics{
		BMI:               round1(bmi),
		BMICategory:       category,
		BMR:               round1(bmr),
		TDEE:              round1(tdee),
		DailyEnergyTarget: round1(target),
		HealthRisks:       assessHealthRisks(category, lifestyle),
	}

	return metrics, dailyTargets(target, goals.PrimaryGoal, demographics.Gender)
}

// ApplyHealthModel recomputes the derived sections of a profile in place
func ApplyHealthModel(profile *domain.UserProfile) {
	profile.HealthMetrics, profile.DailyTargets = CalculateHealth(
		profile.Demographics, profile.LifestyleHabits, profile.Goals)
}

func calculateBMI(heightCM, weightKG float64) float64 {
	if heightCM <= 0 {
		return 0
	}
	heightM := heightCM / 100
	return weightKG / (heightM * heightM)
}

// bmiCategory classifies the unrounded BMI
func bmiCategory(bmi float64) string {
	switch {
	case bmi < bmiUnderweightMax:
		return "underweight"
	case bmi < bmiNormalMax:
		return "normal"
	case bmi < bmiOverweightMax:
		return "overweight"
	default:
		return "obese"
	}
}

// calculateBMR uses the Mifflin-St Jeor equation
func calculateBMR(weightKG, heightCM float64, age int, gender string) float64 {
	base := 10*weightKG + 6.25*heightCM - 5*float64(age)

	switch gender {
	case "male":
		return base + 5
	case "female":
		return base - 161
	default:
		return base - 78
	}
}

func activityMultiplier(lifestyle domain.LifestyleHabits) float64 {
	base, ok := workStyleMultiplier[lifestyle.WorkStyle]
	if !ok {
		base = minActivityMultiplier
	}

	total := base + exerciseBonus[lifestyle.ExerciseFrequency] + commuteBonus[lifestyle.CommuteType]

	if lifestyle.SleepHours < poorSleepHours {
		total -= poorSleepPenalty
	}
	if lifestyle.Smoking == "yes" {
		total -= smokingPenalty
	}

	return math.Max(minActivityMultiplier, math.Min(maxActivityMultiplier, total))
}

// adjustCaloriesForGoal applies a deficit or surplus; no target weight means maintenance
func adjustCaloriesForGoal(tdee float64, targetWeightKG *float64, currentWeightKG float64) float64 {
	if targetWeightKG == nil {
		return tdee
	}

	switch {
	case *targetWeightKG < currentWeightKG:
		return tdee - weightLossDeficit
	case *targetWeightKG > currentWeightKG:
		return tdee + weightGainSurplus
	default:
		return tdee
	}
}

func assessHealthRisks(category string, lifestyle domain.LifestyleHabits) []string {
	risks := []string{}

	switch category {
	case "underweight":
		risks = append(risks, "underweight_malnutrition_risk")
	case "overweight":
		risks = append(risks, "overweight_cardiovascular_risk")
	case "obese":
		risks = append(risks, "obesity_multiple_disease_risk")
	}

	if lifestyle.SleepHours < poorSleepHours {
		risks = append(risks, "insufficient_sleep")
	}
	if lifestyle.Smoking == "yes" {
		risks = append(risks, "smoking_health_hazard")
	}
	if lifestyle.Alcohol == "heavy" {
		risks = append(risks, "excessive_alcohol_consumption")
	}
	if lifestyle.ExerciseFrequency == "rarely" {
		risks = append(risks, "sedentary_lifestyle")
	}

	return risks
}

// dailyTargets splits the calorie target into macronutrients (4 kcal/g protein and carbs, 9 kcal/g fat)
func dailyTargets(calories float64, primaryGoal, gender string) domain.DailyTargets {
	proteinShare := 0.20
	if primaryGoal == domain.GoalGainMuscle {
		proteinShare = 0.30
	}

	carbShare := 0.50
	if primaryGoal == domain.GoalLoseWeight {
		carbShare = 0.40
	}

	fiber := otherFiberTargetG
	if gender == "male" {
		fiber = maleFiberTargetG
	}

	return domain.DailyTargets{
		Calories: round1(calories),
		ProteinG: round1(calories * proteinShare / 4),
		CarbsG:   round1(calories * carbShare / 4),
		FatG:     round1(calories * 0.25 / 9),
		FiberG:   fiber,
		SugarG:   round1(calories * 0.10 / 4),
		SodiumMG: sodiumTargetMG,
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Package dosing turns a carbohydrate amount and a personal dosing profile
// into a recommended insulin bolus. Every function is pure.
package dosing

import (
	"fmt"
	"math"

	"github.com/dukerupert/diabyte/internal/model"
	"github.com/shopspring/decimal"
)

// Result is the outcome of a dose calculation. DoseUnits is nil when the
// profile is missing or has no usable carb ratio; that is a normal outcome.
// The components are unrounded, so DoseUnits always equals
// max(0, Round(BolusComponent+CorrectionComponent, 2)).
type Result struct {
	CarbsGrams          float64  `json:"carbs_g"`
	DoseUnits           *float64 `json:"dose_units"`
	BolusComponent      *float64 `json:"bolus_component"`
	CorrectionComponent *float64 `json:"correction_component"`
}

// Round rounds v to places decimals, half away from zero. Rounding works on
// the shortest decimal representation of v, so 1.005 rounds to 1.01.
func Round(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

// ComputeCarbs returns the carbohydrate grams in grams units of a source
// holding carbsPer100 grams of carbohydrate per 100 units, rounded to 2 places.
func ComputeCarbs(carbsPer100, grams float64) (float64, error) {
	if !finite(grams) || grams <= 0 {
		return 0, fmt.Errorf("%w: grams must be greater than zero", model.ErrInvalidInput)
	}
	if !finite(carbsPer100) || carbsPer100 < 0 {
		return 0, fmt.Errorf("%w: carbs per 100 must not be negative", model.ErrInvalidInput)
	}
	return Round(grams*carbsPer100/100, 2), nil
}

// ComputeDose applies the profile to carbsGrams and an optional pre-meal
// blood glucose reading in mg/dL.
//
// The correction term may be negative and is only clamped as part of the
// total. A correction without a carb ratio is never turned into a dose.
func ComputeDose(carbsGrams float64, profile *model.DosingProfile, preMealBG *float64) Result {
	res := Result{CarbsGrams: carbsGrams}
	if profile == nil || profile.CarbRatio == nil || *profile.CarbRatio <= 0 {
		return res
	}

	bolus := carbsGrams / *profile.CarbRatio
	raw := bolus
	res.BolusComponent = ptr(bolus)

	if preMealBG != nil && profile.CorrectionFactor != nil && *profile.CorrectionFactor > 0 && profile.TargetBG != nil {
		correction := (*preMealBG - *profile.TargetBG) / *profile.CorrectionFactor
		raw += correction
		res.CorrectionComponent = ptr(correction)
	}

	dose := math.Max(0, Round(raw, 2))
	res.DoseUnits = &dose
	return res
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func ptr(v float64) *float64 {
	return &v
}

// Package intake calculates doses for catalog foods and keeps the per-user
// ledger of what was eaten and injected.
package intake

import (
	"fmt"
	"math"
	"time"

	"github.com/dukerupert/diabyte/internal/dosing"
	"github.com/dukerupert/diabyte/internal/model"
	"github.com/dukerupert/diabyte/internal/source"
	"github.com/dukerupert/diabyte/internal/store"
)

const maxBG = 1000

// Calculation is a read-only dose suggestion for a catalog food.
type Calculation struct {
	Food  model.Food `json:"food"`
	Grams float64    `json:"grams"`
	PreBG *float64   `json:"pre_bg"`
	dosing.Result
}

// SaveRequest describes a serving to append to the ledger. CarbsGrams is
// only honoured when the source density is unknown.
type SaveRequest struct {
	SourceType model.SourceType `json:"source_type"`
	SourceID   int64            `json:"source_id"`
	Grams      float64          `json:"grams"`
	CarbsGrams *float64         `json:"carbs_g"`
	DoseUnits  *float64         `json:"dose_units"`
	PreBG      *float64         `json:"pre_bg"`
	PostBG     *float64         `json:"post_bg"`
}

type Service struct {
	intakes      *store.IntakeStore
	foods        *store.FoodStore
	profiles     *store.ProfileStore
	sources      *source.Registry
	historyLimit int
}

// NewService wires the ledger. historyLimit is the page size used when a
// caller does not ask for one.
func NewService(intakes *store.IntakeStore, foods *store.FoodStore, profiles *store.ProfileStore, sources *source.Registry, historyLimit int) *Service {
	return &Service{
		intakes:      intakes,
		foods:        foods,
		profiles:     profiles,
		sources:      sources,
		historyLimit: historyLimit,
	}
}

// Calculate suggests a dose for grams of foodID using the user's profile.
// Nothing is persisted.
func (s *Service) Calculate(userID, foodID int64, grams float64, preBG *float64) (*Calculation, error) {
	if err := checkBG("pre_bg", preBG); err != nil {
		return nil, err
	}
	food, err := s.foods.GetByID(foodID)
	if err != nil {
		return nil, err
	}
	if food == nil {
		return nil, fmt.Errorf("%w: food %d", model.ErrNotFound, foodID)
	}

	carbs, err := dosing.ComputeCarbs(food.CarbsPer100, grams)
	if err != nil {
		return nil, err
	}
	profile, err := s.profiles.Get(userID)
	if err != nil {
		return nil, err
	}

	return &Calculation{
		Food:   *food,
		Grams:  grams,
		PreBG:  preBG,
		Result: dosing.ComputeDose(carbs, profile, preBG),
	}, nil
}

// Save appends a ledger entry. Carbs are recomputed from the source density
// when it is known; the dose is stored exactly as supplied.
func (s *Service) Save(userID int64, req SaveRequest) (*model.IntakeRecord, error) {
	if req.SourceType == "" {
		req.SourceType = model.SourceFood
	}
	if !finite(req.Grams) || req.Grams <= 0 {
		return nil, fmt.Errorf("%w: grams must be greater than zero", model.ErrInvalidInput)
	}
	if req.DoseUnits != nil && (!finite(*req.DoseUnits) || *req.DoseUnits < 0) {
		return nil, fmt.Errorf("%w: dose_units must not be negative", model.ErrInvalidInput)
	}
	if req.CarbsGrams != nil && (!finite(*req.CarbsGrams) || *req.CarbsGrams < 0) {
		return nil, fmt.Errorf("%w: carbs_g must not be negative", model.ErrInvalidInput)
	}
	if err := checkBG("pre_bg", req.PreBG); err != nil {
		return nil, err
	}
	if err := checkBG("post_bg", req.PostBG); err != nil {
		return nil, err
	}

	// Record checks the source again when inserting.
	src, err := s.sources.Resolve(userID, req.SourceType, req.SourceID)
	if err != nil {
		return nil, err
	}

	var carbs float64
	switch {
	case src.CarbsPer100 != nil:
		carbs, err = dosing.ComputeCarbs(*src.CarbsPer100, req.Grams)
		if err != nil {
			return nil, err
		}
	case req.CarbsGrams != nil:
		carbs = dosing.Round(*req.CarbsGrams, 2)
	default:
		return nil, fmt.Errorf("%w: carbs_g is required for %s %d", model.ErrInvalidInput, src.Type, src.ID)
	}

	return s.intakes.Record(model.IntakeRecord{
		UserID:     userID,
		SourceType: src.Type,
		SourceID:   src.ID,
		Grams:      req.Grams,
		CarbsGrams: carbs,
		DoseUnits:  req.DoseUnits,
		PreBG:      req.PreBG,
		PostBG:     req.PostBG,
	})
}

// AttachPostBG records the post-meal reading, replacing any earlier one.
func (s *Service) AttachPostBG(userID, recordID int64, postBG float64) (*model.IntakeRecord, error) {
	if err := checkBG("post_bg", &postBG); err != nil {
		return nil, err
	}
	return s.intakes.AttachPostBG(userID, recordID, postBG)
}

// History lists the user's entries newest first.
func (s *Service) History(userID int64, limit int) ([]model.IntakeRecord, error) {
	if limit <= 0 {
		limit = s.historyLimit
	}
	return s.intakes.History(userID, limit)
}

// Today summarizes entries recorded since midnight in now's location.
func (s *Service) Today(userID int64, now time.Time) (*model.IntakeSummary, error) {
	y, m, d := now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	sum, err := s.intakes.SummarySince(userID, midnight)
	if err != nil {
		return nil, err
	}
	sum.CarbsGrams = dosing.Round(sum.CarbsGrams, 2)
	sum.DoseUnits = dosing.Round(sum.DoseUnits, 2)
	return sum, nil
}

func checkBG(field string, v *float64) error {
	if v == nil {
		return nil
	}
	if !finite(*v) || *v <= 0 || *v > maxBG {
		return fmt.Errorf("%w: %s must be in (0, %d]", model.ErrInvalidInput, field, maxBG)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

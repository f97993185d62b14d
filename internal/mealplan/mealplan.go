// Package mealplan composes per-day meal plans from catalog foods and
// recipes and aggregates their carbohydrate totals.
package mealplan

import (
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/diabyte/internal/dosing"
	"github.com/dukerupert/diabyte/internal/model"
	"github.com/dukerupert/diabyte/internal/source"
	"github.com/dukerupert/diabyte/internal/store"
)

// ItemView is a meal item with its source resolved. CarbsGrams is nil when
// the source density is unknown or the source no longer exists.
type ItemView struct {
	model.MealItem
	SourceName string   `json:"source_name"`
	CarbsGrams *float64 `json:"carbs_g"`
}

// Total sums the known carb values. Excluded counts items whose carbs are
// unknown; Complete is true only when none were excluded.
type Total struct {
	CarbsGrams float64 `json:"carbs_g"`
	Excluded   int     `json:"excluded"`
	Complete   bool    `json:"complete"`
}

// BlockView holds one meal block's items in insertion order and its total.
type BlockView struct {
	Block model.Block `json:"block"`
	Items []ItemView  `json:"items"`
	Total
}

// DayView is a whole day's plan: all four blocks in display order, even
// empty ones, plus the total across blocks.
type DayView struct {
	Plan   model.MealPlan `json:"plan"`
	Blocks []BlockView    `json:"blocks"`
	Total
}

// Service runs meal plan operations for an authenticated user.
type Service struct {
	plans   *store.MealPlanStore
	sources *source.Registry
}

// NewService builds a Service; sources resolves item densities for Day.
func NewService(plans *store.MealPlanStore, sources *source.Registry) *Service {
	return &Service{plans: plans, sources: sources}
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(store.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD", model.ErrInvalidInput)
	}
	return d, nil
}

func (s *Service) GetOrCreate(userID int64, date time.Time) (*model.MealPlan, error) {
	return s.plans.GetOrCreate(userID, date)
}

// AddItem appends an item to the plan for date. The store checks that the
// source exists and is visible to the user in the same transaction that
// inserts the item, so a missing source yields model.ErrNotFound.
func (s *Service) AddItem(userID int64, date time.Time, block model.Block, sourceType model.SourceType, sourceID int64, grams float64) (*model.MealItem, error) {
	return s.plans.AddItem(userID, date, block, sourceType, sourceID, grams)
}

func (s *Service) UpdateItemGrams(userID, planID, itemID int64, grams float64) (*model.MealItem, error) {
	return s.plans.UpdateItemGrams(userID, planID, itemID, grams)
}

func (s *Service) RemoveItem(userID, planID, itemID int64) error {
	return s.plans.RemoveItem(userID, planID, itemID)
}

func (s *Service) DeletePlan(userID int64, date time.Time) error {
	return s.plans.DeletePlan(userID, date)
}

// Day returns the plan for date grouped into the fixed blocks, creating an
// empty plan when none exists.
func (s *Service) Day(userID int64, date time.Time) (*DayView, error) {
	plan, err := s.plans.GetOrCreate(userID, date)
	if err != nil {
		return nil, err
	}
	items, err := s.plans.ListItems(plan.ID)
	if err != nil {
		return nil, err
	}

	byBlock := make(map[model.Block][]ItemView, len(model.Blocks))
	var all []ItemView
	for _, it := range items {
		view, err := s.resolveItem(userID, it)
		if err != nil {
			return nil, err
		}
		byBlock[it.Block] = append(byBlock[it.Block], view)
		all = append(all, view)
	}

	day := &DayView{Plan: *plan, Blocks: make([]BlockView, 0, len(model.Blocks))}
	for _, b := range model.Blocks {
		views := byBlock[b]
		if views == nil {
			views = []ItemView{}
		}
		day.Blocks = append(day.Blocks, BlockView{Block: b, Items: views, Total: TotalCarbs(views)})
	}
	day.Total = TotalCarbs(all)
	return day, nil
}

func (s *Service) resolveItem(userID int64, it model.MealItem) (ItemView, error) {
	view := ItemView{MealItem: it}
	src, err := s.sources.Resolve(userID, it.SourceType, it.SourceID)
	if errors.Is(err, model.ErrNotFound) {
		return view, nil
	}
	if err != nil {
		return view, err
	}
	view.SourceName = src.Name
	if src.CarbsPer100 == nil {
		return view, nil
	}
	carbs, err := dosing.ComputeCarbs(*src.CarbsPer100, it.Grams)
	if err != nil {
		return view, err
	}
	view.CarbsGrams = &carbs
	return view, nil
}

// TotalCarbs sums the known per-item carbs, rounded to two places.
func TotalCarbs(items []ItemView) Total {
	var t Total
	for _, it := range items {
		if it.CarbsGrams == nil {
			t.Excluded++
			continue
		}
		t.CarbsGrams += *it.CarbsGrams
	}
	t.CarbsGrams = dosing.Round(t.CarbsGrams, 2)
	t.Complete = t.Excluded == 0
	return t
}

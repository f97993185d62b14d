package intake

import (
	"errors"
	"testing"
	"time"

	"github.com/dukerupert/diabyte/internal/database"
	"github.com/dukerupert/diabyte/internal/model"
	"github.com/dukerupert/diabyte/internal/source"
	"github.com/dukerupert/diabyte/internal/store"
)

func f64(v float64) *float64 { return &v }

type fixture struct {
	svc      *Service
	foods    *store.FoodStore
	recipes  *store.RecipeStore
	profiles *store.ProfileStore
	alice    *model.User
	bob      *model.User
}

func setupService(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	us := store.NewUserStore(db)
	alice, err := us.Create("alice@example.com", "Alice", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	bob, err := us.Create("bob@example.com", "Bob", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	fs := store.NewFoodStore(db)
	rs := store.NewRecipeStore(db)
	ps := store.NewProfileStore(db)
	reg := source.NewRegistry(source.Foods{Store: fs}, source.Recipes{Store: rs})
	return &fixture{
		svc:      NewService(store.NewIntakeStore(db), fs, ps, reg, 3),
		foods:    fs,
		recipes:  rs,
		profiles: ps,
		alice:    alice,
		bob:      bob,
	}
}

func (f *fixture) setProfile(t *testing.T, userID int64, ratio, cf, target float64) {
	t.Helper()
	_, err := f.profiles.Put(model.DosingProfile{
		UserID:           userID,
		CarbRatio:        f64(ratio),
		CorrectionFactor: f64(cf),
		TargetBG:         f64(target),
	})
	if err != nil {
		t.Fatalf("put profile: %v", err)
	}
}

func (f *fixture) food(t *testing.T, carbsPer100 float64) *model.Food {
	t.Helper()
	food, err := f.foods.Create("Test food", carbsPer100, nil, "g", nil)
	if err != nil {
		t.Fatalf("create food: %v", err)
	}
	return food
}

func TestCalculateWithProfile(t *testing.T) {
	f := setupService(t)
	food := f.food(t, 60)
	f.setProfile(t, f.alice.ID, 10, 50, 100)

	calc, err := f.svc.Calculate(f.alice.ID, food.ID, 150, f64(180))
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if calc.CarbsGrams != 90 {
		t.Errorf("carbs = %v, want 90", calc.CarbsGrams)
	}
	if calc.DoseUnits == nil || *calc.DoseUnits != 10.6 {
		t.Errorf("dose = %v, want 10.6", calc.DoseUnits)
	}
	if calc.Food.ID != food.ID {
		t.Errorf("food id = %d, want %d", calc.Food.ID, food.ID)
	}
}

func TestCalculateWithoutProfile(t *testing.T) {
	f := setupService(t)
	food := f.food(t, 60)

	calc, err := f.svc.Calculate(f.alice.ID, food.ID, 150, f64(180))
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if calc.CarbsGrams != 90 {
		t.Errorf("carbs = %v, want 90", calc.CarbsGrams)
	}
	if calc.DoseUnits != nil {
		t.Errorf("dose = %v, want nil", *calc.DoseUnits)
	}
}

func TestCalculateErrors(t *testing.T) {
	f := setupService(t)
	food := f.food(t, 60)

	if _, err := f.svc.Calculate(f.alice.ID, 9999, 100, nil); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("missing food err = %v, want ErrNotFound", err)
	}
	if _, err := f.svc.Calculate(f.alice.ID, food.ID, 0, nil); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("zero grams err = %v, want ErrInvalidInput", err)
	}
	if _, err := f.svc.Calculate(f.alice.ID, food.ID, 100, f64(1500)); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("bg out of range err = %v, want ErrInvalidInput", err)
	}
}

func TestSaveRecomputesCarbs(t *testing.T) {
	f := setupService(t)
	food := f.food(t, 60)

	rec, err := f.svc.Save(f.alice.ID, SaveRequest{
		SourceID:   food.ID,
		Grams:      150,
		CarbsGrams: f64(12345),
		DoseUnits:  f64(9.5),
		PreBG:      f64(180),
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if rec.SourceType != model.SourceFood {
		t.Errorf("source type = %q, want food", rec.SourceType)
	}
	if rec.CarbsGrams != 90 {
		t.Errorf("carbs = %v, want 90 recomputed from the catalog", rec.CarbsGrams)
	}
	if rec.DoseUnits == nil || *rec.DoseUnits != 9.5 {
		t.Errorf("dose = %v, want 9.5 as supplied", rec.DoseUnits)
	}
	if rec.SourceName != "Test food" {
		t.Errorf("source name = %q", rec.SourceName)
	}
}

func TestSaveRecipeUnknownDensity(t *testing.T) {
	f := setupService(t)
	stew, _ := f.recipes.Create(f.alice.ID, "Stew", nil)

	_, err := f.svc.Save(f.alice.ID, SaveRequest{SourceType: model.SourceRecipe, SourceID: stew.ID, Grams: 300})
	if !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("missing carbs err = %v, want ErrInvalidInput", err)
	}

	rec, err := f.svc.Save(f.alice.ID, SaveRequest{SourceType: model.SourceRecipe, SourceID: stew.ID, Grams: 300, CarbsGrams: f64(42.123)})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if rec.CarbsGrams != 42.12 {
		t.Errorf("carbs = %v, want 42.12", rec.CarbsGrams)
	}

	if _, err := f.svc.Save(f.bob.ID, SaveRequest{SourceType: model.SourceRecipe, SourceID: stew.ID, Grams: 300, CarbsGrams: f64(40)}); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("foreign recipe err = %v, want ErrNotFound", err)
	}
}

func TestSaveValidation(t *testing.T) {
	f := setupService(t)
	food := f.food(t, 60)

	cases := []struct {
		name string
		req  SaveRequest
	}{
		{"zero grams", SaveRequest{SourceID: food.ID, Grams: 0}},
		{"negative dose", SaveRequest{SourceID: food.ID, Grams: 10, DoseUnits: f64(-1)}},
		{"negative carbs", SaveRequest{SourceID: food.ID, Grams: 10, CarbsGrams: f64(-1)}},
		{"zero pre bg", SaveRequest{SourceID: food.ID, Grams: 10, PreBG: f64(0)}},
		{"high post bg", SaveRequest{SourceID: food.ID, Grams: 10, PostBG: f64(1001)}},
		{"bad source type", SaveRequest{SourceType: "drink", SourceID: food.ID, Grams: 10}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.svc.Save(f.alice.ID, tc.req); !errors.Is(err, model.ErrInvalidInput) {
				t.Errorf("err = %v, want ErrInvalidInput", err)
			}
		})
	}

	if _, err := f.svc.Save(f.alice.ID, SaveRequest{SourceID: 9999, Grams: 10}); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("missing food err = %v, want ErrNotFound", err)
	}
}

// Saving without a profile keeps the computed carbs and a null dose.
func TestSaveWithoutProfile(t *testing.T) {
	f := setupService(t)
	food := f.food(t, 60)

	calc, err := f.svc.Calculate(f.alice.ID, food.ID, 150, nil)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	rec, err := f.svc.Save(f.alice.ID, SaveRequest{SourceID: food.ID, Grams: 150, DoseUnits: calc.DoseUnits})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if rec.CarbsGrams != 90 {
		t.Errorf("carbs = %v, want 90", rec.CarbsGrams)
	}
	if rec.DoseUnits != nil {
		t.Errorf("dose = %v, want nil", *rec.DoseUnits)
	}
}

func TestAttachPostBG(t *testing.T) {
	f := setupService(t)
	food := f.food(t, 60)
	rec, _ := f.svc.Save(f.alice.ID, SaveRequest{SourceID: food.ID, Grams: 100})

	got, err := f.svc.AttachPostBG(f.alice.ID, rec.ID, 150)
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if got.PostBG == nil || *got.PostBG != 150 {
		t.Errorf("post bg = %v, want 150", got.PostBG)
	}
	if !got.OccurredAt.Equal(rec.OccurredAt) {
		t.Error("occurred_at must not change")
	}

	if _, err := f.svc.AttachPostBG(f.bob.ID, rec.ID, 150); !errors.Is(err, model.ErrForbidden) {
		t.Errorf("other user err = %v, want ErrForbidden", err)
	}
	if _, err := f.svc.AttachPostBG(f.alice.ID, rec.ID, -3); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("negative bg err = %v, want ErrInvalidInput", err)
	}
}

func TestHistoryDefaultLimit(t *testing.T) {
	f := setupService(t)
	food := f.food(t, 60)
	for range 5 {
		if _, err := f.svc.Save(f.alice.ID, SaveRequest{SourceID: food.ID, Grams: 50}); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	got, err := f.svc.History(f.alice.ID, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("len = %d, want configured default 3", len(got))
	}

	got, err = f.svc.History(f.alice.ID, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(got) != 5 {
		t.Errorf("len = %d, want 5", len(got))
	}

	other, _ := f.svc.History(f.bob.ID, 0)
	if len(other) != 0 {
		t.Errorf("bob sees %d entries, want 0", len(other))
	}
}

func TestToday(t *testing.T) {
	f := setupService(t)
	food := f.food(t, 60)
	f.svc.Save(f.alice.ID, SaveRequest{SourceID: food.ID, Grams: 100, DoseUnits: f64(4)})
	f.svc.Save(f.alice.ID, SaveRequest{SourceID: food.ID, Grams: 50, DoseUnits: f64(2.5)})

	sum, err := f.svc.Today(f.alice.ID, time.Now())
	if err != nil {
		t.Fatalf("today: %v", err)
	}
	if sum.Count != 2 {
		t.Errorf("count = %d, want 2", sum.Count)
	}
	if sum.CarbsGrams != 90 {
		t.Errorf("carbs = %v, want 90", sum.CarbsGrams)
	}
	if sum.DoseUnits != 6.5 {
		t.Errorf("dose = %v, want 6.5", sum.DoseUnits)
	}

	tomorrow, err := f.svc.Today(f.alice.ID, time.Now().Add(48*time.Hour))
	if err != nil {
		t.Fatalf("today: %v", err)
	}
	if tomorrow.Count != 0 {
		t.Errorf("count = %d, want 0 for a later day", tomorrow.Count)
	}
}

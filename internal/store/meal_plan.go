package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/diabyte/internal/model"
)

// DateLayout is the canonical calendar-date form stored in plan_date.
const DateLayout = "2006-01-02"

const maxItemGrams = 100000

type MealPlanStore struct {
	db *sql.DB
}

func NewMealPlanStore(db *sql.DB) *MealPlanStore {
	return &MealPlanStore{db: db}
}

func scanMealPlan(scanner interface{ Scan(...any) error }) (*model.MealPlan, error) {
	var p model.MealPlan
	err := scanner.Scan(&p.ID, &p.UserID, &p.Date, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanMealItem(scanner interface{ Scan(...any) error }) (*model.MealItem, error) {
	var it model.MealItem
	err := scanner.Scan(&it.ID, &it.PlanID, &it.Block, &it.SourceType, &it.SourceID, &it.Grams, &it.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

const mealPlanCols = `id, user_id, plan_date, created_at`
const mealItemCols = `id, plan_id, block, source_type, source_id, grams, created_at`

func validGrams(grams float64) bool {
	return grams > 0 && grams <= maxItemGrams
}

// GetOrCreate returns the user's plan for date, creating it if absent.
// Concurrent callers always observe the same plan.
func (s *MealPlanStore) GetOrCreate(userID int64, date time.Time) (*model.MealPlan, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	p, err := getOrCreatePlan(tx, userID, date)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return p, nil
}

func getOrCreatePlan(tx *sql.Tx, userID int64, date time.Time) (*model.MealPlan, error) {
	day := date.Format(DateLayout)
	_, err := tx.Exec(
		`INSERT INTO meal_plans (user_id, plan_date) VALUES (?, ?)
		 ON CONFLICT(user_id, plan_date) DO NOTHING`,
		userID, day,
	)
	if err != nil {
		return nil, fmt.Errorf("insert meal plan: %w", err)
	}
	row := tx.QueryRow(`SELECT `+mealPlanCols+` FROM meal_plans WHERE user_id = ? AND plan_date = ?`, userID, day)
	p, err := scanMealPlan(row)
	if err != nil {
		return nil, fmt.Errorf("get meal plan: %w", err)
	}
	return p, nil
}

// GetByDate returns the plan or nil when the user has none for date.
func (s *MealPlanStore) GetByDate(userID int64, date time.Time) (*model.MealPlan, error) {
	row := s.db.QueryRow(
		`SELECT `+mealPlanCols+` FROM meal_plans WHERE user_id = ? AND plan_date = ?`,
		userID, date.Format(DateLayout),
	)
	p, err := scanMealPlan(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get meal plan by date: %w", err)
	}
	return p, nil
}

func (s *MealPlanStore) GetByID(id int64) (*model.MealPlan, error) {
	row := s.db.QueryRow(`SELECT `+mealPlanCols+` FROM meal_plans WHERE id = ?`, id)
	p, err := scanMealPlan(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get meal plan: %w", err)
	}
	return p, nil
}

// AddItem appends an item to the user's plan for date, creating the plan in
// the same transaction when needed.
func (s *MealPlanStore) AddItem(userID int64, date time.Time, block model.Block, sourceType model.SourceType, sourceID int64, grams float64) (*model.MealItem, error) {
	if !block.Valid() {
		return nil, fmt.Errorf("%w: unknown block %q", model.ErrInvalidInput, block)
	}
	if !sourceType.Valid() {
		return nil, fmt.Errorf("%w: unknown source type %q", model.ErrInvalidInput, sourceType)
	}
	if !validGrams(grams) {
		return nil, fmt.Errorf("%w: grams must be in (0, %d]", model.ErrInvalidInput, maxItemGrams)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	plan, err := getOrCreatePlan(tx, userID, date)
	if err != nil {
		return nil, err
	}

	args := append([]any{plan.ID, block, sourceType, sourceID, grams}, sourceVisibleArgs(userID, sourceType, sourceID)...)
	result, err := tx.Exec(
		`INSERT INTO meal_items (plan_id, block, source_type, source_id, grams)
		 SELECT ?, ?, ?, ?, ? WHERE `+sourceVisible,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("insert meal item: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		return nil, fmt.Errorf("%w: %s %d", model.ErrNotFound, sourceType, sourceID)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	row := tx.QueryRow(`SELECT `+mealItemCols+` FROM meal_items WHERE id = ?`, id)
	item, err := scanMealItem(row)
	if err != nil {
		return nil, fmt.Errorf("get meal item: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return item, nil
}

// checkItemOwner resolves the item and verifies it belongs to planID and
// that the plan belongs to userID.
func checkItemOwner(tx *sql.Tx, userID, planID, itemID int64) error {
	var itemPlan, owner int64
	err := tx.QueryRow(
		`SELECT mi.plan_id, mp.user_id FROM meal_items mi
		 JOIN meal_plans mp ON mp.id = mi.plan_id
		 WHERE mi.id = ?`,
		itemID,
	).Scan(&itemPlan, &owner)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: meal item %d", model.ErrNotFound, itemID)
	}
	if err != nil {
		return fmt.Errorf("get meal item owner: %w", err)
	}
	if itemPlan != planID || owner != userID {
		return fmt.Errorf("%w: meal item %d", model.ErrForbidden, itemID)
	}
	return nil
}

func (s *MealPlanStore) UpdateItemGrams(userID, planID, itemID int64, grams float64) (*model.MealItem, error) {
	if !validGrams(grams) {
		return nil, fmt.Errorf("%w: grams must be in (0, %d]", model.ErrInvalidInput, maxItemGrams)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := checkItemOwner(tx, userID, planID, itemID); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(`UPDATE meal_items SET grams = ? WHERE id = ?`, grams, itemID); err != nil {
		return nil, fmt.Errorf("update meal item: %w", err)
	}

	row := tx.QueryRow(`SELECT `+mealItemCols+` FROM meal_items WHERE id = ?`, itemID)
	item, err := scanMealItem(row)
	if err != nil {
		return nil, fmt.Errorf("get meal item: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return item, nil
}

// RemoveItem deletes the item. A second removal of the same item reports
// model.ErrNotFound.
func (s *MealPlanStore) RemoveItem(userID, planID, itemID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := checkItemOwner(tx, userID, planID, itemID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM meal_items WHERE id = ?`, itemID); err != nil {
		return fmt.Errorf("delete meal item: %w", err)
	}
	return tx.Commit()
}

// ListItems returns the plan's items in block display order, then insertion order.
func (s *MealPlanStore) ListItems(planID int64) ([]model.MealItem, error) {
	rows, err := s.db.Query(
		`SELECT `+mealItemCols+` FROM meal_items WHERE plan_id = ?
		 ORDER BY CASE block
		   WHEN 'breakfast' THEN 0
		   WHEN 'lunch' THEN 1
		   WHEN 'dinner' THEN 2
		   ELSE 3 END, id ASC`,
		planID,
	)
	if err != nil {
		return nil, fmt.Errorf("list meal items: %w", err)
	}
	defer rows.Close()

	var items []model.MealItem
	for rows.Next() {
		it, err := scanMealItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan meal item: %w", err)
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

// DeletePlan removes the user's plan for date together with its items.
func (s *MealPlanStore) DeletePlan(userID int64, date time.Time) error {
	result, err := s.db.Exec(
		`DELETE FROM meal_plans WHERE user_id = ? AND plan_date = ?`,
		userID, date.Format(DateLayout),
	)
	if err != nil {
		return fmt.Errorf("delete meal plan: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: no meal plan for %s", model.ErrNotFound, date.Format(DateLayout))
	}
	return nil
}

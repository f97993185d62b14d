package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/dukerupert/diabyte/internal/model"
)

const (
	defaultSearchLimit = 25
	maxSearchLimit     = 500
)

type FoodStore struct {
	db *sql.DB
}

func NewFoodStore(db *sql.DB) *FoodStore {
	return &FoodStore{db: db}
}

func scanFood(scanner interface{ Scan(...any) error }) (*model.Food, error) {
	var f model.Food
	var gi, createdBy sql.NullInt64

	err := scanner.Scan(&f.ID, &f.Name, &f.CarbsPer100, &f.Unit, &gi, &createdBy, &f.CreatedAt)
	if err != nil {
		return nil, err
	}

	if gi.Valid {
		v := int(gi.Int64)
		f.GlycemicIndex = &v
	}
	if createdBy.Valid {
		f.CreatedBy = &createdBy.Int64
	}
	return &f, nil
}

const foodCols = `id, name, carbs_per_100, unit, glycemic_index, created_by, created_at`

// GetByID returns the food or nil when it does not exist.
func (s *FoodStore) GetByID(id int64) (*model.Food, error) {
	row := s.db.QueryRow(`SELECT `+foodCols+` FROM foods WHERE id = ?`, id)
	f, err := scanFood(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get food: %w", err)
	}
	return f, nil
}

func (s *FoodStore) GetByName(name string) (*model.Food, error) {
	row := s.db.QueryRow(`SELECT `+foodCols+` FROM foods WHERE name = ?`, name)
	f, err := scanFood(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get food by name: %w", err)
	}
	return f, nil
}

// Search returns foods whose name contains query, ordered by name. An empty
// query lists the whole catalog.
func (s *FoodStore) Search(query string, limit, offset int) ([]model.Food, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.Query(
		`SELECT `+foodCols+` FROM foods WHERE name LIKE ? ESCAPE '\' ORDER BY name ASC LIMIT ? OFFSET ?`,
		likePattern(query), limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("search foods: %w", err)
	}
	defer rows.Close()

	var foods []model.Food
	for rows.Next() {
		f, err := scanFood(rows)
		if err != nil {
			return nil, fmt.Errorf("scan food: %w", err)
		}
		foods = append(foods, *f)
	}
	return foods, rows.Err()
}

func (s *FoodStore) Count(query string) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM foods WHERE name LIKE ? ESCAPE '\'`,
		likePattern(query),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count foods: %w", err)
	}
	return count, nil
}

func (s *FoodStore) Create(name string, carbsPer100 float64, glycemicIndex *int, unit string, createdBy *int64) (*model.Food, error) {
	result, err := s.db.Exec(
		`INSERT INTO foods (name, carbs_per_100, unit, glycemic_index, created_by) VALUES (?, ?, ?, ?, ?)`,
		name, carbsPer100, unit, nullInt(glycemicIndex), nullInt64(createdBy),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: food %q already exists", model.ErrConflict, name)
		}
		return nil, fmt.Errorf("insert food: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

// Upsert inserts a food or, when the name already exists, replaces its carbs
// and glycemic index and resets the unit to grams.
func (s *FoodStore) Upsert(name string, carbsPer100 float64, glycemicIndex *int) (*model.Food, error) {
	_, err := s.db.Exec(
		`INSERT INTO foods (name, carbs_per_100, unit, glycemic_index) VALUES (?, ?, 'g', ?)
		 ON CONFLICT(name) DO UPDATE SET carbs_per_100 = excluded.carbs_per_100, glycemic_index = excluded.glycemic_index, unit = 'g'`,
		name, carbsPer100, nullInt(glycemicIndex),
	)
	if err != nil {
		return nil, fmt.Errorf("upsert food: %w", err)
	}
	return s.GetByName(name)
}

func (s *FoodStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM foods WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete food: %w", err)
	}
	return nil
}

func likePattern(query string) string {
	query = strings.TrimSpace(query)
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(query) + "%"
}

package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/diabyte/internal/model"
)

type RecipeStore struct {
	db *sql.DB
}

func NewRecipeStore(db *sql.DB) *RecipeStore {
	return &RecipeStore{db: db}
}

func scanRecipe(scanner interface{ Scan(...any) error }) (*model.Recipe, error) {
	var r model.Recipe
	var carbs sql.NullFloat64

	err := scanner.Scan(&r.ID, &r.UserID, &r.Name, &carbs, &r.CreatedAt)
	if err != nil {
		return nil, err
	}

	r.CarbsPer100 = floatPtr(carbs)
	return &r, nil
}

const recipeCols = `id, user_id, name, carbs_per_100, created_at`

func (s *RecipeStore) Create(userID int64, name string, carbsPer100 *float64) (*model.Recipe, error) {
	result, err := s.db.Exec(
		`INSERT INTO recipes (user_id, name, carbs_per_100) VALUES (?, ?, ?)`,
		userID, name, nullFloat(carbsPer100),
	)
	if err != nil {
		return nil, fmt.Errorf("insert recipe: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *RecipeStore) GetByID(id int64) (*model.Recipe, error) {
	row := s.db.QueryRow(`SELECT `+recipeCols+` FROM recipes WHERE id = ?`, id)
	r, err := scanRecipe(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get recipe: %w", err)
	}
	return r, nil
}

// GetOwned returns the recipe only when it belongs to userID.
func (s *RecipeStore) GetOwned(userID, id int64) (*model.Recipe, error) {
	row := s.db.QueryRow(`SELECT `+recipeCols+` FROM recipes WHERE id = ? AND user_id = ?`, id, userID)
	r, err := scanRecipe(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get owned recipe: %w", err)
	}
	return r, nil
}

func (s *RecipeStore) ListByUser(userID int64) ([]model.Recipe, error) {
	rows, err := s.db.Query(
		`SELECT `+recipeCols+` FROM recipes WHERE user_id = ? ORDER BY name ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list recipes: %w", err)
	}
	defer rows.Close()

	var recipes []model.Recipe
	for rows.Next() {
		r, err := scanRecipe(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recipe: %w", err)
		}
		recipes = append(recipes, *r)
	}
	return recipes, rows.Err()
}

package store

import (
	"database/sql"
	"strings"

	"github.com/dukerupert/diabyte/internal/model"
)

// sourceVisible holds when a meal source exists and, for recipes, is owned
// by the user. Bind it with sourceVisibleArgs.
const sourceVisible = `((? = 'food' AND EXISTS (SELECT 1 FROM foods WHERE id = ?))
	OR (? = 'recipe' AND EXISTS (SELECT 1 FROM recipes WHERE id = ? AND user_id = ?)))`

func sourceVisibleArgs(userID int64, t model.SourceType, id int64) []any {
	return []any{string(t), id, string(t), id, userID}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

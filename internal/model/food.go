package model

import "time"

type Food struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	CarbsPer100   float64   `json:"carbs_per_100"`
	Unit          string    `json:"unit"`
	GlycemicIndex *int      `json:"glycemic_index"`
	CreatedBy     *int64    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
}

// Recipe is private to its owner. CarbsPer100 is nil when the density is unknown.
type Recipe struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Name        string    `json:"name"`
	CarbsPer100 *float64  `json:"carbs_per_100"`
	CreatedAt   time.Time `json:"created_at"`
}

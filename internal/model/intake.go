package model

import "time"

// IntakeRecord is a ledger entry. Only PostBG changes after creation.
type IntakeRecord struct {
	ID         int64      `json:"id"`
	UserID     int64      `json:"user_id"`
	SourceType SourceType `json:"source_type"`
	SourceID   int64      `json:"source_id"`
	SourceName string     `json:"source_name"`
	Grams      float64    `json:"grams"`
	CarbsGrams float64    `json:"carbs_g"`
	DoseUnits  *float64   `json:"dose_units"`
	PreBG      *float64   `json:"pre_bg"`
	PostBG     *float64   `json:"post_bg"`
	OccurredAt time.Time  `json:"occurred_at"`
}

type IntakeSummary struct {
	Count      int     `json:"count"`
	CarbsGrams float64 `json:"carbs_g"`
	DoseUnits  float64 `json:"dose_units"`
}

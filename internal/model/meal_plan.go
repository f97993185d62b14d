package model

import "time"

type Block string

const (
	BlockBreakfast Block = "breakfast"
	BlockLunch     Block = "lunch"
	BlockDinner    Block = "dinner"
	BlockSnack     Block = "snack"
)

// Blocks lists meal blocks in display order.
var Blocks = []Block{BlockBreakfast, BlockLunch, BlockDinner, BlockSnack}

func (b Block) Valid() bool {
	switch b {
	case BlockBreakfast, BlockLunch, BlockDinner, BlockSnack:
		return true
	}
	return false
}

type SourceType string

const (
	SourceFood   SourceType = "food"
	SourceRecipe SourceType = "recipe"
)

func (t SourceType) Valid() bool {
	return t == SourceFood || t == SourceRecipe
}

type MealPlan struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Date      string    `json:"date"`
	CreatedAt time.Time `json:"created_at"`
}

type MealItem struct {
	ID         int64      `json:"id"`
	PlanID     int64      `json:"plan_id"`
	Block      Block      `json:"block"`
	SourceType SourceType `json:"source_type"`
	SourceID   int64      `json:"source_id"`
	Grams      float64    `json:"grams"`
	CreatedAt  time.Time  `json:"created_at"`
}

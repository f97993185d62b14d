package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/diabyte/internal/model"
)

const (
	DefaultHistoryLimit = 200
	MaxHistoryLimit     = 500
)

// IntakeStore is the append-only ledger of consumed servings.
type IntakeStore struct {
	db *sql.DB
}

func NewIntakeStore(db *sql.DB) *IntakeStore {
	return &IntakeStore{db: db}
}

func scanIntake(scanner interface{ Scan(...any) error }) (*model.IntakeRecord, error) {
	var rec model.IntakeRecord
	var dose, pre, post sql.NullFloat64

	err := scanner.Scan(&rec.ID, &rec.UserID, &rec.SourceType, &rec.SourceID, &rec.SourceName,
		&rec.Grams, &rec.CarbsGrams, &dose, &pre, &post, &rec.OccurredAt)
	if err != nil {
		return nil, err
	}

	rec.DoseUnits = floatPtr(dose)
	rec.PreBG = floatPtr(pre)
	rec.PostBG = floatPtr(post)
	return &rec, nil
}

const intakeSelect = `SELECT i.id, i.user_id, i.source_type, i.source_id,
	COALESCE(f.name, r.name, ''),
	i.grams, i.carbs_g, i.dose_units, i.pre_bg, i.post_bg, i.occurred_at
	FROM intakes i
	LEFT JOIN foods f ON i.source_type = 'food' AND f.id = i.source_id
	LEFT JOIN recipes r ON i.source_type = 'recipe' AND r.id = i.source_id`

// Record appends a ledger entry stamped with the current UTC time. The
// source is checked in the same statement; a missing food or another user's
// recipe yields model.ErrNotFound.
func (s *IntakeStore) Record(rec model.IntakeRecord) (*model.IntakeRecord, error) {
	occurred := time.Now().UTC()
	args := []any{
		rec.UserID, rec.SourceType, rec.SourceID, rec.Grams, rec.CarbsGrams,
		nullFloat(rec.DoseUnits), nullFloat(rec.PreBG), nullFloat(rec.PostBG), occurred,
	}
	args = append(args, sourceVisibleArgs(rec.UserID, rec.SourceType, rec.SourceID)...)
	result, err := s.db.Exec(
		`INSERT INTO intakes (user_id, source_type, source_id, grams, carbs_g, dose_units, pre_bg, post_bg, occurred_at)
		 SELECT ?, ?, ?, ?, ?, ?, ?, ?, ? WHERE `+sourceVisible,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("insert intake: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		return nil, fmt.Errorf("%w: %s %d", model.ErrNotFound, rec.SourceType, rec.SourceID)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *IntakeStore) GetByID(id int64) (*model.IntakeRecord, error) {
	row := s.db.QueryRow(intakeSelect+` WHERE i.id = ?`, id)
	rec, err := scanIntake(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get intake: %w", err)
	}
	return rec, nil
}

// AttachPostBG sets the post-meal reading on an entry owned by userID.
// An existing reading is overwritten.
func (s *IntakeStore) AttachPostBG(userID, id int64, bg float64) (*model.IntakeRecord, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var owner int64
	err = tx.QueryRow(`SELECT user_id FROM intakes WHERE id = ?`, id).Scan(&owner)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: intake %d", model.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get intake owner: %w", err)
	}
	if owner != userID {
		return nil, fmt.Errorf("%w: intake %d", model.ErrForbidden, id)
	}

	if _, err := tx.Exec(`UPDATE intakes SET post_bg = ? WHERE id = ?`, bg, id); err != nil {
		return nil, fmt.Errorf("update post bg: %w", err)
	}

	row := tx.QueryRow(intakeSelect+` WHERE i.id = ?`, id)
	rec, err := scanIntake(row)
	if err != nil {
		return nil, fmt.Errorf("get intake: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return rec, nil
}

// History returns the user's most recent entries, newest first. A limit of
// zero or less means DefaultHistoryLimit; larger values are capped.
func (s *IntakeStore) History(userID int64, limit int) ([]model.IntakeRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	rows, err := s.db.Query(
		intakeSelect+` WHERE i.user_id = ? ORDER BY i.occurred_at DESC, i.id DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list intakes: %w", err)
	}
	defer rows.Close()

	var records []model.IntakeRecord
	for rows.Next() {
		rec, err := scanIntake(rows)
		if err != nil {
			return nil, fmt.Errorf("scan intake: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// SummarySince aggregates the user's entries recorded at or after since.
func (s *IntakeStore) SummarySince(userID int64, since time.Time) (*model.IntakeSummary, error) {
	var sum model.IntakeSummary
	err := s.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(carbs_g), 0), COALESCE(SUM(dose_units), 0)
		 FROM intakes WHERE user_id = ? AND occurred_at >= ?`,
		userID, since.UTC(),
	).Scan(&sum.Count, &sum.CarbsGrams, &sum.DoseUnits)
	if err != nil {
		return nil, fmt.Errorf("summarize intakes: %w", err)
	}
	return &sum, nil
}

package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/diabyte/internal/model"
)

// ProfileStore persists the per-user dosing calibration. A missing row is a
// valid state meaning dosing suggestions are disabled.
type ProfileStore struct {
	db *sql.DB
}

func NewProfileStore(db *sql.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

func scanProfile(scanner interface{ Scan(...any) error }) (*model.DosingProfile, error) {
	var p model.DosingProfile
	var ratio, cf, target sql.NullFloat64
	var ait sql.NullInt64

	err := scanner.Scan(&p.UserID, &ratio, &cf, &target, &ait, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}

	p.CarbRatio = floatPtr(ratio)
	p.CorrectionFactor = floatPtr(cf)
	p.TargetBG = floatPtr(target)
	if ait.Valid {
		v := int(ait.Int64)
		p.ActiveInsulinMinutes = &v
	}
	return &p, nil
}

const profileCols = `user_id, carb_ratio, correction_factor, target_bg, active_insulin_minutes, updated_at`

func (s *ProfileStore) Get(userID int64) (*model.DosingProfile, error) {
	row := s.db.QueryRow(`SELECT `+profileCols+` FROM insulin_params WHERE user_id = ?`, userID)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// Put replaces every field of the user's profile, creating the row if needed.
func (s *ProfileStore) Put(p model.DosingProfile) (*model.DosingProfile, error) {
	_, err := s.db.Exec(
		`INSERT INTO insulin_params (user_id, carb_ratio, correction_factor, target_bg, active_insulin_minutes)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   carb_ratio = excluded.carb_ratio,
		   correction_factor = excluded.correction_factor,
		   target_bg = excluded.target_bg,
		   active_insulin_minutes = excluded.active_insulin_minutes,
		   updated_at = CURRENT_TIMESTAMP`,
		p.UserID, nullFloat(p.CarbRatio), nullFloat(p.CorrectionFactor), nullFloat(p.TargetBG), nullInt(p.ActiveInsulinMinutes),
	)
	if err != nil {
		return nil, fmt.Errorf("put profile: %w", err)
	}
	return s.Get(p.UserID)
}

func (s *ProfileStore) Delete(userID int64) error {
	_, err := s.db.Exec(`DELETE FROM insulin_params WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	return nil
}

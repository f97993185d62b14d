package model

import "time"

// DosingProfile holds a user's calibration. Every field is optional; the
// dosing engine degrades per missing field.
type DosingProfile struct {
	UserID               int64     `json:"user_id"`
	CarbRatio            *float64  `json:"carb_ratio"`
	CorrectionFactor     *float64  `json:"correction_factor"`
	TargetBG             *float64  `json:"target_bg"`
	ActiveInsulinMinutes *int      `json:"active_insulin_minutes"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Package profile validates and stores a user's dosing calibration.
package profile

import (
	"fmt"
	"math"

	"github.com/dukerupert/diabyte/internal/model"
	"github.com/dukerupert/diabyte/internal/store"
)

const (
	maxTargetBG             = 400
	maxCarbRatio            = 150
	maxCorrectionFactor     = 500
	maxActiveInsulinMinutes = 720
)

type Service struct {
	store *store.ProfileStore
}

func NewService(s *store.ProfileStore) *Service {
	return &Service{store: s}
}

// Get returns nil when the user has not configured dosing.
func (s *Service) Get(userID int64) (*model.DosingProfile, error) {
	return s.store.Get(userID)
}

// Put replaces the profile. Omitted fields are stored as null.
func (s *Service) Put(userID int64, p model.DosingProfile) (*model.DosingProfile, error) {
	if err := Validate(p); err != nil {
		return nil, err
	}
	p.UserID = userID
	return s.store.Put(p)
}

func (s *Service) Delete(userID int64) error {
	return s.store.Delete(userID)
}

// Validate checks that every supplied field is positive and within range.
func Validate(p model.DosingProfile) error {
	if err := checkRange("carb_ratio", p.CarbRatio, maxCarbRatio); err != nil {
		return err
	}
	if err := checkRange("correction_factor", p.CorrectionFactor, maxCorrectionFactor); err != nil {
		return err
	}
	if err := checkRange("target_bg", p.TargetBG, maxTargetBG); err != nil {
		return err
	}
	if p.ActiveInsulinMinutes != nil {
		m := *p.ActiveInsulinMinutes
		if m <= 0 || m > maxActiveInsulinMinutes {
			return fmt.Errorf("%w: active_insulin_minutes must be in (0, %d]", model.ErrInvalidInput, maxActiveInsulinMinutes)
		}
	}
	return nil
}

func checkRange(field string, v *float64, max float64) error {
	if v == nil {
		return nil
	}
	if math.IsNaN(*v) || *v <= 0 || *v > max {
		return fmt.Errorf("%w: %s must be in (0, %g]", model.ErrInvalidInput, field, max)
	}
	return nil
}

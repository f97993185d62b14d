package model

import "errors"

// Error kinds shared by the dosing, meal plan and ledger services. Callers
// wrap them with detail and match with errors.Is.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
)

package prescription

import "errors"

var (
	ErrPrescriptionNotFound    = errors.New("prescription not found")
	ErrAlreadyDispensed        = errors.New("prescription has already been dispensed")
	ErrNotDispensable          = errors.New("only active prescriptions can be dispensed")
	ErrPrescriptionExpired     = errors.New("prescription has expired")
	ErrInvalidStatus           = errors.New("invalid prescription status")
	ErrInvalidStatusTransition = errors.New("invalid prescription status transition")
	ErrInvalidRefills          = errors.New("refills cannot be negative")
	ErrPharmacistNotFound      = errors.New("pharmacist not found")
	ErrConsultationMismatch    = errors.New("consultation belongs to a different patient")
)

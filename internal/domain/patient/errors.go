package patient

import "errors"

var (
	ErrPatientNotFound      = errors.New("patient not found")
	ErrPatientAlreadyExists = errors.New("patient record already exists for this user")
	ErrInvalidGender        = errors.New("invalid gender value")
	ErrInvalidBloodType     = errors.New("invalid blood type")
	ErrInvalidDateOfBirth   = errors.New("date of birth cannot be in the future")
)

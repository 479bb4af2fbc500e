package consultation

import "errors"

var (
	ErrConsultationNotFound    = errors.New("consultation not found")
	ErrInvalidStatus           = errors.New("invalid consultation status")
	ErrInvalidStatusTransition = errors.New("invalid consultation status transition")
)

package service

import (
	"errors"
	"strings"

	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/access"
)

var (
	// ErrForbidden is matched by every denial returned from this package.
	ErrForbidden = access.ErrForbidden

	ErrUnauthenticated    = errors.New("authentication required")
	ErrStorageUnavailable = errors.New("storage unavailable")

	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountLocked      = errors.New("account is temporarily locked due to multiple failed login attempts")
	ErrAccountInactive    = errors.New("account is inactive")
	ErrMFARequired        = errors.New("a one-time code is required")
	ErrInvalidMFACode     = errors.New("invalid one-time code")
)

type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, "; ")
}

func invalid(fields ...string) error {
	return &ValidationError{Fields: fields}
}

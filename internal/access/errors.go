package access

import (
	"errors"
	"fmt"
)

var ErrForbidden = errors.New("forbidden: insufficient permissions")

type Reason string

const (
	ReasonNone      Reason = ""
	ReasonInactive  Reason = "inactive"
	ReasonRole      Reason = "role"
	ReasonOwnership Reason = "ownership"
)

// DeniedError is returned for a refused access. errors.Is(err, ErrForbidden) holds.
type DeniedError struct {
	Reason   Reason
	Resource string
	Action   Action
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("forbidden (%s): %s %s", e.Reason, e.Action, e.Resource)
}

func (e *DeniedError) Unwrap() error {
	return ErrForbidden
}

// ReasonOf extracts the denial reason from err, or ReasonNone.
func ReasonOf(err error) Reason {
	var denied *DeniedError
	if errors.As(err, &denied) {
		return denied.Reason
	}
	return ReasonNone
}

package domain

import "errors"

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrEmailTaken     = errors.New("email already registered")
	ErrUsernameTaken  = errors.New("username already registered")
	ErrAdminSignup    = errors.New("administrator accounts cannot be self-registered")
	ErrInvalidRole    = errors.New("invalid role")
	ErrMFANotEnrolled = errors.New("multi-factor authentication is not enrolled")
	ErrDoctorNotFound = errors.New("doctor not found")
)

package postgres

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/service"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolationCode = "23505"

// Partial unique indexes created by database.Migrate.
const (
	usersEmailIndex    = "uq_users_email_live"
	usersUsernameIndex = "uq_users_username_live"
	patientsUserIndex  = "uq_patients_user_live"
)

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, service.ErrStorageUnavailable, err)
}

// uniqueViolation returns the violated constraint when err is a duplicate key error.
func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// translate maps duplicate key errors to domain conflicts and everything
// else to a storage error.
func translate(op string, err error) error {
	constraint, ok := uniqueViolation(err)
	if !ok {
		return storageErr(op, err)
	}
	switch {
	case constraint == usersEmailIndex || strings.Contains(constraint, "email"):
		return domain.ErrEmailTaken
	case constraint == usersUsernameIndex || strings.Contains(constraint, "username"):
		return domain.ErrUsernameTaken
	case constraint == patientsUserIndex:
		return patient.ErrPatientAlreadyExists
	}
	return storageErr(op, err)
}

package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/service"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ service.Store = (*Store)(nil)

func TestOwnershipClause(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name     string
		own      domain.Ownership
		subject  string
		author   string
		want     string
		wantArgs int
	}{
		{"subject only", domain.Ownership{UserID: id, Subject: true}, "user_id = ?", "", "(user_id = ?)", 1},
		{"author only", domain.Ownership{UserID: id, Author: true}, subjectOfPatient, "doctor_id = ?", "(doctor_id = ?)", 1},
		{"participant", domain.Ownership{UserID: id, Subject: true, Author: true}, "s = ?", "a = ?", "(s = ? OR a = ?)", 2},
		{"author without column", domain.Ownership{UserID: id, Author: true}, "user_id = ?", "", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, args := ownershipClause(&tt.own, tt.subject, tt.author)
			assert.Equal(t, tt.want, got)
			require.Len(t, args, tt.wantArgs)
			for _, a := range args {
				assert.Equal(t, id, a)
			}
		})
	}
}

func TestTranslate(t *testing.T) {
	dup := func(constraint string) error {
		return fmt.Errorf("insert: %w", &pgconn.PgError{Code: uniqueViolationCode, ConstraintName: constraint})
	}

	assert.ErrorIs(t, translate("op", dup(usersEmailIndex)), domain.ErrEmailTaken)
	assert.ErrorIs(t, translate("op", dup(usersUsernameIndex)), domain.ErrUsernameTaken)
	assert.ErrorIs(t, translate("op", dup(patientsUserIndex)), patient.ErrPatientAlreadyExists)

	other := translate("op", dup("uq_something_else"))
	assert.ErrorIs(t, other, service.ErrStorageUnavailable)

	fk := &pgconn.PgError{Code: "23503"}
	err := translate("creating consultation", fk)
	assert.ErrorIs(t, err, service.ErrStorageUnavailable)
	var pgErr *pgconn.PgError
	require.True(t, errors.As(err, &pgErr))
	assert.Contains(t, err.Error(), "creating consultation")
}

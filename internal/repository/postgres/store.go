// Package postgres implements the service storage contracts on PostgreSQL
// through gorm.
package postgres

import (
	"context"
	"fmt"

	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain/consultation"
	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain/prescription"
	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/service"
	"gorm.io/gorm"
)

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// WithinTx runs fn in a database transaction. Errors from fn are returned
// unchanged; failures to begin or commit are reported as storage errors.
func (s *Store) WithinTx(ctx context.Context, fn func(tx service.Repositories) error) error {
	var fnErr error
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fnErr = fn(&repositories{db: tx})
		return fnErr
	})
	if err != nil && fnErr == nil {
		return fmt.Errorf("transaction: %w: %w", service.ErrStorageUnavailable, err)
	}
	return err
}

type repositories struct {
	db *gorm.DB
}

func (r *repositories) Users() service.UserRepository {
	return &userRepository{db: r.db}
}

func (r *repositories) Patients() patient.Repository {
	return &patientRepository{db: r.db}
}

func (r *repositories) Consultations() consultation.Repository {
	return &consultationRepository{db: r.db}
}

func (r *repositories) Prescriptions() prescription.Repository {
	return &prescriptionRepository{db: r.db}
}

func (r *repositories) Audit() service.AuditRepository {
	return &auditRepository{db: r.db}
}

package postgres

import (
	"context"
	"errors"

	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain/patient"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type patientRepository struct {
	db *gorm.DB
}

func (r *patientRepository) Create(ctx context.Context, p *patient.Patient) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return translate("creating patient", err)
	}
	return nil
}

func (r *patientRepository) GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *patientRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*patient.Patient, error) {
	return r.first(ctx, "user_id = ?", userID)
}

func (r *patientRepository) first(ctx context.Context, cond string, id uuid.UUID) (*patient.Patient, error) {
	var p patient.Patient
	err := r.db.WithContext(ctx).Where(cond, id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, patient.ErrPatientNotFound
	}
	if err != nil {
		return nil, storageErr("fetching patient", err)
	}
	return &p, nil
}

func (r *patientRepository) ExistsByUserID(ctx context.Context, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&patient.Patient{}).Where("user_id = ?", userID).Count(&count).Error
	if err != nil {
		return false, storageErr("checking patient uniqueness", err)
	}
	return count > 0, nil
}

func (r *patientRepository) Update(ctx context.Context, p *patient.Patient) error {
	res := r.db.WithContext(ctx).Model(p).Select("*").Omit("id", "created_at", "deleted_at", "user_id", "created_by").Updates(p)
	if res.Error != nil {
		return translate("updating patient", res.Error)
	}
	if res.RowsAffected == 0 {
		return patient.ErrPatientNotFound
	}
	return nil
}

func (r *patientRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&patient.Patient{}, "id = ?", id)
	if res.Error != nil {
		return storageErr("deleting patient", res.Error)
	}
	if res.RowsAffected == 0 {
		return patient.ErrPatientNotFound
	}
	return nil
}

func (r *patientRepository) List(ctx context.Context, q *patient.ListPatientsQuery) (*patient.PagedPatients, error) {
	// Patient records have no author.
	db := r.db.WithContext(ctx).Model(&patient.Patient{}).Scopes(ownedBy(q.Ownership, "user_id = ?", ""))

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, storageErr("counting patients", err)
	}

	var patients []*patient.Patient
	if err := db.Order("created_at DESC").Scopes(paginate(q.Offset, q.Limit)).Find(&patients).Error; err != nil {
		return nil, storageErr("listing patients", err)
	}

	return &patient.PagedPatients{Patients: patients, TotalCount: total, Offset: q.Offset, Limit: q.Limit}, nil
}

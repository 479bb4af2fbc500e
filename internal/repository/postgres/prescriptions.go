package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain/prescription"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type prescriptionRepository struct {
	db *gorm.DB
}

func (r *prescriptionRepository) Create(ctx context.Context, p *prescription.Prescription) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(p).Error; err != nil {
		return translate("creating prescription", err)
	}
	return nil
}

func (r *prescriptionRepository) GetByID(ctx context.Context, id uuid.UUID) (*prescription.Prescription, error) {
	var p prescription.Prescription
	err := r.db.WithContext(ctx).Preload("Patient").First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, prescription.ErrPrescriptionNotFound
	}
	if err != nil {
		return nil, storageErr("fetching prescription", err)
	}
	return &p, nil
}

// Update never touches the dispensing columns; those belong to MarkDispensed.
func (r *prescriptionRepository) Update(ctx context.Context, p *prescription.Prescription) error {
	res := r.db.WithContext(ctx).Model(p).
		Select("*").
		Omit(clause.Associations, "id", "created_at", "deleted_at", "patient_id", "doctor_id",
			"consultation_id", "dispensed_by", "dispensed_date").
		Updates(p)
	if res.Error != nil {
		return translate("updating prescription", res.Error)
	}
	if res.RowsAffected == 0 {
		return prescription.ErrPrescriptionNotFound
	}
	return nil
}

func (r *prescriptionRepository) MarkDispensed(ctx context.Context, id, pharmacistID uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&prescription.Prescription{}).
		Where("id = ? AND status = ? AND dispensed_by IS NULL", id, prescription.StatusActive).
		Updates(map[string]any{
			"status":         prescription.StatusCompleted,
			"dispensed_by":   pharmacistID,
			"dispensed_date": at,
		})
	if res.Error != nil {
		return storageErr("dispensing prescription", res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	// Lost the race or never existed.
	var count int64
	if err := r.db.WithContext(ctx).Model(&prescription.Prescription{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return storageErr("dispensing prescription", err)
	}
	if count == 0 {
		return prescription.ErrPrescriptionNotFound
	}
	return prescription.ErrAlreadyDispensed
}

func (r *prescriptionRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&prescription.Prescription{}, "id = ?", id)
	if res.Error != nil {
		return storageErr("deleting prescription", res.Error)
	}
	if res.RowsAffected == 0 {
		return prescription.ErrPrescriptionNotFound
	}
	return nil
}

func (r *prescriptionRepository) SoftDeleteByPatient(ctx context.Context, patientID uuid.UUID) error {
	err := r.db.WithContext(ctx).Where("patient_id = ?", patientID).Delete(&prescription.Prescription{}).Error
	if err != nil {
		return storageErr("deleting patient prescriptions", err)
	}
	return nil
}

func (r *prescriptionRepository) List(ctx context.Context, q *prescription.ListPrescriptionsQuery) (*prescription.PagedPrescriptions, error) {
	db := r.db.WithContext(ctx).Model(&prescription.Prescription{}).
		Scopes(ownedBy(q.Ownership, subjectOfPatient, "doctor_id = ?"))
	if q.PatientID != nil {
		db = db.Where("patient_id = ?", *q.PatientID)
	}
	if q.Status != nil {
		db = db.Where("status = ?", *q.Status)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, storageErr("counting prescriptions", err)
	}

	var rows []*prescription.Prescription
	err := db.Preload("Patient").
		Order("prescribed_date DESC").
		Scopes(paginate(q.Offset, q.Limit)).
		Find(&rows).Error
	if err != nil {
		return nil, storageErr("listing prescriptions", err)
	}

	return &prescription.PagedPrescriptions{Prescriptions: rows, TotalCount: total, Offset: q.Offset, Limit: q.Limit}, nil
}

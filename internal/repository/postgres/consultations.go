package postgres

import (
	"context"
	"errors"

	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain/consultation"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type consultationRepository struct {
	db *gorm.DB
}

func (r *consultationRepository) Create(ctx context.Context, c *consultation.Consultation) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(c).Error; err != nil {
		return translate("creating consultation", err)
	}
	return nil
}

func (r *consultationRepository) GetByID(ctx context.Context, id uuid.UUID) (*consultation.Consultation, error) {
	var c consultation.Consultation
	err := r.db.WithContext(ctx).Preload("Patient").First(&c, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, consultation.ErrConsultationNotFound
	}
	if err != nil {
		return nil, storageErr("fetching consultation", err)
	}
	return &c, nil
}

func (r *consultationRepository) Update(ctx context.Context, c *consultation.Consultation) error {
	res := r.db.WithContext(ctx).Model(c).
		Select("*").
		Omit(clause.Associations, "id", "created_at", "deleted_at", "patient_id", "doctor_id").
		Updates(c)
	if res.Error != nil {
		return translate("updating consultation", res.Error)
	}
	if res.RowsAffected == 0 {
		return consultation.ErrConsultationNotFound
	}
	return nil
}

func (r *consultationRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&consultation.Consultation{}, "id = ?", id)
	if res.Error != nil {
		return storageErr("deleting consultation", res.Error)
	}
	if res.RowsAffected == 0 {
		return consultation.ErrConsultationNotFound
	}
	return nil
}

func (r *consultationRepository) SoftDeleteByPatient(ctx context.Context, patientID uuid.UUID) error {
	err := r.db.WithContext(ctx).Where("patient_id = ?", patientID).Delete(&consultation.Consultation{}).Error
	if err != nil {
		return storageErr("deleting patient consultations", err)
	}
	return nil
}

func (r *consultationRepository) List(ctx context.Context, q *consultation.ListConsultationsQuery) (*consultation.PagedConsultations, error) {
	db := r.db.WithContext(ctx).Model(&consultation.Consultation{}).
		Scopes(ownedBy(q.Ownership, subjectOfPatient, "doctor_id = ?"))
	if q.PatientID != nil {
		db = db.Where("patient_id = ?", *q.PatientID)
	}
	if q.Status != nil {
		db = db.Where("status = ?", *q.Status)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, storageErr("counting consultations", err)
	}

	var rows []*consultation.Consultation
	err := db.Preload("Patient").
		Order("consultation_date DESC").
		Scopes(paginate(q.Offset, q.Limit)).
		Find(&rows).Error
	if err != nil {
		return nil, storageErr("listing consultations", err)
	}

	return &consultation.PagedConsultations{Consultations: rows, TotalCount: total, Offset: q.Offset, Limit: q.Limit}, nil
}

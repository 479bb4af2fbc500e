package postgres

import (
	"context"

	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain"
	"gorm.io/gorm"
)

// auditRepository only inserts and reads.
type auditRepository struct {
	db *gorm.DB
}

func (r *auditRepository) Create(ctx context.Context, entry *domain.AuditLog) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return storageErr("writing audit entry", err)
	}
	return nil
}

func (r *auditRepository) List(ctx context.Context, f domain.AuditFilter, offset, limit int) ([]*domain.AuditLog, error) {
	db := r.db.WithContext(ctx).Model(&domain.AuditLog{})
	if f.UserID != nil {
		db = db.Where("user_id = ?", *f.UserID)
	}
	if f.ResourceType != nil {
		db = db.Where("resource_type = ?", *f.ResourceType)
	}
	if f.ResourceID != nil {
		db = db.Where("resource_id = ?", *f.ResourceID)
	}

	var entries []*domain.AuditLog
	err := db.Order("timestamp DESC").Order("id DESC").Scopes(paginate(offset, limit)).Find(&entries).Error
	if err != nil {
		return nil, storageErr("querying audit log", err)
	}
	return entries, nil
}

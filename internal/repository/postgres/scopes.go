package postgres

import (
	"strings"

	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain"
	"gorm.io/gorm"
)

// subjectOfPatient matches clinical rows whose patient record belongs to a user.
const subjectOfPatient = "patient_id IN (SELECT id FROM clinical.patients WHERE user_id = ? AND deleted_at IS NULL)"

// ownershipClause builds the OR of the enabled relations. An empty clause
// means no relation applies and nothing should match.
func ownershipClause(own *domain.Ownership, subjectExpr, authorExpr string) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if own.Subject && subjectExpr != "" {
		conds = append(conds, subjectExpr)
		args = append(args, own.UserID)
	}
	if own.Author && authorExpr != "" {
		conds = append(conds, authorExpr)
		args = append(args, own.UserID)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return "(" + strings.Join(conds, " OR ") + ")", args
}

func ownedBy(own *domain.Ownership, subjectExpr, authorExpr string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if own == nil {
			return db
		}
		clause, args := ownershipClause(own, subjectExpr, authorExpr)
		if clause == "" {
			return db.Where("1 = 0")
		}
		return db.Where(clause, args...)
	}
}

func paginate(offset, limit int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(offset).Limit(limit)
	}
}

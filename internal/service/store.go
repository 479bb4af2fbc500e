package service

import (
	"context"

	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain/consultation"
	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain/prescription"
	"github.com/google/uuid"
)

type UserRepository interface {
	// Create returns domain.ErrEmailTaken or domain.ErrUsernameTaken on a duplicate.
	Create(ctx context.Context, u *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	Update(ctx context.Context, u *domain.User) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, q *domain.ListUsersQuery) (*domain.PagedUsers, error)
}

// AuditRepository is insert-and-read only.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
	// List returns entries newest first.
	List(ctx context.Context, f domain.AuditFilter, offset, limit int) ([]*domain.AuditLog, error)
}

// Repositories is the set of repositories bound to one unit of work.
type Repositories interface {
	Users() UserRepository
	Patients() patient.Repository
	Consultations() consultation.Repository
	Prescriptions() prescription.Repository
	Audit() AuditRepository
}

// Store runs fn inside a single transaction. Any error returned by fn rolls
// back every write made through the Repositories it was given.
type Store interface {
	WithinTx(ctx context.Context, fn func(tx Repositories) error) error
}

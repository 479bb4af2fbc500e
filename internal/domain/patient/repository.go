package patient

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Create persists a new patient. Returns ErrPatientAlreadyExists on a duplicate UserID.
	Create(ctx context.Context, p *Patient) error

	// GetByID retrieves a patient by primary key. Returns ErrPatientNotFound if not found.
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)

	// GetByUserID retrieves the record owned by a user. Returns ErrPatientNotFound if none.
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Patient, error)

	// ExistsByUserID checks for uniqueness without fetching the full record.
	ExistsByUserID(ctx context.Context, userID uuid.UUID) (bool, error)

	// Update writes every column of an existing patient record.
	Update(ctx context.Context, p *Patient) error

	// SoftDelete marks the patient as deleted (HIPAA retention requirement).
	SoftDelete(ctx context.Context, id uuid.UUID) error

	// List returns a paginated, filtered list of patients.
	List(ctx context.Context, q *ListPatientsQuery) (*PagedPatients, error)
}

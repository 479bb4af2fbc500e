package prescription

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Prescription) error

	// GetByID loads the prescription together with its patient.
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)

	Update(ctx context.Context, p *Prescription) error

	// MarkDispensed sets status, dispensed_by and dispensed_date in one statement,
	// only while the row is still active. Returns ErrAlreadyDispensed otherwise.
	MarkDispensed(ctx context.Context, id, pharmacistID uuid.UUID, at time.Time) error

	SoftDelete(ctx context.Context, id uuid.UUID) error
	SoftDeleteByPatient(ctx context.Context, patientID uuid.UUID) error
	List(ctx context.Context, q *ListPrescriptionsQuery) (*PagedPrescriptions, error)
}

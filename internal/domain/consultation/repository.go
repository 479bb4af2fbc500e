package consultation

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, c *Consultation) error

	// GetByID loads the consultation together with its patient.
	GetByID(ctx context.Context, id uuid.UUID) (*Consultation, error)

	Update(ctx context.Context, c *Consultation) error
	SoftDelete(ctx context.Context, id uuid.UUID) error

	// SoftDeleteByPatient removes every consultation of a patient being deleted.
	SoftDeleteByPatient(ctx context.Context, patientID uuid.UUID) error

	List(ctx context.Context, q *ListConsultationsQuery) (*PagedConsultations, error)
}

package prescription

import (
	"time"

	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain/patient"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Lifecycle:
//
//	active → completed (dispense only)
//	active → cancelled
//	active → expired
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

type RouteOfAdministration string

const (
	RouteOral          RouteOfAdministration = "oral"
	RouteIntravenous   RouteOfAdministration = "intravenous"
	RouteIntramuscular RouteOfAdministration = "intramuscular"
	RouteTopical       RouteOfAdministration = "topical"
	RouteInhaled       RouteOfAdministration = "inhaled"
	RouteSublingual    RouteOfAdministration = "sublingual"
	RouteInjection     RouteOfAdministration = "injection"
)

func (r RouteOfAdministration) IsValid() bool {
	switch r {
	case RouteOral, RouteIntravenous, RouteIntramuscular, RouteTopical,
		RouteInhaled, RouteSublingual, RouteInjection:
		return true
	}
	return false
}

type Prescription struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	PatientID      uuid.UUID  `gorm:"column:patient_id;type:uuid;not null;index" json:"patient_id"`
	DoctorID       uuid.UUID  `gorm:"column:doctor_id;type:uuid;not null;index" json:"doctor_id"`
	ConsultationID *uuid.UUID `gorm:"column:consultation_id;type:uuid;index" json:"consultation_id,omitempty"`

	MedicationName string                `gorm:"column:medication_name;type:varchar(255);not null;index" json:"medication_name"`
	Dosage         string                `gorm:"column:dosage;type:varchar(100);not null" json:"dosage"`       // e.g. "500mg"
	Frequency      string                `gorm:"column:frequency;type:varchar(100);not null" json:"frequency"` // e.g. "twice daily"
	Duration       string                `gorm:"column:duration;type:varchar(100);not null" json:"duration"`   // e.g. "7 days"
	Route          RouteOfAdministration `gorm:"column:route;type:varchar(50);not null" json:"route"`
	Quantity       *int                  `gorm:"column:quantity" json:"quantity,omitempty"`
	Refills        int                   `gorm:"column:refills;default:0" json:"refills"`

	Status Status `gorm:"column:status;type:varchar(30);not null;default:'active';index" json:"status"`

	Notes             string `gorm:"column:notes;type:text" json:"notes,omitempty"`
	Contraindications string `gorm:"column:contraindications;type:text" json:"contraindications,omitempty"`
	SideEffects       string `gorm:"column:side_effects;type:text" json:"side_effects,omitempty"`

	PrescribedDate time.Time  `gorm:"column:prescribed_date;not null;index" json:"prescribed_date"`
	ExpiryDate     *time.Time `gorm:"column:expiry_date;index" json:"expiry_date,omitempty"`

	// Set together, exactly once, by Dispense.
	DispensedDate *time.Time `gorm:"column:dispensed_date" json:"dispensed_date,omitempty"`
	DispensedBy   *uuid.UUID `gorm:"column:dispensed_by;type:uuid" json:"dispensed_by,omitempty"`

	Patient *patient.Patient `gorm:"foreignKey:PatientID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Prescription) TableName() string {
	return "clinical.prescriptions"
}

func (p *Prescription) ResourceType() domain.ResourceType { return domain.ResourcePrescription }

// OwnerOf: the patient's user is the subject, the prescribing doctor is the author.
func (p *Prescription) OwnerOf(rel domain.Relation) (uuid.UUID, bool) {
	switch rel {
	case domain.RelationSubject:
		if p.Patient == nil {
			return uuid.Nil, false
		}
		return p.Patient.UserID, true
	case domain.RelationAuthor:
		return p.DoctorID, true
	}
	return uuid.Nil, false
}

func (p *Prescription) IsExpired(now time.Time) bool {
	return p.ExpiryDate != nil && now.After(*p.ExpiryDate)
}

func (p *Prescription) IsDispensed() bool {
	return p.DispensedBy != nil
}

// Dispense completes an active prescription on behalf of a pharmacist.
func (p *Prescription) Dispense(pharmacistID uuid.UUID, now time.Time) error {
	if p.IsDispensed() || p.Status == StatusCompleted {
		return ErrAlreadyDispensed
	}
	if p.Status != StatusActive {
		return ErrNotDispensable
	}
	if p.IsExpired(now) {
		return ErrPrescriptionExpired
	}
	p.Status = StatusCompleted
	p.DispensedBy = &pharmacistID
	p.DispensedDate = &now
	return nil
}

// CanTransitionTo covers status changes made through an update. Completion is
// reachable only through Dispense.
func (p *Prescription) CanTransitionTo(next Status) bool {
	if next == p.Status {
		return true
	}
	return p.Status == StatusActive && (next == StatusCancelled || next == StatusExpired)
}

// Apply copies the set fields of cmd onto p.
func (p *Prescription) Apply(cmd *UpdatePrescriptionCommand) error {
	if cmd.Status != nil {
		if !cmd.Status.IsValid() {
			return ErrInvalidStatus
		}
		if !p.CanTransitionTo(*cmd.Status) {
			return ErrInvalidStatusTransition
		}
		p.Status = *cmd.Status
	}
	if cmd.Notes != nil {
		p.Notes = *cmd.Notes
	}
	if cmd.Refills != nil {
		if *cmd.Refills < 0 {
			return ErrInvalidRefills
		}
		p.Refills = *cmd.Refills
	}
	if cmd.ExpiryDate != nil {
		p.ExpiryDate = cmd.ExpiryDate
	}
	return nil
}

type CreatePrescriptionCommand struct {
	PatientID         uuid.UUID
	DoctorID          uuid.UUID
	ConsultationID    *uuid.UUID
	MedicationName    string
	Dosage            string
	Frequency         string
	Duration          string
	Route             RouteOfAdministration
	Quantity          *int
	Refills           int
	Notes             string
	Contraindications string
	SideEffects       string
	ExpiryDate        *time.Time
}

type UpdatePrescriptionCommand struct {
	Status     *Status
	Notes      *string
	Refills    *int
	ExpiryDate *time.Time
}

type DispenseCommand struct {
	// Defaults to the acting user. Only administrators may name someone else.
	DispensedBy *uuid.UUID
}

type ListPrescriptionsQuery struct {
	PatientID *uuid.UUID
	Status    *Status
	Ownership *domain.Ownership
	Offset    int
	Limit     int
}

type PagedPrescriptions struct {
	Prescriptions []*Prescription `json:"prescriptions"`
	TotalCount    int64           `json:"total_count"`
	Offset        int             `json:"offset"`
	Limit         int             `json:"limit"`
}

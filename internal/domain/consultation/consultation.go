package consultation

import (
	"time"

	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain/patient"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// State transitions possibilities:
//
//	scheduled → in_progress → completed
//	scheduled → cancelled
//	in_progress → cancelled
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

type VitalSigns struct {
	BloodPressureSystolic  *int     `json:"bp_systolic,omitempty"`
	BloodPressureDiastolic *int     `json:"bp_diastolic,omitempty"`
	HeartRateBPM           *int     `json:"heart_rate_bpm,omitempty"`
	TemperatureCelsius     *float64 `json:"temperature_celsius,omitempty"`
	WeightKg               *float64 `json:"weight_kg,omitempty"`
	HeightCm               *float64 `json:"height_cm,omitempty"`
	OxygenSaturation       *float64 `json:"oxygen_saturation,omitempty"`
	RespiratoryRate        *int     `json:"respiratory_rate_bpm,omitempty"`
}

type Consultation struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	PatientID uuid.UUID `gorm:"column:patient_id;type:uuid;not null;index" json:"patient_id"`
	DoctorID  uuid.UUID `gorm:"column:doctor_id;type:uuid;not null;index" json:"doctor_id"`

	ConsultationDate time.Time `gorm:"column:consultation_date;not null;index" json:"consultation_date"`
	Status           Status    `gorm:"column:status;type:varchar(30);not null;default:'scheduled';index" json:"status"`

	Reason              string      `gorm:"column:reason;type:varchar(500)" json:"reason,omitempty"`
	ChiefComplaint      string      `gorm:"column:chief_complaint;type:text" json:"chief_complaint,omitempty"`
	Diagnosis           string      `gorm:"column:diagnosis;type:text" json:"diagnosis,omitempty"`
	ClinicalNotes       string      `gorm:"column:clinical_notes;type:text" json:"clinical_notes,omitempty"`
	VitalSigns          *VitalSigns `gorm:"column:vital_signs;serializer:json" json:"vital_signs,omitempty"`
	PhysicalExamination string      `gorm:"column:physical_examination;type:text" json:"physical_examination,omitempty"`
	TreatmentPlan       string      `gorm:"column:treatment_plan;type:text" json:"treatment_plan,omitempty"`
	FollowUpDate        *time.Time  `gorm:"column:follow_up_date" json:"follow_up_date,omitempty"`

	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CancelledAt *time.Time `gorm:"column:cancelled_at" json:"cancelled_at,omitempty"`

	// Loaded with the consultation so the subject of the record is known.
	Patient *patient.Patient `gorm:"foreignKey:PatientID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Consultation) TableName() string {
	return "clinical.consultations"
}

func (c *Consultation) ResourceType() domain.ResourceType { return domain.ResourceConsultation }

// OwnerOf: the patient's user is the subject, the doctor is the author.
func (c *Consultation) OwnerOf(rel domain.Relation) (uuid.UUID, bool) {
	switch rel {
	case domain.RelationSubject:
		if c.Patient == nil {
			return uuid.Nil, false
		}
		return c.Patient.UserID, true
	case domain.RelationAuthor:
		return c.DoctorID, true
	}
	return uuid.Nil, false
}

func (c *Consultation) CanTransitionTo(next Status) bool {
	if next == c.Status {
		return true
	}
	allowed := map[Status][]Status{
		StatusScheduled:  {StatusInProgress, StatusCancelled},
		StatusInProgress: {StatusCompleted, StatusCancelled},
		StatusCompleted:  {},
		StatusCancelled:  {},
	}

	for _, s := range allowed[c.Status] {
		if s == next {
			return true
		}
	}
	return false
}

// TransitionTo moves the consultation to next and stamps terminal states.
func (c *Consultation) TransitionTo(next Status, at time.Time) error {
	if !next.IsValid() {
		return ErrInvalidStatus
	}
	if !c.CanTransitionTo(next) {
		return ErrInvalidStatusTransition
	}
	if next == c.Status {
		return nil
	}
	c.Status = next
	switch next {
	case StatusCompleted:
		c.CompletedAt = &at
	case StatusCancelled:
		c.CancelledAt = &at
	}
	return nil
}

// Apply copies the set clinical fields of cmd onto c. Status is handled by TransitionTo.
func (c *Consultation) Apply(cmd *UpdateConsultationCommand) {
	if cmd.ChiefComplaint != nil {
		c.ChiefComplaint = *cmd.ChiefComplaint
	}
	if cmd.Diagnosis != nil {
		c.Diagnosis = *cmd.Diagnosis
	}
	if cmd.ClinicalNotes != nil {
		c.ClinicalNotes = *cmd.ClinicalNotes
	}
	if cmd.VitalSigns != nil {
		c.VitalSigns = cmd.VitalSigns
	}
	if cmd.PhysicalExamination != nil {
		c.PhysicalExamination = *cmd.PhysicalExamination
	}
	if cmd.TreatmentPlan != nil {
		c.TreatmentPlan = *cmd.TreatmentPlan
	}
	if cmd.FollowUpDate != nil {
		c.FollowUpDate = cmd.FollowUpDate
	}
}

type CreateConsultationCommand struct {
	PatientID           uuid.UUID
	DoctorID            uuid.UUID
	ConsultationDate    time.Time
	Status              Status
	Reason              string
	ChiefComplaint      string
	Diagnosis           string
	ClinicalNotes       string
	VitalSigns          *VitalSigns
	PhysicalExamination string
	TreatmentPlan       string
	FollowUpDate        *time.Time
}

type UpdateConsultationCommand struct {
	Status              *Status
	ChiefComplaint      *string
	Diagnosis           *string
	ClinicalNotes       *string
	VitalSigns          *VitalSigns
	PhysicalExamination *string
	TreatmentPlan       *string
	FollowUpDate        *time.Time
}

type ListConsultationsQuery struct {
	PatientID *uuid.UUID
	Status    *Status
	Ownership *domain.Ownership
	Offset    int
	Limit     int
}

type PagedConsultations struct {
	Consultations []*Consultation `json:"consultations"`
	TotalCount    int64           `json:"total_count"`
	Offset        int             `json:"offset"`
	Limit         int             `json:"limit"`
}

package patient

import (
	"time"

	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Gender string

const (
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
	GenderOther   Gender = "other"
	GenderUnknown Gender = "unknown"
)

func (g Gender) IsValid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther, GenderUnknown:
		return true
	}
	return false
}

type BloodType string

const (
	BloodTypeAPos  BloodType = "A+"
	BloodTypeANeg  BloodType = "A-"
	BloodTypeBPos  BloodType = "B+"
	BloodTypeBNeg  BloodType = "B-"
	BloodTypeABPos BloodType = "AB+"
	BloodTypeABNeg BloodType = "AB-"
	BloodTypeOPos  BloodType = "O+"
	BloodTypeONeg  BloodType = "O-"
)

func (b BloodType) IsValid() bool {
	switch b {
	case BloodTypeAPos, BloodTypeANeg, BloodTypeBPos, BloodTypeBNeg,
		BloodTypeABPos, BloodTypeABNeg, BloodTypeOPos, BloodTypeONeg:
		return true
	}
	return false
}

type Address struct {
	Street     string `gorm:"column:address;type:varchar(500)" json:"address,omitempty"`
	City       string `gorm:"column:city;type:varchar(100)" json:"city,omitempty"`
	PostalCode string `gorm:"column:postal_code;type:varchar(20)" json:"postal_code,omitempty"`
	Country    string `gorm:"column:country;type:varchar(100)" json:"country,omitempty"`
}

type EmergencyContact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type Insurance struct {
	Provider string `json:"provider"`
	Number   string `json:"number"`
}

// Patient holds the demographic record of exactly one user account.
type Patient struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// At most one live record per user; enforced by a partial unique index.
	UserID uuid.UUID `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`

	DateOfBirth *time.Time `gorm:"column:date_of_birth" json:"date_of_birth,omitempty"`
	Gender      Gender     `gorm:"column:gender;type:varchar(20)" json:"gender,omitempty"`
	BloodType   BloodType  `gorm:"column:blood_type;type:varchar(5)" json:"blood_type,omitempty"`

	Address

	EmergencyContact *EmergencyContact `gorm:"column:emergency_contact;serializer:json" json:"emergency_contact,omitempty"`
	Insurance        *Insurance        `gorm:"column:insurance;serializer:json" json:"insurance,omitempty"`

	Allergies         []string `gorm:"column:allergies;serializer:json" json:"allergies,omitempty"`
	ChronicConditions []string `gorm:"column:chronic_conditions;serializer:json" json:"chronic_conditions,omitempty"`
	FamilyHistory     string   `gorm:"column:family_history;type:text" json:"family_history,omitempty"` // PHI

	CreatedBy uuid.UUID `gorm:"column:created_by;type:uuid;not null" json:"created_by"`
}

func (Patient) TableName() string {
	return "clinical.patients"
}

func (p *Patient) ResourceType() domain.ResourceType { return domain.ResourcePatient }

// OwnerOf: the owning user is the subject of the record. Patient records have no author.
func (p *Patient) OwnerOf(rel domain.Relation) (uuid.UUID, bool) {
	if rel == domain.RelationSubject {
		return p.UserID, true
	}
	return uuid.Nil, false
}

// Age returns whole years since birth, or -1 when the date of birth is unknown.
func (p *Patient) Age() int {
	if p.DateOfBirth == nil {
		return -1
	}
	now := time.Now()
	dob := *p.DateOfBirth
	years := now.Year() - dob.Year()
	if now.Month() < dob.Month() ||
		(now.Month() == dob.Month() && now.Day() < dob.Day()) {
		years--
	}
	return years
}

// Apply copies the set fields of cmd onto p.
func (p *Patient) Apply(cmd *UpdatePatientCommand) {
	if cmd.DateOfBirth != nil {
		p.DateOfBirth = cmd.DateOfBirth
	}
	if cmd.Gender != nil {
		p.Gender = *cmd.Gender
	}
	if cmd.BloodType != nil {
		p.BloodType = *cmd.BloodType
	}
	if cmd.Address != nil {
		p.Address = *cmd.Address
	}
	if cmd.EmergencyContact != nil {
		p.EmergencyContact = cmd.EmergencyContact
	}
	if cmd.Insurance != nil {
		p.Insurance = cmd.Insurance
	}
	if cmd.Allergies != nil {
		p.Allergies = *cmd.Allergies
	}
	if cmd.ChronicConditions != nil {
		p.ChronicConditions = *cmd.ChronicConditions
	}
	if cmd.FamilyHistory != nil {
		p.FamilyHistory = *cmd.FamilyHistory
	}
}

type CreatePatientCommand struct {
	UserID            uuid.UUID
	DateOfBirth       *time.Time
	Gender            Gender
	BloodType         BloodType
	Address           Address
	EmergencyContact  *EmergencyContact
	Insurance         *Insurance
	Allergies         []string
	ChronicConditions []string
	FamilyHistory     string
}

type UpdatePatientCommand struct {
	DateOfBirth       *time.Time
	Gender            *Gender
	BloodType         *BloodType
	Address           *Address
	EmergencyContact  *EmergencyContact
	Insurance         *Insurance
	Allergies         *[]string
	ChronicConditions *[]string
	FamilyHistory     *string
}

// ListPatientsQuery defines filtering and pagination for patient list queries.
type ListPatientsQuery struct {
	Ownership *domain.Ownership
	Offset    int
	Limit     int
}

type PagedPatients struct {
	Patients   []*Patient `json:"patients"`
	TotalCount int64      `json:"total_count"`
	Offset     int        `json:"offset"`
	Limit      int        `json:"limit"`
}

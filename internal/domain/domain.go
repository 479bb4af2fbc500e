package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleDoctor     Role = "doctor"
	RoleNurse      Role = "nurse"
	RolePharmacist Role = "pharmacist"
	RolePatient    Role = "patient"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleDoctor, RoleNurse, RolePharmacist, RolePatient:
		return true
	}
	return false
}

// ResourceType names a kind of record the access rules are written against.
type ResourceType string

const (
	ResourceUser         ResourceType = "user"
	ResourcePatient      ResourceType = "patient"
	ResourceConsultation ResourceType = "consultation"
	ResourcePrescription ResourceType = "prescription"
	ResourceAuditLog     ResourceType = "audit_log"
)

// Relation is the kind of ownership a user can hold over a record.
//
//	Subject: the person the record is about (user self, patient owner)
//	Author:  the clinician who wrote it
type Relation int

const (
	RelationSubject Relation = iota + 1
	RelationAuthor
)

// Ownership narrows list queries to the rows a user is related to.
// A row matches if any of the enabled relations holds.
type Ownership struct {
	UserID  uuid.UUID
	Subject bool
	Author  bool
}

// Identity is the authenticated principal behind a request.
type Identity struct {
	ID     uuid.UUID
	Role   Role
	Active bool
}

type User struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Email         string `gorm:"column:email;type:varchar(255);not null" json:"email"`
	Username      string `gorm:"column:username;type:varchar(100);not null" json:"username"`
	FullName      string `gorm:"column:full_name;type:varchar(255);not null" json:"full_name"`
	PasswordHash  string `gorm:"column:password_hash;type:varchar(255);not null" json:"-"`
	Role          Role   `gorm:"column:role;type:varchar(30);not null;index" json:"role"`
	Phone         string `gorm:"column:phone;type:varchar(20)" json:"phone,omitempty"`
	LicenseNumber string `gorm:"column:license_number;type:varchar(100)" json:"license_number,omitempty"`

	IsActive          bool       `gorm:"column:is_active;default:true;index" json:"is_active"`
	IsVerified        bool       `gorm:"column:is_verified;default:false" json:"is_verified"`
	FailedLoginCount  int        `gorm:"column:failed_login_count;default:0" json:"-"`
	LockedUntil       *time.Time `gorm:"column:locked_until" json:"-"`
	LastLoginAt       *time.Time `gorm:"column:last_login_at" json:"last_login,omitempty"`
	PasswordChangedAt time.Time  `gorm:"column:password_changed_at" json:"-"`

	MFAEnabled bool   `gorm:"column:mfa_enabled;default:false" json:"mfa_enabled"`
	MFASecret  string `gorm:"column:mfa_secret;type:varchar(100)" json:"-"`
}

func (User) TableName() string {
	return "auth.users"
}

// IsLocked returns true if the account is temporarily locked due to failed logins.
func (u *User) IsLocked() bool {
	return u.LockedUntil != nil && time.Now().Before(*u.LockedUntil)
}

func (u *User) Identity() Identity {
	return Identity{ID: u.ID, Role: u.Role, Active: u.IsActive}
}

func (u *User) ResourceType() ResourceType { return ResourceUser }

// OwnerOf: a user account is its own subject.
func (u *User) OwnerOf(rel Relation) (uuid.UUID, bool) {
	if rel == RelationSubject {
		return u.ID, true
	}
	return uuid.Nil, false
}

// NormalizeEmail lower-cases and trims an address before lookups and storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type CreateUserCommand struct {
	Email         string
	Username      string
	FullName      string
	Password      string
	Role          Role
	Phone         string
	LicenseNumber string
}

type UpdateUserCommand struct {
	Email         *string
	Username      *string
	FullName      *string
	Phone         *string
	LicenseNumber *string
	// Only honoured for administrators.
	IsActive *bool
}

type ListUsersQuery struct {
	Role      *Role
	Ownership *Ownership
	Offset    int
	Limit     int
}

type PagedUsers struct {
	Users      []*User `json:"users"`
	TotalCount int64   `json:"total_count"`
	Offset     int     `json:"offset"`
	Limit      int     `json:"limit"`
}

type AuditAction string

const (
	ActionCreate   AuditAction = "create"
	ActionRead     AuditAction = "read"
	ActionUpdate   AuditAction = "update"
	ActionDelete   AuditAction = "delete"
	ActionDispense AuditAction = "dispense"
	ActionLogin    AuditAction = "login"
	ActionLogout   AuditAction = "logout"
)

type AuditStatus string

const (
	AuditSuccess   AuditStatus = "success"
	AuditFailure   AuditStatus = "failure"
	AuditForbidden AuditStatus = "forbidden"
)

// AuditLog rows are insert-only. Nothing in the codebase updates or deletes them.
type AuditLog struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Timestamp time.Time `gorm:"column:timestamp;not null;index" json:"timestamp"`

	// Who
	UserID    *uuid.UUID `gorm:"column:user_id;type:uuid;index" json:"user_id,omitempty"`
	UserRole  Role       `gorm:"column:user_role;type:varchar(30)" json:"user_role,omitempty"`
	IPAddress string     `gorm:"column:ip_address;type:varchar(45)" json:"ip_address,omitempty"` // Supports IPv6
	UserAgent string     `gorm:"column:user_agent;type:text" json:"user_agent,omitempty"`

	// What
	Action       AuditAction  `gorm:"column:action;type:varchar(20);not null;index" json:"action"`
	ResourceType ResourceType `gorm:"column:resource_type;type:varchar(50);not null;index" json:"resource_type"`
	ResourceID   *uuid.UUID   `gorm:"column:resource_id;type:uuid;index" json:"resource_id,omitempty"`
	Description  string       `gorm:"column:description;type:text" json:"description"`

	Status       AuditStatus `gorm:"column:status;type:varchar(20);not null;default:'success'" json:"status"`
	ErrorMessage string      `gorm:"column:error_message;type:text" json:"error_message,omitempty"`
	RequestID    string      `gorm:"column:request_id;type:varchar(50);index" json:"request_id,omitempty"`
}

func (AuditLog) TableName() string {
	return "audit.logs"
}

type AuditFilter struct {
	UserID       *uuid.UUID
	ResourceType *ResourceType
	ResourceID   *uuid.UUID
}

type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	TokenType    string    `json:"token_type"` // Always "Bearer"
}

type Claims struct {
	UserID    uuid.UUID `json:"sub"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	TokenID   string    `json:"jti"`
	ExpiresAt time.Time `json:"exp"`
}

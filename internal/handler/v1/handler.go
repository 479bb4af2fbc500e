package v1

import (
	"context"

	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain/consultation"
	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain/prescription"
	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/service"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AuthService interface {
	Login(ctx context.Context, email, password, code string) (*domain.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error)
	Logout(ctx context.Context, actor domain.Identity, accessClaims *domain.Claims, refreshToken string) error
	ResolveIdentity(ctx context.Context, token string) (domain.Identity, *domain.Claims, error)
	ChangePassword(ctx context.Context, actor domain.Identity, currentPassword, newPassword string) error
	EnrollMFA(ctx context.Context, actor domain.Identity) (*service.MFAEnrollment, error)
	ConfirmMFA(ctx context.Context, actor domain.Identity, code string) error
}

type UserService interface {
	Register(ctx context.Context, cmd *domain.CreateUserCommand) (*domain.User, error)
	Create(ctx context.Context, actor domain.Identity, cmd *domain.CreateUserCommand) (*domain.User, error)
	Get(ctx context.Context, actor domain.Identity, id uuid.UUID) (*domain.User, error)
	List(ctx context.Context, actor domain.Identity, q *domain.ListUsersQuery) (*domain.PagedUsers, error)
	Update(ctx context.Context, actor domain.Identity, id uuid.UUID, cmd *domain.UpdateUserCommand) (*domain.User, error)
	Delete(ctx context.Context, actor domain.Identity, id uuid.UUID) error
}

type PatientService interface {
	CreatePatient(ctx context.Context, actor domain.Identity, cmd *patient.CreatePatientCommand) (*patient.Patient, error)
	GetPatient(ctx context.Context, actor domain.Identity, id uuid.UUID) (*patient.Patient, error)
	ListPatients(ctx context.Context, actor domain.Identity, q *patient.ListPatientsQuery) (*patient.PagedPatients, error)
	UpdatePatient(ctx context.Context, actor domain.Identity, id uuid.UUID, cmd *patient.UpdatePatientCommand) (*patient.Patient, error)
	DeletePatient(ctx context.Context, actor domain.Identity, id uuid.UUID) error
}

type ConsultationService interface {
	CreateConsultation(ctx context.Context, actor domain.Identity, cmd *consultation.CreateConsultationCommand) (*consultation.Consultation, error)
	GetConsultation(ctx context.Context, actor domain.Identity, id uuid.UUID) (*consultation.Consultation, error)
	ListConsultations(ctx context.Context, actor domain.Identity, q *consultation.ListConsultationsQuery) (*consultation.PagedConsultations, error)
	UpdateConsultation(ctx context.Context, actor domain.Identity, id uuid.UUID, cmd *consultation.UpdateConsultationCommand) (*consultation.Consultation, error)
	DeleteConsultation(ctx context.Context, actor domain.Identity, id uuid.UUID) error
}

type PrescriptionService interface {
	CreatePrescription(ctx context.Context, actor domain.Identity, cmd *prescription.CreatePrescriptionCommand) (*prescription.Prescription, error)
	GetPrescription(ctx context.Context, actor domain.Identity, id uuid.UUID) (*prescription.Prescription, error)
	ListPrescriptions(ctx context.Context, actor domain.Identity, q *prescription.ListPrescriptionsQuery) (*prescription.PagedPrescriptions, error)
	UpdatePrescription(ctx context.Context, actor domain.Identity, id uuid.UUID, cmd *prescription.UpdatePrescriptionCommand) (*prescription.Prescription, error)
	DispensePrescription(ctx context.Context, actor domain.Identity, id uuid.UUID, cmd *prescription.DispenseCommand) (*prescription.Prescription, error)
	DeletePrescription(ctx context.Context, actor domain.Identity, id uuid.UUID) error
}

type AuditService interface {
	Query(ctx context.Context, actor domain.Identity, f domain.AuditFilter, offset, limit int) ([]*domain.AuditLog, error)
}

type Handler struct {
	auth          AuthService
	users         UserService
	patients      PatientService
	consultations ConsultationService
	prescriptions PrescriptionService
	audit         AuditService
	log           *zap.Logger
}

func NewHandler(
	auth AuthService,
	users UserService,
	patients PatientService,
	consultations ConsultationService,
	prescriptions PrescriptionService,
	audit AuditService,
	log *zap.Logger,
) *Handler {
	return &Handler{
		auth:          auth,
		users:         users,
		patients:      patients,
		consultations: consultations,
		prescriptions: prescriptions,
		audit:         audit,
		log:           log,
	}
}

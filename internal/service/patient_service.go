package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/access"
	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/medcycle/pkg/metrics"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type PatientService struct {
	audit   *AuditService
	authz   *authorizer
	metrics *metrics.Collector
	log     *zap.Logger
}

func NewPatientService(audit *AuditService, evaluator *access.Evaluator, m *metrics.Collector, log *zap.Logger) *PatientService {
	return &PatientService{
		audit:   audit,
		authz:   newAuthorizer(evaluator, m),
		metrics: m,
		log:     log,
	}
}

// CreatePatient opens the demographic record of an existing user. A user has
// at most one live record.
func (s *PatientService) CreatePatient(ctx context.Context, actor domain.Identity, cmd *patient.CreatePatientCommand) (*patient.Patient, error) {
	ctx, span := otel.Tracer("patient-service").Start(ctx, "PatientService.CreatePatient")
	defer span.End()

	if err := validateCreateCommand(cmd); err != nil {
		return nil, err
	}

	p := &patient.Patient{
		ID:                uuid.New(),
		UserID:            cmd.UserID,
		DateOfBirth:       cmd.DateOfBirth,
		Gender:            cmd.Gender,
		BloodType:         cmd.BloodType,
		Address:           cmd.Address,
		EmergencyContact:  cmd.EmergencyContact,
		Insurance:         cmd.Insurance,
		Allergies:         trimAll(cmd.Allergies),
		ChronicConditions: trimAll(cmd.ChronicConditions),
		FamilyHistory:     strings.TrimSpace(cmd.FamilyHistory),
		CreatedBy:         actor.ID,
	}

	err := s.audit.Run(ctx, &actor, func(tx Repositories, rec *Recorder) error {
		owner, err := tx.Users().GetByID(ctx, cmd.UserID)
		if err != nil {
			return err
		}
		if err := s.authz.check(rec, actor, access.ActionCreate, p, nil); err != nil {
			return err
		}

		exists, err := tx.Patients().ExistsByUserID(ctx, cmd.UserID)
		if err != nil {
			return fmt.Errorf("checking uniqueness: %w", err)
		}
		if exists {
			return patient.ErrPatientAlreadyExists
		}

		if err := tx.Patients().Create(ctx, p); err != nil {
			return err
		}
		return rec.Record(ctx, AuditEntry{
			Action:       domain.ActionCreate,
			ResourceType: domain.ResourcePatient,
			ResourceID:   &p.ID,
			Description:  "Created patient record for user: " + owner.Email,
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.PatientsCreatedTotal.Inc()
	s.log.Info("patient created",
		zap.String("patient_id", p.ID.String()),
		zap.String("created_by", actor.ID.String()),
	)
	return p, nil
}

func (s *PatientService) GetPatient(ctx context.Context, actor domain.Identity, id uuid.UUID) (*patient.Patient, error) {
	ctx, span := otel.Tracer("patient-service").Start(ctx, "PatientService.GetPatient")
	defer span.End()
	span.SetAttributes(attribute.String("patient.id", id.String()))

	var p *patient.Patient
	err := s.audit.Run(ctx, &actor, func(tx Repositories, rec *Recorder) error {
		var err error
		if p, err = tx.Patients().GetByID(ctx, id); err != nil {
			return err
		}
		if err := s.authz.check(rec, actor, access.ActionRead, p, &id); err != nil {
			return err
		}
		return rec.Record(ctx, AuditEntry{
			Action:       domain.ActionRead,
			ResourceType: domain.ResourcePatient,
			ResourceID:   &id,
			Description:  "Viewed patient record: " + id.String(),
		})
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PatientService) ListPatients(ctx context.Context, actor domain.Identity, q *patient.ListPatientsQuery) (*patient.PagedPatients, error) {
	ctx, span := otel.Tracer("patient-service").Start(ctx, "PatientService.ListPatients")
	defer span.End()

	q.Offset, q.Limit = page(q.Offset, q.Limit)

	var out *patient.PagedPatients
	err := s.audit.Run(ctx, &actor, func(tx Repositories, rec *Recorder) error {
		own, err := s.authz.checkType(rec, actor, access.ActionRead, domain.ResourcePatient)
		if err != nil {
			return err
		}
		q.Ownership = own
		if out, err = tx.Patients().List(ctx, q); err != nil {
			return err
		}
		return rec.Record(ctx, AuditEntry{
			Action:       domain.ActionRead,
			ResourceType: domain.ResourcePatient,
			Description:  fmt.Sprintf("Listed %d patients", len(out.Patients)),
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PatientService) UpdatePatient(ctx context.Context, actor domain.Identity, id uuid.UUID, cmd *patient.UpdatePatientCommand) (*patient.Patient, error) {
	ctx, span := otel.Tracer("patient-service").Start(ctx, "PatientService.UpdatePatient")
	defer span.End()
	span.SetAttributes(attribute.String("patient.id", id.String()))

	if err := validateUpdateCommand(cmd); err != nil {
		return nil, err
	}

	var p *patient.Patient
	err := s.audit.Run(ctx, &actor, func(tx Repositories, rec *Recorder) error {
		var err error
		if p, err = tx.Patients().GetByID(ctx, id); err != nil {
			return err
		}
		if err := s.authz.check(rec, actor, access.ActionUpdate, p, &id); err != nil {
			return err
		}

		p.Apply(cmd)
		if err := tx.Patients().Update(ctx, p); err != nil {
			return err
		}
		return rec.Record(ctx, AuditEntry{
			Action:       domain.ActionUpdate,
			ResourceType: domain.ResourcePatient,
			ResourceID:   &id,
			Description:  "Updated patient record: " + id.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("patient updated",
		zap.String("patient_id", id.String()),
		zap.String("updated_by", actor.ID.String()),
	)
	return p, nil
}

// DeletePatient soft-deletes the record together with its consultations and
// prescriptions.
func (s *PatientService) DeletePatient(ctx context.Context, actor domain.Identity, id uuid.UUID) error {
	ctx, span := otel.Tracer("patient-service").Start(ctx, "PatientService.DeletePatient")
	defer span.End()
	span.SetAttributes(attribute.String("patient.id", id.String()))

	err := s.audit.Run(ctx, &actor, func(tx Repositories, rec *Recorder) error {
		p, err := tx.Patients().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.authz.check(rec, actor, access.ActionDelete, p, &id); err != nil {
			return err
		}
		if err := deletePatientCascade(ctx, tx, id); err != nil {
			return err
		}
		return rec.Record(ctx, AuditEntry{
			Action:       domain.ActionDelete,
			ResourceType: domain.ResourcePatient,
			ResourceID:   &id,
			Description:  "Deleted patient record: " + id.String(),
		})
	})
	if err != nil {
		return err
	}

	s.log.Info("patient deleted",
		zap.String("patient_id", id.String()),
		zap.String("deleted_by", actor.ID.String()),
	)
	return nil
}

func validateCreateCommand(cmd *patient.CreatePatientCommand) error {
	var errs []string

	if cmd.UserID == uuid.Nil {
		errs = append(errs, "user_id is required")
	}
	errs = append(errs, validateDemographics(cmd.DateOfBirth, &cmd.Gender, &cmd.BloodType)...)

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

func validateUpdateCommand(cmd *patient.UpdatePatientCommand) error {
	if errs := validateDemographics(cmd.DateOfBirth, cmd.Gender, cmd.BloodType); len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// validateDemographics checks the optional demographic fields; empty values pass.
func validateDemographics(dob *time.Time, gender *patient.Gender, blood *patient.BloodType) []string {
	var errs []string
	if dob != nil && dob.After(time.Now()) {
		errs = append(errs, patient.ErrInvalidDateOfBirth.Error())
	}
	if gender != nil && *gender != "" && !gender.IsValid() {
		errs = append(errs, patient.ErrInvalidGender.Error())
	}
	if blood != nil && *blood != "" && !blood.IsValid() {
		errs = append(errs, patient.ErrInvalidBloodType.Error())
	}
	return errs
}

func trimAll(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, v := range in {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}

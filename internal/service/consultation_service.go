package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/access"
	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain/consultation"
	"github.com/dmehra2102/prod-golang-projects/medcycle/pkg/metrics"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type ConsultationService struct {
	audit   *AuditService
	authz   *authorizer
	metrics *metrics.Collector
	log     *zap.Logger
	now     func() time.Time
}

func NewConsultationService(audit *AuditService, evaluator *access.Evaluator, m *metrics.Collector, log *zap.Logger) *ConsultationService {
	return &ConsultationService{
		audit:   audit,
		authz:   newAuthorizer(evaluator, m),
		metrics: m,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateConsultation records a consultation between an existing patient and
// doctor. Doctors default to authoring it themselves.
func (s *ConsultationService) CreateConsultation(ctx context.Context, actor domain.Identity, cmd *consultation.CreateConsultationCommand) (*consultation.Consultation, error) {
	ctx, span := otel.Tracer("consultation-service").Start(ctx, "ConsultationService.CreateConsultation")
	defer span.End()

	if cmd.DoctorID == uuid.Nil && actor.Role == domain.RoleDoctor {
		cmd.DoctorID = actor.ID
	}
	if cmd.Status == "" {
		cmd.Status = consultation.StatusScheduled
	}
	if cmd.ConsultationDate.IsZero() {
		cmd.ConsultationDate = s.now()
	}
	if err := validateCreateConsultation(cmd); err != nil {
		return nil, err
	}

	now := s.now()
	c := &consultation.Consultation{
		ID:                  uuid.New(),
		PatientID:           cmd.PatientID,
		DoctorID:            cmd.DoctorID,
		ConsultationDate:    cmd.ConsultationDate,
		Status:              cmd.Status,
		Reason:              strings.TrimSpace(cmd.Reason),
		ChiefComplaint:      cmd.ChiefComplaint,
		Diagnosis:           cmd.Diagnosis,
		ClinicalNotes:       cmd.ClinicalNotes,
		VitalSigns:          cmd.VitalSigns,
		PhysicalExamination: cmd.PhysicalExamination,
		TreatmentPlan:       cmd.TreatmentPlan,
		FollowUpDate:        cmd.FollowUpDate,
	}
	switch c.Status {
	case consultation.StatusCompleted:
		c.CompletedAt = &now
	case consultation.StatusCancelled:
		c.CancelledAt = &now
	}

	err := s.audit.Run(ctx, &actor, func(tx Repositories, rec *Recorder) error {
		p, err := tx.Patients().GetByID(ctx, cmd.PatientID)
		if err != nil {
			return err
		}
		if err := requireRole(ctx, tx, cmd.DoctorID, domain.RoleDoctor, domain.ErrDoctorNotFound); err != nil {
			return err
		}

		c.Patient = p
		if err := s.authz.check(rec, actor, access.ActionCreate, c, nil); err != nil {
			return err
		}

		if err := tx.Consultations().Create(ctx, c); err != nil {
			return err
		}
		return rec.Record(ctx, AuditEntry{
			Action:       domain.ActionCreate,
			ResourceType: domain.ResourceConsultation,
			ResourceID:   &c.ID,
			Description:  "Created consultation for patient: " + p.ID.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ConsultationsTotal.WithLabelValues(string(c.Status)).Inc()
	s.log.Info("consultation created",
		zap.String("consultation_id", c.ID.String()),
		zap.String("doctor_id", c.DoctorID.String()),
	)
	return c, nil
}

func (s *ConsultationService) GetConsultation(ctx context.Context, actor domain.Identity, id uuid.UUID) (*consultation.Consultation, error) {
	ctx, span := otel.Tracer("consultation-service").Start(ctx, "ConsultationService.GetConsultation")
	defer span.End()
	span.SetAttributes(attribute.String("consultation.id", id.String()))

	var c *consultation.Consultation
	err := s.audit.Run(ctx, &actor, func(tx Repositories, rec *Recorder) error {
		var err error
		if c, err = tx.Consultations().GetByID(ctx, id); err != nil {
			return err
		}
		if err := s.authz.check(rec, actor, access.ActionRead, c, &id); err != nil {
			return err
		}
		return rec.Record(ctx, AuditEntry{
			Action:       domain.ActionRead,
			ResourceType: domain.ResourceConsultation,
			ResourceID:   &id,
			Description:  "Viewed consultation: " + id.String(),
		})
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *ConsultationService) ListConsultations(ctx context.Context, actor domain.Identity, q *consultation.ListConsultationsQuery) (*consultation.PagedConsultations, error) {
	ctx, span := otel.Tracer("consultation-service").Start(ctx, "ConsultationService.ListConsultations")
	defer span.End()

	if q.Status != nil && !q.Status.IsValid() {
		return nil, invalid(consultation.ErrInvalidStatus.Error())
	}
	q.Offset, q.Limit = page(q.Offset, q.Limit)

	var out *consultation.PagedConsultations
	err := s.audit.Run(ctx, &actor, func(tx Repositories, rec *Recorder) error {
		own, err := s.authz.checkType(rec, actor, access.ActionRead, domain.ResourceConsultation)
		if err != nil {
			return err
		}
		q.Ownership = own
		if out, err = tx.Consultations().List(ctx, q); err != nil {
			return err
		}
		return rec.Record(ctx, AuditEntry{
			Action:       domain.ActionRead,
			ResourceType: domain.ResourceConsultation,
			Description:  fmt.Sprintf("Listed %d consultations", len(out.Consultations)),
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateConsultation applies clinical changes and, when requested, a status
// transition.
func (s *ConsultationService) UpdateConsultation(ctx context.Context, actor domain.Identity, id uuid.UUID, cmd *consultation.UpdateConsultationCommand) (*consultation.Consultation, error) {
	ctx, span := otel.Tracer("consultation-service").Start(ctx, "ConsultationService.UpdateConsultation")
	defer span.End()
	span.SetAttributes(attribute.String("consultation.id", id.String()))

	var (
		c         *consultation.Consultation
		statusSet bool
	)
	err := s.audit.Run(ctx, &actor, func(tx Repositories, rec *Recorder) error {
		var err error
		if c, err = tx.Consultations().GetByID(ctx, id); err != nil {
			return err
		}
		if err := s.authz.check(rec, actor, access.ActionUpdate, c, &id); err != nil {
			return err
		}

		if cmd.Status != nil && *cmd.Status != c.Status {
			if err := c.TransitionTo(*cmd.Status, s.now()); err != nil {
				return err
			}
			statusSet = true
		}
		c.Apply(cmd)

		if err := tx.Consultations().Update(ctx, c); err != nil {
			return err
		}
		return rec.Record(ctx, AuditEntry{
			Action:       domain.ActionUpdate,
			ResourceType: domain.ResourceConsultation,
			ResourceID:   &id,
			Description:  "Updated consultation: " + id.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	if statusSet {
		s.metrics.ConsultationsTotal.WithLabelValues(string(c.Status)).Inc()
	}
	s.log.Info("consultation updated",
		zap.String("consultation_id", id.String()),
		zap.String("status", string(c.Status)),
	)
	return c, nil
}

func (s *ConsultationService) DeleteConsultation(ctx context.Context, actor domain.Identity, id uuid.UUID) error {
	ctx, span := otel.Tracer("consultation-service").Start(ctx, "ConsultationService.DeleteConsultation")
	defer span.End()
	span.SetAttributes(attribute.String("consultation.id", id.String()))

	err := s.audit.Run(ctx, &actor, func(tx Repositories, rec *Recorder) error {
		c, err := tx.Consultations().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.authz.check(rec, actor, access.ActionDelete, c, &id); err != nil {
			return err
		}
		if err := tx.Consultations().SoftDelete(ctx, id); err != nil {
			return err
		}
		return rec.Record(ctx, AuditEntry{
			Action:       domain.ActionDelete,
			ResourceType: domain.ResourceConsultation,
			ResourceID:   &id,
			Description:  "Deleted consultation: " + id.String(),
		})
	})
	if err != nil {
		return err
	}

	s.log.Info("consultation deleted",
		zap.String("consultation_id", id.String()),
		zap.String("deleted_by", actor.ID.String()),
	)
	return nil
}

// requireRole loads a referenced user and checks their role, reporting
// notFound when either fails.
func requireRole(ctx context.Context, tx Repositories, id uuid.UUID, role domain.Role, notFound error) error {
	u, err := tx.Users().GetByID(ctx, id)
	if errors.Is(err, domain.ErrUserNotFound) {
		return notFound
	}
	if err != nil {
		return err
	}
	if u.Role != role {
		return notFound
	}
	return nil
}

func validateCreateConsultation(cmd *consultation.CreateConsultationCommand) error {
	var errs []string

	if cmd.PatientID == uuid.Nil {
		errs = append(errs, "patient_id is required")
	}
	if cmd.DoctorID == uuid.Nil {
		errs = append(errs, "doctor_id is required")
	}
	if !cmd.Status.IsValid() {
		errs = append(errs, consultation.ErrInvalidStatus.Error())
	}
	if len(cmd.Reason) > 500 {
		errs = append(errs, "reason must be at most 500 characters")
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

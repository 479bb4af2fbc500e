package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/access"
	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain/prescription"
	"github.com/dmehra2102/prod-golang-projects/medcycle/pkg/metrics"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type PrescriptionService struct {
	audit   *AuditService
	authz   *authorizer
	metrics *metrics.Collector
	log     *zap.Logger
	now     func() time.Time
}

func NewPrescriptionService(audit *AuditService, evaluator *access.Evaluator, m *metrics.Collector, log *zap.Logger) *PrescriptionService {
	return &PrescriptionService{
		audit:   audit,
		authz:   newAuthorizer(evaluator, m),
		metrics: m,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreatePrescription issues an active prescription. Doctors default to
// prescribing as themselves.
func (s *PrescriptionService) CreatePrescription(ctx context.Context, actor domain.Identity, cmd *prescription.CreatePrescriptionCommand) (*prescription.Prescription, error) {
	ctx, span := otel.Tracer("prescription-service").Start(ctx, "PrescriptionService.CreatePrescription")
	defer span.End()

	if cmd.DoctorID == uuid.Nil && actor.Role == domain.RoleDoctor {
		cmd.DoctorID = actor.ID
	}
	if cmd.Route == "" {
		cmd.Route = prescription.RouteOral
	}
	if err := validateCreatePrescription(cmd, s.now()); err != nil {
		return nil, err
	}

	rx := &prescription.Prescription{
		ID:                uuid.New(),
		PatientID:         cmd.PatientID,
		DoctorID:          cmd.DoctorID,
		ConsultationID:    cmd.ConsultationID,
		MedicationName:    strings.TrimSpace(cmd.MedicationName),
		Dosage:            strings.TrimSpace(cmd.Dosage),
		Frequency:         strings.TrimSpace(cmd.Frequency),
		Duration:          strings.TrimSpace(cmd.Duration),
		Route:             cmd.Route,
		Quantity:          cmd.Quantity,
		Refills:           cmd.Refills,
		Status:            prescription.StatusActive,
		Notes:             cmd.Notes,
		Contraindications: cmd.Contraindications,
		SideEffects:       cmd.SideEffects,
		PrescribedDate:    s.now(),
		ExpiryDate:        cmd.ExpiryDate,
	}

	err := s.audit.Run(ctx, &actor, func(tx Repositories, rec *Recorder) error {
		p, err := tx.Patients().GetByID(ctx, cmd.PatientID)
		if err != nil {
			return err
		}
		if err := requireRole(ctx, tx, cmd.DoctorID, domain.RoleDoctor, domain.ErrDoctorNotFound); err != nil {
			return err
		}
		if cmd.ConsultationID != nil {
			c, err := tx.Consultations().GetByID(ctx, *cmd.ConsultationID)
			if err != nil {
				return err
			}
			if c.PatientID != cmd.PatientID {
				return prescription.ErrConsultationMismatch
			}
		}

		rx.Patient = p
		if err := s.authz.check(rec, actor, access.ActionCreate, rx, nil); err != nil {
			return err
		}

		if err := tx.Prescriptions().Create(ctx, rx); err != nil {
			return err
		}
		return rec.Record(ctx, AuditEntry{
			Action:       domain.ActionCreate,
			ResourceType: domain.ResourcePrescription,
			ResourceID:   &rx.ID,
			Description:  fmt.Sprintf("Created prescription for patient: %s, medication: %s", p.ID, rx.MedicationName),
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.PrescriptionsIssued.Inc()
	s.log.Info("prescription created",
		zap.String("prescription_id", rx.ID.String()),
		zap.String("doctor_id", rx.DoctorID.String()),
	)
	return rx, nil
}

func (s *PrescriptionService) GetPrescription(ctx context.Context, actor domain.Identity, id uuid.UUID) (*prescription.Prescription, error) {
	ctx, span := otel.Tracer("prescription-service").Start(ctx, "PrescriptionService.GetPrescription")
	defer span.End()
	span.SetAttributes(attribute.String("prescription.id", id.String()))

	var rx *prescription.Prescription
	err := s.audit.Run(ctx, &actor, func(tx Repositories, rec *Recorder) error {
		var err error
		if rx, err = tx.Prescriptions().GetByID(ctx, id); err != nil {
			return err
		}
		if err := s.authz.check(rec, actor, access.ActionRead, rx, &id); err != nil {
			return err
		}
		return rec.Record(ctx, AuditEntry{
			Action:       domain.ActionRead,
			ResourceType: domain.ResourcePrescription,
			ResourceID:   &id,
			Description:  "Viewed prescription: " + id.String(),
		})
	})
	if err != nil {
		return nil, err
	}
	return rx, nil
}

func (s *PrescriptionService) ListPrescriptions(ctx context.Context, actor domain.Identity, q *prescription.ListPrescriptionsQuery) (*prescription.PagedPrescriptions, error) {
	ctx, span := otel.Tracer("prescription-service").Start(ctx, "PrescriptionService.ListPrescriptions")
	defer span.End()

	if q.Status != nil && !q.Status.IsValid() {
		return nil, invalid(prescription.ErrInvalidStatus.Error())
	}
	q.Offset, q.Limit = page(q.Offset, q.Limit)

	var out *prescription.PagedPrescriptions
	err := s.audit.Run(ctx, &actor, func(tx Repositories, rec *Recorder) error {
		own, err := s.authz.checkType(rec, actor, access.ActionRead, domain.ResourcePrescription)
		if err != nil {
			return err
		}
		q.Ownership = own
		if out, err = tx.Prescriptions().List(ctx, q); err != nil {
			return err
		}
		return rec.Record(ctx, AuditEntry{
			Action:       domain.ActionRead,
			ResourceType: domain.ResourcePrescription,
			Description:  fmt.Sprintf("Listed %d prescriptions", len(out.Prescriptions)),
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdatePrescription changes status, notes, refills or expiry. Dispensing
// fields are only ever set by DispensePrescription.
func (s *PrescriptionService) UpdatePrescription(ctx context.Context, actor domain.Identity, id uuid.UUID, cmd *prescription.UpdatePrescriptionCommand) (*prescription.Prescription, error) {
	ctx, span := otel.Tracer("prescription-service").Start(ctx, "PrescriptionService.UpdatePrescription")
	defer span.End()
	span.SetAttributes(attribute.String("prescription.id", id.String()))

	var rx *prescription.Prescription
	err := s.audit.Run(ctx, &actor, func(tx Repositories, rec *Recorder) error {
		var err error
		if rx, err = tx.Prescriptions().GetByID(ctx, id); err != nil {
			return err
		}
		if err := s.authz.check(rec, actor, access.ActionUpdate, rx, &id); err != nil {
			return err
		}

		if err := rx.Apply(cmd); err != nil {
			return err
		}
		if err := tx.Prescriptions().Update(ctx, rx); err != nil {
			return err
		}
		return rec.Record(ctx, AuditEntry{
			Action:       domain.ActionUpdate,
			ResourceType: domain.ResourcePrescription,
			ResourceID:   &id,
			Description:  "Updated prescription: " + id.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("prescription updated",
		zap.String("prescription_id", id.String()),
		zap.String("status", string(rx.Status)),
	)
	return rx, nil
}

// DispensePrescription completes an active prescription. The acting user is
// recorded as dispenser unless an administrator names another pharmacist.
// A prescription is dispensed at most once.
func (s *PrescriptionService) DispensePrescription(ctx context.Context, actor domain.Identity, id uuid.UUID, cmd *prescription.DispenseCommand) (*prescription.Prescription, error) {
	ctx, span := otel.Tracer("prescription-service").Start(ctx, "PrescriptionService.DispensePrescription")
	defer span.End()
	span.SetAttributes(attribute.String("prescription.id", id.String()))

	var rx *prescription.Prescription
	err := s.audit.Run(ctx, &actor, func(tx Repositories, rec *Recorder) error {
		var err error
		if rx, err = tx.Prescriptions().GetByID(ctx, id); err != nil {
			return err
		}

		pharmacistID := actor.ID
		declared := cmd != nil && cmd.DispensedBy != nil && *cmd.DispensedBy != actor.ID
		if declared {
			if err := requireRole(ctx, tx, *cmd.DispensedBy, domain.RolePharmacist, prescription.ErrPharmacistNotFound); err != nil {
				return err
			}
		}

		if err := s.authz.check(rec, actor, access.ActionDispense, rx, &id); err != nil {
			return err
		}
		if declared {
			if actor.Role != domain.RoleAdmin {
				return invalid("dispensed_by may only be set by an administrator")
			}
			pharmacistID = *cmd.DispensedBy
		}

		now := s.now()
		if err := rx.Dispense(pharmacistID, now); err != nil {
			return err
		}
		if err := tx.Prescriptions().MarkDispensed(ctx, id, pharmacistID, now); err != nil {
			return err
		}
		return rec.Record(ctx, AuditEntry{
			Action:       domain.ActionDispense,
			ResourceType: domain.ResourcePrescription,
			ResourceID:   &id,
			Description:  fmt.Sprintf("Dispensed prescription: %s, medication: %s", id, rx.MedicationName),
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.PrescriptionsDispensed.Inc()
	s.log.Info("prescription dispensed",
		zap.String("prescription_id", id.String()),
		zap.String("dispensed_by", rx.DispensedBy.String()),
	)
	return rx, nil
}

func (s *PrescriptionService) DeletePrescription(ctx context.Context, actor domain.Identity, id uuid.UUID) error {
	ctx, span := otel.Tracer("prescription-service").Start(ctx, "PrescriptionService.DeletePrescription")
	defer span.End()
	span.SetAttributes(attribute.String("prescription.id", id.String()))

	err := s.audit.Run(ctx, &actor, func(tx Repositories, rec *Recorder) error {
		rx, err := tx.Prescriptions().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.authz.check(rec, actor, access.ActionDelete, rx, &id); err != nil {
			return err
		}
		if err := tx.Prescriptions().SoftDelete(ctx, id); err != nil {
			return err
		}
		return rec.Record(ctx, AuditEntry{
			Action:       domain.ActionDelete,
			ResourceType: domain.ResourcePrescription,
			ResourceID:   &id,
			Description:  "Deleted prescription: " + id.String(),
		})
	})
	if err != nil {
		return err
	}

	s.log.Info("prescription deleted",
		zap.String("prescription_id", id.String()),
		zap.String("deleted_by", actor.ID.String()),
	)
	return nil
}

func validateCreatePrescription(cmd *prescription.CreatePrescriptionCommand, now time.Time) error {
	var errs []string

	if cmd.PatientID == uuid.Nil {
		errs = append(errs, "patient_id is required")
	}
	if cmd.DoctorID == uuid.Nil {
		errs = append(errs, "doctor_id is required")
	}
	if n := len(strings.TrimSpace(cmd.MedicationName)); n == 0 || n > 255 {
		errs = append(errs, "medication_name is required and must be at most 255 characters")
	}
	for _, f := range []struct{ name, value string }{
		{"dosage", cmd.Dosage},
		{"frequency", cmd.Frequency},
		{"duration", cmd.Duration},
	} {
		if n := len(strings.TrimSpace(f.value)); n == 0 || n > 100 {
			errs = append(errs, f.name+" is required and must be at most 100 characters")
		}
	}
	if !cmd.Route.IsValid() {
		errs = append(errs, "route is invalid")
	}
	if cmd.Quantity != nil && *cmd.Quantity <= 0 {
		errs = append(errs, "quantity must be positive")
	}
	if cmd.Refills < 0 {
		errs = append(errs, prescription.ErrInvalidRefills.Error())
	}
	if cmd.ExpiryDate != nil && !cmd.ExpiryDate.After(now) {
		errs = append(errs, "expiry_date must be in the future")
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
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
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 12

// passwordCost is the bcrypt work factor for stored hashes.
var passwordCost = bcrypt.DefaultCost

type UserService struct {
	audit *AuditService
	authz *authorizer
	log   *zap.Logger
}

func NewUserService(audit *AuditService, evaluator *access.Evaluator, m *metrics.Collector, log *zap.Logger) *UserService {
	return &UserService{audit: audit, authz: newAuthorizer(evaluator, m), log: log}
}

// Register is open self-registration. Administrator accounts cannot be
// created this way.
func (s *UserService) Register(ctx context.Context, cmd *domain.CreateUserCommand) (*domain.User, error) {
	ctx, span := otel.Tracer("user-service").Start(ctx, "UserService.Register")
	defer span.End()

	if cmd.Role == "" {
		cmd.Role = domain.RolePatient
	}
	if cmd.Role == domain.RoleAdmin {
		return nil, domain.ErrAdminSignup
	}
	if err := validateCreateUser(cmd); err != nil {
		return nil, err
	}

	var u *domain.User
	err := s.audit.Run(ctx, nil, func(tx Repositories, rec *Recorder) error {
		var err error
		if u, err = s.insert(ctx, tx, cmd); err != nil {
			return err
		}
		return rec.Record(ctx, AuditEntry{
			UserID:       &u.ID,
			UserRole:     u.Role,
			Action:       domain.ActionCreate,
			ResourceType: domain.ResourceUser,
			ResourceID:   &u.ID,
			Description:  "User registered: " + u.Email,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("user registered", zap.String("user_id", u.ID.String()), zap.String("role", string(u.Role)))
	return u, nil
}

// Create adds an account of any role on behalf of an authorized actor.
func (s *UserService) Create(ctx context.Context, actor domain.Identity, cmd *domain.CreateUserCommand) (*domain.User, error) {
	ctx, span := otel.Tracer("user-service").Start(ctx, "UserService.Create")
	defer span.End()

	if err := validateCreateUser(cmd); err != nil {
		return nil, err
	}

	var u *domain.User
	err := s.audit.Run(ctx, &actor, func(tx Repositories, rec *Recorder) error {
		if _, err := s.authz.checkType(rec, actor, access.ActionCreate, domain.ResourceUser); err != nil {
			return err
		}
		var err error
		if u, err = s.insert(ctx, tx, cmd); err != nil {
			return err
		}
		return rec.Record(ctx, AuditEntry{
			Action:       domain.ActionCreate,
			ResourceType: domain.ResourceUser,
			ResourceID:   &u.ID,
			Description:  "Created user: " + u.Email,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("user created",
		zap.String("user_id", u.ID.String()),
		zap.String("created_by", actor.ID.String()),
	)
	return u, nil
}

// SeedAdmin creates an administrator without an acting identity. Used once
// to bootstrap an installation.
func (s *UserService) SeedAdmin(ctx context.Context, cmd *domain.CreateUserCommand) (*domain.User, error) {
	cmd.Role = domain.RoleAdmin
	if err := validateCreateUser(cmd); err != nil {
		return nil, err
	}

	var u *domain.User
	err := s.audit.Run(ctx, nil, func(tx Repositories, rec *Recorder) error {
		var err error
		if u, err = s.insert(ctx, tx, cmd); err != nil {
			return err
		}
		return rec.Record(ctx, AuditEntry{
			UserID:       &u.ID,
			UserRole:     u.Role,
			Action:       domain.ActionCreate,
			ResourceType: domain.ResourceUser,
			ResourceID:   &u.ID,
			Description:  "Seeded administrator: " + u.Email,
		})
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *UserService) Get(ctx context.Context, actor domain.Identity, id uuid.UUID) (*domain.User, error) {
	ctx, span := otel.Tracer("user-service").Start(ctx, "UserService.Get")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", id.String()))

	var u *domain.User
	err := s.audit.Run(ctx, &actor, func(tx Repositories, rec *Recorder) error {
		var err error
		if u, err = tx.Users().GetByID(ctx, id); err != nil {
			return err
		}
		if err := s.authz.check(rec, actor, access.ActionRead, u, &id); err != nil {
			return err
		}
		return rec.Record(ctx, AuditEntry{
			Action:       domain.ActionRead,
			ResourceType: domain.ResourceUser,
			ResourceID:   &id,
			Description:  "Viewed user: " + u.Email,
		})
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *UserService) List(ctx context.Context, actor domain.Identity, q *domain.ListUsersQuery) (*domain.PagedUsers, error) {
	ctx, span := otel.Tracer("user-service").Start(ctx, "UserService.List")
	defer span.End()

	if q.Role != nil && !q.Role.IsValid() {
		return nil, invalid("role is invalid")
	}
	q.Offset, q.Limit = page(q.Offset, q.Limit)

	var out *domain.PagedUsers
	err := s.audit.Run(ctx, &actor, func(tx Repositories, rec *Recorder) error {
		own, err := s.authz.checkType(rec, actor, access.ActionRead, domain.ResourceUser)
		if err != nil {
			return err
		}
		q.Ownership = own
		if out, err = tx.Users().List(ctx, q); err != nil {
			return err
		}
		return rec.Record(ctx, AuditEntry{
			Action:       domain.ActionRead,
			ResourceType: domain.ResourceUser,
			Description:  fmt.Sprintf("Listed %d users", len(out.Users)),
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *UserService) Update(ctx context.Context, actor domain.Identity, id uuid.UUID, cmd *domain.UpdateUserCommand) (*domain.User, error) {
	ctx, span := otel.Tracer("user-service").Start(ctx, "UserService.Update")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", id.String()))

	if err := validateUpdateUser(cmd); err != nil {
		return nil, err
	}

	var u *domain.User
	err := s.audit.Run(ctx, &actor, func(tx Repositories, rec *Recorder) error {
		var err error
		if u, err = tx.Users().GetByID(ctx, id); err != nil {
			return err
		}
		if err := s.authz.check(rec, actor, access.ActionUpdate, u, &id); err != nil {
			return err
		}
		if cmd.IsActive != nil && actor.Role != domain.RoleAdmin {
			return invalid("is_active can only be changed by an administrator")
		}

		if cmd.Email != nil {
			email := domain.NormalizeEmail(*cmd.Email)
			if email != u.Email {
				if err := ensureUnique(ctx, tx.Users().ExistsByEmail, email, domain.ErrEmailTaken); err != nil {
					return err
				}
				u.Email = email
			}
		}
		if cmd.Username != nil {
			username := strings.TrimSpace(*cmd.Username)
			if username != u.Username {
				if err := ensureUnique(ctx, tx.Users().ExistsByUsername, username, domain.ErrUsernameTaken); err != nil {
					return err
				}
				u.Username = username
			}
		}
		if cmd.FullName != nil {
			u.FullName = strings.TrimSpace(*cmd.FullName)
		}
		if cmd.Phone != nil {
			u.Phone = strings.TrimSpace(*cmd.Phone)
		}
		if cmd.LicenseNumber != nil {
			u.LicenseNumber = strings.TrimSpace(*cmd.LicenseNumber)
		}
		if cmd.IsActive != nil {
			u.IsActive = *cmd.IsActive
		}

		if err := tx.Users().Update(ctx, u); err != nil {
			return err
		}
		return rec.Record(ctx, AuditEntry{
			Action:       domain.ActionUpdate,
			ResourceType: domain.ResourceUser,
			ResourceID:   &id,
			Description:  "Updated user: " + u.Email,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("user updated", zap.String("user_id", id.String()), zap.String("updated_by", actor.ID.String()))
	return u, nil
}

// Delete soft-deletes the account and, if present, its patient record with
// everything attached to it.
func (s *UserService) Delete(ctx context.Context, actor domain.Identity, id uuid.UUID) error {
	ctx, span := otel.Tracer("user-service").Start(ctx, "UserService.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", id.String()))

	err := s.audit.Run(ctx, &actor, func(tx Repositories, rec *Recorder) error {
		u, err := tx.Users().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.authz.check(rec, actor, access.ActionDelete, u, &id); err != nil {
			return err
		}
		if u.ID == actor.ID {
			return invalid("you cannot delete your own account")
		}

		p, err := tx.Patients().GetByUserID(ctx, id)
		switch {
		case err == nil:
			if err := deletePatientCascade(ctx, tx, p.ID); err != nil {
				return err
			}
		case !errors.Is(err, patient.ErrPatientNotFound):
			return err
		}

		if err := tx.Users().SoftDelete(ctx, id); err != nil {
			return err
		}
		return rec.Record(ctx, AuditEntry{
			Action:       domain.ActionDelete,
			ResourceType: domain.ResourceUser,
			ResourceID:   &id,
			Description:  "Deleted user: " + u.Email,
		})
	})
	if err != nil {
		return err
	}

	s.log.Info("user deleted", zap.String("user_id", id.String()), zap.String("deleted_by", actor.ID.String()))
	return nil
}

func (s *UserService) insert(ctx context.Context, tx Repositories, cmd *domain.CreateUserCommand) (*domain.User, error) {
	email := domain.NormalizeEmail(cmd.Email)
	username := strings.TrimSpace(cmd.Username)

	if err := ensureUnique(ctx, tx.Users().ExistsByEmail, email, domain.ErrEmailTaken); err != nil {
		return nil, err
	}
	if err := ensureUnique(ctx, tx.Users().ExistsByUsername, username, domain.ErrUsernameTaken); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cmd.Password), passwordCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	u := &domain.User{
		ID:                uuid.New(),
		Email:             email,
		Username:          username,
		FullName:          strings.TrimSpace(cmd.FullName),
		PasswordHash:      string(hash),
		Role:              cmd.Role,
		Phone:             strings.TrimSpace(cmd.Phone),
		LicenseNumber:     strings.TrimSpace(cmd.LicenseNumber),
		IsActive:          true,
		PasswordChangedAt: time.Now().UTC(),
	}
	if err := tx.Users().Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func ensureUnique(ctx context.Context, exists func(context.Context, string) (bool, error), value string, taken error) error {
	found, err := exists(ctx, value)
	if err != nil {
		return err
	}
	if found {
		return taken
	}
	return nil
}

// deletePatientCascade soft-deletes a patient record and its clinical records.
func deletePatientCascade(ctx context.Context, tx Repositories, patientID uuid.UUID) error {
	if err := tx.Prescriptions().SoftDeleteByPatient(ctx, patientID); err != nil {
		return err
	}
	if err := tx.Consultations().SoftDeleteByPatient(ctx, patientID); err != nil {
		return err
	}
	return tx.Patients().SoftDelete(ctx, patientID)
}

func validateCreateUser(cmd *domain.CreateUserCommand) error {
	var errs []string

	if _, err := mail.ParseAddress(strings.TrimSpace(cmd.Email)); err != nil {
		errs = append(errs, "email is invalid")
	}
	if n := len(strings.TrimSpace(cmd.Username)); n < 3 || n > 100 {
		errs = append(errs, "username must be between 3 and 100 characters")
	}
	if n := len(strings.TrimSpace(cmd.FullName)); n < 2 || n > 255 {
		errs = append(errs, "full_name must be between 2 and 255 characters")
	}
	if !cmd.Role.IsValid() {
		errs = append(errs, "role is invalid")
	}
	if err := validatePasswordStrength(cmd.Password); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

func validateUpdateUser(cmd *domain.UpdateUserCommand) error {
	var errs []string

	if cmd.Email != nil {
		if _, err := mail.ParseAddress(strings.TrimSpace(*cmd.Email)); err != nil {
			errs = append(errs, "email is invalid")
		}
	}
	if cmd.Username != nil {
		if n := len(strings.TrimSpace(*cmd.Username)); n < 3 || n > 100 {
			errs = append(errs, "username must be between 3 and 100 characters")
		}
	}
	if cmd.FullName != nil {
		if n := len(strings.TrimSpace(*cmd.FullName)); n < 2 || n > 255 {
			errs = append(errs, "full_name must be between 2 and 255 characters")
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

func validatePasswordStrength(password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	if len(password) > 72 {
		return errors.New("password must be at most 72 bytes")
	}
	return nil
}

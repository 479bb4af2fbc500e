package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/medcycle/pkg/auth"
	"github.com/dmehra2102/prod-golang-projects/medcycle/pkg/metrics"
	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const maxFailedAttempts = 5

const lockDuration = 15 * time.Minute

// TokenRevoker remembers revoked token ids until the tokens would have
// expired anyway.
type TokenRevoker interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type MFAEnrollment struct {
	Secret string `json:"secret"`
	URL    string `json:"otpauth_url"`
}

type AuthService struct {
	store      Store
	audit      *AuditService
	jwtManager *auth.JWTManager
	revoker    TokenRevoker
	mfaIssuer  string
	metrics    *metrics.Collector
	log        *zap.Logger
	now        func() time.Time
}

// NewAuthService builds the service. A nil revoker disables logout revocation.
func NewAuthService(store Store, audit *AuditService, jwtManager *auth.JWTManager, revoker TokenRevoker, mfaIssuer string, m *metrics.Collector, log *zap.Logger) *AuthService {
	return &AuthService{
		store:      store,
		audit:      audit,
		jwtManager: jwtManager,
		revoker:    revoker,
		mfaIssuer:  mfaIssuer,
		metrics:    m,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Login verifies credentials and issues a token pair. Failed attempts are
// audited and counted; after maxFailedAttempts the account locks for
// lockDuration. Accounts with MFA enabled also need a valid TOTP code.
func (s *AuthService) Login(ctx context.Context, email, password, code string) (*domain.TokenPair, error) {
	ctx, span := otel.Tracer("auth-service").Start(ctx, "AuthService.Login")
	defer span.End()

	email = domain.NormalizeEmail(email)

	var (
		pair    *domain.TokenPair
		failure error
	)
	err := s.audit.Run(ctx, nil, func(tx Repositories, rec *Recorder) error {
		pair, failure = nil, nil

		user, err := tx.Users().GetByEmail(ctx, email)
		if errors.Is(err, domain.ErrUserNotFound) {
			// Use bcrypt dummy hash to prevent timing-based user enumeration.
			_, _ = bcrypt.GenerateFromPassword([]byte(password), passwordCost)
			failure = ErrInvalidCredentials
			return rec.Record(ctx, AuditEntry{
				Action:       domain.ActionLogin,
				ResourceType: domain.ResourceUser,
				Description:  "Failed login: " + email,
				Status:       domain.AuditFailure,
				ErrorMessage: failure.Error(),
			})
		}
		if err != nil {
			return err
		}

		if err := s.verify(ctx, tx, user, password, code); err != nil {
			var rejected *loginRejection
			if !errors.As(err, &rejected) {
				return err
			}
			failure = rejected.cause
			return rec.Record(ctx, AuditEntry{
				UserID:       &user.ID,
				UserRole:     user.Role,
				Action:       domain.ActionLogin,
				ResourceType: domain.ResourceUser,
				ResourceID:   &user.ID,
				Description:  "Failed login: " + user.Email,
				Status:       domain.AuditFailure,
				ErrorMessage: failure.Error(),
			})
		}

		now := s.now()
		user.FailedLoginCount = 0
		user.LockedUntil = nil
		user.LastLoginAt = &now
		if err := tx.Users().Update(ctx, user); err != nil {
			return err
		}

		if pair, err = s.jwtManager.GenerateTokenPair(claimsFor(user)); err != nil {
			return fmt.Errorf("generating tokens: %w", err)
		}
		return rec.Record(ctx, AuditEntry{
			UserID:       &user.ID,
			UserRole:     user.Role,
			Action:       domain.ActionLogin,
			ResourceType: domain.ResourceUser,
			ResourceID:   &user.ID,
			Description:  "User logged in: " + user.Email,
		})
	})
	if err != nil {
		s.metrics.LoginAttemptsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if failure != nil {
		s.metrics.LoginAttemptsTotal.WithLabelValues("failure").Inc()
		s.log.Warn("failed login attempt",
			zap.String("ip", requestMetaFrom(ctx).IPAddress),
			zap.String("reason", failure.Error()),
		)
		return nil, failure
	}

	s.metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	s.log.Info("user logged in", zap.String("ip", requestMetaFrom(ctx).IPAddress))
	return pair, nil
}

// loginRejection is a refused login. It is audited and reported to the
// caller; any other error from verify aborts the transaction.
type loginRejection struct {
	cause error
}

func (e *loginRejection) Error() string { return e.cause.Error() }

func (e *loginRejection) Unwrap() error { return e.cause }

func reject(cause error) error {
	return &loginRejection{cause: cause}
}

func (s *AuthService) verify(ctx context.Context, tx Repositories, user *domain.User, password, code string) error {
	if !user.IsActive {
		return reject(ErrAccountInactive)
	}
	if user.IsLocked() {
		return reject(ErrAccountLocked)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		if err := s.registerFailure(ctx, tx, user); err != nil {
			return err
		}
		return reject(ErrInvalidCredentials)
	}

	if user.MFAEnabled {
		if code == "" {
			return reject(ErrMFARequired)
		}
		if !totp.Validate(code, user.MFASecret) {
			if err := s.registerFailure(ctx, tx, user); err != nil {
				return err
			}
			return reject(ErrInvalidMFACode)
		}
	}
	return nil
}

func (s *AuthService) registerFailure(ctx context.Context, tx Repositories, user *domain.User) error {
	user.FailedLoginCount++
	if user.FailedLoginCount >= maxFailedAttempts {
		until := s.now().Add(lockDuration)
		user.LockedUntil = &until
		user.FailedLoginCount = 0
		s.metrics.AccountLockoutsTotal.Inc()
		s.log.Warn("account locked after repeated failed logins", zap.String("user_id", user.ID.String()))
	}
	return tx.Users().Update(ctx, user)
}

// Refresh rotates a refresh token: the presented one is revoked and a new
// pair issued, provided the account is still active.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	ctx, span := otel.Tracer("auth-service").Start(ctx, "AuthService.Refresh")
	defer span.End()

	claims, err := s.jwtManager.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	if err := s.ensureNotRevoked(ctx, claims.TokenID); err != nil {
		return nil, err
	}

	user, err := s.loadUser(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUnauthenticated
	}

	if err := s.revoke(ctx, claims); err != nil {
		return nil, err
	}
	return s.jwtManager.GenerateTokenPair(claimsFor(user))
}

// Logout revokes the presented access token and, when given, the refresh token.
func (s *AuthService) Logout(ctx context.Context, actor domain.Identity, accessClaims *domain.Claims, refreshToken string) error {
	ctx, span := otel.Tracer("auth-service").Start(ctx, "AuthService.Logout")
	defer span.End()

	if err := s.revoke(ctx, accessClaims); err != nil {
		return err
	}
	if refreshToken != "" {
		if rc, err := s.jwtManager.ValidateRefreshToken(refreshToken); err == nil && rc.UserID == actor.ID {
			if err := s.revoke(ctx, rc); err != nil {
				return err
			}
		}
	}

	err := s.audit.Run(ctx, &actor, func(tx Repositories, rec *Recorder) error {
		user, err := tx.Users().GetByID(ctx, actor.ID)
		if err != nil {
			return err
		}
		return rec.Record(ctx, AuditEntry{
			Action:       domain.ActionLogout,
			ResourceType: domain.ResourceUser,
			ResourceID:   &user.ID,
			Description:  "User logged out: " + user.Email,
		})
	})
	if err != nil {
		return err
	}

	s.log.Info("user logged out", zap.String("user_id", actor.ID.String()))
	return nil
}

// ResolveIdentity turns a bearer access token into the identity behind it.
// The active flag is read from storage, not from the token.
func (s *AuthService) ResolveIdentity(ctx context.Context, token string) (domain.Identity, *domain.Claims, error) {
	claims, err := s.jwtManager.ValidateAccessToken(token)
	if err != nil {
		return domain.Identity{}, nil, ErrUnauthenticated
	}
	if err := s.ensureNotRevoked(ctx, claims.TokenID); err != nil {
		return domain.Identity{}, nil, err
	}

	user, err := s.loadUser(ctx, claims.UserID)
	if err != nil {
		return domain.Identity{}, nil, err
	}
	return user.Identity(), claims, nil
}

// ChangePassword updates the actor's password after verifying the current one.
func (s *AuthService) ChangePassword(ctx context.Context, actor domain.Identity, currentPassword, newPassword string) error {
	ctx, span := otel.Tracer("auth-service").Start(ctx, "AuthService.ChangePassword")
	defer span.End()

	if !actor.Active {
		return ErrAccountInactive
	}
	if err := validatePasswordStrength(newPassword); err != nil {
		return invalid(err.Error())
	}

	return s.audit.Run(ctx, &actor, func(tx Repositories, rec *Recorder) error {
		user, err := tx.Users().GetByID(ctx, actor.ID)
		if err != nil {
			return err
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
			return ErrInvalidCredentials
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), passwordCost)
		if err != nil {
			return fmt.Errorf("hashing password: %w", err)
		}
		user.PasswordHash = string(hash)
		user.PasswordChangedAt = s.now()
		if err := tx.Users().Update(ctx, user); err != nil {
			return err
		}
		return rec.Record(ctx, AuditEntry{
			Action:       domain.ActionUpdate,
			ResourceType: domain.ResourceUser,
			ResourceID:   &user.ID,
			Description:  "Changed password: " + user.Email,
		})
	})
}

// EnrollMFA generates a new TOTP secret for the actor. MFA stays disabled
// until ConfirmMFA sees a valid code for it.
func (s *AuthService) EnrollMFA(ctx context.Context, actor domain.Identity) (*MFAEnrollment, error) {
	ctx, span := otel.Tracer("auth-service").Start(ctx, "AuthService.EnrollMFA")
	defer span.End()

	if !actor.Active {
		return nil, ErrAccountInactive
	}

	var out *MFAEnrollment
	err := s.audit.Run(ctx, &actor, func(tx Repositories, rec *Recorder) error {
		user, err := tx.Users().GetByID(ctx, actor.ID)
		if err != nil {
			return err
		}
		key, err := totp.Generate(totp.GenerateOpts{Issuer: s.mfaIssuer, AccountName: user.Email})
		if err != nil {
			return fmt.Errorf("generating totp secret: %w", err)
		}

		user.MFASecret = key.Secret()
		user.MFAEnabled = false
		if err := tx.Users().Update(ctx, user); err != nil {
			return err
		}
		out = &MFAEnrollment{Secret: key.Secret(), URL: key.URL()}
		return rec.Record(ctx, AuditEntry{
			Action:       domain.ActionUpdate,
			ResourceType: domain.ResourceUser,
			ResourceID:   &user.ID,
			Description:  "Started MFA enrollment: " + user.Email,
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *AuthService) ConfirmMFA(ctx context.Context, actor domain.Identity, code string) error {
	ctx, span := otel.Tracer("auth-service").Start(ctx, "AuthService.ConfirmMFA")
	defer span.End()

	if !actor.Active {
		return ErrAccountInactive
	}

	return s.audit.Run(ctx, &actor, func(tx Repositories, rec *Recorder) error {
		user, err := tx.Users().GetByID(ctx, actor.ID)
		if err != nil {
			return err
		}
		if user.MFASecret == "" {
			return domain.ErrMFANotEnrolled
		}
		if !totp.Validate(code, user.MFASecret) {
			return ErrInvalidMFACode
		}

		user.MFAEnabled = true
		if err := tx.Users().Update(ctx, user); err != nil {
			return err
		}
		return rec.Record(ctx, AuditEntry{
			Action:       domain.ActionUpdate,
			ResourceType: domain.ResourceUser,
			ResourceID:   &user.ID,
			Description:  "Enabled MFA: " + user.Email,
		})
	})
}

func (s *AuthService) loadUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var user *domain.User
	err := s.store.WithinTx(ctx, func(tx Repositories) error {
		var err error
		user, err = tx.Users().GetByID(ctx, id)
		return err
	})
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, ErrUnauthenticated
	}
	return user, err
}

func (s *AuthService) ensureNotRevoked(ctx context.Context, tokenID string) error {
	if s.revoker == nil {
		return nil
	}
	revoked, err := s.revoker.IsRevoked(ctx, tokenID)
	if err != nil {
		return fmt.Errorf("checking token revocation: %w", err)
	}
	if revoked {
		return ErrUnauthenticated
	}
	return nil
}

func (s *AuthService) revoke(ctx context.Context, claims *domain.Claims) error {
	if s.revoker == nil || claims == nil || claims.TokenID == "" {
		return nil
	}
	if err := s.revoker.Revoke(ctx, claims.TokenID, claims.ExpiresAt); err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	return nil
}

func claimsFor(u *domain.User) *domain.Claims {
	return &domain.Claims{UserID: u.ID, Email: u.Email, Role: u.Role}
}

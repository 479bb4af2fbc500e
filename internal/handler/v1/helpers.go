package v1

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/access"
	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain/consultation"
	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain/prescription"
	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/handler/middleware"
	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type APIResponse[T any] struct {
	Data    T      `json:"data"`
	Message string `json:"message,omitempty"`
}

type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

type ValidationErrorResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields"`
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, APIResponse[any]{Data: data})
}

func respondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, APIResponse[any]{Data: data})
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, ErrorResponse{Error: message})
}

func respondServiceError(c *gin.Context, err error) {
	_ = c.Error(err)

	var validErr *service.ValidationError
	if errors.As(err, &validErr) {
		c.JSON(http.StatusBadRequest, ValidationErrorResponse{
			Error:  "validation failed",
			Fields: validErr.Fields,
		})
		return
	}

	switch {
	case errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrDoctorNotFound),
		errors.Is(err, patient.ErrPatientNotFound),
		errors.Is(err, consultation.ErrConsultationNotFound),
		errors.Is(err, prescription.ErrPrescriptionNotFound),
		errors.Is(err, prescription.ErrPharmacistNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})

	case errors.Is(err, domain.ErrEmailTaken),
		errors.Is(err, domain.ErrUsernameTaken),
		errors.Is(err, patient.ErrPatientAlreadyExists),
		errors.Is(err, prescription.ErrAlreadyDispensed):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})

	case errors.Is(err, domain.ErrInvalidRole),
		errors.Is(err, domain.ErrMFANotEnrolled),
		errors.Is(err, patient.ErrInvalidGender),
		errors.Is(err, patient.ErrInvalidBloodType),
		errors.Is(err, patient.ErrInvalidDateOfBirth),
		errors.Is(err, consultation.ErrInvalidStatus),
		errors.Is(err, consultation.ErrInvalidStatusTransition),
		errors.Is(err, prescription.ErrInvalidStatus),
		errors.Is(err, prescription.ErrInvalidStatusTransition),
		errors.Is(err, prescription.ErrInvalidRefills),
		errors.Is(err, prescription.ErrNotDispensable),
		errors.Is(err, prescription.ErrPrescriptionExpired),
		errors.Is(err, prescription.ErrConsultationMismatch):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})

	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Error: "access denied",
			Code:  denialCode(access.ReasonOf(err)),
		})

	case errors.Is(err, domain.ErrAdminSignup),
		errors.Is(err, service.ErrAccountInactive):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: err.Error()})

	case errors.Is(err, service.ErrMFARequired):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: err.Error(), Code: "MFA_REQUIRED"})

	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidMFACode):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})

	case errors.Is(err, service.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})

	case errors.Is(err, service.ErrAccountLocked):
		c.JSON(http.StatusTooManyRequests, ErrorResponse{
			Error: "account temporarily locked",
			Code:  "ACCOUNT_LOCKED",
		})

	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}

func denialCode(r access.Reason) string {
	switch r {
	case access.ReasonInactive:
		return "ACCOUNT_INACTIVE"
	case access.ReasonRole:
		return "ROLE_NOT_PERMITTED"
	case access.ReasonOwnership:
		return "NOT_OWNER"
	}
	return ""
}

func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request: " + err.Error()})
		return false
	}

	return true
}

func parseUUID(c *gin.Context, param string) (uuid.UUID, bool) {
	raw := c.Param(param)
	id, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid " + param + ": must be a valid UUID"})
		return uuid.Nil, false
	}
	return id, true
}

// parseQueryUUID returns nil when the parameter is absent.
func parseQueryUUID(c *gin.Context, key string) (*uuid.UUID, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid " + key + ": must be a valid UUID"})
		return nil, false
	}
	return &id, true
}

func parseQueryInt(c *gin.Context, key string, defaultVal int) int {
	if raw := c.Query(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return v
		}
	}
	return defaultVal
}

// actor returns the authenticated identity. Routes without Authenticate
// never call it.
func actor(c *gin.Context) domain.Identity {
	id, _ := middleware.Actor(c)
	return id
}

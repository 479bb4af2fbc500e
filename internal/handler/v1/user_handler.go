package v1

import (
	"net/http"

	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain"
	"github.com/gin-gonic/gin"
)

type updateUserRequest struct {
	Email         *string `json:"email"`
	Username      *string `json:"username"`
	FullName      *string `json:"full_name"`
	Phone         *string `json:"phone"`
	LicenseNumber *string `json:"license_number"`
	IsActive      *bool   `json:"is_active"`
}

// CreateUser lets an administrator add an account of any role.
func (h *Handler) CreateUser(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, &req) {
		return
	}

	u, err := h.users.Create(c.Request.Context(), actor(c), req.command())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, u)
}

func (h *Handler) GetUser(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	u, err := h.users.Get(c.Request.Context(), actor(c), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, u)
}

func (h *Handler) ListUsers(c *gin.Context) {
	q := &domain.ListUsersQuery{
		Offset: parseQueryInt(c, "offset", 0),
		Limit:  parseQueryInt(c, "limit", 0),
	}
	if raw := c.Query("role"); raw != "" {
		role := domain.Role(raw)
		if !role.IsValid() {
			respondError(c, http.StatusBadRequest, "invalid role")
			return
		}
		q.Role = &role
	}

	out, err := h.users.List(c.Request.Context(), actor(c), q)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, out)
}

func (h *Handler) UpdateUser(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req updateUserRequest
	if !bindJSON(c, &req) {
		return
	}

	u, err := h.users.Update(c.Request.Context(), actor(c), id, &domain.UpdateUserCommand{
		Email:         req.Email,
		Username:      req.Username,
		FullName:      req.FullName,
		Phone:         req.Phone,
		LicenseNumber: req.LicenseNumber,
		IsActive:      req.IsActive,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, u)
}

func (h *Handler) DeleteUser(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	if err := h.users.Delete(c.Request.Context(), actor(c), id); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

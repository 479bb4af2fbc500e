package v1

import (
	"net/http"

	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/handler/middleware"
	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	Email         string      `json:"email" binding:"required"`
	Username      string      `json:"username" binding:"required"`
	FullName      string      `json:"full_name" binding:"required"`
	Password      string      `json:"password" binding:"required"`
	Role          domain.Role `json:"role"`
	Phone         string      `json:"phone"`
	LicenseNumber string      `json:"license_number"`
}

func (r *registerRequest) command() *domain.CreateUserCommand {
	return &domain.CreateUserCommand{
		Email:         r.Email,
		Username:      r.Username,
		FullName:      r.FullName,
		Password:      r.Password,
		Role:          r.Role,
		Phone:         r.Phone,
		LicenseNumber: r.LicenseNumber,
	}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	OTPCode  string `json:"otp_code"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

type mfaConfirmRequest struct {
	Code string `json:"code" binding:"required"`
}

func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, &req) {
		return
	}

	u, err := h.users.Register(c.Request.Context(), req.command())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, u)
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}

	pair, err := h.auth.Login(c.Request.Context(), req.Email, req.Password, req.OTPCode)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, pair)
}

func (h *Handler) Refresh(c *gin.Context) {
	var req refreshRequest
	if !bindJSON(c, &req) {
		return
	}

	pair, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, pair)
}

func (h *Handler) Logout(c *gin.Context) {
	var req logoutRequest
	// The body is optional.
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	claims, ok := middleware.TokenClaims(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := h.auth.Logout(c.Request.Context(), actor(c), claims, req.RefreshToken); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Me(c *gin.Context) {
	id := actor(c)
	u, err := h.users.Get(c.Request.Context(), id, id.ID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, u)
}

func (h *Handler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.auth.ChangePassword(c.Request.Context(), actor(c), req.CurrentPassword, req.NewPassword); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) EnrollMFA(c *gin.Context) {
	enrollment, err := h.auth.EnrollMFA(c.Request.Context(), actor(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, enrollment)
}

func (h *Handler) ConfirmMFA(c *gin.Context) {
	var req mfaConfirmRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.auth.ConfirmMFA(c.Request.Context(), actor(c), req.Code); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

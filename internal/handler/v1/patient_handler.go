package v1

import (
	"net/http"
	"time"

	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain/patient"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type createPatientRequest struct {
	UserID            uuid.UUID                 `json:"user_id"`
	DateOfBirth       *time.Time                `json:"date_of_birth"`
	Gender            patient.Gender            `json:"gender"`
	BloodType         patient.BloodType         `json:"blood_type"`
	Address           patient.Address           `json:"address"`
	EmergencyContact  *patient.EmergencyContact `json:"emergency_contact"`
	Insurance         *patient.Insurance        `json:"insurance"`
	Allergies         []string                  `json:"allergies"`
	ChronicConditions []string                  `json:"chronic_conditions"`
	FamilyHistory     string                    `json:"family_history"`
}

type updatePatientRequest struct {
	DateOfBirth       *time.Time                `json:"date_of_birth"`
	Gender            *patient.Gender           `json:"gender"`
	BloodType         *patient.BloodType        `json:"blood_type"`
	Address           *patient.Address          `json:"address"`
	EmergencyContact  *patient.EmergencyContact `json:"emergency_contact"`
	Insurance         *patient.Insurance        `json:"insurance"`
	Allergies         *[]string                 `json:"allergies"`
	ChronicConditions *[]string                 `json:"chronic_conditions"`
	FamilyHistory     *string                   `json:"family_history"`
}

func (h *Handler) CreatePatient(c *gin.Context) {
	var req createPatientRequest
	if !bindJSON(c, &req) {
		return
	}

	p, err := h.patients.CreatePatient(c.Request.Context(), actor(c), &patient.CreatePatientCommand{
		UserID:            req.UserID,
		DateOfBirth:       req.DateOfBirth,
		Gender:            req.Gender,
		BloodType:         req.BloodType,
		Address:           req.Address,
		EmergencyContact:  req.EmergencyContact,
		Insurance:         req.Insurance,
		Allergies:         req.Allergies,
		ChronicConditions: req.ChronicConditions,
		FamilyHistory:     req.FamilyHistory,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, p)
}

func (h *Handler) GetPatient(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	p, err := h.patients.GetPatient(c.Request.Context(), actor(c), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, p)
}

func (h *Handler) ListPatients(c *gin.Context) {
	out, err := h.patients.ListPatients(c.Request.Context(), actor(c), &patient.ListPatientsQuery{
		Offset: parseQueryInt(c, "offset", 0),
		Limit:  parseQueryInt(c, "limit", 0),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, out)
}

func (h *Handler) UpdatePatient(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req updatePatientRequest
	if !bindJSON(c, &req) {
		return
	}

	p, err := h.patients.UpdatePatient(c.Request.Context(), actor(c), id, &patient.UpdatePatientCommand{
		DateOfBirth:       req.DateOfBirth,
		Gender:            req.Gender,
		BloodType:         req.BloodType,
		Address:           req.Address,
		EmergencyContact:  req.EmergencyContact,
		Insurance:         req.Insurance,
		Allergies:         req.Allergies,
		ChronicConditions: req.ChronicConditions,
		FamilyHistory:     req.FamilyHistory,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, p)
}

func (h *Handler) DeletePatient(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	if err := h.patients.DeletePatient(c.Request.Context(), actor(c), id); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

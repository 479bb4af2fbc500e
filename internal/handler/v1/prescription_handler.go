package v1

import (
	"net/http"
	"time"

	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain/prescription"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type createPrescriptionRequest struct {
	PatientID         uuid.UUID                          `json:"patient_id"`
	DoctorID          uuid.UUID                          `json:"doctor_id"`
	ConsultationID    *uuid.UUID                         `json:"consultation_id"`
	MedicationName    string                             `json:"medication_name"`
	Dosage            string                             `json:"dosage"`
	Frequency         string                             `json:"frequency"`
	Duration          string                             `json:"duration"`
	Route             prescription.RouteOfAdministration `json:"route"`
	Quantity          *int                               `json:"quantity"`
	Refills           int                                `json:"refills"`
	Notes             string                             `json:"notes"`
	Contraindications string                             `json:"contraindications"`
	SideEffects       string                             `json:"side_effects"`
	ExpiryDate        *time.Time                         `json:"expiry_date"`
}

type updatePrescriptionRequest struct {
	Status     *prescription.Status `json:"status"`
	Notes      *string              `json:"notes"`
	Refills    *int                 `json:"refills"`
	ExpiryDate *time.Time           `json:"expiry_date"`
}

type dispenseRequest struct {
	DispensedBy *uuid.UUID `json:"dispensed_by"`
}

func (h *Handler) CreatePrescription(c *gin.Context) {
	var req createPrescriptionRequest
	if !bindJSON(c, &req) {
		return
	}

	out, err := h.prescriptions.CreatePrescription(c.Request.Context(), actor(c), &prescription.CreatePrescriptionCommand{
		PatientID:         req.PatientID,
		DoctorID:          req.DoctorID,
		ConsultationID:    req.ConsultationID,
		MedicationName:    req.MedicationName,
		Dosage:            req.Dosage,
		Frequency:         req.Frequency,
		Duration:          req.Duration,
		Route:             req.Route,
		Quantity:          req.Quantity,
		Refills:           req.Refills,
		Notes:             req.Notes,
		Contraindications: req.Contraindications,
		SideEffects:       req.SideEffects,
		ExpiryDate:        req.ExpiryDate,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, out)
}

func (h *Handler) GetPrescription(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	out, err := h.prescriptions.GetPrescription(c.Request.Context(), actor(c), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, out)
}

func (h *Handler) ListPrescriptions(c *gin.Context) {
	patientID, ok := parseQueryUUID(c, "patient_id")
	if !ok {
		return
	}
	q := &prescription.ListPrescriptionsQuery{
		PatientID: patientID,
		Offset:    parseQueryInt(c, "offset", 0),
		Limit:     parseQueryInt(c, "limit", 0),
	}
	if raw := c.Query("status"); raw != "" {
		status := prescription.Status(raw)
		q.Status = &status
	}

	out, err := h.prescriptions.ListPrescriptions(c.Request.Context(), actor(c), q)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, out)
}

func (h *Handler) UpdatePrescription(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req updatePrescriptionRequest
	if !bindJSON(c, &req) {
		return
	}

	out, err := h.prescriptions.UpdatePrescription(c.Request.Context(), actor(c), id, &prescription.UpdatePrescriptionCommand{
		Status:     req.Status,
		Notes:      req.Notes,
		Refills:    req.Refills,
		ExpiryDate: req.ExpiryDate,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, out)
}

func (h *Handler) DispensePrescription(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req dispenseRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	out, err := h.prescriptions.DispensePrescription(c.Request.Context(), actor(c), id, &prescription.DispenseCommand{
		DispensedBy: req.DispensedBy,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, out)
}

func (h *Handler) DeletePrescription(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	if err := h.prescriptions.DeletePrescription(c.Request.Context(), actor(c), id); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

package v1

import (
	"net/http"
	"time"

	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain/consultation"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type createConsultationRequest struct {
	PatientID uuid.UUID `json:"patient_id"`
	// Defaults to the acting doctor.
	DoctorID            uuid.UUID                `json:"doctor_id"`
	ConsultationDate    time.Time                `json:"consultation_date"`
	Status              consultation.Status      `json:"status"`
	Reason              string                   `json:"reason"`
	ChiefComplaint      string                   `json:"chief_complaint"`
	Diagnosis           string                   `json:"diagnosis"`
	ClinicalNotes       string                   `json:"clinical_notes"`
	VitalSigns          *consultation.VitalSigns `json:"vital_signs"`
	PhysicalExamination string                   `json:"physical_examination"`
	TreatmentPlan       string                   `json:"treatment_plan"`
	FollowUpDate        *time.Time               `json:"follow_up_date"`
}

type updateConsultationRequest struct {
	Status              *consultation.Status     `json:"status"`
	ChiefComplaint      *string                  `json:"chief_complaint"`
	Diagnosis           *string                  `json:"diagnosis"`
	ClinicalNotes       *string                  `json:"clinical_notes"`
	VitalSigns          *consultation.VitalSigns `json:"vital_signs"`
	PhysicalExamination *string                  `json:"physical_examination"`
	TreatmentPlan       *string                  `json:"treatment_plan"`
	FollowUpDate        *time.Time               `json:"follow_up_date"`
}

func (h *Handler) CreateConsultation(c *gin.Context) {
	var req createConsultationRequest
	if !bindJSON(c, &req) {
		return
	}

	out, err := h.consultations.CreateConsultation(c.Request.Context(), actor(c), &consultation.CreateConsultationCommand{
		PatientID:           req.PatientID,
		DoctorID:            req.DoctorID,
		ConsultationDate:    req.ConsultationDate,
		Status:              req.Status,
		Reason:              req.Reason,
		ChiefComplaint:      req.ChiefComplaint,
		Diagnosis:           req.Diagnosis,
		ClinicalNotes:       req.ClinicalNotes,
		VitalSigns:          req.VitalSigns,
		PhysicalExamination: req.PhysicalExamination,
		TreatmentPlan:       req.TreatmentPlan,
		FollowUpDate:        req.FollowUpDate,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, out)
}

func (h *Handler) GetConsultation(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	out, err := h.consultations.GetConsultation(c.Request.Context(), actor(c), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, out)
}

func (h *Handler) ListConsultations(c *gin.Context) {
	patientID, ok := parseQueryUUID(c, "patient_id")
	if !ok {
		return
	}
	q := &consultation.ListConsultationsQuery{
		PatientID: patientID,
		Offset:    parseQueryInt(c, "offset", 0),
		Limit:     parseQueryInt(c, "limit", 0),
	}
	if raw := c.Query("status"); raw != "" {
		status := consultation.Status(raw)
		q.Status = &status
	}

	out, err := h.consultations.ListConsultations(c.Request.Context(), actor(c), q)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, out)
}

func (h *Handler) UpdateConsultation(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req updateConsultationRequest
	if !bindJSON(c, &req) {
		return
	}

	out, err := h.consultations.UpdateConsultation(c.Request.Context(), actor(c), id, &consultation.UpdateConsultationCommand{
		Status:              req.Status,
		ChiefComplaint:      req.ChiefComplaint,
		Diagnosis:           req.Diagnosis,
		ClinicalNotes:       req.ClinicalNotes,
		VitalSigns:          req.VitalSigns,
		PhysicalExamination: req.PhysicalExamination,
		TreatmentPlan:       req.TreatmentPlan,
		FollowUpDate:        req.FollowUpDate,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, out)
}

func (h *Handler) DeleteConsultation(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	if err := h.consultations.DeleteConsultation(c.Request.Context(), actor(c), id); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

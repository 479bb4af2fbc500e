package v1

import (
	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain"
	"github.com/gin-gonic/gin"
)

// ListAuditLogs is read-only; the audit trail has no write endpoints.
func (h *Handler) ListAuditLogs(c *gin.Context) {
	userID, ok := parseQueryUUID(c, "user_id")
	if !ok {
		return
	}
	resourceID, ok := parseQueryUUID(c, "resource_id")
	if !ok {
		return
	}

	f := domain.AuditFilter{UserID: userID, ResourceID: resourceID}
	if raw := c.Query("resource_type"); raw != "" {
		rt := domain.ResourceType(raw)
		f.ResourceType = &rt
	}

	entries, err := h.audit.Query(c.Request.Context(), actor(c), f,
		parseQueryInt(c, "offset", 0),
		parseQueryInt(c, "limit", 0),
	)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, entries)
}

package audit

import (
	"net/http"
	"strings"

	"github.com/noah-isme/backend-kopi/internal/common"
)

// Handler exposes the audit trail to administrators.
type Handler struct {
	Svc *Service
}

// List returns audit entries, optionally filtered by resource_type and resource_id.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil || h.Svc.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "AUDIT_NOT_CONFIGURED", "audit store not configured", nil)
		return
	}
	q := r.URL.Query()
	limit := common.AtoiDefault(q.Get("limit"), 50)
	offset := common.AtoiDefault(q.Get("offset"), 0)
	filter := Filter{
		ResourceType: strings.TrimSpace(q.Get("resource_type")),
		ResourceID:   strings.TrimSpace(q.Get("resource_id")),
	}

	entries, err := h.Svc.List(r.Context(), filter, limit, offset)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "AUDIT_QUERY_FAILED", "unable to fetch audit logs", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": entries})
}

package analytics

import (
	"errors"
	"net/http"
	"time"

	"github.com/noah-isme/backend-kopi/internal/common"
)

// Handler exposes sales report endpoints for the manager panel.
type Handler struct {
	Svc *Service
}

// Sales returns daily sales for the requested range.
func (h *Handler) Sales(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "ANALYTICS_NOT_CONFIGURED", "analytics service not configured", nil)
		return
	}
	from, to, ok := h.window(w, r)
	if !ok {
		return
	}
	rows, err := h.Svc.SalesRange(r.Context(), from, to, r.URL.Query().Get("channel"))
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

// TopProducts returns the best selling menu items within the range.
func (h *Handler) TopProducts(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "ANALYTICS_NOT_CONFIGURED", "analytics service not configured", nil)
		return
	}
	from, to, ok := h.window(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	rows, err := h.Svc.TopProducts(r.Context(), from, to, common.AtoiDefault(q.Get("limit"), 10), common.AtoiDefault(q.Get("offset"), 0))
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

// Overview aggregates key sales metrics for dashboards.
func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "ANALYTICS_NOT_CONFIGURED", "analytics service not configured", nil)
		return
	}
	from, to, ok := h.window(w, r)
	if !ok {
		return
	}
	out, err := h.Svc.Overview(r.Context(), from, to, r.URL.Query().Get("channel"))
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

// window reads from/to (RFC3339) or falls back to the last `days` days.
func (h *Handler) window(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	query := r.URL.Query()
	fromStr, toStr := query.Get("from"), query.Get("to")
	if fromStr == "" || toStr == "" {
		from, to := h.Svc.Range(common.AtoiDefault(query.Get("days"), 0))
		return from, to, true
	}
	from, err := time.Parse(time.RFC3339, fromStr)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid from date", nil)
		return time.Time{}, time.Time{}, false
	}
	to, err := time.Parse(time.RFC3339, toStr)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid to date", nil)
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidRange), errors.Is(err, ErrUnknownChannel):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	default:
		common.WriteError(w, err)
	}
}

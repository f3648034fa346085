package order

import (
	"net/http"

	"github.com/noah-isme/backend-kopi/internal/common"
)

// AdminHandler provides order management endpoints for shop staff.
type AdminHandler struct {
	Svc *Service
}

type patchStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// List handles GET /api/v1/admin/orders with optional status and channel filters.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 20)
	f := ListFilter{Channel: r.URL.Query().Get("channel")}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := ParseStatus(raw)
		if err != nil {
			common.WriteError(w, MapError(err))
			return
		}
		f.Status = status
	}
	orders, total, err := h.Svc.List(r.Context(), f, page, perPage)
	if err != nil {
		common.WriteError(w, MapError(err))
		return
	}
	writeList(w, orders, total, page, perPage)
}

// Get handles GET /api/v1/admin/orders/{id}.
func (h *AdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	o, err := h.Svc.Get(r.Context(), id, nil)
	if err != nil {
		common.WriteError(w, MapError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": o})
}

// PatchStatus updates the order status with state-machine validation.
func (h *AdminHandler) PatchStatus(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
		return
	}
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	var req patchStatusRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	target, err := ParseStatus(req.Status)
	if err != nil {
		common.WriteError(w, MapError(err))
		return
	}
	o, err := h.Svc.UpdateStatus(r.Context(), id, target)
	if err != nil {
		common.WriteError(w, MapError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": o})
}

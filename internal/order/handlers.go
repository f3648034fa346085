package order

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-kopi/internal/common"
)

// Handler exposes order tracking endpoints for signed-in customers.
type Handler struct {
	Svc *Service
}

func currentUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := common.UserID(r.Context())
	if !ok || userID == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return uuid.Nil, false
	}
	uID, err := uuid.Parse(userID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid user id", nil)
		return uuid.Nil, false
	}
	return uID, true
}

func orderIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return uuid.Nil, false
	}
	return id, true
}

// List handles GET /api/v1/orders.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
		return
	}
	uID, ok := currentUser(w, r)
	if !ok {
		return
	}
	page, perPage := common.ParsePagination(r, 20)
	orders, total, err := h.Svc.List(r.Context(), ListFilter{UserID: &uID}, page, perPage)
	if err != nil {
		common.WriteError(w, MapError(err))
		return
	}
	writeList(w, orders, total, page, perPage)
}

// Get handles GET /api/v1/orders/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	uID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	o, err := h.Svc.Get(r.Context(), id, &uID)
	if err != nil {
		common.WriteError(w, MapError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": o})
}

// Cancel handles POST /api/v1/orders/{id}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	uID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	o, err := h.Svc.Cancel(r.Context(), id, uID)
	if err != nil {
		common.WriteError(w, MapError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"id": o.ID, "status": o.Status}})
}

func writeList(w http.ResponseWriter, orders []Order, total int64, page, perPage int) {
	if orders == nil {
		orders = []Order{}
	}
	common.JSONPage(w, orders, page, perPage, total)
}

// MapError translates order errors into API errors.
func MapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return common.NotFound("order not found")
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrNotCancelable):
		return common.NewAppError("INVALID_STATE", err.Error(), http.StatusConflict, err)
	case errors.Is(err, ErrUnknownStatus):
		return common.BadRequest("BAD_REQUEST", "unsupported status")
	default:
		return err
	}
}

package coupon

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-kopi/internal/common"
)

// Handler exposes coupon lookup and promotion management endpoints.
type Handler struct {
	Svc *Service
}

type couponView struct {
	Code        string `json:"code"`
	PromoteType string `json:"promoteType"`
	Discount    int64  `json:"discount"`
	Description string `json:"description,omitempty"`
}

// Get resolves a redeemable coupon for the storefront and point of sale.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "coupon service not configured", nil)
		return
	}
	_, rule, err := h.Svc.Resolve(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		common.WriteError(w, MapError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": couponView{
		Code:        rule.Code,
		PromoteType: rule.PromoteType,
		Discount:    rule.Discount,
		Description: rule.Description,
	}})
}

// List returns coupons for the promotion panel.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 20)
	rules, total, err := h.Svc.List(r.Context(), page, perPage)
	if err != nil {
		common.WriteError(w, MapError(err))
		return
	}
	common.JSONPage(w, rules, page, perPage, total)
}

// Create inserts a new coupon.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var payload Input
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.WriteError(w, err)
		return
	}
	rule, err := h.Svc.Create(r.Context(), payload)
	if err != nil {
		common.WriteError(w, MapError(err))
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": rule})
}

// Update mutates an existing coupon identified by code.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var payload Input
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.WriteError(w, err)
		return
	}
	rule, err := h.Svc.Update(r.Context(), chi.URLParam(r, "code"), payload)
	if err != nil {
		common.WriteError(w, MapError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rule})
}

// Deactivate switches a coupon off.
func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.Deactivate(r.Context(), chi.URLParam(r, "code")); err != nil {
		common.WriteError(w, MapError(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MapError translates coupon errors into API errors.
func MapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return common.NewAppError("COUPON_NOT_FOUND", "coupon not found", http.StatusNotFound, err)
	case errors.Is(err, ErrInactive), errors.Is(err, ErrNotStarted), errors.Is(err, ErrExpired):
		return common.Unprocessable("COUPON_INVALID", err.Error(), err)
	case errors.Is(err, ErrDuplicateCode):
		return common.NewAppError("CONFLICT", "coupon code already exists", http.StatusConflict, err)
	case errors.Is(err, ErrInvalidInput):
		return common.BadRequest("BAD_REQUEST", err.Error())
	default:
		return err
	}
}

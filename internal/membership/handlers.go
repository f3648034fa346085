package membership

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-kopi/internal/common"
)

// Handler exposes customer lookup and loyalty management endpoints.
type Handler struct {
	Svc *Service
}

type customerView struct {
	Customer
	RankLabel string `json:"rankLabel"`
}

func view(c Customer) customerView {
	return customerView{Customer: c, RankLabel: c.RankValue().Label()}
}

type registerRequest struct {
	Phone string `json:"phone" validate:"required,min=9,max=20"`
	Name  string `json:"name" validate:"max=120"`
}

type rankRequest struct {
	Rank string `json:"rank" validate:"required"`
}

// Lookup finds a customer by phone for the point of sale.
func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) {
	c, err := h.Svc.Get(r.Context(), r.URL.Query().Get("phone"))
	if err != nil {
		common.WriteError(w, mapError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view(c)})
}

// List returns customers for the admin panel.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 20)
	customers, total, err := h.Svc.List(r.Context(), page, perPage)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	out := make([]customerView, 0, len(customers))
	for _, c := range customers {
		out = append(out, view(c))
	}
	common.JSONPage(w, out, page, perPage, total)
}

// Register creates a loyalty customer.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	c, err := h.Svc.Register(r.Context(), req.Phone, req.Name)
	if err != nil {
		common.WriteError(w, mapError(err))
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": view(c)})
}

// SetRank overrides the rank of a customer.
func (h *Handler) SetRank(w http.ResponseWriter, r *http.Request) {
	var req rankRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	c, err := h.Svc.SetRank(r.Context(), chi.URLParam(r, "phone"), req.Rank)
	if err != nil {
		common.WriteError(w, mapError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view(c)})
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return common.NotFound("customer not found")
	case errors.Is(err, ErrInvalidPhone):
		return common.BadRequest("INVALID_PHONE", "invalid phone number")
	default:
		return err
	}
}

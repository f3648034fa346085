package checkout

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-kopi/internal/common"
	"github.com/noah-isme/backend-kopi/internal/coupon"
	"github.com/noah-isme/backend-kopi/internal/menu"
	"github.com/noah-isme/backend-kopi/internal/order"
)

// Handler exposes storefront checkout and point-of-sale endpoints.
type Handler struct {
	Svc *Service
}

// Quote handles POST /api/v1/checkout/quote.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	h.quote(w, r, order.ChannelOnline)
}

// POSQuote handles POST /api/v1/pos/quote.
func (h *Handler) POSQuote(w http.ResponseWriter, r *http.Request) {
	h.quote(w, r, order.ChannelPOS)
}

// Checkout handles POST /api/v1/checkout for signed-in customers.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	h.place(w, r, order.ChannelOnline)
}

// POSOrder handles POST /api/v1/pos/orders for counter staff.
func (h *Handler) POSOrder(w http.ResponseWriter, r *http.Request) {
	h.place(w, r, order.ChannelPOS)
}

func (h *Handler) quote(w http.ResponseWriter, r *http.Request, channel string) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	var payload QuoteInput
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.WriteError(w, err)
		return
	}
	q, err := h.Svc.Quote(r.Context(), channel, payload)
	if err != nil {
		common.WriteError(w, MapError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": q})
}

func (h *Handler) place(w http.ResponseWriter, r *http.Request, channel string) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	userID, ok := common.UserID(r.Context())
	if !ok || userID == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	uID, err := uuid.Parse(userID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid user id", nil)
		return
	}
	var payload OrderInput
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.WriteError(w, err)
		return
	}
	o, err := h.Svc.PlaceOrder(r.Context(), channel, payload, Actor{UserID: &uID})
	if err != nil {
		common.WriteError(w, MapError(err))
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": o})
}

// MapError translates checkout errors into API errors.
func MapError(err error) error {
	switch {
	case errors.Is(err, coupon.ErrNotFound), errors.Is(err, coupon.ErrInactive),
		errors.Is(err, coupon.ErrNotStarted), errors.Is(err, coupon.ErrExpired):
		return common.Unprocessable("COUPON_INVALID", "coupon is not valid: "+err.Error(), err)
	case errors.Is(err, menu.ErrUnavailable):
		return common.Unprocessable("PRODUCT_UNAVAILABLE", err.Error(), err)
	case errors.Is(err, ErrInvalidChannel), errors.Is(err, ErrInvalidItem), errors.Is(err, ErrAddressRequired):
		return common.BadRequest("BAD_REQUEST", err.Error())
	default:
		return err
	}
}

package common

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// ErrorBody is the payload under "error" in every failed response.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// JSONPage writes a listing as {"data": items, "pagination": ...} and mirrors
// the total in X-Total-Count for the admin tables.
func JSONPage(w http.ResponseWriter, items any, page, perPage int, total int64) {
	w.Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
	JSON(w, http.StatusOK, map[string]any{
		"data":       items,
		"pagination": NewPagination(page, perPage, total),
	})
}

// JSONError writes {"error": {code, message, details}}.
func JSONError(w http.ResponseWriter, status int, code, message string, details any) {
	JSON(w, status, map[string]any{
		"error": ErrorBody{Code: code, Message: message, Details: details},
	})
}

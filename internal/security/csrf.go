package security

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/noah-isme/backend-kopi/internal/common"
)

// CSRF applies double-submit protection to unsafe requests that authenticate
// with the session cookie. Bearer and cookieless requests carry no ambient
// credentials and pass through.
type CSRF struct {
	Header string
	// SessionCookie is the access token cookie. Empty checks every unsafe request.
	SessionCookie string
}

// Middleware enforces that the CSRF header matches the CSRF cookie.
func (c CSRF) Middleware(next http.Handler) http.Handler {
	headerName := strings.TrimSpace(c.Header)
	if headerName == "" {
		headerName = "X-CSRF-Token"
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
			next.ServeHTTP(w, r)
			return
		}
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(r.Header.Get("Authorization"))), "bearer ") {
			next.ServeHTTP(w, r)
			return
		}
		if c.SessionCookie != "" {
			if _, err := r.Cookie(c.SessionCookie); err != nil {
				next.ServeHTTP(w, r)
				return
			}
		}

		token := strings.TrimSpace(r.Header.Get(headerName))
		cookie, err := r.Cookie(headerName)
		switch {
		case token == "":
			common.JSONError(w, http.StatusForbidden, "CSRF_FAILED", "missing csrf token", nil)
			return
		case err != nil || strings.TrimSpace(cookie.Value) == "":
			common.JSONError(w, http.StatusForbidden, "CSRF_FAILED", "missing csrf cookie", nil)
			return
		case subtle.ConstantTimeCompare([]byte(token), []byte(cookie.Value)) != 1:
			common.JSONError(w, http.StatusForbidden, "CSRF_FAILED", "invalid csrf token", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

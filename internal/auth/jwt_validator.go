package auth

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// TokenValidator checks the issuer, audience, lifetime and algorithm of access
// tokens and extracts the kopi claims.
type TokenValidator struct {
	Issuer    string
	Audience  string
	ClockSkew time.Duration
	Algorithm jwa.SignatureAlgorithm
}

// Claims validates tok and returns its subject and roles. Unknown role names
// are dropped.
func (v TokenValidator) Claims(tok jwt.Token, algorithm jwa.SignatureAlgorithm, now time.Time) (Claims, error) {
	if err := v.Validate(tok, algorithm, now); err != nil {
		return Claims{}, err
	}
	return Claims{UserID: tok.Subject(), Roles: rolesFromToken(tok)}, nil
}

// Validate runs the registered-claim checks only.
func (v TokenValidator) Validate(tok jwt.Token, algorithm jwa.SignatureAlgorithm, now time.Time) error {
	if tok == nil {
		return errors.New("auth: token is nil")
	}
	switch {
	case algorithm == "":
		return errors.New("auth: token missing algorithm")
	case v.Algorithm != "" && algorithm != v.Algorithm:
		return fmt.Errorf("auth: unexpected token algorithm %s", algorithm)
	}

	opts := []jwt.ValidateOption{
		jwt.WithClock(jwt.ClockFunc(func() time.Time { return now })),
		jwt.WithRequiredClaim(jwt.ExpirationKey),
	}
	if v.ClockSkew > 0 {
		opts = append(opts, jwt.WithAcceptableSkew(v.ClockSkew))
	}
	if v.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.Issuer))
	}
	if v.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.Audience))
	}
	if err := jwt.Validate(tok, opts...); err != nil {
		return err
	}
	if tok.Subject() == "" {
		return errors.New("auth: token missing subject")
	}
	return nil
}

func rolesFromToken(tok jwt.Token) []string {
	raw, ok := tok.Get(rolesClaim)
	if !ok {
		return nil
	}
	var names []string
	switch v := raw.(type) {
	case []string:
		names = v
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				names = append(names, s)
			}
		}
	}
	out := make([]string, 0, len(names))
	for _, name := range names {
		if slices.Contains(knownRoles, name) && !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	return out
}

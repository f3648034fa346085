package auth

import (
	"slices"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

func TestServiceParseAccessTokenSuccess(t *testing.T) {
	svc, _ := newTestService(t)
	fixed := time.Now()
	svc.WithNow(func() time.Time { return fixed })

	token, _, err := svc.IssueAccessToken("user-id", []string{RoleStaff, RoleManager})
	if err != nil {
		t.Fatalf("sign access token: %v", err)
	}
	claims, err := svc.ParseAccessToken(token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.UserID != "user-id" {
		t.Fatalf("unexpected subject: %s", claims.UserID)
	}
	if !slices.Equal(claims.Roles, []string{RoleStaff, RoleManager}) {
		t.Fatalf("unexpected roles: %v", claims.Roles)
	}
}

func TestServiceParseAccessTokenExpired(t *testing.T) {
	svc, _ := newTestService(t)
	issued := time.Now()
	svc.WithNow(func() time.Time { return issued })
	token, _, err := svc.IssueAccessToken("user-id", nil)
	if err != nil {
		t.Fatalf("sign access token: %v", err)
	}
	svc.WithNow(func() time.Time { return issued.Add(2 * time.Minute) })
	if _, err := svc.ParseAccessToken(token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestServiceParseAccessTokenRejectsAlgorithmMismatch(t *testing.T) {
	svc, _ := newTestService(t)
	fixed := time.Now()
	svc.WithNow(func() time.Time { return fixed })

	built, err := jwt.NewBuilder().
		Subject("user-id").
		Issuer(svc.issuer).
		Audience([]string{svc.audience}).
		IssuedAt(fixed).
		NotBefore(fixed.Add(-svc.clockSkew)).
		Expiration(fixed.Add(svc.accessTTL)).
		Build()
	if err != nil {
		t.Fatalf("build token: %v", err)
	}
	signed, err := jwt.Sign(built, jwt.WithKey(jwa.HS384, svc.secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := svc.ParseAccessToken(string(signed)); err == nil {
		t.Fatal("expected algorithm mismatch error")
	}
}

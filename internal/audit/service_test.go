package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-kopi/internal/common"
	"github.com/noah-isme/backend-kopi/internal/obs"
)

type stubStore struct {
	mu      sync.Mutex
	entries []Entry

	filter        Filter
	limit, offset int
}

func (s *stubStore) InsertAuditLog(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func (s *stubStore) ListAuditLogs(_ context.Context, f Filter, limit, offset int) ([]Entry, error) {
	s.filter, s.limit, s.offset = f, limit, offset
	return []Entry{{Action: "coupon.create", Method: http.MethodPost}}, nil
}

func (s *stubStore) last(t *testing.T) Entry {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.entries)
	return s.entries[len(s.entries)-1]
}

func TestServiceRecord(t *testing.T) {
	store := &stubStore{}
	svc := Service{Store: store, Enabled: true, SamplingRate: 1}
	userID := uuid.NewString()

	req := httptest.NewRequest(http.MethodPost, "https://api.test/api/v1/admin/coupons?status=active", nil)
	req.Header.Set("User-Agent", "tester")
	req.Header.Set("X-Request-Id", "req-123")
	req.RemoteAddr = "10.0.0.2:54321"
	ctx := common.WithUserID(req.Context(), userID)
	ctx = obs.WithRoutePattern(ctx, "/api/v1/admin/coupons")
	req = req.WithContext(ctx)

	actor := Actor{Kind: ActorKindUser, UserID: &userID, Roles: []string{"manager"}}
	require.NoError(t, svc.Record(req.Context(), actor, "", "", "", req, http.StatusCreated, nil))

	got := store.last(t)
	require.Equal(t, string(ActorKindUser), got.ActorKind)
	require.NotNil(t, got.ActorUserID)
	require.Equal(t, userID, got.ActorUserID.String())
	require.Equal(t, []string{"manager"}, got.ActorRoles)
	require.Equal(t, "POST /api/v1/admin/coupons", got.Action)
	require.Equal(t, "admin.coupons", got.ResourceType)
	require.Equal(t, http.StatusCreated, got.Status)
	require.NotNil(t, got.IP)
	require.Equal(t, "10.0.0.2", *got.IP)
	require.NotNil(t, got.RequestID)
	require.Equal(t, "req-123", *got.RequestID)

	var meta map[string]string
	require.NoError(t, json.Unmarshal(got.Metadata, &meta))
	require.Equal(t, "status=active", meta["query"])
}

func TestServiceRecordDisabled(t *testing.T) {
	store := &stubStore{}
	svc := Service{Store: store, Enabled: false}
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	require.NoError(t, svc.Record(req.Context(), Actor{}, "", "", "", req, http.StatusOK, nil))
	require.Empty(t, store.entries)
}

func TestServiceRecordAnonymousWithInvalidUserID(t *testing.T) {
	store := &stubStore{}
	svc := Service{Store: store, Enabled: true}
	bad := "not-a-uuid"
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/admin/coupons/CAFE10", nil)
	require.NoError(t, svc.Record(req.Context(), Actor{Kind: "robot", UserID: &bad}, "", "", "", req, 0, nil))

	got := store.last(t)
	require.Equal(t, string(ActorKindAnonymous), got.ActorKind)
	require.Nil(t, got.ActorUserID)
	require.Equal(t, http.StatusOK, got.Status)
	require.Nil(t, got.Metadata)
}

func TestBuildResourceDropsParams(t *testing.T) {
	require.Equal(t, "admin.customers.rank", buildResource("", "/api/v1/admin/customers/{phone}/rank"))
	require.Equal(t, "coupon", buildResource(" coupon ", "/api/v1/admin/coupons"))
	require.Equal(t, "unknown", buildResource("", ""))
}

func TestHTTPRecorderMiddleware(t *testing.T) {
	store := &stubStore{}
	rec := HTTPRecorder{Service: &Service{Store: store, Enabled: true}}
	userID := uuid.NewString()

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := common.WithUserID(r.Context(), userID)
			ctx = common.WithRoles(ctx, []string{"manager"})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.With(rec.Middleware(HTTPConfig{
		Action:          "coupon.update",
		ResourceType:    "coupon",
		ResourceIDParam: "code",
		MetadataFunc: func(_ *http.Request, status int) map[string]any {
			return map[string]any{"status": status}
		},
	})).Put("/api/v1/admin/coupons/{code}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.With(rec.Middleware(HTTPConfig{Action: "coupon.deactivate", SkipFailures: true})).
		Delete("/api/v1/admin/coupons/{code}", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/api/v1/admin/coupons/CAFE10", strings.NewReader(`{}`)))
	require.Equal(t, http.StatusOK, rr.Code)

	got := store.last(t)
	require.Equal(t, "coupon.update", got.Action)
	require.Equal(t, "coupon", got.ResourceType)
	require.NotNil(t, got.ResourceID)
	require.Equal(t, "CAFE10", *got.ResourceID)
	require.NotNil(t, got.Route)
	require.Equal(t, "/api/v1/admin/coupons/{code}", *got.Route)
	require.NotNil(t, got.RequestID)
	require.Equal(t, []string{"manager"}, got.ActorRoles)
	require.JSONEq(t, `{"status":200}`, string(got.Metadata))

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/v1/admin/coupons/NOPE", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Len(t, store.entries, 1)
}

func TestHandlerList(t *testing.T) {
	store := &stubStore{}
	h := Handler{Svc: &Service{Store: store}}

	rr := httptest.NewRecorder()
	h.List(rr, httptest.NewRequest(http.MethodGet, "/admin/audit-logs?limit=25&offset=10&resource_type=coupon&resource_id=CAFE10", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 25, store.limit)
	require.Equal(t, 10, store.offset)
	require.Equal(t, Filter{ResourceType: "coupon", ResourceID: "CAFE10"}, store.filter)

	var body struct {
		Data []Entry `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)

	rr = httptest.NewRecorder()
	h.List(rr, httptest.NewRequest(http.MethodGet, "/admin/audit-logs?limit=5000", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 50, store.limit)
}

package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type fakeQueries struct {
	mu        sync.Mutex
	usersByID map[uuid.UUID]UserRecord
}

func newFakeQueries() *fakeQueries {
	return &fakeQueries{usersByID: make(map[uuid.UUID]UserRecord)}
}

func (f *fakeQueries) CreateUser(_ context.Context, u UserRecord) (UserRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.usersByID {
		if strings.EqualFold(existing.Email, u.Email) {
			return UserRecord{}, ErrEmailTaken
		}
	}
	now := time.Now()
	u.CreatedAt, u.UpdatedAt = now, now
	f.usersByID[u.ID] = u
	return u, nil
}

func (f *fakeQueries) GetUserByEmail(_ context.Context, email string) (UserRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.usersByID {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return UserRecord{}, ErrUserNotFound
}

func (f *fakeQueries) GetUserByID(_ context.Context, id uuid.UUID) (UserRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.usersByID[id]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return u, nil
}

func (f *fakeQueries) SetUserRoles(_ context.Context, id uuid.UUID, roles []string) (UserRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.usersByID[id]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	u.Roles = roles
	f.usersByID[id] = u
	return u, nil
}

func newTestService(t interface{ Fatalf(string, ...any) }) (*Service, *fakeQueries) {
	queries := newFakeQueries()
	svc, err := NewService(Config{
		Queries:        queries,
		Secret:         "super-secret-key",
		AccessTokenTTL: time.Minute,
		Issuer:         "backend-kopi",
		Audience:       "kopi-web",
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, queries
}

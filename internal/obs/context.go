package obs

import (
	"context"
	"sync"
)

type routePatternKey struct{}

type requestFactsKey struct{}

// requestFacts carries values learned deeper in the handler chain back out to
// the request logger.
type requestFacts struct {
	mu     sync.Mutex
	userID string
	roles  []string
}

// WithRoutePattern stores the matched router pattern on the context.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, routePatternKey{}, pattern)
}

// RoutePatternFromContext extracts the route pattern from context if present.
func RoutePatternFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(routePatternKey{}).(string); ok {
		return v
	}
	return ""
}

func withRequestFacts(ctx context.Context) (context.Context, *requestFacts) {
	facts := &requestFacts{}
	return context.WithValue(ctx, requestFactsKey{}, facts), facts
}

// AnnotateUser records the authenticated caller for the request log line. It
// is a no-op outside RequestLogger.
func AnnotateUser(ctx context.Context, userID string, roles []string) {
	if ctx == nil {
		return
	}
	facts, ok := ctx.Value(requestFactsKey{}).(*requestFacts)
	if !ok {
		return
	}
	facts.mu.Lock()
	facts.userID = userID
	facts.roles = append([]string(nil), roles...)
	facts.mu.Unlock()
}

func (f *requestFacts) snapshot() (string, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.userID, f.roles
}

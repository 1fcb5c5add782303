package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/boardsync/internal/auth"
	"github.com/gosuda/boardsync/internal/server/middleware"
)

const testJWTSecret = "test-jwt-secret-for-middleware-tests"

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// contextHandler captures context values set by middleware so tests can
// assert that the correct user and role were injected.
type contextHandler struct {
	userID string
	role   string
	called bool
}

func (h *contextHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.called = true
	h.userID, _ = middleware.UserIDFromContext(r.Context())
	h.role, _ = middleware.RoleFromContext(r.Context())
	w.WriteHeader(http.StatusOK)
}

// setUser injects a user ID into the request context.
func setUser(r *http.Request, userID string) *http.Request {
	ctx := context.WithValue(r.Context(), middleware.ContextKeyUserID, userID)
	return r.WithContext(ctx)
}

func issue(t *testing.T, secret, userID, role string, ttl time.Duration) string {
	t.Helper()
	tok, err := auth.IssueToken(secret, userID, role, ttl)
	require.NoError(t, err)
	return tok
}

// ===========================================================================
// 1. Context helpers
// ===========================================================================

func TestUserIDFromContext(t *testing.T) {
	t.Parallel()

	t.Run("present", func(t *testing.T) {
		t.Parallel()

		ctx := context.WithValue(context.Background(), middleware.ContextKeyUserID, "user-1")
		got, ok := middleware.UserIDFromContext(ctx)

		require.True(t, ok)
		assert.Equal(t, "user-1", got)
	})

	t.Run("absent", func(t *testing.T) {
		t.Parallel()

		got, ok := middleware.UserIDFromContext(context.Background())

		assert.False(t, ok)
		assert.Empty(t, got)
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()

		ctx := context.WithValue(context.Background(), middleware.ContextKeyUserID, "")
		_, ok := middleware.UserIDFromContext(ctx)

		assert.False(t, ok)
	})

	t.Run("wrong type", func(t *testing.T) {
		t.Parallel()

		ctx := context.WithValue(context.Background(), middleware.ContextKeyUserID, 42)
		_, ok := middleware.UserIDFromContext(ctx)

		assert.False(t, ok)
	})
}

func TestRoleFromContext(t *testing.T) {
	t.Parallel()

	ctx := context.WithValue(context.Background(), middleware.ContextKeyUserRole, auth.RoleViewer)
	got, ok := middleware.RoleFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, auth.RoleViewer, got)

	_, ok = middleware.RoleFromContext(context.Background())
	assert.False(t, ok)
}

// ===========================================================================
// 2. RateLimit middleware
// ===========================================================================

func TestRateLimit_NoUserInContext_PassesThrough(t *testing.T) {
	t.Parallel()

	handler := middleware.RateLimit(t.Context(), 0.001, 1)(okHandler)

	for range 3 {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimit_BurstExceeded_Returns429(t *testing.T) {
	t.Parallel()

	// Very low rate (effectively zero refill during the test) with burst of 2.
	handler := middleware.RateLimit(t.Context(), 0.001, 2)(okHandler)

	// First two requests consume the burst.
	for i := range 2 {
		req := setUser(httptest.NewRequest(http.MethodGet, "/", http.NoBody), "user-1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equalf(t, http.StatusOK, rec.Code, "request %d should pass", i+1)
	}

	// Third request exceeds burst.
	req := setUser(httptest.NewRequest(http.MethodGet, "/", http.NoBody), "user-1")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "rate limit exceeded")
}

func TestRateLimit_IndependentPerUser(t *testing.T) {
	t.Parallel()

	handler := middleware.RateLimit(t.Context(), 0.001, 1)(okHandler)

	// Exhaust user A's burst.
	recA := httptest.NewRecorder()
	handler.ServeHTTP(recA, setUser(httptest.NewRequest(http.MethodGet, "/", http.NoBody), "user-a"))
	require.Equal(t, http.StatusOK, recA.Code)

	recA2 := httptest.NewRecorder()
	handler.ServeHTTP(recA2, setUser(httptest.NewRequest(http.MethodGet, "/", http.NoBody), "user-a"))
	assert.Equal(t, http.StatusTooManyRequests, recA2.Code)

	// User B should still be allowed.
	recB := httptest.NewRecorder()
	handler.ServeHTTP(recB, setUser(httptest.NewRequest(http.MethodGet, "/", http.NoBody), "user-b"))
	assert.Equal(t, http.StatusOK, recB.Code)
}

func TestRateLimitByIP(t *testing.T) {
	t.Parallel()

	handler := middleware.RateLimitByIP(t.Context(), 0.001, 1)(okHandler)

	req := func(addr string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		r.RemoteAddr = addr
		return r
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req("10.0.0.1"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req("10.0.0.2"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

// ===========================================================================
// 3. Auth middleware
// ===========================================================================

func TestAuth_ValidToken_PopulatesContext(t *testing.T) {
	t.Parallel()

	tok := issue(t, testJWTSecret, "user-42", auth.RoleCollaborator, time.Hour)

	h := &contextHandler{}
	handler := middleware.Auth(testJWTSecret)(h)

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, h.called)
	assert.Equal(t, "user-42", h.userID)
	assert.Equal(t, auth.RoleCollaborator, h.role)
}

func TestAuth_QueryToken(t *testing.T) {
	t.Parallel()

	tok := issue(t, testJWTSecret, "user-42", auth.RoleViewer, time.Hour)

	h := &contextHandler{}
	handler := middleware.Auth(testJWTSecret)(h)

	req := httptest.NewRequest(http.MethodGet, "/ws/boards/b1?access_token="+tok, http.NoBody)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-42", h.userID)
}

func TestAuth_Rejections(t *testing.T) {
	t.Parallel()

	valid := issue(t, testJWTSecret, "user-1", auth.RoleOwner, time.Hour)
	expired := issue(t, testJWTSecret, "user-1", auth.RoleOwner, -time.Minute)
	wrongSecret := issue(t, "some-other-secret-entirely-different", "user-1", auth.RoleOwner, time.Hour)

	tests := []struct {
		name   string
		header string
	}{
		{name: "no credentials", header: ""},
		{name: "garbage token", header: "Bearer not.a.jwt"},
		{name: "expired", header: "Bearer " + expired},
		{name: "wrong secret", header: "Bearer " + wrongSecret},
		{name: "basic scheme", header: "Basic " + valid},
		{name: "bare token", header: valid},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h := &contextHandler{}
			handler := middleware.Auth(testJWTSecret)(h)

			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.False(t, h.called)
		})
	}
}

func TestAuth_BearerCaseInsensitive(t *testing.T) {
	t.Parallel()

	tok := issue(t, testJWTSecret, "user-1", auth.RoleOwner, time.Hour)

	for _, scheme := range []string{"Bearer ", "bearer ", "BEARER "} {
		h := &contextHandler{}
		req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		req.Header.Set("Authorization", scheme+tok)
		rec := httptest.NewRecorder()

		middleware.Auth(testJWTSecret)(h).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code, scheme)
	}
}

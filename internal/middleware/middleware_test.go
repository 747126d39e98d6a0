package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bookstore-be/internal/auth"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func token(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestAuthMiddleware(t *testing.T) {
	mw := AuthMiddleware(auth.NewVerifier(secret))

	t.Run("Missing Token", func(t *testing.T) {
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, ok := auth.FromContext(r.Context())
			assert.False(t, ok, "context should not carry an identity")
			w.WriteHeader(http.StatusOK)
		})

		w := httptest.NewRecorder()
		mw(next).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Invalid Token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer invalid-token")
		w := httptest.NewRecorder()

		mw(http.NotFoundHandler()).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Valid Token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token(t, jwt.MapClaims{
			"user_id": 1,
			"role":    "customer",
			"exp":     time.Now().Add(time.Hour).Unix(),
		}))
		w := httptest.NewRecorder()

		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := auth.FromContext(r.Context())
			assert.True(t, ok)
			assert.Equal(t, uint(1), id.UserID)
			w.WriteHeader(http.StatusOK)
		})
		mw(next).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Expired Token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token(t, jwt.MapClaims{
			"user_id": 1,
			"exp":     time.Now().Add(-time.Hour).Unix(),
		}))
		w := httptest.NewRecorder()

		mw(http.NotFoundHandler()).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Malformed Header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Basic user:pass")
		w := httptest.NewRecorder()

		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, ok := auth.FromContext(r.Context())
			assert.False(t, ok)
			w.WriteHeader(http.StatusOK)
		})
		mw(next).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRequireAuth(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	w := httptest.NewRecorder()
	RequireAuth(ok).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/checkout/cod", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/checkout/cod", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UserID: 1, Role: auth.RoleCustomer}))
	w = httptest.NewRecorder()
	RequireAuth(ok).ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireCapability(t *testing.T) {
	h := RequireCapability(auth.NewRoleAuthorizer(), auth.CapOrdersDecide)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }),
	)

	tests := []struct {
		name string
		id   *auth.Identity
		want int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"customer", &auth.Identity{UserID: 1, Role: auth.RoleCustomer}, http.StatusForbidden},
		{"admin", &auth.Identity{UserID: 2, Role: auth.RoleAdmin}, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPatch, "/admin/orders/1/decision", nil)
			if tt.id != nil {
				req = req.WithContext(auth.WithIdentity(req.Context(), *tt.id))
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestRateLimiter(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	t.Run("Strict tier on checkout", func(t *testing.T) {
		h := NewRateLimiter("").Middleware(ok)

		codes := make([]int, 0, burstStrict+1)
		for i := 0; i < burstStrict+1; i++ {
			req := httptest.NewRequest(http.MethodPost, "/checkout/cod", nil)
			req.RemoteAddr = "10.0.0.1:1234"
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			codes = append(codes, w.Code)
		}

		assert.Equal(t, http.StatusOK, codes[0])
		assert.Equal(t, http.StatusTooManyRequests, codes[burstStrict])
	})

	t.Run("Buckets are per caller", func(t *testing.T) {
		h := NewRateLimiter("").Middleware(ok)

		for i := 0; i < burstStrict; i++ {
			req := httptest.NewRequest(http.MethodPost, "/checkout/cod", nil)
			req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UserID: 1}))
			h.ServeHTTP(httptest.NewRecorder(), req)
		}

		req := httptest.NewRequest(http.MethodPost, "/checkout/cod", nil)
		req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UserID: 2}))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Internal key", func(t *testing.T) {
		l := NewRateLimiter("svc-key")
		req := httptest.NewRequest(http.MethodPost, "/webhook/payment", nil)
		req.Header.Set("X-Service-Auth", "svc-key")

		_, burst, tier := l.resolveTier(req)
		assert.Equal(t, "internal", tier)
		assert.Equal(t, burstInternal, burst)
	})

	t.Run("General tier", func(t *testing.T) {
		_, _, tier := NewRateLimiter("").resolveTier(httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, "general", tier)
	})

	t.Run("Cleanup drops idle buckets", func(t *testing.T) {
		l := NewRateLimiter("")
		l.get("ip:1:general", limitGeneral, burstGeneral)

		l.now = func() time.Time { return time.Now().Add(visitorTTL + time.Second) }
		l.cleanup()

		assert.Empty(t, l.visitors)
	})
}

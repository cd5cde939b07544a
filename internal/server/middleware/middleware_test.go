package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cachemem "github.com/alanyoungcy/collectibles/internal/cache/memory"
	"github.com/alanyoungcy/collectibles/internal/crypto"
)

func echoActor() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorID(r.Context())
		w.Write([]byte(actor))
	})
}

func TestIdentityUnsigned(t *testing.T) {
	h := Identity(nil, nil, slog.New(slog.DiscardHandler))(echoActor())

	req := httptest.NewRequest(http.MethodGet, "/api/me/dashboard", nil)
	req.Header.Set(HeaderActorID, " buyer-1 ")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "buyer-1", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestIdentitySigned(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	signer := crypto.NewActorSigner("gateway-secret", time.Minute)
	h := Identity(signer, func() time.Time { return now }, slog.New(slog.DiscardHandler))(echoActor())

	t.Run("valid", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/products/p1/holds", nil)
		for k, v := range signer.Headers("buyer-1", now) {
			req.Header.Set(k, v)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "buyer-1", rec.Body.String())
	})

	t.Run("forged actor", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/products/p1/holds", nil)
		for k, v := range signer.Headers("buyer-1", now) {
			req.Header.Set(k, v)
		}
		req.Header.Set(HeaderActorID, "seller-1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("stale", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/products/p1/holds", nil)
		for k, v := range signer.Headers("buyer-1", now.Add(-time.Hour)) {
			req.Header.Set(k, v)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "stale")
	})
}

func TestAuth(t *testing.T) {
	h := Auth("k3y")(echoActor())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.Header.Set("Authorization", "Bearer k3y")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitKeysByActor(t *testing.T) {
	limiter := cachemem.NewRateLimiter()
	h := Identity(nil, nil, slog.New(slog.DiscardHandler))(
		RateLimit(limiter, 2, time.Minute, slog.New(slog.DiscardHandler))(echoActor()),
	)

	post := func(actor string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/products/p1/bids", nil)
		req.Header.Set(HeaderActorID, actor)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, post("a"))
	assert.Equal(t, http.StatusOK, post("a"))
	assert.Equal(t, http.StatusTooManyRequests, post("a"))
	assert.Equal(t, http.StatusOK, post("b"), "limits are per actor")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.Header.Set(HeaderActorID, "a")
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, "reads are not limited")
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://shop.example"})(echoActor())

	req := httptest.NewRequest(http.MethodOptions, "/api/products", nil)
	req.Header.Set("Origin", "https://shop.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://shop.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

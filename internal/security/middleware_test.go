package security

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestParseCIDRAllowlist(t *testing.T) {
	nets, err := ParseCIDRAllowlist([]string{"10.0.0.0/8", " ", "192.168.1.0/24"})
	require.NoError(t, err)
	assert.Len(t, nets, 2)

	_, err = ParseCIDRAllowlist([]string{"not-a-cidr"})
	assert.Error(t, err)
}

func TestIPAllowlist(t *testing.T) {
	nets, err := ParseCIDRAllowlist([]string{"10.0.0.0/8"})
	require.NoError(t, err)
	handler := IPAllowlist(nets)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.2.3:40000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "172.16.0.9:40000"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestIPAllowlistEmptyAdmitsEveryone(t *testing.T) {
	handler := IPAllowlist(nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:40000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTokenBucketExhaustsCapacity(t *testing.T) {
	mr := miniredis.RunT(t)
	bucket := &RedisTokenBucket{
		Redis:      redis.NewClient(&redis.Options{Addr: mr.Addr()}),
		Prefix:     "rl",
		Capacity:   2,
		RefillRate: 0.001,
	}
	ctx := context.Background()

	allowed, _, err := bucket.Allow(ctx, "ip:10.0.0.1")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, _, err = bucket.Allow(ctx, "ip:10.0.0.1")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, _, err = bucket.Allow(ctx, "ip:10.0.0.1")
	require.NoError(t, err)
	assert.False(t, allowed)

	// A different key draws from its own bucket.
	allowed, _, err = bucket.Allow(ctx, "ip:10.0.0.2")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestTokenBucketDisabledWithoutRedis(t *testing.T) {
	bucket := &RedisTokenBucket{}
	allowed, _, err := bucket.Allow(context.Background(), "ip:10.0.0.1")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRateLimitMiddlewareEmptyKeyPassesThrough(t *testing.T) {
	bucket := &RedisTokenBucket{Capacity: 1, RefillRate: 1}
	handler := RateLimitMiddleware(bucket, func(*http.Request) string { return "" })(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBodySizeLimit(t *testing.T) {
	var readErr error
	handler := BodySizeLimit(16)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 64)
		_, readErr = r.Body.Read(buf)
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("a", 64))))
	var maxErr *http.MaxBytesError
	assert.ErrorAs(t, readErr, &maxErr)
}

func TestJSONSchemaValidator(t *testing.T) {
	v, err := NewJSONSchemaValidator(`{
	  "type": "object",
	  "required": ["name"],
	  "properties": {"name": {"type": "string", "minLength": 1}}
	}`)
	require.NoError(t, err)
	handler := v.Middleware(okHandler())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"jose"}`))
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":""}`))
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`not json`))
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

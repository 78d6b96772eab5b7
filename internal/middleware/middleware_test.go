package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/meeting-room-bot/internal/config"
	"github.com/iliyamo/meeting-room-bot/internal/ratelimit"
	"github.com/iliyamo/meeting-room-bot/internal/utils"
)

const secret = "test-secret"

func ok(c echo.Context) error { return c.JSON(http.StatusOK, echo.Map{"ok": true}) }

func serve(e *echo.Echo, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuthAndRequireAdmin(t *testing.T) {
	e := echo.New()
	e.GET("/admin", ok, JWTAuth(secret), RequireAdmin(99))

	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/admin", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/admin", "garbage").Code)

	wrongKey, err := utils.NewAccessToken("other", 99, RoleAdmin, 5)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/admin", wrongKey.Token).Code)

	expired, err := utils.NewAccessToken(secret, 99, RoleAdmin, -5)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/admin", expired.Token).Code)

	stranger, err := utils.NewAccessToken(secret, 42, RoleAdmin, 5)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, serve(e, http.MethodGet, "/admin", stranger.Token).Code)

	wrongRole, err := utils.NewAccessToken(secret, 99, "user", 5)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, serve(e, http.MethodGet, "/admin", wrongRole.Token).Code)

	admin, err := utils.NewAccessToken(secret, 99, RoleAdmin, 5)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/admin", admin.Token).Code)
}

func anyArgs(_, _ []interface{}) error { return nil }

func limiterConfig() config.RateLimitConfig {
	return config.RateLimitConfig{Enabled: true, Capacity: 20, RefillTokens: 1, RefillInterval: 3 * time.Second, TTL: time.Minute, Prefix: "rl"}
}

func TestRateLimit(t *testing.T) {
	rdb, m := redismock.NewClientMock()
	e := echo.New()
	e.GET("/v1/schedule", ok, RateLimit(ratelimit.New(limiterConfig(), rdb), nil))

	m.CustomMatch(anyArgs).ExpectEvalSha("", nil).SetVal([]interface{}{int64(1), int64(19), int64(0)})
	rec := serve(e, http.MethodGet, "/v1/schedule", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "20", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "19", rec.Header().Get("X-RateLimit-Remaining"))

	m.CustomMatch(anyArgs).ExpectEvalSha("", nil).SetVal([]interface{}{int64(0), int64(0), int64(1500)})
	rec = serve(e, http.MethodGet, "/v1/schedule", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))

	m.CustomMatch(anyArgs).ExpectEvalSha("", nil).SetErr(errors.New("connection refused"))
	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/v1/schedule", "").Code)

	disabled := echo.New()
	disabled.GET("/x", ok, RateLimit(nil, nil))
	assert.Equal(t, http.StatusOK, serve(disabled, http.MethodGet, "/x", "").Code)
}

func TestRedisCache(t *testing.T) {
	cfg := config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}, TTL: 30 * time.Second, Prefix: "cache", MaxBodyBytes: 1 << 20}
	rdb, m := redismock.NewClientMock()

	calls := 0
	e := echo.New()
	e.GET("/v1/admin/stats", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"users": []string{}})
	}, NewRedisCache(cfg, rdb))

	m.CustomMatch(anyArgs).ExpectGet("").RedisNil()
	m.CustomMatch(anyArgs).ExpectSet("", "", 30*time.Second).SetVal("OK")
	rec := serve(e, http.MethodGet, "/v1/admin/stats", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, 1, calls)

	payload, err := encodePayload(http.StatusOK, http.Header{"Content-Type": {"application/json"}}, []byte(`{"users":["cached"]}`))
	require.NoError(t, err)
	m.CustomMatch(anyArgs).ExpectGet("").SetVal(string(payload))
	rec = serve(e, http.MethodGet, "/v1/admin/stats", "")
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"users":["cached"]}`, rec.Body.String())
	assert.Equal(t, 1, calls)
	assert.NoError(t, m.ExpectationsWereMet())
}

func TestPayloadRejectsTruncatedData(t *testing.T) {
	_, _, _, ok := decodePayload([]byte{0, 0, 0, 200, 0, 0, 1, 0})
	assert.False(t, ok)
}

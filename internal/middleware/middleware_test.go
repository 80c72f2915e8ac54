package middleware

import (
	"context"
	"crypto/sha1"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/match-ticket-reservation/internal/config"
	"github.com/iliyamo/match-ticket-reservation/internal/model"
	"github.com/iliyamo/match-ticket-reservation/internal/utils"
)

const secret = "test-secret"

func identityHandler(c echo.Context) error {
	who, ok := Identity(c)
	if !ok {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, who)
}

func serve(e *echo.Echo, method, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuthAndRequireRole(t *testing.T) {
	e := echo.New()
	e.GET("/me", identityHandler, JWTAuth(secret))
	e.GET("/admin", identityHandler, JWTAuth(secret), RequireRole(model.RoleAdmin))

	userTok, err := utils.NewAccessToken(secret, 7, model.RoleUser, 5)
	require.NoError(t, err)
	adminTok, err := utils.NewAccessToken(secret, 1, model.RoleAdmin, 5)
	require.NoError(t, err)
	forged, err := utils.NewAccessToken("other-secret", 1, model.RoleAdmin, 5)
	require.NoError(t, err)
	expired, err := utils.NewAccessToken(secret, 7, model.RoleUser, -1)
	require.NoError(t, err)

	t.Run("valid token exposes identity", func(t *testing.T) {
		rec := serve(e, http.MethodGet, "/me", userTok.Token)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"user_id":7,"role":"USER"}`, rec.Body.String())
	})

	t.Run("missing bearer", func(t *testing.T) {
		rec := serve(e, http.MethodGet, "/me", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong signature", func(t *testing.T) {
		rec := serve(e, http.MethodGet, "/me", forged.Token)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("expired", func(t *testing.T) {
		rec := serve(e, http.MethodGet, "/me", expired.Token)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("user on admin route", func(t *testing.T) {
		rec := serve(e, http.MethodGet, "/admin", userTok.Token)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("admin on admin route", func(t *testing.T) {
		rec := serve(e, http.MethodGet, "/admin", adminTok.Token)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestJWTAuthRejectsNonNumericSubject(t *testing.T) {
	claims := jwt.MapClaims{"sub": "alice", "role": "USER", "exp": time.Now().Add(time.Minute).Unix()}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)

	e := echo.New()
	e.GET("/me", identityHandler, JWTAuth(secret))
	rec := serve(e, http.MethodGet, "/me", raw)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequestIDAndLogger(t *testing.T) {
	logger, hook := test.NewNullLogger()
	e := echo.New()
	e.Use(RequestID(), Logger(logger))
	e.GET("/ok", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/boom", func(c echo.Context) error { return errors.New("boom") })

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(HeaderRequestID))
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
	assert.Equal(t, "abc-123", hook.LastEntry().Data["request_id"])

	rec = serve(e, http.MethodGet, "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, 500, hook.LastEntry().Data["status"])
}

func TestCacheInvalidator(t *testing.T) {
	cfg := config.CacheConfig{Enabled: true, Prefix: "cache"}
	logger, hook := test.NewNullLogger()

	t.Run("deletes every page", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		mock.ExpectScan(0, "cache:*", 100).SetVal([]string{"cache:a", "cache:b"}, 9)
		mock.ExpectDel("cache:a", "cache:b").SetVal(2)
		mock.ExpectScan(9, "cache:*", 100).SetVal([]string{"cache:c"}, 0)
		mock.ExpectDel("cache:c").SetVal(1)

		NewCacheInvalidator(cfg, rdb, logger).Invalidate(context.Background())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("scan error is logged", func(t *testing.T) {
		hook.Reset()
		rdb, mock := redismock.NewClientMock()
		mock.ExpectScan(0, "cache:*", 100).SetErr(errors.New("connection reset"))

		NewCacheInvalidator(cfg, rdb, logger).Invalidate(context.Background())
		assert.NoError(t, mock.ExpectationsWereMet())
		require.NotNil(t, hook.LastEntry())
		assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	})

	t.Run("disabled cache yields nil invalidator", func(t *testing.T) {
		ci := NewCacheInvalidator(config.CacheConfig{}, nil, logger)
		assert.Nil(t, ci)
		assert.NotPanics(t, func() { ci.Invalidate(context.Background()) })
	})
}

func TestRedisCacheServesHit(t *testing.T) {
	cfg := config.CacheConfig{
		Enabled:     true,
		Methods:     map[string]bool{http.MethodGet: true},
		TTL:         time.Minute,
		KeyStrategy: "route",
		Prefix:      "cache",
	}
	sum := sha1.Sum([]byte("route:/v1/matches"))
	key := fmt.Sprintf("cache:%x", sum[:])

	hdr := http.Header{"Content-Type": []string{"application/json"}}
	payload, err := encodePayload(http.StatusOK, hdr, []byte(`[{"id":1}]`))
	require.NoError(t, err)

	rdb, mock := redismock.NewClientMock()
	mock.ExpectGet(key).SetVal(string(payload))

	e := echo.New()
	called := false
	e.GET("/v1/matches", func(c echo.Context) error {
		called = true
		return c.JSON(http.StatusOK, []int{})
	}, NewRedisCache(cfg, rdb))

	rec := serve(e, http.MethodGet, "/v1/matches", "")
	assert.False(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.Equal(t, `[{"id":1}]`, rec.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPayloadCodec(t *testing.T) {
	_, _, _, ok := decodePayload([]byte{0, 1})
	assert.False(t, ok)

	bs, err := encodePayload(http.StatusOK, http.Header{"A": {"b"}}, []byte("body"))
	require.NoError(t, err)
	status, hdr, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "b", hdr.Get("A"))
	assert.Equal(t, "body", string(body))
}

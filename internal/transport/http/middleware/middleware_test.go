package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"resume-agent/internal/ratelimit"
)

func newRouter(mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/guarded", mw, func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})
	return r
}

func TestRateLimitRejectsOverBudget(t *testing.T) {
	r := newRouter(RateLimit(ratelimit.NewLimiter(2)))

	do := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/guarded", nil)
		req.RemoteAddr = "203.0.113.5:1000"
		r.ServeHTTP(w, req)
		return w
	}

	require.Equal(t, 200, do().Code)
	require.Equal(t, 200, do().Code)

	w := do()
	require.Equal(t, 429, w.Code)

	var body struct {
		Code int `json:"code"`
		Data struct {
			RetryAfterSeconds int `json:"retry_after_seconds"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, 42900, body.Code)
	require.Equal(t, 60, body.Data.RetryAfterSeconds)
}

func TestRateLimitKeysDistinguishClients(t *testing.T) {
	r := newRouter(RateLimit(ratelimit.NewLimiter(1)))

	do := func(ip string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/guarded", nil)
		req.RemoteAddr = "10.0.0.1:1000"
		req.Header.Set("CF-Connecting-IP", ip)
		r.ServeHTTP(w, req)
		return w.Code
	}

	require.Equal(t, 200, do("198.51.100.1"))
	require.Equal(t, 429, do("198.51.100.1"))
	require.Equal(t, 200, do("198.51.100.2"))
}

func TestAdminKeyPlainTextConstantTime(t *testing.T) {
	r := newRouter(AdminKey("super-secret"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/guarded", nil)
	req.Header.Set(AdminKeyHeader, "super-secret")
	r.ServeHTTP(w, req)
	require.Equal(t, 200, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/guarded", nil)
	req.Header.Set(AdminKeyHeader, "wrong")
	r.ServeHTTP(w, req)
	require.Equal(t, 401, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/guarded", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, 401, w.Code)
}

func TestAdminKeyBcryptHash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("super-secret"), bcrypt.MinCost)
	require.NoError(t, err)
	r := newRouter(AdminKey(string(hash)))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/guarded", nil)
	req.Header.Set(AdminKeyHeader, "super-secret")
	r.ServeHTTP(w, req)
	require.Equal(t, 200, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/guarded", nil)
	req.Header.Set(AdminKeyHeader, "wrong")
	r.ServeHTTP(w, req)
	require.Equal(t, 401, w.Code)
}

func TestAdminKeyUnconfiguredHidesEndpoint(t *testing.T) {
	r := newRouter(AdminKey(""))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/guarded", nil)
	req.Header.Set(AdminKeyHeader, "anything")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)
}

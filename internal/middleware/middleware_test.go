package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bridge-backend/internal/dto"
	"bridge-backend/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAddress = "0x00000000000000000000000000000000000C0001"

func init() {
	gin.SetMode(gin.TestMode)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

// stubTokens accepts "user-token" and "admin-token"
type stubTokens struct{}

func (stubTokens) Validate(token string) (*dto.JWTClaims, error) {
	switch token {
	case "user-token":
		return &dto.JWTClaims{Address: testAddress, Scope: dto.ScopeUser}, nil
	case "admin-token":
		return &dto.JWTClaims{Address: testAddress, Scope: dto.ScopeAdmin}, nil
	}
	return nil, errors.New("bad token")
}

func echoCaller(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"address": c.GetString("user_address"),
		"scope":   c.GetString("auth_scope"),
	})
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestRequireAuth(t *testing.T) {
	r := gin.New()
	r.GET("/user", NewAuthMiddleware(stubTokens{}, quietLogger()).RequireAuth(), echoCaller)

	tests := []struct {
		name     string
		header   string
		wantCode int
		wantErr  string
	}{
		{"missing header", "", http.StatusUnauthorized, "MISSING_AUTH_HEADER"},
		{"not bearer", "Token user-token", http.StatusUnauthorized, "INVALID_AUTH_FORMAT"},
		{"empty token", "Bearer   ", http.StatusUnauthorized, "EMPTY_TOKEN"},
		{"invalid token", "Bearer nope", http.StatusUnauthorized, "INVALID_TOKEN"},
		{"user token", "Bearer user-token", http.StatusOK, ""},
		{"admin token", "Bearer admin-token", http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/user", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			body := decode(t, w)
			if tt.wantErr != "" {
				assert.Equal(t, tt.wantErr, body["code"])
				assert.Equal(t, false, body["success"])
				return
			}
			assert.Equal(t, testAddress, body["address"])
		})
	}
}

func TestRequireAdminAuth(t *testing.T) {
	r := gin.New()
	r.GET("/admin", NewAdminAuthMiddleware(stubTokens{}, quietLogger()).RequireAdminAuth(), echoCaller)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer user-token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "INSUFFICIENT_PERMISSIONS", decode(t, w)["code"])

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.ScopeAdmin, decode(t, w)["scope"])

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLocalhostOnly(t *testing.T) {
	l := NewLocalhostOnly(quietLogger(), []string{"10.0.0.0/8", "203.0.113.7", "not-an-ip", "300.0.0.0/99"})
	r := gin.New()
	r.GET("/admin", l.Restrict(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	tests := []struct {
		remote string
		want   int
	}{
		{"127.0.0.1:5000", http.StatusNoContent},
		{"[::1]:5000", http.StatusNoContent},
		{"10.20.30.40:5000", http.StatusNoContent},
		{"203.0.113.7:5000", http.StatusNoContent},
		{"203.0.113.8:5000", http.StatusForbidden},
		{"192.0.2.1:5000", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.remote, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			req.RemoteAddr = tt.remote
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusForbidden {
				assert.Equal(t, "IP_NOT_ALLOWED", decode(t, w)["code"])
			}
		})
	}

	assert.Len(t, l.ips, 1)
	assert.Len(t, l.subnets, 1)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(0.001, 2, quietLogger())
	r := gin.New()
	r.GET("/api", rl.Limit(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	send := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api", nil)
		req.RemoteAddr = remote
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	before := testutil.ToFloat64(metrics.HTTPRateLimited)
	assert.Equal(t, http.StatusNoContent, send("192.0.2.1:1000").Code)
	assert.Equal(t, http.StatusNoContent, send("192.0.2.1:1001").Code)
	w := send("192.0.2.1:1002")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "RATE_LIMITED", decode(t, w)["code"])
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.HTTPRateLimited))

	// buckets are per client IP
	assert.Equal(t, http.StatusNoContent, send("192.0.2.2:1000").Code)

	assert.Equal(t, 0, rl.Cleanup(time.Hour))
	assert.Equal(t, 2, rl.Cleanup(-time.Second))
}

func TestRequestMetricsUsesRouteTemplate(t *testing.T) {
	r := gin.New()
	r.Use(RequestMetrics())
	r.GET("/api/transfers/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	before := testutil.CollectAndCount(metrics.HTTPRequestDuration)
	for _, path := range []string{"/api/transfers/1", "/api/transfers/2", "/nowhere"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}
	// one series for the template, one for unmatched
	assert.LessOrEqual(t, testutil.CollectAndCount(metrics.HTTPRequestDuration), before+2)
	assert.Greater(t, testutil.CollectAndCount(metrics.HTTPRequestDuration), before)
}

package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsAllowedOrigin(t *testing.T) {
	devOrigins := []string{"http://localhost:3000", "http://localhost:5173"}

	tests := []struct {
		name           string
		origin         string
		allowedOrigins []string
		want           bool
	}{
		{"exact match", "http://localhost:5173", devOrigins, true},
		{"port must match", "http://localhost:8080", devOrigins, false},
		{"trailing wildcard", "https://app.bytelense.dev", []string{"https://app.bytelense*"}, true},
		{"lan wildcard", "http://192.168.1.42:5173", []string{"http://192.168.*"}, true},
		{"unknown host", "http://evil.com", devOrigins, false},
		{"empty origin", "", devOrigins, false},
		{"empty allowed list", "http://localhost:3000", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isAllowedOrigin(tt.origin, tt.allowedOrigins))
		})
	}
}

func TestCORSMiddleware(t *testing.T) {
	allowed := []string{"http://localhost:5173"}

	tests := []struct {
		name       string
		origin     string
		method     string
		wantStatus int
		wantCORS   bool
	}{
		{"allowed origin scan", "http://localhost:5173", http.MethodPost, http.StatusOK, true},
		{"allowed origin profile patch", "http://localhost:5173", http.MethodPatch, http.StatusOK, true},
		{"preflight short-circuits", "http://localhost:5173", http.MethodOptions, http.StatusNoContent, true},
		{"disallowed origin still served", "http://evil.com", http.MethodPost, http.StatusOK, false},
		{"no origin header", "", http.MethodPost, http.StatusOK, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(CORSMiddleware(allowed))
			router.POST("/api/v1/scan", func(c *gin.Context) { c.Status(http.StatusOK) })
			router.PATCH("/api/v1/scan", func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(tt.method, "/api/v1/scan", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCORS {
				assert.Equal(t, tt.origin, w.Header().Get("Access-Control-Allow-Origin"))
				assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
				assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PATCH")
				assert.NotEmpty(t, w.Header().Get("Access-Control-Max-Age"))
			} else {
				assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
			}
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	var buf bytes.Buffer
	router := gin.New()
	router.Use(RecoveryMiddleware(zerolog.New(&buf)))
	router.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "kaboom")
	assert.Contains(t, buf.String(), "kaboom")
}

func TestLoggerMiddleware(t *testing.T) {
	tests := []struct {
		status    int
		wantLevel string
	}{
		{http.StatusOK, "info"},
		{http.StatusNotFound, "warn"},
		{http.StatusBadGateway, "error"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			var buf bytes.Buffer
			router := gin.New()
			router.Use(LoggerMiddleware(zerolog.New(&buf)))
			router.GET("/ping", func(c *gin.Context) { c.Status(tt.status) })

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

			var entry map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
			assert.Equal(t, tt.wantLevel, entry["level"])
			assert.Equal(t, "/ping", entry["path"])
			assert.Equal(t, http.MethodGet, entry["method"])
			assert.Equal(t, float64(tt.status), entry["status"])
		})
	}
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/playmatatu/bumper/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestOriginAllowed(t *testing.T) {
	dev := &config.Config{Environment: "development"}
	prod := &config.Config{Environment: "production", FrontendURL: "https://play.example.com"}

	tests := []struct {
		name   string
		cfg    *config.Config
		origin string
		want   bool
	}{
		{"dev localhost", dev, "http://localhost:3000", true},
		{"dev loopback", dev, "http://127.0.0.1:5173", true},
		{"dev remote", dev, "https://evil.example.com", false},
		{"empty", dev, "", false},
		{"prod known", prod, "https://playmatatu.com", true},
		{"prod frontend", prod, "https://play.example.com", true},
		{"prod localhost", prod, "http://localhost:5173", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OriginAllowed(tt.cfg, tt.origin))
		})
	}
}

func TestWebSocketCORSCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{Environment: "production"}

	router := gin.New()
	router.Use(WebSocketCORSCheck(cfg))
	router.GET("/ws", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	tests := []struct {
		name    string
		upgrade bool
		origin  string
		want    int
	}{
		{"plain request passes", false, "", http.StatusNoContent},
		{"upgrade without origin", true, "", http.StatusBadRequest},
		{"upgrade from stranger", true, "https://evil.example.com", http.StatusForbidden},
		{"upgrade from known origin", true, "https://playmatatu.com", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.upgrade {
				req.Header.Set("Connection", "Upgrade")
				req.Header.Set("Upgrade", "websocket")
			}
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

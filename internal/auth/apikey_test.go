package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newTestRouter(apiKey string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(APIKeyMiddleware(apiKey))
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	return r
}

func TestAPIKeyMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		header     string
		value      string
		wantStatus int
	}{
		{name: "auth disabled", configured: "", wantStatus: http.StatusOK},
		{name: "valid key header", configured: "secret", header: "X-API-Key", value: "secret", wantStatus: http.StatusOK},
		{name: "valid bearer token", configured: "secret", header: "Authorization", value: "Bearer secret", wantStatus: http.StatusOK},
		{name: "missing key", configured: "secret", wantStatus: http.StatusUnauthorized},
		{name: "wrong key", configured: "secret", header: "X-API-Key", value: "nope", wantStatus: http.StatusForbidden},
		{name: "wrong bearer token", configured: "secret", header: "Authorization", value: "Bearer nope", wantStatus: http.StatusForbidden},
		{name: "malformed authorization", configured: "secret", header: "Authorization", value: "secret", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(tt.configured)
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestCORSAllowsConfiguredOrigins(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name    string
		origins []string
		origin  string
		allowed bool
	}{
		{name: "default dev origin", origin: "http://localhost:5173", allowed: true},
		{name: "configured origin", origins: []string{"https://academy.example.com"}, origin: "https://academy.example.com", allowed: true},
		{name: "unlisted origin", origins: []string{"https://academy.example.com"}, origin: "http://localhost:5173", allowed: false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			r := gin.New()
			r.Use(CORS(tc.origins))
			r.OPTIONS("/api/courses/generate", func(c *gin.Context) {
				c.Status(http.StatusNoContent)
			})

			req := httptest.NewRequest(http.MethodOptions, "/api/courses/generate", nil)
			req.Header.Set("Origin", tc.origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			got := rec.Header().Get("Access-Control-Allow-Origin")
			if tc.allowed && got != tc.origin {
				t.Fatalf("allow-origin: got=%q want=%q", got, tc.origin)
			}
			if !tc.allowed && got != "" {
				t.Fatalf("unexpected allow-origin %q", got)
			}
		})
	}
}

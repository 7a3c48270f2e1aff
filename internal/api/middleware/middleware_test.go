package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func newTokenRouter(token string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CorrelationIDMiddleware(), APITokenMiddleware(token))
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, GetCorrelationID(c))
	})
	return r
}

func TestAPITokenMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		header string
		value  string
		want   int
	}{
		{"no token configured", "", "", "", http.StatusOK},
		{"missing header", "secret", "", "", http.StatusUnauthorized},
		{"wrong token", "secret", APITokenHeader, "nope", http.StatusUnauthorized},
		{"token header", "secret", APITokenHeader, "secret", http.StatusOK},
		{"bearer", "secret", "Authorization", "Bearer secret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			w := httptest.NewRecorder()
			newTokenRouter(tt.token).ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Fatalf("expected %d got %d body=%s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestCorrelationIDMiddleware(t *testing.T) {
	r := newTokenRouter("")

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Correlation-ID", "abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Body.String() != "abc" || w.Header().Get("X-Correlation-ID") != "abc" {
		t.Fatalf("expected correlation id to be echoed, got body=%q header=%q", w.Body.String(), w.Header().Get("X-Correlation-ID"))
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if len(w.Body.String()) != 36 {
		t.Fatalf("expected generated uuid, got %q", w.Body.String())
	}
}

func TestCorrelationIDRejectsUnsafeValues(t *testing.T) {
	r := newTokenRouter("")

	for _, bad := range []string{"has space", "line\nbreak", strings.Repeat("a", 65)} {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(CorrelationIDHeader, bad)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Body.String() == bad || len(w.Body.String()) != 36 {
			t.Fatalf("expected %q to be replaced by a uuid, got %q", bad, w.Body.String())
		}
	}
}

func TestRequestLevel(t *testing.T) {
	tests := []struct {
		path   string
		status int
		want   slog.Level
	}{
		{"/v1/jobs", 200, slog.LevelInfo},
		{"/health", 200, slog.LevelDebug},
		{"/v1/jobs/:id", 404, slog.LevelWarn},
		{"/metrics", 500, slog.LevelError},
	}
	for _, tt := range tests {
		if got := requestLevel(tt.path, tt.status); got != tt.want {
			t.Fatalf("requestLevel(%q, %d) = %s, want %s", tt.path, tt.status, got, tt.want)
		}
	}
}

package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/health/live", "/health/live"},
		{"/metrics", "/metrics"},
		{"/api/capy", "/api/capy"},
		{"/api/capy/V1StGXR8Z5jdHi6BmyTaB", "/api/capy/{id}"},
		{"/api/admin/approval", "/api/admin/approval"},
		{"/api/admin/approval/V1StGXR8Z5jdHi6BmyTaB", "/api/admin/approval/{id}"},
		{"/api/admin/remaining", "/api/admin/remaining"},
		{"/api/capy/", "other"},
		{"/api/capy/a/b", "other"},
		{"/wp-login.php", "other"},
	}
	for _, tt := range tests {
		if got := normalizePath(tt.path); got != tt.want {
			t.Errorf("normalizePath(%q) = %q, ожидали %q", tt.path, got, tt.want)
		}
	}
}

// TestRequestLogger проверяет уровень записи и request id.
func TestRequestLogger(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantLevel string
	}{
		{"успех", http.StatusOK, "level=INFO"},
		{"ошибка клиента", http.StatusNotFound, "level=WARN"},
		{"ошибка сервера", http.StatusInternalServerError, "level=ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))

			handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("капибара"))
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/capy/x", nil)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			out := buf.String()
			if !strings.Contains(out, tt.wantLevel) {
				t.Errorf("лог %q не содержит %s", out, tt.wantLevel)
			}
			if !strings.Contains(out, "bytes=16") {
				t.Errorf("лог %q не содержит размер ответа", out)
			}
			if rec.Header().Get(RequestIDHeader) == "" {
				t.Error("не выставлен X-Request-ID")
			}
		})
	}
}

func TestRequestLogger_KeepsIncomingRequestID(t *testing.T) {
	handler := RequestLogger(testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get(RequestIDHeader); got != "req-42" {
		t.Errorf("X-Request-ID = %q, ожидали req-42", got)
	}
}

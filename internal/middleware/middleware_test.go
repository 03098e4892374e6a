package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestResponseWriterCapturesStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantStatus int
		wantBytes  int64
	}{
		{
			name: "Explicit status",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name: "Implicit 200 on write",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte("hello"))
			},
			wantStatus: http.StatusOK,
			wantBytes:  5,
		},
		{
			name: "Second WriteHeader ignored",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusCreated)
				w.WriteHeader(http.StatusInternalServerError)
			},
			wantStatus: http.StatusCreated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			rw := newResponseWriter(rec)
			tt.handler(rw, httptest.NewRequest(http.MethodGet, "/", nil))

			if rw.statusCode != tt.wantStatus {
				t.Errorf("statusCode = %d, want %d", rw.statusCode, tt.wantStatus)
			}
			if rw.bytesWritten != tt.wantBytes {
				t.Errorf("bytesWritten = %d, want %d", rw.bytesWritten, tt.wantBytes)
			}
		})
	}
}

func TestSanitizeLogField(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"/api/videos", "/api/videos"},
		{"/api\nvideos", "/apivideos"},
		{"/api\x00\x1b[31mvideos", "/api[31mvideos"},
		{"clean?limit=5", "clean?limit=5"},
	}

	for _, tt := range tests {
		if got := sanitizeLogField(tt.in); got != tt.want {
			t.Errorf("sanitizeLogField(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRoutePattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want string
	}{
		{"/", "/"},
		{"/health", "/health"},
		{"/api/videos", "/api/videos"},
		{"/api/videos/merge", "/api/videos/merge"},
		{"/api/videos/2c5ea4c0-4067-11e9", "/api/videos/{id}"},
		{"/api/videos/2c5ea4c0-4067-11e9/file", "/api/videos/{id}/file"},
		{"/api/videos/2c5ea4c0-4067-11e9/trim", "/api/videos/{id}/trim"},
		{"/api/videos/2c5ea4c0-4067-11e9/share", "/api/videos/{id}/share"},
		{"/share/eyJhbGciOiJIUzI1NiJ9.payload.sig", "/share/{token}"},
		{"/api/stats", "/api/stats"},
	}

	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, tt.path, nil)
		if got := routePattern(r); got != tt.want {
			t.Errorf("routePattern(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestLoggerPassesThrough(t *testing.T) {
	t.Parallel()

	called := false
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	})

	handler := Logger(DefaultLoggingConfig())(inner)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/videos", nil))

	if !called {
		t.Error("inner handler was not invoked")
	}
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTeapot)
	}
}

func TestMetricsPassesThrough(t *testing.T) {
	t.Parallel()

	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	handler := Metrics(DefaultMetricsConfig())(inner)

	for _, path := range []string{"/api/videos", "/metrics", "/health"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusNoContent {
			t.Errorf("%s: status = %d, want 204", path, rec.Code)
		}
	}
}

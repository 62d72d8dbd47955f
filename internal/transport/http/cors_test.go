package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCORS(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		origins        []string
		origin         string
		preflight      bool
		expectedStatus int
		expectedAllow  string
	}{
		{
			name:           "preflight allowed",
			origins:        []string{"http://localhost:5173"},
			origin:         "http://localhost:5173",
			preflight:      true,
			expectedStatus: http.StatusNoContent,
			expectedAllow:  "http://localhost:5173",
		},
		{
			name:           "configured origin with trailing slash",
			origins:        []string{"http://localhost:5173/"},
			origin:         "http://localhost:5173",
			preflight:      true,
			expectedStatus: http.StatusNoContent,
			expectedAllow:  "http://localhost:5173",
		},
		{
			name:           "preflight forbidden",
			origins:        []string{"http://localhost:5173"},
			origin:         "http://evil.local",
			preflight:      true,
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "wildcard",
			origins:        []string{"*"},
			origin:         "http://anything.local",
			expectedStatus: http.StatusTeapot,
			expectedAllow:  "*",
		},
		{
			name:           "unknown origin passes through bare",
			origins:        []string{"http://localhost:5173"},
			origin:         "http://evil.local",
			expectedStatus: http.StatusTeapot,
		},
		{
			name:           "same origin request",
			origins:        nil,
			expectedStatus: http.StatusTeapot,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			handler := CORS(tt.origins, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusTeapot)
			}))

			method := http.MethodPost
			if tt.preflight {
				method = http.MethodOptions
			}
			req := httptest.NewRequest(method, "/checkout", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d", tt.expectedStatus, rec.Code)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.expectedAllow {
				t.Fatalf("expected allow origin %q, got %q", tt.expectedAllow, got)
			}
			if tt.expectedStatus == http.StatusNoContent {
				if !strings.Contains(rec.Header().Get("Access-Control-Allow-Headers"), idempotencyHeader) {
					t.Fatalf("expected %s in allowed headers", idempotencyHeader)
				}
			}
		})
	}
}

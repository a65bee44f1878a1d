package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS(t *testing.T) {
	allowedOrigins := []string{"http://localhost:3000", "https://example.com"}
	handler := CORS(allowedOrigins)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}))

	tests := []struct {
		name                   string
		method                 string
		origin                 string
		expectAllowOrigin      string
		expectAllowCredentials string
		expectStatusCode       int
	}{
		{
			name:                   "allowed origin with credentials",
			method:                 "GET",
			origin:                 "http://localhost:3000",
			expectAllowOrigin:      "http://localhost:3000",
			expectAllowCredentials: "true",
			expectStatusCode:       http.StatusOK,
		},
		{
			name:                   "another allowed origin",
			method:                 "POST",
			origin:                 "https://example.com",
			expectAllowOrigin:      "https://example.com",
			expectAllowCredentials: "true",
			expectStatusCode:       http.StatusOK,
		},
		{
			name:                   "disallowed origin",
			method:                 "GET",
			origin:                 "https://evil.com",
			expectAllowOrigin:      "",
			expectAllowCredentials: "",
			expectStatusCode:       http.StatusOK,
		},
		{
			name:                   "no origin header",
			method:                 "GET",
			origin:                 "",
			expectAllowOrigin:      "",
			expectAllowCredentials: "",
			expectStatusCode:       http.StatusOK,
		},
		{
			name:                   "preflight request allowed origin",
			method:                 "OPTIONS",
			origin:                 "http://localhost:3000",
			expectAllowOrigin:      "http://localhost:3000",
			expectAllowCredentials: "true",
			expectStatusCode:       http.StatusNoContent,
		},
		{
			name:                   "preflight request disallowed origin",
			method:                 "OPTIONS",
			origin:                 "https://evil.com",
			expectAllowOrigin:      "",
			expectAllowCredentials: "",
			expectStatusCode:       http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}

			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.expectStatusCode {
				t.Errorf("expected status code %d, got %d", tt.expectStatusCode, rr.Code)
			}

			allowOrigin := rr.Header().Get("Access-Control-Allow-Origin")
			if allowOrigin != tt.expectAllowOrigin {
				t.Errorf("expected Access-Control-Allow-Origin %q, got %q", tt.expectAllowOrigin, allowOrigin)
			}

			allowCredentials := rr.Header().Get("Access-Control-Allow-Credentials")
			if allowCredentials != tt.expectAllowCredentials {
				t.Errorf("expected Access-Control-Allow-Credentials %q, got %q", tt.expectAllowCredentials, allowCredentials)
			}

			allowMethods := rr.Header().Get("Access-Control-Allow-Methods")
			if allowMethods == "" {
				t.Error("expected Access-Control-Allow-Methods to be set")
			}
		})
	}
}

func TestCORS_NeverWildcardsWithCredentials(t *testing.T) {
	handler := CORS([]string{"http://localhost:3000"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "https://evil.com")

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Header().Get("Access-Control-Allow-Origin") == "*" {
		t.Error("wildcard origin must never be combined with credentials")
	}
}

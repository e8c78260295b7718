package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddleware(t *testing.T) {
	h := Middleware(Config{Enabled: true, Token: "s3cret"})(okHandler())

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"public read", "/api/v1/state", "", http.StatusOK},
		{"health", "/healthz", "", http.StatusOK},
		{"stream", "/api/v1/stream/frames", "", http.StatusOK},
		{"control without token", "/api/v1/control", "", http.StatusUnauthorized},
		{"control wrong token", "/api/v1/control", "Bearer nope", http.StatusUnauthorized},
		{"control not bearer", "/api/v1/control", "Basic s3cret", http.StatusUnauthorized},
		{"control good token", "/api/v1/control", "Bearer s3cret", http.StatusOK},
		{"ws without token", "/api/v1/control/ws", "", http.StatusUnauthorized},
		{"ws query token", "/api/v1/control/ws?token=s3cret", "", http.StatusOK},
		{"ws wrong query token", "/api/v1/control/ws?token=x", "", http.StatusUnauthorized},
		{"prefix lookalike", "/api/v1/controlpanel", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("%s: status = %d, want %d", tt.path, w.Code, tt.want)
			}
			if w.Code == http.StatusUnauthorized && w.Header().Get("Content-Type") != "application/json" {
				t.Error("401 response should be JSON")
			}
		})
	}
}

func TestMiddleware_Disabled(t *testing.T) {
	h := Middleware(Config{Enabled: false, Token: "s3cret"})(okHandler())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/control", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 with auth disabled", w.Code)
	}
}

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name   string
		cfg    Config
		path   string
		header string
		want   int
	}{
		{"disabled", Config{}, "/api/v1/geomag", "", http.StatusNoContent},
		{"missing token", Config{Enabled: true, Token: "s3cret"}, "/api/v1/geomag", "", http.StatusUnauthorized},
		{"wrong token", Config{Enabled: true, Token: "s3cret"}, "/api/v1/geomag", "Bearer nope", http.StatusUnauthorized},
		{"wrong scheme", Config{Enabled: true, Token: "s3cret"}, "/api/v1/geomag", "Basic s3cret", http.StatusUnauthorized},
		{"bare token", Config{Enabled: true, Token: "s3cret"}, "/api/v1/geomag", "s3cret", http.StatusUnauthorized},
		{"valid token", Config{Enabled: true, Token: "s3cret"}, "/api/v1/orientation", "Bearer s3cret", http.StatusNoContent},
		{"empty configured token", Config{Enabled: true}, "/api/v1/orientation", "Bearer ", http.StatusUnauthorized},
		{"exempt healthz", Config{Enabled: true, Token: "s3cret"}, "/healthz", "", http.StatusNoContent},
		{"exempt metrics", Config{Enabled: true, Token: "s3cret"}, "/metrics", "", http.StatusNoContent},
		{"exempt tle metadata", Config{Enabled: true, Token: "s3cret"}, "/api/v1/tle/metadata", "", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			Middleware(tt.cfg)(ok).ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

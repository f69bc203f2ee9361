package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/trendwatch/trendwatch/internal/config"
)

func TestGenerateAndValidateToken(t *testing.T) {
	token, err := GenerateToken("operator", "secret", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	subject, err := ValidateToken(token, "secret")
	if err != nil {
		t.Fatalf("ValidateToken error: %v", err)
	}
	if subject != "operator" {
		t.Errorf("subject = %s, want operator", subject)
	}

	if _, err := ValidateToken(token, "wrong-secret"); err == nil {
		t.Error("token validated with wrong secret")
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	token, err := GenerateToken("operator", "secret", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}
	if _, err := ValidateToken(token, "secret"); err == nil {
		t.Error("expired token should be rejected")
	}
}

func TestCheckPassword(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}
	if !CheckPassword("hunter2", hash) {
		t.Error("correct password rejected")
	}
	if CheckPassword("wrong", hash) {
		t.Error("wrong password accepted")
	}
}

func TestIngestMiddleware(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name       string
		configured string
		header     string
		wantStatus int
	}{
		{"open when unset", "", "", http.StatusNoContent},
		{"valid token", "s3cret", "Bearer s3cret", http.StatusNoContent},
		{"wrong token", "s3cret", "Bearer nope", http.StatusUnauthorized},
		{"missing header", "s3cret", "", http.StatusUnauthorized},
		{"not bearer", "s3cret", "Basic s3cret", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw := IngestMiddleware(config.AuthConfig{IngestToken: tt.configured})
			req := httptest.NewRequest(http.MethodPost, "/api/ingest", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			mw(inner).ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
		})
	}
}

func TestOperatorMiddleware(t *testing.T) {
	cfg := config.AuthConfig{JWTSecret: "secret"}
	mw := OperatorMiddleware(cfg)
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	token, err := GenerateToken("operator", "secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/runs", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	mw(inner).ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Errorf("valid token: status = %d, want 204", rr.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/runs", nil)
	rr = httptest.NewRecorder()
	mw(inner).ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("missing token: status = %d, want 401", rr.Code)
	}
}

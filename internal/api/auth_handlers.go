package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"github.com/trendwatch/trendwatch/internal/auth"
	"github.com/trendwatch/trendwatch/internal/config"
)

// AuthHandler issues operator tokens.
type AuthHandler struct {
	cfg    config.AuthConfig
	logger *slog.Logger
}

// NewAuthHandler creates a new authentication handler.
func NewAuthHandler(cfg config.AuthConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{cfg: cfg, logger: logger}
}

// LoginRequest represents a login request.
type LoginRequest struct {
	Password string `json:"password"`
}

// LoginResponse represents a login response.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if !h.passwordMatches(req.Password) {
		h.logger.Warn("failed login attempt", "ip", r.RemoteAddr)
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := auth.GenerateToken("operator", h.cfg.JWTSecret, h.cfg.TokenDuration)
	if err != nil {
		h.logger.Error("failed to generate token", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.Info("operator login", "ip", r.RemoteAddr)

	writeJSON(w, h.logger, http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(h.cfg.TokenDuration),
	})
}

// passwordMatches accepts either a bcrypt hash or, for development setups, a
// plain password in the configuration.
func (h *AuthHandler) passwordMatches(password string) bool {
	if strings.HasPrefix(h.cfg.OperatorPassword, "$2") {
		return auth.CheckPassword(password, h.cfg.OperatorPassword)
	}
	return password != "" && password == h.cfg.OperatorPassword
}

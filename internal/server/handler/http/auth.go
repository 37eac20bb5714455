// Package http provides the HTTP handlers of the ClassFeed server:
// student login, the live feed stream and single item lookups.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/ClassFeed/internal/models"
)

// AuthService defines the interface for authentication operations
// required by the HTTP handlers.
type AuthService interface {
	// Login verifies id and secret and returns the identity with a fresh
	// access token.
	Login(ctx context.Context, id, secret string) (*models.Identity, string, error)
}

// AuthHandler handles HTTP requests for student login.
type AuthHandler struct {
	// AuthService performs the underlying credential check.
	AuthService AuthService
	Log         *zap.Logger
}

// LoginRequest represents the JSON payload for a login.
type LoginRequest struct {
	ID     string `json:"id"`
	Secret string `json:"secret"`
}

// LoginResponse is returned on a successful login.
type LoginResponse struct {
	Identity *models.Identity `json:"identity"`
	Role     models.Role      `json:"role"`
	Token    string           `json:"token"`
}

// Login handles POST /api/login.
//
// Unknown ids answer 404, a wrong secret 401 and an unreachable identity
// store 503, so the client can tell the three apart.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	identity, token, err := h.AuthService.Login(r.Context(), req.ID, req.Secret)
	switch {
	case errors.Is(err, models.ErrNotFound):
		http.Error(w, "Student ID not found", http.StatusNotFound)
		return
	case errors.Is(err, models.ErrWrongSecret):
		http.Error(w, "Invalid password", http.StatusUnauthorized)
		return
	case errors.Is(err, models.ErrBackendUnavailable):
		h.logger().Error("identity store unavailable", zap.Error(err))
		http.Error(w, "Service is not set up", http.StatusServiceUnavailable)
		return
	case err != nil:
		h.logger().Error("login failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(LoginResponse{
		Identity: identity,
		Role:     models.RoleStudent,
		Token:    token,
	})
}

func (h *AuthHandler) logger() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}

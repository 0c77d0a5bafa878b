package handler

import (
	"context"
	"net/http"
	"strings"

	"case-console/internal/middleware"
	"case-console/internal/model"
	"case-console/pkg/apierror"
)

type authService interface {
	Login(ctx context.Context, username string, password string) (model.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (model.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	GetUserByID(ctx context.Context, userID string) (model.AuthUser, error)
}

// AuthHandler serves /api/v1/auth.
type AuthHandler struct {
	service authService
}

func NewAuthHandler(service authService) *AuthHandler {
	return &AuthHandler{service: service}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in model.LoginRequest
	if !bind(w, r, &in) {
		return
	}

	pair, err := h.service.Login(r.Context(), in.Username, in.Password)
	writeTokens(w, pair, err)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var in model.RefreshRequest
	if !bind(w, r, &in) {
		return
	}

	token := strings.TrimSpace(in.RefreshToken)
	if token == "" {
		writeError(w, apierror.BadRequest("refresh_token is required", "refresh_token"))
		return
	}

	pair, err := h.service.Refresh(r.Context(), token)
	writeTokens(w, pair, err)
}

// Logout revokes the refresh token named in the body. The access token
// that authorized the call simply runs out.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var in model.RefreshRequest
	if !bind(w, r, &in) {
		return
	}

	if err := h.service.Logout(r.Context(), strings.TrimSpace(in.RefreshToken)); err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]bool{"logged_out": true}, nil)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, apierror.Unauthorized("authentication required"))
		return
	}

	user, err := h.service.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, user, nil)
}

// writeTokens sends a token pair. Responses carrying credentials must not
// be cached by the client or any proxy.
func writeTokens(w http.ResponseWriter, pair model.TokenPair, err error) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, pair, nil)
}

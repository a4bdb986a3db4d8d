package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/markdave123-py/docqa/internal/services"
)

// Authenticator is the account side of the service layer.
type Authenticator interface {
	Signup(ctx context.Context, email, password string) (string, error)
	Login(ctx context.Context, email, password string) (string, error)
}

type AuthHandler struct {
	users Authenticator
}

func NewAuthHandler(users Authenticator) *AuthHandler {
	return &AuthHandler{users: users}
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	token, err := h.users.Signup(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, services.ErrInvalidUserInput):
		writeError(w, http.StatusBadRequest, "a valid email and a password of at least 8 characters are required")
		return
	case errors.Is(err, services.ErrEmailTaken):
		writeError(w, http.StatusConflict, "user exists")
		return
	case err != nil:
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	token, err := h.users.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, services.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

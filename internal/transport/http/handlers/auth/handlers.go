package authhandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"hrdocs/internal/domain/auth"
	"hrdocs/internal/transport/http/api"
	"hrdocs/internal/transport/http/middleware"
)

type Authenticator interface {
	Login(ctx context.Context, login, password string) (auth.LoginResult, error)
}

type Handler struct {
	Auth Authenticator
}

func NewHandler(authenticator Authenticator) *Handler {
	return &Handler{Auth: authenticator}
}

type loginRequest struct {
	Login    string `json:"login"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.HandleLogin)
		r.Get("/me", h.HandleMe)
	})
}

// HandleLogin accepts either a username or an email in login; email is kept for older clients.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	var payload loginRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}
	login := strings.TrimSpace(payload.Login)
	if login == "" {
		login = strings.TrimSpace(payload.Email)
	}

	result, err := h.Auth.Login(r.Context(), login, payload.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials", reqID)
			return
		}
		slog.Error("login failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, "token_error", "failed to issue token", reqID)
		return
	}

	api.Success(w, map[string]any{
		"token":       result.Token,
		"user":        map[string]string{"id": result.User.UserID, "roleId": result.User.RoleID, "role": result.User.RoleName},
		"permissions": auth.Capabilities(result.User.RoleName).List(),
	}, reqID)
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]any{
		"id":          user.UserID,
		"roleId":      user.RoleID,
		"role":        user.RoleName,
		"permissions": auth.Capabilities(user.RoleName).List(),
	}, middleware.GetRequestID(r.Context()))
}

package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/fjod/traced_shop/auth-service/internal/repository"
	"github.com/fjod/traced_shop/auth-service/internal/service"
	"github.com/fjod/traced_shop/auth-service/internal/session"
	"github.com/fjod/traced_shop/pkg/auth"
	"github.com/fjod/traced_shop/pkg/httpx"
	"github.com/fjod/traced_shop/pkg/logger"
)

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type MeResponse struct {
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	SessionID string `json:"sessionId"`
}

type AuthHandler struct {
	svc *service.AuthService
	log *zap.Logger
}

func NewAuthHandler(svc *service.AuthService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, log: log}
}

func (h *AuthHandler) Routes(r chi.Router, issuer *auth.Issuer) {
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(issuer))
			r.Post("/logout", h.Logout)
			r.Get("/me", h.Me)
		})
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, r, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	res, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, repository.ErrInvalidCredentials) {
		httpx.RespondError(w, r, http.StatusUnauthorized, "invalid_credentials", "Invalid credentials")
		return
	}
	if err != nil {
		logger.For(r.Context(), h.log).Error("login failed", zap.Error(err))
		httpx.RespondError(w, r, http.StatusInternalServerError, "internal_error", "Failed to generate token")
		return
	}

	httpx.RespondJSON(w, http.StatusOK, res)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	if err := h.svc.Logout(r.Context(), user.SessionID); err != nil {
		logger.For(r.Context(), h.log).Error("logout failed", zap.Error(err))
		httpx.RespondError(w, r, http.StatusInternalServerError, "internal_error", "Failed to log out")
		return
	}
	httpx.RespondJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	sess, err := h.svc.CurrentSession(r.Context(), user.SessionID)
	if errors.Is(err, session.ErrSessionNotFound) {
		httpx.RespondError(w, r, http.StatusUnauthorized, "session_expired", "session is no longer active")
		return
	}
	if err != nil {
		logger.For(r.Context(), h.log).Error("session lookup failed", zap.Error(err))
		httpx.RespondError(w, r, http.StatusInternalServerError, "internal_error", "Failed to load session")
		return
	}

	httpx.RespondJSON(w, http.StatusOK, MeResponse{
		UserID:    sess.UserID,
		Username:  sess.Username,
		SessionID: sess.ID,
	})
}

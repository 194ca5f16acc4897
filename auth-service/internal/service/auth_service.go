package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fjod/traced_shop/auth-service/internal/domain"
	"github.com/fjod/traced_shop/auth-service/internal/repository"
	"github.com/fjod/traced_shop/auth-service/internal/session"
	"github.com/fjod/traced_shop/pkg/auth"
	"github.com/fjod/traced_shop/pkg/logger"
	"github.com/fjod/traced_shop/pkg/telemetry"
)

type LoginResult struct {
	Token     string `json:"token"`
	SessionID string `json:"sessionId"`
	Username  string `json:"username"`
	UserID    string `json:"userId"`
}

type AuthService struct {
	users    repository.UserRepository
	sessions session.Store
	issuer   *auth.Issuer
	log      *zap.Logger
	now      func() time.Time
}

func NewAuthService(users repository.UserRepository, sessions session.Store, issuer *auth.Issuer, log *zap.Logger) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{
		users:    users,
		sessions: sessions,
		issuer:   issuer,
		log:      log,
		now:      time.Now,
	}
}

// Login checks credentials and opens a session that lives as long as the
// issued token.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "login", attribute.String("user.name", username))
	defer span.End()

	user, err := s.users.Authenticate(ctx, username, password)
	if err != nil {
		if !errors.Is(err, repository.ErrInvalidCredentials) {
			telemetry.RecordError(span, err)
		}
		logger.For(ctx, s.log).Warn("login failed", zap.String("username", username))
		return nil, err
	}

	now := s.now()
	sess := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Username:  user.Username,
		CreatedAt: now,
		ExpiresAt: now.Add(auth.TokenTTL),
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("save session: %w", err)
	}

	token, err := s.issuer.Generate(user.ID, user.Username, sess.ID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	span.SetAttributes(attribute.String("enduser.id", user.ID), attribute.String("session.id", sess.ID))
	logger.For(ctx, s.log).Info("user logged in",
		zap.String("user_id", user.ID),
		zap.String("session_id", sess.ID),
	)

	return &LoginResult{
		Token:     token,
		SessionID: sess.ID,
		Username:  user.Username,
		UserID:    user.ID,
	}, nil
}

func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	ctx, span := telemetry.StartSpan(ctx, "logout", attribute.String("session.id", sessionID))
	defer span.End()

	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("delete session: %w", err)
	}
	logger.For(ctx, s.log).Info("user logged out", zap.String("session_id", sessionID))
	return nil
}

// CurrentSession returns session.ErrSessionNotFound once the user logged out
// or the session expired, even if the token itself is still valid.
func (s *AuthService) CurrentSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	return s.sessions.Get(ctx, sessionID)
}

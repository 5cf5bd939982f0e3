package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"nexus-care/internal/config"
	"nexus-care/internal/metrics"
	"nexus-care/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Identity is the authenticated caller behind a request.
type Identity struct {
	SessionID string      `json:"-"`
	UserID    uint        `json:"id"`
	Username  string      `json:"username"`
	Role      models.Role `json:"role"`
}

func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == models.RoleAdmin
}

// LoginResult carries what the transport needs to bind the session to the client.
type LoginResult struct {
	Identity  Identity
	Token     string
	ExpiresAt time.Time
}

// SessionManager issues, resolves and revokes logins. The signed token only
// names a server-side record; identity and role always come from the store.
type SessionManager struct {
	cfg   *config.Config
	auth  *AuthService
	store SessionStore
	audit AuditRecorder
	log   *zap.Logger
	now   func() time.Time
}

func NewSessionManager(cfg *config.Config, auth *AuthService, store SessionStore, audit AuditRecorder, log *zap.Logger) *SessionManager {
	return &SessionManager{
		cfg:   cfg,
		auth:  auth,
		store: store,
		audit: audit,
		log:   log.Named("session"),
		now:   time.Now,
	}
}

// Login verifies credentials and opens a new session.
func (m *SessionManager) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := m.auth.Verify(ctx, email, password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			metrics.LoginAttemptsTotal.WithLabelValues("failure").Inc()
		}
		return nil, err
	}

	now := m.now()
	session := &models.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Username:  user.Username,
		Role:      user.Role,
		ExpiresAt: now.Add(m.cfg.Session.SessionLifetime()),
		CreatedAt: now,
	}

	token, err := m.signToken(session, now)
	if err != nil {
		return nil, fmt.Errorf("sign session token: %w", err)
	}

	if err := m.store.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	m.audit.Record(ctx, user.ID, "User Login")

	return &LoginResult{
		Identity:  identityFromSession(session),
		Token:     token,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// Logout revokes the session named by token. Invalid or empty tokens are
// ignored, so calling it repeatedly is safe.
func (m *SessionManager) Logout(ctx context.Context, token string) {
	sessionID, err := m.parseToken(token)
	if err != nil {
		return
	}
	if err := m.store.Delete(ctx, sessionID); err != nil {
		m.log.Error("failed to delete session", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// Current resolves token to the logged-in identity. The bool is false for
// anonymous callers and when the session store cannot be read.
func (m *SessionManager) Current(ctx context.Context, token string) (*Identity, bool) {
	identity, err := m.Resolve(ctx, token)
	return identity, err == nil && identity != nil
}

// Resolve is Current with store failures surfaced. A nil identity with a nil
// error means the caller is anonymous.
func (m *SessionManager) Resolve(ctx context.Context, token string) (*Identity, error) {
	sessionID, err := m.parseToken(token)
	if err != nil {
		return nil, nil
	}

	session, err := m.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, nil
		}
		m.log.Error("failed to load session", zap.String("session_id", sessionID), zap.Error(err))
		return nil, fmt.Errorf("load session: %w", err)
	}

	identity := identityFromSession(session)
	return &identity, nil
}

// PurgeExpired drops sessions past their expiry.
func (m *SessionManager) PurgeExpired(ctx context.Context) error {
	return m.store.DeleteExpired(ctx)
}

func (m *SessionManager) signToken(session *models.Session, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:        session.ID,
		Subject:   strconv.FormatUint(uint64(session.UserID), 10),
		Issuer:    m.cfg.Session.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.cfg.Session.Secret))
}

// parseToken checks signature, issuer and expiry and returns the session ID.
func (m *SessionManager) parseToken(token string) (string, error) {
	if token == "" {
		return "", ErrUnauthenticated
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return []byte(m.cfg.Session.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.cfg.Session.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if claims.ID == "" {
		return "", ErrUnauthenticated
	}
	return claims.ID, nil
}

func identityFromSession(s *models.Session) Identity {
	return Identity{
		SessionID: s.ID,
		UserID:    s.UserID,
		Username:  s.Username,
		Role:      s.Role,
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"bakery-pos/internal/auth"
	"bakery-pos/internal/models"
	"bakery-pos/internal/ticket"
	"bakery-pos/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Session is one logged in till user. Its ticket is guarded by mu.
type Session struct {
	ID        string
	Username  string
	Role      models.Role
	CreatedAt time.Time

	mu     sync.Mutex
	ticket *ticket.Ticket
}

// LoginResult is returned by a successful login
type LoginResult struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	SessionID string      `json:"session_id"`
	Username  string      `json:"username"`
	Role      models.Role `json:"role"`
}

// SessionService owns sessions and the ticket of each employee session
type SessionService struct {
	tokens *auth.TokenService
	logger *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionService creates a new session service
func NewSessionService(tokens *auth.TokenService) *SessionService {
	return &SessionService{
		tokens:   tokens,
		logger:   util.GetLogger(),
		sessions: make(map[string]*Session),
	}
}

// RoleFor maps a login name to its role
func RoleFor(username string) models.Role {
	if strings.EqualFold(strings.TrimSpace(username), "admin") {
		return models.RoleAdmin
	}
	return models.RoleEmployee
}

// Login opens a session. Any non-empty username and password are accepted.
func (s *SessionService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	_, span := util.StartSpan(ctx, "SessionService.Login")
	defer span.End()

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, models.ErrInvalidCredentials
	}

	session := &Session{
		ID:        uuid.New().String(),
		Username:  username,
		Role:      RoleFor(username),
		CreatedAt: time.Now(),
		ticket:    ticket.New(),
	}

	token, expiresAt, err := s.tokens.Issue(session.ID, session.Username, session.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	util.ActiveSessions.Set(float64(len(s.sessions)))
	s.mu.Unlock()

	s.logger.Info("Session opened",
		zap.String("session_id", session.ID),
		zap.String("user", session.Username),
		zap.String("role", string(session.Role)))

	return &LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		SessionID: session.ID,
		Username:  session.Username,
		Role:      session.Role,
	}, nil
}

// Authenticate resolves a bearer token to a live session. The token's
// username and role claims must match the session. An expired token
// closes its session.
func (s *SessionService) Authenticate(token string) (*Session, error) {
	claims, err := s.tokens.Validate(token)
	if errors.Is(err, auth.ErrExpiredToken) && claims != nil {
		s.expire(claims.SessionID)
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	session, err := s.Session(claims.SessionID)
	if err != nil {
		return nil, err
	}
	if claims.Role != session.Role || claims.Username != session.Username {
		s.logger.Warn("Token claims do not match session",
			zap.String("session_id", session.ID),
			zap.String("claimed_role", string(claims.Role)),
			zap.String("role", string(session.Role)))
		return nil, auth.ErrInvalidToken
	}
	return session, nil
}

// expire drops a session whose token has run out
func (s *SessionService) expire(id string) {
	s.mu.Lock()
	session, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	util.ActiveSessions.Set(float64(len(s.sessions)))
	s.mu.Unlock()

	if !ok {
		return
	}

	session.mu.Lock()
	session.ticket.Clear()
	session.mu.Unlock()

	s.logger.Info("Session expired",
		zap.String("session_id", id),
		zap.String("user", session.Username))
}

// Count returns the number of live sessions
func (s *SessionService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Session returns a live session by id
func (s *SessionService) Session(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	return session, nil
}

// Logout clears the session ticket and revokes the session
func (s *SessionService) Logout(ctx context.Context, id string) error {
	_, span := util.StartSpan(ctx, "SessionService.Logout")
	defer span.End()

	s.mu.Lock()
	session, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	util.ActiveSessions.Set(float64(len(s.sessions)))
	s.mu.Unlock()

	if !ok {
		return models.ErrSessionNotFound
	}

	session.mu.Lock()
	session.ticket.Clear()
	session.mu.Unlock()

	s.logger.Info("Session closed",
		zap.String("session_id", id),
		zap.String("user", session.Username))
	return nil
}

// WithTicket runs fn with exclusive access to the session ticket.
// Only employee sessions have a ticket.
func (s *SessionService) WithTicket(id string, fn func(t *ticket.Ticket) error) error {
	session, err := s.Session(id)
	if err != nil {
		return err
	}
	if session.Role != models.RoleEmployee {
		return models.ErrForbidden
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	return fn(session.ticket)
}

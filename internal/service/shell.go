package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"courier-dashboard/internal/domain"
	"courier-dashboard/internal/session"
)

// SessionTTL is how long a session lasts when "remember me" is not requested.
const SessionTTL = 8 * time.Hour

// SessionStore is the persisted session capability the shell drives.
type SessionStore interface {
	Load(ctx context.Context, id string) (*domain.Session, error)
	Save(ctx context.Context, id string, user domain.SessionUser, expiresAt time.Time) error
	Clear(ctx context.Context, id string) error
}

// State is what the shell resolves for a client: either anonymous (login) or
// authenticated with a live session (dashboard).
type State struct {
	Authenticated bool
	Session       *domain.Session
}

// Shell decides between the login and the dashboard and owns session creation and removal.
type Shell struct {
	sessions SessionStore
	location *time.Location
	now      func() time.Time
	newID    func() string
	logger   logrus.FieldLogger
}

type ShellOption func(*Shell)

// WithLocation sets the time zone "end of day" is computed in.
func WithLocation(loc *time.Location) ShellOption {
	return func(s *Shell) {
		if loc != nil {
			s.location = loc
		}
	}
}

func WithShellClock(now func() time.Time) ShellOption {
	return func(s *Shell) { s.now = now }
}

func WithSessionIDs(newID func() string) ShellOption {
	return func(s *Shell) { s.newID = newID }
}

func WithShellLogger(logger logrus.FieldLogger) ShellOption {
	return func(s *Shell) { s.logger = logger }
}

func NewShell(sessions SessionStore, opts ...ShellOption) *Shell {
	s := &Shell{
		sessions: sessions,
		location: time.Local,
		now:      time.Now,
		newID:    uuid.NewString,
		logger:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnStartup resolves the state for a client presenting sessionID. Store failures
// fall back to the anonymous state.
func (s *Shell) OnStartup(ctx context.Context, sessionID string) State {
	if sessionID == "" {
		return State{}
	}
	sess, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, session.ErrNoSession) {
			s.logger.WithError(err).WithField("session_id", sessionID).Warn("session store unavailable, treating as anonymous")
		}
		return State{}
	}
	return State{Authenticated: true, Session: sess}
}

// OnLoginSuccess opens a new session for user.
func (s *Shell) OnLoginSuccess(ctx context.Context, user *domain.User, rememberMe bool) (*domain.Session, error) {
	if user == nil {
		return nil, errors.New("user is required")
	}
	sess := &domain.Session{
		ID:        s.newID(),
		User:      domain.NewSessionUser(user),
		ExpiresAt: SessionExpiry(s.now(), s.location, rememberMe),
	}
	if err := s.sessions.Save(ctx, sess.ID, sess.User, sess.ExpiresAt); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"login_id":    user.LoginID,
		"remember_me": rememberMe,
		"expires_at":  sess.ExpiresAt.Format(time.RFC3339),
	}).Info("session opened")
	return sess, nil
}

// OnLogout removes the session; the client is anonymous afterwards.
func (s *Shell) OnLogout(ctx context.Context, sessionID string) error {
	if err := s.sessions.Clear(ctx, sessionID); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// SessionExpiry returns the end of now's calendar day in loc (23:59:59.999) when
// rememberMe is set, and now plus SessionTTL otherwise.
func SessionExpiry(now time.Time, loc *time.Location, rememberMe bool) time.Time {
	if !rememberMe {
		return now.Add(SessionTTL)
	}
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	y, m, d := local.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), loc)
}

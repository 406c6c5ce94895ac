// Package session persists login sessions as two key-value entries per session:
// the user marker and the expiry in epoch milliseconds.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"courier-dashboard/internal/domain"
	"courier-dashboard/internal/kv"
)

const (
	DefaultKeyPrefix = "courier:session:"

	userSuffix   = ":user"
	expirySuffix = ":expiry"

	minTTL = time.Millisecond
)

// ErrNoSession is returned by Load when no live session exists for the id.
var ErrNoSession = errors.New("no session")

// Store implements the session lifecycle on top of a kv.Store.
// Expiry is enforced lazily, only when a session is loaded.
type Store struct {
	kv        kv.Store
	keyPrefix string
	now       func() time.Time
	logger    logrus.FieldLogger
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithKeyPrefix(prefix string) Option {
	return func(s *Store) { s.keyPrefix = prefix }
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Store) { s.logger = logger }
}

func NewStore(store kv.Store, opts ...Option) *Store {
	s := &Store{
		kv:        store,
		keyPrefix: DefaultKeyPrefix,
		now:       time.Now,
		logger:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load returns the live session for id. A missing entry yields ErrNoSession. An
// expired or unreadable session is deleted before ErrNoSession is returned.
func (s *Store) Load(ctx context.Context, id string) (*domain.Session, error) {
	if id == "" {
		return nil, ErrNoSession
	}
	userKey, expiryKey := s.keys(id)

	rawUser, err := s.kv.Get(ctx, userKey)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("load session user: %w", err)
	}
	rawExpiry, err := s.kv.Get(ctx, expiryKey)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("load session expiry: %w", err)
	}

	expiresAtMillis, err := strconv.ParseInt(rawExpiry, 10, 64)
	if err != nil {
		s.logger.WithField("session_id", id).Warn("discarding session with malformed expiry")
		return nil, s.discard(ctx, id)
	}
	if s.now().UnixMilli() >= expiresAtMillis {
		return nil, s.discard(ctx, id)
	}

	var user domain.SessionUser
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		s.logger.WithField("session_id", id).WithError(err).Warn("discarding session with malformed user marker")
		return nil, s.discard(ctx, id)
	}

	return &domain.Session{
		ID:        id,
		User:      user,
		ExpiresAt: time.UnixMilli(expiresAtMillis),
	}, nil
}

// Save writes both entries for id, replacing any previous session under that id.
func (s *Store) Save(ctx context.Context, id string, user domain.SessionUser, expiresAt time.Time) error {
	if id == "" {
		return errors.New("session id is required")
	}
	payload, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode session user: %w", err)
	}

	// A zero ttl means "never expire" to the backends, so an already expired
	// session still gets the shortest ttl they can hold.
	ttl := expiresAt.Sub(s.now())
	if ttl < minTTL {
		ttl = minTTL
	}

	userKey, expiryKey := s.keys(id)
	if err := s.kv.Set(ctx, userKey, string(payload), ttl); err != nil {
		return fmt.Errorf("save session user: %w", err)
	}
	if err := s.kv.Set(ctx, expiryKey, strconv.FormatInt(expiresAt.UnixMilli(), 10), ttl); err != nil {
		return fmt.Errorf("save session expiry: %w", err)
	}
	return nil
}

// Clear deletes both entries for id. Clearing an absent session is not an error.
func (s *Store) Clear(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	userKey, expiryKey := s.keys(id)
	if err := s.kv.Delete(ctx, userKey, expiryKey); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (s *Store) discard(ctx context.Context, id string) error {
	if err := s.Clear(ctx, id); err != nil {
		return err
	}
	return ErrNoSession
}

func (s *Store) keys(id string) (string, string) {
	base := s.keyPrefix + id
	return base + userSuffix, base + expirySuffix
}

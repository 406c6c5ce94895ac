package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"courier-dashboard/internal/domain"
)

var (
	// ErrValidation indicates that the login id or the secret was left empty.
	ErrValidation = errors.New("please enter both username and password")
	// ErrInvalidCredentials indicates that no directory entry matched the submitted pair.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrLoginInProgress is returned while an earlier attempt for the same login id is still submitting.
	ErrLoginInProgress = errors.New("login already in progress")
)

// loginLatency is the fixed delay every submitted attempt waits before it resolves.
const loginLatency = time.Second

// Authenticator validates a login id and secret against the credential directory.
type Authenticator interface {
	Authenticate(ctx context.Context, loginID, secret string) (*domain.User, error)
}

type authenticator struct {
	directory CredentialDirectory
	latency   time.Duration

	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewAuthenticator(directory CredentialDirectory) Authenticator {
	return newAuthenticator(directory, loginLatency)
}

func newAuthenticator(directory CredentialDirectory, latency time.Duration) *authenticator {
	return &authenticator{
		directory: directory,
		latency:   latency,
		inflight:  make(map[string]struct{}),
	}
}

// Authenticate checks for empty fields before anything else, then marks the attempt
// as submitting, waits out the fixed latency and looks the pair up.
func (a *authenticator) Authenticate(ctx context.Context, loginID, secret string) (*domain.User, error) {
	if loginID == "" || secret == "" {
		return nil, ErrValidation
	}

	if !a.begin(loginID) {
		return nil, ErrLoginInProgress
	}
	defer a.end(loginID)

	if err := a.wait(ctx); err != nil {
		return nil, err
	}

	user, err := a.directory.FindUser(ctx, loginID, secret)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

func (a *authenticator) begin(loginID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, busy := a.inflight[loginID]; busy {
		return false
	}
	a.inflight[loginID] = struct{}{}
	return true
}

func (a *authenticator) end(loginID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.inflight, loginID)
}

func (a *authenticator) wait(ctx context.Context) error {
	if a.latency <= 0 {
		return nil
	}
	timer := time.NewTimer(a.latency)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

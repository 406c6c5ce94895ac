package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"courier-dashboard/internal/domain"
	"courier-dashboard/internal/repository"
)

// ErrUserNotFound is returned by a CredentialDirectory when no entry matches both
// the login id and the secret. It never says which of the two was wrong.
var ErrUserNotFound = errors.New("user not found")

// CredentialDirectory looks up known users by login id and secret.
type CredentialDirectory interface {
	FindUser(ctx context.Context, loginID, secret string) (*domain.User, error)
}

type userDirectory struct {
	users repository.UserRepository
}

// NewUserDirectory returns a directory backed by stored users with bcrypt secret hashes.
func NewUserDirectory(users repository.UserRepository) CredentialDirectory {
	return &userDirectory{users: users}
}

func (d *userDirectory) FindUser(ctx context.Context, loginID, secret string) (*domain.User, error) {
	user, err := d.users.GetByLoginID(ctx, loginID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.SecretHash), []byte(secret)); err != nil {
		return nil, ErrUserNotFound
	}

	return sanitizeUser(user), nil
}

// HashSecret produces the stored form of a directory secret.
func HashSecret(secret string) (string, error) {
	if secret == "" {
		return "", errors.New("secret must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(hash), nil
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	return &domain.User{
		ID:          user.ID,
		LoginID:     user.LoginID,
		DisplayName: user.DisplayName,
		Role:        user.Role,
		CourierID:   user.CourierID,
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"courier-dashboard/internal/domain"
	"courier-dashboard/internal/repository"
)

var (
	// ErrUserAlreadyExists is returned when adding a login id that is already in the directory.
	ErrUserAlreadyExists = errors.New("user already exists")
	// ErrInvalidLoginID is returned for login ids that cannot name an export folder.
	ErrInvalidLoginID = errors.New("login id must not contain '/', '\\' or '..'")
)

// NewUser describes a directory entry to add.
type NewUser struct {
	LoginID     string
	Secret      string
	DisplayName string
	Role        domain.Role
	CourierID   string
}

// UserService administers the credential directory.
type UserService interface {
	Register(ctx context.Context, in NewUser) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
}

type userService struct {
	users repository.UserRepository
}

func NewUserService(users repository.UserRepository) UserService {
	return &userService{users: users}
}

func (s *userService) Register(ctx context.Context, in NewUser) (*domain.User, error) {
	in.LoginID = strings.TrimSpace(in.LoginID)
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	in.CourierID = strings.TrimSpace(in.CourierID)

	if in.LoginID == "" {
		return nil, errors.New("login id is required")
	}
	if strings.ContainsAny(in.LoginID, `/\`) || strings.Contains(in.LoginID, "..") {
		return nil, ErrInvalidLoginID
	}
	if in.Secret == "" {
		return nil, errors.New("secret is required")
	}
	if !in.Role.Valid() {
		return nil, fmt.Errorf("unknown role %q", in.Role)
	}
	if in.Role == domain.RoleCourier && in.CourierID == "" {
		return nil, errors.New("courier id is required for couriers")
	}
	if in.Role != domain.RoleCourier {
		in.CourierID = ""
	}
	if in.DisplayName == "" {
		in.DisplayName = in.LoginID
	}

	hash, err := HashSecret(in.Secret)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		LoginID:     in.LoginID,
		SecretHash:  hash,
		DisplayName: in.DisplayName,
		Role:        in.Role,
		CourierID:   in.CourierID,
	}
	if _, err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, ErrUserAlreadyExists
		}
		return nil, err
	}

	return sanitizeUser(user), nil
}

func (s *userService) List(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.User, len(users))
	for i := range users {
		out[i] = *sanitizeUser(&users[i])
	}
	return out, nil
}

package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"courier-dashboard/internal/domain"
	"courier-dashboard/internal/repository"
)

type memoryUserRepo struct {
	mu    sync.Mutex
	next  int64
	users map[string]domain.User
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: make(map[string]domain.User)}
}

func (r *memoryUserRepo) Init(context.Context) error { return nil }

func (r *memoryUserRepo) Create(_ context.Context, user *domain.User) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.LoginID]; ok {
		return 0, fmt.Errorf("user %s: %w", user.LoginID, repository.ErrAlreadyExists)
	}
	r.next++
	user.ID = r.next
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	r.users[user.LoginID] = *user
	return user.ID, nil
}

func (r *memoryUserRepo) GetByLoginID(_ context.Context, loginID string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[loginID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r *memoryUserRepo) List(context.Context) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryUserRepo) Count(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.users)), nil
}

func mustAddUser(repo *memoryUserRepo, loginID, secret string, role domain.Role, courierID string) {
	hash, err := HashSecret(secret)
	if err != nil {
		panic(err)
	}
	if _, err := repo.Create(context.Background(), &domain.User{
		LoginID:     loginID,
		SecretHash:  hash,
		DisplayName: loginID,
		Role:        role,
		CourierID:   courierID,
	}); err != nil {
		panic(err)
	}
}

type staticSource struct {
	routes []domain.RouteRecord
	scans  []domain.ScanRecord
	err    error
}

func (s staticSource) ListRoutes(context.Context) ([]domain.RouteRecord, error) {
	return s.routes, s.err
}

func (s staticSource) ListScans(context.Context) ([]domain.ScanRecord, error) {
	return s.scans, s.err
}

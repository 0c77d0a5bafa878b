package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"case-console/internal/model"
)

type mockCaseStore struct {
	mock.Mock
}

func (m *mockCaseStore) List(ctx context.Context) ([]model.Case, error) {
	args := m.Called(ctx)
	cases, _ := args.Get(0).([]model.Case)
	return cases, args.Error(1)
}

func (m *mockCaseStore) Create(ctx context.Context, c model.Case) (model.Case, error) {
	args := m.Called(ctx, c)
	return args.Get(0).(model.Case), args.Error(1)
}

func (m *mockCaseStore) Delete(ctx context.Context, id string) (model.Case, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Case), args.Error(1)
}

func (m *mockCaseStore) Reorder(ctx context.Context, ids []string) error {
	args := m.Called(ctx, ids)
	return args.Error(0)
}

type mockUserStore struct {
	mock.Mock
}

func (m *mockUserStore) FindByID(ctx context.Context, id string) (model.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *mockUserStore) FindByUsername(ctx context.Context, username string) (model.User, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *mockUserStore) Create(ctx context.Context, u model.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *mockUserStore) RecordFailedLogin(ctx context.Context, userID string, maxAttempts int, lockout time.Duration) (int, error) {
	args := m.Called(ctx, userID, maxAttempts, lockout)
	return args.Int(0), args.Error(1)
}

func (m *mockUserStore) ResetFailedAttempts(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *mockUserStore) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type mockTokenStore struct {
	mock.Mock
}

func (m *mockTokenStore) Store(ctx context.Context, token string, userID string, expiresAt time.Time) error {
	args := m.Called(ctx, token, userID, expiresAt)
	return args.Error(0)
}

func (m *mockTokenStore) Consume(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}

func (m *mockTokenStore) Revoke(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *mockTokenStore) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockTokenStore) CleanExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

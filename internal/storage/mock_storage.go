package storage

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"
)

type MockImageStore struct {
	mock.Mock
}

func (m *MockImageStore) Put(ctx context.Context, key string, contentType string, body io.Reader) (int64, error) {
	args := m.Called(ctx, key, contentType, body)
	if body != nil {
		_, _ = io.Copy(io.Discard, body)
	}
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockImageStore) Open(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, ObjectInfo{}, args.Error(2)
	}
	return args.Get(0).(io.ReadCloser), args.Get(1).(ObjectInfo), args.Error(2)
}

func (m *MockImageStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

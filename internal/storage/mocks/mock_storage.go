package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"tumourscan/internal/storage"
)

type MockScanStore struct {
	mock.Mock
}

func (m *MockScanStore) PutScan(ctx context.Context, scan storage.Scan) (storage.StoredScan, error) {
	args := m.Called(ctx, scan)
	if f, ok := args.Get(0).(func(storage.Scan) storage.StoredScan); ok {
		return f(scan), args.Error(1)
	}
	return args.Get(0).(storage.StoredScan), args.Error(1)
}

func (m *MockScanStore) RemoveScan(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockScanStore) DownloadURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	args := m.Called(ctx, key, expiry)
	return args.String(0), args.Error(1)
}

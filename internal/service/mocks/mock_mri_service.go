package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"tumourscan/internal/model"
	"tumourscan/internal/service"
)

type MockMRIService struct {
	mock.Mock
}

func (m *MockMRIService) Upload(ctx context.Context, in service.UploadInput) (*model.MRIImage, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MRIImage), args.Error(1)
}

func (m *MockMRIService) Get(ctx context.Context, id string) (*model.MRIImage, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MRIImage), args.Error(1)
}

func (m *MockMRIService) ListByPatient(ctx context.Context, patientID string) ([]model.MRIImage, error) {
	args := m.Called(ctx, patientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.MRIImage), args.Error(1)
}

func (m *MockMRIService) DownloadURL(ctx context.Context, id string) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

func (m *MockMRIService) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

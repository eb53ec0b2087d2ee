package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"tumourscan/internal/model"
)

type MockMRIImageRepository struct {
	mock.Mock
}

func (m *MockMRIImageRepository) Create(ctx context.Context, img *model.MRIImage) (*model.MRIImage, error) {
	args := m.Called(ctx, img)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MRIImage), args.Error(1)
}

func (m *MockMRIImageRepository) FindByID(ctx context.Context, id string) (*model.MRIImage, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MRIImage), args.Error(1)
}

func (m *MockMRIImageRepository) ListByPatient(ctx context.Context, patientID string) ([]model.MRIImage, error) {
	args := m.Called(ctx, patientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.MRIImage), args.Error(1)
}

func (m *MockMRIImageRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockMRIImageRepository) MarkProcessing(ctx context.Context, id string, staleAfter time.Duration) error {
	args := m.Called(ctx, id, staleAfter)
	return args.Error(0)
}

func (m *MockMRIImageRepository) FinishProcessing(ctx context.Context, id string, status model.ProcessingStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

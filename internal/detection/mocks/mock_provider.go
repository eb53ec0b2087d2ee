package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"tumourscan/internal/detection"
	"tumourscan/internal/model"
)

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) DetectTumour(ctx context.Context, image *model.MRIImage) (*detection.TumourResult, error) {
	args := m.Called(ctx, image)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*detection.TumourResult), args.Error(1)
}

func (m *MockProvider) DetectBiomarkers(ctx context.Context, analysis *model.TumourAnalysis) ([]model.Biomarker, error) {
	args := m.Called(ctx, analysis)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Biomarker), args.Error(1)
}

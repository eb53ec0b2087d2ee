package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"tumourscan/internal/model"
)

type MockAnalysisService struct {
	mock.Mock
}

func (m *MockAnalysisService) DetectTumour(ctx context.Context, imageID, userID string) (*model.AnalysisDetail, error) {
	args := m.Called(ctx, imageID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AnalysisDetail), args.Error(1)
}

func (m *MockAnalysisService) DetectBiomarkers(ctx context.Context, analysisID string) ([]model.Biomarker, error) {
	args := m.Called(ctx, analysisID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Biomarker), args.Error(1)
}

func (m *MockAnalysisService) GetAnalysis(ctx context.Context, id string) (*model.AnalysisDetail, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AnalysisDetail), args.Error(1)
}

func (m *MockAnalysisService) GetPatientAnalyses(ctx context.Context, patientID string) ([]model.AnalysisDetail, error) {
	args := m.Called(ctx, patientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.AnalysisDetail), args.Error(1)
}

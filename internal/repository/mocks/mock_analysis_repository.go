package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"tumourscan/internal/model"
)

type MockAnalysisRepository struct {
	mock.Mock
}

func (m *MockAnalysisRepository) Create(ctx context.Context, a *model.TumourAnalysis) (*model.TumourAnalysis, error) {
	args := m.Called(ctx, a)
	if f, ok := args.Get(0).(func(*model.TumourAnalysis) *model.TumourAnalysis); ok {
		return f(a), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TumourAnalysis), args.Error(1)
}

func (m *MockAnalysisRepository) FindByID(ctx context.Context, id string) (*model.TumourAnalysis, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TumourAnalysis), args.Error(1)
}

func (m *MockAnalysisRepository) FindDetailedByID(ctx context.Context, id string) (*model.AnalysisDetail, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AnalysisDetail), args.Error(1)
}

func (m *MockAnalysisRepository) ListDetailedByPatient(ctx context.Context, patientID string) ([]model.AnalysisDetail, error) {
	args := m.Called(ctx, patientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.AnalysisDetail), args.Error(1)
}

func (m *MockAnalysisRepository) AppendBiomarkers(ctx context.Context, analysisID string, bms []model.Biomarker) ([]model.Biomarker, error) {
	args := m.Called(ctx, analysisID, bms)
	if f, ok := args.Get(0).(func([]model.Biomarker) []model.Biomarker); ok {
		return f(bms), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Biomarker), args.Error(1)
}

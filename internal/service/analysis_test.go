package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tumourscan/internal/detection"
	detMocks "tumourscan/internal/detection/mocks"
	"tumourscan/internal/logger"
	"tumourscan/internal/model"
	"tumourscan/internal/repository"
	repoMocks "tumourscan/internal/repository/mocks"
)

const (
	testImageID    = "6f1c2a9e-3b7d-4c1e-9a55-0d2f8e4b7a10"
	testPatientID  = "b2d4e6f8-1a3c-4e5f-8a7b-9c0d1e2f3a4b"
	testUserID     = "0a1b2c3d-4e5f-4a6b-8c7d-9e0f1a2b3c4d"
	testAnalysisID = "c3d5e7f9-2b4d-4f6a-9b8c-0d1e2f3a4b5c"

	testStaleAfter = 3 * time.Minute
)

type analysisFixture struct {
	images   *repoMocks.MockMRIImageRepository
	analyses *repoMocks.MockAnalysisRepository
	provider *detMocks.MockProvider
	metrics  *Metrics
	svc      AnalysisService
}

func newAnalysisFixture() *analysisFixture {
	f := &analysisFixture{
		images:   new(repoMocks.MockMRIImageRepository),
		analyses: new(repoMocks.MockAnalysisRepository),
		provider: new(detMocks.MockProvider),
		metrics:  MustNewMetrics(prometheus.NewRegistry()),
	}
	f.svc = NewAnalysisService(f.images, f.analyses, f.provider, testStaleAfter, f.metrics, logger.Discard())
	return f
}

func (f *analysisFixture) assertExpectations(t *testing.T) {
	f.images.AssertExpectations(t)
	f.analyses.AssertExpectations(t)
	f.provider.AssertExpectations(t)
}

func testImage() *model.MRIImage {
	return &model.MRIImage{
		ID:               testImageID,
		PatientID:        testPatientID,
		ScanType:         model.ScanT1,
		ProcessingStatus: model.StatusPending,
	}
}

func detectedResult() *detection.TumourResult {
	return &detection.TumourResult{
		Detection: model.DetectionResults{
			TumourDetected: true,
			Confidence:     0.91,
			Location:       &model.Location{X: 120, Y: 88, Z: 40},
			Size: &model.TumourSize{
				Volume:     1520.5,
				Dimensions: model.Dimensions{Length: 18.2, Width: 14.1, Height: 11.7},
			},
		},
		Phenotype: &model.Phenotype{
			Shape:         "Irregular",
			Texture:       "Heterogeneous",
			Intensity:     0.62,
			Heterogeneity: 0.48,
			Enhancement:   "Ring-enhancing",
		},
		Classification: &model.Classification{
			Type:       "Glioblastoma",
			Grade:      "Grade IV",
			Malignancy: "High-grade malignant",
		},
		Risk: model.RiskAssessment{
			ProgressionRisk: model.RiskHigh,
			RecurrenceRisk:  model.RiskModerate,
			Score:           78,
		},
	}
}

func clearResult() *detection.TumourResult {
	return &detection.TumourResult{
		Detection: model.DetectionResults{TumourDetected: false, Confidence: 0.34},
		Risk: model.RiskAssessment{
			ProgressionRisk: model.RiskLow,
			RecurrenceRisk:  model.RiskLow,
			Score:           7,
		},
	}
}

func TestAnalysisService_DetectTumour(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path - detected", func(t *testing.T) {
		f := newAnalysisFixture()
		f.images.On("FindByID", mock.Anything, testImageID).Return(testImage(), nil)
		f.images.On("MarkProcessing", mock.Anything, testImageID, testStaleAfter).Return(nil)
		f.provider.On("DetectTumour", mock.Anything, mock.Anything).Return(detectedResult(), nil)

		var created *model.TumourAnalysis
		f.analyses.On("Create", mock.Anything, mock.MatchedBy(func(a *model.TumourAnalysis) bool {
			return a.MRIImageID == testImageID && a.PatientID == testPatientID && a.AnalyzedBy == testUserID
		})).Return(func(a *model.TumourAnalysis) *model.TumourAnalysis {
			created = a
			return a
		}, nil)
		f.images.On("FinishProcessing", mock.Anything, testImageID, model.StatusCompleted).Return(nil)
		f.analyses.On("FindDetailedByID", mock.Anything, mock.AnythingOfType("string")).
			Return(&model.AnalysisDetail{
				TumourAnalysis: model.TumourAnalysis{ID: "stored", DetectionResults: detectedResult().Detection},
				Biomarkers:     []model.Biomarker{},
			}, nil)

		detail, err := f.svc.DetectTumour(ctx, testImageID, testUserID)

		require.NoError(t, err)
		require.NotNil(t, detail)
		assert.True(t, detail.DetectionResults.TumourDetected)

		require.NotNil(t, created)
		assert.NotEmpty(t, created.ID)
		assert.NotNil(t, created.BiomarkerIDs)
		assert.Empty(t, created.BiomarkerIDs)
		assert.Equal(t, created.AnalysisDate, created.CreatedAt)
		f.analyses.AssertCalled(t, "FindDetailedByID", mock.Anything, created.ID)
		f.images.AssertNotCalled(t, "FinishProcessing", mock.Anything, testImageID, model.StatusFailed)

		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.tumourDetections.WithLabelValues(outcomeDetected)))
		assert.Equal(t, 1, testutil.CollectAndCount(f.metrics.inferenceDuration))
		f.assertExpectations(t)
	})

	t.Run("happy path - clear scan has no phenotype", func(t *testing.T) {
		f := newAnalysisFixture()
		f.images.On("FindByID", mock.Anything, testImageID).Return(testImage(), nil)
		f.images.On("MarkProcessing", mock.Anything, testImageID, testStaleAfter).Return(nil)
		f.provider.On("DetectTumour", mock.Anything, mock.Anything).Return(clearResult(), nil)
		f.analyses.On("Create", mock.Anything, mock.MatchedBy(func(a *model.TumourAnalysis) bool {
			return a.Phenotype == nil && a.Classification == nil && a.DetectionResults.Location == nil
		})).Return(func(a *model.TumourAnalysis) *model.TumourAnalysis { return a }, nil)
		f.images.On("FinishProcessing", mock.Anything, testImageID, model.StatusCompleted).Return(nil)
		f.analyses.On("FindDetailedByID", mock.Anything, mock.Anything).
			Return(&model.AnalysisDetail{TumourAnalysis: model.TumourAnalysis{DetectionResults: clearResult().Detection}}, nil)

		detail, err := f.svc.DetectTumour(ctx, testImageID, testUserID)

		require.NoError(t, err)
		assert.False(t, detail.DetectionResults.TumourDetected)
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.tumourDetections.WithLabelValues(outcomeClear)))
		f.assertExpectations(t)
	})

	t.Run("image not found leaves everything untouched", func(t *testing.T) {
		f := newAnalysisFixture()
		f.images.On("FindByID", mock.Anything, testImageID).Return(nil, sql.ErrNoRows)

		detail, err := f.svc.DetectTumour(ctx, testImageID, testUserID)

		assert.ErrorIs(t, err, ErrImageNotFound)
		assert.Nil(t, detail)
		f.images.AssertNotCalled(t, "MarkProcessing", mock.Anything, mock.Anything, mock.Anything)
		f.images.AssertNotCalled(t, "FinishProcessing", mock.Anything, mock.Anything, mock.Anything)
		f.analyses.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		f.provider.AssertNotCalled(t, "DetectTumour", mock.Anything, mock.Anything)
		f.assertExpectations(t)
	})

	t.Run("analysis already in progress", func(t *testing.T) {
		f := newAnalysisFixture()
		f.images.On("FindByID", mock.Anything, testImageID).Return(testImage(), nil)
		f.images.On("MarkProcessing", mock.Anything, testImageID, testStaleAfter).Return(repository.ErrStatusConflict)

		_, err := f.svc.DetectTumour(ctx, testImageID, testUserID)

		assert.ErrorIs(t, err, ErrAnalysisInProgress)
		f.provider.AssertNotCalled(t, "DetectTumour", mock.Anything, mock.Anything)
		f.images.AssertNotCalled(t, "FinishProcessing", mock.Anything, mock.Anything, mock.Anything)
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.tumourDetections.WithLabelValues(outcomeConflict)))
		f.assertExpectations(t)
	})

	t.Run("provider timeout marks image failed", func(t *testing.T) {
		f := newAnalysisFixture()
		f.images.On("FindByID", mock.Anything, testImageID).Return(testImage(), nil)
		f.images.On("MarkProcessing", mock.Anything, testImageID, testStaleAfter).Return(nil)
		f.provider.On("DetectTumour", mock.Anything, mock.Anything).
			Return(nil, fmt.Errorf("%w after 10s", detection.ErrInferenceTimeout))
		f.images.On("FinishProcessing", mock.Anything, testImageID, model.StatusFailed).Return(nil)

		_, err := f.svc.DetectTumour(ctx, testImageID, testUserID)

		assert.ErrorIs(t, err, detection.ErrInferenceTimeout)
		f.analyses.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.tumourDetections.WithLabelValues(outcomeTimeout)))
		f.assertExpectations(t)
	})

	t.Run("failed mark survives a cancelled request", func(t *testing.T) {
		f := newAnalysisFixture()
		cctx, cancel := context.WithCancel(ctx)
		f.images.On("FindByID", mock.Anything, testImageID).Return(testImage(), nil)
		f.images.On("MarkProcessing", mock.Anything, testImageID, testStaleAfter).Return(nil)
		f.provider.On("DetectTumour", mock.Anything, mock.Anything).
			Run(func(mock.Arguments) { cancel() }).
			Return(nil, context.Canceled)
		f.images.On("FinishProcessing", mock.MatchedBy(func(c context.Context) bool {
			return c.Err() == nil
		}), testImageID, model.StatusFailed).Return(nil)

		_, err := f.svc.DetectTumour(cctx, testImageID, testUserID)

		assert.ErrorIs(t, err, context.Canceled)
		f.assertExpectations(t)
	})

	t.Run("save failure marks image failed", func(t *testing.T) {
		f := newAnalysisFixture()
		f.images.On("FindByID", mock.Anything, testImageID).Return(testImage(), nil)
		f.images.On("MarkProcessing", mock.Anything, testImageID, testStaleAfter).Return(nil)
		f.provider.On("DetectTumour", mock.Anything, mock.Anything).Return(detectedResult(), nil)
		f.analyses.On("Create", mock.Anything, mock.Anything).Return(nil, errors.New("db fail"))
		f.images.On("FinishProcessing", mock.Anything, testImageID, model.StatusFailed).Return(nil)

		_, err := f.svc.DetectTumour(ctx, testImageID, testUserID)

		assert.ErrorContains(t, err, "save analysis: db fail")
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.tumourDetections.WithLabelValues(outcomeFailed)))
		f.assertExpectations(t)
	})

	t.Run("inconsistent provider result is rejected", func(t *testing.T) {
		f := newAnalysisFixture()
		bad := clearResult()
		bad.Phenotype = detectedResult().Phenotype
		f.images.On("FindByID", mock.Anything, testImageID).Return(testImage(), nil)
		f.images.On("MarkProcessing", mock.Anything, testImageID, testStaleAfter).Return(nil)
		f.provider.On("DetectTumour", mock.Anything, mock.Anything).Return(bad, nil)
		f.images.On("FinishProcessing", mock.Anything, testImageID, model.StatusFailed).Return(nil)

		_, err := f.svc.DetectTumour(ctx, testImageID, testUserID)

		assert.ErrorIs(t, err, ErrInvalidProviderResult)
		var verrs validation.Errors
		assert.False(t, errors.As(err, &verrs), "provider faults must not surface as request validation errors")
		f.analyses.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		f.assertExpectations(t)
	})

	t.Run("detected result without phenotype is a provider fault", func(t *testing.T) {
		f := newAnalysisFixture()
		bad := detectedResult()
		bad.Phenotype = nil
		bad.Classification = nil
		f.images.On("FindByID", mock.Anything, testImageID).Return(testImage(), nil)
		f.images.On("MarkProcessing", mock.Anything, testImageID, testStaleAfter).Return(nil)
		f.provider.On("DetectTumour", mock.Anything, mock.Anything).Return(bad, nil)
		f.images.On("FinishProcessing", mock.Anything, testImageID, model.StatusFailed).Return(nil)

		_, err := f.svc.DetectTumour(ctx, testImageID, testUserID)

		assert.ErrorIs(t, err, ErrInvalidProviderResult)
		assert.ErrorContains(t, err, "phenotype")
		var verrs validation.Errors
		assert.False(t, errors.As(err, &verrs))
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.tumourDetections.WithLabelValues(outcomeFailed)))
		f.assertExpectations(t)
	})

	t.Run("reload failure still returns the stored analysis", func(t *testing.T) {
		f := newAnalysisFixture()
		f.images.On("FindByID", mock.Anything, testImageID).Return(testImage(), nil)
		f.images.On("MarkProcessing", mock.Anything, testImageID, testStaleAfter).Return(nil)
		f.provider.On("DetectTumour", mock.Anything, mock.Anything).Return(detectedResult(), nil)
		f.analyses.On("Create", mock.Anything, mock.Anything).
			Return(func(a *model.TumourAnalysis) *model.TumourAnalysis { return a }, nil)
		f.images.On("FinishProcessing", mock.Anything, testImageID, model.StatusCompleted).Return(nil)
		f.analyses.On("FindDetailedByID", mock.Anything, mock.Anything).
			Return(nil, errors.New("read replica lagging"))

		detail, err := f.svc.DetectTumour(ctx, testImageID, testUserID)

		require.NoError(t, err)
		require.NotNil(t, detail)
		assert.NotEmpty(t, detail.ID)
		assert.Equal(t, testImageID, detail.MRIImageID)
		assert.True(t, detail.DetectionResults.TumourDetected)
		assert.NotNil(t, detail.Biomarkers)
		assert.Nil(t, detail.Patient)
		f.images.AssertNotCalled(t, "FinishProcessing", mock.Anything, testImageID, model.StatusFailed)
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.tumourDetections.WithLabelValues(outcomeDetected)))
		f.assertExpectations(t)
	})

	t.Run("default stale bound applies when unset", func(t *testing.T) {
		f := newAnalysisFixture()
		svc := NewAnalysisService(f.images, f.analyses, f.provider, 0, f.metrics, logger.Discard())
		f.images.On("FindByID", mock.Anything, testImageID).Return(testImage(), nil)
		f.images.On("MarkProcessing", mock.Anything, testImageID, DefaultStaleAfter).Return(repository.ErrStatusConflict)

		_, err := svc.DetectTumour(ctx, testImageID, testUserID)

		assert.ErrorIs(t, err, ErrAnalysisInProgress)
		f.assertExpectations(t)
	})

	t.Run("lost completed write is not an error", func(t *testing.T) {
		f := newAnalysisFixture()
		f.images.On("FindByID", mock.Anything, testImageID).Return(testImage(), nil)
		f.images.On("MarkProcessing", mock.Anything, testImageID, testStaleAfter).Return(nil)
		f.provider.On("DetectTumour", mock.Anything, mock.Anything).Return(clearResult(), nil)
		f.analyses.On("Create", mock.Anything, mock.Anything).
			Return(func(a *model.TumourAnalysis) *model.TumourAnalysis { return a }, nil)
		f.images.On("FinishProcessing", mock.Anything, testImageID, model.StatusCompleted).
			Return(repository.ErrStatusConflict)
		f.analyses.On("FindDetailedByID", mock.Anything, mock.Anything).
			Return(&model.AnalysisDetail{}, nil)

		_, err := f.svc.DetectTumour(ctx, testImageID, testUserID)

		assert.NoError(t, err)
		f.images.AssertNotCalled(t, "FinishProcessing", mock.Anything, testImageID, model.StatusFailed)
		f.assertExpectations(t)
	})
}

func TestAnalysisService_DetectTumour_InvalidID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr error
	}{
		{name: "empty id", id: "", wantErr: ErrIDRequired},
		{name: "malformed id", id: "not-a-uuid", wantErr: ErrInvalidID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAnalysisFixture()

			_, err := f.svc.DetectTumour(context.Background(), tt.id, testUserID)

			assert.ErrorIs(t, err, tt.wantErr)
			f.images.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
		})
	}
}

func TestAnalysisService_DetectBiomarkers(t *testing.T) {
	ctx := context.Background()
	analysis := &model.TumourAnalysis{ID: testAnalysisID, MRIImageID: testImageID, PatientID: testPatientID}

	tests := []struct {
		name       string
		id         string
		setupMocks func(f *analysisFixture)
		wantErr    error
		wantLen    int
		wantLabel  string
	}{
		{
			name: "happy path stores five biomarkers",
			id:   testAnalysisID,
			setupMocks: func(f *analysisFixture) {
				f.analyses.On("FindByID", mock.Anything, testAnalysisID).Return(analysis, nil)
				f.provider.On("DetectBiomarkers", mock.Anything, analysis).
					Return(detection.NewGenerator(detection.NewSource(42)).Biomarkers(), nil)
				f.analyses.On("AppendBiomarkers", mock.Anything, testAnalysisID, mock.MatchedBy(func(bms []model.Biomarker) bool {
					for _, b := range bms {
						if b.ID == "" || b.AnalysisID != testAnalysisID || b.CreatedAt.IsZero() {
							return false
						}
					}
					return len(bms) == 5
				})).Return(func(bms []model.Biomarker) []model.Biomarker { return bms }, nil)
			},
			wantLen:   5,
			wantLabel: outcomeCreated,
		},
		{
			name: "empty provider result stores nothing",
			id:   testAnalysisID,
			setupMocks: func(f *analysisFixture) {
				f.analyses.On("FindByID", mock.Anything, testAnalysisID).Return(analysis, nil)
				f.provider.On("DetectBiomarkers", mock.Anything, analysis).Return([]model.Biomarker{}, nil)
			},
			wantLen:   0,
			wantLabel: outcomeEmpty,
		},
		{
			name: "analysis not found",
			id:   testAnalysisID,
			setupMocks: func(f *analysisFixture) {
				f.analyses.On("FindByID", mock.Anything, testAnalysisID).Return(nil, sql.ErrNoRows)
			},
			wantErr: ErrAnalysisNotFound,
		},
		{
			name:       "malformed id",
			id:         "abc",
			setupMocks: func(f *analysisFixture) {},
			wantErr:    ErrInvalidID,
		},
		{
			name: "analysis removed before append",
			id:   testAnalysisID,
			setupMocks: func(f *analysisFixture) {
				f.analyses.On("FindByID", mock.Anything, testAnalysisID).Return(analysis, nil)
				f.provider.On("DetectBiomarkers", mock.Anything, analysis).
					Return(detection.NewGenerator(detection.NewSource(7)).Biomarkers(), nil)
				f.analyses.On("AppendBiomarkers", mock.Anything, testAnalysisID, mock.Anything).Return(nil, sql.ErrNoRows)
			},
			wantErr:   ErrAnalysisNotFound,
			wantLabel: outcomeFailed,
		},
		{
			name: "provider unavailable",
			id:   testAnalysisID,
			setupMocks: func(f *analysisFixture) {
				f.analyses.On("FindByID", mock.Anything, testAnalysisID).Return(analysis, nil)
				f.provider.On("DetectBiomarkers", mock.Anything, analysis).Return(nil, detection.ErrProviderUnavailable)
			},
			wantErr:   detection.ErrProviderUnavailable,
			wantLabel: outcomeUnavailable,
		},
		{
			name: "invalid provider biomarker",
			id:   testAnalysisID,
			setupMocks: func(f *analysisFixture) {
				f.analyses.On("FindByID", mock.Anything, testAnalysisID).Return(analysis, nil)
				f.provider.On("DetectBiomarkers", mock.Anything, analysis).Return([]model.Biomarker{
					{Category: model.CategoryGenetic, Value: model.BoolValue(true), Confidence: 0.9},
				}, nil)
			},
			wantErr:   ErrInvalidProviderResult,
			wantLabel: outcomeFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAnalysisFixture()
			tt.setupMocks(f)

			bms, err := f.svc.DetectBiomarkers(ctx, tt.id)

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, bms)
			default:
				require.NoError(t, err)
				assert.NotNil(t, bms)
				assert.Len(t, bms, tt.wantLen)
				if tt.wantLen == 0 {
					f.analyses.AssertNotCalled(t, "AppendBiomarkers", mock.Anything, mock.Anything, mock.Anything)
				}
			}
			if tt.wantLabel != "" {
				assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.biomarkerDetections.WithLabelValues(tt.wantLabel)))
			}
			f.assertExpectations(t)
		})
	}
}

func TestAnalysisService_GetAnalysis(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		id         string
		setupMocks func(r *repoMocks.MockAnalysisRepository)
		wantErr    error
	}{
		{
			name: "happy path",
			id:   testAnalysisID,
			setupMocks: func(r *repoMocks.MockAnalysisRepository) {
				r.On("FindDetailedByID", ctx, testAnalysisID).
					Return(&model.AnalysisDetail{TumourAnalysis: model.TumourAnalysis{ID: testAnalysisID}}, nil)
			},
		},
		{
			name:       "empty id",
			id:         "",
			setupMocks: func(r *repoMocks.MockAnalysisRepository) {},
			wantErr:    ErrIDRequired,
		},
		{
			name: "not found",
			id:   testAnalysisID,
			setupMocks: func(r *repoMocks.MockAnalysisRepository) {
				r.On("FindDetailedByID", ctx, testAnalysisID).Return(nil, sql.ErrNoRows)
			},
			wantErr: ErrAnalysisNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAnalysisFixture()
			tt.setupMocks(f.analyses)

			detail, err := f.svc.GetAnalysis(ctx, tt.id)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, detail)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.id, detail.ID)
			}
			f.analyses.AssertExpectations(t)
		})
	}
}

func TestAnalysisService_GetPatientAnalyses(t *testing.T) {
	ctx := context.Background()
	f := newAnalysisFixture()
	f.analyses.On("ListDetailedByPatient", ctx, testPatientID).Return([]model.AnalysisDetail{
		{TumourAnalysis: model.TumourAnalysis{ID: "newer"}},
		{TumourAnalysis: model.TumourAnalysis{ID: "older"}},
	}, nil)

	list, err := f.svc.GetPatientAnalyses(ctx, testPatientID)

	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, "newer", list[0].ID)

	_, err = f.svc.GetPatientAnalyses(ctx, "nope")
	assert.ErrorIs(t, err, ErrInvalidID)
	f.analyses.AssertExpectations(t)
}

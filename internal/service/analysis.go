package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"tumourscan/internal/detection"
	"tumourscan/internal/model"
	"tumourscan/internal/repository"
)

// failMarkTimeout bounds the Failed write that runs after the request context is gone.
const failMarkTimeout = 5 * time.Second

// DefaultStaleAfter is how long a Processing claim may sit untouched before a new attempt takes it over.
const DefaultStaleAfter = 5 * time.Minute

// AnalysisService runs the detection pipeline and serves stored analyses.
type AnalysisService interface {
	// DetectTumour runs detection on an uploaded image and stores the result.
	// The image moves Pending/terminal -> Processing -> Completed, or Failed on any error after it was claimed.
	DetectTumour(ctx context.Context, imageID, userID string) (*model.AnalysisDetail, error)

	// DetectBiomarkers runs biomarker detection for an existing analysis and links the results to it.
	// An empty provider result is not an error and stores nothing.
	DetectBiomarkers(ctx context.Context, analysisID string) ([]model.Biomarker, error)

	GetAnalysis(ctx context.Context, id string) (*model.AnalysisDetail, error)

	// GetPatientAnalyses returns a patient's analyses, newest first.
	GetPatientAnalyses(ctx context.Context, patientID string) ([]model.AnalysisDetail, error)
}

type analysisService struct {
	images   repository.MRIImageRepository
	analyses repository.AnalysisRepository
	provider detection.Provider
	// staleAfter should exceed the provider timeout so a live attempt is never taken over.
	staleAfter time.Duration
	metrics    *Metrics
	log        logrus.FieldLogger
	tracer     trace.Tracer
	now        func() time.Time
}

// NewAnalysisService wires the detection pipeline. A non-positive staleAfter means DefaultStaleAfter.
func NewAnalysisService(
	images repository.MRIImageRepository,
	analyses repository.AnalysisRepository,
	provider detection.Provider,
	staleAfter time.Duration,
	metrics *Metrics,
	log logrus.FieldLogger,
) AnalysisService {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &analysisService{
		images:     images,
		analyses:   analyses,
		provider:   provider,
		staleAfter: staleAfter,
		metrics:    metrics,
		log:        log.WithField("component", "analysis"),
		tracer:     otel.Tracer("tumourscan/service"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *analysisService) DetectTumour(ctx context.Context, imageID, userID string) (*model.AnalysisDetail, error) {
	ctx, span := s.tracer.Start(ctx, "analysis.DetectTumour",
		trace.WithAttributes(attribute.String("mri_image.id", imageID)))
	defer span.End()

	if err := validateID(imageID); err != nil {
		return nil, err
	}

	img, err := s.images.FindByID(ctx, imageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrImageNotFound
		}
		return nil, fmt.Errorf("find image: %w", err)
	}

	if err := s.images.MarkProcessing(ctx, imageID, s.staleAfter); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			s.metrics.tumourDetections.WithLabelValues(outcomeConflict).Inc()
			return nil, ErrAnalysisInProgress
		}
		return nil, fmt.Errorf("mark processing: %w", err)
	}

	detail, err := s.runTumourDetection(ctx, img, userID)
	if err != nil {
		s.metrics.tumourDetections.WithLabelValues(failureOutcome(err)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "tumour detection failed")
		s.markFailed(ctx, imageID, err)
		return nil, err
	}

	outcome := outcomeClear
	if detail.DetectionResults.TumourDetected {
		outcome = outcomeDetected
	}
	s.metrics.tumourDetections.WithLabelValues(outcome).Inc()
	span.SetAttributes(
		attribute.String("analysis.id", detail.ID),
		attribute.Bool("analysis.tumour_detected", detail.DetectionResults.TumourDetected),
	)
	return detail, nil
}

// runTumourDetection covers everything after the image was claimed. Any error it returns
// leaves the image to be marked Failed by the caller.
func (s *analysisService) runTumourDetection(ctx context.Context, img *model.MRIImage, userID string) (*model.AnalysisDetail, error) {
	start := time.Now()
	res, err := s.provider.DetectTumour(ctx, img)
	s.metrics.inferenceDuration.WithLabelValues("tumour").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("tumour detection: %w", err)
	}

	now := s.now()
	analysis := &model.TumourAnalysis{
		ID:               uuid.NewString(),
		MRIImageID:       img.ID,
		PatientID:        img.PatientID,
		DetectionResults: res.Detection,
		Phenotype:        res.Phenotype,
		Classification:   res.Classification,
		RiskAssessment:   res.Risk,
		BiomarkerIDs:     []string{},
		AnalyzedBy:       userID,
		AnalysisDate:     now,
		CreatedAt:        now,
	}
	if err := analysis.Validate(); err != nil {
		return nil, fmt.Errorf("%w: detection result: %v", ErrInvalidProviderResult, err)
	}

	created, err := s.analyses.Create(ctx, analysis)
	if err != nil {
		return nil, fmt.Errorf("save analysis: %w", err)
	}

	// The analysis is stored; a lost Completed write is logged rather than failing the request.
	if err := s.images.FinishProcessing(ctx, img.ID, model.StatusCompleted); err != nil {
		s.log.WithFields(logrus.Fields{
			"mri_image_id": img.ID,
			"analysis_id":  created.ID,
		}).WithError(err).Warn("could not mark image completed")
	}

	detail, err := s.analyses.FindDetailedByID(ctx, created.ID)
	if err != nil {
		// Stored and marked Completed already: answer with what was written, unresolved.
		s.log.WithFields(logrus.Fields{
			"mri_image_id": img.ID,
			"analysis_id":  created.ID,
		}).WithError(err).Warn("could not reload analysis, returning stored record")
		return &model.AnalysisDetail{TumourAnalysis: *created, Biomarkers: []model.Biomarker{}}, nil
	}
	return detail, nil
}

// markFailed records a Failed status even when ctx was cancelled or timed out.
func (s *analysisService) markFailed(ctx context.Context, imageID string, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failMarkTimeout)
	defer cancel()

	entry := s.log.WithFields(logrus.Fields{"mri_image_id": imageID, "cause": cause.Error()})
	if err := s.images.FinishProcessing(ctx, imageID, model.StatusFailed); err != nil {
		entry.WithError(err).Error("could not mark image failed")
		return
	}
	entry.Warn("tumour detection failed")
}

func (s *analysisService) DetectBiomarkers(ctx context.Context, analysisID string) ([]model.Biomarker, error) {
	ctx, span := s.tracer.Start(ctx, "analysis.DetectBiomarkers",
		trace.WithAttributes(attribute.String("analysis.id", analysisID)))
	defer span.End()

	if err := validateID(analysisID); err != nil {
		return nil, err
	}

	analysis, err := s.analyses.FindByID(ctx, analysisID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAnalysisNotFound
		}
		return nil, fmt.Errorf("find analysis: %w", err)
	}

	bms, err := s.detectBiomarkers(ctx, analysis)
	if err != nil {
		s.metrics.biomarkerDetections.WithLabelValues(failureOutcome(err)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "biomarker detection failed")
		return nil, err
	}
	if len(bms) == 0 {
		s.metrics.biomarkerDetections.WithLabelValues(outcomeEmpty).Inc()
	} else {
		s.metrics.biomarkerDetections.WithLabelValues(outcomeCreated).Inc()
	}
	span.SetAttributes(attribute.Int("biomarkers.count", len(bms)))
	return bms, nil
}

func (s *analysisService) detectBiomarkers(ctx context.Context, analysis *model.TumourAnalysis) ([]model.Biomarker, error) {
	start := time.Now()
	found, err := s.provider.DetectBiomarkers(ctx, analysis)
	s.metrics.inferenceDuration.WithLabelValues("biomarker").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("biomarker detection: %w", err)
	}
	if len(found) == 0 {
		return []model.Biomarker{}, nil
	}

	now := s.now()
	bms := make([]model.Biomarker, len(found))
	for i, b := range found {
		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("%w: biomarker %q: %v", ErrInvalidProviderResult, b.Name, err)
		}
		b.ID = uuid.NewString()
		b.AnalysisID = analysis.ID
		b.CreatedAt = now
		if b.AssociatedGenes == nil {
			b.AssociatedGenes = []string{}
		}
		bms[i] = b
	}

	stored, err := s.analyses.AppendBiomarkers(ctx, analysis.ID, bms)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAnalysisNotFound
		}
		return nil, fmt.Errorf("save biomarkers: %w", err)
	}
	return stored, nil
}

func (s *analysisService) GetAnalysis(ctx context.Context, id string) (*model.AnalysisDetail, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	detail, err := s.analyses.FindDetailedByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAnalysisNotFound
		}
		return nil, err
	}
	return detail, nil
}

func (s *analysisService) GetPatientAnalyses(ctx context.Context, patientID string) ([]model.AnalysisDetail, error) {
	if err := validateID(patientID); err != nil {
		return nil, err
	}
	return s.analyses.ListDetailedByPatient(ctx, patientID)
}

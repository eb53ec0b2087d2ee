// Package repository contains data access layer abstractions.
// Implementations live in subpackages (e.g., postgres) inside this directory.
// Lookups that find nothing return sql.ErrNoRows unchanged; services map it.
package repository

import (
	"context"
	"errors"
	"time"

	"tumourscan/internal/model"
)

// ErrStatusConflict is returned when a conditional status update matched no row.
var ErrStatusConflict = errors.New("processing status precondition failed")

// PageQuery holds limit/offset pagination parameters.
// Search is an optional free-text filter; repositories document what it matches.
type PageQuery struct {
	Limit  int
	Offset int
	Search string
}

// PageResult is a generic pagination result wrapper.
// T is typically a model type.
type PageResult[T any] struct {
	Items []T
	Total int
}

// UserRepository persists accounts.
type UserRepository interface {
	Create(ctx context.Context, u *model.User) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
	// FindByEmail matches case-insensitively.
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

// PatientRepository persists patients.
type PatientRepository interface {
	Create(ctx context.Context, p *model.Patient) (*model.Patient, error)
	FindByID(ctx context.Context, id string) (*model.Patient, error)
	// Update overwrites the patient's mutable fields. It returns sql.ErrNoRows if it does not exist.
	Update(ctx context.Context, p *model.Patient) (*model.Patient, error)
	// Delete removes the patient with its images and analyses. It returns sql.ErrNoRows if it does not exist.
	Delete(ctx context.Context, id string) error
	// List returns patients newest first and the total row count. Search matches
	// first name, last name or patient code case-insensitively.
	List(ctx context.Context, pq PageQuery) (*PageResult[model.Patient], error)
}

// MRIImageRepository persists image records and their processing status.
type MRIImageRepository interface {
	Create(ctx context.Context, img *model.MRIImage) (*model.MRIImage, error)
	FindByID(ctx context.Context, id string) (*model.MRIImage, error)
	// ListByPatient returns a patient's images newest first.
	ListByPatient(ctx context.Context, patientID string) ([]model.MRIImage, error)
	// Delete removes an image by ID. It returns nil if the row was deleted or did not exist.
	Delete(ctx context.Context, id string) error

	// MarkProcessing moves an image into Processing unless an attempt is already running.
	// A Processing claim untouched for longer than staleAfter counts as abandoned and is taken over.
	// It returns ErrStatusConflict when the image is Processing or no longer exists.
	MarkProcessing(ctx context.Context, id string, staleAfter time.Duration) error
	// FinishProcessing moves a Processing image to a terminal status.
	// It returns ErrStatusConflict when the image is not Processing.
	FinishProcessing(ctx context.Context, id string, status model.ProcessingStatus) error
}

// AnalysisRepository persists tumour analyses and their biomarkers.
type AnalysisRepository interface {
	Create(ctx context.Context, a *model.TumourAnalysis) (*model.TumourAnalysis, error)
	FindByID(ctx context.Context, id string) (*model.TumourAnalysis, error)
	// FindDetailedByID returns the analysis with image, patient, analyst and biomarkers resolved.
	FindDetailedByID(ctx context.Context, id string) (*model.AnalysisDetail, error)
	// ListDetailedByPatient returns a patient's analyses newest first, resolved like FindDetailedByID.
	ListDetailedByPatient(ctx context.Context, patientID string) ([]model.AnalysisDetail, error)
	// AppendBiomarkers stores the biomarkers and appends their ids to the analysis in one
	// transaction. It returns sql.ErrNoRows, storing nothing, if the analysis does not exist.
	AppendBiomarkers(ctx context.Context, analysisID string, bms []model.Biomarker) ([]model.Biomarker, error)
}

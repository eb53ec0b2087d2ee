package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/google/uuid"

	"tumourscan/internal/model"
	"tumourscan/internal/repository"
	"tumourscan/internal/storage"
)

// UploadInput describes one MRI upload.
type UploadInput struct {
	Body        io.Reader
	FileName    string
	ContentType string
	Size        int64
	PatientID   string
	ScanType    string
	// ScanDate defaults to the upload time when zero.
	ScanDate   time.Time
	UploadedBy string
}

// UploadLimits bounds accepted uploads.
type UploadLimits struct {
	MaxFileSize      int64
	AllowedMimeTypes []string
	PresignExpiry    time.Duration
}

// MRIService manages uploaded scans in object storage and their records.
type MRIService interface {
	// Upload stores the scan, then its record. The stored object is removed again if the record cannot be saved.
	Upload(ctx context.Context, in UploadInput) (*model.MRIImage, error)
	Get(ctx context.Context, id string) (*model.MRIImage, error)
	// ListByPatient returns a patient's images, newest first.
	ListByPatient(ctx context.Context, patientID string) ([]model.MRIImage, error)
	// DownloadURL returns a time-limited link to the stored scan.
	DownloadURL(ctx context.Context, id string) (string, error)
	// Delete removes the stored object first, then the record.
	Delete(ctx context.Context, id string) error
}

type mriService struct {
	store    storage.ScanStore
	images   repository.MRIImageRepository
	patients repository.PatientRepository
	limits   UploadLimits
	now      func() time.Time
}

func NewMRIService(store storage.ScanStore, images repository.MRIImageRepository, patients repository.PatientRepository, limits UploadLimits) MRIService {
	if limits.PresignExpiry <= 0 {
		limits.PresignExpiry = time.Hour
	}
	return &mriService{
		store:    store,
		images:   images,
		patients: patients,
		limits:   limits,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *mriService) Upload(ctx context.Context, in UploadInput) (*model.MRIImage, error) {
	if in.Body == nil {
		return nil, ErrReaderNil
	}
	if err := validateID(in.PatientID); err != nil {
		return nil, err
	}
	scanType := model.ScanType(in.ScanType)
	if !slices.Contains(model.ScanTypes, scanType) {
		return nil, ErrInvalidScanType
	}
	if len(s.limits.AllowedMimeTypes) > 0 && !slices.Contains(s.limits.AllowedMimeTypes, in.ContentType) {
		return nil, ErrUnsupportedFileType
	}
	if s.limits.MaxFileSize > 0 && in.Size > s.limits.MaxFileSize {
		return nil, ErrFileTooLarge
	}

	if _, err := s.patients.FindByID(ctx, in.PatientID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("find patient: %w", err)
	}

	id := uuid.NewString()
	stored, err := s.store.PutScan(ctx, storage.Scan{
		Key:         storage.ScanKey(in.PatientID, id, in.FileName),
		Body:        in.Body,
		Size:        in.Size,
		ContentType: in.ContentType,
		Meta: storage.ScanMeta{
			OriginalName: in.FileName,
			PatientID:    in.PatientID,
			ScanType:     in.ScanType,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("upload to storage: %w", err)
	}

	now := s.now()
	scanDate := in.ScanDate
	if scanDate.IsZero() {
		scanDate = now
	}
	img := &model.MRIImage{
		ID:               id,
		PatientID:        in.PatientID,
		ImageURL:         stored.URL,
		StorageKey:       stored.Key,
		FileName:         in.FileName,
		FileSize:         stored.Size,
		MimeType:         in.ContentType,
		ScanType:         scanType,
		ScanDate:         scanDate,
		ProcessingStatus: model.StatusPending,
		UploadedBy:       in.UploadedBy,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	saved, err := s.images.Create(ctx, img)
	if err != nil {
		if delErr := s.store.RemoveScan(ctx, stored.Key); delErr != nil {
			return nil, fmt.Errorf("db save failed: %v; rollback delete failed: %v", err, delErr)
		}
		return nil, fmt.Errorf("db save failed: %w", err)
	}
	return saved, nil
}

func (s *mriService) Get(ctx context.Context, id string) (*model.MRIImage, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	img, err := s.images.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrImageNotFound
		}
		return nil, err
	}
	return img, nil
}

func (s *mriService) ListByPatient(ctx context.Context, patientID string) ([]model.MRIImage, error) {
	if err := validateID(patientID); err != nil {
		return nil, err
	}
	return s.images.ListByPatient(ctx, patientID)
}

func (s *mriService) DownloadURL(ctx context.Context, id string) (string, error) {
	img, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	u, err := s.store.DownloadURL(ctx, img.StorageKey, s.limits.PresignExpiry)
	if err != nil {
		return "", fmt.Errorf("presign: %w", err)
	}
	return u, nil
}

func (s *mriService) Delete(ctx context.Context, id string) error {
	img, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	// Storage first: if it fails the record still points at the object.
	if err := s.store.RemoveScan(ctx, img.StorageKey); err != nil {
		return fmt.Errorf("delete storage: %w", err)
	}
	return s.images.Delete(ctx, id)
}

package service

import (
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"tumourscan/internal/auth"
)

var (
	ErrIDRequired = errors.New("id is required")
	ErrInvalidID  = errors.New("id is not a valid UUID")
	ErrReaderNil  = errors.New("reader is nil")

	ErrImageNotFound    = errors.New("mri image not found")
	ErrAnalysisNotFound = errors.New("analysis not found")
	ErrPatientNotFound  = errors.New("patient not found")
	ErrUserNotFound     = errors.New("user not found")

	// ErrAnalysisInProgress means another detection attempt holds the image.
	ErrAnalysisInProgress = errors.New("analysis already in progress for this image")
	// ErrInvalidProviderResult means the detection provider returned data that fails model checks.
	// It is a server fault: the field errors are kept in the message only, never exposed as request details.
	ErrInvalidProviderResult = errors.New("invalid provider result")

	ErrInvalidScanType     = errors.New("invalid scan type")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file too large")

	ErrEmailTaken         = errors.New("email already registered")
	ErrPatientCodeTaken   = errors.New("patient id already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountInactive    = auth.ErrAccountInactive
)

// validateID applies the request id checks in order: presence, then format.
func validateID(id string) error {
	if id == "" {
		return ErrIDRequired
	}
	if _, err := uuid.Parse(id); err != nil {
		return ErrInvalidID
	}
	return nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique_violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

package postgres

import (
	"context"
	"database/sql"
	"time"

	"tumourscan/internal/model"
	"tumourscan/internal/repository"
)

// MRIImagePostgres is a PostgreSQL implementation of repository.MRIImageRepository.
// Status transitions are conditional updates so two detection attempts on one image cannot interleave.
type MRIImagePostgres struct {
	db *sql.DB
}

func NewMRIImagePostgres(db *sql.DB) *MRIImagePostgres {
	return &MRIImagePostgres{db: db}
}

var _ repository.MRIImageRepository = (*MRIImagePostgres)(nil)

const imageColumns = `id, patient_id, image_url, storage_key, file_name, file_size, mime_type, scan_type,
	scan_date, processing_status, analysis_completed, uploaded_by, created_at, updated_at`

func scanImage(row interface{ Scan(...any) error }) (*model.MRIImage, error) {
	var img model.MRIImage
	if err := row.Scan(
		&img.ID,
		&img.PatientID,
		&img.ImageURL,
		&img.StorageKey,
		&img.FileName,
		&img.FileSize,
		&img.MimeType,
		&img.ScanType,
		&img.ScanDate,
		&img.ProcessingStatus,
		&img.AnalysisCompleted,
		&img.UploadedBy,
		&img.CreatedAt,
		&img.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &img, nil
}

func (r *MRIImagePostgres) Create(ctx context.Context, img *model.MRIImage) (*model.MRIImage, error) {
	const q = `
		INSERT INTO mri_images (id, patient_id, image_url, storage_key, file_name, file_size, mime_type,
			scan_type, scan_date, processing_status, analysis_completed, uploaded_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING ` + imageColumns
	return scanImage(r.db.QueryRowContext(ctx, q,
		img.ID,
		img.PatientID,
		img.ImageURL,
		img.StorageKey,
		img.FileName,
		img.FileSize,
		img.MimeType,
		img.ScanType,
		img.ScanDate,
		img.ProcessingStatus,
		img.AnalysisCompleted,
		img.UploadedBy,
		img.CreatedAt,
		img.UpdatedAt,
	))
}

func (r *MRIImagePostgres) FindByID(ctx context.Context, id string) (*model.MRIImage, error) {
	q := `SELECT ` + imageColumns + ` FROM mri_images WHERE id = $1`
	return scanImage(r.db.QueryRowContext(ctx, q, id))
}

func (r *MRIImagePostgres) ListByPatient(ctx context.Context, patientID string) ([]model.MRIImage, error) {
	q := `SELECT ` + imageColumns + `
		FROM mri_images
		WHERE patient_id = $1
		ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, q, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.MRIImage, 0)
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *img)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Delete removes an image by ID. It does not return an error if the row does not exist.
func (r *MRIImagePostgres) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM mri_images WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q, id)
	return err
}

// MarkProcessing also takes over a Processing claim whose updated_at is older than
// staleAfter, so an attempt lost to a crash does not pin the image forever.
func (r *MRIImagePostgres) MarkProcessing(ctx context.Context, id string, staleAfter time.Duration) error {
	const q = `
		UPDATE mri_images
		SET processing_status = 'Processing', updated_at = now()
		WHERE id = $1
		  AND (processing_status <> 'Processing'
		       OR updated_at < now() - make_interval(secs => $2))
	`
	return execConditional(ctx, r.db, q, id, staleAfter.Seconds())
}

// FinishProcessing sets analysis_completed only for a Completed outcome; a Failed attempt
// keeps whatever an earlier attempt recorded.
func (r *MRIImagePostgres) FinishProcessing(ctx context.Context, id string, status model.ProcessingStatus) error {
	const q = `
		UPDATE mri_images
		SET processing_status = $2,
			analysis_completed = analysis_completed OR $2::text = 'Completed',
			updated_at = now()
		WHERE id = $1 AND processing_status = 'Processing'
	`
	return execConditional(ctx, r.db, q, id, status)
}

func execConditional(ctx context.Context, db *sql.DB, q string, args ...any) error {
	res, err := db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrStatusConflict
	}
	return nil
}

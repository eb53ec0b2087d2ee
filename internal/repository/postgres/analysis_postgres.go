package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/lib/pq"

	"tumourscan/internal/model"
	"tumourscan/internal/repository"
)

// AnalysisPostgres is a PostgreSQL implementation of repository.AnalysisRepository.
// Structured results are stored as JSONB; biomarker ids as a UUID array.
type AnalysisPostgres struct {
	db *sql.DB
}

func NewAnalysisPostgres(db *sql.DB) *AnalysisPostgres {
	return &AnalysisPostgres{db: db}
}

var _ repository.AnalysisRepository = (*AnalysisPostgres)(nil)

const analysisColumns = `a.id, a.mri_image_id, a.patient_id, a.detection_results, a.phenotype, a.classification,
	a.risk_assessment, a.biomarker_ids, a.analyzed_by, a.analysis_date, a.created_at`

const detailColumns = analysisColumns + `,
	m.id, m.file_name, m.scan_type, m.scan_date, m.image_url, m.processing_status,
	p.id, p.patient_code, p.first_name, p.last_name,
	u.id, u.name, u.email`

const detailFrom = `
	FROM tumour_analyses a
	LEFT JOIN mri_images m ON m.id = a.mri_image_id
	LEFT JOIN patients p ON p.id = a.patient_id
	LEFT JOIN users u ON u.id = a.analyzed_by`

const biomarkerColumns = `id, analysis_id, name, category, value, significance, associated_genes,
	clinical_relevance, detection_method, confidence, created_at`

// analysisRow holds the raw columns of a tumour_analyses row before JSON decoding.
type analysisRow struct {
	a              model.TumourAnalysis
	detection      []byte
	phenotype      []byte
	classification []byte
	risk           []byte
	biomarkerIDs   pq.StringArray
}

func (r *analysisRow) dest() []any {
	return []any{
		&r.a.ID,
		&r.a.MRIImageID,
		&r.a.PatientID,
		&r.detection,
		&r.phenotype,
		&r.classification,
		&r.risk,
		&r.biomarkerIDs,
		&r.a.AnalyzedBy,
		&r.a.AnalysisDate,
		&r.a.CreatedAt,
	}
}

func (r *analysisRow) decode() (*model.TumourAnalysis, error) {
	a := r.a
	if err := json.Unmarshal(r.detection, &a.DetectionResults); err != nil {
		return nil, fmt.Errorf("decode detection_results: %w", err)
	}
	if err := json.Unmarshal(r.risk, &a.RiskAssessment); err != nil {
		return nil, fmt.Errorf("decode risk_assessment: %w", err)
	}
	if len(r.phenotype) > 0 {
		if err := json.Unmarshal(r.phenotype, &a.Phenotype); err != nil {
			return nil, fmt.Errorf("decode phenotype: %w", err)
		}
	}
	if len(r.classification) > 0 {
		if err := json.Unmarshal(r.classification, &a.Classification); err != nil {
			return nil, fmt.Errorf("decode classification: %w", err)
		}
	}
	a.BiomarkerIDs = []string(r.biomarkerIDs)
	if a.BiomarkerIDs == nil {
		a.BiomarkerIDs = []string{}
	}
	return &a, nil
}

// detailRow extends analysisRow with the nullable LEFT JOIN columns.
type detailRow struct {
	analysisRow
	imgID, imgFile, imgScan, imgURL, imgStatus sql.NullString
	imgDate                                    sql.NullTime
	patID, patCode, patFirst, patLast          sql.NullString
	userID, userName, userEmail                sql.NullString
}

func (r *detailRow) dest() []any {
	return append(r.analysisRow.dest(),
		&r.imgID, &r.imgFile, &r.imgScan, &r.imgDate, &r.imgURL, &r.imgStatus,
		&r.patID, &r.patCode, &r.patFirst, &r.patLast,
		&r.userID, &r.userName, &r.userEmail,
	)
}

func (r *detailRow) decode() (*model.AnalysisDetail, error) {
	a, err := r.analysisRow.decode()
	if err != nil {
		return nil, err
	}
	d := &model.AnalysisDetail{TumourAnalysis: *a, Biomarkers: []model.Biomarker{}}
	if r.imgID.Valid {
		d.MRIImage = &model.MRIImageSummary{
			ID:               r.imgID.String,
			FileName:         r.imgFile.String,
			ScanType:         model.ScanType(r.imgScan.String),
			ScanDate:         r.imgDate.Time,
			ImageURL:         r.imgURL.String,
			ProcessingStatus: model.ProcessingStatus(r.imgStatus.String),
		}
	}
	if r.patID.Valid {
		d.Patient = &model.PatientSummary{
			ID:          r.patID.String,
			PatientCode: r.patCode.String,
			FirstName:   r.patFirst.String,
			LastName:    r.patLast.String,
		}
	}
	if r.userID.Valid {
		d.Analyst = &model.UserSummary{
			ID:    r.userID.String,
			Name:  r.userName.String,
			Email: r.userEmail.String,
		}
	}
	return d, nil
}

// Create inserts an analysis and returns the stored record.
func (r *AnalysisPostgres) Create(ctx context.Context, a *model.TumourAnalysis) (*model.TumourAnalysis, error) {
	detection, err := json.Marshal(a.DetectionResults)
	if err != nil {
		return nil, fmt.Errorf("encode detection_results: %w", err)
	}
	risk, err := json.Marshal(a.RiskAssessment)
	if err != nil {
		return nil, fmt.Errorf("encode risk_assessment: %w", err)
	}
	phenotype, err := nullableJSON(a.Phenotype)
	if err != nil {
		return nil, fmt.Errorf("encode phenotype: %w", err)
	}
	classification, err := nullableJSON(a.Classification)
	if err != nil {
		return nil, fmt.Errorf("encode classification: %w", err)
	}
	ids := a.BiomarkerIDs
	if ids == nil {
		ids = []string{}
	}

	q := `
		INSERT INTO tumour_analyses AS a (id, mri_image_id, patient_id, detection_results, phenotype,
			classification, risk_assessment, biomarker_ids, analyzed_by, analysis_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::uuid[], $9, $10, $11)
		RETURNING ` + analysisColumns
	var row analysisRow
	if err := r.db.QueryRowContext(ctx, q,
		a.ID,
		a.MRIImageID,
		a.PatientID,
		detection,
		phenotype,
		classification,
		risk,
		pq.Array(ids),
		a.AnalyzedBy,
		a.AnalysisDate,
		a.CreatedAt,
	).Scan(row.dest()...); err != nil {
		return nil, err
	}
	return row.decode()
}

func (r *AnalysisPostgres) FindByID(ctx context.Context, id string) (*model.TumourAnalysis, error) {
	q := `SELECT ` + analysisColumns + ` FROM tumour_analyses a WHERE a.id = $1`
	var row analysisRow
	if err := r.db.QueryRowContext(ctx, q, id).Scan(row.dest()...); err != nil {
		return nil, err
	}
	return row.decode()
}

func (r *AnalysisPostgres) FindDetailedByID(ctx context.Context, id string) (*model.AnalysisDetail, error) {
	q := `SELECT ` + detailColumns + detailFrom + ` WHERE a.id = $1`
	var row detailRow
	if err := r.db.QueryRowContext(ctx, q, id).Scan(row.dest()...); err != nil {
		return nil, err
	}
	d, err := row.decode()
	if err != nil {
		return nil, err
	}
	details := []model.AnalysisDetail{*d}
	if err := r.attachBiomarkers(ctx, details); err != nil {
		return nil, err
	}
	return &details[0], nil
}

func (r *AnalysisPostgres) ListDetailedByPatient(ctx context.Context, patientID string) ([]model.AnalysisDetail, error) {
	q := `SELECT ` + detailColumns + detailFrom + `
		WHERE a.patient_id = $1
		ORDER BY a.created_at DESC, a.id DESC`
	rows, err := r.db.QueryContext(ctx, q, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	details := make([]model.AnalysisDetail, 0)
	for rows.Next() {
		var row detailRow
		if err := rows.Scan(row.dest()...); err != nil {
			return nil, err
		}
		d, err := row.decode()
		if err != nil {
			return nil, err
		}
		details = append(details, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(details) == 0 {
		return details, nil
	}
	if err := r.attachBiomarkers(ctx, details); err != nil {
		return nil, err
	}
	return details, nil
}

// attachBiomarkers loads the biomarkers of all details in one query and orders each
// analysis' list by its biomarker_ids.
func (r *AnalysisPostgres) attachBiomarkers(ctx context.Context, details []model.AnalysisDetail) error {
	ids := make([]string, 0, len(details))
	for _, d := range details {
		if len(d.BiomarkerIDs) > 0 {
			ids = append(ids, d.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	q := `SELECT ` + biomarkerColumns + ` FROM biomarkers WHERE analysis_id = ANY($1::uuid[])`
	rows, err := r.db.QueryContext(ctx, q, pq.Array(ids))
	if err != nil {
		return err
	}
	defer rows.Close()

	byAnalysis := make(map[string][]model.Biomarker)
	for rows.Next() {
		b, err := scanBiomarker(rows)
		if err != nil {
			return err
		}
		byAnalysis[b.AnalysisID] = append(byAnalysis[b.AnalysisID], *b)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for i := range details {
		bms := byAnalysis[details[i].ID]
		pos := make(map[string]int, len(details[i].BiomarkerIDs))
		for j, id := range details[i].BiomarkerIDs {
			pos[id] = j
		}
		sort.SliceStable(bms, func(a, b int) bool { return pos[bms[a].ID] < pos[bms[b].ID] })
		if bms != nil {
			details[i].Biomarkers = bms
		}
	}
	return nil
}

func (r *AnalysisPostgres) AppendBiomarkers(ctx context.Context, analysisID string, bms []model.Biomarker) (out []model.Biomarker, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	ids := make([]string, len(bms))
	for i, b := range bms {
		ids[i] = b.ID
	}

	const qAppend = `
		UPDATE tumour_analyses
		SET biomarker_ids = biomarker_ids || $2::uuid[]
		WHERE id = $1
	`
	res, err := tx.ExecContext(ctx, qAppend, analysisID, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, sql.ErrNoRows
	}

	qInsert := `
		INSERT INTO biomarkers (id, analysis_id, name, category, value, significance, associated_genes,
			clinical_relevance, detection_method, confidence, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + biomarkerColumns
	out = make([]model.Biomarker, 0, len(bms))
	for _, b := range bms {
		value, err := json.Marshal(b.Value)
		if err != nil {
			return nil, fmt.Errorf("encode biomarker value: %w", err)
		}
		genes := b.AssociatedGenes
		if genes == nil {
			genes = []string{}
		}
		stored, err := scanBiomarker(tx.QueryRowContext(ctx, qInsert,
			b.ID,
			analysisID,
			b.Name,
			b.Category,
			value,
			b.Significance,
			pq.Array(genes),
			b.ClinicalRelevance,
			b.DetectionMethod,
			b.Confidence,
			b.CreatedAt,
		))
		if err != nil {
			return nil, err
		}
		out = append(out, *stored)
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanBiomarker(row interface{ Scan(...any) error }) (*model.Biomarker, error) {
	var (
		b     model.Biomarker
		value []byte
		genes pq.StringArray
	)
	if err := row.Scan(
		&b.ID,
		&b.AnalysisID,
		&b.Name,
		&b.Category,
		&value,
		&b.Significance,
		&genes,
		&b.ClinicalRelevance,
		&b.DetectionMethod,
		&b.Confidence,
		&b.CreatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(value, &b.Value); err != nil {
		return nil, fmt.Errorf("decode biomarker value: %w", err)
	}
	b.AssociatedGenes = []string(genes)
	if b.AssociatedGenes == nil {
		b.AssociatedGenes = []string{}
	}
	return &b, nil
}

// nullableJSON encodes v, mapping a nil pointer to SQL NULL.
func nullableJSON[T any](v *T) (any, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

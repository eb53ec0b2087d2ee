package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"tumourscan/internal/model"
	"tumourscan/internal/repository"
)

// PatientPostgres is a PostgreSQL implementation of repository.PatientRepository.
type PatientPostgres struct {
	db *sql.DB
}

func NewPatientPostgres(db *sql.DB) *PatientPostgres {
	return &PatientPostgres{db: db}
}

var _ repository.PatientRepository = (*PatientPostgres)(nil)

const patientColumns = `id, patient_code, first_name, last_name, date_of_birth, gender,
	contact_number, email, address, medical_history, genetic_data, status,
	COALESCE(assigned_doctor::text, ''), created_at, updated_at`

func scanPatient(row interface{ Scan(...any) error }) (*model.Patient, error) {
	var (
		p                         model.Patient
		address, history, genetic []byte
	)
	if err := row.Scan(
		&p.ID,
		&p.PatientCode,
		&p.FirstName,
		&p.LastName,
		&p.DateOfBirth,
		&p.Gender,
		&p.ContactNumber,
		&p.Email,
		&address,
		&history,
		&genetic,
		&p.Status,
		&p.AssignedDoctor,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if len(address) > 0 && string(address) != "null" {
		p.Address = new(model.Address)
		if err := json.Unmarshal(address, p.Address); err != nil {
			return nil, fmt.Errorf("decode address: %w", err)
		}
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &p.MedicalHistory); err != nil {
			return nil, fmt.Errorf("decode medical history: %w", err)
		}
	}
	if len(genetic) > 0 {
		if err := json.Unmarshal(genetic, &p.GeneticData); err != nil {
			return nil, fmt.Errorf("decode genetic data: %w", err)
		}
	}
	normalizePatient(&p)
	return &p, nil
}

// normalizePatient replaces nil collections so they encode as [] rather than null.
func normalizePatient(p *model.Patient) {
	if p.MedicalHistory == nil {
		p.MedicalHistory = []model.MedicalCondition{}
	}
	if p.GeneticData.Mutations == nil {
		p.GeneticData.Mutations = []string{}
	}
	if p.GeneticData.RiskFactors == nil {
		p.GeneticData.RiskFactors = []string{}
	}
}

// patientDocuments encodes the JSONB columns. A nil address is stored as SQL NULL.
func patientDocuments(p *model.Patient) (address, history, genetic []byte, err error) {
	cp := *p
	normalizePatient(&cp)
	if cp.Address != nil {
		if address, err = json.Marshal(cp.Address); err != nil {
			return nil, nil, nil, fmt.Errorf("encode address: %w", err)
		}
	}
	if history, err = json.Marshal(cp.MedicalHistory); err != nil {
		return nil, nil, nil, fmt.Errorf("encode medical history: %w", err)
	}
	if genetic, err = json.Marshal(cp.GeneticData); err != nil {
		return nil, nil, nil, fmt.Errorf("encode genetic data: %w", err)
	}
	return address, history, genetic, nil
}

func (r *PatientPostgres) Create(ctx context.Context, p *model.Patient) (*model.Patient, error) {
	address, history, genetic, err := patientDocuments(p)
	if err != nil {
		return nil, err
	}

	const q = `
		INSERT INTO patients (id, patient_code, first_name, last_name, date_of_birth, gender,
			contact_number, email, address, medical_history, genetic_data, status,
			assigned_doctor, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NULLIF($13, '')::uuid, $14, $15)
		RETURNING ` + patientColumns
	return scanPatient(r.db.QueryRowContext(ctx, q,
		p.ID,
		p.PatientCode,
		p.FirstName,
		p.LastName,
		p.DateOfBirth,
		p.Gender,
		p.ContactNumber,
		p.Email,
		address,
		history,
		genetic,
		p.Status,
		p.AssignedDoctor,
		p.CreatedAt,
		p.UpdatedAt,
	))
}

func (r *PatientPostgres) FindByID(ctx context.Context, id string) (*model.Patient, error) {
	q := `SELECT ` + patientColumns + ` FROM patients WHERE id = $1`
	return scanPatient(r.db.QueryRowContext(ctx, q, id))
}

// Update overwrites every mutable column of the patient identified by p.ID.
// It returns sql.ErrNoRows if the patient does not exist.
func (r *PatientPostgres) Update(ctx context.Context, p *model.Patient) (*model.Patient, error) {
	address, history, genetic, err := patientDocuments(p)
	if err != nil {
		return nil, err
	}

	const q = `
		UPDATE patients SET
			patient_code = $2, first_name = $3, last_name = $4, date_of_birth = $5, gender = $6,
			contact_number = $7, email = $8, address = $9, medical_history = $10, genetic_data = $11,
			status = $12, assigned_doctor = NULLIF($13, '')::uuid, updated_at = $14
		WHERE id = $1
		RETURNING ` + patientColumns
	return scanPatient(r.db.QueryRowContext(ctx, q,
		p.ID,
		p.PatientCode,
		p.FirstName,
		p.LastName,
		p.DateOfBirth,
		p.Gender,
		p.ContactNumber,
		p.Email,
		address,
		history,
		genetic,
		p.Status,
		p.AssignedDoctor,
		p.UpdatedAt,
	))
}

// Delete removes the patient and their analyses in one transaction; images and
// biomarkers go with them by cascade. It returns sql.ErrNoRows if nothing was deleted.
func (r *PatientPostgres) Delete(ctx context.Context, id string) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM tumour_analyses WHERE patient_id = $1`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return tx.Commit()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// searchPattern turns user input into an ILIKE pattern matching it as a substring.
func searchPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

const patientSearchFilter = `
		WHERE first_name ILIKE $1 OR last_name ILIKE $1 OR patient_code ILIKE $1`

// List returns patients using LIMIT/OFFSET pagination and a total count.
// A non-empty pq.Search filters case-insensitively on names and patient code.
func (r *PatientPostgres) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Patient], error) {
	var (
		where    string
		args     []any
		search   = strings.TrimSpace(pq.Search)
		nextArgN = 1
	)
	if search != "" {
		where = patientSearchFilter
		args = append(args, searchPattern(search))
		nextArgN = 2
	}

	qCount := `SELECT COUNT(*) FROM patients` + where
	var total int
	if err := r.db.QueryRowContext(ctx, qCount, args...).Scan(&total); err != nil {
		return nil, err
	}

	qList := fmt.Sprintf(`SELECT %s
		FROM patients%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, patientColumns, where, nextArgN, nextArgN+1)
	rows, err := r.db.QueryContext(ctx, qList, append(args, pq.Limit, pq.Offset)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Patient, 0)
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Patient]{
		Items: items,
		Total: total,
	}, nil
}

package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

type migrationStep struct {
	Name string
	SQL  string
}

// sentinelTable is created by the last table step; its presence means the schema is in place.
const sentinelTable = "public.biomarkers"

var steps = []migrationStep{
	{
		Name: "create_extension_uuid_ossp",
		SQL:  `CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	},
	{
		Name: "create_table_users",
		SQL: `CREATE TABLE IF NOT EXISTS users (
  id             UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  name           TEXT        NOT NULL,
  email          TEXT        NOT NULL,
  password_hash  TEXT        NOT NULL,
  role           TEXT        NOT NULL CHECK (role IN ('doctor', 'researcher', 'admin')),
  specialization TEXT        NOT NULL DEFAULT '',
  license_number TEXT        NOT NULL DEFAULT '',
  is_active      BOOLEAN     NOT NULL DEFAULT TRUE,
  created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_users_email",
		SQL:  `CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users (lower(email));`,
	},
	{
		Name: "create_table_patients",
		SQL: `CREATE TABLE IF NOT EXISTS patients (
  id              UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  patient_code    TEXT        NOT NULL UNIQUE,
  first_name      TEXT        NOT NULL,
  last_name       TEXT        NOT NULL,
  date_of_birth   DATE        NOT NULL,
  gender          TEXT        NOT NULL CHECK (gender IN ('Male', 'Female', 'Other')),
  contact_number  TEXT        NOT NULL DEFAULT '',
  email           TEXT        NOT NULL DEFAULT '',
  address         JSONB       NULL,
  medical_history JSONB       NOT NULL DEFAULT '[]'::jsonb,
  genetic_data    JSONB       NOT NULL DEFAULT '{"sequenced":false,"mutations":[],"riskFactors":[]}'::jsonb,
  status          TEXT        NOT NULL DEFAULT 'Active' CHECK (status IN ('Active', 'Inactive', 'Deceased')),
  assigned_doctor UUID        NULL REFERENCES users (id) ON DELETE SET NULL,
  created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_patients_created_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_patients_created_at ON patients (created_at);`,
	},
	{
		Name: "create_table_mri_images",
		SQL: `CREATE TABLE IF NOT EXISTS mri_images (
  id                 UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  patient_id         UUID        NOT NULL REFERENCES patients (id) ON DELETE CASCADE,
  image_url          TEXT        NOT NULL,
  storage_key        TEXT        NOT NULL UNIQUE,
  file_name          TEXT        NOT NULL,
  file_size          BIGINT      NOT NULL CHECK (file_size >= 0),
  mime_type          TEXT        NOT NULL,
  scan_type          TEXT        NOT NULL CHECK (scan_type IN ('T1', 'T2', 'FLAIR', 'DWI', 'Contrast')),
  scan_date          TIMESTAMPTZ NOT NULL,
  processing_status  TEXT        NOT NULL DEFAULT 'Pending'
                     CHECK (processing_status IN ('Pending', 'Processing', 'Completed', 'Failed')),
  analysis_completed BOOLEAN     NOT NULL DEFAULT FALSE,
  uploaded_by        UUID        NOT NULL,
  created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_mri_images_patient_id",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_mri_images_patient_id ON mri_images (patient_id, created_at);`,
	},
	{
		// No foreign key to mri_images: analyses outlive deleted images.
		Name: "create_table_tumour_analyses",
		SQL: `CREATE TABLE IF NOT EXISTS tumour_analyses (
  id                UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  mri_image_id      UUID        NOT NULL,
  patient_id        UUID        NOT NULL,
  detection_results JSONB       NOT NULL,
  phenotype         JSONB       NULL,
  classification    JSONB       NULL,
  risk_assessment   JSONB       NOT NULL,
  biomarker_ids     UUID[]      NOT NULL DEFAULT '{}',
  analyzed_by       UUID        NOT NULL,
  analysis_date     TIMESTAMPTZ NOT NULL DEFAULT now(),
  created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_tumour_analyses_patient_id",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_tumour_analyses_patient_id ON tumour_analyses (patient_id, created_at);`,
	},
	{
		Name: "create_index_tumour_analyses_mri_image_id",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_tumour_analyses_mri_image_id ON tumour_analyses (mri_image_id);`,
	},
	{
		Name: "create_table_biomarkers",
		SQL: `CREATE TABLE IF NOT EXISTS biomarkers (
  id                 UUID             PRIMARY KEY DEFAULT uuid_generate_v4(),
  analysis_id        UUID             NOT NULL REFERENCES tumour_analyses (id) ON DELETE CASCADE,
  name               TEXT             NOT NULL,
  category           TEXT             NOT NULL CHECK (category IN ('Genetic', 'Protein', 'Imaging', 'Metabolic')),
  value              JSONB            NOT NULL,
  significance       TEXT             NOT NULL DEFAULT '',
  associated_genes   TEXT[]           NOT NULL DEFAULT '{}',
  clinical_relevance TEXT             NOT NULL DEFAULT '',
  detection_method   TEXT             NOT NULL DEFAULT '',
  confidence         DOUBLE PRECISION NOT NULL CHECK (confidence >= 0 AND confidence <= 1),
  created_at         TIMESTAMPTZ      NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_biomarkers_analysis_id",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_biomarkers_analysis_id ON biomarkers (analysis_id);`,
	},
}

// EnsureMigrated checks if the sentinel table exists and runs migrations if it doesn't.
func EnsureMigrated(ctx context.Context, db *sql.DB, log logrus.FieldLogger, dbHost string) error {
	start := time.Now()
	log = log.WithFields(logrus.Fields{
		"component": "database",
		"db_host":   dbHost,
	})

	log.WithFields(logrus.Fields{"event": "db_migration_check", "status": "starting"}).Info("checking schema")

	var exists bool
	query := "SELECT to_regclass($1) IS NOT NULL"
	if err := db.QueryRowContext(ctx, query, sentinelTable).Scan(&exists); err != nil {
		log.WithFields(logrus.Fields{
			"event":       "db_migration_failed",
			"status":      "error",
			"duration_ms": time.Since(start).Milliseconds(),
		}).WithError(err).Error("failed to check sentinel table")
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		log.WithFields(logrus.Fields{
			"event":       "db_migration_skip",
			"status":      "success",
			"duration_ms": time.Since(start).Milliseconds(),
		}).Info("schema already exists, skipping migration")
		return nil
	}

	log.WithFields(logrus.Fields{"event": "db_migration_start", "status": "in_progress"}).Info("applying schema")

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			log.WithFields(logrus.Fields{
				"event":            "db_migration_failed",
				"status":           "error",
				"migration_step":   step.Name,
				"duration_ms":      time.Since(start).Milliseconds(),
				"step_duration_ms": time.Since(stepStart).Milliseconds(),
			}).WithError(err).Error("migration step failed")
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		log.WithFields(logrus.Fields{
			"event":            "db_migration_step",
			"status":           "success",
			"migration_step":   step.Name,
			"step_duration_ms": time.Since(stepStart).Milliseconds(),
		}).Info("migration step applied")
	}

	log.WithFields(logrus.Fields{
		"event":       "db_migration_success",
		"status":      "success",
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("schema migrated")

	return nil
}

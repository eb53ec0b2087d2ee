package migration

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bufferLogger() (*logrus.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetFormatter(&logrus.JSONFormatter{})
	return l, &buf
}

func TestEnsureMigrated_Skip(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT to_regclass($1) IS NOT NULL")).
		WithArgs(sentinelTable).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	log, buf := bufferLogger()
	err = EnsureMigrated(context.Background(), db, log, "db.local")

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), `"event":"db_migration_skip"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureMigrated_RunsAllSteps(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT to_regclass").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	for _, step := range steps {
		mock.ExpectExec(regexp.QuoteMeta(step.SQL)).WillReturnResult(sqlmock.NewResult(0, 0))
	}

	log, buf := bufferLogger()
	err = EnsureMigrated(context.Background(), db, log, "db.local")

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), `"event":"db_migration_success"`)
	assert.Contains(t, buf.String(), `"db_host":"db.local"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureMigrated_StepFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT to_regclass").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(regexp.QuoteMeta(steps[0].SQL)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(steps[1].SQL)).WillReturnError(errors.New("permission denied"))

	log, buf := bufferLogger()
	err = EnsureMigrated(context.Background(), db, log, "db.local")

	require.Error(t, err)
	assert.Contains(t, err.Error(), steps[1].Name)
	assert.Contains(t, buf.String(), `"migration_step":"create_table_users"`)
	assert.Contains(t, buf.String(), `"level":"error"`)
}

func TestEnsureMigrated_CheckFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT to_regclass").WillReturnError(errors.New("no route to host"))

	log, _ := bufferLogger()
	err = EnsureMigrated(context.Background(), db, log, "db.local")

	assert.ErrorContains(t, err, "sentinel table")
}

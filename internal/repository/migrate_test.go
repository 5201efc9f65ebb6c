package repository

import (
	"context"
	"database/sql"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admissions-workflow/internal/models"
)

func TestLoadMigrations(t *testing.T) {
	migrations, err := loadMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	assert.Equal(t, 1, migrations[0].Version)
	assert.Contains(t, migrations[0].UpSQL, "CREATE TABLE IF NOT EXISTS state_change_events")
	assert.Contains(t, migrations[0].UpSQL, "WHERE superseded_at IS NULL")
	for i := 1; i < len(migrations); i++ {
		assert.Less(t, migrations[i-1].Version, migrations[i].Version)
	}
}

func TestLoadMigrations_StatusColumnsAreClosed(t *testing.T) {
	migrations, err := loadMigrations()
	require.NoError(t, err)
	up := migrations[0].UpSQL

	checks := regexp.MustCompile(`(?s)CONSTRAINT (\w+_check) CHECK \((\w+) IN\s*\(([^)]*)\)\)`).FindAllStringSubmatch(up, -1)
	found := map[string][]string{}
	for _, m := range checks {
		var values []string
		for _, v := range strings.Split(m[3], ",") {
			values = append(values, strings.Trim(strings.TrimSpace(v), "'"))
		}
		found[m[2]] = values
	}

	var want []string
	for _, s := range models.AllStatuses() {
		want = append(want, string(s))
	}
	for _, column := range []string{"status", "from_state", "to_state"} {
		assert.ElementsMatch(t, want, found[column], column)
	}
}

func TestMigrate_FreshDatabase(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_version`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT version FROM schema_version`).WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT INTO schema_version`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS applications`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`UPDATE schema_version SET version`).WithArgs(1).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	applied, err := Migrate(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_init.sql"}, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_AlreadyCurrent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_version`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT version FROM schema_version`).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(1))
	mock.ExpectCommit()

	applied, err := Migrate(context.Background(), db)
	require.NoError(t, err)
	assert.Empty(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

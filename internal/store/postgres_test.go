package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contact-finder/internal/model"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock, now: func() time.Time { return fixedNow }}
	return s, mock
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS lookup_cache`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetLookup_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT data FROM lookup_cache WHERE candidate_id = \$1 AND cached_at > \$2`).
		WithArgs("42", fixedNow.Add(-time.Hour)).
		WillReturnError(pgx.ErrNoRows)

	d, err := s.GetLookup(context.Background(), "42", time.Hour)
	require.NoError(t, err)
	assert.Nil(t, d)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetLookup_Hit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows([]string{"data"}).
		AddRow([]byte(`{"id":"42","name":"Ada Lovelace","recommended_email":"ada@acme.com"}`))
	mock.ExpectQuery(`SELECT data FROM lookup_cache WHERE candidate_id = \$1$`).
		WithArgs("42").
		WillReturnRows(rows)

	d, err := s.GetLookup(context.Background(), "42", 0)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "Ada Lovelace", d.Name)
	assert.Equal(t, "ada@acme.com", d.RecommendedEmail)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetLookup_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT data FROM lookup_cache`).
		WithArgs("42", pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	_, err := s.GetLookup(context.Background(), "42", time.Hour)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: get lookup")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetLookup(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO "lookup_cache" .* ON CONFLICT \("candidate_id"\) DO UPDATE`).
		WithArgs(pgxmock.AnyArg(), "42", pgxmock.AnyArg(), fixedNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SetLookup(context.Background(), &model.RawDetail{ID: "42", Name: "Ada Lovelace"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetLookup_NoID(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	err := s.SetLookup(context.Background(), &model.RawDetail{Name: "nobody"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no id")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteExpiredLookups(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM lookup_cache WHERE cached_at <= \$1`).
		WithArgs(fixedNow.Add(-24 * time.Hour)).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	n, err := s.DeleteExpiredLookups(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// A non-positive age deletes nothing and issues no query.
	n, err = s.DeleteExpiredLookups(context.Background(), 0)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ClearAndCount(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM lookup_cache`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectExec(`^DELETE FROM lookup_cache$`).
		WillReturnResult(pgxmock.NewResult("DELETE", 7))

	n, err := s.CountLookups(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	n, err = s.ClearLookups(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ClearLookups_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM lookup_cache`).WillReturnError(errors.New("permission denied"))

	_, err := s.ClearLookups(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "clear lookups")
	assert.NoError(t, mock.ExpectationsWereMet())
}

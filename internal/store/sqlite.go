package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/contact-finder/internal/model"
)

// SQLiteStore implements LookupCache using modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Timestamps are unix nanoseconds so comparisons do not depend on how the
// driver formats DATETIME values.
const sqliteMigration = `
CREATE TABLE IF NOT EXISTS lookup_cache (
	id           TEXT PRIMARY KEY,
	candidate_id TEXT NOT NULL UNIQUE,
	data         TEXT NOT NULL,
	cached_at    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_lookup_cache_cached_at ON lookup_cache(cached_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetLookup(ctx context.Context, id string, maxAge time.Duration) (*model.RawDetail, error) {
	query, args := `SELECT data FROM lookup_cache WHERE candidate_id = ?`, []any{id}
	if maxAge > 0 {
		query += ` AND cached_at > ?`
		args = append(args, s.now().Add(-maxAge).UnixNano())
	}
	var data string
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get lookup")
	}
	return unmarshalDetail([]byte(data))
}

func (s *SQLiteStore) SetLookup(ctx context.Context, d *model.RawDetail) error {
	data, err := marshalDetail(d)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO lookup_cache (id, candidate_id, data, cached_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (candidate_id) DO UPDATE SET data = excluded.data, cached_at = excluded.cached_at`,
		uuid.New().String(), d.ID, string(data), s.now().UnixNano(),
	)
	return eris.Wrap(err, "sqlite: set lookup")
}

func (s *SQLiteStore) DeleteExpiredLookups(ctx context.Context, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM lookup_cache WHERE cached_at <= ?`,
		s.now().Add(-maxAge).UnixNano(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired lookups")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) ClearLookups(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM lookup_cache`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: clear lookups")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) CountLookups(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM lookup_cache`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count lookups")
}

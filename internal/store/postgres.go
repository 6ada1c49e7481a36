package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/contact-finder/internal/db"
	"github.com/sells-group/contact-finder/internal/model"
)

// PostgresStore implements LookupCache using pgxpool.
type PostgresStore struct {
	pool db.Pool
	now  func() time.Time
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	getLookupSQL     = `SELECT data FROM lookup_cache WHERE candidate_id = $1`
	getFreshSQL      = getLookupSQL + ` AND cached_at > $2`
	deleteExpiredSQL = `DELETE FROM lookup_cache WHERE cached_at <= $1`
	clearLookupsSQL  = `DELETE FROM lookup_cache`
	countLookupsSQL  = `SELECT count(*) FROM lookup_cache`
)

var setLookupSQL = mustUpsertSQL(db.UpsertConfig{
	Table:        "lookup_cache",
	Columns:      []string{"id", "candidate_id", "data", "cached_at"},
	ConflictKeys: []string{"candidate_id"},
	UpdateCols:   []string{"data", "cached_at"},
})

func mustUpsertSQL(cfg db.UpsertConfig) string {
	sql, err := db.UpsertSQL(cfg)
	if err != nil {
		panic(err)
	}
	return sql
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, now: time.Now}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS lookup_cache (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	candidate_id TEXT NOT NULL UNIQUE,
	data         JSONB NOT NULL,
	cached_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_lookup_cache_cached_at ON lookup_cache(cached_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) GetLookup(ctx context.Context, id string, maxAge time.Duration) (*model.RawDetail, error) {
	query, args := getLookupSQL, []any{id}
	if maxAge > 0 {
		query, args = getFreshSQL, append(args, s.now().Add(-maxAge))
	}
	var data []byte
	err := s.pool.QueryRow(ctx, query, args...).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get lookup")
	}
	return unmarshalDetail(data)
}

func (s *PostgresStore) SetLookup(ctx context.Context, d *model.RawDetail) error {
	data, err := marshalDetail(d)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, setLookupSQL, uuid.New().String(), d.ID, data, s.now().UTC())
	return eris.Wrap(err, "postgres: set lookup")
}

func (s *PostgresStore) DeleteExpiredLookups(ctx context.Context, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, deleteExpiredSQL, s.now().Add(-maxAge))
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired lookups")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) ClearLookups(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, clearLookupsSQL)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: clear lookups")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) CountLookups(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, countLookupsSQL).Scan(&n)
	return n, eris.Wrap(err, "postgres: count lookups")
}

// Package store caches raw lookup detail so repeated runs do not spend rate
// budget or credits on people already fetched.
package store

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contact-finder/internal/model"
)

// LookupCache persists raw lookup detail keyed by candidate id.
type LookupCache interface {
	// GetLookup returns the cached detail for id, or (nil, nil) when absent or
	// older than maxAge. A non-positive maxAge never expires entries.
	GetLookup(ctx context.Context, id string, maxAge time.Duration) (*model.RawDetail, error)
	// SetLookup inserts or replaces the detail for d.ID.
	SetLookup(ctx context.Context, d *model.RawDetail) error
	// DeleteExpiredLookups removes entries older than maxAge and returns the
	// number removed. A non-positive maxAge removes nothing.
	DeleteExpiredLookups(ctx context.Context, maxAge time.Duration) (int, error)
	// ClearLookups removes every entry.
	ClearLookups(ctx context.Context) (int, error)
	// CountLookups returns the number of cached entries.
	CountLookups(ctx context.Context) (int, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverNone     = "none"
)

// Open creates and migrates the cache for driver. DriverNone and an empty
// driver return (nil, nil): caching is disabled.
func Open(ctx context.Context, driver, dsn string) (LookupCache, error) {
	var (
		c   LookupCache
		err error
	)
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverNone:
		return nil, nil
	case DriverSQLite:
		if dsn == "" {
			dsn = "contacts.db"
		}
		c, err = NewSQLite(dsn)
	case DriverPostgres:
		if dsn == "" {
			return nil, eris.New("store: postgres requires store.database_url")
		}
		c, err = NewPostgres(ctx, dsn, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := c.Migrate(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func marshalDetail(d *model.RawDetail) ([]byte, error) {
	if d == nil || d.ID == "" {
		return nil, eris.New("store: lookup detail has no id")
	}
	data, err := json.Marshal(d)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal lookup detail")
	}
	return data, nil
}

func unmarshalDetail(data []byte) (*model.RawDetail, error) {
	var d model.RawDetail
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal lookup detail")
	}
	return &d, nil
}

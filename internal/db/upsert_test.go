package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertSQL(t *testing.T) {
	sql, err := UpsertSQL(UpsertConfig{
		Table:        "lookup_cache",
		Columns:      []string{"id", "candidate_id", "data", "cached_at"},
		ConflictKeys: []string{"candidate_id"},
		UpdateCols:   []string{"data", "cached_at"},
	})
	require.NoError(t, err)
	assert.Equal(t,
		`INSERT INTO "lookup_cache" ("id", "candidate_id", "data", "cached_at") VALUES ($1, $2, $3, $4) `+
			`ON CONFLICT ("candidate_id") DO UPDATE SET "data" = EXCLUDED."data", "cached_at" = EXCLUDED."cached_at"`,
		sql)
}

func TestUpsertSQL_DefaultUpdateCols(t *testing.T) {
	sql, err := UpsertSQL(UpsertConfig{
		Table:        "contacts.lookup_cache",
		Columns:      []string{"candidate_id", "data"},
		ConflictKeys: []string{"candidate_id"},
	})
	require.NoError(t, err)
	assert.Contains(t, sql, `INSERT INTO "contacts"."lookup_cache"`)
	assert.Contains(t, sql, `DO UPDATE SET "data" = EXCLUDED."data"`)
	assert.NotContains(t, sql, `"candidate_id" = EXCLUDED`)
}

func TestUpsertSQL_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  UpsertConfig
		want string
	}{
		{"no table", UpsertConfig{Columns: []string{"id"}, ConflictKeys: []string{"id"}}, "no table specified"},
		{"no columns", UpsertConfig{Table: "t", ConflictKeys: []string{"id"}}, "no columns specified"},
		{"no conflict keys", UpsertConfig{Table: "t", Columns: []string{"id", "name"}}, "no conflict keys specified"},
		{"nothing to update", UpsertConfig{Table: "t", Columns: []string{"id"}, ConflictKeys: []string{"id"}}, "nothing to update"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UpsertSQL(tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestUpsertSQL_QuotesIdentifiers(t *testing.T) {
	sql, err := UpsertSQL(UpsertConfig{
		Table:        `odd"table`,
		Columns:      []string{"key", "order"},
		ConflictKeys: []string{"key"},
	})
	require.NoError(t, err)
	assert.Equal(t,
		`INSERT INTO "odd""table" ("key", "order") VALUES ($1, $2) ON CONFLICT ("key") DO UPDATE SET "order" = EXCLUDED."order"`,
		sql)
}

func TestIdentList(t *testing.T) {
	assert.Equal(t, `"id", "name", "value"`, identList([]string{"id", "name", "value"}))
}

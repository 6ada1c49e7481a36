package db

import (
	"slices"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpsertConfig describes a single-row INSERT ... ON CONFLICT DO UPDATE.
type UpsertConfig struct {
	Table        string   // optionally schema-qualified
	Columns      []string // insert columns, in placeholder order
	ConflictKeys []string // the unique constraint
	UpdateCols   []string // nil means every column not in ConflictKeys
}

// UpsertSQL renders cfg with $n placeholders for Columns. Identifiers are
// quoted with pgx.Identifier.
func UpsertSQL(cfg UpsertConfig) (string, error) {
	switch {
	case cfg.Table == "":
		return "", eris.New("db: upsert: no table specified")
	case len(cfg.Columns) == 0:
		return "", eris.New("db: upsert: no columns specified")
	case len(cfg.ConflictKeys) == 0:
		return "", eris.New("db: upsert: no conflict keys specified")
	}

	update := cfg.UpdateCols
	if update == nil {
		for _, c := range cfg.Columns {
			if !slices.Contains(cfg.ConflictKeys, c) {
				update = append(update, c)
			}
		}
	}
	if len(update) == 0 {
		return "", eris.New("db: upsert: nothing to update on conflict")
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(pgx.Identifier(strings.SplitN(cfg.Table, ".", 2)).Sanitize())
	b.WriteString(" (")
	b.WriteString(identList(cfg.Columns))
	b.WriteString(") VALUES (")
	for i := range cfg.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("$" + strconv.Itoa(i+1))
	}
	b.WriteString(") ON CONFLICT (")
	b.WriteString(identList(cfg.ConflictKeys))
	b.WriteString(") DO UPDATE SET ")
	for i, c := range update {
		if i > 0 {
			b.WriteString(", ")
		}
		id := pgx.Identifier{c}.Sanitize()
		b.WriteString(id + " = EXCLUDED." + id)
	}
	return b.String(), nil
}

func identList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}

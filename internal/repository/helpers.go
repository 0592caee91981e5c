package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// referenceTables whitelists the tables existingIDs may query.
var referenceTables = map[string]struct{}{
	"programs": {},
	"users":    {},
	"students": {},
	"sections": {},
	"sessions": {},
}

// existingIDs returns the subset of ids present in table.
func existingIDs(ctx context.Context, db sqlx.QueryerContext, table string, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return []string{}, nil
	}
	if _, ok := referenceTables[table]; !ok {
		return nil, fmt.Errorf("existing ids: unknown table %q", table)
	}
	query := fmt.Sprintf("SELECT id FROM %s WHERE id = ANY($1)", table)
	var found []string
	if err := sqlx.SelectContext(ctx, db, &found, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("lookup %s ids: %w", table, err)
	}
	return found, nil
}

// replaceLinks rewrites the rows of a join table owned by ownerID.
func replaceLinks(ctx context.Context, tx *sqlx.Tx, table, ownerColumn, linkColumn, ownerID string, linkIDs []string) error {
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s = $1", table, ownerColumn), ownerID); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}
	if len(linkIDs) == 0 {
		return nil
	}
	query := fmt.Sprintf(`INSERT INTO %s (%s, %s) SELECT $1, UNNEST($2::text[]) ON CONFLICT DO NOTHING`, table, ownerColumn, linkColumn)
	if _, err := tx.ExecContext(ctx, query, ownerID, pq.Array(linkIDs)); err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}

func toStrings(values pq.StringArray) []string {
	if values == nil {
		return []string{}
	}
	return []string(values)
}

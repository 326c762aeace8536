package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Apply runs every statement for d in one transaction. Statements are
// idempotent, so Apply is safe on an already migrated database.
func Apply(ctx context.Context, db *sql.DB, d Dialect) error {
	stmts, err := Statements(d)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	for i, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec migration statement %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migrations: %w", err)
	}
	committed = true
	return nil
}

// AppliedVersions lists recorded schema versions. An unmigrated database
// yields an empty list rather than an error.
func AppliedVersions(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM regime_schema_meta ORDER BY version")
	if err != nil {
		if isMissingTable(err) {
			return nil, nil
		}
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// NeedsMigration reports whether CurrentVersion is missing from db.
func NeedsMigration(ctx context.Context, db *sql.DB) (bool, error) {
	versions, err := AppliedVersions(ctx, db)
	if err != nil {
		return false, err
	}
	for _, v := range versions {
		if v == CurrentVersion {
			return false, nil
		}
	}
	return true, nil
}

func isMissingTable(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"no such table", "does not exist", "doesn't exist", "error 1146"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

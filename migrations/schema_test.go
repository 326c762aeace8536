package migrations

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	_ "modernc.org/sqlite"
)

func TestGenerateSQLScriptContainsAllTables(t *testing.T) {
	for _, d := range []Dialect{DialectPostgres, DialectMySQL, DialectSQLite} {
		script, err := GenerateSQLScript(d)
		if err != nil {
			t.Fatalf("generate %s script: %v", d, err)
		}
		for _, table := range Tables {
			if !strings.Contains(script, table) {
				t.Fatalf("%s script missing %s", d, table)
			}
		}
		if !strings.Contains(script, CurrentVersion) {
			t.Fatalf("%s script does not record schema version", d)
		}
	}
}

func TestGenerateSQLScriptRejectsUnknownDialect(t *testing.T) {
	if _, err := GenerateSQLScript(Dialect("oracle")); err == nil {
		t.Fatalf("expected error for unknown dialect")
	}
}

func TestParseDialectAliases(t *testing.T) {
	cases := map[string]Dialect{
		"postgresql": DialectPostgres,
		" PG ":       DialectPostgres,
		"mariadb":    DialectMySQL,
		"sqlite3":    DialectSQLite,
	}
	for in, want := range cases {
		got, err := ParseDialect(in)
		if err != nil {
			t.Fatalf("parse %q: %v", in, err)
		}
		if got != want {
			t.Fatalf("parse %q: expected %s got %s", in, want, got)
		}
	}
	if _, err := ParseDialect("mongo"); err == nil {
		t.Fatalf("expected error for unsupported dialect")
	}
}

func TestApplySQLiteMigrationsIsIdempotent(t *testing.T) {
	db, err := sql.Open("sqlite", "file:migrations-test.db?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()

	for i := 0; i < 2; i++ {
		if err := Apply(context.Background(), db, DialectSQLite); err != nil {
			t.Fatalf("apply migrations (pass %d): %v", i+1, err)
		}
	}

	for _, table := range Tables {
		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count); err != nil {
			t.Fatalf("query sqlite_master for %s: %v", table, err)
		}
		if count != 1 {
			t.Fatalf("expected table %s to exist", table)
		}
	}

	var version string
	if err := db.QueryRow("SELECT version FROM regime_schema_meta").Scan(&version); err != nil {
		t.Fatalf("read schema version: %v", err)
	}
	if version != CurrentVersion {
		t.Fatalf("expected version %s got %s", CurrentVersion, version)
	}
}

func TestNeedsMigration(t *testing.T) {
	db, err := sql.Open("sqlite", "file:needs-migration-test.db?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()
	ctx := context.Background()

	needs, err := NeedsMigration(ctx, db)
	if err != nil {
		t.Fatalf("needs migration on empty db: %v", err)
	}
	if !needs {
		t.Fatalf("expected empty database to need migration")
	}

	if err := Apply(ctx, db, DialectSQLite); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	needs, err = NeedsMigration(ctx, db)
	if err != nil {
		t.Fatalf("needs migration after apply: %v", err)
	}
	if needs {
		t.Fatalf("expected migrated database to be current")
	}
}

func TestParseDatabaseURL(t *testing.T) {
	cases := []struct {
		in      string
		dialect Dialect
		dsn     string
	}{
		{"postgres://u:p@localhost:5432/regime?sslmode=disable", DialectPostgres, "postgres://u:p@localhost:5432/regime?sslmode=disable"},
		{"postgresql://localhost/regime", DialectPostgres, "postgresql://localhost/regime"},
		{"mysql://u:p@tcp(localhost:3306)/regime", DialectMySQL, "u:p@tcp(localhost:3306)/regime"},
		{"sqlite://regime.db", DialectSQLite, "regime.db"},
		{"file:regime.db?cache=shared", DialectSQLite, "file:regime.db?cache=shared"},
	}
	for _, tc := range cases {
		d, dsn, err := ParseDatabaseURL(tc.in)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.in, err)
		}
		if d != tc.dialect || dsn != tc.dsn {
			t.Fatalf("parse %q: got (%s, %q) want (%s, %q)", tc.in, d, dsn, tc.dialect, tc.dsn)
		}
	}
	for _, bad := range []string{"", "regime.db", "redis://localhost", "mysql://"} {
		if _, _, err := ParseDatabaseURL(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

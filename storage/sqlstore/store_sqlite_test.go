package sqlstore

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/SnowzyTech/regime/migrations"
	"github.com/SnowzyTech/regime/storage/storagetest"
)

func TestSQLiteStore(t *testing.T) {
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "regime.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if err := migrations.Apply(context.Background(), db, migrations.DialectSQLite); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	storagetest.Run(t, NewSQLite(db))
}

func TestSQLiteRejectsOutOfRangeRating(t *testing.T) {
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "regime.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := migrations.Apply(ctx, db, migrations.DialectSQLite); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	store := NewSQLite(db)
	if _, err := store.db.ExecContext(ctx,
		"INSERT INTO testimonials (id, product_id, user_name, rating, review, review_date, image_url, created_at, updated_at) VALUES ('x', 'p', 'n', 9, 'r', '', '', 0, 0)",
	); err == nil {
		t.Fatalf("expected rating check constraint to reject 9")
	}
}

package migration

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/untoldecay/modeldag/internal/snapshot"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "migration_test.db")
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRunIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := Run(ctx, db, Current(), "", time.Second); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := Run(ctx, db, Current(), "", time.Second); err != nil {
		t.Fatalf("second run: %v", err)
	}

	var stored snapshot.Versions
	row := db.QueryRowContext(ctx, `SELECT schema_version, parser_version FROM _versions WHERE id = 1`)
	if err := row.Scan(&stored.SchemaVersion, &stored.ParserVersion); err != nil {
		t.Fatalf("read versions: %v", err)
	}
	if stored.SchemaVersion != Current().SchemaVersion {
		t.Fatalf("expected schema_version %d, got %d", Current().SchemaVersion, stored.SchemaVersion)
	}
	if stored.ParserVersion != ParserVersion {
		t.Fatalf("expected parser_version %s, got %s", ParserVersion, stored.ParserVersion)
	}
}

func TestRunWithLockPathGuardsConcurrentCallers(t *testing.T) {
	db := openTestDB(t)
	lockPath := filepath.Join(t.TempDir(), "migrate.lock")

	if err := Run(context.Background(), db, Current(), lockPath, 2*time.Second); err != nil {
		t.Fatalf("run with lock: %v", err)
	}
	// A second run against the same (now up-to-date) database should be a
	// fast no-op, not a fight over the lock.
	if err := Run(context.Background(), db, Current(), lockPath, 2*time.Second); err != nil {
		t.Fatalf("second run with lock: %v", err)
	}
}

func TestCompareParserMinor(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"v1.4", "v1.4", 0},
		{"v1.5", "v1.4", 1},
		{"v1.3", "v1.4", -1},
		{"not-semver", "also-not", 1}, // plain string comparison fallback
	}
	for _, c := range cases {
		if got := CompareParserMinor(c.a, c.b); sign(got) != sign(c.want) {
			t.Fatalf("CompareParserMinor(%q, %q) = %d, want sign %d", c.a, c.b, got, c.want)
		}
	}
}

func sign(n int) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	default:
		return 0
	}
}

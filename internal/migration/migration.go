// Package migration runs the ordered schema-migration registry against
// the state store, per spec §4.7. Grounded on the teacher's
// internal/storage/sqlite/migrations.go: an ordered []Migration slice,
// each entry a named function that mutates the schema, applied in order
// and individually idempotent so a mid-run crash can resume.
package migration

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/mod/semver"

	"github.com/untoldecay/modeldag/internal/snapshot"
)

// ParserVersion is the running binary's parser version string, compared
// against the value persisted in _versions. Semver-ish: "vMAJOR.MINOR".
const ParserVersion = "v1.4"

// Migration is one named, idempotent schema change.
type Migration struct {
	Name string
	Func func(*sql.DB) error
}

// registry is the ordered list of all migrations to run. SchemaVersion
// equals len(registry); new migrations are appended, never reordered or
// removed.
var registry = []Migration{
	{"add_dev_intervals_flag", migrateNoop}, // _intervals.is_dev shipped in the base schema; kept for parity with a pre-is_dev schema generation
	{"add_ttl_column", migrateNoop},         // snapshot.TTLMillis is carried in the JSON payload, not a column; no DDL needed
}

// Current is the running binary's schema/parser version pair, used for
// the version gate in Store.GetVersions.
func Current() snapshot.Versions {
	return snapshot.Versions{SchemaVersion: len(registry), ParserVersion: ParserVersion}
}

func migrateNoop(*sql.DB) error { return nil }

// Run applies every pending migration in order, then re-serializes rows
// and updates the _versions record. Not transactional across the whole
// sequence — each migration must be individually idempotent, per spec
// §4.7, so a crash mid-sequence can resume from Run being called again.
//
// lockPath guards the run with an on-disk advisory lock (gofrs/flock), the
// same mechanism the teacher reaches for wherever two process instances
// could otherwise race on the same file; multiple processes pointed at the
// same database serialize their migration attempts instead of racing the
// schema forward concurrently. An empty lockPath skips locking, for
// databases (like an in-memory SQLite DSN) with nothing on disk to guard.
func Run(ctx context.Context, db *sql.DB, running snapshot.Versions, lockPath string, lockTimeout time.Duration) error {
	if lockPath != "" {
		fl := flock.New(lockPath)
		lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
		defer cancel()
		locked, err := fl.TryLockContext(lockCtx, 50*time.Millisecond)
		if err != nil {
			return fmt.Errorf("migrate: acquire lock %s: %w", lockPath, err)
		}
		if !locked {
			return fmt.Errorf("migrate: timed out acquiring lock %s", lockPath)
		}
		defer fl.Unlock()
	}

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS _versions (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			schema_version INTEGER NOT NULL,
			parser_version TEXT NOT NULL
		)`); err != nil {
		return fmt.Errorf("migrate: ensure _versions: %w", err)
	}

	var stored snapshot.Versions
	row := db.QueryRowContext(ctx, `SELECT schema_version, parser_version FROM _versions WHERE id = 1`)
	err := row.Scan(&stored.SchemaVersion, &stored.ParserVersion)
	if err == sql.ErrNoRows {
		stored = snapshot.Versions{}
	} else if err != nil {
		return fmt.Errorf("migrate: read versions: %w", err)
	}

	if stored.SchemaVersion >= running.SchemaVersion && CompareParserMinor(running.ParserVersion, stored.ParserVersion) >= 0 {
		return nil // nothing pending
	}

	for i := stored.SchemaVersion; i < len(registry); i++ {
		if err := registry[i].Func(db); err != nil {
			return fmt.Errorf("migrate: step %q: %w", registry[i].Name, err)
		}
	}

	if err := migrateRows(ctx, db); err != nil {
		return fmt.Errorf("migrate: rewrite rows: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO _versions (id, schema_version, parser_version) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET schema_version = excluded.schema_version, parser_version = excluded.parser_version`,
		running.SchemaVersion, running.ParserVersion)
	if err != nil {
		return fmt.Errorf("migrate: update versions: %w", err)
	}
	return nil
}

// migrateRows re-serializes persisted snapshots/environments under the
// current schema. The core's payload columns are already
// forward-compatible JSON, so this is a no-op today; it exists as the
// hook future migrations that change the payload shape will extend.
func migrateRows(_ context.Context, _ *sql.DB) error { return nil }

// CompareParserMinor compares two "vMAJOR.MINOR"-style version strings,
// returning -1/0/1 the way strings.Compare does. Falls back to a plain
// string comparison if either value isn't valid semver, since the stored
// parser_version predates strict validation in older databases.
func CompareParserMinor(a, b string) int {
	av, bv := normalizeSemver(a), normalizeSemver(b)
	if semver.IsValid(av) && semver.IsValid(bv) {
		return semver.Compare(av, bv)
	}
	return strings.Compare(a, b)
}

// normalizeSemver turns "v1.4" into "v1.4.0" so the stdlib-adjacent
// golang.org/x/mod/semver parser (which requires a patch component)
// accepts it.
func normalizeSemver(v string) string {
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	parts := strings.Split(strings.TrimPrefix(v, "v"), ".")
	for len(parts) < 3 {
		parts = append(parts, "0")
	}
	for _, p := range parts {
		if _, err := strconv.Atoi(p); err != nil {
			return v // leave malformed components alone; IsValid will reject it
		}
	}
	return "v" + strings.Join(parts, ".")
}

package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/untoldecay/modeldag/internal/model"
	"github.com/untoldecay/modeldag/internal/snapshot"
)

// sqliteEvaluator is the CLI's built-in scheduler.SnapshotEvaluator: it
// executes a model's rendered SQL directly against the same SQLite
// database backing the state store. The core has no opinion on physical
// storage engine (non-goal, per spec §1); this is the CLI's own default
// target, suitable for local development and the examples in this repo,
// the way the teacher's own cmd/bd talks straight to its bundled SQLite
// database rather than through an abstraction layer.
//
// A model's RenderedSQL may reference the placeholders {{start}} and
// {{end}} (epoch milliseconds), substituted before execution so
// incremental models can filter their source rows to the current batch.
type sqliteEvaluator struct {
	db *sql.DB
}

func newSQLiteEvaluator(db *sql.DB) *sqliteEvaluator { return &sqliteEvaluator{db: db} }

func (e *sqliteEvaluator) Create(ctx context.Context, newSnapshots []snapshot.Snapshot, _ map[snapshot.ID]snapshot.Snapshot) error {
	for _, snap := range newSnapshots {
		table := quoteIdent(snap.PhysicalTableName())
		query := substitutePlaceholders(renderedSQLOf(snap), 0, 0)
		var stmt string
		if isViewlike(snap) {
			// VIEW/EMBEDDED kinds have no data of their own: give their
			// physical name a live pass-through query instead of a table,
			// so Promote's "SELECT * FROM <physical>" still resolves.
			stmt = fmt.Sprintf(`CREATE VIEW IF NOT EXISTS %s AS %s`, table, query)
		} else {
			stmt = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s AS SELECT * FROM (%s) AS _src WHERE 0 = 1`, table, query)
		}
		if _, err := e.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create table for %s: %w", snap.ID(), err)
		}
	}
	return nil
}

func (e *sqliteEvaluator) Evaluate(ctx context.Context, snap snapshot.Snapshot, start, end, _ int64, _ map[snapshot.ID]snapshot.Snapshot) error {
	if isViewlike(snap) {
		return nil
	}
	table := quoteIdent(snap.PhysicalTableName())
	query := substitutePlaceholders(renderedSQLOf(snap), start, end)

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("evaluate %s: begin: %w", snap.ID(), err)
	}
	defer func() { _ = tx.Rollback() }()

	if snap.Kind.Incremental() {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE %s >= ? AND %s < ?`, table, timeColumnOf(snap), timeColumnOf(snap)), start, end); err != nil {
			return fmt.Errorf("evaluate %s: clear interval: %w", snap.ID(), err)
		}
	} else {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, table)); err != nil {
			return fmt.Errorf("evaluate %s: clear table: %w", snap.ID(), err)
		}
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s SELECT * FROM (%s) AS _src`, table, query)); err != nil {
		return fmt.Errorf("evaluate %s: insert: %w", snap.ID(), err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("evaluate %s: commit: %w", snap.ID(), err)
	}
	return nil
}

func (e *sqliteEvaluator) Promote(ctx context.Context, infos []snapshot.SnapshotTableInfo, environment string, _ bool) error {
	for _, info := range infos {
		viewName := quoteIdent(environmentViewName(environment, info.Name))
		if _, err := e.db.ExecContext(ctx, fmt.Sprintf(`DROP VIEW IF EXISTS %s`, viewName)); err != nil {
			return fmt.Errorf("promote %s.%s: drop stale view: %w", environment, info.Name, err)
		}
		stmt := fmt.Sprintf(`CREATE VIEW %s AS SELECT * FROM %s`, viewName, quoteIdent(info.PhysicalTableName))
		if _, err := e.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("promote %s.%s: %w", environment, info.Name, err)
		}
	}
	return nil
}

func (e *sqliteEvaluator) Demote(ctx context.Context, infos []snapshot.SnapshotTableInfo, environment string) error {
	for _, info := range infos {
		viewName := quoteIdent(environmentViewName(environment, info.Name))
		if _, err := e.db.ExecContext(ctx, fmt.Sprintf(`DROP VIEW IF EXISTS %s`, viewName)); err != nil {
			return fmt.Errorf("demote %s.%s: %w", environment, info.Name, err)
		}
	}
	return nil
}

func (e *sqliteEvaluator) Migrate(context.Context, []snapshot.SnapshotTableInfo) error {
	return nil // physical tables are forward-compatible by construction; nothing to alter
}

func environmentViewName(environment, modelName string) string {
	return fmt.Sprintf("%s__%s", sanitizeIdent(environment), sanitizeIdent(modelName))
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func sanitizeIdent(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

func substitutePlaceholders(sqlText string, start, end int64) string {
	r := strings.NewReplacer(
		"{{start}}", fmt.Sprintf("%d", start),
		"{{end}}", fmt.Sprintf("%d", end),
	)
	return r.Replace(sqlText)
}

// renderedSQLOf and timeColumnOf are thin accessors kept separate so a
// future dialect-aware evaluator can override just these two points.
func renderedSQLOf(snap snapshot.Snapshot) string { return snap.RenderedSQL() }

func timeColumnOf(snap snapshot.Snapshot) string {
	if k, ok := snap.Kind.(model.IncrementalByTime); ok {
		return k.TimeColumn
	}
	return "ts"
}

// isViewlike reports whether snap's kind has no physical table of its own
// (VIEW and EMBEDDED kinds, per spec §2).
func isViewlike(snap snapshot.Snapshot) bool {
	switch snap.Kind.(type) {
	case model.View, model.Embedded:
		return true
	default:
		return false
	}
}

// Package sqlitestate is the SQLite-backed StateStore, grounded on the
// teacher's internal/storage/sqlite package: a single *sql.DB opened
// against the pure-Go ncruces/go-sqlite3 driver, writes serialized by an
// in-process mutex (writeMu), snapshots/environments persisted as
// JSON payload columns the way the teacher persists its audit log as
// JSON lines (internal/audit/audit.go).
package sqlitestate

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/untoldecay/modeldag/internal/fingerprint"
	"github.com/untoldecay/modeldag/internal/interval"
	"github.com/untoldecay/modeldag/internal/migration"
	"github.com/untoldecay/modeldag/internal/model"
	"github.com/untoldecay/modeldag/internal/modelerr"
	"github.com/untoldecay/modeldag/internal/snapshot"
	"github.com/untoldecay/modeldag/internal/state"
)

// Store is the SQLite-backed implementation of state.Store.
type Store struct {
	db *sql.DB
	// writeMu serializes writes made through this *Store: a writer takes
	// it for the whole operation, so concurrent writers wait their turn.
	// Readers use their own connections from the pool and never block
	// on this.
	writeMu sync.Mutex

	runningVersion snapshot.Versions
	lockPath       string
	lockTimeout    time.Duration
}

var _ state.Store = (*Store)(nil)

// Open opens (creating if absent) the SQLite database at dsn and ensures
// the base schema exists. It does not run the migration registry; call
// Migrate for that. lockTimeout bounds how long Migrate waits to acquire
// the on-disk advisory lock guarding concurrent migration attempts
// against this dsn.
func Open(dsn string, running snapshot.Versions, lockTimeout time.Duration) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}
	if _, err := db.Exec(schemaDDL); err != nil {
		return nil, fmt.Errorf("open state store: apply base schema: %w", err)
	}
	return &Store{db: db, runningVersion: running, lockPath: lockPathFor(dsn), lockTimeout: lockTimeout}, nil
}

// lockPathFor derives the advisory-lock file path from a sqlite DSN,
// stripping the "file:" scheme and any "?query" parameters ncruces/go-sqlite3
// accepts (e.g. "file:modeldag.db?_pragma=busy_timeout(5000)").
func lockPathFor(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return "" // in-memory databases have no peer process to race against
	}
	return path + ".lock"
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) GetSnapshots(ctx context.Context, ids []snapshot.ID) (map[snapshot.ID]snapshot.Snapshot, error) {
	out := make(map[snapshot.ID]snapshot.Snapshot, len(ids))
	for _, id := range ids {
		row := s.db.QueryRowContext(ctx,
			`SELECT payload FROM _snapshots WHERE name = ? AND data_hash = ? AND metadata_hash = ?`,
			id.Name, id.Fingerprint.DataHash, id.Fingerprint.MetadataHash)
		var payload string
		if err := row.Scan(&payload); err != nil {
			if err == sql.ErrNoRows {
				continue
			}
			return nil, modelerr.StateErrorWrap(err, "get_snapshots")
		}
		snap, err := decodeSnapshot(payload)
		if err != nil {
			return nil, modelerr.StateErrorWrap(err, "get_snapshots: decode %s", id)
		}
		out[id] = snap
	}
	return out, nil
}

func (s *Store) GetSnapshotsWithSameVersion(ctx context.Context, pairs []state.NameVersion) ([]snapshot.Snapshot, error) {
	var out []snapshot.Snapshot
	for _, p := range pairs {
		rows, err := s.db.QueryContext(ctx, `SELECT payload FROM _snapshots WHERE name = ? AND version = ?`, p.Name, p.Version)
		if err != nil {
			return nil, modelerr.StateErrorWrap(err, "get_snapshots_with_same_version")
		}
		if err := scanSnapshots(rows, &out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) SnapshotsExist(ctx context.Context, ids []snapshot.ID) (map[snapshot.ID]bool, error) {
	out := make(map[snapshot.ID]bool, len(ids))
	for _, id := range ids {
		var count int
		err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM _snapshots WHERE name = ? AND data_hash = ? AND metadata_hash = ?`,
			id.Name, id.Fingerprint.DataHash, id.Fingerprint.MetadataHash).Scan(&count)
		if err != nil {
			return nil, modelerr.StateErrorWrap(err, "snapshots_exist")
		}
		out[id] = count > 0
	}
	return out, nil
}

func (s *Store) GetEnvironment(ctx context.Context, name string) (*snapshot.Environment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT payload FROM _environments WHERE name = ?`, name)
	var payload string
	if err := row.Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, modelerr.StateErrorWrap(err, "get_environment")
	}
	var env snapshot.Environment
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return nil, modelerr.StateErrorWrap(err, "get_environment: decode")
	}
	return &env, nil
}

func (s *Store) GetEnvironments(ctx context.Context) ([]snapshot.Environment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM _environments`)
	if err != nil {
		return nil, modelerr.StateErrorWrap(err, "get_environments")
	}
	defer rows.Close()
	var out []snapshot.Environment
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, modelerr.StateErrorWrap(err, "get_environments: scan")
		}
		var env snapshot.Environment
		if err := json.Unmarshal([]byte(payload), &env); err != nil {
			return nil, modelerr.StateErrorWrap(err, "get_environments: decode")
		}
		out = append(out, env)
	}
	return out, rows.Err()
}

func (s *Store) GetSnapshotsByModels(ctx context.Context, names ...string) ([]snapshot.Snapshot, error) {
	var out []snapshot.Snapshot
	for _, name := range names {
		rows, err := s.db.QueryContext(ctx, `SELECT payload FROM _snapshots WHERE name = ?`, name)
		if err != nil {
			return nil, modelerr.StateErrorWrap(err, "get_snapshots_by_models")
		}
		if err := scanSnapshots(rows, &out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// GetVersions implements the version gate from spec §4.3: local
// schema_version below the persisted row means the caller must migrate;
// above it also means migrate (schema moved forward in code without a
// migration run yet is treated the same as behind, since either way the
// two disagree). A parser minor behind the stored version is always an
// upgrade-required StateError; parser minor ahead is permitted.
func (s *Store) GetVersions(ctx context.Context, validate bool) (snapshot.Versions, error) {
	row := s.db.QueryRowContext(ctx, `SELECT schema_version, parser_version FROM _versions WHERE id = 1`)
	var stored snapshot.Versions
	err := row.Scan(&stored.SchemaVersion, &stored.ParserVersion)
	if err == sql.ErrNoRows {
		stored = snapshot.Versions{} // unmigrated database
		err = nil
	}
	if err != nil {
		return snapshot.Versions{}, modelerr.StateErrorWrap(err, "get_versions")
	}
	if !validate {
		return stored, nil
	}
	if stored.SchemaVersion != s.runningVersion.SchemaVersion {
		return stored, modelerr.StateError(
			"schema_version mismatch: local %d, stored %d — run migrate()", s.runningVersion.SchemaVersion, stored.SchemaVersion)
	}
	cmp := migration.CompareParserMinor(s.runningVersion.ParserVersion, stored.ParserVersion)
	if cmp < 0 {
		return stored, modelerr.StateError(
			"parser version %s is older than stored %s — upgrade required", s.runningVersion.ParserVersion, stored.ParserVersion)
	}
	return stored, nil
}

func (s *Store) GetIntervals(ctx context.Context, version string, dev bool) (interval.Set, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT start_ms, end_ms FROM _intervals WHERE version = ? AND is_dev = ?`, version, boolToInt(dev))
	if err != nil {
		return nil, modelerr.StateErrorWrap(err, "get_intervals")
	}
	defer rows.Close()
	var set interval.Set
	for rows.Next() {
		var iv interval.Interval
		if err := rows.Scan(&iv.Start, &iv.End); err != nil {
			return nil, modelerr.StateErrorWrap(err, "get_intervals: scan")
		}
		set = set.Add(iv.Start, iv.End)
	}
	return set, rows.Err()
}

func (s *Store) PushSnapshots(ctx context.Context, snapshots []snapshot.Snapshot) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return modelerr.StateErrorWrap(err, "push_snapshots: begin")
	}
	defer func() { _ = tx.Rollback() }()

	for _, snap := range snapshots {
		var count int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM _snapshots WHERE name = ? AND data_hash = ? AND metadata_hash = ?`,
			snap.Name, snap.Fingerprint.DataHash, snap.Fingerprint.MetadataHash).Scan(&count)
		if err != nil {
			return modelerr.StateErrorWrap(err, "push_snapshots: exists check")
		}
		if count > 0 {
			return modelerr.ConflictError("snapshot %s already exists", snap.ID())
		}
	}
	for _, snap := range snapshots {
		payload, err := encodeSnapshot(snap)
		if err != nil {
			return modelerr.StateErrorWrap(err, "push_snapshots: encode")
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO _snapshots (name, data_hash, metadata_hash, version, payload, created_ts) VALUES (?, ?, ?, ?, ?, ?)`,
			snap.Name, snap.Fingerprint.DataHash, snap.Fingerprint.MetadataHash, snap.Version, payload, snap.CreatedTS)
		if err != nil {
			return modelerr.StateErrorWrap(err, "push_snapshots: insert")
		}
	}
	if err := tx.Commit(); err != nil {
		return modelerr.StateErrorWrap(err, "push_snapshots: commit")
	}
	return nil
}

func (s *Store) DeleteSnapshots(ctx context.Context, ids []snapshot.ID) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	for _, id := range ids {
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM _snapshots WHERE name = ? AND data_hash = ? AND metadata_hash = ?`,
			id.Name, id.Fingerprint.DataHash, id.Fingerprint.MetadataHash); err != nil {
			return modelerr.StateErrorWrap(err, "delete_snapshots")
		}
	}
	return nil
}

func (s *Store) DeleteExpiredSnapshots(ctx context.Context, nowMillis int64) ([]snapshot.ID, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT name, data_hash, metadata_hash, payload, created_ts FROM _snapshots`)
	if err != nil {
		return nil, modelerr.StateErrorWrap(err, "delete_expired_snapshots")
	}
	type row struct {
		id        snapshot.ID
		createdTS int64
		ttl       int64
	}
	var candidates []row
	for rows.Next() {
		var name, dataHash, metaHash, payload string
		var createdTS int64
		if err := rows.Scan(&name, &dataHash, &metaHash, &payload, &createdTS); err != nil {
			rows.Close()
			return nil, modelerr.StateErrorWrap(err, "delete_expired_snapshots: scan")
		}
		snap, err := decodeSnapshot(payload)
		if err != nil {
			rows.Close()
			return nil, modelerr.StateErrorWrap(err, "delete_expired_snapshots: decode")
		}
		candidates = append(candidates, row{id: snap.ID(), createdTS: createdTS, ttl: snap.TTLMillis})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, modelerr.StateErrorWrap(err, "delete_expired_snapshots")
	}

	referenced, err := s.referencedSnapshotIDs(ctx)
	if err != nil {
		return nil, err
	}

	var expired []snapshot.ID
	for _, c := range candidates {
		if referenced[c.id] {
			continue
		}
		if c.ttl > 0 && c.createdTS+c.ttl < nowMillis {
			expired = append(expired, c.id)
		}
	}
	for _, id := range expired {
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM _snapshots WHERE name = ? AND data_hash = ? AND metadata_hash = ?`,
			id.Name, id.Fingerprint.DataHash, id.Fingerprint.MetadataHash); err != nil {
			return nil, modelerr.StateErrorWrap(err, "delete_expired_snapshots: delete")
		}
	}
	return expired, nil
}

func (s *Store) referencedSnapshotIDs(ctx context.Context) (map[snapshot.ID]bool, error) {
	envs, err := s.GetEnvironments(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[snapshot.ID]bool)
	for _, env := range envs {
		for _, info := range env.Snapshots {
			out[snapshot.ID{Name: info.Name, Fingerprint: info.Fingerprint}] = true
		}
	}
	return out, nil
}

func (s *Store) DeleteExpiredEnvironments(ctx context.Context, nowMillis int64) ([]string, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM _environments WHERE expiration_ts IS NOT NULL AND expiration_ts < ?`, nowMillis)
	if err != nil {
		return nil, modelerr.StateErrorWrap(err, "delete_expired_environments")
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, modelerr.StateErrorWrap(err, "delete_expired_environments: scan")
		}
		names = append(names, name)
	}
	rows.Close()
	for _, name := range names {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM _environments WHERE name = ?`, name); err != nil {
			return nil, modelerr.StateErrorWrap(err, "delete_expired_environments: delete")
		}
	}
	return names, nil
}

func (s *Store) AddInterval(ctx context.Context, id snapshot.ID, start, end int64, isDev bool) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	snaps, err := s.GetSnapshots(ctx, []snapshot.ID{id})
	if err != nil {
		return err
	}
	snap, ok := snaps[id]
	if !ok {
		return modelerr.StateError("add_interval: unknown snapshot %s", id)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO _intervals (version, is_dev, start_ms, end_ms) VALUES (?, ?, ?, ?)`,
		snap.Version, boolToInt(isDev), start, end)
	if err != nil {
		return modelerr.StateErrorWrap(err, "add_interval")
	}
	return nil
}

func (s *Store) RemoveInterval(ctx context.Context, ids []snapshot.ID, start, end int64, allSnapshots bool) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	versions := make(map[string]bool)
	for _, id := range ids {
		snaps, err := s.GetSnapshots(ctx, []snapshot.ID{id})
		if err != nil {
			return err
		}
		if snap, ok := snaps[id]; ok {
			versions[snap.Version] = true
		}
	}
	// allSnapshots is a no-op here: intervals are already keyed by
	// version rather than by individual snapshot_id, so every sibling
	// sharing a version is affected regardless of which snapshot_id the
	// caller named.
	for version := range versions {
		cur, err := s.GetIntervals(ctx, version, false)
		if err != nil {
			return err
		}
		next := cur.Remove(start, end)
		if err := s.rewriteIntervals(ctx, version, false, next); err != nil {
			return err
		}
		curDev, err := s.GetIntervals(ctx, version, true)
		if err != nil {
			return err
		}
		nextDev := curDev.Remove(start, end)
		if err := s.rewriteIntervals(ctx, version, true, nextDev); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) rewriteIntervals(ctx context.Context, version string, isDev bool, set interval.Set) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return modelerr.StateErrorWrap(err, "rewrite_intervals: begin")
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `DELETE FROM _intervals WHERE version = ? AND is_dev = ?`, version, boolToInt(isDev)); err != nil {
		return modelerr.StateErrorWrap(err, "rewrite_intervals: delete")
	}
	for _, iv := range set {
		if _, err := tx.ExecContext(ctx, `INSERT INTO _intervals (version, is_dev, start_ms, end_ms) VALUES (?, ?, ?, ?)`,
			version, boolToInt(isDev), iv.Start, iv.End); err != nil {
			return modelerr.StateErrorWrap(err, "rewrite_intervals: insert")
		}
	}
	return tx.Commit()
}

func (s *Store) Promote(ctx context.Context, env snapshot.Environment, noGaps bool, nowMillis int64) (added, removed []snapshot.SnapshotTableInfo, err error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	prior, ferr := s.GetEnvironment(ctx, env.Name)
	if ferr != nil {
		return nil, nil, ferr
	}
	priorByName := make(map[string]snapshot.SnapshotTableInfo)
	if prior != nil {
		for _, info := range prior.Snapshots {
			priorByName[info.Name] = info
		}
	}
	newByName := make(map[string]snapshot.SnapshotTableInfo)
	for _, info := range env.Snapshots {
		newByName[info.Name] = info
	}

	if verr := env.Validate(func(name string) ([]string, bool) {
		info, ok := newByName[name]
		if !ok {
			return nil, false
		}
		snaps, serr := s.GetSnapshots(ctx, []snapshot.ID{{Name: info.Name, Fingerprint: info.Fingerprint}})
		if serr != nil {
			return nil, false
		}
		snap, ok := snaps[snapshot.ID{Name: info.Name, Fingerprint: info.Fingerprint}]
		if !ok {
			return nil, false
		}
		parents := make([]string, 0, len(snap.Parents))
		for _, p := range snap.Parents {
			parents = append(parents, p.Name)
		}
		return parents, true
	}); verr != nil {
		return nil, nil, modelerr.ConfigError("%v", verr)
	}

	if noGaps {
		for name, info := range newByName {
			priorInfo, existed := priorByName[name]
			if !existed {
				continue // brand-new model: no_gaps only constrains models that already existed
			}
			if priorInfo.Fingerprint == info.Fingerprint {
				continue // same snapshot as the prior promotion: not newly added
			}
			cov, cerr := s.GetIntervals(ctx, info.Version, false)
			if cerr != nil {
				return nil, nil, cerr
			}
			if !cov.Covers(env.StartAt, env.EndOrNow(nowMillis)) {
				return nil, nil, modelerr.ConflictError(
					"promote %s: model %q has gaps in [%d, %d)", env.Name, name, env.StartAt, env.EndOrNow(nowMillis))
			}
		}
	}

	for name, info := range newByName {
		if prev, existed := priorByName[name]; !existed || prev.Fingerprint != info.Fingerprint {
			added = append(added, info)
		}
	}
	for name, info := range priorByName {
		if _, stillPresent := newByName[name]; !stillPresent {
			removed = append(removed, info)
		}
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return nil, nil, modelerr.StateErrorWrap(err, "promote: encode")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO _environments (name, payload, expiration_ts) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET payload = excluded.payload, expiration_ts = excluded.expiration_ts`,
		env.Name, string(payload), env.ExpirationTS)
	if err != nil {
		return nil, nil, modelerr.StateErrorWrap(err, "promote: upsert")
	}
	return added, removed, nil
}

func (s *Store) UnpauseSnapshots(ctx context.Context, ids []snapshot.ID, unpausedAtMillis int64) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	for _, id := range ids {
		snaps, err := s.GetSnapshots(ctx, []snapshot.ID{id})
		if err != nil {
			return err
		}
		snap, ok := snaps[id]
		if !ok || snap.PausedTS == nil {
			continue
		}
		snap.PausedTS = nil
		payload, err := encodeSnapshot(snap)
		if err != nil {
			return modelerr.StateErrorWrap(err, "unpause_snapshots: encode")
		}
		_, err = s.db.ExecContext(ctx,
			`UPDATE _snapshots SET payload = ? WHERE name = ? AND data_hash = ? AND metadata_hash = ?`,
			payload, id.Name, id.Fingerprint.DataHash, id.Fingerprint.MetadataHash)
		if err != nil {
			return modelerr.StateErrorWrap(err, "unpause_snapshots: update")
		}
	}
	return nil
}

func (s *Store) Migrate(ctx context.Context) error {
	return migration.Run(ctx, s.db, s.runningVersion, s.lockPath, s.lockTimeout)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func scanSnapshots(rows *sql.Rows, out *[]snapshot.Snapshot) error {
	defer rows.Close()
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return modelerr.StateErrorWrap(err, "scan snapshot")
		}
		snap, err := decodeSnapshot(payload)
		if err != nil {
			return modelerr.StateErrorWrap(err, "decode snapshot")
		}
		*out = append(*out, snap)
	}
	return rows.Err()
}

// snapshotDTO mirrors snapshot.Snapshot but serializes model.Kind (an
// interface) as an explicit tagged struct.
type snapshotDTO struct {
	Name           string
	DataHash       string
	MetadataHash   string
	Version        string
	Parents        []idDTO
	Kind           kindDTO
	ChangeCategory fingerprint.ChangeCategory
	PausedTS       *int64
	TTLMillis      int64
	StartDate      *int64
	CreatedTS      int64
	RenderedSQL    string
	Schema         []columnDTO
}

type idDTO struct {
	Name         string
	DataHash     string
	MetadataHash string
}

type kindDTO struct {
	Tag        string
	TimeColumn string
	CronExpr   string
	LookbackNo int
}

type columnDTO struct {
	Name string
	Type string
}

func encodeSnapshot(snap snapshot.Snapshot) (string, error) {
	dto := snapshotDTO{
		Name:           snap.Name,
		DataHash:       snap.Fingerprint.DataHash,
		MetadataHash:   snap.Fingerprint.MetadataHash,
		Version:        snap.Version,
		ChangeCategory: snap.ChangeCategory,
		PausedTS:       snap.PausedTS,
		TTLMillis:      snap.TTLMillis,
		StartDate:      snap.StartDate,
		CreatedTS:      snap.CreatedTS,
		Kind:           kindToDTO(snap.Kind),
		RenderedSQL:    snap.RenderedSQL(),
	}
	for _, p := range snap.Parents {
		dto.Parents = append(dto.Parents, idDTO{Name: p.Name, DataHash: p.Fingerprint.DataHash, MetadataHash: p.Fingerprint.MetadataHash})
	}
	for _, c := range snap.Schema {
		dto.Schema = append(dto.Schema, columnDTO{Name: c.Name, Type: c.Type})
	}
	b, err := json.Marshal(dto)
	return string(b), err
}

func decodeSnapshot(payload string) (snapshot.Snapshot, error) {
	var dto snapshotDTO
	if err := json.Unmarshal([]byte(payload), &dto); err != nil {
		return snapshot.Snapshot{}, err
	}
	snap := snapshot.Snapshot{
		Name:            dto.Name,
		Fingerprint:     fingerprint.Fingerprint{DataHash: dto.DataHash, MetadataHash: dto.MetadataHash},
		Version:         dto.Version,
		ChangeCategory:  dto.ChangeCategory,
		PausedTS:        dto.PausedTS,
		TTLMillis:       dto.TTLMillis,
		StartDate:       dto.StartDate,
		CreatedTS:       dto.CreatedTS,
		Kind:            dtoToKind(dto.Kind),
		RenderedSQLText: dto.RenderedSQL,
	}
	for _, p := range dto.Parents {
		snap.Parents = append(snap.Parents, snapshot.ID{Name: p.Name, Fingerprint: fingerprint.Fingerprint{DataHash: p.DataHash, MetadataHash: p.MetadataHash}})
	}
	for _, c := range dto.Schema {
		snap.Schema = append(snap.Schema, model.ColumnDef{Name: c.Name, Type: c.Type})
	}
	return snap, nil
}

func kindToDTO(k model.Kind) kindDTO {
	switch v := k.(type) {
	case model.Full:
		return kindDTO{Tag: "FULL"}
	case model.IncrementalByTime:
		return kindDTO{Tag: "INCREMENTAL_BY_TIME", TimeColumn: v.TimeColumn, CronExpr: v.CronExpr, LookbackNo: v.LookbackNo}
	case model.View:
		return kindDTO{Tag: "VIEW"}
	case model.Embedded:
		return kindDTO{Tag: "EMBEDDED"}
	case model.Seed:
		return kindDTO{Tag: "SEED"}
	default:
		return kindDTO{Tag: "FULL"}
	}
}

func dtoToKind(d kindDTO) model.Kind {
	switch d.Tag {
	case "INCREMENTAL_BY_TIME":
		return model.IncrementalByTime{TimeColumn: d.TimeColumn, CronExpr: d.CronExpr, LookbackNo: d.LookbackNo}
	case "VIEW":
		return model.View{}
	case "EMBEDDED":
		return model.Embedded{}
	case "SEED":
		return model.Seed{}
	default:
		return model.Full{}
	}
}

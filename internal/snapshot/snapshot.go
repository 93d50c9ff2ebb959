// Package snapshot defines the immutable, content-addressed versioning
// unit (Snapshot), its promotion target (Environment), and the schema
// version record, per spec §3.
package snapshot

import (
	"fmt"

	"github.com/untoldecay/modeldag/internal/fingerprint"
	"github.com/untoldecay/modeldag/internal/interval"
	"github.com/untoldecay/modeldag/internal/model"
)

// ID identifies a Snapshot by (model_name, fingerprint). Two snapshots
// with the same ID are the same snapshot; pushing a duplicate is a
// ConflictError at the state store.
type ID struct {
	Name        string
	Fingerprint fingerprint.Fingerprint
}

func (id ID) String() string {
	return fmt.Sprintf("%s@%s/%s", id.Name, id.Fingerprint.DataHash, id.Fingerprint.MetadataHash)
}

// Snapshot is the immutable unit of versioning. Interval sets live
// keyed by Version in the state store rather than embedded here, so
// siblings sharing a version always observe the same coverage — a
// snapshot's intervals and dev intervals are read through the store's
// GetIntervals(version, dev) (a VersionIntervals lookup in memstate)
// rather than stored per-instance.
type Snapshot struct {
	Name           string
	Fingerprint    fingerprint.Fingerprint
	Version        string // physical version key; shared by siblings with the same data_hash
	Parents        []ID
	Kind           model.Kind
	ChangeCategory fingerprint.ChangeCategory
	PausedTS       *int64 // nil means unpaused (scheduled)
	TTLMillis      int64
	StartDate      *int64
	CreatedTS      int64

	// RenderedSQLText and Schema are carried through from the Model a
	// snapshot was built from, so a SnapshotEvaluator can execute a batch
	// without a side-channel lookup back to the original model set (which
	// may no longer be in scope by the time a stale snapshot is backfilled).
	RenderedSQLText string
	Schema          []model.ColumnDef
}

// RenderedSQL returns the SQL this snapshot's physical table is computed
// from.
func (s Snapshot) RenderedSQL() string { return s.RenderedSQLText }

// ID returns this snapshot's identity.
func (s Snapshot) ID() ID { return ID{Name: s.Name, Fingerprint: s.Fingerprint} }

// PhysicalTableName is derived from (name, version): stable across
// fingerprints that share a version.
func (s Snapshot) PhysicalTableName() string {
	return fmt.Sprintf("__modeldag_%s__%s", sanitize(s.Name), s.Version)
}

func sanitize(name string) string {
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

// IsUnpaused reports whether this snapshot is eligible for cron-driven
// scheduling.
func (s Snapshot) IsUnpaused() bool { return s.PausedTS == nil }

// NextVersion computes this snapshot's version at creation time, per spec
// §4.1: NO_CHANGE/NON_BREAKING/INDIRECT_NON_BREAKING inherit the prior
// snapshot's version (physical reuse); BREAKING/INDIRECT_BREAKING/
// FORWARD_ONLY mint a new version from the data_hash.
func NextVersion(category fingerprint.ChangeCategory, fp fingerprint.Fingerprint, priorVersion string) string {
	if category.ReusesVersion() && priorVersion != "" {
		return priorVersion
	}
	if len(fp.DataHash) >= 12 {
		return fp.DataHash[:12]
	}
	return fp.DataHash
}

// SnapshotTableInfo is the denormalized pointer an Environment keeps for
// each promoted model: enough to resolve its view target without a
// round-trip to the snapshot table.
type SnapshotTableInfo struct {
	Name              string
	Version           string
	PhysicalTableName string
	Fingerprint       fingerprint.Fingerprint
}

// Versions is the single-row schema/parser version record.
type Versions struct {
	SchemaVersion int
	ParserVersion string
}

// VersionIntervals is the shared interval lookup: version -> coverage,
// kept separate from individual Snapshot values per the design note in
// spec §9 ("do not model [shared versions] with shared mutable objects").
type VersionIntervals map[string]interval.Set

// Get returns the coverage for a version, or an empty set if untracked.
func (vi VersionIntervals) Get(version string) interval.Set { return vi[version] }

// Add records [s, e) as covered for the given version.
func (vi VersionIntervals) Add(version string, s, e int64) {
	vi[version] = vi[version].Add(s, e)
}

// Remove punches [s, e) out of the given version's coverage.
func (vi VersionIntervals) Remove(version string, s, e int64) {
	vi[version] = vi[version].Remove(s, e)
}

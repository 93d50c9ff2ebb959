// Package model defines the external Model input: a named SQL definition
// with a kind-specific behavior variant. The kind is represented as a
// tagged union (via the Kind interface) rather than a duck-typed bag of
// optional fields, so the compiler enforces exhaustive handling wherever
// kind-specific behavior (cron, lookback, interval semantics) is
// dispatched.
package model

// Kind tags a Model's variant. Each concrete kind below implements it.
type Kind interface {
	kind()
	// Incremental reports whether this kind tracks time-windowed
	// coverage at all; Full/View/Embedded/Seed kinds run at most one
	// batch per plan window.
	Incremental() bool
	// Cron is the cadence expression governing this model's grain, or
	// "" for non-incremental kinds.
	Cron() string
}

// Full rebuilds its entire physical table on every run.
type Full struct{}

func (Full) kind()            {}
func (Full) Incremental() bool { return false }
func (Full) Cron() string      { return "" }

// IncrementalByTime tracks coverage over a time column. Its lookback
// setting is part of the kind signature hashed into data_hash; the
// scheduler does not re-process already-covered lookback intervals.
type IncrementalByTime struct {
	TimeColumn string
	CronExpr   string
	LookbackNo int // declared lookback in grain units; hashed and persisted, not used when computing missing intervals
}

func (IncrementalByTime) kind()             {}
func (IncrementalByTime) Incremental() bool { return true }
func (k IncrementalByTime) Cron() string    { return k.CronExpr }

// View has no physical table of its own; it is a query pointed at its
// parents' physical tables.
type View struct{}

func (View) kind()            {}
func (View) Incremental() bool { return false }
func (View) Cron() string      { return "" }

// Embedded is evaluated inline wherever it is referenced rather than
// materialized.
type Embedded struct{}

func (Embedded) kind()            {}
func (Embedded) Incremental() bool { return false }
func (Embedded) Cron() string      { return "" }

// Seed loads data from a static, externally supplied source rather than
// rendering SQL against parents.
type Seed struct{}

func (Seed) kind()            {}
func (Seed) Incremental() bool { return false }
func (Seed) Cron() string      { return "" }

// Metadata holds the fields that affect only metadata_hash: they never
// change physical output.
type Metadata struct {
	Owner       string
	Description string
	Tags        []string
	Audits      []string
}

// Model is the caller-supplied definition of one node in the dependency
// DAG: a name, rendered SQL, a Kind variant, and a set of upstream model
// names.
type Model struct {
	Name         string
	RenderedSQL  string
	Schema       []ColumnDef
	Kind         Kind
	Parents      []string
	Metadata     Metadata
	StartDate    *int64 // epoch ms; nil inherits from the earliest parent
	ForwardOnly  bool
	StoragePart  string // partitioning/storage-format kind-param affecting data_hash
}

// ColumnDef is one entry of a model's declared output schema.
type ColumnDef struct {
	Name string
	Type string
}

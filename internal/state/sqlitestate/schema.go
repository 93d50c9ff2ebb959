package sqlitestate

// schemaDDL creates the three logical relations the core's persisted
// layout names in spec §6: _snapshots, _environments, _versions, plus an
// _intervals side table holding the shared version -> coverage lookup
// (spec §9: versions, not individual snapshots, own interval coverage).
const schemaDDL = `
CREATE TABLE IF NOT EXISTS _versions (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	schema_version INTEGER NOT NULL,
	parser_version TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS _snapshots (
	name TEXT NOT NULL,
	data_hash TEXT NOT NULL,
	metadata_hash TEXT NOT NULL,
	version TEXT NOT NULL,
	payload TEXT NOT NULL, -- JSON-serialized snapshot.Snapshot sans intervals
	created_ts INTEGER NOT NULL,
	PRIMARY KEY (name, data_hash, metadata_hash)
);
CREATE INDEX IF NOT EXISTS idx_snapshots_name ON _snapshots(name);
CREATE INDEX IF NOT EXISTS idx_snapshots_version ON _snapshots(version);

CREATE TABLE IF NOT EXISTS _intervals (
	version TEXT NOT NULL,
	is_dev INTEGER NOT NULL,
	start_ms INTEGER NOT NULL,
	end_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_intervals_version ON _intervals(version, is_dev);

CREATE TABLE IF NOT EXISTS _environments (
	name TEXT PRIMARY KEY,
	payload TEXT NOT NULL, -- JSON-serialized snapshot.Environment
	expiration_ts INTEGER
);
`

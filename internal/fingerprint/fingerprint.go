// Package fingerprint computes the stable content hashes that identify a
// Snapshot: data_hash (affects physical output) and metadata_hash (affects
// only metadata). Grounded on the teacher's ComputeContentHash pattern
// (internal/storage/sqlite/migrations/010_content_hash_column.go), which
// hashes a canonical field ordering with SHA-256 and hex-encodes it.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"github.com/untoldecay/modeldag/internal/model"
)

// Fingerprint is the hash pair distinguishing snapshots of the same
// model.
type Fingerprint struct {
	DataHash     string
	MetadataHash string
}

// Compute derives the Fingerprint for m given the data_hash of each of
// its parents (keyed by parent model name; must contain an entry for
// every name in m.Parents — a caller-side precondition, since parent
// resolution is validated before this is called).
func Compute(m model.Model, parentDataHashes map[string]string) Fingerprint {
	return Fingerprint{
		DataHash:     dataHash(m, parentDataHashes),
		MetadataHash: metadataHash(m),
	}
}

// dataHash hashes the normalized SQL, the kind and its output-affecting
// kind-params, the declared schema, and the ordered parent data_hashes —
// so a change anywhere upstream propagates down through every descendant
// (indirect change detection).
func dataHash(m model.Model, parentDataHashes map[string]string) string {
	h := sha256.New()
	writeField(h, "sql", normalizeSQL(m.RenderedSQL))
	writeField(h, "kind", kindSignature(m.Kind))
	writeField(h, "storage_part", m.StoragePart)
	for _, c := range m.Schema {
		writeField(h, "col", c.Name+":"+c.Type)
	}
	parents := append([]string(nil), m.Parents...)
	sort.Strings(parents)
	for _, p := range parents {
		writeField(h, "parent", p+"="+parentDataHashes[p])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// metadataHash hashes only the fields that never affect physical output:
// owner, description, tags, audits.
func metadataHash(m model.Model) string {
	h := sha256.New()
	writeField(h, "owner", m.Metadata.Owner)
	writeField(h, "description", m.Metadata.Description)
	tags := append([]string(nil), m.Metadata.Tags...)
	sort.Strings(tags)
	writeField(h, "tags", strings.Join(tags, ","))
	audits := append([]string(nil), m.Metadata.Audits...)
	sort.Strings(audits)
	writeField(h, "audits", strings.Join(audits, ","))
	return hex.EncodeToString(h.Sum(nil))
}

func kindSignature(k model.Kind) string {
	switch v := k.(type) {
	case model.Full:
		return "FULL"
	case model.IncrementalByTime:
		return "INCREMENTAL_BY_TIME:" + v.TimeColumn + ":" + v.CronExpr + ":" + strconv.Itoa(v.LookbackNo)
	case model.View:
		return "VIEW"
	case model.Embedded:
		return "EMBEDDED"
	case model.Seed:
		return "SEED"
	default:
		return "UNKNOWN"
	}
}

// normalizeSQL collapses incidental whitespace so formatting-only edits do
// not change the hash. A full AST normalization is the job of the (out of
// scope) SQL dialect layer; this is the core's best-effort fallback when
// handed already-rendered SQL.
func normalizeSQL(sql string) string {
	fields := strings.Fields(sql)
	return strings.Join(fields, " ")
}

func writeField(h interface{ Write([]byte) (int, error) }, name, value string) {
	_, _ = h.Write([]byte(name))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(value))
	_, _ = h.Write([]byte{0})
}

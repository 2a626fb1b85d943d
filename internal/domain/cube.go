package domain

import "time"

// CubeRecord is a persisted, serialized cube plus its searchable metadata.
type CubeRecord struct {
	RunID       string // deterministic run identifier
	Label       string // free-form run label, e.g. "exposure" or "sensitivity"
	Fingerprint string // base58(sha256(Payload))
	Asof        time.Time
	Layout      string // "regular" | "jagged"
	Precision   string // "single" | "double"
	NumIDs      int
	NumDates    int
	Samples     int
	Depth       int
	Payload     []byte // versioned binary encoding
	CreatedAt   time.Time
}

package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// ComputeRunID computes a deterministic run_id using SHA256.
// Formula: SHA256(asof_unix_nano|label|layout|precision)
// Returns hex-encoded hash (64 characters).
func ComputeRunID(
	asof time.Time,
	label string,
	layout string,
	precision string,
) string {
	data := fmt.Sprintf("%d|%s|%s|%s",
		asof.UTC().UnixNano(),
		label,
		layout,
		precision,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

package idhash

import (
	"crypto/sha256"

	"github.com/mr-tron/base58"
)

// CubeFingerprint returns base58(SHA256(payload)) of a serialized cube.
// Two cubes with bit-identical serializations share a fingerprint.
func CubeFingerprint(payload []byte) string {
	hash := sha256.Sum256(payload)
	return base58.Encode(hash[:])
}

// VerifyFingerprint reports whether payload matches fingerprint.
func VerifyFingerprint(payload []byte, fingerprint string) bool {
	return CubeFingerprint(payload) == fingerprint
}

// Package keyutil builds stable, bounded cache keys from composite parts.
package keyutil

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Digest returns a hex-encoded BLAKE2b-256 digest over the given parts.
// A zero byte separates the parts so ("ab", "c") and ("a", "bc") hash
// differently.
func Digest(parts ...string) string {
	h, err := blake2b.New256(nil)
	if err != nil {
		// New256 with a nil key never fails.
		panic(err)
	}
	var sep [1]byte
	for _, part := range parts {
		_, _ = h.Write([]byte(part))
		_, _ = h.Write(sep[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}

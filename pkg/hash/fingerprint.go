package hash

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint returns the hex sha256 of a client identity. The same identity
// always maps to the same fingerprint, so it can be stored and compared
// without keeping the identity itself.
func Fingerprint(identity string) string {
	sum := sha256.Sum256([]byte(identity))
	return hex.EncodeToString(sum[:])
}

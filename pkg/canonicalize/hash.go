package canonicalize

import (
	"crypto/sha256"
	"encoding/hex"
)

// SHA256Prefixed returns "sha256:<hex>" for the given bytes. This is the one
// hash format used throughout the runtime: trajectory hashes, replay payload
// hashes, and archive content addresses are all sha256_prefixed strings.
func SHA256Prefixed(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// CanonicalHashPrefixed canonicalises v via JCS and returns its sha256_prefixed hash.
func CanonicalHashPrefixed(v interface{}) (string, error) {
	b, err := JCS(v)
	if err != nil {
		return "", err
	}
	return SHA256Prefixed(b), nil
}

// Package crypto provides the Ed25519 signing primitives and Blake3 content
// hashing used throughout the chain.
package crypto

import (
	"encoding/hex"

	"lukechampine.com/blake3"
)

// Size is the length in bytes of every content identifier in the system:
// tx hashes, block hashes, state roots, claim ids, namespace ids, token ids
// and pool ids are all 32-byte Blake3 digests.
const Size = 32

// Hash256 is a 32-byte Blake3 digest.
type Hash256 [Size]byte

// IsZero reports whether h is the all-zero digest (used as the genesis
// block's PrevHash).
func (h Hash256) IsZero() bool {
	return h == Hash256{}
}

// Hex returns the lowercase hex encoding of h.
func (h Hash256) Hex() string { return hex.EncodeToString(h[:]) }

// Bytes returns h's 32 bytes as a slice, useful since a function's return
// value is not itself addressable and so cannot be sliced in place.
func (h Hash256) Bytes() []byte { return h[:] }

// Hash returns the Blake3-256 digest of data.
func Hash(data []byte) Hash256 {
	return blake3.Sum256(data)
}

// HashMulti hashes the concatenation of parts without allocating an
// intermediate buffer for each call site.
func HashMulti(parts ...[]byte) Hash256 {
	h := blake3.New(Size, nil)
	for _, p := range parts {
		h.Write(p)
	}
	var out Hash256
	copy(out[:], h.Sum(nil))
	return out
}

package crypto

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
)

// SigSize is the byte length of a raw ed25519 signature.
const SigSize = 64

// Signature is a raw 64-byte ed25519 signature.
type Signature [SigSize]byte

// ErrBadSignature is returned by Verify when the signature does not match.
var ErrBadSignature = errors.New("crypto: signature verification failed")

// Sign signs data with the private key.
func Sign(priv PrivateKey, data []byte) Signature {
	sig := ed25519.Sign(ed25519.PrivateKey(priv), data)
	var out Signature
	copy(out[:], sig)
	return out
}

// Verify checks sig against data using the public key. Returns
// ErrBadSignature on mismatch.
func Verify(pub PublicKey, data []byte, sig Signature) error {
	if !ed25519.Verify(ed25519.PublicKey(pub[:]), data, sig[:]) {
		return ErrBadSignature
	}
	return nil
}

// Hex renders sig as a lowercase hex string.
func (sig Signature) Hex() string { return hex.EncodeToString(sig[:]) }

// SigFromHex parses a hex-encoded signature, as carried over the consensus
// vote transport and RPC payloads.
func SigFromHex(s string) (Signature, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Signature{}, fmt.Errorf("decode signature hex: %w", err)
	}
	if len(raw) != SigSize {
		return Signature{}, fmt.Errorf("signature must be %d bytes, got %d", SigSize, len(raw))
	}
	var out Signature
	copy(out[:], raw)
	return out, nil
}

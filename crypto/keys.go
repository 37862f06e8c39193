package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// PrivateKey wraps ed25519 private key bytes.
type PrivateKey []byte

// PublicKey is a 32-byte ed25519 public key. It doubles as an agent,
// validator or issuer identifier wherever a 32-byte id is needed.
type PublicKey [Size]byte

// GenerateKeyPair generates a new ed25519 key pair.
func GenerateKeyPair() (PrivateKey, PublicKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, PublicKey{}, err
	}
	var pk PublicKey
	copy(pk[:], pub)
	return PrivateKey(priv), pk, nil
}

// Public derives the ed25519 public key from the private key.
func (priv PrivateKey) Public() PublicKey {
	var pk PublicKey
	copy(pk[:], ed25519.PrivateKey(priv).Public().(ed25519.PublicKey))
	return pk
}

// Hex returns the hex-encoded private key.
func (priv PrivateKey) Hex() string {
	return hex.EncodeToString(priv)
}

// Hex returns the 64-char hex-encoded public key.
func (pub PublicKey) Hex() string {
	return hex.EncodeToString(pub[:])
}

func (pub PublicKey) String() string { return pub.Hex() }

// PubKeyFromHex decodes a hex-encoded 32-byte public key.
func PubKeyFromHex(s string) (PublicKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return PublicKey{}, fmt.Errorf("invalid pubkey hex: %w", err)
	}
	if len(b) != Size {
		return PublicKey{}, fmt.Errorf("pubkey must be %d bytes, got %d", Size, len(b))
	}
	var pk PublicKey
	copy(pk[:], b)
	return pk, nil
}

// PrivKeyFromHex decodes a hex-encoded ed25519 private key.
func PrivKeyFromHex(s string) (PrivateKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid privkey hex: %w", err)
	}
	if len(b) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("privkey must be %d bytes, got %d", ed25519.PrivateKeySize, len(b))
	}
	return PrivateKey(b), nil
}

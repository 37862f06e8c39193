package wallet

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/crypto/pbkdf2"

	"github.com/seloria/seloria/crypto"
)

const (
	kdfIterations = 200_000
	saltSize      = 16
	keySize       = 32
)

// keystoreFile is the on-disk JSON encoding of an encrypted private key.
type keystoreFile struct {
	PubKeyHex  string `json:"pubkey"`
	SaltHex    string `json:"salt"`
	NonceHex   string `json:"nonce"`
	CipherHex  string `json:"ciphertext"`
	Iterations int    `json:"iterations"`
}

// SaveKeystore encrypts w.Priv with a PBKDF2-derived AES-GCM key and writes
// it to path.
func SaveKeystore(path, passphrase string, w *Wallet) error {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}
	key := pbkdf2.Key([]byte(passphrase), salt, kdfIterations, keySize, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return fmt.Errorf("init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("init gcm: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}
	ciphertext := gcm.Seal(nil, nonce, w.Priv, nil)

	kf := keystoreFile{
		PubKeyHex:  w.Pub.Hex(),
		SaltHex:    hex.EncodeToString(salt),
		NonceHex:   hex.EncodeToString(nonce),
		CipherHex:  hex.EncodeToString(ciphertext),
		Iterations: kdfIterations,
	}
	raw, err := json.MarshalIndent(kf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal keystore: %w", err)
	}
	if err := os.WriteFile(path, raw, 0600); err != nil {
		return fmt.Errorf("write keystore %s: %w", path, err)
	}
	return nil
}

// LoadKeystore decrypts the wallet stored at path using passphrase.
func LoadKeystore(path, passphrase string) (*Wallet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keystore %s: %w", path, err)
	}
	var kf keystoreFile
	if err := json.Unmarshal(raw, &kf); err != nil {
		return nil, fmt.Errorf("parse keystore %s: %w", path, err)
	}

	salt, err := hex.DecodeString(kf.SaltHex)
	if err != nil {
		return nil, fmt.Errorf("decode salt: %w", err)
	}
	nonce, err := hex.DecodeString(kf.NonceHex)
	if err != nil {
		return nil, fmt.Errorf("decode nonce: %w", err)
	}
	ciphertext, err := hex.DecodeString(kf.CipherHex)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}

	key := pbkdf2.Key([]byte(passphrase), salt, kf.Iterations, keySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}
	priv, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt keystore (wrong passphrase?): %w", err)
	}

	w := FromPrivateKey(crypto.PrivateKey(priv))
	if w.Pub.Hex() != kf.PubKeyHex {
		return nil, fmt.Errorf("keystore %s is corrupt: pubkey mismatch", path)
	}
	return w, nil
}

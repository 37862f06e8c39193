// Package config loads and validates a node's startup configuration,
// following a JSON-plus-Validate pattern.
package config

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/seloria/seloria/crypto"
)

// ValidatorEndpoint names one committee member's pubkey and RPC base URL.
type ValidatorEndpoint struct {
	PubKeyHex string `json:"pubkey"`
	BaseURL   string `json:"base_url"`
}

// Config is a node's full startup configuration.
type Config struct {
	ChainID            string              `json:"chain_id"`
	ListenAddr         string              `json:"listen_addr"`
	DataDir            string              `json:"data_dir"`
	StorageBackend     string              `json:"storage_backend"` // "memory" | "leveldb"
	KeystorePath       string              `json:"keystore_path"`
	GenesisPath        string              `json:"genesis_path"`
	Validators         []ValidatorEndpoint `json:"validators"`
	TLSDir             string              `json:"tls_dir"`
	MempoolMax         int                 `json:"mempool_max"`
	MempoolPerAddr     int                 `json:"mempool_per_addr"`
	ProposeIntervalMS  int64               `json:"propose_interval_ms"`
	ProposeInterval    time.Duration       `json:"-"`
}

// Default returns a single-process demo configuration.
func Default() Config {
	cfg := Config{
		ChainID:           "seloria-dev",
		ListenAddr:        ":8545",
		DataDir:           "./data",
		StorageBackend:    "memory",
		KeystorePath:      "./data/keystore.json",
		GenesisPath:       "./genesis.json",
		TLSDir:            "./data/tls",
		MempoolMax:        10000,
		MempoolPerAddr:    64,
		ProposeIntervalMS: 2000,
	}
	cfg.ProposeInterval = time.Duration(cfg.ProposeIntervalMS) * time.Millisecond
	return cfg
}

// Load reads and validates a Config from path.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Default()
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.ProposeInterval = time.Duration(cfg.ProposeIntervalMS) * time.Millisecond
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.ChainID == "" {
		return fmt.Errorf("chain_id is required")
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}
	switch c.StorageBackend {
	case "memory", "leveldb":
	default:
		return fmt.Errorf("storage_backend must be memory or leveldb, got %q", c.StorageBackend)
	}
	if c.MempoolMax <= 0 {
		return fmt.Errorf("mempool_max must be positive")
	}
	if c.MempoolPerAddr <= 0 {
		return fmt.Errorf("mempool_per_addr must be positive")
	}
	for i, v := range c.Validators {
		if _, err := ParsePubKey(v.PubKeyHex); err != nil {
			return fmt.Errorf("validators[%d]: %w", i, err)
		}
		if v.BaseURL == "" {
			return fmt.Errorf("validators[%d]: base_url is required", i)
		}
	}
	return nil
}

// ParsePubKey decodes a hex-encoded validator pubkey.
func ParsePubKey(s string) (crypto.PublicKey, error) {
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != crypto.Size {
		return crypto.PublicKey{}, fmt.Errorf("malformed pubkey %q", s)
	}
	var pk crypto.PublicKey
	copy(pk[:], raw)
	return pk, nil
}

package rpc

import (
	"encoding/hex"
	"fmt"

	"github.com/seloria/seloria/core"
)

func hexDecode(s string) ([]byte, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("malformed hex: %w", err)
	}
	return raw, nil
}

func hexToID(s string) (core.ID, error) {
	raw, err := hexDecode(s)
	if err != nil {
		return core.ID{}, err
	}
	if len(raw) != len(core.ID{}) {
		return core.ID{}, fmt.Errorf("id must be %d bytes, got %d", len(core.ID{}), len(raw))
	}
	var id core.ID
	copy(id[:], raw)
	return id, nil
}

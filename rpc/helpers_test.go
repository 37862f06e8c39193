package rpc_test

import (
	"encoding/hex"

	"github.com/seloria/seloria/codec"
	"github.com/seloria/seloria/core"
)

// codecWriter renders tx as the canonical hex string sendTx expects.
func codecWriter(tx *core.Transaction) string {
	w := codec.NewWriter()
	tx.Encode(w)
	return hex.EncodeToString(w.Bytes())
}

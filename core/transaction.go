package core

import (
	"github.com/seloria/seloria/codec"
	"github.com/seloria/seloria/crypto"
)

// Transaction is a single sender-signed unit of work carrying an ordered list
// of ops, applied atomically by the VM.
type Transaction struct {
	Sender PubKey
	Nonce  uint64
	Fee    uint64
	Ops    []Op
	Sig    crypto.Signature
}

// signingBytes returns the canonical bytes the sender's signature covers:
// every field except Sig itself.
func (tx *Transaction) signingBytes() []byte {
	w := codec.NewWriter()
	w.Fixed(tx.Sender[:])
	w.U64(tx.Nonce)
	w.U64(tx.Fee)
	w.U64(uint64(len(tx.Ops)))
	for i := range tx.Ops {
		tx.Ops[i].encode(w)
	}
	return w.Bytes()
}

// Hash returns the transaction's content id, computed over the signed bytes
// including Sig so two transactions that differ only in signature (should
// never happen for a single honest sender) still hash distinctly.
func (tx *Transaction) Hash() ID {
	w := codec.NewWriter()
	w.Fixed(tx.signingBytes())
	w.Fixed(tx.Sig[:])
	return crypto.Hash(w.Bytes())
}

// Sign computes tx.Sig over tx's signing bytes using priv, which must belong
// to tx.Sender.
func (tx *Transaction) Sign(priv crypto.PrivateKey) {
	tx.Sig = crypto.Sign(priv, tx.signingBytes())
}

// VerifySignature reports whether tx.Sig is a valid signature by tx.Sender
// over tx's signing bytes.
func (tx *Transaction) VerifySignature() error {
	if err := crypto.Verify(tx.Sender, tx.signingBytes(), tx.Sig); err != nil {
		return NewTxError(KindBadSignature, "transaction signature does not verify")
	}
	return nil
}

// Encode appends tx's full wire/snapshot encoding (signing bytes plus
// signature) to w.
func (tx *Transaction) Encode(w *codec.Writer) {
	w.Fixed(tx.signingBytes())
	w.Fixed(tx.Sig[:])
}

// DecodeTransaction reads one transaction back from r.
func DecodeTransaction(r *codec.Reader) Transaction {
	var tx Transaction
	copy(tx.Sender[:], r.Fixed(crypto.Size))
	tx.Nonce = r.U64()
	tx.Fee = r.U64()
	n := r.U64()
	tx.Ops = make([]Op, n)
	for i := range tx.Ops {
		tx.Ops[i] = decodeOp(r)
	}
	copy(tx.Sig[:], r.Fixed(crypto.SigSize))
	return tx
}

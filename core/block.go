package core

import (
	"github.com/seloria/seloria/codec"
	"github.com/seloria/seloria/crypto"
)

// QC is the quorum certificate a committee assembles over a proposed block:
// T = floor(2N/3)+1 validator signatures over the block hash.
type QC struct {
	BlockHash ID
	Signers   []PubKey
	Sigs      []crypto.Signature
}

// encode writes QC's canonical bytes. Signers/Sigs are written in the order
// they appear in the QC, without re-sorting. The committee engine fills them
// from a map, so that order can differ between nodes; the block id is not
// affected because Block.Hash does not cover the QC.
func (qc *QC) encode(w *codec.Writer) {
	w.Fixed(qc.BlockHash[:])
	w.U64(uint64(len(qc.Signers)))
	for i := range qc.Signers {
		w.Fixed(qc.Signers[i][:])
		w.Fixed(qc.Sigs[i][:])
	}
}

// BlockHeader carries everything needed to verify a block without its body.
type BlockHeader struct {
	ChainID        string
	Height         uint64
	PrevHash       ID
	Timestamp      uint64
	TxRoot         ID
	StateRoot      ID
	ProposerPubKey PubKey
}

func (h *BlockHeader) encode(w *codec.Writer) {
	w.String(h.ChainID)
	w.U64(h.Height)
	w.Fixed(h.PrevHash[:])
	w.U64(h.Timestamp)
	w.Fixed(h.TxRoot[:])
	w.Fixed(h.StateRoot[:])
	w.Fixed(h.ProposerPubKey[:])
}

// Hash is the block id: Blake3 over the canonical header bytes. The body
// (transactions) is committed to only through TxRoot, so two proposers who
// assemble the same ops in the same order produce the same block hash before
// any signature exists.
func (h *BlockHeader) Hash() ID {
	w := codec.NewWriter()
	h.encode(w)
	return crypto.Hash(w.Bytes())
}

// Block pairs a header with its ordered transaction body and, once
// committed, the quorum certificate that finalized it.
type Block struct {
	Header BlockHeader
	Txs    []Transaction
	QC     *QC
}

// Hash returns the block's id (header hash; the QC is not covered since it
// is produced only after the header+body already exist).
func (b *Block) Hash() ID { return b.Header.Hash() }

// ComputeTxRoot folds the ordered transaction hashes into a single root via
// repeated Blake3 concatenation, giving a cheap, order-sensitive commitment
// to the block body.
func ComputeTxRoot(txs []Transaction) ID {
	if len(txs) == 0 {
		return crypto.Hash(nil)
	}
	acc := crypto.Hash(nil)
	for i := range txs {
		h := txs[i].Hash()
		acc = crypto.HashMulti(acc[:], h[:])
	}
	return acc
}

// Encode appends b's full wire/snapshot encoding to w.
func (b *Block) Encode(w *codec.Writer) {
	b.Header.encode(w)
	w.U64(uint64(len(b.Txs)))
	for i := range b.Txs {
		b.Txs[i].Encode(w)
	}
	hasQC := b.QC != nil
	w.Bool(hasQC)
	if hasQC {
		b.QC.encode(w)
	}
}

// DecodeBlock reads one block back from r.
func DecodeBlock(r *codec.Reader) Block {
	var b Block
	b.Header.ChainID = r.String()
	b.Header.Height = r.U64()
	copy(b.Header.PrevHash[:], r.Fixed(crypto.Size))
	b.Header.Timestamp = r.U64()
	copy(b.Header.TxRoot[:], r.Fixed(crypto.Size))
	copy(b.Header.StateRoot[:], r.Fixed(crypto.Size))
	copy(b.Header.ProposerPubKey[:], r.Fixed(crypto.Size))

	n := r.U64()
	b.Txs = make([]Transaction, n)
	for i := range b.Txs {
		b.Txs[i] = DecodeTransaction(r)
	}
	if r.Bool() {
		qc := &QC{}
		copy(qc.BlockHash[:], r.Fixed(crypto.Size))
		sn := r.U64()
		qc.Signers = make([]PubKey, sn)
		qc.Sigs = make([]crypto.Signature, sn)
		for i := uint64(0); i < sn; i++ {
			copy(qc.Signers[i][:], r.Fixed(crypto.Size))
			copy(qc.Sigs[i][:], r.Fixed(crypto.SigSize))
		}
		b.QC = qc
	}
	return b
}

package core

import (
	"encoding/binary"
	"fmt"

	"github.com/seloria/seloria/codec"
)

// KVStore is the minimal durable byte-store a Blockchain persists blocks
// into. storage.MemDB and storage.LevelDB both satisfy it structurally, so
// core never imports storage (and storage does not import core either).
type KVStore interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
}

const blockKeyPrefix = "blk/"

func blockKey(height uint64) []byte {
	var b [4 + 8]byte
	copy(b[:4], blockKeyPrefix)
	binary.BigEndian.PutUint64(b[4:], height)
	return b[:]
}

// Blockchain stores committed blocks by height and maintains the
// hash->height index used to answer RPC lookups by block hash.
type Blockchain struct {
	db          KVStore
	hashToIndex map[ID]uint64
}

// NewBlockchain opens a Blockchain backed by db. It does not replay any
// existing contents; callers load genesis/height separately via ChainState.
func NewBlockchain(db KVStore) *Blockchain {
	return &Blockchain{db: db, hashToIndex: make(map[ID]uint64)}
}

// Put persists block at its header height and indexes its hash.
func (bc *Blockchain) Put(block *Block) error {
	w := codec.NewWriter()
	block.Encode(w)
	if err := bc.db.Put(blockKey(block.Header.Height), w.Bytes()); err != nil {
		return NewTxError(KindIO, fmt.Sprintf("persist block %d: %v", block.Header.Height, err))
	}
	bc.hashToIndex[block.Hash()] = block.Header.Height
	return nil
}

// ByHeight loads the block committed at height, if any.
func (bc *Blockchain) ByHeight(height uint64) (*Block, bool, error) {
	raw, err := bc.db.Get(blockKey(height))
	if err != nil {
		return nil, false, nil
	}
	r := codec.NewReader(raw)
	b := DecodeBlock(r)
	if !r.Done() {
		return nil, false, NewTxError(KindBadEncoding, "corrupt block record")
	}
	return &b, true, nil
}

// ByHash loads the block with the given hash, if it has been seen by this
// process. The index is in-memory only and starts empty; blocks persisted by
// an earlier process are found by hash only once IndexHash records them.
func (bc *Blockchain) ByHash(hash ID) (*Block, bool, error) {
	height, ok := bc.hashToIndex[hash]
	if !ok {
		return nil, false, nil
	}
	return bc.ByHeight(height)
}

// IndexHash records hash->height without storing a block, for blocks that
// are already persisted.
func (bc *Blockchain) IndexHash(hash ID, height uint64) {
	bc.hashToIndex[hash] = height
}

package core

import (
	"sort"
	"sync"
)

// Mempool holds submitted-but-not-yet-committed transactions, bounded both
// in total size and per sender, and orders each sender's pending set by
// nonce so the proposer can only ever pull a gapless prefix.
type Mempool struct {
	mu sync.Mutex

	maxTotal     int
	maxPerSender int

	bySender map[PubKey]map[uint64]*Transaction
	size     int
}

// NewMempool returns an empty pool bounded by maxTotal transactions overall
// and maxPerSender per sending account.
func NewMempool(maxTotal, maxPerSender int) *Mempool {
	return &Mempool{
		maxTotal:     maxTotal,
		maxPerSender: maxPerSender,
		bySender:     make(map[PubKey]map[uint64]*Transaction),
	}
}

// Add validates tx against state at now and, if admissible, stages it for
// future inclusion: the signature must verify, the sender must be
// currently certified, and the nonce must exceed the account's committed
// nonce. A resubmission at the same (sender, nonce) replaces the earlier
// transaction, mirroring typical fee-bump replacement semantics. When a
// sender is already at its per-sender slot limit, the pending transaction
// with the highest nonce from that sender is evicted to make room, since
// it is the furthest from being includable.
func (mp *Mempool) Add(tx *Transaction, state *ChainState, now uint64) error {
	if err := tx.VerifySignature(); err != nil {
		return err
	}
	if !state.IsCertifiedAt(tx.Sender, now) {
		return NewTxError(KindNotCertified, "sender is not currently certified")
	}
	accountNonce := uint64(0)
	if acct, ok := state.Account(tx.Sender); ok {
		accountNonce = acct.Nonce
	}
	if tx.Nonce <= accountNonce {
		return NewTxError(KindBadNonce, "transaction nonce does not exceed account nonce")
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	pending, ok := mp.bySender[tx.Sender]
	if !ok {
		pending = make(map[uint64]*Transaction)
		mp.bySender[tx.Sender] = pending
	}
	if _, replacing := pending[tx.Nonce]; !replacing {
		if len(pending) >= mp.maxPerSender {
			evictHighestNonce(pending)
			mp.size--
		}
		if mp.size >= mp.maxTotal {
			return NewTxError(KindInsufficient, "mempool is full")
		}
		mp.size++
	}
	pending[tx.Nonce] = tx
	return nil
}

// evictHighestNonce drops the pending transaction with the largest nonce
// from pending, making room for a new arrival from the same sender.
func evictHighestNonce(pending map[uint64]*Transaction) {
	var highest uint64
	found := false
	for n := range pending {
		if !found || n > highest {
			highest = n
			found = true
		}
	}
	if found {
		delete(pending, highest)
	}
}

// Remove drops every pending transaction from sender at or below nonce,
// called once those transactions (or a replacement at the same nonce) have
// committed into a block.
func (mp *Mempool) Remove(sender PubKey, throughNonce uint64) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	pending, ok := mp.bySender[sender]
	if !ok {
		return
	}
	for nonce := range pending {
		if nonce <= throughNonce {
			delete(pending, nonce)
			mp.size--
		}
	}
	if len(pending) == 0 {
		delete(mp.bySender, sender)
	}
}

// Next selects up to limit transactions for a new proposal: for each sender
// with pending transactions, the gapless run starting at one past the
// account's current committed nonce, across all senders, ordered by sender pubkey for
// determinism.
func (mp *Mempool) Next(limit int, state *ChainState) []Transaction {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	senders := make([]PubKey, 0, len(mp.bySender))
	for s := range mp.bySender {
		senders = append(senders, s)
	}
	sort.Slice(senders, func(i, j int) bool { return lessPubKey(senders[i], senders[j]) })

	out := make([]Transaction, 0, limit)
	for _, sender := range senders {
		if len(out) >= limit {
			break
		}
		acct, _ := state.Account(sender)
		next := uint64(1)
		if acct != nil {
			next = acct.Nonce + 1
		}
		pending := mp.bySender[sender]
		for len(out) < limit {
			tx, ok := pending[next]
			if !ok {
				break
			}
			out = append(out, *tx)
			next++
		}
	}
	return out
}

// Len reports the total number of pending transactions.
func (mp *Mempool) Len() int {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.size
}

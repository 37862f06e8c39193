package core

import (
	"testing"

	"github.com/seloria/seloria/crypto"
)

func signedTx(t *testing.T, priv crypto.PrivateKey, pub crypto.PublicKey, nonce uint64) Transaction {
	t.Helper()
	tx := Transaction{Sender: pub, Nonce: nonce, Fee: 1}
	tx.Sign(priv)
	return tx
}

// certifiedState returns a ChainState that admits pub as a trusted issuer,
// so it needs no registered AgentCertificate to pass Mempool.Add's
// certification check.
func certifiedState(pub crypto.PublicKey) *ChainState {
	return NewChainState([]PubKey{pub}, nil)
}

func TestMempoolNextReturnsGaplessPrefix(t *testing.T) {
	priv, pub := newKeyPair(t)
	mp := NewMempool(100, 10)
	state := certifiedState(pub)

	tx1 := signedTx(t, priv, pub, 1)
	tx2 := signedTx(t, priv, pub, 2)
	tx4 := signedTx(t, priv, pub, 4) // gap at nonce 3

	for _, tx := range []Transaction{tx1, tx2, tx4} {
		if err := mp.Add(&tx, state, 0); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	next := mp.Next(10, state)
	if len(next) != 2 {
		t.Fatalf("Next returned %d txs, want 2 (gapless prefix stops before the nonce-4 gap)", len(next))
	}
	if next[0].Nonce != 1 || next[1].Nonce != 2 {
		t.Fatalf("unexpected nonce order: %+v", next)
	}
}

func TestMempoolRemoveDropsThroughNonce(t *testing.T) {
	priv, pub := newKeyPair(t)
	mp := NewMempool(100, 10)
	state := certifiedState(pub)

	for n := uint64(1); n <= 3; n++ {
		tx := signedTx(t, priv, pub, n)
		if err := mp.Add(&tx, state, 0); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	if got := mp.Len(); got != 3 {
		t.Fatalf("Len = %d, want 3", got)
	}

	mp.Remove(pub, 2)
	if got := mp.Len(); got != 1 {
		t.Fatalf("Len after Remove = %d, want 1", got)
	}

	remaining := mp.Next(10, state)
	if len(remaining) != 0 {
		t.Fatalf("remaining tx at nonce 3 should not be selectable while account nonce is still 0: %+v", remaining)
	}
}

func TestMempoolPerSenderLimitEvictsHighestNonce(t *testing.T) {
	priv, pub := newKeyPair(t)
	mp := NewMempool(100, 2)
	state := certifiedState(pub)

	tx1 := signedTx(t, priv, pub, 1)
	tx2 := signedTx(t, priv, pub, 2)
	if err := mp.Add(&tx1, state, 0); err != nil {
		t.Fatalf("Add tx1: %v", err)
	}
	if err := mp.Add(&tx2, state, 0); err != nil {
		t.Fatalf("Add tx2: %v", err)
	}

	tx3 := signedTx(t, priv, pub, 3)
	if err := mp.Add(&tx3, state, 0); err != nil {
		t.Fatalf("Add tx3 should evict nonce 2 rather than reject: %v", err)
	}
	if got := mp.Len(); got != 2 {
		t.Fatalf("Len = %d, want 2 after eviction", got)
	}

	next := mp.Next(10, state)
	if len(next) != 1 || next[0].Nonce != 1 {
		t.Fatalf("expected only nonce 1 to remain selectable, got %+v", next)
	}
}

func TestMempoolResubmissionReplacesSameNonce(t *testing.T) {
	priv, pub := newKeyPair(t)
	mp := NewMempool(100, 1)
	state := certifiedState(pub)

	tx := signedTx(t, priv, pub, 1)
	if err := mp.Add(&tx, state, 0); err != nil {
		t.Fatalf("Add: %v", err)
	}
	replacement := signedTx(t, priv, pub, 1)
	replacement.Fee = 5
	if err := mp.Add(&replacement, state, 0); err != nil {
		t.Fatalf("resubmission at the same nonce should replace, not error: %v", err)
	}
	if got := mp.Len(); got != 1 {
		t.Fatalf("Len = %d, want 1 after same-nonce replacement", got)
	}
}

func TestMempoolAddRejectsUncertifiedSender(t *testing.T) {
	priv, pub := newKeyPair(t)
	mp := NewMempool(100, 10)
	state := NewChainState(nil, nil) // pub is neither a trusted issuer nor certified

	tx := signedTx(t, priv, pub, 1)
	if err := mp.Add(&tx, state, 0); !IsKind(err, KindNotCertified) {
		t.Fatalf("Add error = %v, want KindNotCertified", err)
	}
}

func TestMempoolAddRejectsNonceNotExceedingAccountNonce(t *testing.T) {
	priv, pub := newKeyPair(t)
	mp := NewMempool(100, 10)
	state := certifiedState(pub) // account nonce stays 0, nothing ever committed

	tooLow := signedTx(t, priv, pub, 0)
	if err := mp.Add(&tooLow, state, 0); !IsKind(err, KindBadNonce) {
		t.Fatalf("Add error = %v, want KindBadNonce for a nonce not exceeding the account nonce", err)
	}
}

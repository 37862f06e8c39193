package vm_test

import (
	"testing"

	"github.com/seloria/seloria/core"
	"github.com/seloria/seloria/vm"
)

func TestApplyBlockRollsBackFailingTxWithoutAbortingBlock(t *testing.T) {
	issuerPriv, issuerPub := newKeyPair(t)
	goodPriv, goodPub := newKeyPair(t)
	badPriv, badPub := newKeyPair(t)
	_, recipient := newKeyPair(t)

	state := core.NewChainState([]core.PubKey{issuerPub}, nil)
	sp := core.NewScratchpad(state)
	certifyAgent(sp, issueCert(issuerPriv, issuerPub, goodPub, 0, 1000))
	certifyAgent(sp, issueCert(issuerPriv, issuerPub, badPub, 0, 1000))

	goodAcct := sp.Account(goodPub)
	goodAcct.Balance = 100
	sp.PutAccount(goodAcct)
	badAcct := sp.Account(badPub)
	badAcct.Balance = 5
	sp.PutAccount(badAcct)

	goodTx := buildTx(goodPriv, goodPub, 1, 2, core.Op{
		Type:     core.OpTransfer,
		Transfer: &core.TransferOp{To: recipient, Amount: 20},
	})
	// badTx's transfer amount exceeds its spendable balance and must be
	// rejected and rolled back without touching the recipient's credit from
	// goodTx or corrupting badAcct's own balance/nonce.
	badTx := buildTx(badPriv, badPub, 1, 1, core.Op{
		Type:     core.OpTransfer,
		Transfer: &core.TransferOp{To: recipient, Amount: 1000},
	})

	block := &core.Block{
		Header: core.BlockHeader{ChainID: "c", Height: 1, ProposerPubKey: goodPub},
		Txs:    []core.Transaction{goodTx, badTx},
	}

	outcomes, events, err := vm.ApplyBlock(sp, block, 0)
	if err != nil {
		t.Fatalf("ApplyBlock: %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("outcomes = %d, want 2", len(outcomes))
	}
	if outcomes[0].Failed {
		t.Fatalf("goodTx should have succeeded: %+v", outcomes[0])
	}
	if !outcomes[1].Failed {
		t.Fatalf("badTx should have failed")
	}

	if got := sp.Account(recipient).Balance; got != 20 {
		t.Fatalf("recipient balance = %d, want 20 (only goodTx's transfer applied)", got)
	}
	if got := sp.Account(badPub).Balance; got != 5 {
		t.Fatalf("badAcct balance = %d, want unchanged 5 after rollback", got)
	}
	if got := sp.Account(badPub).Nonce; got != 0 {
		t.Fatalf("badAcct nonce = %d, want unchanged 0 after rollback", got)
	}

	foundCommitted := false
	for _, ev := range events {
		if ev.Type == core.EventBlockCommitted {
			foundCommitted = true
		}
	}
	if !foundCommitted {
		t.Fatalf("expected a BLOCK_COMMITTED event in the block event stream")
	}
}

func TestApplyBlockDistributesFeesAcrossValidatorsWithRemainderToProposer(t *testing.T) {
	issuerPriv, issuerPub := newKeyPair(t)
	senderPriv, senderPub := newKeyPair(t)
	_, v1 := newKeyPair(t)
	_, v2 := newKeyPair(t)
	_, v3 := newKeyPair(t)
	_, recipient := newKeyPair(t)

	validators := []core.PubKey{v1, v2, v3}
	state := core.NewChainState([]core.PubKey{issuerPub}, validators)
	sp := core.NewScratchpad(state)
	certifyAgent(sp, issueCert(issuerPriv, issuerPub, senderPub, 0, 1000))
	acct := sp.Account(senderPub)
	acct.Balance = 1000
	sp.PutAccount(acct)

	// Fee of 10 split across 3 validators: 3 each, remainder 1 to proposer
	// (v1, also a validator, so it collects both its even share and the
	// remainder).
	tx := buildTx(senderPriv, senderPub, 1, 10, core.Op{
		Type:     core.OpTransfer,
		Transfer: &core.TransferOp{To: recipient, Amount: 1},
	})
	block := &core.Block{
		Header: core.BlockHeader{ChainID: "c", Height: 1, ProposerPubKey: v1},
		Txs:    []core.Transaction{tx},
	}

	if _, _, err := vm.ApplyBlock(sp, block, 0); err != nil {
		t.Fatalf("ApplyBlock: %v", err)
	}

	if got := sp.Account(v1).Balance; got != 4 {
		t.Fatalf("proposer (v1) balance = %d, want 4 (3 share + 1 remainder)", got)
	}
	if got := sp.Account(v2).Balance; got != 3 {
		t.Fatalf("v2 balance = %d, want 3", got)
	}
	if got := sp.Account(v3).Balance; got != 3 {
		t.Fatalf("v3 balance = %d, want 3", got)
	}
}

func TestApplyBlockFeesGoEntirelyToProposerWithNoValidatorSet(t *testing.T) {
	issuerPriv, issuerPub := newKeyPair(t)
	senderPriv, senderPub := newKeyPair(t)
	_, proposer := newKeyPair(t)
	_, recipient := newKeyPair(t)

	state := core.NewChainState([]core.PubKey{issuerPub}, nil)
	sp := core.NewScratchpad(state)
	certifyAgent(sp, issueCert(issuerPriv, issuerPub, senderPub, 0, 1000))
	acct := sp.Account(senderPub)
	acct.Balance = 1000
	sp.PutAccount(acct)

	tx := buildTx(senderPriv, senderPub, 1, 7, core.Op{
		Type:     core.OpTransfer,
		Transfer: &core.TransferOp{To: recipient, Amount: 1},
	})
	block := &core.Block{
		Header: core.BlockHeader{ChainID: "c", Height: 1, ProposerPubKey: proposer},
		Txs:    []core.Transaction{tx},
	}

	if _, _, err := vm.ApplyBlock(sp, block, 0); err != nil {
		t.Fatalf("ApplyBlock: %v", err)
	}
	if got := sp.Account(proposer).Balance; got != 7 {
		t.Fatalf("proposer balance = %d, want 7 (entire fee, empty validator set)", got)
	}
}

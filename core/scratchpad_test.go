package core

import "testing"

func TestScratchpadMarkRestoreRollsBackWrites(t *testing.T) {
	_, pub := newKeyPair(t)
	state := NewChainState(nil, nil)
	sp := NewScratchpad(state)

	acct := sp.Account(pub)
	acct.Balance = 10
	sp.PutAccount(acct)

	mark := sp.Mark()

	acct = sp.Account(pub)
	acct.Balance = 999
	sp.PutAccount(acct)

	sp.Restore(mark)

	if got := sp.Account(pub).Balance; got != 10 {
		t.Fatalf("Account balance after Restore = %d, want 10", got)
	}
}

func TestScratchpadCommitAdvancesBaseState(t *testing.T) {
	_, pub := newKeyPair(t)
	state := NewChainState(nil, nil)
	sp := NewScratchpad(state)

	acct := sp.Account(pub)
	acct.Balance = 42
	sp.PutAccount(acct)
	sp.Commit(1, ID{7})

	got, ok := state.Account(pub)
	if !ok {
		t.Fatalf("account missing from base state after Commit")
	}
	if got.Balance != 42 {
		t.Fatalf("committed balance = %d, want 42", got.Balance)
	}
	height, head := state.HeightAndHead()
	if height != 1 || head != (ID{7}) {
		t.Fatalf("HeightAndHead = (%d, %x), want (1, 07..)", height, head)
	}
}

func TestProjectedStateRootMatchesStateRootAfterCommit(t *testing.T) {
	_, pubA := newKeyPair(t)
	_, pubB := newKeyPair(t)
	state := NewChainState(nil, nil)
	sp := NewScratchpad(state)

	a := sp.Account(pubA)
	a.Balance = 100
	sp.PutAccount(a)
	b := sp.Account(pubB)
	b.Balance = 50
	sp.PutAccount(b)

	projected := sp.ProjectedStateRoot()
	sp.Commit(1, ID{1})

	if got := state.StateRoot(); got != projected {
		t.Fatalf("StateRoot after commit = %x, want ProjectedStateRoot = %x", got, projected)
	}
}

func TestScratchpadReadsFallThroughToBase(t *testing.T) {
	_, pub := newKeyPair(t)
	state := NewChainState(nil, nil)
	seed := NewScratchpad(state)
	acct := seed.Account(pub)
	acct.Balance = 5
	seed.PutAccount(acct)
	seed.Commit(1, ID{})

	sp := NewScratchpad(state)
	if got := sp.Account(pub).Balance; got != 5 {
		t.Fatalf("fresh scratchpad should read committed balance through to base, got %d", got)
	}
}

package vm_test

import (
	"bytes"
	"testing"

	"github.com/seloria/seloria/core"
	"github.com/seloria/seloria/crypto"
)

// registerApp certifies and funds owner, then submits an APP_REGISTER
// transaction for a caller-chosen app id derived from owner's pubkey,
// returning that app id.
func registerApp(t *testing.T, sp *core.Scratchpad, issuerPriv crypto.PrivateKey, issuerPub crypto.PublicKey, ownerPriv crypto.PrivateKey, ownerPub crypto.PublicKey, nonce uint64) core.ID {
	t.Helper()
	certifyAgent(sp, issueCert(issuerPriv, issuerPub, ownerPub, 0, 1000))
	acct := sp.Account(ownerPub)
	acct.Balance = 1000
	sp.PutAccount(acct)

	appID := crypto.HashMulti([]byte("app"), ownerPub[:])
	tx := buildTx(ownerPriv, ownerPub, nonce, 1, core.Op{
		Type:        core.OpAppRegister,
		AppRegister: &core.AppRegisterOp{AppID: appID, Meta: []byte("meta")},
	})
	mustApply(t, sp, &tx, 0)
	return appID
}

func TestNamespaceOwnerOnlyPolicy(t *testing.T) {
	issuerPriv, issuerPub := newKeyPair(t)
	ownerPriv, ownerPub := newKeyPair(t)
	strangerPriv, strangerPub := newKeyPair(t)

	state := core.NewChainState([]core.PubKey{issuerPub}, nil)
	sp := core.NewScratchpad(state)
	appID := registerApp(t, sp, issuerPriv, issuerPub, ownerPriv, ownerPub, 1)

	nsTx := buildTx(ownerPriv, ownerPub, 2, 1, core.Op{
		Type:            core.OpNamespaceCreate,
		NamespaceCreate: &core.NamespaceCreateOp{Name: "cfg", AppID: appID, Policy: core.PolicyOwnerOnly},
	})
	mustApply(t, sp, &nsTx, 0)
	nsID := namespaceContentID(appID, ownerPub, "cfg")

	putTx := buildTx(ownerPriv, ownerPub, 3, 1, core.Op{
		Type:  core.OpKVPut,
		KVPut: &core.KVPutOp{NsID: nsID, Key: "k", Codec: "raw", Value: []byte("v1")},
	})
	mustApply(t, sp, &putTx, 0)

	entry, ok := sp.KVGet(core.KVKey{NsID: nsID, Key: "k"})
	if !ok || !bytes.Equal(entry.Inline, []byte("v1")) {
		t.Fatalf("owner write did not land: %+v", entry)
	}

	certifyAgent(sp, issueCert(issuerPriv, issuerPub, strangerPub, 0, 1000))
	strangerAcct := sp.Account(strangerPub)
	strangerAcct.Balance = 100
	sp.PutAccount(strangerAcct)
	badPut := buildTx(strangerPriv, strangerPub, 1, 1, core.Op{
		Type:  core.OpKVPut,
		KVPut: &core.KVPutOp{NsID: nsID, Key: "k", Codec: "raw", Value: []byte("v2")},
	})
	if _, err := applyErr(sp, &badPut, 0); !core.IsKind(err, core.KindPolicyDenied) {
		t.Fatalf("stranger write error = %v, want KindPolicyDenied", err)
	}
}

func TestNamespaceAllowlistPolicy(t *testing.T) {
	issuerPriv, issuerPub := newKeyPair(t)
	ownerPriv, ownerPub := newKeyPair(t)
	allowedPriv, allowedPub := newKeyPair(t)
	strangerPriv, strangerPub := newKeyPair(t)

	state := core.NewChainState([]core.PubKey{issuerPub}, nil)
	sp := core.NewScratchpad(state)
	appID := registerApp(t, sp, issuerPriv, issuerPub, ownerPriv, ownerPub, 1)

	nsTx := buildTx(ownerPriv, ownerPub, 2, 1, core.Op{
		Type: core.OpNamespaceCreate,
		NamespaceCreate: &core.NamespaceCreateOp{
			Name: "shared", AppID: appID, Policy: core.PolicyAllowlist, Allowlist: []core.PubKey{allowedPub},
		},
	})
	mustApply(t, sp, &nsTx, 0)
	nsID := namespaceContentID(appID, ownerPub, "shared")

	certifyAgent(sp, issueCert(issuerPriv, issuerPub, allowedPub, 0, 1000))
	allowedAcct := sp.Account(allowedPub)
	allowedAcct.Balance = 100
	sp.PutAccount(allowedAcct)
	goodPut := buildTx(allowedPriv, allowedPub, 1, 1, core.Op{
		Type:  core.OpKVPut,
		KVPut: &core.KVPutOp{NsID: nsID, Key: "k", Codec: "raw", Value: []byte("ok")},
	})
	mustApply(t, sp, &goodPut, 0)

	certifyAgent(sp, issueCert(issuerPriv, issuerPub, strangerPub, 0, 1000))
	strangerAcct := sp.Account(strangerPub)
	strangerAcct.Balance = 100
	sp.PutAccount(strangerAcct)
	badPut := buildTx(strangerPriv, strangerPub, 1, 1, core.Op{
		Type:  core.OpKVPut,
		KVPut: &core.KVPutOp{NsID: nsID, Key: "k", Codec: "raw", Value: []byte("bad")},
	})
	if _, err := applyErr(sp, &badPut, 0); !core.IsKind(err, core.KindPolicyDenied) {
		t.Fatalf("non-allowlisted write error = %v, want KindPolicyDenied", err)
	}
}

func TestNamespaceStakeGatedPolicy(t *testing.T) {
	issuerPriv, issuerPub := newKeyPair(t)
	ownerPriv, ownerPub := newKeyPair(t)
	richPriv, richPub := newKeyPair(t)
	poorPriv, poorPub := newKeyPair(t)

	state := core.NewChainState([]core.PubKey{issuerPub}, nil)
	sp := core.NewScratchpad(state)
	appID := registerApp(t, sp, issuerPriv, issuerPub, ownerPriv, ownerPub, 1)

	nsTx := buildTx(ownerPriv, ownerPub, 2, 1, core.Op{
		Type: core.OpNamespaceCreate,
		NamespaceCreate: &core.NamespaceCreateOp{
			Name: "gated", AppID: appID, Policy: core.PolicyStakeGated, MinWriteStake: 50,
		},
	})
	mustApply(t, sp, &nsTx, 0)
	nsID := namespaceContentID(appID, ownerPub, "gated")

	certifyAgent(sp, issueCert(issuerPriv, issuerPub, richPub, 0, 1000))
	richAcct := sp.Account(richPub)
	richAcct.Balance = 100
	sp.PutAccount(richAcct)
	richPut := buildTx(richPriv, richPub, 1, 1, core.Op{
		Type:  core.OpKVPut,
		KVPut: &core.KVPutOp{NsID: nsID, Key: "k", Codec: "raw", Value: []byte("ok")},
	})
	mustApply(t, sp, &richPut, 0)

	certifyAgent(sp, issueCert(issuerPriv, issuerPub, poorPub, 0, 1000))
	poorAcct := sp.Account(poorPub)
	poorAcct.Balance = 10
	sp.PutAccount(poorAcct)
	poorPut := buildTx(poorPriv, poorPub, 1, 1, core.Op{
		Type:  core.OpKVPut,
		KVPut: &core.KVPutOp{NsID: nsID, Key: "k", Codec: "raw", Value: []byte("bad")},
	})
	if _, err := applyErr(sp, &poorPut, 0); !core.IsKind(err, core.KindStakeTooLow) {
		t.Fatalf("under-staked write error = %v, want KindStakeTooLow", err)
	}
}

func TestKVAppendRawConcatenatesAndOtherCodecsList(t *testing.T) {
	issuerPriv, issuerPub := newKeyPair(t)
	ownerPriv, ownerPub := newKeyPair(t)

	state := core.NewChainState([]core.PubKey{issuerPub}, nil)
	sp := core.NewScratchpad(state)
	appID := registerApp(t, sp, issuerPriv, issuerPub, ownerPriv, ownerPub, 1)

	nsTx := buildTx(ownerPriv, ownerPub, 2, 1, core.Op{
		Type:            core.OpNamespaceCreate,
		NamespaceCreate: &core.NamespaceCreateOp{Name: "log", AppID: appID, Policy: core.PolicyOwnerOnly},
	})
	mustApply(t, sp, &nsTx, 0)
	nsID := namespaceContentID(appID, ownerPub, "log")

	append1 := buildTx(ownerPriv, ownerPub, 3, 1, core.Op{
		Type:     core.OpKVAppend,
		KVAppend: &core.KVAppendOp{NsID: nsID, Key: "raw-log", Codec: "raw", Chunk: []byte("ab")},
	})
	mustApply(t, sp, &append1, 0)
	append2 := buildTx(ownerPriv, ownerPub, 4, 1, core.Op{
		Type:     core.OpKVAppend,
		KVAppend: &core.KVAppendOp{NsID: nsID, Key: "raw-log", Codec: "raw", Chunk: []byte("cd")},
	})
	mustApply(t, sp, &append2, 0)

	rawEntry, ok := sp.KVGet(core.KVKey{NsID: nsID, Key: "raw-log"})
	if !ok || !bytes.Equal(rawEntry.Inline, []byte("abcd")) {
		t.Fatalf("raw append did not concatenate in place: %+v", rawEntry)
	}
	if got := crypto.Hash(rawEntry.Inline); got != rawEntry.Hash {
		t.Fatalf("raw entry hash does not match its inline bytes")
	}

	jsonAppend1 := buildTx(ownerPriv, ownerPub, 5, 1, core.Op{
		Type:     core.OpKVAppend,
		KVAppend: &core.KVAppendOp{NsID: nsID, Key: "json-log", Codec: "json", Chunk: []byte(`{"a":1}`)},
	})
	mustApply(t, sp, &jsonAppend1, 0)
	jsonAppend2 := buildTx(ownerPriv, ownerPub, 6, 1, core.Op{
		Type:     core.OpKVAppend,
		KVAppend: &core.KVAppendOp{NsID: nsID, Key: "json-log", Codec: "json", Chunk: []byte(`{"b":2}`)},
	})
	mustApply(t, sp, &jsonAppend2, 0)

	jsonEntry, ok := sp.KVGet(core.KVKey{NsID: nsID, Key: "json-log"})
	if !ok || len(jsonEntry.List) != 2 {
		t.Fatalf("json append should keep discrete records, got %+v", jsonEntry)
	}
	if got := crypto.HashMulti(jsonEntry.List...); got != jsonEntry.Hash {
		t.Fatalf("json entry hash does not match its record list")
	}
}

func TestKVDelRemovesEntry(t *testing.T) {
	issuerPriv, issuerPub := newKeyPair(t)
	ownerPriv, ownerPub := newKeyPair(t)

	state := core.NewChainState([]core.PubKey{issuerPub}, nil)
	sp := core.NewScratchpad(state)
	appID := registerApp(t, sp, issuerPriv, issuerPub, ownerPriv, ownerPub, 1)

	nsTx := buildTx(ownerPriv, ownerPub, 2, 1, core.Op{
		Type:            core.OpNamespaceCreate,
		NamespaceCreate: &core.NamespaceCreateOp{Name: "cfg", AppID: appID, Policy: core.PolicyOwnerOnly},
	})
	mustApply(t, sp, &nsTx, 0)
	nsID := namespaceContentID(appID, ownerPub, "cfg")

	putTx := buildTx(ownerPriv, ownerPub, 3, 1, core.Op{
		Type:  core.OpKVPut,
		KVPut: &core.KVPutOp{NsID: nsID, Key: "k", Codec: "raw", Value: []byte("v")},
	})
	mustApply(t, sp, &putTx, 0)

	delTx := buildTx(ownerPriv, ownerPub, 4, 1, core.Op{
		Type:  core.OpKVDel,
		KVDel: &core.KVDelOp{NsID: nsID, Key: "k"},
	})
	mustApply(t, sp, &delTx, 0)

	if _, ok := sp.KVGet(core.KVKey{NsID: nsID, Key: "k"}); ok {
		t.Fatalf("key should no longer exist after KV_DEL")
	}

	redelTx := buildTx(ownerPriv, ownerPub, 5, 1, core.Op{
		Type:  core.OpKVDel,
		KVDel: &core.KVDelOp{NsID: nsID, Key: "k"},
	})
	if _, err := applyErr(sp, &redelTx, 0); err != core.ErrNotFound {
		t.Fatalf("deleting an already-deleted key error = %v, want ErrNotFound", err)
	}
}

package vm_test

import (
	"encoding/binary"
	"testing"

	"github.com/seloria/seloria/core"
	"github.com/seloria/seloria/crypto"
	"github.com/seloria/seloria/vm"

	_ "github.com/seloria/seloria/vm/modules/amm"
	_ "github.com/seloria/seloria/vm/modules/appdata"
	_ "github.com/seloria/seloria/vm/modules/claims"
	_ "github.com/seloria/seloria/vm/modules/identity"
	_ "github.com/seloria/seloria/vm/modules/payment"
)

func newKeyPair(t *testing.T) (crypto.PrivateKey, crypto.PublicKey) {
	t.Helper()
	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	return priv, pub
}

// issueCert builds an AgentCertificate for agent signed by issuerPriv, valid
// over [issuedAt, expiresAt).
func issueCert(issuerPriv crypto.PrivateKey, issuerPub, agent crypto.PublicKey, issuedAt, expiresAt uint64) core.AgentCertificate {
	cert := core.AgentCertificate{
		IssuerID:    issuerPub,
		AgentPubKey: agent,
		IssuedAt:    issuedAt,
		ExpiresAt:   expiresAt,
	}
	cert.IssuerSig = crypto.Sign(issuerPriv, cert.SigningBytes())
	return cert
}

// buildTx assembles and signs a transaction with the given ops.
func buildTx(priv crypto.PrivateKey, pub crypto.PublicKey, nonce, fee uint64, ops ...core.Op) core.Transaction {
	tx := core.Transaction{Sender: pub, Nonce: nonce, Fee: fee, Ops: ops}
	tx.Sign(priv)
	return tx
}

// certifyAgent registers agent's certificate directly in state, bypassing a
// transaction, so handler tests can focus on one opcode at a time.
func certifyAgent(sp *core.Scratchpad, cert core.AgentCertificate) {
	sp.PutCertificate(cert.AgentPubKey, &cert)
}

// tokenContentID mirrors payment.tokenContentID so tests can predict a
// TOKEN_CREATE op's resulting token id without depending on an unexported
// helper from another package.
func tokenContentID(sender core.PubKey, nonce uint64) core.ID {
	var nonceBytes [8]byte
	binary.LittleEndian.PutUint64(nonceBytes[:], nonce)
	return crypto.HashMulti([]byte("tok"), sender[:], nonceBytes[:])
}

// poolContentID mirrors amm.poolContentID so tests can predict a
// POOL_CREATE op's resulting pool id without depending on an unexported
// helper from another package.
func poolContentID(tokenA, tokenB core.ID) core.ID {
	return crypto.HashMulti([]byte("pool"), tokenA[:], tokenB[:])
}

// claimContentID mirrors claims.claimContentID so tests can predict a
// CLAIM_CREATE op's resulting claim id without depending on an unexported
// helper from another package.
func claimContentID(creator core.PubKey, nonce uint64) core.ID {
	var nonceBytes [8]byte
	binary.LittleEndian.PutUint64(nonceBytes[:], nonce)
	return crypto.HashMulti([]byte("claim"), creator[:], nonceBytes[:])
}

// namespaceContentID mirrors appdata.namespaceContentID so tests can predict
// a NAMESPACE_CREATE op's resulting namespace id without depending on an
// unexported helper from another package.
func namespaceContentID(appID core.ID, publisher core.PubKey, name string) core.ID {
	return crypto.HashMulti([]byte("ns"), appID[:], publisher[:], []byte(name))
}

func mustApply(t *testing.T, sp *core.Scratchpad, tx *core.Transaction, now uint64) []core.Event {
	t.Helper()
	events, err := vm.ApplyTx(sp, tx, now)
	if err != nil {
		t.Fatalf("ApplyTx: %v", err)
	}
	return events
}

// applyErr runs ApplyTx expecting a rejection, for tests asserting on the
// specific error kind rather than a successful outcome.
func applyErr(sp *core.Scratchpad, tx *core.Transaction, now uint64) ([]core.Event, error) {
	return vm.ApplyTx(sp, tx, now)
}

// Package wallet manages an agent or issuer's signing key: transaction
// signing and, for trusted issuers, signing new AgentCertificate grants.
package wallet

import (
	"github.com/seloria/seloria/core"
	"github.com/seloria/seloria/crypto"
)

// Wallet holds one ed25519 keypair.
type Wallet struct {
	Priv crypto.PrivateKey
	Pub  crypto.PublicKey
}

// New generates a fresh wallet.
func New() (*Wallet, error) {
	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return &Wallet{Priv: priv, Pub: pub}, nil
}

// FromPrivateKey derives a wallet from an existing private key.
func FromPrivateKey(priv crypto.PrivateKey) *Wallet {
	return &Wallet{Priv: priv, Pub: priv.Public()}
}

// SignTx signs tx in place with this wallet's key.
func (w *Wallet) SignTx(tx *core.Transaction) {
	tx.Sender = w.Pub
	tx.Sign(w.Priv)
}

// IssueCertificate builds and signs a new AgentCertificate granting agent
// the listed capabilities for [issuedAt, expiresAt). w must belong to a
// trusted issuer for the resulting certificate to be accepted on-chain.
func (w *Wallet) IssueCertificate(agent crypto.PublicKey, agentID core.ID, capabilities []string, issuedAt, expiresAt uint64, metadataHash core.ID) core.AgentCertificate {
	cert := core.AgentCertificate{
		IssuerID:     w.Pub,
		AgentPubKey:  agent,
		AgentID:      agentID,
		IssuedAt:     issuedAt,
		ExpiresAt:    expiresAt,
		Capabilities: capabilities,
		MetadataHash: metadataHash,
	}
	cert.IssuerSig = crypto.Sign(w.Priv, cert.SigningBytes())
	return cert
}

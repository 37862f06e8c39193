// Package identity implements the AGENT_CERT_REGISTER opcode: an agent
// installs a certificate, signed off-chain by a trusted issuer, granting
// its own pubkey the right to submit transactions for a bounded time
// window.
package identity

import (
	"github.com/seloria/seloria/core"
	"github.com/seloria/seloria/crypto"
	"github.com/seloria/seloria/vm"
)

func init() {
	vm.Register(core.OpAgentCertRegister, handleAgentCertRegister)
}

func handleAgentCertRegister(ctx *vm.Context, op *core.Op) error {
	cert := op.AgentCertRegister.Cert

	if !ctx.SP.IsTrustedIssuer(cert.IssuerID) {
		return core.NewTxError(core.KindUnknownIssuer, "certificate issuer is not a trusted issuer")
	}
	if cert.ExpiresAt <= cert.IssuedAt {
		return core.NewTxError(core.KindBadEncoding, "certificate expires_at must be after issued_at")
	}
	if err := crypto.Verify(cert.IssuerID, cert.SigningBytes(), cert.IssuerSig); err != nil {
		return core.NewTxError(core.KindBadSignature, "certificate issuer signature does not verify")
	}
	if cert.AgentPubKey != ctx.Tx.Sender {
		return core.NewTxError(core.KindSenderMismatch, "certificate agent_pubkey does not match tx sender")
	}
	if !cert.CertifiedAt(ctx.Now) {
		return core.NewTxError(core.KindExpired, "certificate is not valid at this time")
	}

	stored := cert
	ctx.SP.PutCertificate(cert.AgentPubKey, &stored)

	ctx.Emit(core.NewEvent(core.EventTxApplied, map[string]string{
		"op":         "AGENT_CERT_REGISTER",
		"agent":      cert.AgentPubKey.Hex(),
		"issuer":     cert.IssuerID.Hex(),
		"expires_at": core.FieldU64(cert.ExpiresAt),
	}))
	return nil
}

package vm

import (
	"github.com/seloria/seloria/core"
)

// ApplyTx validates and executes a single transaction against sp:
// verify signature, require an unexpired agent certificate,
// check the nonce and fee balance, simulate every op in order, and only
// stage the fee debit once every op has succeeded. A validation failure
// returns an error before anything is written; an op failure returns an
// error but leaves the writes of earlier ops in sp, so callers apply
// ApplyTx between a Mark/Restore pair so a rejected transaction never
// leaks partial writes into the block.
func ApplyTx(sp *core.Scratchpad, tx *core.Transaction, now uint64) ([]core.Event, error) {
	if err := tx.VerifySignature(); err != nil {
		return nil, err
	}

	// Trusted issuers are genesis-anointed authorities exempt from needing a
	// certificate of their own. An otherwise-uncertified sender is also
	// exempt for exactly one shape of transaction: a sole AGENT_CERT_REGISTER
	// op installing a cert for that same sender, since no certificate could
	// otherwise exist yet to let the agent bootstrap itself.
	if !sp.IsTrustedIssuer(tx.Sender) && !isSelfCertBootstrap(tx) {
		cert, ok := sp.Certificate(tx.Sender)
		if !ok {
			return nil, core.NewTxError(core.KindNotCertified, "sender has no registered agent certificate")
		}
		if !cert.CertifiedAt(now) {
			return nil, core.NewTxError(core.KindExpired, "sender's agent certificate is not valid at this time")
		}
	}

	acct := sp.Account(tx.Sender)
	if tx.Nonce != acct.Nonce+1 {
		return nil, core.NewTxError(core.KindBadNonce, "transaction nonce must be one greater than account nonce")
	}
	if acct.Spendable() < tx.Fee {
		return nil, core.NewTxError(core.KindInsufficient, "sender cannot cover transaction fee")
	}

	ctx := &Context{SP: sp, Tx: tx, Now: now}
	for i := range tx.Ops {
		op := &tx.Ops[i]
		handler, ok := lookup(op.Type)
		if !ok {
			return nil, core.NewTxError(core.KindBadEncoding, "unknown opcode")
		}
		if err := handler(ctx, op); err != nil {
			return nil, err
		}
	}

	acct = sp.Account(tx.Sender)
	acct.Nonce++
	acct.Balance -= tx.Fee
	sp.PutAccount(acct)

	ctx.Emit(core.NewEvent(core.EventTxApplied, map[string]string{
		"sender": tx.Sender.Hex(),
		"nonce":  core.FieldU64(tx.Nonce),
		"ops":    core.FieldU64(uint64(len(tx.Ops))),
	}))

	return ctx.Events(), nil
}

// isSelfCertBootstrap reports whether tx is exactly one AGENT_CERT_REGISTER
// op installing a certificate for its own sender, the one shape of
// transaction an uncertified agent may submit for itself.
func isSelfCertBootstrap(tx *core.Transaction) bool {
	if len(tx.Ops) != 1 || tx.Ops[0].Type != core.OpAgentCertRegister {
		return false
	}
	return tx.Ops[0].AgentCertRegister.Cert.AgentPubKey == tx.Sender
}

// TxOutcome records the result of re-executing one transaction inside a
// block, kept alongside the block-level event stream for RPC lookups.
type TxOutcome struct {
	Hash   core.ID
	Failed bool
	Err    string
	Events []core.Event
}

// ApplyBlock re-executes every transaction in block against sp in order.
// Each transaction is individually atomic: a failing transaction is rolled
// back and recorded as a failed outcome, but does not abort the rest of the
// block. Fees collected from successful transactions are split evenly
// across the current validator set, with any remainder going to the
// block's proposer.
func ApplyBlock(sp *core.Scratchpad, block *core.Block, now uint64) ([]TxOutcome, []core.Event, error) {
	outcomes := make([]TxOutcome, 0, len(block.Txs))
	var blockEvents []core.Event
	var totalFees uint64

	for i := range block.Txs {
		tx := &block.Txs[i]
		mark := sp.Mark()
		events, err := ApplyTx(sp, tx, now)
		if err != nil {
			sp.Restore(mark)
			outcomes = append(outcomes, TxOutcome{Hash: tx.Hash(), Failed: true, Err: err.Error()})
			continue
		}
		totalFees += tx.Fee
		outcomes = append(outcomes, TxOutcome{Hash: tx.Hash(), Events: events})
		blockEvents = append(blockEvents, events...)
	}

	distributeFees(sp, block.Header.ProposerPubKey, totalFees)

	blockEvents = append(blockEvents, core.NewEvent(core.EventBlockCommitted, map[string]string{
		"height": core.FieldU64(block.Header.Height),
		"txs":    core.FieldU64(uint64(len(block.Txs))),
	}))

	return outcomes, blockEvents, nil
}

func distributeFees(sp *core.Scratchpad, proposer core.PubKey, totalFees uint64) {
	if totalFees == 0 {
		return
	}
	validators := sp.Validators()
	if len(validators) == 0 {
		acct := sp.Account(proposer)
		acct.Balance += totalFees
		sp.PutAccount(acct)
		return
	}
	share := totalFees / uint64(len(validators))
	remainder := totalFees - share*uint64(len(validators))
	for _, v := range validators {
		acct := sp.Account(v)
		acct.Balance += share
		sp.PutAccount(acct)
	}
	if remainder > 0 {
		acct := sp.Account(proposer)
		acct.Balance += remainder
		sp.PutAccount(acct)
	}
}

// Package vm executes transactions against a core.Scratchpad. It holds no
// chain-specific logic itself; every opcode lives in a vm/modules/* package
// that self-registers into the shared Registry via init().
package vm

import "github.com/seloria/seloria/core"

// Context is the per-transaction execution environment handed to an opcode
// handler: the scratchpad it may read and write, the transaction being
// applied, and the block timestamp it executes under.
type Context struct {
	SP  *core.Scratchpad
	Tx  *core.Transaction
	Now uint64

	events []core.Event
}

// Emit records an event produced while applying the current transaction.
func (c *Context) Emit(ev core.Event) {
	ev.TxHash = c.Tx.Hash()
	c.events = append(c.events, ev)
}

// Events returns every event emitted so far in this context.
func (c *Context) Events() []core.Event { return c.events }

// SenderAccount returns (and lazily creates, via the scratchpad) the account
// of the transaction's sender.
func (c *Context) SenderAccount() *core.Account { return c.SP.Account(c.Tx.Sender) }

// SenderStake returns the sender's currently spendable balance, used by
// STAKE_GATED namespace policy checks.
func (c *Context) SenderStake() uint64 { return c.SenderAccount().Spendable() }

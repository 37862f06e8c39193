// Package payment implements the native and token transfer opcodes:
// TRANSFER, TOKEN_CREATE and TOKEN_TRANSFER.
package payment

import (
	"encoding/binary"

	"github.com/seloria/seloria/core"
	"github.com/seloria/seloria/crypto"
	"github.com/seloria/seloria/vm"
)

func init() {
	vm.Register(core.OpTransfer, handleTransfer)
	vm.Register(core.OpTokenCreate, handleTokenCreate)
	vm.Register(core.OpTokenTransfer, handleTokenTransfer)
}

// tokenContentID derives a token's id from its creator and the creating
// transaction's nonce, mirroring claimContentID so token ids are
// predictable before the creating transaction lands.
func tokenContentID(sender core.PubKey, nonce uint64) core.ID {
	var nonceBytes [8]byte
	binary.LittleEndian.PutUint64(nonceBytes[:], nonce)
	return crypto.HashMulti([]byte("tok"), sender[:], nonceBytes[:])
}

func handleTransfer(ctx *vm.Context, op *core.Op) error {
	p := op.Transfer
	if p.Amount == 0 {
		return core.NewTxError(core.KindBadAmount, "transfer amount must be positive")
	}
	from := ctx.SenderAccount()
	if from.Spendable() < p.Amount {
		return core.NewTxError(core.KindInsufficient, "sender balance cannot cover transfer")
	}
	from.Balance -= p.Amount
	ctx.SP.PutAccount(from)

	to := ctx.SP.Account(p.To)
	to.Balance += p.Amount
	ctx.SP.PutAccount(to)

	ctx.Emit(core.NewEvent(core.EventTxApplied, map[string]string{
		"op":     "TRANSFER",
		"from":   ctx.Tx.Sender.Hex(),
		"to":     p.To.Hex(),
		"amount": core.FieldU64(p.Amount),
	}))
	return nil
}

func handleTokenCreate(ctx *vm.Context, op *core.Op) error {
	p := op.TokenCreate
	if p.TotalSupply == 0 {
		return core.NewTxError(core.KindBadAmount, "token total supply must be positive")
	}

	tokenID := tokenContentID(ctx.Tx.Sender, ctx.Tx.Nonce)
	if _, exists := ctx.SP.Token(tokenID); exists {
		return core.NewTxError(core.KindDuplicate, "token id already registered")
	}

	ctx.SP.PutToken(&core.Token{
		TokenID:     tokenID,
		Name:        p.Name,
		Symbol:      p.Symbol,
		Decimals:    p.Decimals,
		TotalSupply: p.TotalSupply,
	})
	ctx.SP.SetTokenBalance(core.TokenBalanceKey{TokenID: tokenID, Holder: ctx.Tx.Sender}, p.TotalSupply)

	ctx.Emit(core.NewEvent(core.EventTxApplied, map[string]string{
		"op":       "TOKEN_CREATE",
		"token_id": tokenID.Hex(),
		"symbol":   p.Symbol,
		"supply":   core.FieldU64(p.TotalSupply),
	}))
	return nil
}

func handleTokenTransfer(ctx *vm.Context, op *core.Op) error {
	p := op.TokenTransfer
	if p.Amount == 0 {
		return core.NewTxError(core.KindBadAmount, "token transfer amount must be positive")
	}
	if _, ok := ctx.SP.Token(p.TokenID); !ok {
		return core.NewTxError(core.KindNoPool, "unknown token id")
	}

	fromKey := core.TokenBalanceKey{TokenID: p.TokenID, Holder: ctx.Tx.Sender}
	fromBal := ctx.SP.TokenBalance(fromKey)
	if fromBal < p.Amount {
		return core.NewTxError(core.KindInsufficient, "sender token balance cannot cover transfer")
	}
	ctx.SP.SetTokenBalance(fromKey, fromBal-p.Amount)

	toKey := core.TokenBalanceKey{TokenID: p.TokenID, Holder: p.To}
	ctx.SP.SetTokenBalance(toKey, ctx.SP.TokenBalance(toKey)+p.Amount)

	ctx.Emit(core.NewEvent(core.EventTxApplied, map[string]string{
		"op":       "TOKEN_TRANSFER",
		"token_id": p.TokenID.Hex(),
		"from":     ctx.Tx.Sender.Hex(),
		"to":       p.To.Hex(),
		"amount":   core.FieldU64(p.Amount),
	}))
	return nil
}

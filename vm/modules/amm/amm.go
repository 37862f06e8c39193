// Package amm implements the constant-product automated market maker:
// POOL_CREATE, SWAP and POOL_REMOVE. Swaps charge a 0.3%
// fee left in the pool for liquidity providers, same as the reference
// constant-product design this chain's AMM follows.
package amm

import (
	"github.com/seloria/seloria/core"
	"github.com/seloria/seloria/crypto"
	"github.com/seloria/seloria/vm"
)

// swapFeeNumerator/swapFeeDenominator encode the 0.3% swap fee as an exact
// integer ratio: the input amount is scaled by 997/1000 before the
// constant-product formula is applied.
const (
	swapFeeNumerator   = 997
	swapFeeDenominator = 1000
)

func init() {
	vm.Register(core.OpPoolCreate, handlePoolCreate)
	vm.Register(core.OpSwap, handleSwap)
	vm.Register(core.OpPoolRemove, handlePoolRemove)
}

// poolContentID derives a pool's id from its ordered token pair, so two
// POOL_CREATE ops for the same pair collide on the same id instead of
// fragmenting liquidity across duplicate pools.
func poolContentID(tokenA, tokenB core.ID) core.ID {
	return crypto.HashMulti([]byte("pool"), tokenA[:], tokenB[:])
}

func balance(ctx *vm.Context, token core.ID, holder core.PubKey) uint64 {
	if token == core.NativeTokenID {
		return ctx.SP.Account(holder).Spendable()
	}
	return ctx.SP.TokenBalance(core.TokenBalanceKey{TokenID: token, Holder: holder})
}

func debit(ctx *vm.Context, token core.ID, holder core.PubKey, amount uint64) {
	if token == core.NativeTokenID {
		acct := ctx.SP.Account(holder)
		acct.Balance -= amount
		ctx.SP.PutAccount(acct)
		return
	}
	key := core.TokenBalanceKey{TokenID: token, Holder: holder}
	ctx.SP.SetTokenBalance(key, ctx.SP.TokenBalance(key)-amount)
}

func credit(ctx *vm.Context, token core.ID, holder core.PubKey, amount uint64) {
	if token == core.NativeTokenID {
		acct := ctx.SP.Account(holder)
		acct.Balance += amount
		ctx.SP.PutAccount(acct)
		return
	}
	key := core.TokenBalanceKey{TokenID: token, Holder: holder}
	ctx.SP.SetTokenBalance(key, ctx.SP.TokenBalance(key)+amount)
}

// isqrt returns floor(sqrt(n)) via Newton's method, used to mint a new
// pool's initial LP supply from its two reserve amounts.
func isqrt(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	x := n
	y := (x + 1) / 2
	for y < x {
		x = y
		y = (x + n/x) / 2
	}
	return x
}

func handlePoolCreate(ctx *vm.Context, op *core.Op) error {
	p := op.PoolCreate
	if p.TokenA == p.TokenB {
		return core.NewTxError(core.KindBadAmount, "pool tokens must differ")
	}
	if p.AmountA == 0 || p.AmountB == 0 {
		return core.NewTxError(core.KindBadAmount, "pool seed amounts must be positive")
	}
	if balance(ctx, p.TokenA, ctx.Tx.Sender) < p.AmountA || balance(ctx, p.TokenB, ctx.Tx.Sender) < p.AmountB {
		return core.NewTxError(core.KindInsufficient, "sender balance cannot cover pool seed")
	}

	poolID := poolContentID(p.TokenA, p.TokenB)
	if _, exists := ctx.SP.Pool(poolID); exists {
		return core.NewTxError(core.KindDuplicate, "pool id already exists")
	}

	debit(ctx, p.TokenA, ctx.Tx.Sender, p.AmountA)
	debit(ctx, p.TokenB, ctx.Tx.Sender, p.AmountB)

	lpSupply := isqrt(p.AmountA * p.AmountB)
	ctx.SP.PutPool(&core.Pool{PoolID: poolID, TokenA: p.TokenA, TokenB: p.TokenB, ReserveA: p.AmountA, ReserveB: p.AmountB, LPSupply: lpSupply})
	ctx.SP.SetLPBalance(core.LPBalanceKey{PoolID: poolID, Holder: ctx.Tx.Sender}, lpSupply)

	ctx.Emit(core.NewEvent(core.EventTxApplied, map[string]string{
		"op":      "POOL_CREATE",
		"pool_id": poolID.Hex(),
		"lp":      core.FieldU64(lpSupply),
	}))
	return nil
}

func handleSwap(ctx *vm.Context, op *core.Op) error {
	p := op.Swap
	if p.AmountIn == 0 {
		return core.NewTxError(core.KindBadAmount, "swap amount must be positive")
	}
	pool, ok := ctx.SP.Pool(p.PoolID)
	if !ok {
		return core.NewTxError(core.KindNoPool, "unknown pool id")
	}

	var reserveIn, reserveOut *uint64
	var tokenOut core.ID
	switch p.TokenIn {
	case pool.TokenA:
		reserveIn, reserveOut, tokenOut = &pool.ReserveA, &pool.ReserveB, pool.TokenB
	case pool.TokenB:
		reserveIn, reserveOut, tokenOut = &pool.ReserveB, &pool.ReserveA, pool.TokenA
	default:
		return core.NewTxError(core.KindBadAmount, "swap token is not part of this pool")
	}

	if balance(ctx, p.TokenIn, ctx.Tx.Sender) < p.AmountIn {
		return core.NewTxError(core.KindInsufficient, "sender balance cannot cover swap input")
	}

	amountInWithFee := p.AmountIn * swapFeeNumerator
	numerator := amountInWithFee * *reserveOut
	denominator := *reserveIn*swapFeeDenominator + amountInWithFee
	amountOut := numerator / denominator

	if amountOut < p.MinOut {
		return core.NewTxError(core.KindSlippage, "swap output below minimum")
	}
	if amountOut == 0 || amountOut >= *reserveOut {
		return core.NewTxError(core.KindBadAmount, "swap would drain pool reserve")
	}

	debit(ctx, p.TokenIn, ctx.Tx.Sender, p.AmountIn)
	credit(ctx, tokenOut, ctx.Tx.Sender, amountOut)

	*reserveIn += p.AmountIn
	*reserveOut -= amountOut
	ctx.SP.PutPool(pool)

	ctx.Emit(core.NewEvent(core.EventTxApplied, map[string]string{
		"op":         "SWAP",
		"pool_id":    p.PoolID.Hex(),
		"amount_in":  core.FieldU64(p.AmountIn),
		"amount_out": core.FieldU64(amountOut),
	}))
	return nil
}

func handlePoolRemove(ctx *vm.Context, op *core.Op) error {
	p := op.PoolRemove
	if p.LPAmount == 0 {
		return core.NewTxError(core.KindBadAmount, "lp burn amount must be positive")
	}
	pool, ok := ctx.SP.Pool(p.PoolID)
	if !ok {
		return core.NewTxError(core.KindNoPool, "unknown pool id")
	}

	lpKey := core.LPBalanceKey{PoolID: p.PoolID, Holder: ctx.Tx.Sender}
	lpBal := ctx.SP.LPBalance(lpKey)
	if lpBal < p.LPAmount {
		return core.NewTxError(core.KindInsufficient, "sender lp balance cannot cover burn")
	}
	if pool.LPSupply == 0 {
		return core.NewTxError(core.KindBadAmount, "pool has no outstanding lp supply")
	}

	shareA := pool.ReserveA * p.LPAmount / pool.LPSupply
	shareB := pool.ReserveB * p.LPAmount / pool.LPSupply
	if shareA < p.MinA || shareB < p.MinB {
		return core.NewTxError(core.KindSlippage, "withdrawal below minimum amounts")
	}

	ctx.SP.SetLPBalance(lpKey, lpBal-p.LPAmount)
	pool.LPSupply -= p.LPAmount
	pool.ReserveA -= shareA
	pool.ReserveB -= shareB
	ctx.SP.PutPool(pool)

	credit(ctx, pool.TokenA, ctx.Tx.Sender, shareA)
	credit(ctx, pool.TokenB, ctx.Tx.Sender, shareB)

	ctx.Emit(core.NewEvent(core.EventTxApplied, map[string]string{
		"op":      "POOL_REMOVE",
		"pool_id": p.PoolID.Hex(),
		"share_a": core.FieldU64(shareA),
		"share_b": core.FieldU64(shareB),
	}))
	return nil
}

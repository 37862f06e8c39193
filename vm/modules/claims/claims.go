// Package claims implements the stake-weighted claim/attestation lifecycle:
// CLAIM_CREATE opens a claim with the creator's stake standing as its first
// (implicit YES) attestation, and ATTEST lets other agents stake onto either
// side. Once attested stake reaches quorum the claim finalizes immediately:
// the losing side forfeits 20% of its stake into a pool distributed pro-rata
// across the winning side, with any remainder (from floor division) going
// to the winning attester with the lowest pubkey byte order, so the result
// never depends on attestation order.
package claims

import (
	"bytes"
	"encoding/binary"
	"sort"

	"github.com/seloria/seloria/core"
	"github.com/seloria/seloria/crypto"
	"github.com/seloria/seloria/vm"
)

// quorumMultiple is how many times the creator's opening stake must be
// matched by total attested stake before a claim finalizes.
const quorumMultiple = 2

// forfeitPercent is the fraction of a losing attester's stake forfeited to
// the winning side on finalization.
const forfeitPercent = 20

func init() {
	vm.Register(core.OpClaimCreate, handleClaimCreate)
	vm.Register(core.OpAttest, handleAttest)
}

// claimContentID derives a claim's id from its creator and the creating
// transaction's nonce, so any agent can predict a claim's id before it
// lands rather than having to wait to observe the committed tx hash.
func claimContentID(creator core.PubKey, nonce uint64) core.ID {
	var nonceBytes [8]byte
	binary.LittleEndian.PutUint64(nonceBytes[:], nonce)
	return crypto.HashMulti([]byte("claim"), creator[:], nonceBytes[:])
}

func handleClaimCreate(ctx *vm.Context, op *core.Op) error {
	p := op.ClaimCreate
	if p.Stake == 0 {
		return core.NewTxError(core.KindBadStake, "claim stake must be positive")
	}

	creator := ctx.SenderAccount()
	if creator.Spendable() < p.Stake {
		return core.NewTxError(core.KindInsufficient, "creator balance cannot cover claim stake")
	}

	claimID := claimContentID(ctx.Tx.Sender, ctx.Tx.Nonce)
	if _, exists := ctx.SP.Claim(claimID); exists {
		return core.NewTxError(core.KindDuplicate, "claim id already exists")
	}

	creator.Locked[claimID] = p.Stake
	ctx.SP.PutAccount(creator)

	claim := &core.Claim{
		ID:           claimID,
		ClaimType:    p.ClaimType,
		PayloadHash:  p.PayloadHash,
		Creator:      ctx.Tx.Sender,
		CreatorStake: p.Stake,
		YesStake:     p.Stake,
		Status:       core.ClaimPending,
		CreatedAt:    ctx.Now,
		Attestations: []core.Attestation{{Attester: ctx.Tx.Sender, Vote: core.VoteYes, Stake: p.Stake}},
	}
	ctx.SP.PutClaim(claim)

	ctx.Emit(core.NewEvent(core.EventClaimCreated, map[string]string{
		"claim_id":   claimID.Hex(),
		"claim_type": p.ClaimType,
		"creator":    ctx.Tx.Sender.Hex(),
		"stake":      core.FieldU64(p.Stake),
	}))
	return nil
}

func handleAttest(ctx *vm.Context, op *core.Op) error {
	p := op.Attest
	if p.Stake == 0 {
		return core.NewTxError(core.KindBadStake, "attestation stake must be positive")
	}

	claim, ok := ctx.SP.Claim(p.ClaimID)
	if !ok {
		return core.NewTxError(core.KindNoClaim, "unknown claim id")
	}
	if claim.Status != core.ClaimPending {
		return core.NewTxError(core.KindFinalized, "claim has already finalized")
	}
	if claim.HasAttested(ctx.Tx.Sender) {
		return core.NewTxError(core.KindAlreadyAttested, "sender has already attested on this claim")
	}

	attester := ctx.SenderAccount()
	if attester.Spendable() < p.Stake {
		return core.NewTxError(core.KindInsufficient, "attester balance cannot cover attestation stake")
	}
	attester.Locked[claim.ID] = p.Stake
	ctx.SP.PutAccount(attester)

	claim.Attestations = append(claim.Attestations, core.Attestation{Attester: ctx.Tx.Sender, Vote: p.Vote, Stake: p.Stake})
	claim.NoteAttested(ctx.Tx.Sender)
	if p.Vote == core.VoteYes {
		claim.YesStake += p.Stake
	} else {
		claim.NoStake += p.Stake
	}

	ctx.Emit(core.NewEvent(core.EventAttestAdded, map[string]string{
		"claim_id": claim.ID.Hex(),
		"attester": ctx.Tx.Sender.Hex(),
		"vote":     voteString(p.Vote),
		"stake":    core.FieldU64(p.Stake),
	}))

	if claim.YesStake+claim.NoStake >= quorumMultiple*claim.CreatorStake {
		finalize(ctx, claim)
	} else {
		ctx.SP.PutClaim(claim)
	}
	return nil
}

func voteString(v core.Vote) string {
	if v == core.VoteYes {
		return "YES"
	}
	return "NO"
}

// finalize settles a claim once quorum stake has been reached: every stake
// lock on the claim is released, the losing side's balances are debited
// forfeitPercent of their stake, and the forfeited pool is split pro-rata
// across the winning side.
func finalize(ctx *vm.Context, claim *core.Claim) {
	winningVote := core.VoteYes
	if claim.NoStake > claim.YesStake {
		winningVote = core.VoteNo
	}
	if claim.YesStake == claim.NoStake {
		winningVote = core.VoteNo
	}

	type winner struct {
		pubkey core.PubKey
		stake  uint64
	}
	var winners []winner
	var winStakeSum uint64
	var forfeitPool uint64

	for _, a := range claim.Attestations {
		acct := ctx.SP.Account(a.Attester)
		delete(acct.Locked, claim.ID)
		if a.Vote == winningVote {
			winners = append(winners, winner{pubkey: a.Attester, stake: a.Stake})
			winStakeSum += a.Stake
		} else {
			forfeit := a.Stake * forfeitPercent / 100
			acct.Balance -= forfeit
			forfeitPool += forfeit
		}
		ctx.SP.PutAccount(acct)
	}

	sort.Slice(winners, func(i, j int) bool { return bytes.Compare(winners[i].pubkey[:], winners[j].pubkey[:]) < 0 })

	var distributed uint64
	for _, w := range winners {
		if winStakeSum == 0 {
			continue
		}
		share := forfeitPool * w.stake / winStakeSum
		if share == 0 {
			continue
		}
		acct := ctx.SP.Account(w.pubkey)
		acct.Balance += share
		ctx.SP.PutAccount(acct)
		distributed += share
	}
	if remainder := forfeitPool - distributed; remainder > 0 && len(winners) > 0 {
		acct := ctx.SP.Account(winners[0].pubkey)
		acct.Balance += remainder
		ctx.SP.PutAccount(acct)
	}

	if winningVote == core.VoteYes {
		claim.Status = core.ClaimFinalizedYes
	} else {
		claim.Status = core.ClaimFinalizedNo
	}
	ctx.SP.PutClaim(claim)

	ctx.Emit(core.NewEvent(core.EventClaimFinalized, map[string]string{
		"claim_id": claim.ID.Hex(),
		"result":   voteString(winningVote),
		"forfeit":  core.FieldU64(forfeitPool),
	}))
}

package core

import (
	"sort"

	"github.com/seloria/seloria/codec"
	"github.com/seloria/seloria/crypto"
)

// ID is the 32-byte content identifier used for every hash-addressed entity:
// tx hash, block hash, state root, claim id, ns_id, token_id, pool_id.
type ID = crypto.Hash256

// PubKey is a 32-byte ed25519 public key, used as an account/agent/validator
// identifier throughout.
type PubKey = crypto.PublicKey

// LockID names the reason a portion of an account's balance is locked. For
// claim/attestation stakes it is the claim ID the stake backs.
type LockID = ID

// ClaimStatus is the lifecycle state of a Claim.
type ClaimStatus uint8

const (
	ClaimPending ClaimStatus = iota
	ClaimFinalizedYes
	ClaimFinalizedNo
)

// Vote is an attester's YES/NO ballot on a claim.
type Vote uint8

const (
	VoteYes Vote = iota
	VoteNo
)

// NamespacePolicy controls who may write into a Namespace's KV space.
type NamespacePolicy uint8

const (
	PolicyOwnerOnly NamespacePolicy = iota
	PolicyAllowlist
	PolicyStakeGated
)

// Account holds a participant's native balance, replay nonce and any stake
// locks currently outstanding against it. Invariant:
// Balance >= sum(Locked).
type Account struct {
	Address PubKey
	Balance uint64
	Nonce   uint64
	Locked  map[LockID]uint64
}

// NewAccount returns a zero-value account for address, created implicitly on
// first credit.
func NewAccount(address PubKey) *Account {
	return &Account{Address: address, Locked: make(map[LockID]uint64)}
}

// Clone returns a deep copy so overlay writes never mutate the base state.
func (a *Account) Clone() *Account {
	cp := &Account{Address: a.Address, Balance: a.Balance, Nonce: a.Nonce, Locked: make(map[LockID]uint64, len(a.Locked))}
	for k, v := range a.Locked {
		cp.Locked[k] = v
	}
	return cp
}

// TotalLocked sums every outstanding lock on the account.
func (a *Account) TotalLocked() uint64 {
	var total uint64
	for _, v := range a.Locked {
		total += v
	}
	return total
}

// Spendable returns Balance minus every outstanding lock.
func (a *Account) Spendable() uint64 {
	locked := a.TotalLocked()
	if locked > a.Balance {
		return 0
	}
	return a.Balance - locked
}

func (a *Account) encode(w *codec.Writer) {
	w.Fixed(a.Address[:])
	w.U64(a.Balance)
	w.U64(a.Nonce)
	keys := sortedLockKeys(a.Locked)
	w.U64(uint64(len(keys)))
	for _, k := range keys {
		w.Fixed(k[:])
		w.U64(a.Locked[k])
	}
}

func sortedLockKeys(m map[LockID]uint64) []LockID {
	keys := make([]LockID, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return lessID(keys[i], keys[j]) })
	return keys
}

func lessID(a, b ID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func lessPubKey(a, b PubKey) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// AgentCertificate grants an agent pubkey the right to submit transactions
// for a bounded time window.
type AgentCertificate struct {
	IssuerID     PubKey
	AgentPubKey  PubKey
	AgentID      ID
	IssuedAt     uint64
	ExpiresAt    uint64
	Capabilities []string
	MetadataHash ID
	IssuerSig    crypto.Signature
}

// CertifiedAt reports whether the certificate is valid at time t.
func (c *AgentCertificate) CertifiedAt(t uint64) bool {
	return c.IssuedAt <= t && t < c.ExpiresAt
}

// SigningBytes returns the canonical bytes the issuer signature covers.
func (c *AgentCertificate) SigningBytes() []byte {
	w := codec.NewWriter()
	w.Fixed(c.IssuerID[:])
	w.Fixed(c.AgentPubKey[:])
	w.Fixed(c.AgentID[:])
	w.U64(c.IssuedAt)
	w.U64(c.ExpiresAt)
	caps := append([]string(nil), c.Capabilities...)
	sort.Strings(caps)
	w.U64(uint64(len(caps)))
	for _, cp := range caps {
		w.String(cp)
	}
	w.Fixed(c.MetadataHash[:])
	return w.Bytes()
}

// Attestation is a single stake-backed YES/NO vote on a claim.
type Attestation struct {
	Attester PubKey
	Vote     Vote
	Stake    uint64
}

// Claim is a stake-backed assertion raised by an agent.
type Claim struct {
	ID             ID
	ClaimType      string
	PayloadHash    ID
	Creator        PubKey
	CreatorStake   uint64
	YesStake       uint64
	NoStake        uint64
	Status         ClaimStatus
	CreatedAt      uint64
	Attestations   []Attestation
	attestersIndex map[PubKey]bool
}

// HasAttested reports whether attester already voted on this claim.
func (c *Claim) HasAttested(attester PubKey) bool {
	if c.attestersIndex == nil {
		c.attestersIndex = make(map[PubKey]bool, len(c.Attestations))
		for _, a := range c.Attestations {
			c.attestersIndex[a.Attester] = true
		}
	}
	return c.attestersIndex[attester]
}

// NoteAttested records that attester has now voted, keeping the lazily-built
// index (if any) consistent with a freshly appended Attestations entry.
func (c *Claim) NoteAttested(attester PubKey) {
	if c.attestersIndex != nil {
		c.attestersIndex[attester] = true
	}
}

// Clone returns a deep copy of the claim.
func (c *Claim) Clone() *Claim {
	cp := *c
	cp.Attestations = append([]Attestation(nil), c.Attestations...)
	cp.attestersIndex = nil
	return &cp
}

// Namespace is a policy-gated key space for application data.
type Namespace struct {
	NsID          ID
	Owner         PubKey
	Policy        NamespacePolicy
	Allowlist     map[PubKey]bool
	MinWriteStake uint64
}

// Clone returns a deep copy of the namespace.
func (n *Namespace) Clone() *Namespace {
	cp := &Namespace{NsID: n.NsID, Owner: n.Owner, Policy: n.Policy, MinWriteStake: n.MinWriteStake}
	cp.Allowlist = make(map[PubKey]bool, len(n.Allowlist))
	for k, v := range n.Allowlist {
		cp.Allowlist[k] = v
	}
	return cp
}

// CanWrite reports whether writer may write into this namespace given its
// currently spendable stake.
func (n *Namespace) CanWrite(writer PubKey, writerStake uint64) error {
	switch n.Policy {
	case PolicyOwnerOnly:
		if n.Owner != writer {
			return NewTxError(KindPolicyDenied, "namespace is owner-only")
		}
	case PolicyAllowlist:
		if n.Owner != writer && !n.Allowlist[writer] {
			return NewTxError(KindPolicyDenied, "writer not on allowlist")
		}
	case PolicyStakeGated:
		if writerStake < n.MinWriteStake {
			return NewTxError(KindStakeTooLow, "writer stake below namespace minimum")
		}
	}
	return nil
}

// KVKey addresses a single entry inside a namespace's key space.
type KVKey struct {
	NsID ID
	Key  string
}

// KVEntry is a single namespaced key/value record.
type KVEntry struct {
	Codec     string // "raw" | "json" | "cbor"
	Hash      ID
	Inline    []byte
	List      [][]byte // populated when Codec != "raw" and values are appended
	UpdatedAt uint64
	Updater   PubKey
}

// Clone returns a deep copy of the entry.
func (e *KVEntry) Clone() *KVEntry {
	cp := *e
	cp.Inline = append([]byte(nil), e.Inline...)
	cp.List = make([][]byte, len(e.List))
	for i, v := range e.List {
		cp.List[i] = append([]byte(nil), v...)
	}
	return &cp
}

// Token is a fungible asset class. Native token (token_id all-zero) uses
// Account.Balance directly instead of the TokenBalances table.
type Token struct {
	TokenID     ID
	Name        string
	Symbol      string
	Decimals    uint8
	TotalSupply uint64
}

// NativeTokenID is the all-zero token id reserved for the native balance.
var NativeTokenID ID

// TokenBalanceKey addresses a single (token, holder) balance cell.
type TokenBalanceKey struct {
	TokenID ID
	Holder  PubKey
}

// Pool is a constant-product AMM pool over two tokens.
type Pool struct {
	PoolID    ID
	TokenA    ID
	TokenB    ID
	ReserveA  uint64
	ReserveB  uint64
	LPSupply  uint64
}

// Clone returns a copy of the pool (value type already; kept for symmetry
// with the reference-field entities above).
func (p *Pool) Clone() *Pool {
	cp := *p
	return &cp
}

// LPBalanceKey addresses a single (pool, holder) LP-token balance cell.
type LPBalanceKey struct {
	PoolID ID
	Holder PubKey
}

// App is registered application metadata.
type App struct {
	AppID ID
	Meta  []byte
}

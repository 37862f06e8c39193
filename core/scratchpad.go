package core

import (
	"sort"

	"github.com/seloria/seloria/codec"
	"github.com/seloria/seloria/crypto"
)

// Scratchpad is a copy-on-write overlay over a committed ChainState: reads
// fall through to the base, writes land only in the overlay maps, and
// nothing touches the base until Commit. One dirty map per typed entity
// collection, each checked before falling through to the base map.
type Scratchpad struct {
	base *ChainState

	accountsDirty map[PubKey]*Account

	certsDirty map[PubKey]*AgentCertificate

	claimsDirty map[ID]*Claim

	nsDirty map[ID]*Namespace

	appsDirty map[ID]*App

	kvDirty   map[KVKey]*KVEntry
	kvDeleted map[KVKey]bool

	tokensDirty  map[ID]*Token
	tokBalDirty  map[TokenBalanceKey]uint64
	poolsDirty   map[ID]*Pool
	lpBalDirty   map[LPBalanceKey]uint64

	validatorsDirty []PubKey
	validatorsSet   bool
}

// NewScratchpad opens a fresh overlay on top of base.
func NewScratchpad(base *ChainState) *Scratchpad {
	return &Scratchpad{
		base:          base,
		accountsDirty: make(map[PubKey]*Account),
		certsDirty:    make(map[PubKey]*AgentCertificate),
		claimsDirty:   make(map[ID]*Claim),
		nsDirty:       make(map[ID]*Namespace),
		appsDirty:     make(map[ID]*App),
		kvDirty:       make(map[KVKey]*KVEntry),
		kvDeleted:     make(map[KVKey]bool),
		tokensDirty:   make(map[ID]*Token),
		tokBalDirty:   make(map[TokenBalanceKey]uint64),
		poolsDirty:    make(map[ID]*Pool),
		lpBalDirty:    make(map[LPBalanceKey]uint64),
	}
}

// Account returns the account for addr, overlay value taking precedence,
// falling through to the base and finally to a freshly-created zero account.
func (sp *Scratchpad) Account(addr PubKey) *Account {
	if a, ok := sp.accountsDirty[addr]; ok {
		return a
	}
	sp.base.mu.RLock()
	base, ok := sp.base.Accounts[addr]
	sp.base.mu.RUnlock()
	if ok {
		cp := base.Clone()
		sp.accountsDirty[addr] = cp
		return cp
	}
	a := NewAccount(addr)
	sp.accountsDirty[addr] = a
	return a
}

// PutAccount stages an account write.
func (sp *Scratchpad) PutAccount(a *Account) { sp.accountsDirty[a.Address] = a }

// Certificate returns the certificate registered for agent, if any.
func (sp *Scratchpad) Certificate(agent PubKey) (*AgentCertificate, bool) {
	if c, ok := sp.certsDirty[agent]; ok {
		return c, true
	}
	sp.base.mu.RLock()
	c, ok := sp.base.Certificates[agent]
	sp.base.mu.RUnlock()
	return c, ok
}

// PutCertificate stages a certificate write.
func (sp *Scratchpad) PutCertificate(agent PubKey, c *AgentCertificate) {
	sp.certsDirty[agent] = c
}

// IsTrustedIssuer reports whether issuer is in the genesis-configured
// trusted issuer set. The set never changes post-genesis so it is read
// straight from base.
func (sp *Scratchpad) IsTrustedIssuer(issuer PubKey) bool {
	sp.base.mu.RLock()
	defer sp.base.mu.RUnlock()
	return sp.base.TrustedIssuers[issuer]
}

// Claim returns the claim for id, if any.
func (sp *Scratchpad) Claim(id ID) (*Claim, bool) {
	if c, ok := sp.claimsDirty[id]; ok {
		return c, true
	}
	sp.base.mu.RLock()
	c, ok := sp.base.Claims[id]
	sp.base.mu.RUnlock()
	if ok {
		cp := c.Clone()
		sp.claimsDirty[id] = cp
		return cp, true
	}
	return nil, false
}

// PutClaim stages a claim write.
func (sp *Scratchpad) PutClaim(c *Claim) { sp.claimsDirty[c.ID] = c }

// Namespace returns the namespace for id, if any.
func (sp *Scratchpad) Namespace(id ID) (*Namespace, bool) {
	if n, ok := sp.nsDirty[id]; ok {
		return n, true
	}
	sp.base.mu.RLock()
	n, ok := sp.base.Namespaces[id]
	sp.base.mu.RUnlock()
	if ok {
		cp := n.Clone()
		sp.nsDirty[id] = cp
		return cp, true
	}
	return nil, false
}

// PutNamespace stages a namespace write.
func (sp *Scratchpad) PutNamespace(n *Namespace) { sp.nsDirty[n.NsID] = n }

// App returns the app for id, if any.
func (sp *Scratchpad) App(id ID) (*App, bool) {
	if a, ok := sp.appsDirty[id]; ok {
		return a, true
	}
	sp.base.mu.RLock()
	a, ok := sp.base.Apps[id]
	sp.base.mu.RUnlock()
	return a, ok
}

// PutApp stages an app write.
func (sp *Scratchpad) PutApp(a *App) { sp.appsDirty[a.AppID] = a }

// KVGet returns the entry at key, respecting any staged delete.
func (sp *Scratchpad) KVGet(key KVKey) (*KVEntry, bool) {
	if sp.kvDeleted[key] {
		return nil, false
	}
	if e, ok := sp.kvDirty[key]; ok {
		return e, true
	}
	sp.base.mu.RLock()
	e, ok := sp.base.KV[key]
	sp.base.mu.RUnlock()
	if ok {
		cp := e.Clone()
		sp.kvDirty[key] = cp
		return cp, true
	}
	return nil, false
}

// KVPut stages a KV write, clearing any prior staged delete.
func (sp *Scratchpad) KVPut(key KVKey, e *KVEntry) {
	delete(sp.kvDeleted, key)
	sp.kvDirty[key] = e
}

// KVDelete stages a KV delete.
func (sp *Scratchpad) KVDelete(key KVKey) {
	delete(sp.kvDirty, key)
	sp.kvDeleted[key] = true
}

// Token returns the token class for id, if any.
func (sp *Scratchpad) Token(id ID) (*Token, bool) {
	if t, ok := sp.tokensDirty[id]; ok {
		return t, true
	}
	sp.base.mu.RLock()
	t, ok := sp.base.Tokens[id]
	sp.base.mu.RUnlock()
	return t, ok
}

// PutToken stages a token-class write.
func (sp *Scratchpad) PutToken(t *Token) { sp.tokensDirty[t.TokenID] = t }

// TokenBalance returns the (token, holder) balance, zero if unset.
func (sp *Scratchpad) TokenBalance(k TokenBalanceKey) uint64 {
	if v, ok := sp.tokBalDirty[k]; ok {
		return v
	}
	sp.base.mu.RLock()
	v := sp.base.TokenBalances[k]
	sp.base.mu.RUnlock()
	return v
}

// SetTokenBalance stages a (token, holder) balance write.
func (sp *Scratchpad) SetTokenBalance(k TokenBalanceKey, v uint64) { sp.tokBalDirty[k] = v }

// Pool returns the AMM pool for id, if any.
func (sp *Scratchpad) Pool(id ID) (*Pool, bool) {
	if p, ok := sp.poolsDirty[id]; ok {
		return p, true
	}
	sp.base.mu.RLock()
	p, ok := sp.base.Pools[id]
	sp.base.mu.RUnlock()
	if ok {
		cp := p.Clone()
		sp.poolsDirty[id] = cp
		return cp, true
	}
	return nil, false
}

// PutPool stages a pool write.
func (sp *Scratchpad) PutPool(p *Pool) { sp.poolsDirty[p.PoolID] = p }

// LPBalance returns the (pool, holder) LP-token balance, zero if unset.
func (sp *Scratchpad) LPBalance(k LPBalanceKey) uint64 {
	if v, ok := sp.lpBalDirty[k]; ok {
		return v
	}
	sp.base.mu.RLock()
	v := sp.base.LPBalances[k]
	sp.base.mu.RUnlock()
	return v
}

// SetLPBalance stages a (pool, holder) LP balance write.
func (sp *Scratchpad) SetLPBalance(k LPBalanceKey, v uint64) { sp.lpBalDirty[k] = v }

// Validators returns the current committee, overlay taking precedence.
func (sp *Scratchpad) Validators() []PubKey {
	if sp.validatorsSet {
		return sp.validatorsDirty
	}
	sp.base.mu.RLock()
	defer sp.base.mu.RUnlock()
	return append([]PubKey(nil), sp.base.Validators...)
}

// mark is a copy of every overlay map. Entities that handlers mutate in place
// (accounts, claims, namespaces, KV entries, pools) are deep-copied so later
// in-place edits cannot leak into the mark; certs, apps and tokens are only
// ever replaced, so their pointers are shared.
type mark struct {
	accounts   map[PubKey]*Account
	certs      map[PubKey]*AgentCertificate
	claims     map[ID]*Claim
	ns         map[ID]*Namespace
	apps       map[ID]*App
	kv         map[KVKey]*KVEntry
	kvDeleted  map[KVKey]bool
	tokens     map[ID]*Token
	tokBal     map[TokenBalanceKey]uint64
	pools      map[ID]*Pool
	lpBal      map[LPBalanceKey]uint64
	validators []PubKey
	valSet     bool
}

// Mark captures the overlay's current contents so a failed transaction's
// partial writes can be rolled back without disturbing earlier, already
//-applied transactions in the same block.
func (sp *Scratchpad) Mark() mark {
	return mark{
		accounts:   cloneMap(sp.accountsDirty, (*Account).Clone),
		certs:      copyPtrMap(sp.certsDirty),
		claims:     cloneMap(sp.claimsDirty, (*Claim).Clone),
		ns:         cloneMap(sp.nsDirty, (*Namespace).Clone),
		apps:       copyPtrMap(sp.appsDirty),
		kv:         cloneMap(sp.kvDirty, (*KVEntry).Clone),
		kvDeleted:  copyBoolMap(sp.kvDeleted),
		tokens:     copyPtrMap(sp.tokensDirty),
		tokBal:     copyValMap(sp.tokBalDirty),
		pools:      cloneMap(sp.poolsDirty, (*Pool).Clone),
		lpBal:      copyValMap(sp.lpBalDirty),
		validators: sp.validatorsDirty,
		valSet:     sp.validatorsSet,
	}
}

// Restore resets the overlay to a previously captured Mark, discarding
// everything staged since.
func (sp *Scratchpad) Restore(m mark) {
	sp.accountsDirty = m.accounts
	sp.certsDirty = m.certs
	sp.claimsDirty = m.claims
	sp.nsDirty = m.ns
	sp.appsDirty = m.apps
	sp.kvDirty = m.kv
	sp.kvDeleted = m.kvDeleted
	sp.tokensDirty = m.tokens
	sp.tokBalDirty = m.tokBal
	sp.poolsDirty = m.pools
	sp.lpBalDirty = m.lpBal
	sp.validatorsDirty = m.validators
	sp.validatorsSet = m.valSet
}

func copyPtrMap[K comparable, V any](m map[K]*V) map[K]*V {
	cp := make(map[K]*V, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

func cloneMap[K comparable, V any](m map[K]*V, clone func(*V) *V) map[K]*V {
	cp := make(map[K]*V, len(m))
	for k, v := range m {
		cp[k] = clone(v)
	}
	return cp
}

func copyValMap[K comparable, V any](m map[K]V) map[K]V {
	cp := make(map[K]V, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

func copyBoolMap[K comparable](m map[K]bool) map[K]bool {
	cp := make(map[K]bool, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

// Commit folds every staged write into base under a single lock, advancing
// the chain by exactly one block.
func (sp *Scratchpad) Commit(height uint64, head ID) {
	b := sp.base
	b.mu.Lock()
	defer b.mu.Unlock()

	for k, v := range sp.accountsDirty {
		b.Accounts[k] = v
	}
	for k, v := range sp.certsDirty {
		b.Certificates[k] = v
	}
	for k, v := range sp.claimsDirty {
		b.Claims[k] = v
	}
	for k, v := range sp.nsDirty {
		b.Namespaces[k] = v
	}
	for k, v := range sp.appsDirty {
		b.Apps[k] = v
	}
	for k := range sp.kvDeleted {
		delete(b.KV, k)
	}
	for k, v := range sp.kvDirty {
		b.KV[k] = v
	}
	for k, v := range sp.tokensDirty {
		b.Tokens[k] = v
	}
	for k, v := range sp.tokBalDirty {
		b.TokenBalances[k] = v
	}
	for k, v := range sp.poolsDirty {
		b.Pools[k] = v
	}
	for k, v := range sp.lpBalDirty {
		b.LPBalances[k] = v
	}
	if sp.validatorsSet {
		b.Validators = sp.validatorsDirty
	}

	b.Height = height
	b.Head = head
}

// ProjectedStateRoot computes what ChainState.StateRoot would return after
// Commit, without mutating base: it hashes the union of base's committed
// entities and sp's overlay, overlay taking precedence, under base's read
// lock. This lets the committee engine derive a proposal's post-execution
// state root without ever copying ChainState (which embeds a mutex and so
// must never be copied by value).
func (sp *Scratchpad) ProjectedStateRoot() ID {
	b := sp.base
	b.mu.RLock()
	defer b.mu.RUnlock()

	addrSet := make(map[PubKey]struct{}, len(b.Accounts)+len(sp.accountsDirty))
	for k := range b.Accounts {
		addrSet[k] = struct{}{}
	}
	for k := range sp.accountsDirty {
		addrSet[k] = struct{}{}
	}
	addrs := make([]PubKey, 0, len(addrSet))
	for k := range addrSet {
		addrs = append(addrs, k)
	}
	sort.Slice(addrs, func(i, j int) bool { return lessPubKey(addrs[i], addrs[j]) })

	w := codec.NewWriter()
	w.U64(uint64(len(addrs)))
	for _, a := range addrs {
		acct := sp.accountsDirty[a]
		if acct == nil {
			acct = b.Accounts[a]
		}
		acct.encode(w)
	}

	certSet := make(map[PubKey]struct{}, len(b.Certificates)+len(sp.certsDirty))
	for k := range b.Certificates {
		certSet[k] = struct{}{}
	}
	for k := range sp.certsDirty {
		certSet[k] = struct{}{}
	}
	certAgents := make([]PubKey, 0, len(certSet))
	for k := range certSet {
		certAgents = append(certAgents, k)
	}
	sort.Slice(certAgents, func(i, j int) bool { return lessPubKey(certAgents[i], certAgents[j]) })
	w.U64(uint64(len(certAgents)))
	for _, agent := range certAgents {
		c := sp.certsDirty[agent]
		if c == nil {
			c = b.Certificates[agent]
		}
		w.Fixed(c.IssuerID[:])
		w.Fixed(c.AgentPubKey[:])
		w.Fixed(c.AgentID[:])
		w.U64(c.IssuedAt)
		w.U64(c.ExpiresAt)
	}

	claimSet := make(map[ID]struct{}, len(b.Claims)+len(sp.claimsDirty))
	for k := range b.Claims {
		claimSet[k] = struct{}{}
	}
	for k := range sp.claimsDirty {
		claimSet[k] = struct{}{}
	}
	claimIDs := make([]ID, 0, len(claimSet))
	for k := range claimSet {
		claimIDs = append(claimIDs, k)
	}
	sort.Slice(claimIDs, func(i, j int) bool { return lessID(claimIDs[i], claimIDs[j]) })
	w.U64(uint64(len(claimIDs)))
	for _, id := range claimIDs {
		c := sp.claimsDirty[id]
		if c == nil {
			c = b.Claims[id]
		}
		w.Fixed(c.ID[:])
		w.U8(uint8(c.Status))
		w.U64(c.YesStake)
		w.U64(c.NoStake)
	}

	nsSet := make(map[ID]struct{}, len(b.Namespaces)+len(sp.nsDirty))
	for k := range b.Namespaces {
		nsSet[k] = struct{}{}
	}
	for k := range sp.nsDirty {
		nsSet[k] = struct{}{}
	}
	nsIDs := make([]ID, 0, len(nsSet))
	for k := range nsSet {
		nsIDs = append(nsIDs, k)
	}
	sort.Slice(nsIDs, func(i, j int) bool { return lessID(nsIDs[i], nsIDs[j]) })
	w.U64(uint64(len(nsIDs)))
	for _, id := range nsIDs {
		w.Fixed(id[:])
	}

	kvSet := make(map[KVKey]struct{}, len(b.KV)+len(sp.kvDirty))
	for k := range b.KV {
		if sp.kvDeleted[k] {
			continue
		}
		kvSet[k] = struct{}{}
	}
	for k := range sp.kvDirty {
		kvSet[k] = struct{}{}
	}
	kvKeys := make([]KVKey, 0, len(kvSet))
	for k := range kvSet {
		kvKeys = append(kvKeys, k)
	}
	sort.Slice(kvKeys, func(i, j int) bool {
		if kvKeys[i].NsID != kvKeys[j].NsID {
			return lessID(kvKeys[i].NsID, kvKeys[j].NsID)
		}
		return kvKeys[i].Key < kvKeys[j].Key
	})
	w.U64(uint64(len(kvKeys)))
	for _, k := range kvKeys {
		e := sp.kvDirty[k]
		if e == nil {
			e = b.KV[k]
		}
		w.Fixed(k.NsID[:])
		w.String(k.Key)
		w.Fixed(e.Hash[:])
	}

	tokSet := make(map[ID]struct{}, len(b.Tokens)+len(sp.tokensDirty))
	for k := range b.Tokens {
		tokSet[k] = struct{}{}
	}
	for k := range sp.tokensDirty {
		tokSet[k] = struct{}{}
	}
	tokIDs := make([]ID, 0, len(tokSet))
	for k := range tokSet {
		tokIDs = append(tokIDs, k)
	}
	sort.Slice(tokIDs, func(i, j int) bool { return lessID(tokIDs[i], tokIDs[j]) })
	w.U64(uint64(len(tokIDs)))
	for _, id := range tokIDs {
		t := sp.tokensDirty[id]
		if t == nil {
			t = b.Tokens[id]
		}
		w.Fixed(t.TokenID[:])
		w.U64(t.TotalSupply)
	}

	poolSet := make(map[ID]struct{}, len(b.Pools)+len(sp.poolsDirty))
	for k := range b.Pools {
		poolSet[k] = struct{}{}
	}
	for k := range sp.poolsDirty {
		poolSet[k] = struct{}{}
	}
	poolIDs := make([]ID, 0, len(poolSet))
	for k := range poolSet {
		poolIDs = append(poolIDs, k)
	}
	sort.Slice(poolIDs, func(i, j int) bool { return lessID(poolIDs[i], poolIDs[j]) })
	w.U64(uint64(len(poolIDs)))
	for _, id := range poolIDs {
		p := sp.poolsDirty[id]
		if p == nil {
			p = b.Pools[id]
		}
		w.Fixed(p.PoolID[:])
		w.U64(p.ReserveA)
		w.U64(p.ReserveB)
		w.U64(p.LPSupply)
	}

	return crypto.Hash(w.Bytes())
}

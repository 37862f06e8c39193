package core

import (
	"sort"
	"sync"

	"github.com/seloria/seloria/codec"
	"github.com/seloria/seloria/crypto"
)

// ChainState is the committed state machine: every account, certificate,
// claim, namespace, KV entry, token, pool and the current validator set.
// All mutation happens through a Scratchpad; ChainState itself
// is only ever advanced by Scratchpad.Commit.
type ChainState struct {
	mu sync.RWMutex

	Height uint64
	Head   ID

	Accounts       map[PubKey]*Account
	TrustedIssuers map[PubKey]bool
	Certificates   map[PubKey]*AgentCertificate
	Claims         map[ID]*Claim
	Namespaces     map[ID]*Namespace
	Apps           map[ID]*App
	KV             map[KVKey]*KVEntry
	Tokens         map[ID]*Token
	TokenBalances  map[TokenBalanceKey]uint64
	Pools          map[ID]*Pool
	LPBalances     map[LPBalanceKey]uint64
	Validators     []PubKey
}

// NewChainState returns an empty state seeded with the genesis trusted
// issuer set and validator committee.
func NewChainState(trustedIssuers, validators []PubKey) *ChainState {
	s := &ChainState{
		Accounts:       make(map[PubKey]*Account),
		TrustedIssuers: make(map[PubKey]bool, len(trustedIssuers)),
		Certificates:   make(map[PubKey]*AgentCertificate),
		Claims:         make(map[ID]*Claim),
		Namespaces:     make(map[ID]*Namespace),
		Apps:           make(map[ID]*App),
		KV:             make(map[KVKey]*KVEntry),
		Tokens:         make(map[ID]*Token),
		TokenBalances:  make(map[TokenBalanceKey]uint64),
		Pools:          make(map[ID]*Pool),
		LPBalances:     make(map[LPBalanceKey]uint64),
		Validators:     append([]PubKey(nil), validators...),
	}
	for _, iss := range trustedIssuers {
		s.TrustedIssuers[iss] = true
	}
	return s
}

// Account returns a read-only snapshot of the committed account, if any.
func (s *ChainState) Account(addr PubKey) (*Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.Accounts[addr]
	return a, ok
}

// Claim returns a read-only snapshot of the committed claim, if any.
func (s *ChainState) Claim(id ID) (*Claim, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.Claims[id]
	return c, ok
}

// Namespace returns a read-only snapshot of the committed namespace, if any.
func (s *ChainState) Namespace(id ID) (*Namespace, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.Namespaces[id]
	return n, ok
}

// KVEntry returns a read-only snapshot of the committed KV entry, if any.
func (s *ChainState) KVEntry(key KVKey) (*KVEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.KV[key]
	return e, ok
}

// TokenInfo returns a read-only snapshot of the committed token, if any.
func (s *ChainState) TokenInfo(id ID) (*Token, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.Tokens[id]
	return t, ok
}

// PoolInfo returns a read-only snapshot of the committed pool, if any.
func (s *ChainState) PoolInfo(id ID) (*Pool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.Pools[id]
	return p, ok
}

// IsCertifiedAt reports whether addr may submit transactions at time now:
// either it is a genesis-configured trusted issuer (exempt, since no
// certificate could otherwise exist to certify the first issuer), or it
// holds a registered certificate valid at now.
func (s *ChainState) IsCertifiedAt(addr PubKey, now uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.TrustedIssuers[addr] {
		return true
	}
	cert, ok := s.Certificates[addr]
	return ok && cert.CertifiedAt(now)
}

// HeightAndHead returns the current committed height and head hash under
// lock, for RPC status reporting.
func (s *ChainState) HeightAndHead() (uint64, ID) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Height, s.Head
}

// Leader returns the validator chosen to propose at height h: V[h mod N].
func (s *ChainState) Leader(height uint64) PubKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.Validators)
	if n == 0 {
		return PubKey{}
	}
	return s.Validators[height%uint64(n)]
}

// Quorum returns the signature threshold T = floor(2N/3)+1 for the current
// validator set.
func (s *ChainState) Quorum() int {
	s.mu.RLock()
	n := len(s.Validators)
	s.mu.RUnlock()
	return 2*n/3 + 1
}

// StateRoot hashes every committed entity in deterministic key order, giving
// a single root any two nodes that applied the same blocks agree on.
func (s *ChainState) StateRoot() ID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w := codec.NewWriter()

	addrs := make([]PubKey, 0, len(s.Accounts))
	for k := range s.Accounts {
		addrs = append(addrs, k)
	}
	sort.Slice(addrs, func(i, j int) bool { return lessPubKey(addrs[i], addrs[j]) })
	w.U64(uint64(len(addrs)))
	for _, a := range addrs {
		s.Accounts[a].encode(w)
	}

	issuers := make([]PubKey, 0, len(s.Certificates))
	for k := range s.Certificates {
		issuers = append(issuers, k)
	}
	sort.Slice(issuers, func(i, j int) bool { return lessPubKey(issuers[i], issuers[j]) })
	w.U64(uint64(len(issuers)))
	for _, a := range issuers {
		c := s.Certificates[a]
		w.Fixed(c.IssuerID[:])
		w.Fixed(c.AgentPubKey[:])
		w.Fixed(c.AgentID[:])
		w.U64(c.IssuedAt)
		w.U64(c.ExpiresAt)
	}

	claimIDs := make([]ID, 0, len(s.Claims))
	for k := range s.Claims {
		claimIDs = append(claimIDs, k)
	}
	sort.Slice(claimIDs, func(i, j int) bool { return lessID(claimIDs[i], claimIDs[j]) })
	w.U64(uint64(len(claimIDs)))
	for _, id := range claimIDs {
		c := s.Claims[id]
		w.Fixed(c.ID[:])
		w.U8(uint8(c.Status))
		w.U64(c.YesStake)
		w.U64(c.NoStake)
	}

	nsIDs := make([]ID, 0, len(s.Namespaces))
	for k := range s.Namespaces {
		nsIDs = append(nsIDs, k)
	}
	sort.Slice(nsIDs, func(i, j int) bool { return lessID(nsIDs[i], nsIDs[j]) })
	w.U64(uint64(len(nsIDs)))
	for _, id := range nsIDs {
		w.Fixed(id[:])
	}

	kvKeys := make([]KVKey, 0, len(s.KV))
	for k := range s.KV {
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
		e := s.KV[k]
		w.Fixed(k.NsID[:])
		w.String(k.Key)
		w.Fixed(e.Hash[:])
	}

	tokIDs := make([]ID, 0, len(s.Tokens))
	for k := range s.Tokens {
		tokIDs = append(tokIDs, k)
	}
	sort.Slice(tokIDs, func(i, j int) bool { return lessID(tokIDs[i], tokIDs[j]) })
	w.U64(uint64(len(tokIDs)))
	for _, id := range tokIDs {
		t := s.Tokens[id]
		w.Fixed(t.TokenID[:])
		w.U64(t.TotalSupply)
	}

	poolIDs := make([]ID, 0, len(s.Pools))
	for k := range s.Pools {
		poolIDs = append(poolIDs, k)
	}
	sort.Slice(poolIDs, func(i, j int) bool { return lessID(poolIDs[i], poolIDs[j]) })
	w.U64(uint64(len(poolIDs)))
	for _, id := range poolIDs {
		p := s.Pools[id]
		w.Fixed(p.PoolID[:])
		w.U64(p.ReserveA)
		w.U64(p.ReserveB)
		w.U64(p.LPSupply)
	}

	return crypto.Hash(w.Bytes())
}

// Snapshot encodes the entire committed state into the single opaque blob
// persisted to disk between restarts.
func (s *ChainState) Snapshot() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w := codec.NewWriter()
	w.U64(s.Height)
	w.Fixed(s.Head[:])

	addrs := make([]PubKey, 0, len(s.Accounts))
	for k := range s.Accounts {
		addrs = append(addrs, k)
	}
	sort.Slice(addrs, func(i, j int) bool { return lessPubKey(addrs[i], addrs[j]) })
	w.U64(uint64(len(addrs)))
	for _, a := range addrs {
		s.Accounts[a].encode(w)
	}

	issuers := make([]PubKey, 0, len(s.TrustedIssuers))
	for k := range s.TrustedIssuers {
		issuers = append(issuers, k)
	}
	sort.Slice(issuers, func(i, j int) bool { return lessPubKey(issuers[i], issuers[j]) })
	w.U64(uint64(len(issuers)))
	for _, iss := range issuers {
		w.Fixed(iss[:])
	}

	certAgents := make([]PubKey, 0, len(s.Certificates))
	for k := range s.Certificates {
		certAgents = append(certAgents, k)
	}
	sort.Slice(certAgents, func(i, j int) bool { return lessPubKey(certAgents[i], certAgents[j]) })
	w.U64(uint64(len(certAgents)))
	for _, agent := range certAgents {
		c := s.Certificates[agent]
		w.Fixed(c.IssuerID[:])
		w.Fixed(c.AgentPubKey[:])
		w.Fixed(c.AgentID[:])
		w.U64(c.IssuedAt)
		w.U64(c.ExpiresAt)
		w.U64(uint64(len(c.Capabilities)))
		for _, capability := range c.Capabilities {
			w.String(capability)
		}
		w.Fixed(c.MetadataHash[:])
		w.Fixed(c.IssuerSig[:])
	}

	claimIDs := make([]ID, 0, len(s.Claims))
	for k := range s.Claims {
		claimIDs = append(claimIDs, k)
	}
	sort.Slice(claimIDs, func(i, j int) bool { return lessID(claimIDs[i], claimIDs[j]) })
	w.U64(uint64(len(claimIDs)))
	for _, id := range claimIDs {
		c := s.Claims[id]
		w.Fixed(c.ID[:])
		w.String(c.ClaimType)
		w.Fixed(c.PayloadHash[:])
		w.Fixed(c.Creator[:])
		w.U64(c.CreatorStake)
		w.U64(c.YesStake)
		w.U64(c.NoStake)
		w.U8(uint8(c.Status))
		w.U64(c.CreatedAt)
		w.U64(uint64(len(c.Attestations)))
		for _, a := range c.Attestations {
			w.Fixed(a.Attester[:])
			w.U8(uint8(a.Vote))
			w.U64(a.Stake)
		}
	}

	nsIDs := make([]ID, 0, len(s.Namespaces))
	for k := range s.Namespaces {
		nsIDs = append(nsIDs, k)
	}
	sort.Slice(nsIDs, func(i, j int) bool { return lessID(nsIDs[i], nsIDs[j]) })
	w.U64(uint64(len(nsIDs)))
	for _, id := range nsIDs {
		n := s.Namespaces[id]
		w.Fixed(n.NsID[:])
		w.Fixed(n.Owner[:])
		w.U8(uint8(n.Policy))
		w.U64(n.MinWriteStake)
		allow := make([]PubKey, 0, len(n.Allowlist))
		for a := range n.Allowlist {
			allow = append(allow, a)
		}
		sort.Slice(allow, func(i, j int) bool { return lessPubKey(allow[i], allow[j]) })
		w.U64(uint64(len(allow)))
		for _, a := range allow {
			w.Fixed(a[:])
		}
	}

	appIDs := make([]ID, 0, len(s.Apps))
	for k := range s.Apps {
		appIDs = append(appIDs, k)
	}
	sort.Slice(appIDs, func(i, j int) bool { return lessID(appIDs[i], appIDs[j]) })
	w.U64(uint64(len(appIDs)))
	for _, id := range appIDs {
		a := s.Apps[id]
		w.Fixed(a.AppID[:])
		w.VarBytes(a.Meta)
	}

	kvKeys := make([]KVKey, 0, len(s.KV))
	for k := range s.KV {
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
		e := s.KV[k]
		w.Fixed(k.NsID[:])
		w.String(k.Key)
		w.String(e.Codec)
		w.Fixed(e.Hash[:])
		w.VarBytes(e.Inline)
		w.U64(uint64(len(e.List)))
		for _, item := range e.List {
			w.VarBytes(item)
		}
		w.U64(e.UpdatedAt)
		w.Fixed(e.Updater[:])
	}

	tokIDs := make([]ID, 0, len(s.Tokens))
	for k := range s.Tokens {
		tokIDs = append(tokIDs, k)
	}
	sort.Slice(tokIDs, func(i, j int) bool { return lessID(tokIDs[i], tokIDs[j]) })
	w.U64(uint64(len(tokIDs)))
	for _, id := range tokIDs {
		t := s.Tokens[id]
		w.Fixed(t.TokenID[:])
		w.String(t.Name)
		w.String(t.Symbol)
		w.U8(t.Decimals)
		w.U64(t.TotalSupply)
	}

	tokBalKeys := make([]TokenBalanceKey, 0, len(s.TokenBalances))
	for k := range s.TokenBalances {
		tokBalKeys = append(tokBalKeys, k)
	}
	sort.Slice(tokBalKeys, func(i, j int) bool {
		if tokBalKeys[i].TokenID != tokBalKeys[j].TokenID {
			return lessID(tokBalKeys[i].TokenID, tokBalKeys[j].TokenID)
		}
		return lessPubKey(tokBalKeys[i].Holder, tokBalKeys[j].Holder)
	})
	w.U64(uint64(len(tokBalKeys)))
	for _, k := range tokBalKeys {
		w.Fixed(k.TokenID[:])
		w.Fixed(k.Holder[:])
		w.U64(s.TokenBalances[k])
	}

	poolIDs := make([]ID, 0, len(s.Pools))
	for k := range s.Pools {
		poolIDs = append(poolIDs, k)
	}
	sort.Slice(poolIDs, func(i, j int) bool { return lessID(poolIDs[i], poolIDs[j]) })
	w.U64(uint64(len(poolIDs)))
	for _, id := range poolIDs {
		p := s.Pools[id]
		w.Fixed(p.PoolID[:])
		w.Fixed(p.TokenA[:])
		w.Fixed(p.TokenB[:])
		w.U64(p.ReserveA)
		w.U64(p.ReserveB)
		w.U64(p.LPSupply)
	}

	lpBalKeys := make([]LPBalanceKey, 0, len(s.LPBalances))
	for k := range s.LPBalances {
		lpBalKeys = append(lpBalKeys, k)
	}
	sort.Slice(lpBalKeys, func(i, j int) bool {
		if lpBalKeys[i].PoolID != lpBalKeys[j].PoolID {
			return lessID(lpBalKeys[i].PoolID, lpBalKeys[j].PoolID)
		}
		return lessPubKey(lpBalKeys[i].Holder, lpBalKeys[j].Holder)
	})
	w.U64(uint64(len(lpBalKeys)))
	for _, k := range lpBalKeys {
		w.Fixed(k.PoolID[:])
		w.Fixed(k.Holder[:])
		w.U64(s.LPBalances[k])
	}

	w.U64(uint64(len(s.Validators)))
	for _, v := range s.Validators {
		w.Fixed(v[:])
	}

	return w.Bytes()
}

// LoadSnapshot replaces s's contents with the state encoded in data by
// Snapshot. s must not be concurrently accessed by other goroutines while
// loading.
func (s *ChainState) LoadSnapshot(data []byte) error {
	r := codec.NewReader(data)
	s.Height = r.U64()
	copy(s.Head[:], r.Fixed(crypto.Size))

	s.Accounts = make(map[PubKey]*Account)
	for n := r.U64(); n > 0; n-- {
		a := &Account{Locked: make(map[LockID]uint64)}
		copy(a.Address[:], r.Fixed(crypto.Size))
		a.Balance = r.U64()
		a.Nonce = r.U64()
		for ln := r.U64(); ln > 0; ln-- {
			var lockID LockID
			copy(lockID[:], r.Fixed(crypto.Size))
			a.Locked[lockID] = r.U64()
		}
		s.Accounts[a.Address] = a
	}

	s.TrustedIssuers = make(map[PubKey]bool)
	for n := r.U64(); n > 0; n-- {
		var pk PubKey
		copy(pk[:], r.Fixed(crypto.Size))
		s.TrustedIssuers[pk] = true
	}

	s.Certificates = make(map[PubKey]*AgentCertificate)
	for n := r.U64(); n > 0; n-- {
		c := &AgentCertificate{}
		copy(c.IssuerID[:], r.Fixed(crypto.Size))
		copy(c.AgentPubKey[:], r.Fixed(crypto.Size))
		copy(c.AgentID[:], r.Fixed(crypto.Size))
		c.IssuedAt = r.U64()
		c.ExpiresAt = r.U64()
		for cn := r.U64(); cn > 0; cn-- {
			c.Capabilities = append(c.Capabilities, r.String())
		}
		copy(c.MetadataHash[:], r.Fixed(crypto.Size))
		copy(c.IssuerSig[:], r.Fixed(crypto.SigSize))
		s.Certificates[c.AgentPubKey] = c
	}

	s.Claims = make(map[ID]*Claim)
	for n := r.U64(); n > 0; n-- {
		c := &Claim{}
		copy(c.ID[:], r.Fixed(crypto.Size))
		c.ClaimType = r.String()
		copy(c.PayloadHash[:], r.Fixed(crypto.Size))
		copy(c.Creator[:], r.Fixed(crypto.Size))
		c.CreatorStake = r.U64()
		c.YesStake = r.U64()
		c.NoStake = r.U64()
		c.Status = ClaimStatus(r.U8())
		c.CreatedAt = r.U64()
		for an := r.U64(); an > 0; an-- {
			var a Attestation
			copy(a.Attester[:], r.Fixed(crypto.Size))
			a.Vote = Vote(r.U8())
			a.Stake = r.U64()
			c.Attestations = append(c.Attestations, a)
		}
		s.Claims[c.ID] = c
	}

	s.Namespaces = make(map[ID]*Namespace)
	for n := r.U64(); n > 0; n-- {
		ns := &Namespace{Allowlist: make(map[PubKey]bool)}
		copy(ns.NsID[:], r.Fixed(crypto.Size))
		copy(ns.Owner[:], r.Fixed(crypto.Size))
		ns.Policy = NamespacePolicy(r.U8())
		ns.MinWriteStake = r.U64()
		for an := r.U64(); an > 0; an-- {
			var pk PubKey
			copy(pk[:], r.Fixed(crypto.Size))
			ns.Allowlist[pk] = true
		}
		s.Namespaces[ns.NsID] = ns
	}

	s.Apps = make(map[ID]*App)
	for n := r.U64(); n > 0; n-- {
		a := &App{}
		copy(a.AppID[:], r.Fixed(crypto.Size))
		a.Meta = r.VarBytes()
		s.Apps[a.AppID] = a
	}

	s.KV = make(map[KVKey]*KVEntry)
	for n := r.U64(); n > 0; n-- {
		var k KVKey
		copy(k.NsID[:], r.Fixed(crypto.Size))
		k.Key = r.String()
		e := &KVEntry{}
		e.Codec = r.String()
		copy(e.Hash[:], r.Fixed(crypto.Size))
		e.Inline = r.VarBytes()
		for ln := r.U64(); ln > 0; ln-- {
			e.List = append(e.List, r.VarBytes())
		}
		e.UpdatedAt = r.U64()
		copy(e.Updater[:], r.Fixed(crypto.Size))
		s.KV[k] = e
	}

	s.Tokens = make(map[ID]*Token)
	for n := r.U64(); n > 0; n-- {
		t := &Token{}
		copy(t.TokenID[:], r.Fixed(crypto.Size))
		t.Name = r.String()
		t.Symbol = r.String()
		t.Decimals = r.U8()
		t.TotalSupply = r.U64()
		s.Tokens[t.TokenID] = t
	}

	s.TokenBalances = make(map[TokenBalanceKey]uint64)
	for n := r.U64(); n > 0; n-- {
		var k TokenBalanceKey
		copy(k.TokenID[:], r.Fixed(crypto.Size))
		copy(k.Holder[:], r.Fixed(crypto.Size))
		s.TokenBalances[k] = r.U64()
	}

	s.Pools = make(map[ID]*Pool)
	for n := r.U64(); n > 0; n-- {
		p := &Pool{}
		copy(p.PoolID[:], r.Fixed(crypto.Size))
		copy(p.TokenA[:], r.Fixed(crypto.Size))
		copy(p.TokenB[:], r.Fixed(crypto.Size))
		p.ReserveA = r.U64()
		p.ReserveB = r.U64()
		p.LPSupply = r.U64()
		s.Pools[p.PoolID] = p
	}

	s.LPBalances = make(map[LPBalanceKey]uint64)
	for n := r.U64(); n > 0; n-- {
		var k LPBalanceKey
		copy(k.PoolID[:], r.Fixed(crypto.Size))
		copy(k.Holder[:], r.Fixed(crypto.Size))
		s.LPBalances[k] = r.U64()
	}

	s.Validators = nil
	for n := r.U64(); n > 0; n-- {
		var v PubKey
		copy(v[:], r.Fixed(crypto.Size))
		s.Validators = append(s.Validators, v)
	}

	if !r.Done() {
		return NewTxError(KindBadEncoding, "trailing bytes after state snapshot")
	}
	return nil
}

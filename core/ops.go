package core

import (
	"fmt"

	"github.com/seloria/seloria/codec"
	"github.com/seloria/seloria/crypto"
)

// OpType identifies one of the fixed kernel opcodes.
type OpType uint8

const (
	OpAgentCertRegister OpType = iota
	OpTransfer
	OpClaimCreate
	OpAttest
	OpAppRegister
	OpNamespaceCreate
	OpKVPut
	OpKVDel
	OpKVAppend
	OpTokenCreate
	OpTokenTransfer
	OpPoolCreate
	OpSwap
	OpPoolRemove
)

func (t OpType) String() string {
	switch t {
	case OpAgentCertRegister:
		return "AGENT_CERT_REGISTER"
	case OpTransfer:
		return "TRANSFER"
	case OpClaimCreate:
		return "CLAIM_CREATE"
	case OpAttest:
		return "ATTEST"
	case OpAppRegister:
		return "APP_REGISTER"
	case OpNamespaceCreate:
		return "NAMESPACE_CREATE"
	case OpKVPut:
		return "KV_PUT"
	case OpKVDel:
		return "KV_DEL"
	case OpKVAppend:
		return "KV_APPEND"
	case OpTokenCreate:
		return "TOKEN_CREATE"
	case OpTokenTransfer:
		return "TOKEN_TRANSFER"
	case OpPoolCreate:
		return "POOL_CREATE"
	case OpSwap:
		return "SWAP"
	case OpPoolRemove:
		return "POOL_REMOVE"
	default:
		return fmt.Sprintf("OpType(%d)", uint8(t))
	}
}

// Op is one operation inside a transaction's ordered op list. Exactly one of
// the payload fields is meaningful, selected by Type; this mirrors a tagged
// union without reflection-based codec.
type Op struct {
	Type OpType

	AgentCertRegister *AgentCertRegisterOp
	Transfer          *TransferOp
	ClaimCreate       *ClaimCreateOp
	Attest            *AttestOp
	AppRegister       *AppRegisterOp
	NamespaceCreate   *NamespaceCreateOp
	KVPut             *KVPutOp
	KVDel             *KVDelOp
	KVAppend          *KVAppendOp
	TokenCreate       *TokenCreateOp
	TokenTransfer     *TokenTransferOp
	PoolCreate        *PoolCreateOp
	Swap              *SwapOp
	PoolRemove        *PoolRemoveOp
}

// AgentCertRegisterOp registers an issuer-signed certificate for tx.Sender.
type AgentCertRegisterOp struct {
	Cert AgentCertificate
}

// TransferOp moves native balance from sender to To.
type TransferOp struct {
	To     PubKey
	Amount uint64
}

// ClaimCreateOp opens a new stake-backed claim.
type ClaimCreateOp struct {
	ClaimType   string
	PayloadHash ID
	Stake       uint64
}

// AttestOp casts a stake-backed YES/NO vote on an existing claim.
type AttestOp struct {
	ClaimID ID
	Vote    Vote
	Stake   uint64
}

// AppRegisterOp stores application metadata keyed by AppID.
type AppRegisterOp struct {
	AppID ID
	Meta  []byte
}

// NamespaceCreateOp creates a policy-gated KV namespace.
type NamespaceCreateOp struct {
	Name          string
	AppID         ID
	Policy        NamespacePolicy
	Allowlist     []PubKey
	MinWriteStake uint64
}

// KVPutOp writes (or overwrites) a namespaced key.
type KVPutOp struct {
	NsID  ID
	Key   string
	Codec string
	Value []byte
}

// KVDelOp removes a namespaced key.
type KVDelOp struct {
	NsID ID
	Key  string
}

// KVAppendOp appends to an existing (or new) namespaced key.
type KVAppendOp struct {
	NsID  ID
	Key   string
	Codec string
	Chunk []byte
}

// TokenCreateOp mints a brand-new fungible token class to the sender.
type TokenCreateOp struct {
	Name        string
	Symbol      string
	Decimals    uint8
	TotalSupply uint64
}

// TokenTransferOp moves a non-native token balance.
type TokenTransferOp struct {
	TokenID ID
	To      PubKey
	Amount  uint64
}

// PoolCreateOp bootstraps a new constant-product AMM pool.
type PoolCreateOp struct {
	TokenA  ID
	TokenB  ID
	AmountA uint64
	AmountB uint64
}

// SwapOp trades TokenIn for the pool's other token.
type SwapOp struct {
	PoolID   ID
	TokenIn  ID
	AmountIn uint64
	MinOut   uint64
}

// PoolRemoveOp burns LP tokens for a proportional share of both reserves.
type PoolRemoveOp struct {
	PoolID   ID
	LPAmount uint64
	MinA     uint64
	MinB     uint64
}

// encode writes the canonical bytes of op (tag byte + payload fields) used
// both for the tx signing hash and for wire/snapshot encoding.
func (op *Op) encode(w *codec.Writer) {
	w.U8(uint8(op.Type))
	switch op.Type {
	case OpAgentCertRegister:
		p := op.AgentCertRegister
		w.Fixed(p.Cert.IssuerID[:])
		w.Fixed(p.Cert.AgentPubKey[:])
		w.Fixed(p.Cert.AgentID[:])
		w.U64(p.Cert.IssuedAt)
		w.U64(p.Cert.ExpiresAt)
		w.U64(uint64(len(p.Cert.Capabilities)))
		for _, c := range p.Cert.Capabilities {
			w.String(c)
		}
		w.Fixed(p.Cert.MetadataHash[:])
		w.Fixed(p.Cert.IssuerSig[:])
	case OpTransfer:
		p := op.Transfer
		w.Fixed(p.To[:])
		w.U64(p.Amount)
	case OpClaimCreate:
		p := op.ClaimCreate
		w.String(p.ClaimType)
		w.Fixed(p.PayloadHash[:])
		w.U64(p.Stake)
	case OpAttest:
		p := op.Attest
		w.Fixed(p.ClaimID[:])
		w.U8(uint8(p.Vote))
		w.U64(p.Stake)
	case OpAppRegister:
		p := op.AppRegister
		w.Fixed(p.AppID[:])
		w.VarBytes(p.Meta)
	case OpNamespaceCreate:
		p := op.NamespaceCreate
		w.String(p.Name)
		w.Fixed(p.AppID[:])
		w.U8(uint8(p.Policy))
		w.U64(uint64(len(p.Allowlist)))
		for _, a := range p.Allowlist {
			w.Fixed(a[:])
		}
		w.U64(p.MinWriteStake)
	case OpKVPut:
		p := op.KVPut
		w.Fixed(p.NsID[:])
		w.String(p.Key)
		w.String(p.Codec)
		w.VarBytes(p.Value)
	case OpKVDel:
		p := op.KVDel
		w.Fixed(p.NsID[:])
		w.String(p.Key)
	case OpKVAppend:
		p := op.KVAppend
		w.Fixed(p.NsID[:])
		w.String(p.Key)
		w.String(p.Codec)
		w.VarBytes(p.Chunk)
	case OpTokenCreate:
		p := op.TokenCreate
		w.String(p.Name)
		w.String(p.Symbol)
		w.U8(p.Decimals)
		w.U64(p.TotalSupply)
	case OpTokenTransfer:
		p := op.TokenTransfer
		w.Fixed(p.TokenID[:])
		w.Fixed(p.To[:])
		w.U64(p.Amount)
	case OpPoolCreate:
		p := op.PoolCreate
		w.Fixed(p.TokenA[:])
		w.Fixed(p.TokenB[:])
		w.U64(p.AmountA)
		w.U64(p.AmountB)
	case OpSwap:
		p := op.Swap
		w.Fixed(p.PoolID[:])
		w.Fixed(p.TokenIn[:])
		w.U64(p.AmountIn)
		w.U64(p.MinOut)
	case OpPoolRemove:
		p := op.PoolRemove
		w.Fixed(p.PoolID[:])
		w.U64(p.LPAmount)
		w.U64(p.MinA)
		w.U64(p.MinB)
	}
}

// decodeOp reads one Op back from r, mirroring encode field-for-field.
func decodeOp(r *codec.Reader) Op {
	var op Op
	op.Type = OpType(r.U8())
	switch op.Type {
	case OpAgentCertRegister:
		p := &AgentCertRegisterOp{}
		copy(p.Cert.IssuerID[:], r.Fixed(crypto.Size))
		copy(p.Cert.AgentPubKey[:], r.Fixed(crypto.Size))
		copy(p.Cert.AgentID[:], r.Fixed(crypto.Size))
		p.Cert.IssuedAt = r.U64()
		p.Cert.ExpiresAt = r.U64()
		n := r.U64()
		p.Cert.Capabilities = make([]string, n)
		for i := range p.Cert.Capabilities {
			p.Cert.Capabilities[i] = r.String()
		}
		copy(p.Cert.MetadataHash[:], r.Fixed(crypto.Size))
		copy(p.Cert.IssuerSig[:], r.Fixed(crypto.SigSize))
		op.AgentCertRegister = p
	case OpTransfer:
		p := &TransferOp{}
		copy(p.To[:], r.Fixed(crypto.Size))
		p.Amount = r.U64()
		op.Transfer = p
	case OpClaimCreate:
		p := &ClaimCreateOp{}
		p.ClaimType = r.String()
		copy(p.PayloadHash[:], r.Fixed(crypto.Size))
		p.Stake = r.U64()
		op.ClaimCreate = p
	case OpAttest:
		p := &AttestOp{}
		copy(p.ClaimID[:], r.Fixed(crypto.Size))
		p.Vote = Vote(r.U8())
		p.Stake = r.U64()
		op.Attest = p
	case OpAppRegister:
		p := &AppRegisterOp{}
		copy(p.AppID[:], r.Fixed(crypto.Size))
		p.Meta = r.VarBytes()
		op.AppRegister = p
	case OpNamespaceCreate:
		p := &NamespaceCreateOp{}
		p.Name = r.String()
		copy(p.AppID[:], r.Fixed(crypto.Size))
		p.Policy = NamespacePolicy(r.U8())
		n := r.U64()
		p.Allowlist = make([]PubKey, n)
		for i := range p.Allowlist {
			copy(p.Allowlist[i][:], r.Fixed(crypto.Size))
		}
		p.MinWriteStake = r.U64()
		op.NamespaceCreate = p
	case OpKVPut:
		p := &KVPutOp{}
		copy(p.NsID[:], r.Fixed(crypto.Size))
		p.Key = r.String()
		p.Codec = r.String()
		p.Value = r.VarBytes()
		op.KVPut = p
	case OpKVDel:
		p := &KVDelOp{}
		copy(p.NsID[:], r.Fixed(crypto.Size))
		p.Key = r.String()
		op.KVDel = p
	case OpKVAppend:
		p := &KVAppendOp{}
		copy(p.NsID[:], r.Fixed(crypto.Size))
		p.Key = r.String()
		p.Codec = r.String()
		p.Chunk = r.VarBytes()
		op.KVAppend = p
	case OpTokenCreate:
		p := &TokenCreateOp{}
		p.Name = r.String()
		p.Symbol = r.String()
		p.Decimals = r.U8()
		p.TotalSupply = r.U64()
		op.TokenCreate = p
	case OpTokenTransfer:
		p := &TokenTransferOp{}
		copy(p.TokenID[:], r.Fixed(crypto.Size))
		copy(p.To[:], r.Fixed(crypto.Size))
		p.Amount = r.U64()
		op.TokenTransfer = p
	case OpPoolCreate:
		p := &PoolCreateOp{}
		copy(p.TokenA[:], r.Fixed(crypto.Size))
		copy(p.TokenB[:], r.Fixed(crypto.Size))
		p.AmountA = r.U64()
		p.AmountB = r.U64()
		op.PoolCreate = p
	case OpSwap:
		p := &SwapOp{}
		copy(p.PoolID[:], r.Fixed(crypto.Size))
		copy(p.TokenIn[:], r.Fixed(crypto.Size))
		p.AmountIn = r.U64()
		p.MinOut = r.U64()
		op.Swap = p
	case OpPoolRemove:
		p := &PoolRemoveOp{}
		copy(p.PoolID[:], r.Fixed(crypto.Size))
		p.LPAmount = r.U64()
		p.MinA = r.U64()
		p.MinB = r.U64()
		op.PoolRemove = p
	}
	return op
}

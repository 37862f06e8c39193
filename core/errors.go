package core

import "errors"

// TxError is the kind of failure produced while validating or applying a
// transaction or an inbound consensus message.
type TxError struct {
	Kind string
	Msg  string
}

func (e *TxError) Error() string {
	if e.Msg == "" {
		return e.Kind
	}
	return e.Kind + ": " + e.Msg
}

// Kind constants for TxError.Kind.
const (
	KindBadEncoding     = "BadEncoding"
	KindBadSignature    = "BadSignature"
	KindNotCertified    = "NotCertified"
	KindBadNonce        = "BadNonce"
	KindInsufficient    = "Insufficient"
	KindBadStake        = "BadStake"
	KindNoClaim         = "NoClaim"
	KindAlreadyAttested = "AlreadyAttested"
	KindFinalized       = "Finalized"
	KindUnknownIssuer   = "UnknownIssuer"
	KindExpired         = "Expired"
	KindSenderMismatch  = "SenderMismatch"
	KindDuplicate       = "Duplicate"
	KindNoNamespace     = "NoNamespace"
	KindPolicyDenied    = "PolicyDenied"
	KindStakeTooLow     = "StakeTooLow"
	KindNoPool          = "NoPool"
	KindBadAmount       = "BadAmount"
	KindSlippage        = "Slippage"
	KindInvalidProposal = "InvalidProposal"
	KindQuorumUnmet     = "QuorumUnmet"
	KindIO              = "IO"
)

// NewTxError builds a *TxError with the given kind and formatted message.
func NewTxError(kind, msg string) *TxError { return &TxError{Kind: kind, Msg: msg} }

// IsKind reports whether err is a *TxError of the given kind.
func IsKind(err error, kind string) bool {
	var te *TxError
	if errors.As(err, &te) {
		return te.Kind == kind
	}
	return false
}

// ErrNotFound is returned by state accessors when an entity does not exist.
var ErrNotFound = errors.New("core: not found")

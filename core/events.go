package core

import "strconv"

// EventType names one of the fixed event kinds the chain emits while
// applying transactions and committing blocks.
type EventType string

const (
	EventBlockCommitted EventType = "BLOCK_COMMITTED"
	EventTxApplied       EventType = "TX_APPLIED"
	EventClaimCreated    EventType = "CLAIM_CREATED"
	EventAttestAdded     EventType = "ATTEST_ADDED"
	EventClaimFinalized  EventType = "CLAIM_FINALIZED"
	EventKVUpdated       EventType = "KV_UPDATED"
)

// Event is a single chain event, broadcast to RPC/WebSocket subscribers
// after a block commits. Fields is a flat string map rather than a typed
// payload per event kind: subscribers are external processes consuming JSON,
// not other Go code, so there is nothing to gain from a closed type per kind.
type Event struct {
	Type   EventType
	Height uint64
	TxHash ID
	Fields map[string]string
}

// NewEvent builds an Event of the given type carrying fields.
func NewEvent(t EventType, fields map[string]string) Event {
	return Event{Type: t, Fields: fields}
}

// FieldU64 formats v for inclusion in an Event's Fields map.
func FieldU64(v uint64) string { return strconv.FormatUint(v, 10) }

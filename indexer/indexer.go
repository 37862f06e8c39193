// Package indexer maintains secondary lookups the RPC layer needs that
// ChainState doesn't keep itself: claims grouped by creator, namespaces
// grouped by owner, and the running count of claims finalized per
// outcome. It subscribes to the committed event stream rather than reading
// state directly, keeping indexing decoupled from execution.
package indexer

import (
	"encoding/hex"
	"sync"

	"github.com/seloria/seloria/core"
)

// Indexer maintains secondary indexes over committed events.
type Indexer struct {
	mu sync.RWMutex

	claimsByCreator map[string][]core.ID
	namespacesByApp map[string][]core.ID
	finalizedYes    uint64
	finalizedNo     uint64
}

// New returns an empty Indexer.
func New() *Indexer {
	return &Indexer{
		claimsByCreator: make(map[string][]core.ID),
		namespacesByApp: make(map[string][]core.ID),
	}
}

// Run consumes ch until it is closed, applying each event to the index.
// Intended to run in its own goroutine for the node's lifetime.
func (ix *Indexer) Run(ch <-chan core.Event) {
	for ev := range ch {
		ix.Apply(ev)
	}
}

// Apply updates the index for a single event.
func (ix *Indexer) Apply(ev core.Event) {
	switch ev.Type {
	case core.EventClaimCreated:
		ix.mu.Lock()
		creator := ev.Fields["creator"]
		var id core.ID
		if h, err := hexID(ev.Fields["claim_id"]); err == nil {
			id = h
		}
		ix.claimsByCreator[creator] = append(ix.claimsByCreator[creator], id)
		ix.mu.Unlock()
	case core.EventClaimFinalized:
		ix.mu.Lock()
		if ev.Fields["result"] == "YES" {
			ix.finalizedYes++
		} else {
			ix.finalizedNo++
		}
		ix.mu.Unlock()
	case core.EventTxApplied:
		if ev.Fields["op"] != "NAMESPACE_CREATE" {
			return
		}
		ix.mu.Lock()
		owner := ev.Fields["owner"]
		var id core.ID
		if h, err := hexID(ev.Fields["ns_id"]); err == nil {
			id = h
		}
		ix.namespacesByApp[owner] = append(ix.namespacesByApp[owner], id)
		ix.mu.Unlock()
	}
}

// ClaimsByCreator returns every claim id created by creator (hex-encoded
// pubkey), most recently indexed last.
func (ix *Indexer) ClaimsByCreator(creatorHex string) []core.ID {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := append([]core.ID(nil), ix.claimsByCreator[creatorHex]...)
	return out
}

// NamespacesByOwner returns every namespace id owned by ownerHex.
func (ix *Indexer) NamespacesByOwner(ownerHex string) []core.ID {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := append([]core.ID(nil), ix.namespacesByApp[ownerHex]...)
	return out
}

// FinalizationCounts returns how many claims have finalized YES and NO.
func (ix *Indexer) FinalizationCounts() (yes, no uint64) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.finalizedYes, ix.finalizedNo
}

func hexID(s string) (core.ID, error) {
	var id core.ID
	raw, err := hex.DecodeString(s)
	if err != nil {
		return core.ID{}, err
	}
	copy(id[:], raw)
	return id, nil
}

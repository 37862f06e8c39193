package indexer_test

import (
	"testing"

	"github.com/seloria/seloria/core"
	"github.com/seloria/seloria/indexer"
)

func TestApplyClaimCreatedIndexesByCreator(t *testing.T) {
	ix := indexer.New()
	claimID := core.ID{0x01}
	ix.Apply(core.NewEvent(core.EventClaimCreated, map[string]string{
		"creator":  "deadbeef",
		"claim_id": claimID.Hex(),
	}))

	ids := ix.ClaimsByCreator("deadbeef")
	if len(ids) != 1 || ids[0] != claimID {
		t.Fatalf("ClaimsByCreator = %v, want [%v]", ids, claimID)
	}
	if len(ix.ClaimsByCreator("someone-else")) != 0 {
		t.Fatalf("expected no claims indexed for an unrelated creator")
	}
}

func TestApplyClaimFinalizedTracksYesAndNoCounts(t *testing.T) {
	ix := indexer.New()
	ix.Apply(core.NewEvent(core.EventClaimFinalized, map[string]string{"result": "YES"}))
	ix.Apply(core.NewEvent(core.EventClaimFinalized, map[string]string{"result": "YES"}))
	ix.Apply(core.NewEvent(core.EventClaimFinalized, map[string]string{"result": "NO"}))

	yes, no := ix.FinalizationCounts()
	if yes != 2 {
		t.Fatalf("yes = %d, want 2", yes)
	}
	if no != 1 {
		t.Fatalf("no = %d, want 1", no)
	}
}

func TestApplyTxAppliedIndexesNamespaceCreateByOwner(t *testing.T) {
	ix := indexer.New()
	nsID := core.ID{0x02}
	ix.Apply(core.NewEvent(core.EventTxApplied, map[string]string{
		"op":    "NAMESPACE_CREATE",
		"owner": "deadbeef",
		"ns_id": nsID.Hex(),
	}))

	ids := ix.NamespacesByOwner("deadbeef")
	if len(ids) != 1 || ids[0] != nsID {
		t.Fatalf("NamespacesByOwner = %v, want [%v]", ids, nsID)
	}
}

func TestApplyTxAppliedIgnoresNonNamespaceCreateOps(t *testing.T) {
	ix := indexer.New()
	ix.Apply(core.NewEvent(core.EventTxApplied, map[string]string{
		"op":    "TRANSFER",
		"owner": "deadbeef",
	}))
	if len(ix.NamespacesByOwner("deadbeef")) != 0 {
		t.Fatalf("expected TRANSFER op to leave the namespace index untouched")
	}
}

func TestRunDrainsChannelUntilClosed(t *testing.T) {
	ix := indexer.New()
	ch := make(chan core.Event, 4)
	ch <- core.NewEvent(core.EventClaimFinalized, map[string]string{"result": "YES"})
	ch <- core.NewEvent(core.EventClaimFinalized, map[string]string{"result": "NO"})
	close(ch)

	ix.Run(ch) // returns once ch is drained and closed

	yes, no := ix.FinalizationCounts()
	if yes != 1 || no != 1 {
		t.Fatalf("FinalizationCounts = (%d, %d), want (1, 1)", yes, no)
	}
}

package consensus_test

import (
	"context"
	"testing"

	"github.com/seloria/seloria/consensus"
	"github.com/seloria/seloria/core"
	"github.com/seloria/seloria/crypto"
	"github.com/seloria/seloria/events"
)

// fakeTransport wires a fixed set of in-process Engines together. Every
// send is deferred onto a queue rather than dispatched inline: an Engine's
// public methods run under its own mutex, so a message that bounced
// straight back into the sender (the leader hearing its own proposal's
// votes, say) would deadlock on re-entry. drain() runs each queued message
// one at a time, after the call that enqueued it has already returned and
// released its lock.
type fakeTransport struct {
	engines map[crypto.PublicKey]*consensus.Engine
	queue   []func() error
}

func (f *fakeTransport) BroadcastPropose(ctx context.Context, peers []consensus.PeerAddr, block *core.Block) error {
	for _, p := range peers {
		e, ok := f.engines[p.PubKey]
		if !ok {
			continue
		}
		e := e
		f.queue = append(f.queue, func() error { return e.HandlePropose(ctx, block) })
	}
	return nil
}

func (f *fakeTransport) SendVote(ctx context.Context, peer consensus.PeerAddr, vote consensus.VoteMsg) error {
	e, ok := f.engines[peer.PubKey]
	if !ok {
		return nil
	}
	voter, err := crypto.PubKeyFromHex(vote.Voter)
	if err != nil {
		return err
	}
	sig, err := crypto.SigFromHex(vote.Sig)
	if err != nil {
		return err
	}
	f.queue = append(f.queue, func() error { return e.HandleVote(ctx, voter, sig) })
	return nil
}

func (f *fakeTransport) BroadcastCommit(ctx context.Context, peers []consensus.PeerAddr, block *core.Block) error {
	for _, p := range peers {
		e, ok := f.engines[p.PubKey]
		if !ok {
			continue
		}
		e := e
		f.queue = append(f.queue, func() error { return e.HandleCommit(ctx, block) })
	}
	return nil
}

// drain runs every queued message to completion, including any further
// messages those handlers themselves enqueue, until the queue is empty.
func (f *fakeTransport) drain(t *testing.T) {
	t.Helper()
	for len(f.queue) > 0 {
		fn := f.queue[0]
		f.queue = f.queue[1:]
		if err := fn(); err != nil {
			t.Fatalf("queued consensus message failed: %v", err)
		}
	}
}

// noopApplier treats every block as valid without touching account state,
// enough to drive the round machine through propose/vote/commit.
type noopApplier struct{}

func (noopApplier) ApplyBlock(sp *core.Scratchpad, block *core.Block, now uint64) ([]string, []core.Event, error) {
	return nil, nil, nil
}

// committee bundles the engines plus the backing ChainStates needed to
// observe commit effects (Engine keeps its state unexported).
type committee struct {
	engines   []*consensus.Engine
	states    []*core.ChainState
	pubs      []crypto.PublicKey
	transport *fakeTransport
}

func newCommittee(t *testing.T, n int) *committee {
	t.Helper()

	pubs := make([]crypto.PublicKey, n)
	privs := make([]crypto.PrivateKey, n)
	for i := 0; i < n; i++ {
		priv, pub, err := crypto.GenerateKeyPair()
		if err != nil {
			t.Fatalf("GenerateKeyPair: %v", err)
		}
		privs[i] = priv
		pubs[i] = pub
	}

	transport := &fakeTransport{engines: make(map[crypto.PublicKey]*consensus.Engine, n)}

	engines := make([]*consensus.Engine, n)
	states := make([]*core.ChainState, n)
	for i := 0; i < n; i++ {
		state := core.NewChainState(nil, pubs)
		states[i] = state

		others := make([]consensus.PeerAddr, 0, n-1)
		for j, pub := range pubs {
			if j != i {
				others = append(others, consensus.PeerAddr{PubKey: pub})
			}
		}
		engines[i] = consensus.NewEngine(consensus.Config{
			ChainID:   "seloria-test",
			Self:      pubs[i],
			Priv:      privs[i],
			State:     state,
			Mempool:   core.NewMempool(1024, 64),
			Emitter:   events.NewEmitter(),
			Applier:   noopApplier{},
			Transport: transport,
			Peers:     others,
			Now:       func() uint64 { return 1 },
		})
		transport.engines[pubs[i]] = engines[i]
	}
	return &committee{engines: engines, states: states, pubs: pubs, transport: transport}
}

func (c *committee) leaderIndex(height uint64) int {
	for i, e := range c.engines {
		if e.IsLeader(height) {
			return i
		}
	}
	return -1
}

func TestCommitteeReachesQuorumAndCommitsBlockOnAllNodes(t *testing.T) {
	// n=3 makes quorum = floor(2*3/3)+1 = 3, i.e. every validator's vote is
	// required — avoids a harmless but error-returning "vote after the
	// proposal already committed" case that a larger committee would hit
	// once quorum is reached before the last straggling vote arrives.
	const n = 3
	c := newCommittee(t, n)

	leaderIdx := c.leaderIndex(1)
	if leaderIdx < 0 {
		t.Fatalf("no engine identifies as leader for height 1")
	}

	block, err := c.engines[leaderIdx].Propose(context.Background())
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if block.Header.Height != 1 {
		t.Fatalf("proposed height = %d, want 1", block.Header.Height)
	}
	c.transport.drain(t)

	for i, state := range c.states {
		height, _ := state.HeightAndHead()
		if height != 1 {
			t.Fatalf("node %d height = %d after round, want 1", i, height)
		}
	}
}

func TestNonLeaderProposeIsRejected(t *testing.T) {
	c := newCommittee(t, 4)
	leaderIdx := c.leaderIndex(1)
	followerIdx := (leaderIdx + 1) % 4

	if _, err := c.engines[followerIdx].Propose(context.Background()); err != consensus.ErrNotLeader {
		t.Fatalf("Propose on non-leader error = %v, want ErrNotLeader", err)
	}
}

func TestHandleCommitRejectsBlockWithoutQuorumCertificate(t *testing.T) {
	c := newCommittee(t, 4)
	leaderIdx := c.leaderIndex(1)

	block := core.Block{
		Header: core.BlockHeader{
			ChainID:        "seloria-test",
			Height:         1,
			ProposerPubKey: c.pubs[leaderIdx],
		},
	}

	followerIdx := (leaderIdx + 1) % 4
	err := c.engines[followerIdx].HandleCommit(context.Background(), &block)
	if !core.IsKind(err, core.KindQuorumUnmet) {
		t.Fatalf("HandleCommit without QC error = %v, want KindQuorumUnmet", err)
	}
}

func TestHandleCommitRejectsForgedSignerInQC(t *testing.T) {
	c := newCommittee(t, 4)
	leaderIdx := c.leaderIndex(1)

	block := core.Block{
		Header: core.BlockHeader{
			ChainID:        "seloria-test",
			Height:         1,
			ProposerPubKey: c.pubs[leaderIdx],
		},
	}
	block.QC = &core.QC{BlockHash: block.Hash()}
	for i := 0; i < 3; i++ {
		// Sign a different message than the block hash, so verification
		// must fail even though the signer count alone meets quorum.
		forgedPriv, forgedPub, err := crypto.GenerateKeyPair()
		if err != nil {
			t.Fatalf("GenerateKeyPair: %v", err)
		}
		block.QC.Signers = append(block.QC.Signers, forgedPub)
		block.QC.Sigs = append(block.QC.Sigs, crypto.Sign(forgedPriv, []byte("not the block hash")))
	}

	followerIdx := (leaderIdx + 1) % 4
	err := c.engines[followerIdx].HandleCommit(context.Background(), &block)
	if !core.IsKind(err, core.KindBadSignature) {
		t.Fatalf("HandleCommit with forged QC error = %v, want KindBadSignature", err)
	}
}

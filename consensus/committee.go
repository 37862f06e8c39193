package consensus

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/seloria/seloria/core"
	"github.com/seloria/seloria/crypto"
	"github.com/seloria/seloria/events"
)

// RoundPhase names where the committee round machine currently stands for
// the height it is working on.
type RoundPhase uint8

const (
	PhaseIdle RoundPhase = iota
	PhaseProposing
	PhaseCollecting
	PhaseVerifying
	PhaseCommitting
)

func (p RoundPhase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseProposing:
		return "PROPOSING"
	case PhaseCollecting:
		return "COLLECTING"
	case PhaseVerifying:
		return "VERIFYING"
	case PhaseCommitting:
		return "COMMITTING"
	default:
		return "UNKNOWN"
	}
}

// Applier is the subset of the vm package's execution surface the committee
// engine needs, kept as an interface here so consensus never imports vm
// directly (vm imports core; consensus imports vm would be fine too, but the
// indirection keeps the round machine testable against a stub executor).
type Applier interface {
	ApplyBlock(sp *core.Scratchpad, block *core.Block, now uint64) (failed []string, events []core.Event, err error)
}

// ApplierFunc adapts a plain function to Applier.
type ApplierFunc func(sp *core.Scratchpad, block *core.Block, now uint64) ([]string, []core.Event, error)

func (f ApplierFunc) ApplyBlock(sp *core.Scratchpad, block *core.Block, now uint64) ([]string, []core.Event, error) {
	return f(sp, block, now)
}

// ErrNotLeader is returned by Propose when called off a node that is not
// the current height's leader.
var ErrNotLeader = errors.New("consensus: this node is not the leader for the current height")

// Engine runs the single-writer committee round machine for one chain. All
// public methods are safe to call from the RPC handlers that receive
// propose/vote/commit messages from peers; internally everything funnels
// through a single mutex, mirroring the single-writer actor model the
// state machine requires.
type Engine struct {
	mu sync.Mutex

	chainID string
	self    crypto.PublicKey
	priv    crypto.PrivateKey

	state    *core.ChainState
	mempool  *core.Mempool
	chain    *core.Blockchain
	emitter  *events.Emitter
	applier  Applier
	transport Transport
	peers    []PeerAddr

	phase    RoundPhase
	proposal *core.Block
	votes    map[crypto.PublicKey]crypto.Signature

	now func() uint64
}

// Config bundles Engine's dependencies.
type Config struct {
	ChainID   string
	Self      crypto.PublicKey
	Priv      crypto.PrivateKey
	State     *core.ChainState
	Mempool   *core.Mempool
	Chain     *core.Blockchain
	Emitter   *events.Emitter
	Applier   Applier
	Transport Transport
	Peers     []PeerAddr
	Now       func() uint64
}

// NewEngine builds an Engine in PhaseIdle.
func NewEngine(cfg Config) *Engine {
	return &Engine{
		chainID:   cfg.ChainID,
		self:      cfg.Self,
		priv:      cfg.Priv,
		state:     cfg.State,
		mempool:   cfg.Mempool,
		chain:     cfg.Chain,
		emitter:   cfg.Emitter,
		applier:   cfg.Applier,
		transport: cfg.Transport,
		peers:     cfg.Peers,
		phase:     PhaseIdle,
		now:       cfg.Now,
	}
}

// IsLeader reports whether self is the leader for the given height.
func (e *Engine) IsLeader(height uint64) bool {
	return e.state.Leader(height) == e.self
}

// nextHeader builds the header for the next block without committing
// anything: the body is taken from the mempool and the state root is
// computed by simulating the block on a disposable scratchpad.
func (e *Engine) nextHeader() (core.Block, error) {
	height := e.state.Height + 1
	txs := e.mempool.Next(256, e.state)

	sp := core.NewScratchpad(e.state)
	ts := e.now()
	block := core.Block{
		Header: core.BlockHeader{
			ChainID:        e.chainID,
			Height:         height,
			PrevHash:       e.state.Head,
			Timestamp:      ts,
			ProposerPubKey: e.self,
		},
		Txs: txs,
	}
	if _, _, err := e.applier.ApplyBlock(sp, &block, ts); err != nil {
		return core.Block{}, fmt.Errorf("simulate proposal: %w", err)
	}
	block.Header.TxRoot = core.ComputeTxRoot(block.Txs)
	block.Header.StateRoot = sp.ProjectedStateRoot()
	return block, nil
}

// Propose assembles and broadcasts a new block proposal. It is a no-op
// error if this node is not the current leader.
func (e *Engine) Propose(ctx context.Context) (*core.Block, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	height := e.state.Height + 1
	if !e.IsLeader(height) {
		return nil, ErrNotLeader
	}
	if e.phase != PhaseIdle {
		return nil, fmt.Errorf("consensus: round already in progress (phase %s)", e.phase)
	}

	block, err := e.nextHeader()
	if err != nil {
		return nil, err
	}
	e.phase = PhaseProposing
	e.proposal = &block
	e.votes = map[crypto.PublicKey]crypto.Signature{e.self: crypto.Sign(e.priv, block.Hash().Bytes())}
	e.phase = PhaseCollecting

	if e.transport != nil && len(e.peers) > 0 {
		if err := e.transport.BroadcastPropose(ctx, e.peers, &block); err != nil {
			log.Printf("[consensus] broadcast propose height=%d: %v", height, err)
		}
	}
	return &block, nil
}

// HandlePropose verifies and signs a proposal received from the leader,
// sending the resulting vote back out.
func (e *Engine) HandlePropose(ctx context.Context, block *core.Block) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if block.Header.Height != e.state.Height+1 {
		return core.NewTxError(core.KindInvalidProposal, "proposal height does not follow current head")
	}
	if block.Header.PrevHash != e.state.Head {
		return core.NewTxError(core.KindInvalidProposal, "proposal does not build on current head")
	}
	leader := e.state.Leader(block.Header.Height)
	if block.Header.ProposerPubKey != leader {
		return core.NewTxError(core.KindInvalidProposal, "proposal not signed by the expected leader")
	}

	e.phase = PhaseVerifying
	sp := core.NewScratchpad(e.state)
	if _, _, err := e.applier.ApplyBlock(sp, block, block.Header.Timestamp); err != nil {
		e.phase = PhaseIdle
		return fmt.Errorf("re-execute proposal: %w", err)
	}
	wantRoot := sp.ProjectedStateRoot()
	if wantRoot != block.Header.StateRoot {
		e.phase = PhaseIdle
		return core.NewTxError(core.KindInvalidProposal, "proposal state root mismatch after re-execution")
	}
	if core.ComputeTxRoot(block.Txs) != block.Header.TxRoot {
		e.phase = PhaseIdle
		return core.NewTxError(core.KindInvalidProposal, "proposal tx root mismatch")
	}

	e.proposal = block
	sig := crypto.Sign(e.priv, block.Hash().Bytes())
	e.phase = PhaseIdle

	if e.transport != nil {
		vote := VoteMsg{BlockHash: block.Hash().Hex(), Voter: e.self.Hex(), Sig: fmt.Sprintf("%x", sig)}
		leaderAddr := e.peerFor(leader)
		if leaderAddr != nil {
			if err := e.transport.SendVote(ctx, *leaderAddr, vote); err != nil {
				log.Printf("[consensus] send vote height=%d: %v", block.Header.Height, err)
			}
		}
	}
	return nil
}

func (e *Engine) peerFor(pub crypto.PublicKey) *PeerAddr {
	for i := range e.peers {
		if e.peers[i].PubKey == pub {
			return &e.peers[i]
		}
	}
	return nil
}

// HandleVote records a vote from another validator once this node is the
// leader collecting signatures, assembling and broadcasting the QC once
// quorum is reached.
func (e *Engine) HandleVote(ctx context.Context, voter crypto.PublicKey, sig crypto.Signature) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.proposal == nil {
		return errors.New("consensus: no active proposal to vote on")
	}
	if err := crypto.Verify(voter, e.proposal.Hash().Bytes(), sig); err != nil {
		return core.NewTxError(core.KindBadSignature, "vote signature does not verify")
	}
	if e.votes == nil {
		e.votes = make(map[crypto.PublicKey]crypto.Signature)
	}
	e.votes[voter] = sig

	if len(e.votes) < e.state.Quorum() {
		return nil
	}

	qc := &core.QC{BlockHash: e.proposal.Hash()}
	for pk, s := range e.votes {
		qc.Signers = append(qc.Signers, pk)
		qc.Sigs = append(qc.Sigs, s)
	}
	e.proposal.QC = qc
	block := e.proposal

	e.phase = PhaseCommitting
	if err := e.commitLocked(block); err != nil {
		return err
	}
	e.phase = PhaseIdle
	e.proposal = nil
	e.votes = nil

	if e.transport != nil && len(e.peers) > 0 {
		if err := e.transport.BroadcastCommit(ctx, e.peers, block); err != nil {
			log.Printf("[consensus] broadcast commit height=%d: %v", block.Header.Height, err)
		}
	}
	return nil
}

// HandleCommit applies a finalized block received from the leader,
// verifying its QC meets quorum before committing.
func (e *Engine) HandleCommit(ctx context.Context, block *core.Block) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if block.QC == nil || len(block.QC.Signers) < e.state.Quorum() {
		return core.NewTxError(core.KindQuorumUnmet, "commit does not carry a quorum certificate")
	}
	for i, signer := range block.QC.Signers {
		if err := crypto.Verify(signer, block.Hash().Bytes(), block.QC.Sigs[i]); err != nil {
			return core.NewTxError(core.KindBadSignature, "quorum certificate contains an invalid signature")
		}
	}
	if block.Header.Height != e.state.Height+1 {
		return nil // already applied or stale; idempotent no-op
	}
	return e.commitLocked(block)
}

// commitLocked executes block for real and advances the chain. Caller must
// hold e.mu.
func (e *Engine) commitLocked(block *core.Block) error {
	sp := core.NewScratchpad(e.state)
	_, evs, err := e.applier.ApplyBlock(sp, block, block.Header.Timestamp)
	if err != nil {
		return fmt.Errorf("commit block %d: %w", block.Header.Height, err)
	}
	sp.Commit(block.Header.Height, block.Hash())

	if e.chain != nil {
		if err := e.chain.Put(block); err != nil {
			log.Printf("[consensus] persist block %d: %v", block.Header.Height, err)
		}
	}
	for i := range block.Txs {
		tx := &block.Txs[i]
		e.mempool.Remove(tx.Sender, tx.Nonce)
	}
	if e.emitter != nil {
		e.emitter.Publish(evs)
	}
	return nil
}

// RunAsLeader is a convenience loop a node's main goroutine can run: every
// tick, if this node leads the next height, it proposes. Intended for demo
// single-process operation; a production deployment instead drives Propose
// from an external liveness timer.
func RunAsLeader(ctx context.Context, e *Engine, tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.Propose(ctx); err != nil && !errors.Is(err, ErrNotLeader) {
				log.Printf("[consensus] propose: %v", err)
			}
		}
	}
}

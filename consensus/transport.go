// Package consensus implements the committee round: leader rotation,
// propose/verify/sign/collect/commit, and the quorum certificate that gives
// the chain immediate finality with no fork choice. Validators
// exchange propose/vote/commit messages over HTTP (mTLS when a TLS config is
// supplied) rather than raw TCP
// framing, matching the REST-style validator endpoints.
package consensus

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/seloria/seloria/codec"
	"github.com/seloria/seloria/core"
	"github.com/seloria/seloria/crypto"
)

// ProposeMsg carries a leader's new block proposal to every other validator.
type ProposeMsg struct {
	BlockHex string `json:"block_hex"`
}

// VoteMsg carries one validator's signature over a proposed block hash back
// to the leader.
type VoteMsg struct {
	BlockHash string `json:"block_hash"`
	Voter     string `json:"voter"`
	Sig       string `json:"sig"`
}

// CommitMsg carries the assembled quorum certificate and the final block
// out to every validator once quorum is reached.
type CommitMsg struct {
	BlockHex string `json:"block_hex"`
}

// EncodeBlockHex renders a block as the hex string ProposeMsg/CommitMsg
// carry over HTTP JSON.
func EncodeBlockHex(b *core.Block) string {
	w := codec.NewWriter()
	b.Encode(w)
	return hex.EncodeToString(w.Bytes())
}

// DecodeBlockHex parses a block back out of a ProposeMsg/CommitMsg field.
func DecodeBlockHex(s string) (core.Block, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return core.Block{}, core.NewTxError(core.KindBadEncoding, "malformed block hex")
	}
	r := codec.NewReader(raw)
	b := core.DecodeBlock(r)
	if !r.Done() {
		return core.Block{}, core.NewTxError(core.KindBadEncoding, "trailing bytes after block")
	}
	return b, nil
}

// Transport is what the committee Engine uses to talk to its peers. The
// production implementation is PeerClient below; tests substitute an
// in-process fake wired directly to other Engines.
type Transport interface {
	BroadcastPropose(ctx context.Context, peers []PeerAddr, block *core.Block) error
	SendVote(ctx context.Context, peer PeerAddr, vote VoteMsg) error
	BroadcastCommit(ctx context.Context, peers []PeerAddr, block *core.Block) error
}

// PeerAddr names a validator's RPC endpoint.
type PeerAddr struct {
	PubKey  crypto.PublicKey
	BaseURL string
}

// PeerClient is the HTTP Transport used between real validator nodes, using
// mTLS when built with a TLS config.
type PeerClient struct {
	client *http.Client
}

// NewPeerClient builds a PeerClient dialing peers with tlsConfig's client
// certificate and CA pool; a nil tlsConfig dials plain HTTP.
func NewPeerClient(tlsConfig *tls.Config, timeout time.Duration) *PeerClient {
	return &PeerClient{
		client: &http.Client{
			Timeout:   timeout,
			Transport: &http.Transport{TLSClientConfig: tlsConfig},
		},
	}
}

func (p *PeerClient) post(ctx context.Context, baseURL, path string, body any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("post %s: status %d", path, resp.StatusCode)
	}
	return nil
}

func (p *PeerClient) BroadcastPropose(ctx context.Context, peers []PeerAddr, block *core.Block) error {
	msg := ProposeMsg{BlockHex: EncodeBlockHex(block)}
	for _, peer := range peers {
		if err := p.post(ctx, peer.BaseURL, "/consensus/propose", msg); err != nil {
			return err
		}
	}
	return nil
}

func (p *PeerClient) SendVote(ctx context.Context, peer PeerAddr, vote VoteMsg) error {
	return p.post(ctx, peer.BaseURL, "/consensus/vote", vote)
}

func (p *PeerClient) BroadcastCommit(ctx context.Context, peers []PeerAddr, block *core.Block) error {
	msg := CommitMsg{BlockHex: EncodeBlockHex(block)}
	for _, peer := range peers {
		if err := p.post(ctx, peer.BaseURL, "/consensus/commit", msg); err != nil {
			return err
		}
	}
	return nil
}

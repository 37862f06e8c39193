package rpc

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/seloria/seloria/codec"
	"github.com/seloria/seloria/core"
	"github.com/seloria/seloria/crypto"
	"github.com/seloria/seloria/indexer"
)

// Handler holds every dependency needed to answer a client-facing RPC call.
// It never talks to the committee engine directly; propose/vote/commit
// arrive over the dedicated routes in server.go instead.
type Handler struct {
	chain   *core.Blockchain
	mempool *core.Mempool
	state   *core.ChainState
	idx     *indexer.Indexer
	chainID string
	now     func() uint64
}

// NewHandler builds a Handler.
func NewHandler(chain *core.Blockchain, mempool *core.Mempool, state *core.ChainState, idx *indexer.Indexer, chainID string) *Handler {
	return &Handler{
		chain:   chain,
		mempool: mempool,
		state:   state,
		idx:     idx,
		chainID: chainID,
		now:     func() uint64 { return uint64(time.Now().Unix()) },
	}
}

// Dispatch routes one decoded JSON-RPC request to its method.
func (h *Handler) Dispatch(req Request) Response {
	switch req.Method {
	case "getStatus":
		return h.getStatus(req)
	case "getBlock":
		return h.getBlock(req)
	case "getAccount":
		return h.getAccount(req)
	case "getClaim":
		return h.getClaim(req)
	case "getNamespace":
		return h.getNamespace(req)
	case "getKV":
		return h.getKV(req)
	case "getToken":
		return h.getToken(req)
	case "getPool":
		return h.getPool(req)
	case "getClaimsByCreator":
		return h.getClaimsByCreator(req)
	case "getNamespacesByOwner":
		return h.getNamespacesByOwner(req)
	case "sendTx":
		return h.sendTx(req)
	case "getMempoolSize":
		return okResponse(req.ID, h.mempool.Len())
	default:
		return errResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("method %q not found", req.Method))
	}
}

func (h *Handler) getStatus(req Request) Response {
	yes, no := h.idx.FinalizationCounts()
	height, head := h.state.HeightAndHead()
	return okResponse(req.ID, map[string]any{
		"chain_id":             h.chainID,
		"height":               height,
		"head":                 head.Hex(),
		"mempool_size":         h.mempool.Len(),
		"claims_finalized_yes": yes,
		"claims_finalized_no":  no,
	})
}

func (h *Handler) getBlock(req Request) Response {
	var params struct {
		Height *uint64 `json:"height"`
		Hash   string  `json:"hash"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}

	var (
		block *core.Block
		ok    bool
		err   error
	)
	switch {
	case params.Height != nil:
		block, ok, err = h.chain.ByHeight(*params.Height)
	case params.Hash != "":
		id, decErr := hexToID(params.Hash)
		if decErr != nil {
			return errResponse(req.ID, CodeInvalidParams, decErr.Error())
		}
		block, ok, err = h.chain.ByHash(id)
	default:
		return errResponse(req.ID, CodeInvalidParams, "height or hash is required")
	}
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	if !ok {
		return errResponse(req.ID, CodeNotFound, "block not found")
	}
	return okResponse(req.ID, blockView(block))
}

func (h *Handler) getAccount(req Request) Response {
	var params struct {
		PubKey string `json:"pubkey"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	pk, err := crypto.PubKeyFromHex(params.PubKey)
	if err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	acct, ok := h.state.Account(pk)
	if !ok {
		return okResponse(req.ID, map[string]any{"pubkey": params.PubKey, "balance": 0, "nonce": 0, "locked": map[string]uint64{}})
	}
	locked := make(map[string]uint64, len(acct.Locked))
	for k, v := range acct.Locked {
		locked[k.Hex()] = v
	}
	return okResponse(req.ID, map[string]any{
		"pubkey":  params.PubKey,
		"balance": acct.Balance,
		"nonce":   acct.Nonce,
		"locked":  locked,
	})
}

func (h *Handler) getClaim(req Request) Response {
	var params struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	id, err := hexToID(params.ID)
	if err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	claim, ok := h.state.Claim(id)
	if !ok {
		return errResponse(req.ID, CodeNotFound, "claim not found")
	}
	return okResponse(req.ID, claim)
}

func (h *Handler) getNamespace(req Request) Response {
	var params struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	id, err := hexToID(params.ID)
	if err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	ns, ok := h.state.Namespace(id)
	if !ok {
		return errResponse(req.ID, CodeNotFound, "namespace not found")
	}
	return okResponse(req.ID, ns)
}

func (h *Handler) getKV(req Request) Response {
	var params struct {
		NsID string `json:"ns_id"`
		Key  string `json:"key"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	nsID, err := hexToID(params.NsID)
	if err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	entry, ok := h.state.KVEntry(core.KVKey{NsID: nsID, Key: params.Key})
	if !ok {
		return errResponse(req.ID, CodeNotFound, "key not found")
	}
	return okResponse(req.ID, entry)
}

func (h *Handler) getToken(req Request) Response {
	var params struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	id, err := hexToID(params.ID)
	if err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	tok, ok := h.state.TokenInfo(id)
	if !ok {
		return errResponse(req.ID, CodeNotFound, "token not found")
	}
	return okResponse(req.ID, tok)
}

func (h *Handler) getPool(req Request) Response {
	var params struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	id, err := hexToID(params.ID)
	if err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	pool, ok := h.state.PoolInfo(id)
	if !ok {
		return errResponse(req.ID, CodeNotFound, "pool not found")
	}
	return okResponse(req.ID, pool)
}

func (h *Handler) getClaimsByCreator(req Request) Response {
	var params struct {
		Creator string `json:"creator"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	ids := h.idx.ClaimsByCreator(params.Creator)
	return okResponse(req.ID, hexIDs(ids))
}

func (h *Handler) getNamespacesByOwner(req Request) Response {
	var params struct {
		Owner string `json:"owner"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	ids := h.idx.NamespacesByOwner(params.Owner)
	return okResponse(req.ID, hexIDs(ids))
}

// sendTx accepts a canonically-encoded transaction as hex (the wallet
// package signs and encodes it client-side), verifies it stand-alone and
// admits it to the mempool.
func (h *Handler) sendTx(req Request) Response {
	var params struct {
		TxHex string `json:"tx_hex"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	raw, err := hexDecode(params.TxHex)
	if err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	r := codec.NewReader(raw)
	tx := core.DecodeTransaction(r)
	if !r.Done() {
		return errResponse(req.ID, CodeInvalidParams, "trailing bytes after transaction")
	}
	if err := h.mempool.Add(&tx, h.state, h.now()); err != nil {
		return errResponse(req.ID, CodeTxRejected, err.Error())
	}
	return okResponse(req.ID, map[string]string{"tx_hash": tx.Hash().Hex()})
}

func blockView(b *core.Block) map[string]any {
	return map[string]any{
		"height":     b.Header.Height,
		"hash":       b.Hash().Hex(),
		"prev_hash":  b.Header.PrevHash.Hex(),
		"timestamp":  b.Header.Timestamp,
		"tx_root":    b.Header.TxRoot.Hex(),
		"state_root": b.Header.StateRoot.Hex(),
		"proposer":   b.Header.ProposerPubKey.Hex(),
		"tx_count":   len(b.Txs),
	}
}

func hexIDs(ids []core.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.Hex()
	}
	return out
}

package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/seloria/seloria/core"
	"github.com/seloria/seloria/crypto"
)

// GenesisAllocation seeds one account's starting native balance.
type GenesisAllocation struct {
	PubKeyHex string `json:"pubkey"`
	Balance   uint64 `json:"balance"`
}

// Genesis is the chain's bootstrap configuration: who may issue agent
// certificates, who sits on the initial validator committee, and the
// starting balance sheet.
type Genesis struct {
	ChainID        string              `json:"chain_id"`
	TrustedIssuers []string            `json:"trusted_issuers"`
	Validators     []string            `json:"validators"`
	Allocations    []GenesisAllocation `json:"allocations"`
}

// LoadGenesis reads and parses a Genesis document from path.
func LoadGenesis(path string) (Genesis, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, fmt.Errorf("read genesis %s: %w", path, err)
	}
	var g Genesis
	if err := json.Unmarshal(raw, &g); err != nil {
		return Genesis{}, fmt.Errorf("parse genesis %s: %w", path, err)
	}
	if len(g.Validators) == 0 {
		return Genesis{}, fmt.Errorf("genesis must name at least one validator")
	}
	return g, nil
}

// BuildState constructs the genesis ChainState: trusted issuer set,
// validator committee, and every account's starting balance.
func (g *Genesis) BuildState() (*core.ChainState, error) {
	issuers, err := parseAll(g.TrustedIssuers)
	if err != nil {
		return nil, fmt.Errorf("genesis trusted_issuers: %w", err)
	}
	validators, err := parseAll(g.Validators)
	if err != nil {
		return nil, fmt.Errorf("genesis validators: %w", err)
	}

	state := core.NewChainState(issuers, validators)
	sp := core.NewScratchpad(state)
	for i, alloc := range g.Allocations {
		pk, err := ParsePubKey(alloc.PubKeyHex)
		if err != nil {
			return nil, fmt.Errorf("genesis allocations[%d]: %w", i, err)
		}
		acct := core.NewAccount(pk)
		acct.Balance = alloc.Balance
		sp.PutAccount(acct)
	}
	sp.Commit(0, core.ID{})
	return state, nil
}

func parseAll(hexKeys []string) ([]crypto.PublicKey, error) {
	out := make([]crypto.PublicKey, len(hexKeys))
	for i, s := range hexKeys {
		pk, err := ParsePubKey(s)
		if err != nil {
			return nil, err
		}
		out[i] = pk
	}
	return out, nil
}

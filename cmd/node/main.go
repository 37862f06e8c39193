// Command node starts a Seloria validator: it loads genesis or resumes from
// the last snapshot, wires the VM executor into the committee consensus
// engine, and serves the client/validator RPC surface.
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/seloria/seloria/config"
	"github.com/seloria/seloria/consensus"
	"github.com/seloria/seloria/core"
	"github.com/seloria/seloria/crypto/certgen"
	"github.com/seloria/seloria/events"
	"github.com/seloria/seloria/indexer"
	"github.com/seloria/seloria/rpc"
	"github.com/seloria/seloria/storage"
	"github.com/seloria/seloria/vm"
	"github.com/seloria/seloria/wallet"

	// Import VM modules to trigger their init() self-registration.
	_ "github.com/seloria/seloria/vm/modules/amm"
	_ "github.com/seloria/seloria/vm/modules/appdata"
	_ "github.com/seloria/seloria/vm/modules/claims"
	_ "github.com/seloria/seloria/vm/modules/identity"
	_ "github.com/seloria/seloria/vm/modules/payment"
)

func main() {
	cfgPath := flag.String("config", "config.json", "path to node config file")
	keyPath := flag.String("key", "validator.keystore.json", "path to validator keystore file")
	genKey := flag.Bool("genkey", false, "generate a new validator keystore and exit")
	genCerts := flag.String("gencerts", "", "generate a CA + node mTLS cert pair into the given directory and exit")
	nodeID := flag.String("node-id", "validator-0", "node id used as the TLS certificate common name")
	flag.Parse()

	passphrase := os.Getenv("SELORIA_KEYSTORE_PASSPHRASE")
	if passphrase == "" {
		log.Println("WARNING: SELORIA_KEYSTORE_PASSPHRASE not set — keystore will use an empty passphrase")
	}

	if *genKey {
		w, err := wallet.New()
		if err != nil {
			log.Fatalf("generate key: %v", err)
		}
		if err := wallet.SaveKeystore(*keyPath, passphrase, w); err != nil {
			log.Fatalf("save keystore: %v", err)
		}
		fmt.Printf("Generated validator key %s\nSaved to %s\n", w.Pub.Hex(), *keyPath)
		return
	}

	if *genCerts != "" {
		if err := certgen.GenerateAll(*genCerts, *nodeID, nil); err != nil {
			log.Fatalf("gencerts: %v", err)
		}
		fmt.Printf("Certificates generated in %s for node %q\n", *genCerts, *nodeID)
		return
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	w, err := wallet.LoadKeystore(*keyPath, passphrase)
	if err != nil {
		log.Fatalf("load keystore: %v", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatalf("mkdir data dir: %v", err)
	}

	var db storage.DB
	switch cfg.StorageBackend {
	case "leveldb":
		ldb, err := storage.OpenLevelDB(cfg.DataDir + "/chain")
		if err != nil {
			log.Fatalf("open leveldb: %v", err)
		}
		db = ldb
	default:
		db = storage.NewMemDB()
	}
	defer db.Close()

	snapshotPath := cfg.DataDir + "/state.snapshot"
	state, err := loadOrInitState(cfg, snapshotPath)
	if err != nil {
		log.Fatalf("state init: %v", err)
	}

	chain := core.NewBlockchain(db)
	emitter := events.NewEmitter()
	mempool := core.NewMempool(cfg.MempoolMax, cfg.MempoolPerAddr)
	idx := indexer.New()

	idxCh, idxUnsub := emitter.Subscribe()
	defer idxUnsub()
	go idx.Run(idxCh)

	var peers []consensus.PeerAddr
	for _, v := range cfg.Validators {
		pk, err := config.ParsePubKey(v.PubKeyHex)
		if err != nil {
			log.Fatalf("validators config: %v", err)
		}
		if pk == w.Pub {
			continue // never dial ourselves
		}
		peers = append(peers, consensus.PeerAddr{PubKey: pk, BaseURL: v.BaseURL})
	}

	var transport consensus.Transport
	var serverTLS *tls.Config
	if cfg.TLSDir != "" {
		clientTLS, err := config.LoadClientTLS(cfg.TLSDir, *nodeID)
		if err != nil {
			log.Fatalf("client tls: %v", err)
		}
		transport = consensus.NewPeerClient(clientTLS, 5*time.Second)
		serverTLS, err = config.LoadServerTLS(cfg.TLSDir, *nodeID)
		if err != nil {
			log.Fatalf("server tls: %v", err)
		}
	} else {
		transport = consensus.NewPeerClient(nil, 5*time.Second)
		log.Println("WARNING: tls_dir not set — validator RPC is unauthenticated plaintext")
	}

	engine := consensus.NewEngine(consensus.Config{
		ChainID:   cfg.ChainID,
		Self:      w.Pub,
		Priv:      w.Priv,
		State:     state,
		Mempool:   mempool,
		Chain:     chain,
		Emitter:   emitter,
		Applier:   consensus.ApplierFunc(vmApply),
		Transport: transport,
		Peers:     peers,
		Now:       func() uint64 { return uint64(time.Now().Unix()) },
	})

	rpcHandler := rpc.NewHandler(chain, mempool, state, idx, cfg.ChainID)
	rpcServer := rpc.NewServer(cfg.ListenAddr, rpcHandler, engine, emitter, serverTLS)
	if err := rpcServer.Start(); err != nil {
		log.Fatalf("rpc start: %v", err)
	}
	defer rpcServer.Stop()
	log.Printf("RPC listening on %s (validator %s)", cfg.ListenAddr, w.Pub.Hex())

	stopPropose := make(chan struct{})
	proposeDone := make(chan struct{})
	go func() {
		defer close(proposeDone)
		runAsLeaderUntil(engine, cfg.ProposeInterval, stopPropose)
	}()

	stopSnapshot := make(chan struct{})
	snapshotDone := make(chan struct{})
	go func() {
		defer close(snapshotDone)
		periodicSnapshot(state, snapshotPath, 10*time.Second, stopSnapshot)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("Shutting down...")

	close(stopPropose)
	close(stopSnapshot)
	<-proposeDone
	<-snapshotDone

	if err := storage.WriteSnapshotFile(snapshotPath, state.Snapshot()); err != nil {
		log.Printf("final snapshot write: %v", err)
	}
	log.Println("Shutdown complete.")
}

// vmApply adapts vm.ApplyBlock's TxOutcome-based result into the
// []string-of-failed-hashes shape consensus.Applier expects.
func vmApply(sp *core.Scratchpad, block *core.Block, now uint64) ([]string, []core.Event, error) {
	outcomes, evs, err := vm.ApplyBlock(sp, block, now)
	if err != nil {
		return nil, nil, err
	}
	var failed []string
	for _, o := range outcomes {
		if o.Failed {
			failed = append(failed, o.Hash.Hex())
		}
	}
	return failed, evs, nil
}

func loadOrInitState(cfg config.Config, snapshotPath string) (*core.ChainState, error) {
	data, err := storage.ReadSnapshotFile(snapshotPath)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if data != nil {
		genesis, err := config.LoadGenesis(cfg.GenesisPath)
		if err != nil {
			return nil, fmt.Errorf("load genesis (needed for validator/issuer set): %w", err)
		}
		issuers, validators, err := genesisKeys(genesis)
		if err != nil {
			return nil, err
		}
		state := core.NewChainState(issuers, validators)
		if err := state.LoadSnapshot(data); err != nil {
			return nil, fmt.Errorf("load snapshot: %w", err)
		}
		log.Printf("Resumed from snapshot at height %d", state.Height)
		return state, nil
	}

	genesis, err := config.LoadGenesis(cfg.GenesisPath)
	if err != nil {
		return nil, fmt.Errorf("load genesis: %w", err)
	}
	state, err := genesis.BuildState()
	if err != nil {
		return nil, fmt.Errorf("build genesis state: %w", err)
	}
	log.Println("Initialized fresh chain state from genesis")
	return state, nil
}

func genesisKeys(g config.Genesis) (issuers, validators []core.PubKey, err error) {
	for _, s := range g.TrustedIssuers {
		pk, e := config.ParsePubKey(s)
		if e != nil {
			return nil, nil, e
		}
		issuers = append(issuers, pk)
	}
	for _, s := range g.Validators {
		pk, e := config.ParsePubKey(s)
		if e != nil {
			return nil, nil, e
		}
		validators = append(validators, pk)
	}
	return issuers, validators, nil
}

func runAsLeaderUntil(e *consensus.Engine, interval time.Duration, stop <-chan struct{}) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, err := e.Propose(context.Background()); err != nil && !errors.Is(err, consensus.ErrNotLeader) {
				log.Printf("[consensus] propose: %v", err)
			}
		}
	}
}

func periodicSnapshot(state *core.ChainState, path string, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := storage.WriteSnapshotFile(path, state.Snapshot()); err != nil {
				log.Printf("snapshot write: %v", err)
			}
		}
	}
}

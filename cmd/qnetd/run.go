package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/qnet-network/qnet-core/ids"
	"github.com/qnet-network/qnet-core/qnet/cert"
	"github.com/qnet-network/qnet-core/qnet/chain"
	"github.com/qnet-network/qnet-core/qnet/clock"
	"github.com/qnet-network/qnet-core/qnet/config"
	"github.com/qnet-network/qnet-core/qnet/crypto"
	"github.com/qnet-network/qnet-core/qnet/keymanager"
	"github.com/qnet-network/qnet-core/qnet/macroblock"
	"github.com/qnet-network/qnet-core/qnet/mempool"
	"github.com/qnet-network/qnet-core/qnet/metrics"
	"github.com/qnet-network/qnet-core/qnet/microblock"
	"github.com/qnet-network/qnet-core/qnet/peer"
	"github.com/qnet-network/qnet-core/qnet/registry"
	"github.com/qnet-network/qnet-core/qnet/reputation"
	"github.com/qnet-network/qnet-core/qnet/storage"
	qnetsync "github.com/qnet-network/qnet-core/qnet/sync"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single QNet node",
	Long: `run wires a certificate manager, reputation ledger, mempool, microblock
pipeline, and macroblock round manager into one process and drives the
producer loop on the configured network's cadence.

No peer transport is wired in (spec.md's peer layer is a collaborator
interface only): this runs as a one-node network, self-electing as producer
and sole committer every round.`,
	RunE: runNode,
}

func init() {
	runCmd.Flags().String("node-id", "", "this node's identifier (required)")
	runCmd.MarkFlagRequired("node-id")
}

// zeroOracle is a stand-in NonceOracle: account-state tracking is out of
// scope for this core, so every sender's next expected nonce is reported as
// 0. DrainBest therefore only hands nonce-0 transactions to the producer;
// transactions with any other nonce stay in the pool.
type zeroOracle struct{}

func (zeroOracle) ExpectedNonce(string) uint64 { return 0 }

func parametersForNetwork(network string) (config.Parameters, error) {
	switch network {
	case "mainnet":
		return config.MainnetParams(), nil
	case "testnet":
		return config.TestnetParams(), nil
	case "local":
		return config.LocalParams(), nil
	default:
		return config.Parameters{}, fmt.Errorf("unknown network %q (want mainnet, testnet, or local)", network)
	}
}

func runNode(cmd *cobra.Command, args []string) error {
	dataDir, err := cmd.Flags().GetString("data-dir")
	if err != nil {
		return err
	}
	network, err := cmd.Flags().GetString("network")
	if err != nil {
		return err
	}
	nodeIDFlag, err := cmd.Flags().GetString("node-id")
	if err != nil {
		return err
	}
	nodeID := ids.NodeID(nodeIDFlag)

	params, err := parametersForNetwork(network)
	if err != nil {
		return err
	}
	if err := params.Validate(); err != nil {
		return fmt.Errorf("invalid parameters for network %q: %w", network, err)
	}

	km, err := keymanager.Open(dataDir, nodeID)
	if err != nil {
		return fmt.Errorf("open key manager: %w", err)
	}

	reg := registry.NewStaticRegistry()
	reg.Activate(nodeID, registry.RoleSuper)

	certMgr, err := cert.NewManager(nodeID, km.Public(), km.Private(), params, nil, nil)
	if err != nil {
		return fmt.Errorf("issue node certificate: %w", err)
	}

	peerLayer := peer.NewFake()
	notifier := peer.NewCertNotifier(peerLayer, nil)
	certCache, err := cert.NewCache(params.CertCacheCapacityFullSuper, notifier, nil)
	if err != nil {
		return fmt.Errorf("build certificate cache: %w", err)
	}
	selfCert, _ := certMgr.Current()
	certCache.PutVerified(selfCert)

	clk := clock.Real{}
	ledger := reputation.New(params, nil)
	ledger.Register(nodeID, reputation.Super, clk.Now())

	store, err := storage.NewBoltStore(dataDir)
	if err != nil {
		return fmt.Errorf("open chain store: %w", err)
	}
	defer store.Close()

	ch, err := chain.New(store, nil)
	if err != nil {
		return fmt.Errorf("load chain: %w", err)
	}

	pool := mempool.NewPool(0)

	promReg := prometheus.NewRegistry()
	collectors, err := metrics.New("qnet", promReg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	pipeline := microblock.New(nodeID, params, ch, pool, certCache, certMgr, ledger, clk, nil)
	pipeline.SetMetrics(collectors)

	macroMgr := macroblock.NewManager(params, ch, ledger, certMgr, clk, nil)
	macroMgr.SetMetrics(collectors)

	// No peer bootstrap exists for a one-node network, so there is nothing
	// to fast-sync against; mark this node synchronized immediately rather
	// than have production suspended forever waiting on a peer that will
	// never arrive (spec.md §4.8's flags still gate the producer loop below).
	syncFlags := qnetsync.NewFlags()
	syncFlags.SetSynchronized(true)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fmt.Printf("qnetd starting: node_id=%s network=%s data_dir=%s\n", nodeID, network, dataDir)
	return produceLoop(ctx, pipeline, macroMgr, ch, nodeID, params, syncFlags, clk)
}

// produceLoop drives the microblock producer loop at params.MicroblockInterval
// and opens a macroblock round every params.FinalityWindow microblocks,
// until ctx is canceled.
func produceLoop(ctx context.Context, pipeline *microblock.Pipeline, macroMgr *macroblock.Manager, ch *chain.Chain, nodeID ids.NodeID, params config.Parameters, syncFlags *qnetsync.Flags, clk clock.Clock) error {
	ticker := time.NewTicker(params.MicroblockInterval)
	defer ticker.Stop()

	var microSinceRound uint64
	var roundLo uint64

	for {
		select {
		case <-ctx.Done():
			fmt.Println("qnetd shutting down")
			return nil
		case <-ticker.C:
			if syncFlags.Suspended() {
				continue
			}
			height, _, err := produceAndAppend(ctx, pipeline, ch, nodeID, params)
			if err != nil {
				fmt.Fprintf(os.Stderr, "qnetd: microblock at height %d: %v\n", height, err)
				continue
			}
			microSinceRound++

			if microSinceRound < params.FinalityWindow {
				continue
			}
			microSinceRound = 0
			if err := runMacroRound(macroMgr, nodeID, roundLo, height, clk); err != nil {
				fmt.Fprintf(os.Stderr, "qnetd: macroblock round: %v\n", err)
			}
			roundLo = height + 1
		}
	}
}

// produceAndAppend runs one slot of the microblock producer/validator path,
// falling over to the emergency producer on consecutive ErrNotProducer
// misses up to the emergency chain limit (spec.md §4.6 "Emergency
// producer"). Each miss penalizes the slot's originally-scheduled producer
// via MissedSlot before failing over, per spec.md §4.4's -20 missed-slot
// delta.
func produceAndAppend(ctx context.Context, pipeline *microblock.Pipeline, ch *chain.Chain, nodeID ids.NodeID, params config.Parameters) (uint64, uint64, error) {
	height := uint64(0)
	if tip := ch.Tip(); tip != nil {
		height = tip.Height + 1
	}

	var missed uint64
	for {
		block, err := pipeline.ProduceBlock(ctx, missed, zeroOracle{})
		switch {
		case errors.Is(err, microblock.ErrNotProducer):
			if _, err := pipeline.MissedSlot(height, missed); err != nil {
				return 0, missed, err
			}
			missed++
			continue
		case err != nil:
			return 0, missed, err
		}
		if err := pipeline.ValidateAndAppend(ctx, block, missed); err != nil {
			return block.Height, missed, err
		}
		return block.Height, missed, nil
	}
}

// runMacroRound drives a full commit/reveal round with this node as the
// sole committer, the shape a one-node network always takes.
func runMacroRound(macroMgr *macroblock.Manager, nodeID ids.NodeID, lo, hi uint64, clk clock.Clock) error {
	now := clk.Now()
	round, err := macroMgr.OpenRound(lo, hi, now)
	if err != nil {
		return err
	}

	var value, nonce [32]byte
	if _, err := rand.Read(value[:]); err != nil {
		return err
	}
	if _, err := rand.Read(nonce[:]); err != nil {
		return err
	}
	commit := crypto.HFast(value[:], nonce[:])
	if err := round.SubmitCommit(nodeID, commit, now); err != nil {
		return err
	}

	round.AdvanceToReveal(now)
	if err := round.SubmitReveal(nodeID, value, nonce, now); err != nil {
		return err
	}

	// State-transition execution is this core's explicit non-goal, so the
	// macroblock's state root is left zero rather than computed.
	_, err = macroMgr.Finalize(round, nodeID, ids.Empty, now)
	return err
}

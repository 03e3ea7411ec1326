// Timechain validation engine daemon.
//
// Usage:
//
//	timechaind [options]   Run the engine
//	timechaind --help      Show help
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tobysharp/timechain/config"
	"github.com/tobysharp/timechain/internal/chain"
	"github.com/tobysharp/timechain/internal/consensus"
	klog "github.com/tobysharp/timechain/internal/log"
	"github.com/tobysharp/timechain/internal/notify"
	"github.com/tobysharp/timechain/internal/storage"
	chainsync "github.com/tobysharp/timechain/internal/sync"
	"github.com/tobysharp/timechain/internal/utxo"
	"github.com/tobysharp/timechain/internal/validationstatus"
	"github.com/tobysharp/timechain/pkg/block"
	"github.com/tobysharp/timechain/pkg/types"
)

func main() {
	// ── 1. Load config (defaults → file → flags) ────────────────────────
	cfg, _, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// ── 2. Init logger ────────────────────────────────────────────────────
	logFile := cfg.Log.File
	if logFile == "" {
		logsDir := cfg.LogsDir()
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating logs dir: %v\n", err)
			os.Exit(1)
		}
		logFile = logsDir + "/timechain.log"
	}
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	logger := klog.WithComponent("engine")
	logger.Info().Str("network", string(cfg.Network)).Str("datadir", cfg.DataDir).Msg("Starting timechain engine")

	// ── 3. Genesis header timechain ───────────────────────────────────────
	tc := chain.NewHeaderTimechain(cfg.Sync.PruneDepth)
	genesis := chain.GenesisContext(block.MainnetGenesisHeader())
	if err := tc.AddGenesis(genesis); err != nil {
		logger.Fatal().Err(err).Msg("Failed to seed genesis header")
	}
	logger.Info().Str("hash", genesis.Hash.String()).Msg("Genesis header seeded")

	// ── 4. UTXO database and validation pipelines ─────────────────────────
	db := utxo.NewDatabase(cfg.Sync.UTXONumAges, cfg.Sync.UTXOFanIn)
	sink := notify.NewSink(64)

	vp := chainsync.NewValidationPipeline(db, cfg.Sync.SpendWorkers, cfg.Sync.ValidationWorkers, genesis.Height+1,
		func(r chainsync.ValidationResult) {
			if r.Err != nil {
				logger.Error().Int64("height", r.Height).Err(r.Err).Msg("Block failed spending validation")
				return
			}
			logger.Debug().Int64("height", r.Height).Msg("Block passed spending validation")
		})
	defer vp.Stop()

	sidecarDB, err := storage.NewBadger(cfg.ChainDataDir() + "/validation")
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open validation status database")
	}
	defer sidecarDB.Close()

	sidecar := validationstatus.NewBadgerSidecar(sidecarDB)
	sidecar.Set(genesis.Height, validationstatus.Valid)

	// ── 5. Header and block synchronization ───────────────────────────────
	validator := consensus.NewHeaderValidator()
	handler := &loggingSyncHandler{}

	hs := chainsync.NewHeaderSync[string](tc, validator, handler)
	hs.SetSink(sink)
	defer hs.Stop()

	bs := chainsync.NewBlockSync[string](tc, sidecar, block.MainnetActivationHeights, handler, cfg.Sync.MaxBlockQueueBytes)
	bs.SetSink(sink)
	bs.OnValidated = func(height int64, blk *block.Block) {
		if err := vp.Submit(blk, height); err != nil {
			logger.Error().Int64("height", height).Err(err).Msg("Failed to submit block for spending validation")
		}
	}
	defer bs.Stop()

	go logEvents(sink)

	logger.Info().Msg("Engine ready; awaiting peer wiring to start header/block sync")

	// ── 6. Wait for shutdown signal ───────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	logger.Info().Msg("Shutting down")
}

// logEvents drains the notification sink and logs each event, standing in
// for whatever metrics exporter a deployment wires in place of stdout.
func logEvents(sink *notify.Sink) {
	for e := range sink.Events() {
		klog.Info().Str("kind", e.Kind).Int64("count", e.Count).Msg("sync progress")
	}
}

// loggingSyncHandler is a minimal HeaderSyncHandler/BlockSyncHandler that
// logs requests instead of sending them over a wire: this engine validates
// headers and blocks it is handed, but owns no peer-transport layer of its
// own (out of scope; see SPEC_FULL.md's Non-goals).
type loggingSyncHandler struct{}

func (h *loggingSyncHandler) RequestHeaders(peer string, locatorHash types.Hash) error {
	klog.HeaderSync.Debug().Str("peer", peer).Str("locator", locatorHash.String()).Msg("would request headers")
	return nil
}

func (h *loggingSyncHandler) ReportHeaderError(peer string, err error) {
	klog.HeaderSync.Warn().Str("peer", peer).Err(err).Msg("header validation failed")
}

func (h *loggingSyncHandler) ReportHeaderComplete(peer string) {
	klog.HeaderSync.Debug().Str("peer", peer).Msg("header sync complete")
}

func (h *loggingSyncHandler) RequestBlock(peer string, key chainsync.BlockKey) error {
	klog.BlockSync.Debug().Str("peer", peer).Int64("height", key.Height).Msg("would request block")
	return nil
}

func (h *loggingSyncHandler) ReportBlockError(peer string, err error) {
	klog.BlockSync.Warn().Str("peer", peer).Err(err).Msg("block validation failed")
}

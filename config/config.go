// Package config handles engine configuration.
//
// Configuration is split into two categories:
//   - Protocol rules: consensus constants, fixed in code, must match across
//     every node validating the same chain
//   - Node settings: runtime/operational configuration, free to vary per node
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// NetworkType identifies mainnet or testnet.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
)

// Config holds node-specific runtime configuration for the validation
// engine. These settings can vary between nodes without affecting consensus.
type Config struct {
	// Core
	Network NetworkType `conf:"network"`
	DataDir string      `conf:"datadir"`

	// Sync tuning (worker pool sizes, queue limits)
	Sync SyncConfig

	// Logging
	Log LogConfig
}

// SyncConfig holds the operational knobs for HeaderSync, BlockSync, the
// SpendPipeline, and the UTXO database — none of these affect what a block
// validates to, only how fast and how much memory this node spends getting
// there.
type SyncConfig struct {
	// MaxHeaderBatch is loaded and validated but not passed to HeaderSync,
	// which treats a batch of exactly chainsync.MaxHeadersPerMessage (2000)
	// headers as "more to follow" regardless of this setting.
	MaxHeaderBatch int `conf:"sync.maxheaderbatch"`

	// MaxBlockQueueBytes bounds BlockSync's pending-block queue.
	MaxBlockQueueBytes int `conf:"sync.maxblockqueuebytes"`

	// SpendWorkers is the SpendPipeline's fan-out over UTXO lookups.
	SpendWorkers int `conf:"sync.spendworkers"`

	// ValidationWorkers is the ValidationPipeline's worker pool size.
	ValidationWorkers int `conf:"sync.validationworkers"`

	// UTXOFanIn is the UTXO database's per-age segment merge fan-in.
	UTXOFanIn int `conf:"sync.utxofanin"`

	// UTXONumAges is the number of UTXO database age tiers.
	UTXONumAges int `conf:"sync.utxonumages"`

	// PruneDepth is how many blocks of losing-fork history the header
	// timechain keeps before discarding them.
	PruneDepth int64 `conf:"sync.prunedepth"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.timechain
//	macOS:   ~/Library/Application Support/Timechain
//	Windows: %APPDATA%\Timechain
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".timechain"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Timechain")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "Timechain")
		}
		return filepath.Join(home, "AppData", "Roaming", "Timechain")
	default:
		return filepath.Join(home, ".timechain")
	}
}

// ChainDataDir returns the chain-specific data directory.
func (c *Config) ChainDataDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// UTXODir returns the UTXO database directory.
func (c *Config) UTXODir() string {
	return filepath.Join(c.ChainDataDir(), "utxo")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "timechain.conf")
}

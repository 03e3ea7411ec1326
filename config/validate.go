package config

import "fmt"

// Validate checks runtime node config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Network != Mainnet && cfg.Network != Testnet {
		return fmt.Errorf("network must be %q or %q", Mainnet, Testnet)
	}
	if cfg.Sync.MaxHeaderBatch <= 0 {
		return fmt.Errorf("sync.maxheaderbatch must be positive")
	}
	if cfg.Sync.MaxBlockQueueBytes <= 0 {
		return fmt.Errorf("sync.maxblockqueuebytes must be positive")
	}
	if cfg.Sync.SpendWorkers <= 0 {
		return fmt.Errorf("sync.spendworkers must be positive")
	}
	if cfg.Sync.ValidationWorkers <= 0 {
		return fmt.Errorf("sync.validationworkers must be positive")
	}
	if cfg.Sync.UTXOFanIn <= 0 {
		return fmt.Errorf("sync.utxofanin must be positive")
	}
	if cfg.Sync.UTXONumAges <= 0 {
		return fmt.Errorf("sync.utxonumages must be positive")
	}
	if cfg.Sync.PruneDepth < 0 {
		return fmt.Errorf("sync.prunedepth must not be negative")
	}
	return nil
}

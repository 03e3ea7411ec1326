package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

// Flags holds parsed command-line flags.
type Flags struct {
	// Commands
	Help    bool
	Version bool

	// Core
	Network string
	DataDir string
	Config  string

	// Sync tuning
	MaxHeaderBatch     int
	MaxBlockQueueBytes int
	SpendWorkers       int
	ValidationWorkers  int
	UTXOFanIn          int
	UTXONumAges        int
	PruneDepth         int64

	// Logging
	LogLevel string
	LogFile  string
	LogJSON  bool

	// Remaining args
	Args []string

	// Explicitly-set bool flags (for true/false overrides).
	SetLogJSON bool
}

// ParseFlags parses command-line flags.
func ParseFlags() *Flags {
	f := &Flags{}
	fs := flag.NewFlagSet("timechain", flag.ContinueOnError)

	// Commands
	fs.BoolVar(&f.Help, "help", false, "Show help message")
	fs.BoolVar(&f.Help, "h", false, "Show help message (shorthand)")
	fs.BoolVar(&f.Version, "version", false, "Show version information")
	fs.BoolVar(&f.Version, "v", false, "Show version (shorthand)")

	// Core
	fs.StringVar(&f.Network, "network", "", "Network type (mainnet or testnet)")
	fs.Bool("testnet", false, "Use testnet (shorthand for --network=testnet)")
	fs.StringVar(&f.DataDir, "datadir", "", "Data directory path")
	fs.StringVar(&f.Config, "config", "", "Config file path")
	fs.StringVar(&f.Config, "c", "", "Config file path (shorthand)")

	// Sync tuning
	fs.IntVar(&f.MaxHeaderBatch, "max-header-batch", 0, "Header batch size setting (validated; HeaderSync uses a fixed 2000)")
	fs.IntVar(&f.MaxBlockQueueBytes, "max-block-queue-bytes", 0, "Byte bound on BlockSync's pending-block queue")
	fs.IntVar(&f.SpendWorkers, "spend-workers", 0, "SpendPipeline fan-out over UTXO lookups")
	fs.IntVar(&f.ValidationWorkers, "validation-workers", 0, "ValidationPipeline worker pool size")
	fs.IntVar(&f.UTXOFanIn, "utxo-fanin", 0, "UTXO database per-age segment merge fan-in")
	fs.IntVar(&f.UTXONumAges, "utxo-num-ages", 0, "Number of UTXO database age tiers")
	fs.Int64Var(&f.PruneDepth, "prune-depth", 0, "Losing-fork history depth the header timechain keeps")

	// Logging
	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.LogFile, "log-file", "", "Log file path")
	fs.BoolVar(&f.LogJSON, "log-json", false, "Output logs as JSON")

	// Custom usage
	fs.Usage = func() {
		printUsage()
	}

	// Parse
	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	// Handle --testnet shorthand
	if isFlagSet(fs, "testnet") {
		f.Network = "testnet"
	}
	f.SetLogJSON = isFlagSet(fs, "log-json")

	f.Args = fs.Args()

	// Detect unparsed flags caused by positional arguments stopping the
	// parser, e.g. a stray bare word after a flag that takes no value.
	for _, arg := range f.Args {
		if strings.HasPrefix(arg, "-") {
			fmt.Fprintf(os.Stderr, "Error: flag %q was not parsed (positional argument stopped parsing)\n", arg)
			os.Exit(1)
		}
	}

	return f
}

// ApplyFlags applies command-line flags to a Config struct.
func ApplyFlags(cfg *Config, f *Flags) {
	// Core
	if f.Network != "" {
		cfg.Network = NetworkType(f.Network)
	}
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}

	// Sync tuning
	if f.MaxHeaderBatch != 0 {
		cfg.Sync.MaxHeaderBatch = f.MaxHeaderBatch
	}
	if f.MaxBlockQueueBytes != 0 {
		cfg.Sync.MaxBlockQueueBytes = f.MaxBlockQueueBytes
	}
	if f.SpendWorkers != 0 {
		cfg.Sync.SpendWorkers = f.SpendWorkers
	}
	if f.ValidationWorkers != 0 {
		cfg.Sync.ValidationWorkers = f.ValidationWorkers
	}
	if f.UTXOFanIn != 0 {
		cfg.Sync.UTXOFanIn = f.UTXOFanIn
	}
	if f.UTXONumAges != 0 {
		cfg.Sync.UTXONumAges = f.UTXONumAges
	}
	if f.PruneDepth != 0 {
		cfg.Sync.PruneDepth = f.PruneDepth
	}

	// Logging
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.Log.File = f.LogFile
	}
	if f.SetLogJSON {
		cfg.Log.JSON = f.LogJSON
	}
}

// isFlagSet checks if a flag was explicitly set.
func isFlagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

func printUsage() {
	usage := `Timechain Engine - header-chain and UTXO validation node

Usage:
  timechaind [options]
  timechaind --help

Commands:
  --help, -h      Show this help message
  --version, -v   Show version information

Core Options:
  --network       Network type: mainnet (default) or testnet
  --testnet       Shorthand for --network=testnet
  --datadir       Data directory (default: ~/.timechain)
  --config, -c    Config file path (default: <datadir>/timechain.conf)

Sync Tuning:
  --max-header-batch         Header batch size setting, validated but not read by HeaderSync, which uses a fixed 2000 (default: 2000)
  --max-block-queue-bytes    Byte bound on the pending-block queue (default: 16777216)
  --spend-workers            SpendPipeline fan-out over UTXO lookups (default: 8)
  --validation-workers       ValidationPipeline worker pool size (default: 4)
  --utxo-fanin               UTXO database per-age segment merge fan-in (default: 4)
  --utxo-num-ages            Number of UTXO database age tiers (default: 4)
  --prune-depth              Losing-fork history depth kept by the header timechain (default: 100)

Logging Options:
  --log-level     Log level: debug, info, warn, error (default: info)
  --log-file      Log file path, written in addition to stdout (default: <datadir>/logs/timechain.log)
  --log-json      Output logs as JSON

Examples:
  # Start mainnet node
  timechaind

  # Start testnet node
  timechaind --network=testnet

  # Start with custom data directory
  timechaind --datadir=/path/to/data

Note:
  Consensus rules (proof-of-work parameters, activation heights, etc.) are
  fixed in code and cannot be changed at runtime. Data directories are
  created automatically on first start.
`
	fmt.Print(usage)
}

// Load loads configuration with the following precedence:
// 1. Default values
// 2. Auto-create data dirs + default config (idempotent)
// 3. Config file
// 4. Command-line flags
func Load() (*Config, *Flags, error) {
	flags := ParseFlags()

	// Handle help/version
	if flags.Help {
		printUsage()
		os.Exit(0)
	}
	if flags.Version {
		fmt.Println("timechaind version 0.1.0")
		os.Exit(0)
	}

	// Determine network first (needed for defaults)
	network := Mainnet
	if strings.ToLower(flags.Network) == "testnet" {
		network = Testnet
	}

	// Start with defaults
	cfg := Default(network)

	// Override datadir if specified
	if flags.DataDir != "" {
		cfg.DataDir = flags.DataDir
	}

	// Auto-create data directories and default config on first start.
	if err := EnsureDataDirs(cfg); err != nil {
		return nil, nil, fmt.Errorf("ensuring data dirs: %w", err)
	}

	// Determine config file path
	configPath := flags.Config
	if configPath == "" {
		configPath = cfg.ConfigFile()
	}

	// Load config file
	fileValues, err := LoadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config file: %w", err)
	}

	// Apply file config
	if err := ApplyFileConfig(cfg, fileValues); err != nil {
		return nil, nil, fmt.Errorf("applying config file: %w", err)
	}

	// Apply flags (highest precedence)
	ApplyFlags(cfg, flags)
	if err := Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, flags, nil
}

// LoadFromFile loads config from defaults + conf file only (no CLI flags).
func LoadFromFile(dataDir string, network NetworkType) (*Config, error) {
	cfg := Default(network)
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if err := EnsureDataDirs(cfg); err != nil {
		return nil, fmt.Errorf("ensuring data dirs: %w", err)
	}
	fileValues, err := LoadFile(cfg.ConfigFile())
	if err != nil {
		return nil, fmt.Errorf("loading config file: %w", err)
	}
	if err := ApplyFileConfig(cfg, fileValues); err != nil {
		return nil, fmt.Errorf("applying config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// EnsureDataDirs creates the data directory structure and a default config
// file if they don't already exist. Idempotent — safe to call on every
// startup.
func EnsureDataDirs(cfg *Config) error {
	dirs := []string{
		cfg.DataDir,
		cfg.ChainDataDir(),
		cfg.UTXODir(),
		cfg.LogsDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	// Create default config if it doesn't exist.
	configPath := cfg.ConfigFile()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := WriteDefaultConfig(configPath, cfg.Network); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}
	}

	return nil
}

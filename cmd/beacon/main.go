// Command beacon is the entry point for the Deneb beacon-chain client.
//
// Usage:
//
//	beacon node [flags]
//
// Flags:
//
//	--datadir    Data directory path (default: ~/.beacon)
//	--verbosity  Log level 0-5 (default: 3)
//	--version    Print version and exit
//
// The command-line entry point, peer discovery, gossip transport, and
// request/response wire framing are external collaborators the core state
// transition and fork-choice packages do not depend on; this binary only
// builds an in-memory genesis state and fork-choice store, logs, and waits
// for a shutdown signal. It does not feed wall-clock ticks into the store
// and does not load or persist state in the data directory.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethclient/deneb-beacon/consensus"
	"github.com/ethclient/deneb-beacon/consensus/params"
	"github.com/ethclient/deneb-beacon/log"
)

// Build-time version info, overridable with ldflags:
//
//	go build -ldflags "-X main.version=v0.2.0 -X main.commit=abc1234"
var (
	version = "v0.1.0-dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run is the actual entry point, returning an exit code. Accepts CLI
// arguments (without the program name) so it can be tested in isolation.
func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: beacon node [flags]")
		return 2
	}

	switch args[0] {
	case "node":
		return runNode(args[1:])
	case "-h", "-help", "--help":
		fmt.Fprintln(os.Stderr, "usage: beacon node [flags]")
		return 0
	default:
		fmt.Fprintf(os.Stderr, "beacon: unknown subcommand %q\n", args[0])
		return 2
	}
}

type nodeConfig struct {
	DataDir   string
	Verbosity int
}

func runNode(args []string) int {
	cfg := nodeConfig{DataDir: defaultDataDir(), Verbosity: 3}

	fs := flag.NewFlagSet("node", flag.ContinueOnError)
	fs.StringVar(&cfg.DataDir, "datadir", cfg.DataDir, "data directory path")
	fs.IntVar(&cfg.Verbosity, "verbosity", cfg.Verbosity, "log level 0-5 (0-1=error, 2=warn, 3=info, 4-5=debug)")
	showVersion := fs.Bool("version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *showVersion {
		fmt.Printf("beacon %s (commit %s)\n", version, commit)
		return 0
	}

	if v := os.Getenv("RUST_LOG"); v != "" {
		cfg.Verbosity = verbosityFromString(v)
	}
	logger := log.New(verbosityToLevel(cfg.Verbosity))
	log.SetDefault(logger)

	logger.Info("beacon starting", "version", version, "datadir", cfg.DataDir)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Error("failed to initialize datadir", "err", err)
		return 1
	}

	cfgParams := params.Mainnet()
	if err := cfgParams.Validate(); err != nil {
		logger.Error("invalid chain configuration", "err", err)
		return 1
	}

	genesisState := consensus.NewBeaconState(cfgParams)
	genesisBlock := &consensus.BeaconBlock{}
	store, err := consensus.NewStore(cfgParams, genesisState.GenesisTime, genesisBlock, genesisState)
	if err != nil {
		logger.Error("failed to initialize fork-choice store", "err", err)
		return 1
	}
	_ = store

	genesisHeader := genesisState.LatestExecutionPayloadHeader
	logger.Info("genesis execution payload header",
		"feeRecipient", genesisHeader.FeeRecipientAddress(),
		"blockHash", genesisHeader.BlockHashValue())

	logger.Info("beacon ready; awaiting block/attestation/tick input from the networking layer")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig.String())
	return 0
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".beacon"
	}
	return home + "/.beacon"
}

// verbosityToLevel maps the 0-5 CLI verbosity scale onto slog's levels, the
// way the teacher's node.VerbosityToLogLevel does for its own client.
func verbosityToLevel(v int) slog.Level {
	switch {
	case v <= 1:
		return slog.LevelError
	case v == 2:
		return slog.LevelWarn
	case v == 3:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

func verbosityFromString(s string) int {
	switch s {
	case "error":
		return 1
	case "warn":
		return 2
	case "info":
		return 3
	case "debug", "trace":
		return 4
	default:
		return 3
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"mempoolScope/internal/abicache"
	"mempoolScope/internal/chain"
	"mempoolScope/internal/config"
	"mempoolScope/internal/dex"
	"mempoolScope/internal/etherscan"
	"mempoolScope/internal/registry"
	"mempoolScope/internal/watcher"
)

func main() {
	root := &cobra.Command{
		Use:          "watcher",
		Short:        "Mempool DEX swap watcher",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Stream pending transactions and report swaps on known routers",
		RunE:  runWatcher,
	}

	addLookupFlags(runCmd.Flags())
	runCmd.Flags().String("ws-url", "", "websocket RPC URL (or ETH_WS_URL)")
	runCmd.Flags().StringSlice("operations", nil, "operations of interest: names, directions or all (default eth_to_token)")
	runCmd.Flags().Int("seen-size", 65536, "number of recent tx hashes kept for dedupe")
	runCmd.Flags().StringSlice("sinks", []string{"log"}, "sinks: log, jsonl, postgres, kafka, nats")
	runCmd.Flags().String("out", "./data/swaps.jsonl", "observations JSONL path")
	runCmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL path")
	runCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	runCmd.Flags().StringSlice("kafka-brokers", nil, "Kafka brokers (comma-separated)")
	runCmd.Flags().String("kafka-topic", "pending-swaps", "Kafka topic")
	runCmd.Flags().String("nats-url", "", "NATS URL")
	runCmd.Flags().String("nats-subject", "mempool.swaps", "NATS subject prefix")

	root.AddCommand(runCmd)

	resolveCmd := &cobra.Command{
		Use:   "resolve <address>...",
		Short: "Resolve and cache contract interfaces",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runResolve,
	}
	addLookupFlags(resolveCmd.Flags())

	root.AddCommand(resolveCmd)

	registryCmd := &cobra.Command{
		Use:   "registry",
		Short: "Build the router registry and print watched operations",
		RunE:  runRegistry,
	}
	addLookupFlags(registryCmd.Flags())
	registryCmd.Flags().StringSlice("operations", nil, "operations of interest: names, directions or all (default eth_to_token)")

	root.AddCommand(registryCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addLookupFlags(flags *pflag.FlagSet) {
	flags.String("etherscan-api-key", "", "Etherscan API key (or ETHERSCAN_API_KEY)")
	flags.String("etherscan-url", etherscan.DefaultBaseURL, "Etherscan API URL")
	flags.Uint64("chain-id", 1, "chain id used for interface lookups")
	flags.String("cache-dir", ".cache", "interface cache directory")
	flags.Int("lookup-retries", 3, "maximum interface lookup retries")
	flags.Duration("lookup-backoff", 500*time.Millisecond, "initial interface lookup backoff")
	flags.Duration("lookup-timeout", 10*time.Second, "interface lookup request timeout")
	flags.String("env-file", ".env", "dotenv file read as a fallback")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
}

func loadConfig(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func runWatcher(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := cfg.RequireStream(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cache, err := newInterfaceCache(cfg, logger)
	if err != nil {
		return err
	}
	classifier, _, err := newClassifier(ctx, cfg, cache, logger)
	if err != nil {
		return err
	}

	chainClient, err := chain.NewClient(ctx, cfg.WSURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	chainID, err := chainClient.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	if !chainID.IsUint64() || chainID.Uint64() != cfg.ChainID {
		logger.Warn("node chain id differs from lookup chain id",
			zap.String("node", chainID.String()),
			zap.Uint64("lookup", cfg.ChainID),
		)
	}

	sink, err := buildSink(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := sink.Close(); err != nil {
			logger.Warn("close sink failed", zap.Error(err))
		}
	}()

	runner, err := watcher.NewRunner(watcher.RunConfig{
		SeenSize: cfg.SeenSize,
	}, chainClient, classifier, sink, logger)
	if err != nil {
		return err
	}

	logger.Info("watcher start",
		zap.String("chain_id", chainID.String()),
		zap.Strings("sinks", cfg.Sinks),
		zap.Strings("operations", cfg.Operations),
		zap.String("cache_dir", cfg.CacheDir),
		zap.Int("seen_size", cfg.SeenSize),
	)

	return runner.Run(ctx)
}

// newInterfaceCache wires the lookup client into the durable cache. Without an
// API key the cache serves stored records only.
func newInterfaceCache(cfg config.Config, logger *zap.Logger) (*abicache.Cache, error) {
	var fetcher abicache.Fetcher
	if cfg.EtherscanAPIKey != "" {
		client, err := etherscan.NewClient(etherscan.Config{
			BaseURL: cfg.EtherscanURL,
			APIKey:  cfg.EtherscanAPIKey,
			ChainID: cfg.ChainID,
			Timeout: cfg.LookupTimeout,
		})
		if err != nil {
			return nil, err
		}
		fetcher = client
	} else {
		logger.Warn("no etherscan api key, serving cached interfaces only")
	}

	return abicache.New(abicache.Config{
		Dir:          cfg.CacheDir,
		MaxRetries:   cfg.LookupRetries,
		RetryBackoff: cfg.LookupBackoff,
		Retryable:    etherscan.Retryable,
	}, fetcher, logger), nil
}

func newClassifier(ctx context.Context, cfg config.Config, cache *abicache.Cache, logger *zap.Logger) (*dex.Classifier, *registry.Registry, error) {
	seeds, err := cfg.Seeds()
	if err != nil {
		return nil, nil, err
	}
	ops, err := dex.SelectOperations(cfg.Operations)
	if err != nil {
		return nil, nil, err
	}
	reg, err := registry.Build(ctx, seeds, cache, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("build registry: %w", err)
	}
	return dex.NewClassifier(reg, ops, logger), reg, nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

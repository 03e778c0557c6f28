package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func newFlags(t *testing.T, envFile string, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("ws-url", "", "")
	flags.String("etherscan-api-key", "", "")
	flags.String("env-file", "", "")
	flags.StringSlice("operations", nil, "")
	flags.StringSlice("sinks", nil, "")
	flags.Duration("lookup-backoff", 0, "")
	if envFile != "" {
		args = append(args, "--env-file", envFile)
	}
	if err := flags.Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return flags
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"ETH_WS_URL", "ETHERSCAN_API_KEY", "WATCHER_WS_URL", "WATCHER_ETHERSCAN_API_KEY"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("", newFlags(t, filepath.Join(t.TempDir(), "missing.env")))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.CacheDir != ".cache" || cfg.ChainID != 1 || cfg.LookupRetries != 3 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.LookupBackoff != 500*time.Millisecond {
		t.Fatalf("unexpected backoff %s", cfg.LookupBackoff)
	}
	if len(cfg.Sinks) != 1 || cfg.Sinks[0] != "log" {
		t.Fatalf("unexpected sinks %v", cfg.Sinks)
	}
	if len(cfg.Routers) != 2 || len(cfg.Factories) != 1 {
		t.Fatalf("expected default seeds, got %d routers %d factories", len(cfg.Routers), len(cfg.Factories))
	}
	if err := cfg.RequireStream(); err == nil {
		t.Fatalf("expected missing ws url error")
	}

	seeds, err := cfg.Seeds()
	if err != nil {
		t.Fatalf("default seeds: %v", err)
	}
	if seeds.Routers[1].Factories[0] != seeds.Factories[0].Address {
		t.Fatalf("router should reference the seeded factory")
	}
}

func TestLoadExternalValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("ETH_WS_URL", "ws://env:8546")

	envFile := filepath.Join(t.TempDir(), ".env")
	content := "ETH_WS_URL=ws://dotenv:8546\nETHERSCAN_API_KEY=dotenv-key\n"
	if err := os.WriteFile(envFile, []byte(content), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load("", newFlags(t, envFile))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.WSURL != "ws://env:8546" {
		t.Fatalf("process env should win over env file, got %q", cfg.WSURL)
	}
	if cfg.EtherscanAPIKey != "dotenv-key" {
		t.Fatalf("expected key from env file, got %q", cfg.EtherscanAPIKey)
	}
	if err := cfg.RequireStream(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg, err = Load("", newFlags(t, envFile, "--ws-url", "ws://flag:8546", "--operations", "all", "--sinks", "log,jsonl"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.WSURL != "ws://flag:8546" {
		t.Fatalf("flag should win, got %q", cfg.WSURL)
	}
	if len(cfg.Operations) != 1 || cfg.Operations[0] != "all" || len(cfg.Sinks) != 2 {
		t.Fatalf("unexpected slices: %v %v", cfg.Operations, cfg.Sinks)
	}
}

func TestLoadSeedsFromFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "config.yaml")
	content := `
factories:
  - address: "0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f"
    name: "Uniswap V2"
    version: 2
routers:
  - address: "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D"
    name: "Uniswap V2: Router 2"
    version: 2
    factories: ["0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f"]
cache-dir: "/tmp/abi"
`
	if err := os.WriteFile(cfgFile, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(cfgFile, newFlags(t, ""))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.CacheDir != "/tmp/abi" {
		t.Fatalf("unexpected cache dir %q", cfg.CacheDir)
	}
	if len(cfg.Routers) != 1 || cfg.Routers[0].Name != "Uniswap V2: Router 2" || cfg.Routers[0].Version != 2 {
		t.Fatalf("unexpected routers %+v", cfg.Routers)
	}

	seeds, err := cfg.Seeds()
	if err != nil {
		t.Fatalf("seeds: %v", err)
	}
	if len(seeds.Routers[0].Factories) != 1 {
		t.Fatalf("expected one factory reference")
	}
}

func TestSeedsRejectsBadChecksum(t *testing.T) {
	cfg := Config{
		Factories: DefaultFactories(),
		Routers: []RouterEntry{{
			Address:   "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488d",
			Name:      "broken",
			Factories: []string{DefaultFactories()[0].Address},
		}},
	}
	if _, err := cfg.Seeds(); err == nil {
		t.Fatalf("expected checksum error")
	}
}

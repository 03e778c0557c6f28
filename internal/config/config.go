package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"mempoolScope/internal/registry"
)

// FactoryEntry is a factory seed as written in config.
type FactoryEntry struct {
	Address string `mapstructure:"address"`
	Name    string `mapstructure:"name"`
	Version uint8  `mapstructure:"version"`
}

// RouterEntry is a router seed as written in config.
type RouterEntry struct {
	Address   string   `mapstructure:"address"`
	Name      string   `mapstructure:"name"`
	Version   uint8    `mapstructure:"version"`
	Factories []string `mapstructure:"factories"`
}

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	WSURL           string
	EtherscanAPIKey string
	EtherscanURL    string
	ChainID         uint64
	CacheDir        string
	LookupRetries   int
	LookupBackoff   time.Duration
	LookupTimeout   time.Duration
	SeenSize        int
	Operations      []string
	Sinks           []string
	Out             string
	Errors          string
	PGDSN           string
	KafkaBrokers    []string
	KafkaTopic      string
	NATSURL         string
	NATSSubject     string
	LogLevel        string
	Factories       []FactoryEntry
	Routers         []RouterEntry
}

// DefaultFactories seeds the Uniswap V2 factory.
func DefaultFactories() []FactoryEntry {
	return []FactoryEntry{
		{Address: "0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f", Name: "Uniswap V2", Version: 2},
	}
}

// DefaultRouters seeds both Uniswap V2 routers.
func DefaultRouters() []RouterEntry {
	factory := "0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f"
	return []RouterEntry{
		{Address: "0xf164fC0Ec4E93095b804a4795bBe1e041497b92a", Name: "Uniswap V2", Version: 2, Factories: []string{factory}},
		{Address: "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D", Name: "Uniswap V2: Router 2", Version: 2, Factories: []string{factory}},
	}
}

// Load merges config file, environment variables, flags and an optional dotenv
// file into Config. WS URL and API key also honour ETH_WS_URL and
// ETHERSCAN_API_KEY, with the dotenv file as the last fallback.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("WATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindEnv("ws-url", "WATCHER_WS_URL", "ETH_WS_URL"); err != nil {
		return Config{}, fmt.Errorf("bind env: %w", err)
	}
	if err := v.BindEnv("etherscan-api-key", "WATCHER_ETHERSCAN_API_KEY", "ETHERSCAN_API_KEY"); err != nil {
		return Config{}, fmt.Errorf("bind env: %w", err)
	}

	v.SetDefault("env-file", ".env")
	v.SetDefault("etherscan-url", "https://api.etherscan.io/v2/api")
	v.SetDefault("chain-id", uint64(1))
	v.SetDefault("cache-dir", ".cache")
	v.SetDefault("lookup-retries", 3)
	v.SetDefault("lookup-backoff", 500*time.Millisecond)
	v.SetDefault("lookup-timeout", 10*time.Second)
	v.SetDefault("seen-size", 65536)
	v.SetDefault("sinks", "log")
	v.SetDefault("out", "./data/swaps.jsonl")
	v.SetDefault("errors", "./data/decode_errors.jsonl")
	v.SetDefault("kafka-topic", "pending-swaps")
	v.SetDefault("nats-subject", "mempool.swaps")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	dotenv, err := readDotenv(v.GetString("env-file"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		WSURL:           firstNonEmpty(v.GetString("ws-url"), dotenv.GetString("eth_ws_url")),
		EtherscanAPIKey: firstNonEmpty(v.GetString("etherscan-api-key"), dotenv.GetString("etherscan_api_key")),
		EtherscanURL:    v.GetString("etherscan-url"),
		ChainID:         v.GetUint64("chain-id"),
		CacheDir:        v.GetString("cache-dir"),
		LookupRetries:   v.GetInt("lookup-retries"),
		LookupBackoff:   v.GetDuration("lookup-backoff"),
		LookupTimeout:   v.GetDuration("lookup-timeout"),
		SeenSize:        v.GetInt("seen-size"),
		Operations:      getStringSlice(v, "operations"),
		Sinks:           getStringSlice(v, "sinks"),
		Out:             v.GetString("out"),
		Errors:          v.GetString("errors"),
		PGDSN:           v.GetString("pg-dsn"),
		KafkaBrokers:    getStringSlice(v, "kafka-brokers"),
		KafkaTopic:      v.GetString("kafka-topic"),
		NATSURL:         v.GetString("nats-url"),
		NATSSubject:     v.GetString("nats-subject"),
		LogLevel:        v.GetString("log-level"),
		Factories:       DefaultFactories(),
		Routers:         DefaultRouters(),
	}

	if v.IsSet("factories") {
		cfg.Factories = nil
		if err := v.UnmarshalKey("factories", &cfg.Factories); err != nil {
			return Config{}, fmt.Errorf("decode factories: %w", err)
		}
	}
	if v.IsSet("routers") {
		cfg.Routers = nil
		if err := v.UnmarshalKey("routers", &cfg.Routers); err != nil {
			return Config{}, fmt.Errorf("decode routers: %w", err)
		}
	}

	return cfg, nil
}

// RequireStream checks the values the streaming pump cannot start without.
func (c Config) RequireStream() error {
	if c.WSURL == "" {
		return errors.New("ws url is required (ETH_WS_URL or --ws-url)")
	}
	if c.EtherscanAPIKey == "" {
		return errors.New("etherscan api key is required (ETHERSCAN_API_KEY or --etherscan-api-key)")
	}
	return nil
}

// Seeds converts the configured entries into registry seeds.
func (c Config) Seeds() (registry.Seeds, error) {
	var seeds registry.Seeds
	for _, entry := range c.Factories {
		address, err := registry.ParseAddress(entry.Address)
		if err != nil {
			return registry.Seeds{}, fmt.Errorf("factory %q: %w", entry.Name, err)
		}
		seeds.Factories = append(seeds.Factories, registry.FactorySeed{
			Address: address,
			Name:    entry.Name,
			Version: entry.Version,
		})
	}
	for _, entry := range c.Routers {
		address, err := registry.ParseAddress(entry.Address)
		if err != nil {
			return registry.Seeds{}, fmt.Errorf("router %q: %w", entry.Name, err)
		}
		seed := registry.RouterSeed{
			Address: address,
			Name:    entry.Name,
			Version: entry.Version,
		}
		for _, raw := range entry.Factories {
			factory, err := registry.ParseAddress(raw)
			if err != nil {
				return registry.Seeds{}, fmt.Errorf("router %q factory: %w", entry.Name, err)
			}
			seed.Factories = append(seed.Factories, factory)
		}
		seeds.Routers = append(seeds.Routers, seed)
	}
	return seeds, seeds.Validate()
}

func readDotenv(path string) (*viper.Viper, error) {
	dv := viper.New()
	if path == "" {
		return dv, nil
	}
	dv.SetConfigFile(path)
	dv.SetConfigType("env")
	if err := dv.ReadInConfig(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return dv, nil
		}
		return nil, fmt.Errorf("read env file: %w", err)
	}
	return dv, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

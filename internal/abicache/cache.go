package abicache

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"mempoolScope/internal/retry"
)

// Fetcher resolves raw interface JSON for an address over the network.
type Fetcher interface {
	FetchInterface(ctx context.Context, address common.Address) ([]byte, error)
}

// Config controls the cache directory and upstream retry policy.
type Config struct {
	Dir          string
	MaxRetries   int
	RetryBackoff time.Duration
	MaxBackoff   time.Duration
	// Retryable classifies upstream errors; nil retries every failure.
	Retryable func(error) bool
}

// Cache resolves contract interfaces by address, persisting every upstream
// result so an address is fetched at most once.
type Cache struct {
	cfg     Config
	store   *FileStore
	fetcher Fetcher
	logger  *zap.Logger

	group singleflight.Group

	mu   sync.RWMutex
	memo map[common.Address]*Interface
}

// New builds a Cache backed by a FileStore in cfg.Dir.
func New(cfg Config, fetcher Fetcher, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Dir == "" {
		cfg.Dir = ".cache"
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Second
	}
	return &Cache{
		cfg:     cfg,
		store:   NewFileStore(cfg.Dir),
		fetcher: fetcher,
		logger:  logger,
		memo:    make(map[common.Address]*Interface),
	}
}

// Store exposes the durable store backing the cache.
func (c *Cache) Store() *FileStore {
	return c.store
}

// Resolve returns the interface for address, reading the durable store first and
// calling the lookup service only for addresses that have no record yet.
func (c *Cache) Resolve(ctx context.Context, address common.Address) (*Interface, error) {
	if iface, ok := c.cached(address); ok {
		return iface, nil
	}

	key := strings.ToLower(address.Hex())
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if iface, ok := c.cached(address); ok {
			return iface, nil
		}
		iface, err := c.load(ctx, address)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.memo[address] = iface
		c.mu.Unlock()
		return iface, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Interface), nil
}

func (c *Cache) cached(address common.Address) (*Interface, bool) {
	c.mu.RLock()
	iface, ok := c.memo[address]
	c.mu.RUnlock()
	return iface, ok
}

func (c *Cache) load(ctx context.Context, address common.Address) (*Interface, error) {
	raw, ok, err := c.store.Get(address)
	if err != nil {
		c.logger.Warn("interface record unreadable", zap.String("address", address.Hex()), zap.Error(err))
	}
	if ok {
		c.logger.Debug("using cached interface", zap.String("address", address.Hex()))
		return Parse(address, raw, "cached")
	}

	if c.fetcher == nil {
		return nil, &LookupError{Address: address, Err: errNoFetcher}
	}

	err = retry.Do(ctx, retry.Policy{
		MaxRetries: c.cfg.MaxRetries,
		BaseDelay:  c.cfg.RetryBackoff,
		MaxDelay:   c.cfg.MaxBackoff,
		Retryable:  c.cfg.Retryable,
	}, func(ctx context.Context) error {
		var err error
		raw, err = c.fetcher.FetchInterface(ctx, address)
		if err != nil {
			c.logger.Warn("interface lookup failed", zap.String("address", address.Hex()), zap.Error(err))
		}
		return err
	})
	if err != nil {
		return nil, &LookupError{Address: address, Err: err}
	}

	iface, err := Parse(address, raw, "fetched")
	if err != nil {
		return nil, err
	}

	c.logger.Debug("caching interface", zap.String("address", address.Hex()), zap.String("path", c.store.Path(address)))
	stored, err := c.store.Put(address, raw)
	if err != nil {
		c.logger.Warn("persist interface failed", zap.String("address", address.Hex()), zap.Error(err))
		return iface, nil
	}
	if !bytes.Equal(stored, raw) {
		// first writer wins
		return Parse(address, stored, "cached")
	}
	return iface, nil
}

package watcher

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"

	"mempoolScope/internal/dex"
	"mempoolScope/internal/model"
	"mempoolScope/internal/storage"
)

// Feed announces pending transaction hashes and serves their bodies.
type Feed interface {
	SubscribePendingTransactions(ctx context.Context, ch chan<- common.Hash) (ethereum.Subscription, error)
	// PendingTransaction returns nil without error when the body is gone.
	PendingTransaction(ctx context.Context, hash common.Hash) (*model.PendingTransaction, error)
}

// RunConfig holds runtime settings for the pump.
type RunConfig struct {
	SeenSize   int
	BufferSize int
}

// Stats counts what the pump saw.
type Stats struct {
	Announced       uint64
	Duplicate       uint64
	FetchFailed     uint64
	Missing         uint64
	Creation        uint64
	UnknownRouter   uint64
	ShortInput      uint64
	UnknownSelector uint64
	Matched         uint64
	Failed          uint64
}

// Runner pumps pending transactions from a feed through the classifier into a sink.
type Runner struct {
	cfg        RunConfig
	feed       Feed
	classifier *dex.Classifier
	sink       storage.Sink
	logger     *zap.Logger
	seen       *lru.Cache
	stats      Stats
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, feed Feed, classifier *dex.Classifier, sink storage.Sink, logger *zap.Logger) (*Runner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SeenSize <= 0 {
		cfg.SeenSize = 65536
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1024
	}
	seen, err := lru.New(cfg.SeenSize)
	if err != nil {
		return nil, fmt.Errorf("create seen cache: %w", err)
	}
	return &Runner{
		cfg:        cfg,
		feed:       feed,
		classifier: classifier,
		sink:       sink,
		logger:     logger,
		seen:       seen,
	}, nil
}

// Run consumes the feed until it ends, fails, or ctx is cancelled. Feed
// failures come back as *FeedError; sink failures are returned as is.
func (r *Runner) Run(ctx context.Context) error {
	if r.feed == nil {
		return fmt.Errorf("feed is nil")
	}
	if r.classifier == nil {
		return fmt.Errorf("classifier is nil")
	}
	if r.sink == nil {
		return fmt.Errorf("sink is nil")
	}

	hashes := make(chan common.Hash, r.cfg.BufferSize)
	sub, err := r.feed.SubscribePendingTransactions(ctx, hashes)
	if err != nil {
		return &FeedError{Err: err}
	}
	defer sub.Unsubscribe()
	defer r.logStats()

	r.logger.Info("watching pending transactions")

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-sub.Err():
			if err != nil {
				return &FeedError{Err: err}
			}
			r.logger.Info("feed ended")
			return nil
		case hash, ok := <-hashes:
			if !ok {
				r.logger.Info("feed ended")
				return nil
			}
			if err := r.handle(ctx, hash); err != nil {
				return err
			}
		}
	}
}

// Stats returns the counters collected so far. It must not race with Run.
func (r *Runner) Stats() Stats {
	return r.stats
}

func (r *Runner) handle(ctx context.Context, hash common.Hash) error {
	r.stats.Announced++
	if r.seen.Contains(hash) {
		r.stats.Duplicate++
		return nil
	}

	tx, err := r.feed.PendingTransaction(ctx, hash)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		r.stats.FetchFailed++
		r.logger.Warn("fetch pending transaction failed", zap.String("tx_hash", hash.Hex()), zap.Error(err))
		return nil
	}
	if tx == nil {
		// dropped or replaced before we asked
		r.stats.Missing++
		return nil
	}
	r.seen.Add(hash, struct{}{})

	result := r.classifier.Classify(*tx)
	switch result.Outcome {
	case dex.OutcomeContractCreation:
		r.stats.Creation++
	case dex.OutcomeUnknownRouter:
		r.stats.UnknownRouter++
	case dex.OutcomeShortInput:
		r.stats.ShortInput++
	case dex.OutcomeUnknownSelector:
		r.stats.UnknownSelector++
	case dex.OutcomeDecodeFailed:
		r.stats.Failed++
		r.logger.Warn("decode failed",
			zap.String("tx_hash", tx.Hash.Hex()),
			zap.String("router", result.Router.Name),
			zap.Error(result.Err),
		)
		if err := r.sink.PutDecodeError(ctx, r.classifier.DecodeErrorRecord(*tx, result)); err != nil {
			return fmt.Errorf("store decode error: %w", err)
		}
	case dex.OutcomeMatched:
		r.stats.Matched++
		if err := r.sink.PutObservation(ctx, *result.Observation); err != nil {
			return fmt.Errorf("store observation: %w", err)
		}
	}
	return nil
}

func (r *Runner) logStats() {
	s := r.stats
	r.logger.Info("watch stopped",
		zap.Uint64("total", s.Announced),
		zap.Uint64("duplicate", s.Duplicate),
		zap.Uint64("fetch_failed", s.FetchFailed),
		zap.Uint64("missing", s.Missing),
		zap.Uint64("creation", s.Creation),
		zap.Uint64("unknown_router", s.UnknownRouter),
		zap.Uint64("short_input", s.ShortInput),
		zap.Uint64("unknown_selector", s.UnknownSelector),
		zap.Uint64("matched", s.Matched),
		zap.Uint64("failed", s.Failed),
	)
}

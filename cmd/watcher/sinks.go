package main

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"mempoolScope/internal/config"
	"mempoolScope/internal/storage"
	kafkasink "mempoolScope/internal/storage/kafka"
	natssink "mempoolScope/internal/storage/nats"
	"mempoolScope/internal/storage/postgres"
)

// buildSink opens every configured sink. A failure closes the sinks already opened.
func buildSink(ctx context.Context, cfg config.Config, logger *zap.Logger) (storage.Sink, error) {
	names := cfg.Sinks
	if len(names) == 0 {
		names = []string{"log"}
	}

	var sinks storage.Multi
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}

		sink, err := openSink(ctx, name, cfg, logger)
		if err != nil {
			_ = sinks.Close()
			return nil, fmt.Errorf("open %s sink: %w", name, err)
		}
		sinks = append(sinks, sink)
	}

	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return sinks, nil
}

func openSink(ctx context.Context, name string, cfg config.Config, logger *zap.Logger) (storage.Sink, error) {
	switch name {
	case "log":
		return storage.NewLogSink(logger), nil
	case "jsonl":
		return storage.NewJsonlStorage(cfg.Out, cfg.Errors), nil
	case "postgres":
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		return store, nil
	case "kafka":
		return kafkasink.NewSink(cfg.KafkaBrokers, cfg.KafkaTopic, nil)
	case "nats":
		return natssink.NewSink(cfg.NATSURL, cfg.NATSSubject, logger)
	default:
		return nil, fmt.Errorf("unknown sink %q", name)
	}
}

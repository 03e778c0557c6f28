package storage

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"mempoolScope/internal/model"
)

// LogSink writes records as structured log lines.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) PutObservation(_ context.Context, obs model.Observation) error {
	fields := []zap.Field{
		zap.String("router", obs.RouterName),
		zap.String("router_address", obs.RouterAddress),
		zap.String("operation", obs.Operation),
		zap.String("direction", obs.Direction),
		zap.String("tx_hash", obs.TxHash),
	}
	if obs.From != "" {
		fields = append(fields, zap.String("from", obs.From))
	}
	fields = append(fields, zap.String("value", obs.Value))
	for _, p := range obs.Parameters {
		fields = append(fields, zap.String("param."+p.Name, p.Value))
	}
	s.logger.Info("swap detected", fields...)
	return nil
}

func (s *LogSink) PutDecodeError(_ context.Context, record model.DecodeError) error {
	s.logger.Warn("decode failed",
		zap.String("router", record.RouterName),
		zap.String("operation", record.Operation),
		zap.String("selector", record.Selector),
		zap.String("tx_hash", record.TxHash),
		zap.Int("input_bytes", len(strings.TrimPrefix(record.Input, "0x"))/2),
		zap.String("error", record.Error),
	)
	return nil
}

func (s *LogSink) Close() error {
	_ = s.logger.Sync()
	return nil
}

package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"mempoolScope/internal/model"
)

const (
	SuffixObservation = "observation"
	SuffixDecodeError = "decode_error"
)

// Sink publishes records as JSON on <prefix>.observation and <prefix>.decode_error.
type Sink struct {
	nc     *nats.Conn
	prefix string
	logger *zap.Logger
}

func NewSink(url, prefix string, logger *zap.Logger) (*Sink, error) {
	if url == "" {
		return nil, errors.New("nats url is required")
	}
	if prefix == "" {
		return nil, errors.New("nats subject prefix is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []nats.Option{
		nats.Name("mempool-watcher"),
		nats.Timeout(5 * time.Second),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	logger.Info("connected to nats", zap.String("url", url), zap.String("prefix", prefix))
	return &Sink{nc: nc, prefix: prefix, logger: logger}, nil
}

// Subject returns the subject records of kind suffix are published on.
func (s *Sink) Subject(suffix string) string {
	return s.prefix + "." + suffix
}

func (s *Sink) PutObservation(_ context.Context, obs model.Observation) error {
	return s.publish(SuffixObservation, obs)
}

func (s *Sink) PutDecodeError(_ context.Context, record model.DecodeError) error {
	return s.publish(SuffixDecodeError, record)
}

func (s *Sink) publish(suffix string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := s.nc.Publish(s.Subject(suffix), data); err != nil {
		return fmt.Errorf("nats publish %s: %w", suffix, err)
	}
	return nil
}

// Close flushes pending publishes before closing the connection.
func (s *Sink) Close() error {
	if s.nc == nil || s.nc.Status() == nats.CLOSED {
		return nil
	}
	defer s.nc.Close()
	if err := s.nc.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("flush nats connection: %w", err)
	}
	s.logger.Info("nats connection closed")
	return nil
}

package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"mempoolScope/internal/model"
)

const (
	TypeObservation = "observation"
	TypeDecodeError = "decode_error"
)

// Envelope wraps every record published to the topic.
type Envelope struct {
	Type    string          `json:"type"`
	TS      int64           `json:"ts"`
	Payload json.RawMessage `json:"payload"`
}

// Sink publishes records to a Kafka topic keyed by transaction hash, so every
// record for one transaction lands on the same partition.
type Sink struct {
	topic string
	p     sarama.SyncProducer
	now   func() time.Time
}

func NewSink(brokers []string, topic string, cfg *sarama.Config) (*Sink, error) {
	if topic == "" {
		return nil, errors.New("kafka topic is required")
	}
	if len(brokers) == 0 {
		return nil, errors.New("no kafka brokers")
	}
	if cfg == nil {
		cfg = sarama.NewConfig()
		cfg.Producer.RequiredAcks = sarama.WaitForAll
		cfg.Producer.Retry.Max = 10
		cfg.Producer.Retry.Backoff = 200 * time.Millisecond
	}
	// SyncProducer needs both
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true

	p, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	return NewSinkWithProducer(topic, p), nil
}

// NewSinkWithProducer wraps an existing producer.
func NewSinkWithProducer(topic string, p sarama.SyncProducer) *Sink {
	return &Sink{topic: topic, p: p, now: time.Now}
}

func (s *Sink) Close() error {
	if s.p != nil {
		return s.p.Close()
	}
	return nil
}

func (s *Sink) PutObservation(ctx context.Context, obs model.Observation) error {
	return s.emit(ctx, TypeObservation, obs.TxHash, obs)
}

func (s *Sink) PutDecodeError(ctx context.Context, record model.DecodeError) error {
	return s.emit(ctx, TypeDecodeError, record.TxHash, record)
}

func (s *Sink) emit(ctx context.Context, typ, key string, v interface{}) error {
	// SyncProducer takes no context
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b, err := json.Marshal(Envelope{
		Type:    typ,
		TS:      s.now().UnixMilli(),
		Payload: payload,
	})
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(b),
	}
	if _, _, err := s.p.SendMessage(msg); err != nil {
		return fmt.Errorf("kafka emit %s: %w", typ, err)
	}
	return nil
}

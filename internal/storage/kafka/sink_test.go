package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"

	"mempoolScope/internal/model"
)

func TestSinkPublishesEnvelope(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var env Envelope
		if err := json.Unmarshal(val, &env); err != nil {
			return err
		}
		if env.Type != TypeObservation {
			return fmt.Errorf("unexpected type %q", env.Type)
		}
		var obs model.Observation
		if err := json.Unmarshal(env.Payload, &obs); err != nil {
			return err
		}
		if obs.TxHash != "0xabc" || obs.Operation != "swapExactETHForTokens" {
			return fmt.Errorf("unexpected payload %+v", obs)
		}
		return nil
	})
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var env Envelope
		if err := json.Unmarshal(val, &env); err != nil {
			return err
		}
		if env.Type != TypeDecodeError {
			return fmt.Errorf("unexpected type %q", env.Type)
		}
		return nil
	})

	sink := NewSinkWithProducer("pending-swaps", producer)
	ctx := context.Background()
	if err := sink.PutObservation(ctx, model.Observation{TxHash: "0xabc", Operation: "swapExactETHForTokens"}); err != nil {
		t.Fatalf("put observation: %v", err)
	}
	if err := sink.PutDecodeError(ctx, model.DecodeError{TxHash: "0xdef"}); err != nil {
		t.Fatalf("put decode error: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestSinkSendFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	sink := NewSinkWithProducer("pending-swaps", producer)
	err := sink.PutObservation(context.Background(), model.Observation{TxHash: "0xabc"})
	if !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Fatalf("expected broker error, got %v", err)
	}
	_ = sink.Close()
}

func TestSinkCancelledContext(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	sink := NewSinkWithProducer("pending-swaps", producer)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sink.PutObservation(ctx, model.Observation{TxHash: "0xabc"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
	_ = sink.Close()
}

func TestNewSinkValidation(t *testing.T) {
	if _, err := NewSink([]string{"localhost:9092"}, "", nil); err == nil {
		t.Fatalf("expected topic error")
	}
	if _, err := NewSink(nil, "pending-swaps", nil); err == nil {
		t.Fatalf("expected brokers error")
	}
}

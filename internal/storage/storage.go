package storage

import (
	"context"
	"errors"

	"mempoolScope/internal/model"
)

// Sink receives detected swaps and decode failures.
type Sink interface {
	PutObservation(ctx context.Context, obs model.Observation) error
	PutDecodeError(ctx context.Context, record model.DecodeError) error
	Close() error
}

// Multi fans every record out to each sink in order. The first failing sink
// stops the fan-out for that record.
type Multi []Sink

func (m Multi) PutObservation(ctx context.Context, obs model.Observation) error {
	for _, sink := range m {
		if err := sink.PutObservation(ctx, obs); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) PutDecodeError(ctx context.Context, record model.DecodeError) error {
	for _, sink := range m {
		if err := sink.PutDecodeError(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink and joins their errors.
func (m Multi) Close() error {
	var errs []error
	for _, sink := range m {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

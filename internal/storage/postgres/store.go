package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mempoolScope/internal/model"
)

// Schema creates the tables written by Store.
const Schema = `
CREATE TABLE IF NOT EXISTS pending_swaps (
	tx_hash        TEXT        NOT NULL,
	operation      TEXT        NOT NULL,
	router_address TEXT        NOT NULL,
	router_name    TEXT        NOT NULL,
	router_version SMALLINT    NOT NULL,
	selector       TEXT        NOT NULL,
	direction      TEXT        NOT NULL,
	sender         TEXT,
	value          NUMERIC     NOT NULL,
	parameters     JSONB       NOT NULL,
	path           TEXT[],
	deadline       NUMERIC,
	detected_at    TIMESTAMPTZ NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (tx_hash, operation)
);

CREATE TABLE IF NOT EXISTS decode_errors (
	tx_hash        TEXT        PRIMARY KEY,
	router_address TEXT        NOT NULL,
	router_name    TEXT        NOT NULL,
	operation      TEXT        NOT NULL,
	selector       TEXT        NOT NULL,
	input          TEXT        NOT NULL,
	error          TEXT        NOT NULL,
	detected_at    TIMESTAMPTZ NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store provides Postgres persistence for observations.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// EnsureSchema creates missing tables.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, Schema)
	return err
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *Store) PutObservation(ctx context.Context, obs model.Observation) error {
	return s.UpsertObservations(ctx, []model.Observation{obs})
}

func (s *Store) PutDecodeError(ctx context.Context, record model.DecodeError) error {
	return s.UpsertDecodeErrors(ctx, []model.DecodeError{record})
}

// UpsertObservations inserts observations; a re-announced transaction keeps its
// earliest detection time.
func (s *Store) UpsertObservations(ctx context.Context, observations []model.Observation) error {
	if len(observations) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, obs := range observations {
		params, err := json.Marshal(obs.Parameters)
		if err != nil {
			return fmt.Errorf("marshal parameters: %w", err)
		}
		batch.Queue(`
			INSERT INTO pending_swaps (
				tx_hash, operation, router_address, router_name, router_version, selector, direction,
				sender, value, parameters, path, deadline, detected_at, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,NULLIF($8,''),$9::numeric,$10,$11,NULLIF($12,'')::numeric,$13::timestamptz,now(),now())
			ON CONFLICT (tx_hash, operation)
			DO UPDATE SET
				detected_at = LEAST(pending_swaps.detected_at, EXCLUDED.detected_at),
				updated_at = now()
		`,
			obs.TxHash,
			obs.Operation,
			obs.RouterAddress,
			obs.RouterName,
			int16(obs.RouterVersion),
			obs.Selector,
			obs.Direction,
			obs.From,
			obs.Value,
			params,
			obs.Swap.Path,
			obs.Swap.Deadline,
			obs.DetectedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range observations {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// UpsertDecodeErrors records decode failures once per transaction.
func (s *Store) UpsertDecodeErrors(ctx context.Context, records []model.DecodeError) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(`
			INSERT INTO decode_errors (
				tx_hash, router_address, router_name, operation, selector, input, error, detected_at, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8::timestamptz,now())
			ON CONFLICT (tx_hash) DO NOTHING
		`,
			r.TxHash,
			r.RouterAddress,
			r.RouterName,
			r.Operation,
			r.Selector,
			r.Input,
			r.Error,
			r.DetectedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range records {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

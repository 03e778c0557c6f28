package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"mempoolScope/internal/model"
)

func sampleObservation(hash string) model.Observation {
	return model.Observation{
		RouterName:    "Uniswap V2: Router 2",
		RouterAddress: "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D",
		RouterVersion: 2,
		Operation:     "swapExactETHForTokens",
		Selector:      "0x7ff36ab5",
		Direction:     "eth_to_token",
		Parameters: []model.Param{
			{Name: "amountOutMin", Type: "uint256", Value: "1"},
		},
		TxHash: hash,
		Value:  "0",
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	return lines
}

func TestJsonlStorage(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "data", "swaps.jsonl")
	errs := filepath.Join(dir, "data", "errors.jsonl")
	sink := NewJsonlStorage(out, errs)
	ctx := context.Background()

	if err := sink.PutObservation(ctx, sampleObservation("0x01")); err != nil {
		t.Fatalf("put observation: %v", err)
	}
	if err := sink.PutObservation(ctx, sampleObservation("0x02")); err != nil {
		t.Fatalf("put observation: %v", err)
	}
	if err := sink.PutDecodeError(ctx, model.DecodeError{TxHash: "0x03", Error: "boom"}); err != nil {
		t.Fatalf("put decode error: %v", err)
	}

	lines := readLines(t, out)
	if len(lines) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(lines))
	}
	var decoded model.Observation
	if err := json.Unmarshal([]byte(lines[1]), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.TxHash != "0x02" || decoded.Parameters[0].Name != "amountOutMin" {
		t.Fatalf("unexpected record: %+v", decoded)
	}

	errLines := readLines(t, errs)
	if len(errLines) != 1 {
		t.Fatalf("expected 1 decode error, got %d", len(errLines))
	}
}

func TestJsonlStorageWithoutErrorsFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "swaps.jsonl")
	sink := NewJsonlStorage(out, "")
	if err := sink.PutDecodeError(context.Background(), model.DecodeError{TxHash: "0x01"}); err != nil {
		t.Fatalf("put decode error: %v", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("observation file should not be touched")
	}
}

func TestLogSink(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sink := NewLogSink(zap.New(core))

	if err := sink.PutObservation(context.Background(), sampleObservation("0xaa")); err != nil {
		t.Fatalf("put observation: %v", err)
	}
	entries := logs.FilterMessage("swap detected").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 swap log, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["operation"] != "swapExactETHForTokens" || fields["tx_hash"] != "0xaa" {
		t.Fatalf("unexpected fields: %v", fields)
	}
	if fields["param.amountOutMin"] != "1" {
		t.Fatalf("expected parameter field, got %v", fields)
	}
}

type recordingSink struct {
	observations []model.Observation
	failures     []model.DecodeError
	err          error
	closed       bool
}

func (s *recordingSink) PutObservation(_ context.Context, obs model.Observation) error {
	if s.err != nil {
		return s.err
	}
	s.observations = append(s.observations, obs)
	return nil
}

func (s *recordingSink) PutDecodeError(_ context.Context, record model.DecodeError) error {
	if s.err != nil {
		return s.err
	}
	s.failures = append(s.failures, record)
	return nil
}

func (s *recordingSink) Close() error {
	s.closed = true
	return s.err
}

func TestMulti(t *testing.T) {
	a := &recordingSink{}
	b := &recordingSink{}
	multi := Multi{a, b}

	if err := multi.PutObservation(context.Background(), sampleObservation("0x01")); err != nil {
		t.Fatalf("put observation: %v", err)
	}
	if err := multi.PutDecodeError(context.Background(), model.DecodeError{TxHash: "0x02"}); err != nil {
		t.Fatalf("put decode error: %v", err)
	}
	if len(a.observations) != 1 || len(b.observations) != 1 || len(b.failures) != 1 {
		t.Fatalf("records not fanned out")
	}

	boom := errors.New("boom")
	failing := Multi{&recordingSink{err: boom}, b}
	if err := failing.PutObservation(context.Background(), sampleObservation("0x03")); !errors.Is(err, boom) {
		t.Fatalf("expected sink error, got %v", err)
	}
	if len(b.observations) != 1 {
		t.Fatalf("fan-out should stop at the failing sink")
	}
	if err := failing.Close(); !errors.Is(err, boom) {
		t.Fatalf("expected close error, got %v", err)
	}
	if !b.closed {
		t.Fatalf("every sink should be closed")
	}
}

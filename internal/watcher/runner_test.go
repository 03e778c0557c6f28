package watcher

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"mempoolScope/internal/abicache"
	"mempoolScope/internal/dex"
	"mempoolScope/internal/model"
	"mempoolScope/internal/registry"
)

var (
	routerAddress  = common.HexToAddress("0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D")
	factoryAddress = common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f")
)

type fakeSubscription struct {
	err  chan error
	once sync.Once
}

func (s *fakeSubscription) Err() <-chan error { return s.err }

func (s *fakeSubscription) Unsubscribe() {
	s.once.Do(func() { close(s.err) })
}

type fakeFeed struct {
	hashes       []common.Hash
	bodies       map[common.Hash]*model.PendingTransaction
	fetchErr     map[common.Hash]error
	subscribeErr error
	subErr       error
	hold         bool
}

func (f *fakeFeed) SubscribePendingTransactions(_ context.Context, ch chan<- common.Hash) (ethereum.Subscription, error) {
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	sub := &fakeSubscription{err: make(chan error, 1)}
	if f.subErr != nil {
		sub.err <- f.subErr
		return sub, nil
	}
	for _, hash := range f.hashes {
		ch <- hash
	}
	if !f.hold {
		close(ch)
	}
	return sub, nil
}

func (f *fakeFeed) PendingTransaction(_ context.Context, hash common.Hash) (*model.PendingTransaction, error) {
	if err := f.fetchErr[hash]; err != nil {
		return nil, err
	}
	return f.bodies[hash], nil
}

type memorySink struct {
	observations []model.Observation
	failures     []model.DecodeError
	err          error
}

func (s *memorySink) PutObservation(_ context.Context, obs model.Observation) error {
	if s.err != nil {
		return s.err
	}
	s.observations = append(s.observations, obs)
	return nil
}

func (s *memorySink) PutDecodeError(_ context.Context, record model.DecodeError) error {
	if s.err != nil {
		return s.err
	}
	s.failures = append(s.failures, record)
	return nil
}

func (s *memorySink) Close() error { return nil }

type staticResolver struct{}

func (staticResolver) Resolve(_ context.Context, address common.Address) (*abicache.Interface, error) {
	if address == routerAddress {
		return abicache.Parse(address, []byte(dex.RouterV2ABIJSON), "test")
	}
	return abicache.Parse(address, []byte(`[]`), "test")
}

func newClassifier(t *testing.T) *dex.Classifier {
	t.Helper()
	reg, err := registry.Build(context.Background(), registry.Seeds{
		Factories: []registry.FactorySeed{{Address: factoryAddress, Name: "Uniswap V2", Version: 2}},
		Routers: []registry.RouterSeed{{
			Address:   routerAddress,
			Name:      "Uniswap V2: Router 2",
			Version:   2,
			Factories: []common.Address{factoryAddress},
		}},
	}, staticResolver{}, zap.NewNop())
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	ops, err := dex.SelectOperations(nil)
	if err != nil {
		t.Fatalf("select operations: %v", err)
	}
	return dex.NewClassifier(reg, ops, zap.NewNop())
}

func swapInput(t *testing.T) []byte {
	t.Helper()
	routerABI, err := dex.RouterV2ABI()
	if err != nil {
		t.Fatalf("router abi: %v", err)
	}
	data, err := routerABI.Pack("swapExactETHForTokens",
		big.NewInt(5),
		[]common.Address{common.HexToAddress("0x01"), common.HexToAddress("0x02")},
		common.HexToAddress("0x03"),
		big.NewInt(1700000000),
	)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	return data
}

func newTestRunner(t *testing.T, feed Feed, sink *memorySink) *Runner {
	t.Helper()
	runner, err := NewRunner(RunConfig{SeenSize: 16}, feed, newClassifier(t), sink, zap.NewNop())
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	return runner
}

func TestRunIsolatesFailures(t *testing.T) {
	router := routerAddress
	other := common.HexToAddress("0x9999999999999999999999999999999999999999")
	input := swapInput(t)

	malformed := common.HexToHash("0x01")
	missing := common.HexToHash("0x02")
	valid := common.HexToHash("0x03")
	creation := common.HexToHash("0x04")
	elsewhere := common.HexToHash("0x05")
	broken := common.HexToHash("0x06")
	second := common.HexToHash("0x07")

	feed := &fakeFeed{
		hashes: []common.Hash{malformed, missing, valid, creation, elsewhere, valid, broken, second},
		bodies: map[common.Hash]*model.PendingTransaction{
			malformed: {Hash: malformed, To: &router, Input: input[:40]},
			valid:     {Hash: valid, To: &router, Input: input, Value: big.NewInt(1)},
			creation:  {Hash: creation, Input: input},
			elsewhere: {Hash: elsewhere, To: &other, Input: input},
			second:    {Hash: second, To: &router, Input: input},
		},
		fetchErr: map[common.Hash]error{broken: errors.New("connection reset")},
	}
	sink := &memorySink{}
	runner := newTestRunner(t, feed, sink)

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(sink.observations) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(sink.observations))
	}
	if sink.observations[0].TxHash != valid.Hex() || sink.observations[1].TxHash != second.Hex() {
		t.Fatalf("observations out of order")
	}
	if len(sink.failures) != 1 || sink.failures[0].TxHash != malformed.Hex() {
		t.Fatalf("expected 1 decode error for the malformed call, got %+v", sink.failures)
	}

	stats := runner.Stats()
	if stats.Announced != 8 || stats.Duplicate != 1 || stats.Missing != 1 || stats.FetchFailed != 1 {
		t.Fatalf("unexpected feed stats: %+v", stats)
	}
	if stats.Matched != 2 || stats.Failed != 1 || stats.Creation != 1 || stats.UnknownRouter != 1 {
		t.Fatalf("unexpected classification stats: %+v", stats)
	}
}

func TestRunFeedError(t *testing.T) {
	down := errors.New("websocket closed")
	runner := newTestRunner(t, &fakeFeed{subErr: down}, &memorySink{})

	err := runner.Run(context.Background())
	var feedErr *FeedError
	if !errors.As(err, &feedErr) || !errors.Is(err, down) {
		t.Fatalf("expected *FeedError wrapping the cause, got %v", err)
	}
}

func TestRunSubscribeError(t *testing.T) {
	runner := newTestRunner(t, &fakeFeed{subscribeErr: errors.New("notifications not supported")}, &memorySink{})

	var feedErr *FeedError
	if err := runner.Run(context.Background()); !errors.As(err, &feedErr) {
		t.Fatalf("expected *FeedError, got %v", err)
	}
}

func TestRunSinkError(t *testing.T) {
	router := routerAddress
	hash := common.HexToHash("0x01")
	feed := &fakeFeed{
		hashes: []common.Hash{hash},
		bodies: map[common.Hash]*model.PendingTransaction{
			hash: {Hash: hash, To: &router, Input: swapInput(t)},
		},
	}
	full := errors.New("disk full")
	runner := newTestRunner(t, feed, &memorySink{err: full})

	if err := runner.Run(context.Background()); !errors.Is(err, full) {
		t.Fatalf("expected sink error, got %v", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	runner := newTestRunner(t, &fakeFeed{hold: true}, &memorySink{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean stop, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("runner did not stop")
	}
}

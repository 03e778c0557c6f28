package dex

import (
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"mempoolScope/internal/model"
	"mempoolScope/internal/registry"
)

// Outcome is the classification verdict for one transaction.
type Outcome int

const (
	// OutcomeContractCreation: the transaction has no destination.
	OutcomeContractCreation Outcome = iota
	// OutcomeUnknownRouter: the destination is not a registered router.
	OutcomeUnknownRouter
	// OutcomeShortInput: the router matched but the input cannot hold a selector.
	OutcomeShortInput
	// OutcomeUnknownSelector: the router matched but the call is not of interest.
	OutcomeUnknownSelector
	OutcomeMatched
	OutcomeDecodeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeContractCreation:
		return "contract_creation"
	case OutcomeUnknownRouter:
		return "unknown_router"
	case OutcomeShortInput:
		return "short_input"
	case OutcomeUnknownSelector:
		return "unknown_selector"
	case OutcomeMatched:
		return "matched"
	case OutcomeDecodeFailed:
		return "decode_failed"
	default:
		return "unknown"
	}
}

// NoMatch reports whether the transaction is of no interest.
func (o Outcome) NoMatch() bool {
	return o != OutcomeMatched && o != OutcomeDecodeFailed
}

// Result carries the outcome and, for matches, the router and operation involved.
type Result struct {
	Outcome     Outcome
	Router      *registry.Router
	Operation   *Operation
	Observation *model.Observation
	// Err is a *DecodeError when Outcome is OutcomeDecodeFailed.
	Err error
}

// Classifier matches pending transactions against registered routers and decodes
// calls to the operations of interest.
type Classifier struct {
	registry *registry.Registry
	watched  map[common.Address]map[[4]byte]Operation
	logger   *zap.Logger
	now      func() time.Time
}

// NewClassifier binds ops to every router whose interface declares them with the
// same schema. Declarations that differ from the operation's schema are skipped.
func NewClassifier(reg *registry.Registry, ops []Operation, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}

	watched := make(map[common.Address]map[[4]byte]Operation, reg.Len())
	for _, router := range reg.Routers() {
		bySelector := make(map[[4]byte]Operation, len(ops))
		for _, op := range ops {
			method, ok := router.Interface.MethodBySelector(op.Selector)
			if !ok {
				logger.Debug("operation not declared by router",
					zap.String("router", router.Name),
					zap.String("operation", op.Name),
				)
				continue
			}
			if !op.Matches(method) {
				logger.Warn("operation schema mismatch",
					zap.String("router", router.Name),
					zap.String("operation", op.Name),
					zap.String("declared", method.Sig),
				)
				continue
			}
			bySelector[op.Selector] = op
		}
		watched[router.Address] = bySelector
	}

	return &Classifier{
		registry: reg,
		watched:  watched,
		logger:   logger,
		now:      time.Now,
	}
}

// Watched returns the operations bound to the router at address.
func (c *Classifier) Watched(address common.Address) []Operation {
	bySelector := c.watched[address]
	out := make([]Operation, 0, len(bySelector))
	for _, op := range bySelector {
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Classify inspects one pending transaction.
func (c *Classifier) Classify(tx model.PendingTransaction) Result {
	if tx.To == nil {
		c.logger.Debug("contract creation", zap.String("tx_hash", tx.Hash.Hex()))
		return Result{Outcome: OutcomeContractCreation}
	}
	router, ok := c.registry.FindByAddress(*tx.To)
	if !ok {
		return Result{Outcome: OutcomeUnknownRouter}
	}

	if len(tx.Input) < 4 {
		return Result{Outcome: OutcomeShortInput, Router: router}
	}

	var selector [4]byte
	copy(selector[:], tx.Input[:4])
	op, ok := c.watched[router.Address][selector]
	if !ok {
		c.logger.Debug("selector not of interest",
			zap.String("router", router.Name),
			zap.String("selector", hexutil.Encode(selector[:])),
			zap.String("tx_hash", tx.Hash.Hex()),
		)
		return Result{Outcome: OutcomeUnknownSelector, Router: router}
	}

	params, swap, err := op.Decode(tx.Input[4:])
	if err != nil {
		return Result{
			Outcome:   OutcomeDecodeFailed,
			Router:    router,
			Operation: &op,
			Err:       &DecodeError{Operation: op.Name, Err: err},
		}
	}

	return Result{
		Outcome:   OutcomeMatched,
		Router:    router,
		Operation: &op,
		Observation: &model.Observation{
			RouterName:    router.Name,
			RouterAddress: router.Address.Hex(),
			RouterVersion: router.Version,
			Operation:     op.Name,
			Selector:      op.SelectorHex(),
			Direction:     string(op.Direction),
			Parameters:    params,
			Swap:          swap,
			TxHash:        tx.Hash.Hex(),
			From:          fromHex(tx.From),
			Value:         valueString(tx),
			DetectedAt:    c.now().UTC().Format(time.RFC3339Nano),
		},
	}
}

// DecodeErrorRecord builds the persisted record for a failed decode.
func (c *Classifier) DecodeErrorRecord(tx model.PendingTransaction, result Result) model.DecodeError {
	record := model.DecodeError{
		TxHash:     tx.Hash.Hex(),
		Input:      hexutil.Encode(tx.Input),
		DetectedAt: c.now().UTC().Format(time.RFC3339Nano),
	}
	if result.Router != nil {
		record.RouterName = result.Router.Name
		record.RouterAddress = result.Router.Address.Hex()
	}
	if result.Operation != nil {
		record.Operation = result.Operation.Name
		record.Selector = result.Operation.SelectorHex()
	}
	if result.Err != nil {
		record.Error = result.Err.Error()
	}
	return record
}

func fromHex(address common.Address) string {
	if address == (common.Address{}) {
		return ""
	}
	return address.Hex()
}

func valueString(tx model.PendingTransaction) string {
	if tx.Value == nil {
		return "0"
	}
	return tx.Value.String()
}

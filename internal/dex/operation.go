package dex

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"mempoolScope/internal/model"
)

// Direction groups swap operations by what the caller gives up and receives.
type Direction string

const (
	ETHToToken   Direction = "eth_to_token"
	TokenToETH   Direction = "token_to_eth"
	TokenToToken Direction = "token_to_token"
)

// Operation is one swap call of interest with its own fixed argument schema.
type Operation struct {
	Name      string
	Direction Direction
	Signature string
	Selector  [4]byte
	Inputs    abi.Arguments
}

var operationTable = []struct {
	name      string
	direction Direction
}{
	{"swapExactETHForTokens", ETHToToken},
	{"swapETHForExactTokens", ETHToToken},
	{"swapExactETHForTokensSupportingFeeOnTransferTokens", ETHToToken},
	{"swapExactTokensForETH", TokenToETH},
	{"swapTokensForExactETH", TokenToETH},
	{"swapExactTokensForETHSupportingFeeOnTransferTokens", TokenToETH},
	{"swapExactTokensForTokens", TokenToToken},
	{"swapTokensForExactTokens", TokenToToken},
	{"swapExactTokensForTokensSupportingFeeOnTransferTokens", TokenToToken},
}

// Operations returns every known swap operation in table order.
func Operations() ([]Operation, error) {
	routerABI, err := RouterV2ABI()
	if err != nil {
		return nil, fmt.Errorf("parse router abi: %w", err)
	}

	ops := make([]Operation, 0, len(operationTable))
	for _, entry := range operationTable {
		method, ok := routerABI.Methods[entry.name]
		if !ok {
			return nil, fmt.Errorf("router abi missing %s", entry.name)
		}
		op := Operation{
			Name:      entry.name,
			Direction: entry.direction,
			Signature: method.Sig,
			Inputs:    method.Inputs,
		}
		copy(op.Selector[:], method.ID)
		ops = append(ops, op)
	}
	return ops, nil
}

// SelectOperations filters the table by operation name or direction. "all" keeps
// every operation; an empty list keeps the ETH to token group.
func SelectOperations(names []string) ([]Operation, error) {
	all, err := Operations()
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		names = []string{string(ETHToToken)}
	}

	selected := make([]Operation, 0, len(all))
	seen := make(map[string]struct{}, len(all))
	add := func(op Operation) {
		if _, ok := seen[op.Name]; ok {
			return
		}
		seen[op.Name] = struct{}{}
		selected = append(selected, op)
	}

	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		matched := false
		for _, op := range all {
			if name == "all" || name == op.Name || Direction(name) == op.Direction {
				add(op)
				matched = true
			}
		}
		if !matched {
			return nil, fmt.Errorf("unknown operation: %s", name)
		}
	}
	return selected, nil
}

// SelectorHex returns the selector as 0x-prefixed hex.
func (o Operation) SelectorHex() string {
	return hexutil.Encode(o.Selector[:])
}

// Matches reports whether method is this operation: same selector and the same
// ordered input types.
func (o Operation) Matches(method *abi.Method) bool {
	if method == nil || len(method.ID) != 4 {
		return false
	}
	if [4]byte(method.ID) != o.Selector {
		return false
	}
	if len(method.Inputs) != len(o.Inputs) {
		return false
	}
	for i, arg := range method.Inputs {
		if arg.Type.String() != o.Inputs[i].Type.String() {
			return false
		}
	}
	return true
}

// Decode unpacks call arguments (input without the selector) against the
// operation's schema.
func (o Operation) Decode(data []byte) (params []model.Param, swap model.SwapCallData, err error) {
	defer func() {
		// accounts/abi has panicked on hostile offsets in the past
		if r := recover(); r != nil {
			params, swap, err = nil, model.SwapCallData{}, fmt.Errorf("unpack %s: %v", o.Name, r)
		}
	}()

	values, err := o.Inputs.Unpack(data)
	if err != nil {
		return nil, model.SwapCallData{}, fmt.Errorf("unpack %s: %w", o.Name, err)
	}
	if len(values) != len(o.Inputs) {
		return nil, model.SwapCallData{}, fmt.Errorf("unexpected %s values: %d", o.Name, len(values))
	}

	params = make([]model.Param, 0, len(values))
	swap = model.SwapCallData{Path: []string{}}
	for i, arg := range o.Inputs {
		param := model.Param{Name: arg.Name, Type: arg.Type.String()}

		switch arg.Type.T {
		case abi.UintTy:
			amount, err := asBigInt(values[i])
			if err != nil {
				return nil, model.SwapCallData{}, fmt.Errorf("%s: %w", arg.Name, err)
			}
			param.Value = amount.String()
		case abi.AddressTy:
			address, err := asAddress(values[i])
			if err != nil {
				return nil, model.SwapCallData{}, fmt.Errorf("%s: %w", arg.Name, err)
			}
			param.Value = address.Hex()
		case abi.SliceTy:
			path, err := asAddressSlice(values[i])
			if err != nil {
				return nil, model.SwapCallData{}, fmt.Errorf("%s: %w", arg.Name, err)
			}
			hexPath := make([]string, 0, len(path))
			for _, hop := range path {
				hexPath = append(hexPath, hop.Hex())
			}
			param.Value = strings.Join(hexPath, ",")
			swap.Path = hexPath
		default:
			return nil, model.SwapCallData{}, fmt.Errorf("%s: unsupported type %s", arg.Name, arg.Type.String())
		}

		setSwapField(&swap, arg.Name, param.Value)
		params = append(params, param)
	}

	return params, swap, nil
}

func setSwapField(swap *model.SwapCallData, name, value string) {
	switch name {
	case "amountIn":
		swap.AmountIn = value
	case "amountInMax":
		swap.AmountInMax = value
	case "amountOut":
		swap.AmountOut = value
	case "amountOutMin":
		swap.AmountOutMin = value
	case "to":
		swap.To = value
	case "deadline":
		swap.Deadline = value
	}
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asAddressSlice(value interface{}) ([]common.Address, error) {
	switch v := value.(type) {
	case []common.Address:
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported address slice type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

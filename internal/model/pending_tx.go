package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PendingTransaction is the subset of a mempool transaction the classifier needs.
// To is nil for contract-creation transactions.
type PendingTransaction struct {
	Hash     common.Hash
	From     common.Address
	To       *common.Address
	Input    []byte
	Value    *big.Int
	Gas      uint64
	GasPrice *big.Int
	Nonce    uint64
}

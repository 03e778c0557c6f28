package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/ethclient/gethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"mempoolScope/internal/model"
)

// Client wraps go-ethereum RPC and provides the pending-transaction feed.
type Client struct {
	rpcClient  *rpc.Client
	ethClient  *ethclient.Client
	gethClient *gethclient.Client

	mu      sync.RWMutex
	chainID *big.Int
	signer  types.Signer
}

// NewClient creates a new chain client from the RPC URL. Pending-transaction
// subscriptions need a websocket or IPC endpoint.
func NewClient(ctx context.Context, rpcURL string) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}

	return &Client{
		rpcClient:  rpcClient,
		ethClient:  ethclient.NewClient(rpcClient),
		gethClient: gethclient.New(rpcClient),
	}, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// GetChainID returns the chain ID, queried once per client.
func (c *Client) GetChainID(ctx context.Context) (*big.Int, error) {
	c.mu.RLock()
	id := c.chainID
	c.mu.RUnlock()
	if id != nil {
		return new(big.Int).Set(id), nil
	}

	id, err := c.ethClient.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.chainID = id
	c.signer = types.LatestSignerForChainID(id)
	c.mu.Unlock()
	return new(big.Int).Set(id), nil
}

// SubscribePendingTransactions streams the hashes of transactions entering the
// node's pending pool into ch.
func (c *Client) SubscribePendingTransactions(ctx context.Context, ch chan<- common.Hash) (ethereum.Subscription, error) {
	sub, err := c.gethClient.SubscribePendingTransactions(ctx, ch)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// PendingTransaction returns the body of the transaction with hash. It returns
// nil and no error when the node no longer knows the transaction.
func (c *Client) PendingTransaction(ctx context.Context, hash common.Hash) (*model.PendingTransaction, error) {
	tx, _, err := c.ethClient.TransactionByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, nil
		}
		return nil, err
	}

	if _, err := c.GetChainID(ctx); err != nil {
		return nil, fmt.Errorf("get chain id: %w", err)
	}
	c.mu.RLock()
	signer := c.signer
	c.mu.RUnlock()

	from, err := types.Sender(signer, tx)
	if err != nil {
		// body is still classifiable without a sender
		from = common.Address{}
	}

	return &model.PendingTransaction{
		Hash:     tx.Hash(),
		From:     from,
		To:       tx.To(),
		Input:    tx.Data(),
		Value:    tx.Value(),
		Gas:      tx.Gas(),
		GasPrice: tx.GasPrice(),
		Nonce:    tx.Nonce(),
	}, nil
}

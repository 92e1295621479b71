// Package chain hands out JSON-RPC clients for the nodes named in contract-info.json.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/Layr-Labs/chain-indexer/pkg/clients/ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// Backend is the subset of ethclient.Client used for contract calls,
// transaction submission and receipt polling.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend

	ChainID(ctx context.Context) (*big.Int, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
}

var _ Backend = (*ethclient.Client)(nil)

// Pool keeps one client per node URL
type Pool struct {
	logger *zap.Logger

	mu      sync.Mutex
	clients map[string]*ethclient.Client
}

func NewPool(logger *zap.Logger) *Pool {
	return &Pool{
		logger:  logger,
		clients: make(map[string]*ethclient.Client),
	}
}

// Get returns the client for url, dialing it on first use
func (p *Pool) Get(url string) (Backend, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.clients[url]; ok {
		return c, nil
	}

	ethereumClient := ethereum.NewEthereumClient(&ethereum.EthereumClientConfig{
		BaseUrl:   url,
		BlockType: ethereum.BlockType_Latest,
	}, p.logger)

	c, err := ethereumClient.GetEthereumContractCaller()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to node %s: %w", url, err)
	}
	p.logger.Sugar().Debugw("Connected to node", "url", url)

	p.clients[url] = c
	return c, nil
}

// Close closes every client handed out by the pool
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for url, c := range p.clients {
		c.Close()
		delete(p.clients, url)
	}
}

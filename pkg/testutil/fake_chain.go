package testutil

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/twinbase/twinbase-dlt/pkg/clients/chain"
)

const (
	FakeChainID      = 1337
	FakeGasEstimate  = 100000
	FakeGasUsed      = 50000
	FakeBaseFeeGwei  = 1
	fakeContractCode = 0x60
)

var _ chain.Backend = (*FakeChain)(nil)

// ErrRevert is returned by contract simulators to revert a call
var ErrRevert = errors.New("execution reverted")

// ContractSim executes decoded calls against in-memory contract state
type ContractSim interface {
	Call(from common.Address, method *abi.Method, args []interface{}) ([]interface{}, error)
	Transact(from common.Address, method *abi.Method, args []interface{}) error
}

type deployedContract struct {
	abi *abi.ABI
	sim ContractSim
}

// FakeChain is an in-memory chain backend. Every sent transaction is mined
// into its own block immediately.
type FakeChain struct {
	logger  *zap.Logger
	chainID *big.Int
	baseFee *big.Int

	mu          sync.Mutex
	blockNumber uint64
	contracts   map[common.Address]*deployedContract
	nonces      map[common.Address]uint64
	txs         map[common.Hash]*types.Transaction
	receipts    map[common.Hash]*types.Receipt
	senders     map[common.Hash]common.Address

	// SendErr, when set, fails every SendTransaction
	SendErr error
}

func NewFakeChain(logger *zap.Logger) *FakeChain {
	return &FakeChain{
		logger:    logger,
		chainID:   big.NewInt(FakeChainID),
		baseFee:   new(big.Int).Mul(big.NewInt(FakeBaseFeeGwei), big.NewInt(1e9)),
		contracts: make(map[common.Address]*deployedContract),
		nonces:    make(map[common.Address]uint64),
		txs:       make(map[common.Hash]*types.Transaction),
		receipts:  make(map[common.Hash]*types.Receipt),
		senders:   make(map[common.Hash]common.Address),
	}
}

// Deploy registers a simulated contract at address
func (f *FakeChain) Deploy(address common.Address, contractABI *abi.ABI, sim ContractSim) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contracts[address] = &deployedContract{abi: contractABI, sim: sim}
}

// SenderOf returns the recovered sender of a mined transaction
func (f *FakeChain) SenderOf(txHash common.Hash) (common.Address, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	from, ok := f.senders[txHash]
	return from, ok
}

// TransactionCount returns the number of mined transactions
func (f *FakeChain) TransactionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.receipts)
}

func (f *FakeChain) decode(to *common.Address, data []byte) (*deployedContract, *abi.Method, []interface{}, error) {
	if to == nil {
		return nil, nil, nil, fmt.Errorf("contract creation is not supported")
	}
	c, ok := f.contracts[*to]
	if !ok {
		return nil, nil, nil, fmt.Errorf("no contract at %s", to.Hex())
	}
	if len(data) < 4 {
		return nil, nil, nil, fmt.Errorf("%w: missing selector", ErrRevert)
	}
	method, err := c.abi.MethodById(data[:4])
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %v", ErrRevert, err)
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %v", ErrRevert, err)
	}
	return c, method, args, nil
}

func (f *FakeChain) ChainID(_ context.Context) (*big.Int, error) {
	return new(big.Int).Set(f.chainID), nil
}

func (f *FakeChain) CodeAt(_ context.Context, contract common.Address, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.contracts[contract]; ok {
		return []byte{fakeContractCode}, nil
	}
	return nil, nil
}

func (f *FakeChain) PendingCodeAt(ctx context.Context, contract common.Address) ([]byte, error) {
	return f.CodeAt(ctx, contract, nil)
}

func (f *FakeChain) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, method, args, err := f.decode(msg.To, msg.Data)
	if err != nil {
		return nil, err
	}
	out, err := c.sim.Call(msg.From, method, args)
	if err != nil {
		return nil, err
	}
	return method.Outputs.Pack(out...)
}

func (f *FakeChain) HeaderByNumber(_ context.Context, _ *big.Int) (*types.Header, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &types.Header{
		Number:  new(big.Int).SetUint64(f.blockNumber),
		BaseFee: new(big.Int).Set(f.baseFee),
	}, nil
}

func (f *FakeChain) PendingNonceAt(_ context.Context, account common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonces[account], nil
}

func (f *FakeChain) SuggestGasPrice(_ context.Context) (*big.Int, error) {
	return big.NewInt(1e9), nil
}

func (f *FakeChain) SuggestGasTipCap(_ context.Context) (*big.Int, error) {
	return big.NewInt(1e9), nil
}

func (f *FakeChain) EstimateGas(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, _, _, err := f.decode(msg.To, msg.Data); err != nil {
		return 0, err
	}
	return FakeGasEstimate, nil
}

// SendTransaction mines tx immediately. A gas limit below FakeGasUsed runs
// out of gas and a reverting call yields a failed receipt.
func (f *FakeChain) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.SendErr != nil {
		return f.SendErr
	}

	signer := types.LatestSignerForChainID(f.chainID)
	from, err := types.Sender(signer, tx)
	if err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}
	if tx.Nonce() != f.nonces[from] {
		return fmt.Errorf("invalid nonce for %s: have %d, want %d", from.Hex(), tx.Nonce(), f.nonces[from])
	}
	f.nonces[from]++
	f.blockNumber++

	receipt := &types.Receipt{
		Type:        tx.Type(),
		TxHash:      tx.Hash(),
		BlockNumber: new(big.Int).SetUint64(f.blockNumber),
		Status:      types.ReceiptStatusSuccessful,
		GasUsed:     FakeGasUsed,
	}

	switch {
	case tx.Gas() < FakeGasUsed:
		receipt.Status = types.ReceiptStatusFailed
		receipt.GasUsed = tx.Gas()
	default:
		c, method, args, err := f.decode(tx.To(), tx.Data())
		if err == nil {
			err = c.sim.Transact(from, method, args)
		}
		if err != nil {
			f.logger.Sugar().Debugw("Fake transaction reverted", "txHash", tx.Hash().Hex(), "error", err)
			receipt.Status = types.ReceiptStatusFailed
		}
	}

	f.txs[tx.Hash()] = tx
	f.receipts[tx.Hash()] = receipt
	f.senders[tx.Hash()] = from
	return nil
}

func (f *FakeChain) TransactionReceipt(_ context.Context, txHash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.receipts[txHash]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}

func (f *FakeChain) TransactionByHash(_ context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if tx, ok := f.txs[hash]; ok {
		return tx, false, nil
	}
	return nil, false, ethereum.NotFound
}

func (f *FakeChain) FilterLogs(_ context.Context, _ ethereum.FilterQuery) ([]types.Log, error) {
	return nil, nil
}

func (f *FakeChain) SubscribeFilterLogs(_ context.Context, _ ethereum.FilterQuery, _ chan<- types.Log) (ethereum.Subscription, error) {
	return nil, fmt.Errorf("log subscriptions are not supported")
}

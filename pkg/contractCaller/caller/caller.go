package caller

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethereumTypes "github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/twinbase/twinbase-dlt/pkg/clients/chain"
	"github.com/twinbase/twinbase-dlt/pkg/config"
	"github.com/twinbase/twinbase-dlt/pkg/contractCaller"
	"github.com/twinbase/twinbase-dlt/pkg/contracts"
	"github.com/twinbase/twinbase-dlt/pkg/transactionSigner"
	"github.com/twinbase/twinbase-dlt/pkg/types"
)

var _ contractCaller.IContractCaller = (*ContractCaller)(nil)

// BackendProvider resolves a node url from contract-info.json to a backend
type BackendProvider interface {
	Get(url string) (chain.Backend, error)
}

// BackendProviderFunc adapts a function to BackendProvider
type BackendProviderFunc func(url string) (chain.Backend, error)

func (f BackendProviderFunc) Get(url string) (chain.Backend, error) {
	return f(url)
}

type boundContract struct {
	name     string
	address  common.Address
	abi      *abi.ABI
	contract *bind.BoundContract
}

type ContractCaller struct {
	logger *zap.Logger
	signer transactionSigner.ITransactionSigner

	twinRegistry     *boundContract
	rootHashRegistry *boundContract
}

// NewContractCaller binds every contract in contractInfo that the caller
// knows about. signer may be nil for a read-only caller.
func NewContractCaller(
	contractInfo config.ContractInfoFile,
	backends BackendProvider,
	signer transactionSigner.ITransactionSigner,
	logger *zap.Logger,
) (*ContractCaller, error) {
	cc := &ContractCaller{
		logger: logger,
		signer: signer,
	}

	twinRegistry, err := bindContract(contractInfo, contracts.TwinRegistry, backends, contracts.MethodGetTwins, contracts.MethodGetTwin, contracts.MethodVerifyTwinHash)
	if err != nil {
		return nil, err
	}
	cc.twinRegistry = twinRegistry

	if _, ok := contractInfo[contracts.RootHashRegistry]; ok {
		rootHashRegistry, err := bindContract(contractInfo, contracts.RootHashRegistry, backends, contracts.MethodVerifyHash)
		if err != nil {
			return nil, err
		}
		cc.rootHashRegistry = rootHashRegistry
	}

	logger.Sugar().Infow("Bound registry contracts",
		"twinRegistry", cc.twinRegistry.address.Hex(),
		"rootHashRegistry", cc.addressOf(cc.rootHashRegistry),
		"readOnly", signer == nil,
	)
	return cc, nil
}

func bindContract(contractInfo config.ContractInfoFile, name string, backends BackendProvider, methods ...string) (*boundContract, error) {
	info, err := contractInfo.Get(name)
	if err != nil {
		return nil, err
	}
	parsed, err := info.ParsedABI(name)
	if err != nil {
		return nil, err
	}
	if err := contracts.RequireMethods(name, parsed, methods...); err != nil {
		return nil, err
	}
	backend, err := backends.Get(info.Node)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to node for %s: %w", name, err)
	}

	address := info.GetAddress()
	return &boundContract{
		name:     name,
		address:  address,
		abi:      parsed,
		contract: bind.NewBoundContract(address, *parsed, backend, backend, backend),
	}, nil
}

func (cc *ContractCaller) addressOf(c *boundContract) string {
	if c == nil {
		return ""
	}
	return c.address.Hex()
}

func (cc *ContractCaller) byName(name string) (*boundContract, error) {
	switch name {
	case contracts.TwinRegistry:
		return cc.twinRegistry, nil
	case contracts.RootHashRegistry:
		if cc.rootHashRegistry == nil {
			return nil, fmt.Errorf("%w: %s", config.ErrContractNotFound, name)
		}
		return cc.rootHashRegistry, nil
	}
	return nil, fmt.Errorf("unknown contract %q", name)
}

func (c *boundContract) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, fmt.Errorf("%s.%s call failed: %w", c.name, method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s.%s returned no values", c.name, method)
	}
	return out, nil
}

func (cc *ContractCaller) GetTwins(ctx context.Context) ([]types.Twin, error) {
	out, err := cc.twinRegistry.call(ctx, contracts.MethodGetTwins)
	if err != nil {
		return nil, err
	}
	twins := *abi.ConvertType(out[0], new([]types.Twin)).(*[]types.Twin)
	return twins, nil
}

func (cc *ContractCaller) GetTwin(ctx context.Context, id string) (*types.Twin, error) {
	out, err := cc.twinRegistry.call(ctx, contracts.MethodGetTwin, id)
	if err != nil {
		if isRevert(err) {
			return nil, fmt.Errorf("%w: %s", contractCaller.ErrTwinNotFound, id)
		}
		return nil, err
	}
	twin := abi.ConvertType(out[0], new(types.Twin)).(*types.Twin)
	return twin, nil
}

func (cc *ContractCaller) VerifyTwinHash(ctx context.Context, id string, hash [32]byte) (bool, error) {
	out, err := cc.twinRegistry.call(ctx, contracts.MethodVerifyTwinHash, id, hash)
	if err != nil {
		return false, err
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

func (cc *ContractCaller) PostTwinHash(ctx context.Context, id string, hash [32]byte, gasLimit uint64) (*ethereumTypes.Receipt, error) {
	txOpts, err := cc.buildTransactionOpts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build transaction options: %w", err)
	}
	txOpts.GasLimit = gasLimit

	tx, err := cc.twinRegistry.contract.Transact(txOpts, contracts.MethodPostTwinHash, id, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	cc.logger.Sugar().Infow("Posting twin hash",
		"id", id,
		"hash", common.Hash(hash).Hex(),
		"gasLimit", tx.Gas(),
	)
	return cc.signAndSendTransaction(ctx, tx, "PostTwinHash")
}

func (cc *ContractCaller) SetRootHash(ctx context.Context, contractName string, root [32]byte) (*ethereumTypes.Receipt, error) {
	target, err := cc.byName(contractName)
	if err != nil {
		return nil, err
	}

	txOpts, err := cc.buildTransactionOpts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build transaction options: %w", err)
	}

	tx, err := target.contract.Transact(txOpts, contracts.MethodSetRootHash, root)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	cc.logger.Sugar().Infow("Submitting root hash",
		"contract", target.name,
		"address", target.address.Hex(),
		"root", common.Hash(root).Hex(),
	)
	return cc.signAndSendTransaction(ctx, tx, "SetRootHash")
}

func (cc *ContractCaller) GetRootHash(ctx context.Context, contractName string) ([32]byte, error) {
	target, err := cc.byName(contractName)
	if err != nil {
		return [32]byte{}, err
	}
	out, err := target.call(ctx, contracts.MethodGetRootHash)
	if err != nil {
		return [32]byte{}, err
	}
	return *abi.ConvertType(out[0], new([32]byte)).(*[32]byte), nil
}

func (cc *ContractCaller) VerifyHash(ctx context.Context, proof [][32]byte, hash [32]byte) (bool, error) {
	target, err := cc.byName(contracts.RootHashRegistry)
	if err != nil {
		return false, err
	}
	if proof == nil {
		proof = [][32]byte{}
	}
	out, err := target.call(ctx, contracts.MethodVerifyHash, proof, hash)
	if err != nil {
		return false, err
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

func (cc *ContractCaller) GetFromAddress() common.Address {
	if cc.signer == nil {
		return common.Address{}
	}
	return cc.signer.GetFromAddress()
}

func isRevert(err error) bool {
	return strings.Contains(err.Error(), "execution reverted")
}

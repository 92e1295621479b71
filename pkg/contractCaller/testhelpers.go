package contractCaller

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	ethTypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/mock"

	"github.com/twinbase/twinbase-dlt/pkg/types"
)

var _ IContractCaller = (*MockIContractCaller)(nil)

// MockIContractCaller is a testify mock of IContractCaller
type MockIContractCaller struct {
	mock.Mock
}

func (m *MockIContractCaller) GetTwins(ctx context.Context) ([]types.Twin, error) {
	args := m.Called(ctx)
	twins, _ := args.Get(0).([]types.Twin)
	return twins, args.Error(1)
}

func (m *MockIContractCaller) GetTwin(ctx context.Context, id string) (*types.Twin, error) {
	args := m.Called(ctx, id)
	twin, _ := args.Get(0).(*types.Twin)
	return twin, args.Error(1)
}

func (m *MockIContractCaller) VerifyTwinHash(ctx context.Context, id string, hash [32]byte) (bool, error) {
	args := m.Called(ctx, id, hash)
	return args.Bool(0), args.Error(1)
}

func (m *MockIContractCaller) PostTwinHash(ctx context.Context, id string, hash [32]byte, gasLimit uint64) (*ethTypes.Receipt, error) {
	args := m.Called(ctx, id, hash, gasLimit)
	receipt, _ := args.Get(0).(*ethTypes.Receipt)
	return receipt, args.Error(1)
}

func (m *MockIContractCaller) SetRootHash(ctx context.Context, contractName string, root [32]byte) (*ethTypes.Receipt, error) {
	args := m.Called(ctx, contractName, root)
	receipt, _ := args.Get(0).(*ethTypes.Receipt)
	return receipt, args.Error(1)
}

func (m *MockIContractCaller) GetRootHash(ctx context.Context, contractName string) ([32]byte, error) {
	args := m.Called(ctx, contractName)
	root, _ := args.Get(0).([32]byte)
	return root, args.Error(1)
}

func (m *MockIContractCaller) VerifyHash(ctx context.Context, proof [][32]byte, hash [32]byte) (bool, error) {
	args := m.Called(ctx, proof, hash)
	return args.Bool(0), args.Error(1)
}

func (m *MockIContractCaller) GetFromAddress() common.Address {
	args := m.Called()
	addr, _ := args.Get(0).(common.Address)
	return addr
}

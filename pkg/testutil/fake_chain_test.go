package testutil

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/twinbase/twinbase-dlt/pkg/contracts"
	"github.com/twinbase/twinbase-dlt/pkg/merkle"
	twintypes "github.com/twinbase/twinbase-dlt/pkg/types"
)

func boundTwinRegistry(t *testing.T, r *Registries) *bind.BoundContract {
	parsed, err := contracts.ParseABI(contracts.TwinRegistry, nil)
	require.NoError(t, err)
	return bind.NewBoundContract(TwinRegistryAddress, *parsed, r.Chain, r.Chain, r.Chain)
}

func minterOpts(t *testing.T) *bind.TransactOpts {
	opts, err := bind.NewKeyedTransactorWithChainID(MustKey(t, MinterPrivateKey), big.NewInt(FakeChainID))
	require.NoError(t, err)
	opts.Context = context.Background()
	return opts
}

func TestFakeChain_CallAndTransact(t *testing.T) {
	r := NewRegistries(t, zap.NewNop())
	contract := boundTwinRegistry(t, r)

	hash := crypto.Keccak256Hash([]byte(`{"dt-id": "a"}`))
	tx, err := contract.Transact(minterOpts(t), contracts.MethodPostTwinHash, "a", [32]byte(hash))
	require.NoError(t, err)

	receipt, err := bind.WaitMined(context.Background(), r.Chain, tx)
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)
	assert.Equal(t, 1, r.Chain.TransactionCount())

	from, ok := r.Chain.SenderOf(tx.Hash())
	require.True(t, ok)
	assert.Equal(t, r.Minter, from)

	var out []interface{}
	require.NoError(t, contract.Call(&bind.CallOpts{}, &out, contracts.MethodGetTwins))
	twins := *abiConvertTwins(t, out[0])
	require.Len(t, twins, 1)
	assert.Equal(t, "a", twins[0].Id)
	assert.Equal(t, [32]byte(hash), twins[0].Hash)

	out = nil
	require.NoError(t, contract.Call(&bind.CallOpts{}, &out, contracts.MethodVerifyTwinHash, "a", [32]byte(hash)))
	assert.Equal(t, true, out[0])
}

func TestFakeChain_NonMinterReverts(t *testing.T) {
	r := NewRegistries(t, zap.NewNop())
	contract := boundTwinRegistry(t, r)

	opts, err := bind.NewKeyedTransactorWithChainID(MustKey(t, OutsiderPrivateKey), big.NewInt(FakeChainID))
	require.NoError(t, err)

	tx, err := contract.Transact(opts, contracts.MethodSetRootHash, [32]byte{1})
	require.NoError(t, err)
	receipt, err := bind.WaitMined(context.Background(), r.Chain, tx)
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusFailed, receipt.Status)
	assert.Equal(t, [32]byte{}, r.TwinRegistry.Root())
}

func TestFakeChain_OutOfGas(t *testing.T) {
	r := NewRegistries(t, zap.NewNop())
	contract := boundTwinRegistry(t, r)

	opts := minterOpts(t)
	opts.GasLimit = FakeGasUsed - 1
	tx, err := contract.Transact(opts, contracts.MethodSetRootHash, [32]byte{1})
	require.NoError(t, err)

	receipt, err := bind.WaitMined(context.Background(), r.Chain, tx)
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusFailed, receipt.Status)
	assert.Equal(t, tx.Gas(), receipt.GasUsed)
}

func TestFakeChain_GetTwinMissingReverts(t *testing.T) {
	r := NewRegistries(t, zap.NewNop())
	contract := boundTwinRegistry(t, r)

	var out []interface{}
	err := contract.Call(&bind.CallOpts{}, &out, contracts.MethodGetTwin, "missing")
	require.ErrorIs(t, err, ErrRevert)
}

func TestFakeChain_UnknownReceipt(t *testing.T) {
	fc := NewFakeChain(zap.NewNop())
	_, err := fc.TransactionReceipt(context.Background(), common.Hash{1})
	require.ErrorIs(t, err, ethereum.NotFound)

	code, err := fc.CodeAt(context.Background(), common.Address{1}, nil)
	require.NoError(t, err)
	assert.Empty(t, code)
}

func TestRootHashRegistrySim_VerifyHash(t *testing.T) {
	r := NewRegistries(t, zap.NewNop())

	h1 := crypto.Keccak256Hash([]byte("one"))
	h2 := crypto.Keccak256Hash([]byte("two"))
	tree, err := merkle.OfHashes([][32]byte{h1, h2}, merkle.DefaultOptions())
	require.NoError(t, err)
	r.RootHashRegistry.SetRoot(tree.Root())

	proof, err := tree.GetProofForValue([]string{h1.Hex()})
	require.NoError(t, err)
	rawProof := make([][32]byte, len(proof))
	for i, p := range proof {
		rawProof[i] = p
	}

	parsed, err := contracts.ParseABI(contracts.RootHashRegistry, nil)
	require.NoError(t, err)
	contract := bind.NewBoundContract(RootHashRegistryAddress, *parsed, r.Chain, r.Chain, r.Chain)

	var out []interface{}
	require.NoError(t, contract.Call(&bind.CallOpts{}, &out, contracts.MethodVerifyHash, rawProof, [32]byte(h1)))
	assert.Equal(t, true, out[0])

	out = nil
	require.NoError(t, contract.Call(&bind.CallOpts{}, &out, contracts.MethodVerifyHash, rawProof, [32]byte(h2)))
	assert.Equal(t, false, out[0])
}

func abiConvertTwins(t *testing.T, v interface{}) *[]twintypes.Twin {
	twins, ok := abi.ConvertType(v, new([]twintypes.Twin)).(*[]twintypes.Twin)
	require.True(t, ok, "unexpected getTwins output %T", v)
	return twins
}

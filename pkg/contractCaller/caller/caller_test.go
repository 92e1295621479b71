package caller

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/twinbase/twinbase-dlt/pkg/clients/chain"
	"github.com/twinbase/twinbase-dlt/pkg/config"
	"github.com/twinbase/twinbase-dlt/pkg/contractCaller"
	"github.com/twinbase/twinbase-dlt/pkg/contracts"
	"github.com/twinbase/twinbase-dlt/pkg/merkle"
	"github.com/twinbase/twinbase-dlt/pkg/testutil"
	"github.com/twinbase/twinbase-dlt/pkg/transactionSigner"
)

func newTestCaller(t *testing.T, r *testutil.Registries, signerKey string) *ContractCaller {
	backends := BackendProviderFunc(func(url string) (chain.Backend, error) {
		require.Equal(t, testutil.FakeNodeUrl, url)
		return r.Chain, nil
	})

	var signer transactionSigner.ITransactionSigner
	if signerKey != "" {
		s, err := transactionSigner.NewPrivateKeySigner(signerKey, r.Chain, zap.NewNop())
		require.NoError(t, err)
		signer = s
	}

	cc, err := NewContractCaller(r.ContractInfo, backends, signer, zap.NewNop())
	require.NoError(t, err)
	return cc
}

func TestContractCaller_TwinRegistryReads(t *testing.T) {
	ctx := context.Background()
	r := testutil.NewRegistries(t, zap.NewNop())
	h1 := crypto.Keccak256Hash([]byte("twin one"))
	h2 := crypto.Keccak256Hash([]byte("twin two"))
	r.TwinRegistry.Put("twin-1", h1)
	r.TwinRegistry.Put("twin-2", h2)

	cc := newTestCaller(t, r, "")

	twins, err := cc.GetTwins(ctx)
	require.NoError(t, err)
	require.Len(t, twins, 2)
	assert.Equal(t, "twin-1", twins[0].Id)
	assert.Equal(t, [32]byte(h1), twins[0].Hash)
	assert.Equal(t, "twin-2", twins[1].Id)

	twin, err := cc.GetTwin(ctx, "twin-2")
	require.NoError(t, err)
	assert.Equal(t, [32]byte(h2), twin.Hash)

	_, err = cc.GetTwin(ctx, "missing")
	require.ErrorIs(t, err, contractCaller.ErrTwinNotFound)

	ok, err := cc.VerifyTwinHash(ctx, "twin-1", h1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = cc.VerifyTwinHash(ctx, "twin-1", h2)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestContractCaller_EmptyRegistry(t *testing.T) {
	r := testutil.NewRegistries(t, zap.NewNop())
	cc := newTestCaller(t, r, "")

	twins, err := cc.GetTwins(context.Background())
	require.NoError(t, err)
	assert.Empty(t, twins)
}

func TestContractCaller_ReadOnlyWrites(t *testing.T) {
	r := testutil.NewRegistries(t, zap.NewNop())
	cc := newTestCaller(t, r, "")
	assert.Equal(t, common.Address{}, cc.GetFromAddress())

	_, err := cc.SetRootHash(context.Background(), contracts.TwinRegistry, [32]byte{1})
	require.ErrorIs(t, err, contractCaller.ErrReadOnly)

	_, err = cc.PostTwinHash(context.Background(), "a", [32]byte{1}, 0)
	require.ErrorIs(t, err, contractCaller.ErrReadOnly)
}

func TestContractCaller_SetAndGetRootHash(t *testing.T) {
	ctx := context.Background()
	r := testutil.NewRegistries(t, zap.NewNop())
	cc := newTestCaller(t, r, testutil.MinterPrivateKey)
	assert.Equal(t, r.Minter, cc.GetFromAddress())

	for _, name := range []string{contracts.TwinRegistry, contracts.RootHashRegistry} {
		t.Run(name, func(t *testing.T) {
			root := crypto.Keccak256Hash([]byte(name))
			receipt, err := cc.SetRootHash(ctx, name, root)
			require.NoError(t, err)
			assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)

			got, err := cc.GetRootHash(ctx, name)
			require.NoError(t, err)
			assert.Equal(t, [32]byte(root), got)
		})
	}

	_, err := cc.SetRootHash(ctx, "Unknown", [32]byte{1})
	require.Error(t, err)
}

func TestContractCaller_PostTwinHash(t *testing.T) {
	ctx := context.Background()
	r := testutil.NewRegistries(t, zap.NewNop())
	cc := newTestCaller(t, r, testutil.MinterPrivateKey)

	hash := crypto.Keccak256Hash([]byte(`{"dt-id": "twin-1"}`))
	receipt, err := cc.PostTwinHash(ctx, "twin-1", hash, 0)
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)

	twin, err := cc.GetTwin(ctx, "twin-1")
	require.NoError(t, err)
	assert.Equal(t, [32]byte(hash), twin.Hash)
}

func TestContractCaller_PostTwinHash_OutOfGas(t *testing.T) {
	ctx := context.Background()
	r := testutil.NewRegistries(t, zap.NewNop())
	cc := newTestCaller(t, r, testutil.MinterPrivateKey)

	receipt, err := cc.PostTwinHash(ctx, "twin-1", [32]byte{1}, testutil.FakeGasUsed-1)
	require.True(t, errors.Is(err, transactionSigner.ErrOutOfGas), "got %v", err)
	require.NotNil(t, receipt)
	assert.Equal(t, receipt.GasUsed, uint64(testutil.FakeGasUsed-1))
	assert.Empty(t, r.TwinRegistry.Twins())
}

func TestContractCaller_VerifyHash(t *testing.T) {
	ctx := context.Background()
	r := testutil.NewRegistries(t, zap.NewNop())
	cc := newTestCaller(t, r, "")

	hashes := [][32]byte{
		crypto.Keccak256Hash([]byte("h1")),
		crypto.Keccak256Hash([]byte("h2")),
		crypto.Keccak256Hash([]byte("h3")),
	}
	tree, err := merkle.OfHashes(hashes, merkle.DefaultOptions())
	require.NoError(t, err)
	r.RootHashRegistry.SetRoot(tree.Root())

	proof, err := tree.GetProofForValue([]string{common.Hash(hashes[1]).Hex()})
	require.NoError(t, err)
	rawProof := make([][32]byte, len(proof))
	for i, p := range proof {
		rawProof[i] = p
	}

	ok, err := cc.VerifyHash(ctx, rawProof, hashes[1])
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = cc.VerifyHash(ctx, rawProof, hashes[0])
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestContractCaller_SingleLeafEmptyProof(t *testing.T) {
	ctx := context.Background()
	r := testutil.NewRegistries(t, zap.NewNop())
	cc := newTestCaller(t, r, "")

	h := crypto.Keccak256Hash([]byte("only"))
	tree, err := merkle.OfHashes([][32]byte{h}, merkle.DefaultOptions())
	require.NoError(t, err)
	r.RootHashRegistry.SetRoot(tree.Root())

	ok, err := cc.VerifyHash(ctx, nil, h)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewContractCaller_Errors(t *testing.T) {
	r := testutil.NewRegistries(t, zap.NewNop())
	backends := BackendProviderFunc(func(string) (chain.Backend, error) { return r.Chain, nil })

	t.Run("missing twin registry", func(t *testing.T) {
		info := config.ContractInfoFile{contracts.RootHashRegistry: r.ContractInfo[contracts.RootHashRegistry]}
		_, err := NewContractCaller(info, backends, nil, zap.NewNop())
		require.ErrorIs(t, err, config.ErrContractNotFound)
	})

	t.Run("node unreachable", func(t *testing.T) {
		failing := BackendProviderFunc(func(string) (chain.Backend, error) { return nil, errors.New("dial failed") })
		_, err := NewContractCaller(r.ContractInfo, failing, nil, zap.NewNop())
		require.ErrorContains(t, err, "dial failed")
	})

	t.Run("root registry optional", func(t *testing.T) {
		info := config.ContractInfoFile{contracts.TwinRegistry: r.ContractInfo[contracts.TwinRegistry]}
		cc, err := NewContractCaller(info, backends, nil, zap.NewNop())
		require.NoError(t, err)
		_, err = cc.VerifyHash(context.Background(), nil, [32]byte{1})
		require.ErrorIs(t, err, config.ErrContractNotFound)
	})
}

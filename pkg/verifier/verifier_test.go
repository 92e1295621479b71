package verifier

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/twinbase/twinbase-dlt/pkg/clients/chain"
	"github.com/twinbase/twinbase-dlt/pkg/contractCaller"
	"github.com/twinbase/twinbase-dlt/pkg/contractCaller/caller"
	"github.com/twinbase/twinbase-dlt/pkg/contracts"
	"github.com/twinbase/twinbase-dlt/pkg/merkle"
	"github.com/twinbase/twinbase-dlt/pkg/testutil"
	"github.com/twinbase/twinbase-dlt/pkg/treeFile"
	"github.com/twinbase/twinbase-dlt/pkg/twin"
	"github.com/twinbase/twinbase-dlt/pkg/types"
	"github.com/twinbase/twinbase-dlt/pkg/util"
)

var testDocs = []string{
	`{"dt-id": "twin-1", "name": "pump"}`,
	`{"dt-id": "twin-2", "name": "valve"}`,
	`{"dt-id": "twin-3", "name": "tank"}`,
}

func docTwins() []types.Twin {
	twins := make([]types.Twin, 0, len(testDocs))
	for _, d := range testDocs {
		doc, _ := twin.Parse([]byte(d))
		twins = append(twins, doc.Twin())
	}
	return twins
}

func docTree(t *testing.T) *merkle.StandardTree {
	tree, err := merkle.OfHashes(types.TwinHashes(docTwins()), merkle.DefaultOptions())
	require.NoError(t, err)
	return tree
}

func newMockVerifier(t *testing.T, tree *merkle.StandardTree) (*Verifier, *contractCaller.MockIContractCaller) {
	mc := &contractCaller.MockIContractCaller{}
	v, err := NewVerifier(mc, mc, &treeFile.StaticSource{Tree: tree}, zap.NewNop())
	require.NoError(t, err)
	return v, mc
}

// blockingLoader returns its document once release is closed
type blockingLoader struct {
	doc     []byte
	release chan struct{}
}

func (l *blockingLoader) Load(ctx context.Context) ([]byte, error) {
	select {
	case <-l.release:
		return l.doc, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestNewVerifier(t *testing.T) {
	mc := &contractCaller.MockIContractCaller{}
	src := &treeFile.StaticSource{}

	_, err := NewVerifier(nil, mc, src, zap.NewNop())
	require.Error(t, err)
	_, err = NewVerifier(mc, nil, src, zap.NewNop())
	require.Error(t, err)
	_, err = NewVerifier(mc, mc, nil, zap.NewNop())
	require.Error(t, err)
}

func TestVerify_Report(t *testing.T) {
	v, mc := newMockVerifier(t, docTree(t))
	twins := docTwins()

	mc.On("GetTwin", mock.Anything, "twin-2").Return(&twins[1], nil)
	mc.On("VerifyTwinHash", mock.Anything, "twin-2", twins[1].Hash).Return(true, nil)
	mc.On("GetTwins", mock.Anything).Return(nil, errors.New("rpc timeout"))

	report, err := v.Verify(context.Background(), []byte(testDocs[1]))
	require.NoError(t, err)
	assert.Equal(t, "twin-2", report.ID)
	assert.Equal(t, common.Hash(twins[1].Hash), report.Hash)

	require.True(t, report.GetTwin.OK())
	assert.Equal(t, twins[1].Hash, report.GetTwin.Value.Hash)
	require.True(t, report.VerifyTwinHash.OK())
	assert.True(t, report.VerifyTwinHash.Value)
	require.False(t, report.GetTwins.OK())

	// A failed call does not hide the others
	assert.False(t, report.OK())

	data, err := json.Marshal(report)
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "rpc timeout", decoded["getTwins"].(map[string]interface{})["error"])
	assert.Equal(t, true, decoded["verifyTwinHash"].(map[string]interface{})["value"])
	getTwin := decoded["getTwin"].(map[string]interface{})["value"].(map[string]interface{})
	assert.Equal(t, twins[1].HashHex(), getTwin["hash"])
}

func TestVerify_InvalidDocument(t *testing.T) {
	v, mc := newMockVerifier(t, docTree(t))

	_, err := v.Verify(context.Background(), []byte(`{"name": "no id"}`))
	require.ErrorIs(t, err, twin.ErrMissingID)
	mc.AssertNotCalled(t, "GetTwins", mock.Anything)
}

func TestGetMerkleProof(t *testing.T) {
	tree := docTree(t)
	v, _ := newMockVerifier(t, tree)

	for _, tw := range docTwins() {
		proof, err := v.GetMerkleProof(context.Background(), tw.Hash)
		require.NoError(t, err)
		require.True(t, proof.Found)
		assert.Equal(t, tree.Root(), proof.Root)
		assert.True(t, merkle.VerifyProof(tree.Root(), merkle.Bytes32LeafHash(tw.Hash), proof.Siblings))
	}

	absent := util.HashText("not a twin")
	proof, err := v.GetMerkleProof(context.Background(), absent)
	require.NoError(t, err)
	assert.False(t, proof.Found)
	assert.Nil(t, proof.Siblings)

	resp := proof.Response()
	assert.False(t, resp.Found)
	assert.Empty(t, resp.Root)
}

func TestGetMerkleProof_SingleLeaf(t *testing.T) {
	h := docTwins()[0].Hash
	tree, err := merkle.OfHashes([][32]byte{h}, merkle.DefaultOptions())
	require.NoError(t, err)
	v, _ := newMockVerifier(t, tree)

	proof, err := v.GetMerkleProof(context.Background(), h)
	require.NoError(t, err)
	assert.True(t, proof.Found)
	assert.Empty(t, proof.Siblings)

	resp := proof.Response()
	assert.True(t, resp.Found)
	assert.Equal(t, tree.Root().Hex(), resp.Root)
}

func TestGetMerkleProof_NoTree(t *testing.T) {
	v, _ := newMockVerifier(t, nil)
	_, err := v.GetMerkleProof(context.Background(), [32]byte{1})
	require.Error(t, err)
}

func TestVerifyMerkleTree(t *testing.T) {
	tree := docTree(t)

	t.Run("found and verified", func(t *testing.T) {
		v, mc := newMockVerifier(t, tree)
		mc.On("VerifyHash", mock.Anything, mock.Anything, docTwins()[0].Hash).Return(true, nil)

		report := v.VerifyMerkleTree(context.Background(), []byte(testDocs[0]))
		require.NoError(t, report.Err)
		assert.True(t, report.Found)
		assert.True(t, report.OK())
		assert.Equal(t, tree.Root(), report.Root)
		assert.Nil(t, report.OnChainRoot)
		mc.AssertExpectations(t)
		mc.AssertNotCalled(t, "GetRootHash", mock.Anything, mock.Anything)
	})

	t.Run("stale tree file", func(t *testing.T) {
		v, mc := newMockVerifier(t, tree)
		newer := util.HashText("newer root")
		mc.On("VerifyHash", mock.Anything, mock.Anything, docTwins()[1].Hash).Return(false, nil)
		mc.On("GetRootHash", mock.Anything, contracts.RootHashRegistry).Return([32]byte(newer), nil)

		report := v.VerifyMerkleTree(context.Background(), []byte(testDocs[1]))
		assert.True(t, report.Found)
		assert.False(t, report.OK())
		require.NotNil(t, report.OnChainRoot)
		assert.Equal(t, newer, report.OnChainRoot.Value)
		assert.True(t, report.Stale())

		data, err := json.Marshal(report)
		require.NoError(t, err)
		var decoded map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, true, decoded["stale"])
		assert.Equal(t, newer.Hex(), decoded["onChainRoot"].(map[string]interface{})["value"])
	})

	t.Run("not found skips contract", func(t *testing.T) {
		v, mc := newMockVerifier(t, tree)
		mc.On("GetRootHash", mock.Anything, contracts.RootHashRegistry).Return([32]byte(tree.Root()), nil)

		report := v.VerifyMerkleTree(context.Background(), []byte(`{"dt-id": "twin-9"}`))
		require.NoError(t, report.Err)
		assert.False(t, report.Found)
		assert.False(t, report.OK())
		assert.False(t, report.Stale())
		mc.AssertNotCalled(t, "VerifyHash", mock.Anything, mock.Anything, mock.Anything)

		data, err := json.Marshal(report)
		require.NoError(t, err)
		assert.Contains(t, string(data), "contract not called")
	})

	t.Run("contract error", func(t *testing.T) {
		v, mc := newMockVerifier(t, tree)
		mc.On("VerifyHash", mock.Anything, mock.Anything, mock.Anything).Return(false, errors.New("execution reverted"))
		mc.On("GetRootHash", mock.Anything, contracts.RootHashRegistry).Return([32]byte{}, errors.New("node unavailable"))

		report := v.VerifyMerkleTree(context.Background(), []byte(testDocs[2]))
		assert.True(t, report.Found)
		assert.False(t, report.OK())
		assert.Error(t, report.Verified.Err)
		require.NotNil(t, report.OnChainRoot)
		assert.Error(t, report.OnChainRoot.Err)
		assert.False(t, report.Stale())
	})

	t.Run("invalid document", func(t *testing.T) {
		v, _ := newMockVerifier(t, tree)
		report := v.VerifyMerkleTree(context.Background(), []byte("not json"))
		require.ErrorIs(t, report.Err, twin.ErrInvalidDocument)
	})
}

func TestValidateTwin_StateMachine(t *testing.T) {
	ctx := context.Background()
	v, mc := newMockVerifier(t, docTree(t))
	twins := docTwins()
	mc.On("GetTwin", mock.Anything, "twin-1").Return(&twins[0], nil)
	mc.On("VerifyTwinHash", mock.Anything, "twin-1", twins[0].Hash).Return(true, nil)
	mc.On("GetTwins", mock.Anything).Return(twins, nil)
	mc.On("VerifyHash", mock.Anything, mock.Anything, twins[0].Hash).Return(true, nil)

	state, last := v.State()
	assert.Equal(t, StateIdle, state)
	assert.Nil(t, last)

	loader := &blockingLoader{doc: []byte(testDocs[0]), release: make(chan struct{})}
	done := make(chan *Validation)
	go func() {
		validation, err := v.ValidateTwin(ctx, loader)
		assert.NoError(t, err)
		done <- validation
	}()

	require.Eventually(t, func() bool {
		state, _ := v.State()
		return state == StateValidating
	}, time.Second, 5*time.Millisecond)

	_, err := v.ValidateTwin(ctx, twin.StaticLoader(testDocs[0]))
	require.ErrorIs(t, err, ErrValidationInProgress)
	require.ErrorIs(t, v.Reset(), ErrValidationInProgress)
	assert.Equal(t, "validating", v.Status().State)

	close(loader.release)
	validation := <-done
	require.NotNil(t, validation)
	assert.True(t, validation.Success)
	assert.Equal(t, "twin-1", validation.ID)

	status := v.Status()
	assert.Equal(t, "done", status.State)
	require.NotNil(t, status.Success)
	assert.True(t, *status.Success)

	require.NoError(t, v.Reset())
	state, last = v.State()
	assert.Equal(t, StateIdle, state)
	assert.Nil(t, last)
	assert.Nil(t, v.Status().Success)
}

func TestValidateTwin_Failures(t *testing.T) {
	ctx := context.Background()
	twins := docTwins()

	t.Run("hash mismatch", func(t *testing.T) {
		v, mc := newMockVerifier(t, docTree(t))
		mc.On("GetTwin", mock.Anything, "twin-1").Return(&twins[0], nil)
		mc.On("VerifyTwinHash", mock.Anything, "twin-1", mock.Anything).Return(false, nil)
		mc.On("GetTwins", mock.Anything).Return(twins, nil)
		mc.On("GetRootHash", mock.Anything, contracts.RootHashRegistry).Return([32]byte(docTree(t).Root()), nil)

		edited := `{"dt-id": "twin-1", "name": "pump", "edited": true}`
		validation, err := v.ValidateTwin(ctx, twin.StaticLoader(edited))
		require.NoError(t, err)
		assert.False(t, validation.Success)
		assert.False(t, validation.Registry.OK())
		assert.False(t, validation.Merkle.Found)
	})

	t.Run("loader error", func(t *testing.T) {
		v, _ := newMockVerifier(t, docTree(t))
		validation, err := v.ValidateTwin(ctx, twin.NewLocationLoader("/does/not/exist.json"))
		require.NoError(t, err)
		assert.False(t, validation.Success)
		assert.NotEmpty(t, validation.Error)

		status := v.Status()
		assert.Equal(t, "done", status.State)
		assert.Equal(t, validation.Error, status.Error)
	})

	t.Run("new validation after done", func(t *testing.T) {
		v, _ := newMockVerifier(t, docTree(t))
		_, err := v.ValidateTwin(ctx, twin.StaticLoader(`{}`))
		require.NoError(t, err)
		validation, err := v.ValidateTwin(ctx, twin.StaticLoader(`[]`))
		require.NoError(t, err)
		assert.False(t, validation.Success)
	})
}

func TestValidateTwin_AgainstRegistries(t *testing.T) {
	ctx := context.Background()
	r := testutil.NewRegistries(t, zap.NewNop())
	for _, tw := range docTwins() {
		r.TwinRegistry.Put(tw.Id, tw.Hash)
	}
	tree := docTree(t)
	r.RootHashRegistry.SetRoot(tree.Root())

	cc, err := caller.NewContractCaller(r.ContractInfo, caller.BackendProviderFunc(func(string) (chain.Backend, error) {
		return r.Chain, nil
	}), nil, zap.NewNop())
	require.NoError(t, err)

	v, err := NewVerifier(cc, cc, &treeFile.StaticSource{Tree: tree}, zap.NewNop())
	require.NoError(t, err)

	for _, d := range testDocs {
		validation, err := v.ValidateTwin(ctx, twin.StaticLoader(d))
		require.NoError(t, err)
		assert.True(t, validation.Success, "document %s", d)
		assert.Len(t, validation.Registry.GetTwins.Value, len(testDocs))
		require.NoError(t, v.Reset())
	}

	// A stale root makes the merkle check fail while the registry still matches
	r.RootHashRegistry.SetRoot(util.HashText("stale root"))
	validation, err := v.ValidateTwin(ctx, twin.StaticLoader(testDocs[0]))
	require.NoError(t, err)
	assert.False(t, validation.Success)
	assert.True(t, validation.Registry.OK())
	assert.True(t, validation.Merkle.Found)
	assert.False(t, validation.Merkle.Verified.Value)
	assert.True(t, validation.Merkle.Stale())
	assert.Equal(t, util.HashText("stale root"), validation.Merkle.OnChainRoot.Value)
}

package persistence_test

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/twinbase/twinbase-dlt/pkg/merkle"
	"github.com/twinbase/twinbase-dlt/pkg/persistence"
	"github.com/twinbase/twinbase-dlt/pkg/persistence/memory"
)

func saveBuilds(t *testing.T, a persistence.IBuildArchive, n int) []*persistence.BuildRecord {
	tree, err := merkle.OfHashes([][32]byte{crypto.Keccak256Hash([]byte("a"))}, merkle.DefaultOptions())
	require.NoError(t, err)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	records := make([]*persistence.BuildRecord, n)
	for i := range records {
		record, err := persistence.NewBuildRecord(tree, common.Hash{byte(i + 1)}, "RootHashRegistry")
		require.NoError(t, err)
		record.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, a.SaveBuild(record))
		records[i] = record
	}
	return records
}

func TestFindBuild(t *testing.T) {
	a := memory.NewMemoryArchive(zap.NewNop())
	records := saveBuilds(t, a, 2)

	found, err := persistence.FindBuild(a, records[1].ID.String())
	require.NoError(t, err)
	assert.Equal(t, records[1].Root, found.Root)

	_, err = persistence.FindBuild(a, uuid.New().String())
	require.ErrorIs(t, err, persistence.ErrBuildNotFound)

	_, err = persistence.FindBuild(a, "not-a-uuid")
	require.Error(t, err)
}

func TestPruneBuilds(t *testing.T) {
	a := memory.NewMemoryArchive(zap.NewNop())
	records := saveBuilds(t, a, 5)

	// The oldest build is the latest one on-chain and must survive
	require.NoError(t, a.SetLatestBuild(records[0].ID))

	deleted, err := persistence.PruneBuilds(a, 2)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{records[1].ID, records[2].ID, records[3].ID}, deleted)

	remaining, err := a.ListBuilds()
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	assert.Equal(t, records[0].ID, remaining[0].ID)
	assert.Equal(t, records[4].ID, remaining[1].ID)

	deleted, err = persistence.PruneBuilds(a, 2)
	require.NoError(t, err)
	assert.Empty(t, deleted)

	_, err = persistence.PruneBuilds(a, 0)
	require.Error(t, err)
}

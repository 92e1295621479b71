// Package archivetest holds the behaviour every IBuildArchive backend must share.
package archivetest

import (
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twinbase/twinbase-dlt/pkg/merkle"
	"github.com/twinbase/twinbase-dlt/pkg/persistence"
)

// NewRecord builds a record over n distinct leaves created at createdAt
func NewRecord(t *testing.T, n int, createdAt time.Time) *persistence.BuildRecord {
	t.Helper()
	hashes := make([][32]byte, n)
	for i := range hashes {
		hashes[i] = crypto.Keccak256Hash([]byte(uuid.NewString()))
	}
	tree, err := merkle.OfHashes(hashes, merkle.DefaultOptions())
	require.NoError(t, err)

	record, err := persistence.NewBuildRecord(tree, crypto.Keccak256Hash([]byte("tx")), "TwinRegistry")
	require.NoError(t, err)
	record.CreatedAt = createdAt.UTC().Truncate(time.Millisecond)
	return record
}

// Run exercises archive behaviour against archives produced by newArchive.
// Each subtest gets a fresh archive.
func Run(t *testing.T, newArchive func(t *testing.T) persistence.IBuildArchive) {
	t.Run("SaveAndLoad", func(t *testing.T) {
		a := newArchive(t)
		defer func() { _ = a.Close() }()

		record := NewRecord(t, 3, time.Now())
		require.NoError(t, a.SaveBuild(record))

		loaded, err := a.LoadBuild(record.ID)
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, record.ID, loaded.ID)
		assert.Equal(t, record.Root, loaded.Root)
		assert.Equal(t, record.TxHash, loaded.TxHash)
		assert.Equal(t, record.LeafCount, loaded.LeafCount)
		assert.True(t, record.CreatedAt.Equal(loaded.CreatedAt))

		tree, err := loaded.Tree()
		require.NoError(t, err)
		assert.Equal(t, record.Root, tree.Root())
	})

	t.Run("LoadNotFound", func(t *testing.T) {
		a := newArchive(t)
		defer func() { _ = a.Close() }()

		loaded, err := a.LoadBuild(uuid.New())
		require.NoError(t, err)
		assert.Nil(t, loaded)
	})

	t.Run("SaveNil", func(t *testing.T) {
		a := newArchive(t)
		defer func() { _ = a.Close() }()

		require.Error(t, a.SaveBuild(nil))
	})

	t.Run("ListSortedByCreation", func(t *testing.T) {
		a := newArchive(t)
		defer func() { _ = a.Close() }()

		empty, err := a.ListBuilds()
		require.NoError(t, err)
		assert.Empty(t, empty)

		base := time.Now()
		third := NewRecord(t, 2, base.Add(2*time.Second))
		first := NewRecord(t, 2, base)
		second := NewRecord(t, 2, base.Add(time.Second))
		for _, r := range []*persistence.BuildRecord{third, first, second} {
			require.NoError(t, a.SaveBuild(r))
		}

		records, err := a.ListBuilds()
		require.NoError(t, err)
		require.Len(t, records, 3)
		assert.Equal(t, first.ID, records[0].ID)
		assert.Equal(t, second.ID, records[1].ID)
		assert.Equal(t, third.ID, records[2].ID)
	})

	t.Run("DeleteIdempotent", func(t *testing.T) {
		a := newArchive(t)
		defer func() { _ = a.Close() }()

		record := NewRecord(t, 1, time.Now())
		require.NoError(t, a.SaveBuild(record))
		require.NoError(t, a.DeleteBuild(record.ID))
		require.NoError(t, a.DeleteBuild(record.ID))

		loaded, err := a.LoadBuild(record.ID)
		require.NoError(t, err)
		assert.Nil(t, loaded)

		records, err := a.ListBuilds()
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("LatestBuild", func(t *testing.T) {
		a := newArchive(t)
		defer func() { _ = a.Close() }()

		latest, err := a.GetLatestBuild()
		require.NoError(t, err)
		assert.Nil(t, latest)

		r1 := NewRecord(t, 2, time.Now())
		r2 := NewRecord(t, 4, time.Now().Add(time.Second))
		require.NoError(t, a.SaveBuild(r1))
		require.NoError(t, a.SaveBuild(r2))

		require.NoError(t, a.SetLatestBuild(r1.ID))
		latest, err = a.GetLatestBuild()
		require.NoError(t, err)
		require.NotNil(t, latest)
		assert.Equal(t, r1.ID, latest.ID)

		require.NoError(t, a.SetLatestBuild(r2.ID))
		latest, err = a.GetLatestBuild()
		require.NoError(t, err)
		assert.Equal(t, r2.ID, latest.ID)
	})

	t.Run("CloseIdempotent", func(t *testing.T) {
		a := newArchive(t)
		require.NoError(t, a.HealthCheck())
		require.NoError(t, a.Close())
		require.NoError(t, a.Close())

		require.Error(t, a.HealthCheck())
		require.Error(t, a.SaveBuild(NewRecord(t, 1, time.Now())))
		_, err := a.ListBuilds()
		require.Error(t, err)
	})

	t.Run("ThreadSafety", func(t *testing.T) {
		a := newArchive(t)
		defer func() { _ = a.Close() }()

		const workers = 8
		records := make([]*persistence.BuildRecord, workers)
		for i := range records {
			records[i] = NewRecord(t, 2, time.Now().Add(time.Duration(i)*time.Second))
		}

		var wg sync.WaitGroup
		errs := make(chan error, workers*2)
		for _, r := range records {
			wg.Add(1)
			go func(r *persistence.BuildRecord) {
				defer wg.Done()
				if err := a.SaveBuild(r); err != nil {
					errs <- err
					return
				}
				if _, err := a.LoadBuild(r.ID); err != nil {
					errs <- err
				}
			}(r)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		listed, err := a.ListBuilds()
		require.NoError(t, err)
		assert.Len(t, listed, workers)
	})
}

package archive

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/twinbase/twinbase-dlt/pkg/config"
	"github.com/twinbase/twinbase-dlt/pkg/persistence/badger"
	"github.com/twinbase/twinbase-dlt/pkg/persistence/leveldb"
	"github.com/twinbase/twinbase-dlt/pkg/persistence/memory"
)

func TestOpen(t *testing.T) {
	testCases := []struct {
		name     string
		cfg      *config.ArchiveConfig
		wantNil  bool
		wantType interface{}
	}{
		{name: "nil config", cfg: nil, wantNil: true},
		{name: "none", cfg: &config.ArchiveConfig{Type: config.ArchiveTypeNone}, wantNil: true},
		{name: "empty type", cfg: &config.ArchiveConfig{}, wantNil: true},
		{name: "memory", cfg: &config.ArchiveConfig{Type: config.ArchiveTypeMemory}, wantType: &memory.MemoryArchive{}},
		{name: "badger", cfg: &config.ArchiveConfig{Type: config.ArchiveTypeBadger, Path: filepath.Join(t.TempDir(), "badger")}, wantType: &badger.BadgerArchive{}},
		{name: "leveldb", cfg: &config.ArchiveConfig{Type: config.ArchiveTypeLevelDB, Path: filepath.Join(t.TempDir(), "leveldb")}, wantType: &leveldb.LevelDBArchive{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a, err := Open(tc.cfg, zap.NewNop())
			require.NoError(t, err)
			if tc.wantNil {
				assert.Nil(t, a)
				return
			}
			require.NotNil(t, a)
			defer func() { _ = a.Close() }()
			assert.IsType(t, tc.wantType, a)
			require.NoError(t, a.HealthCheck())
		})
	}
}

func TestOpen_InvalidConfig(t *testing.T) {
	_, err := Open(&config.ArchiveConfig{Type: config.ArchiveTypeBadger}, zap.NewNop())
	require.Error(t, err)

	_, err = Open(&config.ArchiveConfig{Type: "sqlite"}, zap.NewNop())
	require.Error(t, err)

	_, err = Open(&config.ArchiveConfig{Type: config.ArchiveTypeRedis}, zap.NewNop())
	require.Error(t, err)
}

package badger

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/twinbase/twinbase-dlt/pkg/persistence"
)

// Key prefixes for namespacing
const (
	keyPrefixBuild       = "build:"
	keyLatestBuild       = "latest:build"
	keySchemaVersion     = "metadata:schema_version"
	currentSchemaVersion = "v1"
)

var _ persistence.IBuildArchive = (*BadgerArchive)(nil)

// BadgerArchive is a disk-backed build archive using Badger
type BadgerArchive struct {
	db       *badgerdb.DB
	logger   *zap.Logger
	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

// NewBadgerArchive opens a Badger database at dataPath with SyncWrites enabled
// and starts background value log GC.
func NewBadgerArchive(dataPath string, logger *zap.Logger) (*BadgerArchive, error) {
	absPath, err := filepath.Abs(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	opts := badgerdb.DefaultOptions(absPath)
	opts.Logger = newStoreLogger(logger, absPath)
	opts.SyncWrites = true
	opts.CompactL0OnClose = true
	opts.NumVersionsToKeep = 1

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", absPath, err)
	}

	ba := &BadgerArchive{
		db:     db,
		logger: logger,
	}

	if err := ba.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	ba.gcCancel = cancel
	ba.gcWg.Add(1)
	go ba.runGC(ctx)

	logger.Sugar().Infow("Badger build archive initialized", "path", absPath)

	return ba, nil
}

func (b *BadgerArchive) initSchema() error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keySchemaVersion))
		if err == badgerdb.ErrKeyNotFound {
			return txn.Set([]byte(keySchemaVersion), []byte(currentSchemaVersion))
		}
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}

		var existingVersion string
		err = item.Value(func(val []byte) error {
			existingVersion = string(val)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to read schema version value: %w", err)
		}

		if existingVersion != currentSchemaVersion {
			return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
		}
		return nil
	})
}

func (b *BadgerArchive) runGC(ctx context.Context) {
	defer b.gcWg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := b.db.RunValueLogGC(0.5)
			if err != nil && err != badgerdb.ErrNoRewrite {
				b.logger.Sugar().Warnw("Badger GC error", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func buildKey(id uuid.UUID) []byte {
	return []byte(keyPrefixBuild + id.String())
}

func (b *BadgerArchive) get(txn *badgerdb.Txn, key []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if err == badgerdb.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (b *BadgerArchive) SaveBuild(record *persistence.BuildRecord) error {
	if record == nil {
		return fmt.Errorf("cannot save nil BuildRecord")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("build archive is closed")
	}

	data, err := persistence.MarshalBuildRecord(record)
	if err != nil {
		return fmt.Errorf("failed to marshal BuildRecord: %w", err)
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(buildKey(record.ID), data)
	})
}

func (b *BadgerArchive) LoadBuild(id uuid.UUID) (*persistence.BuildRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("build archive is closed")
	}

	return b.loadBuild(id)
}

func (b *BadgerArchive) loadBuild(id uuid.UUID) (*persistence.BuildRecord, error) {
	var data []byte
	err := b.db.View(func(txn *badgerdb.Txn) error {
		var err error
		data, err = b.get(txn, buildKey(id))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load BuildRecord: %w", err)
	}
	if data == nil {
		return nil, nil
	}

	record, err := persistence.UnmarshalBuildRecord(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal BuildRecord: %w", err)
	}
	return record, nil
}

func (b *BadgerArchive) ListBuilds() ([]*persistence.BuildRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("build archive is closed")
	}

	records := make([]*persistence.BuildRecord, 0)

	err := b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefixBuild)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()

			data, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("failed to read value: %w", err)
			}

			record, err := persistence.UnmarshalBuildRecord(data)
			if err != nil {
				b.logger.Sugar().Warnw("Failed to unmarshal BuildRecord, skipping",
					"key", string(item.Key()), "error", err)
				continue
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list BuildRecords: %w", err)
	}

	persistence.SortBuilds(records)
	return records, nil
}

func (b *BadgerArchive) DeleteBuild(id uuid.UUID) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("build archive is closed")
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete(buildKey(id))
	})
}

func (b *BadgerArchive) SetLatestBuild(id uuid.UUID) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("build archive is closed")
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set([]byte(keyLatestBuild), []byte(id.String()))
	})
}

func (b *BadgerArchive) GetLatestBuild() (*persistence.BuildRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("build archive is closed")
	}

	var raw []byte
	err := b.db.View(func(txn *badgerdb.Txn) error {
		var err error
		raw, err = b.get(txn, []byte(keyLatestBuild))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get latest build: %w", err)
	}
	if raw == nil {
		return nil, nil
	}

	id, err := uuid.ParseBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid latest build id: %w", err)
	}
	return b.loadBuild(id)
}

func (b *BadgerArchive) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	if b.gcCancel != nil {
		b.gcCancel()
	}
	b.gcWg.Wait()

	if err := b.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger database: %w", err)
	}

	b.logger.Sugar().Info("Badger build archive closed")
	return nil
}

func (b *BadgerArchive) HealthCheck() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("build archive is closed")
	}

	return b.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get([]byte(keySchemaVersion))
		if err == badgerdb.ErrKeyNotFound {
			return fmt.Errorf("schema version not found - database may be corrupted")
		}
		return err
	})
}

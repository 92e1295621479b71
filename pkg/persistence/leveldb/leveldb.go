package leveldb

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
	"go.uber.org/zap"

	"github.com/twinbase/twinbase-dlt/pkg/persistence"
)

const (
	keyPrefixBuild       = "build:"
	keyLatestBuild       = "latest:build"
	keySchemaVersion     = "metadata:schema_version"
	currentSchemaVersion = "v1"
)

var _ persistence.IBuildArchive = (*LevelDBArchive)(nil)

// LevelDBArchive is a disk-backed build archive using goleveldb
type LevelDBArchive struct {
	db     *leveldb.DB
	logger *zap.Logger
	mu     sync.RWMutex
	closed bool
}

func NewLevelDBArchive(dataPath string, logger *zap.Logger) (*LevelDBArchive, error) {
	absPath, err := filepath.Abs(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	db, err := leveldb.OpenFile(absPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb at %s: %w", absPath, err)
	}

	la := &LevelDBArchive{db: db, logger: logger}
	if err := la.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Sugar().Infow("LevelDB build archive initialized", "path", absPath)
	return la, nil
}

func (l *LevelDBArchive) initSchema() error {
	existing, err := l.db.Get([]byte(keySchemaVersion), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return l.db.Put([]byte(keySchemaVersion), []byte(currentSchemaVersion), &opt.WriteOptions{Sync: true})
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if string(existing) != currentSchemaVersion {
		return fmt.Errorf("unsupported schema version: %s (expected: %s)", existing, currentSchemaVersion)
	}
	return nil
}

func buildKey(id uuid.UUID) []byte {
	return []byte(keyPrefixBuild + id.String())
}

func (l *LevelDBArchive) SaveBuild(record *persistence.BuildRecord) error {
	if record == nil {
		return fmt.Errorf("cannot save nil BuildRecord")
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return fmt.Errorf("build archive is closed")
	}

	data, err := persistence.MarshalBuildRecord(record)
	if err != nil {
		return fmt.Errorf("failed to marshal BuildRecord: %w", err)
	}
	return l.db.Put(buildKey(record.ID), data, &opt.WriteOptions{Sync: true})
}

func (l *LevelDBArchive) LoadBuild(id uuid.UUID) (*persistence.BuildRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return nil, fmt.Errorf("build archive is closed")
	}
	return l.loadBuild(id)
}

func (l *LevelDBArchive) loadBuild(id uuid.UUID) (*persistence.BuildRecord, error) {
	data, err := l.db.Get(buildKey(id), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load BuildRecord: %w", err)
	}

	record, err := persistence.UnmarshalBuildRecord(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal BuildRecord: %w", err)
	}
	return record, nil
}

func (l *LevelDBArchive) ListBuilds() ([]*persistence.BuildRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return nil, fmt.Errorf("build archive is closed")
	}

	records := make([]*persistence.BuildRecord, 0)

	iter := l.db.NewIterator(util.BytesPrefix([]byte(keyPrefixBuild)), nil)
	defer iter.Release()

	for iter.Next() {
		record, err := persistence.UnmarshalBuildRecord(append([]byte(nil), iter.Value()...))
		if err != nil {
			l.logger.Sugar().Warnw("Failed to unmarshal BuildRecord, skipping",
				"key", string(iter.Key()), "error", err)
			continue
		}
		records = append(records, record)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("failed to list BuildRecords: %w", err)
	}

	persistence.SortBuilds(records)
	return records, nil
}

func (l *LevelDBArchive) DeleteBuild(id uuid.UUID) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return fmt.Errorf("build archive is closed")
	}
	return l.db.Delete(buildKey(id), &opt.WriteOptions{Sync: true})
}

func (l *LevelDBArchive) SetLatestBuild(id uuid.UUID) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return fmt.Errorf("build archive is closed")
	}
	return l.db.Put([]byte(keyLatestBuild), []byte(id.String()), &opt.WriteOptions{Sync: true})
}

func (l *LevelDBArchive) GetLatestBuild() (*persistence.BuildRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return nil, fmt.Errorf("build archive is closed")
	}

	raw, err := l.db.Get([]byte(keyLatestBuild), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest build: %w", err)
	}

	id, err := uuid.ParseBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid latest build id: %w", err)
	}
	return l.loadBuild(id)
}

func (l *LevelDBArchive) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	if err := l.db.Close(); err != nil {
		return fmt.Errorf("failed to close leveldb: %w", err)
	}

	l.logger.Sugar().Info("LevelDB build archive closed")
	return nil
}

func (l *LevelDBArchive) HealthCheck() error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return fmt.Errorf("build archive is closed")
	}

	if _, err := l.db.Get([]byte(keySchemaVersion), nil); err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return fmt.Errorf("schema version not found - database may be corrupted")
		}
		return err
	}
	return nil
}

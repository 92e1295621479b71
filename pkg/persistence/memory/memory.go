package memory

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/twinbase/twinbase-dlt/pkg/persistence"
)

var _ persistence.IBuildArchive = (*MemoryArchive)(nil)

// MemoryArchive is an in-memory implementation of IBuildArchive.
// Records are lost when the process exits; copies are stored so callers
// cannot mutate archived builds.
type MemoryArchive struct {
	mu sync.RWMutex

	builds map[uuid.UUID]*persistence.BuildRecord
	latest uuid.UUID

	closed bool
}

func NewMemoryArchive(logger *zap.Logger) *MemoryArchive {
	logger.Sugar().Warnw("Using in-memory build archive, builds are lost on exit")

	return &MemoryArchive{
		builds: make(map[uuid.UUID]*persistence.BuildRecord),
	}
}

func (m *MemoryArchive) SaveBuild(record *persistence.BuildRecord) error {
	if record == nil {
		return fmt.Errorf("cannot save nil BuildRecord")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("build archive is closed")
	}

	m.builds[record.ID] = copyRecord(record)
	return nil
}

func (m *MemoryArchive) LoadBuild(id uuid.UUID) (*persistence.BuildRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("build archive is closed")
	}

	record, exists := m.builds[id]
	if !exists {
		return nil, nil
	}
	return copyRecord(record), nil
}

func (m *MemoryArchive) ListBuilds() ([]*persistence.BuildRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("build archive is closed")
	}

	records := make([]*persistence.BuildRecord, 0, len(m.builds))
	for _, record := range m.builds {
		records = append(records, copyRecord(record))
	}
	persistence.SortBuilds(records)
	return records, nil
}

func (m *MemoryArchive) DeleteBuild(id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("build archive is closed")
	}

	delete(m.builds, id)
	return nil
}

func (m *MemoryArchive) SetLatestBuild(id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("build archive is closed")
	}

	m.latest = id
	return nil
}

func (m *MemoryArchive) GetLatestBuild() (*persistence.BuildRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("build archive is closed")
	}

	record, exists := m.builds[m.latest]
	if !exists {
		return nil, nil
	}
	return copyRecord(record), nil
}

func (m *MemoryArchive) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

func (m *MemoryArchive) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return fmt.Errorf("build archive is closed")
	}
	return nil
}

func copyRecord(record *persistence.BuildRecord) *persistence.BuildRecord {
	cp := *record
	cp.Dump = append([]byte(nil), record.Dump...)
	return &cp
}

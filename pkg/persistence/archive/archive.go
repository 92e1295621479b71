// Package archive opens the build archive backend selected in configuration.
package archive

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/twinbase/twinbase-dlt/pkg/config"
	"github.com/twinbase/twinbase-dlt/pkg/persistence"
	"github.com/twinbase/twinbase-dlt/pkg/persistence/badger"
	"github.com/twinbase/twinbase-dlt/pkg/persistence/leveldb"
	"github.com/twinbase/twinbase-dlt/pkg/persistence/memory"
	"github.com/twinbase/twinbase-dlt/pkg/persistence/redis"
)

// Open returns the configured archive, or nil when archiving is disabled
func Open(cfg *config.ArchiveConfig, logger *zap.Logger) (persistence.IBuildArchive, error) {
	if cfg == nil {
		return nil, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid archive config: %w", err)
	}

	var (
		a   persistence.IBuildArchive
		err error
	)
	switch cfg.Type {
	case config.ArchiveTypeNone, "":
		return nil, nil
	case config.ArchiveTypeMemory:
		a = memory.NewMemoryArchive(logger)
	case config.ArchiveTypeBadger:
		a, err = badger.NewBadgerArchive(cfg.Path, logger)
	case config.ArchiveTypeLevelDB:
		a, err = leveldb.NewLevelDBArchive(cfg.Path, logger)
	case config.ArchiveTypeRedis:
		a, err = redis.NewRedisArchive(&redis.RedisConfig{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, logger)
	default:
		return nil, fmt.Errorf("unsupported archive type %q", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s archive: %w", cfg.Type, err)
	}

	if err := a.HealthCheck(); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("%s archive failed health check: %w", cfg.Type, err)
	}
	return a, nil
}

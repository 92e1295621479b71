package redis

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/twinbase/twinbase-dlt/pkg/logger"
	"github.com/twinbase/twinbase-dlt/pkg/persistence"
	"github.com/twinbase/twinbase-dlt/pkg/persistence/archivetest"
)

// requireRedis skips unless REDIS_TEST_ADDRESS points at a running server
func requireRedis(t *testing.T) string {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDRESS")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDRESS not set")
	}
	return addr
}

func TestRedisArchive(t *testing.T) {
	addr := requireRedis(t)
	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	archivetest.Run(t, func(t *testing.T) persistence.IBuildArchive {
		// A unique prefix per subtest keeps runs isolated on the shared DB 15
		prefix := "test:" + uuid.NewString() + ":"
		ra, err := NewRedisArchive(&RedisConfig{Address: addr, DB: 15, KeyPrefix: prefix}, testLogger)
		require.NoError(t, err)

		t.Cleanup(func() {
			cleanup := redisClientFor(addr)
			defer func() { _ = cleanup.Close() }()
			keys, _ := cleanup.Keys(context.Background(), prefix+"*").Result()
			if len(keys) > 0 {
				cleanup.Del(context.Background(), keys...)
			}
		})
		return ra
	})
}

func TestRedisArchive_Config(t *testing.T) {
	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	_, err := NewRedisArchive(nil, testLogger)
	require.Error(t, err)

	_, err = NewRedisArchive(&RedisConfig{}, testLogger)
	require.Error(t, err)
}

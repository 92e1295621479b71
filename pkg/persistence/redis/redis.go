package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/twinbase/twinbase-dlt/pkg/persistence"
)

// Key prefixes for namespacing in Redis
const (
	keyPrefixBuild       = "twinbase:build:"
	keyLatestBuild       = "twinbase:latest:build"
	keySchemaVersion     = "twinbase:metadata:schema_version"
	currentSchemaVersion = "v1"

	// Redis has no prefix iteration, so build ids are tracked in a set
	keySetBuilds = "twinbase:builds:index"
)

var _ persistence.IBuildArchive = (*RedisArchive)(nil)

// RedisArchive is a build archive backed by a shared Redis server
type RedisArchive struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string
	timeout   time.Duration
	mu        sync.RWMutex
	closed    bool
}

// RedisConfig holds the configuration for connecting to Redis
type RedisConfig struct {
	// Address is the Redis server address (host:port)
	Address  string
	Password string
	// DB is the Redis database number (0-15)
	DB int
	// KeyPrefix is prepended to every key, for sharing a database between deployments
	KeyPrefix string
}

func NewRedisArchive(cfg *RedisConfig, logger *zap.Logger) (*RedisArchive, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	ra := &RedisArchive{
		client:    client,
		logger:    logger,
		keyPrefix: cfg.KeyPrefix,
		timeout:   5 * time.Second,
	}

	if err := ra.initSchema(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Sugar().Infow("Redis build archive initialized", "address", cfg.Address, "db", cfg.DB, "keyPrefix", cfg.KeyPrefix)
	return ra, nil
}

func (r *RedisArchive) prefixKey(key string) string {
	if r.keyPrefix == "" {
		return key
	}
	return r.keyPrefix + key
}

func (r *RedisArchive) buildKey(id string) string {
	return r.prefixKey(keyPrefixBuild + id)
}

func (r *RedisArchive) initSchema(ctx context.Context) error {
	schemaKey := r.prefixKey(keySchemaVersion)

	existingVersion, err := r.client.Get(ctx, schemaKey).Result()
	if err == redis.Nil {
		return r.client.Set(ctx, schemaKey, currentSchemaVersion, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if existingVersion != currentSchemaVersion {
		return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
	}
	return nil
}

func (r *RedisArchive) SaveBuild(record *persistence.BuildRecord) error {
	if record == nil {
		return fmt.Errorf("cannot save nil BuildRecord")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("build archive is closed")
	}

	data, err := persistence.MarshalBuildRecord(record)
	if err != nil {
		return fmt.Errorf("failed to marshal BuildRecord: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.buildKey(record.ID.String()), data, 0)
	pipe.SAdd(ctx, r.prefixKey(keySetBuilds), record.ID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save BuildRecord: %w", err)
	}
	return nil
}

func (r *RedisArchive) LoadBuild(id uuid.UUID) (*persistence.BuildRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("build archive is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	return r.loadBuild(ctx, id.String())
}

func (r *RedisArchive) loadBuild(ctx context.Context, id string) (*persistence.BuildRecord, error) {
	data, err := r.client.Get(ctx, r.buildKey(id)).Bytes()
	if err == redis.Nil {
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

func (r *RedisArchive) ListBuilds() ([]*persistence.BuildRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("build archive is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	indexKey := r.prefixKey(keySetBuilds)
	ids, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list build ids: %w", err)
	}

	records := make([]*persistence.BuildRecord, 0, len(ids))
	if len(ids) == 0 {
		return records, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.buildKey(id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch BuildRecords: %w", err)
	}

	for i, val := range values {
		if val == nil {
			// Key was in index but doesn't exist
			r.client.SRem(ctx, indexKey, ids[i])
			continue
		}

		data, ok := val.(string)
		if !ok {
			r.logger.Sugar().Warnw("Unexpected value type for BuildRecord", "key", keys[i])
			continue
		}

		record, err := persistence.UnmarshalBuildRecord([]byte(data))
		if err != nil {
			r.logger.Sugar().Warnw("Failed to unmarshal BuildRecord, skipping", "key", keys[i], "error", err)
			continue
		}
		records = append(records, record)
	}

	persistence.SortBuilds(records)
	return records, nil
}

func (r *RedisArchive) DeleteBuild(id uuid.UUID) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("build archive is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.buildKey(id.String()))
	pipe.SRem(ctx, r.prefixKey(keySetBuilds), id.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete BuildRecord: %w", err)
	}
	return nil
}

func (r *RedisArchive) SetLatestBuild(id uuid.UUID) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("build archive is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	return r.client.Set(ctx, r.prefixKey(keyLatestBuild), id.String(), 0).Err()
}

func (r *RedisArchive) GetLatestBuild() (*persistence.BuildRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("build archive is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	id, err := r.client.Get(ctx, r.prefixKey(keyLatestBuild)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest build: %w", err)
	}
	return r.loadBuild(ctx, id)
}

func (r *RedisArchive) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	r.logger.Sugar().Info("Redis build archive closed")
	return nil
}

func (r *RedisArchive) HealthCheck() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("build archive is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}

	_, err := r.client.Get(ctx, r.prefixKey(keySchemaVersion)).Result()
	if err == redis.Nil {
		return fmt.Errorf("schema version not found - database may not be properly initialized")
	}
	if err != nil {
		return fmt.Errorf("failed to verify schema version: %w", err)
	}
	return nil
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"os"

	"imagegen/internal/core"
	"imagegen/internal/util"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

// NewRedisClient parses url and verifies the connection with a PING.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

func emptyStats() *core.GenerationStats {
	return &core.GenerationStats{History: []core.GenerationRecord{}}
}

// FileStorage implements persistence using JSON files
type FileStorage struct {
	filePath string
}

func NewFileStorage(filePath string) *FileStorage {
	if filePath == "" {
		filePath = core.StatsFilePath
	}
	return &FileStorage{filePath: filePath}
}

func (fs *FileStorage) SaveStats(stats *core.GenerationStats) error {
	data, err := sonic.MarshalIndent(stats, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(fs.filePath, data, core.FilePermissionReadWrite)
}

func (fs *FileStorage) LoadStats() (*core.GenerationStats, error) {
	data, err := os.ReadFile(fs.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return emptyStats(), nil
		}
		return nil, err
	}

	var stats core.GenerationStats
	if err := sonic.Unmarshal(data, &stats); err != nil {
		return nil, err
	}

	if stats.History == nil {
		stats.History = []core.GenerationRecord{}
	}

	return &stats, nil
}

func (fs *FileStorage) Close() error {
	return nil
}

// RedisStorage persists stats in Redis through a client owned by the caller.
type RedisStorage struct {
	client *redis.Client
	ctx    context.Context
	key    string
}

// NewRedisStorageWithClient shares an existing client. Close leaves the
// client open for its owner.
func NewRedisStorageWithClient(client *redis.Client, key string) *RedisStorage {
	if key == "" {
		key = core.StatsRedisKey
	}
	return &RedisStorage{client: client, ctx: context.Background(), key: key}
}

func (rs *RedisStorage) SaveStats(stats *core.GenerationStats) error {
	data, err := util.MarshalJSON(stats)
	if err != nil {
		return err
	}
	return rs.client.Set(rs.ctx, rs.key, data, 0).Err()
}

func (rs *RedisStorage) LoadStats() (*core.GenerationStats, error) {
	val, err := rs.client.Get(rs.ctx, rs.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return emptyStats(), nil
		}
		return nil, err
	}

	var stats core.GenerationStats
	if err := sonic.Unmarshal([]byte(val), &stats); err != nil {
		return nil, err
	}

	if stats.History == nil {
		stats.History = []core.GenerationRecord{}
	}

	return &stats, nil
}

func (rs *RedisStorage) Close() error {
	return nil
}

// InitStorage picks Redis when a client is available, otherwise a JSON file.
func InitStorage(logger core.Logger, client *redis.Client) core.StorageInterface {
	if logger == nil {
		logger = &core.NopLogger{}
	}
	if client != nil {
		logger.Info("Using Redis storage for statistics")
		return NewRedisStorageWithClient(client, core.StatsRedisKey)
	}
	logger.Info("Using file storage for statistics (%s)", core.StatsFilePath)
	return NewFileStorage(core.StatsFilePath)
}

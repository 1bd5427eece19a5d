package storage

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"resume-agent-go/internal/config"
)

// Storage 存储管理器，聚合对象存储和键值存储。
// 组件初始化失败时降级而不是中止：MinIO降级为内存对象存储，Redis降级为不可用。
type Storage struct {
	Objects ObjectStore
	Redis   *Redis
}

// NewStorage 创建存储管理器
func NewStorage(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}

	s := &Storage{}

	if cfg.MinIO.Enabled {
		minioStore, err := NewMinIOStore(&cfg.MinIO, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("初始化MinIO失败，降级为内存对象存储")
			s.Objects = NewMemoryObjectStore()
		} else {
			logger.Info().Str("endpoint", cfg.MinIO.Endpoint).Str("bucket", cfg.MinIO.Bucket).Msg("MinIO客户端初始化成功")
			s.Objects = minioStore
		}
	} else {
		logger.Info().Msg("MinIO未启用，使用内存对象存储")
		s.Objects = NewMemoryObjectStore()
	}

	if cfg.Redis.Enabled {
		redisAdapter, err := NewRedisAdapter(&cfg.Redis)
		if err != nil {
			logger.Warn().Err(err).Str("address", cfg.Redis.Address).Msg("初始化Redis失败，会话历史将只保存在内存")
		} else {
			logger.Info().Str("address", cfg.Redis.Address).Msg("Redis客户端初始化成功")
			s.Redis = redisAdapter
		}
	}

	return s, nil
}

// Close 关闭所有连接。
// MinIO客户端无需显式关闭。
func (s *Storage) Close() error {
	if s.Redis != nil {
		return s.Redis.Close()
	}
	return nil
}

package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"resume-agent-go/internal/config"
	"resume-agent-go/internal/tracing"
)

// Redis操作的专用tracer
var redisTracer = otel.Tracer("resume-agent-go/storage/redis")

// Redis 封装go-redis客户端，供会话记忆等组件使用
type Redis struct {
	Client *redis.Client
}

// NewRedisAdapter 创建Redis连接并验证连通性
func NewRedisAdapter(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("Redis配置不能为空")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("Redis地址不能为空")
	}

	opt := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.PoolSize > 0 {
		opt.PoolSize = cfg.PoolSize
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("连接Redis失败 (%s): %w", cfg.Address, err)
	}

	return &Redis{Client: client}, nil
}

// Close 关闭连接
func (r *Redis) Close() error {
	return r.Client.Close()
}

// TracedDel 删除key并记录span，会话重置时使用
func (r *Redis) TracedDel(ctx context.Context, key string) error {
	ctx, span := redisTracer.Start(ctx, "redis.DEL")
	defer span.End()
	span.SetAttributes(attribute.String("db.redis.key", tracing.SafeRedisKey(key)))

	if err := r.Client.Del(ctx, key).Err(); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return fmt.Errorf("删除key %s 失败: %w", key, err)
	}
	return nil
}

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"

	"resume-agent-go/internal/storage"
)

const defaultChatMemoryPrefix = "chatmemory:"

// RedisChatMemory 使用Redis List持久化对话历史。
// 每条消息序列化为JSON后RPush，读取时按顺序LRange还原。
type RedisChatMemory struct {
	store     *storage.Redis
	keyPrefix string
	// ttl 为0时历史不过期
	ttl time.Duration
}

var _ ChatMemory = (*RedisChatMemory)(nil)

// NewRedisChatMemory 创建Redis聊天历史存储
func NewRedisChatMemory(store *storage.Redis, keyPrefix string, ttl time.Duration) (*RedisChatMemory, error) {
	if store == nil {
		return nil, fmt.Errorf("redis存储不能为空")
	}
	if keyPrefix == "" {
		keyPrefix = defaultChatMemoryPrefix
	}
	return &RedisChatMemory{
		store:     store,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}, nil
}

func (rcm *RedisChatMemory) buildKey(sessionID string) string {
	return rcm.keyPrefix + sessionID
}

// GetHistory 实现 ChatMemory 接口
func (rcm *RedisChatMemory) GetHistory(ctx context.Context, sessionID string) ([]*schema.Message, error) {
	key := rcm.buildKey(sessionID)

	serialized, err := rcm.store.Client.LRange(ctx, key, 0, -1).Result()
	if errors.Is(err, redis.Nil) {
		return []*schema.Message{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取会话 %s 的历史失败: %w", sessionID, err)
	}

	messages := make([]*schema.Message, 0, len(serialized))
	for _, s := range serialized {
		var msg schema.Message
		if err := json.Unmarshal([]byte(s), &msg); err != nil {
			return nil, fmt.Errorf("反序列化会话 %s 的消息失败: %w", sessionID, err)
		}
		messages = append(messages, &msg)
	}
	return messages, nil
}

// AddMessage 实现 ChatMemory 接口
func (rcm *RedisChatMemory) AddMessage(ctx context.Context, sessionID string, message *schema.Message) error {
	if message == nil {
		return fmt.Errorf("不能向会话 %s 的历史中追加空消息", sessionID)
	}
	key := rcm.buildKey(sessionID)

	serialized, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("序列化会话 %s 的消息失败: %w", sessionID, err)
	}

	pipe := rcm.store.Client.TxPipeline()
	pipe.RPush(ctx, key, serialized)
	if rcm.ttl > 0 {
		pipe.Expire(ctx, key, rcm.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("写入会话 %s 的历史失败: %w", sessionID, err)
	}
	return nil
}

// ClearHistory 实现 ChatMemory 接口，删除操作带span记录
func (rcm *RedisChatMemory) ClearHistory(ctx context.Context, sessionID string) error {
	if err := rcm.store.TracedDel(ctx, rcm.buildKey(sessionID)); err != nil {
		return fmt.Errorf("清除会话 %s 的历史失败: %w", sessionID, err)
	}
	return nil
}

package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/schema"
)

// ChatMemory 对话历史存储接口
type ChatMemory interface {
	// GetHistory 获取会话的聊天历史。会话不存在时返回空切片和nil错误。
	GetHistory(ctx context.Context, sessionID string) ([]*schema.Message, error)

	// AddMessage 向会话历史追加一条消息
	AddMessage(ctx context.Context, sessionID string, message *schema.Message) error

	// ClearHistory 清除会话的全部历史。会话不存在时静默成功。
	ClearHistory(ctx context.Context, sessionID string) error
}

// InMemoryChatMemory 是 ChatMemory 的内存实现，不持久化，
// 用于测试和单进程运行模式。
type InMemoryChatMemory struct {
	mu        sync.RWMutex
	histories map[string][]*schema.Message
}

var _ ChatMemory = (*InMemoryChatMemory)(nil)

// NewInMemoryChatMemory 创建内存聊天历史
func NewInMemoryChatMemory() *InMemoryChatMemory {
	return &InMemoryChatMemory{
		histories: make(map[string][]*schema.Message),
	}
}

// GetHistory 实现 ChatMemory 接口
func (m *InMemoryChatMemory) GetHistory(ctx context.Context, sessionID string) ([]*schema.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history, ok := m.histories[sessionID]
	if !ok {
		return []*schema.Message{}, nil
	}
	// 返回副本，防止调用方改动内部存储
	cpy := make([]*schema.Message, len(history))
	copy(cpy, history)
	return cpy, nil
}

// AddMessage 实现 ChatMemory 接口
func (m *InMemoryChatMemory) AddMessage(ctx context.Context, sessionID string, message *schema.Message) error {
	if message == nil {
		return fmt.Errorf("不能向会话 %s 的历史中追加空消息", sessionID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.histories[sessionID] = append(m.histories[sessionID], message)
	return nil
}

// ClearHistory 实现 ChatMemory 接口
func (m *InMemoryChatMemory) ClearHistory(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.histories, sessionID)
	return nil
}

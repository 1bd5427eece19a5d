package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"resume-agent-go/internal/apperr"
)

// ObjectStore 生成文档的存储抽象。
// key 由调用方保证确定性，重复写入同一key覆盖旧内容。
type ObjectStore interface {
	// Put 写入对象，返回可供展示的存储位置
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)

	// Get 读取对象内容
	Get(ctx context.Context, key string) ([]byte, error)

	// Presign 生成限时访问链接；不支持预签名的实现返回存储位置本身
	Presign(ctx context.Context, key string, expiry time.Duration) (string, error)

	// Delete 删除对象，key不存在时静默成功
	Delete(ctx context.Context, key string) error
}

// MemoryObjectStore 是 ObjectStore 的内存实现，用于测试和无外部依赖的运行模式
type MemoryObjectStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

var _ ObjectStore = (*MemoryObjectStore)(nil)

// NewMemoryObjectStore 创建内存对象存储
func NewMemoryObjectStore() *MemoryObjectStore {
	return &MemoryObjectStore{
		objects: make(map[string][]byte),
	}
}

// Put 实现 ObjectStore 接口
func (m *MemoryObjectStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cpy := make([]byte, len(data))
	copy(cpy, data)
	m.objects[key] = cpy
	return "memory://" + key, nil
}

// Get 实现 ObjectStore 接口
func (m *MemoryObjectStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.objects[key]
	if !ok {
		return nil, apperr.NewNotFound("MemoryObjectStore.Get", "对象 "+key)
	}
	cpy := make([]byte, len(data))
	copy(cpy, data)
	return cpy, nil
}

// Presign 实现 ObjectStore 接口，内存实现直接返回存储位置
func (m *MemoryObjectStore) Presign(ctx context.Context, key string, expiry time.Duration) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.objects[key]; !ok {
		return "", apperr.NewNotFound("MemoryObjectStore.Presign", "对象 "+key)
	}
	return "memory://" + key, nil
}

// Delete 实现 ObjectStore 接口
func (m *MemoryObjectStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.objects, key)
	return nil
}

// Keys 返回当前所有对象key，排序后返回以便断言
func (m *MemoryObjectStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

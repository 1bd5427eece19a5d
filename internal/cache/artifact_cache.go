package cache

import "sync"

// ComputeFunc 构件的生产函数，缓存未命中时恰好被调用一次
type ComputeFunc func() (interface{}, error)

// ArtifactCache 以内容指纹为键的构件缓存。
// 同一指纹在会话内至多计算一次；计算失败不会被缓存，下次调用会重试。
// 互斥锁在计算期间持有，保证即使调用方出现重叠回合，
// 同一指纹也不会并发计算两次。
type ArtifactCache struct {
	mu      sync.Mutex
	entries map[string]interface{}
}

// New 创建一个空的构件缓存
func New() *ArtifactCache {
	return &ArtifactCache{
		entries: make(map[string]interface{}),
	}
}

// GetOrCompute 返回指纹对应的构件。命中时直接返回缓存值；
// 未命中时调用 compute 并存储结果。第二个返回值表示是否命中缓存。
func (c *ArtifactCache) GetOrCompute(fingerprint string, compute ComputeFunc) (interface{}, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.entries[fingerprint]; ok {
		return v, true, nil
	}

	v, err := compute()
	if err != nil {
		// 失败结果不进缓存，错误原样上抛
		return nil, false, err
	}
	c.entries[fingerprint] = v
	return v, false, nil
}

// Get 只查询不计算
func (c *ArtifactCache) Get(fingerprint string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[fingerprint]
	return v, ok
}

// Len 返回当前缓存的构件数量
func (c *ArtifactCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

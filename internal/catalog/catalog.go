package catalog

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"resume-agent-go/internal/apperr"
	"resume-agent-go/internal/types"
)

// Catalog 会话内已知岗位的集合。
// 岗位ID在集合内唯一；重复添加相同内容不会产生重复条目。
// 条目创建后不可变，仅在会话重置时整体清空。
type Catalog struct {
	mu   sync.Mutex
	byID map[string]*types.JobPosting
	// order 记录插入顺序，List 按此顺序返回
	order []string
}

// New 创建空的岗位目录
func New() *Catalog {
	return &Catalog{
		byID: make(map[string]*types.JobPosting),
	}
}

// AddFromSearch 批量录入搜索服务返回的岗位，返回实际对应的ID列表。
// 已存在的ID直接复用现有条目，不覆盖。
func (c *Catalog) AddFromSearch(postings []*types.JobPosting) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]string, 0, len(postings))
	for _, p := range postings {
		if p == nil || p.ID == "" {
			continue
		}
		if _, exists := c.byID[p.ID]; !exists {
			cp := *p
			cp.Source = types.ProvenanceSearched
			if cp.CreatedAt.IsZero() {
				cp.CreatedAt = time.Now()
			}
			c.byID[cp.ID] = &cp
			c.order = append(c.order, cp.ID)
		}
		ids = append(ids, p.ID)
	}
	return ids
}

// AddManual 录入用户手动粘贴的岗位描述。
// ID由规范化文本的内容指纹派生：同一段文本重复粘贴（含空白差异）解析到同一ID。
// 第二个返回值表示该ID是否已经存在（幂等插入）。
func (c *Catalog) AddManual(text string) (*types.JobPosting, bool) {
	id := types.ManualJobID(text)

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.byID[id]; ok {
		return existing, true
	}

	title, company := extractTitleCompany(text)
	posting := &types.JobPosting{
		ID:          id,
		Title:       title,
		Company:     company,
		Remote:      ClassifyRemote(text),
		Description: text,
		Source:      types.ProvenanceManual,
		// 标题/公司来自首行启发式，只是参考值
		AdvisoryFields: true,
		CreatedAt:      time.Now(),
	}
	c.byID[id] = posting
	c.order = append(c.order, id)
	return posting, false
}

// Get 按ID查询岗位
func (c *Catalog) Get(jobID string) (*types.JobPosting, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.byID[jobID]
	if !ok {
		return nil, apperr.NewNotFound("catalog.get", "岗位ID "+jobID)
	}
	return p, nil
}

// List 按插入顺序返回全部岗位
func (c *Catalog) List() []*types.JobPosting {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*types.JobPosting, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// Filter 按谓词筛选，保持插入顺序，不修改目录本身
func (c *Catalog) Filter(pred func(*types.JobPosting) bool) []*types.JobPosting {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []*types.JobPosting
	for _, id := range c.order {
		if p := c.byID[id]; pred(p) {
			out = append(out, p)
		}
	}
	return out
}

// Len 返回目录中的岗位数量
func (c *Catalog) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byID)
}

// Reset 清空目录，仅用于会话重置
func (c *Catalog) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID = make(map[string]*types.JobPosting)
	c.order = nil
}

const maxHeuristicTitleLen = 80

// extractTitleCompany 从粘贴文本中尽力提取标题和公司。
// 约定：第一条非空行视为标题；形如 "公司: X" / "Company: X" 的行视为公司。
// 这是显式的启发式，结果仅供参考。
func extractTitleCompany(text string) (title, company string) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if title == "" {
			title = truncateOnRune(line, maxHeuristicTitleLen)
			continue
		}
		lower := strings.ToLower(line)
		for _, prefix := range []string{"company:", "company：", "公司:", "公司："} {
			if strings.HasPrefix(lower, prefix) {
				company = strings.TrimSpace(line[len(prefix):])
				break
			}
		}
		if company != "" {
			break
		}
	}
	if title == "" {
		title = "未命名岗位"
	}
	return title, company
}

// truncateOnRune 按字节上限截断，但保证不会切开多字节字符
func truncateOnRune(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// ClassifyRemote 根据文本关键词判断远程类型
func ClassifyRemote(text string) types.RemoteType {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "hybrid") || strings.Contains(lower, "混合办公"):
		return types.RemoteTypeHybrid
	case strings.Contains(lower, "remote") || strings.Contains(lower, "远程"):
		return types.RemoteTypeRemote
	}
	return types.RemoteTypeOnsite
}

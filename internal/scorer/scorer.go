package scorer

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"resume-agent-go/internal/cache"
	"resume-agent-go/internal/session"
	"resume-agent-go/internal/types"

	"github.com/rs/zerolog"
)

// 部分匹配的默认计分权重。
// 该权重是一个可调参数而不是外部强约束，修改时需同步校准相关测试。
const defaultPartialWeight = 0.5

// Scorer 计算简历与岗位之间的兼容分数和差距分析。
// 计算前先查询构件缓存：同一 (简历指纹, 岗位ID) 对在会话内至多计算一次。
type Scorer struct {
	cache         *cache.ArtifactCache
	partialWeight float64
	logger        zerolog.Logger
}

// Option Scorer 的配置选项
type Option func(*Scorer)

// WithPartialWeight 覆盖部分匹配的计分权重
func WithPartialWeight(w float64) Option {
	return func(s *Scorer) {
		s.partialWeight = w
	}
}

// WithLogger 配置自定义日志记录器
func WithLogger(l zerolog.Logger) Option {
	return func(s *Scorer) {
		s.logger = l
	}
}

// New 创建匹配计分器
func New(artifactCache *cache.ArtifactCache, opts ...Option) *Scorer {
	s := &Scorer{
		cache:         artifactCache,
		partialWeight: defaultPartialWeight,
		logger:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score 计算指定简历与岗位的匹配分析。
// 简历或岗位不存在时返回 NotFound；结果写入会话并缓存。
// 第二个返回值表示本次是否命中缓存。
func (s *Scorer) Score(ctx context.Context, sess *session.Store, resumeFingerprint, jobID string) (*types.MatchAnalysis, bool, error) {
	rec, err := sess.ResumeByFingerprint(resumeFingerprint)
	if err != nil {
		return nil, false, err
	}
	job, err := sess.Jobs().Get(jobID)
	if err != nil {
		return nil, false, err
	}

	key := types.MatchKey(resumeFingerprint, jobID)
	v, hit, err := s.cache.GetOrCompute(key, func() (interface{}, error) {
		analysis := s.compute(rec.Profile.Skills, RequiredSkills(job))
		analysis.ResumeFingerprint = resumeFingerprint
		analysis.JobID = jobID
		analysis.CreatedAt = time.Now()
		return analysis, nil
	})
	if err != nil {
		return nil, false, err
	}

	analysis := v.(*types.MatchAnalysis)
	sess.PutAnalysis(analysis)

	s.logger.Debug().
		Str("job_id", jobID).
		Float64("score", analysis.Score).
		Bool("cache_hit", hit).
		Msg("岗位匹配计分完成")
	return analysis, hit, nil
}

// compute 纯函数的计分核心：
// 归一化双方技能集合后求精确交集、部分匹配集（子串重叠）和缺失集。
// 分数 = 100 * (精确数 + 权重*部分数) / max(1, 必备数)，截断到 [0,100]。
func (s *Scorer) compute(resumeSkills, required []string) *types.MatchAnalysis {
	resumeSet := normalizeSet(resumeSkills)
	requiredSet := normalizeSet(required)

	matched := make(map[string]bool)
	for skill := range requiredSet {
		if resumeSet[skill] {
			matched[skill] = true
		}
	}

	partial := make(map[string]bool)
	for jobSkill := range requiredSet {
		if matched[jobSkill] {
			continue
		}
		for resumeSkill := range resumeSet {
			if strings.Contains(jobSkill, resumeSkill) || strings.Contains(resumeSkill, jobSkill) {
				partial[jobSkill] = true
				break
			}
		}
	}

	missing := make(map[string]bool)
	for skill := range requiredSet {
		if !matched[skill] && !partial[skill] {
			missing[skill] = true
		}
	}

	total := len(requiredSet)
	score := 100 * (float64(len(matched)) + s.partialWeight*float64(len(partial))) / float64(max(1, total))
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}

	analysis := &types.MatchAnalysis{
		Score:          score,
		MatchedSkills:  sortedKeys(matched),
		PartialMatches: sortedKeys(partial),
		MissingSkills:  sortedKeys(missing),
	}
	analysis.GapSummary = fmt.Sprintf(
		"必备技能 %d 项：完全匹配 %d 项，部分匹配 %d 项，缺少 %d 项 (%s)",
		total, len(matched), len(partial), len(missing),
		strings.Join(analysis.MissingSkills, ", "))
	return analysis
}

// RequiredSkills 返回岗位的必备技能列表。
// 岗位自带结构化要求时直接使用，否则退回描述文本的关键词启发式。
func RequiredSkills(job *types.JobPosting) []string {
	if len(job.Requirements) > 0 {
		return job.Requirements
	}
	return ExtractKeywords(job.Description)
}

// 技术关键词提取模式
var techPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b[A-Z][a-z]+(?:\.[a-z]+)+\b`), // Node.js、Vue.js 这类
	regexp.MustCompile(`\b[A-Z]{2,}\b`),                // AWS、SQL 等缩写
	regexp.MustCompile(`(?i)\b(?:Python|Java|JavaScript|TypeScript|Golang|Ruby|Rust|Swift|Kotlin|C\+\+)\b`),
	regexp.MustCompile(`(?i)\b(?:React|Angular|Vue|Django|Flask|Spring|Gin|Express)\b`),
	regexp.MustCompile(`(?i)\b(?:AWS|Azure|GCP|Docker|Kubernetes|Redis|MySQL|PostgreSQL|Kafka|RabbitMQ)\b`),
}

// ExtractKeywords 从岗位描述中提取技术关键词。
// 启发式提取，仅在岗位没有结构化要求时作为退路。
func ExtractKeywords(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, pattern := range techPatterns {
		for _, m := range pattern.FindAllString(text, -1) {
			key := strings.ToLower(strings.TrimSpace(m))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i]) < strings.ToLower(out[j]) })
	return out
}

// normalizeSet 大小写折叠加去首尾空白，空项丢弃
func normalizeSet(skills []string) map[string]bool {
	set := make(map[string]bool, len(skills))
	for _, skill := range skills {
		normalized := strings.ToLower(strings.TrimSpace(skill))
		if normalized != "" {
			set[normalized] = true
		}
	}
	return set
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

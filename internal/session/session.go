package session

import (
	"fmt"
	"sync"
	"time"

	"resume-agent-go/internal/apperr"
	"resume-agent-go/internal/catalog"
	"resume-agent-go/internal/types"

	"github.com/gofrs/uuid/v5"
)

// 状态摘要默认携带的最近活动条数
const defaultActivityLimit = 20

// Store 单个会话的上下文存储，是会话内所有已知信息的唯一事实来源：
// 已上传的简历及其解析结构、岗位目录、匹配分析、已生成文档和最近活动日志。
// 由会话顶层驱动者持有并显式传入每个操作，不通过全局变量访问。
// 所有修改以单个操作为粒度串行化；进程重启后不保留（这是明示的限制）。
type Store struct {
	mu        sync.Mutex
	sessionID string

	// pendingSource 已上传但尚未解析的简历引用
	pendingSource string
	active        *types.ResumeRecord
	// resumes 按指纹保存所有出现过的简历记录。
	// 上传新文件只是取代 active，旧记录仍可按原指纹寻址，
	// 以便跨简历版本比较历史分析结果。
	resumes map[string]*types.ResumeRecord

	jobs *catalog.Catalog

	analyses map[string]*types.MatchAnalysis

	documents []*types.GeneratedDocument

	activity      []string
	activityLimit int
}

// New 创建一个新的会话上下文。sessionID 为空时自动生成。
func New(sessionID string) *Store {
	if sessionID == "" {
		sessionID = uuid.Must(uuid.NewV4()).String()
	}
	return &Store{
		sessionID:     sessionID,
		resumes:       make(map[string]*types.ResumeRecord),
		jobs:          catalog.New(),
		analyses:      make(map[string]*types.MatchAnalysis),
		activityLimit: defaultActivityLimit,
	}
}

// SessionID 返回会话标识
func (s *Store) SessionID() string {
	return s.sessionID
}

// RecordUpload 登记一次简历上传（尚未解析）
func (s *Store) RecordUpload(sourceRef string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingSource = sourceRef
	s.appendActivityLocked("收到简历文件: " + sourceRef)
}

// SetResume 记录/替换当前活跃简历。
// 不删除旧指纹关联的分析和文档记录，它们仍按原指纹可寻址。
func (s *Store) SetResume(rec *types.ResumeRecord) {
	if rec == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ParsedAt.IsZero() {
		rec.ParsedAt = time.Now()
	}
	s.resumes[rec.Fingerprint] = rec
	s.active = rec
	s.pendingSource = ""
	s.appendActivityLocked("简历解析完成: " + rec.SourceRef)
}

// HasResume 会话内是否已有简历（已上传即算，无论是否已解析）
func (s *Store) HasResume() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil || s.pendingSource != ""
}

// IsResumeParsed 当前活跃简历是否已解析出结构化数据
func (s *Store) IsResumeParsed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil && s.active.Profile != nil
}

// ActiveResume 返回当前活跃的简历记录，可能为 nil
func (s *Store) ActiveResume() *types.ResumeRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// ResumeSourceRef 返回当前简历的来源引用（文件路径等），没有则为空串
func (s *Store) ResumeSourceRef() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		return s.active.SourceRef
	}
	return s.pendingSource
}

// ResumeByFingerprint 按指纹查找简历记录，包括已被取代的旧版本
func (s *Store) ResumeByFingerprint(fingerprint string) (*types.ResumeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.resumes[fingerprint]
	if !ok {
		return nil, apperr.NewNotFound("session.resume", "简历指纹 "+fingerprint)
	}
	return rec, nil
}

// Jobs 返回会话拥有的岗位目录
func (s *Store) Jobs() *catalog.Catalog {
	return s.jobs
}

// PutAnalysis 记录一条匹配分析。同一 (指纹, 岗位) 对只保留一条。
func (s *Store) PutAnalysis(a *types.MatchAnalysis) {
	if a == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := types.MatchKey(a.ResumeFingerprint, a.JobID)
	if _, exists := s.analyses[key]; !exists {
		s.appendActivityLocked(fmt.Sprintf("完成岗位匹配分析: %s (得分 %.1f)", a.JobID, a.Score))
	}
	s.analyses[key] = a
}

// AnalysisFor 查询指定 (指纹, 岗位) 对的分析结果
func (s *Store) AnalysisFor(resumeFingerprint, jobID string) (*types.MatchAnalysis, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.analyses[types.MatchKey(resumeFingerprint, jobID)]
	return a, ok
}

// AnalysisCount 已完成的分析条数
func (s *Store) AnalysisCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.analyses)
}

// PutDocument 登记一份生成文档。
// 身份四元组相同的旧记录被覆盖，不会无限累积重复条目。
func (s *Store) PutDocument(d *types.GeneratedDocument) {
	if d == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.documents {
		if existing.ResumeFingerprint == d.ResumeFingerprint &&
			existing.JobID == d.JobID &&
			existing.Kind == d.Kind &&
			existing.Format == d.Format {
			s.documents[i] = d
			s.appendActivityLocked(fmt.Sprintf("重新生成文档: %s/%s (%s)", d.JobID, d.Kind, d.Format))
			return
		}
	}
	s.documents = append(s.documents, d)
	s.appendActivityLocked(fmt.Sprintf("生成文档: %s/%s (%s)", d.JobID, d.Kind, d.Format))
}

// Documents 返回全部生成文档记录
func (s *Store) Documents() []*types.GeneratedDocument {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*types.GeneratedDocument, len(s.documents))
	copy(out, s.documents)
	return out
}

// AppendActivity 向活动日志追加一条事实，超出上限时丢弃最旧的条目
func (s *Store) AppendActivity(fact string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendActivityLocked(fact)
}

func (s *Store) appendActivityLocked(fact string) {
	entry := fmt.Sprintf("[%s] %s", time.Now().Format("15:04"), fact)
	s.activity = append(s.activity, entry)
	if len(s.activity) > s.activityLimit {
		s.activity = s.activity[len(s.activity)-s.activityLimit:]
	}
}

// ContextSummary 生成会话状态摘要。
// 调度策略和推理客户端依赖它判断已有信息，避免向用户重复提问。
func (s *Store) ContextSummary(lastN int) *types.ContextSummary {
	// 先读目录再拿锁：目录有自己的锁，持有 s.mu 时不访问它
	jobCount := s.jobs.Len()

	s.mu.Lock()
	defer s.mu.Unlock()

	summary := &types.ContextSummary{
		SessionID:     s.sessionID,
		HasResume:     s.active != nil || s.pendingSource != "",
		ResumeParsed:  s.active != nil && s.active.Profile != nil,
		JobCount:      jobCount,
		AnalysisCount: len(s.analyses),
		DocumentCount: len(s.documents),
	}
	if s.active != nil {
		summary.ResumeFingerprint = s.active.Fingerprint
		if s.active.Profile != nil {
			summary.CandidateName = s.active.Profile.Contact.Name
		}
	}
	if lastN <= 0 || lastN > len(s.activity) {
		lastN = len(s.activity)
	}
	summary.RecentActivity = append([]string(nil), s.activity[len(s.activity)-lastN:]...)
	return summary
}

// Reset 清空会话的全部聚合状态，用于显式的"新会话"语义
func (s *Store) Reset() {
	s.mu.Lock()
	s.pendingSource = ""
	s.active = nil
	s.resumes = make(map[string]*types.ResumeRecord)
	s.analyses = make(map[string]*types.MatchAnalysis)
	s.documents = nil
	s.activity = nil
	s.mu.Unlock()

	// 目录有自己的锁，放在 s.mu 之外清空
	s.jobs.Reset()
}

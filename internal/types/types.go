package types

import "time"

// RemoteType 表示岗位的远程办公类型
type RemoteType string

const (
	RemoteTypeRemote  RemoteType = "remote"
	RemoteTypeHybrid  RemoteType = "hybrid"
	RemoteTypeOnsite  RemoteType = "onsite"
	RemoteTypeUnknown RemoteType = "unknown"
)

// Provenance 表示岗位的来源：搜索服务返回或用户手动粘贴
type Provenance string

const (
	ProvenanceSearched Provenance = "searched"
	ProvenanceManual   Provenance = "manual"
)

// DocumentKind 生成文档的种类
type DocumentKind string

const (
	DocumentKindResume      DocumentKind = "resume"
	DocumentKindCoverLetter DocumentKind = "cover_letter"
)

// DocumentFormat 生成文档的输出格式
type DocumentFormat string

const (
	DocumentFormatPDF  DocumentFormat = "pdf"
	DocumentFormatDocx DocumentFormat = "docx"
	DocumentFormatText DocumentFormat = "text"
)

// ContactInfo 从简历中提取的联系方式
type ContactInfo struct {
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Location string `json:"location,omitempty"`
	LinkedIn string `json:"linkedin,omitempty"`
	GitHub   string `json:"github,omitempty"`
}

// ExperienceEntry 一段工作经历
type ExperienceEntry struct {
	Title   string   `json:"title"`
	Company string   `json:"company"`
	Dates   string   `json:"dates,omitempty"`
	Bullets []string `json:"bullets,omitempty"`
}

// EducationEntry 一段教育经历
type EducationEntry struct {
	Degree      string `json:"degree"`
	Institution string `json:"institution"`
	Dates       string `json:"dates,omitempty"`
}

// ResumeProfile 简历的结构化数据
type ResumeProfile struct {
	Contact    ContactInfo       `json:"contact"`
	Summary    string            `json:"summary,omitempty"`
	Skills     []string          `json:"skills"`
	Experience []ExperienceEntry `json:"experience"`
	Education  []EducationEntry  `json:"education"`
	RawText    string            `json:"raw_text,omitempty"`
}

// ResumeRecord 一份已解析的简历。
// 身份由内容指纹决定而不是文件路径：同一文件以不同路径上传仍命中同一条记录。
// 创建后不再变更；上传不同文件会产生新指纹和新记录，旧记录仍可按指纹寻址。
type ResumeRecord struct {
	Fingerprint string         `json:"fingerprint"`
	SourceRef   string         `json:"source_ref"`
	Profile     *ResumeProfile `json:"profile"`
	ParsedAt    time.Time      `json:"parsed_at"`
}

// JobPosting 一条岗位信息。创建后不可变，仅在会话重置时移除。
type JobPosting struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Company     string     `json:"company,omitempty"`
	Location    string     `json:"location,omitempty"`
	Remote      RemoteType `json:"remote_type"`
	SalaryRange string     `json:"salary_range,omitempty"`
	URL         string     `json:"url,omitempty"`
	Description string     `json:"description"`
	// Requirements 岗位要求的技能列表；搜索结果通常为空，由关键词启发式补充
	Requirements []string   `json:"requirements,omitempty"`
	Source       Provenance `json:"source"`
	// AdvisoryFields 为 true 时表示 Title/Company 来自首行启发式提取，
	// 调用方只能当作参考值使用
	AdvisoryFields bool      `json:"advisory_fields,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// MatchAnalysis 简历与岗位的匹配分析结果。
// 身份为 (简历指纹, 岗位ID)，同一对输入只保留一条记录。
type MatchAnalysis struct {
	ResumeFingerprint string    `json:"resume_fingerprint"`
	JobID             string    `json:"job_id"`
	Score             float64   `json:"score"`
	MatchedSkills     []string  `json:"matched_skills"`
	PartialMatches    []string  `json:"partial_matches"`
	MissingSkills     []string  `json:"missing_skills"`
	GapSummary        string    `json:"gap_summary"`
	CreatedAt         time.Time `json:"created_at"`
}

// GeneratedDocument 一份已生成的求职文档。
// 身份为 (简历指纹, 岗位ID, 种类, 格式)；重复生成覆盖同一逻辑槽位。
type GeneratedDocument struct {
	ResumeFingerprint string         `json:"resume_fingerprint"`
	JobID             string         `json:"job_id"`
	Kind              DocumentKind   `json:"kind"`
	Format            DocumentFormat `json:"format"`
	StorageKey        string         `json:"storage_key"`
	GeneratedAt       time.Time      `json:"generated_at"`
}

// ContextSummary 会话状态摘要，供调度策略和状态查询使用
type ContextSummary struct {
	SessionID         string   `json:"session_id"`
	HasResume         bool     `json:"has_resume"`
	ResumeParsed      bool     `json:"resume_parsed"`
	ResumeFingerprint string   `json:"resume_fingerprint,omitempty"`
	CandidateName     string   `json:"candidate_name,omitempty"`
	JobCount          int      `json:"job_count"`
	AnalysisCount     int      `json:"analysis_count"`
	DocumentCount     int      `json:"document_count"`
	RecentActivity    []string `json:"recent_activity"`
}

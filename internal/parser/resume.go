package parser

import (
	"bytes"
	"context"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"resume-agent-go/internal/apperr"
	"resume-agent-go/internal/types"
)

// 联系方式与技能提取用到的正则，包级编译一次
var (
	emailRe    = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phoneRe    = regexp.MustCompile(`(\+?\d{1,3}[\s.-]?)?\(?\d{3}\)?[\s.-]?\d{3}[\s.-]?\d{4}`)
	linkedinRe = regexp.MustCompile(`(?i)linkedin\.com/in/[\w-]+`)
	githubRe   = regexp.MustCompile(`(?i)github\.com/[\w-]+`)
	locationRe = regexp.MustCompile(`\b([A-Z][a-zA-Z]+(?:\s[A-Z][a-zA-Z]+)*),\s*([A-Z]{2})\b`)
	skillSepRe = regexp.MustCompile(`[,;|\n•·]`)
	blockSepRe = regexp.MustCompile(`\n\s*\n`)
)

// 各区块的标题关键词，匹配时忽略大小写
var sectionHeaders = map[string][]string{
	"summary":    {"summary", "objective", "profile", "about"},
	"experience": {"experience", "employment", "work history", "professional experience"},
	"education":  {"education", "academic", "qualification"},
	"skills":     {"skills", "technical skills", "technologies", "competencies", "expertise"},
}

// ResumeParser 简历解析服务。
// 接收原始文件字节，提取纯文本并结构化为 ResumeProfile。
type ResumeParser struct {
	pdfExtractor *PDFTextExtractor
	logger       zerolog.Logger
}

// ResumeParserOption 配置选项
type ResumeParserOption func(*ResumeParser)

// WithLogger 配置自定义日志记录器
func WithLogger(l zerolog.Logger) ResumeParserOption {
	return func(p *ResumeParser) {
		p.logger = l
	}
}

// NewResumeParser 创建简历解析服务。
// pdfExtractor 可以为 nil，此时仅支持纯文本简历。
func NewResumeParser(pdfExtractor *PDFTextExtractor, options ...ResumeParserOption) *ResumeParser {
	p := &ResumeParser{
		pdfExtractor: pdfExtractor,
		logger:       zerolog.Nop(),
	}
	for _, option := range options {
		option(p)
	}
	return p
}

// Parse 解析简历文件内容，返回带指纹的结构化记录。
// 相同字节总是产生相同指纹，上层缓存依赖这一点。
func (p *ResumeParser) Parse(ctx context.Context, data []byte, sourceRef string) (*types.ResumeRecord, error) {
	const op = "ResumeParser.Parse"
	if len(data) == 0 {
		return nil, apperr.NewParseFailure(op, "文件内容为空", nil)
	}

	fingerprint := types.Fingerprint(data)

	var text string
	switch ext := strings.ToLower(filepath.Ext(sourceRef)); ext {
	case ".pdf":
		if p.pdfExtractor == nil {
			return nil, apperr.NewParseFailure(op, "PDF提取器未配置", nil)
		}
		extracted, err := p.pdfExtractor.ExtractTextFromReader(ctx, bytes.NewReader(data), sourceRef)
		if err != nil {
			return nil, apperr.NewParseFailure(op, "PDF文本提取失败", err)
		}
		text = extracted
	case ".docx":
		extracted, err := ExtractDocxText(data)
		if err != nil {
			return nil, apperr.NewParseFailure(op, "DOCX文本提取失败", err)
		}
		text = extracted
	case ".txt", ".md", "":
		text = string(data)
	default:
		return nil, apperr.NewParseFailure(op, "不支持的文件格式: "+ext, nil)
	}

	if strings.TrimSpace(text) == "" {
		return nil, apperr.NewParseFailure(op, "提取的文本为空", nil)
	}

	profile := BuildProfile(text)
	p.logger.Info().
		Str("fingerprint", fingerprint[:12]).
		Str("source", sourceRef).
		Int("skills", len(profile.Skills)).
		Msg("简历解析完成")

	return &types.ResumeRecord{
		Fingerprint: fingerprint,
		SourceRef:   sourceRef,
		Profile:     profile,
		ParsedAt:    time.Now(),
	}, nil
}

// BuildProfile 将简历纯文本结构化。
// 基于标题行切分区块后分别解析，未标记的开头部分作为摘要候选。
func BuildProfile(text string) *types.ResumeProfile {
	profile := &types.ResumeProfile{
		Contact: extractContact(text),
		RawText: text,
	}

	sections := splitSections(text)
	if s, ok := sections["summary"]; ok {
		profile.Summary = strings.TrimSpace(s)
	}
	if s, ok := sections["skills"]; ok {
		profile.Skills = parseSkills(s)
	}
	if s, ok := sections["experience"]; ok {
		profile.Experience = parseExperience(s)
	}
	if s, ok := sections["education"]; ok {
		profile.Education = parseEducation(s)
	}
	return profile
}

// extractContact 从全文提取联系方式
func extractContact(text string) types.ContactInfo {
	contact := types.ContactInfo{
		Email:    emailRe.FindString(text),
		Phone:    strings.TrimSpace(phoneRe.FindString(text)),
		LinkedIn: linkedinRe.FindString(text),
		GitHub:   githubRe.FindString(text),
	}
	if m := locationRe.FindStringSubmatch(text); m != nil {
		contact.Location = m[1] + ", " + m[2]
	}
	// 名字取首个非空行，排除明显是联系方式的行
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if emailRe.MatchString(line) || phoneRe.MatchString(line) || len(line) > 60 {
			break
		}
		contact.Name = line
		break
	}
	return contact
}

// splitSections 按标题行切分区块。
// 标题行要求较短，避免正文中出现关键词时误切。
func splitSections(text string) map[string]string {
	sections := make(map[string]string)
	current := ""
	var buf strings.Builder

	flush := func() {
		if current != "" && buf.Len() > 0 {
			sections[current] = buf.String()
		}
		buf.Reset()
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		lower := strings.ToLower(strings.TrimRight(trimmed, ":："))
		matched := ""
		if len(lower) > 0 && len(lower) <= 40 {
			for name, keywords := range sectionHeaders {
				for _, kw := range keywords {
					if lower == kw || strings.HasPrefix(lower, kw+" ") {
						matched = name
						break
					}
				}
				if matched != "" {
					break
				}
			}
		}
		if matched != "" {
			flush()
			current = matched
			continue
		}
		if current != "" {
			buf.WriteString(line)
			buf.WriteString("\n")
		}
	}
	flush()
	return sections
}

// parseSkills 拆分技能区块，去重并保持出现顺序
func parseSkills(section string) []string {
	seen := make(map[string]struct{})
	var skills []string
	for _, part := range skillSepRe.Split(section, -1) {
		skill := strings.TrimSpace(strings.Trim(part, "-* \t"))
		if skill == "" || len(skill) > 50 {
			continue
		}
		key := strings.ToLower(skill)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		skills = append(skills, skill)
	}
	return skills
}

// parseExperience 解析工作经历。
// 条目以空行分隔，首行为 "职位 - 公司 (时间段)" 形式，其余行视为要点。
func parseExperience(section string) []types.ExperienceEntry {
	var entries []types.ExperienceEntry
	for _, block := range splitBlocks(section) {
		lines := nonEmptyLines(block)
		if len(lines) == 0 {
			continue
		}
		entry := types.ExperienceEntry{}
		head := lines[0]
		if open := strings.LastIndex(head, "("); open >= 0 && strings.HasSuffix(head, ")") {
			entry.Dates = strings.TrimSpace(head[open+1 : len(head)-1])
			head = strings.TrimSpace(head[:open])
		}
		if idx := strings.Index(head, " - "); idx >= 0 {
			entry.Title = strings.TrimSpace(head[:idx])
			entry.Company = strings.TrimSpace(head[idx+3:])
		} else if idx := strings.Index(head, " @ "); idx >= 0 {
			entry.Title = strings.TrimSpace(head[:idx])
			entry.Company = strings.TrimSpace(head[idx+3:])
		} else {
			entry.Title = head
		}
		for _, line := range lines[1:] {
			entry.Bullets = append(entry.Bullets, strings.TrimLeft(line, "-•* \t"))
		}
		entries = append(entries, entry)
	}
	return entries
}

// parseEducation 解析教育经历，每行一条，逗号分隔学位、院校、时间
func parseEducation(section string) []types.EducationEntry {
	var entries []types.EducationEntry
	for _, line := range nonEmptyLines(section) {
		parts := strings.SplitN(line, ",", 3)
		entry := types.EducationEntry{Degree: strings.TrimSpace(parts[0])}
		if len(parts) > 1 {
			entry.Institution = strings.TrimSpace(parts[1])
		}
		if len(parts) > 2 {
			entry.Dates = strings.TrimSpace(parts[2])
		}
		entries = append(entries, entry)
	}
	return entries
}

func splitBlocks(s string) []string {
	return blockSepRe.Split(s, -1)
}

func nonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, strings.TrimSpace(line))
		}
	}
	return out
}

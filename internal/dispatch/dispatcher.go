package dispatch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"resume-agent-go/internal/apperr"
	"resume-agent-go/internal/cache"
	"resume-agent-go/internal/generator"
	"resume-agent-go/internal/parser"
	"resume-agent-go/internal/provider"
	"resume-agent-go/internal/scorer"
	"resume-agent-go/internal/session"
	"resume-agent-go/internal/tracing"
	"resume-agent-go/internal/types"
)

// 调度操作的专用tracer
var dispatchTracer = otel.Tracer("resume-agent-go/dispatch")

// Result 操作的统一返回结构，扁平JSON，带显式成败标志
type Result struct {
	Status    string      `json:"status"`
	Message   string      `json:"message"`
	CacheHit  bool        `json:"cache_hit,omitempty"`
	ErrorKind apperr.Kind `json:"error_kind,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

const (
	statusSuccess = "success"
	statusError   = "error"
)

func successResult(message string, data interface{}) *Result {
	return &Result{Status: statusSuccess, Message: message, Data: data}
}

func errorResult(err error) *Result {
	return &Result{Status: statusError, Message: err.Error(), ErrorKind: apperr.KindOf(err)}
}

// JobSearcher 岗位搜索的外部边界
type JobSearcher interface {
	Search(ctx context.Context, req provider.SearchRequest) ([]*types.JobPosting, error)
}

// Dispatcher 操作调度器。
// 先经 Resolve 校验补全参数，再委托给对应组件执行；
// 会话始终由调用方显式传入。
type Dispatcher struct {
	artifacts    *cache.ArtifactCache
	resumeParser *parser.ResumeParser
	searcher     JobSearcher
	matcher      *scorer.Scorer
	documents    *generator.Generator
	logger       zerolog.Logger
}

// Option 配置选项
type Option func(*Dispatcher)

// WithLogger 配置自定义日志记录器
func WithLogger(l zerolog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// WithSearcher 配置岗位搜索客户端，未配置时搜索操作返回 PROVIDER_ERROR
func WithSearcher(s JobSearcher) Option {
	return func(d *Dispatcher) {
		d.searcher = s
	}
}

// New 创建调度器
func New(artifacts *cache.ArtifactCache, resumeParser *parser.ResumeParser, matcher *scorer.Scorer, documents *generator.Generator, options ...Option) (*Dispatcher, error) {
	if artifacts == nil || resumeParser == nil || matcher == nil || documents == nil {
		return nil, fmt.Errorf("调度器的核心组件不能为空")
	}
	d := &Dispatcher{
		artifacts:    artifacts,
		resumeParser: resumeParser,
		matcher:      matcher,
		documents:    documents,
		logger:       zerolog.Nop(),
	}
	for _, option := range options {
		option(d)
	}
	return d, nil
}

// Execute 执行一个操作并返回结构化结果。
// 所有失败都折叠进 Result，错误不向上抛，推理端只消费JSON。
func (d *Dispatcher) Execute(ctx context.Context, sess *session.Store, op Operation, args map[string]any) *Result {
	ctx, span := dispatchTracer.Start(ctx, "dispatch."+string(op))
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sess.SessionID()))

	resolved, err := Resolve(op, args, sess)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeOperation)
		d.logger.Debug().Str("operation", string(op)).Err(err).Msg("参数解析失败")
		return errorResult(err)
	}
	for name, value := range resolved {
		if s, ok := value.(string); ok {
			span.SetAttributes(attribute.String("dispatch.arg."+name, tracing.SafeOperationArg(name, s)))
		}
	}

	var result *Result
	switch op {
	case OpParseResume:
		result = d.execParseResume(ctx, sess, resolved)
	case OpSearchJobs:
		result = d.execSearchJobs(ctx, sess, resolved)
	case OpSaveJobPosting:
		result = d.execSaveJobPosting(sess, resolved)
	case OpGetJobDetails:
		result = d.execGetJobDetails(sess, resolved)
	case OpListJobs:
		result = successResult(fmt.Sprintf("目录中共有 %d 个岗位", sess.Jobs().Len()), sess.Jobs().List())
	case OpFilterJobs:
		result = d.execFilterJobs(sess, resolved)
	case OpMatchResumeToJob:
		result = d.execMatch(ctx, sess, resolved)
	case OpGenerateDocument:
		result = d.execGenerate(ctx, sess, resolved)
	case OpListDocuments:
		result = successResult(fmt.Sprintf("已生成 %d 份文档", len(sess.Documents())), sess.Documents())
	case OpSessionStatus:
		result = successResult("会话状态", sess.ContextSummary(5))
	case OpResetSession:
		// 只清会话聚合状态。构件缓存按内容指纹寻址且被所有会话共享，
		// 一个会话的重置不应驱逐其他会话已算好的构件。
		sess.Reset()
		result = successResult("会话已重置", nil)
	default:
		result = errorResult(apperr.NewNotFound("dispatch.execute", "未知操作 "+string(op)))
	}

	if result.Status == statusError {
		tracing.RecordErrorWithInfo(span, errors.New(result.Message), errorTypeForKind(result.ErrorKind),
			attribute.String("error.kind", string(result.ErrorKind)))
	}
	span.SetAttributes(attribute.Bool("dispatch.cache_hit", result.CacheHit))
	return result
}

// errorTypeForKind 将错误类别映射为span上的错误类型标签
func errorTypeForKind(kind apperr.Kind) tracing.ErrorType {
	switch kind {
	case apperr.KindProviderError:
		return tracing.ErrorTypeProvider
	case apperr.KindParseFailure:
		return tracing.ErrorTypeParse
	case apperr.KindRenderError:
		return tracing.ErrorTypeRender
	case apperr.KindInternal:
		return tracing.ErrorTypeInternal
	}
	return tracing.ErrorTypeOperation
}

// execParseResume 读取文件并解析简历，相同内容命中构件缓存
func (d *Dispatcher) execParseResume(ctx context.Context, sess *session.Store, args map[string]any) *Result {
	path := stringArg(args, "file_path")
	data, err := os.ReadFile(path)
	if err != nil {
		return errorResult(apperr.NewNotFound("dispatch.parse_resume", "无法读取文件 "+path))
	}

	sess.RecordUpload(path)

	fingerprint := types.Fingerprint(data)
	v, hit, err := d.artifacts.GetOrCompute(fingerprint, func() (interface{}, error) {
		return d.resumeParser.Parse(ctx, data, path)
	})
	if err != nil {
		return errorResult(err)
	}
	record := v.(*types.ResumeRecord)
	sess.SetResume(record)

	result := successResult("简历解析完成", record.Profile)
	result.CacheHit = hit
	if hit {
		result.Message = "简历此前已解析，直接使用缓存结果"
	}
	return result
}

// execSearchJobs 调用搜索服务并把结果录入目录。
// 搜索失败时目录保持原状，不做部分插入。
func (d *Dispatcher) execSearchJobs(ctx context.Context, sess *session.Store, args map[string]any) *Result {
	if d.searcher == nil {
		return errorResult(apperr.NewProviderError("dispatch.search_jobs", "未配置岗位搜索服务", nil))
	}

	req := provider.SearchRequest{
		Query:    stringArg(args, "query"),
		Location: stringArg(args, "location"),
		Remote:   boolArg(args, "remote"),
		Limit:    intArg(args, "limit"),
	}
	postings, err := d.searcher.Search(ctx, req)
	if err != nil {
		return errorResult(err)
	}

	ids := sess.Jobs().AddFromSearch(postings)
	sess.AppendActivity(fmt.Sprintf("搜索「%s」返回 %d 个岗位", req.Query, len(ids)))
	return successResult(fmt.Sprintf("找到 %d 个岗位", len(postings)), postings)
}

// execSaveJobPosting 录入手动粘贴的岗位描述，幂等
func (d *Dispatcher) execSaveJobPosting(sess *session.Store, args map[string]any) *Result {
	text := stringArg(args, "text")
	posting, existed := sess.Jobs().AddManual(text)
	if existed {
		return successResult("该岗位描述此前已保存，复用现有条目 "+posting.ID, posting)
	}
	sess.AppendActivity(fmt.Sprintf("保存了手动岗位 %s（%s）", posting.ID, posting.Title))
	return successResult("岗位已保存，ID为 "+posting.ID, posting)
}

func (d *Dispatcher) execGetJobDetails(sess *session.Store, args map[string]any) *Result {
	posting, err := sess.Jobs().Get(stringArg(args, "job_id"))
	if err != nil {
		return errorResult(err)
	}
	return successResult("岗位详情", posting)
}

// execFilterJobs 按条件筛选目录，不修改目录本身
func (d *Dispatcher) execFilterJobs(sess *session.Store, args map[string]any) *Result {
	minScore, hasMinScore := floatArg(args, "min_score")
	remoteOnly := boolArg(args, "remote_only")
	hasSalary := boolArg(args, "has_salary")

	var rf string
	if rec := sess.ActiveResume(); rec != nil {
		rf = rec.Fingerprint
	}
	if hasMinScore && rf == "" {
		return errorResult(apperr.NewMissingArgument("dispatch.filter_jobs", "resume_fingerprint"))
	}

	// 先快照目录再逐条判定：谓词里会取会话锁，不能在目录锁内执行
	var filtered []*types.JobPosting
	for _, p := range sess.Jobs().List() {
		if remoteOnly && p.Remote != types.RemoteTypeRemote {
			continue
		}
		if hasSalary && p.SalaryRange == "" {
			continue
		}
		if hasMinScore {
			analysis, ok := sess.AnalysisFor(rf, p.ID)
			if !ok || analysis.Score < minScore {
				continue
			}
		}
		filtered = append(filtered, p)
	}
	return successResult(fmt.Sprintf("筛选出 %d 个岗位", len(filtered)), filtered)
}

// execMatch 计算简历与岗位的匹配分析，重复请求命中缓存
func (d *Dispatcher) execMatch(ctx context.Context, sess *session.Store, args map[string]any) *Result {
	rf := stringArg(args, "resume_fingerprint")
	jobID := stringArg(args, "job_id")

	analysis, hit, err := d.matcher.Score(ctx, sess, rf, jobID)
	if err != nil {
		return errorResult(err)
	}

	result := successResult(fmt.Sprintf("匹配度 %.1f 分", analysis.Score), analysis)
	result.CacheHit = hit
	return result
}

// execGenerate 生成求职文档
func (d *Dispatcher) execGenerate(ctx context.Context, sess *session.Store, args map[string]any) *Result {
	rf := stringArg(args, "resume_fingerprint")
	jobID := stringArg(args, "job_id")
	kind := types.DocumentKind(strings.ToLower(stringArg(args, "kind")))
	format := types.DocumentFormat(strings.ToLower(stringArg(args, "format")))

	doc, err := d.documents.Generate(ctx, sess, rf, jobID, kind, format)
	if err != nil {
		return errorResult(err)
	}
	return successResult("文档已生成，存储键 "+doc.StorageKey, doc)
}

package generator

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"resume-agent-go/internal/apperr"
	"resume-agent-go/internal/eventbus"
	"resume-agent-go/internal/session"
	"resume-agent-go/internal/storage"
	"resume-agent-go/internal/types"
)

// Generator 文档生成服务。
// 前置条件是简历已解析且岗位存在，任一不满足直接失败，不做兜底生成。
type Generator struct {
	store     storage.ObjectStore
	renderers map[types.DocumentFormat]DocumentRenderer
	optimizer ContentOptimizer
	publisher eventbus.EventPublisher
	logger    zerolog.Logger
}

// Option 配置选项
type Option func(*Generator)

// WithOptimizer 配置内容润色器
func WithOptimizer(o ContentOptimizer) Option {
	return func(g *Generator) {
		g.optimizer = o
	}
}

// WithPublisher 配置活动事件发布器
func WithPublisher(p eventbus.EventPublisher) Option {
	return func(g *Generator) {
		g.publisher = p
	}
}

// WithLogger 配置自定义日志记录器
func WithLogger(l zerolog.Logger) Option {
	return func(g *Generator) {
		g.logger = l
	}
}

// New 创建文档生成服务。
// renderers 决定支持哪些输出格式，未注册的格式在生成时返回 RENDER_ERROR。
func New(store storage.ObjectStore, renderers []DocumentRenderer, options ...Option) (*Generator, error) {
	if store == nil {
		return nil, fmt.Errorf("对象存储不能为空")
	}
	if len(renderers) == 0 {
		return nil, fmt.Errorf("至少需要注册一个渲染器")
	}

	byFormat := make(map[types.DocumentFormat]DocumentRenderer, len(renderers))
	for _, r := range renderers {
		byFormat[r.Format()] = r
	}

	g := &Generator{
		store:     store,
		renderers: byFormat,
		optimizer: NoopOptimizer{},
		publisher: eventbus.NopPublisher{},
		logger:    zerolog.Nop(),
	}
	for _, option := range options {
		option(g)
	}
	return g, nil
}

// Generate 为 (简历, 岗位) 对生成一份文档并持久化。
// 同一身份四元组重复生成会覆盖旧文档，存储键保持不变。
func (g *Generator) Generate(ctx context.Context, sess *session.Store, resumeFingerprint, jobID string, kind types.DocumentKind, format types.DocumentFormat) (*types.GeneratedDocument, error) {
	const op = "Generator.Generate"

	record, err := sess.ResumeByFingerprint(resumeFingerprint)
	if err != nil {
		return nil, err
	}
	job, err := sess.Jobs().Get(jobID)
	if err != nil {
		return nil, err
	}

	renderer, ok := g.renderers[format]
	if !ok {
		return nil, apperr.NewRenderError(op, "不支持的输出格式: "+string(format), nil)
	}

	analysis, _ := sess.AnalysisFor(resumeFingerprint, jobID)

	var draft, title string
	switch kind {
	case types.DocumentKindCoverLetter:
		draft = composeCoverLetter(record.Profile, job, analysis)
		title = "Cover Letter - " + job.Title
	case types.DocumentKindResume:
		draft = composeResume(record.Profile, job, analysis)
		title = "Resume - " + job.Title
	default:
		return nil, apperr.NewRenderError(op, "未知的文档种类: "+string(kind), nil)
	}

	content, err := g.optimizer.Optimize(ctx, kind, draft, job)
	if err != nil {
		return nil, err
	}

	data, contentType, err := renderer.Render(ctx, RenderRequest{Kind: kind, Title: title, Body: content})
	if err != nil {
		return nil, err
	}

	key := types.DocumentKey(resumeFingerprint, jobID, kind, format)
	if _, err := g.store.Put(ctx, key, data, contentType); err != nil {
		return nil, apperr.NewRenderError(op, "持久化文档失败", err)
	}

	doc := &types.GeneratedDocument{
		ResumeFingerprint: resumeFingerprint,
		JobID:             jobID,
		Kind:              kind,
		Format:            format,
		StorageKey:        key,
		GeneratedAt:       time.Now(),
	}
	sess.PutDocument(doc)
	sess.AppendActivity(fmt.Sprintf("生成了 %s（岗位 %s，格式 %s）", kind, job.Title, format))

	// 事件发布失败只记日志，不影响生成结果
	if err := g.publisher.PublishActivity(ctx, eventbus.ActivityEvent{
		SessionID: sess.SessionID(),
		Operation: "generate_document",
		Fact:      fmt.Sprintf("%s/%s for %s", kind, format, jobID),
	}); err != nil {
		g.logger.Warn().Err(err).Msg("发布文档生成事件失败")
	}

	g.logger.Info().
		Str("fingerprint", shortFingerprint(resumeFingerprint)).
		Str("job_id", jobID).
		Str("kind", string(kind)).
		Str("format", string(format)).
		Str("key", key).
		Msg("文档生成完成")
	return doc, nil
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}

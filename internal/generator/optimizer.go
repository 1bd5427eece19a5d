package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"resume-agent-go/internal/apperr"
	"resume-agent-go/internal/types"
)

// ContentOptimizer 对文档草稿做针对岗位的内容润色。
// 生成流程不依赖润色器，未配置时直接使用草稿。
type ContentOptimizer interface {
	Optimize(ctx context.Context, kind types.DocumentKind, draft string, job *types.JobPosting) (string, error)
}

// NoopOptimizer 原样返回草稿
type NoopOptimizer struct{}

var _ ContentOptimizer = (*NoopOptimizer)(nil)

func (NoopOptimizer) Optimize(ctx context.Context, kind types.DocumentKind, draft string, job *types.JobPosting) (string, error) {
	return draft, nil
}

// LLMOptimizer 通过聊天模型润色文档内容
type LLMOptimizer struct {
	chatModel model.BaseChatModel
}

var _ ContentOptimizer = (*LLMOptimizer)(nil)

// NewLLMOptimizer 创建LLM润色器
func NewLLMOptimizer(chatModel model.BaseChatModel) (*LLMOptimizer, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("聊天模型不能为空")
	}
	return &LLMOptimizer{chatModel: chatModel}, nil
}

// Optimize 实现 ContentOptimizer 接口。
// 模型调用失败返回 PROVIDER_ERROR，不自动重试。
func (o *LLMOptimizer) Optimize(ctx context.Context, kind types.DocumentKind, draft string, job *types.JobPosting) (string, error) {
	const op = "LLMOptimizer.Optimize"

	var instruction string
	switch kind {
	case types.DocumentKindCoverLetter:
		instruction = "你是求职文书顾问。请在保留全部事实的前提下润色这封求职信，使其更贴合目标岗位，语气专业自然。只输出润色后的正文。"
	default:
		instruction = "你是简历优化顾问。请在不虚构任何经历的前提下调整这份简历文本，突出与目标岗位相关的技能和经验。只输出调整后的正文。"
	}

	jobContext := fmt.Sprintf("目标岗位: %s", job.Title)
	if job.Company != "" {
		jobContext += fmt.Sprintf("（%s）", job.Company)
	}
	if job.Description != "" {
		jobContext += "\n岗位描述:\n" + job.Description
	}

	messages := []*schema.Message{
		schema.SystemMessage(instruction),
		schema.UserMessage(jobContext + "\n\n草稿:\n" + draft),
	}

	resp, err := o.chatModel.Generate(ctx, messages)
	if err != nil {
		return "", apperr.NewProviderError(op, "调用聊天模型失败", err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", apperr.NewProviderError(op, "聊天模型返回空内容", nil)
	}
	return strings.TrimSpace(resp.Content), nil
}

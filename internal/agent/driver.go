package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"resume-agent-go/internal/dispatch"
	"resume-agent-go/internal/session"
)

const (
	defaultMaxSteps = 8

	systemPromptTemplate = `你是求职助理。你通过工具帮助用户解析简历、搜索和保存岗位、计算匹配度并生成求职文档。
规则：
- 所有事实性操作必须通过工具完成，不要凭空编造岗位或匹配结果。
- 工具结果里 status 为 error 时，把 message 转述给用户并说明下一步需要什么。
- 不要向用户询问会话里已经有的信息。

当前会话状态：
%s`
)

// Driver 对话驱动层。
// 持有会话上下文并在每次工具调用时显式传入，工具不访问任何全局状态。
type Driver struct {
	chatModel model.ToolCallingChatModel
	memory    ChatMemory
	sess      *session.Store
	tools     []tool.BaseTool
	invokable map[string]tool.InvokableTool
	maxSteps  int
	logger    zerolog.Logger
}

// DriverOption 配置选项
type DriverOption func(*Driver)

// WithMaxSteps 配置单轮对话允许的最大工具调用步数
func WithMaxSteps(n int) DriverOption {
	return func(d *Driver) {
		if n > 0 {
			d.maxSteps = n
		}
	}
}

// WithDriverLogger 配置自定义日志记录器
func WithDriverLogger(l zerolog.Logger) DriverOption {
	return func(d *Driver) {
		d.logger = l
	}
}

// NewDriver 创建对话驱动。
// memory 为 nil 时退化为内存历史。
func NewDriver(chatModel model.ToolCallingChatModel, memory ChatMemory, dispatcher *dispatch.Dispatcher, sess *session.Store, options ...DriverOption) (*Driver, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("聊天模型不能为空")
	}
	if sess == nil {
		return nil, fmt.Errorf("会话上下文不能为空")
	}
	if memory == nil {
		memory = NewInMemoryChatMemory()
	}

	tools, err := dispatch.NewSessionTools(dispatcher, sess)
	if err != nil {
		return nil, fmt.Errorf("构建会话工具失败: %w", err)
	}

	d := &Driver{
		chatModel: chatModel,
		memory:    memory,
		sess:      sess,
		tools:     tools,
		invokable: make(map[string]tool.InvokableTool, len(tools)),
		maxSteps:  defaultMaxSteps,
		logger:    zerolog.Nop(),
	}
	for _, t := range tools {
		info, err := t.Info(context.Background())
		if err != nil {
			return nil, fmt.Errorf("读取工具元信息失败: %w", err)
		}
		inv, ok := t.(tool.InvokableTool)
		if !ok {
			return nil, fmt.Errorf("工具 %s 不可调用", info.Name)
		}
		d.invokable[info.Name] = inv
	}
	for _, option := range options {
		option(d)
	}
	return d, nil
}

// Session 返回驱动持有的会话上下文
func (d *Driver) Session() *session.Store {
	return d.sess
}

// Chat 处理一轮用户输入，驱动模型与工具交替执行直到产出最终回复
func (d *Driver) Chat(ctx context.Context, userInput string) (string, error) {
	sessionID := d.sess.SessionID()

	userMsg := schema.UserMessage(userInput)
	if err := d.memory.AddMessage(ctx, sessionID, userMsg); err != nil {
		return "", fmt.Errorf("记录用户消息失败: %w", err)
	}

	history, err := d.memory.GetHistory(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("读取对话历史失败: %w", err)
	}

	infos := make([]*schema.ToolInfo, 0, len(d.tools))
	for _, t := range d.tools {
		info, err := t.Info(ctx)
		if err != nil {
			return "", fmt.Errorf("读取工具元信息失败: %w", err)
		}
		infos = append(infos, info)
	}
	boundModel, err := d.chatModel.WithTools(infos)
	if err != nil {
		return "", fmt.Errorf("绑定工具失败: %w", err)
	}

	messages := make([]*schema.Message, 0, len(history)+2)
	messages = append(messages, schema.SystemMessage(d.buildSystemPrompt()))
	messages = append(messages, history...)

	for step := 0; step < d.maxSteps; step++ {
		resp, err := boundModel.Generate(ctx, messages)
		if err != nil {
			return "", fmt.Errorf("聊天模型调用失败: %w", err)
		}
		if err := d.memory.AddMessage(ctx, sessionID, resp); err != nil {
			return "", fmt.Errorf("记录助手消息失败: %w", err)
		}
		messages = append(messages, resp)

		if len(resp.ToolCalls) == 0 {
			return resp.Content, nil
		}

		for _, call := range resp.ToolCalls {
			output := d.runTool(ctx, call)
			toolMsg := schema.ToolMessage(output, call.ID)
			toolMsg.Name = call.Function.Name
			if err := d.memory.AddMessage(ctx, sessionID, toolMsg); err != nil {
				return "", fmt.Errorf("记录工具消息失败: %w", err)
			}
			messages = append(messages, toolMsg)
		}
	}

	return "", fmt.Errorf("对话在 %d 步内未收敛", d.maxSteps)
}

// runTool 执行单个工具调用，错误折叠成可反馈给模型的文本
func (d *Driver) runTool(ctx context.Context, call schema.ToolCall) string {
	name := call.Function.Name
	inv, ok := d.invokable[name]
	if !ok {
		d.logger.Warn().Str("tool", name).Msg("模型请求了未注册的工具")
		return fmt.Sprintf(`{"status":"error","message":"未知工具 %s"}`, name)
	}

	output, err := inv.InvokableRun(ctx, call.Function.Arguments)
	if err != nil {
		d.logger.Warn().Str("tool", name).Err(err).Msg("工具执行失败")
		return fmt.Sprintf(`{"status":"error","message":%q}`, err.Error())
	}

	d.logger.Debug().Str("tool", name).Msg("工具执行完成")
	return output
}

// ResetConversation 清除对话历史，配合 reset_session 使用
func (d *Driver) ResetConversation(ctx context.Context) error {
	return d.memory.ClearHistory(ctx, d.sess.SessionID())
}

// buildSystemPrompt 把会话状态摘要注入系统提示，
// 模型因此不会重复询问已经掌握的信息
func (d *Driver) buildSystemPrompt() string {
	summary := d.sess.ContextSummary(5)

	var b strings.Builder
	if summary.ResumeParsed {
		b.WriteString("- 简历已解析")
		if summary.CandidateName != "" {
			b.WriteString("（" + summary.CandidateName + "）")
		}
		b.WriteString("，无需再要文件路径\n")
	} else if summary.HasResume {
		b.WriteString("- 简历已上传但尚未解析\n")
	} else {
		b.WriteString("- 尚未上传简历\n")
	}
	b.WriteString(fmt.Sprintf("- 岗位目录: %d 个岗位；已完成 %d 次匹配分析；已生成 %d 份文档\n",
		summary.JobCount, summary.AnalysisCount, summary.DocumentCount))
	if len(summary.RecentActivity) > 0 {
		b.WriteString("- 最近动态:\n")
		for _, fact := range summary.RecentActivity {
			b.WriteString("  " + fact + "\n")
		}
	}

	return fmt.Sprintf(systemPromptTemplate, strings.TrimRight(b.String(), "\n"))
}

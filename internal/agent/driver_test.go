package agent

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-agent-go/internal/cache"
	"resume-agent-go/internal/dispatch"
	"resume-agent-go/internal/generator"
	"resume-agent-go/internal/parser"
	"resume-agent-go/internal/scorer"
	"resume-agent-go/internal/session"
	"resume-agent-go/internal/storage"
)

// scriptedModel 按脚本依次返回预设回复
type scriptedModel struct {
	replies []*schema.Message
	calls   int
	bound   []*schema.ToolInfo
}

func (m *scriptedModel) Generate(ctx context.Context, messages []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	if m.calls >= len(m.replies) {
		return schema.AssistantMessage("完成", nil), nil
	}
	reply := m.replies[m.calls]
	m.calls++
	return reply, nil
}

func (m *scriptedModel) Stream(ctx context.Context, messages []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, nil
}

func (m *scriptedModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	m.bound = tools
	return m, nil
}

func newTestDriver(t *testing.T, chatModel model.ToolCallingChatModel) *Driver {
	t.Helper()
	artifacts := cache.New()
	gen, err := generator.New(storage.NewMemoryObjectStore(), []generator.DocumentRenderer{generator.NewTextRenderer()})
	require.NoError(t, err)
	d, err := dispatch.New(artifacts, parser.NewResumeParser(nil), scorer.New(artifacts), gen)
	require.NoError(t, err)

	driver, err := NewDriver(chatModel, NewInMemoryChatMemory(), d, session.New(""))
	require.NoError(t, err)
	return driver
}

func TestChatPlainAnswer(t *testing.T) {
	chatModel := &scriptedModel{replies: []*schema.Message{
		schema.AssistantMessage("你好，我可以帮你处理求职材料。", nil),
	}}
	driver := newTestDriver(t, chatModel)

	answer, err := driver.Chat(context.Background(), "你好")
	require.NoError(t, err)
	assert.Equal(t, "你好，我可以帮你处理求职材料。", answer)
	assert.NotEmpty(t, chatModel.bound)
}

func TestChatExecutesToolCall(t *testing.T) {
	toolCall := schema.ToolCall{
		ID: "call-1",
		Function: schema.FunctionCall{
			Name:      string(dispatch.OpSaveJobPosting),
			Arguments: `{"text":"Go Engineer\nBackend role in Go."}`,
		},
	}
	chatModel := &scriptedModel{replies: []*schema.Message{
		schema.AssistantMessage("", []schema.ToolCall{toolCall}),
		schema.AssistantMessage("岗位已保存。", nil),
	}}
	driver := newTestDriver(t, chatModel)

	answer, err := driver.Chat(context.Background(), "帮我存一下这个岗位")
	require.NoError(t, err)
	assert.Equal(t, "岗位已保存。", answer)

	// 工具确实执行并改变了会话状态
	assert.Equal(t, 1, driver.Session().Jobs().Len())

	history, err := driver.memory.GetHistory(context.Background(), driver.Session().SessionID())
	require.NoError(t, err)
	// 用户消息 + 工具调用 + 工具结果 + 最终回复
	require.Len(t, history, 4)
	assert.Equal(t, schema.Tool, history[2].Role)

	var result dispatch.Result
	require.NoError(t, json.Unmarshal([]byte(history[2].Content), &result))
	assert.Equal(t, "success", result.Status)
}

func TestChatUnknownToolIsReportedNotFatal(t *testing.T) {
	toolCall := schema.ToolCall{
		ID:       "call-1",
		Function: schema.FunctionCall{Name: "teleport", Arguments: "{}"},
	}
	chatModel := &scriptedModel{replies: []*schema.Message{
		schema.AssistantMessage("", []schema.ToolCall{toolCall}),
		schema.AssistantMessage("抱歉，我做不到。", nil),
	}}
	driver := newTestDriver(t, chatModel)

	answer, err := driver.Chat(context.Background(), "传送我")
	require.NoError(t, err)
	assert.Equal(t, "抱歉，我做不到。", answer)
}

func TestChatStopsAtMaxSteps(t *testing.T) {
	toolCall := schema.ToolCall{
		ID:       "call-loop",
		Function: schema.FunctionCall{Name: string(dispatch.OpSessionStatus), Arguments: "{}"},
	}
	loop := schema.AssistantMessage("", []schema.ToolCall{toolCall})
	chatModel := &scriptedModel{replies: []*schema.Message{loop, loop, loop}}
	driver := newTestDriver(t, chatModel)
	// maxSteps小于脚本长度，循环不该跑满脚本
	for _, opt := range []DriverOption{WithMaxSteps(2)} {
		opt(driver)
	}

	_, err := driver.Chat(context.Background(), "状态")
	require.Error(t, err)
}

func TestInMemoryChatMemory(t *testing.T) {
	m := NewInMemoryChatMemory()
	ctx := context.Background()

	history, err := m.GetHistory(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, history)

	require.NoError(t, m.AddMessage(ctx, "s1", schema.UserMessage("hi")))
	require.Error(t, m.AddMessage(ctx, "s1", nil))

	history, err = m.GetHistory(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, history, 1)

	require.NoError(t, m.ClearHistory(ctx, "s1"))
	history, err = m.GetHistory(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestResetConversation(t *testing.T) {
	chatModel := &scriptedModel{replies: []*schema.Message{
		schema.AssistantMessage("好的。", nil),
	}}
	driver := newTestDriver(t, chatModel)

	_, err := driver.Chat(context.Background(), "你好")
	require.NoError(t, err)
	require.NoError(t, driver.ResetConversation(context.Background()))

	history, err := driver.memory.GetHistory(context.Background(), driver.Session().SessionID())
	require.NoError(t, err)
	assert.Empty(t, history)
}

package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/rs/zerolog"
)

const defaultChatModelName = "qwen-plus"

// openAITool OpenAI兼容接口的工具定义
type openAITool struct {
	Type     string         `json:"type"`
	Function openAIFunction `json:"function"`
}

type openAIFunction struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Parameters  *openapi3.Schema `json:"parameters,omitempty"`
}

type openAIChatRequest struct {
	Model    string            `json:"model"`
	Messages []*schema.Message `json:"messages"`
	Tools    []openAITool      `json:"tools,omitempty"`
}

type openAIMessage struct {
	Role      string           `json:"role"`
	Content   *string          `json:"content"`
	ToolCalls []openAIToolCall `json:"tool_calls,omitempty"`
}

type openAIToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openAIChatResponse struct {
	Choices []struct {
		Index        int           `json:"index"`
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
}

// OpenAIChatModel 通过OpenAI兼容HTTP接口调用聊天模型，
// 实现 eino 的 model.ToolCallingChatModel 接口。
type OpenAIChatModel struct {
	apiKey     string
	modelName  string
	apiURL     string
	httpClient *http.Client
	boundTools []openAITool
	logger     zerolog.Logger
}

var _ model.ToolCallingChatModel = (*OpenAIChatModel)(nil)

// ModelOption 配置选项
type ModelOption func(*OpenAIChatModel)

// WithModelLogger 配置自定义日志记录器
func WithModelLogger(l zerolog.Logger) ModelOption {
	return func(m *OpenAIChatModel) {
		m.logger = l
	}
}

// WithModelHTTPClient 覆盖HTTP客户端
func WithModelHTTPClient(c *http.Client) ModelOption {
	return func(m *OpenAIChatModel) {
		m.httpClient = c
	}
}

// NewOpenAIChatModel 创建聊天模型客户端
func NewOpenAIChatModel(apiKey, modelName, apiURL string, options ...ModelOption) (*OpenAIChatModel, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("API密钥不能为空")
	}
	if strings.TrimSpace(apiURL) == "" {
		return nil, fmt.Errorf("API地址不能为空")
	}
	if strings.TrimSpace(modelName) == "" {
		modelName = defaultChatModelName
	}

	m := &OpenAIChatModel{
		apiKey:     apiKey,
		modelName:  modelName,
		apiURL:     apiURL,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		logger:     zerolog.Nop(),
	}
	for _, option := range options {
		option(m)
	}
	return m, nil
}

// WithTools 实现 model.ToolCallingChatModel 接口。
// 工具参数模式从 eino 的 ParamsOneOf 转成 OpenAPI v3 结构后直接序列化。
func (m *OpenAIChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	bound := make([]openAITool, 0, len(tools))
	for _, info := range tools {
		if info == nil {
			continue
		}
		fn := openAIFunction{
			Name:        info.Name,
			Description: info.Desc,
		}
		if info.ParamsOneOf != nil {
			params, err := info.ParamsOneOf.ToOpenAPIV3()
			if err != nil {
				return nil, fmt.Errorf("转换工具 %s 的参数模式失败: %w", info.Name, err)
			}
			fn.Parameters = params
		}
		bound = append(bound, openAITool{Type: "function", Function: fn})
	}

	cloned := *m
	cloned.boundTools = bound
	return &cloned, nil
}

// Generate 实现 model.BaseChatModel 接口
func (m *OpenAIChatModel) Generate(ctx context.Context, messages []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	payload := openAIChatRequest{
		Model:    m.modelName,
		Messages: messages,
		Tools:    m.boundTools,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("序列化请求体失败: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+m.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	httpResp, err := m.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("发送HTTP请求失败: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("聊天模型返回状态 %s: %s", httpResp.Status, string(body))
	}

	var resp openAIChatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("反序列化聊天模型响应失败: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("聊天模型返回空choices")
	}

	m.logger.Debug().
		Str("model", m.modelName).
		Int("tools", len(m.boundTools)).
		Dur("elapsed", time.Since(start)).
		Msg("聊天模型调用完成")
	return convertMessage(resp.Choices[0].Message), nil
}

// Stream 实现 model.BaseChatModel 接口。对话驱动只用 Generate，流式暂不支持。
func (m *OpenAIChatModel) Stream(ctx context.Context, messages []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("OpenAIChatModel 未实现流式输出")
}

// convertMessage 把OpenAI响应消息转换为 eino 的消息结构
func convertMessage(msg openAIMessage) *schema.Message {
	content := ""
	if msg.Content != nil {
		content = *msg.Content
	}
	role := schema.RoleType(msg.Role)
	if role == "" {
		role = schema.Assistant
	}

	result := &schema.Message{
		Role:    role,
		Content: content,
	}
	if len(msg.ToolCalls) > 0 {
		result.ToolCalls = make([]schema.ToolCall, len(msg.ToolCalls))
		for i, tc := range msg.ToolCalls {
			result.ToolCalls[i] = schema.ToolCall{
				ID: tc.ID,
				Function: schema.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			}
		}
	}
	return result
}

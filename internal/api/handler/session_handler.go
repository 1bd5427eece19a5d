package handler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog"

	"resume-agent-go/internal/agent"
	"resume-agent-go/internal/apperr"
	"resume-agent-go/internal/dispatch"
	"resume-agent-go/internal/session"
	"resume-agent-go/internal/storage"
	"resume-agent-go/internal/types"

	"github.com/cloudwego/eino/components/model"
)

// SessionHandler 会话处理器，维护每个会话的状态存储和对话驱动。
// 操作既可以通过对话（LLM工具调用）触发，也可以通过操作接口直接触发，
// 两条路径共享同一个会话存储。
type SessionHandler struct {
	dispatcher    *dispatch.Dispatcher
	chatModel     model.ToolCallingChatModel
	memory        agent.ChatMemory
	maxSteps      int
	uploadDir     string
	objects       storage.ObjectStore
	presignExpiry time.Duration
	logger        zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

type sessionEntry struct {
	sess   *session.Store
	driver *agent.Driver
}

// SessionHandlerOption 配置选项
type SessionHandlerOption func(*SessionHandler)

// WithChatModel 配置对话模型，未配置时对话接口不可用
func WithChatModel(m model.ToolCallingChatModel) SessionHandlerOption {
	return func(h *SessionHandler) {
		h.chatModel = m
	}
}

// WithChatMemory 配置对话历史存储
func WithChatMemory(m agent.ChatMemory) SessionHandlerOption {
	return func(h *SessionHandler) {
		h.memory = m
	}
}

// WithMaxSteps 配置单轮对话允许的最大工具调用步数
func WithMaxSteps(n int) SessionHandlerOption {
	return func(h *SessionHandler) {
		if n > 0 {
			h.maxSteps = n
		}
	}
}

// WithUploadDir 配置上传文件的暂存目录
func WithUploadDir(dir string) SessionHandlerOption {
	return func(h *SessionHandler) {
		if dir != "" {
			h.uploadDir = dir
		}
	}
}

// WithObjectStore 配置生成文档的对象存储，供下载和取链接使用
func WithObjectStore(store storage.ObjectStore) SessionHandlerOption {
	return func(h *SessionHandler) {
		h.objects = store
	}
}

// WithPresignExpiry 配置文档访问链接的有效期
func WithPresignExpiry(d time.Duration) SessionHandlerOption {
	return func(h *SessionHandler) {
		if d > 0 {
			h.presignExpiry = d
		}
	}
}

// WithHandlerLogger 配置日志记录器
func WithHandlerLogger(l zerolog.Logger) SessionHandlerOption {
	return func(h *SessionHandler) {
		h.logger = l
	}
}

// NewSessionHandler 创建会话处理器
func NewSessionHandler(dispatcher *dispatch.Dispatcher, options ...SessionHandlerOption) (*SessionHandler, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("调度器不能为空")
	}
	h := &SessionHandler{
		dispatcher:    dispatcher,
		memory:        agent.NewInMemoryChatMemory(),
		maxSteps:      8,
		uploadDir:     os.TempDir(),
		presignExpiry: time.Hour,
		logger:        zerolog.Nop(),
		sessions:      make(map[string]*sessionEntry),
	}
	for _, option := range options {
		option(h)
	}
	return h, nil
}

// entry 返回指定会话，不存在则创建。
// sessionID为空时生成新会话。
func (h *SessionHandler) entry(sessionID string) (*sessionEntry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sessionID != "" {
		if e, ok := h.sessions[sessionID]; ok {
			return e, nil
		}
	}

	sess := session.New(sessionID)
	e := &sessionEntry{sess: sess}
	if h.chatModel != nil {
		driver, err := agent.NewDriver(h.chatModel, h.memory, h.dispatcher, sess,
			agent.WithMaxSteps(h.maxSteps),
			agent.WithDriverLogger(h.logger),
		)
		if err != nil {
			return nil, fmt.Errorf("创建会话驱动失败: %w", err)
		}
		e.driver = driver
	}
	h.sessions[sess.SessionID()] = e
	return e, nil
}

// ChatResponse 对话响应
type ChatResponse struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
}

// HandleChat 处理一轮对话。sessionID为空时开启新会话。
func (h *SessionHandler) HandleChat(ctx context.Context, sessionID, message string) (*ChatResponse, error) {
	if message == "" {
		return nil, apperr.NewMissingArgument("handler.chat", "message")
	}
	e, err := h.entry(sessionID)
	if err != nil {
		return nil, err
	}
	if e.driver == nil {
		return nil, apperr.NewProviderError("handler.chat", "对话模型未配置", nil)
	}

	reply, err := e.driver.Chat(ctx, message)
	if err != nil {
		return nil, err
	}
	return &ChatResponse{SessionID: e.sess.SessionID(), Reply: reply}, nil
}

// HandleOperation 直接执行一个操作，绕过对话模型。
// 调度器将所有失败折叠进Result，此处不返回业务错误。
func (h *SessionHandler) HandleOperation(ctx context.Context, sessionID string, op dispatch.Operation, args map[string]any) (*dispatch.Result, string, error) {
	e, err := h.entry(sessionID)
	if err != nil {
		return nil, "", err
	}
	result := h.dispatcher.Execute(ctx, e.sess, op, args)
	return result, e.sess.SessionID(), nil
}

// UploadResponse 简历上传响应
type UploadResponse struct {
	SessionID string           `json:"session_id"`
	Result    *dispatch.Result `json:"result"`
}

// HandleResumeUpload 接收上传的简历文件，暂存后立即触发解析。
// 暂存路径同时记录进会话，后续重新解析无需再传路径。
func (h *SessionHandler) HandleResumeUpload(ctx context.Context, sessionID, filename string, data []byte) (*UploadResponse, error) {
	if len(data) == 0 {
		return nil, apperr.NewMissingArgument("handler.upload", "file")
	}

	e, err := h.entry(sessionID)
	if err != nil {
		return nil, err
	}

	ext := filepath.Ext(filename)
	if ext == "" {
		ext = ".txt"
	}
	stagedName := fmt.Sprintf("%s%s", uuid.Must(uuid.NewV4()).String(), ext)
	stagedPath := filepath.Join(h.uploadDir, stagedName)
	if err := os.WriteFile(stagedPath, data, 0600); err != nil {
		return nil, fmt.Errorf("暂存上传文件失败: %w", err)
	}

	h.logger.Debug().
		Str("session_id", e.sess.SessionID()).
		Str("filename", filename).
		Str("staged_path", stagedPath).
		Msg("简历文件已暂存")

	result := h.dispatcher.Execute(ctx, e.sess, dispatch.OpParseResume, map[string]any{
		"file_path": stagedPath,
	})
	return &UploadResponse{SessionID: e.sess.SessionID(), Result: result}, nil
}

// SummaryResponse 会话摘要响应
type SummaryResponse struct {
	SessionID string                `json:"session_id"`
	Summary   *types.ContextSummary `json:"summary"`
	Allowed   []dispatch.Operation  `json:"allowed_operations"`
}

// HandleSummary 返回会话当前状态摘要及可用操作列表
func (h *SessionHandler) HandleSummary(sessionID string) (*SummaryResponse, error) {
	e, err := h.entry(sessionID)
	if err != nil {
		return nil, err
	}
	return &SummaryResponse{
		SessionID: e.sess.SessionID(),
		Summary:   e.sess.ContextSummary(10),
		Allowed:   dispatch.AllowedOperations(e.sess),
	}, nil
}

// DocumentEntry 单个生成文档及其限时访问链接
type DocumentEntry struct {
	*types.GeneratedDocument
	URL string `json:"url,omitempty"`
}

// DocumentsResponse 文档列表响应
type DocumentsResponse struct {
	SessionID string           `json:"session_id"`
	Documents []*DocumentEntry `json:"documents"`
}

// HandleListDocuments 返回会话已生成的文档，附带限时访问链接。
// 取链接失败只记日志，列表本身照常返回。
func (h *SessionHandler) HandleListDocuments(ctx context.Context, sessionID string) (*DocumentsResponse, error) {
	e, err := h.entry(sessionID)
	if err != nil {
		return nil, err
	}

	docs := e.sess.Documents()
	entries := make([]*DocumentEntry, 0, len(docs))
	for _, doc := range docs {
		entry := &DocumentEntry{GeneratedDocument: doc}
		if h.objects != nil {
			url, err := h.objects.Presign(ctx, doc.StorageKey, h.presignExpiry)
			if err != nil {
				h.logger.Warn().Err(err).Str("storage_key", doc.StorageKey).Msg("生成文档访问链接失败")
			} else {
				entry.URL = url
			}
		}
		entries = append(entries, entry)
	}
	return &DocumentsResponse{SessionID: e.sess.SessionID(), Documents: entries}, nil
}

// HandleDocumentDownload 按存储key读出文档内容。
// key必须属于当前会话登记过的文档，否则视为不存在。
func (h *SessionHandler) HandleDocumentDownload(ctx context.Context, sessionID, storageKey string) ([]byte, string, error) {
	if storageKey == "" {
		return nil, "", apperr.NewMissingArgument("handler.download", "key")
	}
	e, err := h.entry(sessionID)
	if err != nil {
		return nil, "", err
	}
	if h.objects == nil {
		return nil, "", apperr.NewProviderError("handler.download", "对象存储未配置", nil)
	}

	var doc *types.GeneratedDocument
	for _, d := range e.sess.Documents() {
		if d.StorageKey == storageKey {
			doc = d
			break
		}
	}
	if doc == nil {
		return nil, "", apperr.NewNotFound("handler.download", "文档 "+storageKey)
	}

	data, err := h.objects.Get(ctx, storageKey)
	if err != nil {
		return nil, "", err
	}
	return data, contentTypeForFormat(doc.Format), nil
}

func contentTypeForFormat(format types.DocumentFormat) string {
	switch format {
	case types.DocumentFormatDocx:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case types.DocumentFormatPDF:
		return "application/pdf"
	}
	return "text/markdown; charset=utf-8"
}

// HandleReset 清空会话状态和对话历史
func (h *SessionHandler) HandleReset(ctx context.Context, sessionID string) (*dispatch.Result, string, error) {
	e, err := h.entry(sessionID)
	if err != nil {
		return nil, "", err
	}
	result := h.dispatcher.Execute(ctx, e.sess, dispatch.OpResetSession, nil)
	if e.driver != nil {
		if err := e.driver.ResetConversation(ctx); err != nil {
			h.logger.Warn().Err(err).Str("session_id", e.sess.SessionID()).Msg("清空对话历史失败")
		}
	}
	return result, e.sess.SessionID(), nil
}

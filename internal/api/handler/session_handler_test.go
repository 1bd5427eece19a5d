package handler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-agent-go/internal/apperr"
	"resume-agent-go/internal/cache"
	"resume-agent-go/internal/dispatch"
	"resume-agent-go/internal/generator"
	"resume-agent-go/internal/parser"
	"resume-agent-go/internal/scorer"
	"resume-agent-go/internal/storage"
	"resume-agent-go/internal/types"
)

const uploadedResume = `Jane Chen
jane@example.com

Skills
Python, Go, AWS

Experience
Backend Engineer - Acme (2020 - Present)
- Built services
`

const savedPosting = `Senior Go Engineer
Company: Acme Corp
Remote position
Requirements: Go, AWS, Docker
`

func newTestHandler(t *testing.T, options ...SessionHandlerOption) *SessionHandler {
	t.Helper()
	artifacts := cache.New()
	objects := storage.NewMemoryObjectStore()
	gen, err := generator.New(objects, []generator.DocumentRenderer{generator.NewTextRenderer()})
	require.NoError(t, err)

	d, err := dispatch.New(artifacts, parser.NewResumeParser(nil), scorer.New(artifacts), gen)
	require.NoError(t, err)

	options = append(options, WithUploadDir(t.TempDir()), WithObjectStore(objects))
	h, err := NewSessionHandler(d, options...)
	require.NoError(t, err)
	return h
}

// generateDocument 走完 上传→存岗位→生成 的完整路径，返回会话ID
func generateDocument(t *testing.T, h *SessionHandler) string {
	t.Helper()
	resp, err := h.HandleResumeUpload(context.Background(), "", "resume.txt", []byte(uploadedResume))
	require.NoError(t, err)
	require.Equal(t, "success", resp.Result.Status, resp.Result.Message)

	saved, _, err := h.HandleOperation(context.Background(), resp.SessionID, dispatch.OpSaveJobPosting, map[string]any{"text": savedPosting})
	require.NoError(t, err)
	require.Equal(t, "success", saved.Status)
	job := saved.Data.(*types.JobPosting)

	gen, _, err := h.HandleOperation(context.Background(), resp.SessionID, dispatch.OpGenerateDocument, map[string]any{"job_id": job.ID})
	require.NoError(t, err)
	require.Equal(t, "success", gen.Status, gen.Message)
	return resp.SessionID
}

func TestHandleResumeUploadParsesAndBindsSession(t *testing.T) {
	h := newTestHandler(t)

	resp, err := h.HandleResumeUpload(context.Background(), "", "resume.txt", []byte(uploadedResume))
	require.NoError(t, err)
	require.NotEmpty(t, resp.SessionID)
	require.Equal(t, "success", resp.Result.Status, resp.Result.Message)

	// 同一会话的后续操作看得到已解析的简历
	summary, err := h.HandleSummary(resp.SessionID)
	require.NoError(t, err)
	assert.True(t, summary.Summary.ResumeParsed)
	assert.NotContains(t, summary.Allowed, dispatch.OpMatchResumeToJob)

	// 存入岗位后匹配操作才可用
	saved, _, err := h.HandleOperation(context.Background(), resp.SessionID, dispatch.OpSaveJobPosting, map[string]any{"text": savedPosting})
	require.NoError(t, err)
	require.Equal(t, "success", saved.Status)
	summary, err = h.HandleSummary(resp.SessionID)
	require.NoError(t, err)
	assert.Contains(t, summary.Allowed, dispatch.OpMatchResumeToJob)
}

func TestHandleResumeUploadEmptyFile(t *testing.T) {
	h := newTestHandler(t)

	_, err := h.HandleResumeUpload(context.Background(), "", "resume.txt", nil)
	require.Error(t, err)
	assert.Equal(t, apperr.KindMissingArgument, apperr.KindOf(err))
}

func TestHandleOperationSharesSessionState(t *testing.T) {
	h := newTestHandler(t)

	result, sessionID, err := h.HandleOperation(context.Background(), "", dispatch.OpSaveJobPosting, map[string]any{"text": savedPosting})
	require.NoError(t, err)
	require.Equal(t, "success", result.Status, result.Message)
	require.NotEmpty(t, sessionID)

	listed, sameID, err := h.HandleOperation(context.Background(), sessionID, dispatch.OpListJobs, nil)
	require.NoError(t, err)
	assert.Equal(t, sessionID, sameID)
	assert.Equal(t, "success", listed.Status)
}

func TestHandleOperationUnknownSessionCreatesNew(t *testing.T) {
	h := newTestHandler(t)

	_, firstID, err := h.HandleOperation(context.Background(), "", dispatch.OpSessionStatus, nil)
	require.NoError(t, err)
	_, secondID, err := h.HandleOperation(context.Background(), "", dispatch.OpSessionStatus, nil)
	require.NoError(t, err)
	assert.NotEqual(t, firstID, secondID)
}

func TestHandleChatWithoutModel(t *testing.T) {
	h := newTestHandler(t)

	_, err := h.HandleChat(context.Background(), "", "你好")
	require.Error(t, err)
	assert.Equal(t, apperr.KindProviderError, apperr.KindOf(err))
}

func TestHandleChatEmptyMessage(t *testing.T) {
	h := newTestHandler(t)

	_, err := h.HandleChat(context.Background(), "", "")
	require.Error(t, err)
	assert.Equal(t, apperr.KindMissingArgument, apperr.KindOf(err))
}

func TestHandleListDocumentsWithLinks(t *testing.T) {
	h := newTestHandler(t)
	sessionID := generateDocument(t, h)

	resp, err := h.HandleListDocuments(context.Background(), sessionID)
	require.NoError(t, err)
	require.Len(t, resp.Documents, 1)

	entry := resp.Documents[0]
	assert.Equal(t, types.DocumentKindResume, entry.Kind)
	assert.NotEmpty(t, entry.StorageKey)
	// 内存存储的链接是存储位置本身
	assert.Equal(t, "memory://"+entry.StorageKey, entry.URL)
}

func TestHandleDocumentDownload(t *testing.T) {
	h := newTestHandler(t)
	sessionID := generateDocument(t, h)

	resp, err := h.HandleListDocuments(context.Background(), sessionID)
	require.NoError(t, err)
	require.Len(t, resp.Documents, 1)
	key := resp.Documents[0].StorageKey

	data, contentType, err := h.HandleDocumentDownload(context.Background(), sessionID, key)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
	assert.Equal(t, "text/markdown; charset=utf-8", contentType)
}

func TestHandleDocumentDownloadUnknownKey(t *testing.T) {
	h := newTestHandler(t)
	sessionID := generateDocument(t, h)

	_, _, err := h.HandleDocumentDownload(context.Background(), sessionID, "no-such-key")
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestHandleResetClearsSession(t *testing.T) {
	h := newTestHandler(t)

	resp, err := h.HandleResumeUpload(context.Background(), "", "resume.txt", []byte(uploadedResume))
	require.NoError(t, err)
	sessionID := resp.SessionID

	result, sameID, err := h.HandleReset(context.Background(), sessionID)
	require.NoError(t, err)
	require.Equal(t, "success", result.Status)
	assert.Equal(t, sessionID, sameID)

	summary, err := h.HandleSummary(sessionID)
	require.NoError(t, err)
	assert.False(t, summary.Summary.ResumeParsed)
}

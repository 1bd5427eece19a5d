package dispatch

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-agent-go/internal/apperr"
	"resume-agent-go/internal/cache"
	"resume-agent-go/internal/generator"
	"resume-agent-go/internal/parser"
	"resume-agent-go/internal/provider"
	"resume-agent-go/internal/scorer"
	"resume-agent-go/internal/session"
	"resume-agent-go/internal/storage"
	"resume-agent-go/internal/types"
)

const dispatchResume = `Jane Chen
jane@example.com

Skills
Python, AWS, Docker

Experience
Backend Engineer - Acme (2020 - Present)
- Built services
`

// stubSearcher 返回固定结果或固定错误
type stubSearcher struct {
	postings []*types.JobPosting
	err      error
}

func (s *stubSearcher) Search(ctx context.Context, req provider.SearchRequest) ([]*types.JobPosting, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.postings, nil
}

func newTestDispatcher(t *testing.T, options ...Option) (*Dispatcher, *session.Store) {
	t.Helper()
	artifacts := cache.New()
	gen, err := generator.New(storage.NewMemoryObjectStore(), []generator.DocumentRenderer{generator.NewTextRenderer()})
	require.NoError(t, err)

	d, err := New(artifacts, parser.NewResumeParser(nil), scorer.New(artifacts), gen, options...)
	require.NoError(t, err)
	return d, session.New("")
}

func writeResumeFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "resume.txt")
	require.NoError(t, os.WriteFile(path, []byte(dispatchResume), 0o644))
	return path
}

func TestExecuteParseResumeThenRepeatIsCacheHit(t *testing.T) {
	d, sess := newTestDispatcher(t)
	path := writeResumeFile(t)

	first := d.Execute(context.Background(), sess, OpParseResume, map[string]any{"file_path": path})
	require.Equal(t, "success", first.Status, first.Message)
	assert.False(t, first.CacheHit)
	assert.True(t, sess.IsResumeParsed())

	// 第二次无需文件路径，且命中缓存
	second := d.Execute(context.Background(), sess, OpParseResume, map[string]any{})
	require.Equal(t, "success", second.Status, second.Message)
	assert.True(t, second.CacheHit)
}

func TestExecuteParseResumeMissingFile(t *testing.T) {
	d, sess := newTestDispatcher(t)

	result := d.Execute(context.Background(), sess, OpParseResume, map[string]any{"file_path": "/no/such/file.txt"})
	assert.Equal(t, "error", result.Status)
	assert.Equal(t, apperr.KindNotFound, result.ErrorKind)
	assert.False(t, sess.IsResumeParsed())
}

func TestExecuteSearchJobsAddsToCatalog(t *testing.T) {
	postings := []*types.JobPosting{
		{ID: "adzuna-1", Title: "Go Engineer", Description: "remote role"},
		{ID: "adzuna-2", Title: "SRE", Description: "onsite"},
	}
	d, sess := newTestDispatcher(t, WithSearcher(&stubSearcher{postings: postings}))

	result := d.Execute(context.Background(), sess, OpSearchJobs, map[string]any{"query": "go"})
	require.Equal(t, "success", result.Status, result.Message)
	assert.Equal(t, 2, sess.Jobs().Len())
}

func TestExecuteSearchFailureLeavesCatalogUntouched(t *testing.T) {
	searchErr := apperr.NewProviderError("AdzunaClient.Search", "配额用尽", nil)
	d, sess := newTestDispatcher(t, WithSearcher(&stubSearcher{err: searchErr}))
	sess.Jobs().AddManual("Existing Job\nSome description.")

	result := d.Execute(context.Background(), sess, OpSearchJobs, map[string]any{"query": "go"})
	assert.Equal(t, "error", result.Status)
	assert.Equal(t, apperr.KindProviderError, result.ErrorKind)
	assert.Equal(t, 1, sess.Jobs().Len())
}

func TestExecuteSearchWithoutSearcher(t *testing.T) {
	d, sess := newTestDispatcher(t)

	result := d.Execute(context.Background(), sess, OpSearchJobs, map[string]any{"query": "go"})
	assert.Equal(t, "error", result.Status)
	assert.Equal(t, apperr.KindProviderError, result.ErrorKind)
}

func TestExecuteSaveJobPostingIdempotent(t *testing.T) {
	d, sess := newTestDispatcher(t)
	text := "Senior Go Engineer\nCompany: Acme Corp\nGo, AWS, Docker required."

	first := d.Execute(context.Background(), sess, OpSaveJobPosting, map[string]any{"text": text})
	require.Equal(t, "success", first.Status)
	second := d.Execute(context.Background(), sess, OpSaveJobPosting, map[string]any{"text": "  " + text + "\n"})
	require.Equal(t, "success", second.Status)

	assert.Equal(t, 1, sess.Jobs().Len())
}

func TestExecuteMatchFlow(t *testing.T) {
	d, sess := newTestDispatcher(t)
	path := writeResumeFile(t)
	require.Equal(t, "success", d.Execute(context.Background(), sess, OpParseResume, map[string]any{"file_path": path}).Status)

	save := d.Execute(context.Background(), sess, OpSaveJobPosting, map[string]any{
		"text": "Go Engineer\nRequirements: Python, AWS, Kubernetes",
	})
	require.Equal(t, "success", save.Status)
	job := save.Data.(*types.JobPosting)

	first := d.Execute(context.Background(), sess, OpMatchResumeToJob, map[string]any{"job_id": job.ID})
	require.Equal(t, "success", first.Status, first.Message)
	assert.False(t, first.CacheHit)

	second := d.Execute(context.Background(), sess, OpMatchResumeToJob, map[string]any{"job_id": job.ID})
	require.Equal(t, "success", second.Status)
	assert.True(t, second.CacheHit)
	assert.Equal(t, 1, sess.AnalysisCount())
}

func TestExecuteGenerateDocument(t *testing.T) {
	d, sess := newTestDispatcher(t)
	path := writeResumeFile(t)
	require.Equal(t, "success", d.Execute(context.Background(), sess, OpParseResume, map[string]any{"file_path": path}).Status)

	save := d.Execute(context.Background(), sess, OpSaveJobPosting, map[string]any{"text": "Go Engineer\nBackend role."})
	job := save.Data.(*types.JobPosting)

	result := d.Execute(context.Background(), sess, OpGenerateDocument, map[string]any{"job_id": job.ID})
	require.Equal(t, "success", result.Status, result.Message)

	doc := result.Data.(*types.GeneratedDocument)
	assert.Equal(t, types.DocumentKindResume, doc.Kind)
	assert.Equal(t, types.DocumentFormatText, doc.Format)
	assert.Len(t, sess.Documents(), 1)
}

func TestExecuteFilterJobs(t *testing.T) {
	d, sess := newTestDispatcher(t)
	sess.Jobs().AddFromSearch([]*types.JobPosting{
		{ID: "j1", Title: "Remote Go", Remote: types.RemoteTypeRemote, SalaryRange: "$90,000 - $120,000"},
		{ID: "j2", Title: "Onsite Go", Remote: types.RemoteTypeOnsite},
	})

	result := d.Execute(context.Background(), sess, OpFilterJobs, map[string]any{"remote_only": true})
	require.Equal(t, "success", result.Status)
	filtered := result.Data.([]*types.JobPosting)
	require.Len(t, filtered, 1)
	assert.Equal(t, "j1", filtered[0].ID)

	// 筛选不改变目录
	assert.Equal(t, 2, sess.Jobs().Len())
}

func TestExecuteFilterByScoreRequiresResume(t *testing.T) {
	d, sess := newTestDispatcher(t)

	result := d.Execute(context.Background(), sess, OpFilterJobs, map[string]any{"min_score": 50.0})
	assert.Equal(t, "error", result.Status)
	assert.Equal(t, apperr.KindMissingArgument, result.ErrorKind)
}

func TestExecuteResetSession(t *testing.T) {
	d, sess := newTestDispatcher(t)
	path := writeResumeFile(t)
	d.Execute(context.Background(), sess, OpParseResume, map[string]any{"file_path": path})
	d.Execute(context.Background(), sess, OpSaveJobPosting, map[string]any{"text": "Go Engineer\nBackend."})

	result := d.Execute(context.Background(), sess, OpResetSession, nil)
	require.Equal(t, "success", result.Status)

	assert.False(t, sess.HasResume())
	assert.Equal(t, 0, sess.Jobs().Len())

	// 构件缓存按内容指纹寻址，重置会话不清缓存：重新解析直接命中
	again := d.Execute(context.Background(), sess, OpParseResume, map[string]any{"file_path": path})
	require.Equal(t, "success", again.Status)
	assert.True(t, again.CacheHit)
}

func TestResetSessionKeepsOtherSessionsCache(t *testing.T) {
	d, sessA := newTestDispatcher(t)
	sessB := session.New("")
	path := writeResumeFile(t)

	require.Equal(t, "success", d.Execute(context.Background(), sessA, OpParseResume, map[string]any{"file_path": path}).Status)

	// A 重置后，B 解析相同内容仍命中共享缓存
	require.Equal(t, "success", d.Execute(context.Background(), sessA, OpResetSession, nil).Status)
	result := d.Execute(context.Background(), sessB, OpParseResume, map[string]any{"file_path": path})
	require.Equal(t, "success", result.Status)
	assert.True(t, result.CacheHit)
}

func TestExecuteSessionStatus(t *testing.T) {
	d, sess := newTestDispatcher(t)

	result := d.Execute(context.Background(), sess, OpSessionStatus, nil)
	require.Equal(t, "success", result.Status)
	summary := result.Data.(*types.ContextSummary)
	assert.False(t, summary.HasResume)
	assert.Equal(t, 0, summary.JobCount)
}

func TestOperationToolRoundTrip(t *testing.T) {
	d, sess := newTestDispatcher(t)

	tl, err := NewOperationTool(OpSessionStatus, d, sess)
	require.NoError(t, err)

	info, err := tl.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "session_status", info.Name)

	out, err := tl.InvokableRun(context.Background(), "{}")
	require.NoError(t, err)

	var result Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "success", result.Status)
}

func TestNewSessionToolsCoversAllOperations(t *testing.T) {
	d, sess := newTestDispatcher(t)

	tools, err := NewSessionTools(d, sess)
	require.NoError(t, err)
	assert.Len(t, tools, len(Operations))
}

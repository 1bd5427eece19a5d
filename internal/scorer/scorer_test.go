package scorer

import (
	"context"
	"errors"
	"testing"

	"resume-agent-go/internal/apperr"
	"resume-agent-go/internal/cache"
	"resume-agent-go/internal/session"
	"resume-agent-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSessionWithResumeAndJob(t *testing.T, skills, required []string) *session.Store {
	t.Helper()
	s := session.New("test-session")
	s.SetResume(&types.ResumeRecord{
		Fingerprint: "fp-1",
		SourceRef:   "resume.pdf",
		Profile:     &types.ResumeProfile{Skills: skills},
	})
	s.Jobs().AddFromSearch([]*types.JobPosting{{
		ID:           "job-1",
		Title:        "Backend Engineer",
		Description:  "后端开发岗位",
		Requirements: required,
	}})
	return s
}

func TestScore_Deterministic(t *testing.T) {
	sess := newSessionWithResumeAndJob(t,
		[]string{"python", "aws", "docker"},
		[]string{"python", "aws", "kubernetes"})
	sc := New(cache.New())

	analysis, hit, err := sc.Score(context.Background(), sess, "fp-1", "job-1")
	require.NoError(t, err)
	assert.False(t, hit)

	assert.Equal(t, []string{"aws", "python"}, analysis.MatchedSkills)
	assert.Equal(t, []string{"kubernetes"}, analysis.MissingSkills)
	assert.Empty(t, analysis.PartialMatches)
	// 100 * 2 / 3
	assert.InDelta(t, 66.7, analysis.Score, 0.1)
	assert.NotEmpty(t, analysis.GapSummary)
}

func TestScore_SecondCallIsCacheHit(t *testing.T) {
	sess := newSessionWithResumeAndJob(t,
		[]string{"go", "redis"},
		[]string{"go", "mysql"})
	sc := New(cache.New())

	first, hit, err := sc.Score(context.Background(), sess, "fp-1", "job-1")
	require.NoError(t, err)
	assert.False(t, hit)

	second, hit, err := sc.Score(context.Background(), sess, "fp-1", "job-1")
	require.NoError(t, err)
	assert.True(t, hit, "相同输入的重复计算必须命中缓存")
	assert.Equal(t, first, second)
	assert.Equal(t, 1, sess.AnalysisCount(), "缓存命中不应产生新记录")
}

func TestScore_PartialMatch(t *testing.T) {
	sess := newSessionWithResumeAndJob(t,
		[]string{"postgresql"},
		[]string{"postgres", "terraform"})
	sc := New(cache.New())

	analysis, _, err := sc.Score(context.Background(), sess, "fp-1", "job-1")
	require.NoError(t, err)

	// "postgres" 与 "postgresql" 有子串重叠，计为部分匹配
	assert.Equal(t, []string{"postgres"}, analysis.PartialMatches)
	assert.Equal(t, []string{"terraform"}, analysis.MissingSkills)
	// 100 * (0 + 0.5*1) / 2
	assert.InDelta(t, 25.0, analysis.Score, 0.01)
}

func TestScore_PartialWeightTunable(t *testing.T) {
	sess := newSessionWithResumeAndJob(t,
		[]string{"postgresql"},
		[]string{"postgres"})
	sc := New(cache.New(), WithPartialWeight(1.0))

	analysis, _, err := sc.Score(context.Background(), sess, "fp-1", "job-1")
	require.NoError(t, err)
	assert.InDelta(t, 100.0, analysis.Score, 0.01)
}

func TestScore_EmptyRequirements(t *testing.T) {
	sess := newSessionWithResumeAndJob(t, []string{"go"}, []string{})
	// Requirements 为空时退回描述关键词提取；描述无关键词则除数取1
	sc := New(cache.New())

	analysis, _, err := sc.Score(context.Background(), sess, "fp-1", "job-1")
	require.NoError(t, err)
	assert.Equal(t, 0.0, analysis.Score)
}

func TestScore_NotFound(t *testing.T) {
	sess := newSessionWithResumeAndJob(t, []string{"go"}, []string{"go"})
	sc := New(cache.New())

	_, _, err := sc.Score(context.Background(), sess, "fp-unknown", "job-1")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	_, _, err = sc.Score(context.Background(), sess, "fp-1", "job-unknown")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestExtractKeywords(t *testing.T) {
	text := "要求熟悉 Python 和 AWS，了解 Node.js 与 Kubernetes 优先。"
	keywords := ExtractKeywords(text)

	assert.Contains(t, keywords, "Python")
	assert.Contains(t, keywords, "AWS")
	assert.Contains(t, keywords, "Node.js")
	assert.Contains(t, keywords, "Kubernetes")
}

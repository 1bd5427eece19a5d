package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-agent-go/internal/apperr"
	"resume-agent-go/internal/types"
)

const sampleResume = `Jane Chen
jane.chen@example.com | (415) 555-0134
linkedin.com/in/janechen | github.com/janechen
San Francisco, CA

Summary
Backend engineer with 7 years of experience building data platforms.

Skills
Python, Go, AWS, Docker; Kubernetes | PostgreSQL
• Terraform

Experience
Senior Software Engineer - Acme Corp (2021 - Present)
- Led migration of billing pipeline to Go
- Cut p99 latency by 40%

Software Engineer @ Initech (2018 - 2021)
- Built internal job scheduler

Education
B.S. Computer Science, UC Berkeley, 2014 - 2018
`

func TestParsePlainText(t *testing.T) {
	p := NewResumeParser(nil)

	record, err := p.Parse(context.Background(), []byte(sampleResume), "resume.txt")
	require.NoError(t, err)
	require.NotNil(t, record)

	assert.Equal(t, types.Fingerprint([]byte(sampleResume)), record.Fingerprint)
	assert.Equal(t, "resume.txt", record.SourceRef)
	assert.False(t, record.ParsedAt.IsZero())
}

func TestParseSameBytesSameFingerprint(t *testing.T) {
	p := NewResumeParser(nil)

	a, err := p.Parse(context.Background(), []byte(sampleResume), "a.txt")
	require.NoError(t, err)
	b, err := p.Parse(context.Background(), []byte(sampleResume), "copy/b.txt")
	require.NoError(t, err)

	assert.Equal(t, a.Fingerprint, b.Fingerprint)
}

func TestParseRejectsUnsupportedFormat(t *testing.T) {
	p := NewResumeParser(nil)

	_, err := p.Parse(context.Background(), []byte("hello"), "resume.rtf")
	require.Error(t, err)
	assert.Equal(t, apperr.KindParseFailure, apperr.KindOf(err))
}

func TestParseRejectsEmptyInput(t *testing.T) {
	p := NewResumeParser(nil)

	_, err := p.Parse(context.Background(), nil, "resume.txt")
	require.Error(t, err)
	assert.Equal(t, apperr.KindParseFailure, apperr.KindOf(err))

	_, err = p.Parse(context.Background(), []byte("   \n\t "), "resume.txt")
	require.Error(t, err)
	assert.Equal(t, apperr.KindParseFailure, apperr.KindOf(err))
}

func TestParsePDFWithoutExtractor(t *testing.T) {
	p := NewResumeParser(nil)

	_, err := p.Parse(context.Background(), []byte("%PDF-1.4"), "resume.pdf")
	require.Error(t, err)
	assert.Equal(t, apperr.KindParseFailure, apperr.KindOf(err))
}

func TestBuildProfileContact(t *testing.T) {
	profile := BuildProfile(sampleResume)

	assert.Equal(t, "Jane Chen", profile.Contact.Name)
	assert.Equal(t, "jane.chen@example.com", profile.Contact.Email)
	assert.Equal(t, "(415) 555-0134", profile.Contact.Phone)
	assert.Equal(t, "linkedin.com/in/janechen", profile.Contact.LinkedIn)
	assert.Equal(t, "github.com/janechen", profile.Contact.GitHub)
	assert.Equal(t, "San Francisco, CA", profile.Contact.Location)
}

func TestBuildProfileSkills(t *testing.T) {
	profile := BuildProfile(sampleResume)

	assert.Equal(t, []string{"Python", "Go", "AWS", "Docker", "Kubernetes", "PostgreSQL", "Terraform"}, profile.Skills)
}

func TestBuildProfileSkillsDeduplicated(t *testing.T) {
	profile := BuildProfile("Skills\nPython, python, PYTHON, Go\n")

	assert.Equal(t, []string{"Python", "Go"}, profile.Skills)
}

func TestBuildProfileExperience(t *testing.T) {
	profile := BuildProfile(sampleResume)

	require.Len(t, profile.Experience, 2)
	first := profile.Experience[0]
	assert.Equal(t, "Senior Software Engineer", first.Title)
	assert.Equal(t, "Acme Corp", first.Company)
	assert.Equal(t, "2021 - Present", first.Dates)
	require.Len(t, first.Bullets, 2)
	assert.Equal(t, "Led migration of billing pipeline to Go", first.Bullets[0])

	second := profile.Experience[1]
	assert.Equal(t, "Software Engineer", second.Title)
	assert.Equal(t, "Initech", second.Company)
}

func TestBuildProfileEducation(t *testing.T) {
	profile := BuildProfile(sampleResume)

	require.Len(t, profile.Education, 1)
	assert.Equal(t, "B.S. Computer Science", profile.Education[0].Degree)
	assert.Equal(t, "UC Berkeley", profile.Education[0].Institution)
	assert.Equal(t, "2014 - 2018", profile.Education[0].Dates)
}

func TestBuildProfileSummary(t *testing.T) {
	profile := BuildProfile(sampleResume)

	assert.Equal(t, "Backend engineer with 7 years of experience building data platforms.", profile.Summary)
}

func TestSplitSectionsIgnoresKeywordInBody(t *testing.T) {
	text := "Skills\nGo, Python\nI have extensive experience with skills-based hiring processes and long descriptions\n"
	sections := splitSections(text)

	// 正文长行即使包含关键词也不应被当作标题
	assert.Contains(t, sections["skills"], "Go, Python")
	_, hasExperience := sections["experience"]
	assert.False(t, hasExperience)
}

package parser

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-agent-go/internal/apperr"
)

// buildDocx 按行构造最小可用的docx：每行一个段落
func buildDocx(t *testing.T, lines []string) []byte {
	t.Helper()
	var body strings.Builder
	for _, line := range lines {
		fmt.Fprintf(&body, "<w:p><w:r><w:t>%s</w:t></w:r></w:p>", line)
	}
	document := `<?xml version="1.0" encoding="UTF-8"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
		`<w:body>` + body.String() + `</w:body></w:document>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(document))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestExtractDocxText(t *testing.T) {
	data := buildDocx(t, []string{"Jane Chen", "jane@example.com", "", "Skills", "Go, Docker"})

	text, err := ExtractDocxText(data)
	require.NoError(t, err)

	lines := strings.Split(text, "\n")
	assert.Equal(t, "Jane Chen", lines[0])
	assert.Contains(t, text, "Go, Docker")
}

func TestExtractDocxTextNotAZip(t *testing.T) {
	_, err := ExtractDocxText([]byte("这不是docx"))
	assert.Error(t, err)
}

func TestExtractDocxTextMissingDocument(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/styles.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte("<w:styles/>"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = ExtractDocxText(buf.Bytes())
	assert.Error(t, err)
}

func TestParseDocxResume(t *testing.T) {
	data := buildDocx(t, []string{
		"Jane Chen",
		"jane.chen@example.com",
		"Skills",
		"Go, AWS, Kubernetes",
	})
	p := NewResumeParser(nil)

	record, err := p.Parse(context.Background(), data, "resume.docx")
	require.NoError(t, err)
	require.NotNil(t, record.Profile)

	assert.Equal(t, "Jane Chen", record.Profile.Contact.Name)
	assert.Equal(t, "jane.chen@example.com", record.Profile.Contact.Email)
	assert.Contains(t, record.Profile.Skills, "Kubernetes")
}

func TestParseDocxMalformed(t *testing.T) {
	p := NewResumeParser(nil)

	_, err := p.Parse(context.Background(), []byte("PK corrupted"), "resume.docx")
	require.Error(t, err)
	assert.Equal(t, apperr.KindParseFailure, apperr.KindOf(err))
}

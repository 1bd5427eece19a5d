package generator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/uuid/v5"
	docx "github.com/lukasjarosch/go-docx"

	"resume-agent-go/internal/apperr"
	"resume-agent-go/internal/types"
)

// RenderRequest 渲染输入，正文已由上层组装完成
type RenderRequest struct {
	Kind  types.DocumentKind
	Title string
	Body  string
}

// DocumentRenderer 将正文渲染为某种格式的字节流
type DocumentRenderer interface {
	// Render 返回文档字节和Content-Type
	Render(ctx context.Context, req RenderRequest) ([]byte, string, error)

	// Format 此渲染器产出的格式
	Format() types.DocumentFormat
}

// TextRenderer 结构化文本渲染器，输出Markdown
type TextRenderer struct{}

var _ DocumentRenderer = (*TextRenderer)(nil)

// NewTextRenderer 创建文本渲染器
func NewTextRenderer() *TextRenderer {
	return &TextRenderer{}
}

// Format 实现 DocumentRenderer 接口
func (r *TextRenderer) Format() types.DocumentFormat {
	return types.DocumentFormatText
}

// Render 实现 DocumentRenderer 接口
func (r *TextRenderer) Render(ctx context.Context, req RenderRequest) ([]byte, string, error) {
	out := "# " + req.Title + "\n\n" + req.Body
	if out[len(out)-1] != '\n' {
		out += "\n"
	}
	return []byte(out), "text/markdown; charset=utf-8", nil
}

// DocxRenderer 基于模板占位符替换的DOCX渲染器。
// 模板中需包含 {title} 和 {content} 占位符。
type DocxRenderer struct {
	templatePath string
	tempDir      string
}

var _ DocumentRenderer = (*DocxRenderer)(nil)

// NewDocxRenderer 创建DOCX渲染器，模板文件必须存在
func NewDocxRenderer(templatePath string) (*DocxRenderer, error) {
	if templatePath == "" {
		return nil, fmt.Errorf("DOCX模板路径不能为空")
	}
	if _, err := os.Stat(templatePath); err != nil {
		return nil, fmt.Errorf("DOCX模板 %s 不可用: %w", templatePath, err)
	}
	return &DocxRenderer{
		templatePath: templatePath,
		tempDir:      os.TempDir(),
	}, nil
}

// Format 实现 DocumentRenderer 接口
func (r *DocxRenderer) Format() types.DocumentFormat {
	return types.DocumentFormatDocx
}

// Render 实现 DocumentRenderer 接口。
// go-docx 只支持写入文件，先落到临时文件再读回字节。
func (r *DocxRenderer) Render(ctx context.Context, req RenderRequest) ([]byte, string, error) {
	const op = "DocxRenderer.Render"

	doc, err := docx.Open(r.templatePath)
	if err != nil {
		return nil, "", apperr.NewRenderError(op, "打开DOCX模板失败", err)
	}

	replaceMap := docx.PlaceholderMap{
		"title":   req.Title,
		"content": req.Body,
	}
	if err := doc.ReplaceAll(replaceMap); err != nil {
		return nil, "", apperr.NewRenderError(op, "替换模板占位符失败", err)
	}

	tmpName := filepath.Join(r.tempDir, "render-"+uuid.Must(uuid.NewV4()).String()+".docx")
	if err := doc.WriteToFile(tmpName); err != nil {
		return nil, "", apperr.NewRenderError(op, "写入DOCX文件失败", err)
	}
	defer os.Remove(tmpName)

	data, err := os.ReadFile(tmpName)
	if err != nil {
		return nil, "", apperr.NewRenderError(op, "读取渲染结果失败", err)
	}
	return data, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", nil
}

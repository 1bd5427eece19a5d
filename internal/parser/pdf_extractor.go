package parser

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoParser "github.com/cloudwego/eino/components/document/parser"
	"github.com/rs/zerolog"
)

// PDF提取的单次超时
const pdfExtractTimeout = 30 * time.Second

// PDFTextExtractor 使用 Eino PDF Parser 提取文本
type PDFTextExtractor struct {
	parser *pdf.PDFParser
	logger zerolog.Logger
}

// PDFOption PDF提取器的配置选项
type PDFOption func(*PDFTextExtractor)

// WithPDFLogger 配置自定义日志记录器
func WithPDFLogger(l zerolog.Logger) PDFOption {
	return func(e *PDFTextExtractor) {
		e.logger = l
	}
}

// NewPDFTextExtractor 初始化PDF文本提取器。
// 配置为不按页面分割，整份文档作为单个连续文本返回。
func NewPDFTextExtractor(ctx context.Context, options ...PDFOption) (*PDFTextExtractor, error) {
	p, err := pdf.NewPDFParser(ctx, &pdf.Config{
		ToPages: false,
	})
	if err != nil {
		return nil, fmt.Errorf("创建PDF解析器失败: %w", err)
	}

	extractor := &PDFTextExtractor{
		parser: p,
		logger: zerolog.Nop(),
	}
	for _, option := range options {
		option(extractor)
	}
	return extractor, nil
}

// ExtractTextFromReader 从 io.Reader 提取PDF全文
func (e *PDFTextExtractor) ExtractTextFromReader(ctx context.Context, reader io.Reader, uri string) (string, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, pdfExtractTimeout)
	defer cancel()

	docs, err := e.parser.Parse(ctx, reader, einoParser.WithURI(uri))
	if err != nil {
		return "", fmt.Errorf("PDF解析失败 (URI: %s): %w", uri, err)
	}
	if len(docs) == 0 {
		return "", fmt.Errorf("PDF解析无结果 (URI: %s)", uri)
	}

	var full string
	for i, doc := range docs {
		full += doc.Content
		if i < len(docs)-1 {
			full += "\n\n"
		}
	}

	e.logger.Debug().
		Str("uri", uri).
		Int("chars", len(full)).
		Dur("elapsed", time.Since(start)).
		Msg("PDF文本提取完成")
	return full, nil
}

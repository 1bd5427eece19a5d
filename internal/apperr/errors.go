package apperr

import (
	"errors"
	"fmt"
)

// Kind 稳定的错误类别标签，供调用方编程式判断，而不是匹配错误文本
type Kind string

const (
	KindNotFound        Kind = "NOT_FOUND"
	KindMissingArgument Kind = "MISSING_ARGUMENT"
	KindProviderError   Kind = "PROVIDER_ERROR"
	KindParseFailure    Kind = "PARSE_FAILURE"
	KindRenderError     Kind = "RENDER_ERROR"
	KindInternal        Kind = "INTERNAL"
)

// 定义基础错误类型
var (
	ErrNotFound        = errors.New("引用的资源不存在")
	ErrMissingArgument = errors.New("缺少必需参数")
	ErrProvider        = errors.New("外部服务调用失败")
	ErrParseFailure    = errors.New("简历内容解析失败")
	ErrRender          = errors.New("文档渲染失败")
)

// Error 包含操作上下文的自定义错误
type Error struct {
	Kind    Kind
	Op      string
	BaseErr error
	Detail  string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (操作:%s): %s", e.BaseErr, e.Op, e.Detail)
	}
	return fmt.Sprintf("%s (操作:%s)", e.BaseErr, e.Op)
}

func (e *Error) Unwrap() error {
	return e.BaseErr
}

// Is 实现 errors.Is 接口以支持错误比较
func (e *Error) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

// KindOf 返回错误所属的类别；非本包错误一律归为 INTERNAL
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrMissingArgument):
		return KindMissingArgument
	case errors.Is(err, ErrProvider):
		return KindProviderError
	case errors.Is(err, ErrParseFailure):
		return KindParseFailure
	case errors.Is(err, ErrRender):
		return KindRenderError
	}
	return KindInternal
}

// 错误构造函数

func NewNotFound(op, detail string) error {
	return &Error{Kind: KindNotFound, Op: op, BaseErr: ErrNotFound, Detail: detail}
}

// NewMissingArgument 构造缺参错误，detail 必须准确说出缺少的参数名，
// 以便上层把问题抛回给用户而不是自行猜测
func NewMissingArgument(op, argName string) error {
	return &Error{Kind: KindMissingArgument, Op: op, BaseErr: ErrMissingArgument, Detail: argName}
}

func NewProviderError(op, detail string, cause error) error {
	if cause != nil {
		detail = fmt.Sprintf("%s: %v", detail, cause)
	}
	return &Error{Kind: KindProviderError, Op: op, BaseErr: ErrProvider, Detail: detail}
}

func NewParseFailure(op, detail string, cause error) error {
	if cause != nil {
		detail = fmt.Sprintf("%s: %v", detail, cause)
	}
	return &Error{Kind: KindParseFailure, Op: op, BaseErr: ErrParseFailure, Detail: detail}
}

func NewRenderError(op, detail string, cause error) error {
	if cause != nil {
		detail = fmt.Sprintf("%s: %v", detail, cause)
	}
	return &Error{Kind: KindRenderError, Op: op, BaseErr: ErrRender, Detail: detail}
}

package router

import (
	"context"
	"encoding/json"
	"io"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"resume-agent-go/internal/api/handler"
	"resume-agent-go/internal/apperr"
	"resume-agent-go/internal/dispatch"
)

// RegisterRoutes 注册 API 路由
func RegisterRoutes(h *server.Hertz, sessionHandler *handler.SessionHandler) {
	api := h.Group("/api/v1")

	// 一轮对话。session_id为空时开启新会话并在响应中返回。
	api.POST("/chat", func(c context.Context, ctx *app.RequestContext) {
		var req struct {
			SessionID string `json:"session_id"`
			Message   string `json:"message"`
		}
		if err := json.Unmarshal(ctx.Request.Body(), &req); err != nil {
			ctx.JSON(consts.StatusBadRequest, utils.H{"error": "请求体不是合法的JSON"})
			return
		}

		resp, err := sessionHandler.HandleChat(c, req.SessionID, req.Message)
		if err != nil {
			ctx.JSON(statusForError(err), utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(consts.StatusOK, resp)
	})

	// 简历上传，multipart表单，字段名file
	api.POST("/sessions/:session_id/resume", func(c context.Context, ctx *app.RequestContext) {
		fileHeader, err := ctx.FormFile("file")
		if err != nil {
			ctx.JSON(consts.StatusBadRequest, utils.H{"error": "文件未找到"})
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "打开文件失败"})
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "读取文件失败"})
			return
		}

		resp, err := sessionHandler.HandleResumeUpload(c, ctx.Param("session_id"), fileHeader.Filename, data)
		if err != nil {
			ctx.JSON(statusForError(err), utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(statusForResult(resp.Result), resp)
	})

	// 直接执行一个操作，绕过对话模型
	api.POST("/sessions/:session_id/ops/:operation", func(c context.Context, ctx *app.RequestContext) {
		args := map[string]any{}
		if body := ctx.Request.Body(); len(body) > 0 {
			if err := json.Unmarshal(body, &args); err != nil {
				ctx.JSON(consts.StatusBadRequest, utils.H{"error": "请求体不是合法的JSON"})
				return
			}
		}

		op := dispatch.Operation(ctx.Param("operation"))
		result, sessionID, err := sessionHandler.HandleOperation(c, ctx.Param("session_id"), op, args)
		if err != nil {
			ctx.JSON(statusForError(err), utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(statusForResult(result), utils.H{"session_id": sessionID, "result": result})
	})

	// 会话状态摘要及当前可用操作
	api.GET("/sessions/:session_id/summary", func(c context.Context, ctx *app.RequestContext) {
		resp, err := sessionHandler.HandleSummary(ctx.Param("session_id"))
		if err != nil {
			ctx.JSON(statusForError(err), utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(consts.StatusOK, resp)
	})

	// 已生成文档列表，每项附带限时访问链接
	api.GET("/sessions/:session_id/documents", func(c context.Context, ctx *app.RequestContext) {
		resp, err := sessionHandler.HandleListDocuments(c, ctx.Param("session_id"))
		if err != nil {
			ctx.JSON(statusForError(err), utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(consts.StatusOK, resp)
	})

	// 按存储key下载文档内容。key含路径分隔符，放在查询参数里
	api.GET("/sessions/:session_id/documents/download", func(c context.Context, ctx *app.RequestContext) {
		key := ctx.Query("key")
		data, contentType, err := sessionHandler.HandleDocumentDownload(c, ctx.Param("session_id"), key)
		if err != nil {
			ctx.JSON(statusForError(err), utils.H{"error": err.Error()})
			return
		}
		ctx.Data(consts.StatusOK, contentType, data)
	})

	// 重置会话
	api.POST("/sessions/:session_id/reset", func(c context.Context, ctx *app.RequestContext) {
		result, sessionID, err := sessionHandler.HandleReset(c, ctx.Param("session_id"))
		if err != nil {
			ctx.JSON(statusForError(err), utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(statusForResult(result), utils.H{"session_id": sessionID, "result": result})
	})

	// 健康检查
	api.GET("/health", func(c context.Context, ctx *app.RequestContext) {
		ctx.JSON(consts.StatusOK, utils.H{"status": "ok"})
	})
}

// statusForError 按错误类别映射HTTP状态码
func statusForError(err error) int {
	return statusForKind(apperr.KindOf(err))
}

// statusForResult 操作结果的HTTP状态码，成功为200
func statusForResult(result *dispatch.Result) int {
	if result == nil {
		return consts.StatusInternalServerError
	}
	if result.ErrorKind == "" {
		return consts.StatusOK
	}
	return statusForKind(result.ErrorKind)
}

func statusForKind(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return consts.StatusNotFound
	case apperr.KindMissingArgument:
		return consts.StatusBadRequest
	case apperr.KindProviderError:
		return consts.StatusBadGateway
	case apperr.KindParseFailure, apperr.KindRenderError:
		return consts.StatusUnprocessableEntity
	default:
		return consts.StatusInternalServerError
	}
}

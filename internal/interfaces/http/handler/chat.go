// Package handler 提供 HTTP 请求处理器
package handler

import (
	"io"

	"github.com/gin-gonic/gin"

	"news-chat-api/internal/application/chat"
	"news-chat-api/internal/interfaces/http/dto"
	"news-chat-api/pkg/errors"
	"news-chat-api/pkg/logger"
)

// SessionIDHeader 会话 ID 响应头。
// 响应体是纯文本答案流，会话标识只能通过响应头带回。
const SessionIDHeader = "X-Session-Id"

// ChatHandler 问答处理器
type ChatHandler struct {
	engine *chat.Engine
}

// NewChatHandler 创建问答处理器
func NewChatHandler(engine *chat.Engine) *ChatHandler {
	return &ChatHandler{engine: engine}
}

// Chat 流式问答接口
// @Summary 流式问答
// @Description 基于新闻知识库回答问题，响应为纯文本片段流
// @Tags Chat
// @Accept json
// @Produce plain
// @Param request body dto.ChatRequest true "问答请求"
// @Success 200 "text stream"
// @Failure 400 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /chat [post]
func (h *ChatHandler) Chat(c *gin.Context) {
	var req dto.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "query is required")
		return
	}

	stream, err := h.engine.Ask(c.Request.Context(), req.Query, req.SessionID)
	if err != nil {
		// 流尚未开始，仍可返回结构化错误
		appErr := errors.AsAppError(err)
		dto.Error(c, appErr.HTTPStatus, appErr.Message)
		return
	}

	// 等首个片段到达后再提交响应：生成在产出任何内容前就失败时，
	// 仍可返回结构化错误而非已提交的空 200
	pending, open := <-stream.Fragments()
	if !open && stream.Err() != nil {
		appErr := errors.AsAppError(stream.Err())
		dto.Error(c, appErr.HTTPStatus, appErr.Message)
		return
	}

	// 响应头必须在第一个片段写出前设置
	c.Header(SessionIDHeader, stream.SessionID)
	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(200)

	// 逐片段转发，每个片段后立即刷出
	c.Stream(func(w io.Writer) bool {
		frag := pending
		pending = ""
		if frag == "" {
			var more bool
			frag, more = <-stream.Fragments()
			if !more {
				return false
			}
		}
		if _, err := io.WriteString(w, frag); err != nil {
			return false
		}
		return true
	})

	// 中途失败：响应已截断，只能记日志
	if err := stream.Err(); err != nil {
		logger.Error(c.Request.Context(), "answer stream ended with error", err)
	}
}

// History 查询会话历史
// @Summary 会话历史
// @Description 按写入顺序返回会话的全部问答记录
// @Tags Chat
// @Produce json
// @Param sessionId query string true "会话 ID"
// @Success 200 {object} dto.Response[dto.HistoryResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /chat/history [get]
func (h *ChatHandler) History(c *gin.Context) {
	sessionID := c.Query("sessionId")
	if sessionID == "" {
		dto.BadRequest(c, "sessionId is required")
		return
	}

	turns, err := h.engine.History(c.Request.Context(), sessionID)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to read session history", err)
		dto.InternalError(c, "failed to read session history")
		return
	}

	dto.Success(c, dto.HistoryResponse{
		SessionID: sessionID,
		History:   turns,
	})
}

// Clear 清除会话
// @Summary 清除会话
// @Description 删除会话的全部历史记录
// @Tags Chat
// @Accept json
// @Produce json
// @Success 200 {object} dto.Response[dto.ClearResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /chat/clear [post]
func (h *ChatHandler) Clear(c *gin.Context) {
	var req struct {
		SessionID string `json:"sessionId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.SessionID == "" {
		// 同时兼容 query 参数形式
		req.SessionID = c.Query("sessionId")
	}
	if req.SessionID == "" {
		dto.BadRequest(c, "sessionId is required")
		return
	}

	if err := h.engine.Clear(c.Request.Context(), req.SessionID); err != nil {
		logger.Error(c.Request.Context(), "failed to clear session", err)
		dto.InternalError(c, "failed to clear session")
		return
	}

	dto.Success(c, dto.ClearResponse{
		SessionID: req.SessionID,
		Message:   "session cleared",
	})
}

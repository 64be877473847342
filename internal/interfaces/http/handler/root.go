// Package handler 提供 HTTP 请求处理器
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"news-chat-api/internal/interfaces/http/dto"
)

// RootHandler 服务能力描述处理器
type RootHandler struct {
	name    string
	version string
}

// NewRootHandler 创建服务能力描述处理器
func NewRootHandler(name, version string) *RootHandler {
	return &RootHandler{name: name, version: version}
}

// Root 服务能力描述接口
// @Summary 服务能力描述
// @Description 返回服务名称与主要端点
// @Tags System
// @Produce json
// @Success 200 {object} dto.CapabilitiesResponse
// @Router / [get]
func (h *RootHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, dto.CapabilitiesResponse{
		Service: h.name,
		Version: h.version,
		Endpoints: map[string]string{
			"POST /chat":        "ask a question, answer streamed as plain text",
			"GET /chat/history": "list turns for a session",
			"POST /chat/clear":  "delete a session",
			"GET /health":       "health probe",
			"GET /ready":        "readiness probe",
			"GET /live":         "liveness probe",
		},
	})
}

// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"news-chat-api/internal/domain/entity"
)

// ChatRequest 对话请求
type ChatRequest struct {
	Query     string `json:"query" binding:"required"`
	SessionID string `json:"sessionId"`
}

// HistoryResponse 会话历史响应
type HistoryResponse struct {
	SessionID string        `json:"sessionId"`
	History   []entity.Turn `json:"history"`
}

// ClearResponse 清除会话响应
type ClearResponse struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

// CapabilitiesResponse 服务能力描述
type CapabilitiesResponse struct {
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
}

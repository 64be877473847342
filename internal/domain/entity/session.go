// Package entity 定义领域实体
package entity

// Turn 会话日志中的一条记录：要么是用户消息，要么是机器人消息。
// 一次问答写入两条 Turn（先 user 后 bot），读取方按位置配对。
type Turn struct {
	User string `json:"user,omitempty"`
	Bot  string `json:"bot,omitempty"`
}

// UserTurn 构造用户消息
func UserTurn(text string) Turn {
	return Turn{User: text}
}

// BotTurn 构造机器人消息
func BotTurn(text string) Turn {
	return Turn{Bot: text}
}

// Package entity 定义领域实体
package entity

// ChunkPoint 向量集合中的一个可检索片段
// ID 由 (来源 URL, 片段序号) 确定性派生，重复注入同一文章时按 id 覆盖。
type ChunkPoint struct {
	ID     string    `json:"id"`
	URL    string    `json:"url"`
	Text   string    `json:"text"`
	Vector []float32 `json:"vector"`
}

// ScoredChunk 一次检索命中的片段及其余弦相似度
type ScoredChunk struct {
	Score float32 `json:"score"`
	URL   string  `json:"url"`
	Text  string  `json:"text"`
}

package taskqueue

import (
	"encoding/json"
	"time"
)

// TaskType 任务类型
type TaskType string

const (
	// TaskAnnotate 文档标注任务
	TaskAnnotate TaskType = "annotate"
)

// TaskStatus 任务状态
type TaskStatus string

const (
	// StatusPending 等待处理
	StatusPending TaskStatus = "pending"
	// StatusProcessing 处理中
	StatusProcessing TaskStatus = "processing"
	// StatusCompleted 已完成
	StatusCompleted TaskStatus = "completed"
	// StatusFailed 处理失败
	StatusFailed TaskStatus = "failed"
)

// Task 任务基础结构
type Task struct {
	ID          string          `json:"id"`           // 任务唯一标识符
	Type        TaskType        `json:"type"`         // 任务类型
	JobID       string          `json:"job_id"`       // 关联的标注任务ID
	Status      TaskStatus      `json:"status"`       // 任务状态
	Payload     json.RawMessage `json:"payload"`      // 任务载荷数据
	Result      json.RawMessage `json:"result"`       // 任务结果数据
	Error       string          `json:"error"`        // 错误信息（如果处理失败）
	CreatedAt   time.Time       `json:"created_at"`   // 创建时间
	UpdatedAt   time.Time       `json:"updated_at"`   // 更新时间
	StartedAt   *time.Time      `json:"started_at"`   // 开始处理时间
	CompletedAt *time.Time      `json:"completed_at"` // 完成时间
	Attempts    int             `json:"attempts"`     // 尝试次数
	MaxRetries  int             `json:"max_retries"`  // 最大重试次数
}

// AnnotatePayload 标注任务载荷
// 源文档与评论都已保存在存储和数据库中，载荷只携带定位信息
type AnnotatePayload struct {
	JobID    string `json:"job_id"`    // 标注任务ID
	Kind     string `json:"kind"`      // 文档类型
	SourceID string `json:"source_id"` // 源文档存储ID
	FileName string `json:"file_name"` // 原始文件名
}

// AnnotateResult 标注任务结果
type AnnotateResult struct {
	JobID    string `json:"job_id"`    // 标注任务ID
	Placed   int    `json:"placed"`    // 成功放置的评论数
	Shapes   int    `json:"shapes"`    // 写入的标注数
	OutputID string `json:"output_id"` // 输出文档存储ID
	Error    string `json:"error"`     // 错误信息（如果有）
}

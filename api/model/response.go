package model

import (
	"time"

	"github.com/fyerfyer/doc-annotator/internal/annotate"
	"github.com/fyerfyer/doc-annotator/internal/models"
	"github.com/fyerfyer/doc-annotator/internal/review"
)

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`               // 响应状态码，0表示成功
	Message string      `json:"message"`            // 响应消息
	Data    interface{} `json:"data,omitempty"`     // 响应数据
	TraceID string      `json:"trace_id,omitempty"` // 调用链追踪ID
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string) *Response {
	return &Response{
		Code:    code,
		Message: message,
	}
}

// AnnotationInfo 标注任务信息
type AnnotationInfo struct {
	ID          string          `json:"id"`
	Kind        string          `json:"kind"`
	FileName    string          `json:"filename"`
	Format      string          `json:"format"`
	Status      string          `json:"status"`
	Sections    int             `json:"sections"`
	Considered  int             `json:"considered"`
	Placed      int             `json:"placed"`
	Shapes      int             `json:"shapes"`
	Skipped     []annotate.Skip `json:"skipped"`
	Error       string          `json:"error,omitempty"`
	TaskID      string          `json:"task_id,omitempty"`
	DownloadURL string          `json:"download_url,omitempty"` // 任务完成后可用
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// NewAnnotationInfo 由任务记录构建响应
func NewAnnotationInfo(job *models.AnnotationJob, skipped []annotate.Skip) AnnotationInfo {
	if skipped == nil {
		skipped = []annotate.Skip{}
	}
	info := AnnotationInfo{
		ID:          job.ID,
		Kind:        job.Kind,
		FileName:    job.FileName,
		Format:      job.Format,
		Status:      string(job.Status),
		Sections:    job.Sections,
		Considered:  job.Considered,
		Placed:      job.Placed,
		Shapes:      job.Shapes,
		Skipped:     skipped,
		Error:       job.Error,
		TaskID:      job.TaskID,
		CreatedAt:   job.CreatedAt,
		UpdatedAt:   job.UpdatedAt,
		CompletedAt: job.CompletedAt,
	}
	if job.Status == models.JobStatusCompleted {
		info.DownloadURL = "/api/annotations/" + job.ID + "/download"
	}
	return info
}

// AnnotationListResponse 标注任务列表响应
type AnnotationListResponse struct {
	Total       int64            `json:"total"`
	Page        int              `json:"page"`
	PageSize    int              `json:"page_size"`
	Annotations []AnnotationInfo `json:"annotations"`
}

// AnnotationDeleteResponse 删除标注任务响应
type AnnotationDeleteResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
}

// CommentParseResponse 评论解析响应
type CommentParseResponse struct {
	Total      int              `json:"total"`      // 识别出的评论段总数
	Considered int              `json:"considered"` // 参与定位的评论段数
	Comments   []review.Comment `json:"comments"`   // 含行号引用的评论
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status string   `json:"status"`
	Kinds  []string `json:"kinds"` // 支持的文档类型
}

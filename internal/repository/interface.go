package repository

import "github.com/fyerfyer/doc-annotator/internal/models"

// JobRepository 标注任务仓储接口
// 负责标注任务记录的存储和检索
type JobRepository interface {
	// Create 创建任务记录
	Create(job *models.AnnotationJob) error

	// Update 更新任务记录
	Update(job *models.AnnotationJob) error

	// GetByID 根据ID获取任务
	GetByID(id string) (*models.AnnotationJob, error)

	// List 列出任务列表，支持分页和筛选
	// 支持的筛选键：status、kind、file_name
	List(offset, limit int, filters map[string]interface{}) ([]*models.AnnotationJob, int64, error)

	// Delete 删除任务
	Delete(id string) error

	// UpdateStatus 更新任务状态
	UpdateStatus(id string, status models.JobStatus, errorMsg string) error

	// SetTaskID 记录任务关联的异步任务ID
	SetTaskID(id, taskID string) error

	// FindCompletedByFingerprint 查找指纹相同且已完成的最新任务
	FindCompletedByFingerprint(fingerprint string) (*models.AnnotationJob, error)
}

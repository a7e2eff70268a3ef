package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fyerfyer/doc-annotator/internal/database"
	"github.com/fyerfyer/doc-annotator/internal/models"
	"github.com/fyerfyer/doc-annotator/pkg/taskqueue"
	"gorm.io/gorm"
)

// jobRepository 标注任务仓储实现
type jobRepository struct {
	db        *gorm.DB        // 数据库连接
	taskQueue taskqueue.Queue // 任务队列，删除任务时一并清理
	ctx       context.Context
}

// NewJobRepository 使用全局数据库连接创建仓储实例
func NewJobRepository() JobRepository {
	return &jobRepository{
		db:  database.MustDB(),
		ctx: context.Background(),
	}
}

// NewJobRepositoryWithDB 使用指定的数据库连接创建仓储实例
func NewJobRepositoryWithDB(db *gorm.DB) JobRepository {
	if db == nil {
		db = database.MustDB()
	}
	return &jobRepository{
		db:  db,
		ctx: context.Background(),
	}
}

// NewJobRepositoryWithQueue 使用指定的数据库连接和任务队列创建仓储实例
func NewJobRepositoryWithQueue(db *gorm.DB, queue taskqueue.Queue) JobRepository {
	if db == nil {
		db = database.MustDB()
	}
	return &jobRepository{
		db:        db,
		taskQueue: queue,
		ctx:       context.Background(),
	}
}

// Create 创建任务记录
func (r *jobRepository) Create(job *models.AnnotationJob) error {
	if job.ID == "" {
		return errors.New("job ID cannot be empty")
	}
	return r.db.Create(job).Error
}

// Update 更新任务记录
func (r *jobRepository) Update(job *models.AnnotationJob) error {
	if job.ID == "" {
		return errors.New("job ID cannot be empty")
	}
	return r.db.Save(job).Error
}

// GetByID 根据ID获取任务
func (r *jobRepository) GetByID(id string) (*models.AnnotationJob, error) {
	var job models.AnnotationJob
	err := r.db.Where("id = ?", id).First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", models.ErrJobNotFound, id)
		}
		return nil, err
	}
	return &job, nil
}

// List 列出任务列表，按创建时间倒序
func (r *jobRepository) List(offset, limit int, filters map[string]interface{}) ([]*models.AnnotationJob, int64, error) {
	var jobs []*models.AnnotationJob
	var total int64

	query := r.db.Model(&models.AnnotationJob{})

	if filters != nil {
		if status, ok := filters["status"]; ok {
			switch s := status.(type) {
			case models.JobStatus:
				if s != "" {
					query = query.Where("status = ?", string(s))
				}
			case string:
				if s != "" {
					query = query.Where("status = ?", s)
				}
			}
		}

		if kind, ok := filters["kind"].(string); ok && kind != "" {
			query = query.Where("kind = ?", kind)
		}

		if fileName, ok := filters["file_name"].(string); ok && fileName != "" {
			query = query.Where("file_name LIKE ?", "%"+fileName+"%")
		}
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 10
	}
	err := query.Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, 0, err
	}

	return jobs, total, nil
}

// Delete 删除任务记录，并尝试删除关联的异步任务
func (r *jobRepository) Delete(id string) error {
	job, err := r.GetByID(id)
	if err != nil {
		return err
	}

	if err := r.db.Where("id = ?", id).Delete(&models.AnnotationJob{}).Error; err != nil {
		return err
	}

	if r.taskQueue != nil && job.TaskID != "" {
		// 任务可能已经被清理，忽略错误
		_ = r.taskQueue.DeleteTask(r.ctx, job.TaskID)
	}
	return nil
}

// UpdateStatus 更新任务状态
func (r *jobRepository) UpdateStatus(id string, status models.JobStatus, errorMsg string) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %s", models.ErrInvalidJobStatus, status)
	}

	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}
	if errorMsg != "" {
		updates["error"] = errorMsg
	}
	if status.Terminal() {
		now := time.Now()
		updates["completed_at"] = &now
	}

	res := r.db.Model(&models.AnnotationJob{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", models.ErrJobNotFound, id)
	}
	return nil
}

// SetTaskID 记录异步任务ID
func (r *jobRepository) SetTaskID(id, taskID string) error {
	return r.db.Model(&models.AnnotationJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"task_id":    taskID,
			"updated_at": time.Now(),
		}).Error
}

// FindCompletedByFingerprint 查找指纹相同且已完成的最新任务
func (r *jobRepository) FindCompletedByFingerprint(fingerprint string) (*models.AnnotationJob, error) {
	if fingerprint == "" {
		return nil, fmt.Errorf("%w: empty fingerprint", models.ErrJobNotFound)
	}

	var job models.AnnotationJob
	err := r.db.Where("fingerprint = ? AND status = ?", fingerprint, models.JobStatusCompleted).
		Order("created_at DESC").
		First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: fingerprint %s", models.ErrJobNotFound, fingerprint)
		}
		return nil, err
	}
	return &job, nil
}

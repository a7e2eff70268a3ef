package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/fyerfyer/doc-annotator/internal/annotate"
	"github.com/fyerfyer/doc-annotator/internal/models"
	"github.com/fyerfyer/doc-annotator/internal/repository"
	"github.com/fyerfyer/doc-annotator/pkg/storage"
	"github.com/sirupsen/logrus"
)

// JobStatusManager 标注任务状态管理器
// 负责任务生命周期内的状态转换
type JobStatusManager struct {
	repo   repository.JobRepository
	logger *logrus.Logger
	mu     sync.Mutex
}

// NewJobStatusManager 创建任务状态管理器
func NewJobStatusManager(repo repository.JobRepository, logger *logrus.Logger) *JobStatusManager {
	if logger == nil {
		logger = logrus.New()
	}
	return &JobStatusManager{repo: repo, logger: logger}
}

// MarkAsProcessing 将任务标记为处理中
// 失败的任务允许重新处理，以支持队列重试
func (m *JobStatusManager) MarkAsProcessing(ctx context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, err := m.repo.GetByID(jobID)
	if err != nil {
		return err
	}
	if job.Status != models.JobStatusPending && job.Status != models.JobStatusFailed {
		return fmt.Errorf("%w: job %s is %s", models.ErrInvalidJobStatus, jobID, job.Status)
	}

	m.logger.WithField("job_id", jobID).Info("Marking job as processing")
	return m.repo.UpdateStatus(jobID, models.JobStatusProcessing, "")
}

// MarkAsCompleted 记录标注结果和输出文件，并将任务标记为完成
func (m *JobStatusManager) MarkAsCompleted(ctx context.Context, jobID string, res *annotate.Result, output storage.FileInfo) (*models.AnnotationJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, err := m.repo.GetByID(jobID)
	if err != nil {
		return nil, err
	}

	skipped, err := json.Marshal(res.Skipped)
	if err != nil {
		return nil, fmt.Errorf("failed to encode skipped comments: %w", err)
	}

	now := time.Now()
	job.Status = models.JobStatusCompleted
	job.Sections = res.Sections
	job.Considered = res.Considered
	job.Placed = res.Placed
	job.Shapes = res.Shapes
	job.Skipped = skipped
	job.OutputID = output.ID
	job.OutputPath = output.Path
	job.Error = ""
	job.CompletedAt = &now

	m.logger.WithFields(logrus.Fields{
		"job_id": jobID,
		"placed": res.Placed,
		"output": output.ID,
	}).Info("Marking job as completed")

	if err := m.repo.Update(job); err != nil {
		return nil, err
	}
	return job, nil
}

// MarkAsFailed 将任务标记为失败
func (m *JobStatusManager) MarkAsFailed(ctx context.Context, jobID string, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.WithFields(logrus.Fields{
		"job_id": jobID,
		"error":  errMsg,
	}).Warn("Marking job as failed")
	return m.repo.UpdateStatus(jobID, models.JobStatusFailed, errMsg)
}

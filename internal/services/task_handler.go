package services

import (
	"context"
	"fmt"

	"github.com/fyerfyer/doc-annotator/pkg/taskqueue"
	"github.com/sirupsen/logrus"
)

// AnnotationTaskHandler 队列工作者中执行标注任务的处理器
type AnnotationTaskHandler struct {
	service *AnnotationService
	logger  *logrus.Logger
}

// NewAnnotationTaskHandler 创建标注任务处理器
func NewAnnotationTaskHandler(service *AnnotationService, logger *logrus.Logger) *AnnotationTaskHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &AnnotationTaskHandler{service: service, logger: logger}
}

// GetTaskTypes 返回处理器支持的任务类型
func (h *AnnotationTaskHandler) GetTaskTypes() []taskqueue.TaskType {
	return []taskqueue.TaskType{taskqueue.TaskAnnotate}
}

// ProcessTask 处理一个标注任务
func (h *AnnotationTaskHandler) ProcessTask(ctx context.Context, task *taskqueue.Task) (interface{}, error) {
	if task.Type != taskqueue.TaskAnnotate {
		return nil, fmt.Errorf("unsupported task type: %s", task.Type)
	}

	var payload taskqueue.AnnotatePayload
	if err := taskqueue.UnmarshalPayload(task.Payload, &payload); err != nil {
		return nil, err
	}
	if payload.JobID == "" {
		payload.JobID = task.JobID
	}

	h.logger.WithFields(logrus.Fields{
		"task_id": task.ID,
		"job_id":  payload.JobID,
	}).Info("Processing annotation task")

	res, err := h.service.Process(ctx, payload.JobID)
	if err != nil {
		return &taskqueue.AnnotateResult{JobID: payload.JobID, Error: err.Error()}, err
	}

	job, err := h.service.Get(ctx, payload.JobID)
	if err != nil {
		return nil, err
	}
	return &taskqueue.AnnotateResult{
		JobID:    payload.JobID,
		Placed:   res.Placed,
		Shapes:   res.Shapes,
		OutputID: job.OutputID,
	}, nil
}

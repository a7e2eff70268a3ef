package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/fyerfyer/doc-annotator/api/middleware"
	"github.com/fyerfyer/doc-annotator/api/model"
	"github.com/fyerfyer/doc-annotator/internal/document"
	"github.com/fyerfyer/doc-annotator/internal/models"
	"github.com/fyerfyer/doc-annotator/internal/services"
	"github.com/fyerfyer/doc-annotator/pkg/storage"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// maxCommentsFileSize 评论文件的大小上限
const maxCommentsFileSize = 1 << 20

// AnnotationHandler 处理标注任务相关的API请求
type AnnotationHandler struct {
	service *services.AnnotationService
	logger  *logrus.Logger
}

// NewAnnotationHandler 创建标注任务处理器
func NewAnnotationHandler(service *services.AnnotationService) *AnnotationHandler {
	return &AnnotationHandler{
		service: service,
		logger:  middleware.GetLogger(),
	}
}

// Submit 提交标注任务
// POST /api/annotations
func (h *AnnotationHandler) Submit(c *gin.Context) {
	var req model.AnnotationSubmitRequest
	if err := c.ShouldBind(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("Invalid annotation request", err.Error()))
		return
	}

	kind, err := document.ParseKind(req.Kind)
	if err != nil {
		middleware.HandleError(c, middleware.NewValidationError("Unsupported document kind", err.Error()))
		return
	}

	comments, err := readComments(req)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	file, err := req.File.Open()
	if err != nil {
		middleware.HandleError(c, middleware.NewInternalError("Failed to open uploaded file", err.Error()))
		return
	}
	defer file.Close()

	job, err := h.service.Submit(c.Request.Context(), services.SubmitRequest{
		Kind:     kind,
		FileName: req.File.Filename,
		Source:   file,
		Comments: comments,
		Format:   req.Format,
	})
	if err != nil {
		middleware.HandleError(c, toAppError(err))
		return
	}

	h.logger.WithFields(logrus.Fields{
		"trace_id": middleware.TraceID(c),
		"job_id":   job.ID,
		"kind":     job.Kind,
		"status":   job.Status,
		"placed":   job.Placed,
	}).Info("Annotation job accepted")

	status := http.StatusCreated
	if job.Status == models.JobStatusPending {
		status = http.StatusAccepted
	}
	c.JSON(status, model.NewSuccessResponse(h.info(job)))
}

// Get 获取标注任务
// GET /api/annotations/:id
func (h *AnnotationHandler) Get(c *gin.Context) {
	var req model.AnnotationIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("Invalid annotation id", err.Error()))
		return
	}

	job, err := h.service.Get(c.Request.Context(), req.ID)
	if err != nil {
		middleware.HandleError(c, toAppError(err))
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(h.info(job)))
}

// List 分页列出标注任务
// GET /api/annotations
func (h *AnnotationHandler) List(c *gin.Context) {
	var req model.AnnotationListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("Invalid list request", err.Error()))
		return
	}

	filters := map[string]interface{}{}
	if req.Status != "" {
		filters["status"] = req.Status
	}
	if req.Kind != "" {
		filters["kind"] = strings.ToLower(req.Kind)
	}
	if req.FileName != "" {
		filters["file_name"] = req.FileName
	}

	jobs, total, err := h.service.List(c.Request.Context(), req.Offset(), req.GetPageSize(), filters)
	if err != nil {
		middleware.HandleError(c, toAppError(err))
		return
	}

	resp := model.AnnotationListResponse{
		Total:       total,
		Page:        req.GetPage(),
		PageSize:    req.GetPageSize(),
		Annotations: make([]model.AnnotationInfo, 0, len(jobs)),
	}
	for _, job := range jobs {
		resp.Annotations = append(resp.Annotations, h.info(job))
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// Download 下载标注后的文档
// GET /api/annotations/:id/download
func (h *AnnotationHandler) Download(c *gin.Context) {
	var req model.AnnotationIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("Invalid annotation id", err.Error()))
		return
	}

	rc, job, err := h.service.OpenOutput(c.Request.Context(), req.ID)
	if err != nil {
		middleware.HandleError(c, toAppError(err))
		return
	}
	defer rc.Close()

	kind, _ := document.ParseKind(job.Kind)
	name := services.OutputName(job.FileName, kind)
	contentType := "application/pdf"
	if kind == document.DOCX {
		contentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	}

	c.DataFromReader(http.StatusOK, -1, contentType, rc, map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="%s"`, name),
	})
}

// Delete 删除标注任务及其文件
// DELETE /api/annotations/:id
func (h *AnnotationHandler) Delete(c *gin.Context) {
	var req model.AnnotationIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("Invalid annotation id", err.Error()))
		return
	}

	if err := h.service.Delete(c.Request.Context(), req.ID); err != nil {
		middleware.HandleError(c, toAppError(err))
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(model.AnnotationDeleteResponse{Success: true, ID: req.ID}))
}

// ParseComments 解析评论文本，返回将参与定位的评论
// POST /api/comments/parse
func (h *AnnotationHandler) ParseComments(c *gin.Context) {
	var req model.CommentParseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("Invalid parse request", err.Error()))
		return
	}

	batch, err := h.service.ParseComments(req.Comments, req.Format)
	if err != nil {
		middleware.HandleError(c, toAppError(err))
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(model.CommentParseResponse{
		Total:      batch.Total,
		Considered: batch.Considered,
		Comments:   batch.Comments,
	}))
}

func (h *AnnotationHandler) info(job *models.AnnotationJob) model.AnnotationInfo {
	skipped, err := services.SkippedOf(job)
	if err != nil {
		h.logger.WithError(err).WithField("job_id", job.ID).Warn("Failed to decode skipped comments")
	}
	return model.NewAnnotationInfo(job, skipped)
}

// readComments 从表单字段或评论文件中读取评论文本
func readComments(req model.AnnotationSubmitRequest) (string, error) {
	if strings.TrimSpace(req.Comments) != "" {
		return req.Comments, nil
	}
	if req.CommentsFile == nil {
		return "", middleware.NewValidationError("Comments are required", "provide comments or comments_file")
	}
	if req.CommentsFile.Size > maxCommentsFileSize {
		return "", middleware.NewValidationError("Comments file is too large")
	}

	f, err := req.CommentsFile.Open()
	if err != nil {
		return "", middleware.NewInternalError("Failed to open comments file", err.Error())
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxCommentsFileSize))
	if err != nil {
		return "", middleware.NewInternalError("Failed to read comments file", err.Error())
	}
	return string(data), nil
}

// toAppError 将服务层错误映射为API错误
func toAppError(err error) error {
	switch {
	case errors.Is(err, models.ErrJobNotFound), errors.Is(err, storage.ErrNotFound):
		return middleware.NewNotFoundError("Annotation job not found")
	case errors.Is(err, models.ErrJobNotCompleted):
		return middleware.NewConflictError("Annotation job is not completed")
	case errors.Is(err, models.ErrInvalidJobStatus):
		return middleware.NewConflictError(err.Error())
	case errors.Is(err, document.ErrUnsupportedKind), errors.Is(err, services.ErrInvalidFormat):
		return middleware.NewValidationError("Invalid annotation request", err.Error())
	default:
		return middleware.NewInternalError("Internal server error", err.Error())
	}
}

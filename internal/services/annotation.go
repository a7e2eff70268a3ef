package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fyerfyer/doc-annotator/internal/annotate"
	"github.com/fyerfyer/doc-annotator/internal/cache"
	"github.com/fyerfyer/doc-annotator/internal/document"
	"github.com/fyerfyer/doc-annotator/internal/models"
	"github.com/fyerfyer/doc-annotator/internal/repository"
	"github.com/fyerfyer/doc-annotator/internal/review"
	"github.com/fyerfyer/doc-annotator/pkg/storage"
	"github.com/fyerfyer/doc-annotator/pkg/taskqueue"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// 评论文本格式
const (
	FormatPlain    = "plain"
	FormatMarkdown = "markdown"
)

// ErrInvalidFormat 未知的评论格式
var ErrInvalidFormat = errors.New("invalid comment format")

// EngineConfig 标注引擎参数，参与任务指纹计算
type EngineConfig struct {
	Author       string
	MaxComments  int
	MaxBodyChars int
	Color        document.Color
	Mapping      annotate.Mapping
}

// DefaultEngineConfig 返回默认的引擎参数
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Author:       annotate.DefaultAuthor,
		MaxComments:  review.MaxSections,
		MaxBodyChars: annotate.DefaultMaxBodyChars,
		Color:        document.Yellow,
		Mapping:      annotate.MappingReconcile,
	}
}

// SubmitRequest 提交标注任务的请求
type SubmitRequest struct {
	Kind     document.Kind
	FileName string
	Source   io.Reader
	Comments string
	Format   string // plain 或 markdown，为空时使用服务默认值
}

// AnnotationService 标注服务
// 协调源文件存储、任务记录、结果缓存和标注引擎
type AnnotationService struct {
	storage       storage.Storage
	repo          repository.JobRepository
	statusManager *JobStatusManager
	cache         cache.Cache
	taskQueue     taskqueue.Queue
	registry      *annotate.Registry
	engine        EngineConfig
	format        string
	logger        *logrus.Logger
}

// AnnotationOption 标注服务配置选项
type AnnotationOption func(*AnnotationService)

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) AnnotationOption {
	return func(s *AnnotationService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCache 设置结果缓存
func WithCache(c cache.Cache) AnnotationOption {
	return func(s *AnnotationService) {
		s.cache = c
	}
}

// WithTaskQueue 设置任务队列，设置后提交的任务异步处理
func WithTaskQueue(q taskqueue.Queue) AnnotationOption {
	return func(s *AnnotationService) {
		s.taskQueue = q
	}
}

// WithEngineConfig 设置标注引擎参数
func WithEngineConfig(cfg EngineConfig) AnnotationOption {
	return func(s *AnnotationService) {
		s.engine = cfg
	}
}

// WithDefaultFormat 设置默认评论格式
func WithDefaultFormat(format string) AnnotationOption {
	return func(s *AnnotationService) {
		if format != "" {
			s.format = format
		}
	}
}

// WithRegistry 设置文档能力注册表
func WithRegistry(r *annotate.Registry) AnnotationOption {
	return func(s *AnnotationService) {
		if r != nil {
			s.registry = r
		}
	}
}

// NewAnnotationService 创建标注服务
func NewAnnotationService(store storage.Storage, repo repository.JobRepository, opts ...AnnotationOption) *AnnotationService {
	s := &AnnotationService{
		storage:  store,
		repo:     repo,
		registry: annotate.DefaultRegistry(),
		engine:   DefaultEngineConfig(),
		format:   FormatPlain,
		logger:   logrus.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.statusManager = NewJobStatusManager(repo, s.logger)
	return s
}

// ParseFormat 校验评论格式，空字符串返回 fallback
func ParseFormat(format, fallback string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(format)); f {
	case "":
		return fallback, nil
	case FormatPlain, FormatMarkdown:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidFormat, format)
	}
}

// ParseComments 解析评论文本，不修改任何文档
func (s *AnnotationService) ParseComments(text, format string) (review.Batch, error) {
	f, err := ParseFormat(format, s.format)
	if err != nil {
		return review.Batch{}, err
	}
	return review.Parse(text,
		review.WithLimit(s.engine.MaxComments),
		review.WithMarkdown(f == FormatMarkdown),
	), nil
}

// Submit 保存源文档并创建标注任务
// 相同输入已有完成的任务时直接复用其输出；否则配置了队列则入队，未配置则同步处理
func (s *AnnotationService) Submit(ctx context.Context, req SubmitRequest) (*models.AnnotationJob, error) {
	if _, err := s.registry.Lookup(req.Kind); err != nil {
		return nil, err
	}
	format, err := ParseFormat(req.Format, s.format)
	if err != nil {
		return nil, err
	}
	if req.Source == nil {
		return nil, errors.New("source document is required")
	}

	data, err := io.ReadAll(req.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to read source document: %w", err)
	}

	fileName := req.FileName
	if fileName == "" {
		fileName = "document" + req.Kind.Ext()
	}

	info, err := s.storage.Save(bytes.NewReader(data), fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to store source document: %w", err)
	}

	job := &models.AnnotationJob{
		ID:          uuid.New().String(),
		Kind:        req.Kind.String(),
		FileName:    fileName,
		SourceID:    info.ID,
		SourcePath:  info.Path,
		Comments:    req.Comments,
		Format:      format,
		Fingerprint: s.fingerprint(req.Kind, data, req.Comments, format),
		Status:      models.JobStatusPending,
	}
	if err := s.repo.Create(job); err != nil {
		_ = s.storage.Delete(info.ID)
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	log := s.logger.WithFields(logrus.Fields{
		"job_id":    job.ID,
		"kind":      job.Kind,
		"file_name": fileName,
	})
	log.Info("Annotation job submitted")

	if reused, err := s.reuse(ctx, job); err != nil {
		log.WithError(err).Warn("Failed to reuse previous output, processing again")
	} else if reused != nil {
		return reused, nil
	}

	if s.taskQueue != nil {
		payload := &taskqueue.AnnotatePayload{
			JobID:    job.ID,
			Kind:     job.Kind,
			SourceID: job.SourceID,
			FileName: job.FileName,
		}
		taskID, err := s.taskQueue.Enqueue(ctx, taskqueue.TaskAnnotate, job.ID, payload)
		if err != nil {
			_ = s.statusManager.MarkAsFailed(ctx, job.ID, err.Error())
			return nil, fmt.Errorf("failed to enqueue job: %w", err)
		}
		if err := s.repo.SetTaskID(job.ID, taskID); err != nil {
			log.WithError(err).Warn("Failed to record task id")
		}
		job.TaskID = taskID
		log.WithField("task_id", taskID).Info("Annotation job enqueued")
		return job, nil
	}

	if _, err := s.Process(ctx, job.ID); err != nil {
		// 失败已记录在任务中，调用方通过任务状态获知
		log.WithError(err).Warn("Annotation job failed")
	}
	return s.repo.GetByID(job.ID)
}

// Process 执行一个标注任务
// 源文档和输出都在临时目录中处理，完成后输出保存到存储
func (s *AnnotationService) Process(ctx context.Context, jobID string) (*annotate.Result, error) {
	if err := s.statusManager.MarkAsProcessing(ctx, jobID); err != nil {
		return nil, err
	}

	res, output, err := s.run(ctx, jobID)
	if err != nil {
		if ferr := s.statusManager.MarkAsFailed(ctx, jobID, err.Error()); ferr != nil {
			s.logger.WithError(ferr).WithField("job_id", jobID).Error("Failed to mark job as failed")
		}
		return nil, err
	}

	job, err := s.statusManager.MarkAsCompleted(ctx, jobID, res, output)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(cache.OutputKey(job.Fingerprint), job.ID, 0); err != nil {
			s.logger.WithError(err).Warn("Failed to cache job output")
		}
	}
	return res, nil
}

func (s *AnnotationService) run(ctx context.Context, jobID string) (*annotate.Result, storage.FileInfo, error) {
	job, err := s.repo.GetByID(jobID)
	if err != nil {
		return nil, storage.FileInfo{}, err
	}
	kind, err := document.ParseKind(job.Kind)
	if err != nil {
		return nil, storage.FileInfo{}, err
	}

	dir, err := os.MkdirTemp("", "annotate-"+job.ID+"-")
	if err != nil {
		return nil, storage.FileInfo{}, fmt.Errorf("failed to create work directory: %w", err)
	}
	defer os.RemoveAll(dir)

	src := filepath.Join(dir, "source"+kind.Ext())
	dst := filepath.Join(dir, "output"+kind.Ext())
	if err := s.download(job.SourceID, src); err != nil {
		return nil, storage.FileInfo{}, err
	}

	engine := annotate.New(
		annotate.WithRegistry(s.registry),
		annotate.WithLogger(s.logger),
		annotate.WithAuthor(s.engine.Author),
		annotate.WithMaxComments(s.engine.MaxComments),
		annotate.WithMaxBodyChars(s.engine.MaxBodyChars),
		annotate.WithColor(s.engine.Color),
		annotate.WithMapping(s.engine.Mapping),
		annotate.WithMarkdown(job.Format == FormatMarkdown),
	)
	res, err := engine.Run(ctx, annotate.Job{
		Kind:        kind,
		Source:      src,
		Comments:    job.Comments,
		Destination: dst,
	})
	if err != nil {
		return nil, storage.FileInfo{}, err
	}

	f, err := os.Open(dst)
	if err != nil {
		return nil, storage.FileInfo{}, fmt.Errorf("failed to open annotated document: %w", err)
	}
	defer f.Close()

	output, err := s.storage.Save(f, OutputName(job.FileName, kind))
	if err != nil {
		return nil, storage.FileInfo{}, fmt.Errorf("failed to store annotated document: %w", err)
	}
	return res, output, nil
}

// reuse 查找相同指纹且已完成的任务，复制其输出
// 没有可复用的任务时返回nil
func (s *AnnotationService) reuse(ctx context.Context, job *models.AnnotationJob) (*models.AnnotationJob, error) {
	prior := s.findPrior(job.Fingerprint)
	if prior == nil || prior.ID == job.ID {
		return nil, nil
	}

	rc, err := s.storage.Get(prior.OutputID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	defer rc.Close()

	kind, _ := document.ParseKind(job.Kind)
	output, err := s.storage.Save(rc, OutputName(job.FileName, kind))
	if err != nil {
		return nil, err
	}

	res := &annotate.Result{
		Sections:   prior.Sections,
		Considered: prior.Considered,
		Placed:     prior.Placed,
		Shapes:     prior.Shapes,
	}
	if err := decodeSkipped(prior, &res.Skipped); err != nil {
		return nil, err
	}

	if err := s.statusManager.MarkAsProcessing(ctx, job.ID); err != nil {
		return nil, err
	}
	done, err := s.statusManager.MarkAsCompleted(ctx, job.ID, res, output)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"job_id":   job.ID,
		"reused":   prior.ID,
		"output":   output.ID,
		"placed":   prior.Placed,
		"fileName": job.FileName,
	}).Info("Reused output of identical job")
	return done, nil
}

// findPrior 先查缓存，再查数据库
func (s *AnnotationService) findPrior(fingerprint string) *models.AnnotationJob {
	if s.cache != nil {
		key := cache.OutputKey(fingerprint)
		if id, found, err := s.cache.Get(key); err == nil && found {
			if prior, err := s.repo.GetByID(id); err == nil && prior.Status == models.JobStatusCompleted {
				return prior
			}
			_ = s.cache.Delete(key)
		}
	}

	prior, err := s.repo.FindCompletedByFingerprint(fingerprint)
	if err != nil {
		return nil
	}
	return prior
}

// Get 获取任务
func (s *AnnotationService) Get(ctx context.Context, jobID string) (*models.AnnotationJob, error) {
	return s.repo.GetByID(jobID)
}

// List 分页列出任务
func (s *AnnotationService) List(ctx context.Context, offset, limit int, filters map[string]interface{}) ([]*models.AnnotationJob, int64, error) {
	return s.repo.List(offset, limit, filters)
}

// OpenOutput 打开已完成任务的输出文档，调用方负责关闭
func (s *AnnotationService) OpenOutput(ctx context.Context, jobID string) (io.ReadCloser, *models.AnnotationJob, error) {
	job, err := s.repo.GetByID(jobID)
	if err != nil {
		return nil, nil, err
	}
	if job.Status != models.JobStatusCompleted || job.OutputID == "" {
		return nil, job, fmt.Errorf("%w: %s is %s", models.ErrJobNotCompleted, jobID, job.Status)
	}
	rc, err := s.storage.Get(job.OutputID)
	if err != nil {
		return nil, job, err
	}
	return rc, job, nil
}

// Delete 删除任务及其源文档和输出文档
func (s *AnnotationService) Delete(ctx context.Context, jobID string) error {
	job, err := s.repo.GetByID(jobID)
	if err != nil {
		return err
	}

	for _, id := range []string{job.SourceID, job.OutputID} {
		if id == "" {
			continue
		}
		if err := s.storage.Delete(id); err != nil && !errors.Is(err, storage.ErrNotFound) {
			s.logger.WithError(err).WithField("file_id", id).Warn("Failed to delete stored file")
		}
	}

	if s.cache != nil {
		key := cache.OutputKey(job.Fingerprint)
		if id, found, err := s.cache.Get(key); err == nil && found && id == job.ID {
			_ = s.cache.Delete(key)
		}
	}

	if err := s.repo.Delete(jobID); err != nil {
		return err
	}
	s.logger.WithField("job_id", jobID).Info("Annotation job deleted")
	return nil
}

func (s *AnnotationService) download(id, path string) error {
	rc, err := s.storage.Get(id)
	if err != nil {
		return fmt.Errorf("failed to load source document: %w", err)
	}
	defer rc.Close()

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		return fmt.Errorf("failed to copy source document: %w", err)
	}
	return f.Close()
}

// fingerprint 由文档类型、源文档内容、评论文本、格式和引擎参数计算
func (s *AnnotationService) fingerprint(kind document.Kind, data []byte, comments, format string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%d\x00", kind, len(data))
	h.Write(data)
	fmt.Fprintf(h, "\x00%s\x00%s\x00%+v", comments, format, s.engine)
	return hex.EncodeToString(h.Sum(nil))
}

// OutputName 输出文档的文件名
func OutputName(fileName string, kind document.Kind) string {
	return annotate.OutputName(fileName, kind)
}

package annotate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fyerfyer/doc-annotator/internal/document"
	"github.com/fyerfyer/doc-annotator/internal/review"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultAuthor 标注作者标识
	DefaultAuthor = "ADA"
	// DefaultMaxBodyChars 标注正文的最大字符数
	DefaultMaxBodyChars = 500
)

// ErrSameFile 源文件与目标文件相同
var ErrSameFile = errors.New("source and destination refer to the same file")

// Skip 一条未能定位的评论
type Skip struct {
	Comment int        `json:"comment"` // 在含行号评论中的序号，从0开始
	Lines   []int      `json:"lines"`
	Reason  SkipReason `json:"reason"`
}

// Result 一次标注的结果
type Result struct {
	Kind       document.Kind `json:"kind"`
	Sections   int           `json:"sections"`   // 识别出的评论段总数
	Considered int           `json:"considered"` // 参与定位的评论段数量
	Comments   int           `json:"comments"`   // 含有行号引用的评论数量
	Placed     int           `json:"placed"`     // 成功放置的评论数量
	Shapes     int           `json:"shapes"`     // 写入的标注数量，PDF跨行时一条评论对应多个
	Skipped    []Skip        `json:"skipped"`
	Output     string        `json:"output"`
}

// Job 一次标注任务的输入
type Job struct {
	Kind        document.Kind
	Source      string
	Comments    string
	Destination string
	// View 评论行号所对应的文本视图，为空时使用文档自身提取的文本
	View []string
}

// Annotator 标注引擎
// 每次调用独立打开、修改、保存并关闭文档，多个调用之间不共享状态
type Annotator struct {
	registry     *Registry
	logger       *logrus.Logger
	author       string
	maxComments  int
	maxBodyChars int
	color        document.Color
	mapping      Mapping
	markdown     bool
	now          func() time.Time
}

// Option 引擎选项
type Option func(*Annotator)

// WithRegistry 使用指定的能力注册表
func WithRegistry(r *Registry) Option {
	return func(a *Annotator) {
		if r != nil {
			a.registry = r
		}
	}
}

// WithLogger 设置日志记录器
func WithLogger(l *logrus.Logger) Option {
	return func(a *Annotator) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithAuthor 设置标注作者
func WithAuthor(author string) Option {
	return func(a *Annotator) {
		if author != "" {
			a.author = author
		}
	}
}

// WithMaxComments 设置参与定位的评论段上限
func WithMaxComments(n int) Option {
	return func(a *Annotator) {
		if n > 0 {
			a.maxComments = n
		}
	}
}

// WithMaxBodyChars 设置标注正文的最大字符数
func WithMaxBodyChars(n int) Option {
	return func(a *Annotator) {
		if n > 0 {
			a.maxBodyChars = n
		}
	}
}

// WithColor 设置PDF高亮颜色
func WithColor(c document.Color) Option {
	return func(a *Annotator) {
		a.color = c
	}
}

// WithMapping 设置DOCX行号到段落的映射方式
func WithMapping(m Mapping) Option {
	return func(a *Annotator) {
		if m != "" {
			a.mapping = m
		}
	}
}

// WithMarkdown 评论文本按Markdown格式处理
func WithMarkdown(enabled bool) Option {
	return func(a *Annotator) {
		a.markdown = enabled
	}
}

// WithClock 设置标注时间来源
func WithClock(now func() time.Time) Option {
	return func(a *Annotator) {
		if now != nil {
			a.now = now
		}
	}
}

// New 创建标注引擎
func New(opts ...Option) *Annotator {
	a := &Annotator{
		registry:     DefaultRegistry(),
		logger:       logrus.StandardLogger(),
		author:       DefaultAuthor,
		maxComments:  review.MaxSections,
		maxBodyChars: DefaultMaxBodyChars,
		color:        document.Yellow,
		mapping:      MappingReconcile,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AnnotatePDF 为PDF添加高亮标注并保存到 dst
func (a *Annotator) AnnotatePDF(src, comments, dst string) (*Result, error) {
	return a.Annotate(document.PDF, src, comments, dst)
}

// AnnotateDOCX 为Word文档添加批注并保存到 dst
func (a *Annotator) AnnotateDOCX(src, comments, dst string) (*Result, error) {
	return a.Annotate(document.DOCX, src, comments, dst)
}

// Annotate 按文档类型添加标注
func (a *Annotator) Annotate(kind document.Kind, src, comments, dst string) (*Result, error) {
	return a.Run(context.Background(), Job{Kind: kind, Source: src, Comments: comments, Destination: dst})
}

// Run 执行一次标注任务
// 无法定位的评论记录在结果中，只有打开、写入和保存失败才返回错误
func (a *Annotator) Run(ctx context.Context, job Job) (*Result, error) {
	capability, err := a.registry.Lookup(job.Kind)
	if err != nil {
		return nil, err
	}
	if err := checkDistinct(job.Source, job.Destination); err != nil {
		return nil, err
	}

	batch := review.Parse(job.Comments,
		review.WithLimit(a.maxComments),
		review.WithMarkdown(a.markdown),
	)

	doc, err := capability.Open(job.Source)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := doc.Close(); cerr != nil {
			a.logger.WithError(cerr).WithField("source", job.Source).Warn("Failed to close document")
		}
	}()

	view := job.View
	if len(view) == 0 {
		view = doc.Lines()
	}

	locator, err := capability.NewLocator(doc, view, LocatorConfig{Mapping: a.mapping, Logger: a.logger})
	if err != nil {
		return nil, err
	}

	result := &Result{
		Kind:       job.Kind,
		Sections:   batch.Total,
		Considered: batch.Considered,
		Comments:   len(batch.Comments),
		Skipped:    []Skip{},
		Output:     job.Destination,
	}

	for i, c := range batch.Comments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		targets, reason := locator.Locate(c)
		if reason != "" {
			result.Skipped = append(result.Skipped, Skip{Comment: i, Lines: c.Lines, Reason: reason})
			a.logger.WithFields(logrus.Fields{
				"comment": i,
				"lines":   c.Lines,
				"reason":  reason,
			}).Debug("Comment skipped")
			continue
		}

		body := Truncate(c.Text, a.maxBodyChars)
		date := a.now()
		for _, target := range targets {
			err := doc.Annotate(document.Annotation{
				Author: a.author,
				Body:   body,
				Target: target,
				Style:  document.Style{Color: a.color},
				Date:   date,
			})
			if err != nil {
				return nil, fmt.Errorf("annotate comment %d: %w", i, err)
			}
			result.Shapes++
		}
		result.Placed++
	}

	if err := doc.Save(job.Destination); err != nil {
		return nil, err
	}

	a.logger.WithFields(logrus.Fields{
		"kind":       job.Kind,
		"source":     job.Source,
		"output":     job.Destination,
		"sections":   result.Sections,
		"considered": result.Considered,
		"placed":     result.Placed,
		"shapes":     result.Shapes,
		"skipped":    len(result.Skipped),
	}).Infof("Added %d annotations to %s document", result.Placed, job.Kind)

	return result, nil
}

// Truncate 截取前 n 个字符，不添加省略号
func Truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// OutputName 标注输出的文件名：原文件名加 _annotated 后缀
func OutputName(fileName string, kind document.Kind) string {
	base := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "document"
	}
	return base + "_annotated" + kind.Ext()
}

// checkDistinct 拒绝覆盖源文件
func checkDistinct(src, dst string) error {
	if dst == "" {
		return fmt.Errorf("%w: empty destination", document.ErrSave)
	}
	absSrc, err1 := filepath.Abs(src)
	absDst, err2 := filepath.Abs(dst)
	if err1 == nil && err2 == nil && absSrc == absDst {
		return ErrSameFile
	}

	srcInfo, err := os.Stat(src)
	if err != nil {
		return nil
	}
	if dstInfo, err := os.Stat(dst); err == nil && os.SameFile(srcInfo, dstInfo) {
		return ErrSameFile
	}
	return nil
}

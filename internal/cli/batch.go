package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fyerfyer/doc-annotator/internal/annotate"
	"github.com/fyerfyer/doc-annotator/internal/document"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// CommentsSuffix 批量模式下评论文件的后缀，report.pdf 对应 report.comments.txt
const CommentsSuffix = ".comments.txt"

// batchItem 批量模式中单个文档的处理结果
type batchItem struct {
	Source   string           `json:"source"`
	Comments string           `json:"comments,omitempty"`
	Result   *annotate.Result `json:"result,omitempty"`
	Note     string           `json:"note,omitempty"`
	Error    string           `json:"error,omitempty"`
}

func (a *app) batchCommand() *cobra.Command {
	var (
		kindName string
		pattern  string
		outDir   string
		jobs     int
	)

	cmd := &cobra.Command{
		Use:   "batch --kind KIND --glob PATTERN --out DIR",
		Short: "Annotate every matching document that has a comments sidecar",
		Long: "Annotates each document matching PATTERN (doublestar syntax, e.g. docs/**/*.pdf) " +
			"using the comments in <name>" + CommentsSuffix + " next to it. " +
			"Documents run concurrently; each one is opened and saved independently.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := document.ParseKind(kindName)
			if err != nil {
				return err
			}
			if pattern == "" {
				return errors.New("--glob is required")
			}
			if outDir == "" {
				return errors.New("--out is required")
			}
			engine, err := a.annotator()
			if err != nil {
				return err
			}

			sources, err := findDocuments(pattern, kind)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return runtimeErr(fmt.Errorf("creating output directory: %w", err))
			}

			base, _ := doublestar.SplitPattern(filepath.ToSlash(pattern))
			items := a.runBatch(cmd.Context(), engine, kind, sources, filepath.FromSlash(base), outDir, jobs)
			if err := a.printBatchReport(items); err != nil {
				return runtimeErr(err)
			}
			for _, it := range items {
				if it.Error != "" {
					return runtimeErr(fmt.Errorf("%d of %d documents failed", countFailed(items), len(items)))
				}
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&kindName, "kind", "", "Document kind (pdf|docx)")
	f.StringVar(&pattern, "glob", "", "Glob pattern selecting source documents")
	f.StringVar(&outDir, "out", "", "Directory for annotated documents")
	f.IntVar(&jobs, "jobs", runtime.NumCPU(), "Number of documents processed concurrently")
	_ = cmd.MarkFlagRequired("kind")
	return cmd
}

// findDocuments 按模式查找指定类型的文档，跳过已标注的输出
func findDocuments(pattern string, kind document.Kind) ([]string, error) {
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid glob %q: %w", pattern, err)
	}

	var sources []string
	for _, m := range matches {
		if !strings.EqualFold(filepath.Ext(m), kind.Ext()) {
			continue
		}
		if strings.HasSuffix(strings.TrimSuffix(filepath.Base(m), filepath.Ext(m)), "_annotated") {
			continue
		}
		if info, err := os.Stat(m); err != nil || info.IsDir() {
			continue
		}
		sources = append(sources, m)
	}
	sort.Strings(sources)
	return sources, nil
}

// sidecarPath 文档对应的评论文件路径
func sidecarPath(source string) string {
	return strings.TrimSuffix(source, filepath.Ext(source)) + CommentsSuffix
}

// outputPath 输出路径保留文档相对于模式根目录的子目录结构
func outputPath(base, src, outDir string, kind document.Kind) string {
	name := annotate.OutputName(src, kind)
	rel, err := filepath.Rel(base, filepath.Dir(src))
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return filepath.Join(outDir, name)
	}
	return filepath.Join(outDir, rel, name)
}

// runBatch 并发处理多个文档，单个文档失败不影响其他文档
// 结果顺序与 sources 一致
func (a *app) runBatch(ctx context.Context, engine *annotate.Annotator, kind document.Kind, sources []string, base, outDir string, jobs int) []batchItem {
	items := make([]batchItem, len(sources))
	if jobs <= 0 {
		jobs = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)

	for i, src := range sources {
		g.Go(func() error {
			items[i] = a.annotateOne(ctx, engine, kind, src, outputPath(base, src, outDir, kind))
			return nil
		})
	}
	_ = g.Wait()
	return items
}

func (a *app) annotateOne(ctx context.Context, engine *annotate.Annotator, kind document.Kind, src, dst string) batchItem {
	item := batchItem{Source: src}
	log := a.logger.WithField("source", src)

	commentsPath := sidecarPath(src)
	data, err := os.ReadFile(commentsPath)
	if errors.Is(err, os.ErrNotExist) {
		item.Note = "no " + filepath.Base(commentsPath)
		log.Debug("No comments sidecar, skipping")
		return item
	}
	if err != nil {
		item.Error = err.Error()
		return item
	}
	item.Comments = commentsPath

	if err := ctx.Err(); err != nil {
		item.Error = err.Error()
		return item
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		item.Error = err.Error()
		return item
	}
	result, err := engine.Run(ctx, annotate.Job{
		Kind:        kind,
		Source:      src,
		Comments:    string(data),
		Destination: dst,
	})
	if err != nil {
		log.WithError(err).Warn("Failed to annotate document")
		item.Error = err.Error()
		return item
	}

	log.WithFields(logrus.Fields{
		"placed":  result.Placed,
		"skipped": len(result.Skipped),
	}).Debug("Document annotated")
	item.Result = result
	return item
}

func countFailed(items []batchItem) int {
	n := 0
	for _, it := range items {
		if it.Error != "" {
			n++
		}
	}
	return n
}

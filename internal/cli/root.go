// Package cli 实现 annotate 命令行工具
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fyerfyer/doc-annotator/internal/annotate"
	"github.com/fyerfyer/doc-annotator/internal/document"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const version = "0.3.0"

// 退出码
const (
	ExitSuccess      = 0
	ExitUsageError   = 2
	ExitRuntimeError = 4
)

// runtimeError 命令执行阶段的错误，区别于参数错误
type runtimeError struct {
	err error
}

func (e *runtimeError) Error() string { return e.err.Error() }
func (e *runtimeError) Unwrap() error { return e.err }

func runtimeErr(err error) error {
	if err == nil {
		return nil
	}
	return &runtimeError{err: err}
}

// engineFlags 各子命令共用的标注引擎参数
type engineFlags struct {
	author       string
	maxComments  int
	maxBodyChars int
	color        string
	mapping      string
	markdown     bool
	verbose      bool
	jsonOutput   bool
}

// app 一次命令行调用的状态
type app struct {
	out    io.Writer
	errOut io.Writer
	flags  engineFlags
	logger *logrus.Logger
}

// Run 执行命令行并返回退出码
func Run() int {
	return run(os.Args[1:], os.Stdout, os.Stderr)
}

func run(args []string, stdout, stderr io.Writer) int {
	a := &app{out: stdout, errOut: stderr}
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	fmt.Fprintln(stderr, errorStyle.Render("Error: "+err.Error()))
	var rerr *runtimeError
	if errors.As(err, &rerr) {
		return ExitRuntimeError
	}
	fmt.Fprintf(stderr, "Run '%s --help' for usage.\n", root.CommandPath())
	return ExitUsageError
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "annotate",
		Short:         "Attach review comments to PDF and Word documents",
		Long:          "annotate places line-referenced review comments into a document as PDF highlights or Word comments.",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.logger = newLogger(a.errOut, a.flags.verbose)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.author, "author", annotate.DefaultAuthor, "Author recorded on each annotation")
	pf.IntVar(&a.flags.maxComments, "max-comments", 50, "Maximum number of comment sections considered")
	pf.IntVar(&a.flags.maxBodyChars, "max-body-chars", annotate.DefaultMaxBodyChars, "Maximum characters of comment text per annotation")
	pf.StringVar(&a.flags.color, "color", "#FFFF00", "PDF highlight color (#RRGGBB)")
	pf.StringVar(&a.flags.mapping, "mapping", string(annotate.MappingReconcile), "DOCX line mapping (reconcile|positional)")
	pf.BoolVar(&a.flags.markdown, "markdown", false, "Normalise Markdown comment text before parsing")
	pf.BoolVarP(&a.flags.verbose, "verbose", "v", false, "Enable debug logging")
	pf.BoolVar(&a.flags.jsonOutput, "json", false, "Print results as JSON")

	root.AddCommand(
		a.kindCommand(document.PDF),
		a.kindCommand(document.DOCX),
		a.parseCommand(),
		a.batchCommand(),
		a.versionCommand(),
	)
	return root
}

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print annotate version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.out, "annotate version %s\n", version)
		},
	}
}

// annotator 按命令行参数创建标注引擎
func (a *app) annotator() (*annotate.Annotator, error) {
	color, err := document.ParseColor(a.flags.color)
	if err != nil {
		return nil, err
	}
	mapping, err := annotate.ParseMapping(a.flags.mapping)
	if err != nil {
		return nil, err
	}
	return annotate.New(
		annotate.WithLogger(a.logger),
		annotate.WithAuthor(a.flags.author),
		annotate.WithMaxComments(a.flags.maxComments),
		annotate.WithMaxBodyChars(a.flags.maxBodyChars),
		annotate.WithColor(color),
		annotate.WithMapping(mapping),
		annotate.WithMarkdown(a.flags.markdown),
	), nil
}

func newLogger(w io.Writer, verbose bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.WarnLevel)
	}
	return logger
}

// readComments 读取评论文件，"-" 表示标准输入
func readComments(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("reading comments from stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading comments: %w", err)
	}
	return string(data), nil
}

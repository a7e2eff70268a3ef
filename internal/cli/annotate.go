package cli

import (
	"fmt"

	"github.com/fyerfyer/doc-annotator/internal/annotate"
	"github.com/fyerfyer/doc-annotator/internal/document"
	"github.com/spf13/cobra"
)

// kindCommand 为一种文档类型创建 "annotate <kind> SRC COMMENTS DST" 子命令
func (a *app) kindCommand(kind document.Kind) *cobra.Command {
	var short string
	switch kind {
	case document.PDF:
		short = "Highlight referenced lines in a PDF"
	default:
		short = "Attach Word comments to referenced paragraphs"
	}

	return &cobra.Command{
		Use:   fmt.Sprintf("%s SRC COMMENTS DST", kind),
		Short: short,
		Long: fmt.Sprintf("Reads review comments from COMMENTS (a file, or - for stdin), "+
			"annotates the %s document SRC and writes the result to DST.", kind),
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, commentsPath, dst := args[0], args[1], args[2]

			comments, err := readComments(cmd, commentsPath)
			if err != nil {
				return runtimeErr(err)
			}
			engine, err := a.annotator()
			if err != nil {
				return err
			}

			result, err := engine.Run(cmd.Context(), annotate.Job{
				Kind:        kind,
				Source:      src,
				Comments:    comments,
				Destination: dst,
			})
			if err != nil {
				return runtimeErr(err)
			}
			return runtimeErr(a.printResult(result))
		},
	}
}

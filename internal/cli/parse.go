package cli

import (
	"github.com/fyerfyer/doc-annotator/internal/review"
	"github.com/spf13/cobra"
)

func (a *app) parseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "parse COMMENTS",
		Short: "Show which comments and line numbers would be placed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			comments, err := readComments(cmd, args[0])
			if err != nil {
				return runtimeErr(err)
			}
			batch := review.Parse(comments,
				review.WithLimit(a.flags.maxComments),
				review.WithMarkdown(a.flags.markdown),
			)
			return runtimeErr(a.printBatch(batch))
		},
	}
}

// Command annotate 在命令行中为PDF和Word文档添加评审标注
package main

import (
	"os"

	"github.com/fyerfyer/doc-annotator/internal/cli"
)

func main() {
	os.Exit(cli.Run())
}

package review

import (
	"fmt"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
)

// NormalizeMarkdown 将Markdown格式的评论转换为纯文本行
// 有序列表项保留编号前缀（"3. "），强调、链接等行内标记只保留文字，
// 这样 "1. **Location:** Lines 4-5" 这类输出也能被正确分段
func NormalizeMarkdown(text string) string {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.OrderedListStart)
	root := markdown.Parse([]byte(text), p)

	var b strings.Builder
	counters := make(map[ast.Node]int)
	itemOpened := false

	newline := func() {
		s := b.String()
		if len(s) > 0 && !strings.HasSuffix(s, "\n") {
			b.WriteByte('\n')
		}
	}

	ast.WalkFunc(root, func(node ast.Node, entering bool) ast.WalkStatus {
		switch n := node.(type) {
		case *ast.ListItem:
			if !entering {
				newline()
				return ast.GoToNext
			}
			newline()
			if n.ListFlags&ast.ListTypeOrdered != 0 {
				list := n.GetParent()
				if _, ok := counters[list]; !ok {
					start := 1
					if l, ok := list.(*ast.List); ok && l.Start > 0 {
						start = l.Start
					}
					counters[list] = start
				}
				fmt.Fprintf(&b, "%d. ", counters[list])
				counters[list]++
			}
			itemOpened = true
		case *ast.Paragraph, *ast.Heading, *ast.BlockQuote:
			if entering {
				if !itemOpened {
					newline()
				}
				itemOpened = false
			} else {
				newline()
			}
		case *ast.CodeBlock:
			if entering {
				newline()
				b.Write(n.Literal)
				newline()
			}
		case *ast.Text:
			if entering {
				b.Write(n.Literal)
				itemOpened = false
			}
		case *ast.Code:
			if entering {
				b.Write(n.Literal)
			}
		case *ast.Softbreak, *ast.Hardbreak:
			if entering {
				b.WriteByte('\n')
			}
		}
		return ast.GoToNext
	})

	return b.String()
}

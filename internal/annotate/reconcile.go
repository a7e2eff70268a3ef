package annotate

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Reconcile 将文本视图的行号映射到段落索引
// 每个非空行匹配第一个尚未使用、规范化后文本相同的段落，每个段落只会被使用一次
func Reconcile(view []string, paragraphs []string) map[int]int {
	queues := make(map[string][]int)
	for i, p := range paragraphs {
		key := normalizeText(p)
		if key == "" {
			continue
		}
		queues[key] = append(queues[key], i)
	}

	mapping := make(map[int]int)
	for i, line := range view {
		key := normalizeText(line)
		if key == "" {
			continue
		}
		q := queues[key]
		if len(q) == 0 {
			continue
		}
		mapping[i+1] = q[0]
		queues[key] = q[1:]
	}
	return mapping
}

// normalizeText 合并空白并做NFC规范化
func normalizeText(s string) string {
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}

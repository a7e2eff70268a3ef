package review

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

const (
	// MaxSections 单次最多参与定位的评论段数量，超出部分直接忽略
	MaxSections = 50

	// MaxRangeSpan 单个行号区间允许展开的最大行数
	MaxRangeSpan = 1000

	// sectionMarker 以该标记开头的行开启新的评论段
	sectionMarker = "Location:"
)

var (
	// 区间引用，例如 "Lines 9-11"
	rangePattern = regexp.MustCompile(`(?i)lines?\s+(\d+)-(\d+)`)
	// 单行引用，例如 "line 53"
	singlePattern = regexp.MustCompile(`(?i)lines?\s+(\d+)`)
)

// Comment 一条解析后的评审评论
type Comment struct {
	Text  string `json:"text"`  // 评论段原文（多行以\n连接）
	Lines []int  `json:"lines"` // 引用的行号，升序且去重
}

// Batch 一次评论文本的解析结果
type Batch struct {
	Total      int       `json:"total"`      // 识别出的评论段总数
	Considered int       `json:"considered"` // 参与定位的评论段数量
	Comments   []Comment `json:"comments"`   // 含有行号引用的评论
}

// Option 解析选项
type Option func(*options)

type options struct {
	limit    int
	markdown bool
}

// WithLimit 设置参与定位的评论段上限
func WithLimit(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.limit = n
		}
	}
}

// WithMarkdown 在分段前先把Markdown格式的评论转换为纯文本行
func WithMarkdown(enabled bool) Option {
	return func(o *options) {
		o.markdown = enabled
	}
}

// Parse 将整块评论文本解析为评论列表
// 只处理前 limit 个评论段，没有行号引用的评论段会被丢弃
func Parse(text string, opts ...Option) Batch {
	o := options{limit: MaxSections}
	for _, opt := range opts {
		opt(&o)
	}

	if o.markdown {
		text = NormalizeMarkdown(text)
	}

	sections := SplitSections(text)
	batch := Batch{
		Total:    len(sections),
		Comments: make([]Comment, 0, len(sections)),
	}

	if len(sections) > o.limit {
		sections = sections[:o.limit]
	}
	batch.Considered = len(sections)

	for _, section := range sections {
		lines := ExtractLineNumbers(section)
		if len(lines) == 0 {
			continue
		}
		batch.Comments = append(batch.Comments, Comment{Text: section, Lines: lines})
	}

	return batch
}

// SplitSections 按行扫描评论文本，切分为独立的评论段
func SplitSections(text string) []string {
	var sections []string
	var current []string

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if startsSection(line) {
			if len(current) > 0 {
				sections = append(sections, strings.Join(current, "\n"))
			}
			current = []string{line}
			continue
		}
		if line != "" && len(current) > 0 {
			current = append(current, line)
		}
	}

	if len(current) > 0 {
		sections = append(sections, strings.Join(current, "\n"))
	}

	return sections
}

// startsSection 判断一行是否开启新的评论段
func startsSection(line string) bool {
	if line == "" {
		return false
	}
	for _, r := range line {
		if unicode.IsDigit(r) {
			return true
		}
		break
	}
	return strings.HasPrefix(line, sectionMarker)
}

// ExtractLineNumbers 提取评论中引用的所有行号
// 区间按闭区间展开，起点大于终点的区间不产生任何行号
func ExtractLineNumbers(text string) []int {
	seen := make(map[int]struct{})

	for _, m := range rangePattern.FindAllStringSubmatch(text, -1) {
		start, err1 := strconv.Atoi(m[1])
		end, err2 := strconv.Atoi(m[2])
		if err1 != nil || err2 != nil {
			continue
		}
		if end-start >= MaxRangeSpan {
			end = start + MaxRangeSpan - 1
		}
		for n := start; n <= end; n++ {
			seen[n] = struct{}{}
		}
	}

	for _, m := range singlePattern.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		seen[n] = struct{}{}
	}

	lines := make([]int, 0, len(seen))
	for n := range seen {
		if n > 0 {
			lines = append(lines, n)
		}
	}
	sort.Ints(lines)
	return lines
}

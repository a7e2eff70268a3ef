package annotate

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/fyerfyer/doc-annotator/internal/document"
	"github.com/fyerfyer/doc-annotator/internal/review"
	"github.com/sirupsen/logrus"
)

// MinSearchChars 搜索文本的最小长度
const MinSearchChars = 3

// SkipReason 评论未能定位的原因
type SkipReason string

const (
	SkipOutOfRange  SkipReason = "out_of_range"
	SkipShortText   SkipReason = "short_text"
	SkipNoMatch     SkipReason = "no_match"
	SkipNoParagraph SkipReason = "no_paragraph"
)

// Mapping 行号到段落的映射方式
type Mapping string

const (
	// MappingReconcile 按文本内容对齐行与段落
	MappingReconcile Mapping = "reconcile"
	// MappingPositional 第N行对应第N个段落
	MappingPositional Mapping = "positional"
)

// ParseMapping 解析映射方式，空字符串返回默认值
func ParseMapping(s string) (Mapping, error) {
	switch Mapping(strings.ToLower(strings.TrimSpace(s))) {
	case "", MappingReconcile:
		return MappingReconcile, nil
	case MappingPositional:
		return MappingPositional, nil
	default:
		return "", fmt.Errorf("unknown paragraph mapping %q", s)
	}
}

// LocatorConfig 定位器配置
type LocatorConfig struct {
	Mapping Mapping
	Logger  *logrus.Logger
}

// Locator 将一条评论解析为文档中的标注目标
// 返回空原因表示定位成功
type Locator interface {
	Locate(c review.Comment) ([]document.Target, SkipReason)
}

// TextLocator 通过全文搜索定位（PDF）
type TextLocator struct {
	searcher document.Searcher
	view     []string
	logger   *logrus.Logger
}

// NewTextLocator 创建文本搜索定位器，文档必须支持搜索
func NewTextLocator(doc document.Document, view []string, cfg LocatorConfig) (Locator, error) {
	s, ok := doc.(document.Searcher)
	if !ok {
		return nil, fmt.Errorf("%s document does not support text search", doc.Kind())
	}
	return &TextLocator{searcher: s, view: view, logger: loggerOr(cfg.Logger)}, nil
}

// Locate 用评论引用的第一行文本在各页中搜索，第一个命中的页上的第一个片段即为目标
// 片段的每个区域生成一个目标
func (l *TextLocator) Locate(c review.Comment) ([]document.Target, SkipReason) {
	var collected []string
	for _, n := range c.Lines {
		if n >= 1 && n <= len(l.view) {
			collected = append(collected, l.view[n-1])
		}
	}
	if len(collected) == 0 {
		return nil, SkipOutOfRange
	}

	query := strings.TrimSpace(collected[0])
	if utf8.RuneCountInString(query) < MinSearchChars {
		return nil, SkipShortText
	}

	for page := 1; page <= l.searcher.PageCount(); page++ {
		frags, err := l.search(page, query)
		if err != nil {
			l.logger.WithFields(logrus.Fields{
				"page":  page,
				"query": query,
				"error": err,
			}).Debug("Search failed, treating page as no match")
			continue
		}
		if len(frags) == 0 {
			continue
		}

		regions := frags[0].Regions
		targets := make([]document.Target, 0, len(regions))
		for _, r := range regions {
			targets = append(targets, document.Target{Page: page, Regions: []document.Rect{r}})
		}
		if len(targets) == 0 {
			continue
		}
		return targets, ""
	}
	return nil, SkipNoMatch
}

// search 搜索单页，搜索过程中的panic按错误处理
func (l *TextLocator) search(page int, query string) (frags []document.Fragment, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("search panicked: %v", r)
		}
	}()
	return l.searcher.Search(page, query)
}

// ParagraphLocator 通过行号到段落的映射定位（DOCX）
type ParagraphLocator struct {
	paragraphs []document.Paragraph
	resolve    func(line int) (int, bool)
}

// NewParagraphLocator 创建段落定位器，文档必须支持段落访问
func NewParagraphLocator(doc document.Document, view []string, cfg LocatorConfig) (Locator, error) {
	p, ok := doc.(document.Paragrapher)
	if !ok {
		return nil, fmt.Errorf("%s document does not expose paragraphs", doc.Kind())
	}
	paragraphs := p.Paragraphs()

	l := &ParagraphLocator{paragraphs: paragraphs}
	switch cfg.Mapping {
	case MappingPositional:
		l.resolve = func(line int) (int, bool) { return line - 1, true }
	case MappingReconcile, "":
		texts := make([]string, len(paragraphs))
		for i, para := range paragraphs {
			texts[i] = para.Text
		}
		m := Reconcile(view, texts)
		l.resolve = func(line int) (int, bool) {
			idx, ok := m[line]
			return idx, ok
		}
	default:
		return nil, fmt.Errorf("unknown paragraph mapping %q", cfg.Mapping)
	}
	return l, nil
}

// Locate 按行号升序取第一个可用的段落，段落必须至少包含一个文本块
func (l *ParagraphLocator) Locate(c review.Comment) ([]document.Target, SkipReason) {
	for _, n := range c.Lines {
		idx, ok := l.resolve(n)
		if !ok || idx < 0 || idx >= len(l.paragraphs) {
			continue
		}
		if l.paragraphs[idx].Runs == 0 {
			continue
		}
		return []document.Target{{Paragraph: idx}}, ""
	}
	return nil, SkipNoParagraph
}

func loggerOr(l *logrus.Logger) *logrus.Logger {
	if l != nil {
		return l
	}
	return logrus.StandardLogger()
}

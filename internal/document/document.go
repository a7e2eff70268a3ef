package document

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind 文档类型
// 调用方必须显式给出类型，不根据扩展名推断
type Kind string

const (
	// PDF 文档类型
	PDF Kind = "pdf"
	// DOCX Word文档类型
	DOCX Kind = "docx"
)

var (
	// ErrOpen 文档无法打开或解析
	ErrOpen = errors.New("failed to open document")
	// ErrSave 文档无法保存
	ErrSave = errors.New("failed to save document")
	// ErrUnsupportedKind 不支持的文档类型
	ErrUnsupportedKind = errors.New("unsupported document kind")
	// ErrInvalidTarget 标注目标不存在或不可用
	ErrInvalidTarget = errors.New("invalid annotation target")
	// ErrClosed 文档已关闭
	ErrClosed = errors.New("document is closed")
)

// ParseKind 解析文档类型字符串
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case PDF:
		return PDF, nil
	case DOCX:
		return DOCX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedKind, s)
	}
}

// String 实现Stringer接口
func (k Kind) String() string {
	return string(k)
}

// Ext 返回该类型对应的文件扩展名
func (k Kind) Ext() string {
	return "." + string(k)
}

// Rect 页面上的矩形区域，使用PDF用户空间坐标（左下角为原点）
type Rect struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// Union 返回同时包含两个矩形的最小矩形
func (r Rect) Union(o Rect) Rect {
	return Rect{
		X0: min(r.X0, o.X0),
		Y0: min(r.Y0, o.Y0),
		X1: max(r.X1, o.X1),
		Y1: max(r.Y1, o.Y1),
	}
}

// Empty 判断矩形是否为空
func (r Rect) Empty() bool {
	return r.X1 <= r.X0 || r.Y1 <= r.Y0
}

// Fragment 一次搜索命中的文本片段
// 跨行命中时包含多个区域，每行一个
type Fragment struct {
	Text    string `json:"text"`
	Regions []Rect `json:"regions"`
}

// Target 标注的定位目标
// PDF使用 Page + Regions，DOCX使用 Paragraph
type Target struct {
	Page      int    // PDF页码，从1开始
	Regions   []Rect // PDF高亮区域
	Paragraph int    // DOCX段落索引，从0开始
}

// Color RGB颜色，分量取值 0~1
type Color struct {
	R, G, B float64
}

// Yellow 默认高亮颜色
var Yellow = Color{R: 1, G: 1, B: 0}

// ParseColor 解析 "#RRGGBB" 格式的颜色
func ParseColor(s string) (Color, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return Color{}, fmt.Errorf("invalid color %q", s)
	}
	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &r, &g, &b); err != nil {
		return Color{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}, nil
}

// Style 标注的呈现方式
type Style struct {
	Color Color // PDF高亮颜色，DOCX批注忽略该字段
}

// Annotation 要写入文档的一条标注
type Annotation struct {
	Author string
	Body   string
	Target Target
	Style  Style
	Date   time.Time
}

// Paragraph DOCX段落信息
type Paragraph struct {
	Index int
	Text  string
	Runs  int // 段落直接包含的文本块(run)数量
}

// Document 可提取文本、可写入标注的结构化文档
// 同一个Document只允许单线程使用
type Document interface {
	// Kind 文档类型
	Kind() Kind
	// Lines 提取的文本视图，按行切分，行号从1开始对应下标0
	Lines() []string
	// Annotate 在内存中写入一条标注
	Annotate(a Annotation) error
	// Save 将修改后的文档保存到新路径
	Save(path string) error
	// Close 释放文档句柄
	Close() error
}

// Searcher PDF文本搜索能力
type Searcher interface {
	// PageCount 页数
	PageCount() int
	// Search 在指定页(从1开始)做大小写不敏感的搜索，按出现顺序返回命中片段
	Search(page int, query string) ([]Fragment, error)
}

// Paragrapher DOCX段落访问能力
type Paragrapher interface {
	// Paragraphs 文档主体中的所有段落
	Paragraphs() []Paragraph
}

// Opener 打开指定路径的文档
type Opener func(path string) (Document, error)

// Open 按类型打开文档
func Open(kind Kind, path string) (Document, error) {
	switch kind {
	case PDF:
		return OpenPDF(path)
	case DOCX:
		return OpenDOCX(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, kind)
	}
}

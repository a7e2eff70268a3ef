package annotate

import (
	"fmt"
	"sort"

	"github.com/fyerfyer/doc-annotator/internal/document"
)

// LocatorFactory 为已打开的文档创建定位器
// view 为评论行号所对应的文本视图
type LocatorFactory func(doc document.Document, view []string, cfg LocatorConfig) (Locator, error)

// Capability 一种文档类型具备的能力：打开（含提取、写入、保存）与定位
type Capability struct {
	Open       document.Opener
	NewLocator LocatorFactory
}

// Registry 文档类型到能力集合的映射
// 注册表是普通的值，由调用方创建并传入，不存在全局状态
type Registry struct {
	caps map[document.Kind]Capability
}

// NewRegistry 创建空的注册表
func NewRegistry() *Registry {
	return &Registry{caps: make(map[document.Kind]Capability)}
}

// DefaultRegistry 创建包含PDF与DOCX能力的注册表
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(document.PDF, Capability{Open: document.OpenPDF, NewLocator: NewTextLocator})
	r.Register(document.DOCX, Capability{Open: document.OpenDOCX, NewLocator: NewParagraphLocator})
	return r
}

// Register 注册或覆盖一种文档类型的能力
func (r *Registry) Register(kind document.Kind, c Capability) {
	r.caps[kind] = c
}

// Lookup 查找文档类型的能力
func (r *Registry) Lookup(kind document.Kind) (Capability, error) {
	c, ok := r.caps[kind]
	if !ok || c.Open == nil || c.NewLocator == nil {
		return Capability{}, fmt.Errorf("%w: %q", document.ErrUnsupportedKind, kind)
	}
	return c, nil
}

// Kinds 已注册的文档类型，按名称排序
func (r *Registry) Kinds() []document.Kind {
	kinds := make([]document.Kind, 0, len(r.caps))
	for k := range r.caps {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

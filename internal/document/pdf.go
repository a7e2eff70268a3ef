package document

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/text/encoding/unicode"
)

// annotPrint 注释标志位：打印
const annotPrint = 4

// PDFDocument PDF文档
// 文本提取与搜索使用 ledongthuc/pdf，标注写入与保存使用 pdfcpu
type PDFDocument struct {
	path   string
	ctx    *model.Context
	text   *textLayer
	lines  []string
	closed bool
}

// OpenPDF 打开PDF文档
func OpenPDF(path string) (Document, error) {
	return openPDF(path)
}

func openPDF(path string) (*PDFDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpen, err)
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("%w: read pdf: %v", ErrOpen, err)
	}
	if err := api.ValidateContext(ctx); err != nil {
		return nil, fmt.Errorf("%w: validate pdf: %v", ErrOpen, err)
	}

	layer, err := loadTextLayer(data)
	if err != nil {
		return nil, fmt.Errorf("%w: extract text: %v", ErrOpen, err)
	}

	return &PDFDocument{
		path:  path,
		ctx:   ctx,
		text:  layer,
		lines: layer.Lines(),
	}, nil
}

// Kind 文档类型
func (d *PDFDocument) Kind() Kind { return PDF }

// Lines 提取的文本视图
func (d *PDFDocument) Lines() []string { return d.lines }

// PageCount 页数
func (d *PDFDocument) PageCount() int { return d.text.PageCount() }

// Search 在指定页搜索文本
func (d *PDFDocument) Search(page int, query string) ([]Fragment, error) {
	return d.text.Search(page, query)
}

// Annotate 为目标区域添加一个高亮注释
// 多个区域合并为一个注释，每个区域对应一组QuadPoints
func (d *PDFDocument) Annotate(a Annotation) error {
	if d.closed {
		return ErrClosed
	}
	if a.Target.Page < 1 || len(a.Target.Regions) == 0 {
		return fmt.Errorf("%w: page %d with %d regions", ErrInvalidTarget, a.Target.Page, len(a.Target.Regions))
	}

	pageDict, pageRef, _, err := d.ctx.PageDict(a.Target.Page, false)
	if err != nil {
		return fmt.Errorf("%w: page %d: %v", ErrInvalidTarget, a.Target.Page, err)
	}
	if pageDict == nil || pageRef == nil {
		return fmt.Errorf("%w: page %d not found", ErrInvalidTarget, a.Target.Page)
	}

	annot, err := highlightDict(a, *pageRef)
	if err != nil {
		return err
	}
	annotRef, err := d.ctx.IndRefForNewObject(annot)
	if err != nil {
		return fmt.Errorf("register annotation: %w", err)
	}

	var annots types.Array
	if obj, found := pageDict.Find("Annots"); found && obj != nil {
		annots, err = d.ctx.DereferenceArray(obj)
		if err != nil {
			return fmt.Errorf("read page annotations: %w", err)
		}
	}
	annots = append(annots, *annotRef)
	pageDict["Annots"] = annots

	return nil
}

// Save 保存到新路径
func (d *PDFDocument) Save(path string) error {
	if d.closed {
		return ErrClosed
	}
	return writeAtomic(path, func(w io.Writer) error {
		return api.WriteContext(d.ctx, w)
	})
}

// Close 释放文档
func (d *PDFDocument) Close() error {
	d.closed = true
	d.ctx = nil
	d.text = nil
	return nil
}

// highlightDict 构造 /Highlight 注释字典
func highlightDict(a Annotation, pageRef types.IndirectRef) (types.Dict, error) {
	bounds := a.Target.Regions[0]
	quads := make([]float64, 0, 8*len(a.Target.Regions))
	for _, r := range a.Target.Regions {
		bounds = bounds.Union(r)
		// 左上 右上 左下 右下
		quads = append(quads, r.X0, r.Y1, r.X1, r.Y1, r.X0, r.Y0, r.X1, r.Y0)
	}

	title, err := textString(a.Author)
	if err != nil {
		return nil, err
	}
	contents, err := textString(a.Body)
	if err != nil {
		return nil, err
	}

	date := a.Date
	if date.IsZero() {
		date = time.Now()
	}

	return types.Dict{
		"Type":       types.Name("Annot"),
		"Subtype":    types.Name("Highlight"),
		"Rect":       numbers(bounds.X0, bounds.Y0, bounds.X1, bounds.Y1),
		"QuadPoints": numbers(quads...),
		"C":          numbers(a.Style.Color.R, a.Style.Color.G, a.Style.Color.B),
		"CA":         types.Float(1),
		"F":          types.Integer(annotPrint),
		"P":          pageRef,
		"T":          title,
		"Contents":   contents,
		"NM":         types.StringLiteral(uuid.NewString()),
		"M":          types.StringLiteral(pdfDate(date)),
	}, nil
}

func numbers(vals ...float64) types.Array {
	arr := make(types.Array, len(vals))
	for i, v := range vals {
		arr[i] = types.Float(v)
	}
	return arr
}

// textString 将文本编码为带BOM的UTF-16BE十六进制字符串
func textString(s string) (types.HexLiteral, error) {
	enc := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder()
	b, err := enc.Bytes([]byte(s))
	if err != nil {
		return "", fmt.Errorf("encode text string: %w", err)
	}
	return types.HexLiteral(hex.EncodeToString(b)), nil
}

// pdfDate 格式化为 D:YYYYMMDDHHmmSS+HH'mm' 形式
func pdfDate(t time.Time) string {
	_, offset := t.Zone()
	sign := byte('+')
	if offset < 0 {
		sign = '-'
		offset = -offset
	}
	return fmt.Sprintf("D:%s%c%02d'%02d'", t.Format("20060102150405"), sign, offset/3600, (offset%3600)/60)
}

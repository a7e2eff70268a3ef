// Package testutil 测试用的文档夹具与检查工具
package testutil

import (
	"archive/zip"
	"bytes"
	"encoding/hex"
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/beevik/etree"
	"github.com/jung-kurt/gofpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/unicode"
)

// WritePDF 生成PDF夹具，每个元素为一页，每页若干行文本
func WritePDF(t *testing.T, path string, pages [][]string) string {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	for _, lines := range pages {
		pdf.AddPage()
		for _, line := range lines {
			pdf.Cell(0, 10, line)
			pdf.Ln(10)
		}
	}
	require.NoError(t, pdf.OutputFileAndClose(path))
	return path
}

// WriteDOCX 生成最小的Word文档夹具，每个元素为一个段落
// 空字符串生成不含文本块的空段落
func WriteDOCX(t *testing.T, path string, paragraphs []string) string {
	t.Helper()

	var body strings.Builder
	for _, p := range paragraphs {
		if p == "" {
			body.WriteString("<w:p/>")
			continue
		}
		body.WriteString(`<w:p><w:r><w:t xml:space="preserve">`)
		require.NoError(t, xml.EscapeText(&body, []byte(p)))
		body.WriteString("</w:t></w:r></w:p>")
	}

	parts := []struct{ name, content string }{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", rootRelsXML},
		{"word/document.xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
			body.String() + `<w:sectPr/></w:body></w:document>`},
		{"word/_rels/document.xml.rels", documentRelsXML},
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, part := range parts {
		w, err := zw.Create(part.name)
		require.NoError(t, err)
		_, err = w.Write([]byte(part.content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`

const rootRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

const documentRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
</Relationships>`

// Highlight 从PDF中读出的高亮注释
type Highlight struct {
	Page     int
	Author   string
	Contents string
	Quads    int
}

// ReadHighlights 读取PDF中所有 /Highlight 注释
func ReadHighlights(t *testing.T, path string) []Highlight {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	require.NoError(t, err)
	require.NoError(t, api.ValidateContext(ctx))
	require.NoError(t, ctx.EnsurePageCount())

	var out []Highlight
	for page := 1; page <= ctx.PageCount; page++ {
		pageDict, _, _, err := ctx.PageDict(page, false)
		require.NoError(t, err)

		obj, found := pageDict.Find("Annots")
		if !found {
			continue
		}
		annots, err := ctx.DereferenceArray(obj)
		require.NoError(t, err)

		for _, a := range annots {
			d, err := ctx.DereferenceDict(a)
			require.NoError(t, err)
			if st := d.NameEntry("Subtype"); st == nil || *st != "Highlight" {
				continue
			}
			quads := 0
			if arr, ok := d["QuadPoints"].(types.Array); ok {
				quads = len(arr) / 8
			}
			out = append(out, Highlight{
				Page:     page,
				Author:   decodeText(t, d["T"]),
				Contents: decodeText(t, d["Contents"]),
				Quads:    quads,
			})
		}
	}
	return out
}

func decodeText(t *testing.T, obj types.Object) string {
	t.Helper()

	switch v := obj.(type) {
	case types.HexLiteral:
		raw, err := hex.DecodeString(string(v))
		require.NoError(t, err)
		dec := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder()
		s, err := dec.Bytes(raw)
		require.NoError(t, err)
		return string(s)
	case types.StringLiteral:
		return string(v)
	default:
		return ""
	}
}

// DOCXComment 从Word文档中读出的批注
type DOCXComment struct {
	ID        string
	Author    string
	Text      string
	Paragraph int // 批注锚定的段落索引，未找到时为-1
}

// ReadDOCXComments 读取Word文档中的批注及其锚定段落
func ReadDOCXComments(t *testing.T, path string) []DOCXComment {
	t.Helper()

	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	parts := map[string]*etree.Document{}
	for _, f := range zr.File {
		if f.Name != "word/document.xml" && f.Name != "word/comments.xml" {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		doc := etree.NewDocument()
		_, err = doc.ReadFrom(rc)
		rc.Close()
		require.NoError(t, err)
		parts[f.Name] = doc
	}

	comments, ok := parts["word/comments.xml"]
	if !ok {
		return nil
	}

	anchors := map[string]int{}
	body := parts["word/document.xml"].Root().SelectElement("w:body")
	for i, p := range body.SelectElements("w:p") {
		for _, s := range p.SelectElements("w:commentRangeStart") {
			anchors[s.SelectAttrValue("w:id", "")] = i
		}
	}

	var out []DOCXComment
	for _, c := range comments.Root().SelectElements("w:comment") {
		id := c.SelectAttrValue("w:id", "")
		var lines []string
		for _, p := range c.SelectElements("w:p") {
			var b strings.Builder
			for _, tEl := range p.FindElements(".//w:t") {
				b.WriteString(tEl.Text())
			}
			lines = append(lines, b.String())
		}
		para, found := anchors[id]
		if !found {
			para = -1
		}
		out = append(out, DOCXComment{
			ID:        id,
			Author:    c.SelectAttrValue("w:author", ""),
			Text:      strings.Join(lines, "\n"),
			Paragraph: para,
		})
	}
	return out
}

// TempPath 返回测试临时目录下的文件路径
func TempPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), name)
}

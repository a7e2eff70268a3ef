package document

import (
	"archive/zip"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
)

const (
	docxDocumentPart = "word/document.xml"
	docxCommentsPart = "word/comments.xml"
	docxRelsPart     = "word/_rels/document.xml.rels"
	docxTypesPart    = "[Content_Types].xml"

	nsMain          = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	nsPackageRels   = "http://schemas.openxmlformats.org/package/2006/relationships"
	relTypeComments = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/comments"
	ctComments      = "application/vnd.openxmlformats-officedocument.wordprocessingml.comments+xml"

	xmlHeader = `version="1.0" encoding="UTF-8" standalone="yes"`
)

// DOCXDocument Word文档
// 段落为 w:body 下直接包含的 w:p，批注写入 word/comments.xml
type DOCXDocument struct {
	path   string
	zr     *zip.ReadCloser
	parts  map[string]*zip.File
	doc    *etree.Document
	paras  []*etree.Element
	lines  []string
	closed bool

	// 以下部件在第一次写入批注时加载
	comments *etree.Document
	rels     *etree.Document
	types    *etree.Document
	created  map[string]bool
	nextID   int
	touched  bool
}

// OpenDOCX 打开Word文档
func OpenDOCX(path string) (Document, error) {
	return openDOCX(path)
}

func openDOCX(path string) (*DOCXDocument, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpen, err)
	}

	d := &DOCXDocument{
		path:    path,
		zr:      zr,
		parts:   make(map[string]*zip.File, len(zr.File)),
		created: make(map[string]bool),
	}
	for _, f := range zr.File {
		d.parts[f.Name] = f
	}

	d.doc, err = d.readPart(docxDocumentPart)
	if err != nil {
		zr.Close()
		return nil, fmt.Errorf("%w: %v", ErrOpen, err)
	}
	var body *etree.Element
	if root := d.doc.Root(); root != nil {
		body = root.SelectElement("w:body")
	}
	if body == nil {
		zr.Close()
		return nil, fmt.Errorf("%w: document body not found", ErrOpen)
	}
	d.paras = body.SelectElements("w:p")

	d.lines = make([]string, len(d.paras))
	for i, p := range d.paras {
		d.lines[i] = paragraphText(p)
	}
	return d, nil
}

// readPart 读取并解析一个XML部件
func (d *DOCXDocument) readPart(name string) (*etree.Document, error) {
	f, ok := d.parts[name]
	if !ok {
		return nil, fmt.Errorf("part %s not found", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open part %s: %w", name, err)
	}
	defer rc.Close()

	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(rc); err != nil {
		return nil, fmt.Errorf("parse part %s: %w", name, err)
	}
	return doc, nil
}

// Kind 文档类型
func (d *DOCXDocument) Kind() Kind { return DOCX }

// Lines 每个段落一行
func (d *DOCXDocument) Lines() []string { return d.lines }

// Paragraphs 文档主体段落
func (d *DOCXDocument) Paragraphs() []Paragraph {
	out := make([]Paragraph, len(d.paras))
	for i, p := range d.paras {
		out[i] = Paragraph{Index: i, Text: d.lines[i], Runs: len(contentRuns(p))}
	}
	return out
}

// Annotate 为目标段落的全部文本块添加一条批注
func (d *DOCXDocument) Annotate(a Annotation) error {
	if d.closed {
		return ErrClosed
	}
	idx := a.Target.Paragraph
	if idx < 0 || idx >= len(d.paras) {
		return fmt.Errorf("%w: paragraph %d of %d", ErrInvalidTarget, idx, len(d.paras))
	}
	p := d.paras[idx]
	runs := contentRuns(p)
	if len(runs) == 0 {
		return fmt.Errorf("%w: paragraph %d has no runs", ErrInvalidTarget, idx)
	}

	if err := d.prepareComments(); err != nil {
		return err
	}

	id := strconv.Itoa(d.nextID)
	d.nextID++

	start := etree.NewElement("w:commentRangeStart")
	start.CreateAttr("w:id", id)
	p.InsertChildAt(runs[0].Index(), start)

	last := runs[len(runs)-1]
	end := etree.NewElement("w:commentRangeEnd")
	end.CreateAttr("w:id", id)
	p.InsertChildAt(last.Index()+1, end)

	ref := etree.NewElement("w:r")
	ref.CreateElement("w:commentReference").CreateAttr("w:id", id)
	p.InsertChildAt(end.Index()+1, ref)

	date := a.Date
	if date.IsZero() {
		date = time.Now()
	}
	c := d.comments.Root().CreateElement("w:comment")
	c.CreateAttr("w:id", id)
	c.CreateAttr("w:author", a.Author)
	c.CreateAttr("w:initials", initials(a.Author))
	c.CreateAttr("w:date", date.UTC().Format(time.RFC3339))
	for _, line := range strings.Split(a.Body, "\n") {
		t := c.CreateElement("w:p").CreateElement("w:r").CreateElement("w:t")
		t.CreateAttr("xml:space", "preserve")
		t.SetText(line)
	}

	d.touched = true
	return nil
}

// contentRuns 段落中的文本块，不含批注引用块
func contentRuns(p *etree.Element) []*etree.Element {
	var runs []*etree.Element
	for _, r := range p.SelectElements("w:r") {
		children := r.ChildElements()
		if len(children) == 1 && children[0].FullTag() == "w:commentReference" {
			continue
		}
		runs = append(runs, r)
	}
	return runs
}

// prepareComments 加载或创建批注部件，并登记关系与内容类型
func (d *DOCXDocument) prepareComments() error {
	if d.comments != nil {
		return nil
	}

	var err error
	if _, ok := d.parts[docxCommentsPart]; ok {
		if d.comments, err = d.readPart(docxCommentsPart); err != nil {
			return err
		}
		for _, c := range d.comments.Root().SelectElements("w:comment") {
			if n, err := strconv.Atoi(c.SelectAttrValue("w:id", "")); err == nil && n >= d.nextID {
				d.nextID = n + 1
			}
		}
	} else {
		d.comments = etree.NewDocument()
		d.comments.CreateProcInst("xml", xmlHeader)
		d.comments.CreateElement("w:comments").CreateAttr("xmlns:w", nsMain)
		d.created[docxCommentsPart] = true
	}

	if err := d.ensureRelationship(); err != nil {
		return err
	}
	return d.ensureContentType()
}

func (d *DOCXDocument) ensureRelationship() error {
	var err error
	if _, ok := d.parts[docxRelsPart]; ok {
		if d.rels, err = d.readPart(docxRelsPart); err != nil {
			return err
		}
	} else {
		d.rels = etree.NewDocument()
		d.rels.CreateProcInst("xml", xmlHeader)
		d.rels.CreateElement("Relationships").CreateAttr("xmlns", nsPackageRels)
		d.created[docxRelsPart] = true
	}

	root := d.rels.Root()
	ids := make(map[string]bool)
	for _, rel := range root.SelectElements("Relationship") {
		if rel.SelectAttrValue("Type", "") == relTypeComments {
			return nil
		}
		ids[rel.SelectAttrValue("Id", "")] = true
	}

	n := len(ids) + 1
	for ids["rId"+strconv.Itoa(n)] {
		n++
	}
	rel := root.CreateElement("Relationship")
	rel.CreateAttr("Id", "rId"+strconv.Itoa(n))
	rel.CreateAttr("Type", relTypeComments)
	rel.CreateAttr("Target", "comments.xml")
	return nil
}

func (d *DOCXDocument) ensureContentType() error {
	var err error
	if d.types, err = d.readPart(docxTypesPart); err != nil {
		return err
	}
	root := d.types.Root()
	if root == nil {
		return fmt.Errorf("part %s is empty", docxTypesPart)
	}
	for _, o := range root.SelectElements("Override") {
		if o.SelectAttrValue("PartName", "") == "/"+docxCommentsPart {
			return nil
		}
	}
	o := root.CreateElement("Override")
	o.CreateAttr("PartName", "/"+docxCommentsPart)
	o.CreateAttr("ContentType", ctComments)
	return nil
}

// Save 保存到新路径，未修改的部件原样复制
func (d *DOCXDocument) Save(path string) error {
	if d.closed {
		return ErrClosed
	}

	modified := map[string]*etree.Document{}
	if d.touched {
		modified[docxDocumentPart] = d.doc
		modified[docxCommentsPart] = d.comments
		modified[docxRelsPart] = d.rels
		modified[docxTypesPart] = d.types
	}

	return writeAtomic(path, func(w io.Writer) error {
		zw := zip.NewWriter(w)
		for _, f := range d.zr.File {
			doc, ok := modified[f.Name]
			if !ok {
				if err := zw.Copy(f); err != nil {
					return fmt.Errorf("copy part %s: %w", f.Name, err)
				}
				continue
			}
			if err := writePart(zw, f.Name, doc); err != nil {
				return err
			}
		}
		for name := range d.created {
			if err := writePart(zw, name, modified[name]); err != nil {
				return err
			}
		}
		return zw.Close()
	})
}

func writePart(zw *zip.Writer, name string, doc *etree.Document) error {
	fw, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("create part %s: %w", name, err)
	}
	if _, err := doc.WriteTo(fw); err != nil {
		return fmt.Errorf("write part %s: %w", name, err)
	}
	return nil
}

// Close 关闭底层压缩包
func (d *DOCXDocument) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	return d.zr.Close()
}

// paragraphText 段落的纯文本，制表符保留，换行替换为空格
func paragraphText(p *etree.Element) string {
	var b strings.Builder
	var walk func(e *etree.Element)
	walk = func(e *etree.Element) {
		for _, c := range e.ChildElements() {
			switch c.Tag {
			case "t":
				b.WriteString(c.Text())
			case "tab":
				b.WriteString("\t")
			case "br", "cr":
				b.WriteString(" ")
			case "pPr", "rPr", "del", "instrText":
			default:
				walk(c)
			}
		}
	}
	walk(p)
	return b.String()
}

// initials 取作者名中每个单词的首字母，单个单词时原样返回
func initials(author string) string {
	words := strings.Fields(author)
	if len(words) <= 1 {
		return author
	}
	var b strings.Builder
	for _, w := range words {
		for _, r := range w {
			b.WriteRune(r)
			break
		}
	}
	return strings.ToUpper(b.String())
}

package annotate

import (
	"errors"
	"strings"

	"github.com/fyerfyer/doc-annotator/internal/document"
)

// fakeDoc 内存中的文档，记录写入的标注
type fakeDoc struct {
	kind        document.Kind
	lines       []string
	pages       []string
	paragraphs  []document.Paragraph
	annotations []document.Annotation
	searchErr   map[int]error
	annotateErr error
	saveErr     error
	saved       []string
	closed      bool
}

func (d *fakeDoc) Kind() document.Kind { return d.kind }
func (d *fakeDoc) Lines() []string     { return d.lines }

func (d *fakeDoc) Annotate(a document.Annotation) error {
	if d.annotateErr != nil {
		return d.annotateErr
	}
	d.annotations = append(d.annotations, a)
	return nil
}

func (d *fakeDoc) Save(path string) error {
	if d.saveErr != nil {
		return d.saveErr
	}
	d.saved = append(d.saved, path)
	return nil
}

func (d *fakeDoc) Close() error {
	d.closed = true
	return nil
}

func (d *fakeDoc) PageCount() int { return len(d.pages) }

// Search 每个命中返回一个区域，文本中的 "|" 表示换行，命中跨越时返回两个区域
func (d *fakeDoc) Search(page int, query string) ([]document.Fragment, error) {
	if err := d.searchErr[page]; err != nil {
		return nil, err
	}
	text := strings.ToLower(d.pages[page-1])
	q := strings.ToLower(query)
	var frags []document.Fragment
	for offset := 0; ; {
		i := strings.Index(text[offset:], q)
		if i < 0 {
			break
		}
		start := offset + i
		regions := []document.Rect{{X0: float64(start), Y0: 0, X1: float64(start + len(q)), Y1: 10}}
		if strings.Contains(q, " ") && strings.HasPrefix(q, "span") {
			regions = append(regions, document.Rect{X0: 0, Y0: 20, X1: 5, Y1: 30})
		}
		frags = append(frags, document.Fragment{Text: query, Regions: regions})
		offset = start + len(q)
	}
	return frags, nil
}

func (d *fakeDoc) Paragraphs() []document.Paragraph { return d.paragraphs }

// fakeRegistry 将所有类型的打开操作指向同一个fakeDoc
func fakeRegistry(doc *fakeDoc, openErr error) *Registry {
	open := func(string) (document.Document, error) {
		if openErr != nil {
			return nil, openErr
		}
		return doc, nil
	}
	r := NewRegistry()
	r.Register(document.PDF, Capability{Open: open, NewLocator: NewTextLocator})
	r.Register(document.DOCX, Capability{Open: open, NewLocator: NewParagraphLocator})
	return r
}

var errBoom = errors.New("boom")

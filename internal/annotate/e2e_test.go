package annotate

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/fyerfyer/doc-annotator/internal/document"
	"github.com/fyerfyer/doc-annotator/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAnnotatePDFEndToEnd 生成真实PDF，标注后重新读取检查高亮
func TestAnnotatePDFEndToEnd(t *testing.T) {
	dir := t.TempDir()
	src := testutil.WritePDF(t, filepath.Join(dir, "report.pdf"), [][]string{
		{"Accessibility review", "Entrance"},
		{"Parking", "The access ramp gradient exceeds 1:12."},
	})
	dst := filepath.Join(dir, "report.annotated.pdf")

	a := New()
	lines, err := openLines(src)
	require.NoError(t, err)
	lineNo := indexOf(lines, "The access ramp gradient exceeds 1:12.") + 1
	require.Positive(t, lineNo)

	comment := fmt.Sprintf("1. Location: Line %d\nIssue: the ramp is too steep for wheelchair users.", lineNo)
	res, err := a.AnnotatePDF(src, comment, dst)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Placed)
	assert.Equal(t, 1, res.Shapes)

	highlights := testutil.ReadHighlights(t, dst)
	require.Len(t, highlights, 1)
	assert.Equal(t, 2, highlights[0].Page)
	assert.Equal(t, "ADA", highlights[0].Author)
	assert.Equal(t, comment, highlights[0].Contents)

	// 源文件不变，重复执行得到相同计数
	assert.Empty(t, testutil.ReadHighlights(t, src))
	res2, err := a.AnnotatePDF(src, comment, filepath.Join(dir, "again.pdf"))
	require.NoError(t, err)
	assert.Equal(t, res.Placed, res2.Placed)

	_, err = a.AnnotatePDF(src, comment, src)
	assert.ErrorIs(t, err, ErrSameFile)
}

// TestAnnotateDOCXEndToEnd 生成真实Word文档，标注后检查批注锚定的段落
func TestAnnotateDOCXEndToEnd(t *testing.T) {
	paragraphs := make([]string, 10)
	for i := range paragraphs {
		paragraphs[i] = fmt.Sprintf("Paragraph %d of the report.", i+1)
	}
	dir := t.TempDir()
	src := testutil.WriteDOCX(t, filepath.Join(dir, "report.docx"), paragraphs)
	dst := filepath.Join(dir, "report.annotated.docx")

	for _, mapping := range []Mapping{MappingReconcile, MappingPositional} {
		a := New(WithMapping(mapping))
		res, err := a.AnnotateDOCX(src, "1. Location: Line 5\nSentence too long.", dst)
		require.NoError(t, err, mapping)
		assert.Equal(t, 1, res.Placed, mapping)

		comments := testutil.ReadDOCXComments(t, dst)
		require.Len(t, comments, 1, mapping)
		assert.Equal(t, 4, comments[0].Paragraph, mapping)
		assert.Equal(t, "ADA", comments[0].Author)
		assert.Equal(t, "1. Location: Line 5\nSentence too long.", comments[0].Text)
	}
}

func openLines(path string) ([]string, error) {
	a := New()
	c, err := a.registry.Lookup("pdf")
	if err != nil {
		return nil, err
	}
	doc, err := c.Open(path)
	if err != nil {
		return nil, err
	}
	defer doc.Close()
	return doc.Lines(), nil
}

func indexOf(lines []string, s string) int {
	for i, l := range lines {
		if l == s {
			return i
		}
	}
	return -1
}

// writePDFWithLineAt 生成目标文本恰好位于提取文本第 want 行的PDF
func writePDFWithLineAt(t *testing.T, path, target string, want int) {
	t.Helper()
	fillers := want - 1
	for attempt := 0; attempt < 4; attempt++ {
		lines := make([]string, 0, fillers+1)
		for i := 0; i < fillers; i++ {
			lines = append(lines, fmt.Sprintf("Filler text row %d", i+1))
		}
		lines = append(lines, target)
		testutil.WritePDF(t, path, [][]string{lines})

		got, err := openLines(path)
		require.NoError(t, err)
		at := indexOf(got, target) + 1
		require.Positive(t, at)
		if at == want {
			return
		}
		fillers += want - at
		require.GreaterOrEqual(t, fillers, 0)
	}
	t.Fatalf("could not place %q at line %d", target, want)
}

// TestAnnotatePDFRampScenario 目标文本位于第42行，评论原文作为高亮内容
func TestAnnotatePDFRampScenario(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "ramp.pdf")
	writePDFWithLineAt(t, src, "The access ramp gradient exceeds 1:12.", 42)

	page := firstPageWith(t, src, "The access ramp gradient exceeds 1:12.")

	comment := "Location: Lines 42. The gradient is non-compliant."
	dst := filepath.Join(dir, "ramp.annotated.pdf")
	res, err := New().AnnotatePDF(src, comment, dst)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Placed)

	highlights := testutil.ReadHighlights(t, dst)
	require.Len(t, highlights, 1)
	assert.Equal(t, comment, highlights[0].Contents)
	assert.Equal(t, "ADA", highlights[0].Author)
	assert.Equal(t, page, highlights[0].Page)
}

// TestAnnotateDOCXNumberOnlyComment "5. ..." 只有编号没有 "line" 引用，不产生行号，评论被丢弃
func TestAnnotateDOCXNumberOnlyComment(t *testing.T) {
	paragraphs := make([]string, 10)
	for i := range paragraphs {
		paragraphs[i] = fmt.Sprintf("Paragraph %d of the report.", i+1)
	}
	dir := t.TempDir()
	src := testutil.WriteDOCX(t, filepath.Join(dir, "report.docx"), paragraphs)
	dst := filepath.Join(dir, "report.annotated.docx")

	res, err := New().AnnotateDOCX(src, "5. Consider splitting this sentence.", dst)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sections)
	assert.Equal(t, 0, res.Comments)
	assert.Equal(t, 0, res.Placed)
	assert.Empty(t, testutil.ReadDOCXComments(t, dst))
}

func firstPageWith(t *testing.T, path, text string) int {
	t.Helper()
	doc, err := document.OpenPDF(path)
	require.NoError(t, err)
	defer doc.Close()

	s, ok := doc.(document.Searcher)
	require.True(t, ok)
	for page := 1; page <= s.PageCount(); page++ {
		frags, err := s.Search(page, text)
		require.NoError(t, err)
		if len(frags) > 0 {
			return page
		}
	}
	t.Fatalf("%q not found", text)
	return 0
}

package document

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/fyerfyer/doc-annotator/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPDFLinesAndSearch 测试PDF文本提取与搜索
func TestPDFLinesAndSearch(t *testing.T) {
	dir := t.TempDir()
	src := testutil.WritePDF(t, filepath.Join(dir, "src.pdf"), [][]string{
		{"Accessibility review", "Entrance details"},
		{"The access ramp gradient exceeds 1:12.", "Handrails on both sides"},
	})

	doc, err := openPDF(src)
	require.NoError(t, err)
	defer doc.Close()

	assert.Equal(t, 2, doc.PageCount())
	lines := doc.Lines()
	assert.Contains(t, lines, "Accessibility review")
	assert.Contains(t, lines, "The access ramp gradient exceeds 1:12.")

	// 大小写不敏感，只在第二页命中
	frags, err := doc.Search(1, "ACCESS RAMP")
	require.NoError(t, err)
	assert.Empty(t, frags)

	frags, err = doc.Search(2, "ACCESS RAMP")
	require.NoError(t, err)
	require.Len(t, frags, 1)
	assert.Equal(t, "access ramp", frags[0].Text)
	require.Len(t, frags[0].Regions, 1)
	assert.False(t, frags[0].Regions[0].Empty())

	_, err = doc.Search(3, "ramp")
	assert.True(t, errors.Is(err, ErrInvalidTarget))
}

// TestPDFAnnotateAndSave 测试高亮写入与保存
func TestPDFAnnotateAndSave(t *testing.T) {
	dir := t.TempDir()
	src := testutil.WritePDF(t, filepath.Join(dir, "src.pdf"), [][]string{
		{"First page"},
		{"Second page text"},
	})
	dst := filepath.Join(dir, "out.pdf")

	doc, err := openPDF(src)
	require.NoError(t, err)

	frags, err := doc.Search(2, "page text")
	require.NoError(t, err)
	require.NotEmpty(t, frags)

	err = doc.Annotate(Annotation{
		Author: "ADA",
		Body:   "Clarify this: ümlaut ok",
		Target: Target{Page: 2, Regions: frags[0].Regions},
		Style:  Style{Color: Yellow},
	})
	require.NoError(t, err)

	// 没有区域的目标被拒绝
	err = doc.Annotate(Annotation{Author: "ADA", Body: "x", Target: Target{Page: 1}})
	assert.True(t, errors.Is(err, ErrInvalidTarget))

	require.NoError(t, doc.Save(dst))
	require.NoError(t, doc.Close())

	highlights := testutil.ReadHighlights(t, dst)
	require.Len(t, highlights, 1)
	assert.Equal(t, 2, highlights[0].Page)
	assert.Equal(t, "ADA", highlights[0].Author)
	assert.Equal(t, "Clarify this: ümlaut ok", highlights[0].Contents)
	assert.Equal(t, 1, highlights[0].Quads)

	// 源文件不受影响
	assert.Empty(t, testutil.ReadHighlights(t, src))

	// 关闭后不能再保存
	assert.ErrorIs(t, doc.Save(filepath.Join(dir, "again.pdf")), ErrClosed)
}

// TestOpenPDFErrors 测试PDF打开失败
func TestOpenPDFErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := OpenPDF(filepath.Join(dir, "missing.pdf"))
	assert.ErrorIs(t, err, ErrOpen)

	garbage := filepath.Join(dir, "garbage.pdf")
	require.NoError(t, os.WriteFile(garbage, []byte("not a pdf"), 0o644))
	_, err = OpenPDF(garbage)
	assert.ErrorIs(t, err, ErrOpen)
}

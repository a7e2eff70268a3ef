package document

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" PDF ")
	require.NoError(t, err)
	assert.Equal(t, PDF, k)

	k, err = ParseKind("docx")
	require.NoError(t, err)
	assert.Equal(t, DOCX, k)
	assert.Equal(t, ".docx", k.Ext())

	_, err = ParseKind("odt")
	assert.ErrorIs(t, err, ErrUnsupportedKind)

	_, err = Open(Kind("odt"), "whatever")
	assert.ErrorIs(t, err, ErrUnsupportedKind)
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#FFFF00")
	require.NoError(t, err)
	assert.Equal(t, Yellow, c)

	_, err = ParseColor("yellow")
	assert.Error(t, err)
}

func TestRectUnion(t *testing.T) {
	r := Rect{X0: 1, Y0: 1, X1: 2, Y1: 2}.Union(Rect{X0: 0, Y0: 1.5, X1: 3, Y1: 4})
	assert.Equal(t, Rect{X0: 0, Y0: 1, X1: 3, Y1: 4}, r)
	assert.True(t, Rect{}.Empty())
}

func TestWriteAtomicFailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "out.bin")

	err := writeAtomic(dst, func(w io.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return errors.New("boom")
	})
	assert.ErrorIs(t, err, ErrSave)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// 目标目录不存在
	err = writeAtomic(filepath.Join(dir, "missing", "out.bin"), func(w io.Writer) error { return nil })
	assert.ErrorIs(t, err, ErrSave)
}

package storage

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(b)
}

// TestLocalStorage 测试本地存储实现
func TestLocalStorage(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStorage(LocalConfig{Path: dir})
	require.NoError(t, err)

	content := "%PDF-1.4 fake"
	info, err := s.Save(strings.NewReader(content), "report.pdf")
	require.NoError(t, err)
	assert.NotEmpty(t, info.ID)
	assert.Equal(t, "report.pdf", info.Name)
	assert.Equal(t, int64(len(content)), info.Size)
	assert.Equal(t, "application/pdf", info.MimeType)
	assert.True(t, strings.HasSuffix(info.Path, info.ID+".pdf"))
	assert.FileExists(t, filepath.Join(dir, info.Path))

	t.Run("Get", func(t *testing.T) {
		rc, err := s.Get(info.ID)
		require.NoError(t, err)
		assert.Equal(t, content, readAll(t, rc))
	})

	t.Run("Stat", func(t *testing.T) {
		fi, err := s.Stat(info.ID)
		require.NoError(t, err)
		assert.Equal(t, info.ID, fi.ID)
		assert.Equal(t, info.Size, fi.Size)
		assert.Equal(t, info.Path, fi.Path)
		assert.False(t, fi.ModTime.IsZero())
	})

	t.Run("List", func(t *testing.T) {
		_, err := s.Save(bytes.NewReader([]byte("PK")), "memo.docx")
		require.NoError(t, err)

		files, err := s.List()
		require.NoError(t, err)
		assert.Len(t, files, 2)
	})

	t.Run("Exists", func(t *testing.T) {
		ok, err := s.Exists(info.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.Exists("non-existent-id")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, s.Delete(info.ID))
		ok, err := s.Exists(info.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		assert.ErrorIs(t, s.Delete(info.ID), ErrNotFound)
		_, err = s.Get(info.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.Stat("")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

// TestMinioStorage 需要本地运行的MinIO服务
func TestMinioStorage(t *testing.T) {
	if os.Getenv("MINIO_TEST_ENDPOINT") == "" {
		t.Skip("MINIO_TEST_ENDPOINT not set, skipping MinIO tests")
	}

	s, err := NewMinioStorage(MinioConfig{
		Endpoint:  os.Getenv("MINIO_TEST_ENDPOINT"),
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    "annotator-test",
	})
	require.NoError(t, err)

	content := "minio content"
	info, err := s.Save(strings.NewReader(content), "notes.txt")
	require.NoError(t, err)
	defer s.Delete(info.ID)

	rc, err := s.Get(info.ID)
	require.NoError(t, err)
	assert.Equal(t, content, readAll(t, rc))

	fi, err := s.Stat(info.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), fi.Size)

	ok, err := s.Exists("non-existent-id")
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestNew 测试按类型创建存储
func TestNew(t *testing.T) {
	s, err := New(Config{Type: "local", Local: LocalConfig{Path: filepath.Join(t.TempDir(), "nested")}})
	require.NoError(t, err)
	assert.IsType(t, &LocalStorage{}, s)

	_, err = New(Config{Type: "s3"})
	assert.Error(t, err)
}

func TestGetMimeType(t *testing.T) {
	assert.Equal(t, "application/pdf", getMimeType("A.PDF"))
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", getMimeType("a.docx"))
	assert.Equal(t, "application/octet-stream", getMimeType("a.bin"))
	assert.Equal(t, "abc", idFromName("2025/01/02/abc.pdf"))
}

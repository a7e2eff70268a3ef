package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fyerfyer/doc-annotator/internal/annotate"
	"github.com/fyerfyer/doc-annotator/internal/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "local", cfg.Storage.Type)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.False(t, cfg.Queue.Enable)
	assert.Equal(t, "ADA", cfg.Annotation.Author)
	assert.Equal(t, 50, cfg.Annotation.MaxComments)
	assert.Equal(t, 500, cfg.Annotation.MaxBodyChars)

	color, err := cfg.Annotation.Color()
	require.NoError(t, err)
	assert.Equal(t, document.Yellow, color)

	mapping, err := cfg.Annotation.Mapping()
	require.NoError(t, err)
	assert.Equal(t, annotate.MappingReconcile, mapping)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
storage:
  type: minio
  secret_key: ${TEST_ANNOTATOR_SECRET}
annotation:
  author: QA
  paragraph_mapping: positional
  comment_format: markdown
  highlight_color: "#00FF00"
`), 0o644))

	t.Setenv("TEST_ANNOTATOR_SECRET", "s3cr3t")
	t.Setenv("ANNOTATION_MAX_COMMENTS", "7")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "minio", cfg.Storage.Type)
	assert.Equal(t, "s3cr3t", cfg.Storage.SecretKey)
	assert.Equal(t, "QA", cfg.Annotation.Author)
	assert.Equal(t, 7, cfg.Annotation.MaxComments)
	assert.Equal(t, "markdown", cfg.Annotation.CommentFormat)

	mapping, err := cfg.Annotation.Mapping()
	require.NoError(t, err)
	assert.Equal(t, annotate.MappingPositional, mapping)

	color, err := cfg.Annotation.Color()
	require.NoError(t, err)
	assert.Equal(t, document.Color{R: 0, G: 1, B: 0}, color)
}

func TestLoadInvalid(t *testing.T) {
	cases := map[string]string{
		"color":   "annotation:\n  highlight_color: yellow\n",
		"mapping": "annotation:\n  paragraph_mapping: fuzzy\n",
		"format":  "annotation:\n  comment_format: html\n",
		"port":    "server:\n  port: 0\n",
		"yaml":    "server: [\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

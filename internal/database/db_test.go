package database

import (
	"path/filepath"
	"testing"

	"github.com/fyerfyer/doc-annotator/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupSQLite(t *testing.T) {
	original := DB
	defer func() { DB = original }()

	cfg := DefaultConfig()
	cfg.DSN = filepath.Join(t.TempDir(), "nested", "annotator.db")

	require.NoError(t, Setup(cfg, logrus.New()))
	defer Close()

	assert.NotNil(t, MustDB())
	assert.True(t, MustDB().Migrator().HasTable(&models.AnnotationJob{}))
}

func TestSetupUnsupported(t *testing.T) {
	err := Setup(&Config{Type: "oracle"}, logrus.New())
	assert.Error(t, err)
}

func TestMustDBPanics(t *testing.T) {
	original := DB
	defer func() { DB = original }()

	DB = nil
	assert.Panics(t, func() { MustDB() })
}

func TestOpenMemoryIsolated(t *testing.T) {
	a, err := OpenMemory()
	require.NoError(t, err)
	b, err := OpenMemory()
	require.NoError(t, err)

	require.NoError(t, a.Create(&models.AnnotationJob{ID: "j1", Kind: "pdf", FileName: "a.pdf", SourceID: "s", SourcePath: "p", Comments: "c"}).Error)

	var count int64
	require.NoError(t, b.Model(&models.AnnotationJob{}).Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, a.Model(&models.AnnotationJob{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

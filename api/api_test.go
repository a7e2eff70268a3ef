package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/fyerfyer/doc-annotator/api/handler"
	"github.com/fyerfyer/doc-annotator/api/model"
	"github.com/fyerfyer/doc-annotator/internal/database"
	"github.com/fyerfyer/doc-annotator/internal/repository"
	"github.com/fyerfyer/doc-annotator/internal/services"
	"github.com/fyerfyer/doc-annotator/internal/testutil"
	"github.com/fyerfyer/doc-annotator/pkg/storage"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reviewComments = "1. Location: Line 5\nSentence too long.\n\n2. Location: Line 40\nNo such paragraph."

// setupRouter 创建使用内存数据库和本地存储的路由
func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.OpenMemory()
	require.NoError(t, err)
	store, err := storage.NewLocalStorage(storage.LocalConfig{Path: t.TempDir()})
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	svc := services.NewAnnotationService(store, repository.NewJobRepositoryWithDB(db), services.WithLogger(logger))
	return SetupRouter(handler.NewAnnotationHandler(svc))
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	TraceID string          `json:"trace_id"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func docxFixture(t *testing.T) []byte {
	t.Helper()
	paragraphs := make([]string, 10)
	for i := range paragraphs {
		paragraphs[i] = fmt.Sprintf("Paragraph %d of the report.", i+1)
	}
	path := testutil.WriteDOCX(t, testutil.TempPath(t, "report.docx"), paragraphs)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

// multipartRequest 构造上传请求，files 的值为文件名和内容
func multipartRequest(t *testing.T, fields map[string]string, files map[string][2][]byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for field, f := range files {
		w, err := mw.CreateFormFile(field, string(f[0]))
		require.NoError(t, err)
		_, err = w.Write(f[1])
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/annotations", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func submitDOCX(t *testing.T, router *gin.Engine, comments string) model.AnnotationInfo {
	t.Helper()
	req := multipartRequest(t,
		map[string]string{"kind": "docx", "comments": comments},
		map[string][2][]byte{"file": {[]byte("report.docx"), docxFixture(t)}},
	)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var info model.AnnotationInfo
	decode(t, w, &info)
	return info
}

func TestHealth(t *testing.T) {
	router := setupRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	var resp model.HealthResponse
	decode(t, w, &resp)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []string{"docx", "pdf"}, resp.Kinds)
	assert.NotEmpty(t, w.Header().Get("X-Trace-ID"))
}

func TestSubmitAndDownload(t *testing.T) {
	router := setupRouter(t)

	info := submitDOCX(t, router, reviewComments)
	assert.Equal(t, "completed", info.Status)
	assert.Equal(t, "docx", info.Kind)
	assert.Equal(t, "report.docx", info.FileName)
	assert.Equal(t, 2, info.Sections)
	assert.Equal(t, 1, info.Placed)
	require.Len(t, info.Skipped, 1)
	assert.Equal(t, []int{40}, info.Skipped[0].Lines)
	assert.Equal(t, "/api/annotations/"+info.ID+"/download", info.DownloadURL)

	// 查询
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/annotations/"+info.ID, nil))
	require.Equal(t, http.StatusOK, w.Code)
	var got model.AnnotationInfo
	decode(t, w, &got)
	assert.Equal(t, info.ID, got.ID)

	// 下载
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, info.DownloadURL, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "report_annotated.docx")

	out := testutil.TempPath(t, "downloaded.docx")
	require.NoError(t, os.WriteFile(out, w.Body.Bytes(), 0o644))
	comments := testutil.ReadDOCXComments(t, out)
	require.Len(t, comments, 1)
	assert.Equal(t, 4, comments[0].Paragraph)

	// 删除
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/annotations/"+info.ID, nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/annotations/"+info.ID, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	env := decode(t, w, nil)
	assert.Equal(t, http.StatusNotFound, env.Code)
	assert.NotEmpty(t, env.TraceID)
}

func TestSubmitWithCommentsFile(t *testing.T) {
	router := setupRouter(t)

	req := multipartRequest(t,
		map[string]string{"kind": "DOCX"},
		map[string][2][]byte{
			"file":          {[]byte("memo.docx"), docxFixture(t)},
			"comments_file": {[]byte("review.txt"), []byte(reviewComments)},
		},
	)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var info model.AnnotationInfo
	decode(t, w, &info)
	assert.Equal(t, 1, info.Placed)
}

func TestSubmitValidation(t *testing.T) {
	router := setupRouter(t)
	doc := docxFixture(t)

	cases := []struct {
		name   string
		fields map[string]string
		files  map[string][2][]byte
	}{
		{"missing file", map[string]string{"kind": "docx", "comments": "Line 1"}, nil},
		{"missing kind", map[string]string{"comments": "Line 1"}, map[string][2][]byte{"file": {[]byte("a.docx"), doc}}},
		{"unknown kind", map[string]string{"kind": "odt", "comments": "Line 1"}, map[string][2][]byte{"file": {[]byte("a.odt"), doc}}},
		{"missing comments", map[string]string{"kind": "docx"}, map[string][2][]byte{"file": {[]byte("a.docx"), doc}}},
		{"bad format", map[string]string{"kind": "docx", "comments": "Line 1", "format": "html"}, map[string][2][]byte{"file": {[]byte("a.docx"), doc}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, multipartRequest(t, tc.fields, tc.files))
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			env := decode(t, w, nil)
			assert.Equal(t, http.StatusBadRequest, env.Code)
		})
	}
}

func TestDownloadFailedJob(t *testing.T) {
	router := setupRouter(t)

	req := multipartRequest(t,
		map[string]string{"kind": "pdf", "comments": "Location: Line 1"},
		map[string][2][]byte{"file": {[]byte("broken.pdf"), []byte("not a pdf")}},
	)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var info model.AnnotationInfo
	decode(t, w, &info)
	assert.Equal(t, "failed", info.Status)
	assert.NotEmpty(t, info.Error)
	assert.Empty(t, info.DownloadURL)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/annotations/"+info.ID+"/download", nil))
	assert.Equal(t, http.StatusConflict, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/annotations/missing/download", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestList(t *testing.T) {
	router := setupRouter(t)
	submitDOCX(t, router, reviewComments)
	submitDOCX(t, router, "1. Location: Line 2\nAnother.")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/annotations?page=1&page_size=1&kind=docx&status=completed", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp model.AnnotationListResponse
	decode(t, w, &resp)
	assert.Equal(t, int64(2), resp.Total)
	assert.Equal(t, 1, resp.PageSize)
	assert.Len(t, resp.Annotations, 1)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/annotations?kind=pdf", nil))
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &resp)
	assert.Zero(t, resp.Total)
	assert.Empty(t, resp.Annotations)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/annotations?status=unknown", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParseComments(t *testing.T) {
	router := setupRouter(t)

	body := `{"comments":"1. **Location:** Lines 3-4\n   Fix.\n2. General remark","format":"markdown"}`
	req := httptest.NewRequest(http.MethodPost, "/api/comments/parse", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Trace-ID", "trace-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "trace-123", w.Header().Get("X-Trace-ID"))

	var resp model.CommentParseResponse
	decode(t, w, &resp)
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, 2, resp.Considered)
	require.Len(t, resp.Comments, 1)
	assert.Equal(t, []int{3, 4}, resp.Comments[0].Lines)

	req = httptest.NewRequest(http.MethodPost, "/api/comments/parse", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCorsPreflight(t *testing.T) {
	router := setupRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/annotations", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/sit-pipeline/api/handlers"
	"github.com/feichai0017/sit-pipeline/api/middleware"
	"github.com/feichai0017/sit-pipeline/internal/agent/candidate"
	"github.com/feichai0017/sit-pipeline/internal/agent/document"
	"github.com/feichai0017/sit-pipeline/internal/repository"
	"github.com/feichai0017/sit-pipeline/internal/service/scan"
	"github.com/feichai0017/sit-pipeline/internal/service/sit"
	"github.com/feichai0017/sit-pipeline/internal/utils/validator"
	"github.com/feichai0017/sit-pipeline/pkg/logger"
	"github.com/feichai0017/sit-pipeline/pkg/storage/local"
)

type testServer struct {
	router   *gin.Engine
	dispatch *scan.LocalDispatcher
}

func newTestServer(t *testing.T, checks map[string]handlers.Check) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := repository.NewMemoryDB(strings.ReplaceAll(t.Name(), "/", "_"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	log := logger.NewTestLogger()
	store, err := local.NewDiskStorage(t.TempDir(), log)
	require.NoError(t, err)

	scanRepo := repository.NewScanRepository(db)
	orch := scan.NewOrchestrator(scanRepo, store, document.NewExtractor(log), candidate.NewMiner(log, nil), nil, nil, log)
	dispatch := scan.NewLocalDispatcher(orch, log)
	v := validator.NewUploadValidator(log, &validator.ValidatorConfig{MaxFileSize: 1 << 20, MaxFiles: 3})
	scanService := scan.NewService(scanRepo, store, v, dispatch, nil, nil, log, &scan.ServiceConfig{WatchInterval: 10 * time.Millisecond})
	sitService := sit.NewService(repository.NewSitRepository(db), log)

	r := gin.New()
	SetupRoutes(r, handlers.NewHandlers(scanService, sitService, handlers.NewHealthHandler(checks), log), log)
	return &testServer{router: r, dispatch: dispatch}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) doJSON(method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return s.do(req)
}

func multipartScan(t *testing.T, fields map[string]string, files map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for name, body := range files {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", `form-data; name="files"; filename="`+name+`"`)
		h.Set("Content-Type", "text/plain")
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scans", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestScanLifecycle(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(multipartScan(t,
		map[string]string{"name": "hr", "sit_category": "HR", "force_ocr": "true"},
		map[string]string{"notes.txt": "Mail hr@contoso.com and hr@contoso.com about payroll payroll payroll."},
	))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
	created := decode[handlers.CreateScanResponse](t, w)
	assert.Equal(t, "PENDING", string(created.Status))
	assert.Equal(t, 1, created.FilesCount)
	assert.NotEmpty(t, created.CreatedAt)
	s.dispatch.Wait()

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/scans/"+created.ScanID, nil))
	require.Equal(t, http.StatusOK, w.Code)
	detail := decode[map[string]interface{}](t, w)
	assert.Equal(t, "COMPLETED", detail["status"])
	assert.Equal(t, true, detail["options"].(map[string]interface{})["force_ocr"])

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/scans/"+created.ScanID+"/files", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"file_name":"notes.txt"`)
	assert.NotContains(t, w.Body.String(), "uploads/", "blob paths stay internal")

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/scans/"+created.ScanID+"/candidates?type=pattern&limit=1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[handlers.CandidatePage](t, w)
	require.Len(t, page.Candidates, 1)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 1, page.PageSize)
	assert.Equal(t, "hr@contoso.com", page.Candidates[0].Value)
	assert.Equal(t, 2, page.Candidates[0].Frequency)

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/scans/"+created.ScanID+"/events", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "event:progress")
	assert.Contains(t, w.Body.String(), `"final":true`)
}

func TestScanErrors(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name string
		req  *http.Request
		want int
	}{
		{"unknown scan", httptest.NewRequest(http.MethodGet, "/api/v1/scans/nope", nil), http.StatusNotFound},
		{"unknown scan candidates", httptest.NewRequest(http.MethodGet, "/api/v1/scans/nope/candidates", nil), http.StatusNotFound},
		{"limit too large", httptest.NewRequest(http.MethodGet, "/api/v1/scans/nope/candidates?limit=500", nil), http.StatusBadRequest},
		{"bad type", httptest.NewRequest(http.MethodGet, "/api/v1/scans/nope/candidates?type=other", nil), http.StatusBadRequest},
		{"bad scan type", multipartScan(t, map[string]string{"scan_type": "fuzzy"}, map[string]string{"a.txt": "x"}), http.StatusBadRequest},
		{"missing credentials", multipartScan(t, map[string]string{"scan_type": "sentence_transformer"}, map[string]string{"a.txt": "x"}), http.StatusBadRequest},
		{"bad bool", multipartScan(t, map[string]string{"force_ocr": "maybe"}, map[string]string{"a.txt": "x"}), http.StatusBadRequest},
		{"no files", multipartScan(t, map[string]string{"name": "x"}, nil), http.StatusBadRequest},
		{"empty file", multipartScan(t, nil, map[string]string{"a.txt": ""}), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(tt.req)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			body := decode[handlers.ErrorResponse](t, w)
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestEventsUnknownScan(t *testing.T) {
	s := newTestServer(t, nil)
	w := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/scans/nope/events", nil))
	assert.Contains(t, w.Body.String(), "event:error")
	assert.Contains(t, w.Body.String(), "scan not found")
}

func TestSitAuthoringAndTest(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.doJSON(http.MethodPost, "/api/v1/sits", map[string]interface{}{"name": "Employee ID", "confidence_level": 95})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decode[map[string]interface{}](t, w)["sit_id"].(string)

	w = s.doJSON(http.MethodPost, "/api/v1/sits/"+id+"/elements", map[string]interface{}{
		"element_role": "PRIMARY", "element_type": "REGEX", "pattern": `EMP-\d{6}`,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.doJSON(http.MethodPost, "/api/v1/sits/"+id+"/filters", map[string]interface{}{
		"filter_type": "EXCLUDE", "pattern": `0{6}$`,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.doJSON(http.MethodPost, "/api/v1/sits/"+id+"/test", map[string]string{"sample_text": "EMP-000000 EMP-123456"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	result := decode[handlers.TestSitResponse](t, w)
	assert.Equal(t, 1, result.MatchCount)
	assert.Equal(t, "EMP-123456", result.Matches[0].Value)
	assert.Equal(t, 95, result.Matches[0].Confidence)

	w = s.doJSON(http.MethodPost, "/api/v1/sits/"+id+"/test", map[string]string{"sample_text": "nothing here"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"matches":[],"match_count":0}`, w.Body.String())

	w = s.doJSON(http.MethodPost, "/api/v1/sits/"+id+"/publish", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.doJSON(http.MethodPost, "/api/v1/sits/"+id+"/elements", map[string]interface{}{
		"element_role": "SUPPORTING", "element_type": "KEYWORD_LIST", "pattern": "badge",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/sits/"+id, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"PUBLISHED"`)

	w = s.doJSON(http.MethodPost, "/api/v1/sits/missing/test", map[string]string{"sample_text": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, map[string]handlers.Check{
		"database": func(context.Context) error { return nil },
	})
	w := s.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"healthy"`)

	s = newTestServer(t, map[string]handlers.Check{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})
	w = s.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bloodcell-ai-server/internal/classify"
	"github.com/bloodcell-ai-server/internal/domain"
	"github.com/bloodcell-ai-server/internal/explain"
	"github.com/bloodcell-ai-server/internal/progress"
	"github.com/bloodcell-ai-server/internal/service"
	"github.com/bloodcell-ai-server/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	st, err := store.Open(domain.StorageConfig{
		SQLitePath:      filepath.Join(t.TempDir(), "api.db"),
		ReportCacheSize: 16,
	})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	tracker := progress.NewMemoryTracker()
	mock := classify.NewMockClassifier(logger)
	generator := explain.NewGenerator(logger, nil, domain.GeneratorConfig{})
	analyzer := service.NewAnalyzer(logger, st, tracker, mock, mock, generator)

	cfg := &domain.Config{
		Server: domain.ServerConfig{
			UploadRatePerSecond: 100,
			UploadBurst:         100,
		},
		Uploads: domain.UploadsConfig{
			Dir:          t.TempDir(),
			MaxSizeBytes: 10 * 1024 * 1024,
		},
		Logging: domain.LoggingConfig{Level: "error"},
	}

	return NewServer(cfg, logger, analyzer, st, tracker)
}

func uploadImage(t *testing.T, handler http.Handler, filename string, contentType string) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte("fake image bytes"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func waitForCompletion(t *testing.T, handler http.Handler, analysisID string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		req := httptest.NewRequest(http.MethodGet, "/api/progress/"+analysisID, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var p domain.Progress
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
		if p.Status == domain.StatusCompleted {
			return
		}
		require.NotEqual(t, domain.StatusError, p.Status)
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("analysis did not complete in time")
}

func TestServer_Health(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServer_UploadAnalysisLifecycle(t *testing.T) {
	s := newTestServer(t)
	handler := s.Handler()

	rec := uploadImage(t, handler, "smear.png", "image/png")
	require.Equal(t, http.StatusOK, rec.Code)

	var uploaded struct {
		AnalysisID string `json:"analysis_id"`
		Status     string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &uploaded))
	require.NotEmpty(t, uploaded.AnalysisID)
	assert.Equal(t, domain.StatusUploaded, uploaded.Status)

	waitForCompletion(t, handler, uploaded.AnalysisID)

	// Results reflect the mock classifier's healthy differential.
	req := httptest.NewRequest(http.MethodGet, "/api/results/"+uploaded.AnalysisID, nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var report domain.AnalysisReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 68, report.CellCounts.Neutrophils)
	assert.Equal(t, 320000, report.CellCounts.Platelets)

	// Explanation is generated and persisted.
	req = httptest.NewRequest(http.MethodPost, "/api/medical-explanation/"+uploaded.AnalysisID, nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Comprehensive Blood Cell Analysis Report")

	// Follow-up question is answered and recorded.
	body := strings.NewReader(`{"question": "What is the normal range for platelets?"}`)
	req = httptest.NewRequest(http.MethodPost, "/api/follow-up/"+uploaded.AnalysisID, body)
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "150,000-450,000")

	req = httptest.NewRequest(http.MethodGet, "/api/follow-up/"+uploaded.AnalysisID, nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var followUps struct {
		FollowUps []domain.FollowUp `json:"follow_ups"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &followUps))
	require.Len(t, followUps.FollowUps, 1)

	// Listing and stats see the analysis.
	req = httptest.NewRequest(http.MethodGet, "/api/analyses/recent?limit=5", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), uploaded.AnalysisID)

	req = httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats domain.StoreStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.TotalAnalyses)
	assert.Equal(t, int64(1), stats.TotalFollowUps)

	// Delete removes the report and its follow-ups.
	req = httptest.NewRequest(http.MethodDelete, "/api/analyses/"+uploaded.AnalysisID, nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/results/"+uploaded.AnalysisID, nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_UploadRejectsNonImage(t *testing.T) {
	s := newTestServer(t)

	rec := uploadImage(t, s.Handler(), "notes.txt", "text/plain")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "File must be an image")
}

func TestServer_ProgressUnknownAnalysis(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/progress/unknown-id", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), domain.ErrNotFound)
}

func TestServer_ExplanationUnknownAnalysis(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/medical-explanation/unknown-id", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_FollowUpRequiresQuestion(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/follow-up/some-id", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_UploadRateLimit(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	st, err := store.Open(domain.StorageConfig{SQLitePath: filepath.Join(t.TempDir(), "rl.db")})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	tracker := progress.NewMemoryTracker()
	mock := classify.NewMockClassifier(logger)
	generator := explain.NewGenerator(logger, nil, domain.GeneratorConfig{})
	analyzer := service.NewAnalyzer(logger, st, tracker, mock, mock, generator)

	cfg := &domain.Config{
		Server: domain.ServerConfig{
			UploadRatePerSecond: 0.001,
			UploadBurst:         1,
		},
		Uploads: domain.UploadsConfig{Dir: t.TempDir(), MaxSizeBytes: 1024 * 1024},
		Logging: domain.LoggingConfig{Level: "error"},
	}
	s := NewServer(cfg, logger, analyzer, st, tracker)

	first := uploadImage(t, s.Handler(), "a.png", "image/png")
	require.Equal(t, http.StatusOK, first.Code)

	second := uploadImage(t, s.Handler(), "b.png", "image/png")
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestServer_ProgressWebsocketStream(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	rec := uploadImage(t, s.Handler(), "smear.png", "image/png")
	require.Equal(t, http.StatusOK, rec.Code)
	var uploaded struct {
		AnalysisID string `json:"analysis_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &uploaded))

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/progress/" + uploaded.AnalysisID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var last domain.Progress
	for {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var p domain.Progress
		if err := conn.ReadJSON(&p); err != nil {
			break
		}
		last = p
		if p.Status == domain.StatusCompleted || p.Status == domain.StatusError {
			break
		}
	}

	assert.Equal(t, domain.StatusCompleted, last.Status)
	assert.Equal(t, 100, last.Progress)
}

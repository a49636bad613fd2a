package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maauso/zoomclip-api/internal/clip"
	"github.com/maauso/zoomclip-api/internal/job"
	"github.com/maauso/zoomclip-api/internal/metrics"
	"github.com/maauso/zoomclip-api/internal/storage"
)

// mockProducer implements job.Producer for testing.
type mockProducer struct {
	mock.Mock
}

func (m *mockProducer) Produce(ctx context.Context, req clip.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

type testEnv struct {
	handlers *Handlers
	service  *job.ClipService
	producer *mockProducer
	storage  *storage.LocalStorage
	logger   *slog.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	producer := &mockProducer{}
	svc := job.NewClipService(job.NewMemoryRepository(), producer, st, job.WithLogger(logger))

	// Async processing is disabled so tests drive the service explicitly
	return &testEnv{
		handlers: NewHandlers(svc, logger, WithAsyncProcessing(false)),
		service:  svc,
		producer: producer,
		storage:  st,
		logger:   logger,
	}
}

// completeJob creates and renders a job whose artifact holds data.
func (e *testEnv) completeJob(t *testing.T, id string, data []byte) string {
	t.Helper()
	ctx := context.Background()

	_, err := e.service.CreateJob(ctx, job.CreateJobInput{ID: id, ImageURL: "https://example.com/cat.png", Length: 5, FrameRate: 24})
	require.NoError(t, err)

	path := e.storage.OutputPath(id)
	require.NoError(t, os.WriteFile(path, data, 0600))
	e.producer.On("Produce", mock.Anything, mock.MatchedBy(func(r clip.Request) bool { return r.JobID == id })).
		Return(path, nil).Once()

	_, err = e.service.ProcessExistingJob(ctx, id)
	require.NoError(t, err)
	return path
}

func postJSON(t *testing.T, h http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	bodyJSON, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/jobs", bytes.NewReader(bodyJSON))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := httptest.NewRecorder()
	env.handlers.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestCreateJob_Success(t *testing.T) {
	env := newTestEnv(t)

	rec := postJSON(t, env.handlers.CreateJob, CreateJobRequest{
		ImageURL:         "https://example.com/cat.png",
		Length:           5,
		FrameRate:        24,
		ZoomSpeed:        0.1,
		OutputResolution: "1080x1080",
	})

	assert.Equal(t, http.StatusAccepted, rec.Code)

	var resp CreateJobResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "IN_QUEUE", resp.Status)

	stored, err := env.service.GetJob(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.1, stored.ZoomSpeed)
	assert.Equal(t, "1080x1080", stored.OutputResolution)
}

func TestCreateJob_AppliesDefaults(t *testing.T) {
	env := newTestEnv(t)

	rec := postJSON(t, env.handlers.CreateJob, map[string]any{
		"id":        "custom-id",
		"image_url": "https://example.com/cat.png",
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	stored, err := env.service.GetJob(context.Background(), "custom-id")
	require.NoError(t, err)
	assert.Equal(t, DefaultLength, stored.Length)
	assert.Equal(t, DefaultFrameRate, stored.FrameRate)
	assert.Zero(t, stored.ZoomSpeed)
	assert.Empty(t, stored.OutputResolution)
}

func TestCreateJob_DuplicateID(t *testing.T) {
	env := newTestEnv(t)
	body := map[string]any{"id": "dup", "image_url": "https://example.com/cat.png"}

	require.Equal(t, http.StatusAccepted, postJSON(t, env.handlers.CreateJob, body).Code)

	rec := postJSON(t, env.handlers.CreateJob, body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "JOB_EXISTS", decodeError(t, rec).Code)
}

func TestCreateJob_InvalidJSON(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/jobs", bytes.NewReader([]byte("invalid json")))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	env.handlers.CreateJob(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_JSON", decodeError(t, rec).Code)
}

func TestCreateJob_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing image", map[string]any{"length": 5}},
		{"image not a URL", map[string]any{"image_url": "not a url"}},
		{"file URL", map[string]any{"image_url": "file:///etc/hostname"}},
		{"bare path", map[string]any{"image_url": "/etc/hostname"}},
		{"ftp URL", map[string]any{"image_url": "ftp://example.com/cat.png"}},
		{"negative length", map[string]any{"image_url": "https://example.com/a.png", "length": -1}},
		{"negative frame rate", map[string]any{"image_url": "https://example.com/a.png", "frame_rate": -24}},
		{"negative zoom speed", map[string]any{"image_url": "https://example.com/a.png", "zoom_speed": -0.5}},
		{"malformed resolution", map[string]any{"image_url": "https://example.com/a.png", "output_resolution": "abc"}},
		{"zero resolution", map[string]any{"image_url": "https://example.com/a.png", "output_resolution": "0x1080"}},
		{"bad webhook", map[string]any{"image_url": "https://example.com/a.png", "webhook_url": "nope"}},
		{"unsafe id", map[string]any{"image_url": "https://example.com/a.png", "id": "../../etc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			rec := postJSON(t, env.handlers.CreateJob, tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "VALIDATION_ERROR", decodeError(t, rec).Code)

			jobs, err := env.service.ListJobs(context.Background())
			require.NoError(t, err)
			assert.Empty(t, jobs)
		})
	}
}

func TestCreateJob_AcceptsS3Source(t *testing.T) {
	env := newTestEnv(t)

	rec := postJSON(t, env.handlers.CreateJob, map[string]any{"image_url": "s3://media/in/cat.png"})
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestIsRemoteSource(t *testing.T) {
	tests := []struct {
		locator string
		want    bool
	}{
		{"https://example.com/cat.png", true},
		{"HTTP://example.com/cat.png", true},
		{"s3://media/in/cat.png", true},
		{"file:///etc/passwd", false},
		{"file://localhost/etc/passwd", false},
		{"/etc/passwd", false},
		{"C:/images/cat.png", false},
		{"https:///no-host", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.locator, func(t *testing.T) {
			assert.Equal(t, tt.want, isRemoteSource(tt.locator))
		})
	}
}

func TestListJobs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, _ = env.service.CreateJob(ctx, job.CreateJobInput{ID: "a", ImageURL: "https://example.com/a.png", Length: 1, FrameRate: 1})
	_, _ = env.service.CreateJob(ctx, job.CreateJobInput{ID: "b", ImageURL: "https://example.com/b.png", Length: 1, FrameRate: 1})

	rec := httptest.NewRecorder()
	env.handlers.ListJobs(rec, httptest.NewRequest(http.MethodGet, "/jobs", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp ListJobsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.Jobs, 2)
}

func TestGetJob_Success(t *testing.T) {
	env := newTestEnv(t)
	path := env.completeJob(t, "job1", []byte("mp4"))

	req := httptest.NewRequest(http.MethodGet, "/jobs/job1", nil)
	req.SetPathValue("id", "job1")
	rec := httptest.NewRecorder()

	env.handlers.GetJob(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp JobResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "job1", resp.ID)
	assert.Equal(t, "COMPLETED", resp.Status)
	assert.Equal(t, path, resp.OutputPath)
	assert.NotEmpty(t, resp.CreatedAt)
	assert.NotEmpty(t, resp.CompletedAt)
}

func TestGetJob_Failed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, _ = env.service.CreateJob(ctx, job.CreateJobInput{ID: "bad", ImageURL: "https://example.com/a.png", Length: 1, FrameRate: 1})
	env.producer.On("Produce", mock.Anything, mock.Anything).
		Return("", &clip.EncodingError{ExitCode: 1, Stderr: "invalid codec"})
	_, _ = env.service.ProcessExistingJob(ctx, "bad")

	req := httptest.NewRequest(http.MethodGet, "/jobs/bad", nil)
	req.SetPathValue("id", "bad")
	rec := httptest.NewRecorder()
	env.handlers.GetJob(rec, req)

	var resp JobResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "FAILED", resp.Status)
	assert.Equal(t, "encoding_failed", resp.ErrorCode)
	assert.Contains(t, resp.Error, "invalid codec")
}

func TestGetJob_NotFound(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/jobs/nonexistent", nil)
	req.SetPathValue("id", "nonexistent")
	rec := httptest.NewRecorder()

	env.handlers.GetJob(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "JOB_NOT_FOUND", decodeError(t, rec).Code)
}

func TestGetJob_MissingID(t *testing.T) {
	env := newTestEnv(t)

	rec := httptest.NewRecorder()
	env.handlers.GetJob(rec, httptest.NewRequest(http.MethodGet, "/jobs/", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "MISSING_JOB_ID", decodeError(t, rec).Code)
}

func TestGetJobVideo(t *testing.T) {
	env := newTestEnv(t)
	env.completeJob(t, "job1", []byte("test video data"))

	req := httptest.NewRequest(http.MethodGet, "/jobs/job1/video", nil)
	req.SetPathValue("id", "job1")
	rec := httptest.NewRecorder()

	env.handlers.GetJobVideo(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	assert.Equal(t, "test video data", rec.Body.String())
}

func TestGetJobVideo_NotCompleted(t *testing.T) {
	env := newTestEnv(t)
	_, _ = env.service.CreateJob(context.Background(), job.CreateJobInput{ID: "queued", ImageURL: "https://example.com/a.png", Length: 1, FrameRate: 1})

	req := httptest.NewRequest(http.MethodGet, "/jobs/queued/video", nil)
	req.SetPathValue("id", "queued")
	rec := httptest.NewRecorder()

	env.handlers.GetJobVideo(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "JOB_NOT_COMPLETED", decodeError(t, rec).Code)
}

func TestCancelJob(t *testing.T) {
	env := newTestEnv(t)
	_, _ = env.service.CreateJob(context.Background(), job.CreateJobInput{ID: "queued", ImageURL: "https://example.com/a.png", Length: 1, FrameRate: 1})

	req := httptest.NewRequest(http.MethodPost, "/jobs/queued/cancel", nil)
	req.SetPathValue("id", "queued")
	rec := httptest.NewRecorder()
	env.handlers.CancelJob(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp JobResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "CANCELLED", resp.Status)

	// Cancelling twice conflicts
	rec = httptest.NewRecorder()
	env.handlers.CancelJob(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "JOB_NOT_CANCELLABLE", decodeError(t, rec).Code)
}

func TestCancelJob_NotFound(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/jobs/missing/cancel", nil)
	req.SetPathValue("id", "missing")
	rec := httptest.NewRecorder()
	env.handlers.CancelJob(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteJob(t *testing.T) {
	env := newTestEnv(t)
	path := env.completeJob(t, "job1", []byte("mp4"))

	req := httptest.NewRequest(http.MethodDelete, "/jobs/job1", nil)
	req.SetPathValue("id", "job1")
	rec := httptest.NewRecorder()
	env.handlers.DeleteJob(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	rec = httptest.NewRecorder()
	env.handlers.DeleteJob(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "JOB_NOT_FOUND", decodeError(t, rec).Code)
}

func TestDeleteJob_MissingID(t *testing.T) {
	env := newTestEnv(t)

	rec := httptest.NewRecorder()
	env.handlers.DeleteJob(rec, httptest.NewRequest(http.MethodDelete, "/jobs/", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "MISSING_JOB_ID", decodeError(t, rec).Code)
}

func TestRouter_Integration(t *testing.T) {
	env := newTestEnv(t)
	router := NewRouter(env.handlers, env.logger, Config{AllowedOrigins: []string{"*"}, Metrics: metrics.Handler()})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	bodyJSON, _ := json.Marshal(map[string]any{"id": "routed", "image_url": "https://example.com/cat.png"})
	req := httptest.NewRequest(http.MethodPost, "/jobs", bytes.NewReader(bodyJSON))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/routed", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs/routed/cancel", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/jobs/routed", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "zoomclip_jobs_in_progress")
}

func TestRouter_NoMetricsHandler(t *testing.T) {
	env := newTestEnv(t)
	router := NewRouter(env.handlers, env.logger, DefaultConfig())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSMiddleware(t *testing.T) {
	env := newTestEnv(t)
	router := NewRouter(env.handlers, env.logger, Config{AllowedOrigins: []string{"https://example.com"}})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "https://example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/jobs", nil)
	req.Header.Set("Origin", "https://example.com")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	panicHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	})
	handler := RecoveryMiddleware(logger)(panicHandler)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", decodeError(t, rec).Code)
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	handler := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short"))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/jobs", nil))
	assert.Contains(t, buf.String(), `"status":418`)
	assert.Contains(t, buf.String(), `"bytes":5`)

	buf.Reset()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Empty(t, buf.String())
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"media-converter/internal/capability"
	"media-converter/internal/database"
	"media-converter/internal/events"
	"media-converter/internal/media"
	"media-converter/internal/preview"
	"media-converter/internal/probe"
	"media-converter/internal/transcoder"

	"github.com/gorilla/mux"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeProber struct {
	info *media.MediaInfo
	err  error
}

func (f *fakeProber) Probe(_ context.Context, path string) (*media.MediaInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	info := *f.info
	info.Path = path
	return &info, nil
}

type fakeCaps struct {
	caps    media.GpuCapabilities
	formats []capability.Format
	err     error
}

func (f *fakeCaps) DetectOnce(context.Context) media.GpuCapabilities { return f.caps }

func (f *fakeCaps) Formats(context.Context) ([]capability.Format, error) {
	return f.formats, f.err
}

type fakeConverter struct {
	mu        sync.Mutex
	active    []transcoder.ActiveJob
	started   []media.ConversionOptions
	cancelled []string
	startErr  error
	cancelErr error
}

func (f *fakeConverter) Start(opts media.ConversionOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return "", f.startErr
	}
	if opts.ID == "" {
		opts.ID = fmt.Sprintf("job-%d", len(f.started)+1)
	}
	f.started = append(f.started, opts)
	return opts.ID, nil
}

func (f *fakeConverter) Cancel(jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelled = append(f.cancelled, jobID)
	return nil
}

func (f *fakeConverter) Active() []transcoder.ActiveJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]transcoder.ActiveJob(nil), f.active...)
}

type fakeHistory struct {
	records   map[string]*database.ConversionRecord
	list      []database.ConversionRecord
	err       error
	lastLimit int
}

func (f *fakeHistory) GetConversion(_ context.Context, id string) (*database.ConversionRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	rec, ok := f.records[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return rec, nil
}

func (f *fakeHistory) ListConversions(_ context.Context, limit int) ([]database.ConversionRecord, error) {
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.list, nil
}

type fakePreviews struct {
	data  []byte
	err   error
	at    float64
	width int
}

func (f *fakePreviews) Frame(_ context.Context, _ string, at float64, width int) ([]byte, error) {
	f.at, f.width = at, width
	return f.data, f.err
}

type testEnv struct {
	h         *Handlers
	router    *mux.Router
	prober    *fakeProber
	caps      *fakeCaps
	converter *fakeConverter
	history   *fakeHistory
	previews  *fakePreviews
	hub       *events.Hub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	duration := 120.0
	env := &testEnv{
		prober: &fakeProber{info: &media.MediaInfo{
			Duration: &duration, Width: 1920, Height: 1080,
			Container: "matroska,webm", VideoCodec: "h264",
		}},
		caps: &fakeCaps{
			caps: media.GpuCapabilities{NVENC: true, Probed: true},
			formats: []capability.Format{
				{Name: "mp4", Description: "MP4 (MPEG-4 Part 14)", Demux: true, Mux: true},
				{Name: "rtsp", Description: "RTSP input", Demux: true},
			},
		},
		converter: &fakeConverter{},
		history:   &fakeHistory{records: map[string]*database.ConversionRecord{}},
		previews:  &fakePreviews{data: []byte{0xFF, 0xD8, 0xFF}},
		hub:       events.NewHub(8),
	}
	env.h = New(Deps{
		Prober:       env.prober,
		Capabilities: env.caps,
		Converter:    env.converter,
		History:      env.history,
		Previews:     env.previews,
		Events:       env.hub,
		Tools:        capability.ToolStatus{FFmpeg: true, FFprobe: true, FFmpegVersion: "7.1"},
	})
	env.router = mux.NewRouter()
	env.h.RegisterRoutes(env.router)
	return env
}

func (e *testEnv) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode response: %v (body %q)", err, w.Body.String())
	}
}

// =============================================================================
// Health Tests
// =============================================================================

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.converter.active = []transcoder.ActiveJob{{ID: "a", State: transcoder.JobRunning}}

	w := env.do(http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var resp HealthResponse
	decodeBody(t, w, &resp)
	if resp.Status != statusHealthy || !resp.Ready {
		t.Errorf("Expected healthy and ready, got %q ready=%v", resp.Status, resp.Ready)
	}
	if resp.ActiveJobs != 1 {
		t.Errorf("Expected 1 active job, got %d", resp.ActiveJobs)
	}
	if resp.Tools.FFmpegVersion != "7.1" {
		t.Errorf("Expected ffmpeg version 7.1, got %q", resp.Tools.FFmpegVersion)
	}
}

func TestHealthCheckDegraded(t *testing.T) {
	t.Parallel()

	h := New(Deps{Tools: capability.ToolStatus{FFmpeg: true}})

	w := httptest.NewRecorder()
	h.HealthCheck(w, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", w.Code)
	}
	var resp HealthResponse
	decodeBody(t, w, &resp)
	if resp.Status != statusDegraded {
		t.Errorf("Expected status %q, got %q", statusDegraded, resp.Status)
	}
}

func TestLivenessAndReadiness(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		tools     capability.ToolStatus
		path      string
		method    string
		wantCode  int
		wantEmpty bool
	}{
		{"Liveness without tools", capability.ToolStatus{}, "/livez", http.MethodGet, http.StatusOK, false},
		{"Liveness HEAD", capability.ToolStatus{}, "/livez", http.MethodHead, http.StatusOK, true},
		{"Ready", capability.ToolStatus{FFmpeg: true, FFprobe: true}, "/readyz", http.MethodGet, http.StatusOK, false},
		{"Missing ffprobe", capability.ToolStatus{FFmpeg: true}, "/readyz", http.MethodGet, http.StatusServiceUnavailable, false},
		{"Missing ffmpeg", capability.ToolStatus{FFprobe: true}, "/readyz", http.MethodGet, http.StatusServiceUnavailable, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(Deps{Tools: tt.tools})
			r := mux.NewRouter()
			h.RegisterRoutes(r)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, http.NoBody))

			if w.Code != tt.wantCode {
				t.Errorf("Expected status %d, got %d", tt.wantCode, w.Code)
			}
			if tt.wantEmpty && w.Body.Len() != 0 {
				t.Errorf("Expected empty body, got %q", w.Body.String())
			}
		})
	}
}

// =============================================================================
// Capability Tests
// =============================================================================

func TestGetCapabilities(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	w := env.do(http.MethodGet, "/api/capabilities", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var caps media.GpuCapabilities
	decodeBody(t, w, &caps)
	if !caps.NVENC || !caps.Probed || caps.QSV {
		t.Errorf("Unexpected capabilities: %+v", caps)
	}
}

func TestGetFormats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		target   string
		expected []string
	}{
		{"Muxers only", "/api/formats", []string{"mp4"}},
		{"All formats", "/api/formats?all=true", []string{"mp4", "rtsp"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			w := env.do(http.MethodGet, tt.target, "")
			if w.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d", w.Code)
			}

			var formats []capability.Format
			decodeBody(t, w, &formats)
			if len(formats) != len(tt.expected) {
				t.Fatalf("Expected %d formats, got %d", len(tt.expected), len(formats))
			}
			for i, name := range tt.expected {
				if formats[i].Name != name {
					t.Errorf("Expected format %q at %d, got %q", name, i, formats[i].Name)
				}
			}
		})
	}
}

func TestGetFormatsUnavailable(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.caps.err = errors.New("exec: not found")

	w := env.do(http.MethodGet, "/api/formats", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", w.Code)
	}
}

// =============================================================================
// Probe Tests
// =============================================================================

func TestProbe(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "movie.mkv")
	if err := os.WriteFile(file, []byte("data"), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	env := newTestEnv(t)
	w := env.do(http.MethodPost, "/api/probe", fmt.Sprintf(`{"path":%q}`, file))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var info media.MediaInfo
	decodeBody(t, w, &info)
	if info.Path != file || info.Width != 1920 {
		t.Errorf("Unexpected media info: %+v", info)
	}
}

func TestProbeErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "movie.mkv")
	if err := os.WriteFile(file, []byte("data"), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	tests := []struct {
		name     string
		body     string
		probeErr error
		wantCode int
	}{
		{"Malformed body", `{"path":`, nil, http.StatusBadRequest},
		{"Missing path", `{}`, nil, http.StatusBadRequest},
		{"Missing file", fmt.Sprintf(`{"path":%q}`, filepath.Join(dir, "nope.mkv")), nil, http.StatusNotFound},
		{"Directory", fmt.Sprintf(`{"path":%q}`, dir), nil, http.StatusBadRequest},
		{"Tool unavailable", fmt.Sprintf(`{"path":%q}`, file), probe.ErrToolUnavailable, http.StatusServiceUnavailable},
		{"Execution failed", fmt.Sprintf(`{"path":%q}`, file), fmt.Errorf("wrapped: %w", probe.ErrExecutionFailed), http.StatusUnprocessableEntity},
		{"Malformed output", fmt.Sprintf(`{"path":%q}`, file), probe.ErrMalformedOutput, http.StatusBadGateway},
		{"Other error", fmt.Sprintf(`{"path":%q}`, file), errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.prober.err = tt.probeErr

			w := env.do(http.MethodPost, "/api/probe", tt.body)
			if w.Code != tt.wantCode {
				t.Errorf("Expected status %d, got %d: %s", tt.wantCode, w.Code, w.Body.String())
			}
		})
	}
}

// =============================================================================
// Conversion Tests
// =============================================================================

func TestStartConversion(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	body := `{"inputPath":"/in/a.mkv","outputPath":"/out/a.mp4","videoCodec":"libx264","audioStrategy":"copy_all"}`

	w := env.do(http.MethodPost, "/api/conversions", body)
	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d: %s", w.Code, w.Body.String())
	}

	var resp StartResponse
	decodeBody(t, w, &resp)
	if resp.ID != "job-1" {
		t.Errorf("Expected id job-1, got %q", resp.ID)
	}
	if resp.Events != "/api/conversions/job-1/events" {
		t.Errorf("Unexpected events URL %q", resp.Events)
	}
	if loc := w.Header().Get("Location"); loc != "/api/conversions/job-1" {
		t.Errorf("Unexpected Location %q", loc)
	}

	if len(env.converter.started) != 1 {
		t.Fatalf("Expected 1 started job, got %d", len(env.converter.started))
	}
	if env.converter.started[0].AudioStrategy != media.AudioCopyAll {
		t.Errorf("Expected audio strategy copy_all, got %q", env.converter.started[0].AudioStrategy)
	}
}

func TestStartConversionErrors(t *testing.T) {
	t.Parallel()

	valid := `{"inputPath":"/in/a.mkv","outputPath":"/out/a.mp4"}`

	tests := []struct {
		name     string
		body     string
		startErr error
		wantCode int
	}{
		{"Malformed body", `not json`, nil, http.StatusBadRequest},
		{"Unknown field", `{"input":"/in/a.mkv"}`, nil, http.StatusBadRequest},
		{"Invalid options", valid, fmt.Errorf("%w: input and output paths are required", transcoder.ErrInvalidOptions), http.StatusBadRequest},
		{"Duplicate id", valid, fmt.Errorf("%w: a", transcoder.ErrJobExists), http.StatusConflict},
		{"Shut down", valid, transcoder.ErrShutdown, http.StatusServiceUnavailable},
		{"Other error", valid, errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.converter.startErr = tt.startErr

			w := env.do(http.MethodPost, "/api/conversions", tt.body)
			if w.Code != tt.wantCode {
				t.Errorf("Expected status %d, got %d: %s", tt.wantCode, w.Code, w.Body.String())
			}
		})
	}
}

func TestListActive(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.converter.active = []transcoder.ActiveJob{
		{ID: "a", State: transcoder.JobRunning},
		{ID: "b", State: transcoder.JobQueued},
	}

	w := env.do(http.MethodGet, "/api/conversions", "")
	var jobs []transcoder.ActiveJob
	decodeBody(t, w, &jobs)
	if len(jobs) != 2 || jobs[1].State != transcoder.JobQueued {
		t.Errorf("Unexpected active jobs: %+v", jobs)
	}
}

func TestGetConversion(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.converter.active = []transcoder.ActiveJob{{ID: "live", State: transcoder.JobRunning}}
	env.history.records["done"] = &database.ConversionRecord{
		ID:     "done",
		Status: "success",
		Result: &media.ConversionResult{JobID: "done", Success: true},
	}

	w := env.do(http.MethodGet, "/api/conversions/live", "")
	var job transcoder.ActiveJob
	decodeBody(t, w, &job)
	if job.State != transcoder.JobRunning {
		t.Errorf("Expected running job, got %+v", job)
	}

	w = env.do(http.MethodGet, "/api/conversions/done", "")
	var rec database.ConversionRecord
	decodeBody(t, w, &rec)
	if rec.Result == nil || !rec.Result.Success {
		t.Errorf("Expected successful history record, got %+v", rec)
	}

	w = env.do(http.MethodGet, "/api/conversions/missing", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}

	env.history.err = errors.New("database is locked")
	w = env.do(http.MethodGet, "/api/conversions/other", "")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}
}

func TestCancelConversion(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	w := env.do(http.MethodDelete, "/api/conversions/abc", "")
	if w.Code != http.StatusAccepted {
		t.Errorf("Expected status 202, got %d", w.Code)
	}
	if len(env.converter.cancelled) != 1 || env.converter.cancelled[0] != "abc" {
		t.Errorf("Expected abc to be cancelled, got %v", env.converter.cancelled)
	}

	env.converter.cancelErr = fmt.Errorf("%w: abc", transcoder.ErrNotFound)
	w = env.do(http.MethodDelete, "/api/conversions/abc", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestGetHistory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		target    string
		wantCode  int
		wantLimit int
	}{
		{"Default limit", "/api/history", http.StatusOK, 0},
		{"Explicit limit", "/api/history?limit=10", http.StatusOK, 10},
		{"Invalid limit", "/api/history?limit=ten", http.StatusBadRequest, -1},
		{"Negative limit", "/api/history?limit=-1", http.StatusBadRequest, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.history.lastLimit = -1
			env.history.list = []database.ConversionRecord{{ID: "a"}}

			w := env.do(http.MethodGet, tt.target, "")
			if w.Code != tt.wantCode {
				t.Fatalf("Expected status %d, got %d", tt.wantCode, w.Code)
			}
			if env.history.lastLimit != tt.wantLimit {
				t.Errorf("Expected limit %d, got %d", tt.wantLimit, env.history.lastLimit)
			}
		})
	}
}

func TestGetHistoryWithoutStore(t *testing.T) {
	t.Parallel()

	h := New(Deps{})
	w := httptest.NewRecorder()
	h.GetHistory(w, httptest.NewRequest(http.MethodGet, "/api/history", http.NoBody))

	if body := strings.TrimSpace(w.Body.String()); body != "[]" {
		t.Errorf("Expected empty list, got %q", body)
	}
}

// =============================================================================
// Naming Tests
// =============================================================================

func TestGenerateFilenameHandler(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	body := `{"info":{"height":1080},"movie":{"title":"Blade Runner","releaseDate":"1982-06-25"},"ext":"mkv"}`

	w := env.do(http.MethodPost, "/api/filename", body)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp FilenameResponse
	decodeBody(t, w, &resp)
	if resp.Filename != "Blade Runner (1982) - 1080p.mkv" {
		t.Errorf("Unexpected filename %q", resp.Filename)
	}
}

func TestCleanTitleHandler(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/clean-title", `{"filename":"The.Matrix.1999.1080p.BluRay.x264-GROUP.mkv"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var parsed struct {
		Title string `json:"title"`
		Year  int    `json:"year"`
	}
	decodeBody(t, w, &parsed)
	if parsed.Title != "The Matrix" || parsed.Year != 1999 {
		t.Errorf("Unexpected parse result %+v", parsed)
	}

	w = env.do(http.MethodPost, "/api/clean-title", `{"filename":""}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

// =============================================================================
// Preview Tests
// =============================================================================

func TestGetPreview(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	w := env.do(http.MethodGet, "/api/preview?path=/in/a.mkv&at=12.5&width=640", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Expected image/jpeg, got %q", ct)
	}
	if w.Body.Len() != 3 {
		t.Errorf("Expected 3 bytes, got %d", w.Body.Len())
	}
	if env.previews.at != 12.5 || env.previews.width != 640 {
		t.Errorf("Expected at=12.5 width=640, got at=%v width=%d", env.previews.at, env.previews.width)
	}
}

func TestGetPreviewErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		target   string
		err      error
		wantCode int
	}{
		{"Missing path", "/api/preview", nil, http.StatusBadRequest},
		{"Bad offset", "/api/preview?path=a&at=soon", nil, http.StatusBadRequest},
		{"Negative offset", "/api/preview?path=a&at=-3", nil, http.StatusBadRequest},
		{"Bad width", "/api/preview?path=a&width=wide", nil, http.StatusBadRequest},
		{"Missing file", "/api/preview?path=a", fmt.Errorf("file not accessible: %w", os.ErrNotExist), http.StatusNotFound},
		{"No ffmpeg", "/api/preview?path=a", preview.ErrToolUnavailable, http.StatusServiceUnavailable},
		{"No frame", "/api/preview?path=a", preview.ErrNoFrame, http.StatusUnprocessableEntity},
		{"Other", "/api/preview?path=a", errors.New("decode failed"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.previews.err = tt.err

			w := env.do(http.MethodGet, tt.target, "")
			if w.Code != tt.wantCode {
				t.Errorf("Expected status %d, got %d", tt.wantCode, w.Code)
			}
		})
	}
}

// =============================================================================
// Routing Tests
// =============================================================================

func TestRoutesRejectWrongMethod(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/probe"},
		{http.MethodPut, "/api/conversions"},
		{http.MethodPost, "/api/history"},
		{http.MethodPost, "/api/conversions/abc"},
	}

	for _, tt := range tests {
		w := env.do(tt.method, tt.path, "")
		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s: expected status 405, got %d", tt.method, tt.path, w.Code)
		}
	}
}

func TestRoutesUnknownPath(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	w := env.do(http.MethodGet, "/api/unknown", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

// waitFor polls cond until it is true or the timeout passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("Timed out waiting for condition")
}

package transcoder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"media-converter/internal/media"
)

const streamScript = `
printf 'ffmpeg version test\n' >&2
printf 'Input #0, matroska,webm, from in.mkv:\n' >&2
printf 'frame=   50 fps= 25 q=28.0 size=     100kB time=00:00:02.00 bitrate= 409.6kbits/s speed=1.0x\r' >&2
sleep 0.2
printf 'frame=   90 fps= 25 q=28.0 size=     180kB time=00:00:03.60 bitrate= 409.6kbits/s speed=1.0x\r' >&2
printf '\n' >&2
exit 0
`

type progressRecorder struct {
	mu     sync.Mutex
	events []media.ConversionProgress
}

func (r *progressRecorder) record(p media.ConversionProgress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, p)
}

func (r *progressRecorder) snapshot() []media.ConversionProgress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]media.ConversionProgress(nil), r.events...)
}

func newTestManager(t *testing.T, ffmpeg string) *Manager {
	t.Helper()
	m := NewManager(Config{
		FFmpegPath:       ffmpeg,
		WorkDir:          t.TempDir(),
		Workers:          1,
		ProgressInterval: 20 * time.Millisecond,
		PollInterval:     20 * time.Millisecond,
		CancelGrace:      2 * time.Second,
	})
	t.Cleanup(m.Cleanup)
	return m
}

func testOptions(id string) media.ConversionOptions {
	return media.ConversionOptions{
		ID:          id,
		InputPath:   "/media/in.mkv",
		OutputPath:  "/media/out.mp4",
		TotalFrames: 100,
	}
}

// =============================================================================
// Convert Tests
// =============================================================================

func TestConvert_StreamSuccess(t *testing.T) {
	m := newTestManager(t, writeScript(t, streamScript))
	rec := &progressRecorder{}

	result, err := m.Convert(context.Background(), testOptions("ok"), rec.record)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if !result.Success || result.Reason != media.ReasonNone {
		t.Errorf("Expected success, got %+v", result)
	}
	if result.OutputPath != "/media/out.mp4" {
		t.Errorf("Expected output path, got %q", result.OutputPath)
	}
	if result.ExitCode != 0 || result.Duration <= 0 {
		t.Errorf("Unexpected exit code or duration: %+v", result)
	}

	events := rec.snapshot()
	if len(events) < 2 {
		t.Fatalf("Expected progress events, got %d", len(events))
	}
	for i := 1; i < len(events); i++ {
		if events[i].Progress < events[i-1].Progress {
			t.Errorf("Progress decreased at event %d: %v -> %v", i, events[i-1].Progress, events[i].Progress)
		}
	}
	for _, e := range events[:len(events)-1] {
		if e.Progress >= 1 {
			t.Errorf("Expected 100%% only on the final event, got %+v", e)
		}
	}
	if final := events[len(events)-1]; final.Progress != 1 || final.JobID != "ok" {
		t.Errorf("Expected final 100%% event, got %+v", final)
	}
	if m.Supervisor().Registry().Len() != 0 {
		t.Error("Expected registry to be empty after Convert")
	}
}

func TestConvert_ExecutionFailure(t *testing.T) {
	script := writeScript(t, `
printf 'frame=   10 fps= 25 q=28.0 size=     10kB time=00:00:00.40 bitrate= 204.8kbits/s speed=1.0x\r' >&2
printf "Unknown encoder 'libnope'\n" >&2
exit 1`)
	m := newTestManager(t, script)
	rec := &progressRecorder{}

	result, err := m.Convert(context.Background(), testOptions("bad"), rec.record)
	if err == nil {
		t.Fatal("Expected an error")
	}
	if !errors.Is(err, ErrExecutionFailed) {
		t.Errorf("Expected ErrExecutionFailed, got %v", err)
	}
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("Expected *ExitError, got %T", err)
	}
	if exitErr.ExitCode != 1 || !strings.Contains(exitErr.Diagnostics, "Unknown encoder") {
		t.Errorf("Unexpected exit error: %+v", exitErr)
	}
	if exitErr.Diagnostics != "Unknown encoder 'libnope'" {
		t.Errorf("Expected progress lines kept out of diagnostics, got %q", exitErr.Diagnostics)
	}

	if result.Success || result.Reason != media.ReasonExecution || result.ExitCode != 1 {
		t.Errorf("Unexpected result: %+v", result)
	}
	if !strings.Contains(result.Error, "Unknown encoder") {
		t.Errorf("Expected diagnostics in result error, got %q", result.Error)
	}
	for _, e := range rec.snapshot() {
		if e.Progress >= 1 {
			t.Errorf("Failed job must not report 100%%: %+v", e)
		}
	}
}

func TestConvert_Sidecar(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "sidecar-path")
	script := writeScript(t, fmt.Sprintf(`
out=""
prev=""
for a in "$@"; do
  if [ "$prev" = "-progress" ]; then out="$a"; fi
  prev="$a"
done
echo "$out" > %q
printf 'frame=40\nfps=20.00\nbitrate= 100.0kbits/s\nout_time_us=2000000\nspeed=1.0x\nprogress=continue\n' > "$out"
sleep 0.2
printf 'frame=100\nfps=20.00\nbitrate= 100.0kbits/s\nout_time_us=5000000\nspeed=1.0x\nprogress=end\n' > "$out"
exit 0`, marker))

	m := newTestManager(t, script)
	rec := &progressRecorder{}

	opts := testOptions("side")
	opts.ProgressMode = media.ProgressSidecar
	result, err := m.Convert(context.Background(), opts, rec.record)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if !result.Success {
		t.Errorf("Expected success, got %+v", result)
	}

	data, err := os.ReadFile(marker)
	if err != nil {
		t.Fatalf("Script did not record the progress path: %v", err)
	}
	sidecar := strings.TrimSpace(string(data))
	if sidecar == "" || !strings.HasSuffix(sidecar, ".progress") {
		t.Fatalf("Expected a -progress argument, got %q", sidecar)
	}
	if _, err := os.Stat(sidecar); !os.IsNotExist(err) {
		t.Errorf("Expected progress file removed, stat returned %v", err)
	}

	events := rec.snapshot()
	if len(events) == 0 {
		t.Fatal("Expected progress events from the sidecar")
	}
	if events[0].Frame != 40 && events[0].Frame != 100 {
		t.Errorf("Unexpected first frame %d", events[0].Frame)
	}
	if final := events[len(events)-1]; final.Progress != 1 {
		t.Errorf("Expected final 100%% event, got %+v", final)
	}
}

func TestConvert_SidecarRemovedOnFailure(t *testing.T) {
	m := newTestManager(t, writeScript(t, `exit 2`))

	opts := testOptions("side-fail")
	opts.ProgressMode = media.ProgressSidecar
	if _, err := m.Convert(context.Background(), opts, nil); err == nil {
		t.Fatal("Expected failure")
	}

	entries, err := os.ReadDir(m.cfg.WorkDir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected empty work directory, found %d entries", len(entries))
	}
}

func TestConvert_Cancel(t *testing.T) {
	m := newTestManager(t, writeScript(t, `exec sleep 30`))

	type outcome struct {
		result *media.ConversionResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		r, err := m.Convert(context.Background(), testOptions("stop-me"), nil)
		done <- outcome{r, err}
	}()

	waitForRegistered(t, m.Supervisor().Registry(), "stop-me")
	if err := m.Cancel("stop-me"); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	var out outcome
	select {
	case out = <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Convert did not return after Cancel")
	}

	if !errors.Is(out.err, ErrCancelled) {
		t.Errorf("Expected ErrCancelled, got %v", out.err)
	}
	if out.result.Reason != media.ReasonCancelled || out.result.Error != media.StoppedByUser {
		t.Errorf("Expected user-cancelled result, got %+v", out.result)
	}
	if !out.result.Cancelled() || out.result.Success {
		t.Error("Expected result flagged as cancelled")
	}
	if m.Supervisor().Registry().Len() != 0 {
		t.Error("Expected registry entry removed after cancellation")
	}
	if err := m.Cancel("stop-me"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for a finished job, got %v", err)
	}
}

func TestConvert_ContextCancel(t *testing.T) {
	m := newTestManager(t, writeScript(t, `exec sleep 30`))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan *media.ConversionResult, 1)
	go func() {
		r, _ := m.Convert(ctx, testOptions("ctx"), nil)
		done <- r
	}()

	waitForRegistered(t, m.Supervisor().Registry(), "ctx")
	cancel()

	select {
	case r := <-done:
		if r.Reason != media.ReasonCancelled {
			t.Errorf("Expected cancelled result, got %+v", r)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Convert ignored context cancellation")
	}
}

func TestConvert_AlreadyCancelledContext(t *testing.T) {
	m := newTestManager(t, writeScript(t, `exit 0`))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := m.Convert(ctx, testOptions("early"), nil)
	if !errors.Is(err, ErrCancelled) || result.Reason != media.ReasonCancelled {
		t.Errorf("Expected cancellation before spawn, got %+v / %v", result, err)
	}
}

func TestConvert_ToolUnavailable(t *testing.T) {
	m := newTestManager(t, filepath.Join(t.TempDir(), "missing-ffmpeg"))

	result, err := m.Convert(context.Background(), testOptions("nope"), nil)
	if !errors.Is(err, ErrToolUnavailable) {
		t.Errorf("Expected ErrToolUnavailable, got %v", err)
	}
	if result == nil || result.Reason != media.ReasonToolUnavailable {
		t.Errorf("Expected tool_unavailable result, got %+v", result)
	}
	if m.Supervisor().Registry().Len() != 0 {
		t.Error("Expected no registry entry")
	}
}

func TestConvert_InvalidOptions(t *testing.T) {
	m := newTestManager(t, "ffmpeg")

	tests := []struct {
		name string
		opts media.ConversionOptions
	}{
		{"missing id", media.ConversionOptions{InputPath: "a.mkv", OutputPath: "b.mp4"}},
		{"same paths", media.ConversionOptions{ID: "x", InputPath: "a.mkv", OutputPath: "a.mkv"}},
		{"explicit audio without index", media.ConversionOptions{ID: "x", InputPath: "a.mkv", OutputPath: "b.mp4", AudioStrategy: media.AudioExplicitIndex}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := m.Convert(context.Background(), tt.opts, nil)
			if err == nil || result != nil {
				t.Errorf("Expected validation error and no result, got %+v / %v", result, err)
			}
		})
	}
}

// =============================================================================
// Source probing Tests
// =============================================================================

type fakeProber struct {
	mu    sync.Mutex
	info  *media.MediaInfo
	err   error
	calls int
}

func (p *fakeProber) Probe(_ context.Context, path string) (*media.MediaInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	info := *p.info
	info.Path = path
	return &info, nil
}

// argsScript records its arguments one per line in a file and exits 0.
func argsScript(t *testing.T) (script, argsFile string) {
	argsFile = filepath.Join(t.TempDir(), "args")
	script = writeScript(t, fmt.Sprintf(`for a in "$@"; do printf '%%s\n' "$a"; done > %q
exit 0`, argsFile))
	return script, argsFile
}

func readArgs(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Script did not record its arguments: %v", err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func burnInOptions(id string, index int) media.ConversionOptions {
	opts := testOptions(id)
	opts.SubtitleStrategy = media.SubtitleBurnIn
	opts.SubtitleTrackIndex = &index
	return opts
}

func TestConvert_ProbesSourceForBurnIn(t *testing.T) {
	script, argsFile := argsScript(t)
	prober := &fakeProber{info: &media.MediaInfo{
		VideoStreamIndex: 0,
		SubtitleTracks:   []media.SubtitleTrack{{Index: 3}, {Index: 5}},
	}}
	m := NewManager(Config{FFmpegPath: script, WorkDir: t.TempDir(), Workers: 1, Prober: prober})
	t.Cleanup(m.Cleanup)

	result, err := m.Convert(context.Background(), burnInOptions("burn", 5), nil)
	if err != nil || !result.Success {
		t.Fatalf("Expected success, got %+v / %v", result, err)
	}
	if prober.calls != 1 {
		t.Errorf("Expected one probe, got %d", prober.calls)
	}

	var vf string
	args := readArgs(t, argsFile)
	for i := 0; i < len(args)-1; i++ {
		if args[i] == "-vf" {
			vf = args[i+1]
		}
	}
	if !strings.HasSuffix(vf, ":si=1") {
		t.Errorf("Expected the second subtitle stream to be burned in, got %q", vf)
	}
}

func TestConvert_BurnInTrackNeedsSource(t *testing.T) {
	tests := []struct {
		name   string
		prober Prober
	}{
		{"no prober", nil},
		{"probe failed", &fakeProber{err: errors.New("ffprobe exploded")}},
		{"track missing", &fakeProber{info: &media.MediaInfo{SubtitleTracks: []media.SubtitleTrack{{Index: 2}}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			script, argsFile := argsScript(t)
			m := NewManager(Config{FFmpegPath: script, WorkDir: t.TempDir(), Workers: 1, Prober: tt.prober})
			t.Cleanup(m.Cleanup)

			result, err := m.Convert(context.Background(), burnInOptions("burn", 5), nil)
			if !errors.Is(err, ErrInvalidOptions) {
				t.Errorf("Expected ErrInvalidOptions, got %v", err)
			}
			if result == nil || result.Success || result.Reason != media.ReasonExecution {
				t.Errorf("Expected a failed result, got %+v", result)
			}
			if _, statErr := os.Stat(argsFile); !os.IsNotExist(statErr) {
				t.Error("Expected ffmpeg not to be started")
			}
		})
	}
}

func TestConvert_ProbedTotalsDriveProgress(t *testing.T) {
	frames := int64(100)
	prober := &fakeProber{info: &media.MediaInfo{VideoStreamIndex: 0, TotalFrames: &frames}}
	m := NewManager(Config{
		FFmpegPath:       writeScript(t, streamScript),
		WorkDir:          t.TempDir(),
		Workers:          1,
		ProgressInterval: 20 * time.Millisecond,
		Prober:           prober,
	})
	t.Cleanup(m.Cleanup)

	opts := testOptions("totals")
	opts.TotalFrames = 0
	rec := &progressRecorder{}
	if _, err := m.Convert(context.Background(), opts, rec.record); err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	events := rec.snapshot()
	if len(events) < 2 {
		t.Fatalf("Expected progress events, got %d", len(events))
	}
	if events[0].Progress != 0.5 {
		t.Errorf("Expected frame 50 of 100 to be 50%%, got %v", events[0].Progress)
	}
}

func TestConvert_ProbeFailureKeepsConverting(t *testing.T) {
	prober := &fakeProber{err: errors.New("ffprobe exploded")}
	m := NewManager(Config{FFmpegPath: writeScript(t, `exit 0`), WorkDir: t.TempDir(), Workers: 1, Prober: prober})
	t.Cleanup(m.Cleanup)

	result, err := m.Convert(context.Background(), testOptions("no-probe"), nil)
	if err != nil || !result.Success {
		t.Errorf("Expected success without probe data, got %+v / %v", result, err)
	}
}

func TestConvert_SourceSkipsProbe(t *testing.T) {
	prober := &fakeProber{info: &media.MediaInfo{}}
	m := NewManager(Config{FFmpegPath: writeScript(t, `exit 0`), WorkDir: t.TempDir(), Workers: 1, Prober: prober})
	t.Cleanup(m.Cleanup)

	opts := testOptions("has-source")
	opts.Source = &media.MediaInfo{VideoStreamIndex: 0}
	if _, err := m.Convert(context.Background(), opts, nil); err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if prober.calls != 0 {
		t.Errorf("Expected no probe when the source is known, got %d", prober.calls)
	}
}

// =============================================================================
// Start / async Tests
// =============================================================================

type fakeEvents struct {
	mu       sync.Mutex
	progress []media.ConversionProgress
	results  chan media.ConversionResult
}

func newFakeEvents() *fakeEvents {
	return &fakeEvents{results: make(chan media.ConversionResult, 10)}
}

func (f *fakeEvents) PublishProgress(p media.ConversionProgress) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progress = append(f.progress, p)
}

func (f *fakeEvents) PublishResult(r media.ConversionResult) {
	f.results <- r
}

type fakeHistory struct {
	mu      sync.Mutex
	started []string
	results []string
}

func (h *fakeHistory) RecordStart(_ context.Context, opts media.ConversionOptions) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.started = append(h.started, opts.ID)
	return nil
}

func (h *fakeHistory) RecordResult(_ context.Context, r *media.ConversionResult) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.results = append(h.results, r.JobID+":"+r.Reason.Status())
	return nil
}

func awaitResult(t *testing.T, events *fakeEvents) media.ConversionResult {
	t.Helper()
	select {
	case r := <-events.results:
		return r
	case <-time.After(10 * time.Second):
		t.Fatal("No result published")
		return media.ConversionResult{}
	}
}

func TestStart_PublishesAndRecords(t *testing.T) {
	events := newFakeEvents()
	history := &fakeHistory{}
	m := NewManager(Config{
		FFmpegPath:       writeScript(t, streamScript),
		WorkDir:          t.TempDir(),
		Workers:          2,
		ProgressInterval: 20 * time.Millisecond,
		Events:           events,
		History:          history,
	})
	defer m.Cleanup()

	opts := testOptions("")
	id, err := m.Start(opts)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if id == "" {
		t.Fatal("Expected a generated id")
	}

	r := awaitResult(t, events)
	if r.JobID != id || !r.Success {
		t.Errorf("Expected success for %s, got %+v", id, r)
	}

	events.mu.Lock()
	n := len(events.progress)
	events.mu.Unlock()
	if n == 0 {
		t.Error("Expected progress to be published")
	}

	history.mu.Lock()
	defer history.mu.Unlock()
	if len(history.started) != 1 || history.started[0] != id {
		t.Errorf("Expected start recorded, got %v", history.started)
	}
	if len(history.results) != 1 || history.results[0] != id+":success" {
		t.Errorf("Expected result recorded, got %v", history.results)
	}
	if len(m.Active()) != 0 {
		t.Errorf("Expected no active jobs, got %v", m.Active())
	}
}

func TestStart_RejectsDuplicatesAndInvalid(t *testing.T) {
	m := NewManager(Config{FFmpegPath: writeScript(t, `exec sleep 30`), WorkDir: t.TempDir(), Workers: 1})
	defer m.Cleanup()

	if _, err := m.Start(testOptions("same")); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := m.Start(testOptions("same")); !errors.Is(err, ErrJobExists) {
		t.Errorf("Expected ErrJobExists, got %v", err)
	}

	bad := testOptions("bad")
	bad.OutputPath = bad.InputPath
	if _, err := m.Start(bad); !errors.Is(err, ErrInvalidOptions) {
		t.Errorf("Expected ErrInvalidOptions, got %v", err)
	}
}

func TestStart_CancelQueuedAndRunning(t *testing.T) {
	events := newFakeEvents()
	m := NewManager(Config{
		FFmpegPath:  writeScript(t, `exec sleep 30`),
		WorkDir:     t.TempDir(),
		Workers:     1,
		CancelGrace: 2 * time.Second,
		Events:      events,
	})
	defer m.Cleanup()

	if _, err := m.Start(testOptions("first")); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitForRegistered(t, m.Supervisor().Registry(), "first")

	if _, err := m.Start(testOptions("second")); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	active := m.Active()
	if len(active) != 2 {
		t.Fatalf("Expected 2 active jobs, got %v", active)
	}
	states := map[string]JobState{}
	for _, j := range active {
		states[j.ID] = j.State
	}
	if states["first"] != JobRunning || states["second"] != JobQueued {
		t.Errorf("Unexpected states: %v", states)
	}

	if err := m.Cancel("second"); err != nil {
		t.Fatalf("Cancel of queued job failed: %v", err)
	}
	r := awaitResult(t, events)
	if r.JobID != "second" || r.Reason != media.ReasonCancelled {
		t.Errorf("Expected queued job cancelled, got %+v", r)
	}
	if _, ok := m.Supervisor().Registry().Get("second"); ok {
		t.Error("Queued job must never be spawned")
	}

	if err := m.Cancel("first"); err != nil {
		t.Fatalf("Cancel of running job failed: %v", err)
	}
	r = awaitResult(t, events)
	if r.JobID != "first" || r.Reason != media.ReasonCancelled || r.Error != media.StoppedByUser {
		t.Errorf("Expected running job cancelled, got %+v", r)
	}

	if err := m.Cancel("nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestCleanup_StopsEverything(t *testing.T) {
	events := newFakeEvents()
	m := NewManager(Config{FFmpegPath: writeScript(t, `exec sleep 30`), WorkDir: t.TempDir(), Workers: 1, Events: events})
	t.Cleanup(m.Cleanup)

	for _, id := range []string{"a", "b"} {
		if _, err := m.Start(testOptions(id)); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
	}
	waitForRegistered(t, m.Supervisor().Registry(), "a")

	m.Cleanup()

	for i := 0; i < 2; i++ {
		if r := awaitResult(t, events); r.Reason != media.ReasonCancelled {
			t.Errorf("Expected cancelled result at shutdown, got %+v", r)
		}
	}
	if _, err := m.Start(testOptions("late")); err == nil {
		t.Error("Expected Start to fail after Cleanup")
	}
	if m.Supervisor().Registry().Len() != 0 {
		t.Error("Expected no processes left after Cleanup")
	}
}

func TestStart_RunsJobsInOrder(t *testing.T) {
	events := newFakeEvents()
	m := NewManager(Config{
		FFmpegPath:  writeScript(t, `exec sleep 30`),
		WorkDir:     t.TempDir(),
		Workers:     1,
		CancelGrace: 2 * time.Second,
		Events:      events,
	})
	t.Cleanup(m.Cleanup)

	ids := []string{"first", "second", "third"}
	for _, id := range ids {
		if _, err := m.Start(testOptions(id)); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
	}
	waitForRegistered(t, m.Supervisor().Registry(), "first")

	active := m.Active()
	if len(active) != len(ids) {
		t.Fatalf("Expected %d active jobs, got %v", len(ids), active)
	}
	for i, j := range active {
		if j.ID != ids[i] {
			t.Errorf("Expected %s at position %d, got %s", ids[i], i, j.ID)
		}
	}

	if err := m.Cancel("first"); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if r := awaitResult(t, events); r.JobID != "first" {
		t.Errorf("Expected first to finish, got %+v", r)
	}
	waitForRegistered(t, m.Supervisor().Registry(), "second")
	if _, ok := m.Supervisor().Registry().Get("third"); ok {
		t.Error("Expected third to wait behind second")
	}
}

// =============================================================================
// Sidecar cleanup Tests
// =============================================================================

func TestCleanupSidecars(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(Config{FFmpegPath: "ffmpeg", WorkDir: dir})
	defer m.Cleanup()

	files := map[string]string{
		"job-123.progress": "frame=1\n",
		"job-456.progress": "frame=22\nprogress=end\n",
		"output.mp4":       "not a sidecar",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	freed, err := m.CleanupSidecars()
	if err != nil {
		t.Fatalf("CleanupSidecars failed: %v", err)
	}
	expected := int64(len(files["job-123.progress"]) + len(files["job-456.progress"]))
	if freed != expected {
		t.Errorf("Expected %d bytes freed, got %d", expected, freed)
	}
	if _, err := os.Stat(filepath.Join(dir, "output.mp4")); err != nil {
		t.Error("Expected unrelated files to be kept")
	}
	if _, err := os.Stat(filepath.Join(dir, "job-123.progress")); !os.IsNotExist(err) {
		t.Error("Expected stale progress file removed")
	}
}

func TestCleanupSidecars_MissingDir(t *testing.T) {
	m := NewManager(Config{WorkDir: filepath.Join(t.TempDir(), "absent")})
	defer m.Cleanup()

	freed, err := m.CleanupSidecars()
	if err != nil || freed != 0 {
		t.Errorf("Expected (0, nil), got (%d, %v)", freed, err)
	}
}

// =============================================================================
// Helpers
// =============================================================================

func TestLineTail(t *testing.T) {
	tail := newLineTail(3)
	for _, line := range []string{"one", "", "  two  ", "three", "four"} {
		tail.Add(line)
	}
	if got := tail.String(); got != "two\nthree\nfour" {
		t.Errorf("Expected last three lines, got %q", got)
	}
}

func TestExitError(t *testing.T) {
	tests := []struct {
		err      *ExitError
		expected string
	}{
		{&ExitError{ExitCode: 1, Diagnostics: "bad input"}, "ffmpeg exited with code 1: bad input"},
		{&ExitError{ExitCode: 69}, "ffmpeg exited with code 69"},
		{&ExitError{ExitCode: -1}, "ffmpeg was terminated by a signal"},
	}

	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.expected {
			t.Errorf("Expected %q, got %q", tt.expected, got)
		}
		if !errors.Is(tt.err, ErrExecutionFailed) {
			t.Error("Expected ExitError to match ErrExecutionFailed")
		}
	}
}

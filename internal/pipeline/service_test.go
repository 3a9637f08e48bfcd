package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mgpai22/vidsrt/internal/jobs"
	"github.com/mgpai22/vidsrt/internal/logging"
	"github.com/mgpai22/vidsrt/internal/media"
	"github.com/mgpai22/vidsrt/internal/subtitle"
	"github.com/mgpai22/vidsrt/internal/transcribe"
)

// returns canned segments, or segments keyed by media file name
type fakeEngine struct {
	mu       sync.Mutex
	segments []subtitle.Segment
	byName   map[string][]subtitle.Segment
	err      error
	requests []transcribe.Request
}

func (f *fakeEngine) Transcribe(ctx context.Context, req transcribe.Request) (*transcribe.Result, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	segs := f.segments
	if f.byName != nil {
		for suffix, s := range f.byName {
			if strings.HasSuffix(req.MediaPath, suffix) {
				segs = s
			}
		}
	}
	return &transcribe.Result{Segments: segs, Language: req.Language}, nil
}

type fakeProber struct {
	err error
}

func (p fakeProber) RequireAudio(ctx context.Context, path string) (*media.Info, error) {
	return &media.Info{}, p.err
}

type testEnv struct {
	svc    *Service
	dir    string
	engine *fakeEngine
	store  *jobs.Store
	logs   *observer.ObservedLogs
}

func newTestEnv(t *testing.T, prober Prober) *testEnv {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "uploads")
	store, err := jobs.Open(context.Background(), filepath.Join(dir, "jobs.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	langs, err := transcribe.NewLanguages("en", "km")
	if err != nil {
		t.Fatalf("languages: %v", err)
	}

	core, logs := observer.New(zap.DebugLevel)
	logger := logging.FromCore(core)

	engine := &fakeEngine{}
	svc := NewService(
		Options{UploadDir: dir, Languages: langs, Timeout: time.Minute, Prober: prober},
		store,
		NewConverter(engine, nil, logger),
		logger,
	)
	return &testEnv{svc: svc, dir: dir, engine: engine, store: store, logs: logs}
}

func (e *testEnv) upload(t *testing.T, name, selector string) jobs.Job {
	t.Helper()
	job, err := e.svc.Upload(context.Background(), name, selector, strings.NewReader("fake video bytes"))
	if err != nil {
		t.Fatalf("Upload(%q) failed: %v", name, err)
	}
	return job
}

func TestUpload(t *testing.T) {
	env := newTestEnv(t, nil)

	job := env.upload(t, "My Talk.MP4", "secondary")

	if !jobIDPattern.MatchString(job.ID) {
		t.Errorf("job ID %q is not 8 hex characters", job.ID)
	}
	if job.OriginalName != "My_Talk.mp4" || job.Language != "km" || job.Status != jobs.StatusUploaded {
		t.Errorf("unexpected job: %+v", job)
	}

	data, err := os.ReadFile(filepath.Join(env.dir, job.ID+"_My_Talk.mp4"))
	if err != nil {
		t.Fatalf("stored video missing: %v", err)
	}
	if string(data) != "fake video bytes" {
		t.Errorf("stored content = %q", data)
	}

	stored, err := env.store.Get(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("job not persisted: %v", err)
	}
	if stored.OriginalName != job.OriginalName {
		t.Errorf("persisted name = %q", stored.OriginalName)
	}

	if env.logs.FilterMessage("video uploaded").Len() != 1 {
		t.Error("expected one upload log entry")
	}
}

func TestUploadRejects(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	tests := []struct {
		name     string
		filename string
		selector string
		want     error
	}{
		{"empty filename", "", "primary", ErrNoFile},
		{"audio file", "song.mp3", "primary", ErrUnsupportedType},
		{"no extension", "video", "primary", ErrUnsupportedType},
		{"unknown language", "clip.mp4", "fr", transcribe.ErrUnsupportedLanguage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Upload(ctx, tt.filename, tt.selector, strings.NewReader("x"))
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
		})
	}

	entries, _ := os.ReadDir(env.dir)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".mp4") || strings.HasSuffix(e.Name(), ".mp3") {
			t.Errorf("rejected upload left file %s behind", e.Name())
		}
	}
}

func TestUploadWithoutAudio(t *testing.T) {
	env := newTestEnv(t, fakeProber{err: media.ErrNoAudio})

	_, err := env.svc.Upload(context.Background(), "silent.mp4", "", strings.NewReader("x"))
	if !errors.Is(err, media.ErrNoAudio) {
		t.Fatalf("error = %v, want ErrNoAudio", err)
	}

	entries, _ := os.ReadDir(env.dir)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), "silent.mp4") {
			t.Errorf("file %s should have been removed", e.Name())
		}
	}
}

func TestUploadProbeFailureIsTolerated(t *testing.T) {
	env := newTestEnv(t, fakeProber{err: errors.New("ffprobe: executable file not found")})

	if _, err := env.svc.Upload(context.Background(), "clip.mp4", "", strings.NewReader("x")); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if env.logs.FilterMessage("could not probe upload, accepting it anyway").Len() != 1 {
		t.Error("expected a probe warning")
	}
}

func TestTranscribe(t *testing.T) {
	env := newTestEnv(t, nil)
	env.engine.segments = []subtitle.Segment{
		{Start: 0, End: 2, Text: "Hello.."},
		{Start: 1.5, End: 1.5, Text: " world... "},
	}
	job := env.upload(t, "talk.mp4", "secondary")

	outcome, err := env.svc.Transcribe(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}

	if len(env.engine.requests) != 1 || env.engine.requests[0].Language != "km" {
		t.Errorf("engine requests = %+v, want one km request", env.engine.requests)
	}

	if outcome.Job.Status != jobs.StatusCompleted {
		t.Errorf("status = %q", outcome.Job.Status)
	}
	if outcome.Job.SubtitleName != "talk_km_synced.srt" {
		t.Errorf("subtitle name = %q", outcome.Job.SubtitleName)
	}
	if outcome.LanguageName != "Khmer" {
		t.Errorf("language name = %q", outcome.LanguageName)
	}
	wantStats := subtitle.Stats{Count: 2, Duration: 2.5, AverageDuration: 1.25}
	if outcome.Stats != wantStats {
		t.Errorf("stats = %+v, want %+v", outcome.Stats, wantStats)
	}

	_, path, err := env.svc.SubtitlePath(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("SubtitlePath failed: %v", err)
	}
	if filepath.Base(path) != job.ID+"_talk_km_synced.srt" {
		t.Errorf("subtitle path = %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read subtitle: %v", err)
	}
	want := "1\n00:00:00,000 --> 00:00:02,000\nHello.\n\n" +
		"2\n00:00:01,500 --> 00:00:02,500\nworld…\n\n"
	if string(data) != want {
		t.Errorf("subtitle content:\n%q\nwant:\n%q", data, want)
	}

	if _, err := os.Stat(filepath.Join(env.dir, job.VideoName())); !os.IsNotExist(err) {
		t.Errorf("video should be deleted after transcription, stat err = %v", err)
	}

	stored, _ := env.store.Get(context.Background(), job.ID)
	if stored.Status != jobs.StatusCompleted || stored.CueCount != 2 || stored.Duration != 2.5 {
		t.Errorf("persisted job = %+v", stored)
	}

	// the video is gone, so a second run cannot proceed
	if _, err := env.svc.Transcribe(context.Background(), job.ID); !errors.Is(err, ErrVideoNotFound) {
		t.Errorf("second Transcribe error = %v, want ErrVideoNotFound", err)
	}
}

func TestTranscribeSilentVideo(t *testing.T) {
	env := newTestEnv(t, nil)
	job := env.upload(t, "quiet.webm", "")

	outcome, err := env.svc.Transcribe(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if outcome.Stats != (subtitle.Stats{}) {
		t.Errorf("stats = %+v, want zero", outcome.Stats)
	}

	_, path, err := env.svc.SubtitlePath(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("SubtitlePath failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil || info.Size() != 0 {
		t.Errorf("expected empty subtitle file, got %v / %v", info, err)
	}
}

func TestTranscribeEngineFailureKeepsVideo(t *testing.T) {
	env := newTestEnv(t, nil)
	env.engine.err = errors.New("engine unavailable")
	job := env.upload(t, "talk.mp4", "")

	_, err := env.svc.Transcribe(context.Background(), job.ID)
	if err == nil || !strings.Contains(err.Error(), "engine unavailable") {
		t.Fatalf("error = %v, want engine failure", err)
	}

	if _, err := os.Stat(filepath.Join(env.dir, job.VideoName())); err != nil {
		t.Errorf("video should be kept after a failure: %v", err)
	}

	stored, _ := env.store.Get(context.Background(), job.ID)
	if stored.Status != jobs.StatusFailed || !strings.Contains(stored.ErrorMessage, "engine unavailable") {
		t.Errorf("persisted job = %+v", stored)
	}
	if env.logs.FilterMessage("transcription failed").Len() != 1 {
		t.Error("expected a failure log entry")
	}

	if _, _, err := env.svc.SubtitlePath(context.Background(), job.ID); !errors.Is(err, ErrSubtitleNotFound) {
		t.Errorf("SubtitlePath error = %v, want ErrSubtitleNotFound", err)
	}

	// retry succeeds once the engine recovers
	env.engine.err = nil
	env.engine.segments = []subtitle.Segment{{Start: 0, End: 1, Text: "ok"}}
	if _, err := env.svc.Transcribe(context.Background(), job.ID); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
}

func TestTranscribeMalformedSegment(t *testing.T) {
	env := newTestEnv(t, nil)
	env.engine.segments = []subtitle.Segment{
		{Start: 0, End: 1, Text: "fine"},
		{Start: math.NaN(), End: 2, Text: "broken"},
	}
	job := env.upload(t, "talk.mp4", "")

	_, err := env.svc.Transcribe(context.Background(), job.ID)
	var malformed *subtitle.MalformedSegmentError
	if !errors.As(err, &malformed) {
		t.Fatalf("error = %v, want *MalformedSegmentError", err)
	}
	if malformed.Index != 1 || malformed.Field != "start" {
		t.Errorf("malformed = %+v", malformed)
	}

	entries, _ := os.ReadDir(env.dir)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".srt") {
			t.Errorf("no subtitle should be written, found %s", e.Name())
		}
	}
}

func TestTranscribeUnknownJob(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, id := range []string{"0000ffff", "../../etc", "ABCDEF12", ""} {
		if _, err := env.svc.Transcribe(context.Background(), id); !errors.Is(err, ErrJobNotFound) {
			t.Errorf("Transcribe(%q) error = %v, want ErrJobNotFound", id, err)
		}
	}
}

func TestTranscribeBusyJob(t *testing.T) {
	env := newTestEnv(t, nil)
	job := env.upload(t, "talk.mp4", "")

	lock, err := jobs.TryLock(env.dir, job.ID)
	if err != nil {
		t.Fatalf("TryLock failed: %v", err)
	}
	defer lock.Release()

	if _, err := env.svc.Transcribe(context.Background(), job.ID); !errors.Is(err, ErrJobBusy) {
		t.Errorf("Transcribe error = %v, want ErrJobBusy", err)
	}
	if err := env.svc.Cleanup(context.Background(), job.ID); !errors.Is(err, ErrJobBusy) {
		t.Errorf("Cleanup error = %v, want ErrJobBusy", err)
	}
}

func TestConcurrentJobsAreIsolated(t *testing.T) {
	env := newTestEnv(t, nil)
	env.engine.byName = map[string][]subtitle.Segment{
		"_first.mp4":  {{Start: 0, End: 1, Text: "first video"}},
		"_second.mp4": {{Start: 0, End: 1, Text: "second video"}},
	}

	a := env.upload(t, "first.mp4", "primary")
	b := env.upload(t, "second.mp4", "secondary")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{a.ID, b.ID} {
		wg.Go(func() {
			_, errs[i] = env.svc.Transcribe(context.Background(), id)
		})
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("transcribe %d failed: %v", i, err)
		}
	}

	for id, want := range map[string]string{a.ID: "first video", b.ID: "second video"} {
		_, path, err := env.svc.SubtitlePath(context.Background(), id)
		if err != nil {
			t.Fatalf("SubtitlePath(%s): %v", id, err)
		}
		data, _ := os.ReadFile(path)
		if !strings.Contains(string(data), want) {
			t.Errorf("job %s subtitle = %q, want text %q", id, data, want)
		}
	}
}

func TestCleanup(t *testing.T) {
	env := newTestEnv(t, nil)
	env.engine.segments = []subtitle.Segment{{Start: 0, End: 1, Text: "hi"}}

	job := env.upload(t, "talk.mp4", "")
	keep := env.upload(t, "other.mp4", "")
	if _, err := env.svc.Transcribe(context.Background(), job.ID); err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}

	if err := env.svc.Cleanup(context.Background(), job.ID); err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}

	entries, _ := os.ReadDir(env.dir)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), job.ID) {
			t.Errorf("file %s survived cleanup", e.Name())
		}
	}
	if _, err := os.Stat(filepath.Join(env.dir, keep.VideoName())); err != nil {
		t.Errorf("other job's video was removed: %v", err)
	}
	if _, err := env.svc.Job(context.Background(), job.ID); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("Job after cleanup error = %v, want ErrJobNotFound", err)
	}

	// cleaning again is fine
	if err := env.svc.Cleanup(context.Background(), job.ID); err != nil {
		t.Errorf("second Cleanup failed: %v", err)
	}
}

func TestPrune(t *testing.T) {
	env := newTestEnv(t, nil)
	first := env.upload(t, "a.mp4", "")
	second := env.upload(t, "b.mp4", "")

	n, err := env.svc.Prune(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if n != 0 {
		t.Errorf("pruned %d fresh jobs, want 0", n)
	}

	n, err = env.svc.Prune(context.Background(), -time.Minute)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if n != 2 {
		t.Errorf("pruned %d jobs, want 2", n)
	}
	for _, job := range []jobs.Job{first, second} {
		if _, err := os.Stat(filepath.Join(env.dir, job.VideoName())); !os.IsNotExist(err) {
			t.Errorf("video for %s not pruned", job.ID)
		}
	}
}

func TestNewJobID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := newJobID()
		if !jobIDPattern.MatchString(id) {
			t.Fatalf("newJobID() = %q, want 8 hex characters", id)
		}
		seen[id] = true
	}
	if len(seen) < 99 {
		t.Errorf("only %d distinct IDs in 100 draws", len(seen))
	}
}

func TestCreateVideoFileRetriesOnCollision(t *testing.T) {
	env := newTestEnv(t, nil)
	ids := []string{"aaaaaaaa", "aaaaaaaa", "bbbbbbbb"}
	calls := 0
	env.svc.newID = func() string {
		id := ids[calls]
		calls++
		return id
	}

	first := env.upload(t, "clip.mp4", "")
	second := env.upload(t, "clip.mp4", "")

	if first.ID != "aaaaaaaa" || second.ID != "bbbbbbbb" {
		t.Errorf("ids = %s, %s; want aaaaaaaa, bbbbbbbb", first.ID, second.ID)
	}
	if calls != 3 {
		t.Errorf("newID called %d times, want 3", calls)
	}
}

func TestServiceMessagesUseJobID(t *testing.T) {
	env := newTestEnv(t, nil)
	job := env.upload(t, "talk.mp4", "")

	entry := env.logs.FilterMessage("video uploaded").All()[0]
	if got := entry.ContextMap()["job"]; got != job.ID {
		t.Errorf("log job field = %v, want %s", got, job.ID)
	}
	if got := fmt.Sprint(entry.ContextMap()["bytes"]); got != "16" {
		t.Errorf("log bytes field = %v, want 16", got)
	}
}

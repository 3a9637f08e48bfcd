package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mgpai22/vidsrt/internal/jobs"
	"github.com/mgpai22/vidsrt/internal/logging"
	"github.com/mgpai22/vidsrt/internal/media"
	"github.com/mgpai22/vidsrt/internal/metrics"
	"github.com/mgpai22/vidsrt/internal/subtitle"
	"github.com/mgpai22/vidsrt/internal/transcribe"
)

// JobStore persists job records.
type JobStore interface {
	Create(ctx context.Context, job jobs.Job) (jobs.Job, error)
	Get(ctx context.Context, id string) (jobs.Job, error)
	Update(ctx context.Context, job jobs.Job) (jobs.Job, error)
	Delete(ctx context.Context, id string) error
	ListBefore(ctx context.Context, cutoff time.Time) ([]jobs.Job, error)
}

// Prober rejects uploads without an audio stream.
type Prober interface {
	RequireAudio(ctx context.Context, path string) (*media.Info, error)
}

// Outcome is the result of a successful transcription.
type Outcome struct {
	Job          jobs.Job
	Stats        subtitle.Stats
	LanguageName string
}

type Options struct {
	UploadDir string
	Languages transcribe.Languages
	Timeout   time.Duration // per transcription, 0 for none
	Prober    Prober        // nil skips probing
}

// Service owns the upload directory and the job lifecycle. Jobs are
// addressed only by their opaque ID; concurrent calls on the same job are
// serialized by a file lock and rejected with ErrJobBusy.
type Service struct {
	dir       string
	store     JobStore
	converter *Converter
	languages transcribe.Languages
	timeout   time.Duration
	prober    Prober
	logger    *logging.Logger
	newID     func() string
}

func NewService(opts Options, store JobStore, converter *Converter, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Service{
		dir:       opts.UploadDir,
		store:     store,
		converter: converter,
		languages: opts.Languages,
		timeout:   opts.Timeout,
		prober:    opts.Prober,
		logger:    logger,
		newID:     newJobID,
	}
}

var jobIDPattern = regexp.MustCompile(`^[0-9a-f]{8}$`)

func newJobID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func (s *Service) checkID(id string) error {
	if !jobIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrJobNotFound, id)
	}
	return nil
}

// Upload stores a video and registers a job for it. selector picks the
// transcription language ("primary", "secondary" or a configured code).
func (s *Service) Upload(ctx context.Context, filename, selector string, r io.Reader) (jobs.Job, error) {
	if strings.TrimSpace(filename) == "" {
		return jobs.Job{}, ErrNoFile
	}
	if !media.IsVideoFile(filename) {
		return jobs.Job{}, fmt.Errorf("%w: %s", ErrUnsupportedType, filepath.Ext(filename))
	}

	code, err := s.languages.Resolve(selector)
	if err != nil {
		return jobs.Job{}, err
	}

	job := jobs.Job{
		OriginalName: media.StoredName(filename),
		Language:     code,
	}

	file, err := s.createVideoFile(&job)
	if err != nil {
		return jobs.Job{}, err
	}
	path := file.Name()

	written, err := io.Copy(file, r)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		s.removeFile(path)
		return jobs.Job{}, fmt.Errorf("store upload: %w", err)
	}

	if s.prober != nil {
		if _, err := s.prober.RequireAudio(ctx, path); err != nil {
			if errors.Is(err, media.ErrNoAudio) {
				s.removeFile(path)
				return jobs.Job{}, err
			}
			s.logger.Warnw("could not probe upload, accepting it anyway", "job", job.ID, "error", err)
		}
	}

	job, err = s.store.Create(ctx, job)
	if err != nil {
		s.removeFile(path)
		return jobs.Job{}, fmt.Errorf("register job: %w", err)
	}

	metrics.UploadsTotal.Inc()
	metrics.UploadBytesTotal.Add(float64(written))
	s.logger.Infow("video uploaded",
		"job", job.ID,
		"name", job.OriginalName,
		"language", job.Language,
		"bytes", written,
	)
	return job, nil
}

// picks a fresh ID and creates the video file exclusively
func (s *Service) createVideoFile(job *jobs.Job) (*os.File, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	const attempts = 3
	for i := 0; i < attempts; i++ {
		job.ID = s.newID()
		file, err := os.OpenFile(
			filepath.Join(s.dir, job.VideoName()),
			os.O_CREATE|os.O_EXCL|os.O_WRONLY,
			0o644,
		)
		if err == nil {
			return file, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("create upload file: %w", err)
		}
	}
	return nil, fmt.Errorf("could not allocate a job ID after %d attempts", attempts)
}

// Transcribe runs the engine on a job's video, writes the subtitle file and
// deletes the video. On failure the video is kept so the job can be retried.
func (s *Service) Transcribe(ctx context.Context, id string) (Outcome, error) {
	if err := s.checkID(id); err != nil {
		return Outcome{}, err
	}

	lock, err := s.lock(id)
	if err != nil {
		return Outcome{}, err
	}
	defer s.unlock(lock, id)

	job, err := s.get(ctx, id)
	if err != nil {
		return Outcome{}, err
	}

	videoPath := filepath.Join(s.dir, job.VideoName())
	if _, err := os.Stat(videoPath); err != nil {
		if os.IsNotExist(err) {
			return Outcome{}, fmt.Errorf("%w: job %s", ErrVideoNotFound, id)
		}
		return Outcome{}, fmt.Errorf("stat video: %w", err)
	}

	job.Status = jobs.StatusTranscribing
	job.ErrorMessage = ""
	if job, err = s.store.Update(ctx, job); err != nil {
		return Outcome{}, fmt.Errorf("mark job transcribing: %w", err)
	}

	runCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	s.logger.Infow("transcription started", "job", id, "language", job.Language)

	segments, err := s.converter.Convert(runCtx, videoPath, job.Language)
	if err != nil {
		s.fail(ctx, job, err)
		return Outcome{}, err
	}

	job.SubtitleName = job.DefaultSubtitleName()
	if err := subtitle.WriteSRTFile(filepath.Join(s.dir, job.SubtitleFileName()), segments); err != nil {
		s.fail(ctx, job, err)
		return Outcome{}, err
	}

	stats := subtitle.Summarize(segments)
	job.Status = jobs.StatusCompleted
	job.CueCount = stats.Count
	job.Duration = stats.Duration
	if job, err = s.store.Update(context.WithoutCancel(ctx), job); err != nil {
		return Outcome{}, fmt.Errorf("mark job completed: %w", err)
	}

	s.removeFile(videoPath)

	elapsed := time.Since(start)
	metrics.TranscriptionsTotal.WithLabelValues(string(jobs.StatusCompleted)).Inc()
	metrics.TranscriptionDuration.Observe(elapsed.Seconds())
	metrics.CuesWrittenTotal.Add(float64(stats.Count))
	s.logger.Infow("transcription completed",
		"job", id,
		"cues", stats.Count,
		"duration", stats.Duration,
		"elapsed", elapsed.Round(time.Millisecond),
	)

	return Outcome{
		Job:          job,
		Stats:        stats,
		LanguageName: transcribe.DisplayName(job.Language),
	}, nil
}

func (s *Service) fail(ctx context.Context, job jobs.Job, cause error) {
	metrics.TranscriptionsTotal.WithLabelValues(string(jobs.StatusFailed)).Inc()
	s.logger.Errorw("transcription failed", "job", job.ID, "error", cause)

	job.Status = jobs.StatusFailed
	job.SubtitleName = ""
	job.ErrorMessage = cause.Error()
	if _, err := s.store.Update(context.WithoutCancel(ctx), job); err != nil {
		s.logger.Warnw("could not record failure", "job", job.ID, "error", err)
	}
}

// Languages returns the two languages uploads can select.
func (s *Service) Languages() transcribe.Languages {
	return s.languages
}

// Job returns the current record for id.
func (s *Service) Job(ctx context.Context, id string) (jobs.Job, error) {
	if err := s.checkID(id); err != nil {
		return jobs.Job{}, err
	}
	return s.get(ctx, id)
}

// SubtitlePath returns the job and the path of its subtitle file.
func (s *Service) SubtitlePath(ctx context.Context, id string) (jobs.Job, string, error) {
	job, err := s.Job(ctx, id)
	if err != nil {
		return jobs.Job{}, "", err
	}
	if job.Status != jobs.StatusCompleted || job.SubtitleName == "" {
		return jobs.Job{}, "", fmt.Errorf("%w: job %s is %s", ErrSubtitleNotFound, id, job.Status)
	}

	path := filepath.Join(s.dir, job.SubtitleFileName())
	if _, err := os.Stat(path); err != nil {
		return jobs.Job{}, "", fmt.Errorf("%w: %s", ErrSubtitleNotFound, job.SubtitleFileName())
	}
	return job, path, nil
}

// Cleanup removes every file belonging to id and its record. Cleaning an
// unknown job succeeds.
func (s *Service) Cleanup(ctx context.Context, id string) error {
	if err := s.checkID(id); err != nil {
		return err
	}

	lock, err := s.lock(id)
	if err != nil {
		return err
	}
	defer s.unlock(lock, id)

	removed, err := s.removeJobFiles(id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	// lock files outlive Release and go with the job
	s.removeFile(jobs.LockPath(s.dir, id))

	metrics.CleanupsTotal.Inc()
	s.logger.Infow("job cleaned up", "job", id, "files", removed)
	return nil
}

// Prune cleans up jobs not updated within maxAge. Busy jobs are skipped.
func (s *Service) Prune(ctx context.Context, maxAge time.Duration) (int, error) {
	stale, err := s.store.ListBefore(ctx, time.Now().Add(-maxAge))
	if err != nil {
		return 0, err
	}

	pruned := 0
	for _, job := range stale {
		if err := s.Cleanup(ctx, job.ID); err != nil {
			if errors.Is(err, ErrJobBusy) {
				continue
			}
			return pruned, fmt.Errorf("prune job %s: %w", job.ID, err)
		}
		pruned++
	}
	return pruned, nil
}

func (s *Service) get(ctx context.Context, id string) (jobs.Job, error) {
	job, err := s.store.Get(ctx, id)
	if errors.Is(err, jobs.ErrNotFound) {
		return jobs.Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return job, err
}

func (s *Service) lock(id string) (*jobs.Lock, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	lock, err := jobs.TryLock(s.dir, id)
	if errors.Is(err, jobs.ErrLocked) {
		return nil, fmt.Errorf("%w: %s", ErrJobBusy, id)
	}
	return lock, err
}

func (s *Service) unlock(lock *jobs.Lock, id string) {
	if err := lock.Release(); err != nil {
		s.logger.Warnw("could not release job lock", "job", id, "error", err)
	}
}

func (s *Service) removeJobFiles(id string) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read upload dir: %w", err)
	}

	removed := 0
	prefix := id + "_"
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("remove %s: %w", entry.Name(), err)
		}
		removed++
	}
	return removed, nil
}

func (s *Service) removeFile(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warnw("could not remove file", "path", path, "error", err)
	}
}

package api

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mgpai22/vidsrt/internal/jobs"
	"github.com/mgpai22/vidsrt/internal/logging"
	"github.com/mgpai22/vidsrt/internal/media"
	"github.com/mgpai22/vidsrt/internal/pipeline"
	"github.com/mgpai22/vidsrt/internal/subtitle"
	"github.com/mgpai22/vidsrt/internal/transcribe"
)

// parts of the form above this size spill to temp files
const multipartMemory = 8 << 20

// Pipeline is the job lifecycle the handlers drive.
type Pipeline interface {
	Upload(ctx context.Context, filename, selector string, r io.Reader) (jobs.Job, error)
	Transcribe(ctx context.Context, id string) (pipeline.Outcome, error)
	Job(ctx context.Context, id string) (jobs.Job, error)
	SubtitlePath(ctx context.Context, id string) (jobs.Job, string, error)
	Cleanup(ctx context.Context, id string) error
	Languages() transcribe.Languages
}

type Handler struct {
	pipeline       Pipeline
	maxUploadBytes int64
	log            *logging.Logger
}

func NewHandler(p Pipeline, maxUploadBytes int64, log *logging.Logger) *Handler {
	if log == nil {
		log = logging.Nop()
	}
	return &Handler{
		pipeline:       p,
		maxUploadBytes: maxUploadBytes,
		log:            log.Named("api"),
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/languages", h.Languages)
	r.Post("/process", h.Upload)
	r.Get("/transcribe/{fileID}", h.Transcribe)
	r.Post("/transcribe/{fileID}", h.Transcribe)
	r.Get("/download/{fileID}", h.Download)
	r.Get("/cleanup/{fileID}", h.Cleanup)
	r.Get("/jobs/{fileID}", h.GetJob)
	r.Delete("/jobs/{fileID}", h.Cleanup)
}

// Upload handles POST /process.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		WriteError(w, http.StatusBadRequest, "Invalid upload form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("video")
	if err != nil {
		// browsers send an empty file input as a plain field
		if _, ok := r.MultipartForm.Value["video"]; ok {
			WriteError(w, http.StatusBadRequest, "No file selected")
			return
		}
		WriteError(w, http.StatusBadRequest, "No video file provided")
		return
	}
	defer file.Close()

	job, err := h.pipeline.Upload(r.Context(), header.Filename, r.FormValue("language"), file)
	if err != nil {
		switch {
		case errors.Is(err, pipeline.ErrNoFile):
			WriteError(w, http.StatusBadRequest, "No file selected")
		case errors.Is(err, pipeline.ErrUnsupportedType):
			WriteError(w, http.StatusBadRequest, "File type not supported. Please upload: "+strings.Join(media.AllowedExtensions(), ", "))
		case errors.Is(err, transcribe.ErrUnsupportedLanguage):
			WriteError(w, http.StatusBadRequest, "Unsupported language")
		case errors.Is(err, media.ErrNoAudio):
			WriteError(w, http.StatusBadRequest, "Video has no audio track")
		default:
			h.log.Errorw("upload failed", "filename", header.Filename, "error", err)
			WriteError(w, http.StatusInternalServerError, "Upload failed")
		}
		return
	}

	WriteJSON(w, http.StatusOK, uploadResponse{
		Success: true,
		Message: "Video uploaded successfully",
		FileID:  job.ID,
	})
}

// Transcribe handles GET and POST /transcribe/{fileID}.
func (h *Handler) Transcribe(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "fileID")

	outcome, err := h.pipeline.Transcribe(r.Context(), id)
	if err != nil {
		var malformed *subtitle.MalformedSegmentError
		switch {
		case errors.Is(err, pipeline.ErrJobNotFound):
			WriteError(w, http.StatusNotFound, "Job not found")
		case errors.Is(err, pipeline.ErrVideoNotFound):
			WriteError(w, http.StatusNotFound, "Video file not found")
		case errors.Is(err, pipeline.ErrJobBusy):
			WriteError(w, http.StatusConflict, "Job is already being processed")
		case errors.As(err, &malformed):
			h.log.Errorw("engine returned malformed output", "job", id, "error", err)
			WriteError(w, http.StatusBadGateway, "Transcription service returned invalid data")
		default:
			h.log.Errorw("transcription failed", "job", id, "error", err)
			WriteError(w, http.StatusInternalServerError, "Transcription failed")
		}
		return
	}

	WriteJSON(w, http.StatusOK, transcribeResponse{
		Success:     true,
		SRTFilename: outcome.Job.SubtitleName,
		Statistics:  newStatistics(outcome.LanguageName, outcome.Stats),
	})
}

// Download handles GET /download/{fileID}.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "fileID")

	job, path, err := h.pipeline.SubtitlePath(r.Context(), id)
	if err != nil {
		if errors.Is(err, pipeline.ErrJobNotFound) || errors.Is(err, pipeline.ErrSubtitleNotFound) {
			WriteError(w, http.StatusNotFound, "SRT file not found")
			return
		}
		h.log.Errorw("download lookup failed", "job", id, "error", err)
		WriteError(w, http.StatusInternalServerError, "Download failed")
		return
	}

	f, err := os.Open(path)
	if err != nil {
		WriteError(w, http.StatusNotFound, "SRT file not found")
		return
	}
	defer f.Close()

	modTime := job.UpdatedAt
	if info, err := f.Stat(); err == nil {
		modTime = info.ModTime()
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": job.SubtitleName,
	}))
	http.ServeContent(w, r, job.SubtitleName, modTime, f)
}

// Cleanup handles GET /cleanup/{fileID} and DELETE /jobs/{fileID}.
func (h *Handler) Cleanup(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "fileID")

	if err := h.pipeline.Cleanup(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, pipeline.ErrJobNotFound):
			WriteError(w, http.StatusNotFound, "Job not found")
		case errors.Is(err, pipeline.ErrJobBusy):
			WriteError(w, http.StatusConflict, "Job is already being processed")
		default:
			h.log.Errorw("cleanup failed", "job", id, "error", err)
			WriteError(w, http.StatusInternalServerError, "Cleanup failed")
		}
		return
	}
	WriteJSON(w, http.StatusOK, successResponse{Success: true})
}

// GetJob handles GET /jobs/{fileID}.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "fileID")

	job, err := h.pipeline.Job(r.Context(), id)
	if err != nil {
		if errors.Is(err, pipeline.ErrJobNotFound) {
			WriteError(w, http.StatusNotFound, "Job not found")
			return
		}
		h.log.Errorw("job lookup failed", "job", id, "error", err)
		WriteError(w, http.StatusInternalServerError, "Job lookup failed")
		return
	}

	resp := jobResponse{
		ID:           job.ID,
		Status:       string(job.Status),
		Filename:     job.OriginalName,
		Language:     job.Language,
		LanguageName: transcribe.DisplayName(job.Language),
		SRTFilename:  job.SubtitleName,
		CreatedAt:    job.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:    job.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if job.Status == jobs.StatusCompleted {
		stats := newStatistics(resp.LanguageName, subtitle.Stats{
			Count:    job.CueCount,
			Duration: job.Duration,
		})
		if job.CueCount > 0 {
			stats.AvgDuration = subtitle.Round(job.Duration/float64(job.CueCount), 2)
		}
		resp.Statistics = &stats
	}
	WriteJSON(w, http.StatusOK, resp)
}

// Languages lists the selectable transcription languages with their names.
func (h *Handler) Languages(w http.ResponseWriter, r *http.Request) {
	langs := h.pipeline.Languages()
	option := func(selector, code string) languageOption {
		return languageOption{Selector: selector, Code: code, Name: transcribe.DisplayName(code)}
	}
	WriteJSON(w, http.StatusOK, languagesResponse{
		Success: true,
		Languages: []languageOption{
			option(transcribe.SelectorPrimary, transcribe.EngineCode(langs.Primary)),
			option(transcribe.SelectorSecondary, transcribe.EngineCode(langs.Secondary)),
		},
	})
}

func newStatistics(languageName string, s subtitle.Stats) statistics {
	return statistics{
		Language:      languageName,
		Duration:      subtitle.Round(s.Duration, 1),
		SubtitleCount: s.Count,
		AvgDuration:   subtitle.Round(s.AverageDuration, 2),
	}
}

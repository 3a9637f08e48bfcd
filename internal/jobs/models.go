package jobs

import (
	"path/filepath"
	"strings"
	"time"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusUploaded     Status = "uploaded"
	StatusTranscribing Status = "transcribing"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
)

// Job is one uploaded video and, once transcribed, its subtitle file. Files
// live in the upload directory under names prefixed by the job ID.
type Job struct {
	ID           string
	OriginalName string // sanitized upload filename
	Language     string // engine language code
	Status       Status
	SubtitleName string // download name, empty until completed
	CueCount     int
	Duration     float64 // end of the last cue, seconds
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// VideoName is the stored video filename.
func (j Job) VideoName() string {
	return j.ID + "_" + j.OriginalName
}

// SubtitleFileName is the stored subtitle filename.
func (j Job) SubtitleFileName() string {
	return j.ID + "_" + j.SubtitleName
}

// DefaultSubtitleName derives the subtitle download name from the video
// name and language, e.g. "talk_en_synced.srt".
func (j Job) DefaultSubtitleName() string {
	stem := strings.TrimSuffix(j.OriginalName, filepath.Ext(j.OriginalName))
	return stem + "_" + j.Language + "_synced.srt"
}

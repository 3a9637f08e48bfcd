package pipeline

import "errors"

var (
	ErrNoFile           = errors.New("no file selected")
	ErrUnsupportedType  = errors.New("file type not supported")
	ErrJobNotFound      = errors.New("job not found")
	ErrVideoNotFound    = errors.New("video file not found")
	ErrSubtitleNotFound = errors.New("subtitle file not found")
	ErrJobBusy          = errors.New("job is being processed")
)

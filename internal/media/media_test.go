package media

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestIsVideoFile(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"clip.mp4", true},
		{"CLIP.MP4", true},
		{"movie.mkv", true},
		{"old.mpeg", true},
		{"dir/nested.webm", true},
		{"song.mp3", false},
		{"notes.txt", false},
		{"noext", false},
		{"archive.mp4.zip", false},
	}

	for _, tt := range tests {
		if got := IsVideoFile(tt.path); got != tt.want {
			t.Errorf("IsVideoFile(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestAllowedExtensions(t *testing.T) {
	got := strings.Join(AllowedExtensions(), ", ")
	want := "avi, flv, m4v, mkv, mov, mp4, mpeg, mpg, webm, wmv"
	if got != want {
		t.Errorf("AllowedExtensions() = %q, want %q", got, want)
	}
}

func TestMIMEType(t *testing.T) {
	if got := MIMEType("a.MOV"); got != "video/quicktime" {
		t.Errorf("MIMEType(a.MOV) = %q", got)
	}
	if got := MIMEType("a.bin"); got != "application/octet-stream" {
		t.Errorf("MIMEType(a.bin) = %q", got)
	}
}

func TestSecureFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"My cool movie.mov", "My_cool_movie.mov"},
		{"../../../etc/passwd", "etc_passwd"},
		{`..\..\windows\system32`, "windows_system32"},
		{"café.mp4", "cafe.mp4"},
		{"  spaced   out .mkv", "spaced_out_.mkv"},
		{"i contain cool ümläuts.txt", "i_contain_cool_umlauts.txt"},
		{".hidden", "hidden"},
		{"視頻", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := SecureFilename(tt.in); got != tt.want {
				t.Errorf("SecureFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestStoredName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Lecture 01.MP4", "Lecture_01.mp4"},
		{"視頻.mov", "video.mov"},
		{"../up/clip.webm", "up_clip.webm"},
	}

	for _, tt := range tests {
		if got := StoredName(tt.in); got != tt.want {
			t.Errorf("StoredName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseProbeOutput(t *testing.T) {
	out := `{
		"streams": [
			{"index": 0, "codec_type": "video", "codec_name": "h264", "width": 1280, "height": 720},
			{"index": 1, "codec_type": "audio", "codec_name": "aac", "sample_rate": "44100"}
		],
		"format": {"format_name": "mov,mp4,m4a,3gp,3g2,mj2", "duration": "12.500000"}
	}`

	info, err := parseProbeOutput(out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Duration != 12500*time.Millisecond {
		t.Errorf("Duration = %v, want 12.5s", info.Duration)
	}
	if !info.HasVideo || info.VideoCodec != "h264" || info.Width != 1280 || info.Height != 720 {
		t.Errorf("video stream = %+v", info)
	}
	if !info.HasAudio || info.AudioCodec != "aac" {
		t.Errorf("audio stream = %+v", info)
	}
}

func TestParseProbeOutputSilentVideo(t *testing.T) {
	info, err := parseProbeOutput(`{"streams": [{"codec_type": "video", "codec_name": "vp9"}], "format": {}}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.HasAudio {
		t.Error("HasAudio = true, want false")
	}
	if info.Duration != 0 {
		t.Errorf("Duration = %v, want 0", info.Duration)
	}
}

func TestParseProbeOutputErrors(t *testing.T) {
	if _, err := parseProbeOutput("not json"); err == nil {
		t.Error("expected error for invalid JSON")
	}
	if _, err := parseProbeOutput(`{"format": {"duration": "N/A"}}`); err == nil {
		t.Error("expected error for unparsable duration")
	}
}

func TestErrNoAudioIsSentinel(t *testing.T) {
	wrapped := errors.Join(errors.New("probe"), ErrNoAudio)
	if !errors.Is(wrapped, ErrNoAudio) {
		t.Error("ErrNoAudio should match through wrapping")
	}
}

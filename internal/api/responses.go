package api

import (
	"encoding/json"
	"net/http"
)

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ErrorResponse is the error body every endpoint returns.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, ErrorResponse{Error: msg})
}

type uploadResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	FileID  string `json:"file_id"`
}

type statistics struct {
	Language      string  `json:"language"`
	Duration      float64 `json:"duration"`
	SubtitleCount int     `json:"subtitle_count"`
	AvgDuration   float64 `json:"avg_duration"`
}

type transcribeResponse struct {
	Success     bool       `json:"success"`
	SRTFilename string     `json:"srt_filename"`
	Statistics  statistics `json:"statistics"`
}

type jobResponse struct {
	ID           string      `json:"id"`
	Status       string      `json:"status"`
	Filename     string      `json:"filename"`
	Language     string      `json:"language"`
	LanguageName string      `json:"language_name"`
	SRTFilename  string      `json:"srt_filename,omitempty"`
	Statistics   *statistics `json:"statistics,omitempty"`
	CreatedAt    string      `json:"created_at"`
	UpdatedAt    string      `json:"updated_at"`
}

type languageOption struct {
	Selector string `json:"selector"`
	Code     string `json:"code"`
	Name     string `json:"name"`
}

type languagesResponse struct {
	Success   bool             `json:"success"`
	Languages []languageOption `json:"languages"`
}

type successResponse struct {
	Success bool `json:"success"`
}

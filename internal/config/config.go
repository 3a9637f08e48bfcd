package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"golang.org/x/text/language"
)

const (
	ProviderOpenAI    = "openai"
	ProviderWhisper   = "whisper"
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

type Config struct {
	HTTPAddr     string        `env:"VIDSRT_HTTP_ADDR" envDefault:":5000"`
	ReadTimeout  time.Duration `env:"VIDSRT_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout time.Duration `env:"VIDSRT_WRITE_TIMEOUT" envDefault:"15m"`
	IdleTimeout  time.Duration `env:"VIDSRT_IDLE_TIMEOUT" envDefault:"120s"`

	UploadDir      string `env:"VIDSRT_UPLOAD_DIR" envDefault:"uploads"`
	DatabasePath   string `env:"VIDSRT_DB_PATH"`
	MaxUploadBytes int64  `env:"VIDSRT_MAX_UPLOAD_BYTES" envDefault:"52428800"`
	ProbeUploads   bool   `env:"VIDSRT_PROBE_UPLOADS" envDefault:"false"`

	// Jobs untouched for longer than this are removed; 0 disables.
	Retention time.Duration `env:"VIDSRT_RETENTION" envDefault:"24h"`

	// Transcription engine
	Provider          string        `env:"VIDSRT_PROVIDER" envDefault:"openai"`
	Model             string        `env:"VIDSRT_MODEL"`
	WhisperURL        string        `env:"VIDSRT_WHISPER_URL" envDefault:"http://localhost:8000/v1"`
	TranscribeTimeout time.Duration `env:"VIDSRT_TRANSCRIBE_TIMEOUT" envDefault:"10m"`
	Prompt            string        `env:"VIDSRT_PROMPT"`

	PrimaryLanguage   string `env:"VIDSRT_PRIMARY_LANGUAGE" envDefault:"en"`
	SecondaryLanguage string `env:"VIDSRT_SECONDARY_LANGUAGE" envDefault:"km"`

	// Optional cue translation; empty provider disables it
	TranslateProvider    string `env:"VIDSRT_TRANSLATE_PROVIDER"`
	TranslateModel       string `env:"VIDSRT_TRANSLATE_MODEL"`
	TranslateTo          string `env:"VIDSRT_TRANSLATE_TO"`
	TranslateBatchSize   int    `env:"VIDSRT_TRANSLATE_BATCH_SIZE" envDefault:"50"`
	TranslateConcurrency int    `env:"VIDSRT_TRANSLATE_CONCURRENCY" envDefault:"3"`

	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	GeminiAPIKey    string `env:"GEMINI_API_KEY"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`

	LogLevel string `env:"VIDSRT_LOG_LEVEL" envDefault:"info"`
}

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile           string
	HTTPAddr          string
	UploadDir         string
	DatabasePath      string
	Provider          string
	Model             string
	APIKey            string
	PrimaryLanguage   string
	SecondaryLanguage string
	TranslateProvider string
	TranslateTo       string
	LogLevel          string
}

// Load reads configuration from .env file, environment variables, and CLI overrides.
// Priority: CLI flags > environment variables > .env file > struct defaults.
func Load(overrides Overrides) (*Config, error) {
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	cfg.apply(overrides)

	if cfg.DatabasePath == "" {
		cfg.DatabasePath = filepath.Join(cfg.UploadDir, "jobs.db")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) apply(o Overrides) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.HTTPAddr, o.HTTPAddr)
	set(&c.UploadDir, o.UploadDir)
	set(&c.DatabasePath, o.DatabasePath)
	set(&c.Provider, o.Provider)
	set(&c.Model, o.Model)
	set(&c.PrimaryLanguage, o.PrimaryLanguage)
	set(&c.SecondaryLanguage, o.SecondaryLanguage)
	set(&c.TranslateProvider, o.TranslateProvider)
	set(&c.TranslateTo, o.TranslateTo)
	set(&c.LogLevel, o.LogLevel)

	if o.APIKey != "" {
		switch c.Provider {
		case ProviderGemini:
			c.GeminiAPIKey = o.APIKey
		default:
			c.OpenAIAPIKey = o.APIKey
		}
	}
}

// Validate checks values that env parsing cannot.
func (c *Config) Validate() error {
	var errs []error

	switch c.Provider {
	case ProviderOpenAI, ProviderWhisper, ProviderGemini:
	default:
		errs = append(errs, fmt.Errorf(
			"unsupported transcription provider %q: use openai, whisper, or gemini",
			c.Provider,
		))
	}

	switch c.TranslateProvider {
	case "", ProviderOpenAI, ProviderGemini, ProviderAnthropic:
	default:
		errs = append(errs, fmt.Errorf(
			"unsupported translation provider %q: use openai, gemini, or anthropic",
			c.TranslateProvider,
		))
	}

	primary, perr := language.Parse(c.PrimaryLanguage)
	if perr != nil {
		errs = append(errs, fmt.Errorf("invalid primary language %q: %w", c.PrimaryLanguage, perr))
	}
	secondary, serr := language.Parse(c.SecondaryLanguage)
	if serr != nil {
		errs = append(errs, fmt.Errorf("invalid secondary language %q: %w", c.SecondaryLanguage, serr))
	}
	if perr == nil && serr == nil && primary == secondary {
		errs = append(errs, fmt.Errorf(
			"primary and secondary language cannot both be %q",
			c.PrimaryLanguage,
		))
	}

	if c.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("max upload bytes must be positive, got %d", c.MaxUploadBytes))
	}
	if c.TranslateBatchSize <= 0 {
		errs = append(errs, fmt.Errorf("translate batch size must be positive, got %d", c.TranslateBatchSize))
	}
	if c.TranslateConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("translate concurrency must be positive, got %d", c.TranslateConcurrency))
	}
	if c.Retention < 0 {
		errs = append(errs, fmt.Errorf("retention must not be negative, got %s", c.Retention))
	}
	if strings.TrimSpace(c.UploadDir) == "" {
		errs = append(errs, errors.New("upload dir is required"))
	}

	return errors.Join(errs...)
}

// APIKey returns the credential for a provider name.
func (c *Config) APIKey(provider string) string {
	switch provider {
	case ProviderOpenAI, ProviderWhisper:
		return c.OpenAIAPIKey
	case ProviderGemini:
		return c.GeminiAPIKey
	case ProviderAnthropic:
		return c.AnthropicAPIKey
	default:
		return ""
	}
}

// EnsureDirectories creates the upload directory.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.UploadDir, 0o755); err != nil {
		return fmt.Errorf("create upload dir %s: %w", c.UploadDir, err)
	}
	return nil
}

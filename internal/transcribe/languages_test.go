package transcribe

import (
	"errors"
	"testing"
)

func TestLanguagesResolve(t *testing.T) {
	langs, err := NewLanguages("en", "km")
	if err != nil {
		t.Fatalf("NewLanguages returned error: %v", err)
	}

	tests := []struct {
		selector string
		want     string
		wantErr  bool
	}{
		{"", "en", false},
		{"primary", "en", false},
		{"Primary", "en", false},
		{"secondary", "km", false},
		{" secondary ", "km", false},
		{"en", "en", false},
		{"km", "km", false},
		{"KM", "km", false},
		{"fr", "", true},
		{"tertiary", "", true},
		{"not a tag", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.selector, func(t *testing.T) {
			got, err := langs.Resolve(tt.selector)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedLanguage) {
					t.Errorf("Resolve(%q) error = %v, want ErrUnsupportedLanguage", tt.selector, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve(%q) unexpected error: %v", tt.selector, err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.selector, got, tt.want)
			}
		})
	}
}

func TestLanguagesEngineCodeDropsRegion(t *testing.T) {
	langs, err := NewLanguages("en-US", "pt-BR")
	if err != nil {
		t.Fatalf("NewLanguages returned error: %v", err)
	}
	if got, _ := langs.Resolve("primary"); got != "en" {
		t.Errorf("primary = %q, want en", got)
	}
	if got, _ := langs.Resolve("secondary"); got != "pt" {
		t.Errorf("secondary = %q, want pt", got)
	}
}

func TestNewLanguagesInvalid(t *testing.T) {
	if _, err := NewLanguages("not a tag", "km"); err == nil {
		t.Error("expected error for invalid primary language")
	}
	if _, err := NewLanguages("en", "???"); err == nil {
		t.Error("expected error for invalid secondary language")
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"en", "English"},
		{"km", "Khmer"},
		{"fr", "French"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := DisplayName(tt.code); got != tt.want {
			t.Errorf("DisplayName(%q) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

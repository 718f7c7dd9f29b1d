package server

import (
	"errors"
	"strings"
	"testing"

	"vsnplyr/internal/apperr"
)

func TestValidateSearchQuery(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantError bool
	}{
		{"valid query", "test song", false},
		{"empty query", "", false},
		{"query too long", strings.Repeat("a", 1001), true},
		{"query with null byte", "test\x00song", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateSearchQuery(tt.query)
			if (err != nil) != tt.wantError {
				t.Errorf("validateSearchQuery() error = %v, wantError %v", err, tt.wantError)
			}
			if err != nil && !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("Expected a validation error, got %v", err)
			}
		})
	}
}

func TestRequireID(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		wantError bool
	}{
		{"present", "abc", false},
		{"empty", "", true},
		{"whitespace", "   ", true},
		{"null bytes only", "\x00\x00", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := requireID("playlistId", tt.value)
			if (err != nil) != tt.wantError {
				t.Errorf("requireID() error = %v, wantError %v", err, tt.wantError)
			}
			var ve *apperr.ValidationError
			if err != nil && (!errors.As(err, &ve) || ve.Field != "playlistId") {
				t.Errorf("Expected field playlistId, got %v", err)
			}
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"normal input", "normal input"},
		{"  spaced  ", "spaced"},
		{"null\x00byte", "nullbyte"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := sanitizeInput(tt.input); got != tt.expected {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes    int
		expected string
	}{
		{0, "0B"},
		{512, "< 1KB"},
		{2048, "2KB"},
		{3 * 1024 * 1024, "3MB"},
	}

	for _, tt := range tests {
		if got := formatBytes(tt.bytes); got != tt.expected {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.bytes, got, tt.expected)
		}
	}
}

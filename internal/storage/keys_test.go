package storage

import "testing"

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"in/race/photo.jpg", "in/race/photo.jpg"},
		{"  in/race/photo.jpg  ", "in/race/photo.jpg"},
		{"/in/race/photo.jpg", "in/race/photo.jpg"},
		{" /leading.jpg", "leading.jpg"},
		{"   ", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := NormalizeKey(tt.input); got != tt.expected {
				t.Errorf("NormalizeKey(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSanitizeOptionalFolder(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{"plain", "finish-line", "finish-line", false},
		{"nested", "day1/morning", "day1/morning", false},
		{"strips slashes", "/day1/morning/", "day1/morning", false},
		{"collapses slashes", "day1//morning", "day1/morning", false},
		{"backslash becomes slash", `day1\morning`, "day1/morning", false},
		{"empty", "", "", false},
		{"only slashes", "///", "", false},
		{"traversal", "../secrets", "", true},
		{"spaces", "day 1", "", true},
		{"invalid chars", "day1?*", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeOptionalFolder(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("SanitizeOptionalFolder(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		wantErr  bool
	}{
		{"photo.jpg", "photo.jpg", false},
		{"dir/photo.jpg", "photo.jpg", false},
		{`dir\photo.jpg`, "photo.jpg", false},
		{"  photo.jpg ", "photo.jpg", false},
		{"", "", true},
		{"   ", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := SanitizeFilename(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSanitizePathSegment(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		wantErr  bool
	}{
		{"spring-marathon", "spring-marathon", false},
		{"/spring-marathon/", "spring-marathon", false},
		{"spring marathon", "spring-marathon", false},
		{"čzech", "-zech", false},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := SanitizePathSegment(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("SanitizePathSegment(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

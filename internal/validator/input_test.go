package validator

import (
	"strings"
	"testing"
)

func TestInputValidator_Validate(t *testing.T) {
	v := NewInputValidator()

	tests := []struct {
		name    string
		query   string
		wantErr bool
	}{
		{"normal query", "write a hello world script", false},
		{"single character", "y", false},
		{"empty", "", true},
		{"whitespace only", "   \n\t ", true},
		{"too long", strings.Repeat("a", 8001), true},
		{"at limit", strings.Repeat("a", 8000), false},
		{"invalid utf8", "hello \xff world", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.query)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate(%q) error = %v, wantErr %v", tt.query, err, tt.wantErr)
			}
		})
	}
}

func TestInputValidator_SanitizeKeepsInternalWhitespace(t *testing.T) {
	v := NewInputValidator()

	got := v.Sanitize("  run this:\n  func main() {}\n  ")
	want := "run this:\n  func main() {}"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

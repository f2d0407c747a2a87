package docparse

import (
	"strings"
	"testing"
)

func TestParsePlainText(t *testing.T) {
	t.Parallel()

	p := New()
	text, err := p.Parse([]byte("Jane Doe\nBackend Engineer"), "resume.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(text, "Backend Engineer") {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestParseFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		data     []byte
		filename string
	}{
		{name: "unsupported extension", data: []byte("x"), filename: "resume.odt"},
		{name: "empty file", data: nil, filename: "resume.pdf"},
		{name: "corrupt pdf", data: []byte("definitely not a pdf"), filename: "resume.pdf"},
		{name: "corrupt docx", data: []byte("definitely not a zip"), filename: "resume.docx"},
	}

	p := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := p.Parse(tt.data, tt.filename)
			if err == nil {
				t.Fatal("expected error")
			}
			if !IsParseError(err) {
				t.Fatalf("expected ParseError, got %T: %v", err, err)
			}
		})
	}
}

func TestSupportedExtension(t *testing.T) {
	t.Parallel()

	tests := []struct {
		filename string
		want     bool
	}{
		{"resume.pdf", true},
		{"resume.PDF", true},
		{"resume.docx", true},
		{"resume.txt", true},
		{"resume.doc", false},
		{"resume", false},
	}

	for _, tt := range tests {
		if got := SupportedExtension(tt.filename); got != tt.want {
			t.Errorf("SupportedExtension(%q) = %v, want %v", tt.filename, got, tt.want)
		}
	}
}

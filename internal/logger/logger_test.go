package logger

import "testing"

func TestTruncate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		limit  int
		expect string
	}{
		{
			name:   "returns empty when limit non-positive",
			input:  "hello world",
			limit:  0,
			expect: "",
		},
		{
			name:   "shorter than limit",
			input:  "hello",
			limit:  10,
			expect: "hello",
		},
		{
			name:   "truncates and adds ellipsis",
			input:  "hello world",
			limit:  5,
			expect: "hello...",
		},
		{
			name:   "trims surrounding whitespace",
			input:  "  spaced  ",
			limit:  5,
			expect: "space...",
		},
		{
			name:   "multibyte safe",
			input:  "résumé screening",
			limit:  6,
			expect: "résumé...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Truncate(tt.input, tt.limit); got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	for _, json := range []bool{true, false} {
		for _, debug := range []bool{true, false} {
			logger, err := New(json, debug)
			if err != nil {
				t.Fatalf("New(%v, %v): %v", json, debug, err)
			}
			if logger == nil {
				t.Fatalf("New(%v, %v): nil logger", json, debug)
			}
		}
	}
}

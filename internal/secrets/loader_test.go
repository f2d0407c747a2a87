package secrets

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	secretFile := filepath.Join(dir, "token")
	if err := os.WriteFile(secretFile, []byte("  from-file\n"), 0o600); err != nil {
		t.Fatalf("write secret file: %v", err)
	}
	emptyFile := filepath.Join(dir, "empty")
	if err := os.WriteFile(emptyFile, []byte("   \n"), 0o600); err != nil {
		t.Fatalf("write empty file: %v", err)
	}

	t.Setenv("TALENTSIFT_TEST_SECRET", "from-env")

	tests := []struct {
		name    string
		src     Source
		want    string
		wantErr bool
	}{
		{
			name: "file takes precedence",
			src:  Source{Name: "token", File: secretFile, Value: "inline", Env: "TALENTSIFT_TEST_SECRET"},
			want: "from-file",
		},
		{
			name: "inline value",
			src:  Source{Name: "token", Value: " inline "},
			want: "inline",
		},
		{
			name: "environment fallback",
			src:  Source{Name: "token", Env: "TALENTSIFT_TEST_SECRET"},
			want: "from-env",
		},
		{
			name:    "empty file is an error",
			src:     Source{Name: "token", File: emptyFile},
			wantErr: true,
		},
		{
			name:    "missing file is an error",
			src:     Source{Name: "token", File: filepath.Join(dir, "nope")},
			wantErr: true,
		},
		{
			name:    "nothing configured",
			src:     Source{Name: "token"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Load(tt.src)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

package janitor

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func touch(t *testing.T, path string, age time.Duration) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	mtime := time.Now().Add(-age)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}
}

func TestSweep(t *testing.T) {
	t.Parallel()
	uploads, outputs := t.TempDir(), t.TempDir()
	touch(t, filepath.Join(uploads, "old.srt"), 48*time.Hour)
	touch(t, filepath.Join(uploads, "fresh.srt"), time.Minute)
	touch(t, filepath.Join(outputs, "old.de.srt"), 25*time.Hour)
	if err := os.Mkdir(filepath.Join(outputs, "nested"), 0o755); err != nil {
		t.Fatal(err)
	}

	j, err := New("@every 1h", 24*time.Hour, uploads, outputs, filepath.Join(uploads, "missing"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if n := j.Sweep(); n != 2 {
		t.Errorf("Sweep() removed %d files, want 2", n)
	}

	for _, p := range []string{filepath.Join(uploads, "old.srt"), filepath.Join(outputs, "old.de.srt")} {
		if _, err := os.Stat(p); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("%s should be removed", p)
		}
	}
	for _, p := range []string{filepath.Join(uploads, "fresh.srt"), filepath.Join(outputs, "nested")} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s should be kept: %v", p, err)
		}
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		schedule  string
		retention time.Duration
		wantErr   bool
	}{
		{"descriptor", "@every 30m", time.Hour, false},
		{"standard", "0 3 * * *", time.Hour, false},
		{"bad schedule", "not a schedule", time.Hour, true},
		{"zero retention", "@every 1h", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(tt.schedule, tt.retention, t.TempDir())
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStartStop(t *testing.T) {
	t.Parallel()
	j, err := New("@every 1h", time.Hour, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	j.Start()
	select {
	case <-j.Stop().Done():
	case <-time.After(time.Second):
		t.Error("Stop() did not finish")
	}
}

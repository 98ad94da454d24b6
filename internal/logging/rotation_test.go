package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNewRotatingWriter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "run.log")

	rw, err := NewRotatingWriter(path, DefaultRotationConfig())
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	defer func() { _ = rw.Close() }()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("log file not created: %v", err)
	}
	if rw.FilePath() != path {
		t.Errorf("FilePath() = %q, want %q", rw.FilePath(), path)
	}
}

func TestRotatingWriterAppendsToExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	if err := os.WriteFile(path, []byte("existing\n"), 0644); err != nil {
		t.Fatal(err)
	}

	rw, err := NewRotatingWriter(path, DefaultRotationConfig())
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	if rw.CurrentSize() != 9 {
		t.Errorf("CurrentSize() = %d, want 9", rw.CurrentSize())
	}
	if _, err := rw.Write([]byte("more\n")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	_ = rw.Close()

	content, _ := os.ReadFile(path)
	if string(content) != "existing\nmore\n" {
		t.Errorf("content = %q", content)
	}
}

func TestRotatingWriterRotation(t *testing.T) {
	tests := []struct {
		name       string
		maxBackups int
		wantFiles  []string
		wantAbsent []string
	}{
		{"keeps configured backups", 2, []string{"run.log", "run.log.1", "run.log.2"}, []string{"run.log.3"}},
		{"no backups", 0, []string{"run.log"}, []string{"run.log.1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			rw, err := NewRotatingWriter(filepath.Join(dir, "run.log"), RotationConfig{MaxBackups: tt.maxBackups})
			if err != nil {
				t.Fatalf("NewRotatingWriter failed: %v", err)
			}
			rw.maxSizeB = 50

			line := []byte(strings.Repeat("x", 40) + "\n")
			for range_i := 0; range_i < 6; range_i++ {
				if _, err := rw.Write(line); err != nil {
					t.Fatalf("Write failed: %v", err)
				}
			}
			_ = rw.Close()

			for _, f := range tt.wantFiles {
				if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
					t.Errorf("expected %s to exist", f)
				}
			}
			for _, f := range tt.wantAbsent {
				if _, err := os.Stat(filepath.Join(dir, f)); err == nil {
					t.Errorf("expected %s to be absent", f)
				}
			}
		})
	}
}

func TestRotatingWriterCompression(t *testing.T) {
	dir := t.TempDir()
	rw, err := NewRotatingWriter(filepath.Join(dir, "run.log"), RotationConfig{MaxBackups: 1, Compress: true})
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	rw.maxSizeB = 20

	_, _ = rw.Write([]byte("first line of text\n"))
	_, _ = rw.Write([]byte("second line of text\n"))
	_ = rw.Close()

	gz := filepath.Join(dir, "run.log.1.gz")
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(gz); err == nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("compressed backup was not created")
}

func TestRotatingWriterClose(t *testing.T) {
	rw, err := NewRotatingWriter(filepath.Join(t.TempDir(), "run.log"), DefaultRotationConfig())
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	if err := rw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := rw.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
	if _, err := rw.Write([]byte("x")); err == nil {
		t.Error("expected write after close to fail")
	}
	if err := rw.Sync(); err != nil {
		t.Errorf("Sync after close = %v, want nil", err)
	}
}

func TestRotatingWriterConcurrency(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	rw, err := NewRotatingWriter(path, RotationConfig{MaxBackups: 5})
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	rw.maxSizeB = 4096

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_, _ = rw.Write([]byte("concurrent line\n"))
			}
		}()
	}
	wg.Wait()

	if rw.CurrentSize() > 4096 {
		t.Errorf("CurrentSize() = %d exceeds limit", rw.CurrentSize())
	}
	_ = rw.Close()
}

func TestNewLoggerWithRotation(t *testing.T) {
	t.Run("logs to rotated file", func(t *testing.T) {
		dir := t.TempDir()
		logger, err := NewLoggerWithRotation(dir, LevelDebug, DefaultRotationConfig())
		if err != nil {
			t.Fatalf("NewLoggerWithRotation failed: %v", err)
		}

		logger.Info("test message", "key", "value")
		_ = logger.Close()

		content, err := os.ReadFile(filepath.Join(dir, LogFileName))
		if err != nil {
			t.Fatalf("failed to read log file: %v", err)
		}
		var entry map[string]any
		if err := json.Unmarshal(content, &entry); err != nil {
			t.Fatalf("failed to parse log entry: %v", err)
		}
		if entry["msg"] != "test message" || entry["key"] != "value" {
			t.Errorf("entry = %v", entry)
		}
	})

	t.Run("writes to stderr when dir is empty", func(t *testing.T) {
		logger, err := NewLoggerWithRotation("", LevelInfo, DefaultRotationConfig())
		if err != nil {
			t.Fatalf("NewLoggerWithRotation failed: %v", err)
		}
		if logger.out.rotation != nil {
			t.Error("expected no rotation writer when dir is empty")
		}
	})

	t.Run("rotation triggers on size", func(t *testing.T) {
		dir := t.TempDir()
		logger, err := NewLoggerWithRotation(dir, LevelDebug, RotationConfig{MaxBackups: 3})
		if err != nil {
			t.Fatalf("NewLoggerWithRotation failed: %v", err)
		}
		logger.out.rotation.maxSizeB = 200

		for i := 0; i < 10; i++ {
			logger.Info("this is a message that will trigger rotation when repeated", "iteration", i)
		}
		_ = logger.Close()

		if _, err := os.Stat(filepath.Join(dir, LogFileName+".1")); err != nil {
			t.Error("backup file was not created after rotation")
		}
	})

	t.Run("child loggers share rotation writer", func(t *testing.T) {
		logger, err := NewLoggerWithRotation(t.TempDir(), LevelDebug, DefaultRotationConfig())
		if err != nil {
			t.Fatalf("NewLoggerWithRotation failed: %v", err)
		}
		defer func() { _ = logger.Close() }()

		child := logger.WithRun("run-1").WithWorker(2)
		if child.out.rotation != logger.out.rotation {
			t.Error("child logger should share parent's rotation writer")
		}
	})
}

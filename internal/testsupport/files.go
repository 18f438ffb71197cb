package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"lessonmedia/internal/config"
	"lessonmedia/internal/staging"
)

// WriteScratchDir creates the scratch directory a run of jobID would use,
// holding one file of size bytes, and backdates it by age. It returns the
// directory path.
func WriteScratchDir(t testing.TB, cfg *config.Config, jobID string, size int, age time.Duration) string {
	t.Helper()

	dir := filepath.Join(cfg.Paths.StagingDir, staging.DirName(jobID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "final.mp4"), bytes.Repeat([]byte{0x42}, size), 0o644); err != nil {
		t.Fatalf("write scratch file: %v", err)
	}
	if age > 0 {
		when := time.Now().Add(-age)
		if err := os.Chtimes(dir, when, when); err != nil {
			t.Fatalf("chtimes %s: %v", dir, err)
		}
	}
	return dir
}

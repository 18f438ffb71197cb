package staging

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"lessonmedia/internal/logging"
	"lessonmedia/internal/textutil"
)

// DirPrefix marks directories created by a Stager.
const DirPrefix = "job-"

// Stager provisions scratch directories for job runs.
type Stager struct {
	root   string
	retain bool
	logger *slog.Logger
}

// NewStager creates a Stager rooted at root. When retain is true, Release
// leaves directories in place for debugging.
func NewStager(root string, retain bool, logger *slog.Logger) *Stager {
	return &Stager{
		root:   strings.TrimSpace(root),
		retain: retain,
		logger: logging.NewComponentLogger(logger, "staging"),
	}
}

// Root returns the staging root.
func (s *Stager) Root() string {
	return s.root
}

// Scratch is one run's working directory.
type Scratch struct {
	jobID string
	dir   string

	mu       sync.Mutex
	released bool
}

// Dir returns the scratch directory path.
func (s *Scratch) Dir() string {
	return s.dir
}

// Path joins name onto the scratch directory.
func (s *Scratch) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Segment returns a stable per-index file path such as scene-03.mp4.
func (s *Scratch) Segment(prefix string, index int, ext string) string {
	return s.Path(fmt.Sprintf("%s-%02d%s", prefix, index, ext))
}

// DirName returns the scratch directory name for jobID. The sanitized token
// keeps it readable; the hash keeps distinct identities apart when they
// sanitize to the same token.
func DirName(jobID string) string {
	sum := sha256.Sum256([]byte(jobID))
	return DirPrefix + textutil.SanitizeToken(jobID) + "-" + hex.EncodeToString(sum[:4])
}

// Acquire creates a fresh scratch directory for jobID, removing any directory
// of the same name left by an earlier run.
func (s *Stager) Acquire(jobID string) (*Scratch, error) {
	if s.root == "" {
		return nil, fmt.Errorf("staging root is not configured")
	}
	dir := filepath.Join(s.root, DirName(jobID))
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("clear scratch %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch %s: %w", dir, err)
	}
	s.logger.Debug("scratch acquired",
		logging.String(logging.FieldJobID, jobID),
		logging.String("path", dir),
	)
	return &Scratch{jobID: jobID, dir: dir}, nil
}

// Release removes the scratch directory. Subsequent calls are no-ops.
func (s *Stager) Release(scratch *Scratch) error {
	if scratch == nil {
		return nil
	}
	scratch.mu.Lock()
	defer scratch.mu.Unlock()
	if scratch.released {
		return nil
	}
	scratch.released = true

	if s.retain {
		s.logger.Info("scratch retained for debugging",
			logging.String(logging.FieldJobID, scratch.jobID),
			logging.String("path", scratch.dir),
			logging.String(logging.FieldEventType, "scratch_retained"),
		)
		return nil
	}
	if err := os.RemoveAll(scratch.dir); err != nil {
		logging.WarnWithContext(s.logger, "scratch removal failed", "scratch_cleanup_failed",
			logging.String(logging.FieldJobID, scratch.jobID),
			logging.String("path", scratch.dir),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check staging_dir permissions"),
			logging.String(logging.FieldImpact, "disk space not reclaimed until the stale sweep"),
		)
		return fmt.Errorf("remove scratch %s: %w", scratch.dir, err)
	}
	return nil
}

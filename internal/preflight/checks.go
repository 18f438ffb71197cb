package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"lessonmedia/internal/config"
	"lessonmedia/internal/deps"
	"lessonmedia/internal/services"
)

// MinFreeBytes is the scratch headroom below which a cinematic run (four clips
// plus a re-encode) is likely to fail mid-stitch.
const MinFreeBytes = 2 << 30

// EncoderLister lists ffmpeg encoders; nil runs the configured binary.
type EncoderLister = deps.EncoderRunner

// CheckGenerative verifies that the generative API is reachable and the key is
// valid. It uses a 30-second timeout and a single attempt.
func CheckGenerative(ctx context.Context, checker HealthChecker) Result {
	const name = "Generative API"
	if checker == nil {
		return Result{Name: name, Detail: "not configured"}
	}
	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := checker.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeRemoteError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckObjectStore verifies the configured bucket exists.
func CheckObjectStore(ctx context.Context, checker BucketChecker) Result {
	const name = "Object store"
	if checker == nil {
		return Result{Name: name, Detail: "not configured"}
	}
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := checker.CheckBucket(checkCtx); err != nil {
		if errors.Is(err, services.ErrConfiguration) {
			return Result{Name: name, Detail: services.Details(err).Message}
		}
		return Result{Name: name, Detail: summarizeRemoteError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "bucket reachable"}
}

// CheckEncoders verifies ffmpeg lists every encoder the pipelines select.
func CheckEncoders(ctx context.Context, cfg *config.Config, lister EncoderLister) Result {
	const name = "FFmpeg encoders"
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	status := deps.CheckEncoders(checkCtx, cfg.Media.FFmpegBinary, cfg.Media.AudioCodec, lister)
	if !status.Available {
		return Result{Name: name, Detail: status.Detail}
	}
	return Result{Name: name, Passed: true, Detail: "libx264, aac, " + cfg.Media.AudioCodec}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace verifies the filesystem holding path has at least min bytes
// available to unprivileged users.
func CheckFreeSpace(name, path string, min uint64) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := stat.Bavail * uint64(stat.Bsize)
	detail := fmt.Sprintf("%s free", humanize.IBytes(free))
	if free < min {
		return Result{Name: name, Detail: fmt.Sprintf("%s, need %s", detail, humanize.IBytes(min))}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

func summarizeRemoteError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "check timed out (service unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out (service unreachable)"
	}
	return err.Error()
}

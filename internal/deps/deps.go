// Package deps checks the external executables the pipelines shell out to.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"lessonmedia/internal/config"
)

// Requirement names an executable and the job kinds that cannot run without it.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a requirement.
type Status struct {
	Name        string
	Command     string
	Path        string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements lists the media tools for cfg.
func Requirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{
			Name:        "ffmpeg",
			Command:     cfg.Media.FFmpegBinary,
			Description: "transcode narration, render slides, stitch segments",
		},
		{
			Name:        "ffprobe",
			Command:     cfg.Media.FFprobeBinary,
			Description: "measure narration and output durations",
		},
	}
}

// CheckBinaries resolves each requirement on PATH.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		switch path, err := exec.LookPath(cmd); {
		case cmd == "":
			status.Detail = "command not configured"
		case err != nil:
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
		default:
			status.Available = true
			status.Path = path
		}
		results = append(results, status)
	}
	return results
}

// Availability indexes statuses by requirement name.
type Availability map[string]Status

// Index builds an Availability from statuses.
func Index(statuses []Status) Availability {
	out := make(Availability, len(statuses))
	for _, status := range statuses {
		out[status.Name] = status
	}
	return out
}

// Missing returns the statuses among names that are unavailable. Names that
// were never checked count as available.
func (a Availability) Missing(names ...string) []Status {
	var missing []Status
	for _, name := range names {
		if status, ok := a[name]; ok && !status.Available {
			missing = append(missing, status)
		}
	}
	return missing
}

package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"lessonmedia/internal/api"
	"lessonmedia/internal/config"
	"lessonmedia/internal/daemonrun"
	"lessonmedia/internal/logging"
	"lessonmedia/internal/preflight"
)

type statusReport struct {
	Daemon    *api.DaemonStatus  `json:"daemon,omitempty"`
	Preflight []preflight.Result `json:"preflight,omitempty"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var local bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status, or run readiness checks when it is down",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			report := statusReport{}
			if !local {
				client, err := ctx.apiClient()
				if err != nil {
					return err
				}
				if client != nil {
					status, err := client.Status(cmd.Context())
					switch {
					case err == nil:
						report.Daemon = &status
					case !api.IsUnavailable(err):
						return err
					}
				}
			}
			if report.Daemon == nil {
				results, err := localPreflight(cmd, cfg)
				if err != nil {
					return err
				}
				report.Preflight = results
			}

			if ctx.JSONMode() {
				return writeJSON(cmd, report)
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			if report.Daemon != nil {
				renderDaemonStatus(out, *report.Daemon, colorize)
				return nil
			}
			renderPreflight(out, report.Preflight, colorize)
			return nil
		},
	}

	cmd.Flags().BoolVar(&local, "local", false, "Skip the daemon and run readiness checks in this process")
	return cmd
}

func localPreflight(cmd *cobra.Command, cfg *config.Config) ([]preflight.Result, error) {
	rt, err := daemonrun.Build(cfg, logging.NewNop())
	if err != nil {
		return nil, err
	}
	defer rt.Close()
	return rt.Preflight(cmd.Context()), nil
}

func renderDaemonStatus(out io.Writer, status api.DaemonStatus, colorize bool) {
	fmt.Fprintln(out, renderSectionHeader("Daemon", colorize))
	fmt.Fprintln(out, renderStatusLine("Running", statusOK, fmt.Sprintf("pid %d", status.PID), colorize))
	fmt.Fprintln(out, renderStatusLine("Database", statusInfo, status.DatabasePath, colorize))
	active := "none"
	if len(status.Active) > 0 {
		active = strings.Join(status.Active, ", ")
	}
	fmt.Fprintln(out, renderStatusLine("Active jobs", statusInfo, active, colorize))

	statuses := make([]string, 0, len(status.JobCounts))
	for name := range status.JobCounts {
		statuses = append(statuses, name)
	}
	sort.Strings(statuses)
	counts := make([]string, 0, len(statuses))
	for _, name := range statuses {
		counts = append(counts, fmt.Sprintf("%s=%d", name, status.JobCounts[name]))
	}
	fmt.Fprintln(out, renderStatusLine("Job counts", statusInfo, strings.Join(counts, " "), colorize))

	fmt.Fprintln(out)
	fmt.Fprintln(out, renderSectionHeader("Job kinds", colorize))
	for _, kind := range status.Kinds {
		kindStatus := statusOK
		if !kind.Ready {
			kindStatus = statusError
		}
		fmt.Fprintln(out, renderStatusLine(kind.Name, kindStatus, kind.Detail, colorize))
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, renderSectionHeader("Dependencies", colorize))
	for _, dep := range status.Dependencies {
		depStatus := statusOK
		detail := dep.Path
		if !dep.Available {
			depStatus = statusError
			if dep.Optional {
				depStatus = statusWarn
			}
			detail = dep.Detail
		}
		fmt.Fprintln(out, renderStatusLine(dep.Name, depStatus, detail, colorize))
	}
}

func renderPreflight(out io.Writer, results []preflight.Result, colorize bool) {
	fmt.Fprintln(out, renderStatusLine("Daemon", statusWarn, "not reachable; showing local checks", colorize))
	fmt.Fprintln(out)
	fmt.Fprintln(out, renderSectionHeader("Readiness", colorize))
	for _, result := range results {
		kind := statusOK
		if !result.Passed {
			kind = statusError
		}
		fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
	}
	failed := len(preflight.Failed(results))
	fmt.Fprintf(out, "\n%d of %d checks passed\n", len(results)-failed, len(results))
}

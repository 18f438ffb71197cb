package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"lessonmedia/internal/api"
	"lessonmedia/internal/jobs"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and repair the job store",
	}

	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsResetStuckCommand(ctx))

	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses := make([]jobs.Status, 0, len(statusFlags))
			for _, raw := range statusFlags {
				status, ok := jobs.ParseStatus(raw)
				if !ok {
					return fmt.Errorf("unknown status %q", raw)
				}
				statuses = append(statuses, status)
			}
			return ctx.withStore(func(store *jobs.Store) error {
				records, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				list := api.FromJobs(records)
				if ctx.JSONMode() {
					return writeJSON(cmd, api.JobListResponse{Jobs: list})
				}
				out := cmd.OutOrStdout()
				if len(list) == 0 {
					fmt.Fprintln(out, "No jobs found")
					return nil
				}
				fmt.Fprint(out, renderJobTable(list, time.Now()))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statusFlags, "status", "s", nil, "Filter by status (repeatable: processing, ready, failed)")
	return cmd
}

func renderJobTable(list []api.Job, now time.Time) string {
	rows := make([][]string, 0, len(list))
	for _, job := range list {
		rows = append(rows, []string{
			job.JobID,
			job.Kind,
			job.Status,
			job.ProgressStage,
			relativeAge(job.UpdatedAt, now),
		})
	}
	return renderTable([]string{"Job", "Kind", "Status", "Stage", "Updated"}, rows, 4)
}

func relativeAge(stamp string, now time.Time) string {
	if stamp == "" {
		return "-"
	}
	t, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		return stamp
	}
	return formatDuration(now.Sub(t)) + " ago"
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one job's status and result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID := strings.TrimSpace(args[0])
			return ctx.withStore(func(store *jobs.Store) error {
				record, err := store.Get(cmd.Context(), jobID)
				if err != nil {
					return err
				}
				job := api.FromJob(jobID, record)
				if ctx.JSONMode() {
					return writeJSON(cmd, job)
				}
				printJob(cmd.OutOrStdout(), job)
				return nil
			})
		},
	}
}

func printJob(out io.Writer, job api.Job) {
	fields := []struct{ label, value string }{
		{"Job", job.JobID},
		{"Kind", job.Kind},
		{"Status", job.Status},
		{"Stage", job.ProgressStage},
		{"Result", job.ResultURL},
		{"Error", job.ErrorMessage},
		{"Error kind", job.ErrorKind},
		{"Run", job.RunID},
		{"Started", job.StartedAt},
		{"Finished", job.FinishedAt},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		fmt.Fprintf(out, "%-11s %s\n", f.label+":", f.value)
	}
}

func newJobsResetStuckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-stuck",
		Short: "Fail jobs left processing by a crashed daemon",
		Long: `Mark every job still in the processing state as failed.

Only run this while the daemon is stopped; a live daemon's in-flight jobs
would be marked failed as well.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if client, err := ctx.apiClient(); err == nil && client != nil {
				if status, err := client.Status(cmd.Context()); err == nil && status.Running {
					return fmt.Errorf("daemon is running (pid %d); stop it before resetting jobs", status.PID)
				}
			}
			return ctx.withStore(func(store *jobs.Store) error {
				count, err := store.ResetStuckProcessing(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, map[string]int64{"reset": count})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d stuck jobs\n", count)
				return nil
			})
		},
	}
}

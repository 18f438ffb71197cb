package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"lessonmedia/internal/staging"
)

func newStagingCommand(ctx *commandContext) *cobra.Command {
	stagingCmd := &cobra.Command{
		Use:   "staging",
		Short: "Manage per-job scratch directories",
	}

	stagingCmd.AddCommand(newStagingListCommand(ctx))
	stagingCmd.AddCommand(newStagingCleanCommand(ctx))

	return stagingCmd
}

type stagingEntry struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Modified  time.Time `json:"modified"`
	SizeBytes int64     `json:"size_bytes"`
}

func newStagingListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List scratch directories with their age and size",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			dirs, err := staging.ListDirectories(cfg.Paths.StagingDir)
			if err != nil {
				return fmt.Errorf("list staging directories: %w", err)
			}

			var total int64
			entries := make([]stagingEntry, 0, len(dirs))
			for _, dir := range dirs {
				total += dir.Size
				entries = append(entries, stagingEntry{Name: dir.Name, Path: dir.Path, Modified: dir.ModTime, SizeBytes: dir.Size})
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, map[string]any{
					"staging_dir":      cfg.Paths.StagingDir,
					"directories":      entries,
					"total_size_bytes": total,
				})
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No scratch directories found")
				return nil
			}
			now := time.Now()
			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				rows = append(rows, []string{
					entry.Name,
					formatDuration(now.Sub(entry.Modified)),
					humanize.IBytes(uint64(entry.SizeBytes)),
				})
			}
			fmt.Fprintf(out, "Staging directory: %s\n\n", cfg.Paths.StagingDir)
			fmt.Fprint(out, renderTable([]string{"Directory", "Age", "Size"}, rows, 1, 2))
			fmt.Fprintf(out, "\nTotal: %d directories, %s\n", len(entries), humanize.IBytes(uint64(total)))
			return nil
		},
	}
}

func newStagingCleanCommand(ctx *commandContext) *cobra.Command {
	var cleanAll bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove stale scratch directories",
		Long: `Remove scratch directories older than workflow.stale_scratch_hours.

Use --all to remove every scratch directory regardless of age. Do not use
--all while jobs are running.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			maxAge := cfg.StaleScratchAge()
			if cleanAll {
				maxAge = 0
			}
			result := staging.CleanStale(cmd.Context(), cfg.Paths.StagingDir, maxAge, nil)

			errs := make([]string, 0, len(result.Errors))
			for _, e := range result.Errors {
				errs = append(errs, fmt.Sprintf("%s: %v", e.Path, e.Error))
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, map[string]any{"removed": len(result.Removed), "errors": errs})
			}

			out := cmd.OutOrStdout()
			for _, path := range result.Removed {
				fmt.Fprintf(out, "Removed %s\n", filepath.Base(path))
			}
			for _, e := range errs {
				fmt.Fprintf(out, "  Error: %s\n", e)
			}
			fmt.Fprintf(out, "Removed %d directories, %d errors\n", len(result.Removed), len(errs))
			return nil
		},
	}

	cmd.Flags().BoolVar(&cleanAll, "all", false, "Remove all scratch directories regardless of age")
	return cmd
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

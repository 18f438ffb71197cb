package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"lessonmedia/internal/api"
	"lessonmedia/internal/daemonrun"
	"lessonmedia/internal/jobs"
	"lessonmedia/internal/logging"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var kind string
	var payloadPath string
	var submit bool

	cmd := &cobra.Command{
		Use:   "run <job-id>",
		Short: "Run one job in this process and wait for it",
		Long: `Run one job and wait for it to finish.

The payload is read from --payload (a file path, or - for stdin). With
--submit the job is handed to the running daemon instead and the command
returns once it is accepted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID := strings.TrimSpace(args[0])
			if jobID == "" {
				return fmt.Errorf("job id is required")
			}
			if _, err := jobs.ParseKind(kind); err != nil {
				return err
			}
			payload, err := readPayload(cmd.InOrStdin(), payloadPath)
			if err != nil {
				return err
			}
			if submit {
				return submitToDaemon(cmd, ctx, jobID, kind, payload)
			}
			return runInProcess(cmd, ctx, jobID, kind, payload)
		},
	}

	cmd.Flags().StringVarP(&kind, "kind", "k", "", "Job kind (cinematic-video, slideshow-video, dialogue-audio, illustrated-story)")
	cmd.Flags().StringVarP(&payloadPath, "payload", "p", "", "Lesson payload JSON file, or - for stdin")
	cmd.Flags().BoolVar(&submit, "submit", false, "Submit to the running daemon instead of running locally")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("payload")
	return cmd
}

func readPayload(stdin io.Reader, path string) (json.RawMessage, error) {
	var (
		data []byte
		err  error
	)
	if strings.TrimSpace(path) == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("payload is not valid JSON")
	}
	return json.RawMessage(data), nil
}

func submitToDaemon(cmd *cobra.Command, ctx *commandContext, jobID, kind string, payload json.RawMessage) error {
	client, err := ctx.apiClient()
	if err != nil {
		return err
	}
	if client == nil {
		return fmt.Errorf("paths.api_bind is not configured; run without --submit")
	}
	resp, err := client.Submit(cmd.Context(), api.SubmitRequest{JobID: jobID, Kind: kind, Payload: payload})
	if err != nil {
		return err
	}
	if ctx.JSONMode() {
		return writeJSON(cmd, resp)
	}
	if !resp.Accepted {
		return fmt.Errorf("job %s not accepted (status %s)", resp.JobID, resp.Status)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Submitted %s (%s)\n", resp.JobID, resp.Status)
	return nil
}

func runInProcess(cmd *cobra.Command, ctx *commandContext, jobID, kind string, payload json.RawMessage) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	rt, err := daemonrun.Build(cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	if !rt.Coordinator.Run(cmd.Context(), jobID, kind, payload) {
		return fmt.Errorf("job %s is already running", jobID)
	}
	rt.Coordinator.Wait()

	record, err := rt.Store.Get(cmd.Context(), jobID)
	if err != nil {
		return err
	}
	job := api.FromJob(jobID, record)
	if ctx.JSONMode() {
		if err := writeJSON(cmd, job); err != nil {
			return err
		}
	} else {
		printJob(cmd.OutOrStdout(), job)
	}
	if job.Status == string(jobs.StatusFailed) {
		return fmt.Errorf("job %s failed: %s", jobID, job.ErrorMessage)
	}
	return nil
}

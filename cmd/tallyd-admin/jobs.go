package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/quorumworks/tallyd/internal/data"
	"github.com/quorumworks/tallyd/internal/domain/model"
)

const jobCommandTimeout = time.Minute

type jobsOptions struct {
	Election string
	Limit    int
}

type jobInspectOptions struct {
	JobID string
}

type failedChunksOptions struct {
	JobID string
	Limit int
}

func runJobs(cmdCtx *commandContext, args []string) error {
	opts, err := parseJobsFlags(args)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, jobCommandTimeout, func(ctx context.Context, db *sql.DB) error {
		jobs := data.NewJobRepo(db, data.RepoConfig{Logger: cmdCtx.Logger})

		if err := printJobStats(ctx, jobs); err != nil {
			return err
		}
		return printActiveJobs(ctx, jobs, opts)
	})
}

func printJobStats(ctx context.Context, jobs *data.JobRepo) error {
	if err := writef(os.Stdout, "\nJob Statistics by Operation\n"); err != nil {
		return fmt.Errorf("print stats header: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writeln(w, "Operation\tQueued\tIn Progress\tCompleted\tFailed"); err != nil {
		return fmt.Errorf("print stats columns: %w", err)
	}

	for _, op := range model.AllOperationTypes() {
		stats, err := jobs.Stats(ctx, op)
		if err != nil {
			return fmt.Errorf("stats for %s: %w", op, err)
		}
		if err := writef(w, "%s\t%d\t%d\t%d\t%d\n",
			op, stats.Queued, stats.InProgress, stats.Completed, stats.Failed); err != nil {
			return fmt.Errorf("print stats row: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush stats table: %w", err)
	}
	return nil
}

func printActiveJobs(ctx context.Context, jobs *data.JobRepo, opts jobsOptions) error {
	active, err := jobs.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active jobs: %w", err)
	}

	if opts.Election != "" {
		filtered := active[:0]
		for _, job := range active {
			if job.ElectionID == opts.Election {
				filtered = append(filtered, job)
			}
		}
		active = filtered
	}
	if opts.Limit > 0 && len(active) > opts.Limit {
		active = active[:opts.Limit]
	}

	if err := writef(os.Stdout, "\nActive Jobs\n"); err != nil {
		return fmt.Errorf("print active header: %w", err)
	}
	if len(active) == 0 {
		if err := writeln(os.Stdout, "(none)"); err != nil {
			return fmt.Errorf("print active none: %w", err)
		}
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writeln(w, "ID\tElection\tOperation\tStatus\tProgress\tCreated"); err != nil {
		return fmt.Errorf("print active columns: %w", err)
	}
	for _, job := range active {
		if err := writef(w, "%s\t%s\t%s\t%s\t%d/%d (%.1f%%)\t%s\n",
			job.ID,
			job.ElectionID,
			job.Operation,
			job.Status,
			job.ProcessedChunks+job.FailedChunks,
			job.TotalChunks,
			job.Percent(),
			job.CreatedAt.Format(time.RFC3339),
		); err != nil {
			return fmt.Errorf("print active row: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush active table: %w", err)
	}
	return nil
}

func runJobInspect(cmdCtx *commandContext, args []string) error {
	opts, err := parseJobInspectFlags(args)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, jobCommandTimeout, func(ctx context.Context, db *sql.DB) error {
		jobs := data.NewJobRepo(db, data.RepoConfig{Logger: cmdCtx.Logger})
		audit := data.NewAuditRepo(db, nil)

		job, err := jobs.GetByID(ctx, opts.JobID)
		if err != nil {
			if errors.Is(err, data.ErrJobNotFound) {
				return fmt.Errorf("job %s not found", opts.JobID)
			}
			return err
		}

		timing, err := audit.TimingStats(ctx, opts.JobID)
		if err != nil {
			return fmt.Errorf("timing stats: %w", err)
		}

		return printJobDetail(job, timing)
	})
}

func printJobDetail(job *model.Job, timing *model.ChunkTimingStats) error {
	if err := writef(os.Stdout, "\nJob %s\n", job.ID); err != nil {
		return fmt.Errorf("print job header: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writef(w, "Election\t%s\n", job.ElectionID); err != nil {
		return fmt.Errorf("print job election: %w", err)
	}
	if err := writef(w, "Operation\t%s\n", job.Operation); err != nil {
		return fmt.Errorf("print job operation: %w", err)
	}
	if err := writef(w, "Status\t%s\n", job.Status); err != nil {
		return fmt.Errorf("print job status: %w", err)
	}
	if err := writef(w, "Progress\t%d/%d chunks (%.1f%%)\n",
		job.ProcessedChunks+job.FailedChunks, job.TotalChunks, job.Percent()); err != nil {
		return fmt.Errorf("print job progress: %w", err)
	}
	if err := writef(w, "Failed Chunks\t%d\n", job.FailedChunks); err != nil {
		return fmt.Errorf("print job failed chunks: %w", err)
	}
	if err := writef(w, "Created By\t%s\n", job.CreatedBy); err != nil {
		return fmt.Errorf("print job created by: %w", err)
	}
	if err := writef(w, "Created At\t%s\n", job.CreatedAt.Format(time.RFC3339)); err != nil {
		return fmt.Errorf("print job created at: %w", err)
	}
	if job.StartedAt != nil {
		if err := writef(w, "Started At\t%s\n", job.StartedAt.Format(time.RFC3339)); err != nil {
			return fmt.Errorf("print job started at: %w", err)
		}
	}
	if job.CompletedAt != nil {
		if err := writef(w, "Completed At\t%s\n", job.CompletedAt.Format(time.RFC3339)); err != nil {
			return fmt.Errorf("print job completed at: %w", err)
		}
	}
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		if err := writef(w, "Error\t%s\n", *job.ErrorMessage); err != nil {
			return fmt.Errorf("print job error: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush job detail: %w", err)
	}

	if err := printTimingStats(timing); err != nil {
		return err
	}

	if job.FailedChunks > 0 {
		if err := writef(os.Stdout,
			"\nRun `tallyd-admin failed-chunks %s` for per-chunk failure detail.\n", job.ID); err != nil {
			return fmt.Errorf("print failed chunks hint: %w", err)
		}
	}
	return nil
}

func printTimingStats(timing *model.ChunkTimingStats) error {
	if timing == nil || timing.Attempts == 0 {
		return nil
	}

	if err := writef(os.Stdout, "\nChunk Timing\n"); err != nil {
		return fmt.Errorf("print timing header: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writef(w, "Attempts\t%d\n", timing.Attempts); err != nil {
		return fmt.Errorf("print timing attempts: %w", err)
	}
	if err := writef(w, "Completed\t%d\n", timing.Completed); err != nil {
		return fmt.Errorf("print timing completed: %w", err)
	}
	if err := writef(w, "Failed\t%d\n", timing.Failed); err != nil {
		return fmt.Errorf("print timing failed: %w", err)
	}
	if err := writef(w, "Avg Duration\t%.0fms\n", timing.AvgDurationMS); err != nil {
		return fmt.Errorf("print timing avg: %w", err)
	}
	if err := writef(w, "Total Duration\t%.0fms\n", timing.TotalDurationMS); err != nil {
		return fmt.Errorf("print timing total: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush timing table: %w", err)
	}
	return nil
}

func runFailedChunks(cmdCtx *commandContext, args []string) error {
	opts, err := parseFailedChunksFlags(args)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, jobCommandTimeout, func(ctx context.Context, db *sql.DB) error {
		audit := data.NewAuditRepo(db, nil)

		failures, err := audit.ListFailures(ctx, opts.JobID)
		if err != nil {
			return fmt.Errorf("list failures: %w", err)
		}
		if opts.Limit > 0 && len(failures) > opts.Limit {
			failures = failures[:opts.Limit]
		}

		return printFailedChunks(opts.JobID, failures)
	})
}

func printFailedChunks(jobID string, failures []*model.ChunkAuditEntry) error {
	if err := writef(os.Stdout, "\nFailed Chunk Attempts for Job %s\n", jobID); err != nil {
		return fmt.Errorf("print failures header: %w", err)
	}
	if len(failures) == 0 {
		if err := writeln(os.Stdout, "(none)"); err != nil {
			return fmt.Errorf("print failures none: %w", err)
		}
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writeln(w, "Chunk\tWorker\tStarted\tDuration\tError"); err != nil {
		return fmt.Errorf("print failures columns: %w", err)
	}
	for _, entry := range failures {
		if err := writef(w, "%d\t%s\t%s\t%s\t%s\n",
			entry.ChunkIndex,
			entry.WorkerID,
			entry.StartedAt.Format(time.RFC3339),
			renderAttemptDuration(entry),
			renderAttemptError(entry),
		); err != nil {
			return fmt.Errorf("print failures row: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush failures table: %w", err)
	}

	if err := writef(os.Stdout, "\nTotal failed attempts: %d\n", len(failures)); err != nil {
		return fmt.Errorf("print failures total: %w", err)
	}
	return nil
}

func renderAttemptDuration(entry *model.ChunkAuditEntry) string {
	if entry.FinishedAt == nil {
		return "-"
	}
	return entry.FinishedAt.Sub(entry.StartedAt).Round(time.Millisecond).String()
}

func renderAttemptError(entry *model.ChunkAuditEntry) string {
	if entry.ErrorMessage == nil || *entry.ErrorMessage == "" {
		return "-"
	}
	return *entry.ErrorMessage
}

func parseJobsFlags(args []string) (jobsOptions, error) {
	fs := flag.NewFlagSet("jobs", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts jobsOptions
	fs.StringVar(&opts.Election, "election", "", "Filter active jobs by election ID")
	fs.IntVar(&opts.Limit, "limit", 50, "Maximum active jobs to display (0 for unlimited)")

	if err := fs.Parse(args); err != nil {
		return jobsOptions{}, err
	}

	return opts, nil
}

func parseJobInspectFlags(args []string) (jobInspectOptions, error) {
	fs := flag.NewFlagSet("job", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts jobInspectOptions
	fs.StringVar(&opts.JobID, "id", "", "Job ID to inspect (may also be given as a positional argument)")

	if err := fs.Parse(args); err != nil {
		return jobInspectOptions{}, err
	}

	opts.JobID = strings.TrimSpace(opts.JobID)
	if opts.JobID == "" && fs.NArg() > 0 {
		opts.JobID = strings.TrimSpace(fs.Arg(0))
	}
	if opts.JobID == "" {
		return jobInspectOptions{}, errors.New("job id is required (--id or positional)")
	}

	return opts, nil
}

func parseFailedChunksFlags(args []string) (failedChunksOptions, error) {
	fs := flag.NewFlagSet("failed-chunks", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts failedChunksOptions
	fs.StringVar(&opts.JobID, "job-id", "", "Job ID to list failures for (may also be given as a positional argument)")
	fs.IntVar(&opts.Limit, "limit", 100, "Maximum failure rows to display (0 for unlimited)")

	if err := fs.Parse(args); err != nil {
		return failedChunksOptions{}, err
	}

	opts.JobID = strings.TrimSpace(opts.JobID)
	if opts.JobID == "" && fs.NArg() > 0 {
		opts.JobID = strings.TrimSpace(fs.Arg(0))
	}
	if opts.JobID == "" {
		return failedChunksOptions{}, errors.New("job id is required (--job-id or positional)")
	}

	return opts, nil
}

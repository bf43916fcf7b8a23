package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/ytsort/internal/formatter"
	"github.com/desertthunder/ytsort/internal/web"
	"github.com/urfave/cli/v3"
)

func renderJob(result web.Result) []byte {
	if result.Job == nil {
		return []byte("No sync job.\n")
	}
	return formatter.JobToText(result.Job)
}

// SyncPreview prints the operations and quota a sync would need right now.
func (r *Runner) SyncPreview(ctx context.Context, cmd *cli.Command) error {
	render := func(result web.Result) []byte { return formatter.PreviewToText(result.Preview) }
	if cmd.Bool("markdown") {
		render = func(result web.Result) []byte { return formatter.PreviewToMarkdown(result.Preview) }
	}
	return r.report(r.actions.GetSyncPreview(ctx), cmd.Bool("json"), render)
}

// SyncStart creates a job from a fresh preview. Batches are run by `sync batch`, `sync run` or `sync watch`.
func (r *Runner) SyncStart(ctx context.Context, cmd *cli.Command) error {
	result := r.actions.StartSync(ctx)
	if err := r.report(result, cmd.Bool("json"), renderJob); err != nil {
		return err
	}
	if !cmd.Bool("json") {
		r.writePlainln("Run 'ytsort sync run' to process the job.")
	}
	return nil
}

// SyncPause pauses the active job at its next batch boundary.
func (r *Runner) SyncPause(ctx context.Context, cmd *cli.Command) error {
	return r.report(r.actions.PauseSync(ctx), cmd.Bool("json"), renderJob)
}

// SyncResume resumes a paused job.
func (r *Runner) SyncResume(ctx context.Context, cmd *cli.Command) error {
	return r.report(r.actions.ResumeSync(ctx), cmd.Bool("json"), renderJob)
}

// SyncStatus prints the active job, or the most recent one when none is active.
func (r *Runner) SyncStatus(ctx context.Context, cmd *cli.Command) error {
	result, err := r.currentOrLast(ctx)
	if err != nil {
		return err
	}
	return r.report(result, cmd.Bool("json"), renderJob)
}

// currentOrLast is GetSyncProgress falling back to the newest finished job.
func (r *Runner) currentOrLast(ctx context.Context) (web.Result, error) {
	result := r.actions.GetSyncProgress(ctx)
	if !result.Success || result.Job != nil {
		return result, nil
	}
	jobs, err := r.store.SyncJobs().List(ctx, map[string]any{"limit": 1})
	if err != nil {
		return result, err
	}
	if len(jobs) > 0 {
		result.Job = jobs[0]
	}
	return result, nil
}

// SyncBatch runs a single bounded batch.
func (r *Runner) SyncBatch(ctx context.Context, cmd *cli.Command) error {
	result := r.actions.RunSyncBatch(ctx, int(cmd.Int("max")))
	if !cmd.Bool("json") {
		r.drainProgress()
	}
	return r.report(result, cmd.Bool("json"), renderJob)
}

// SyncRun keeps running batches, spaced by sync.poll_interval_ms, until the job stops processing.
//
// Interrupting the command leaves the job where it is; running it again resumes from the persisted cursor.
func (r *Runner) SyncRun(ctx context.Context, cmd *cli.Command) error {
	maxOps := int(cmd.Int("max"))
	interval := r.config.Sync.PollInterval()

	r.writePlainHeader("Running sync")
	for batches := 1; ; batches++ {
		result := r.actions.RunSyncBatch(ctx, maxOps)
		r.drainProgress()
		if !result.Success {
			return fmt.Errorf("%s", result.Error)
		}

		job := result.Job
		r.logger.Debug("batch done", "batch", batches, "stage", job.Stage, "progress", job.CurrentStageProgress)
		r.writePlain("batch %d: %s %s\n", batches, job.Stage, formatter.Progress(job.CurrentStageProgress, job.CurrentStageTotal))

		if !job.Stage.Processing() {
			r.writePlain("\n")
			_, err := r.output.Write(formatter.JobToText(job))
			return err
		}

		select {
		case <-ctx.Done():
			r.writePlainln("Interrupted. Run 'ytsort sync run' again to continue.")
			return nil
		case <-time.After(interval):
		}
	}
}

// SyncErrors lists the errors of the current or last job or exports them to CSV.
func (r *Runner) SyncErrors(ctx context.Context, cmd *cli.Command) error {
	result, err := r.currentOrLast(ctx)
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("%s", result.Error)
	}
	job := result.Job
	if job == nil {
		return r.writePlain("No sync job.\n")
	}

	switch {
	case cmd.Bool("json"):
		return r.writeJSON(job.Errors, true)
	case cmd.Bool("csv") || cmd.String("output") != "":
		path, err := formatter.WriteErrorsCSV(job, cmd.String("output"))
		if err != nil {
			return err
		}
		return r.writePlain("✓ %d errors written to %s\n", len(job.Errors), path)
	}

	if len(job.Errors) == 0 {
		return r.writePlain("No errors recorded.\n")
	}
	for i, e := range job.Errors {
		marker := " "
		if i >= job.ErrorsReviewed {
			marker = "*"
		}
		r.writePlain("%s %s  %-16s %-8s %-24s %s\n", marker, e.Timestamp.Local().Format(time.DateTime), e.Stage, e.EntityType, e.EntityID, e.Message)
	}
	return r.writePlainln("%d errors, %d unreviewed (*)", len(job.Errors), job.UnreviewedErrors())
}

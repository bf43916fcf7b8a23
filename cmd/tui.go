package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/ytsort/internal/shared"
	"github.com/desertthunder/ytsort/internal/ui"
	"github.com/urfave/cli/v3"
)

// SyncWatch drives the active job from the interactive dashboard.
func (r *Runner) SyncWatch(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(cmd.String("log-file"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	shared.SetLogLevel(fileLogger, r.logger.GetLevel())
	r.SetLogger(fileLogger)

	if err := r.open(ctx); err != nil {
		return err
	}

	model := ui.NewModel(ctx, ui.Opts{
		Actions:  r.actions,
		Updates:  r.progress,
		Interval: r.config.Sync.PollInterval(),
	})
	p := tea.NewProgram(model, tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	if job := model.Job(); job != nil {
		r.writePlain("Stage: %s\n", job.Stage)
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/desertthunder/ytsort/internal/formatter"
	"github.com/desertthunder/ytsort/internal/models"
	"github.com/desertthunder/ytsort/internal/server"
	"github.com/desertthunder/ytsort/internal/shared"
	"github.com/desertthunder/ytsort/internal/web"
	"github.com/urfave/cli/v3"
)

// QuotaStatus prints today's quota usage from the ledger.
func (r *Runner) QuotaStatus(ctx context.Context, cmd *cli.Command) error {
	return r.report(r.actions.GetQuotaStatus(ctx), cmd.Bool("json"), func(result web.Result) []byte {
		return formatter.QuotaToText(*result.Quota)
	})
}

type backupRow struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Trigger   string    `json:"trigger"`
	Scope     string    `json:"scope"`
	Entities  int       `json:"entityCount"`
	SizeBytes int64     `json:"fileSizeBytes"`
	Checksum  string    `json:"checksum"`
	CreatedAt time.Time `json:"createdAt"`
}

// BackupList prints the recorded snapshots, newest first.
func (r *Runner) BackupList(ctx context.Context, cmd *cli.Command) error {
	snapshots, err := r.store.Backups().List(ctx, nil)
	if err != nil {
		return err
	}

	rows := make([]backupRow, len(snapshots))
	for i, s := range snapshots {
		rows[i] = backupRow{
			ID:        s.ID(),
			Filename:  s.Filename,
			Trigger:   s.Trigger,
			Scope:     s.Scope,
			Entities:  s.EntityCount,
			SizeBytes: s.FileSizeBytes,
			Checksum:  s.Checksum,
			CreatedAt: s.CreatedAt(),
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(rows, true)
	}
	if len(rows) == 0 {
		return r.writePlain("No backups in %s\n", r.backups.Dir())
	}

	tw := tabwriter.NewWriter(r.output, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFILE\tTRIGGER\tSCOPE\tENTITIES\tCREATED")
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n", row.ID, row.Filename, row.Trigger, row.Scope, row.Entities, row.CreatedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

// BackupCreate writes a manual snapshot.
func (r *Runner) BackupCreate(ctx context.Context, cmd *cli.Command) error {
	id, err := r.backups.Create(ctx, models.BackupTriggerManual, cmd.String("scope"))
	if err != nil {
		return err
	}
	return r.writePlain("✓ Backup %s written to %s\n", id, r.backups.Dir())
}

// BackupVerify re-reads a snapshot and checks it against the recorded checksum.
func (r *Runner) BackupVerify(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: backup id", shared.ErrMissingArgument)
	}

	doc, err := r.backups.Verify(ctx, id)
	if err != nil {
		return err
	}
	return r.writePlain("✓ Backup %s is intact: %d categories, %d videos, %d assignments\n",
		id, doc.Metadata.CategoryCount, doc.Metadata.VideoCount, doc.Metadata.AssignmentCount)
}

// Serve runs the JSON sync API until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Server.Addr()
	}
	if r.config.Server.APIToken == "" {
		r.logger.Warn("server.api_token is empty, the sync API is unauthenticated")
	}

	router := server.NewBasicRouter()
	router.Use(
		server.Logging(r.logger),
		server.Recover(r.logger),
		server.BearerAuth(r.config.Server.APIToken),
	)
	web.NewAPI(r.actions).Register(router)
	r.logger.Debug("routes registered", "routes", router.Routes())

	return server.Serve(ctx, addr, router, r.logger)
}

// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "json",
		Usage: "Output raw JSON",
	}
}

// setupCommand initializes configuration and storage.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create config.toml if missing, then initialize the database and run migrations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   defaultConfigPath,
			},
		},
		Action: r.SetupDatabase,
	}
}

// authCommand handles Google OAuth for the YouTube Data API
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage YouTube authentication",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Authorize ytsort with your Google account in the browser",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the authorization URL instead of opening a browser",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Show the stored token state",
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.AuthStatus,
			},
			{
				Name:   "logout",
				Usage:  "Remove the stored token",
				Action: r.AuthLogout,
			},
		},
	}
}

// categoriesCommand seeds and lists the approved categories sync works from
func categoriesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "categories",
		Aliases: []string{"cat"},
		Usage:   "Manage categories",
		Commands: []*cli.Command{
			{
				Name:  "import",
				Usage: "Import categories and their videos from a JSON file",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Action: r.withStack(r.CategoriesImport),
			},
			{
				Name:   "list",
				Usage:  "List categories",
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.withStack(r.CategoriesList),
			},
		},
	}
}

// playlistsCommand seeds and lists the legacy playlists a sync deletes
func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "playlists",
		Usage: "Manage legacy playlists",
		Commands: []*cli.Command{
			{
				Name:  "import",
				Usage: "Import legacy playlists from a JSON file or from your YouTube account",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "remote",
						Usage: "Fetch playlists from YouTube instead of a file",
					},
				},
				Action: r.withStack(r.PlaylistsImport),
			},
			{
				Name:   "list",
				Usage:  "List legacy playlists",
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.withStack(r.PlaylistsList),
			},
		},
	}
}

// syncCommand drives sync jobs
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Preview, run and control sync jobs",
		Commands: []*cli.Command{
			{
				Name:  "preview",
				Usage: "Show the operations and quota a sync would need",
				Flags: []cli.Flag{
					jsonFlag(),
					&cli.BoolFlag{
						Name:  "markdown",
						Usage: "Render the preview as a Markdown table",
					},
				},
				Action: r.withStack(r.SyncPreview),
			},
			{
				Name:   "start",
				Usage:  "Create a sync job from a fresh preview",
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.withStack(r.SyncStart),
			},
			{
				Name:   "pause",
				Usage:  "Pause the active job",
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.withStack(r.SyncPause),
			},
			{
				Name:   "resume",
				Usage:  "Resume a paused job and acknowledge its errors",
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.withStack(r.SyncResume),
			},
			{
				Name:    "status",
				Aliases: []string{"progress"},
				Usage:   "Show the active or most recent job",
				Flags:   []cli.Flag{jsonFlag()},
				Action:  r.withStack(r.SyncStatus),
			},
			{
				Name:  "batch",
				Usage: "Run one bounded batch of the active job",
				Flags: []cli.Flag{
					jsonFlag(),
					&cli.IntFlag{
						Name:  "max",
						Usage: "Maximum write operations in this batch (0 uses sync.batch_size)",
					},
				},
				Action: r.withStack(r.SyncBatch),
			},
			{
				Name:  "run",
				Usage: "Run batches until the job completes, fails or pauses",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "max",
						Usage: "Maximum write operations per batch (0 uses sync.batch_size)",
					},
				},
				Action: r.withStack(r.SyncRun),
			},
			{
				Name:    "watch",
				Aliases: []string{"ui"},
				Usage:   "Run the job in an interactive dashboard",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "log-file",
						Usage: "Where to write logs while the dashboard owns the terminal",
						Value: "./tmp/ytsort-tui.log",
					},
				},
				Action: r.SyncWatch,
			},
			{
				Name:  "errors",
				Usage: "List the errors recorded on the current job",
				Flags: []cli.Flag{
					jsonFlag(),
					&cli.BoolFlag{
						Name:  "csv",
						Usage: "Export the errors to a CSV file",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "CSV file path (default sync_errors_{job}.csv)",
					},
				},
				Action: r.withStack(r.SyncErrors),
			},
		},
	}
}

// quotaCommand reports the local quota ledger
func quotaCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "quota",
		Usage: "Inspect quota usage",
		Commands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Show units used and remaining today",
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.withStack(r.QuotaStatus),
			},
		},
	}
}

// backupCommand manages library snapshots
func backupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "backup",
		Usage: "Manage library backups",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List recorded backups",
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.withStack(r.BackupList),
			},
			{
				Name:  "create",
				Usage: "Write a manual backup",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "scope",
						Usage: `"full" or "category:<name>"`,
						Value: "full",
					},
				},
				Action: r.withStack(r.BackupCreate),
			},
			{
				Name:  "verify",
				Usage: "Check a backup file against its recorded checksum",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.withStack(r.BackupVerify),
			},
		},
	}
}

// serveCommand exposes the sync actions over HTTP
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the JSON sync API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (default server.host:server.port)",
			},
		},
		Action: r.withStack(r.Serve),
	}
}

package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytsort/internal/backup"
	"github.com/desertthunder/ytsort/internal/quota"
	"github.com/desertthunder/ytsort/internal/repositories"
	"github.com/desertthunder/ytsort/internal/services"
	"github.com/desertthunder/ytsort/internal/shared"
	"github.com/desertthunder/ytsort/internal/tasks"
	"github.com/desertthunder/ytsort/internal/web"
	"github.com/urfave/cli/v3"
)

const progressBuffer = 100

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The database and the sync stack are opened lazily by [Runner.open] so commands like setup and auth
// never touch storage.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer

	db       *sql.DB
	ownsDB   bool
	store    *repositories.Store
	ledger   *quota.Ledger
	limiter  *quota.Limiter
	writer   services.PlaylistWriter
	lister   services.PlaylistLister
	tokens   web.TokenProvider
	backups  *backup.Writer
	engine   *tasks.Engine
	actions  *web.Actions
	progress chan tasks.ProgressUpdate
}

// RunnerOpts contains configuration options for creating a Runner.
//
// DB, Writer, Lister and Tokens are optional overrides; they default to the configured sqlite
// database, the YouTube Data API adapter and the stored OAuth token.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer

	DB     *sql.DB
	Writer services.PlaylistWriter
	Lister services.PlaylistLister
	Tokens web.TokenProvider
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
		db:         opts.DB,
		writer:     opts.Writer,
		lister:     opts.Lister,
		tokens:     opts.Tokens,
	}
}

// SetLogger replaces the logger. Call it before the first command opens the sync stack.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// open wires storage, quota accounting, the YouTube adapter, the engine and the actions layer.
func (r *Runner) open(ctx context.Context) error {
	if r.actions != nil {
		return nil
	}

	if r.db == nil {
		r.logger.Debug("opening database", "path", r.config.Database.Path)
		db, err := shared.OpenDatabase(r.config.Database)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		r.db = db
		r.ownsDB = true
	}

	r.store = repositories.NewStore(r.db)
	r.ledger = quota.NewLedger(r.store.QuotaUsage(), r.config.Quota.DailyLimit, r.logger)
	r.limiter = quota.NewLimiter(quota.LimiterOpts{
		DailyLimit:    r.config.Quota.DailyLimit,
		MaxConcurrent: r.config.Quota.MaxConcurrent,
		MinInterval:   r.config.Quota.MinInterval(),
		MaxRetries:    r.config.Quota.MaxRetries,
	})
	if remaining, err := r.ledger.Remaining(ctx); err == nil {
		r.limiter.Align(remaining)
	} else {
		r.logger.Warn("failed to read quota ledger", "error", err)
	}

	youtube := services.NewYouTubeService(services.YouTubeOpts{
		Limiter: r.limiter,
		Ledger:  r.ledger,
		Logger:  r.logger,
		Privacy: r.config.Sync.PlaylistPrivacy,
	})
	if r.writer == nil {
		r.writer = youtube
	}
	if r.lister == nil {
		r.lister = youtube
	}
	if r.tokens == nil {
		oauthConfig, err := services.NewOAuthConfig(r.config.Credentials.YouTube)
		if err != nil {
			r.logger.Debug("token refresh disabled", "reason", err)
		}
		r.tokens = services.NewStoredToken(oauthConfig, r.config.Credentials.YouTube.TokenPath)
	}

	r.progress = make(chan tasks.ProgressUpdate, progressBuffer)
	r.backups = backup.NewWriter(r.store, r.config.Sync.BackupDir, r.logger)
	r.engine = tasks.NewEngine(tasks.EngineOpts{
		Store:          r.store,
		Writer:         r.writer,
		Backup:         r.backups,
		Quota:          r.ledger,
		Limiter:        r.limiter,
		Logger:         r.logger,
		BatchSize:      r.config.Sync.BatchSize,
		PauseThreshold: r.config.Quota.PauseThreshold,
		ErrorThreshold: r.config.Sync.ErrorThreshold,
		Progress:       r.progress,
	})
	r.actions = web.NewActions(web.ActionsOpts{
		Engine:  r.engine,
		Preview: tasks.NewCalculator(r.store, r.config.Quota.DailyLimit),
		Quota:   r.ledger,
		Tokens:  r.tokens,
		Logger:  r.logger,
	})
	return nil
}

// Close releases the database if the runner opened it.
func (r *Runner) Close() error {
	if r.db == nil || !r.ownsDB {
		return nil
	}
	return r.db.Close()
}

// withStack adapts an action that needs the sync stack.
func (r *Runner) withStack(action cli.ActionFunc) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		if err := r.open(ctx); err != nil {
			return err
		}
		return action(ctx, cmd)
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, categoriesCommand, playlistsCommand, syncCommand, quotaCommand, backupCommand, serveCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// report prints a [web.Result] and turns a failed one into an error.
func (r *Runner) report(result web.Result, asJSON bool, render func(web.Result) []byte) error {
	if asJSON {
		if err := r.writeJSON(result, true); err != nil {
			return err
		}
	} else if result.Success && render != nil {
		if _, err := r.output.Write(render(result)); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}

	if !result.Success {
		return fmt.Errorf("%s", result.Error)
	}
	return nil
}

// drainProgress prints any engine updates queued since the last call.
func (r *Runner) drainProgress() {
	for {
		select {
		case update := <-r.progress:
			r.writePlain("  [%s] %s\n", update.Phase, update.Message)
		default:
			return
		}
	}
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}

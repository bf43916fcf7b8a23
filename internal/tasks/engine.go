package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytsort/internal/backup"
	"github.com/desertthunder/ytsort/internal/models"
	"github.com/desertthunder/ytsort/internal/quota"
	"github.com/desertthunder/ytsort/internal/services"
	"github.com/desertthunder/ytsort/internal/shared"
)

// Job control precondition errors.
var (
	ErrJobActive    = errors.New("a sync job is already active")
	ErrNoActiveJob  = errors.New("no active sync job")
	ErrJobNotPaused = errors.New("sync job is not paused")
	ErrJobNotActive = errors.New("sync job is not in a processing stage")
)

const (
	DefaultBatchSize      = 10
	DefaultPauseThreshold = 1000
	DefaultErrorThreshold = 50

	// PlaylistDescription is set on every playlist a sync creates.
	PlaylistDescription = "Created by ytsort"

	// playlistNotCreated marks add operations whose category has no remote playlist.
	playlistNotCreated = "Category playlist not created"
)

// QuotaGauge reports how many units are left in today's budget.
type QuotaGauge interface {
	Remaining(ctx context.Context) (int, error)
}

// EngineOpts configures an [Engine]. Store, Writer and Backup are required.
type EngineOpts struct {
	Store   models.Store
	Writer  services.PlaylistWriter
	Backup  backup.Creator
	Quota   QuotaGauge     // optional persisted ledger
	Limiter *quota.Limiter // optional; its reservoir gates writes as well
	Logger  *log.Logger

	BatchSize      int // writes per ProcessBatch when maxOperations is unset, default 10
	PauseThreshold int // pause once remaining units drop below this, default 1000
	ErrorThreshold int // pause once this many errors are unreviewed, default 50

	// Progress receives non-blocking updates. Nil disables them.
	Progress chan<- ProgressUpdate
}

// Engine drives sync jobs through their stages one bounded batch at a time.
//
// All mutating methods are serialized; the engine is the single writer of job state.
type Engine struct {
	mu sync.Mutex

	store    models.Store
	writer   services.PlaylistWriter
	backup   backup.Creator
	gauge    QuotaGauge
	limiter  *quota.Limiter
	logger   *log.Logger
	progress chan<- ProgressUpdate

	batchSize      int
	pauseThreshold int
	errorThreshold int
}

// NewEngine creates an Engine.
func NewEngine(opts EngineOpts) *Engine {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.PauseThreshold <= 0 {
		opts.PauseThreshold = DefaultPauseThreshold
	}
	if opts.ErrorThreshold <= 0 {
		opts.ErrorThreshold = DefaultErrorThreshold
	}

	return &Engine{
		store:          opts.Store,
		writer:         opts.Writer,
		backup:         opts.Backup,
		gauge:          opts.Quota,
		limiter:        opts.Limiter,
		logger:         shared.WithLogger(opts.Logger, "component", "sync"),
		progress:       opts.Progress,
		batchSize:      opts.BatchSize,
		pauseThreshold: opts.PauseThreshold,
		errorThreshold: opts.ErrorThreshold,
	}
}

// sendProgress sends a progress update through the channel without blocking.
func (e *Engine) sendProgress(update ProgressUpdate) {
	if e.progress == nil {
		return
	}
	select {
	case e.progress <- update:
	default:
	}
}

// CurrentJob returns the single non-terminal job, or nil.
func (e *Engine) CurrentJob(ctx context.Context) (*models.SyncJob, error) {
	return e.store.SyncJobs().GetActive(ctx)
}

// GetJob returns a job by id regardless of stage.
func (e *Engine) GetJob(ctx context.Context, id string) (*models.SyncJob, error) {
	return e.store.SyncJobs().Get(ctx, id)
}

// CreateJob freezes preview onto a new pending job.
//
// It returns [ErrJobActive] while another job is non-terminal.
func (e *Engine) CreateJob(ctx context.Context, preview *models.SyncPreview) (*models.SyncJob, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if preview == nil {
		return nil, fmt.Errorf("%w: preview is required", shared.ErrMissingArgument)
	}

	active, err := e.store.SyncJobs().GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check for active job: %w", err)
	}
	if active != nil {
		return nil, fmt.Errorf("%w: job %s is %s", ErrJobActive, active.ID(), active.Stage)
	}

	job := models.NewSyncJob(*preview)
	if err := e.store.SyncJobs().Create(ctx, job); err != nil {
		if errors.Is(err, models.ErrActiveJobExists) {
			return nil, fmt.Errorf("%w: %v", ErrJobActive, err)
		}
		return nil, fmt.Errorf("failed to create sync job: %w", err)
	}

	e.logger.Info("sync job created", "job_id", job.ID(), "quota_cost", preview.TotalQuotaCost)
	return job, nil
}

// PauseJob diverts a processing job to paused. Other stages yield [ErrJobNotActive].
func (e *Engine) PauseJob(ctx context.Context, jobID string, reason models.PauseReason) (*models.SyncJob, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !reason.Valid() {
		return nil, fmt.Errorf("%w: pause reason %q", shared.ErrInvalidArgument, reason)
	}

	job, err := e.store.SyncJobs().Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.Stage.Processing() {
		return nil, fmt.Errorf("%w: job %s is %s", ErrJobNotActive, job.ID(), job.Stage)
	}

	job.Pause(reason)
	if err := e.store.SyncJobs().Update(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to pause sync job: %w", err)
	}

	e.logger.Info("sync job paused", "job_id", job.ID(), "stage", job.PausedFromStage, "reason", reason)
	e.sendProgress(pausedUpdate(job))
	return job, nil
}

// ResumeJob returns a paused job to the stage it paused in. Other stages yield [ErrJobNotPaused].
func (e *Engine) ResumeJob(ctx context.Context, jobID string) (*models.SyncJob, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	job, err := e.store.SyncJobs().Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Stage != models.StagePaused {
		return nil, fmt.Errorf("%w: job %s is %s", ErrJobNotPaused, job.ID(), job.Stage)
	}

	job.Resume()
	if err := e.store.SyncJobs().Update(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to resume sync job: %w", err)
	}

	e.logger.Info("sync job resumed", "job_id", job.ID(), "stage", job.Stage, "errors_reviewed", job.ErrorsReviewed)
	e.sendProgress(resumedUpdate(job))
	return job, nil
}

// batch tracks the write budget of one ProcessBatch call.
type batch struct {
	token  string
	budget int
	calls  int
}

func (b *batch) spend() {
	b.budget--
	b.calls++
}

// ProcessBatch advances the active job by at most maxOperations remote writes and returns it.
//
// Stages without remote work cascade in the same call. The call returns once the budget is spent,
// the job pauses or fails, or a stage that issued writes during this call completes.
// A paused job is returned unchanged. A non-positive maxOperations uses the configured batch size.
func (e *Engine) ProcessBatch(ctx context.Context, accessToken string, maxOperations int) (*models.SyncJob, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if accessToken == "" {
		return nil, shared.ErrNotAuthenticated
	}
	if maxOperations <= 0 {
		maxOperations = e.batchSize
	}

	job, err := e.store.SyncJobs().GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active job: %w", err)
	}
	if job == nil {
		return nil, ErrNoActiveJob
	}
	if job.Stage == models.StagePaused {
		return job, nil
	}

	b := &batch{token: accessToken, budget: maxOperations}
	for job.Stage.Processing() {
		before := b.calls

		complete, err := e.step(ctx, job, b)
		if err == nil && complete {
			err = e.advance(ctx, job)
		}
		if err != nil {
			if ctx.Err() != nil {
				return job, ctx.Err()
			}
			return e.fail(ctx, job, err)
		}
		if !complete || b.calls > before {
			break
		}
	}

	e.logger.Debug("batch processed",
		"job_id", job.ID(),
		"stage", job.Stage,
		"writes", b.calls,
		"progress", job.CurrentStageProgress,
		"total", job.CurrentStageTotal,
	)
	return job, nil
}

// step runs the current stage until it completes, the budget is spent or the job pauses.
func (e *Engine) step(ctx context.Context, job *models.SyncJob, b *batch) (bool, error) {
	switch job.Stage {
	case models.StagePending:
		return true, nil
	case models.StageBackup:
		return e.runBackup(ctx, job)
	case models.StageCreatePlaylists:
		return e.createPlaylists(ctx, job, b)
	case models.StageAddVideos:
		return e.addVideos(ctx, job, b)
	case models.StageDeletePlaylists:
		return e.deletePlaylists(ctx, job, b)
	default:
		return false, nil
	}
}

// advance moves a job whose stage has completed to the next stage and persists it.
func (e *Engine) advance(ctx context.Context, job *models.SyncJob) error {
	preview := job.Preview.Stages

	switch next := job.Stage.Next(); next {
	case models.StageBackup:
		job.EnterStage(next, 1)
	case models.StageCreatePlaylists:
		job.EnterStage(next, len(preview.CreatePlaylists.Items))
	case models.StageAddVideos:
		return e.enterAddVideos(ctx, job)
	case models.StageDeletePlaylists:
		job.EnterStage(next, len(preview.DeletePlaylists.Items))
	case models.StageCompleted:
		job.Complete()
	default:
		return fmt.Errorf("cannot advance a job in stage %s", job.Stage)
	}

	if err := e.commit(ctx, job, nil); err != nil {
		return err
	}
	e.announce(job)
	return nil
}

func (e *Engine) announce(job *models.SyncJob) {
	if job.Stage == models.StageCompleted {
		e.logger.Info("sync job completed", "job_id", job.ID(), "quota_used", job.QuotaUsedThisSync, "errors", len(job.Errors))
		e.sendProgress(completedUpdate(job))
		return
	}
	e.logger.Info("sync stage entered", "job_id", job.ID(), "stage", job.Stage, "total", job.CurrentStageTotal)
	e.sendProgress(stageEnteredUpdate(job))
}

// commit persists job, together with fn's writes when fn is not nil, in one transaction.
func (e *Engine) commit(ctx context.Context, job *models.SyncJob, fn func(tx models.Store) error) error {
	return e.store.WithTx(ctx, func(tx models.Store) error {
		if fn != nil {
			if err := fn(tx); err != nil {
				return err
			}
		}
		return tx.SyncJobs().Update(ctx, job)
	})
}

// fail records an infrastructure fault on the persisted job and moves it to failed.
func (e *Engine) fail(ctx context.Context, job *models.SyncJob, cause error) (*models.SyncJob, error) {
	stage := job.Stage
	e.logger.Error("sync job failed", "job_id", job.ID(), "stage", stage, "error", cause)

	stored, err := e.store.SyncJobs().Get(ctx, job.ID())
	if err != nil {
		return nil, fmt.Errorf("failed to reload job after %v: %w", cause, err)
	}

	stored.Fail(stage, cause.Error())
	if err := e.store.SyncJobs().Update(ctx, stored); err != nil {
		return nil, fmt.Errorf("failed to mark job failed after %v: %w", cause, err)
	}

	e.sendProgress(failedUpdate(stored, cause))
	return stored, nil
}

// gate reports whether one more write of cost units may be issued. When quota runs low it pauses job.
func (e *Engine) gate(ctx context.Context, job *models.SyncJob, b *batch, cost int) (bool, error) {
	if b.budget <= 0 {
		return false, nil
	}

	if e.gauge != nil {
		remaining, err := e.gauge.Remaining(ctx)
		if err != nil {
			return false, fmt.Errorf("failed to read quota: %w", err)
		}
		if remaining < e.pauseThreshold {
			e.logger.Warn("quota below pause threshold", "remaining", remaining, "threshold", e.pauseThreshold)
			job.Pause(models.PauseQuotaExhausted)
			return false, nil
		}
	}

	if e.limiter != nil && e.limiter.Reservoir() < cost {
		e.logger.Warn("rate limiter reservoir exhausted", "reservoir", e.limiter.Reservoir(), "cost", cost)
		job.Pause(models.PauseQuotaExhausted)
		return false, nil
	}

	return true, nil
}

// recordFailure appends a per-item error and pauses the job once too many are unreviewed.
func (e *Engine) recordFailure(job *models.SyncJob, entity models.EntityType, entityID string, err error) {
	job.AddError(job.Stage, entity, entityID, err.Error())
	if job.Stage.RemoteStage() {
		job.StageResults.For(job.Stage).Failed++
	}

	e.logger.Warn("sync item failed", "job_id", job.ID(), "stage", job.Stage, "entity", entityID, "error", err)

	if job.UnreviewedErrors() >= e.errorThreshold {
		job.Pause(models.PauseErrorsCollected)
	}
}

// pauseForQuota pauses job after the remote or the limiter refused a write, and persists it.
func (e *Engine) pauseForQuota(ctx context.Context, job *models.SyncJob, cause error) error {
	e.logger.Warn("quota exhausted, pausing", "job_id", job.ID(), "stage", job.Stage, "error", cause)
	job.Pause(models.PauseQuotaExhausted)
	if err := e.commit(ctx, job, nil); err != nil {
		return err
	}
	e.sendProgress(pausedUpdate(job))
	return nil
}

// stopped persists a job that gate declined to continue, announcing a pause if one happened.
func (e *Engine) stopped(ctx context.Context, job *models.SyncJob) (bool, error) {
	if job.Stage != models.StagePaused {
		return false, nil
	}
	if err := e.commit(ctx, job, nil); err != nil {
		return false, err
	}
	e.sendProgress(pausedUpdate(job))
	return false, nil
}

func isQuotaError(err error) bool {
	return errors.Is(err, shared.ErrQuotaExceeded) || errors.Is(err, shared.ErrQuotaExhausted)
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

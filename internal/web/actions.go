package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytsort/internal/models"
	"github.com/desertthunder/ytsort/internal/quota"
	"github.com/desertthunder/ytsort/internal/shared"
	"github.com/desertthunder/ytsort/internal/tasks"
)

// User-facing action messages.
const (
	MsgNotAuthenticated = "Not authenticated"
	MsgSyncInProgress   = "A sync operation is already in progress"
	MsgNothingToPause   = "No active sync job to pause"
	MsgNothingToResume  = "No paused sync job to resume"
	MsgNoActiveJob      = "No active sync job"
)

// TokenProvider yields the caller's YouTube access token.
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
}

// SyncEngine is the job control surface the actions drive.
type SyncEngine interface {
	CurrentJob(ctx context.Context) (*models.SyncJob, error)
	CreateJob(ctx context.Context, preview *models.SyncPreview) (*models.SyncJob, error)
	PauseJob(ctx context.Context, jobID string, reason models.PauseReason) (*models.SyncJob, error)
	ResumeJob(ctx context.Context, jobID string) (*models.SyncJob, error)
	ProcessBatch(ctx context.Context, accessToken string, maxOperations int) (*models.SyncJob, error)
}

type PreviewSource interface {
	ComputePreview(ctx context.Context) (*models.SyncPreview, error)
}

type QuotaReporter interface {
	Status(ctx context.Context) (quota.Status, error)
}

// Result is the uniform shape every action returns.
type Result struct {
	Success bool                `json:"success"`
	Job     *models.SyncJob     `json:"job,omitempty"`
	Preview *models.SyncPreview `json:"preview,omitempty"`
	Quota   *quota.Status       `json:"quota,omitempty"`
	Error   string              `json:"error,omitempty"`

	status int
}

// StatusCode maps the result to an HTTP status.
func (r Result) StatusCode() int {
	if r.Success {
		return http.StatusOK
	}
	if r.status != 0 {
		return r.status
	}
	return http.StatusInternalServerError
}

// Actions is the thin layer between callers (CLI, HTTP, TUI) and the sync engine.
//
// No action returns an error; failures are reported through [Result.Error].
type Actions struct {
	engine  SyncEngine
	preview PreviewSource
	quota   QuotaReporter
	tokens  TokenProvider
	logger  *log.Logger
}

// ActionsOpts configures [Actions]. Quota is optional.
type ActionsOpts struct {
	Engine  SyncEngine
	Preview PreviewSource
	Quota   QuotaReporter
	Tokens  TokenProvider
	Logger  *log.Logger
}

func NewActions(opts ActionsOpts) *Actions {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Actions{
		engine:  opts.Engine,
		preview: opts.Preview,
		quota:   opts.Quota,
		tokens:  opts.Tokens,
		logger:  shared.WithLogger(opts.Logger, "component", "actions"),
	}
}

func (a *Actions) accessToken(ctx context.Context) (string, bool) {
	if a.tokens == nil {
		return "", false
	}
	token, err := a.tokens.AccessToken(ctx)
	if err != nil {
		a.logger.Debug("access token unavailable", "error", err)
		return "", false
	}
	return token, token != ""
}

func (a *Actions) failed(verb string, err error) Result {
	a.logger.Warn("action failed", "action", verb, "error", err)
	return Result{Error: "Failed to " + verb + ": " + err.Error(), status: http.StatusInternalServerError}
}

func unauthenticated() Result {
	return Result{Error: MsgNotAuthenticated, status: http.StatusUnauthorized}
}

func conflict(msg string) Result {
	return Result{Error: msg, status: http.StatusConflict}
}

// GetSyncPreview computes what a sync would do now.
func (a *Actions) GetSyncPreview(ctx context.Context) Result {
	if _, ok := a.accessToken(ctx); !ok {
		return unauthenticated()
	}

	preview, err := a.preview.ComputePreview(ctx)
	if err != nil {
		return a.failed("compute sync preview", err)
	}
	return Result{Success: true, Preview: preview}
}

// StartSync freezes a fresh preview onto a new pending job.
func (a *Actions) StartSync(ctx context.Context) Result {
	if _, ok := a.accessToken(ctx); !ok {
		return unauthenticated()
	}

	existing, err := a.engine.CurrentJob(ctx)
	if err != nil {
		return a.failed("start sync", err)
	}
	if existing != nil {
		return conflict(MsgSyncInProgress)
	}

	preview, err := a.preview.ComputePreview(ctx)
	if err != nil {
		return a.failed("start sync", err)
	}

	job, err := a.engine.CreateJob(ctx, preview)
	if errors.Is(err, tasks.ErrJobActive) {
		return conflict(MsgSyncInProgress)
	}
	if err != nil {
		return a.failed("start sync", err)
	}
	return Result{Success: true, Job: job}
}

// PauseSync pauses the active job at the user's request.
func (a *Actions) PauseSync(ctx context.Context) Result {
	if _, ok := a.accessToken(ctx); !ok {
		return unauthenticated()
	}

	current, err := a.engine.CurrentJob(ctx)
	if err != nil {
		return a.failed("pause sync", err)
	}
	if current == nil || !current.Stage.Processing() {
		return conflict(MsgNothingToPause)
	}

	job, err := a.engine.PauseJob(ctx, current.ID(), models.PauseUserPaused)
	if err != nil {
		return a.failed("pause sync", err)
	}
	return Result{Success: true, Job: job}
}

// ResumeSync returns a paused job to the stage it paused in.
func (a *Actions) ResumeSync(ctx context.Context) Result {
	if _, ok := a.accessToken(ctx); !ok {
		return unauthenticated()
	}

	current, err := a.engine.CurrentJob(ctx)
	if err != nil {
		return a.failed("resume sync", err)
	}
	if current == nil || current.Stage != models.StagePaused {
		return conflict(MsgNothingToResume)
	}

	job, err := a.engine.ResumeJob(ctx, current.ID())
	if err != nil {
		return a.failed("resume sync", err)
	}
	return Result{Success: true, Job: job}
}

// GetSyncProgress returns the active job, which may be nil.
func (a *Actions) GetSyncProgress(ctx context.Context) Result {
	if _, ok := a.accessToken(ctx); !ok {
		return unauthenticated()
	}

	job, err := a.engine.CurrentJob(ctx)
	if err != nil {
		return a.failed("get sync progress", err)
	}
	return Result{Success: true, Job: job}
}

// RunSyncBatch advances the active job by one bounded batch. A non-positive maxOperations uses the engine default.
func (a *Actions) RunSyncBatch(ctx context.Context, maxOperations int) Result {
	token, ok := a.accessToken(ctx)
	if !ok {
		return unauthenticated()
	}

	current, err := a.engine.CurrentJob(ctx)
	if err != nil {
		return a.failed("process sync batch", err)
	}
	if current == nil || !current.Stage.Processing() {
		return conflict(MsgNoActiveJob)
	}

	job, err := a.engine.ProcessBatch(ctx, token, maxOperations)
	if err != nil {
		return a.failed("process sync batch", err)
	}
	return Result{Success: true, Job: job}
}

// GetQuotaStatus reports today's unit usage.
func (a *Actions) GetQuotaStatus(ctx context.Context) Result {
	if _, ok := a.accessToken(ctx); !ok {
		return unauthenticated()
	}
	if a.quota == nil {
		return a.failed("get quota status", shared.ErrNotImplemented)
	}

	status, err := a.quota.Status(ctx)
	if err != nil {
		return a.failed("get quota status", err)
	}
	return Result{Success: true, Quota: &status}
}

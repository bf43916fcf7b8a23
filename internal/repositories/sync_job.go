package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/desertthunder/ytsort/internal/models"
	"github.com/desertthunder/ytsort/internal/shared"
	"github.com/mattn/go-sqlite3"
)

// ErrActiveJobExists is returned when inserting a second non-terminal sync job.
var ErrActiveJobExists = models.ErrActiveJobExists

const syncJobColumns = `id, sequence, stage, current_stage_progress, current_stage_total, stage_results, errors,
	errors_reviewed, quota_used_this_sync, pause_reason, paused_from_stage, preview_data, backup_snapshot_id,
	started_at, last_resumed_at, completed_at, created_at, updated_at`

// SyncJobRepository implements [models.SyncJobRepository].
//
// The active_slot column holds 1 for non-terminal jobs and NULL otherwise; its UNIQUE constraint
// enforces the single active job.
type SyncJobRepository struct {
	db DBTX
}

func NewSyncJobRepository(db DBTX) *SyncJobRepository {
	return &SyncJobRepository{db: db}
}

func activeSlot(stage models.Stage) any {
	if stage.Terminal() {
		return nil
	}
	return 1
}

// Create inserts a job. A second non-terminal job yields [ErrActiveJobExists].
func (r *SyncJobRepository) Create(ctx context.Context, job *models.SyncJob) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	payload, err := encodeSyncJob(job)
	if err != nil {
		return err
	}

	sequence, err := NextSequence(ctx, r.db, "sync_jobs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	job.SetID(shared.GenerateID())
	job.SetSequence(sequence)

	query := `
		INSERT INTO sync_jobs (` + syncJobColumns + `, active_slot)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		job.ID(),
		sequence,
		job.Stage,
		job.CurrentStageProgress,
		job.CurrentStageTotal,
		payload.results,
		payload.errors,
		job.ErrorsReviewed,
		job.QuotaUsedThisSync,
		nullString(string(job.PauseReason)),
		nullString(string(job.PausedFromStage)),
		payload.preview,
		nullString(job.BackupSnapshotID),
		job.StartedAt,
		nullTime(job.LastResumedAt),
		nullTime(job.CompletedAt),
		job.CreatedAt(),
		job.UpdatedAt(),
		activeSlot(job.Stage),
	)
	if isUniqueViolation(err) {
		return ErrActiveJobExists
	}
	if err != nil {
		return fmt.Errorf("failed to insert sync job: %w", err)
	}

	return nil
}

func (r *SyncJobRepository) Get(ctx context.Context, id string) (*models.SyncJob, error) {
	query := `SELECT ` + syncJobColumns + ` FROM sync_jobs WHERE id = ?`
	return r.scan(r.db.QueryRowContext(ctx, query, id))
}

// GetActive returns the non-terminal job or nil.
func (r *SyncJobRepository) GetActive(ctx context.Context) (*models.SyncJob, error) {
	query := `SELECT ` + syncJobColumns + ` FROM sync_jobs WHERE active_slot = 1`
	job, err := r.scan(r.db.QueryRowContext(ctx, query))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return job, err
}

// Update persists every mutable column of the job. The preview is frozen and never rewritten.
func (r *SyncJobRepository) Update(ctx context.Context, job *models.SyncJob) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	payload, err := encodeSyncJob(job)
	if err != nil {
		return err
	}

	job.SetUpdatedAt(models.Now())

	query := `
		UPDATE sync_jobs
		SET stage = ?, active_slot = ?, current_stage_progress = ?, current_stage_total = ?, stage_results = ?,
		    errors = ?, errors_reviewed = ?, quota_used_this_sync = ?, pause_reason = ?, paused_from_stage = ?,
		    backup_snapshot_id = ?, last_resumed_at = ?, completed_at = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		job.Stage,
		activeSlot(job.Stage),
		job.CurrentStageProgress,
		job.CurrentStageTotal,
		payload.results,
		payload.errors,
		job.ErrorsReviewed,
		job.QuotaUsedThisSync,
		nullString(string(job.PauseReason)),
		nullString(string(job.PausedFromStage)),
		nullString(job.BackupSnapshotID),
		nullTime(job.LastResumedAt),
		nullTime(job.CompletedAt),
		job.UpdatedAt(),
		job.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update sync job: %w", err)
	}

	return checkAffected(result, "sync job", job.ID())
}

// List returns jobs newest first. Criteria: "stage" (models.Stage), "limit" (int).
func (r *SyncJobRepository) List(ctx context.Context, criteria map[string]any) ([]*models.SyncJob, error) {
	query := `SELECT ` + syncJobColumns + ` FROM sync_jobs WHERE 1 = 1`
	args := []any{}

	if stage, ok := criteria["stage"].(models.Stage); ok && stage != "" {
		query += " AND stage = ?"
		args = append(args, stage)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.SyncJob
	for rows.Next() {
		job, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return jobs, nil
}

func (r *SyncJobRepository) scan(row rowScanner) (*models.SyncJob, error) {
	var (
		job                             models.SyncJob
		id, stage                       string
		sequence                        int
		results, errs, preview          string
		pauseReason, pausedFrom, backup sql.NullString
		startedAt, createdAt, updatedAt sql.NullTime
		lastResumedAt, completedAt      sql.NullTime
	)

	err := row.Scan(&id, &sequence, &stage, &job.CurrentStageProgress, &job.CurrentStageTotal, &results, &errs,
		&job.ErrorsReviewed, &job.QuotaUsedThisSync, &pauseReason, &pausedFrom, &preview, &backup,
		&startedAt, &lastResumedAt, &completedAt, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: sync job", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan sync job: %w", err)
	}

	if job.Stage, err = models.ParseStage(stage); err != nil {
		return nil, fmt.Errorf("failed to decode sync job %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(results), &job.StageResults); err != nil {
		return nil, fmt.Errorf("failed to decode stage results: %w", err)
	}
	if err := json.Unmarshal([]byte(errs), &job.Errors); err != nil {
		return nil, fmt.Errorf("failed to decode sync errors: %w", err)
	}
	if err := json.Unmarshal([]byte(preview), &job.Preview); err != nil {
		return nil, fmt.Errorf("failed to decode preview data: %w", err)
	}

	job.Restore(id, sequence, createdAt.Time.UTC(), updatedAt.Time.UTC())
	job.PauseReason = models.PauseReason(pauseReason.String)
	job.PausedFromStage = models.Stage(pausedFrom.String)
	job.BackupSnapshotID = backup.String
	job.StartedAt = startedAt.Time.UTC()
	job.LastResumedAt = timePtr(lastResumedAt)
	job.CompletedAt = timePtr(completedAt)
	if job.Errors == nil {
		job.Errors = []models.SyncError{}
	}

	return &job, nil
}

type syncJobPayload struct {
	results, errors, preview string
}

func encodeSyncJob(job *models.SyncJob) (syncJobPayload, error) {
	var p syncJobPayload

	results, err := json.Marshal(job.StageResults)
	if err != nil {
		return p, fmt.Errorf("failed to encode stage results: %w", err)
	}

	errs := job.Errors
	if errs == nil {
		errs = []models.SyncError{}
	}
	errorsJSON, err := json.Marshal(errs)
	if err != nil {
		return p, fmt.Errorf("failed to encode sync errors: %w", err)
	}

	preview, err := json.Marshal(job.Preview)
	if err != nil {
		return p, fmt.Errorf("failed to encode preview data: %w", err)
	}

	return syncJobPayload{results: string(results), errors: string(errorsJSON), preview: string(preview)}, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/ytsort/internal/models"
	"github.com/desertthunder/ytsort/internal/shared"
)

const operationColumns = `id, sequence, sync_job_id, category_id, video_id, youtube_video_id, status, error_message, completed_at, created_at, updated_at`

// SyncVideoOperationRepository implements [models.SyncVideoOperationRepository].
type SyncVideoOperationRepository struct {
	db DBTX
}

func NewSyncVideoOperationRepository(db DBTX) *SyncVideoOperationRepository {
	return &SyncVideoOperationRepository{db: db}
}

// CreateIfMissing inserts op unless its (job, category, video) key already exists.
//
// A skipped insert leaves op without an id and reports false.
func (r *SyncVideoOperationRepository) CreateIfMissing(ctx context.Context, op *models.SyncVideoOperation) (bool, error) {
	if err := op.Validate(); err != nil {
		return false, fmt.Errorf("validation failed: %w", err)
	}

	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM sync_video_operations WHERE sync_job_id = ? AND category_id = ? AND video_id = ?)`,
		op.SyncJobID, op.CategoryID, op.VideoID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check sync operation: %w", err)
	}
	if exists {
		return false, nil
	}

	sequence, err := NextSequence(ctx, r.db, "sync_video_operations")
	if err != nil {
		return false, fmt.Errorf("failed to generate sequence: %w", err)
	}

	op.SetID(shared.GenerateID())
	op.SetSequence(sequence)

	query := `INSERT INTO sync_video_operations (` + operationColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		op.ID(), sequence, op.SyncJobID, op.CategoryID, op.VideoID, op.YouTubeVideoID,
		op.Status, nullString(op.ErrorMessage), nullTime(op.CompletedAt), op.CreatedAt(), op.UpdatedAt(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert sync operation: %w", err)
	}
	return true, nil
}

// Update writes the status, message and completion time of an operation.
func (r *SyncVideoOperationRepository) Update(ctx context.Context, op *models.SyncVideoOperation) error {
	if err := op.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	op.SetUpdatedAt(models.Now())

	result, err := r.db.ExecContext(ctx,
		`UPDATE sync_video_operations SET status = ?, error_message = ?, completed_at = ?, updated_at = ? WHERE id = ?`,
		op.Status, nullString(op.ErrorMessage), nullTime(op.CompletedAt), op.UpdatedAt(), op.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update sync operation: %w", err)
	}
	return checkAffected(result, "sync operation", op.ID())
}

// ListByJob returns a job's operations in materialization order.
//
// An empty status matches all rows; limit <= 0 means no limit.
func (r *SyncVideoOperationRepository) ListByJob(ctx context.Context, jobID string, status models.OperationStatus, limit int) ([]*models.SyncVideoOperation, error) {
	query := `SELECT ` + operationColumns + ` FROM sync_video_operations WHERE sync_job_id = ?`
	args := []any{jobID}

	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	query += " ORDER BY sequence ASC"

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync operations: %w", err)
	}
	defer rows.Close()

	var ops []*models.SyncVideoOperation
	for rows.Next() {
		var (
			op                   models.SyncVideoOperation
			id, status           string
			sequence             int
			message              sql.NullString
			completedAt          sql.NullTime
			createdAt, updatedAt time.Time
		)
		if err := rows.Scan(&id, &sequence, &op.SyncJobID, &op.CategoryID, &op.VideoID, &op.YouTubeVideoID,
			&status, &message, &completedAt, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sync operation: %w", err)
		}
		op.Restore(id, sequence, createdAt.UTC(), updatedAt.UTC())
		op.Status = models.OperationStatus(status)
		op.ErrorMessage = message.String
		op.CompletedAt = timePtr(completedAt)
		ops = append(ops, &op)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return ops, nil
}

// CountByStatus tallies a job's operations per status.
func (r *SyncVideoOperationRepository) CountByStatus(ctx context.Context, jobID string) (map[models.OperationStatus]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM sync_video_operations WHERE sync_job_id = ? GROUP BY status`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to count sync operations: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.OperationStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan operation count: %w", err)
		}
		counts[models.OperationStatus(status)] = n
	}
	return counts, rows.Err()
}

package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/ytsort/internal/models"
	"github.com/desertthunder/ytsort/internal/shared"
)

const backupColumns = `id, sequence, filename, trigger_type, scope, entity_count, file_size_bytes, checksum, created_at, updated_at`

// BackupSnapshotRepository implements [models.BackupSnapshotRepository].
type BackupSnapshotRepository struct {
	db DBTX
}

func NewBackupSnapshotRepository(db DBTX) *BackupSnapshotRepository {
	return &BackupSnapshotRepository{db: db}
}

func (r *BackupSnapshotRepository) Create(ctx context.Context, b *models.BackupSnapshot) error {
	if err := b.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(ctx, r.db, "backup_snapshots")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	b.SetID(shared.GenerateID())
	b.SetSequence(sequence)

	query := `INSERT INTO backup_snapshots (` + backupColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query,
		b.ID(), sequence, b.Filename, b.Trigger, b.Scope, b.EntityCount, b.FileSizeBytes, b.Checksum, b.CreatedAt(), b.UpdatedAt(),
	); err != nil {
		return fmt.Errorf("failed to insert backup snapshot: %w", err)
	}
	return nil
}

func (r *BackupSnapshotRepository) Get(ctx context.Context, id string) (*models.BackupSnapshot, error) {
	query := `SELECT ` + backupColumns + ` FROM backup_snapshots WHERE id = ?`
	return r.scan(r.db.QueryRowContext(ctx, query, id))
}

// List returns snapshots newest first. Criteria: "trigger" (string), "limit" (int).
func (r *BackupSnapshotRepository) List(ctx context.Context, criteria map[string]any) ([]*models.BackupSnapshot, error) {
	query := `SELECT ` + backupColumns + ` FROM backup_snapshots WHERE 1 = 1`
	args := []any{}

	if trigger, ok := criteria["trigger"].(string); ok && trigger != "" {
		query += " AND trigger_type = ?"
		args = append(args, trigger)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query backup snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []*models.BackupSnapshot
	for rows.Next() {
		b, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return snapshots, nil
}

func (r *BackupSnapshotRepository) scan(row rowScanner) (*models.BackupSnapshot, error) {
	var (
		b                    models.BackupSnapshot
		id                   string
		sequence             int
		createdAt, updatedAt time.Time
	)

	err := row.Scan(&id, &sequence, &b.Filename, &b.Trigger, &b.Scope, &b.EntityCount, &b.FileSizeBytes, &b.Checksum, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: backup snapshot", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan backup snapshot: %w", err)
	}

	b.Restore(id, sequence, createdAt.UTC(), updatedAt.UTC())
	return &b, nil
}

package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/desertthunder/ytsort/internal/models"
	"github.com/desertthunder/ytsort/internal/shared"
)

// QuotaUsageRepository implements [models.QuotaUsageRepository].
type QuotaUsageRepository struct {
	db DBTX
}

func NewQuotaUsageRepository(db DBTX) *QuotaUsageRepository {
	return &QuotaUsageRepository{db: db}
}

func (r *QuotaUsageRepository) Create(ctx context.Context, q *models.QuotaUsage) error {
	if err := q.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	var details sql.NullString
	if len(q.Details) > 0 {
		data, err := json.Marshal(q.Details)
		if err != nil {
			return fmt.Errorf("failed to encode quota details: %w", err)
		}
		details = sql.NullString{String: string(data), Valid: true}
	}

	sequence, err := NextSequence(ctx, r.db, "quota_usage")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	q.SetID(shared.GenerateID())
	q.SetSequence(sequence)

	query := `
		INSERT INTO quota_usage (id, sequence, date, units_used, operation, details, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := r.db.ExecContext(ctx, query,
		q.ID(), sequence, q.Date.UTC(), q.UnitsUsed, q.Operation, details, q.CreatedAt(), q.UpdatedAt(),
	); err != nil {
		return fmt.Errorf("failed to insert quota usage: %w", err)
	}
	return nil
}

// SumSince totals units recorded at or after since.
func (r *QuotaUsageRepository) SumSince(ctx context.Context, since time.Time) (int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(units_used), 0) FROM quota_usage WHERE date >= ?`, since.UTC(),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum quota usage: %w", err)
	}
	return total, nil
}

// ListSince returns entries at or after since in recording order.
func (r *QuotaUsageRepository) ListSince(ctx context.Context, since time.Time) ([]*models.QuotaUsage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, sequence, date, units_used, operation, details, created_at, updated_at
		FROM quota_usage
		WHERE date >= ?
		ORDER BY sequence ASC
	`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query quota usage: %w", err)
	}
	defer rows.Close()

	var entries []*models.QuotaUsage
	for rows.Next() {
		var (
			q                    models.QuotaUsage
			id                   string
			sequence             int
			details              sql.NullString
			createdAt, updatedAt time.Time
		)
		if err := rows.Scan(&id, &sequence, &q.Date, &q.UnitsUsed, &q.Operation, &details, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan quota usage: %w", err)
		}
		if details.Valid {
			if err := json.Unmarshal([]byte(details.String), &q.Details); err != nil {
				return nil, fmt.Errorf("failed to decode quota details: %w", err)
			}
		}
		q.Restore(id, sequence, createdAt.UTC(), updatedAt.UTC())
		q.Date = q.Date.UTC()
		entries = append(entries, &q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return entries, nil
}

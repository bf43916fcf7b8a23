package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/ytsort/internal/models"
	"github.com/desertthunder/ytsort/internal/shared"
)

// CategoryVideoRepository implements [models.CategoryVideoRepository].
//
// Creating or removing an edge keeps categories.video_count in step.
type CategoryVideoRepository struct {
	db DBTX
}

func NewCategoryVideoRepository(db DBTX) *CategoryVideoRepository {
	return &CategoryVideoRepository{db: db}
}

// Create inserts a membership edge and bumps the category's video count.
func (r *CategoryVideoRepository) Create(ctx context.Context, cv *models.CategoryVideo) error {
	if err := cv.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(ctx, r.db, "category_videos")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	cv.SetID(shared.GenerateID())
	cv.SetSequence(sequence)

	query := `
		INSERT INTO category_videos (id, sequence, category_id, video_id, source, added_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := r.db.ExecContext(ctx, query,
		cv.ID(), sequence, cv.CategoryID, cv.VideoID, cv.Source, cv.AddedAt, cv.CreatedAt(), cv.UpdatedAt(),
	); err != nil {
		return fmt.Errorf("failed to insert category video: %w", err)
	}

	if _, err := r.db.ExecContext(ctx,
		`UPDATE categories SET video_count = video_count + 1, updated_at = ? WHERE id = ?`,
		models.Now(), cv.CategoryID,
	); err != nil {
		return fmt.Errorf("failed to update category video count: %w", err)
	}

	return nil
}

// ListByCategory returns a category's memberships in insertion order, joined with their videos.
//
// A non-zero addedBefore excludes memberships added after it.
func (r *CategoryVideoRepository) ListByCategory(ctx context.Context, categoryID string, addedBefore time.Time) ([]*models.CategoryVideo, error) {
	query := `
		SELECT cv.id, cv.sequence, cv.category_id, cv.video_id, cv.source, cv.added_at, cv.created_at, cv.updated_at,
		       v.youtube_id, v.title
		FROM category_videos cv
		JOIN videos v ON v.id = cv.video_id
		WHERE cv.category_id = ?
	`
	args := []any{categoryID}

	if !addedBefore.IsZero() {
		query += " AND cv.added_at <= ?"
		args = append(args, addedBefore.UTC())
	}

	query += " ORDER BY cv.sequence ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query category videos: %w", err)
	}
	defer rows.Close()

	var members []*models.CategoryVideo
	for rows.Next() {
		var (
			cv                 models.CategoryVideo
			id                 string
			sequence           int
			createdAt, updated time.Time
		)
		if err := rows.Scan(&id, &sequence, &cv.CategoryID, &cv.VideoID, &cv.Source, &cv.AddedAt, &createdAt, &updated,
			&cv.VideoYouTubeID, &cv.VideoTitle); err != nil {
			return nil, fmt.Errorf("failed to scan category video: %w", err)
		}
		cv.Restore(id, sequence, createdAt.UTC(), updated.UTC())
		cv.AddedAt = cv.AddedAt.UTC()
		members = append(members, &cv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return members, nil
}

// CountByCategory returns the number of memberships per category id.
func (r *CategoryVideoRepository) CountByCategory(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT category_id, COUNT(*) FROM category_videos GROUP BY category_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to count category videos: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("failed to scan category count: %w", err)
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/ytsort/internal/models"
	"github.com/desertthunder/ytsort/internal/shared"
)

const videoColumns = `id, sequence, youtube_id, title, channel_title, duration_seconds, thumbnail_url, deleted_from_youtube_at, created_at, updated_at`

// VideoRepository implements [models.VideoRepository].
type VideoRepository struct {
	db DBTX
}

func NewVideoRepository(db DBTX) *VideoRepository {
	return &VideoRepository{db: db}
}

// Create inserts a video. youtube_id is unique.
func (r *VideoRepository) Create(ctx context.Context, video *models.Video) error {
	if err := video.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(ctx, r.db, "videos")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	video.SetID(shared.GenerateID())
	video.SetSequence(sequence)

	var duration sql.NullInt64
	if video.DurationSeconds != nil {
		duration = sql.NullInt64{Int64: int64(*video.DurationSeconds), Valid: true}
	}

	query := `INSERT INTO videos (` + videoColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		video.ID(), sequence, video.YouTubeID, video.Title, video.ChannelTitle, duration,
		nullString(video.ThumbnailURL), nullTime(video.DeletedFromYouTubeAt), video.CreatedAt(), video.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert video: %w", err)
	}
	return nil
}

func (r *VideoRepository) Get(ctx context.Context, id string) (*models.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos WHERE id = ?`
	return r.scan(r.db.QueryRowContext(ctx, query, id))
}

func (r *VideoRepository) GetByYouTubeID(ctx context.Context, youtubeID string) (*models.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos WHERE youtube_id = ?`
	return r.scan(r.db.QueryRowContext(ctx, query, youtubeID))
}

func (r *VideoRepository) Update(ctx context.Context, video *models.Video) error {
	if err := video.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	video.SetUpdatedAt(models.Now())

	var duration sql.NullInt64
	if video.DurationSeconds != nil {
		duration = sql.NullInt64{Int64: int64(*video.DurationSeconds), Valid: true}
	}

	query := `
		UPDATE videos
		SET title = ?, channel_title = ?, duration_seconds = ?, thumbnail_url = ?, deleted_from_youtube_at = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		video.Title, video.ChannelTitle, duration, nullString(video.ThumbnailURL),
		nullTime(video.DeletedFromYouTubeAt), video.UpdatedAt(), video.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update video: %w", err)
	}
	return checkAffected(result, "video", video.ID())
}

// List returns videos in sequence order. Criteria: "limit" (int).
func (r *VideoRepository) List(ctx context.Context, criteria map[string]any) ([]*models.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos ORDER BY sequence ASC`
	args := []any{}
	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query videos: %w", err)
	}
	defer rows.Close()

	var videos []*models.Video
	for rows.Next() {
		v, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return videos, nil
}

func (r *VideoRepository) scan(row rowScanner) (*models.Video, error) {
	var (
		v         models.Video
		id        string
		sequence  int
		duration  sql.NullInt64
		thumbnail sql.NullString
		deletedAt sql.NullTime
		createdAt sql.NullTime
		updatedAt sql.NullTime
	)

	err := row.Scan(&id, &sequence, &v.YouTubeID, &v.Title, &v.ChannelTitle, &duration, &thumbnail, &deletedAt, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: video", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan video: %w", err)
	}

	v.Restore(id, sequence, createdAt.Time.UTC(), updatedAt.Time.UTC())
	if duration.Valid {
		d := int(duration.Int64)
		v.DurationSeconds = &d
	}
	v.ThumbnailURL = thumbnail.String
	v.DeletedFromYouTubeAt = timePtr(deletedAt)
	return &v, nil
}

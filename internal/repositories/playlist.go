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

const playlistColumns = `id, sequence, youtube_id, title, description, item_count, deleted_from_youtube_at, created_at, updated_at`

// PlaylistRepository implements [models.PlaylistRepository] for legacy remote playlists.
type PlaylistRepository struct {
	db DBTX
}

// NewPlaylistRepository creates a new PlaylistRepository with the given database connection
func NewPlaylistRepository(db DBTX) *PlaylistRepository {
	return &PlaylistRepository{db: db}
}

// Create inserts a new playlist into the database with generated ID and sequence
func (r *PlaylistRepository) Create(ctx context.Context, playlist *models.Playlist) error {
	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(ctx, r.db, "playlists")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	playlist.SetID(shared.GenerateID())
	playlist.SetSequence(sequence)

	query := `INSERT INTO playlists (` + playlistColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		playlist.ID(),
		sequence,
		playlist.YouTubeID,
		playlist.Title,
		playlist.Description,
		playlist.ItemCount,
		nullTime(playlist.DeletedFromYouTubeAt),
		playlist.CreatedAt(),
		playlist.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert playlist: %w", err)
	}

	return nil
}

// Get retrieves a playlist by ID, including retired playlists
func (r *PlaylistRepository) Get(ctx context.Context, id string) (*models.Playlist, error) {
	query := `SELECT ` + playlistColumns + ` FROM playlists WHERE id = ?`
	return r.scan(r.db.QueryRowContext(ctx, query, id))
}

// GetByYouTubeID retrieves a playlist by its remote id
func (r *PlaylistRepository) GetByYouTubeID(ctx context.Context, youtubeID string) (*models.Playlist, error) {
	query := `SELECT ` + playlistColumns + ` FROM playlists WHERE youtube_id = ?`
	return r.scan(r.db.QueryRowContext(ctx, query, youtubeID))
}

// Update modifies an existing playlist in the database
func (r *PlaylistRepository) Update(ctx context.Context, playlist *models.Playlist) error {
	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	playlist.SetUpdatedAt(models.Now())

	query := `
		UPDATE playlists
		SET title = ?, description = ?, item_count = ?, deleted_from_youtube_at = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		playlist.Title,
		playlist.Description,
		playlist.ItemCount,
		nullTime(playlist.DeletedFromYouTubeAt),
		playlist.UpdatedAt(),
		playlist.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update playlist: %w", err)
	}

	return checkAffected(result, "playlist", playlist.ID())
}

// MarkDeleted records that the remote playlist is gone
func (r *PlaylistRepository) MarkDeleted(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE playlists
		SET deleted_from_youtube_at = ?, updated_at = ?
		WHERE id = ? AND deleted_from_youtube_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, at.UTC(), models.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to mark playlist deleted: %w", err)
	}

	return checkAffected(result, "playlist", id)
}

// List retrieves playlists in sequence order.
//
// Criteria: "retired" (bool) filters on deleted_from_youtube_at.
func (r *PlaylistRepository) List(ctx context.Context, criteria map[string]any) ([]*models.Playlist, error) {
	query := `SELECT ` + playlistColumns + ` FROM playlists WHERE 1 = 1`

	if retired, ok := criteria["retired"].(bool); ok {
		if retired {
			query += " AND deleted_from_youtube_at IS NOT NULL"
		} else {
			query += " AND deleted_from_youtube_at IS NULL"
		}
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	defer rows.Close()

	var playlists []*models.Playlist
	for rows.Next() {
		playlist, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, playlist)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return playlists, nil
}

func (r *PlaylistRepository) scan(row rowScanner) (*models.Playlist, error) {
	var (
		p         models.Playlist
		id        string
		sequence  int
		deletedAt sql.NullTime
		createdAt sql.NullTime
		updatedAt sql.NullTime
	)

	err := row.Scan(&id, &sequence, &p.YouTubeID, &p.Title, &p.Description, &p.ItemCount, &deletedAt, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: playlist", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan playlist: %w", err)
	}

	p.Restore(id, sequence, createdAt.Time.UTC(), updatedAt.Time.UTC())
	p.DeletedFromYouTubeAt = timePtr(deletedAt)
	return &p, nil
}

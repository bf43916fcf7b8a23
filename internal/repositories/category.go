package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/ytsort/internal/models"
	"github.com/desertthunder/ytsort/internal/shared"
)

const categoryColumns = `id, sequence, name, source_proposal_id, is_protected, youtube_playlist_id, video_count, created_at, updated_at, deleted_at`

// CategoryRepository implements [models.CategoryRepository] with soft delete support.
type CategoryRepository struct {
	db DBTX
}

// NewCategoryRepository creates a new CategoryRepository with the given database connection
func NewCategoryRepository(db DBTX) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// Create inserts a new category with generated ID and sequence
func (r *CategoryRepository) Create(ctx context.Context, category *models.Category) error {
	if err := category.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(ctx, r.db, "categories")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	category.SetID(shared.GenerateID())
	category.SetSequence(sequence)

	query := `
		INSERT INTO categories (` + categoryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		category.ID(),
		sequence,
		category.Name,
		nullString(category.SourceProposalID),
		category.IsProtected,
		nullString(category.YouTubePlaylistID),
		category.VideoCount,
		category.CreatedAt(),
		category.UpdatedAt(),
		nullTime(category.DeletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert category: %w", err)
	}

	return nil
}

// Get retrieves a category by ID, excluding soft-deleted categories
func (r *CategoryRepository) Get(ctx context.Context, id string) (*models.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE id = ? AND deleted_at IS NULL`
	return r.scan(r.db.QueryRowContext(ctx, query, id))
}

// GetByName retrieves a live category by its display name
func (r *CategoryRepository) GetByName(ctx context.Context, name string) (*models.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE name = ? AND deleted_at IS NULL`
	return r.scan(r.db.QueryRowContext(ctx, query, name))
}

// Update modifies an existing category
func (r *CategoryRepository) Update(ctx context.Context, category *models.Category) error {
	if err := category.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	category.SetUpdatedAt(models.Now())

	query := `
		UPDATE categories
		SET name = ?, source_proposal_id = ?, is_protected = ?, youtube_playlist_id = ?, video_count = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query,
		category.Name,
		nullString(category.SourceProposalID),
		category.IsProtected,
		nullString(category.YouTubePlaylistID),
		category.VideoCount,
		category.UpdatedAt(),
		category.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update category: %w", err)
	}

	return checkAffected(result, "category", category.ID())
}

// SetYouTubePlaylistID stores the remote playlist created for a category
func (r *CategoryRepository) SetYouTubePlaylistID(ctx context.Context, id, playlistID string) error {
	query := `UPDATE categories SET youtube_playlist_id = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, nullString(playlistID), models.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set category playlist: %w", err)
	}

	return checkAffected(result, "category", id)
}

// Delete soft-deletes a category by ID. Protected categories cannot be deleted.
func (r *CategoryRepository) Delete(ctx context.Context, id string) error {
	now := models.Now()

	query := `
		UPDATE categories
		SET deleted_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL AND is_protected = 0
	`

	result, err := r.db.ExecContext(ctx, query, now, now, id)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}

	return checkAffected(result, "category", id)
}

// List retrieves live categories in sequence order.
//
// Criteria: "protected" (bool) filters on is_protected, "has_playlist" (bool) on youtube_playlist_id.
func (r *CategoryRepository) List(ctx context.Context, criteria map[string]any) ([]*models.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE deleted_at IS NULL`
	args := []any{}

	if protected, ok := criteria["protected"].(bool); ok {
		query += " AND is_protected = ?"
		args = append(args, protected)
	}

	if hasPlaylist, ok := criteria["has_playlist"].(bool); ok {
		if hasPlaylist {
			query += " AND youtube_playlist_id IS NOT NULL"
		} else {
			query += " AND youtube_playlist_id IS NULL"
		}
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var categories []*models.Category
	for rows.Next() {
		category, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return categories, nil
}

func (r *CategoryRepository) scan(row rowScanner) (*models.Category, error) {
	var (
		c                 models.Category
		id                string
		sequence          int
		sourceProposalID  sql.NullString
		youtubePlaylistID sql.NullString
		createdAt         sql.NullTime
		updatedAt         sql.NullTime
		deletedAt         sql.NullTime
	)

	err := row.Scan(&id, &sequence, &c.Name, &sourceProposalID, &c.IsProtected, &youtubePlaylistID, &c.VideoCount, &createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: category", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan category: %w", err)
	}

	c.Restore(id, sequence, createdAt.Time.UTC(), updatedAt.Time.UTC())
	c.SourceProposalID = sourceProposalID.String
	c.YouTubePlaylistID = youtubePlaylistID.String
	c.DeletedAt = timePtr(deletedAt)

	return &c, nil
}

package tasks

import (
	"context"
	"fmt"

	"github.com/desertthunder/ytsort/internal/models"
	"github.com/desertthunder/ytsort/internal/quota"
)

// Calculator computes the plan a new sync job would freeze.
type Calculator struct {
	store      models.Store
	dailyLimit int
}

// NewCalculator creates a Calculator. A non-positive dailyLimit falls back to [quota.DefaultDailyLimit].
func NewCalculator(store models.Store, dailyLimit int) *Calculator {
	if dailyLimit <= 0 {
		dailyLimit = quota.DefaultDailyLimit
	}
	return &Calculator{store: store, dailyLimit: dailyLimit}
}

// ComputePreview reads the library and returns the remote work a sync would perform and its unit cost.
//
// It has no side effects. Protected categories are left out of every stage.
func (c *Calculator) ComputePreview(ctx context.Context) (*models.SyncPreview, error) {
	categories, err := c.store.Categories().List(ctx, map[string]any{"protected": false})
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	counts, err := c.store.Memberships().CountByCategory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count category videos: %w", err)
	}

	playlists, err := c.store.Playlists().List(ctx, map[string]any{"retired": false})
	if err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}

	preview := &models.SyncPreview{DailyQuotaLimit: c.dailyLimit}
	stages := &preview.Stages

	stages.CreatePlaylists.Items = []models.CreatePlaylistItem{}
	stages.AddVideos.ByCategory = []models.CategoryVideoCount{}
	stages.DeletePlaylists.Items = []models.DeletePlaylistItem{}

	for _, category := range categories {
		if !category.HasPlaylist() {
			stages.CreatePlaylists.Items = append(stages.CreatePlaylists.Items, models.CreatePlaylistItem{
				CategoryID:   category.ID(),
				CategoryName: category.Name,
			})
		}

		if n := counts[category.ID()]; n > 0 {
			stages.AddVideos.ByCategory = append(stages.AddVideos.ByCategory, models.CategoryVideoCount{
				CategoryID:   category.ID(),
				CategoryName: category.Name,
				VideoCount:   n,
			})
			stages.AddVideos.Count += n
		}
	}

	for _, playlist := range playlists {
		stages.DeletePlaylists.Items = append(stages.DeletePlaylists.Items, models.DeletePlaylistItem{
			PlaylistID:   playlist.ID(),
			PlaylistName: playlist.Title,
			YouTubeID:    playlist.YouTubeID,
		})
	}

	stages.CreatePlaylists.Count = len(stages.CreatePlaylists.Items)
	stages.DeletePlaylists.Count = len(stages.DeletePlaylists.Items)

	stages.CreatePlaylists.QuotaCost = stages.CreatePlaylists.Count * quota.Cost(quota.OpPlaylistsInsert)
	stages.AddVideos.QuotaCost = stages.AddVideos.Count * quota.Cost(quota.OpPlaylistItemsInsert)
	stages.DeletePlaylists.QuotaCost = stages.DeletePlaylists.Count * quota.Cost(quota.OpPlaylistsDelete)

	preview.TotalQuotaCost = stages.CreatePlaylists.QuotaCost + stages.AddVideos.QuotaCost + stages.DeletePlaylists.QuotaCost
	preview.EstimatedDays = (preview.TotalQuotaCost + c.dailyLimit - 1) / c.dailyLimit

	return preview, nil
}

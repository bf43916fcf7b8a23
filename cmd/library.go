package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/desertthunder/ytsort/internal/models"
	"github.com/desertthunder/ytsort/internal/repositories"
	"github.com/desertthunder/ytsort/internal/services"
	"github.com/desertthunder/ytsort/internal/shared"
	"github.com/urfave/cli/v3"
)

// CategorySeed is one entry of a `categories import` file.
type CategorySeed struct {
	Name              string      `json:"name"`
	IsProtected       bool        `json:"isProtected"`
	YouTubePlaylistID string      `json:"youtubePlaylistId,omitempty"`
	Videos            []VideoSeed `json:"videos"`
}

// VideoSeed is a video listed under a [CategorySeed].
type VideoSeed struct {
	YouTubeID string `json:"youtubeId"`
	Title     string `json:"title"`
	Channel   string `json:"channel,omitempty"`
}

// PlaylistSeed is one entry of a `playlists import` file.
type PlaylistSeed struct {
	YouTubeID   string `json:"youtubeId"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	ItemCount   int    `json:"itemCount"`
}

// ImportSummary counts what an import changed.
type ImportSummary struct {
	Created     int `json:"created"`
	Existing    int `json:"existing"`
	Videos      int `json:"videos"`
	Memberships int `json:"memberships"`
}

type categoryRow struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	VideoCount        int    `json:"videoCount"`
	YouTubePlaylistID string `json:"youtubePlaylistId,omitempty"`
	IsProtected       bool   `json:"isProtected"`
}

type playlistRow struct {
	ID        string     `json:"id"`
	YouTubeID string     `json:"youtubeId"`
	Title     string     `json:"title"`
	ItemCount int        `json:"itemCount"`
	DeletedAt *time.Time `json:"deletedFromYoutubeAt"`
}

func readSeeds[T any](path string) ([]T, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: path to a JSON file", shared.ErrMissingArgument)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var seeds []T
	if err := json.Unmarshal(data, &seeds); err != nil {
		return nil, fmt.Errorf("%w: %s is not a JSON array: %v", shared.ErrInvalidInput, path, err)
	}
	return seeds, nil
}

// ImportCategories upserts categories by name, videos by YouTube id and their membership edges in one transaction.
func ImportCategories(ctx context.Context, store *repositories.Store, seeds []CategorySeed) (ImportSummary, error) {
	var summary ImportSummary
	err := store.WithTx(ctx, func(tx models.Store) error {
		for _, seed := range seeds {
			category, err := tx.Categories().GetByName(ctx, seed.Name)
			switch {
			case errors.Is(err, models.ErrNotFound):
				category = models.NewCategory(seed.Name, seed.IsProtected || seed.Name == models.UncategorizedName)
				category.YouTubePlaylistID = seed.YouTubePlaylistID
				if err := tx.Categories().Create(ctx, category); err != nil {
					return fmt.Errorf("category %q: %w", seed.Name, err)
				}
				summary.Created++
			case err != nil:
				return err
			default:
				summary.Existing++
			}

			members, err := tx.Memberships().ListByCategory(ctx, category.ID(), time.Time{})
			if err != nil {
				return err
			}
			present := make(map[string]bool, len(members))
			for _, m := range members {
				present[m.VideoYouTubeID] = true
			}

			for _, v := range seed.Videos {
				if present[v.YouTubeID] {
					continue
				}
				video, err := tx.Videos().GetByYouTubeID(ctx, v.YouTubeID)
				if errors.Is(err, models.ErrNotFound) {
					video = models.NewVideo(v.YouTubeID, v.Title, v.Channel)
					if err := tx.Videos().Create(ctx, video); err != nil {
						return fmt.Errorf("video %q: %w", v.YouTubeID, err)
					}
					summary.Videos++
				} else if err != nil {
					return err
				}

				if err := tx.Memberships().Create(ctx, models.NewCategoryVideo(category.ID(), video.ID(), models.SourceImport)); err != nil {
					return err
				}
				present[v.YouTubeID] = true
				summary.Memberships++
			}
		}
		return nil
	})
	return summary, err
}

// ImportPlaylists records legacy playlists, skipping known ones and any that back a category.
func ImportPlaylists(ctx context.Context, store *repositories.Store, seeds []PlaylistSeed) (ImportSummary, error) {
	var summary ImportSummary
	err := store.WithTx(ctx, func(tx models.Store) error {
		categories, err := tx.Categories().List(ctx, nil)
		if err != nil {
			return err
		}
		owned := make(map[string]bool, len(categories))
		for _, c := range categories {
			if c.HasPlaylist() {
				owned[c.YouTubePlaylistID] = true
			}
		}

		for _, seed := range seeds {
			if owned[seed.YouTubeID] {
				summary.Existing++
				continue
			}
			_, err := tx.Playlists().GetByYouTubeID(ctx, seed.YouTubeID)
			switch {
			case err == nil:
				summary.Existing++
				continue
			case !errors.Is(err, models.ErrNotFound):
				return err
			}

			playlist := models.NewPlaylist(seed.YouTubeID, seed.Title, seed.ItemCount)
			playlist.Description = seed.Description
			if err := tx.Playlists().Create(ctx, playlist); err != nil {
				return fmt.Errorf("playlist %q: %w", seed.YouTubeID, err)
			}
			summary.Created++
		}
		return nil
	})
	return summary, err
}

func remoteSeeds(remote []services.RemotePlaylist) []PlaylistSeed {
	seeds := make([]PlaylistSeed, len(remote))
	for i, p := range remote {
		seeds[i] = PlaylistSeed{YouTubeID: p.ID, Title: p.Title, Description: p.Description, ItemCount: p.ItemCount}
	}
	return seeds
}

// CategoriesImport reads a JSON array of categories with their videos.
func (r *Runner) CategoriesImport(ctx context.Context, cmd *cli.Command) error {
	seeds, err := readSeeds[CategorySeed](cmd.StringArg("path"))
	if err != nil {
		return err
	}

	summary, err := ImportCategories(ctx, r.store, seeds)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	r.logger.Info("categories imported", "created", summary.Created, "videos", summary.Videos, "memberships", summary.Memberships)
	return r.writePlain("✓ Categories: %d created, %d existing\n  Videos: %d new, %d memberships added\n",
		summary.Created, summary.Existing, summary.Videos, summary.Memberships)
}

// CategoriesList prints every category with its playlist state.
func (r *Runner) CategoriesList(ctx context.Context, cmd *cli.Command) error {
	categories, err := r.store.Categories().List(ctx, nil)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		rows := make([]categoryRow, len(categories))
		for i, c := range categories {
			rows[i] = categoryRow{ID: c.ID(), Name: c.Name, VideoCount: c.VideoCount, YouTubePlaylistID: c.YouTubePlaylistID, IsProtected: c.IsProtected}
		}
		return r.writeJSON(rows, true)
	}

	if len(categories) == 0 {
		return r.writePlain("No categories. Import some with 'ytsort categories import <file>'\n")
	}

	tw := tabwriter.NewWriter(r.output, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tVIDEOS\tPLAYLIST\tPROTECTED")
	for _, c := range categories {
		playlist := c.YouTubePlaylistID
		if playlist == "" {
			playlist = "-"
		}
		protected := ""
		if c.IsProtected {
			protected = "yes"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", c.Name, c.VideoCount, playlist, protected)
	}
	return tw.Flush()
}

// PlaylistsImport records legacy playlists from a file, or from the account with --remote.
func (r *Runner) PlaylistsImport(ctx context.Context, cmd *cli.Command) error {
	var seeds []PlaylistSeed
	if cmd.Bool("remote") {
		token, err := r.tokens.AccessToken(ctx)
		if err != nil {
			return err
		}
		remote, err := r.lister.ListPlaylists(ctx, token)
		if err != nil {
			return fmt.Errorf("failed to list playlists: %w", err)
		}
		seeds = remoteSeeds(remote)
	} else {
		var err error
		if seeds, err = readSeeds[PlaylistSeed](cmd.StringArg("path")); err != nil {
			return err
		}
	}

	summary, err := ImportPlaylists(ctx, r.store, seeds)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	r.logger.Info("playlists imported", "created", summary.Created, "existing", summary.Existing)
	return r.writePlain("✓ Playlists: %d imported, %d skipped\n", summary.Created, summary.Existing)
}

// PlaylistsList prints the legacy playlists and whether they are retired.
func (r *Runner) PlaylistsList(ctx context.Context, cmd *cli.Command) error {
	playlists, err := r.store.Playlists().List(ctx, nil)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		rows := make([]playlistRow, len(playlists))
		for i, p := range playlists {
			rows[i] = playlistRow{ID: p.ID(), YouTubeID: p.YouTubeID, Title: p.Title, ItemCount: p.ItemCount, DeletedAt: p.DeletedFromYouTubeAt}
		}
		return r.writeJSON(rows, true)
	}

	if len(playlists) == 0 {
		return r.writePlain("No playlists. Import some with 'ytsort playlists import'\n")
	}

	tw := tabwriter.NewWriter(r.output, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "YOUTUBE ID\tTITLE\tITEMS\tSTATE")
	for _, p := range playlists {
		state := "active"
		if p.Retired() {
			state = "deleted"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", p.YouTubeID, p.Title, p.ItemCount, state)
	}
	return tw.Flush()
}

package models

import (
	"fmt"
	"strings"
	"time"
)

// UncategorizedName is the protected catch-all category that sync never touches.
const UncategorizedName = "Uncategorized"

// MembershipSource values for [CategoryVideo.Source].
const (
	SourceConsolidation = "consolidation"
	SourceManual        = "manual"
	SourceImport        = "import"
)

// Category is a user-approved grouping of videos that maps to one remote playlist after sync.
type Category struct {
	Record
	Name              string
	SourceProposalID  string
	IsProtected       bool
	YouTubePlaylistID string
	VideoCount        int
	DeletedAt         *time.Time
}

// NewCategory creates an unsaved category.
func NewCategory(name string, protected bool) *Category {
	return &Category{Record: NewRecord(), Name: name, IsProtected: protected}
}

// HasPlaylist reports whether the category already has a remote playlist.
func (c *Category) HasPlaylist() bool { return c.YouTubePlaylistID != "" }

func (c *Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("category name is required")
	}
	if c.VideoCount < 0 {
		return fmt.Errorf("category video count cannot be negative")
	}
	return nil
}

// Video is a YouTube video known to the local library.
type Video struct {
	Record
	YouTubeID            string
	Title                string
	ChannelTitle         string
	DurationSeconds      *int
	ThumbnailURL         string
	DeletedFromYouTubeAt *time.Time
}

// NewVideo creates an unsaved video.
func NewVideo(youtubeID, title, channel string) *Video {
	return &Video{Record: NewRecord(), YouTubeID: youtubeID, Title: title, ChannelTitle: channel}
}

func (v *Video) Validate() error {
	if v.YouTubeID == "" {
		return fmt.Errorf("video youtube id is required")
	}
	if v.Title == "" {
		return fmt.Errorf("video title is required")
	}
	return nil
}

// CategoryVideo is a membership edge between a category and a video.
//
// VideoYouTubeID and VideoTitle are filled from the joined video row on reads and are not persisted.
type CategoryVideo struct {
	Record
	CategoryID string
	VideoID    string
	Source     string
	AddedAt    time.Time

	VideoYouTubeID string
	VideoTitle     string
}

// NewCategoryVideo creates an unsaved membership added now.
func NewCategoryVideo(categoryID, videoID, source string) *CategoryVideo {
	if source == "" {
		source = SourceConsolidation
	}
	rec := NewRecord()
	return &CategoryVideo{Record: rec, CategoryID: categoryID, VideoID: videoID, Source: source, AddedAt: rec.CreatedAt()}
}

func (cv *CategoryVideo) Validate() error {
	if cv.CategoryID == "" || cv.VideoID == "" {
		return fmt.Errorf("category video requires category and video ids")
	}
	return nil
}

// Playlist is a legacy remote playlist tracked locally; these are the delete targets of a sync.
type Playlist struct {
	Record
	YouTubeID            string
	Title                string
	Description          string
	ItemCount            int
	DeletedFromYouTubeAt *time.Time
}

// NewPlaylist creates an unsaved playlist.
func NewPlaylist(youtubeID, title string, itemCount int) *Playlist {
	return &Playlist{Record: NewRecord(), YouTubeID: youtubeID, Title: title, ItemCount: itemCount}
}

// Retired reports whether the remote playlist has been deleted.
func (p *Playlist) Retired() bool { return p.DeletedFromYouTubeAt != nil }

func (p *Playlist) Validate() error {
	if p.YouTubeID == "" {
		return fmt.Errorf("playlist youtube id is required")
	}
	if p.Title == "" {
		return fmt.Errorf("playlist title is required")
	}
	return nil
}

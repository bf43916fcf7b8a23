// package services wraps the remote APIs ytsort talks to.
//
// YouTube Data API v3
package services

import (
	"context"
)

// PlaylistWriter performs the remote mutations a sync job is made of.
//
// Every method takes the caller's OAuth access token so a single writer can be shared across requests.
type PlaylistWriter interface {
	// CreatePlaylist creates a playlist and returns its remote id.
	CreatePlaylist(ctx context.Context, accessToken, title, description string) (string, error)

	// AddVideoToPlaylist appends a video and returns the remote playlist item id.
	AddVideoToPlaylist(ctx context.Context, accessToken, playlistID, videoID string) (string, error)

	// DeletePlaylist removes a playlist.
	DeletePlaylist(ctx context.Context, accessToken, playlistID string) error
}

// PlaylistLister reads the authenticated user's playlists.
type PlaylistLister interface {
	ListPlaylists(ctx context.Context, accessToken string) ([]RemotePlaylist, error)
}

// RemotePlaylist is a playlist as reported by the remote API.
type RemotePlaylist struct {
	ID          string `json:"youtubeId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ItemCount   int    `json:"itemCount"`
	Privacy     string `json:"privacy"`
}

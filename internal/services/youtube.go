// YouTube Data API v3 implementation of [PlaylistWriter] and [PlaylistLister]
package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytsort/internal/quota"
	"github.com/desertthunder/ytsort/internal/shared"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

const defaultPrivacy = "private"

// YouTubeOpts configures a [YouTubeService].
type YouTubeOpts struct {
	Limiter *quota.Limiter
	Ledger  *quota.Ledger
	Logger  *log.Logger

	// Privacy is the privacyStatus of created playlists, default private.
	Privacy string

	// Endpoint and Transport override the API base URL and HTTP transport, mostly for tests.
	Endpoint  string
	Transport http.RoundTripper
}

// YouTubeService writes playlists through the YouTube Data API.
//
// Every call is scheduled by the shared [quota.Limiter] and recorded in the [quota.Ledger] on success.
type YouTubeService struct {
	limiter   *quota.Limiter
	ledger    *quota.Ledger
	logger    *log.Logger
	privacy   string
	endpoint  string
	transport http.RoundTripper
}

// NewYouTubeService creates a YouTubeService. A nil limiter gets a default one.
func NewYouTubeService(opts YouTubeOpts) *YouTubeService {
	if opts.Limiter == nil {
		opts.Limiter = quota.NewLimiter(quota.LimiterOpts{})
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Privacy == "" {
		opts.Privacy = defaultPrivacy
	}
	if opts.Transport == nil {
		opts.Transport = http.DefaultTransport
	}

	return &YouTubeService{
		limiter:   opts.Limiter,
		ledger:    opts.Ledger,
		logger:    shared.WithLogger(opts.Logger, "component", "youtube"),
		privacy:   opts.Privacy,
		endpoint:  opts.Endpoint,
		transport: opts.Transport,
	}
}

// Name returns the service name.
func (y *YouTubeService) Name() string {
	return "YouTube"
}

// client builds an API client that authorizes every request with accessToken.
func (y *YouTubeService) client(ctx context.Context, accessToken string) (*youtube.Service, error) {
	if accessToken == "" {
		return nil, shared.ErrNotAuthenticated
	}

	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}),
			Base:   y.transport,
		},
	}

	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if y.endpoint != "" {
		opts = append(opts, option.WithEndpoint(y.endpoint))
	}

	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create youtube client: %w", err)
	}
	return svc, nil
}

// call runs fn through the limiter as op and records the spend once it succeeds.
func (y *YouTubeService) call(ctx context.Context, op string, details map[string]any, fn func(ctx context.Context) error) error {
	err := y.limiter.Call(ctx, quota.Cost(op), func(ctx context.Context) error {
		return classify(op, fn(ctx))
	})
	if err != nil {
		return err
	}

	if y.ledger != nil {
		if err := y.ledger.Record(ctx, op, details); err != nil {
			y.logger.Warn("quota usage not recorded", "operation", op, "error", err)
		}
	}
	return nil
}

// CreatePlaylist creates a playlist with the configured privacy.
func (y *YouTubeService) CreatePlaylist(ctx context.Context, accessToken, title, description string) (string, error) {
	svc, err := y.client(ctx, accessToken)
	if err != nil {
		return "", err
	}

	playlist := &youtube.Playlist{
		Snippet: &youtube.PlaylistSnippet{Title: title, Description: description},
		Status:  &youtube.PlaylistStatus{PrivacyStatus: y.privacy},
	}

	var id string
	err = y.call(ctx, quota.OpPlaylistsInsert, map[string]any{"title": title}, func(ctx context.Context) error {
		resp, err := svc.Playlists.Insert([]string{"snippet", "status"}, playlist).Context(ctx).Do()
		if err != nil {
			return err
		}
		id = resp.Id
		return nil
	})
	if err != nil {
		return "", err
	}

	y.logger.Debug("playlist created", "title", title, "playlist_id", id)
	return id, nil
}

// AddVideoToPlaylist inserts videoID at the end of playlistID.
func (y *YouTubeService) AddVideoToPlaylist(ctx context.Context, accessToken, playlistID, videoID string) (string, error) {
	svc, err := y.client(ctx, accessToken)
	if err != nil {
		return "", err
	}

	item := &youtube.PlaylistItem{
		Snippet: &youtube.PlaylistItemSnippet{
			PlaylistId: playlistID,
			ResourceId: &youtube.ResourceId{Kind: "youtube#video", VideoId: videoID},
		},
	}

	var id string
	details := map[string]any{"playlistId": playlistID, "videoId": videoID}
	err = y.call(ctx, quota.OpPlaylistItemsInsert, details, func(ctx context.Context) error {
		resp, err := svc.PlaylistItems.Insert([]string{"snippet"}, item).Context(ctx).Do()
		if err != nil {
			return err
		}
		id = resp.Id
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// DeletePlaylist deletes playlistID.
func (y *YouTubeService) DeletePlaylist(ctx context.Context, accessToken, playlistID string) error {
	svc, err := y.client(ctx, accessToken)
	if err != nil {
		return err
	}

	return y.call(ctx, quota.OpPlaylistsDelete, map[string]any{"playlistId": playlistID}, func(ctx context.Context) error {
		return svc.Playlists.Delete(playlistID).Context(ctx).Do()
	})
}

// ListPlaylists pages through the authenticated user's playlists.
func (y *YouTubeService) ListPlaylists(ctx context.Context, accessToken string) ([]RemotePlaylist, error) {
	svc, err := y.client(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	var playlists []RemotePlaylist
	pageToken := ""
	for {
		err := y.call(ctx, quota.OpPlaylistsList, map[string]any{"pageToken": pageToken}, func(ctx context.Context) error {
			resp, err := svc.Playlists.List([]string{"snippet", "contentDetails", "status"}).
				Mine(true).
				MaxResults(50).
				PageToken(pageToken).
				Context(ctx).
				Do()
			if err != nil {
				return err
			}

			for _, item := range resp.Items {
				p := RemotePlaylist{ID: item.Id}
				if item.Snippet != nil {
					p.Title = item.Snippet.Title
					p.Description = item.Snippet.Description
				}
				if item.ContentDetails != nil {
					p.ItemCount = int(item.ContentDetails.ItemCount)
				}
				if item.Status != nil {
					p.Privacy = item.Status.PrivacyStatus
				}
				playlists = append(playlists, p)
			}
			pageToken = resp.NextPageToken
			return nil
		})
		if err != nil {
			return nil, err
		}

		if pageToken == "" {
			break
		}
	}

	y.logger.Info("fetched playlists", "count", len(playlists))
	return playlists, nil
}

// Package services implements the remote side of a sync: [PlaylistWriter] and [PlaylistLister] over the YouTube Data API.
//
// # YouTube Implementation
//
// [YouTubeService] uses google.golang.org/api/youtube/v3. The client is built per call from the caller's access token,
// so the same service value serves the CLI, the HTTP handlers and the TUI.
//
// Every request goes through the shared [quota.Limiter], which bounds concurrency, spaces calls and retries
// rate-limited responses. Successful calls are written to the [quota.Ledger] at their unit cost.
//
// # Error Handling
//
// API failures are returned as [*RemoteError], which unwraps to a shared sentinel:
//   - [shared.ErrQuotaExceeded] : 403 quotaExceeded or dailyLimitExceeded, never retried
//   - [shared.ErrRateLimited] : 429 or 403 rateLimitExceeded, retried by the limiter
//   - [shared.ErrConflict] : 409, e.g. the video is already in the playlist
//   - [shared.ErrNotFound] : 404, e.g. the playlist is already gone
//   - [shared.ErrAuthFailed] : 401
//   - [shared.ErrServiceUnavailable] : 5xx
//   - [shared.ErrAPIRequest] : anything else
//
// # OAuth
//
// [NewOAuthConfig] builds the Google authorization-code config with the youtube scope used by auth login.
package services

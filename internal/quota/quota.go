// Package quota tracks daily YouTube Data API unit consumption and schedules remote calls against it.
//
// The [Ledger] persists every write to the quota_usage table and answers how many units remain
// today. The [Limiter] is the process-wide scheduling primitive: it bounds concurrency, spaces
// calls, holds an in-memory daily reservoir and retries rate-limited responses with backoff.
package quota

// Operation names as they appear in the quota ledger.
const (
	OpPlaylistsList       = "playlists.list"
	OpPlaylistsInsert     = "playlists.insert"
	OpPlaylistsUpdate     = "playlists.update"
	OpPlaylistsDelete     = "playlists.delete"
	OpPlaylistItemsList   = "playlistItems.list"
	OpPlaylistItemsInsert = "playlistItems.insert"
	OpPlaylistItemsDelete = "playlistItems.delete"
	OpVideosList          = "videos.list"
	OpChannelsList        = "channels.list"
)

// DefaultDailyLimit is the YouTube Data API default project quota.
const DefaultDailyLimit = 10000

// Costs maps operation names to their unit cost.
var Costs = map[string]int{
	OpPlaylistsList:       1,
	OpPlaylistItemsList:   1,
	OpVideosList:          1,
	OpChannelsList:        1,
	OpPlaylistsInsert:     50,
	OpPlaylistsUpdate:     50,
	OpPlaylistsDelete:     50,
	OpPlaylistItemsInsert: 50,
	OpPlaylistItemsDelete: 50,
}

// Cost returns the unit cost of op. Unknown operations cost 1, like the read endpoints.
func Cost(op string) int {
	if c, ok := Costs[op]; ok {
		return c
	}
	return 1
}

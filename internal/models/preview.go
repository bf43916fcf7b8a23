package models

// SyncPreview is the plan of remote operations a sync would perform and their quota cost.
type SyncPreview struct {
	Stages          PreviewStages `json:"stages"`
	TotalQuotaCost  int           `json:"totalQuotaCost"`
	EstimatedDays   int           `json:"estimatedDays"`
	DailyQuotaLimit int           `json:"dailyQuotaLimit"`
}

type PreviewStages struct {
	CreatePlaylists CreatePlaylistsPreview `json:"createPlaylists"`
	AddVideos       AddVideosPreview       `json:"addVideos"`
	DeletePlaylists DeletePlaylistsPreview `json:"deletePlaylists"`
}

type CreatePlaylistsPreview struct {
	Count     int                  `json:"count"`
	QuotaCost int                  `json:"quotaCost"`
	Items     []CreatePlaylistItem `json:"items"`
}

type CreatePlaylistItem struct {
	CategoryID   string `json:"categoryId"`
	CategoryName string `json:"categoryName"`
}

type AddVideosPreview struct {
	Count      int                  `json:"count"`
	QuotaCost  int                  `json:"quotaCost"`
	ByCategory []CategoryVideoCount `json:"byCategory"`
}

type CategoryVideoCount struct {
	CategoryID   string `json:"categoryId"`
	CategoryName string `json:"categoryName"`
	VideoCount   int    `json:"videoCount"`
}

type DeletePlaylistsPreview struct {
	Count     int                  `json:"count"`
	QuotaCost int                  `json:"quotaCost"`
	Items     []DeletePlaylistItem `json:"items"`
}

type DeletePlaylistItem struct {
	PlaylistID   string `json:"playlistId"`
	PlaylistName string `json:"playlistName"`
	YouTubeID    string `json:"youtubeId"`
}

// Clone returns a deep copy so a job's frozen preview cannot alias caller slices.
func (p SyncPreview) Clone() SyncPreview {
	out := p
	out.Stages.CreatePlaylists.Items = append([]CreatePlaylistItem{}, p.Stages.CreatePlaylists.Items...)
	out.Stages.AddVideos.ByCategory = append([]CategoryVideoCount{}, p.Stages.AddVideos.ByCategory...)
	out.Stages.DeletePlaylists.Items = append([]DeletePlaylistItem{}, p.Stages.DeletePlaylists.Items...)
	return out
}

// Empty reports whether the preview plans no remote work.
func (p SyncPreview) Empty() bool { return p.TotalQuotaCost == 0 }

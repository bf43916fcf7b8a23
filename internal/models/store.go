package models

import (
	"context"
	"time"
)

// CategoryRepository persists categories.
//
// List criteria: "protected" (bool), "has_playlist" (bool).
type CategoryRepository interface {
	Repository[*Category]
	Delete(ctx context.Context, id string) error
	GetByName(ctx context.Context, name string) (*Category, error)
	SetYouTubePlaylistID(ctx context.Context, id, playlistID string) error
}

// VideoRepository persists videos.
type VideoRepository interface {
	Repository[*Video]
	GetByYouTubeID(ctx context.Context, youtubeID string) (*Video, error)
}

// CategoryVideoRepository persists membership edges.
type CategoryVideoRepository interface {
	Create(ctx context.Context, cv *CategoryVideo) error
	// ListByCategory returns memberships in insertion order. A non-zero addedBefore excludes later additions.
	ListByCategory(ctx context.Context, categoryID string, addedBefore time.Time) ([]*CategoryVideo, error)
	CountByCategory(ctx context.Context) (map[string]int, error)
}

// PlaylistRepository persists legacy remote playlists.
//
// List criteria: "retired" (bool).
type PlaylistRepository interface {
	Repository[*Playlist]
	GetByYouTubeID(ctx context.Context, youtubeID string) (*Playlist, error)
	MarkDeleted(ctx context.Context, id string, at time.Time) error
}

// SyncJobRepository persists sync jobs.
//
// List criteria: "stage" (Stage), "limit" (int).
type SyncJobRepository interface {
	Repository[*SyncJob]
	// GetActive returns the single non-terminal job, or nil when there is none.
	GetActive(ctx context.Context) (*SyncJob, error)
}

// SyncVideoOperationRepository persists per-video add operations.
type SyncVideoOperationRepository interface {
	// CreateIfMissing inserts op unless the (job, category, video) key exists; it reports whether a row was written.
	CreateIfMissing(ctx context.Context, op *SyncVideoOperation) (bool, error)
	Update(ctx context.Context, op *SyncVideoOperation) error
	ListByJob(ctx context.Context, jobID string, status OperationStatus, limit int) ([]*SyncVideoOperation, error)
	CountByStatus(ctx context.Context, jobID string) (map[OperationStatus]int, error)
}

// BackupSnapshotRepository persists backup metadata.
type BackupSnapshotRepository interface {
	Create(ctx context.Context, b *BackupSnapshot) error
	Get(ctx context.Context, id string) (*BackupSnapshot, error)
	List(ctx context.Context, criteria map[string]any) ([]*BackupSnapshot, error)
}

// QuotaUsageRepository persists the quota ledger.
type QuotaUsageRepository interface {
	Create(ctx context.Context, q *QuotaUsage) error
	SumSince(ctx context.Context, since time.Time) (int, error)
	ListSince(ctx context.Context, since time.Time) ([]*QuotaUsage, error)
}

// Store groups the repositories over one database handle.
//
// WithTx runs fn against a Store bound to a single transaction, committing when fn returns nil.
type Store interface {
	Categories() CategoryRepository
	Videos() VideoRepository
	Memberships() CategoryVideoRepository
	Playlists() PlaylistRepository
	SyncJobs() SyncJobRepository
	Operations() SyncVideoOperationRepository
	Backups() BackupSnapshotRepository
	QuotaUsage() QuotaUsageRepository
	WithTx(ctx context.Context, fn func(Store) error) error
}

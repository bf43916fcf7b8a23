// Package repositories implements SQLite persistence for all domain entities.
//
// Each repository handles CRUD operations with atomic sequence generation for stable ordering.
// Categories support soft deletes via deleted_at; legacy playlists record remote deletion in
// deleted_from_youtube_at instead.
//
// Key Implementations:
//   - [CategoryRepository] : categories with playlist id tracking
//   - [VideoRepository] : videos keyed by YouTube id
//   - [CategoryVideoRepository] : membership edges ordered by sequence
//   - [PlaylistRepository] : legacy playlists targeted by the delete stage
//   - [SyncJobRepository] : sync jobs with the single-active-job constraint
//   - [SyncVideoOperationRepository] : idempotently materialized add operations
//   - [BackupSnapshotRepository] : backup metadata
//   - [QuotaUsageRepository] : the daily quota ledger
//
// Repositories are written against [DBTX] so they run unchanged on a [sql.DB] or inside a
// [sql.Tx]; [Store.WithTx] hands a transaction-bound [Store] to its callback.
// The [NextSequence] function increments per-table counters held in dedicated sequence tables.
package repositories

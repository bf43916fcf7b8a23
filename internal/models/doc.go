// Package models defines domain entities and persistence interfaces for ytsort.
//
// Library entities are read-only inputs to a sync:
//   - [Category] : user-approved grouping that becomes one remote playlist
//   - [Video] : a YouTube video in the local library
//   - [CategoryVideo] : membership edge, ordered by insertion
//   - [Playlist] : legacy remote playlist, removed by the delete stage
//
// Sync entities are owned by the engine:
//   - [SyncJob] : one end-to-end sync attempt with a frozen [SyncPreview]
//   - [SyncVideoOperation] : per-video ledger for the add stage
//   - [BackupSnapshot] : pre-sync recovery point
//   - [QuotaUsage] : daily quota ledger entry
//
// Every entity embeds [Record] for id, sequence and timestamps. The [Store] interface groups
// repositories and exposes transactional writes through [Store.WithTx].
package models

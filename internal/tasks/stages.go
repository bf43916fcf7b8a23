package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/ytsort/internal/models"
	"github.com/desertthunder/ytsort/internal/quota"
	"github.com/desertthunder/ytsort/internal/shared"
)

// runBackup writes the pre-sync snapshot once and stores its id on the job.
func (e *Engine) runBackup(ctx context.Context, job *models.SyncJob) (bool, error) {
	if job.BackupSnapshotID != "" {
		return true, nil
	}

	id, err := e.backup.Create(ctx, models.BackupTriggerPreSync, models.BackupScopeFull)
	if err != nil {
		return false, fmt.Errorf("backup failed: %w", err)
	}

	job.BackupSnapshotID = id
	job.CurrentStageProgress = 1
	e.sendProgress(backupCreatedUpdate(id))
	return true, nil
}

// createPlaylists walks the frozen create-list from the job's cursor.
func (e *Engine) createPlaylists(ctx context.Context, job *models.SyncJob, b *batch) (bool, error) {
	items := job.Preview.Stages.CreatePlaylists.Items
	counts := job.StageResults.For(models.StageCreatePlaylists)
	cost := quota.Cost(quota.OpPlaylistsInsert)

	for job.CurrentStageProgress < len(items) {
		item := items[job.CurrentStageProgress]

		category, err := e.store.Categories().Get(ctx, item.CategoryID)
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			return false, fmt.Errorf("failed to load category %s: %w", item.CategoryID, err)
		}
		if category == nil || category.HasPlaylist() {
			counts.Skipped++
			job.CurrentStageProgress++
			if err := e.commit(ctx, job, nil); err != nil {
				return false, err
			}
			e.sendProgress(itemSkippedUpdate(job, item.CategoryName))
			continue
		}

		ok, err := e.gate(ctx, job, b, cost)
		if err != nil {
			return false, err
		}
		if !ok {
			return e.stopped(ctx, job)
		}

		b.spend()
		playlistID, err := e.writer.CreatePlaylist(ctx, b.token, item.CategoryName, PlaylistDescription)
		switch {
		case err == nil:
			counts.Succeeded++
			job.QuotaUsedThisSync += cost
			job.CurrentStageProgress++
			if err := e.commit(ctx, job, func(tx models.Store) error {
				return tx.Categories().SetYouTubePlaylistID(ctx, item.CategoryID, playlistID)
			}); err != nil {
				return false, err
			}
			e.sendProgress(itemSucceededUpdate(job, item.CategoryName))

		case isContextError(err):
			return false, err

		case isQuotaError(err):
			return false, e.pauseForQuota(ctx, job, err)

		default:
			job.CurrentStageProgress++
			e.recordFailure(job, models.EntityPlaylist, item.CategoryID, err)
			if err := e.commit(ctx, job, nil); err != nil {
				return false, err
			}
			e.sendProgress(itemFailedUpdate(job, item.CategoryName, err))
			if job.Stage == models.StagePaused {
				e.sendProgress(pausedUpdate(job))
				return false, nil
			}
		}
	}

	return true, nil
}

// enterAddVideos moves the job into add_videos, materializing its operations in the same transaction.
//
// Only memberships that existed when the job started are planned. Categories still without a
// remote playlist get their operations inserted as skipped.
func (e *Engine) enterAddVideos(ctx context.Context, job *models.SyncJob) error {
	groups := job.Preview.Stages.AddVideos.ByCategory

	err := e.store.WithTx(ctx, func(tx models.Store) error {
		for _, group := range groups {
			category, err := tx.Categories().Get(ctx, group.CategoryID)
			if err != nil && !errors.Is(err, models.ErrNotFound) {
				return fmt.Errorf("failed to load category %s: %w", group.CategoryID, err)
			}
			if category == nil {
				continue
			}

			members, err := tx.Memberships().ListByCategory(ctx, group.CategoryID, job.StartedAt)
			if err != nil {
				return err
			}

			for _, m := range members {
				op := models.NewSyncVideoOperation(job.ID(), group.CategoryID, m.VideoID, m.VideoYouTubeID)
				if !category.HasPlaylist() {
					op.Finish(models.OperationSkipped, playlistNotCreated)
				}
				if _, err := tx.Operations().CreateIfMissing(ctx, op); err != nil {
					return err
				}
			}
		}

		statuses, err := tx.Operations().CountByStatus(ctx, job.ID())
		if err != nil {
			return err
		}

		total := 0
		for _, n := range statuses {
			total += n
		}

		job.EnterStage(models.StageAddVideos, total)
		job.CurrentStageProgress = total - statuses[models.OperationPending]
		job.StageResults.AddVideos = models.StageCounts{
			Succeeded: statuses[models.OperationCompleted],
			Failed:    statuses[models.OperationFailed],
			Skipped:   statuses[models.OperationSkipped],
		}

		return tx.SyncJobs().Update(ctx, job)
	})
	if err != nil {
		return fmt.Errorf("failed to plan video operations: %w", err)
	}

	e.announce(job)
	return nil
}

// addVideos processes pending operations in materialization order.
func (e *Engine) addVideos(ctx context.Context, job *models.SyncJob, b *batch) (bool, error) {
	counts := job.StageResults.For(models.StageAddVideos)
	cost := quota.Cost(quota.OpPlaylistItemsInsert)
	playlists := make(map[string]string)

	for {
		pending, err := e.store.Operations().ListByJob(ctx, job.ID(), models.OperationPending, max(b.budget, 1))
		if err != nil {
			return false, err
		}
		if len(pending) == 0 {
			return true, nil
		}

		for _, op := range pending {
			playlistID, ok := playlists[op.CategoryID]
			if !ok {
				category, err := e.store.Categories().Get(ctx, op.CategoryID)
				if err != nil && !errors.Is(err, models.ErrNotFound) {
					return false, fmt.Errorf("failed to load category %s: %w", op.CategoryID, err)
				}
				if category != nil {
					playlistID = category.YouTubePlaylistID
				}
				playlists[op.CategoryID] = playlistID
			}

			if playlistID == "" {
				op.Finish(models.OperationSkipped, playlistNotCreated)
				counts.Skipped++
				job.CurrentStageProgress++
				if err := e.commit(ctx, job, func(tx models.Store) error { return tx.Operations().Update(ctx, op) }); err != nil {
					return false, err
				}
				e.sendProgress(itemSkippedUpdate(job, op.YouTubeVideoID))
				continue
			}

			ok, err := e.gate(ctx, job, b, cost)
			if err != nil {
				return false, err
			}
			if !ok {
				return e.stopped(ctx, job)
			}

			b.spend()
			_, err = e.writer.AddVideoToPlaylist(ctx, b.token, playlistID, op.YouTubeVideoID)
			switch {
			case err == nil, errors.Is(err, shared.ErrConflict):
				op.Finish(models.OperationCompleted, "")
				counts.Succeeded++
				if err == nil {
					job.QuotaUsedThisSync += cost
				}
				job.CurrentStageProgress++
				if err := e.commit(ctx, job, func(tx models.Store) error { return tx.Operations().Update(ctx, op) }); err != nil {
					return false, err
				}
				e.sendProgress(itemSucceededUpdate(job, op.YouTubeVideoID))

			case isContextError(err):
				return false, err

			case isQuotaError(err):
				return false, e.pauseForQuota(ctx, job, err)

			default:
				op.Finish(models.OperationFailed, err.Error())
				job.CurrentStageProgress++
				e.recordFailure(job, models.EntityVideo, op.YouTubeVideoID, err)
				if err := e.commit(ctx, job, func(tx models.Store) error { return tx.Operations().Update(ctx, op) }); err != nil {
					return false, err
				}
				e.sendProgress(itemFailedUpdate(job, op.YouTubeVideoID, err))
				if job.Stage == models.StagePaused {
					e.sendProgress(pausedUpdate(job))
					return false, nil
				}
			}
		}
	}
}

// deletePlaylists walks the frozen delete-list from the job's cursor. A playlist already gone remotely counts as deleted.
func (e *Engine) deletePlaylists(ctx context.Context, job *models.SyncJob, b *batch) (bool, error) {
	items := job.Preview.Stages.DeletePlaylists.Items
	counts := job.StageResults.For(models.StageDeletePlaylists)
	cost := quota.Cost(quota.OpPlaylistsDelete)

	for job.CurrentStageProgress < len(items) {
		item := items[job.CurrentStageProgress]

		playlist, err := e.store.Playlists().Get(ctx, item.PlaylistID)
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			return false, fmt.Errorf("failed to load playlist %s: %w", item.PlaylistID, err)
		}
		if playlist == nil || playlist.Retired() {
			counts.Skipped++
			job.CurrentStageProgress++
			if err := e.commit(ctx, job, nil); err != nil {
				return false, err
			}
			e.sendProgress(itemSkippedUpdate(job, item.PlaylistName))
			continue
		}

		ok, err := e.gate(ctx, job, b, cost)
		if err != nil {
			return false, err
		}
		if !ok {
			return e.stopped(ctx, job)
		}

		b.spend()
		err = e.writer.DeletePlaylist(ctx, b.token, item.YouTubeID)
		switch {
		case err == nil, errors.Is(err, shared.ErrNotFound):
			counts.Succeeded++
			if err == nil {
				job.QuotaUsedThisSync += cost
			}
			job.CurrentStageProgress++
			if err := e.commit(ctx, job, func(tx models.Store) error {
				return tx.Playlists().MarkDeleted(ctx, item.PlaylistID, models.Now())
			}); err != nil {
				return false, err
			}
			e.sendProgress(itemSucceededUpdate(job, item.PlaylistName))

		case isContextError(err):
			return false, err

		case isQuotaError(err):
			return false, e.pauseForQuota(ctx, job, err)

		default:
			job.CurrentStageProgress++
			e.recordFailure(job, models.EntityPlaylist, item.PlaylistID, err)
			if err := e.commit(ctx, job, nil); err != nil {
				return false, err
			}
			e.sendProgress(itemFailedUpdate(job, item.PlaylistName, err))
			if job.Stage == models.StagePaused {
				e.sendProgress(pausedUpdate(job))
				return false, nil
			}
		}
	}

	return true, nil
}

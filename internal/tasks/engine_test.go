package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/desertthunder/ytsort/internal/models"
	"github.com/desertthunder/ytsort/internal/quota"
	"github.com/desertthunder/ytsort/internal/shared"
	tu "github.com/desertthunder/ytsort/internal/testing"
)

var errRemote = fmt.Errorf("%w: playlists.delete: backend error", shared.ErrAPIRequest)

func TestCreateJob(t *testing.T) {
	ctx := context.Background()

	t.Run("freezes preview on a pending job", func(t *testing.T) {
		f := newFixture(t, nil)
		f.videos(t, f.category(t, "Music", ""), 2)

		job := f.start(t)
		if job.Stage != models.StagePending || job.ID() == "" {
			t.Fatalf("expected persisted pending job, got %q/%q", job.ID(), job.Stage)
		}

		f.videos(t, f.category(t, "Later", ""), 4)

		stored := f.reload(t, job.ID())
		if stored.Preview.TotalQuotaCost != 150 {
			t.Errorf("expected frozen cost 150, got %d", stored.Preview.TotalQuotaCost)
		}
	})

	t.Run("rejects a second active job", func(t *testing.T) {
		f := newFixture(t, nil)
		first := f.start(t)

		if _, err := f.engine.CreateJob(ctx, &first.Preview); !errors.Is(err, ErrJobActive) {
			t.Fatalf("expected ErrJobActive, got %v", err)
		}

		if _, err := f.engine.PauseJob(ctx, first.ID(), models.PauseUserPaused); err != nil {
			t.Fatalf("PauseJob() error = %v", err)
		}
		if _, err := f.engine.CreateJob(ctx, &first.Preview); !errors.Is(err, ErrJobActive) {
			t.Fatalf("expected paused job to block creation, got %v", err)
		}
	})

	t.Run("allows a new job after completion", func(t *testing.T) {
		f := newFixture(t, nil)
		f.start(t)
		if job := f.drain(t); job.Stage != models.StageCompleted {
			t.Fatalf("expected completed, got %s", job.Stage)
		}
		f.start(t)
	})

	t.Run("requires a preview", func(t *testing.T) {
		f := newFixture(t, nil)
		if _, err := f.engine.CreateJob(ctx, nil); !errors.Is(err, shared.ErrMissingArgument) {
			t.Fatalf("expected ErrMissingArgument, got %v", err)
		}
	})
}

func TestProcessBatchPreconditions(t *testing.T) {
	ctx := context.Background()

	t.Run("requires a token", func(t *testing.T) {
		f := newFixture(t, nil)
		f.start(t)
		if _, err := f.engine.ProcessBatch(ctx, "", 0); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Fatalf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("requires an active job", func(t *testing.T) {
		f := newFixture(t, nil)
		if _, err := f.engine.ProcessBatch(ctx, testToken, 0); !errors.Is(err, ErrNoActiveJob) {
			t.Fatalf("expected ErrNoActiveJob, got %v", err)
		}
	})

	t.Run("paused job is returned unchanged", func(t *testing.T) {
		f := newFixture(t, nil)
		f.category(t, "Music", "")
		job := f.start(t)
		if _, err := f.engine.PauseJob(ctx, job.ID(), models.PauseUserPaused); err != nil {
			t.Fatalf("PauseJob() error = %v", err)
		}

		got := f.batch(t, 0)
		if got.Stage != models.StagePaused || got.PausedFromStage != models.StagePending {
			t.Errorf("expected paused from pending, got %s from %s", got.Stage, got.PausedFromStage)
		}
		if c, a, d := f.writer.Calls(); c+a+d != 0 || f.backup.Calls != 0 {
			t.Errorf("expected no work, got %d/%d/%d writes and %d backups", c, a, d, f.backup.Calls)
		}
	})
}

func TestProcessBatchCreatePlaylists(t *testing.T) {
	f := newFixture(t, func(o *EngineOpts) { o.BatchSize = 10 })
	for i := range 25 {
		f.category(t, fmt.Sprintf("Cat-%02d", i), "")
	}
	f.start(t)

	for i, want := range []int{10, 20, 25} {
		job := f.batch(t, 0)
		creates, _, _ := f.writer.Calls()
		if creates != want {
			t.Fatalf("batch %d: expected %d creates, got %d", i+1, want, creates)
		}
		if i < 2 {
			if job.Stage != models.StageCreatePlaylists || job.CurrentStageProgress != want {
				t.Errorf("batch %d: expected create_playlists at %d, got %s at %d", i+1, want, job.Stage, job.CurrentStageProgress)
			}
		} else if job.Stage != models.StageAddVideos {
			t.Errorf("batch 3: expected add_videos, got %s", job.Stage)
		}
	}

	job := f.batch(t, 0)
	if job.Stage != models.StageCompleted || job.CompletedAt == nil {
		t.Fatalf("expected completed job, got %s", job.Stage)
	}
	if job.StageResults.CreatePlaylists != (models.StageCounts{Succeeded: 25}) {
		t.Errorf("unexpected create results %+v", job.StageResults.CreatePlaylists)
	}
	if job.QuotaUsedThisSync != 25*quota.Cost(quota.OpPlaylistsInsert) {
		t.Errorf("expected %d units used, got %d", 25*50, job.QuotaUsedThisSync)
	}
	if f.backup.Calls != 1 {
		t.Errorf("expected one backup, got %d", f.backup.Calls)
	}
	snapshot, err := f.store.Backups().Get(context.Background(), job.BackupSnapshotID)
	if err != nil || snapshot.Trigger != models.BackupTriggerPreSync {
		t.Errorf("expected the job to reference a pre_sync snapshot row, got %+v (%v)", snapshot, err)
	}

	withPlaylist, err := f.store.Categories().List(context.Background(), map[string]any{"has_playlist": true})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(withPlaylist) != 25 {
		t.Errorf("expected 25 categories with playlists, got %d", len(withPlaylist))
	}
	for _, tok := range f.writer.Tokens {
		if tok != testToken {
			t.Fatalf("expected token %q, got %q", testToken, tok)
		}
	}
}

func TestProcessBatchDeletePlaylists(t *testing.T) {
	ctx := context.Background()

	t.Run("failure is recorded and the stage continues", func(t *testing.T) {
		f := newFixture(t, nil)
		for i := range 5 {
			f.playlist(t, fmt.Sprintf("PL%d", i), fmt.Sprintf("Old %d", i))
		}
		f.writer.DeleteErrors[2] = errRemote
		f.start(t)

		job := f.drain(t)
		if job.Stage != models.StageCompleted {
			t.Fatalf("expected completed, got %s", job.Stage)
		}
		if job.StageResults.DeletePlaylists != (models.StageCounts{Succeeded: 4, Failed: 1}) {
			t.Errorf("unexpected delete results %+v", job.StageResults.DeletePlaylists)
		}
		if len(job.Errors) != 1 {
			t.Fatalf("expected 1 error, got %+v", job.Errors)
		}
		if e := job.Errors[0]; e.Stage != models.StageDeletePlaylists || e.EntityType != models.EntityPlaylist {
			t.Errorf("unexpected error entry %+v", e)
		}

		remaining, err := f.store.Playlists().List(ctx, map[string]any{"retired": false})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(remaining) != 1 || remaining[0].YouTubeID != "PL1" {
			t.Errorf("expected only PL1 to remain, got %+v", remaining)
		}
	})

	t.Run("already deleted remotely counts as success", func(t *testing.T) {
		f := newFixture(t, nil)
		p := f.playlist(t, "PLgone", "Gone")
		f.writer.DeleteErrors[1] = fmt.Errorf("%w: playlists.delete: playlistNotFound", shared.ErrNotFound)
		f.start(t)

		job := f.drain(t)
		if job.StageResults.DeletePlaylists != (models.StageCounts{Succeeded: 1}) || len(job.Errors) != 0 {
			t.Errorf("unexpected results %+v, errors %+v", job.StageResults.DeletePlaylists, job.Errors)
		}
		stored, err := f.store.Playlists().Get(ctx, p.ID())
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if !stored.Retired() {
			t.Error("expected playlist to be marked deleted")
		}
	})
}

func TestProcessBatchAddVideos(t *testing.T) {
	ctx := context.Background()

	t.Run("batch bound", func(t *testing.T) {
		f := newFixture(t, nil)
		ids := f.videos(t, f.category(t, "Music", "PLmusic"), 25)
		f.start(t)

		job := f.batch(t, 10)
		if job.Stage != models.StageAddVideos || job.CurrentStageTotal != 25 || job.CurrentStageProgress != 10 {
			t.Fatalf("expected add_videos 10/25, got %s %d/%d", job.Stage, job.CurrentStageProgress, job.CurrentStageTotal)
		}

		f.batch(t, 3)
		if _, adds, _ := f.writer.Calls(); adds != 13 {
			t.Fatalf("expected 13 adds, got %d", adds)
		}
		if stored := f.reload(t, job.ID()); stored.CurrentStageProgress != 13 {
			t.Errorf("expected persisted progress 13, got %d", stored.CurrentStageProgress)
		}

		job = f.drain(t)
		if job.Stage != models.StageCompleted || job.StageResults.AddVideos.Succeeded != 25 {
			t.Fatalf("expected 25 adds completed, got %s %+v", job.Stage, job.StageResults.AddVideos)
		}
		for i, added := range f.writer.Added {
			if want := "PLmusic/" + ids[i]; added != want {
				t.Fatalf("add %d: expected %s, got %s", i, want, added)
			}
		}
	})

	t.Run("quota pause resumes at the first pending operation", func(t *testing.T) {
		f := newFixture(t, nil)
		ids := f.videos(t, f.category(t, "Music", "PLmusic"), 10)
		f.writer.AddErrors[4] = fmt.Errorf("%w: playlistItems.insert: quotaExceeded", shared.ErrQuotaExceeded)
		start := f.start(t)

		job := f.batch(t, 10)
		if job.Stage != models.StagePaused || job.PauseReason != models.PauseQuotaExhausted || job.PausedFromStage != models.StageAddVideos {
			t.Fatalf("expected quota pause from add_videos, got %s/%s/%s", job.Stage, job.PauseReason, job.PausedFromStage)
		}
		if job.CurrentStageProgress != 3 || len(job.Errors) != 0 {
			t.Errorf("expected progress 3 with no errors, got %d and %+v", job.CurrentStageProgress, job.Errors)
		}

		pending, err := f.store.Operations().ListByJob(ctx, start.ID(), models.OperationPending, 0)
		if err != nil {
			t.Fatalf("ListByJob() error = %v", err)
		}
		if len(pending) != 7 || pending[0].YouTubeVideoID != ids[3] {
			t.Fatalf("expected 7 pending starting at %s, got %d", ids[3], len(pending))
		}

		if _, err := f.engine.ResumeJob(ctx, start.ID()); err != nil {
			t.Fatalf("ResumeJob() error = %v", err)
		}

		job = f.drain(t)
		if job.Stage != models.StageCompleted || job.StageResults.AddVideos.Succeeded != 10 {
			t.Fatalf("expected 10 adds completed, got %s %+v", job.Stage, job.StageResults.AddVideos)
		}
		if len(f.writer.Added) != 10 {
			t.Fatalf("expected 10 distinct adds, got %v", f.writer.Added)
		}
		for i, added := range f.writer.Added {
			if want := "PLmusic/" + ids[i]; added != want {
				t.Errorf("add %d: expected %s, got %s", i, want, added)
			}
		}
		if job.QuotaUsedThisSync != 10*50 {
			t.Errorf("expected 500 units used, got %d", job.QuotaUsedThisSync)
		}
	})

	t.Run("conflict counts as completed", func(t *testing.T) {
		f := newFixture(t, nil)
		f.videos(t, f.category(t, "Music", "PLmusic"), 2)
		f.writer.AddErrors[1] = fmt.Errorf("%w: playlistItems.insert: videoAlreadyInPlaylist", shared.ErrConflict)
		f.start(t)

		job := f.drain(t)
		if job.StageResults.AddVideos != (models.StageCounts{Succeeded: 2}) || len(job.Errors) != 0 {
			t.Errorf("unexpected results %+v, errors %+v", job.StageResults.AddVideos, job.Errors)
		}
		if job.QuotaUsedThisSync != 50 {
			t.Errorf("expected only the accepted insert to be counted, got %d", job.QuotaUsedThisSync)
		}
	})

	t.Run("operations without a playlist are skipped", func(t *testing.T) {
		f := newFixture(t, nil)
		f.videos(t, f.category(t, "Music", ""), 3)
		f.writer.CreateErrors[1] = errRemote
		start := f.start(t)

		job := f.drain(t)
		if job.Stage != models.StageCompleted {
			t.Fatalf("expected completed, got %s", job.Stage)
		}
		if job.StageResults.CreatePlaylists.Failed != 1 || job.StageResults.AddVideos.Skipped != 3 {
			t.Errorf("unexpected results %+v", job.StageResults)
		}
		if _, adds, _ := f.writer.Calls(); adds != 0 {
			t.Errorf("expected no adds, got %d", adds)
		}

		skipped, err := f.store.Operations().ListByJob(ctx, start.ID(), models.OperationSkipped, 0)
		if err != nil {
			t.Fatalf("ListByJob() error = %v", err)
		}
		if len(skipped) != 3 {
			t.Fatalf("expected 3 skipped operations, got %d", len(skipped))
		}
		for _, op := range skipped {
			if op.ErrorMessage != "Category playlist not created" {
				t.Errorf("unexpected skip message %q", op.ErrorMessage)
			}
		}
	})

	t.Run("memberships added after the job started are left out", func(t *testing.T) {
		f := newFixture(t, nil)
		music := f.category(t, "Music", "PLmusic")
		f.videos(t, music, 2)
		f.start(t)

		late := f.category(t, "Late", "PLlate")
		f.videos(t, late, 3)

		job := f.drain(t)
		if job.StageResults.AddVideos.Succeeded != 2 {
			t.Errorf("expected 2 adds, got %+v", job.StageResults.AddVideos)
		}
	})
}

func TestProcessBatchPausing(t *testing.T) {
	ctx := context.Background()

	t.Run("error threshold", func(t *testing.T) {
		f := newFixture(t, func(o *EngineOpts) { o.ErrorThreshold = 3 })
		f.videos(t, f.category(t, "Music", "PLmusic"), 5)
		for n := 1; n <= 3; n++ {
			f.writer.AddErrors[n] = errRemote
		}
		start := f.start(t)

		job := f.batch(t, 10)
		if job.Stage != models.StagePaused || job.PauseReason != models.PauseErrorsCollected {
			t.Fatalf("expected errors_collected pause, got %s/%s", job.Stage, job.PauseReason)
		}
		if job.UnreviewedErrors() != 3 {
			t.Errorf("expected 3 unreviewed errors, got %d", job.UnreviewedErrors())
		}

		resumed, err := f.engine.ResumeJob(ctx, start.ID())
		if err != nil {
			t.Fatalf("ResumeJob() error = %v", err)
		}
		if resumed.UnreviewedErrors() != 0 || resumed.LastResumedAt == nil {
			t.Errorf("expected errors acknowledged on resume, got %d", resumed.UnreviewedErrors())
		}

		job = f.drain(t)
		if job.StageResults.AddVideos != (models.StageCounts{Succeeded: 2, Failed: 3}) {
			t.Errorf("unexpected results %+v", job.StageResults.AddVideos)
		}
		failed, err := f.store.Operations().ListByJob(ctx, start.ID(), models.OperationFailed, 0)
		if err != nil {
			t.Fatalf("ListByJob() error = %v", err)
		}
		if len(failed) != 3 || failed[0].ErrorMessage == "" {
			t.Errorf("expected 3 failed operations with messages, got %+v", failed)
		}
	})

	t.Run("low remaining quota pauses before writing", func(t *testing.T) {
		gauge := &tu.StaticGauge{Value: 500}
		f := newFixture(t, func(o *EngineOpts) { o.Quota = gauge })
		f.category(t, "Music", "")
		start := f.start(t)

		job := f.batch(t, 0)
		if job.Stage != models.StagePaused || job.PauseReason != models.PauseQuotaExhausted || job.PausedFromStage != models.StageCreatePlaylists {
			t.Fatalf("expected quota pause from create_playlists, got %s/%s/%s", job.Stage, job.PauseReason, job.PausedFromStage)
		}
		if creates, _, _ := f.writer.Calls(); creates != 0 {
			t.Errorf("expected no creates, got %d", creates)
		}
		if job.BackupSnapshotID == "" {
			t.Error("expected backup to have run before the pause")
		}

		gauge.Set(10000)
		if _, err := f.engine.ResumeJob(ctx, start.ID()); err != nil {
			t.Fatalf("ResumeJob() error = %v", err)
		}
		if job := f.drain(t); job.Stage != models.StageCompleted || f.backup.Calls != 1 {
			t.Errorf("expected completion with a single backup, got %s and %d backups", job.Stage, f.backup.Calls)
		}
	})

	t.Run("limiter reservoir below cost pauses", func(t *testing.T) {
		limiter := quota.NewLimiter(quota.LimiterOpts{DailyLimit: 40})
		f := newFixture(t, func(o *EngineOpts) { o.Limiter = limiter })
		f.category(t, "Music", "")
		f.start(t)

		job := f.batch(t, 0)
		if job.Stage != models.StagePaused || job.PauseReason != models.PauseQuotaExhausted {
			t.Fatalf("expected quota pause, got %s/%s", job.Stage, job.PauseReason)
		}
	})

	t.Run("user pause and resume", func(t *testing.T) {
		f := newFixture(t, nil)
		f.videos(t, f.category(t, "Music", "PLmusic"), 4)
		start := f.start(t)
		f.batch(t, 2)

		paused, err := f.engine.PauseJob(ctx, start.ID(), models.PauseUserPaused)
		if err != nil {
			t.Fatalf("PauseJob() error = %v", err)
		}
		if paused.PausedFromStage != models.StageAddVideos || paused.CurrentStageProgress != 2 {
			t.Errorf("expected pause from add_videos at 2, got %s at %d", paused.PausedFromStage, paused.CurrentStageProgress)
		}

		if _, err := f.engine.PauseJob(ctx, start.ID(), models.PauseUserPaused); !errors.Is(err, ErrJobNotActive) {
			t.Errorf("expected ErrJobNotActive when pausing twice, got %v", err)
		}

		resumed, err := f.engine.ResumeJob(ctx, start.ID())
		if err != nil {
			t.Fatalf("ResumeJob() error = %v", err)
		}
		if resumed.Stage != models.StageAddVideos || resumed.PauseReason != "" {
			t.Errorf("expected resume into add_videos, got %s/%s", resumed.Stage, resumed.PauseReason)
		}
		if _, err := f.engine.ResumeJob(ctx, start.ID()); !errors.Is(err, ErrJobNotPaused) {
			t.Errorf("expected ErrJobNotPaused, got %v", err)
		}
	})

	t.Run("invalid pause reason", func(t *testing.T) {
		f := newFixture(t, nil)
		job := f.start(t)
		if _, err := f.engine.PauseJob(ctx, job.ID(), models.PauseReason("bored")); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("terminal jobs cannot be paused", func(t *testing.T) {
		f := newFixture(t, nil)
		job := f.start(t)
		f.drain(t)
		if _, err := f.engine.PauseJob(ctx, job.ID(), models.PauseUserPaused); !errors.Is(err, ErrJobNotActive) {
			t.Errorf("expected ErrJobNotActive, got %v", err)
		}
	})
}

func TestProcessBatchFailures(t *testing.T) {
	t.Run("backup failure fails the job", func(t *testing.T) {
		f := newFixture(t, nil)
		f.category(t, "Music", "")
		f.backup.Err = errors.New("disk full")
		start := f.start(t)

		job := f.batch(t, 0)
		if job.Stage != models.StageFailed {
			t.Fatalf("expected failed, got %s", job.Stage)
		}
		if len(job.Errors) != 1 || job.Errors[0].EntityType != models.EntityJob || !strings.Contains(job.Errors[0].Message, "disk full") {
			t.Errorf("unexpected errors %+v", job.Errors)
		}
		if creates, _, _ := f.writer.Calls(); creates != 0 {
			t.Errorf("expected no remote writes, got %d", creates)
		}
		if stored := f.reload(t, start.ID()); stored.Stage != models.StageFailed || stored.Active() {
			t.Errorf("expected persisted failed job, got %s", stored.Stage)
		}
		if active, err := f.engine.CurrentJob(context.Background()); err != nil || active != nil {
			t.Errorf("expected no active job, got %v, %v", active, err)
		}
	})

	t.Run("cancellation leaves the job resumable", func(t *testing.T) {
		f := newFixture(t, nil)
		f.videos(t, f.category(t, "Music", "PLmusic"), 3)
		start := f.start(t)

		ctx, cancel := context.WithCancel(context.Background())
		f.writer.OnAdd = func(n int, _, _ string) error {
			cancel()
			return ctx.Err()
		}

		_, err := f.engine.ProcessBatch(ctx, testToken, 0)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if stored := f.reload(t, start.ID()); stored.Stage != models.StageAddVideos || stored.CurrentStageProgress != 0 {
			t.Fatalf("expected add_videos at 0, got %s at %d", stored.Stage, stored.CurrentStageProgress)
		}

		f.writer.OnAdd = nil
		if job := f.drain(t); job.Stage != models.StageCompleted || job.StageResults.AddVideos.Succeeded != 3 {
			t.Errorf("expected 3 adds after retry, got %s %+v", job.Stage, job.StageResults.AddVideos)
		}
	})
}

func TestAdvance(t *testing.T) {
	ctx := context.Background()

	t.Run("follows the forward path", func(t *testing.T) {
		f := newFixture(t, nil)
		f.category(t, "Music", "")
		job := f.start(t)

		want := []models.Stage{models.StageBackup, models.StageCreatePlaylists}
		for _, stage := range want {
			if err := f.engine.advance(ctx, job); err != nil {
				t.Fatalf("advance() error = %v", err)
			}
			if job.Stage != stage {
				t.Fatalf("expected %s, got %s", stage, job.Stage)
			}
			if stored := f.reload(t, job.ID()); stored.Stage != stage {
				t.Errorf("expected persisted %s, got %s", stage, stored.Stage)
			}
		}
		if job.CurrentStageTotal != 1 {
			t.Errorf("expected one playlist to create, got %d", job.CurrentStageTotal)
		}
	})

	t.Run("rejects stages off the forward path", func(t *testing.T) {
		f := newFixture(t, nil)
		job := f.start(t)
		job.Pause(models.PauseUserPaused)

		if err := f.engine.advance(ctx, job); err == nil {
			t.Error("expected an error advancing a paused job")
		}
		if job.Stage != models.StagePaused {
			t.Errorf("expected the job to stay paused, got %s", job.Stage)
		}
	})
}

func TestProgressUpdates(t *testing.T) {
	updates := make(chan ProgressUpdate, 256)
	f := newFixture(t, func(o *EngineOpts) { o.Progress = updates })
	f.videos(t, f.category(t, "Music", ""), 2)
	f.start(t)
	f.drain(t)
	close(updates)

	phases := map[Phase]int{}
	var last ProgressUpdate
	for u := range updates {
		phases[u.Phase]++
		last = u
	}

	for _, p := range []Phase{PhaseBackup, PhaseCreatePlaylists, PhaseAddVideos, PhaseDeletePlaylists, PhaseCompleted} {
		if phases[p] == 0 {
			t.Errorf("expected at least one %s update", p)
		}
	}
	if last.Phase != PhaseCompleted {
		t.Errorf("expected final update to be completed, got %s", last.Phase)
	}
}

func TestPhaseFor(t *testing.T) {
	tests := []struct {
		stage models.Stage
		want  string
	}{
		{models.StagePending, "pending"},
		{models.StageAddVideos, "add_videos"},
		{models.StagePaused, "paused"},
		{models.StageFailed, "failed"},
	}
	for _, tt := range tests {
		if got := PhaseFor(tt.stage).String(); got != tt.want {
			t.Errorf("PhaseFor(%s) = %s, want %s", tt.stage, got, tt.want)
		}
	}
}

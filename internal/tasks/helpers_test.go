package tasks

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytsort/internal/models"
	"github.com/desertthunder/ytsort/internal/repositories"
	"github.com/desertthunder/ytsort/internal/shared"
	tu "github.com/desertthunder/ytsort/internal/testing"
)

const testToken = "access-token"

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *repositories.Store {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return repositories.NewStore(db)
}

type fixture struct {
	store  *repositories.Store
	writer *tu.MockWriter
	backup *tu.MockBackup
	engine *Engine
}

func newFixture(t *testing.T, configure func(*EngineOpts)) *fixture {
	t.Helper()

	store := setupTestDB(t)
	f := &fixture{
		store:  store,
		writer: tu.NewMockWriter(),
		backup: tu.NewMockBackup(store.Backups()),
	}

	opts := EngineOpts{
		Store:  f.store,
		Writer: f.writer,
		Backup: f.backup,
		Logger: log.New(io.Discard),
	}
	if configure != nil {
		configure(&opts)
	}

	f.engine = NewEngine(opts)
	return f
}

func (f *fixture) category(t *testing.T, name, playlistID string) *models.Category {
	t.Helper()
	c := models.NewCategory(name, false)
	c.YouTubePlaylistID = playlistID
	if err := f.store.Categories().Create(context.Background(), c); err != nil {
		t.Fatalf("failed to create category %s: %v", name, err)
	}
	return c
}

func (f *fixture) protected(t *testing.T, name string) *models.Category {
	t.Helper()
	c := models.NewCategory(name, true)
	if err := f.store.Categories().Create(context.Background(), c); err != nil {
		t.Fatalf("failed to create category %s: %v", name, err)
	}
	return c
}

// videos creates n videos and assigns each to c, returning their YouTube ids in order.
func (f *fixture) videos(t *testing.T, c *models.Category, n int) []string {
	t.Helper()
	ctx := context.Background()

	ids := make([]string, 0, n)
	for i := range n {
		ytID := fmt.Sprintf("%s-%03d", c.Name, i)
		v := models.NewVideo(ytID, "Video "+ytID, "Channel")
		if err := f.store.Videos().Create(ctx, v); err != nil {
			t.Fatalf("failed to create video %s: %v", ytID, err)
		}
		if err := f.store.Memberships().Create(ctx, models.NewCategoryVideo(c.ID(), v.ID(), models.SourceManual)); err != nil {
			t.Fatalf("failed to assign video %s: %v", ytID, err)
		}
		ids = append(ids, ytID)
	}
	return ids
}

func (f *fixture) playlist(t *testing.T, youtubeID, title string) *models.Playlist {
	t.Helper()
	p := models.NewPlaylist(youtubeID, title, 3)
	if err := f.store.Playlists().Create(context.Background(), p); err != nil {
		t.Fatalf("failed to create playlist %s: %v", youtubeID, err)
	}
	return p
}

// start computes a preview over the current library and creates a job from it.
func (f *fixture) start(t *testing.T) *models.SyncJob {
	t.Helper()
	ctx := context.Background()

	preview, err := NewCalculator(f.store, 0).ComputePreview(ctx)
	if err != nil {
		t.Fatalf("ComputePreview() error = %v", err)
	}
	job, err := f.engine.CreateJob(ctx, preview)
	if err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}
	return job
}

func (f *fixture) batch(t *testing.T, maxOps int) *models.SyncJob {
	t.Helper()
	job, err := f.engine.ProcessBatch(context.Background(), testToken, maxOps)
	if err != nil {
		t.Fatalf("ProcessBatch() error = %v", err)
	}
	return job
}

// drain runs batches until the job leaves the processing stages.
func (f *fixture) drain(t *testing.T) *models.SyncJob {
	t.Helper()
	for range 100 {
		job := f.batch(t, 0)
		if !job.Stage.Processing() {
			return job
		}
	}
	t.Fatal("job did not settle within 100 batches")
	return nil
}

func (f *fixture) reload(t *testing.T, id string) *models.SyncJob {
	t.Helper()
	job, err := f.store.SyncJobs().Get(context.Background(), id)
	if err != nil {
		t.Fatalf("failed to reload job: %v", err)
	}
	return job
}

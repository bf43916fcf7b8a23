package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/ytsort/internal/repositories"
	"github.com/desertthunder/ytsort/internal/shared"
	tu "github.com/desertthunder/ytsort/internal/testing"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

type staticTokens string

func (s staticTokens) AccessToken(context.Context) (string, error) { return string(s), nil }

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

type cliHarness struct {
	runner *Runner
	writer *tu.MockWriter
	output *bytes.Buffer
	dir    string
}

func newCLIHarness(t *testing.T) *cliHarness {
	t.Helper()

	dir := t.TempDir()
	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	config := shared.DefaultConfig()
	config.Sync.BackupDir = filepath.Join(dir, "backups")
	config.Sync.PollIntervalMS = 0
	config.Credentials.YouTube.TokenPath = filepath.Join(dir, "token.json")

	output := &bytes.Buffer{}
	writer := tu.NewMockWriter()
	runner := NewRunner(RunnerOpts{
		Config: config,
		Logger: shared.NewLogger(io.Discard),
		Output: output,
		DB:     db,
		Writer: writer,
		Tokens: staticTokens("access-token"),
	})
	return &cliHarness{runner: runner, writer: writer, output: output, dir: dir}
}

func (h *cliHarness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	h.output.Reset()
	app := &cli.Command{Name: "ytsort", Commands: h.runner.register()}
	err := app.Run(context.Background(), append([]string{"ytsort"}, args...))
	return h.output.String(), err
}

func (h *cliHarness) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := h.run(t, args...)
	if err != nil {
		t.Fatalf("ytsort %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func (h *cliHarness) writeFile(t *testing.T, name string, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal %s: %v", name, err)
	}
	path := filepath.Join(h.dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func (h *cliHarness) seed(t *testing.T) {
	t.Helper()
	categories := h.writeFile(t, "categories.json", []CategorySeed{
		{Name: "Music", Videos: []VideoSeed{{YouTubeID: "vid-a", Title: "A"}, {YouTubeID: "vid-b", Title: "B"}}},
		{Name: "Uncategorized", Videos: []VideoSeed{{YouTubeID: "vid-c", Title: "C"}}},
	})
	playlists := h.writeFile(t, "playlists.json", []PlaylistSeed{
		{YouTubeID: "PL-old", Title: "Old mix", ItemCount: 12},
	})
	h.mustRun(t, "categories", "import", categories)
	h.mustRun(t, "playlists", "import", playlists)
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			writer := tu.NewMockWriter()

			runner := NewRunner(RunnerOpts{
				Config:     config,
				ConfigPath: "/test/path/config.toml",
				Logger:     logger,
				Output:     output,
				Writer:     writer,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.writer != writer {
				t.Error("expected writer to be set")
			}
			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
			if runner.actions != nil {
				t.Error("expected the sync stack to open lazily")
			}
		})

		t.Run("with nil options uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("Close without a database", func(t *testing.T) {
			if err := NewRunner(RunnerOpts{}).Close(); err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if output.String() != expected {
				t.Errorf("expected %q, got %q", expected, output.String())
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			// channels cannot be marshaled to JSON
			err := runner.writeJSON(make(chan int), false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "hello world" {
				t.Errorf("expected 'hello world', got %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		commands := NewRunner(RunnerOpts{}).register()

		names := map[string]bool{}
		for i, cmd := range commands {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			names[cmd.Name] = true
		}
		for _, want := range []string{"setup", "auth", "categories", "playlists", "sync", "quota", "backup", "serve"} {
			if !names[want] {
				t.Errorf("expected %q to be registered", want)
			}
		}
	})
}

func TestImportCategories(t *testing.T) {
	ctx := context.Background()
	store := setupTestDB(t)
	seeds := []CategorySeed{
		{Name: "Music", Videos: []VideoSeed{{YouTubeID: "a", Title: "A"}, {YouTubeID: "b", Title: "B"}}},
		{Name: "Uncategorized", Videos: []VideoSeed{{YouTubeID: "b", Title: "B"}}},
	}

	summary, err := ImportCategories(ctx, store, seeds)
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if summary.Created != 2 || summary.Videos != 2 || summary.Memberships != 3 {
		t.Errorf("unexpected summary %+v", summary)
	}

	uncategorized, err := store.Categories().GetByName(ctx, "Uncategorized")
	if err != nil {
		t.Fatalf("failed to load category: %v", err)
	}
	if !uncategorized.IsProtected {
		t.Error("expected Uncategorized to be protected")
	}

	t.Run("is idempotent", func(t *testing.T) {
		again, err := ImportCategories(ctx, store, seeds)
		if err != nil {
			t.Fatalf("import failed: %v", err)
		}
		if again.Created != 0 || again.Existing != 2 || again.Videos != 0 || again.Memberships != 0 {
			t.Errorf("expected nothing new, got %+v", again)
		}

		music, err := store.Categories().GetByName(ctx, "Music")
		if err != nil {
			t.Fatalf("failed to load category: %v", err)
		}
		if music.VideoCount != 2 {
			t.Errorf("expected 2 videos, got %d", music.VideoCount)
		}
	})

	t.Run("adds new videos to existing categories", func(t *testing.T) {
		summary, err := ImportCategories(ctx, store, []CategorySeed{
			{Name: "Music", Videos: []VideoSeed{{YouTubeID: "c", Title: "C"}}},
		})
		if err != nil {
			t.Fatalf("import failed: %v", err)
		}
		if summary.Existing != 1 || summary.Videos != 1 || summary.Memberships != 1 {
			t.Errorf("unexpected summary %+v", summary)
		}
	})

	t.Run("rolls back invalid input", func(t *testing.T) {
		_, err := ImportCategories(ctx, store, []CategorySeed{
			{Name: "Talks"},
			{Name: "Broken", Videos: []VideoSeed{{YouTubeID: "z"}}},
		})
		if err == nil {
			t.Fatal("expected validation error for a video without a title")
		}
		if _, err := store.Categories().GetByName(ctx, "Talks"); err == nil {
			t.Error("expected the whole import to roll back")
		}
	})
}

func TestImportPlaylists(t *testing.T) {
	ctx := context.Background()
	store := setupTestDB(t)

	if _, err := ImportCategories(ctx, store, []CategorySeed{{Name: "Music", YouTubePlaylistID: "PL-music"}}); err != nil {
		t.Fatalf("import failed: %v", err)
	}

	seeds := []PlaylistSeed{
		{YouTubeID: "PL-1", Title: "Favorites", ItemCount: 3},
		{YouTubeID: "PL-music", Title: "Music"},
		{YouTubeID: "PL-1", Title: "Favorites again"},
	}
	summary, err := ImportPlaylists(ctx, store, seeds)
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if summary.Created != 1 || summary.Existing != 2 {
		t.Errorf("expected 1 created and 2 skipped, got %+v", summary)
	}

	playlists, err := store.Playlists().List(ctx, nil)
	if err != nil {
		t.Fatalf("failed to list playlists: %v", err)
	}
	if len(playlists) != 1 || playlists[0].YouTubeID != "PL-1" {
		t.Errorf("expected only PL-1, got %d playlists", len(playlists))
	}
}

func TestCommands(t *testing.T) {
	t.Run("full sync from the command line", func(t *testing.T) {
		h := newCLIHarness(t)
		h.seed(t)

		out := h.mustRun(t, "categories", "list")
		if !strings.Contains(out, "Music") || !strings.Contains(out, "Uncategorized") {
			t.Errorf("expected both categories listed:\n%s", out)
		}

		out = h.mustRun(t, "sync", "preview", "--json")
		var preview struct {
			Success bool `json:"success"`
			Preview struct {
				TotalQuotaCost int `json:"totalQuotaCost"`
			} `json:"preview"`
		}
		if err := json.Unmarshal([]byte(out), &preview); err != nil {
			t.Fatalf("invalid preview JSON: %v\n%s", err, out)
		}
		// one create, two adds and one delete
		if !preview.Success || preview.Preview.TotalQuotaCost != 200 {
			t.Errorf("expected a 200 unit preview, got %+v", preview)
		}

		out = h.mustRun(t, "sync", "start")
		if !strings.Contains(out, "Stage:    pending") {
			t.Errorf("expected pending job:\n%s", out)
		}

		if _, err := h.run(t, "sync", "start"); err == nil || err.Error() != "A sync operation is already in progress" {
			t.Errorf("expected conflict, got %v", err)
		}

		out = h.mustRun(t, "sync", "run")
		if !strings.Contains(out, "Stage:    completed") {
			t.Errorf("expected completed job:\n%s", out)
		}
		creates, adds, deletes := h.writer.Calls()
		if creates != 1 || adds != 2 || deletes != 1 {
			t.Errorf("expected 1/2/1 remote calls, got %d/%d/%d", creates, adds, deletes)
		}

		out = h.mustRun(t, "playlists", "list")
		if !strings.Contains(out, "PL-old") || !strings.Contains(out, "deleted") {
			t.Errorf("expected retired legacy playlist:\n%s", out)
		}

		out = h.mustRun(t, "backup", "list", "--json")
		if !strings.Contains(out, `"trigger": "pre_sync"`) {
			t.Errorf("expected a pre-sync backup:\n%s", out)
		}

		out = h.mustRun(t, "sync", "errors")
		if !strings.Contains(out, "No errors recorded.") {
			t.Errorf("unexpected errors output:\n%s", out)
		}

		if _, err := h.run(t, "sync", "batch"); err == nil || err.Error() != "No active sync job" {
			t.Errorf("expected no active job, got %v", err)
		}
	})

	t.Run("pause and resume", func(t *testing.T) {
		h := newCLIHarness(t)
		h.seed(t)
		h.mustRun(t, "sync", "start")

		out := h.mustRun(t, "sync", "pause")
		if !strings.Contains(out, "Paused:   user_paused (during pending)") {
			t.Errorf("expected paused job:\n%s", out)
		}
		if _, err := h.run(t, "sync", "batch", "--max", "1"); err == nil {
			t.Error("expected batch on a paused job to fail")
		}

		h.mustRun(t, "sync", "resume")
		out = h.mustRun(t, "sync", "batch", "--max", "1")
		if !strings.Contains(out, "Stage:    add_videos") {
			t.Errorf("expected one playlist created then add_videos:\n%s", out)
		}
	})

	t.Run("errors export", func(t *testing.T) {
		h := newCLIHarness(t)
		h.seed(t)
		h.writer.AddErrors[1] = shared.ErrInvalidInput
		h.mustRun(t, "sync", "start")
		h.mustRun(t, "sync", "run")

		csvPath := filepath.Join(h.dir, "errors.csv")
		out := h.mustRun(t, "sync", "errors", "--output", csvPath)
		if !strings.Contains(out, "1 errors written") {
			t.Errorf("unexpected output:\n%s", out)
		}
		if csv := tu.MustReadFile(t, csvPath); !strings.Contains(csv, "vid-a") {
			t.Errorf("expected failed video in CSV:\n%s", csv)
		}
	})

	t.Run("quota status", func(t *testing.T) {
		h := newCLIHarness(t)
		out := h.mustRun(t, "quota", "status", "--json")
		if !strings.Contains(out, `"remaining": 10000`) {
			t.Errorf("expected full quota:\n%s", out)
		}
	})

	t.Run("backup create and verify", func(t *testing.T) {
		h := newCLIHarness(t)
		h.seed(t)
		h.mustRun(t, "backup", "create")

		snapshots, err := h.runner.store.Backups().List(context.Background(), nil)
		if err != nil || len(snapshots) != 1 {
			t.Fatalf("expected one snapshot, got %d (%v)", len(snapshots), err)
		}
		out := h.mustRun(t, "backup", "verify", snapshots[0].ID())
		if !strings.Contains(out, "2 categories, 3 videos, 3 assignments") {
			t.Errorf("unexpected verify output:\n%s", out)
		}
	})

	t.Run("setup", func(t *testing.T) {
		h := newCLIHarness(t)
		config := shared.DefaultConfig()
		config.Database.Path = filepath.Join(h.dir, "ytsort.db")
		config.Sync.BackupDir = filepath.Join(h.dir, "snapshots")
		config.Credentials.YouTube.TokenPath = filepath.Join(h.dir, "auth", "token.json")
		configPath := filepath.Join(h.dir, "config.toml")
		if err := shared.SaveConfig(configPath, config); err != nil {
			t.Fatalf("SaveConfig() error = %v", err)
		}

		out := h.mustRun(t, "setup", "--config", configPath)
		for _, want := range []string{"(2 migrations applied)", "Next steps:"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in setup output:\n%s", want, out)
			}
		}
		tu.AssertFileExists(t, config.Database.Path)
		tu.AssertFileExists(t, config.Sync.BackupDir)
		tu.AssertFileExists(t, filepath.Join(h.dir, "auth"))

		if err := os.WriteFile(configPath, []byte("[quota]\ndaily_limit = 0\n"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := h.run(t, "setup", "--config", configPath); err == nil {
			t.Error("expected setup to reject an invalid config")
		}
	})

	t.Run("import rejects a missing path", func(t *testing.T) {
		h := newCLIHarness(t)
		if _, err := h.run(t, "categories", "import"); err == nil {
			t.Error("expected missing argument error")
		}
	})
}

func TestAuth(t *testing.T) {
	t.Run("status without a token", func(t *testing.T) {
		h := newCLIHarness(t)
		out := h.mustRun(t, "auth", "status")
		if !strings.Contains(out, "Not authenticated") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("status with a stored token then logout", func(t *testing.T) {
		h := newCLIHarness(t)
		path := h.runner.config.Credentials.YouTube.TokenPath
		token := &oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: time.Now().Add(time.Hour)}
		if err := shared.SaveToken(path, token); err != nil {
			t.Fatalf("failed to save token: %v", err)
		}

		out := h.mustRun(t, "auth", "status", "--json")
		var state tokenState
		if err := json.Unmarshal([]byte(out), &state); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if !state.Authenticated || !state.Valid || !state.Refreshable {
			t.Errorf("unexpected state %+v", state)
		}

		h.mustRun(t, "auth", "logout")
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Error("expected token file removed")
		}
	})

	t.Run("login requires credentials", func(t *testing.T) {
		h := newCLIHarness(t)
		if _, err := h.run(t, "auth", "login"); err == nil || !strings.Contains(err.Error(), "missing credentials") {
			t.Errorf("expected missing credentials, got %v", err)
		}
	})

	t.Run("callbackAddr", func(t *testing.T) {
		tests := []struct {
			url     string
			want    string
			wantErr bool
		}{
			{"http://127.0.0.1:3000/callback", "127.0.0.1:3000", false},
			{"http://localhost:8085/oauth/done", "localhost:8085", false},
			{"http://localhost/callback", "", true},
			{"://bad", "", true},
		}
		for _, tt := range tests {
			got, err := callbackAddr(tt.url)
			if (err != nil) != tt.wantErr || got != tt.want {
				t.Errorf("callbackAddr(%q) = %q, %v", tt.url, got, err)
			}
		}
	})
}

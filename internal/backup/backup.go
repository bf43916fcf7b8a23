// package backup writes JSON snapshots of the category library before destructive sync work.
package backup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytsort/internal/models"
	"github.com/desertthunder/ytsort/internal/shared"
)

// FormatVersion is written to every snapshot file.
const FormatVersion = "1.0"

// categoryScopePrefix selects a single category, e.g. "category:Gaming".
const categoryScopePrefix = "category:"

// Creator writes a snapshot and returns the id of its backup_snapshots row.
// Sync jobs reference that id by foreign key, so it must name a stored row.
type Creator interface {
	Create(ctx context.Context, trigger, scope string) (string, error)
}

// Document is the on-disk snapshot format.
//
// It identifies categories by name and videos by YouTube id so files stay portable across databases.
type Document struct {
	Version    string          `json:"version"`
	CreatedAt  time.Time       `json:"createdAt"`
	Trigger    string          `json:"trigger"`
	Scope      string          `json:"scope"`
	Categories []CategoryEntry `json:"categories"`
	Metadata   Metadata        `json:"metadata"`
}

type CategoryEntry struct {
	Name        string       `json:"name"`
	IsProtected bool         `json:"isProtected"`
	Videos      []VideoEntry `json:"videos"`
}

type VideoEntry struct {
	YouTubeID string `json:"youtubeId"`
	Title     string `json:"title"`
	Source    string `json:"source"`
}

type Metadata struct {
	CategoryCount   int `json:"categoryCount"`
	VideoCount      int `json:"videoCount"`
	AssignmentCount int `json:"assignmentCount"`
}

// Writer implements [Creator] over a [models.Store], writing files under a directory.
type Writer struct {
	store  models.Store
	dir    string
	logger *log.Logger
	now    func() time.Time
}

// NewWriter creates a Writer. An empty dir means ./backups.
func NewWriter(store models.Store, dir string, logger *log.Logger) *Writer {
	if dir == "" {
		dir = "backups"
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Writer{
		store:  store,
		dir:    dir,
		logger: shared.WithLogger(logger, "component", "backup"),
		now:    models.Now,
	}
}

// Dir returns the directory snapshots are written to.
func (w *Writer) Dir() string { return w.dir }

// Create gathers the library for scope, writes it as indented JSON and records a [models.BackupSnapshot].
//
// Scope is "full" or "category:<name>".
func (w *Writer) Create(ctx context.Context, trigger, scope string) (string, error) {
	if trigger == "" {
		trigger = models.BackupTriggerManual
	}
	if scope == "" {
		scope = models.BackupScopeFull
	}

	doc, err := w.gather(ctx, scope)
	if err != nil {
		return "", err
	}
	doc.CreatedAt = w.now()
	doc.Trigger = trigger

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode backup: %w", err)
	}

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	filename := Filename(trigger, doc.CreatedAt)
	if err := os.WriteFile(filepath.Join(w.dir, filename), data, 0644); err != nil {
		return "", fmt.Errorf("failed to write backup file: %w", err)
	}

	snapshot := models.NewBackupSnapshot(filename, trigger, scope)
	snapshot.EntityCount = doc.Metadata.CategoryCount + doc.Metadata.VideoCount
	snapshot.FileSizeBytes = int64(len(data))
	snapshot.Checksum = Checksum(data)

	if err := w.store.Backups().Create(ctx, snapshot); err != nil {
		return "", fmt.Errorf("failed to record backup snapshot: %w", err)
	}

	w.logger.Info("backup written",
		"file", filename,
		"trigger", trigger,
		"categories", doc.Metadata.CategoryCount,
		"videos", doc.Metadata.VideoCount,
	)
	return snapshot.ID(), nil
}

func (w *Writer) gather(ctx context.Context, scope string) (*Document, error) {
	var categories []*models.Category
	switch {
	case scope == models.BackupScopeFull:
		all, err := w.store.Categories().List(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to list categories: %w", err)
		}
		categories = all
	case strings.HasPrefix(scope, categoryScopePrefix):
		name := strings.TrimPrefix(scope, categoryScopePrefix)
		category, err := w.store.Categories().GetByName(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to find category %q: %w", name, err)
		}
		categories = []*models.Category{category}
	default:
		return nil, fmt.Errorf("%w: unknown backup scope %q", shared.ErrInvalidArgument, scope)
	}

	doc := &Document{Version: FormatVersion, Scope: scope, Categories: make([]CategoryEntry, 0, len(categories))}
	unique := make(map[string]struct{})

	for _, category := range categories {
		memberships, err := w.store.Memberships().ListByCategory(ctx, category.ID(), time.Time{})
		if err != nil {
			return nil, fmt.Errorf("failed to list videos for %s: %w", category.Name, err)
		}

		entry := CategoryEntry{Name: category.Name, IsProtected: category.IsProtected, Videos: make([]VideoEntry, 0, len(memberships))}
		for _, m := range memberships {
			entry.Videos = append(entry.Videos, VideoEntry{YouTubeID: m.VideoYouTubeID, Title: m.VideoTitle, Source: m.Source})
			unique[m.VideoYouTubeID] = struct{}{}
		}

		doc.Metadata.AssignmentCount += len(memberships)
		doc.Categories = append(doc.Categories, entry)
	}

	doc.Metadata.CategoryCount = len(doc.Categories)
	doc.Metadata.VideoCount = len(unique)
	return doc, nil
}

// Verify re-reads the file behind snapshot id and checks its size and checksum.
func (w *Writer) Verify(ctx context.Context, id string) (*Document, error) {
	snapshot, err := w.store.Backups().Get(ctx, id)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(w.dir, snapshot.Filename))
	if err != nil {
		return nil, fmt.Errorf("failed to read backup file: %w", err)
	}
	if int64(len(data)) != snapshot.FileSizeBytes || Checksum(data) != snapshot.Checksum {
		return nil, fmt.Errorf("%w: backup %s does not match its recorded checksum", shared.ErrInvalidInput, snapshot.Filename)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode backup: %w", err)
	}
	return &doc, nil
}

// Filename returns backup-{trigger}-{timestamp}.json with a filesystem-safe UTC timestamp.
func Filename(trigger string, at time.Time) string {
	stamp := strings.ReplaceAll(at.UTC().Format("2006-01-02T15-04-05.000Z"), ".", "-")
	return fmt.Sprintf("backup-%s-%s.json", trigger, stamp)
}

// Checksum returns the sha256 hex digest of data.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

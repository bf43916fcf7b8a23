// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/ytsort/internal/models"
)

// MockWriter is a scripted test double for [services.PlaylistWriter].
//
// Errors are keyed by call number (1-based) per method. Hooks run before the scripted
// result and may return an error of their own.
type MockWriter struct {
	mu sync.Mutex

	CreateErrors map[int]error
	AddErrors    map[int]error
	DeleteErrors map[int]error

	OnCreate func(n int, title string) error
	OnAdd    func(n int, playlistID, videoID string) error
	OnDelete func(n int, playlistID string) error

	Created []string // titles
	Added   []string // "playlistID/videoID"
	Deleted []string // playlist ids
	Tokens  []string

	creates, adds, deletes int
}

func NewMockWriter() *MockWriter {
	return &MockWriter{
		CreateErrors: map[int]error{},
		AddErrors:    map[int]error{},
		DeleteErrors: map[int]error{},
	}
}

func (m *MockWriter) CreatePlaylist(ctx context.Context, token, title, description string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.creates++
	m.Tokens = append(m.Tokens, token)
	if m.OnCreate != nil {
		if err := m.OnCreate(m.creates, title); err != nil {
			return "", err
		}
	}
	if err := m.CreateErrors[m.creates]; err != nil {
		return "", err
	}
	m.Created = append(m.Created, title)
	return fmt.Sprintf("PL-created-%d", m.creates), nil
}

func (m *MockWriter) AddVideoToPlaylist(ctx context.Context, token, playlistID, videoID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.adds++
	m.Tokens = append(m.Tokens, token)
	if m.OnAdd != nil {
		if err := m.OnAdd(m.adds, playlistID, videoID); err != nil {
			return "", err
		}
	}
	if err := m.AddErrors[m.adds]; err != nil {
		return "", err
	}
	m.Added = append(m.Added, playlistID+"/"+videoID)
	return fmt.Sprintf("PLI-%d", m.adds), nil
}

func (m *MockWriter) DeletePlaylist(ctx context.Context, token, playlistID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deletes++
	m.Tokens = append(m.Tokens, token)
	if m.OnDelete != nil {
		if err := m.OnDelete(m.deletes, playlistID); err != nil {
			return err
		}
	}
	if err := m.DeleteErrors[m.deletes]; err != nil {
		return err
	}
	m.Deleted = append(m.Deleted, playlistID)
	return nil
}

// Calls returns how many times each method was invoked.
func (m *MockWriter) Calls() (creates, adds, deletes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creates, m.adds, m.deletes
}

// MockBackup is a test double for backup.Creator that skips the file but records the
// metadata row, since sync_jobs.backup_snapshot_id references backup_snapshots.
type MockBackup struct {
	Store models.BackupSnapshotRepository
	Err   error
	Calls int
}

func NewMockBackup(store models.BackupSnapshotRepository) *MockBackup {
	return &MockBackup{Store: store}
}

func (m *MockBackup) Create(ctx context.Context, trigger, scope string) (string, error) {
	m.Calls++
	if m.Err != nil {
		return "", m.Err
	}
	if m.Store == nil {
		return "", errors.New("mock backup has no snapshot repository")
	}

	snapshot := models.NewBackupSnapshot(fmt.Sprintf("backup-%d.json", m.Calls), trigger, scope)
	snapshot.Checksum = strings.Repeat("0", 64)
	if err := m.Store.Create(ctx, snapshot); err != nil {
		return "", err
	}
	return snapshot.ID(), nil
}

// StaticGauge reports a fixed remaining quota.
type StaticGauge struct {
	mu    sync.Mutex
	Value int
	Err   error
}

func (g *StaticGauge) Remaining(ctx context.Context) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Value, g.Err
}

func (g *StaticGauge) Set(v int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Value = v
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

// package repositories provides SQLite implementations of the models store interfaces.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/ytsort/internal/models"
)

// ErrNotFound is wrapped by every Get-style lookup that matches no row.
var ErrNotFound = models.ErrNotFound

// DBTX is the subset of [sql.DB] and [sql.Tx] used by repositories, so one implementation serves both.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rowScanner is satisfied by [sql.Row] and [sql.Rows].
type rowScanner interface {
	Scan(dest ...any) error
}

// NextSequence atomically increments and returns the next sequence number for the given table.
//
// Sequence numbers give stable insertion ordering independent of UUIDs and timestamps.
// Inside a transaction the increment rolls back with it.
func NextSequence(ctx context.Context, db DBTX, table string) (int, error) {
	query := fmt.Sprintf("UPDATE %s_sequence SET value = value + 1 WHERE id = 1 RETURNING value", table)

	var sequence int
	if err := db.QueryRowContext(ctx, query).Scan(&sequence); err != nil {
		return 0, fmt.Errorf("failed to increment sequence: %w", err)
	}
	return sequence, nil
}

// Store implements [models.Store] over a SQLite handle or transaction.
type Store struct {
	root *sql.DB
	db   DBTX
}

// NewStore creates a Store on db.
func NewStore(db *sql.DB) *Store {
	return &Store{root: db, db: db}
}

func (s *Store) Categories() models.CategoryRepository {
	return &CategoryRepository{db: s.db}
}

func (s *Store) Videos() models.VideoRepository {
	return &VideoRepository{db: s.db}
}

func (s *Store) Memberships() models.CategoryVideoRepository {
	return &CategoryVideoRepository{db: s.db}
}

func (s *Store) Playlists() models.PlaylistRepository {
	return &PlaylistRepository{db: s.db}
}

func (s *Store) SyncJobs() models.SyncJobRepository {
	return &SyncJobRepository{db: s.db}
}

func (s *Store) Operations() models.SyncVideoOperationRepository {
	return &SyncVideoOperationRepository{db: s.db}
}

func (s *Store) Backups() models.BackupSnapshotRepository {
	return &BackupSnapshotRepository{db: s.db}
}

func (s *Store) QuotaUsage() models.QuotaUsageRepository {
	return &QuotaUsageRepository{db: s.db}
}

// WithTx runs fn in a transaction. Calls on a Store already bound to a transaction reuse it.
func (s *Store) WithTx(ctx context.Context, fn func(models.Store) error) error {
	if _, ok := s.db.(*sql.Tx); ok {
		return fn(s)
	}

	tx, err := s.root.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Store{root: s.root, db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// checkAffected turns a zero-row update into a not-found error.
func checkAffected(result sql.Result, entity, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s not found or already deleted: %s", ErrNotFound, entity, id)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

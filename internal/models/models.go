// package models defines the persisted entities and store interfaces for ytsort
package models

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is wrapped by store lookups that match no row.
	ErrNotFound = errors.New("record not found")

	// ErrActiveJobExists is returned when creating a sync job while another is non-terminal.
	ErrActiveJobExists = errors.New("an active sync job already exists")
)

// Model defines the base interface for all persistent models.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
// Implementations handle database interactions for specific model types.
type Repository[T Model] interface {
	Create(ctx context.Context, model T) error                      // Create inserts a new model into the database
	Get(ctx context.Context, id string) (T, error)                  // Get retrieves a model by its ID
	Update(ctx context.Context, model T) error                      // Update modifies an existing model in the database
	List(ctx context.Context, criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

// Record carries the identity and bookkeeping columns shared by every table.
//
// Embed it in entities; repositories fill id and sequence on Create.
type Record struct {
	id        string
	sequence  int
	createdAt time.Time
	updatedAt time.Time
}

// NewRecord returns a Record stamped with the current UTC time.
func NewRecord() Record {
	now := Now()
	return Record{createdAt: now, updatedAt: now}
}

func (r *Record) ID() string {
	return r.id
}

func (r *Record) Sequence() int {
	return r.sequence
}

func (r *Record) CreatedAt() time.Time {
	return r.createdAt
}

func (r *Record) UpdatedAt() time.Time {
	return r.updatedAt
}

func (r *Record) SetID(id string) {
	r.id = id
}

func (r *Record) SetSequence(seq int) {
	r.sequence = seq
}

func (r *Record) SetCreatedAt(t time.Time) {
	r.createdAt = t
}

func (r *Record) SetUpdatedAt(t time.Time) {
	r.updatedAt = t
}

// Restore sets every bookkeeping column when a row is scanned.
func (r *Record) Restore(id string, seq int, created, updated time.Time) {
	r.id, r.sequence, r.createdAt, r.updatedAt = id, seq, created, updated
}

// Now returns the current time in UTC, truncated to microseconds so values survive a SQLite round trip unchanged.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

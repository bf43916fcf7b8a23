package models

import (
	"fmt"
	"time"
)

// Backup trigger and scope values.
const (
	BackupTriggerPreSync = "pre_sync"
	BackupTriggerManual  = "manual"
	BackupScopeFull      = "full"
)

// BackupSnapshot records a JSON snapshot of the library written to disk.
type BackupSnapshot struct {
	Record
	Filename      string
	Trigger       string
	Scope         string
	EntityCount   int
	FileSizeBytes int64
	Checksum      string
}

func NewBackupSnapshot(filename, trigger, scope string) *BackupSnapshot {
	return &BackupSnapshot{Record: NewRecord(), Filename: filename, Trigger: trigger, Scope: scope}
}

func (b *BackupSnapshot) Validate() error {
	if b.Filename == "" {
		return fmt.Errorf("backup filename is required")
	}
	if b.Trigger == "" || b.Scope == "" {
		return fmt.Errorf("backup trigger and scope are required")
	}
	if len(b.Checksum) != 64 {
		return fmt.Errorf("backup checksum must be a sha256 hex digest")
	}
	return nil
}

// QuotaUsage is one entry in the daily quota ledger.
type QuotaUsage struct {
	Record
	Date      time.Time
	UnitsUsed int
	Operation string
	Details   map[string]any
}

func NewQuotaUsage(operation string, units int, details map[string]any) *QuotaUsage {
	rec := NewRecord()
	return &QuotaUsage{Record: rec, Date: rec.CreatedAt(), UnitsUsed: units, Operation: operation, Details: details}
}

func (q *QuotaUsage) Validate() error {
	if q.Operation == "" {
		return fmt.Errorf("quota usage operation is required")
	}
	if q.UnitsUsed < 0 {
		return fmt.Errorf("quota usage units cannot be negative")
	}
	return nil
}

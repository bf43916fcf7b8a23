package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Stage is one phase of the sync state machine.
type Stage string

const (
	StagePending         Stage = "pending"
	StageBackup          Stage = "backup"
	StageCreatePlaylists Stage = "create_playlists"
	StageAddVideos       Stage = "add_videos"
	StageDeletePlaylists Stage = "delete_playlists"
	StageCompleted       Stage = "completed"
	StagePaused          Stage = "paused"
	StageFailed          Stage = "failed"
)

// stageOrder lists the forward path. paused and failed are side branches.
var stageOrder = []Stage{
	StagePending,
	StageBackup,
	StageCreatePlaylists,
	StageAddVideos,
	StageDeletePlaylists,
	StageCompleted,
}

// ParseStage converts a stored stage name.
func ParseStage(s string) (Stage, error) {
	switch st := Stage(s); st {
	case StagePending, StageBackup, StageCreatePlaylists, StageAddVideos,
		StageDeletePlaylists, StageCompleted, StagePaused, StageFailed:
		return st, nil
	}
	return "", fmt.Errorf("unknown sync stage %q", s)
}

// Terminal reports whether no further transitions are possible.
func (s Stage) Terminal() bool { return s == StageCompleted || s == StageFailed }

// Processing reports whether the stage is on the forward path and not yet completed.
func (s Stage) Processing() bool {
	switch s {
	case StagePending, StageBackup, StageCreatePlaylists, StageAddVideos, StageDeletePlaylists:
		return true
	}
	return false
}

// Position returns the index on the forward path, or -1 for paused and failed.
func (s Stage) Position() int {
	for i, st := range stageOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// Next returns the following stage on the forward path. Stages off the path return themselves.
func (s Stage) Next() Stage {
	i := s.Position()
	if i < 0 || i == len(stageOrder)-1 {
		return s
	}
	return stageOrder[i+1]
}

// RemoteStage reports whether the stage issues remote writes.
func (s Stage) RemoteStage() bool {
	return s == StageCreatePlaylists || s == StageAddVideos || s == StageDeletePlaylists
}

// PauseReason explains why a job is paused.
type PauseReason string

const (
	PauseQuotaExhausted  PauseReason = "quota_exhausted"
	PauseUserPaused      PauseReason = "user_paused"
	PauseErrorsCollected PauseReason = "errors_collected"
)

func (r PauseReason) Valid() bool {
	return r == PauseQuotaExhausted || r == PauseUserPaused || r == PauseErrorsCollected
}

// OperationStatus is the per-video status of a [SyncVideoOperation].
type OperationStatus string

const (
	OperationPending   OperationStatus = "pending"
	OperationCompleted OperationStatus = "completed"
	OperationFailed    OperationStatus = "failed"
	OperationSkipped   OperationStatus = "skipped"
)

func (s OperationStatus) Terminal() bool { return s != OperationPending }

// EntityType identifies what a [SyncError] refers to.
type EntityType string

const (
	EntityPlaylist EntityType = "playlist"
	EntityVideo    EntityType = "video"
	EntityJob      EntityType = "job"
)

// SyncError is one per-item failure recorded on a job.
type SyncError struct {
	Stage      Stage      `json:"stage"`
	EntityType EntityType `json:"entityType"`
	EntityID   string     `json:"entityId"`
	Message    string     `json:"message"`
	Timestamp  time.Time  `json:"timestamp"`
}

// StageCounts holds per-stage outcome counters.
type StageCounts struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// StageResults holds counters for each remote stage.
type StageResults struct {
	CreatePlaylists StageCounts `json:"create_playlists"`
	AddVideos       StageCounts `json:"add_videos"`
	DeletePlaylists StageCounts `json:"delete_playlists"`
}

// For returns the counters for a remote stage, or nil.
func (r *StageResults) For(s Stage) *StageCounts {
	switch s {
	case StageCreatePlaylists:
		return &r.CreatePlaylists
	case StageAddVideos:
		return &r.AddVideos
	case StageDeletePlaylists:
		return &r.DeletePlaylists
	}
	return nil
}

// SyncJob is one end-to-end sync attempt. Preview is frozen at creation.
type SyncJob struct {
	Record
	Stage                Stage
	CurrentStageProgress int
	CurrentStageTotal    int
	StageResults         StageResults
	Errors               []SyncError
	ErrorsReviewed       int
	QuotaUsedThisSync    int
	PauseReason          PauseReason
	PausedFromStage      Stage
	Preview              SyncPreview
	BackupSnapshotID     string
	StartedAt            time.Time
	LastResumedAt        *time.Time
	CompletedAt          *time.Time
}

// NewSyncJob creates an unsaved pending job over a frozen copy of preview.
func NewSyncJob(preview SyncPreview) *SyncJob {
	rec := NewRecord()
	return &SyncJob{
		Record:    rec,
		Stage:     StagePending,
		Preview:   preview.Clone(),
		Errors:    []SyncError{},
		StartedAt: rec.CreatedAt(),
	}
}

// Active reports whether the job is non-terminal. Paused jobs are active.
func (j *SyncJob) Active() bool { return !j.Stage.Terminal() }

// UnreviewedErrors counts errors appended since the last resume.
func (j *SyncJob) UnreviewedErrors() int { return len(j.Errors) - j.ErrorsReviewed }

// AddError appends a per-item failure.
func (j *SyncJob) AddError(stage Stage, entity EntityType, entityID, message string) {
	j.Errors = append(j.Errors, SyncError{
		Stage:      stage,
		EntityType: entity,
		EntityID:   entityID,
		Message:    message,
		Timestamp:  Now(),
	})
}

// EnterStage moves the job to s and resets the per-stage cursor.
func (j *SyncJob) EnterStage(s Stage, total int) {
	j.Stage = s
	j.CurrentStageProgress = 0
	j.CurrentStageTotal = total
}

// Pause diverts the job to paused, remembering the stage to resume into.
func (j *SyncJob) Pause(reason PauseReason) {
	j.PausedFromStage = j.Stage
	j.PauseReason = reason
	j.Stage = StagePaused
}

// Resume restores the stage held before the pause and acknowledges current errors.
func (j *SyncJob) Resume() {
	now := Now()
	j.Stage = j.PausedFromStage
	j.PausedFromStage = ""
	j.PauseReason = ""
	j.LastResumedAt = &now
	j.ErrorsReviewed = len(j.Errors)
}

// Fail marks the job terminally failed.
func (j *SyncJob) Fail(stage Stage, message string) {
	j.AddError(stage, EntityJob, j.ID(), message)
	j.Stage = StageFailed
	j.PauseReason = ""
	j.PausedFromStage = ""
}

// Complete marks the job done.
func (j *SyncJob) Complete() {
	now := Now()
	j.EnterStage(StageCompleted, 0)
	j.CompletedAt = &now
}

func (j *SyncJob) Validate() error {
	if _, err := ParseStage(string(j.Stage)); err != nil {
		return err
	}
	if j.Stage == StagePaused {
		if !j.PauseReason.Valid() {
			return fmt.Errorf("paused job requires a valid pause reason, got %q", j.PauseReason)
		}
		if !j.PausedFromStage.Processing() {
			return fmt.Errorf("paused job must remember a processing stage, got %q", j.PausedFromStage)
		}
	}
	if j.CurrentStageProgress < 0 || j.QuotaUsedThisSync < 0 {
		return fmt.Errorf("sync job counters cannot be negative")
	}
	if j.ErrorsReviewed > len(j.Errors) {
		return fmt.Errorf("errors reviewed exceeds recorded errors")
	}
	return nil
}

type syncJobJSON struct {
	ID                   string       `json:"id"`
	Stage                Stage        `json:"stage"`
	CurrentStageProgress int          `json:"currentStageProgress"`
	CurrentStageTotal    int          `json:"currentStageTotal"`
	StageResults         StageResults `json:"stageResults"`
	Errors               []SyncError  `json:"errors"`
	QuotaUsedThisSync    int          `json:"quotaUsedThisSync"`
	PauseReason          *PauseReason `json:"pauseReason"`
	PausedFromStage      *Stage       `json:"pausedFromStage,omitempty"`
	PreviewData          SyncPreview  `json:"previewData"`
	BackupSnapshotID     *string      `json:"backupSnapshotId"`
	StartedAt            time.Time    `json:"startedAt"`
	LastResumedAt        *time.Time   `json:"lastResumedAt"`
	CompletedAt          *time.Time   `json:"completedAt"`
	CreatedAt            time.Time    `json:"createdAt"`
	UpdatedAt            time.Time    `json:"updatedAt"`
}

// MarshalJSON renders the job in the shape polled by clients, with null for unset optional fields.
func (j *SyncJob) MarshalJSON() ([]byte, error) {
	out := syncJobJSON{
		ID:                   j.ID(),
		Stage:                j.Stage,
		CurrentStageProgress: j.CurrentStageProgress,
		CurrentStageTotal:    j.CurrentStageTotal,
		StageResults:         j.StageResults,
		Errors:               j.Errors,
		QuotaUsedThisSync:    j.QuotaUsedThisSync,
		PreviewData:          j.Preview,
		StartedAt:            j.StartedAt,
		LastResumedAt:        j.LastResumedAt,
		CompletedAt:          j.CompletedAt,
		CreatedAt:            j.CreatedAt(),
		UpdatedAt:            j.UpdatedAt(),
	}
	if out.Errors == nil {
		out.Errors = []SyncError{}
	}
	if j.PauseReason != "" {
		out.PauseReason = &j.PauseReason
	}
	if j.PausedFromStage != "" {
		out.PausedFromStage = &j.PausedFromStage
	}
	if j.BackupSnapshotID != "" {
		out.BackupSnapshotID = &j.BackupSnapshotID
	}
	return json.Marshal(out)
}

// SyncVideoOperation is one planned "add video to category playlist" unit of work.
type SyncVideoOperation struct {
	Record
	SyncJobID      string
	CategoryID     string
	VideoID        string
	YouTubeVideoID string
	Status         OperationStatus
	ErrorMessage   string
	CompletedAt    *time.Time
}

// NewSyncVideoOperation creates an unsaved pending operation.
func NewSyncVideoOperation(jobID, categoryID, videoID, youtubeVideoID string) *SyncVideoOperation {
	return &SyncVideoOperation{
		Record:         NewRecord(),
		SyncJobID:      jobID,
		CategoryID:     categoryID,
		VideoID:        videoID,
		YouTubeVideoID: youtubeVideoID,
		Status:         OperationPending,
	}
}

// Finish records a terminal status.
func (o *SyncVideoOperation) Finish(status OperationStatus, message string) {
	now := Now()
	o.Status = status
	o.ErrorMessage = message
	o.CompletedAt = &now
}

func (o *SyncVideoOperation) Validate() error {
	if o.SyncJobID == "" || o.CategoryID == "" || o.VideoID == "" {
		return fmt.Errorf("sync video operation requires job, category and video ids")
	}
	if o.YouTubeVideoID == "" {
		return fmt.Errorf("sync video operation requires a youtube video id")
	}
	switch o.Status {
	case OperationPending, OperationCompleted, OperationFailed, OperationSkipped:
	default:
		return fmt.Errorf("unknown operation status %q", o.Status)
	}
	return nil
}

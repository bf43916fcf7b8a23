package tasks

import (
	"fmt"

	"github.com/desertthunder/ytsort/internal/models"
)

// ProgressUpdate represents a progress event during a sync batch.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Sync phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Sync phase enumeration
type Phase int

const (
	PhasePending Phase = iota
	PhaseBackup
	PhaseCreatePlaylists
	PhaseAddVideos
	PhaseDeletePlaylists
	PhaseCompleted
	PhasePaused
	PhaseFailed
)

// PhaseFor maps a job stage to its display phase.
func PhaseFor(s models.Stage) Phase {
	switch s {
	case models.StageBackup:
		return PhaseBackup
	case models.StageCreatePlaylists:
		return PhaseCreatePlaylists
	case models.StageAddVideos:
		return PhaseAddVideos
	case models.StageDeletePlaylists:
		return PhaseDeletePlaylists
	case models.StageCompleted:
		return PhaseCompleted
	case models.StagePaused:
		return PhasePaused
	case models.StageFailed:
		return PhaseFailed
	default:
		return PhasePending
	}
}

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseBackup:
		return "backup"
	case PhaseCreatePlaylists:
		return "create_playlists"
	case PhaseAddVideos:
		return "add_videos"
	case PhaseDeletePlaylists:
		return "delete_playlists"
	case PhaseCompleted:
		return "completed"
	case PhasePaused:
		return "paused"
	case PhaseFailed:
		return "failed"
	default:
		return ""
	}
}

func stageEnteredUpdate(job *models.SyncJob) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhaseFor(job.Stage),
		Step:    job.CurrentStageProgress,
		Total:   job.CurrentStageTotal,
		Message: fmt.Sprintf("Entering %s (%d items)", job.Stage, job.CurrentStageTotal),
		Data:    job,
	}
}

func backupCreatedUpdate(snapshotID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhaseBackup,
		Step:    1,
		Total:   1,
		Message: "Pre-sync backup written",
		Data:    snapshotID,
	}
}

func itemSucceededUpdate(job *models.SyncJob, label string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhaseFor(job.Stage),
		Step:    job.CurrentStageProgress,
		Total:   job.CurrentStageTotal,
		Message: fmt.Sprintf("[%d/%d] ✓ %s", job.CurrentStageProgress, job.CurrentStageTotal, label),
	}
}

func itemSkippedUpdate(job *models.SyncJob, label string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhaseFor(job.Stage),
		Step:    job.CurrentStageProgress,
		Total:   job.CurrentStageTotal,
		Message: fmt.Sprintf("[%d/%d] - %s (skipped)", job.CurrentStageProgress, job.CurrentStageTotal, label),
	}
}

func itemFailedUpdate(job *models.SyncJob, label string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhaseFor(job.Stage),
		Step:    job.CurrentStageProgress,
		Total:   job.CurrentStageTotal,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", job.CurrentStageProgress, job.CurrentStageTotal, label, err),
	}
}

func pausedUpdate(job *models.SyncJob) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhasePaused,
		Step:    job.CurrentStageProgress,
		Total:   job.CurrentStageTotal,
		Message: fmt.Sprintf("Sync paused during %s: %s", job.PausedFromStage, job.PauseReason),
		Data:    job,
	}
}

func resumedUpdate(job *models.SyncJob) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhaseFor(job.Stage),
		Step:    job.CurrentStageProgress,
		Total:   job.CurrentStageTotal,
		Message: fmt.Sprintf("Sync resumed into %s", job.Stage),
		Data:    job,
	}
}

func failedUpdate(job *models.SyncJob, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhaseFailed,
		Message: fmt.Sprintf("Sync failed: %v", err),
		Data:    job,
	}
}

func completedUpdate(job *models.SyncJob) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhaseCompleted,
		Message: fmt.Sprintf("Sync completed (%d quota units used)", job.QuotaUsedThisSync),
		Data:    job,
	}
}

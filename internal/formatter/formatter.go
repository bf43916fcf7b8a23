// package formatter renders sync previews, job status and error reports as plain text, Markdown and CSV
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"time"

	"github.com/desertthunder/ytsort/internal/models"
	"github.com/desertthunder/ytsort/internal/quota"
)

// ErrorsToCSV converts a job's error list to CSV with columns: Stage, Entity Type, Entity ID, Message, Timestamp
func ErrorsToCSV(errs []models.SyncError) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Stage", "Entity Type", "Entity ID", "Message", "Timestamp"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, e := range errs {
		record := []string{
			string(e.Stage),
			string(e.EntityType),
			e.EntityID,
			e.Message,
			e.Timestamp.Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// WriteErrorsCSV writes a job's errors to path, defaulting to sync_errors_{job id}.csv.
func WriteErrorsCSV(job *models.SyncJob, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("sync_errors_%s.csv", job.ID())
	}

	data, err := ErrorsToCSV(job.Errors)
	if err != nil {
		return "", fmt.Errorf("failed to generate CSV: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write CSV file: %w", err)
	}
	return path, nil
}

// PreviewToText renders a preview as an aligned plain text summary.
func PreviewToText(p *models.SyncPreview) []byte {
	var buf bytes.Buffer
	s := p.Stages

	buf.WriteString("Sync preview\n\n")
	fmt.Fprintf(&buf, "  %-18s %6d  %7d units\n", "Create playlists", s.CreatePlaylists.Count, s.CreatePlaylists.QuotaCost)
	fmt.Fprintf(&buf, "  %-18s %6d  %7d units\n", "Add videos", s.AddVideos.Count, s.AddVideos.QuotaCost)
	fmt.Fprintf(&buf, "  %-18s %6d  %7d units\n", "Delete playlists", s.DeletePlaylists.Count, s.DeletePlaylists.QuotaCost)
	fmt.Fprintf(&buf, "\nTotal: %d units, about %s at %d units/day\n", p.TotalQuotaCost, days(p.EstimatedDays), p.DailyQuotaLimit)

	if len(s.CreatePlaylists.Items) > 0 {
		buf.WriteString("\nPlaylists to create:\n")
		for i, item := range s.CreatePlaylists.Items {
			fmt.Fprintf(&buf, "%d. %s\n", i+1, item.CategoryName)
		}
	}

	if len(s.AddVideos.ByCategory) > 0 {
		buf.WriteString("\nVideos to add:\n")
		for _, group := range s.AddVideos.ByCategory {
			fmt.Fprintf(&buf, "  %s: %d\n", group.CategoryName, group.VideoCount)
		}
	}

	if len(s.DeletePlaylists.Items) > 0 {
		buf.WriteString("\nPlaylists to delete:\n")
		for i, item := range s.DeletePlaylists.Items {
			fmt.Fprintf(&buf, "%d. %s (%s)\n", i+1, item.PlaylistName, item.YouTubeID)
		}
	}

	return buf.Bytes()
}

// PreviewToMarkdown renders a preview as a Markdown report with a stage table.
func PreviewToMarkdown(p *models.SyncPreview) []byte {
	var buf bytes.Buffer
	s := p.Stages

	buf.WriteString("# Sync Preview\n\n")
	buf.WriteString("| Stage | Operations | Quota |\n")
	buf.WriteString("|---|---:|---:|\n")
	fmt.Fprintf(&buf, "| Create playlists | %d | %d |\n", s.CreatePlaylists.Count, s.CreatePlaylists.QuotaCost)
	fmt.Fprintf(&buf, "| Add videos | %d | %d |\n", s.AddVideos.Count, s.AddVideos.QuotaCost)
	fmt.Fprintf(&buf, "| Delete playlists | %d | %d |\n", s.DeletePlaylists.Count, s.DeletePlaylists.QuotaCost)
	fmt.Fprintf(&buf, "| **Total** | | **%d** |\n\n", p.TotalQuotaCost)

	fmt.Fprintf(&buf, "**Estimated**: %s at %d units/day\n", days(p.EstimatedDays), p.DailyQuotaLimit)

	if len(s.AddVideos.ByCategory) > 0 {
		buf.WriteString("\n## Categories\n\n")
		for _, group := range s.AddVideos.ByCategory {
			fmt.Fprintf(&buf, "- %s (%d videos)\n", group.CategoryName, group.VideoCount)
		}
	}

	return buf.Bytes()
}

// JobToText renders the status of a sync job.
func JobToText(job *models.SyncJob) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Job:      %s\n", job.ID())
	fmt.Fprintf(&buf, "Stage:    %s\n", job.Stage)
	if job.Stage == models.StagePaused {
		fmt.Fprintf(&buf, "Paused:   %s (during %s)\n", job.PauseReason, job.PausedFromStage)
	}
	if job.Stage.Processing() || job.Stage == models.StagePaused {
		fmt.Fprintf(&buf, "Progress: %s\n", Progress(job.CurrentStageProgress, job.CurrentStageTotal))
	}
	fmt.Fprintf(&buf, "Quota:    %d of %d units used\n", job.QuotaUsedThisSync, job.Preview.TotalQuotaCost)
	fmt.Fprintf(&buf, "Started:  %s\n", job.StartedAt.Local().Format(time.DateTime))
	if job.CompletedAt != nil {
		fmt.Fprintf(&buf, "Finished: %s\n", job.CompletedAt.Local().Format(time.DateTime))
	}

	buf.WriteString("\n")
	for _, stage := range []models.Stage{models.StageCreatePlaylists, models.StageAddVideos, models.StageDeletePlaylists} {
		c := job.StageResults.For(stage)
		fmt.Fprintf(&buf, "  %-18s ✓ %-5d ✗ %-5d - %d\n", stage, c.Succeeded, c.Failed, c.Skipped)
	}

	if n := len(job.Errors); n > 0 {
		fmt.Fprintf(&buf, "\nErrors: %d (%d unreviewed)\n", n, job.UnreviewedErrors())
		start := max(n-5, 0)
		for _, e := range job.Errors[start:] {
			fmt.Fprintf(&buf, "  [%s] %s %s: %s\n", e.Stage, e.EntityType, e.EntityID, e.Message)
		}
		if start > 0 {
			fmt.Fprintf(&buf, "  ... %d earlier\n", start)
		}
	}

	return buf.Bytes()
}

// QuotaToText renders today's quota usage.
func QuotaToText(s quota.Status) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Used:      %d\n", s.Used)
	fmt.Fprintf(&buf, "Remaining: %d of %d\n", s.Remaining, s.Limit)
	fmt.Fprintf(&buf, "Resets:    %s\n", s.ResetsAt.Local().Format(time.DateTime))
	return buf.Bytes()
}

// Progress formats step/total with a percentage, e.g. "12/40 (30%)".
func Progress(step, total int) string {
	if total <= 0 {
		return fmt.Sprintf("%d/%d", step, total)
	}
	return fmt.Sprintf("%d/%d (%d%%)", step, total, step*100/total)
}

func days(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}

package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/ytsort/internal/formatter"
	"github.com/desertthunder/ytsort/internal/models"
	"github.com/desertthunder/ytsort/internal/tasks"
	"github.com/desertthunder/ytsort/internal/web"
)

const maxLogLines = 6

// SyncActions is the subset of [web.Actions] the dashboard drives.
type SyncActions interface {
	GetSyncProgress(ctx context.Context) web.Result
	RunSyncBatch(ctx context.Context, maxOperations int) web.Result
	PauseSync(ctx context.Context) web.Result
	ResumeSync(ctx context.Context) web.Result
}

// Opts configures the dashboard.
type Opts struct {
	Actions   SyncActions
	Updates   <-chan tasks.ProgressUpdate // optional engine progress feed
	Interval  time.Duration               // delay between batches
	BatchSize int                         // max operations per batch, 0 uses the engine default
}

// Model represents the dashboard state.
type Model struct {
	ctx       context.Context
	actions   SyncActions
	updates   <-chan tasks.ProgressUpdate
	interval  time.Duration
	batchSize int

	job      *models.SyncJob
	running  bool
	inflight bool
	notice   string
	lines    []string
	err      error

	showErrors bool
	errorList  list.Model
	spinner    spinner.Model
	bar        progress.Model
	help       help.Model
	keys       keyMap
	width      int
	height     int
}

// NewModel creates a dashboard bound to ctx; cancelling ctx aborts any in-flight batch.
func NewModel(ctx context.Context, opts Opts) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.warn

	errs := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	errs.Title = "Sync errors"
	errs.SetShowHelp(false)

	return &Model{
		ctx:       ctx,
		actions:   opts.Actions,
		updates:   opts.Updates,
		interval:  opts.Interval,
		batchSize: opts.BatchSize,
		errorList: errs,
		spinner:   s,
		bar:       progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		help:      help.New(),
		keys:      newKeyMap(),
	}
}

// Job returns the last job state the dashboard saw.
func (m *Model) Job() *models.SyncJob { return m.job }

// Init loads the current job and starts listening for engine updates.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadJob(), m.waitForProgress())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = min(max(msg.Width-12, 10), 60)
		m.errorList.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	if m.showErrors {
		var cmd tea.Cmd
		m.errorList, cmd = m.errorList.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgJobLoaded:
		result := msg.data.(web.Result)
		if !result.Success {
			m.err = fmt.Errorf("%s", result.Error)
			return m, nil
		}
		m.setJob(result.Job)
		if m.job == nil {
			m.notice = "No sync job. Run `ytsort sync start` first."
			return m, nil
		}
		if m.job.Stage.Processing() {
			m.running = true
			return m, m.runBatch()
		}
		return m, nil

	case MsgBatchDone:
		m.inflight = false
		result := msg.data.(web.Result)
		if !m.running {
			// a pause or resume landed while this batch was in flight
			return m, nil
		}
		if result.Job != nil {
			m.setJob(result.Job)
		}
		if !result.Success {
			m.notice = result.Error
			m.running = false
			return m, nil
		}
		if m.job == nil || !m.job.Stage.Processing() {
			m.running = false
			return m, nil
		}
		return m, m.scheduleBatch()

	case MsgNextBatch:
		if m.running && !m.inflight {
			return m, m.runBatch()
		}
		return m, nil

	case MsgControlDone:
		result := msg.data.(web.Result)
		if !result.Success {
			m.notice = result.Error
			return m, nil
		}
		m.notice = ""
		m.setJob(result.Job)
		if m.job != nil && m.job.Stage.Processing() {
			m.running = true
			if !m.inflight {
				return m, m.runBatch()
			}
		}
		return m, nil

	case MsgProgressUpdate:
		update := msg.data.(tasks.ProgressUpdate)
		m.log(fmt.Sprintf("[%s] %s", update.Phase, update.Message))
		return m, m.waitForProgress()
	}
	return m, nil
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.errors):
		m.showErrors = !m.showErrors
		return m, nil
	case key.Matches(msg, m.keys.pause):
		if m.job == nil || !m.job.Stage.Processing() {
			return m, nil
		}
		m.running = false
		return m, m.control(m.actions.PauseSync)
	case key.Matches(msg, m.keys.resume):
		if m.job == nil || m.job.Stage != models.StagePaused {
			return m, nil
		}
		return m, m.control(m.actions.ResumeSync)
	}

	if m.showErrors {
		var cmd tea.Cmd
		m.errorList, cmd = m.errorList.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) setJob(job *models.SyncJob) {
	m.job = job
	if job != nil {
		m.errorList.SetItems(errorItems(job.Errors))
	}
}

func (m *Model) log(line string) {
	m.lines = append(m.lines, line)
	if len(m.lines) > maxLogLines {
		m.lines = m.lines[len(m.lines)-maxLogLines:]
	}
}

func (m *Model) loadJob() tea.Cmd {
	return func() tea.Msg {
		return jobLoadedMsg(m.actions.GetSyncProgress(m.ctx))
	}
}

func (m *Model) runBatch() tea.Cmd {
	m.inflight = true
	size := m.batchSize
	return func() tea.Msg {
		return batchDoneMsg(m.actions.RunSyncBatch(m.ctx, size))
	}
}

func (m *Model) scheduleBatch() tea.Cmd {
	if m.interval <= 0 {
		return func() tea.Msg { return nextBatchMsg() }
	}
	return tea.Tick(m.interval, func(time.Time) tea.Msg { return nextBatchMsg() })
}

func (m *Model) control(fn func(context.Context) web.Result) tea.Cmd {
	return func() tea.Msg {
		return controlDoneMsg(fn(m.ctx))
	}
}

func (m *Model) waitForProgress() tea.Cmd {
	if m.updates == nil {
		return nil
	}
	return func() tea.Msg {
		update, ok := <-m.updates
		if !ok {
			return nil
		}
		return progressUpdateMsg(update)
	}
}

// View renders the dashboard.
func (m *Model) View() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}
	if m.showErrors {
		return fmt.Sprintf("%s\n\n%s", m.errorList.View(), m.help.ShortHelpView(m.keys.ShortHelp()))
	}

	var b strings.Builder
	b.WriteString(styles.title.Render("ytsort sync"))
	b.WriteString("\n")

	if m.job == nil {
		if m.notice != "" {
			b.WriteString(m.notice)
		} else {
			b.WriteString(m.spinner.View() + " Loading job...")
		}
		b.WriteString("\n\n" + m.help.ShortHelpView([]key.Binding{m.keys.quit}))
		return b.String()
	}

	b.WriteString(m.renderStatus())
	b.WriteString("\n\n")
	b.WriteString(m.bar.ViewAs(m.percent()))
	fmt.Fprintf(&b, "  %s\n\n", formatter.Progress(m.job.CurrentStageProgress, m.job.CurrentStageTotal))
	b.WriteString(m.renderCounts())

	if len(m.lines) > 0 {
		b.WriteString("\n")
		b.WriteString(styles.box.Render(strings.Join(m.lines, "\n")))
		b.WriteString("\n")
	}
	if m.notice != "" {
		b.WriteString("\n" + styles.warn.Render(m.notice) + "\n")
	}

	b.WriteString("\n" + m.help.ShortHelpView(m.keys.ShortHelp()))
	return b.String()
}

func (m *Model) renderStatus() string {
	job := m.job
	stage := styles.stage(job.Stage).Render(string(job.Stage))
	switch {
	case job.Stage == models.StagePaused:
		return fmt.Sprintf("Stage: %s (%s during %s)", stage, job.PauseReason, job.PausedFromStage)
	case m.running:
		return fmt.Sprintf("%s Stage: %s", m.spinner.View(), stage)
	default:
		return "Stage: " + stage
	}
}

func (m *Model) renderCounts() string {
	r := m.job.StageResults
	rows := []struct {
		label  string
		counts models.StageCounts
	}{
		{"Create playlists", r.CreatePlaylists},
		{"Add videos", r.AddVideos},
		{"Delete playlists", r.DeletePlaylists},
	}

	var b strings.Builder
	for _, row := range rows {
		fmt.Fprintf(&b, "%-17s %s %s %s\n", row.label,
			styles.ok.Render(fmt.Sprintf("✓ %d", row.counts.Succeeded)),
			styles.err.Render(fmt.Sprintf("✗ %d", row.counts.Failed)),
			styles.help.Render(fmt.Sprintf("- %d", row.counts.Skipped)),
		)
	}
	fmt.Fprintf(&b, "Quota used: %d units", m.job.QuotaUsedThisSync)
	if n := m.job.UnreviewedErrors(); n > 0 {
		b.WriteString("  " + styles.err.Render(fmt.Sprintf("%d unreviewed error(s)", n)))
	}
	b.WriteString("\n")
	return b.String()
}

func (m *Model) percent() float64 {
	if m.job == nil {
		return 0
	}
	if m.job.Stage == models.StageCompleted {
		return 1
	}
	if m.job.CurrentStageTotal <= 0 {
		return 0
	}
	return min(float64(m.job.CurrentStageProgress)/float64(m.job.CurrentStageTotal), 1)
}

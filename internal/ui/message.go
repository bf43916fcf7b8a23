package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/ytsort/internal/tasks"
	"github.com/desertthunder/ytsort/internal/web"
)

// MsgKind enumerates all message types in the dashboard.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgJobLoaded MsgKind = iota
	MsgBatchDone
	MsgControlDone
	MsgProgressUpdate
	MsgNextBatch
)

// jobLoadedMsg is the constructor for [MsgJobLoaded]
func jobLoadedMsg(result web.Result) Msg {
	return Msg{kind: MsgJobLoaded, data: result}
}

// batchDoneMsg is the constructor for [MsgBatchDone]
func batchDoneMsg(result web.Result) Msg {
	return Msg{kind: MsgBatchDone, data: result}
}

// controlDoneMsg is the constructor for [MsgControlDone], sent after a pause or resume.
func controlDoneMsg(result web.Result) Msg {
	return Msg{kind: MsgControlDone, data: result}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

func nextBatchMsg() Msg {
	return Msg{kind: MsgNextBatch}
}

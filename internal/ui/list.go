package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/ytsort/internal/models"
)

var _ list.Item = errorItem{}

// errorItem wraps [models.SyncError] to implement [list.Item].
type errorItem struct {
	err models.SyncError
}

func (i errorItem) FilterValue() string { return i.err.EntityID }
func (i errorItem) Title() string       { return fmt.Sprintf("%s %s", i.err.EntityType, i.err.EntityID) }
func (i errorItem) Description() string {
	return fmt.Sprintf("%s • %s • %s", i.err.Stage, i.err.Timestamp.Local().Format(time.TimeOnly), i.err.Message)
}

func errorItems(errs []models.SyncError) []list.Item {
	items := make([]list.Item, len(errs))
	for i, e := range errs {
		items[len(errs)-1-i] = errorItem{err: e}
	}
	return items
}

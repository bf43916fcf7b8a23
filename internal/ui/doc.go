// Package ui implements the sync dashboard using bubbletea's Elm architecture.
//
// The dashboard loads the active job, then keeps calling RunSyncBatch as a [tea.Cmd]
// (spaced by the configured poll interval) until the job completes, fails or pauses.
// Engine [tasks.ProgressUpdate] values arrive on a channel and feed the activity log.
//
// Keys: p pauses, r resumes and restarts the batch loop, e toggles the error list, q quits.
// Quitting leaves the job where it is; the next `sync run` or `sync watch` picks it up.
package ui

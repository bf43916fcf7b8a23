// Package tasks runs the resumable sync that pushes the local category library to YouTube.
//
// # Preview
//
// [Calculator.ComputePreview] reads the library and reports the three remote stages a sync would run,
// with counts and unit costs:
//
//  1. create_playlists : one private playlist per non-protected category that has none
//  2. add_videos       : one playlistItems.insert per category membership
//  3. delete_playlists : one delete per imported playlist not yet retired
//
// A job freezes a copy of the preview when it is created and never recomputes it.
//
// # Engine
//
// [Engine] owns job state. A job moves forward through
//
//	pending → backup → create_playlists → add_videos → delete_playlists → completed
//
// and may branch into paused (resumable) or failed (terminal) from any processing stage.
// [Engine.ProcessBatch] performs at most N remote writes per call and persists the job after each one,
// so a crash loses at most the write in flight. Entering add_videos materializes one
// operation row per membership; later batches pick up pending rows in order.
//
// Jobs pause when today's quota drops below the pause threshold, when the remote reports the quota
// exhausted, when too many errors are unreviewed, or on request. [Engine.ResumeJob] returns to the
// stage the job paused in.
//
// # Progress Reporting
//
// Engines report [ProgressUpdate] values on an optional channel. Sends use select with default
// so a slow consumer never blocks a batch.
package tasks

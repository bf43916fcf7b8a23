// Package web exposes the sync actions as JSON endpoints.
//
// # Actions
//
// [Actions] is the single entry point for every caller: the CLI, the HTTP API and the TUI dashboard.
// Each action resolves the access token, checks its precondition against the active job and
// returns a [Result]; none of them return an error.
//
// # Routes
//
//	GET  /api/sync/preview   → GetSyncPreview
//	GET  /api/sync/progress  → GetSyncProgress
//	POST /api/sync/start     → StartSync
//	POST /api/sync/pause     → PauseSync
//	POST /api/sync/resume    → ResumeSync
//	POST /api/sync/batch     → RunSyncBatch (?max=N)
//	GET  /api/quota          → GetQuotaStatus
//	GET  /health             → liveness
//
// Clients drive a sync by calling /api/sync/batch repeatedly and polling /api/sync/progress
// until the job is completed, failed or paused.
package web

import (
	"net/http"
	"strconv"

	"github.com/desertthunder/ytsort/internal/server"
)

// API serves [Actions] over HTTP.
type API struct {
	actions *Actions
}

func NewAPI(actions *Actions) *API {
	return &API{actions: actions}
}

// Register mounts every endpoint on router.
func (a *API) Register(router server.Router) {
	router.Handle(http.MethodGet, "/health", http.HandlerFunc(a.health))
	router.Handle(http.MethodGet, "/api/sync/preview", http.HandlerFunc(a.preview))
	router.Handle(http.MethodGet, "/api/sync/progress", http.HandlerFunc(a.progress))
	router.Handle(http.MethodPost, "/api/sync/start", http.HandlerFunc(a.start))
	router.Handle(http.MethodPost, "/api/sync/pause", http.HandlerFunc(a.pause))
	router.Handle(http.MethodPost, "/api/sync/resume", http.HandlerFunc(a.resume))
	router.Handle(http.MethodPost, "/api/sync/batch", http.HandlerFunc(a.batch))
	router.Handle(http.MethodGet, "/api/quota", http.HandlerFunc(a.quota))
}

func respond(w http.ResponseWriter, result Result) {
	server.WriteJSON(w, result.StatusCode(), result)
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	server.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) preview(w http.ResponseWriter, r *http.Request) {
	respond(w, a.actions.GetSyncPreview(r.Context()))
}

func (a *API) progress(w http.ResponseWriter, r *http.Request) {
	respond(w, a.actions.GetSyncProgress(r.Context()))
}

func (a *API) start(w http.ResponseWriter, r *http.Request) {
	respond(w, a.actions.StartSync(r.Context()))
}

func (a *API) pause(w http.ResponseWriter, r *http.Request) {
	respond(w, a.actions.PauseSync(r.Context()))
}

func (a *API) resume(w http.ResponseWriter, r *http.Request) {
	respond(w, a.actions.ResumeSync(r.Context()))
}

func (a *API) batch(w http.ResponseWriter, r *http.Request) {
	maxOps := 0
	if raw := r.URL.Query().Get("max"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			server.WriteError(w, http.StatusBadRequest, "max must be a positive integer")
			return
		}
		maxOps = n
	}
	respond(w, a.actions.RunSyncBatch(r.Context(), maxOps))
}

func (a *API) quota(w http.ResponseWriter, r *http.Request) {
	respond(w, a.actions.GetQuotaStatus(r.Context()))
}

package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytsort/internal/server"
)

func newTestServer(t *testing.T, h *harness, apiToken string) *httptest.Server {
	t.Helper()

	router := server.NewBasicRouter()
	router.Use(server.Recover(log.New(io.Discard)), server.BearerAuth(apiToken))
	NewAPI(h.actions).Register(router)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, token string) (int, map[string]any) {
	t.Helper()

	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("expected JSON response, got %q", ct)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	return resp.StatusCode, body
}

// object returns body[key] as a JSON object, failing the test when it is absent or another type.
func object(t *testing.T, body map[string]any, key string) map[string]any {
	t.Helper()
	v, ok := body[key].(map[string]any)
	if !ok {
		t.Fatalf("expected %q to be an object, got %T in %v", key, body[key], body)
	}
	return v
}

func TestAPI(t *testing.T) {
	h := newHarness(t, staticToken("youtube-token"))
	h.seed(t)
	srv := newTestServer(t, h, "api-secret")

	t.Run("health", func(t *testing.T) {
		code, body := doJSON(t, http.MethodGet, srv.URL+"/health", "api-secret")
		if code != http.StatusOK || body["status"] != "ok" {
			t.Errorf("unexpected health %d %v", code, body)
		}
	})

	t.Run("api token required", func(t *testing.T) {
		code, body := doJSON(t, http.MethodGet, srv.URL+"/api/sync/progress", "")
		if code != http.StatusUnauthorized || body["success"] != false {
			t.Errorf("expected 401, got %d %v", code, body)
		}
	})

	t.Run("preview", func(t *testing.T) {
		code, body := doJSON(t, http.MethodGet, srv.URL+"/api/sync/preview", "api-secret")
		if code != http.StatusOK || body["success"] != true {
			t.Fatalf("unexpected preview %d %v", code, body)
		}
		preview := object(t, body, "preview")
		if preview["totalQuotaCost"] != float64(150) {
			t.Errorf("expected totalQuotaCost 150, got %v", preview["totalQuotaCost"])
		}
	})

	t.Run("start, batch and progress", func(t *testing.T) {
		code, body := doJSON(t, http.MethodPost, srv.URL+"/api/sync/start", "api-secret")
		if code != http.StatusOK {
			t.Fatalf("unexpected start %d %v", code, body)
		}
		job := object(t, body, "job")
		if job["stage"] != "pending" || job["pauseReason"] != nil {
			t.Errorf("unexpected job %v", job)
		}

		code, body = doJSON(t, http.MethodPost, srv.URL+"/api/sync/start", "api-secret")
		if code != http.StatusConflict || body["error"] != MsgSyncInProgress {
			t.Errorf("expected conflict, got %d %v", code, body)
		}

		code, body = doJSON(t, http.MethodPost, srv.URL+"/api/sync/batch?max=zero", "api-secret")
		if code != http.StatusBadRequest {
			t.Errorf("expected 400 for bad max, got %d %v", code, body)
		}

		code, body = doJSON(t, http.MethodPost, srv.URL+"/api/sync/batch?max=1", "api-secret")
		if code != http.StatusOK {
			t.Fatalf("unexpected batch %d %v", code, body)
		}
		job = object(t, body, "job")
		if job["stage"] != "add_videos" || job["currentStageProgress"] != float64(1) {
			t.Errorf("unexpected job after batch %v", job)
		}

		code, body = doJSON(t, http.MethodGet, srv.URL+"/api/sync/progress", "api-secret")
		if code != http.StatusOK || object(t, body, "job")["id"] != job["id"] {
			t.Errorf("unexpected progress %d %v", code, body)
		}
	})

	t.Run("pause and resume", func(t *testing.T) {
		code, body := doJSON(t, http.MethodPost, srv.URL+"/api/sync/pause", "api-secret")
		if code != http.StatusOK || object(t, body, "job")["pauseReason"] != "user_paused" {
			t.Fatalf("unexpected pause %d %v", code, body)
		}

		code, body = doJSON(t, http.MethodPost, srv.URL+"/api/sync/batch", "api-secret")
		if code != http.StatusConflict || body["error"] != MsgNoActiveJob {
			t.Errorf("expected paused batch to conflict, got %d %v", code, body)
		}

		code, body = doJSON(t, http.MethodPost, srv.URL+"/api/sync/resume", "api-secret")
		if code != http.StatusOK || object(t, body, "job")["stage"] != "add_videos" {
			t.Errorf("unexpected resume %d %v", code, body)
		}
	})

	t.Run("quota", func(t *testing.T) {
		code, body := doJSON(t, http.MethodGet, srv.URL+"/api/quota", "api-secret")
		if code != http.StatusOK {
			t.Fatalf("unexpected quota %d %v", code, body)
		}
		if object(t, body, "quota")["limit"] != float64(10000) {
			t.Errorf("unexpected quota body %v", body)
		}
	})

	t.Run("wrong method", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/sync/start")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", resp.StatusCode)
		}
	})
}

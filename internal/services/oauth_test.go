package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/desertthunder/ytsort/internal/shared"
	"golang.org/x/oauth2"
)

func TestStoredToken(t *testing.T) {
	ctx := context.Background()

	t.Run("missing file", func(t *testing.T) {
		store := NewStoredToken(nil, filepath.Join(t.TempDir(), "token.json"))
		if _, err := store.AccessToken(ctx); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Fatalf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("valid token is returned as saved", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "token.json")
		if err := shared.SaveToken(path, &oauth2.Token{AccessToken: "live", Expiry: time.Now().Add(time.Hour)}); err != nil {
			t.Fatalf("SaveToken() error = %v", err)
		}

		got, err := NewStoredToken(nil, path).AccessToken(ctx)
		if err != nil || got != "live" {
			t.Fatalf("expected live token, got %q, %v", got, err)
		}
	})

	t.Run("expired without refresh token", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "token.json")
		if err := shared.SaveToken(path, &oauth2.Token{AccessToken: "old", Expiry: time.Now().Add(-time.Hour)}); err != nil {
			t.Fatalf("SaveToken() error = %v", err)
		}

		if _, err := NewStoredToken(&oauth2.Config{}, path).AccessToken(ctx); !errors.Is(err, shared.ErrTokenExpired) {
			t.Fatalf("expected ErrTokenExpired, got %v", err)
		}
	})

	t.Run("expired token is refreshed and saved", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := r.ParseForm(); err != nil || r.Form.Get("refresh_token") != "refresh-me" {
				t.Errorf("unexpected refresh request: %v %v", r.Form, err)
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"access_token":"fresh","token_type":"Bearer","expires_in":3600}`))
		}))
		t.Cleanup(server.Close)

		path := filepath.Join(t.TempDir(), "token.json")
		expired := &oauth2.Token{AccessToken: "old", RefreshToken: "refresh-me", Expiry: time.Now().Add(-time.Hour)}
		if err := shared.SaveToken(path, expired); err != nil {
			t.Fatalf("SaveToken() error = %v", err)
		}

		config := &oauth2.Config{ClientID: "id", ClientSecret: "secret", Endpoint: oauth2.Endpoint{TokenURL: server.URL}}
		got, err := NewStoredToken(config, path).AccessToken(ctx)
		if err != nil || got != "fresh" {
			t.Fatalf("expected fresh token, got %q, %v", got, err)
		}

		saved, err := shared.LoadToken(path)
		if err != nil {
			t.Fatalf("LoadToken() error = %v", err)
		}
		if saved.AccessToken != "fresh" || saved.RefreshToken != "refresh-me" {
			t.Errorf("expected refreshed token to be saved with its refresh token, got %+v", saved)
		}
	})
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/desertthunder/ytsort/internal/server"
	"github.com/desertthunder/ytsort/internal/services"
	"github.com/desertthunder/ytsort/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const authTimeout = 2 * time.Minute

// tokenState is the JSON shape of `auth status --json`.
type tokenState struct {
	Authenticated bool      `json:"authenticated"`
	Valid         bool      `json:"valid"`
	Refreshable   bool      `json:"refreshable"`
	Expiry        time.Time `json:"expiry,omitzero"`
	Path          string    `json:"path"`
}

// AuthLogin runs the Google authorization-code flow and stores the resulting token.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	oauthConfig, err := services.NewOAuthConfig(r.config.Credentials.YouTube)
	if err != nil {
		return err
	}

	token, err := r.doOAuth(ctx, oauthConfig, !cmd.Bool("no-browser"))
	if err != nil {
		return err
	}

	path := r.config.Credentials.YouTube.TokenPath
	if err := shared.SaveToken(path, token); err != nil {
		return err
	}

	r.logger.Info("token saved", "path", path)
	return r.writePlain("✓ Authenticated with YouTube\nToken saved to: %s\n", path)
}

// AuthStatus reports whether a usable token is stored.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	path := r.config.Credentials.YouTube.TokenPath
	state := tokenState{Path: path}

	token, err := shared.LoadToken(path)
	switch {
	case errors.Is(err, shared.ErrNotAuthenticated):
	case err != nil:
		return err
	default:
		state.Authenticated = true
		state.Valid = token.Valid()
		state.Refreshable = token.RefreshToken != ""
		state.Expiry = token.Expiry
	}

	if cmd.Bool("json") {
		return r.writeJSON(state, true)
	}

	if !state.Authenticated {
		return r.writePlain("Authentication: ✗ Not authenticated\nRun 'ytsort auth login'\n")
	}

	r.writePlain("Authentication: ✓ Authenticated\n")
	if state.Valid {
		r.writePlain("Access token:   valid until %s\n", state.Expiry.Local().Format(time.DateTime))
	} else {
		r.writePlain("Access token:   expired\n")
	}
	if state.Refreshable {
		r.writePlain("Refresh token:  present\n")
	} else {
		r.writePlain("Refresh token:  missing, run 'ytsort auth login' once the access token expires\n")
	}
	return nil
}

// AuthLogout deletes the stored token.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if err := shared.RemoveToken(r.config.Credentials.YouTube.TokenPath); err != nil {
		return err
	}
	return r.writePlain("✓ Logged out\n")
}

// callbackAddr is the host:port the redirect URL points at.
func callbackAddr(redirectURL string) (string, error) {
	u, err := url.Parse(redirectURL)
	if err != nil {
		return "", fmt.Errorf("%w: redirect_uri: %v", shared.ErrInvalidConfig, err)
	}
	if u.Port() == "" {
		return "", fmt.Errorf("%w: redirect_uri %q must include a port", shared.ErrInvalidConfig, redirectURL)
	}
	return net.JoinHostPort(u.Hostname(), u.Port()), nil
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server
func (r *Runner) doOAuth(ctx context.Context, oauthConfig *oauth2.Config, openBrowser bool) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	serverAddr, err := callbackAddr(oauthConfig.RedirectURL)
	if err != nil {
		return nil, err
	}

	verifier := oauth2.GenerateVerifier()
	authURL := services.AuthCodeURL(oauthConfig, state, verifier)
	oauthHandler := server.NewOAuthHandler(oauthConfig, state, verifier)
	router := server.NewBasicRouter()
	router.Use(server.Recover(r.logger))
	router.Handler(oauthHandler)

	httpServer := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth callback server at %v", serverAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	if openBrowser {
		r.writePlain("→ Opening browser for Google sign-in...\n")
		if err := shared.OpenBrowser(authURL); err != nil {
			r.logger.Warnf("failed to open browser automatically %v", err)
			r.writePlainln("⚠ Could not open browser automatically.")
			openBrowser = false
		}
	}
	if !openBrowser {
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(authTimeout)
	defer timeout.Stop()

	var result server.OAuthResult

	select {
	case result = <-oauthHandler.Result():
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}

	if result.Token == nil {
		return nil, fmt.Errorf("no token received")
	}

	return result.Token, nil
}

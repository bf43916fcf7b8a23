package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/ytsort/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/youtube/v3"
)

// NewOAuthConfig builds the Google authorization-code config used by auth login and token refresh.
func NewOAuthConfig(cfg shared.YouTubeConfig) (*oauth2.Config, error) {
	if !cfg.Configured() {
		return nil, fmt.Errorf("%w: credentials.youtube client_id and client_secret are required", shared.ErrMissingCredentials)
	}

	redirectURI := cfg.RedirectURI
	if redirectURI == "" {
		redirectURI = "http://127.0.0.1:3000/callback"
	}

	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       []string{youtube.YoutubeScope},
		Endpoint:     google.Endpoint,
	}, nil
}

// AuthCodeURL returns the consent URL, requesting offline access so a refresh token is issued.
// A non-empty verifier adds the PKCE S256 challenge; the callback must exchange with the same verifier.
func AuthCodeURL(config *oauth2.Config, state, verifier string) string {
	opts := []oauth2.AuthCodeOption{oauth2.AccessTypeOffline, oauth2.ApprovalForce}
	if verifier != "" {
		opts = append(opts, oauth2.S256ChallengeOption(verifier))
	}
	return config.AuthCodeURL(state, opts...)
}

// StoredToken serves access tokens from the token file written by auth login, refreshing
// expired tokens and saving the result back.
type StoredToken struct {
	mu     sync.Mutex
	config *oauth2.Config
	path   string
}

// NewStoredToken creates a StoredToken. A nil config disables refresh.
func NewStoredToken(config *oauth2.Config, path string) *StoredToken {
	return &StoredToken{config: config, path: path}
}

// Token returns the current token, refreshed when expired.
func (s *StoredToken) Token(ctx context.Context) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved, err := shared.LoadToken(s.path)
	if err != nil {
		return nil, err
	}
	if saved.Valid() {
		return saved, nil
	}
	if s.config == nil || saved.RefreshToken == "" {
		return nil, shared.ErrTokenExpired
	}

	fresh, err := s.config.TokenSource(ctx, saved).Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrTokenExpired, err)
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = saved.RefreshToken
	}
	if err := shared.SaveToken(s.path, fresh); err != nil {
		return nil, err
	}
	return fresh, nil
}

// AccessToken returns the bearer value of [StoredToken.Token].
func (s *StoredToken) AccessToken(ctx context.Context) (string, error) {
	token, err := s.Token(ctx)
	if err != nil {
		return "", err
	}
	return token.AccessToken, nil
}

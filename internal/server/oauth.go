package server

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"sync"

	"golang.org/x/oauth2"
)

var (
	errCallbackReplayed = errors.New("callback already processed")
	errStateMismatch    = errors.New("invalid state parameter")
)

var callbackPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>{{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: {{.Color}}; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>{{.Title}}</h1>
        <p>{{.Message}}</p>
    </div>
</body>
</html>
`))

type callbackView struct {
	Title   string
	Color   template.CSS
	Message string
}

// OAuthResult contains the result of an OAuth authorization flow.
type OAuthResult struct {
	Token *oauth2.Token
	err   error
}

func (o *OAuthResult) Error() error {
	return o.err
}

// OAuthHandler receives the Google authorization-code callback for auth login.
// It serves a single callback and reports the exchanged token on [OAuthHandler.Result].
type OAuthHandler struct {
	config   *oauth2.Config
	state    string
	verifier string
	path     string
	results  chan OAuthResult
	once     sync.Once

	mu  sync.Mutex
	hit bool
}

// NewOAuthHandler creates an OAuthHandler that only accepts callbacks carrying state.
// verifier is the PKCE code verifier sent with the exchange; leave it empty when the consent URL had no challenge.
func NewOAuthHandler(config *oauth2.Config, state, verifier string) *OAuthHandler {
	path := "/callback"
	if u, err := url.Parse(config.RedirectURL); err == nil && u.Path != "" && u.Path != "/" {
		path = u.Path
	}

	return &OAuthHandler{
		config:   config,
		state:    state,
		verifier: verifier,
		path:     path,
		results:  make(chan OAuthResult, 1),
	}
}

// Routes returns the path of the configured redirect URL, "/callback" by default.
func (h *OAuthHandler) Routes() []string {
	return []string{h.path}
}

// ServeHTTP validates the callback, exchanges the code and publishes the outcome.
// Only the first request is processed; later ones get a 400.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	replayed := h.hit
	h.hit = true
	h.mu.Unlock()
	if replayed {
		http.Error(w, errCallbackReplayed.Error(), http.StatusBadRequest)
		return
	}

	query := r.URL.Query()
	if subtle.ConstantTimeCompare([]byte(query.Get("state")), []byte(h.state)) != 1 {
		h.fail(w, http.StatusBadRequest, errStateMismatch)
		return
	}

	code := query.Get("code")
	if code == "" {
		h.fail(w, http.StatusBadRequest, fmt.Errorf("authorization failed: %s - %s", query.Get("error"), query.Get("error_description")))
		return
	}

	var opts []oauth2.AuthCodeOption
	if h.verifier != "" {
		opts = append(opts, oauth2.VerifierOption(h.verifier))
	}
	token, err := h.config.Exchange(r.Context(), code, opts...)
	if err != nil {
		h.fail(w, http.StatusInternalServerError, fmt.Errorf("token exchange failed: %w", err))
		return
	}

	h.Send(OAuthResult{Token: token})
	render(w, http.StatusOK, callbackView{
		Title:   "✓ Authorization Successful",
		Color:   "#FF0000",
		Message: "ytsort can now manage your YouTube playlists. You can close this window and return to the terminal.",
	})
}

func (h *OAuthHandler) fail(w http.ResponseWriter, status int, err error) {
	h.Send(OAuthResult{err: err})
	render(w, status, callbackView{
		Title:   "✗ Authorization Failed",
		Color:   "#626262",
		Message: err.Error() + ". Return to the terminal and run 'ytsort auth login' again.",
	})
}

func render(w http.ResponseWriter, status int, view callbackView) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	callbackPage.Execute(w, view)
}

// Send publishes result once and closes the channel.
func (h *OAuthHandler) Send(result OAuthResult) {
	h.once.Do(func() {
		h.results <- result
		close(h.results)
	})
}

// Result receives exactly one result, then is closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.results
}

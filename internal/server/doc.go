// Package server provides HTTP routing, middleware, and the OAuth callback used by the CLI and the JSON API.
//
// # Router Infrastructure
//
// [BasicRouter] implements [Router] over [http.ServeMux] with per-route method filtering.
// [Middleware] is applied in reverse order (last added wraps first).
//
// The bundled middleware covers request logging ([Logging]), a static bearer token check
// ([BearerAuth], configured by [server] api_token) and panic recovery ([Recover]).
// [WriteJSON] and [WriteError] are shared by all JSON handlers.
//
// # OAuth Callback Handler
//
// [OAuthHandler] completes the Google authorization-code flow started by `ytsort auth login`.
// It validates the state parameter, exchanges the code for a token and delivers the result
// on a channel. Only the first callback is processed.
//
// # Serving
//
// [Serve] runs a handler until its context is cancelled and then shuts the server down within five seconds.
package server

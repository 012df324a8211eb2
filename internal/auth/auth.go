package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

const callbackTimeout = 2 * time.Minute

var (
	// ErrMissingCredentials is returned when the client ID or secret is empty.
	ErrMissingCredentials = errors.New("missing Spotify client ID or secret")

	// ErrAuthTimeout is returned when the OAuth callback is not received in time.
	ErrAuthTimeout = errors.New("authentication timed out waiting for callback")

	// ErrStateMismatch is returned when the OAuth state parameter doesn't match.
	ErrStateMismatch = errors.New("OAuth state mismatch")
)

// Config holds the Spotify application credentials.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	CachePath    string // CLI token file; empty for the user config dir
}

// Authenticator handles Spotify OAuth2 authentication.
type Authenticator struct {
	auth        *spotifyauth.Authenticator
	redirectURL string
	cachePath   string
	cache       *TokenCache
	out         io.Writer
	timeout     time.Duration
}

// New creates an Authenticator requesting read access to the user's top items.
// Returns ErrMissingCredentials if the client ID or secret is empty.
func New(cfg Config) (*Authenticator, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrMissingCredentials
	}

	auth := spotifyauth.New(
		spotifyauth.WithClientID(cfg.ClientID),
		spotifyauth.WithClientSecret(cfg.ClientSecret),
		spotifyauth.WithRedirectURL(cfg.RedirectURL),
		spotifyauth.WithScopes(spotifyauth.ScopeUserTopRead),
	)

	return &Authenticator{
		auth:        auth,
		redirectURL: cfg.RedirectURL,
		cachePath:   cfg.CachePath,
		out:         os.Stdout,
		timeout:     callbackTimeout,
	}, nil
}

// AuthURL returns the Spotify consent page URL for state.
func (a *Authenticator) AuthURL(state string) string {
	return a.auth.AuthURL(state)
}

// Token exchanges the authorization code in the callback request for a token.
// The request's state parameter must equal state.
func (a *Authenticator) Token(ctx context.Context, state string, r *http.Request) (*oauth2.Token, error) {
	if r.URL.Query().Get("state") != state {
		return nil, ErrStateMismatch
	}
	token, err := a.auth.Token(ctx, state, r)
	if err != nil {
		return nil, fmt.Errorf("exchanging code for token: %w", err)
	}
	return token, nil
}

// HTTPClient returns a client that authorizes requests with token and
// refreshes it when it expires.
func (a *Authenticator) HTTPClient(ctx context.Context, token *oauth2.Token) *http.Client {
	return a.auth.Client(ctx, token)
}

// Authenticate returns a token for the terminal flow.
// It first checks for a cached token and uses it if valid or refreshable.
// Otherwise, it runs the full OAuth flow on a loopback callback server.
func (a *Authenticator) Authenticate(ctx context.Context) (*oauth2.Token, error) {
	cache, err := a.tokenCache()
	if err != nil {
		return nil, err
	}

	token, err := cache.Load()
	if err != nil {
		return nil, fmt.Errorf("loading cached token: %w", err)
	}

	if token != nil {
		if token.Valid() {
			return token, nil
		}
		if token.RefreshToken != "" {
			refreshed, err := a.auth.RefreshToken(ctx, token)
			if err == nil {
				_ = cache.Save(refreshed)
				return refreshed, nil
			}
		}
		fmt.Fprintln(a.out, "Cached token invalid, starting new authentication...")
	}

	token, err = a.runOAuthFlow(ctx)
	if err != nil {
		return nil, err
	}

	if err := cache.Save(token); err != nil {
		// Auth succeeded; the next run just asks again.
		fmt.Fprintf(a.out, "Warning: failed to cache token: %v\n", err)
	}
	return token, nil
}

// SaveToken replaces the cached token, for example after the API client
// refreshed it.
func (a *Authenticator) SaveToken(token *oauth2.Token) error {
	cache, err := a.tokenCache()
	if err != nil {
		return err
	}
	return cache.Save(token)
}

// Logout removes the cached token.
func (a *Authenticator) Logout() error {
	cache, err := a.tokenCache()
	if err != nil {
		return err
	}
	return cache.Delete()
}

func (a *Authenticator) tokenCache() (*TokenCache, error) {
	if a.cache != nil {
		return a.cache, nil
	}
	if a.cachePath != "" {
		a.cache = NewTokenCache(a.cachePath)
		return a.cache, nil
	}
	cache, err := DefaultTokenCache()
	if err != nil {
		return nil, fmt.Errorf("creating token cache: %w", err)
	}
	a.cache = cache
	return cache, nil
}

// runOAuthFlow performs the authorization code flow, serving the callback on
// the host and path of the redirect URL.
func (a *Authenticator) runOAuthFlow(ctx context.Context) (*oauth2.Token, error) {
	redirect, err := url.Parse(a.redirectURL)
	if err != nil || redirect.Host == "" {
		return nil, fmt.Errorf("invalid redirect URL %q", a.redirectURL)
	}

	ln, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return nil, fmt.Errorf("listening for callback: %w", err)
	}
	return a.serveCallback(ctx, ln, redirect.Path)
}

// serveCallback waits on ln for a single OAuth callback at path.
func (a *Authenticator) serveCallback(ctx context.Context, ln net.Listener, path string) (*oauth2.Token, error) {
	state, err := GenerateState()
	if err != nil {
		return nil, fmt.Errorf("generating state: %w", err)
	}

	tokenCh := make(chan *oauth2.Token, 1)
	errCh := make(chan error, 1)

	if path == "" {
		path = "/"
	}
	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		a.handleCallback(w, r, state, tokenCh, errCh)
	})

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sendErr(errCh, fmt.Errorf("callback server error: %w", err))
		}
	}()

	fmt.Fprintln(a.out, "\nTo authenticate, open this URL in your browser:")
	fmt.Fprintln(a.out, a.AuthURL(state))
	fmt.Fprintln(a.out, "\nWaiting for authentication...")

	shutdown := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}
	defer shutdown()

	timer := time.NewTimer(a.timeout)
	defer timer.Stop()

	select {
	case token := <-tokenCh:
		return token, nil
	case err := <-errCh:
		return nil, err
	case <-timer.C:
		return nil, ErrAuthTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// handleCallback processes the OAuth callback from Spotify.
func (a *Authenticator) handleCallback(w http.ResponseWriter, r *http.Request, expectedState string, tokenCh chan<- *oauth2.Token, errCh chan<- error) {
	if r.URL.Query().Get("state") != expectedState {
		http.Error(w, "State mismatch", http.StatusBadRequest)
		sendErr(errCh, ErrStateMismatch)
		return
	}

	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		http.Error(w, "Authentication failed: "+errMsg, http.StatusBadRequest)
		sendErr(errCh, fmt.Errorf("spotify auth error: %s", errMsg))
		return
	}

	token, err := a.auth.Token(r.Context(), expectedState, r)
	if err != nil {
		http.Error(w, "Failed to get token", http.StatusInternalServerError)
		sendErr(errCh, fmt.Errorf("exchanging code for token: %w", err))
		return
	}

	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head><title>Authentication Successful</title></head>
<body>
<h1>Authentication Successful!</h1>
<p>You can close this window and return to the terminal.</p>
</body>
</html>`)

	select {
	case tokenCh <- token:
	default:
	}
}

// sendErr reports err unless an error is already pending.
func sendErr(errCh chan<- error, err error) {
	select {
	case errCh <- err:
	default:
	}
}

// GenerateState creates a random state string for OAuth.
func GenerateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

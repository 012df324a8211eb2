package auth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestTokenCache_SaveAndLoad(t *testing.T) {
	tests := []struct {
		name  string
		token *oauth2.Token
	}{
		{
			name: "basic token",
			token: &oauth2.Token{
				AccessToken:  "test-access-token",
				TokenType:    "Bearer",
				RefreshToken: "test-refresh-token",
				Expiry:       time.Now().Add(time.Hour),
			},
		},
		{
			name: "token without refresh",
			token: &oauth2.Token{
				AccessToken: "access-only",
				TokenType:   "Bearer",
				Expiry:      time.Now().Add(30 * time.Minute),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "token.json")
			cache := NewTokenCache(path)

			// Save token
			if err := cache.Save(tt.token); err != nil {
				t.Fatalf("Save() error = %v", err)
			}

			// Load token
			loaded, err := cache.Load()
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}

			if loaded == nil {
				t.Fatal("Load() returned nil token")
			}

			if loaded.AccessToken != tt.token.AccessToken {
				t.Errorf("AccessToken = %q, want %q", loaded.AccessToken, tt.token.AccessToken)
			}

			if loaded.RefreshToken != tt.token.RefreshToken {
				t.Errorf("RefreshToken = %q, want %q", loaded.RefreshToken, tt.token.RefreshToken)
			}

			if loaded.TokenType != tt.token.TokenType {
				t.Errorf("TokenType = %q, want %q", loaded.TokenType, tt.token.TokenType)
			}
		})
	}
}

func TestTokenCache_LoadNonExistent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nonexistent", "token.json")
	cache := NewTokenCache(path)

	token, err := cache.Load()
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}

	if token != nil {
		t.Errorf("Load() = %v, want nil for non-existent file", token)
	}
}

func TestTokenCache_SaveCreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "deeply", "token.json")
	cache := NewTokenCache(path)

	token := &oauth2.Token{
		AccessToken: "test-token",
		TokenType:   "Bearer",
	}

	if err := cache.Save(token); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// Verify directory was created
	parentDir := filepath.Dir(path)
	if _, err := os.Stat(parentDir); os.IsNotExist(err) {
		t.Error("Save() did not create parent directory")
	}

	// Verify file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("Save() did not create token file")
	}
}

func TestTokenCache_SaveNilToken(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token.json")
	cache := NewTokenCache(path)

	err := cache.Save(nil)
	if err == nil {
		t.Error("Save(nil) should return error")
	}
}

func TestTokenCache_Delete(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token.json")
	cache := NewTokenCache(path)

	// Save a token first
	token := &oauth2.Token{
		AccessToken: "test-token",
		TokenType:   "Bearer",
	}
	if err := cache.Save(token); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// Delete it
	if err := cache.Delete(); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	// Verify file is gone
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Delete() did not remove token file")
	}
}

func TestTokenCache_DeleteNonExistent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nonexistent.json")
	cache := NewTokenCache(path)

	// Should not error when file doesn't exist
	if err := cache.Delete(); err != nil {
		t.Errorf("Delete() error = %v, want nil for non-existent file", err)
	}
}

func TestTokenCache_Path(t *testing.T) {
	path := "/custom/path/token.json"
	cache := NewTokenCache(path)

	if cache.Path() != path {
		t.Errorf("Path() = %q, want %q", cache.Path(), path)
	}
}

func TestTokenCache_FilePermissions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token.json")
	cache := NewTokenCache(path)

	token := &oauth2.Token{
		AccessToken: "secret-token",
		TokenType:   "Bearer",
	}

	if err := cache.Save(token); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}

	// Check file is not world-readable (0600)
	mode := info.Mode().Perm()
	if mode&0077 != 0 {
		t.Errorf("File permissions = %o, want 0600 (no group/other access)", mode)
	}
}

func TestTokenCache_IgnoresOtherScopes(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"different scope", `{"token":{"access_token":"x"},"scope":"playlist-modify-private"}`},
		{"bare token file", `{"access_token":"x","token_type":"Bearer"}`},
		{"missing token", `{"scope":"user-top-read"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "token.json")
			if err := os.WriteFile(path, []byte(tt.data), 0o600); err != nil {
				t.Fatalf("WriteFile() error = %v", err)
			}

			got, err := NewTokenCache(path).Load()
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if got != nil {
				t.Errorf("Load() = %+v, want nil", got)
			}
		})
	}
}

func TestTokenCache_LoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := NewTokenCache(path).Load(); err == nil {
		t.Error("Load() expected error for corrupt file")
	}
}

func TestTokenCache_RecordsScopeAndTime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	cache := NewTokenCache(path)
	saved := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return saved }

	if err := cache.Save(&oauth2.Token{AccessToken: "x"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	var onDisk cachedToken
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if onDisk.Scope != "user-top-read" {
		t.Errorf("Scope = %q, want user-top-read", onDisk.Scope)
	}
	if !onDisk.SavedAt.Equal(saved) {
		t.Errorf("SavedAt = %v, want %v", onDisk.SavedAt, saved)
	}
}

func TestTokenCache_SaveReplacesAndLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	cache := NewTokenCache(filepath.Join(dir, "token.json"))

	for _, access := range []string{"first", "second"} {
		if err := cache.Save(&oauth2.Token{AccessToken: access}); err != nil {
			t.Fatalf("Save(%q) error = %v", access, err)
		}
	}

	got, err := cache.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got == nil || got.AccessToken != "second" {
		t.Errorf("Load() = %+v, want access token second", got)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("directory entries = %v, want only token.json", names)
	}
}

func newTestAuthenticator(t *testing.T) *Authenticator {
	t.Helper()
	a, err := New(Config{
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		RedirectURL:  "http://127.0.0.1:8080/auth/callback",
		CachePath:    filepath.Join(t.TempDir(), "token.json"),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	a.out = io.Discard
	return a
}

func TestNew_MissingCredentials(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		secret string
	}{
		{"both missing", "", ""},
		{"id missing", "", "secret"},
		{"secret missing", "id", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(Config{ClientID: tt.id, ClientSecret: tt.secret})
			if !errors.Is(err, ErrMissingCredentials) {
				t.Errorf("New() error = %v, want ErrMissingCredentials", err)
			}
		})
	}
}

func TestAuthURL(t *testing.T) {
	a := newTestAuthenticator(t)

	u, err := url.Parse(a.AuthURL("state-123"))
	if err != nil {
		t.Fatalf("AuthURL() is not a URL: %v", err)
	}

	q := u.Query()
	if q.Get("state") != "state-123" {
		t.Errorf("state = %q, want state-123", q.Get("state"))
	}
	if q.Get("scope") != "user-top-read" {
		t.Errorf("scope = %q, want user-top-read", q.Get("scope"))
	}
	if q.Get("client_id") != "test-client-id" {
		t.Errorf("client_id = %q", q.Get("client_id"))
	}
	if q.Get("redirect_uri") != "http://127.0.0.1:8080/auth/callback" {
		t.Errorf("redirect_uri = %q", q.Get("redirect_uri"))
	}
}

func TestToken_StateMismatch(t *testing.T) {
	a := newTestAuthenticator(t)

	r := httptest.NewRequest(http.MethodGet, "/auth/callback?state=other&code=abc", nil)
	if _, err := a.Token(context.Background(), "expected", r); !errors.Is(err, ErrStateMismatch) {
		t.Errorf("Token() error = %v, want ErrStateMismatch", err)
	}
}

func TestHandleCallback_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantErr    error
	}{
		{"state mismatch", "state=wrong&code=abc", http.StatusBadRequest, ErrStateMismatch},
		{"user denied", "state=good&error=access_denied", http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAuthenticator(t)
			tokenCh := make(chan *oauth2.Token, 1)
			errCh := make(chan error, 1)

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/auth/callback?"+tt.query, nil)
			a.handleCallback(rec, req, "good", tokenCh, errCh)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			select {
			case err := <-errCh:
				if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, want %v", err, tt.wantErr)
				}
			default:
				t.Error("no error reported")
			}

			if len(tokenCh) != 0 {
				t.Error("token delivered for a rejected callback")
			}
		})
	}
}

func TestServeCallback_StateMismatch(t *testing.T) {
	a := newTestAuthenticator(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := a.serveCallback(context.Background(), ln, "/auth/callback")
		done <- err
	}()

	resp, err := http.Get("http://" + ln.Addr().String() + "/auth/callback?state=forged&code=abc")
	if err != nil {
		t.Fatalf("GET callback: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}

	select {
	case err := <-done:
		if !errors.Is(err, ErrStateMismatch) {
			t.Errorf("serveCallback() error = %v, want ErrStateMismatch", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serveCallback did not return")
	}
}

func TestServeCallback_Timeout(t *testing.T) {
	a := newTestAuthenticator(t)
	a.timeout = 50 * time.Millisecond

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := a.serveCallback(context.Background(), ln, "/auth/callback"); !errors.Is(err, ErrAuthTimeout) {
		t.Errorf("serveCallback() error = %v, want ErrAuthTimeout", err)
	}
}

func TestServeCallback_PrintsAuthURL(t *testing.T) {
	a := newTestAuthenticator(t)
	a.timeout = 20 * time.Millisecond
	var out strings.Builder
	a.out = &out

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = a.serveCallback(context.Background(), ln, "/auth/callback")

	if !strings.Contains(out.String(), "https://accounts.spotify.com/authorize?") {
		t.Errorf("output = %q, want the consent URL", out.String())
	}
}

func TestAuthenticate_UsesValidCachedToken(t *testing.T) {
	a := newTestAuthenticator(t)

	cached := &oauth2.Token{
		AccessToken: "cached",
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(time.Hour),
	}
	if err := NewTokenCache(a.cachePath).Save(cached); err != nil {
		t.Fatal(err)
	}

	got, err := a.Authenticate(context.Background())
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if got.AccessToken != "cached" {
		t.Errorf("AccessToken = %q, want cached", got.AccessToken)
	}
}

func TestSaveToken_ReplacesCachedToken(t *testing.T) {
	a := newTestAuthenticator(t)
	if err := a.SaveToken(&oauth2.Token{AccessToken: "fresh", Expiry: time.Now().Add(time.Hour)}); err != nil {
		t.Fatalf("SaveToken() error = %v", err)
	}

	got, err := NewTokenCache(a.cachePath).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got == nil || got.AccessToken != "fresh" {
		t.Errorf("cached token = %+v, want access token fresh", got)
	}
}

func TestLogout_RemovesCachedToken(t *testing.T) {
	a := newTestAuthenticator(t)

	if err := NewTokenCache(a.cachePath).Save(&oauth2.Token{AccessToken: "x"}); err != nil {
		t.Fatal(err)
	}
	if err := a.Logout(); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if _, err := os.Stat(a.cachePath); !os.IsNotExist(err) {
		t.Error("Logout() did not remove the token file")
	}
	if err := a.Logout(); err != nil {
		t.Errorf("second Logout() error = %v", err)
	}
}

func TestHTTPClient_AuthorizesRequests(t *testing.T) {
	a := newTestAuthenticator(t)

	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	client := a.HTTPClient(context.Background(), &oauth2.Token{
		AccessToken: "abc",
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(time.Hour),
	})
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()

	if got != "Bearer abc" {
		t.Errorf("Authorization = %q, want Bearer abc", got)
	}
}

func TestGenerateState(t *testing.T) {
	state1, err := GenerateState()
	if err != nil {
		t.Fatalf("GenerateState() error = %v", err)
	}

	if len(state1) != 32 { // 16 bytes = 32 hex chars
		t.Errorf("GenerateState() length = %d, want 32", len(state1))
	}

	state2, err := GenerateState()
	if err != nil {
		t.Fatalf("GenerateState() error = %v", err)
	}

	if state1 == state2 {
		t.Error("GenerateState() returned same value twice")
	}
}

package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/justestif/go-music-personality/internal/auth"
	"github.com/justestif/go-music-personality/internal/listening"
	"github.com/justestif/go-music-personality/internal/personality"
	"github.com/justestif/go-music-personality/internal/session"
	"github.com/justestif/go-music-personality/internal/spotify"
)

const (
	stateCookieName = "oauth_state"

	messageAnalysisFailed = "Couldn't generate personality analysis at this time."
	messageNoHistory      = "Not enough listening history to analyze yet."
	messageLoginFailed    = "Spotify login failed. Please try again"

	maxAPIBodyBytes = 1 << 20
)

// Authenticator runs the Spotify authorization code flow.
type Authenticator interface {
	AuthURL(state string) string
	Token(ctx context.Context, state string, r *http.Request) (*oauth2.Token, error)
}

// Library reads a user's Spotify data.
type Library interface {
	Profile(ctx context.Context, token *oauth2.Token) (*spotify.Profile, error)
	Snapshot(ctx context.Context, token *oauth2.Token) (*listening.Snapshot, *oauth2.Token, error)
}

// Describer generates a personality reading.
type Describer interface {
	Describe(ctx context.Context, snap *listening.Snapshot) (*personality.Reading, error)
}

// Handlers contains HTTP handlers for the web application.
type Handlers struct {
	auth        Authenticator
	library     Library
	personality Describer
	sessions    *session.Manager
	templates   *Templates
	snapshots   *SnapshotCache
	enricher    *listening.Enricher
	facets      listening.FacetConfig
	ping        func(ctx context.Context) error
	logger      *zap.Logger
	now         func() time.Time
}

// Home handles the home page (GET /). Signed-in users go straight to their
// results.
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	if s := h.sessions.FromRequest(r); s != nil {
		http.Redirect(w, r, "/result", http.StatusSeeOther)
		return
	}

	data := HomePageData{
		PageData: PageData{Title: appTitle},
	}
	h.render(w, http.StatusOK, "home", data)
}

// Login initiates the Spotify OAuth flow (GET /auth/login).
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	state, err := auth.GenerateState()
	if err != nil {
		h.logger.Error("generating oauth state", zap.Error(err))
		h.renderError(w, http.StatusInternalServerError, messageLoginFailed)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   300,
	})

	http.Redirect(w, r, h.auth.AuthURL(state), http.StatusTemporaryRedirect)
}

// Callback handles the OAuth callback from Spotify (GET /auth/callback).
func (h *Handlers) Callback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil {
		http.Error(w, "Missing state cookie", http.StatusBadRequest)
		return
	}

	state := r.URL.Query().Get("state")
	if state == "" || state != stateCookie.Value {
		http.Error(w, "State mismatch", http.StatusBadRequest)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})

	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		h.logger.Info("spotify authorization declined", zap.String("error", errMsg))
		h.renderError(w, http.StatusBadRequest, messageLoginFailed)
		return
	}

	ctx := r.Context()
	token, err := h.auth.Token(ctx, state, r)
	if err != nil {
		h.logger.Error("exchanging oauth code", zap.Error(err))
		h.renderError(w, http.StatusBadGateway, messageLoginFailed)
		return
	}

	profile, err := h.library.Profile(ctx, token)
	if err != nil {
		h.logger.Error("loading spotify profile", zap.Error(err))
		h.renderError(w, statusFor(err), spotify.UserMessage(err))
		return
	}

	s, err := h.sessions.Store().Create(ctx, token, profile.ID, profile.DisplayName)
	if err != nil {
		h.logger.Error("creating session", zap.Error(err))
		h.renderError(w, http.StatusInternalServerError, messageLoginFailed)
		return
	}

	h.sessions.SetCookie(w, s)
	h.logger.Info("user signed in", zap.String("user_id", profile.ID))
	http.Redirect(w, r, "/result", http.StatusSeeOther)
}

// Result shows the user's top artists and tracks (GET /result). The
// personality text is loaded separately.
func (h *Handlers) Result(w http.ResponseWriter, r *http.Request) {
	s := h.sessions.FromRequest(r)
	if s == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	snap, err := h.fetchSnapshot(r.Context(), s)
	if err != nil {
		h.renderError(w, statusFor(err), spotify.UserMessage(err))
		return
	}

	data := ResultPageData{
		PageData: PageData{
			Title: appTitle,
			User:  &UserData{ID: s.UserID, Name: s.DisplayName},
		},
		CoverImage: snap.CoverImage(),
		Artists:    snap.Artists,
		Tracks:     snap.Tracks,
		Facets:     snap.Facets,
		TimeRange:  snap.TimeRange,
		FetchedAt:  snap.FetchedAt,
		Analyzable: !snap.Empty(),
	}
	h.render(w, http.StatusOK, "result", data)
}

// Personality renders the personality partial (GET /result/personality).
func (h *Handlers) Personality(w http.ResponseWriter, r *http.Request) {
	s := h.sessions.FromRequest(r)
	if s == nil {
		h.renderPartial(w, "personality", PersonalityData{
			Message: spotify.MessageMissingToken,
			Failed:  true,
		})
		return
	}

	ctx := r.Context()
	snap := h.snapshots.Get(s.ID)
	if snap == nil {
		var err error
		snap, err = h.fetchSnapshot(ctx, s)
		if err != nil {
			h.renderPartial(w, "personality", PersonalityData{
				Message: spotify.UserMessage(err),
				Failed:  true,
			})
			return
		}
	}

	reading, err := h.personality.Describe(ctx, snap)
	switch {
	case errors.Is(err, personality.ErrNothingToAnalyze):
		h.renderPartial(w, "personality", PersonalityData{Message: messageNoHistory})
		return
	case err != nil:
		h.logger.Error("describing personality", zap.String("user_id", s.UserID), zap.Error(err))
		h.renderPartial(w, "personality", PersonalityData{
			Message: messageAnalysisFailed,
			Failed:  true,
		})
		return
	}

	h.renderPartial(w, "personality", PersonalityData{Text: reading.Text})
}

// PersonalityRateLimited answers a throttled partial request. htmx only swaps
// 2xx responses, so the message is rendered at 200.
func (h *Handlers) PersonalityRateLimited(w http.ResponseWriter, _ *http.Request) {
	h.renderPartial(w, "personality", PersonalityData{
		Message: spotify.MessageRateLimited,
		Failed:  true,
	})
}

// personalityRequest is the body of POST /api/personality.
type personalityRequest struct {
	TopArtists []struct {
		Name string `json:"name"`
	} `json:"topArtists"`
	TopTracks []struct {
		Name   string `json:"name"`
		Artist string `json:"artist"`
	} `json:"topTracks"`
}

type personalityResponse struct {
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
}

// PersonalityAPI generates a description for the posted artists and tracks
// (POST /api/personality). A missing body counts as empty lists.
func (h *Handlers) PersonalityAPI(w http.ResponseWriter, r *http.Request) {
	s := h.sessions.FromRequest(r)
	if s == nil {
		writeJSON(w, http.StatusUnauthorized, personalityResponse{Error: spotify.MessageMissingToken})
		return
	}

	var req personalityRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxAPIBodyBytes))
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, personalityResponse{Error: "invalid request body"})
		return
	}

	snap := &listening.Snapshot{
		Artists: make([]listening.Artist, 0, len(req.TopArtists)),
		Tracks:  make([]listening.Track, 0, len(req.TopTracks)),
	}
	for _, a := range req.TopArtists {
		snap.Artists = append(snap.Artists, listening.Artist{Name: a.Name})
	}
	for _, t := range req.TopTracks {
		snap.Tracks = append(snap.Tracks, listening.Track{Name: t.Name, Artist: t.Artist})
	}

	reading, err := h.personality.Describe(r.Context(), snap)
	switch {
	case errors.Is(err, personality.ErrNothingToAnalyze):
		writeJSON(w, http.StatusOK, personalityResponse{Text: personality.FallbackText})
		return
	case err != nil:
		h.logger.Error("describing personality", zap.String("user_id", s.UserID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, personalityResponse{Error: messageAnalysisFailed})
		return
	}

	writeJSON(w, http.StatusOK, personalityResponse{Text: reading.Text})
}

// Logout clears the session and redirects to home (POST /auth/logout).
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if s := h.sessions.FromRequest(r); s != nil {
		if r.FormValue("scope") == "all" {
			n, err := h.sessions.Store().DeleteForUser(r.Context(), s.UserID)
			if err != nil {
				h.logger.Error("deleting user sessions", zap.String("user_id", s.UserID), zap.Error(err))
			} else {
				h.logger.Info("signed out everywhere", zap.String("user_id", s.UserID), zap.Int64("sessions", n))
			}
		} else if err := h.sessions.Store().Delete(r.Context(), s.ID); err != nil {
			h.logger.Error("deleting session", zap.Error(err))
		}
		h.snapshots.Delete(s.ID)
	}

	h.sessions.ClearCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Healthz reports liveness, and database reachability when configured
// (GET /healthz).
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	status, code := "healthy", http.StatusOK
	if h.ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.ping(ctx); err != nil {
			h.logger.Error("health check failed", zap.Error(err))
			status, code = "unhealthy", http.StatusServiceUnavailable
		}
	}

	writeJSON(w, code, map[string]string{
		"status":    status,
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

// fetchSnapshot loads the user's top items, persists a refreshed token,
// derives facets and caches the result for the session.
func (h *Handlers) fetchSnapshot(ctx context.Context, s *session.Session) (*listening.Snapshot, error) {
	snap, refreshed, err := h.library.Snapshot(ctx, s.Token)
	if refreshed != nil {
		if uerr := h.sessions.Store().UpdateToken(ctx, s.ID, refreshed); uerr != nil {
			h.logger.Warn("saving refreshed token", zap.Error(uerr))
		}
	}
	if err != nil {
		h.logger.Warn("fetching spotify data", zap.String("user_id", s.UserID), zap.Error(err))
		return nil, err
	}

	built, err := listening.Build(ctx, snap, h.enricher, h.facets)
	if err != nil {
		h.logger.Warn("building taste facets", zap.Error(err))
		built = snap
	}

	h.snapshots.Put(s.ID, built)
	return built, nil
}

// statusFor maps a Spotify error to a response status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, spotify.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, spotify.ErrMissingToken), errors.Is(err, spotify.ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusBadGateway
	}
}

func (h *Handlers) render(w http.ResponseWriter, status int, page string, data any) {
	var buf bytes.Buffer
	if err := h.templates.Render(&buf, page, data); err != nil {
		h.logger.Error("rendering template", zap.String("page", page), zap.Error(err))
		http.Error(w, "Failed to render template", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// renderPartial always answers 200; htmx does not swap error responses.
func (h *Handlers) renderPartial(w http.ResponseWriter, partial string, data any) {
	var buf bytes.Buffer
	if err := h.templates.RenderPartial(&buf, partial, data); err != nil {
		h.logger.Error("rendering partial", zap.String("partial", partial), zap.Error(err))
		http.Error(w, "Failed to render template", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (h *Handlers) renderError(w http.ResponseWriter, status int, message string) {
	h.render(w, status, "error", ErrorPageData{
		PageData: PageData{Title: appTitle},
		Message:  message,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

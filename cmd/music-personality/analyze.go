package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/justestif/go-music-personality/internal/auth"
	"github.com/justestif/go-music-personality/internal/config"
	"github.com/justestif/go-music-personality/internal/listening"
	"github.com/justestif/go-music-personality/internal/logging"
	"github.com/justestif/go-music-personality/internal/personality"
	"github.com/justestif/go-music-personality/internal/spotify"
	"github.com/justestif/go-music-personality/internal/web"
)

func analyzeAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}
	if v := cmd.String("time-range"); v != "" {
		cfg.Spotify.TimeRange = v
	}
	if v := cmd.Int("limit"); v > 0 {
		cfg.Spotify.TopLimit = int(v)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Keep the terminal readable: only warnings and errors, as text.
	cfg.Logging.Format = "console"
	if logging.ParseLevel(cfg.Logging.Level) < logging.ParseLevel("warn") {
		cfg.Logging.Level = "warn"
	}
	logger, _, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	authenticator, err := auth.New(auth.Config{
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
		RedirectURL:  cfg.Spotify.RedirectURL,
		CachePath:    cmd.String("token-cache"),
	})
	if err != nil {
		return err
	}

	styles := newPalette()
	out := os.Stdout

	if cmd.Bool("logout") {
		if err := authenticator.Logout(); err != nil {
			return err
		}
		fmt.Fprintln(out, styles.ok.Render("Logged out. The cached Spotify token was removed."))
		return nil
	}

	token, err := authenticator.Authenticate(ctx)
	if err != nil {
		return fmt.Errorf("authenticating: %w", err)
	}

	describer, err := newPersonalityService(ctx, cfg.GenAI, logger)
	if err != nil {
		return err
	}

	library := spotify.NewLibrary(authenticator, spotify.Options{
		Limit:     cfg.Spotify.TopLimit,
		TimeRange: cfg.Spotify.TimeRange,
	})

	a := &analyzer{
		library:   library,
		describer: describer,
		enricher:  newEnricher(cfg.LastFM, logger),
		facets:    !cmd.Bool("no-facets"),
		saveToken: authenticator.SaveToken,
		styles:    styles,
		out:       out,
		logger:    logger,
	}
	return a.run(ctx, token)
}

// analyzer runs the terminal flow once a token is available.
type analyzer struct {
	library   web.Library
	describer web.Describer
	enricher  *listening.Enricher
	facets    bool
	saveToken func(*oauth2.Token) error
	styles    *palette
	out       io.Writer
	logger    *zap.Logger
}

func (a *analyzer) run(ctx context.Context, token *oauth2.Token) error {
	profile, err := a.library.Profile(ctx, token)
	if err != nil {
		fmt.Fprintln(a.out, a.styles.err.Render(spotify.UserMessage(err)))
		return err
	}

	fmt.Fprintln(a.out, a.styles.title.Render("Music Personality"))
	fmt.Fprintln(a.out, a.styles.help.Render("Signed in as "+profile.DisplayName))
	fmt.Fprintln(a.out)

	snap, refreshed, err := a.library.Snapshot(ctx, token)
	if err != nil {
		fmt.Fprintln(a.out, a.styles.err.Render(spotify.UserMessage(err)))
		return err
	}
	if refreshed != nil && a.saveToken != nil {
		if err := a.saveToken(refreshed); err != nil {
			a.logger.Warn("caching refreshed token", zap.Error(err))
		}
	}

	if a.facets {
		built, err := listening.Build(ctx, snap, a.enricher, listening.DefaultFacetConfig())
		if err != nil {
			a.logger.Warn("building taste facets", zap.Error(err))
		} else {
			snap = built
		}
	}

	fmt.Fprint(a.out, listening.FormatSnapshot(snap))
	fmt.Fprintln(a.out)

	reading, err := a.describer.Describe(ctx, snap)
	switch {
	case errors.Is(err, personality.ErrNothingToAnalyze):
		fmt.Fprintln(a.out, a.styles.help.Render("Not enough listening history to analyze yet."))
		return nil
	case err != nil:
		fmt.Fprintln(a.out, a.styles.err.Render("Couldn't generate personality analysis at this time."))
		return err
	}

	fmt.Fprintln(a.out, a.styles.heading.Render("Your Music Personality"))
	fmt.Fprintln(a.out, a.styles.body.Render(reading.Text))
	return nil
}

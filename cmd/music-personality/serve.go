package main

import (
	"context"
	"fmt"
	"io/fs"
	"strings"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/justestif/go-music-personality/internal/auth"
	"github.com/justestif/go-music-personality/internal/config"
	"github.com/justestif/go-music-personality/internal/db"
	"github.com/justestif/go-music-personality/internal/encryption"
	"github.com/justestif/go-music-personality/internal/lastfm"
	"github.com/justestif/go-music-personality/internal/listening"
	"github.com/justestif/go-music-personality/internal/logging"
	"github.com/justestif/go-music-personality/internal/personality"
	"github.com/justestif/go-music-personality/internal/session"
	"github.com/justestif/go-music-personality/internal/spotify"
	"github.com/justestif/go-music-personality/internal/web"
	webfs "github.com/justestif/go-music-personality/web"
)

func serveAction(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, level, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	store, ping, closeStore, err := openSessionStore(ctx, cfg.Session, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	janitor, err := session.NewJanitor(store, cfg.Session.CleanupSpec, logger)
	if err != nil {
		return err
	}
	janitor.Start()
	defer janitor.Stop()

	authenticator, err := auth.New(auth.Config{
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
		RedirectURL:  cfg.Spotify.RedirectURL,
	})
	if err != nil {
		return err
	}

	describer, err := newPersonalityService(ctx, cfg.GenAI, logger)
	if err != nil {
		return err
	}

	templates, err := fs.Sub(webfs.TemplatesFS, "templates")
	if err != nil {
		return fmt.Errorf("creating templates filesystem: %w", err)
	}
	static, err := fs.Sub(webfs.StaticFS, "static")
	if err != nil {
		return fmt.Errorf("creating static filesystem: %w", err)
	}

	secure := strings.HasPrefix(cfg.Spotify.RedirectURL, "https://")
	server, err := web.NewServer(web.ServerConfig{
		Addr:        cfg.Server.Addr,
		TemplatesFS: templates,
		StaticFS:    static,
		Auth:        authenticator,
		Library: spotify.NewLibrary(authenticator, spotify.Options{
			Limit:     cfg.Spotify.TopLimit,
			TimeRange: cfg.Spotify.TimeRange,
		}),
		Personality:        describer,
		Sessions:           session.NewManager(store, cfg.Session.TTL, secure, logger),
		Enricher:           newEnricher(cfg.LastFM, logger),
		Facets:             listening.DefaultFacetConfig(),
		RateLimitPerMinute: cfg.Server.RateLimitPerMinute,
		Ping:               ping,
		Logger:             logger,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	go func() {
		err := config.Watch(ctx, configPath, logger, func(next *config.Config) {
			level.SetLevel(logging.ParseLevel(next.Logging.Level))
		})
		if err != nil {
			logger.Warn("config watcher stopped", zap.Error(err))
		}
	}()

	return server.Run(ctx)
}

// openSessionStore returns the configured session store, a health check for
// it (nil for memory) and a close function.
func openSessionStore(ctx context.Context, cfg config.SessionConfig, logger *zap.Logger) (session.Store, func(context.Context) error, func(), error) {
	if cfg.Driver == config.DriverMemory {
		return session.NewMemoryStore(cfg.TTL), nil, func() {}, nil
	}

	database, err := db.Open(ctx, cfg.Driver, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening session database: %w", err)
	}
	closeDB := func() {
		if err := database.Close(); err != nil {
			logger.Warn("closing session database", zap.Error(err))
		}
	}

	if err := database.Migrate(); err != nil {
		closeDB()
		return nil, nil, nil, err
	}

	var sealer *encryption.TokenSealer
	if cfg.EncryptionKey != "" {
		sealer, err = encryption.NewTokenSealer(cfg.EncryptionKey)
		if err != nil {
			closeDB()
			return nil, nil, nil, fmt.Errorf("session key: %w", err)
		}
	} else {
		logger.Warn("SESSION_KEY not set, Spotify tokens are stored unencrypted")
	}

	logger.Info("using database session store", zap.String("driver", cfg.Driver))
	return session.NewDBStore(database, sealer, cfg.TTL), database.Ping, closeDB, nil
}

func newPersonalityService(ctx context.Context, cfg config.GenAIConfig, logger *zap.Logger) (*personality.Service, error) {
	gen, err := personality.NewGenAIGenerator(ctx, personality.GenAIConfig{
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return personality.NewService(gen,
		personality.WithRateLimit(cfg.RPS),
		personality.WithLogger(logger),
	), nil
}

// newEnricher returns a Last.fm genre enricher, or nil when no key is set.
func newEnricher(cfg config.LastFMConfig, logger *zap.Logger) *listening.Enricher {
	lfmCfg, err := lastfm.NewConfig(cfg.APIKey)
	if err != nil {
		logger.Debug("last.fm enrichment disabled", zap.Error(err))
		return nil
	}
	return listening.NewEnricher(lastfm.NewClient(lfmCfg), listening.WithLogger(logger))
}

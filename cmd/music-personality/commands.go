package main

import (
	"github.com/urfave/cli/v3"

	"github.com/justestif/go-music-personality/internal/config"
)

const version = "0.1.0"

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "music-personality",
		Usage:   "Describe your music personality from your Spotify top artists and tracks",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.yaml",
				Sources: cli.EnvVars("MUSIC_PERSONALITY_CONFIG"),
			},
		},
		Action: serveAction,
		Commands: []*cli.Command{
			serveCommand(),
			analyzeCommand(),
			migrateCommand(),
			keygenCommand(),
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the web application (default)",
		Action: serveAction,
	}
}

func analyzeCommand() *cli.Command {
	return &cli.Command{
		Name:  "analyze",
		Usage: "Sign in from the terminal and print your music personality",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "time-range",
				Usage: "short_term, medium_term or long_term (overrides config)",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Number of top artists and tracks (overrides config)",
			},
			&cli.StringFlag{
				Name:  "token-cache",
				Usage: "Path of the cached Spotify token (default: user config dir)",
			},
			&cli.BoolFlag{
				Name:  "no-facets",
				Usage: "Skip taste facet detection",
			},
			&cli.BoolFlag{
				Name:  "logout",
				Usage: "Remove the cached Spotify token and exit",
			},
		},
		Action: analyzeAction,
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply session database migrations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "driver",
				Usage:   "Database driver (postgres or sqlite)",
				Value:   config.DriverSQLite,
				Sources: cli.EnvVars("SESSION_DRIVER"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection string or SQLite file path",
				Sources:  cli.EnvVars("DATABASE_URL"),
				Required: true,
			},
		},
		Action: migrateAction,
	}
}

func keygenCommand() *cli.Command {
	return &cli.Command{
		Name:   "keygen",
		Usage:  "Print a random SESSION_KEY for encrypting stored tokens",
		Action: keygenAction,
	}
}

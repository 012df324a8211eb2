package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/justestif/go-music-personality/internal/db"
	"github.com/justestif/go-music-personality/internal/encryption"
)

func migrateAction(ctx context.Context, cmd *cli.Command) error {
	database, err := db.Open(ctx, cmd.String("driver"), cmd.String("database-url"))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close() //nolint:errcheck

	if err := database.Migrate(); err != nil {
		return err
	}

	version, err := database.MigrationVersion()
	if err != nil {
		return fmt.Errorf("reading migration version: %w", err)
	}

	styles := newPalette()
	fmt.Fprintln(cmd.Root().Writer, styles.ok.Render(fmt.Sprintf("Database at version %d", version)))
	return nil
}

func keygenAction(_ context.Context, cmd *cli.Command) error {
	key, err := encryption.GenerateKey()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.Root().Writer, key)
	return nil
}

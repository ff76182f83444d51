package main

import (
	"errors"

	"nft-marketplace/config"
	pgStorage "nft-marketplace/internal/adapter/storage/postgres"
	"nft-marketplace/pkg/logger"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the PostgreSQL schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Storage.Driver != config.DriverPostgres {
			return errors.New("migrate needs storage.driver=postgres")
		}
		log := logger.WithComponent(logger.New(cfg.Log.Level, cfg.Log.Pretty), "migrate")

		ctx := cmd.Context()
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := pgStorage.Migrate(ctx, pool); err != nil {
			return err
		}
		log.Info().Msg("schema up to date")
		return nil
	},
}

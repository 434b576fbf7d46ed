package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"ticketdesk/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the Postgres tables and MongoDB indexes",
	Args:  cobra.NoArgs,
	RunE: func(c *cobra.Command, _ []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(c.Context(), time.Minute)
		defer cancel()

		sqldb, err := db.Open(ctx, cfg.DB)
		if err != nil {
			return err
		}
		defer sqldb.Close() //nolint:errcheck
		logger.Info("postgres schema up to date")

		mg, _, err := db.OpenMongo(ctx, cfg.Mongo)
		if err != nil {
			return err
		}
		defer mg.Disconnect(context.Background()) //nolint:errcheck
		logger.Info("mongo indexes up to date")
		return nil
	},
}

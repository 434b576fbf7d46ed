package main

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"ticketdesk/apiclient"
	"ticketdesk/portal"
)

var portalCmd = &cobra.Command{
	Use:   "portal",
	Short: "Start the organiser portal",
	Args:  cobra.NoArgs,
	RunE: func(c *cobra.Command, _ []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		ctx := c.Context()

		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		defer rdb.Close() //nolint:errcheck
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}

		api := apiclient.New(cfg.Portal.APIBaseURL, cfg.Portal.APITimeout, apiclient.WithLogger(logger))

		gin.SetMode(gin.ReleaseMode)
		p, err := portal.New(cfg, api, rdb, logger, nil)
		if err != nil {
			return fmt.Errorf("create portal: %w", err)
		}
		return run(ctx, cfg, logger, "portal", cfg.Portal.ListenAddr, p)
	},
}

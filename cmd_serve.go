package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"ticketdesk/db"
	"ticketdesk/middlewares"
	"ticketdesk/models"
	"ticketdesk/models/memory"
	"ticketdesk/routes"
	"ticketdesk/utils"
)

var (
	inMemory bool

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the ticketing REST API",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			utils.Configure(cfg.API.JWTSecret, cfg.API.TokenTTL)
			ctx := c.Context()

			deps := routes.Deps{DailyQuota: cfg.API.DailyQuota}
			if inMemory {
				logger.Warn("using in-memory repositories; data is lost on exit")
				deps.Users = memory.NewUserRepo()
				deps.Orgs = memory.NewOrganizationRepo()
				deps.Events = memory.NewEventRepo()
				deps.Tickets = memory.NewTicketRepo()
			} else {
				octx, cancel := context.WithTimeout(ctx, 30*time.Second)
				defer cancel()

				sqldb, err := db.Open(octx, cfg.DB)
				if err != nil {
					return err
				}
				defer sqldb.Close() //nolint:errcheck

				mg, events, err := db.OpenMongo(octx, cfg.Mongo)
				if err != nil {
					return err
				}
				defer func() { _ = mg.Disconnect(context.Background()) }()

				deps.Users = models.NewSQLUserRepository(sqldb)
				deps.Orgs = models.NewSQLOrganizationRepository(sqldb)
				deps.Events = models.NewMongoEventRepository(events)
				deps.Tickets = models.NewSQLTicketRepository(sqldb)
			}

			rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
			defer rdb.Close() //nolint:errcheck
			if err := rdb.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("ping redis: %w", err)
			}
			deps.Redis = rdb
			deps.Invalidator = utils.NewCacheInvalidator(rdb)
			deps.CacheTTL = cfg.API.CacheTTL

			gin.SetMode(gin.ReleaseMode)
			engine := gin.New()
			engine.Use(middlewares.RequestLogger(logger, "api"), gin.Recovery())
			limiters := routes.RegisterRoutes(engine, deps)
			defer func() {
				for _, l := range limiters {
					l.Stop()
				}
			}()

			srv := &http.Server{
				Addr:              cfg.API.ListenAddr,
				Handler:           engine,
				ReadHeaderTimeout: 10 * time.Second,
			}
			return run(ctx, cfg, logger, "api", cfg.API.ListenAddr, srv)
		},
	}
)

func init() {
	serveCmd.Flags().BoolVar(&inMemory, "memory", false, "keep users, events and tickets in memory instead of Postgres and MongoDB")
}

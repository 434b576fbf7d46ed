package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	_ "go.uber.org/automaxprocs"
	"golang.org/x/sync/errgroup"

	"ticketdesk/config"
	"ticketdesk/logging"
	"ticketdesk/metrics"
)

var (
	configPath string

	rootCmd = &cobra.Command{
		Use:          "ticketdesk",
		Short:        "Event ticketing API and organiser portal",
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file (default $TICKETDESK_CONFIG)")
	rootCmd.AddCommand(serveCmd, portalCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads the config and builds the logger every command uses.
func setup() (*config.Config, *log.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}
	log.SetDefault(logger)
	return cfg, logger, nil
}

type server interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// run serves srv and, when configured, the stats listener until one of
// them fails or SIGINT/SIGTERM arrives, then shuts both down.
func run(ctx context.Context, cfg *config.Config, logger *log.Logger, name, addr string, srv server) error {
	servers := []server{srv}
	if cfg.Stats.ListenAddr != "" {
		servers = append(servers, metrics.NewStatsServer(cfg.Stats.ListenAddr))
		logger.Info("starting stats server", "addr", cfg.Stats.ListenAddr)
	}
	logger.Info("starting "+name, "addr", addr)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errg, ctx := errgroup.WithContext(ctx)
	for _, s := range servers {
		errg.Go(func() error {
			if err := s.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	errg.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down", "server", name)
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		var errs []error
		for _, s := range servers {
			errs = append(errs, s.Shutdown(sctx))
		}
		return errors.Join(errs...)
	})
	return errg.Wait()
}

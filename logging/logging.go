// Package logging builds the process logger.
package logging

import (
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"ticketdesk/config"
)

// New returns a new logger configured from cfg.
func New(cfg *config.Config) (*log.Logger, error) {
	if cfg == nil {
		return nil, config.ErrNilConfig
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      cfg.Log.TimeFormat,
	})

	if cfg.Log.Level != "" {
		lvl, err := log.ParseLevel(cfg.Log.Level)
		if err != nil {
			return nil, err
		}
		logger.SetLevel(lvl)
	}

	switch strings.ToLower(cfg.Log.Format) {
	case "json":
		logger.SetFormatter(log.JSONFormatter)
	case "logfmt":
		logger.SetFormatter(log.LogfmtFormatter)
	case "text":
		logger.SetFormatter(log.TextFormatter)
	}

	return logger, nil
}

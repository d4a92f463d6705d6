package main

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"dbbench/internal/config"
)

// InitLog configures the logger.
func InitLog(cfg config.LogConfig) error {
	switch cfg.Format {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "text", "":
		log.SetFormatter(&log.TextFormatter{})
	case "color":
		log.SetFormatter(&log.TextFormatter{ForceColors: true})
	default:
		return fmt.Errorf("unrecognized log format %q (text|json|color)", cfg.Format)
	}

	lvl, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("unrecognized log level: %w", err)
	}
	log.SetLevel(lvl)
	return nil
}

package main

import (
	log "github.com/sirupsen/logrus"

	"dbbench/internal/config"
	"dbbench/internal/metrics"
	"dbbench/internal/metrics/datadog"
	"dbbench/internal/metrics/prompush"
)

// setupMetrics installs the configured backend and returns a function that
// flushes it. A backend that fails to initialize is logged and metrics stay
// disabled; the run itself goes ahead.
func setupMetrics(cfg config.MetricsConfig) func() {
	var (
		b     metrics.Backend
		closer func() error
		err   error
	)
	switch cfg.Backend {
	case "", "none":
		log.WithField("backend", cfg.Backend).Debug("metrics: disabled")
		return func() {}
	case "prom":
		url := cfg.PushgatewayURL
		if url == "" {
			url = "http://localhost:9091"
		}
		var pb *prompush.Backend
		if pb, err = prompush.NewBackend(cfg.Job, url); err == nil {
			b = pb
		}
		log.WithFields(log.Fields{"backend": "pushgateway", "url": url, "job": cfg.Job}).Info("metrics: enabled")
	case "datadog":
		var db *datadog.Backend
		if db, err = datadog.NewBackend(datadog.Config{
			Addr:       cfg.StatsdAddr,
			Namespace:  "dbbench.",
			GlobalTags: []string{"job:" + cfg.Job},
		}); err == nil {
			b, closer = db, db.Close
		}
		log.WithFields(log.Fields{"backend": "datadog", "addr": cfg.StatsdAddr}).Info("metrics: enabled")
	default:
		log.WithField("backend", cfg.Backend).Warn("metrics: unknown backend; metrics disabled")
		return func() {}
	}
	if err != nil {
		log.WithError(err).Warn("metrics: backend init failed; metrics disabled")
		return func() {}
	}

	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			log.WithError(err).Warn("metrics: flush error")
		}
		if closer != nil {
			if err := closer(); err != nil {
				log.WithError(err).Warn("metrics: close error")
			}
		}
	}
}

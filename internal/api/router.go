// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/autobrr/downloader-exporter/internal/api/handlers"
	apimiddleware "github.com/autobrr/downloader-exporter/internal/api/middleware"
	"github.com/autobrr/downloader-exporter/internal/auth"
	"github.com/autobrr/downloader-exporter/internal/clients"
	"github.com/autobrr/downloader-exporter/internal/metrics"
)

// Dependencies holds all the dependencies needed for the API
type Dependencies struct {
	AuthService    *auth.Service
	ClientPool     *clients.Pool
	MetricsManager *metrics.Manager
	Version        string
	RateLimit      int
}

func newBaseRouter(deps *Dependencies) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apimiddleware.HTTPLogger)
	r.Use(middleware.Recoverer)

	healthHandler := handlers.NewHealthHandler(deps.ClientPool, deps.Version)
	r.Get("/health", healthHandler.ServeHealth)

	return r
}

// NewRouter creates and configures the main application router
func NewRouter(deps *Dependencies) *chi.Mux {
	r := newBaseRouter(deps)
	metricsHandler := handlers.NewMetricsHandler(deps.MetricsManager)

	r.Group(func(r chi.Router) {
		r.Use(apimiddleware.RateLimit(deps.RateLimit))
		r.Use(apimiddleware.BasicAuth(deps.AuthService))
		r.Use(middleware.Compress(5))

		r.Get("/metrics", metricsHandler.ServeMetrics)
		r.Get("/instances/{name}/metrics", metricsHandler.ServeInstanceMetrics)
	})

	return r
}

// NewInstanceRouter serves a single instance on /metrics. Used in multi mode
// where every instance listens on its own port.
func NewInstanceRouter(deps *Dependencies, name string) *chi.Mux {
	r := newBaseRouter(deps)
	metricsHandler := handlers.NewMetricsHandler(deps.MetricsManager)

	r.Group(func(r chi.Router) {
		r.Use(apimiddleware.RateLimit(deps.RateLimit))
		r.Use(apimiddleware.BasicAuth(deps.AuthService))
		r.Use(middleware.Compress(5))

		r.Get("/metrics", metricsHandler.InstanceMetrics(name))
	})

	return r
}

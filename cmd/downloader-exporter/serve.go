// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/downloader-exporter/internal/api"
	"github.com/autobrr/downloader-exporter/internal/auth"
	"github.com/autobrr/downloader-exporter/internal/clients"
	"github.com/autobrr/downloader-exporter/internal/config"
	"github.com/autobrr/downloader-exporter/internal/domain"
	"github.com/autobrr/downloader-exporter/internal/metrics"
)

const shutdownTimeout = 30 * time.Second

type serveOptions struct {
	configDir string
	port      int
	multi     bool
	logPath   string
	pprof     bool
}

type Application struct {
	version string
	opts    serveOptions
}

func NewApplication(version string, opts serveOptions) *Application {
	return &Application{
		version: version,
		opts:    opts,
	}
}

// server is one listener. instance is empty for the server holding every
// instance.
type server struct {
	*http.Server
	instance string
}

func (app *Application) runServer() {
	log.Info().Str("version", app.version).Msg("Starting downloader-exporter")

	// Initialize configuration
	cfg, err := config.New(app.opts.configDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize configuration")
	}

	// Override with CLI flags if provided
	if err := app.applyFlags(cfg); err != nil {
		log.Fatal().Err(err).Msg("Invalid command line flags")
	}

	cfg.ApplyLogConfig()

	current := cfg.Current()
	if len(current.Instances) == 0 {
		log.Warn().Str("config", cfg.ConfigPath()).Msg("No instances configured, only exporter metrics will be served")
	}

	clientPool, err := clients.NewPool(current)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize client pool")
	}
	defer clientPool.Close()

	authService, err := auth.NewService(current.Web)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize auth service")
	}
	if authService.Enabled() {
		log.Info().Str("username", current.Web.Username).Msg("Basic auth enabled on metrics endpoints")
	}

	metricsManager := metrics.NewManager(clientPool, metrics.DefaultScrapeTimeout)

	deps := &api.Dependencies{
		AuthService:    authService,
		ClientPool:     clientPool,
		MetricsManager: metricsManager,
		Version:        app.version,
		RateLimit:      current.Web.RateLimit,
	}

	servers, err := buildServers(current, deps)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure HTTP servers")
	}

	restartRequired := restartNotifier(current)
	cfg.Watch(func(next *domain.Config) {
		if err := clientPool.Reload(next.Instances); err != nil {
			log.Error().Err(err).Msg("Failed to reload instances")
			return
		}
		metricsManager.Prune()

		if restartRequired(next) {
			log.Warn().Msg("Listener, auth or breaker settings changed, restart to apply them")
		}
	})

	for _, srv := range servers {
		go func(srv *server) {
			log.Info().
				Str("address", srv.Addr).
				Str("instance", srv.instance).
				Dur("readTimeout", srv.ReadTimeout).
				Dur("writeTimeout", srv.WriteTimeout).
				Dur("idleTimeout", srv.IdleTimeout).
				Msg("Starting HTTP server")

			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal().Err(err).Str("address", srv.Addr).Msg("Server failed")
			}
		}(srv)
	}

	// Start profiling server if enabled
	if current.PprofEnabled {
		go func() {
			log.Info().Msg("Starting pprof server on :6060")
			log.Info().Msg("Access profiling at: http://localhost:6060/debug/pprof/")
			if err := http.ListenAndServe(":6060", nil); err != nil {
				log.Error().Err(err).Msg("Profiling server failed")
			}
		}()
	}

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := shutdown(ctx, servers); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

// applyFlags layers the command line flags over the config file
func (app *Application) applyFlags(cfg *config.AppConfig) error {
	overrides := map[string]any{}
	if app.opts.port != 0 {
		overrides["port"] = app.opts.port
	}
	if app.opts.multi {
		overrides["multi"] = true
	}
	if app.opts.logPath != "" {
		overrides["logPath"] = app.opts.logPath
	}
	if app.opts.pprof {
		overrides["pprofEnabled"] = true
	}

	for key, value := range overrides {
		if err := cfg.Set(key, value); err != nil {
			return fmt.Errorf("override %s: %w", key, err)
		}
	}
	return nil
}

// buildServers returns one server for all instances, or in multi mode one
// server per instance on port + index in name order
func buildServers(cfg *domain.Config, deps *api.Dependencies) ([]*server, error) {
	if !cfg.Multi {
		return []*server{newServer(cfg, cfg.Port, "", api.NewRouter(deps))}, nil
	}

	names := deps.ClientPool.Names()
	if len(names) == 0 {
		log.Warn().Msg("Multi mode without instances, no server started")
	}

	servers := make([]*server, 0, len(names))
	for i, name := range names {
		port := cfg.Port + i
		if port > 65535 {
			return nil, fmt.Errorf("instance %s: port %d out of range", name, port)
		}
		servers = append(servers, newServer(cfg, port, name, api.NewInstanceRouter(deps, name)))
	}
	return servers, nil
}

func newServer(cfg *domain.Config, port int, instance string, handler http.Handler) *server {
	readTimeout := time.Duration(cfg.HTTPTimeouts.ReadTimeout) * time.Second
	writeTimeout := time.Duration(cfg.HTTPTimeouts.WriteTimeout) * time.Second
	idleTimeout := time.Duration(cfg.HTTPTimeouts.IdleTimeout) * time.Second

	// Use defaults if not configured
	if readTimeout == 0 {
		readTimeout = 15 * time.Second
	}
	if writeTimeout == 0 {
		writeTimeout = 60 * time.Second
	}
	if idleTimeout == 0 {
		idleTimeout = 120 * time.Second
	}

	return &server{
		Server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, port),
			Handler:      handler,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			IdleTimeout:  idleTimeout,
		},
		instance: instance,
	}
}

// needsRestart reports changes a running server cannot pick up. Instances are
// reloaded in place unless multi mode ties them to listeners.
func needsRestart(prev, next *domain.Config) bool {
	if prev.Host != next.Host || prev.Port != next.Port || prev.Multi != next.Multi {
		return true
	}
	if prev.HTTPTimeouts != next.HTTPTimeouts || prev.Web != next.Web || prev.Breaker != next.Breaker {
		return true
	}
	if prev.VersionCacheTTL != next.VersionCacheTTL {
		return true
	}
	if next.Multi {
		return !slices.Equal(slices.Sorted(maps.Keys(prev.Instances)), slices.Sorted(maps.Keys(next.Instances)))
	}
	return false
}

// restartNotifier returns a check that reports a reload needing a restart
// once per change: every call compares against the previously reloaded
// config, not the one the servers started with.
func restartNotifier(initial *domain.Config) func(next *domain.Config) bool {
	last := initial
	return func(next *domain.Config) bool {
		changed := needsRestart(last, next)
		last = next
		return changed
	}
}

// shutdown stops every server within the grace period of ctx
func shutdown(ctx context.Context, servers []*server) error {
	var errs []error
	for _, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", srv.Addr, err))
		}
	}
	return errors.Join(errs...)
}

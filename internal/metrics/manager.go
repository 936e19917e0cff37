// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/downloader-exporter/internal/clients"
)

type Manager struct {
	source    InstanceSource
	timeout   time.Duration
	registry  *prometheus.Registry
	collector *DownloaderCollector

	mu        sync.Mutex
	instances map[string]*prometheus.Registry
}

// NewManager registers a collector over every instance of source plus the Go
// runtime and process collectors
func NewManager(source InstanceSource, timeout time.Duration) *Manager {
	registry := prometheus.NewRegistry()

	collector := NewDownloaderCollector(source, "").WithTimeout(timeout)
	registry.MustRegister(collector)
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	log.Info().Msg("Metrics manager initialized with downloader collector")

	return &Manager{
		source:    source,
		timeout:   timeout,
		registry:  registry,
		collector: collector,
		instances: make(map[string]*prometheus.Registry),
	}
}

func (m *Manager) GetRegistry() *prometheus.Registry {
	return m.registry
}

// InstanceRegistry returns a registry holding only the named instance. It is
// created on first use and kept until the instance disappears.
func (m *Manager) InstanceRegistry(name string) (*prometheus.Registry, error) {
	if !slices.Contains(m.source.Names(), name) {
		return nil, clients.ErrInstanceNotFound
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if registry, ok := m.instances[name]; ok {
		return registry, nil
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(NewDownloaderCollector(m.source, name).WithTimeout(m.timeout))
	m.instances[name] = registry

	return registry, nil
}

// Prune drops instance registries and self metric series of instances no
// longer configured
func (m *Manager) Prune() {
	names := m.source.Names()
	m.collector.Forget(names)

	m.mu.Lock()
	defer m.mu.Unlock()

	for name := range m.instances {
		if !slices.Contains(names, name) {
			delete(m.instances, name)
		}
	}
}

// Handler serves every instance
func (m *Manager) Handler() http.Handler {
	return newHandler(m.registry)
}

// InstanceHandler serves a single instance
func (m *Manager) InstanceHandler(name string) (http.Handler, error) {
	registry, err := m.InstanceRegistry(name)
	if err != nil {
		return nil, err
	}
	return newHandler(registry), nil
}

func newHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(
		registry,
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
			ErrorHandling:     promhttp.ContinueOnError,
			ErrorLog:          promLogger{},
		},
	)
}

// promLogger forwards promhttp errors to zerolog
type promLogger struct{}

func (promLogger) Println(v ...any) {
	log.Error().Str("error", fmt.Sprint(v...)).Msg("Failed to serve metrics")
}

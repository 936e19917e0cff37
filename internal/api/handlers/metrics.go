// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/downloader-exporter/internal/clients"
	"github.com/autobrr/downloader-exporter/internal/metrics"
)

type MetricsHandler struct {
	manager *metrics.Manager
	handler http.Handler
}

func NewMetricsHandler(manager *metrics.Manager) *MetricsHandler {
	return &MetricsHandler{
		manager: manager,
		handler: manager.Handler(),
	}
}

func (h *MetricsHandler) ServeMetrics(w http.ResponseWriter, r *http.Request) {
	log.Debug().Msg("Serving Prometheus metrics")
	h.handler.ServeHTTP(w, r)
}

// ServeInstanceMetrics serves the metrics of the instance named in the path
func (h *MetricsHandler) ServeInstanceMetrics(w http.ResponseWriter, r *http.Request) {
	h.serveInstance(w, r, chi.URLParam(r, "name"))
}

// InstanceMetrics serves the metrics of a fixed instance
func (h *MetricsHandler) InstanceMetrics(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.serveInstance(w, r, name)
	}
}

func (h *MetricsHandler) serveInstance(w http.ResponseWriter, r *http.Request, name string) {
	handler, err := h.manager.InstanceHandler(name)
	if err != nil {
		if errors.Is(err, clients.ErrInstanceNotFound) {
			RespondError(w, http.StatusNotFound, "instance not found")
			return
		}
		log.Error().Err(err).Str("instance", name).Msg("Failed to build instance metrics handler")
		RespondError(w, http.StatusInternalServerError, "failed to serve metrics")
		return
	}

	log.Debug().Str("instance", name).Msg("Serving Prometheus metrics")
	handler.ServeHTTP(w, r)
}

// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"
)

// InstanceLister is the part of the client pool the health check reads
type InstanceLister interface {
	Names() []string
	Stats() map[string]any
}

type HealthHandler struct {
	instances InstanceLister
	version   string
}

func NewHealthHandler(instances InstanceLister, version string) *HealthHandler {
	return &HealthHandler{instances: instances, version: version}
}

// ServeHealth reports liveness of the exporter itself, never of the clients
func (h *HealthHandler) ServeHealth(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"version":   h.version,
		"instances": h.instances.Names(),
		"pool":      h.instances.Stats(),
	})
}

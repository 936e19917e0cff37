// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/downloader-exporter/internal/api"
	"github.com/autobrr/downloader-exporter/internal/auth"
	"github.com/autobrr/downloader-exporter/internal/clients"
	"github.com/autobrr/downloader-exporter/internal/domain"
	"github.com/autobrr/downloader-exporter/internal/metrics"
)

func newTestConfig(multi bool) *domain.Config {
	return &domain.Config{
		Host:  "127.0.0.1",
		Port:  9000,
		Multi: multi,
		Instances: map[string]domain.InstanceConfig{
			"qbit":   {Name: "qbit", Client: domain.ClientQbittorrent, Host: "127.0.0.1:1", Timeout: 1},
			"trans":  {Name: "trans", Client: domain.ClientTransmission, Host: "127.0.0.1:1", Timeout: 1},
			"deluge": {Name: "deluge", Client: domain.ClientDeluge, Host: "127.0.0.1:1", Timeout: 1, Retry: 1},
		},
	}
}

func newTestDependencies(t *testing.T, cfg *domain.Config) *api.Dependencies {
	t.Helper()

	pool, err := clients.NewPool(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	authService, err := auth.NewService(cfg.Web)
	require.NoError(t, err)

	return &api.Dependencies{
		AuthService:    authService,
		ClientPool:     pool,
		MetricsManager: metrics.NewManager(pool, time.Second),
		Version:        "dev",
	}
}

func TestBuildServers(t *testing.T) {
	tests := []struct {
		name          string
		multi         bool
		wantAddrs     []string
		wantInstances []string
	}{
		{
			name:          "single_listener",
			multi:         false,
			wantAddrs:     []string{"127.0.0.1:9000"},
			wantInstances: []string{""},
		},
		{
			name:          "multi_in_name_order",
			multi:         true,
			wantAddrs:     []string{"127.0.0.1:9000", "127.0.0.1:9001", "127.0.0.1:9002"},
			wantInstances: []string{"deluge", "qbit", "trans"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newTestConfig(tt.multi)
			servers, err := buildServers(cfg, newTestDependencies(t, cfg))
			require.NoError(t, err)

			var addrs, instances []string
			for _, srv := range servers {
				addrs = append(addrs, srv.Addr)
				instances = append(instances, srv.instance)

				assert.Equal(t, 15*time.Second, srv.ReadTimeout)
				assert.Equal(t, 60*time.Second, srv.WriteTimeout)
				assert.Equal(t, 120*time.Second, srv.IdleTimeout)
			}
			assert.Equal(t, tt.wantAddrs, addrs)
			assert.Equal(t, tt.wantInstances, instances)
		})
	}
}

func TestBuildServers_PortOverflow(t *testing.T) {
	cfg := newTestConfig(true)
	cfg.Port = 65535

	_, err := buildServers(cfg, newTestDependencies(t, cfg))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port 65536 out of range")
}

func TestBuildServers_MultiServesOneInstance(t *testing.T) {
	cfg := newTestConfig(true)
	servers, err := buildServers(cfg, newTestDependencies(t, cfg))
	require.NoError(t, err)
	require.Len(t, servers, 3)

	rec := httptest.NewRecorder()
	servers[1].Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `name="qbit"`)
	assert.NotContains(t, body, `name="trans"`)
	assert.NotContains(t, body, `name="deluge"`)
}

func TestNewServer_ConfiguredTimeouts(t *testing.T) {
	cfg := &domain.Config{
		Host:         "0.0.0.0",
		HTTPTimeouts: domain.HTTPTimeouts{ReadTimeout: 5, WriteTimeout: 10, IdleTimeout: 20},
	}

	srv := newServer(cfg, 9100, "qbit", http.NotFoundHandler())
	assert.Equal(t, "0.0.0.0:9100", srv.Addr)
	assert.Equal(t, "qbit", srv.instance)
	assert.Equal(t, 5*time.Second, srv.ReadTimeout)
	assert.Equal(t, 10*time.Second, srv.WriteTimeout)
	assert.Equal(t, 20*time.Second, srv.IdleTimeout)
}

func TestNeedsRestart(t *testing.T) {
	tests := []struct {
		name   string
		multi  bool
		mutate func(cfg *domain.Config)
		want   bool
	}{
		{
			name:   "unchanged",
			mutate: func(cfg *domain.Config) {},
			want:   false,
		},
		{
			name: "instance_added",
			mutate: func(cfg *domain.Config) {
				cfg.Instances["new"] = domain.InstanceConfig{Name: "new", Client: domain.ClientDeluge, Host: "localhost"}
			},
			want: false,
		},
		{
			name:  "instance_added_in_multi_mode",
			multi: true,
			mutate: func(cfg *domain.Config) {
				cfg.Instances["new"] = domain.InstanceConfig{Name: "new", Client: domain.ClientDeluge, Host: "localhost"}
			},
			want: true,
		},
		{
			name:  "instance_edited_in_multi_mode",
			multi: true,
			mutate: func(cfg *domain.Config) {
				cfg.Instances["qbit"] = domain.InstanceConfig{Name: "qbit", Client: domain.ClientQbittorrent, Host: "10.0.0.1"}
			},
			want: false,
		},
		{
			name:   "port_changed",
			mutate: func(cfg *domain.Config) { cfg.Port = 9100 },
			want:   true,
		},
		{
			name:   "auth_changed",
			mutate: func(cfg *domain.Config) { cfg.Web.Username = "prometheus" },
			want:   true,
		},
		{
			name:   "breaker_changed",
			mutate: func(cfg *domain.Config) { cfg.Breaker.ConsecutiveFailures = 1 },
			want:   true,
		},
		{
			name:   "log_level_changed",
			mutate: func(cfg *domain.Config) { cfg.LogLevel = "DEBUG" },
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := newTestConfig(tt.multi)
			next := newTestConfig(tt.multi)
			tt.mutate(next)

			assert.Equal(t, tt.want, needsRestart(prev, next))
		})
	}
}

func TestRestartNotifier(t *testing.T) {
	restartRequired := restartNotifier(newTestConfig(false))

	moved := newTestConfig(false)
	moved.Port = 9100
	assert.True(t, restartRequired(moved), "port change")

	relogged := newTestConfig(false)
	relogged.Port = 9100
	relogged.LogLevel = "DEBUG"
	assert.False(t, restartRequired(relogged), "already reported")

	back := newTestConfig(false)
	assert.True(t, restartRequired(back), "port change reverted")
}

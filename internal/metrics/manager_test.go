// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"context"
	"errors"
	"maps"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/downloader-exporter/internal/clients"
	"github.com/autobrr/downloader-exporter/internal/domain"
	"github.com/autobrr/downloader-exporter/internal/downloader"
)

type fakeClient struct {
	statusErr   error
	torrentsErr error
}

func (c *fakeClient) Status(context.Context) (*downloader.Snapshot, error) {
	if c.statusErr != nil {
		return nil, c.statusErr
	}
	return &downloader.Snapshot{
		Connected:       true,
		Version:         "v4.6.3",
		DownloadedBytes: 1000,
		UploadedBytes:   2000,
		DownloadRate:    10,
		UploadRate:      20,
	}, nil
}

func (c *fakeClient) Torrents(context.Context) ([]downloader.Torrent, error) {
	if c.torrentsErr != nil {
		return nil, c.torrentsErr
	}
	return []downloader.Torrent{
		{Name: "a", Status: "downloading", Category: "movies", Tracker: "https://tracker1.com/announce", Uploaded: 100},
		{Name: "b", Status: "downloading", Category: "movies", Tracker: "https://tracker1.com/announce", Uploaded: 50},
		{Name: "c", Status: "uploading", Uploaded: 25},
	}, nil
}

func (c *fakeClient) Close() error {
	return nil
}

type fakeConnector struct {
	instance   domain.InstanceConfig
	client     *fakeClient
	connectErr error
}

func (f *fakeConnector) Instance() domain.InstanceConfig {
	return f.instance
}

func (f *fakeConnector) Connect(context.Context) (downloader.Client, error) {
	if f.connectErr != nil {
		return nil, f.connectErr
	}
	return f.client, nil
}

type fakeSource struct {
	conns map[string]*clients.BreakerConnector
}

func (s *fakeSource) Names() []string {
	return slices.Sorted(maps.Keys(s.conns))
}

func (s *fakeSource) Get(name string) (*clients.BreakerConnector, error) {
	conn, ok := s.conns[name]
	if !ok {
		return nil, clients.ErrInstanceNotFound
	}
	return conn, nil
}

func (s *fakeSource) Version(_ string, res *downloader.Result) string {
	return downloader.CleanVersion(res.Snapshot.Version)
}

func newFakeSource(conns ...*fakeConnector) *fakeSource {
	s := &fakeSource{conns: make(map[string]*clients.BreakerConnector)}
	for _, c := range conns {
		s.conns[c.instance.Name] = clients.NewBreakerConnector(c, domain.BreakerConfig{Timeout: time.Hour})
	}
	return s
}

func qbitConnector(client *fakeClient) *fakeConnector {
	return &fakeConnector{
		instance: domain.InstanceConfig{Name: "qbit", Client: domain.ClientQbittorrent, Host: "localhost:8080"},
		client:   client,
	}
}

func TestNewManager(t *testing.T) {
	manager := NewManager(newFakeSource(), time.Second)

	assert.NotNil(t, manager)
	assert.NotNil(t, manager.registry)
	assert.NotNil(t, manager.collector)
	assert.IsType(t, &prometheus.Registry{}, manager.GetRegistry())
}

func TestManager_RegistryIsolation(t *testing.T) {
	manager1 := NewManager(newFakeSource(), time.Second)
	manager2 := NewManager(newFakeSource(), time.Second)

	assert.NotSame(t, manager1.registry, manager2.registry, "Each manager should have its own registry")
	assert.NotSame(t, manager1.collector, manager2.collector, "Each manager should have its own collector")
}

func TestManager_MetricsCanBeScraped(t *testing.T) {
	manager := NewManager(newFakeSource(qbitConnector(&fakeClient{})), time.Second)

	families, err := manager.GetRegistry().Gather()
	require.NoError(t, err)

	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "downloader_up")
	assert.Contains(t, names, "downloader_torrents_count")
	assert.Contains(t, names, "go_goroutines")
}

func TestManager_InstanceRegistry(t *testing.T) {
	tr := &fakeConnector{
		instance: domain.InstanceConfig{Name: "tr", Client: domain.ClientTransmission, Host: "localhost"},
		client:   &fakeClient{},
	}
	source := newFakeSource(qbitConnector(&fakeClient{}), tr)
	manager := NewManager(source, time.Second)

	registry, err := manager.InstanceRegistry("tr")
	require.NoError(t, err)

	again, err := manager.InstanceRegistry("tr")
	require.NoError(t, err)
	assert.Same(t, registry, again)

	count := testutil.CollectAndCount(registry, "downloader_up")
	assert.Equal(t, 1, count, "instance registry only holds its own instance")

	_, err = manager.InstanceRegistry("missing")
	assert.ErrorIs(t, err, clients.ErrInstanceNotFound)

	delete(source.conns, "tr")
	manager.Prune()
	assert.NotContains(t, manager.instances, "tr")
}

func TestManager_Handler(t *testing.T) {
	manager := NewManager(newFakeSource(qbitConnector(&fakeClient{})), time.Second)

	rec := httptest.NewRecorder()
	manager.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `downloader_up{client="qbittorrent",host="localhost:8080",name="qbit",version="4.6.3"} 1`)
	assert.Contains(t, body, "downloader_tracker_upload_bytes_total")

	handler, err := manager.InstanceHandler("qbit")
	require.NoError(t, err)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/instances/qbit/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "downloader_torrents_count"))

	_, err = manager.InstanceHandler("nope")
	assert.True(t, errors.Is(err, clients.ErrInstanceNotFound))
}

func TestManager_PruneForgetsSelfMetrics(t *testing.T) {
	tr := &fakeConnector{
		instance: domain.InstanceConfig{Name: "tr", Client: domain.ClientTransmission, Host: "localhost"},
		client:   &fakeClient{},
	}
	source := newFakeSource(qbitConnector(&fakeClient{}), tr)
	manager := NewManager(source, time.Second)

	assert.Equal(t, 2, testutil.CollectAndCount(manager.collector, "downloader_exporter_scrape_duration_seconds"))

	delete(source.conns, "tr")
	manager.Prune()

	assert.Equal(t, 1, testutil.CollectAndCount(manager.collector, "downloader_exporter_scrape_duration_seconds"),
		"removed instances stop reporting scrape durations")
}

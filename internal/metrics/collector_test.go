// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloaderCollector_Describe(t *testing.T) {
	collector := NewDownloaderCollector(newFakeSource(), "")

	descChan := make(chan *prometheus.Desc, 20)
	collector.Describe(descChan)
	close(descChan)

	var descs []*prometheus.Desc
	for desc := range descChan {
		descs = append(descs, desc)
	}

	// families plus scrape duration, scrape errors and breaker state
	assert.Len(t, descs, len(families)+3)
}

func TestDownloaderCollector_NoInstances(t *testing.T) {
	collector := NewDownloaderCollector(newFakeSource(), "")

	registry := prometheus.NewRegistry()
	registry.MustRegister(collector)

	assert.Equal(t, 0, testutil.CollectAndCount(registry), "Should collect 0 metrics without instances")
}

func TestDownloaderCollector_Healthy(t *testing.T) {
	collector := NewDownloaderCollector(newFakeSource(qbitConnector(&fakeClient{})), "")

	expected := `
# HELP downloader_torrents_count Number of torrents by status, category and tracker
# TYPE downloader_torrents_count gauge
downloader_torrents_count{category="Uncategorized",client="qbittorrent",host="localhost:8080",name="qbit",status="uploading",tracker="unknown.tracker",version="4.6.3"} 1
downloader_torrents_count{category="movies",client="qbittorrent",host="localhost:8080",name="qbit",status="downloading",tracker="tracker1.com",version="4.6.3"} 2
# HELP downloader_tracker_upload_bytes_total Data uploaded by all torrents of a tracker (bytes)
# TYPE downloader_tracker_upload_bytes_total counter
downloader_tracker_upload_bytes_total{client="qbittorrent",host="localhost:8080",name="qbit",tracker="tracker1.com",version="4.6.3"} 150
downloader_tracker_upload_bytes_total{client="qbittorrent",host="localhost:8080",name="qbit",tracker="unknown.tracker",version="4.6.3"} 25
# HELP downloader_up Whether the client is reachable
# TYPE downloader_up gauge
downloader_up{client="qbittorrent",host="localhost:8080",name="qbit",version="4.6.3"} 1
# HELP downloader_upload_bytes_total Data uploaded this session (bytes)
# TYPE downloader_upload_bytes_total counter
downloader_upload_bytes_total{client="qbittorrent",host="localhost:8080",name="qbit",version="4.6.3"} 2000
# HELP downloader_exporter_breaker_state Circuit breaker state of an instance (0=closed, 1=half-open, 2=open)
# TYPE downloader_exporter_breaker_state gauge
downloader_exporter_breaker_state{name="qbit"} 0
`

	err := testutil.CollectAndCompare(collector, strings.NewReader(expected),
		"downloader_torrents_count",
		"downloader_tracker_upload_bytes_total",
		"downloader_up",
		"downloader_upload_bytes_total",
		"downloader_exporter_breaker_state",
	)
	require.NoError(t, err)
}

func TestDownloaderCollector_ListingFailure(t *testing.T) {
	newCollector := func() *DownloaderCollector {
		return NewDownloaderCollector(newFakeSource(qbitConnector(&fakeClient{torrentsErr: errors.New("timeout")})), "")
	}

	expected := `
# HELP downloader_exporter_scrape_errors_total Total number of failed poll stages by instance
# TYPE downloader_exporter_scrape_errors_total counter
downloader_exporter_scrape_errors_total{name="qbit",stage="torrents"} 1
`
	err := testutil.CollectAndCompare(newCollector(), strings.NewReader(expected), "downloader_exporter_scrape_errors_total")
	require.NoError(t, err)

	collector := newCollector()
	assert.Equal(t, 0, testutil.CollectAndCount(collector, "downloader_torrents_count"))
	assert.Equal(t, 1, testutil.CollectAndCount(collector, "downloader_up"))
	assert.Equal(t, 1, testutil.CollectAndCount(collector, "downloader_download_speed_bytes"))
}

func TestDownloaderCollector_StatusFailure(t *testing.T) {
	collector := NewDownloaderCollector(newFakeSource(qbitConnector(&fakeClient{statusErr: errors.New("unauthorized")})), "")

	expected := `
# HELP downloader_up Whether the client is reachable
# TYPE downloader_up gauge
downloader_up{client="qbittorrent",host="localhost:8080",name="qbit",version=""} 0
# HELP downloader_download_speed_bytes Data download speed (bytes)
# TYPE downloader_download_speed_bytes gauge
downloader_download_speed_bytes{client="qbittorrent",host="localhost:8080",name="qbit",version=""} 0
`
	err := testutil.CollectAndCompare(collector, strings.NewReader(expected), "downloader_up", "downloader_download_speed_bytes")
	require.NoError(t, err)
	assert.Equal(t, 2, testutil.CollectAndCount(collector, "downloader_torrents_count"))
}

func TestDownloaderCollector_ConnectFailure(t *testing.T) {
	conn := qbitConnector(nil)
	conn.connectErr = errors.New("connection refused")
	collector := NewDownloaderCollector(newFakeSource(conn), "")

	assert.Equal(t, 1, testutil.CollectAndCount(collector, "downloader_up"))
	assert.Equal(t, 0, testutil.CollectAndCount(collector, "downloader_torrents_count"))
	assert.Equal(t, 1, testutil.CollectAndCount(collector, "downloader_exporter_scrape_errors_total"))
}

func TestDownloaderCollector_Only(t *testing.T) {
	other := qbitConnector(&fakeClient{})
	other.instance.Name = "other"
	collector := NewDownloaderCollector(newFakeSource(qbitConnector(&fakeClient{}), other), "other")

	expected := `
# HELP downloader_up Whether the client is reachable
# TYPE downloader_up gauge
downloader_up{client="qbittorrent",host="localhost:8080",name="other",version="4.6.3"} 1
`
	err := testutil.CollectAndCompare(collector, strings.NewReader(expected), "downloader_up")
	require.NoError(t, err)
}

func BenchmarkDownloaderCollector_Describe(b *testing.B) {
	collector := NewDownloaderCollector(newFakeSource(), "")
	descChan := make(chan *prometheus.Desc, 20)

	for b.Loop() {
		collector.Describe(descChan)
		// Drain channel
		for len(descChan) > 0 {
			<-descChan
		}
	}
}

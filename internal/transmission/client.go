// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package transmission

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hekmon/transmissionrpc/v3"

	"github.com/autobrr/downloader-exporter/internal/domain"
	"github.com/autobrr/downloader-exporter/internal/downloader"
)

const (
	DefaultPort    = 9091
	DefaultPath    = "/transmission/rpc"
	DefaultTimeout = 4 * time.Second

	userAgent = "downloader-exporter"
)

var torrentFields = []string{"name", "status", "error", "isStalled", "isFinished", "labels", "trackers", "uploadedEver"}

// Connector builds RPC clients for one Transmission instance
type Connector struct {
	instance domain.InstanceConfig
}

func NewConnector(instance domain.InstanceConfig) *Connector {
	return &Connector{instance: instance}
}

func (c *Connector) Instance() domain.InstanceConfig {
	return c.instance
}

// Endpoint returns the RPC URL with credentials attached
func (c *Connector) Endpoint() *url.URL {
	endpoint := downloader.ParseAddress(c.instance.Host, DefaultPort)
	if endpoint.Path == "" {
		endpoint.Path = DefaultPath
	}

	u := endpoint.URL()
	if c.instance.Username != "" || c.instance.Password != "" {
		u.User = url.UserPassword(c.instance.Username, c.instance.Password)
	}
	return u
}

// Connect creates the RPC client. Transmission is stateless over HTTP so no
// request is made until the first call.
func (c *Connector) Connect(_ context.Context) (downloader.Client, error) {
	httpClient := &http.Client{
		Timeout: c.instance.TimeoutOr(DefaultTimeout),
		Transport: &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{InsecureSkipVerify: !c.instance.VerifySSL},
		},
	}

	client, err := transmissionrpc.New(c.Endpoint(), &transmissionrpc.Config{
		CustomClient: httpClient,
		UserAgent:    userAgent,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create transmission client: %w", err)
	}

	return &Client{client: client, httpClient: httpClient}, nil
}

// Client is an RPC client owned by a single poll
type Client struct {
	client     *transmissionrpc.Client
	httpClient *http.Client
}

func (c *Client) Status(ctx context.Context) (*downloader.Snapshot, error) {
	session, err := c.client.SessionArgumentsGet(ctx, []string{"version"})
	if err != nil {
		return nil, fmt.Errorf("failed to get session arguments: %w", err)
	}

	stats, err := c.client.SessionStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get session stats: %w", err)
	}

	snapshot := &downloader.Snapshot{
		Connected:       true,
		DownloadedBytes: stats.CumulativeStats.DownloadedBytes,
		UploadedBytes:   stats.CumulativeStats.UploadedBytes,
		DownloadRate:    stats.DownloadSpeed,
		UploadRate:      stats.UploadSpeed,
	}
	if session.Version != nil {
		snapshot.Version = *session.Version
	}

	return snapshot, nil
}

func (c *Client) Torrents(ctx context.Context) ([]downloader.Torrent, error) {
	torrents, err := c.client.TorrentGet(ctx, torrentFields, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get torrents: %w", err)
	}

	out := make([]downloader.Torrent, 0, len(torrents))
	for _, t := range torrents {
		torrent := downloader.Torrent{Status: statusToken(t)}
		if t.Name != nil {
			torrent.Name = *t.Name
		}
		if len(t.Labels) > 0 {
			torrent.Category = t.Labels[0]
		}
		if len(t.Trackers) > 0 {
			torrent.Tracker = t.Trackers[0].Announce
		}
		if t.UploadedEver != nil {
			torrent.Uploaded = *t.UploadedEver
		}
		out = append(out, torrent)
	}

	return out, nil
}

func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// statusToken maps the numeric torrent status onto the vocabulary the
// normalizer knows. Errors, stalls and finished seeds take precedence.
func statusToken(t transmissionrpc.Torrent) string {
	if t.Error != nil && *t.Error != 0 {
		return "error"
	}
	if t.Status == nil {
		return ""
	}

	status := *t.Status
	switch {
	case status == transmissionrpc.TorrentStatusStopped && t.IsFinished != nil && *t.IsFinished:
		return "finished"
	case (status == transmissionrpc.TorrentStatusDownload || status == transmissionrpc.TorrentStatusSeed) && t.IsStalled != nil && *t.IsStalled:
		return "stalled"
	}

	switch status {
	case transmissionrpc.TorrentStatusStopped:
		return "stopped"
	case transmissionrpc.TorrentStatusCheckWait:
		return "check pending"
	case transmissionrpc.TorrentStatusCheck:
		return "checking"
	case transmissionrpc.TorrentStatusDownloadWait:
		return "download pending"
	case transmissionrpc.TorrentStatusDownload:
		return "downloading"
	case transmissionrpc.TorrentStatusSeedWait:
		return "seed pending"
	case transmissionrpc.TorrentStatusSeed:
		return "seeding"
	default:
		return "unknown"
	}
}

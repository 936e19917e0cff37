// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package deluge

import (
	"context"
	"fmt"
	"time"

	"github.com/autobrr/go-deluge"
	"github.com/avast/retry-go"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/downloader-exporter/internal/domain"
	"github.com/autobrr/downloader-exporter/internal/downloader"
)

const (
	DefaultPort    = 58846
	DefaultRetry   = 3
	DefaultTimeout = 10 * time.Second

	retryDelay = 300 * time.Millisecond
)

// Connector opens daemon RPC sessions against one Deluge instance
type Connector struct {
	instance domain.InstanceConfig
}

func NewConnector(instance domain.InstanceConfig) *Connector {
	return &Connector{instance: instance}
}

func (c *Connector) Instance() domain.InstanceConfig {
	return c.instance
}

// Settings builds the daemon RPC settings. The daemon always speaks TLS so
// the endpoint scheme is ignored.
func (c *Connector) Settings() deluge.Settings {
	endpoint := downloader.ParseAddress(c.instance.Host, DefaultPort)

	return deluge.Settings{
		Hostname:         endpoint.Host,
		Port:             uint(endpoint.Port),
		Login:            c.instance.Username,
		Password:         c.instance.Password,
		ReadWriteTimeout: c.instance.TimeoutOr(DefaultTimeout),
	}
}

func (c *Connector) attempts() int {
	if c.instance.Retry <= 0 {
		return DefaultRetry
	}
	return c.instance.Retry
}

// Connect dials and authenticates against the daemon, retrying transient
// failures.
func (c *Connector) Connect(ctx context.Context) (downloader.Client, error) {
	client := deluge.NewV2(c.Settings())
	attempts := c.attempts()

	if _, err := withRetry(ctx, attempts, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, client.Connect(ctx)
	}); err != nil {
		return nil, fmt.Errorf("cannot connect to deluge client %s after %d attempts: %w", c.instance.Name, attempts, err)
	}

	return &Client{client: client, attempts: attempts, name: c.instance.Name}, nil
}

// Client is a daemon RPC session owned by a single poll
type Client struct {
	client   *deluge.ClientV2
	attempts int
	name     string
}

// Status reads the daemon and libtorrent versions plus the session totals
func (c *Client) Status(ctx context.Context) (*downloader.Snapshot, error) {
	version, err := withRetry(ctx, c.attempts, c.client.DaemonVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to get daemon version: %w", err)
	}

	ltVersion, err := withRetry(ctx, c.attempts, c.client.GetLibtorrentVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to get libtorrent version: %w", err)
	}

	status, err := withRetry(ctx, c.attempts, c.client.GetSessionStatus)
	if err != nil {
		return nil, fmt.Errorf("failed to get session status: %w", err)
	}

	return snapshotFromSession(version, ltVersion, status), nil
}

// Torrents lists every torrent. Categories come from the label plugin and
// stay empty when it is disabled.
func (c *Client) Torrents(ctx context.Context) ([]downloader.Torrent, error) {
	statuses, err := withRetry(ctx, c.attempts, func(ctx context.Context) (map[string]*deluge.TorrentStatus, error) {
		return c.client.TorrentsStatus(ctx, deluge.StateUnspecified, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get torrents status: %w", err)
	}

	return torrentsFromStatus(statuses, c.labels(ctx)), nil
}

func (c *Client) labels(ctx context.Context) map[string]string {
	plugin, err := c.client.LabelPlugin(ctx)
	if err != nil || plugin == nil {
		log.Debug().Err(err).Str("instance", c.name).Msg("Label plugin unavailable, torrents are uncategorized")
		return nil
	}

	return torrentLabels(plugin, c.name)
}

// labelLister is the part of the label plugin that maps torrent ids to labels
type labelLister interface {
	GetTorrentsLabels(state deluge.TorrentState, ids []string) (map[string]string, error)
}

var _ labelLister = (*deluge.LabelPlugin)(nil)

func torrentLabels(plugin labelLister, name string) map[string]string {
	labels, err := plugin.GetTorrentsLabels(deluge.StateUnspecified, nil)
	if err != nil {
		log.Warn().Err(err).Str("instance", name).Msg("Failed to get torrent labels")
		return nil
	}

	return labels
}

func (c *Client) Close() error {
	return c.client.Close()
}

func snapshotFromSession(version, ltVersion string, status *deluge.SessionStatus) *downloader.Snapshot {
	snapshot := &downloader.Snapshot{
		Connected:         status != nil,
		Version:           version,
		LibtorrentVersion: ltVersion,
	}
	if status == nil {
		return snapshot
	}

	snapshot.DownloadedBytes = status.TotalDownload
	snapshot.UploadedBytes = status.TotalUpload
	snapshot.DownloadRate = int64(status.DownloadRate)
	snapshot.UploadRate = int64(status.UploadRate)

	return snapshot
}

// torrentsFromStatus converts the daemon listing
func torrentsFromStatus(statuses map[string]*deluge.TorrentStatus, labels map[string]string) []downloader.Torrent {
	out := make([]downloader.Torrent, 0, len(statuses))
	for id, s := range statuses {
		if s == nil {
			continue
		}

		out = append(out, downloader.Torrent{
			Name:     s.Name,
			Status:   s.State,
			Category: labels[id],
			Tracker:  s.TrackerHost,
			Uploaded: s.TotalUploaded,
		})
	}
	return out
}

// withRetry runs fn up to attempts times with a fixed delay, stopping early
// when ctx is done.
func withRetry[T any](ctx context.Context, attempts int, fn func(context.Context) (T, error)) (T, error) {
	var out T

	err := retry.Do(
		func() error {
			v, err := fn(ctx)
			if err != nil {
				return err
			}
			out = v
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(max(attempts, 1))),
		retry.Delay(retryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)

	return out, err
}

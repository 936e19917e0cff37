// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package qbittorrent

import (
	"context"
	"fmt"
	"time"

	qbt "github.com/autobrr/go-qbittorrent"

	"github.com/autobrr/downloader-exporter/internal/domain"
	"github.com/autobrr/downloader-exporter/internal/downloader"
)

// DefaultTimeout matches the Web API client timeout used for large instances
const DefaultTimeout = 30 * time.Second

const connectionStatusDisconnected = "disconnected"

// Connector opens Web API sessions against one qBittorrent instance
type Connector struct {
	instance domain.InstanceConfig
}

// NewConnector creates a connector for a qBittorrent instance
func NewConnector(instance domain.InstanceConfig) *Connector {
	return &Connector{instance: instance}
}

func (c *Connector) Instance() domain.InstanceConfig {
	return c.instance
}

// Config builds the Web API client configuration for the instance
func (c *Connector) Config() qbt.Config {
	endpoint := downloader.ParseAddress(c.instance.Host, 0)

	cfg := qbt.Config{
		Host:          endpoint.URL().String(),
		Username:      c.instance.Username,
		Password:      c.instance.Password,
		TLSSkipVerify: !c.instance.VerifySSL,
		Timeout:       int(c.instance.TimeoutOr(DefaultTimeout).Seconds()),
	}

	// Set Basic Auth credentials if provided
	if c.instance.BasicUsername != "" {
		cfg.BasicUser = c.instance.BasicUsername
		cfg.BasicPass = c.instance.BasicPassword
	}

	return cfg
}

// Connect logs in and returns a client bound to this poll
func (c *Connector) Connect(ctx context.Context) (downloader.Client, error) {
	qbtClient := qbt.NewClient(c.Config())

	if err := qbtClient.LoginCtx(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to qBittorrent instance: %w", err)
	}

	return &Client{Client: qbtClient}, nil
}

// Client wraps the qBittorrent Web API client for a single poll
type Client struct {
	*qbt.Client
}

// Status reads the application version and the global transfer info
func (c *Client) Status(ctx context.Context) (*downloader.Snapshot, error) {
	version, err := c.Client.GetAppVersionCtx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get app version: %w", err)
	}

	info, err := c.Client.GetTransferInfoCtx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get transfer info: %w", err)
	}

	return &downloader.Snapshot{
		Connected:       string(info.ConnectionStatus) != connectionStatusDisconnected,
		Version:         version,
		DownloadedBytes: info.DlInfoData,
		UploadedBytes:   info.UpInfoData,
		DownloadRate:    info.DlInfoSpeed,
		UploadRate:      info.UpInfoSpeed,
	}, nil
}

// Torrents lists every torrent with its state, category and current tracker
func (c *Client) Torrents(ctx context.Context) ([]downloader.Torrent, error) {
	torrents, err := c.Client.GetTorrentsCtx(ctx, qbt.TorrentFilterOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get all torrents: %w", err)
	}

	out := make([]downloader.Torrent, 0, len(torrents))
	for _, t := range torrents {
		out = append(out, downloader.Torrent{
			Name:     t.Name,
			Status:   string(t.State),
			Category: t.Category,
			Tracker:  t.Tracker,
			Uploaded: t.Uploaded,
		})
	}

	return out, nil
}

// Close is a no-op: the Web API session expires on its own
func (c *Client) Close() error {
	return nil
}

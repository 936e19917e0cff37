// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package downloader

import (
	"context"

	"github.com/autobrr/downloader-exporter/internal/domain"
)

// Snapshot is the session-wide transfer state of a client
type Snapshot struct {
	Connected         bool
	Version           string
	LibtorrentVersion string
	DownloadedBytes   int64
	UploadedBytes     int64
	DownloadRate      int64
	UploadRate        int64
}

// Torrent is one entry of a client's torrent listing. Status holds the
// client's native state token; Category and Tracker may be empty.
type Torrent struct {
	Name     string
	Status   string
	Category string
	Tracker  string
	Uploaded int64
}

// Client is a connection owned by a single poll
type Client interface {
	Status(ctx context.Context) (*Snapshot, error)
	Torrents(ctx context.Context) ([]Torrent, error)
	Close() error
}

// Connector opens a fresh Client for every poll of one configured instance
type Connector interface {
	Instance() domain.InstanceConfig
	Connect(ctx context.Context) (Client, error)
}

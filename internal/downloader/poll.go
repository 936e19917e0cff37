// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package downloader

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Result is the outcome of one poll. StatusErr and TorrentsErr record why a
// half degraded, a failed connect sets ConnectErr and both of them. Records is
// complete either way.
type Result struct {
	Snapshot    Snapshot
	ConnectErr  error
	StatusErr   error
	TorrentsErr error
	Torrents    int
	Records     []Record
}

// Poll connects to the instance behind conn, fetches its status and torrent
// listing and turns both into records. Failures never escape: a failed
// status fetch reports the client as down with zeroed transfer values and a
// failed listing yields no torrent records.
func Poll(ctx context.Context, conn Connector, n *Normalizer) *Result {
	instance := conn.Instance()
	logger := log.With().
		Str("instance", instance.Name).
		Str("client", instance.Client.String()).
		Logger()

	res := &Result{}
	var torrents []Torrent

	client, err := conn.Connect(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to connect to client")
		res.ConnectErr = err
		res.StatusErr = err
		res.TorrentsErr = err
	} else {
		defer func() {
			if err := client.Close(); err != nil {
				logger.Debug().Err(err).Msg("Failed to close client")
			}
		}()

		snapshot, err := client.Status(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to get client status")
			res.StatusErr = err
		} else if snapshot != nil {
			res.Snapshot = *snapshot
		}

		torrents, err = client.Torrents(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to get torrents")
			res.TorrentsErr = err
			torrents = nil
		}
	}

	res.Torrents = len(torrents)
	res.Records = statusRecords(res.Snapshot)
	res.Records = append(res.Records, n.Aggregate(instance.Client, torrents).Records()...)

	logger.Debug().
		Bool("up", res.Snapshot.Connected).
		Int("torrents", res.Torrents).
		Int("records", len(res.Records)).
		Msg("Polled client")

	return res
}

func statusRecords(s Snapshot) []Record {
	return []Record{
		{
			Name:  MetricUp,
			Help:  "Whether the client is reachable",
			Value: boolValue(s.Connected),
		},
		{
			Name:  MetricDownloadBytesTotal,
			Help:  "Data downloaded this session (bytes)",
			Value: float64(s.DownloadedBytes),
			Type:  Counter,
		},
		{
			Name:  MetricDownloadSpeed,
			Help:  "Data download speed (bytes)",
			Value: float64(s.DownloadRate),
		},
		{
			Name:  MetricUploadBytesTotal,
			Help:  "Data uploaded this session (bytes)",
			Value: float64(s.UploadedBytes),
			Type:  Counter,
		},
		{
			Name:  MetricUploadSpeed,
			Help:  "Data upload speed (bytes)",
			Value: float64(s.UploadRate),
		},
		{
			Name:   MetricInfo,
			Help:   "Client build information",
			Value:  1,
			Labels: map[string]string{"libtorrent_version": s.LibtorrentVersion},
		},
	}
}

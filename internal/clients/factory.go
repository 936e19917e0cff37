// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package clients

import (
	"errors"
	"fmt"

	"github.com/autobrr/downloader-exporter/internal/deluge"
	"github.com/autobrr/downloader-exporter/internal/domain"
	"github.com/autobrr/downloader-exporter/internal/downloader"
	"github.com/autobrr/downloader-exporter/internal/qbittorrent"
	"github.com/autobrr/downloader-exporter/internal/transmission"
)

var ErrUnsupportedClient = errors.New("unsupported client")

// NewConnector returns the backend connector for an instance
func NewConnector(instance domain.InstanceConfig) (downloader.Connector, error) {
	switch instance.Client {
	case domain.ClientQbittorrent:
		return qbittorrent.NewConnector(instance), nil
	case domain.ClientDeluge:
		return deluge.NewConnector(instance), nil
	case domain.ClientTransmission:
		return transmission.NewConnector(instance), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedClient, instance.Client)
	}
}

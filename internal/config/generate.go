// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/autobrr/downloader-exporter/internal/clients"
	"github.com/autobrr/downloader-exporter/internal/domain"
)

const configHeader = `config.yml
downloader-exporter configuration.
Every key can be overridden with DOWNLOADER_EXPORTER__<KEY>, e.g. DOWNLOADER_EXPORTER__LOG_LEVEL.`

var keyComments = map[string]string{
	"host":            "Address the metrics server listens on",
	"port":            "Port of the metrics server. With multi enabled every instance gets port + index",
	"multi":           "Serve each instance on its own port",
	"logLevel":        "ERROR, WARN, INFO, DEBUG or TRACE",
	"logPath":         "Log to a rotated file instead of stderr",
	"logMaxSize":      "Size in megabytes before the log file is rotated",
	"logMaxBackups":   "Rotated log files to keep",
	"pprofEnabled":    "Serve pprof on :6060",
	"versionCacheTTL": "How long the last reported client version is reused while a client is down",
	"httpTimeouts":    "Server timeouts in seconds",
	"web":             "Basic auth and per IP rate limit (requests per minute) for the metrics endpoints.\nCreate the hash with: downloader-exporter hash-password",
	"breaker":         "Stop polling a failing client for breaker.timeout after consecutiveFailures errors",
	"instances": `Torrent clients to poll, keyed by name. Names are lowercased.
  my_qbittorrent:
    client: qbittorrent
    host: http://localhost:8080
    username: admin
    password: adminadmin
    verify_ssl: false
  my_deluge:
    client: deluge
    host: localhost:58846
    username: localclient
    password: secret
    retry: 3
  my_transmission:
    client: transmission
    host: http://localhost:9091
    username: transmission
    password: secret
    timeout: 4`,
}

func defaultConfig() domain.Config {
	return domain.Config{
		Host:            "0.0.0.0",
		Port:            9000,
		LogLevel:        "INFO",
		LogMaxSize:      50,
		LogMaxBackups:   3,
		VersionCacheTTL: clients.DefaultVersionCacheTTL,
		HTTPTimeouts: domain.HTTPTimeouts{
			ReadTimeout:  15,
			WriteTimeout: 60,
			IdleTimeout:  120,
		},
		Breaker: domain.BreakerConfig{
			ConsecutiveFailures: clients.DefaultConsecutiveFailures,
			Timeout:             clients.DefaultBreakerTimeout,
		},
		Instances: map[string]domain.InstanceConfig{},
	}
}

// renderDefaultConfig encodes the defaults with a comment above every top level key
func renderDefaultConfig() ([]byte, error) {
	var node yaml.Node
	if err := node.Encode(defaultConfig()); err != nil {
		return nil, fmt.Errorf("failed to encode default config: %w", err)
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i]
		if comment, ok := keyComments[key.Value]; ok {
			key.HeadComment = comment
		}
	}

	doc := yaml.Node{
		Kind:        yaml.DocumentNode,
		HeadComment: configHeader,
		Content:     []*yaml.Node{&node},
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, fmt.Errorf("failed to encode default config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// WriteDefaultConfig writes a commented default config to path. An existing
// file is left untouched.
func WriteDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		log.Debug().Str("path", path).Msg("Config file already exists, skipping")
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to stat config file %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content, err := renderDefaultConfig()
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, content, 0o640); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}

	return nil
}

// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import "time"

// ClientType identifies the torrent client behind an instance
type ClientType string

const (
	ClientQbittorrent  ClientType = "qbittorrent"
	ClientDeluge       ClientType = "deluge"
	ClientTransmission ClientType = "transmission"
)

// ClientTypes lists every supported client in a stable order
var ClientTypes = []ClientType{ClientQbittorrent, ClientDeluge, ClientTransmission}

func (c ClientType) String() string {
	return string(c)
}

// Valid reports whether c names a supported client
func (c ClientType) Valid() bool {
	for _, t := range ClientTypes {
		if t == c {
			return true
		}
	}
	return false
}

// Config represents the application configuration
type Config struct {
	Host            string                    `yaml:"host" mapstructure:"host"`
	Port            int                       `yaml:"port" mapstructure:"port"`
	Multi           bool                      `yaml:"multi" mapstructure:"multi"`
	LogLevel        string                    `yaml:"logLevel" mapstructure:"logLevel"`
	LogPath         string                    `yaml:"logPath" mapstructure:"logPath"`
	LogMaxSize      int                       `yaml:"logMaxSize" mapstructure:"logMaxSize"`       // megabytes
	LogMaxBackups   int                       `yaml:"logMaxBackups" mapstructure:"logMaxBackups"` // rotated files kept
	PprofEnabled    bool                      `yaml:"pprofEnabled" mapstructure:"pprofEnabled"`
	VersionCacheTTL time.Duration             `yaml:"versionCacheTTL" mapstructure:"versionCacheTTL"`
	HTTPTimeouts    HTTPTimeouts              `yaml:"httpTimeouts" mapstructure:"httpTimeouts"`
	Web             WebConfig                 `yaml:"web" mapstructure:"web"`
	Breaker         BreakerConfig             `yaml:"breaker" mapstructure:"breaker"`
	Instances       map[string]InstanceConfig `yaml:"instances" mapstructure:"instances"`
}

// HTTPTimeouts represents HTTP server timeout configuration
type HTTPTimeouts struct {
	ReadTimeout  int `yaml:"readTimeout" mapstructure:"readTimeout"`   // seconds
	WriteTimeout int `yaml:"writeTimeout" mapstructure:"writeTimeout"` // seconds
	IdleTimeout  int `yaml:"idleTimeout" mapstructure:"idleTimeout"`   // seconds
}

// WebConfig protects the HTTP endpoints with basic auth when Username is set.
// PasswordHash is an argon2id hash as printed by the hash-password command.
// RateLimit caps metrics requests per client IP and minute, 0 disables it.
type WebConfig struct {
	Username     string `yaml:"username" mapstructure:"username"`
	PasswordHash string `yaml:"passwordHash" mapstructure:"passwordHash"`
	RateLimit    int    `yaml:"rateLimit" mapstructure:"rateLimit"`
}

// BreakerConfig tunes the per-instance circuit breaker
type BreakerConfig struct {
	ConsecutiveFailures uint32        `yaml:"consecutiveFailures" mapstructure:"consecutiveFailures"`
	Timeout             time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// InstanceConfig describes one torrent client to poll
type InstanceConfig struct {
	Name          string     `yaml:"-" mapstructure:"-"`
	Client        ClientType `yaml:"client" mapstructure:"client" validate:"required,oneof=qbittorrent deluge transmission"`
	Host          string     `yaml:"host" mapstructure:"host" validate:"required"`
	Username      string     `yaml:"username,omitempty" mapstructure:"username"`
	Password      string     `yaml:"password,omitempty" mapstructure:"password"`
	BasicUsername string     `yaml:"basic_username,omitempty" mapstructure:"basic_username"`
	BasicPassword string     `yaml:"basic_password,omitempty" mapstructure:"basic_password"`
	VerifySSL     bool       `yaml:"verify_ssl,omitempty" mapstructure:"verify_ssl"`
	Timeout       int        `yaml:"timeout,omitempty" mapstructure:"timeout" validate:"gte=0"` // seconds
	Retry         int        `yaml:"retry,omitempty" mapstructure:"retry" validate:"gte=0"`
}

// TimeoutOr returns the configured timeout, or def when none is set
func (i InstanceConfig) TimeoutOr(def time.Duration) time.Duration {
	if i.Timeout <= 0 {
		return def
	}
	return time.Duration(i.Timeout) * time.Second
}

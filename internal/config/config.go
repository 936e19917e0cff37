// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/autobrr/downloader-exporter/internal/clients"
	"github.com/autobrr/downloader-exporter/internal/domain"
)

const (
	appName           = "downloader-exporter"
	defaultConfigName = "config.yml"
	envPrefix         = "DOWNLOADER_EXPORTER__"
)

// ErrNoInstances is returned by commands that need at least one instance
var ErrNoInstances = errors.New("no instances configured")

type AppConfig struct {
	Config *domain.Config

	viper      *viper.Viper
	configPath string

	mu        sync.RWMutex
	logWriter io.Closer
}

// New loads the configuration from configDirOrPath, which may be a directory
// holding config.yml or the path of a YAML file. An empty value uses
// GetDefaultConfigDir. A missing file is created with the defaults.
func New(configDirOrPath string) (*AppConfig, error) {
	if configDirOrPath == "" {
		configDirOrPath = GetDefaultConfigDir()
	}

	c := &AppConfig{
		viper:      viper.New(),
		configPath: resolveConfigPath(configDirOrPath),
	}

	c.defaults()
	c.bindEnv()

	if _, err := os.Stat(c.configPath); errors.Is(err, os.ErrNotExist) {
		if err := WriteDefaultConfig(c.configPath); err != nil {
			return nil, err
		}
		log.Info().Str("path", c.configPath).Msg("Created default configuration file")
	}

	c.viper.SetConfigFile(c.configPath)
	c.viper.SetConfigType("yaml")
	if err := c.viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", c.configPath, err)
	}

	cfg, err := c.load()
	if err != nil {
		return nil, err
	}
	c.Config = cfg

	return c, nil
}

func (c *AppConfig) defaults() {
	c.viper.SetDefault("host", "0.0.0.0")
	c.viper.SetDefault("port", 9000)
	c.viper.SetDefault("multi", false)
	c.viper.SetDefault("logLevel", "INFO")
	c.viper.SetDefault("logPath", "")
	c.viper.SetDefault("logMaxSize", 50)
	c.viper.SetDefault("logMaxBackups", 3)
	c.viper.SetDefault("pprofEnabled", false)
	c.viper.SetDefault("versionCacheTTL", clients.DefaultVersionCacheTTL)
	c.viper.SetDefault("httpTimeouts.readTimeout", 15)
	c.viper.SetDefault("httpTimeouts.writeTimeout", 60)
	c.viper.SetDefault("httpTimeouts.idleTimeout", 120)
	c.viper.SetDefault("web.username", "")
	c.viper.SetDefault("web.passwordHash", "")
	c.viper.SetDefault("web.rateLimit", 0)
	c.viper.SetDefault("breaker.consecutiveFailures", clients.DefaultConsecutiveFailures)
	c.viper.SetDefault("breaker.timeout", clients.DefaultBreakerTimeout)
}

// bindEnv maps DOWNLOADER_EXPORTER__<KEY> onto the top level keys
func (c *AppConfig) bindEnv() {
	keys := map[string]string{
		"host":             "HOST",
		"port":             "PORT",
		"multi":            "MULTI",
		"logLevel":         "LOG_LEVEL",
		"logPath":          "LOG_PATH",
		"logMaxSize":       "LOG_MAX_SIZE",
		"logMaxBackups":    "LOG_MAX_BACKUPS",
		"pprofEnabled":     "PPROF_ENABLED",
		"versionCacheTTL":  "VERSION_CACHE_TTL",
		"web.username":     "WEB_USERNAME",
		"web.passwordHash": "WEB_PASSWORD_HASH",
		"web.rateLimit":    "WEB_RATE_LIMIT",
	}
	for key, env := range keys {
		_ = c.viper.BindEnv(key, envPrefix+env)
	}
}

// load decodes the current viper state into a validated config
func (c *AppConfig) load() (*domain.Config, error) {
	cfg := &domain.Config{}
	if err := c.viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if cfg.Instances == nil {
		cfg.Instances = map[string]domain.InstanceConfig{}
	}
	for name, instance := range cfg.Instances {
		instance.Name = name
		cfg.Instances[name] = instance
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", c.configPath, err)
	}

	return cfg, nil
}

// Set overrides key above the file and the environment. The override
// survives later reloads of the file. An override that fails validation is
// rolled back.
func (c *AppConfig) Set(key string, value any) error {
	previous := c.viper.Get(key)
	c.viper.Set(key, value)

	cfg, err := c.load()
	if err != nil {
		c.viper.Set(key, previous)
		return err
	}

	c.mu.Lock()
	c.Config = cfg
	c.mu.Unlock()
	return nil
}

// Current returns the most recently loaded config
func (c *AppConfig) Current() *domain.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Config
}

func (c *AppConfig) ConfigPath() string {
	return c.configPath
}

// Watch reloads the file whenever it changes on disk and passes every valid
// result to onChange. Invalid edits are logged and the previous config stays
// in effect.
func (c *AppConfig) Watch(onChange func(*domain.Config)) {
	c.viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		cfg, err := c.load()
		if err != nil {
			log.Error().Err(err).Str("path", e.Name).Msg("Ignoring invalid configuration change")
			return
		}

		c.mu.Lock()
		c.Config = cfg
		c.mu.Unlock()

		c.ApplyLogConfig()
		log.Info().Str("path", e.Name).Int("instances", len(cfg.Instances)).Msg("Configuration reloaded")

		if onChange != nil {
			onChange(cfg)
		}
	})
	c.viper.WatchConfig()
}

// ApplyLogConfig sets the global log level and output from the current config.
// It is safe to call again on reload: only the level and the destination
// change, the global logger itself is installed once.
func (c *AppConfig) ApplyLogConfig() {
	cfg := c.Current()

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		log.Warn().Str("logLevel", cfg.LogLevel).Msg("Unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	useLogOutput()

	c.mu.Lock()
	defer c.mu.Unlock()

	var next io.Writer = consoleOutput()
	var closer io.Closer
	if cfg.LogPath != "" {
		writer := &lumberjack.Logger{
			Filename:   cfg.LogPath,
			MaxSize:    cfg.LogMaxSize,
			MaxBackups: cfg.LogMaxBackups,
		}
		next, closer = writer, writer
	}

	output.swap(next)

	if c.logWriter != nil {
		_ = c.logWriter.Close()
	}
	c.logWriter = closer
}

// resolveConfigPath turns a directory into the config file inside it.
// YAML file names and existing files are used as given.
func resolveConfigPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return path
	}

	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return path
	}

	return filepath.Join(path, defaultConfigName)
}

// GetDefaultConfigDir returns the OS specific config directory.
// XDG_CONFIG_HOME=/config is treated as a container volume and used as is.
func GetDefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		if xdg == "/config" {
			return xdg
		}
		return filepath.Join(xdg, appName)
	}

	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, appName)
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", appName)
}

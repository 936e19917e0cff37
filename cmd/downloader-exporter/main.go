// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/autobrr/downloader-exporter/internal/auth"
	"github.com/autobrr/downloader-exporter/internal/clients"
	"github.com/autobrr/downloader-exporter/internal/config"
	"github.com/autobrr/downloader-exporter/internal/metrics"
)

var Version = "dev"

const minPasswordLength = 8

func main() {
	rootCmd := NewRootCommand()

	// Initialize logger
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "downloader-exporter",
		Short: "Prometheus exporter for qBittorrent, Deluge and Transmission",
		Long: `downloader-exporter - polls one or more BitTorrent clients and exposes
their transfer statistics and torrent counts as Prometheus metrics.`,
		SilenceUsage: true,
	}

	rootCmd.Version = Version

	rootCmd.AddCommand(RunServeCommand())
	rootCmd.AddCommand(RunCheckCommand())
	rootCmd.AddCommand(RunGenerateConfigCommand())
	rootCmd.AddCommand(RunHashPasswordCommand())
	rootCmd.AddCommand(RunVersionCommand(Version))

	return rootCmd
}

func RunServeCommand() *cobra.Command {
	var opts serveOptions

	command := &cobra.Command{
		Use:   "serve",
		Short: "Start the metrics server",
	}

	command.Flags().StringVar(&opts.configDir, "config", "", "config directory or file path (default is OS-specific: ~/.config/downloader-exporter/ or %APPDATA%\\downloader-exporter\\)")
	command.Flags().IntVar(&opts.port, "port", 0, "port of the metrics server (overrides the config file)")
	command.Flags().BoolVar(&opts.multi, "multi", false, "serve every instance on its own port, starting at --port")
	command.Flags().StringVar(&opts.logPath, "log-path", "", "log file path (default is stderr)")
	command.Flags().BoolVar(&opts.pprof, "pprof", false, "enable pprof server on :6060")

	command.Run = func(cmd *cobra.Command, args []string) {
		app := NewApplication(Version, opts)
		app.runServer()
	}

	return command
}

func RunCheckCommand() *cobra.Command {
	var (
		configDir string
		instance  string
		timeout   time.Duration
	)

	command := &cobra.Command{
		Use:   "check",
		Short: "Poll every instance once and print the metrics",
		Long: `Poll every configured instance once and print the result in the
Prometheus text format. Useful to verify credentials before starting the server.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.New(configDir)
			if err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			current := cfg.Current()
			if len(current.Instances) == 0 {
				return fmt.Errorf("%w in %s", config.ErrNoInstances, cfg.ConfigPath())
			}

			pool, err := clients.NewPool(current)
			if err != nil {
				return fmt.Errorf("failed to initialize client pool: %w", err)
			}
			defer pool.Close()

			if instance != "" {
				if _, err := pool.Get(instance); err != nil {
					return fmt.Errorf("instance %s: %w", instance, err)
				}
			}

			return writeMetrics(cmd.OutOrStdout(), metrics.NewDownloaderCollector(pool, instance).WithTimeout(timeout))
		},
	}

	command.Flags().StringVar(&configDir, "config", "", "config directory or file path (defaults to OS-specific location)")
	command.Flags().StringVar(&instance, "instance", "", "only poll the named instance")
	command.Flags().DurationVar(&timeout, "timeout", metrics.DefaultScrapeTimeout, "poll timeout for instances without their own")

	return command
}

// writeMetrics gathers collector once and writes it in the text format
func writeMetrics(w io.Writer, collector prometheus.Collector) error {
	registry := prometheus.NewRegistry()
	if err := registry.Register(collector); err != nil {
		return fmt.Errorf("failed to register collector: %w", err)
	}

	families, err := registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, family := range families {
		if err := enc.Encode(family); err != nil {
			return fmt.Errorf("failed to encode %s: %w", family.GetName(), err)
		}
	}

	return nil
}

func RunGenerateConfigCommand() *cobra.Command {
	var configDir string

	command := &cobra.Command{
		Use:   "generate-config",
		Short: "Generate a default configuration file",
		Long: `Generate a default configuration file without starting the server.

If no --config is specified, uses the OS-specific default location:
- Linux/macOS: ~/.config/downloader-exporter/config.yml
- Windows: %APPDATA%\downloader-exporter\config.yml

You can specify either a directory path or a direct file path:
- Directory: downloader-exporter generate-config --config /path/to/config/
- File: downloader-exporter generate-config --config /path/to/exporter.yml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := resolveGeneratePath(configDir)

			if _, err := os.Stat(configPath); err == nil {
				cmd.Printf("Configuration file already exists at: %s\n", configPath)
				cmd.Println("Skipping generation to avoid overwriting existing configuration.")
				return nil
			}

			if err := config.WriteDefaultConfig(configPath); err != nil {
				return fmt.Errorf("failed to create configuration file: %w", err)
			}

			cmd.Printf("Configuration file created successfully at: %s\n", configPath)
			return nil
		},
	}

	command.Flags().StringVar(&configDir, "config", "",
		"config directory or file path (defaults to OS-specific location)")

	return command
}

func resolveGeneratePath(configDir string) string {
	if configDir == "" {
		configDir = config.GetDefaultConfigDir()
	}

	lower := strings.ToLower(configDir)
	if strings.HasSuffix(lower, ".yml") || strings.HasSuffix(lower, ".yaml") {
		return configDir
	}
	if info, err := os.Stat(configDir); err == nil && !info.IsDir() {
		return configDir
	}
	return filepath.Join(configDir, "config.yml")
}

func readPassword(prompt string) (string, error) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprint(os.Stderr, prompt)
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(password), nil
	}

	fmt.Fprint(os.Stderr, prompt)
	var password string
	if _, err := fmt.Scanln(&password); err != nil {
		return "", fmt.Errorf("failed to read password from stdin: %w", err)
	}
	return password, nil
}

func RunHashPasswordCommand() *cobra.Command {
	var password string

	command := &cobra.Command{
		Use:   "hash-password",
		Short: "Hash a password for web.passwordHash",
		Long: `Hash a password with argon2id for the web.passwordHash setting.

Set web.username and web.passwordHash in the config file to require basic auth
on the metrics endpoints.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				var err error
				password, err = readPassword("Enter password: ")
				if err != nil {
					return err
				}
			}

			if len(password) < minPasswordLength {
				return fmt.Errorf("password must be at least %d characters long", minPasswordLength)
			}

			hash, err := auth.HashPassword(password)
			if err != nil {
				return fmt.Errorf("failed to hash password: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}

	command.Flags().StringVar(&password, "password", "", "password to hash (will prompt if not provided)")

	return command
}

func RunVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of downloader-exporter",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

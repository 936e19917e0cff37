// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/downloader-exporter/internal/auth"
	"github.com/autobrr/downloader-exporter/internal/clients"
	"github.com/autobrr/downloader-exporter/internal/config"
)

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()

	var output bytes.Buffer
	cmd.SetOut(&output)
	cmd.SetErr(&output)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return output.String(), err
}

func TestRunGenerateConfigCommand(t *testing.T) {
	tests := []struct {
		name              string
		args              []string
		setupExistingFile bool
		wantPath          string
		validateOutput    func(t *testing.T, output string)
		validateFile      func(t *testing.T, configPath string)
	}{
		{
			name:     "generate_config_custom_directory",
			args:     []string{"--config", "custom/path"},
			wantPath: filepath.Join("custom", "path", "config.yml"),
			validateOutput: func(t *testing.T, output string) {
				assert.Contains(t, output, "Configuration file created")
			},
			validateFile: func(t *testing.T, configPath string) {
				content, err := os.ReadFile(configPath)
				require.NoError(t, err)
				assert.Contains(t, string(content), "# config.yml")
			},
		},
		{
			name:     "generate_config_custom_file",
			args:     []string{"--config", "custom/exporter.yaml"},
			wantPath: filepath.Join("custom", "exporter.yaml"),
			validateOutput: func(t *testing.T, output string) {
				assert.Contains(t, output, "Configuration file created")
			},
			validateFile: func(t *testing.T, configPath string) {
				assert.Equal(t, "exporter.yaml", filepath.Base(configPath))
				assert.FileExists(t, configPath)
			},
		},
		{
			name:              "skip_existing_config",
			args:              []string{"--config", "existing/path"},
			setupExistingFile: true,
			wantPath:          filepath.Join("existing", "path", "config.yml"),
			validateOutput: func(t *testing.T, output string) {
				assert.Contains(t, output, "Configuration file already exists")
			},
			validateFile: func(t *testing.T, configPath string) {
				content, err := os.ReadFile(configPath)
				require.NoError(t, err)
				assert.Equal(t, "# Existing config content", string(content))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())

			if tt.setupExistingFile {
				require.NoError(t, os.MkdirAll(filepath.Dir(tt.wantPath), 0o755))
				require.NoError(t, os.WriteFile(tt.wantPath, []byte("# Existing config content"), 0o644))
			}

			output, err := execute(t, RunGenerateConfigCommand(), tt.args...)
			require.NoError(t, err)

			assert.Contains(t, output, tt.wantPath)
			tt.validateOutput(t, output)
			tt.validateFile(t, tt.wantPath)
		})
	}
}

func TestGenerateConfigCommandHelp(t *testing.T) {
	output, err := execute(t, RunGenerateConfigCommand(), "--help")
	require.NoError(t, err)

	assert.Contains(t, output, "Generate a default configuration file")
	assert.Contains(t, output, "--config")
	assert.Contains(t, output, "OS-specific default location")
}

func TestGenerateConfigCommandValidation(t *testing.T) {
	_, err := execute(t, RunGenerateConfigCommand(), "--config")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flag needs an argument")
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := NewRootCommand()

	var names []string
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}

	for _, want := range []string{"serve", "check", "generate-config", "hash-password", "version"} {
		assert.Contains(t, names, want)
	}

	output, err := execute(t, root, "generate-config", "--help")
	require.NoError(t, err)
	assert.Contains(t, output, "Generate a default configuration file")
}

func TestRunVersionCommand(t *testing.T) {
	output, err := execute(t, RunVersionCommand("1.2.3"))
	require.NoError(t, err)
	assert.Equal(t, "1.2.3\n", output)
}

func TestRunHashPasswordCommand(t *testing.T) {
	tests := []struct {
		name        string
		password    string
		expectError bool
	}{
		{name: "valid", password: "password123"},
		{name: "minimum_length", password: "12345678"},
		{name: "too_short", password: "short", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := execute(t, RunHashPasswordCommand(), "--password", tt.password)
			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "at least 8 characters")
				return
			}
			require.NoError(t, err)

			hash := strings.TrimSpace(output)
			assert.True(t, strings.HasPrefix(hash, "$argon2id$"), hash)

			ok, err := auth.VerifyPassword(tt.password, hash)
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestRunCheckCommand(t *testing.T) {
	tests := []struct {
		name        string
		config      string
		args        []string
		wantErr     error
		errContains string
		wantOutput  []string
	}{
		{
			name:    "no_instances",
			config:  "instances: {}\n",
			wantErr: config.ErrNoInstances,
		},
		{
			name: "unreachable_instance",
			config: `
instances:
  qbit:
    client: qbittorrent
    host: 127.0.0.1:1
    timeout: 1
`,
			wantOutput: []string{
				"# TYPE downloader_up gauge",
				`downloader_up{client="qbittorrent",host="127.0.0.1:1",name="qbit",version=""} 0`,
				`downloader_exporter_scrape_errors_total{name="qbit",stage="connect"} 1`,
			},
		},
		{
			name: "unknown_instance",
			config: `
instances:
  qbit:
    client: qbittorrent
    host: 127.0.0.1:1
`,
			args:    []string{"--instance", "missing"},
			wantErr: clients.ErrInstanceNotFound,
		},
		{
			name: "invalid_config",
			config: `
instances:
  qbit:
    client: qbitorrent
    host: 127.0.0.1:1
`,
			errContains: `did you mean "qbittorrent"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "config.yml")
			require.NoError(t, os.WriteFile(configPath, []byte(tt.config), 0o644))

			args := append([]string{"--config", configPath, "--timeout", "1s"}, tt.args...)
			output, err := execute(t, RunCheckCommand(), args...)

			switch {
			case tt.wantErr != nil:
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			case tt.errContains != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
			default:
				require.NoError(t, err)
				for _, want := range tt.wantOutput {
					assert.Contains(t, output, want)
				}
			}
		})
	}
}

func TestApplyFlags(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.New(dir)
	require.NoError(t, err)

	app := NewApplication("dev", serveOptions{port: 9500, multi: true, logPath: filepath.Join(dir, "exporter.log"), pprof: true})
	require.NoError(t, app.applyFlags(cfg))

	current := cfg.Current()
	assert.Equal(t, 9500, current.Port)
	assert.True(t, current.Multi)
	assert.True(t, current.PprofEnabled)
	assert.Equal(t, filepath.Join(dir, "exporter.log"), current.LogPath)

	bad := NewApplication("dev", serveOptions{port: 70000})
	assert.Error(t, bad.applyFlags(cfg))
	assert.Equal(t, 9500, cfg.Current().Port)
}

func TestShutdown(t *testing.T) {
	cfg := newTestConfig(false)
	servers, err := buildServers(cfg, newTestDependencies(t, cfg))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// never started servers shut down cleanly
	assert.NoError(t, shutdown(ctx, servers))
}

// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// logOutput is the destination of the global logger. Loggers derived from
// log.Logger share it, so a reload moves every one of them to the new target
// without reassigning the global.
type logOutput struct {
	mu sync.Mutex
	w  io.Writer
}

func (o *logOutput) Write(p []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.w.Write(p)
}

// swap replaces the destination and returns the previous one
func (o *logOutput) swap(w io.Writer) io.Writer {
	o.mu.Lock()
	defer o.mu.Unlock()
	prev := o.w
	o.w = w
	return prev
}

func consoleOutput() io.Writer {
	return zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime}
}

var (
	output        = &logOutput{w: consoleOutput()}
	installOutput sync.Once
)

// useLogOutput points the global logger at output. It runs once, on the first
// ApplyLogConfig, which happens at startup before any goroutine logs.
func useLogOutput() {
	installOutput.Do(func() {
		log.Logger = log.Output(output)
	})
}

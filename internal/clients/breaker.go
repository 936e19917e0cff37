// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package clients

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/autobrr/downloader-exporter/internal/domain"
	"github.com/autobrr/downloader-exporter/internal/downloader"
)

const (
	DefaultConsecutiveFailures = 5
	DefaultBreakerTimeout      = time.Minute
)

// BreakerConnector guards a connector with a circuit breaker. A poll is one
// breaker request: it is admitted on Connect and its outcome is reported once
// the status fetch returns, so a working login cannot hide a failing status
// endpoint. An open breaker fails the poll without touching the client.
type BreakerConnector struct {
	next   downloader.Connector
	cb     *gobreaker.TwoStepCircuitBreaker[any]
	banned atomic.Bool
}

// NewBreakerConnector wraps next. Zero values in cfg fall back to defaults.
func NewBreakerConnector(next downloader.Connector, cfg domain.BreakerConfig) *BreakerConnector {
	threshold := cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = DefaultConsecutiveFailures
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultBreakerTimeout
	}

	bc := &BreakerConnector{next: next}
	name := next.Instance().Name

	bc.cb = gobreaker.NewTwoStepCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if bc.banned.Load() {
				log.Warn().Str("instance", name).Msg("Ban detected, opening circuit")
				return true
			}
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info().Str("instance", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed")
		},
	})

	return bc
}

func (bc *BreakerConnector) Instance() domain.InstanceConfig {
	return bc.next.Instance()
}

// State returns the current breaker state
func (bc *BreakerConnector) State() gobreaker.State {
	return bc.cb.State()
}

// report returns a callback that records the outcome of one poll exactly once
func (bc *BreakerConnector) report(done func(error)) func(error) {
	var once sync.Once
	return func(err error) {
		once.Do(func() {
			bc.banned.Store(isBanError(err))
			done(err)
		})
	}
}

func (bc *BreakerConnector) Connect(ctx context.Context) (downloader.Client, error) {
	done, err := bc.cb.Allow()
	if err != nil {
		return nil, err
	}
	finish := bc.report(done)

	client, err := bc.next.Connect(ctx)
	if err != nil {
		finish(err)
		return nil, err
	}

	return &breakerClient{Client: client, finish: finish}, nil
}

// breakerClient settles the poll admitted by Connect. Closing a client whose
// status was never fetched counts as a success since the connection worked.
type breakerClient struct {
	downloader.Client
	finish func(error)
}

func (c *breakerClient) Status(ctx context.Context) (*downloader.Snapshot, error) {
	snapshot, err := c.Client.Status(ctx)
	c.finish(err)
	return snapshot, err
}

func (c *breakerClient) Close() error {
	c.finish(nil)
	return c.Client.Close()
}

// StateValue converts a breaker state for the breaker_state gauge
func StateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// isBanError checks if the error indicates an IP ban
func isBanError(err error) bool {
	if err == nil {
		return false
	}

	errorStr := strings.ToLower(err.Error())

	// Check for common ban-related error messages
	return strings.Contains(errorStr, "ip is banned") ||
		strings.Contains(errorStr, "too many failed login attempts") ||
		strings.Contains(errorStr, "banned") ||
		strings.Contains(errorStr, "rate limit") ||
		strings.Contains(errorStr, "403") ||
		strings.Contains(errorStr, "forbidden")
}

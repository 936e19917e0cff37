// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package clients

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/downloader-exporter/internal/domain"
	"github.com/autobrr/downloader-exporter/internal/downloader"
)

var (
	ErrInstanceNotFound = errors.New("instance not found")
	ErrPoolClosed       = errors.New("client pool is closed")
)

const DefaultVersionCacheTTL = time.Hour

// Pool holds one breaker-guarded connector per configured instance and the
// last known client version of each
type Pool struct {
	connectors map[string]*BreakerConnector
	breaker    domain.BreakerConfig
	versionTTL time.Duration
	cache      *ristretto.Cache
	mu         sync.RWMutex
	closed     bool
}

// NewPool creates a pool for the instances in cfg
func NewPool(cfg *domain.Config) (*Pool, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e4,
		MaxCost:     1 << 20,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}

	p := &Pool{
		connectors: make(map[string]*BreakerConnector),
		breaker:    cfg.Breaker,
		versionTTL: cfg.VersionCacheTTL,
		cache:      cache,
	}
	if p.versionTTL <= 0 {
		p.versionTTL = DefaultVersionCacheTTL
	}

	if err := p.Reload(cfg.Instances); err != nil {
		cache.Close()
		return nil, err
	}

	return p, nil
}

// Reload replaces the instance set. Instances whose configuration did not
// change keep their connector and breaker state.
func (p *Pool) Reload(instances map[string]domain.InstanceConfig) error {
	next := make(map[string]*BreakerConnector, len(instances))

	p.mu.RLock()
	for name, instance := range instances {
		instance.Name = name

		if current, ok := p.connectors[name]; ok && current.Instance() == instance {
			next[name] = current
			continue
		}

		conn, err := NewConnector(instance)
		if err != nil {
			p.mu.RUnlock()
			return fmt.Errorf("instance %s: %w", name, err)
		}
		next[name] = NewBreakerConnector(conn, p.breaker)
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}

	for name := range p.connectors {
		if _, ok := next[name]; !ok {
			p.cache.Del(name)
			log.Info().Str("instance", name).Msg("Removed client from pool")
		}
	}
	p.connectors = next

	log.Debug().Int("instances", len(next)).Msg("Client pool loaded")
	return nil
}

// Names returns the configured instance names in sorted order
func (p *Pool) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Sorted(maps.Keys(p.connectors))
}

// Get returns the connector for the named instance
func (p *Pool) Get(name string) (*BreakerConnector, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, ErrPoolClosed
	}

	conn, ok := p.connectors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInstanceNotFound, name)
	}
	return conn, nil
}

// Version records the version reported by a successful status fetch and
// returns the label value to use. A failed poll keeps reporting the last
// known version until it expires.
func (p *Pool) Version(name string, res *downloader.Result) string {
	if res != nil && res.StatusErr == nil && res.Snapshot.Version != "" {
		version := downloader.CleanVersion(res.Snapshot.Version)
		p.cache.SetWithTTL(name, version, 1, p.versionTTL)
		return version
	}

	if v, ok := p.cache.Get(name); ok {
		if version, ok := v.(string); ok {
			return version
		}
	}
	return ""
}

// Close releases the version cache
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	p.closed = true
	p.connectors = make(map[string]*BreakerConnector)
	p.cache.Close()

	log.Info().Msg("Client pool closed")
	return nil
}

// Stats returns statistics about the pool
func (p *Pool) Stats() map[string]any {
	p.mu.RLock()
	defer p.mu.RUnlock()

	open := 0
	for _, conn := range p.connectors {
		if StateValue(conn.State()) > 0 {
			open++
		}
	}

	return map[string]any{
		"total_clients":  len(p.connectors),
		"open_breakers":  open,
		"version_hits":   p.cache.Metrics.Hits(),
		"version_misses": p.cache.Metrics.Misses(),
	}
}

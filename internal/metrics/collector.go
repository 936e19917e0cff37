// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/downloader-exporter/internal/clients"
	"github.com/autobrr/downloader-exporter/internal/downloader"
)

const DefaultScrapeTimeout = 30 * time.Second

// Scrape error stages
const (
	StageConnect  = "connect"
	StageStatus   = "status"
	StageTorrents = "torrents"
	StageAssemble = "assemble"
)

// InstanceSource resolves the instances a collector polls
type InstanceSource interface {
	Names() []string
	Get(name string) (*clients.BreakerConnector, error)
	Version(name string, res *downloader.Result) string
}

// DownloaderCollector polls every instance of its source on each scrape.
// Instances are polled concurrently, each with its own connection.
type DownloaderCollector struct {
	source     InstanceSource
	only       string
	timeout    time.Duration
	normalizer *downloader.Normalizer
	assembler  *Assembler

	scrapeDuration *prometheus.GaugeVec
	scrapeErrors   *prometheus.CounterVec
	breakerState   *prometheus.Desc

	mu     sync.Mutex
	polled map[string]struct{}
}

// NewDownloaderCollector creates a collector over source. When only is not
// empty the collector is restricted to that instance.
func NewDownloaderCollector(source InstanceSource, only string) *DownloaderCollector {
	return &DownloaderCollector{
		source:     source,
		only:       only,
		polled:     make(map[string]struct{}),
		timeout:    DefaultScrapeTimeout,
		normalizer: downloader.DefaultNormalizer(),
		assembler:  NewAssembler(),

		scrapeDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "downloader_exporter_scrape_duration_seconds",
			Help: "Duration of the last poll of an instance",
		}, []string{"name"}),
		scrapeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "downloader_exporter_scrape_errors_total",
			Help: "Total number of failed poll stages by instance",
		}, []string{"name", "stage"}),
		breakerState: prometheus.NewDesc(
			"downloader_exporter_breaker_state",
			"Circuit breaker state of an instance (0=closed, 1=half-open, 2=open)",
			[]string{"name"},
			nil,
		),
	}
}

// WithTimeout bounds every poll to d
func (c *DownloaderCollector) WithTimeout(d time.Duration) *DownloaderCollector {
	if d > 0 {
		c.timeout = d
	}
	return c
}

func (c *DownloaderCollector) Describe(ch chan<- *prometheus.Desc) {
	c.assembler.Describe(ch)
	c.scrapeDuration.Describe(ch)
	c.scrapeErrors.Describe(ch)
	ch <- c.breakerState
}

func (c *DownloaderCollector) names() []string {
	if c.only != "" {
		return []string{c.only}
	}
	return c.source.Names()
}

func (c *DownloaderCollector) Collect(ch chan<- prometheus.Metric) {
	names := c.names()

	log.Debug().Int("instances", len(names)).Msg("Collecting metrics for instances")

	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			c.collectInstance(ch, name)
		}(name)
	}
	wg.Wait()

	c.scrapeDuration.Collect(ch)
	c.scrapeErrors.Collect(ch)
}

// Forget drops the self metric series of every polled instance not in keep
func (c *DownloaderCollector) Forget(keep []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for name := range c.polled {
		if slices.Contains(keep, name) {
			continue
		}
		c.scrapeDuration.DeletePartialMatch(prometheus.Labels{"name": name})
		c.scrapeErrors.DeletePartialMatch(prometheus.Labels{"name": name})
		delete(c.polled, name)
	}
}

func (c *DownloaderCollector) collectInstance(ch chan<- prometheus.Metric, name string) {
	conn, err := c.source.Get(name)
	if err != nil {
		log.Warn().Err(err).Str("instance", name).Msg("Skipping metrics for unknown instance")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), conn.Instance().TimeoutOr(c.timeout))
	defer cancel()

	c.mu.Lock()
	c.polled[name] = struct{}{}
	c.mu.Unlock()

	start := time.Now()
	res := downloader.Poll(ctx, conn, c.normalizer)
	c.scrapeDuration.WithLabelValues(name).Set(time.Since(start).Seconds())

	switch {
	case res.ConnectErr != nil:
		c.scrapeErrors.WithLabelValues(name, StageConnect).Inc()
	default:
		if res.StatusErr != nil {
			c.scrapeErrors.WithLabelValues(name, StageStatus).Inc()
		}
		if res.TorrentsErr != nil {
			c.scrapeErrors.WithLabelValues(name, StageTorrents).Inc()
		}
	}

	instance := conn.Instance()
	common := prometheus.Labels{
		"name":    name,
		"version": c.source.Version(name, res),
		"client":  instance.Client.String(),
		"host":    instance.Host,
	}

	metrics, err := c.assembler.Assemble(res.Records, common)
	if err != nil {
		log.Error().Err(err).Str("instance", name).Msg("Failed to assemble metrics")
		c.scrapeErrors.WithLabelValues(name, StageAssemble).Inc()
	}
	for _, m := range metrics {
		ch <- m
	}

	ch <- prometheus.MustNewConstMetric(
		c.breakerState,
		prometheus.GaugeValue,
		clients.StateValue(conn.State()),
		name,
	)

	log.Debug().Str("instance", name).Int("metrics", len(metrics)).Msg("Collected metrics for instance")
}

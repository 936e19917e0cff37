// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package downloader

import (
	"sort"

	"github.com/autobrr/downloader-exporter/internal/domain"
)

// AggregateKey groups torrents for downloader_torrents_count
type AggregateKey struct {
	Status   Status
	Category string
	Tracker  string
}

// Aggregate holds the grouped torrent counts and per-tracker upload totals
// of a single poll
type Aggregate struct {
	Counts  map[AggregateKey]int
	Uploads map[string]float64
}

// Aggregate normalizes and groups a torrent listing
func (n *Normalizer) Aggregate(client domain.ClientType, torrents []Torrent) *Aggregate {
	agg := &Aggregate{
		Counts:  make(map[AggregateKey]int),
		Uploads: make(map[string]float64),
	}

	for _, t := range torrents {
		tracker := TrackerHost(t.Tracker)
		key := AggregateKey{
			Status:   n.Normalize(client, t.Status),
			Category: categoryOrDefault(t.Category),
			Tracker:  tracker,
		}
		agg.Counts[key]++

		agg.Uploads[tracker] += float64(max(t.Uploaded, 0))
	}

	return agg
}

// Keys returns the aggregate keys sorted by status, category and tracker
func (a *Aggregate) Keys() []AggregateKey {
	keys := make([]AggregateKey, 0, len(a.Counts))
	for k := range a.Counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Status != keys[j].Status {
			return keys[i].Status < keys[j].Status
		}
		if keys[i].Category != keys[j].Category {
			return keys[i].Category < keys[j].Category
		}
		return keys[i].Tracker < keys[j].Tracker
	})
	return keys
}

// Records converts the aggregate into torrent count and tracker upload records
func (a *Aggregate) Records() []Record {
	records := make([]Record, 0, len(a.Counts)+len(a.Uploads))

	for _, key := range a.Keys() {
		records = append(records, Record{
			Name:  MetricTorrentsCount,
			Help:  "Number of torrents by status, category and tracker",
			Value: float64(a.Counts[key]),
			Labels: map[string]string{
				"status":   key.Status.String(),
				"category": key.Category,
				"tracker":  key.Tracker,
			},
		})
	}

	trackers := make([]string, 0, len(a.Uploads))
	for tracker := range a.Uploads {
		trackers = append(trackers, tracker)
	}
	sort.Strings(trackers)

	for _, tracker := range trackers {
		records = append(records, Record{
			Name:   MetricTrackerUpload,
			Help:   "Data uploaded by all torrents of a tracker (bytes)",
			Value:  a.Uploads[tracker],
			Labels: map[string]string{"tracker": tracker},
			Type:   Counter,
		})
	}

	return records
}

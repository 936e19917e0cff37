// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package downloader

// Metric names produced by a poll
const (
	MetricUp                 = "downloader_up"
	MetricDownloadBytesTotal = "downloader_download_bytes_total"
	MetricDownloadSpeed      = "downloader_download_speed_bytes"
	MetricUploadBytesTotal   = "downloader_upload_bytes_total"
	MetricUploadSpeed        = "downloader_upload_speed_bytes"
	MetricTorrentsCount      = "downloader_torrents_count"
	MetricTrackerUpload      = "downloader_tracker_upload_bytes_total"
	MetricInfo               = "downloader_info"
)

// MetricType selects the exposition family of a Record
type MetricType int

const (
	Gauge MetricType = iota
	Counter
)

func (t MetricType) String() string {
	if t == Counter {
		return "counter"
	}
	return "gauge"
}

// Record is one sample produced by a poll, before common labels are added
type Record struct {
	Name   string
	Help   string
	Value  float64
	Labels map[string]string
	Type   MetricType
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/autobrr/downloader-exporter/internal/downloader"
)

// CommonLabels are attached to every sample of an instance, after the record
// labels
var CommonLabels = []string{"name", "version", "client", "host"}

type family struct {
	name   string
	help   string
	labels []string
}

var families = []family{
	{name: downloader.MetricUp, help: "Whether the client is reachable"},
	{name: downloader.MetricDownloadBytesTotal, help: "Data downloaded this session (bytes)"},
	{name: downloader.MetricDownloadSpeed, help: "Data download speed (bytes)"},
	{name: downloader.MetricUploadBytesTotal, help: "Data uploaded this session (bytes)"},
	{name: downloader.MetricUploadSpeed, help: "Data upload speed (bytes)"},
	{name: downloader.MetricTorrentsCount, help: "Number of torrents by status, category and tracker", labels: []string{"status", "category", "tracker"}},
	{name: downloader.MetricTrackerUpload, help: "Data uploaded by all torrents of a tracker (bytes)", labels: []string{"tracker"}},
	{name: downloader.MetricInfo, help: "Client build information", labels: []string{"libtorrent_version"}},
}

type familyDesc struct {
	desc   *prometheus.Desc
	labels []string
}

func newFamilyDescs() map[string]familyDesc {
	descs := make(map[string]familyDesc, len(families))
	for _, f := range families {
		labels := make([]string, 0, len(f.labels)+len(CommonLabels))
		labels = append(labels, f.labels...)
		labels = append(labels, CommonLabels...)

		descs[f.name] = familyDesc{
			desc:   prometheus.NewDesc(f.name, f.help, labels, nil),
			labels: labels,
		}
	}
	return descs
}

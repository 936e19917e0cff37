// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package downloader

import (
	"net/url"
	"strings"
)

const (
	// UnknownTrackerURL stands in for torrents without an announce URL
	UnknownTrackerURL = "https://unknown.tracker"
	UnknownTracker    = "unknown.tracker"
	Uncategorized     = "Uncategorized"
)

// TrackerHost reduces an announce URL to its host[:port] authority.
// Input without a scheme is read as a bare authority, so Deluge's
// tracker_host values pass through unchanged.
func TrackerHost(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = UnknownTrackerURL
	}
	if !strings.Contains(raw, "://") {
		raw = "//" + raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return UnknownTracker
	}

	return u.Host
}

func categoryOrDefault(category string) string {
	if strings.TrimSpace(category) == "" {
		return Uncategorized
	}
	return category
}

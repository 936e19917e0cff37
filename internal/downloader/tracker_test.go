// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package downloader

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrackerHost(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "empty", raw: "", want: "unknown.tracker"},
		{name: "whitespace", raw: "   ", want: "unknown.tracker"},
		{name: "https with port", raw: "https://tracker.example.com:6969/announce", want: "tracker.example.com:6969"},
		{name: "http without port", raw: "http://tracker1.com/announce?passkey=abc", want: "tracker1.com"},
		{name: "udp", raw: "udp://tracker.opentrackr.org:1337/announce", want: "tracker.opentrackr.org:1337"},
		{name: "bare host", raw: "tracker1.com", want: "tracker1.com"},
		{name: "bare host with port", raw: "tracker1.com:8080", want: "tracker1.com:8080"},
		{name: "malformed escape", raw: "http://%zz/announce", want: "unknown.tracker"},
		{name: "scheme without host", raw: "http:///announce", want: "unknown.tracker"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TrackerHost(tt.raw))
		})
	}
}

func TestCategoryOrDefault(t *testing.T) {
	assert.Equal(t, Uncategorized, categoryOrDefault(""))
	assert.Equal(t, Uncategorized, categoryOrDefault(" "))
	assert.Equal(t, "movies", categoryOrDefault("movies"))
}

// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package downloader

// Status is the client-independent torrent state
type Status int

const (
	StatusUnknown Status = iota
	StatusAllocating
	StatusDownloading
	StatusUploading
	StatusCompleted
	StatusChecking
	StatusErrored
	StatusStalled
	StatusQueued
	StatusPaused
	StatusMoving
)

var statusNames = [...]string{
	StatusUnknown:     "unknown",
	StatusAllocating:  "allocating",
	StatusDownloading: "downloading",
	StatusUploading:   "uploading",
	StatusCompleted:   "completed",
	StatusChecking:    "checking",
	StatusErrored:     "errored",
	StatusStalled:     "stalled",
	StatusQueued:      "queued",
	StatusPaused:      "paused",
	StatusMoving:      "moving",
}

// String returns the label value used on downloader_torrents_count
func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return statusNames[StatusUnknown]
	}
	return statusNames[s]
}

// allStatuses returns every status in declaration order
func allStatuses() []Status {
	out := make([]Status, len(statusNames))
	for i := range statusNames {
		out[i] = Status(i)
	}
	return out
}

// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package downloader

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/downloader-exporter/internal/domain"
)

type tokenSet map[string]struct{}

func tokens(values ...string) tokenSet {
	set := make(tokenSet, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

type statusEntry struct {
	tokens tokenSet
	status Status
}

// StatusTable maps native state tokens to a Status. Entries are checked in
// declaration order and the first entry containing the token wins.
type StatusTable []statusEntry

// Lookup returns the status of the first entry containing token
func (t StatusTable) Lookup(token string) (Status, bool) {
	for _, entry := range t {
		if _, ok := entry.tokens[token]; ok {
			return entry.status, true
		}
	}
	return StatusUnknown, false
}

// resolved returns every token in the table with the status it resolves to
func (t StatusTable) resolved() map[string]Status {
	out := make(map[string]Status)
	for _, entry := range t {
		for token := range entry.tokens {
			if _, seen := out[token]; !seen {
				out[token] = entry.status
			}
		}
	}
	return out
}

// qBittorrent Web API torrent states, including the 5.x "stopped" names
var qbittorrentStatuses = StatusTable{
	{tokens("error", "missingFiles"), StatusErrored},
	{tokens("allocating"), StatusAllocating},
	{tokens("downloading", "metaDL", "forcedDL", "forcedMetaDL"), StatusDownloading},
	{tokens("uploading", "forcedUP"), StatusUploading},
	{tokens("stalledUP", "stalledDL"), StatusStalled},
	{tokens("queuedUP", "queuedDL"), StatusQueued},
	{tokens("checkingUP", "checkingDL", "checkingResumeData"), StatusChecking},
	{tokens("pausedDL", "stoppedDL"), StatusPaused},
	{tokens("pausedUP", "stoppedUP"), StatusCompleted},
	{tokens("moving"), StatusMoving},
	{tokens("unknown"), StatusUnknown},
}

var delugeStatuses = StatusTable{
	{tokens("Allocating"), StatusAllocating},
	{tokens("Checking"), StatusChecking},
	{tokens("Downloading"), StatusDownloading},
	{tokens("Seeding"), StatusUploading},
	{tokens("Paused"), StatusPaused},
	{tokens("Error"), StatusErrored},
	{tokens("Queued"), StatusQueued},
	{tokens("Moving"), StatusMoving},
}

// Transmission reports a numeric status; the transmission connector renders
// it as the tokens below and overrides it with "error", "finished" or
// "stalled" from the torrent's error, isFinished and isStalled fields.
var transmissionStatuses = StatusTable{
	{tokens("error"), StatusErrored},
	{tokens("stalled"), StatusStalled},
	{tokens("finished"), StatusCompleted},
	{tokens("stopped"), StatusPaused},
	{tokens("check pending", "download pending", "seed pending", "queued"), StatusQueued},
	{tokens("checking"), StatusChecking},
	{tokens("downloading"), StatusDownloading},
	{tokens("seeding"), StatusUploading},
	// pre-2.0 daemons used "queued" for allocation as well; shadowed above
	{tokens("queued"), StatusAllocating},
}

var statusTables = map[domain.ClientType]StatusTable{
	domain.ClientQbittorrent:  qbittorrentStatuses,
	domain.ClientDeluge:       delugeStatuses,
	domain.ClientTransmission: transmissionStatuses,
}

// tableFor returns the status table of a client, or nil when unsupported
func tableFor(client domain.ClientType) StatusTable {
	return statusTables[client]
}

// Normalizer resolves native state tokens to a Status
type Normalizer struct {
	log zerolog.Logger
}

// NewNormalizer returns a Normalizer that reports unknown tokens to logger
func NewNormalizer(logger zerolog.Logger) *Normalizer {
	return &Normalizer{log: logger}
}

// DefaultNormalizer logs through the global zerolog logger
func DefaultNormalizer() *Normalizer {
	return NewNormalizer(log.Logger.With().Str("component", "normalizer").Logger())
}

// Normalize returns the status for token. Tokens missing from the client's
// table resolve to StatusUnknown with one warning.
func (n *Normalizer) Normalize(client domain.ClientType, token string) Status {
	if status, ok := tableFor(client).Lookup(token); ok {
		return status
	}

	n.log.Warn().
		Str("client", client.String()).
		Str("token", token).
		Msg("Unrecognized torrent state")

	return StatusUnknown
}

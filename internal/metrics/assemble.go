// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/autobrr/downloader-exporter/internal/downloader"
)

var ErrUnknownFamily = errors.New("unknown metric family")

// Assembler turns poll records into const metrics with a fixed label order
// per family
type Assembler struct {
	descs map[string]familyDesc
}

func NewAssembler() *Assembler {
	return &Assembler{descs: newFamilyDescs()}
}

// Describe sends the descriptor of every known family
func (a *Assembler) Describe(ch chan<- *prometheus.Desc) {
	for _, f := range families {
		ch <- a.descs[f.name].desc
	}
}

// Assemble merges common into each record's labels and builds one sample per
// record. Records that cannot be built are skipped and reported in the
// joined error; the rest are still returned.
func (a *Assembler) Assemble(records []downloader.Record, common prometheus.Labels) ([]prometheus.Metric, error) {
	out := make([]prometheus.Metric, 0, len(records))
	var errs []error

	for _, r := range records {
		m, err := a.build(r, common)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, m)
	}

	return out, errors.Join(errs...)
}

func (a *Assembler) build(r downloader.Record, common prometheus.Labels) (prometheus.Metric, error) {
	fd, ok := a.descs[r.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFamily, r.Name)
	}

	values := make([]string, len(fd.labels))
	used := 0
	for i, key := range fd.labels {
		if v, ok := r.Labels[key]; ok {
			values[i] = v
			used++
			continue
		}
		values[i] = common[key]
	}
	if used != len(r.Labels) {
		return nil, fmt.Errorf("record %s has labels outside %v", r.Name, fd.labels)
	}

	valueType := prometheus.GaugeValue
	if r.Type == downloader.Counter {
		valueType = prometheus.CounterValue
	}

	return prometheus.NewConstMetric(fd.desc, valueType, r.Value, values...)
}

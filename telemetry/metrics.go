// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package telemetry

import "github.com/prometheus/client_golang/prometheus"

var descMessages = prometheus.NewDesc("thermocam_telemetry_messages_total", "Telemetry messages, by outcome.", []string{"result"}, nil)

// Collector exports the Emitter counters.
func (e *Emitter) Collector() prometheus.Collector {
	return emitterCollector{e}
}

type emitterCollector struct {
	e *Emitter
}

func (c emitterCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- descMessages
}

func (c emitterCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.e.Stats()
	ch <- prometheus.MustNewConstMetric(descMessages, prometheus.CounterValue, float64(s.Sent), "sent")
	ch <- prometheus.MustNewConstMetric(descMessages, prometheus.CounterValue, float64(s.Throttled), "throttled")
	ch <- prometheus.MustNewConstMetric(descMessages, prometheus.CounterValue, float64(s.Errors), "error")
}

// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package pipeline

import (
	"github.com/maruel/thermocam/thermal"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	descFrames     = prometheus.NewDesc("thermocam_frames_total", "Valid frames read from the sensor.", nil, nil)
	descEmptyReads = prometheus.NewDesc("thermocam_empty_reads_total", "Sensor reads that returned no frame.", nil, nil)
	descReadErrors = prometheus.NewDesc("thermocam_read_errors_total", "Sensor reads that failed.", nil, nil)
	descPublished  = prometheus.NewDesc("thermocam_published_total", "Frames published to the consumers.", nil, nil)
	descDelivered  = prometheus.NewDesc("thermocam_subscriber_delivered_total", "Frames delivered to a subscriber.", []string{"subscriber"}, nil)
	descDropped    = prometheus.NewDesc("thermocam_subscriber_dropped_total", "Frames a subscriber skipped because it was busy.", []string{"subscriber"}, nil)
	descZone       = prometheus.NewDesc("thermocam_zone_celsius", "Mean temperature of a zone in the latest frame.", []string{"zone"}, nil)
	descRange      = prometheus.NewDesc("thermocam_range_celsius", "Stabilized temperature range of the latest frame.", []string{"bound"}, nil)
)

// Collector exports the loop counters, the broadcaster counters and the
// latest zone temperatures.
func (p *Pipeline) Collector() prometheus.Collector {
	return &collector{p: p}
}

type collector struct {
	p *Pipeline
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- descFrames
	ch <- descEmptyReads
	ch <- descReadErrors
	ch <- descPublished
	ch <- descDelivered
	ch <- descDropped
	ch <- descZone
	ch <- descRange
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	s := c.p.Stats()
	ch <- prometheus.MustNewConstMetric(descFrames, prometheus.CounterValue, float64(s.Frames))
	ch <- prometheus.MustNewConstMetric(descEmptyReads, prometheus.CounterValue, float64(s.EmptyReads))
	ch <- prometheus.MustNewConstMetric(descReadErrors, prometheus.CounterValue, float64(s.ReadErrors))
	ch <- prometheus.MustNewConstMetric(descPublished, prometheus.CounterValue, float64(s.Published))

	// Subscriber names aren't unique; sum them so each label is reported once.
	type counts struct{ delivered, dropped uint64 }
	subs := map[string]counts{}
	for _, sub := range c.p.bc.Stats().Subscribers {
		v := subs[sub.Name]
		v.delivered += sub.Delivered
		v.dropped += sub.Dropped
		subs[sub.Name] = v
	}
	for name, v := range subs {
		ch <- prometheus.MustNewConstMetric(descDelivered, prometheus.CounterValue, float64(v.delivered), name)
		ch <- prometheus.MustNewConstMetric(descDropped, prometheus.CounterValue, float64(v.dropped), name)
	}

	if f, ok := c.p.bc.Peek(); ok {
		for _, z := range thermal.Zones {
			ch <- prometheus.MustNewConstMetric(descZone, prometheus.GaugeValue, f.Zones[z], z.String())
		}
		ch <- prometheus.MustNewConstMetric(descRange, prometheus.GaugeValue, f.Range.Min, "min")
		ch <- prometheus.MustNewConstMetric(descRange, prometheus.GaugeValue, f.Range.Max, "max")
	}
}

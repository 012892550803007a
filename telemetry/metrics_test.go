// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package telemetry

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitter_Collector(t *testing.T) {
	pub := &publisherFake{}
	o := testOptions()
	o.Interval = time.Second
	e, err := New(pub, &o, "abc", quiet())
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(e.Collector()))

	require.NoError(t, e.Send(frame(1, time.Unix(100, 0))))
	require.NoError(t, e.Send(frame(2, time.Unix(100, 0))))
	pub.err = errors.New("broker down")
	require.Error(t, e.Send(frame(3, time.Unix(102, 0))))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, mfs, 1)
	assert.Equal(t, "thermocam_telemetry_messages_total", mfs[0].GetName())
	got := map[string]float64{}
	for _, m := range mfs[0].GetMetric() {
		got[m.GetLabel()[0].GetValue()] = m.GetCounter().GetValue()
	}
	assert.Equal(t, map[string]float64{"sent": 1, "throttled": 1, "error": 1}, got)
}

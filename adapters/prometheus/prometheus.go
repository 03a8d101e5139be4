// Package prometheus implements actor.OwnerMetrics with Prometheus collectors.
package prometheus

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/connbox-go/core/metrics"
)

// timer wraps a Prometheus observer to implement metrics.Timer.
type timer struct {
	h     prometheus.Observer
	start time.Time
}

func newTimer(h prometheus.Observer) metrics.Timer {
	return &timer{h: h, start: time.Now()}
}

func (t *timer) ObserveDuration() {
	t.h.Observe(time.Since(t.start).Seconds())
}

// Default histogram buckets for request latencies (in seconds).
var defaultBuckets = []float64{
	.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5,
}

func boolToStr(b bool) string { return strconv.FormatBool(b) }

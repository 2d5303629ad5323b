/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package metrics exposes the event engine's Prometheus collectors: the
// counters and gauges an operator would scrape to see accept/reject rates,
// bytes served and the live worker queue depth, registered against a
// private registry and served from its own listener so a slow
// scrape can never compete with the event thread for a file descriptor.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles every collector the event engine updates. A nil
// *Metrics is safe to call methods on; every method is a no-op in that
// case, so callers never need a "metrics enabled" branch.
type Metrics struct {
	Registry *prometheus.Registry

	ConnectionsAccepted prometheus.Counter
	ConnectionsRejected prometheus.Counter
	ConnectionsActive   prometheus.Gauge
	BytesServed         prometheus.Counter
	BytesReceived       prometheus.Counter
	RegistryDenials     prometheus.Counter
	WorkerQueueDepth    prometheus.Gauge
	RequestsByStatus    *prometheus.CounterVec
}

// New builds a fresh, privately-registered set of collectors. Using a
// private registry rather than prometheus.DefaultRegisterer keeps the
// event engine's metrics isolated from anything else the process links
// in, mirroring the example's "build a registry and register onto it"
// pattern rather than the global-registerer shortcut.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		ConnectionsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fileserver_connections_accepted_total",
			Help: "Total TCP connections accepted.",
		}),
		ConnectionsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fileserver_connections_rejected_total",
			Help: "Connections rejected because the live-connection cap was reached.",
		}),
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fileserver_connections_active",
			Help: "Connections currently tracked by the event loop.",
		}),
		BytesServed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fileserver_bytes_served_total",
			Help: "Total response bytes (status line and body) written to clients.",
		}),
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fileserver_bytes_received_total",
			Help: "Total request body bytes read from clients.",
		}),
		RegistryDenials: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fileserver_registry_denials_total",
			Help: "Requests denied by the in-use file registry's GET/PUT exclusion rule.",
		}),
		WorkerQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fileserver_worker_queue_depth",
			Help: "Tasks currently queued in the worker pool, waiting for a worker.",
		}),
		RequestsByStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fileserver_requests_total",
			Help: "Completed requests by HTTP status code.",
		}, []string{"status"}),
	}

	reg.MustRegister(
		m.ConnectionsAccepted,
		m.ConnectionsRejected,
		m.ConnectionsActive,
		m.BytesServed,
		m.BytesReceived,
		m.RegistryDenials,
		m.WorkerQueueDepth,
		m.RequestsByStatus,
	)

	return m
}

func (m *Metrics) Accepted() {
	if m == nil {
		return
	}
	m.ConnectionsAccepted.Inc()
	m.ConnectionsActive.Inc()
}

func (m *Metrics) Rejected() {
	if m == nil {
		return
	}
	m.ConnectionsRejected.Inc()
}

func (m *Metrics) Dropped() {
	if m == nil {
		return
	}
	m.ConnectionsActive.Dec()
}

func (m *Metrics) Sent(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.BytesServed.Add(float64(n))
}

func (m *Metrics) Received(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.BytesReceived.Add(float64(n))
}

func (m *Metrics) Denied() {
	if m == nil {
		return
	}
	m.RegistryDenials.Inc()
}

func (m *Metrics) QueueDepth(n int) {
	if m == nil {
		return
	}
	m.WorkerQueueDepth.Set(float64(n))
}

func (m *Metrics) Status(code int) {
	if m == nil {
		return
	}
	m.RequestsByStatus.WithLabelValues(statusLabel(code)).Inc()
}

func statusLabel(code int) string {
	switch code {
	case 200:
		return "200"
	case 400:
		return "400"
	case 403:
		return "403"
	case 404:
		return "404"
	case 500:
		return "500"
	case 501:
		return "501"
	default:
		return "other"
	}
}

// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package task

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus instruments the Task Runner feeds. These
// are an observability layer over C4: they never change persisted
// semantics and a nil *Metrics simply skips recording.
type Metrics struct {
	attemptsTotal *prometheus.CounterVec
	retryTotal    prometheus.Counter
	durationSecs  prometheus.Histogram
}

// NewMetrics registers the task-runner instruments against reg. Pass
// prometheus.NewRegistry() in tests to avoid collisions with the default
// registry across parallel test binaries.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		attemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orchestrator_task_attempts_total",
			Help: "Total task execution attempts by terminal status.",
		}, []string{"status"}),
		retryTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orchestrator_task_retry_total",
			Help: "Total task retry attempts.",
		}),
		durationSecs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "orchestrator_task_duration_seconds",
			Help: "Task execution duration in seconds, per attempt loop.",
		}),
	}
	reg.MustRegister(m.attemptsTotal, m.retryTotal, m.durationSecs)
	return m
}

func (m *Metrics) recordAttempt(status string) {
	if m == nil {
		return
	}
	m.attemptsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) recordRetry() {
	if m == nil {
		return
	}
	m.retryTotal.Inc()
}

func (m *Metrics) recordDuration(seconds float64) {
	if m == nil {
		return
	}
	m.durationSecs.Observe(seconds)
}

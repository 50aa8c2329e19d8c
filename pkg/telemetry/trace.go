package telemetry

import (
	"time"

	"httpbridge/pkg/logger"
)

type Step struct {
	Name     string  `json:"name"`
	Duration float64 `json:"duration_ms"`
}

// Trace records the steps of handling one request.
type Trace struct {
	Name     string    `json:"name"`
	Start    time.Time `json:"start"`
	Steps    []Step    `json:"steps"`
	TotalMS  float64   `json:"total_ms"`
	lastMark time.Time
	m        *Metrics
}

// Track starts a new trace. A nil *Metrics yields a trace that only logs.
func (m *Metrics) Track(name string) *Trace {
	now := time.Now()
	return &Trace{
		Name:     name,
		Start:    now,
		lastMark: now,
		m:        m,
	}
}

// Mark records the elapsed duration since the last mark.
func (tr *Trace) Mark(label string) {
	now := time.Now()
	d := now.Sub(tr.lastMark)
	tr.Steps = append(tr.Steps, Step{Name: label, Duration: d.Seconds() * 1000})
	tr.lastMark = now
	if tr.m != nil {
		tr.m.steps.WithLabelValues(tr.Name, label).Observe(d.Seconds())
	}
}

// Finish records the total and logs the trace at debug level. Safe to call
// more than once.
func (tr *Trace) Finish() {
	if tr.TotalMS > 0 {
		return
	}
	total := time.Since(tr.Start)
	tr.TotalMS = total.Seconds() * 1000
	if tr.TotalMS == 0 {
		tr.TotalMS = 1e-6
	}
	if tr.m != nil {
		tr.m.steps.WithLabelValues(tr.Name, "total").Observe(total.Seconds())
	}
	logger.Debug("request_trace", "trace", tr.Name, "total_ms", tr.TotalMS, "steps", tr.Steps)
}

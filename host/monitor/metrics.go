package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"lightdim/protocol"
)

const namespace = "lightdim"

// Metrics holds the Prometheus view of one dimmer.
type Metrics struct {
	light prometheus.Gauge
	duty  prometheus.Gauge
	level prometheus.Gauge
	tick  prometheus.Gauge
	steps prometheus.Gauge

	timeouts   prometheus.Counter
	interrupts prometheus.Counter
	spurious   prometheus.Counter
	rewrites   prometheus.Counter
	events     *prometheus.CounterVec

	frames    prometheus.Counter
	badCRC    prometheus.Counter
	badHeader prometheus.Counter
	lost      prometheus.Counter
	skipped   prometheus.Counter

	lastTelemetry protocol.Telemetry
	lastLink      protocol.DecoderStats
	haveTelemetry bool
}

// NewMetrics registers the dimmer metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	gauge := func(name, help string) prometheus.Gauge {
		return f.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
	}
	counter := func(name, help string) prometheus.Counter {
		return f.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help})
	}
	return &Metrics{
		light: gauge("light_raw", "Last good photosensor reading"),
		duty:  gauge("duty_ticks", "Current PWM duty cycle in ticks of 100"),
		level: gauge("led_active", "1 when the LED was driven active at the last report"),
		tick:  gauge("tick", "PWM phase at the last report"),
		steps: gauge("steps", "Control iterations since firmware start"),

		timeouts:   counter("conversion_timeouts_total", "Conversions that did not complete in time"),
		interrupts: counter("timer_interrupts_total", "PIT interrupts serviced"),
		spurious:   counter("spurious_interrupts_total", "PIT interrupts with no channel flag set"),
		rewrites:   counter("channel_rewrites_total", "Reserved input codes replaced by the disabled code"),
		events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Firmware diagnostic events by type",
		}, []string{"type"}),

		frames:    counter("frames_total", "Telemetry frames decoded"),
		badCRC:    counter("frames_bad_crc_total", "Frames dropped for a CRC mismatch"),
		badHeader: counter("frames_bad_header_total", "Frames dropped for a malformed header"),
		lost:      counter("frames_lost_total", "Frames missing from the sequence"),
		skipped:   counter("skipped_bytes_total", "Bytes discarded while resynchronising"),
	}
}

// ObserveTelemetry updates the gauges and advances the counters by what
// the firmware counted since the previous report. A firmware counter that
// went backwards means the board restarted; its new value is added whole.
func (m *Metrics) ObserveTelemetry(t protocol.Telemetry) {
	m.light.Set(float64(t.Light))
	m.duty.Set(float64(t.Duty))
	m.level.Set(float64(t.Level))
	m.tick.Set(float64(t.Tick))
	m.steps.Set(float64(t.Step))

	prev := m.lastTelemetry
	if !m.haveTelemetry {
		prev = protocol.Telemetry{}
	}
	m.timeouts.Add(delta(prev.Timeouts, t.Timeouts))
	m.interrupts.Add(delta(prev.Interrupts, t.Interrupts))
	m.spurious.Add(delta(prev.Spurious, t.Spurious))
	m.rewrites.Add(delta(prev.Rewrites, t.Rewrites))
	m.lastTelemetry = t
	m.haveTelemetry = true
}

// ObserveEvent counts one firmware event.
func (m *Metrics) ObserveEvent(name string) {
	m.events.WithLabelValues(name).Inc()
}

// ObserveLink advances the link counters to the decoder's totals.
func (m *Metrics) ObserveLink(s protocol.DecoderStats) {
	p := m.lastLink
	m.frames.Add(delta(p.Frames, s.Frames))
	m.badCRC.Add(delta(p.BadCRC, s.BadCRC))
	m.badHeader.Add(delta(p.BadHeader, s.BadHeader))
	m.lost.Add(delta(p.Lost, s.Lost))
	m.skipped.Add(delta(p.Skipped, s.Skipped))
	m.lastLink = s
}

func delta(prev, cur uint32) float64 {
	if cur < prev {
		return float64(cur)
	}
	return float64(cur - prev)
}

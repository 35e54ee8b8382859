// Package monitor decodes the dimmer's telemetry stream, logs it and
// exports it as Prometheus metrics.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lightdim/core"
	"lightdim/host/logging"
	"lightdim/protocol"
)

const rxBufferSize = 4096

// Config controls a Monitor.
type Config struct {
	// Follow keeps reading after io.EOF, for serial ports whose read
	// timeout surfaces as EOF.
	Follow bool

	// OnTelemetry, when set, is called for every decoded status report.
	OnTelemetry func(protocol.Telemetry)
}

// Monitor turns a byte stream into telemetry records.
type Monitor struct {
	in      io.Reader
	cfg     Config
	rx      *protocol.FifoBuffer
	dec     *protocol.Decoder
	metrics *Metrics
	logger  *slog.Logger

	mu      sync.Mutex
	last    protocol.Telemetry
	hasLast bool
	events  uint32
}

// New returns a monitor reading from in and registering its metrics with
// reg.
func New(in io.Reader, reg prometheus.Registerer, cfg Config) *Monitor {
	rx := protocol.NewFifoBuffer(rxBufferSize)
	return &Monitor{
		in:      in,
		cfg:     cfg,
		rx:      rx,
		dec:     protocol.NewDecoder(rx),
		metrics: NewMetrics(reg),
		logger:  logging.GetLogger("monitor"),
	}
}

// Run reads until ctx is done or the stream ends.
func (m *Monitor) Run(ctx context.Context) error {
	buf := make([]byte, 256)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		n, err := m.in.Read(buf)
		if n > 0 {
			m.Feed(buf[:n])
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			if !m.cfg.Follow {
				return nil
			}
			if n == 0 {
				time.Sleep(10 * time.Millisecond)
			}
		default:
			return fmt.Errorf("monitor: read: %w", err)
		}
	}
}

// Feed pushes raw bytes through the decoder and handles every complete
// frame. It returns how many frames were handled.
func (m *Monitor) Feed(data []byte) int {
	handled := 0
	for len(data) > 0 {
		n := m.rx.Write(data)
		data = data[n:]
		handled += m.drain()
		if n == 0 && m.rx.Free() == 0 {
			// A full buffer with no frame in it is noise.
			m.rx.Reset()
		}
	}
	return handled
}

func (m *Monitor) drain() int {
	handled := 0
	for {
		f, ok := m.dec.Next()
		if !ok {
			break
		}
		m.handle(f)
		handled++
	}
	m.metrics.ObserveLink(m.dec.Stats())
	return handled
}

func (m *Monitor) handle(f protocol.Frame) {
	id, err := protocol.MessageID(f.Payload)
	if err != nil {
		m.logger.Warn("undecodable frame", "seq", f.Seq, "error", err)
		return
	}
	switch id {
	case protocol.MsgTelemetry:
		t, err := protocol.DecodeTelemetry(f.Payload)
		if err != nil {
			m.logger.Warn("bad telemetry", "seq", f.Seq, "error", err)
			return
		}
		m.metrics.ObserveTelemetry(t)
		m.mu.Lock()
		m.last, m.hasLast = t, true
		m.mu.Unlock()
		m.logger.Debug("telemetry",
			"step", t.Step,
			"light", t.Light,
			"duty", t.Duty,
			"level", core.Level(t.Level).String(),
			"timeouts", t.Timeouts,
			"spurious", t.Spurious)
		if m.cfg.OnTelemetry != nil {
			m.cfg.OnTelemetry(t)
		}
	case protocol.MsgEvent:
		e, err := protocol.DecodeEvent(f.Payload)
		if err != nil {
			m.logger.Warn("bad event", "seq", f.Seq, "error", err)
			return
		}
		name := core.EventName(e.Type)
		m.metrics.ObserveEvent(name)
		m.mu.Lock()
		m.events++
		m.mu.Unlock()
		m.logger.Info("event", "type", name, "index", e.Index, "seq", e.Seq, "v1", e.Value1, "v2", e.Value2)
	default:
		m.logger.Warn("unknown message", "id", id, "seq", f.Seq)
	}
}

// Last returns the most recent status report.
func (m *Monitor) Last() (protocol.Telemetry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last, m.hasLast
}

// Events returns how many event frames were decoded.
func (m *Monitor) Events() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events
}

// LinkStats returns the decoder counters.
func (m *Monitor) LinkStats() protocol.DecoderStats {
	return m.dec.Stats()
}

// MetricsHandler serves the metrics gathered by g.
func MetricsHandler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler(g))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdown)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	}
}

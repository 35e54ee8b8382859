package simulate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"lightdim/core"
	"lightdim/host/logging"
	"lightdim/protocol"
	"lightdim/regs"
	"lightdim/sim"
)

// Mirror follows the LED pin onto something outside the simulation.
type Mirror interface {
	Set(high bool) error
	Close() error
}

// Result summarises a finished run.
type Result struct {
	Interrupts  uint32
	Spurious    uint32
	Conversions int
	Final       protocol.Telemetry
	Faults      int
}

// Simulator owns one simulated board and the dimmer running on it.
type Simulator struct {
	profile *Profile
	board   *sim.Board
	dimmer  *core.Dimmer
	mirror  Mirror
	logger  *slog.Logger

	mirrorErr sync.Once
}

// New builds the board and dimmer for p. Telemetry frames go to
// telemetry, which may be nil.
func New(p *Profile, telemetry io.Writer) (*Simulator, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	board := sim.NewBoard()
	s := &Simulator{
		profile: p,
		board:   board,
		dimmer:  core.NewDimmer(board, board),
		logger:  logging.GetLogger("simulate"),
	}
	board.SetInterruptHandler(s.dimmer.HandleInterrupt)
	board.SetConversionLatency(p.Light.LatencyPolls)
	s.installLight()

	if telemetry != nil {
		// Lead with a sync byte so the first frame is not spent on
		// resynchronising the reader.
		if _, err := telemetry.Write([]byte{protocol.MessageValueSync}); err != nil {
			return nil, fmt.Errorf("simulate: telemetry: %w", err)
		}
		s.dimmer.SetTelemetry(telemetry)
	}
	return s, nil
}

// SetMirror installs m as the LED follower. Call before Run.
func (s *Simulator) SetMirror(m Mirror) {
	s.mirror = m
}

// Board returns the simulated board.
func (s *Simulator) Board() *sim.Board {
	return s.board
}

// Dimmer returns the dimmer under simulation.
func (s *Simulator) Dimmer() *core.Dimmer {
	return s.dimmer
}

func (s *Simulator) installLight() {
	l := s.profile.Light
	switch l.Mode {
	case LightStuck:
		s.board.SetStuck(true)
	case LightRamp:
		var mu sync.Mutex
		v, up := l.From, true
		s.board.SetLightSource(func(int) uint16 {
			mu.Lock()
			defer mu.Unlock()
			out := v
			if up {
				if l.To-v < l.Step {
					v, up = l.To, false
				} else {
					v += l.Step
				}
			} else {
				if v-l.From < l.Step {
					v, up = l.From, true
				} else {
					v -= l.Step
				}
			}
			return out
		})
	default:
		s.board.SetLight(l.Value)
	}
}

// Run initialises the dimmer, fires timer interrupts at the profile's tick
// rate and runs the control loop until ctx is done or the profile's
// duration elapses.
func (s *Simulator) Run(ctx context.Context) (Result, error) {
	cfg, err := s.profile.FirmwareConfig()
	if err != nil {
		return Result{}, err
	}
	if s.mirror != nil {
		s.board.OnPinChange(s.follow(cfg.LED.Port, cfg.LED.Pin))
	}
	if err := s.dimmer.Init(cfg); err != nil {
		return Result{}, fmt.Errorf("simulate: init: %w", err)
	}
	s.logger.Info("dimmer started",
		"light_mode", s.profile.Light.Mode,
		"tick_hz", cfg.TickHz,
		"policy", cfg.TimeoutPolicy.String(),
		"low", cfg.Thresholds.Low,
		"high", cfg.Thresholds.High)

	if d := s.profile.Duration(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.fireTimer(ctx, time.Second/time.Duration(cfg.TickHz), cfg.Timer.Index)
	}()
	go func() {
		defer wg.Done()
		s.dimmer.Run(ctx.Done())
	}()
	wg.Wait()

	if err := s.dimmer.Stop(); err != nil {
		return Result{}, fmt.Errorf("simulate: stop: %w", err)
	}
	stats := s.dimmer.Scheduler().Stats()
	res := Result{
		Interrupts:  stats.Interrupts,
		Spurious:    stats.Spurious,
		Conversions: s.board.Conversions(int(cfg.Converter.Slot)),
		Final:       s.dimmer.Status(),
		Faults:      len(s.board.Faults()),
	}
	s.logger.Info("dimmer stopped",
		"interrupts", res.Interrupts,
		"conversions", res.Conversions,
		"duty", res.Final.Duty,
		"timeouts", res.Final.Timeouts)
	return res, nil
}

func (s *Simulator) fireTimer(ctx context.Context, period time.Duration, ch uint8) {
	if period <= 0 {
		period = time.Microsecond
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.board.FireTimer(int(ch))
		}
	}
}

func (s *Simulator) follow(port regs.Port, pin uint8) sim.PinChange {
	return func(p regs.Port, n uint8, high bool) {
		if p != port || n != pin {
			return
		}
		if err := s.mirror.Set(high); err != nil {
			s.mirrorErr.Do(func() {
				s.logger.Warn("gpio mirror failed", "error", err)
			})
		}
	}
}

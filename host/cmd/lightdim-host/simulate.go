package main

import (
	"context"
	"io"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"lightdim/host/logging"
	"lightdim/host/monitor"
	"lightdim/host/simulate"
	"lightdim/protocol"
)

// SimulateCmd runs the firmware core against a simulated board.
var SimulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the dimmer on a simulated KL46Z",
	Long:  `Runs the firmware control core against an in-memory KL46Z, with timer interrupts fired from a goroutine and photosensor readings taken from a TOML profile. Telemetry is decoded the same way the monitor decodes a real board.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("profile")
		p := simulate.DefaultProfile()
		if path != "" {
			var err error
			if p, err = simulate.LoadProfile(path); err != nil {
				return err
			}
			if !cmd.Flags().Changed("log-level") && p.Logging.Level != "" {
				logging.Initialize(p.Logging)
			}
		}
		if cmd.Flags().Changed("duration") {
			d, _ := cmd.Flags().GetDuration("duration")
			p.DurationMS = int(d.Milliseconds())
		}
		if cmd.Flags().Changed("light") {
			v, _ := cmd.Flags().GetUint16("light")
			p.Light.Mode, p.Light.Value = simulate.LightConstant, v
		}
		addr, _ := cmd.Flags().GetString("metrics-addr")
		return runSimulation(p, addr)
	},
}

func init() {
	SimulateCmd.Flags().StringP("profile", "p", "", "TOML simulation profile")
	SimulateCmd.Flags().Duration("duration", 0, "Override the profile's run length, 0 runs until interrupted")
	SimulateCmd.Flags().Uint16("light", 0, "Constant photosensor reading, overrides the profile's light mode")
	SimulateCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address")
}

func runSimulation(p *simulate.Profile, addr string) error {
	logger := logging.GetLogger("cli")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r, w := io.Pipe()
	reg := prometheus.NewRegistry()
	m := monitor.New(r, reg, monitor.Config{
		OnTelemetry: func(t protocol.Telemetry) {
			logger.Info("status", "step", t.Step, "light", t.Light, "duty", t.Duty, "timeouts", t.Timeouts)
		},
	})
	done := make(chan error, 1)
	go func() { done <- m.Run(context.Background()) }()

	if addr != "" {
		go func() {
			if err := monitor.Serve(ctx, addr, reg); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	s, err := simulate.New(p, w)
	if err != nil {
		w.Close()
		<-done
		return err
	}
	if p.GPIO.Chip != "" {
		mirror, err := simulate.OpenGPIOMirror(p.GPIO)
		if err != nil {
			logger.Warn("gpio mirror disabled", "error", err)
		} else {
			defer mirror.Close()
			s.SetMirror(mirror)
		}
	}

	res, err := s.Run(ctx)
	w.Close()
	if merr := <-done; merr != nil && err == nil {
		err = merr
	}
	if err != nil {
		return err
	}
	st := m.LinkStats()
	logger.Info("simulation finished",
		"interrupts", res.Interrupts,
		"conversions", res.Conversions,
		"duty", res.Final.Duty,
		"frames", st.Frames,
		"faults", res.Faults)
	return nil
}

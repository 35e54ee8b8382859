package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"lightdim/host/logging"
	"lightdim/host/monitor"
	"lightdim/host/serial"
)

// MonitorCmd decodes telemetry from the board's serial port.
var MonitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Decode dimmer telemetry from a serial port",
	Long:  `Reads the telemetry frames the firmware writes on UART0, logs status reports and diagnostic events, and optionally serves them as Prometheus metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		device, _ := cmd.Flags().GetString("device")
		baud, _ := cmd.Flags().GetInt("baud")
		addr, _ := cmd.Flags().GetString("metrics-addr")
		return runMonitor(device, baud, addr)
	},
}

func init() {
	MonitorCmd.Flags().StringP("device", "d", "/dev/ttyACM0", "Serial device the board enumerates as")
	MonitorCmd.Flags().IntP("baud", "b", serial.DefaultBaud, "UART baud rate")
	MonitorCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9110")
}

func runMonitor(device string, baud int, addr string) error {
	logger := logging.GetLogger("cli")

	cfg := serial.DefaultConfig(device)
	cfg.Baud = baud
	port, err := serial.Open(cfg)
	if err != nil {
		return err
	}
	defer port.Close()
	if err := port.Flush(); err != nil {
		logger.Warn("flush failed", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := monitor.New(port, reg, monitor.Config{Follow: true})

	if addr != "" {
		go func() {
			if err := monitor.Serve(ctx, addr, reg); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
		logger.Info("serving metrics", "addr", addr)
	}

	logger.Info("monitoring", "device", device, "baud", baud)
	if err := m.Run(ctx); err != nil {
		return fmt.Errorf("monitor %s: %w", device, err)
	}
	st := m.LinkStats()
	logger.Info("link closed", "frames", st.Frames, "bad_crc", st.BadCRC, "lost", st.Lost)
	return nil
}

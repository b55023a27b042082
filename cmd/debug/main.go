// Command debug drives the pump and the decision engine by hand, without
// running the service.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/prite36/smart-irrigation/internal/actuator"
	"github.com/prite36/smart-irrigation/internal/decision"
	"github.com/prite36/smart-irrigation/internal/models"
)

var (
	green = color.New(color.FgGreen)
	red   = color.New(color.FgRed, color.Bold)
)

// staticRegistry points the pump controller at a fixed address.
type staticRegistry struct {
	addr    string
	running bool
}

func (r *staticRegistry) ActuatorAddress() (string, bool) { return r.addr, r.addr != "" }
func (r *staticRegistry) SetPumpRunning(running bool)     { r.running = running }

type analysisOutput struct {
	Input           models.SensorSnapshot `json:"input" yaml:"-"`
	ShouldIrrigate  bool                  `json:"should_irrigate" yaml:"should_irrigate"`
	DurationMinutes int                   `json:"duration_minutes" yaml:"duration_minutes"`
	Urgency         models.Urgency        `json:"urgency" yaml:"urgency"`
	Reason          string                `json:"reason" yaml:"reason"`
	ResumeAfterRain bool                  `json:"resume_after_rain" yaml:"resume_after_rain"`
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		red.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "irrigation-debug",
		Short:         "Manual tools for the smart irrigation service",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.AddCommand(newPumpCmd(), newAnalyzeCmd())
	return root
}

func newPumpCmd() *cobra.Command {
	var (
		addr     string
		duration int
		timeout  time.Duration
	)

	pump := &cobra.Command{
		Use:   "pump",
		Short: "Send start or stop commands straight to the actuator",
	}
	pump.PersistentFlags().StringVar(&addr, "addr", "", "Actuator address, e.g. 192.168.1.40")
	pump.PersistentFlags().DurationVar(&timeout, "timeout", actuator.DefaultTimeout, "Request timeout")
	_ = pump.MarkPersistentFlagRequired("addr")

	start := &cobra.Command{
		Use:   "start",
		Short: "Start the pump",
		RunE: func(cmd *cobra.Command, args []string) error {
			pc := actuator.NewPumpController(&staticRegistry{addr: addr}, timeout, nil)
			if err := pc.Start(cmd.Context(), duration); err != nil {
				return fmt.Errorf("%s: %w", actuator.Kind(err), err)
			}
			green.Fprintf(cmd.OutOrStdout(), "✓ Pump started for %d minutes at %s\n", duration, actuator.BaseURL(addr))
			return nil
		},
	}
	start.Flags().IntVar(&duration, "duration", 10, "Run time in minutes")

	stop := &cobra.Command{
		Use:   "stop",
		Short: "Stop the pump",
		RunE: func(cmd *cobra.Command, args []string) error {
			pc := actuator.NewPumpController(&staticRegistry{addr: addr}, timeout, nil)
			if err := pc.Stop(cmd.Context()); err != nil {
				return fmt.Errorf("%s: %w", actuator.Kind(err), err)
			}
			green.Fprintf(cmd.OutOrStdout(), "✓ Pump stopped at %s\n", actuator.BaseURL(addr))
			return nil
		},
	}

	pump.AddCommand(start, stop)
	return pump
}

func newAnalyzeCmd() *cobra.Command {
	var (
		snap   models.SensorSnapshot
		output string
	)
	defaults := decision.DefaultThresholds()
	thresholds := defaults

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run the decision engine on a hand-made sensor reading",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine := decision.NewEngine(thresholds)
			d := engine.Analyze(snap)
			resume, _ := engine.ShouldResumeAfterRain(snap.SoilMoisture)

			out := analysisOutput{
				Input:           snap,
				ShouldIrrigate:  d.ShouldIrrigate,
				DurationMinutes: d.DurationMinutes,
				Urgency:         d.Urgency,
				Reason:          d.Reason,
				ResumeAfterRain: resume,
			}
			return render(cmd.OutOrStdout(), output, out)
		},
	}

	f := cmd.Flags()
	f.Float64Var(&snap.SoilMoisture, "moisture", 37.2, "Soil moisture in percent")
	f.Float64Var(&snap.Temperature, "temperature", 25.5, "Temperature in °C")
	f.Float64Var(&snap.Humidity, "humidity", 68, "Relative humidity in percent")
	f.Float64Var(&snap.WaterLevel, "water-level", 750, "Tank level in litres")
	f.BoolVar(&snap.RainDetected, "rain", false, "Rain is falling")
	f.Float64Var(&thresholds.SoilMoistureMin, "min-moisture", defaults.SoilMoistureMin, "Moderate irrigation threshold")
	f.Float64Var(&thresholds.SoilMoistureCritical, "critical-moisture", defaults.SoilMoistureCritical, "Critical irrigation threshold")
	f.StringVarP(&output, "output", "o", "yaml", "Output format: yaml or json")
	return cmd
}

func render(w io.Writer, format string, v analysisOutput) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	default:
		return fmt.Errorf("invalid output format %q: use yaml or json", format)
	}
}

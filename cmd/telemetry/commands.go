package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/relabs-tech/telemetry_node/internal/app"
	"github.com/relabs-tech/telemetry_node/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "telemetry",
	Short: "sensor telemetry node: MPL115A2 + MPU6050 over I2C, packets over UDP",
	Long: `telemetry reads a barometer and a motion sensor over I2C and sends a
fixed-layout binary packet over UDP at a fixed cadence. Missing or failing
sensors are replaced by simulated values, flagged in the status byte.

Configuration is read from a KEY=VALUE file (--config, default
./telemetry_config.txt). Every key can be overridden with an environment
variable prefixed by TELEMETRY_, e.g. TELEMETRY_CYCLE_INTERVAL=500.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		path, _ := cmd.Flags().GetString("config")
		if err := config.InitGlobal(path); err != nil {
			return err
		}
		return setupLogging(cmd, config.Get())
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "path to configuration file")
	rootCmd.PersistentFlags().Bool("debug", false, "toggle debug logging")

	calibrateCmd.Flags().IntP("samples", "n", 0, "number of samples to average (default CALIBRATION_SAMPLES)")
	calibrateCmd.Flags().StringP("format", "f", "json", "result file format: json or yaml")
	calibrateCmd.Flags().StringP("output", "o", ".", "directory for the result file")
}

func setupLogging(cmd *cobra.Command, cfg *config.Config) error {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		level = log.DebugLevel
	}
	log.SetLevel(level)
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

var runCmd = &cobra.Command{
	Use:     "run",
	Short:   "acquire sensor data and send telemetry packets",
	Example: `  telemetry run --config=/etc/telemetry/telemetry_config.txt`,
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx, stop := signalContext()
		defer stop()
		return app.RunTelemetryProducer(ctx, config.Get())
	},
}

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "measure motion sensor offsets while it is held still",
	Long: `calibrate averages readings of a stationary, level motion sensor and
writes the resulting accelerometer and gyroscope offsets to a timestamped
file. The offsets are not applied to transmitted telemetry.`,
	Example: `  telemetry calibrate --samples 500 --format yaml`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		samples, _ := cmd.Flags().GetInt("samples")
		format, _ := cmd.Flags().GetString("format")
		out, _ := cmd.Flags().GetString("output")
		return app.RunCalibrate(config.Get(), samples, out, format)
	},
}

var probeCmd = &cobra.Command{
	Use:        "probe",
	SuggestFor: []string{"pro", "prob", "scan"},
	Short:      "report which sensors answer and dump their registers",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return app.RunProbe(config.Get(), cmd.OutOrStdout())
	},
}

var receiveCmd = &cobra.Command{
	Use:   "receive",
	Short: "listen for telemetry packets and serve them over HTTP and websocket",
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx, stop := signalContext()
		defer stop()
		return app.RunReceiver(ctx, config.Get())
	},
}

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "print packets mirrored to MQTT by a running node",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signalContext()
		defer stop()
		return app.RunConsoleMQTT(ctx, config.Get(), cmd.OutOrStdout())
	},
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/airmouse/internal/config"
	"github.com/oshokin/airmouse/internal/logger"
	"github.com/oshokin/airmouse/internal/service/device"
	"github.com/oshokin/airmouse/internal/version"
)

var errUnknownLogLevel = errors.New("unknown log level")

var (
	// configPath to the configuration YAML file.
	configPath string
	// replayFile replaces the I2C sensor with a scripted replay.
	replayFile string
	// mode selects the initial engine mode.
	mode string
	// logLevel is the minimum level of printed log messages.
	logLevel string
	// allowMultiple disables the single-instance check.
	allowMultiple bool
	// logFile is a strftime pattern of a rotating log file.
	logFile string
	// logCloser releases the log file on exit.
	logCloser io.Closer

	// rootCmd represents the base command for running the device daemon.
	rootCmd = &cobra.Command{
		Use:   "airmouse-device [listen-address]",
		Short: "Read the motion sensor and stream cursor and gesture events.",
		Long: `Starts the airmouse daemon that owns the motion sensor.

Every poll interval a sample is read, calibrated and classified according to the
current mode. Results are written as text lines to the connected TCP client
(and the serial port when configured), mirrored to MQTT and the websocket
dashboard, and exposed through the gRPC control API.
The listen address argument overrides device.listen_addr (e.g., :8080).`,
		Args: cobra.MaximumNArgs(1),
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			level, ok := logger.ParseLogLevel(logLevel)
			if !ok {
				return fmt.Errorf("%w: %q", errUnknownLogLevel, logLevel)
			}

			logger.SetLevel(level)

			if logFile == "" {
				return nil
			}

			var err error

			logCloser, err = logger.EnableFileOutput(logFile)

			return err
		},
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			defer logger.Sync()

			// Use listen address argument if provided, otherwise rely on config.
			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			options := &device.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
				ReplayFile:    replayFile,
				Mode:          mode,
				AllowMultiple: allowMultiple,
			}

			return device.Run(ctx, options)
		},
	}
)

// Execute runs the airmouse-device CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	err := rootCmd.Execute()

	if logCloser != nil {
		logger.Sync()
		_ = logCloser.Close()
	}

	if err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also log to a daily rotating file, e.g. airmouse-%Y-%m-%d.log")
	rootCmd.PersistentFlags().StringVar(&replayFile, "replay", "", "read samples from a YAML replay script")

	rootCmd.Flags().StringVarP(&mode, "mode", "m", "", "initial mode: idle, cursor or gesture")
	rootCmd.Flags().BoolVar(&allowMultiple, "allow-multiple", false, "skip the single-instance check")

	rootCmd.AddCommand(calibrateCmd, updateCmd, manifestCmd)
}

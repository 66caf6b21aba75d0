package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/airmouse/internal/api/grpc/control"
	"github.com/oshokin/airmouse/internal/config"
	"github.com/oshokin/airmouse/internal/service/ctl"
	"github.com/oshokin/airmouse/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// address of the device control API, overrides device.control_addr.
	address string

	// rootCmd represents the base command for controlling a running device.
	rootCmd = &cobra.Command{
		Use:   "airmousectl",
		Short: "Control a running airmouse-device over gRPC.",
	}

	modeCmd = &cobra.Command{
		Use:       "mode idle|cursor|gesture",
		Short:     "Switch the device mode.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"idle", "cursor", "gesture"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, opts *ctl.Options) error {
				return ctl.SetMode(ctx, opts, args[0])
			})
		},
	}

	calibrateCmd = &cobra.Command{
		Use:       "calibrate [gyro|tilt]",
		Short:     "Run a calibration batch on the device.",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{control.CalibrationGyro, control.CalibrationTilt},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := control.CalibrationGyro
			if len(args) > 0 {
				kind = args[0]
			}

			return run(cmd, func(ctx context.Context, opts *ctl.Options) error {
				return ctl.Calibrate(ctx, opts, kind)
			})
		},
	}

	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Print the device status.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, ctl.Status)
		},
	}

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Print every line the device publishes.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, ctl.Watch)
		},
	}
)

func run(cmd *cobra.Command, action func(context.Context, *ctl.Options) error) error {
	// Setup graceful shutdown handling.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	return action(ctx, &ctl.Options{
		ConfigPath: configPath,
		Address:    address,
		Output:     cmd.OutOrStdout(),
	})
}

// Execute runs the airmousectl CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().StringVarP(&address, "address", "a", "", "device control address (host:port)")

	rootCmd.AddCommand(modeCmd, calibrateCmd, statusCmd, watchCmd)
}

package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/airmouse/internal/service/device"
)

var (
	// calibrateTilt records the tilt zero pose instead of the gyro offsets.
	calibrateTilt bool

	calibrateCmd = &cobra.Command{
		Use:   "calibrate",
		Short: "Calibrate the sensor once and save the offsets.",
		Long: `Collects a calibration batch with the device held still, prints the
completion line and saves the offsets to device.calibration_file.
Stop the daemon first: the sensor can have only one owner.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return device.RunCalibration(ctx, &device.CalibrationOptions{
				ConfigPath: configPath,
				ReplayFile: replayFile,
				Tilt:       calibrateTilt,
				Output:     cmd.OutOrStdout(),
			})
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	calibrateCmd.Flags().BoolVar(&calibrateTilt, "tilt", false, "calibrate the tilt zero pose")
}

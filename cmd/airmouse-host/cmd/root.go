package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/airmouse/internal/config"
	"github.com/oshokin/airmouse/internal/service/host"
	"github.com/oshokin/airmouse/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// mode requested from the device.
	mode string

	// rootCmd represents the base command for receiving device events.
	rootCmd = &cobra.Command{
		Use:   "airmouse-host [device-address]",
		Short: "Receive cursor and gesture events from an airmouse device.",
		Long: `Connects to an airmouse-device over TCP, waits for INIT_COMPLETE and selects
the requested mode. Cursor vectors are smoothed and printed as pointer moves,
gestures are mapped to media keys.
The device address argument overrides host.device_addr.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			var address string
			if len(args) > 0 {
				address = args[0]
			}

			return host.Run(ctx, &host.Options{
				ConfigPath: configPath,
				Address:    address,
				Mode:       mode,
				Output:     cmd.OutOrStdout(),
			})
		},
	}
)

// Execute runs the airmouse-host CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&mode, "mode", "m", "gesture", "cursor or gesture")
}

package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/airmouse/internal/service/updater"
)

var (
	// updateSource overrides update.source_url.
	updateSource string
	// updateDirectory overrides update.directory.
	updateDirectory string
	// updateDryRun only reports outdated files.
	updateDryRun bool
	// manifestDirectory holds the built binaries to describe.
	manifestDirectory string

	updateCmd = &cobra.Command{
		Use:   "update",
		Short: "Download and apply a newer release.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			result, err := updater.Run(ctx, &updater.Options{
				ConfigPath: configPath,
				SourceURL:  updateSource,
				Directory:  updateDirectory,
				DryRun:     updateDryRun,
			})
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "version %s: %d outdated, %d applied\n",
				result.Version, len(result.Outdated), len(result.Applied))

			return err
		},
	}

	manifestCmd = &cobra.Command{
		Use:   "manifest [files...]",
		Short: "Write the release manifest for a folder of binaries.",
		Long: `Hashes the release files (the airmouse binaries by default) and writes
airmouse-manifest.yaml next to them. Publish the folder as update.source_url.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			files := args
			if len(files) == 0 {
				files = updater.Binaries()
			}

			manifest, err := updater.BuildManifest(manifestDirectory, files)
			if err != nil {
				return err
			}

			path, err := updater.WriteManifest(manifestDirectory, manifest)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), path)

			return err
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	updateCmd.Flags().StringVar(&updateSource, "source", "", "release folder URL, overrides update.source_url")
	updateCmd.Flags().StringVar(&updateDirectory, "dir", "", "installation folder, overrides update.directory")
	updateCmd.Flags().BoolVar(&updateDryRun, "dry-run", false, "only report outdated files")

	manifestCmd.Flags().StringVarP(&manifestDirectory, "dir", "d", ".", "folder with the release files")
}

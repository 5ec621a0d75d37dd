package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"deliverypulse/internal/transform"
)

func newBuildCmd(opts *rootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the fact table and write the processed cache",
		Long:  "Build loads the fact table, reusing the processed cache unless --force is given. Missing raw files are fetched when a remote source is configured.",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := opts.application(cmd.Context())
			if err != nil {
				return err
			}
			defer application.OTelProviders.Shutdown(cmd.Context())

			var info *transform.BuildInfo
			if force {
				info, err = application.Dashboard.Rebuild(cmd.Context())
			} else {
				if _, err = application.Dashboard.Facts(cmd.Context()); err == nil {
					info = application.Dashboard.Status().Build
				}
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Fact table ready: %d rows\n", info.Rows)
			fmt.Fprintf(out, "  build:  %s (%s)\n", info.ID, info.Source)
			fmt.Fprintf(out, "  built:  %s\n", info.BuiltAt.Format(time.RFC3339))
			fmt.Fprintf(out, "  cache:  %s\n", application.Paths.FactTableFile)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "rebuild from the raw CSVs even when a cache exists")
	return cmd
}

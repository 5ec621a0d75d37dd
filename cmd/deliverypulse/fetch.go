package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newFetchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Download missing raw CSV files from the configured source",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := opts.application(cmd.Context())
			if err != nil {
				return err
			}
			defer application.OTelProviders.Shutdown(cmd.Context())

			fetched, err := application.Dashboard.Fetch(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(fetched) == 0 {
				fmt.Fprintf(out, "All raw files already present in %s\n", application.Paths.RawDir)
				return nil
			}
			for _, name := range fetched {
				fmt.Fprintf(out, "✓ %s\n", name)
			}
			fmt.Fprintf(out, "Fetched %d file(s) into %s\n", len(fetched), application.Paths.RawDir)
			return nil
		},
	}
}

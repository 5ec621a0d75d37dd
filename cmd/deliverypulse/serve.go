package main

import (
	"github.com/spf13/cobra"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := opts.application(cmd.Context())
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				application.Config.Server.Port = port
				application.Server.Addr = application.Config.Addr()
			}
			return application.Run()
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8501, "listen port (overrides config)")
	return cmd
}

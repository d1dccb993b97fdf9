package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/extrepo/internal/api"
)

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr  string
		types []string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve descriptor resolution over HTTP",
		Long: `Serve starts an HTTP server that opens a fresh resolution session for every
request. It stops gracefully on SIGINT or SIGTERM.`,
		Example: `  extrepo serve
  extrepo serve --addr 127.0.0.1:9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := c.newRuntime(ctx, types)
			if err != nil {
				return err
			}
			defer rt.Close()
			if addr == "" {
				addr = rt.cfg.Server.Addr
			}

			srv := api.New(rt.factory(), rt.builder.Types(), rt.logger)
			printInfo("Listening on %s", StyleValue.Render(addr))
			return srv.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from configuration)")
	cmd.Flags().StringArrayVar(&types, "type", nil, "extra artifact type id:extension[:classifier[:language]] (repeatable)")

	return cmd
}

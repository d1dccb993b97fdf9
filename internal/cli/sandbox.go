package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/extrepo/pkg/config"
	"github.com/matzehuels/extrepo/pkg/ledger"
)

// defaultSweepAge is the minimum age of a sandbox removed by sandbox sweep.
const defaultSweepAge = 24 * time.Hour

// sandboxCommand creates the sandbox command group.
func (c *CLI) sandboxCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Manage session sandboxes",
	}
	cmd.AddCommand(c.sandboxSweepCommand())
	cmd.AddCommand(c.sandboxPathCommand())
	return cmd
}

// sandboxSweepCommand creates the "sandbox sweep" subcommand.
func (c *CLI) sandboxSweepCommand() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Remove sandboxes left behind by crashed processes",
		Long: `Sweep removes sandbox directories older than --older-than from the sandbox
root. Sandboxes registered in the session ledger are kept, so a shared
ledger (redis) protects the sessions of other running processes.`,
		Example: `  extrepo sandbox sweep
  extrepo sandbox sweep --older-than 1h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if olderThan < 0 {
				return fmt.Errorf("--older-than must not be negative")
			}
			rt, err := c.newRuntime(ctx, nil)
			if err != nil {
				return err
			}
			defer rt.Close()

			live := map[string]bool{}
			if rt.ledger != nil {
				if live, err = ledger.Paths(ctx, rt.ledger); err != nil {
					return err
				}
			}
			switch rt.cfg.Ledger.Backend {
			case config.BackendRedis:
			case config.BackendNone:
				printWarning("No session ledger configured; only the age limit protects running sessions")
			default:
				printWarning("The memory ledger only knows this process; only the age limit protects running sessions")
			}

			keep := func(path string) bool { return live[path] }
			prog := newProgress(rt.logger)
			spin := newSpinnerWithContext(ctx, "Sweeping "+rt.builder.Store().Root())
			spin.Start()
			removed, err := rt.builder.Store().Sweep(ctx, olderThan, keep)
			if err != nil {
				spin.StopWithError(fmt.Sprintf("Sweep stopped after %d removals: %v", removed, err))
				return err
			}
			spin.StopWithSuccess(fmt.Sprintf("Removed %d sandboxes from %s", removed, rt.builder.Store().Root()))
			prog.done("sweep complete", "removed", removed, "live", len(live))
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", defaultSweepAge, "only remove sandboxes older than this")

	return cmd
}

// sandboxPathCommand creates the "sandbox path" subcommand.
func (c *CLI) sandboxPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the directory sandboxes are created in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := c.newRuntime(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer rt.Close()
			fmt.Fprintln(stdout, rt.builder.Store().Root())
			return nil
		},
	}
}

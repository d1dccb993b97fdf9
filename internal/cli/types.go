package cli

import (
	"github.com/spf13/cobra"
)

// typesCommand creates the types command group.
func (c *CLI) typesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "types",
		Short: "Inspect artifact types",
	}
	cmd.AddCommand(c.typesListCommand())
	return cmd
}

// typesListCommand creates the "types list" subcommand.
func (c *CLI) typesListCommand() *cobra.Command {
	var (
		types   []string
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the artifact types a new session recognizes",
		Long: `List prints the registry every new session starts with: the default
types, the extension repository kinds and any types from the configuration
file or --type flags.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := c.newRuntime(cmd.Context(), types)
			if err != nil {
				return err
			}
			defer rt.Close()

			registered := rt.builder.Types().Types()
			if jsonOut {
				return writeJSON(registered)
			}
			printTypes(registered)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&types, "type", nil, "extra artifact type id:extension[:classifier[:language]] (repeatable)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the types as JSON")

	return cmd
}

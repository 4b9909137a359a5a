package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/provision/cmd/provision/handlers"
)

// List returns the list command.
func List(global *handlers.Global) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List nodes",
		Long: `List prints one line per node that is not being deleted:

  name public-ip state

Use -o json or -o yaml for the full node descriptions.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.List(cmd.Context(), *global, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", handlers.FormatTable, "Output format: table, json or yaml")

	return cmd
}

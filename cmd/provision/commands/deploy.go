package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/provision/cmd/provision/handlers"
)

// Deploy returns the deploy command.
func Deploy(global *handlers.Global) *cobra.Command {
	var (
		opts     handlers.DeployOptions
		location int
		size     int
	)

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Create a node and install bundles on it",
		Long: `Deploy creates a node, waits until it is reachable over SSH, installs the
authorized keys, uploads the bundle files and runs the bundle scripts.

The default bundles of the selected image run before the bundles given with
-b. Scripts are rendered with the configured substitution variables, the -t
overrides and node_name.

The exit status is the sum of the script exit statuses, capped at 255.

Example:
  provision deploy -b web -b monitoring -i noble -t env=staging`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("location") {
				opts.Location = &location
			}
			if cmd.Flags().Changed("size") {
				opts.Size = &size
			}
			return handlers.Deploy(cmd.Context(), *global, opts)
		},
	}

	f := cmd.Flags()
	f.StringArrayVarP(&opts.Bundles, "bundle", "b", nil, "Bundle to install (repeatable)")
	f.StringVarP(&opts.Image, "image", "i", "", "Image alias or name (default from configuration)")
	f.IntVarP(&location, "location", "l", 0, "Location index, ordered by ID (default from configuration)")
	f.IntVarP(&size, "size", "s", 0, "Server type index, ordered by ID (default from configuration)")
	f.StringVarP(&opts.Name, "name", "n", "", "Node name (default: random name with the prefix)")
	f.StringVarP(&opts.Prefix, "prefix", "x", "", "Prefix of generated node names (default from configuration)")
	f.StringArrayVarP(&opts.Vars, "var", "t", nil, "Template substitution variable as key=value (repeatable)")
	f.StringVarP(&opts.DescriptionFile, "description-file", "d", "", "Write the node description as JSON to this file")
	f.BoolVar(&opts.Destroyable, "destroyable", false, "Record the node as destroyable regardless of its name")
	f.BoolVar(&opts.Quiet, "quiet", false, "Only print the node name")

	return cmd
}

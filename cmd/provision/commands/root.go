// Package commands defines the CLI command structure and flag bindings.
//
// Command execution is delegated to handler functions in the handlers
// package.
package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/imamik/provision/cmd/provision/handlers"
)

// TokenEnvVar supplies the API token when --token is not given.
const TokenEnvVar = "HCLOUD_TOKEN"

// Root returns the root command for the provision CLI.
func Root() *cobra.Command {
	global := &handlers.Global{}

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Deploy, list and destroy short-lived cloud nodes",
		Long: `provision creates cloud nodes and installs bundles of scripts and files on
them over SSH. Nodes are destroyed again by name, optionally only after a
JUnit report shows that all tests passed.

Configuration is read from ~/.provision, $PROVISION_HOME and every -c
directory, in that order.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if global.Token == "" {
				global.Token = os.Getenv(TokenEnvVar)
			}
			global.Version = version
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringArrayVarP(&global.ConfigDirs, "config", "c", nil, "Configuration directory (repeatable, applied in order)")
	flags.StringVarP(&global.Provider, "provider", "p", "", "Cloud provider (default from configuration, hcloud)")
	flags.StringVarP(&global.Token, "token", "k", "", "Provider API token (default $"+TokenEnvVar+")")
	flags.CountVarP(&global.Verbosity, "verbose", "v", "Increase log verbosity")
	flags.StringVar(&global.MetricsFile, "metrics-file", "", "Write run metrics in Prometheus textfile format to this path")

	cmd.AddCommand(List(global))
	cmd.AddCommand(Deploy(global))
	cmd.AddCommand(Destroy(global))
	cmd.AddCommand(Version())

	return cmd
}

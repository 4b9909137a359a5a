package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/provision/cmd/provision/handlers"
)

// Destroy returns the destroy command.
func Destroy(global *handlers.Global) *cobra.Command {
	var testResults string

	cmd := &cobra.Command{
		Use:   "destroy NAME",
		Short: "Destroy a node by name",
		Long: `Destroy deletes every node with the given name, provided the node is
destroyable: either its deployment was recorded as destroyable in the
metadata bucket, or its name starts with one of the destroyable prefixes.

With --test-results the node is only destroyed when the JUnit report shows
no failures and no errors.

Exit codes:
  0  node destroyed
  1  node not found or not destroyable
  2  test results could not be parsed
  3  not all tests passed`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Destroy(cmd.Context(), *global, args[0], testResults)
		},
	}

	cmd.Flags().StringVarP(&testResults, "test-results", "t", "", "Only destroy if all tests in this JUnit XML file passed")

	return cmd
}

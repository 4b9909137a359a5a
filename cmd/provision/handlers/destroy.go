package handlers

import (
	"context"
	"fmt"

	"github.com/imamik/provision/internal/util/junit"
)

var parseTestResults = junit.ParseFile

// Destroy handles the destroy command.
//
// With a test results file the node is only destroyed when the report shows
// neither failures nor errors. A node that is missing or not destroyable
// yields ExitNotDestroyed.
func Destroy(ctx context.Context, global Global, name, testResults string) error {
	if testResults != "" {
		summary, err := parseTestResults(testResults)
		if err != nil {
			return &ExitError{
				Code: ExitTestResultsUnusable,
				Err:  fmt.Errorf("could not parse %s, aborting destroy: %w", testResults, err),
			}
		}
		if !summary.Passed() {
			return &ExitError{
				Code: ExitTestsFailed,
				Err: fmt.Errorf("not all tests passed (%d failures, %d errors), aborting destroy",
					summary.Failures, summary.Errors),
			}
		}
	}

	env, err := setup(global)
	if err != nil {
		return err
	}
	defer env.finish()

	destroyed, err := env.driver.Destroy(ctx, name)
	if err != nil {
		return err
	}
	if !destroyed {
		return &ExitError{Code: ExitNotDestroyed, Err: fmt.Errorf("unable to destroy node %s", name)}
	}
	fmt.Fprintf(stdout, "Node %s destroyed\n", name)
	return nil
}
